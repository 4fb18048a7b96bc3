// Package chain defines the data model of the document ledger and the stateless
// rules that operate on it.
//
// # Core Components
//
// Document: an opaque JSON payload identified by 64 lowercase hex characters.
//
// Block: a numbered batch of documents linked to its predecessor by hash and
// sealed with a proof-of-work nonce.
//
// Hasher: the deterministic digest over a block's canonical fields. The default
// implementation is SHA3-512 over the number, previous hash, nonce and the
// canonical JSON encoding of the document set.
//
// Validator: structural, hash and proof checks for single blocks and whole chains.
//
// Assemble: snapshots a pending pool into an unmined block shell on top of a tip.
//
// # Invariants
//
// A chain is valid iff its first block is valid and every following block is
// valid, carries the previous block's hash and the next sequential number.
// Validation stops at the first failing index, so every prefix of a valid chain
// is itself valid.
package chain
