// Package consensus implements the proof-of-work search that admits a block to the
// ledger. A Miner coordinates a fixed number of workers over one block shell and
// returns the first block whose digest carries the required prefix.
//
// # Core Components
//
// Miner: Coordinates a mining attempt. It splits the nonce space into residue
// classes, starts one worker per class, takes the first outcome and cancels the rest.
//
// Job: The input of a single worker: the partition count, the worker's residue, the
// required prefix and a private copy of the block shell.
//
// Result: The message a successful worker hands back: the winning nonce, the digest
// and the completion time.
//
// # Search Partitioning
//
// Worker i of W starts at nonce i and walks the nonces one by one, but only computes
// the digest for nonces n with n mod W == i. The partitioning keeps workers from
// repeating each other's work; any worker's success is accepted, so the winning nonce
// is not necessarily the smallest satisfying one.
//
// # Failure
//
// A worker fault before any success fails the whole attempt with ErrWorkerFault. The
// miner does not retry; callers mine again if they want to.
package consensus
