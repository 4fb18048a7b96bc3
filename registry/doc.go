// Package registry tracks every document known to a ledger and the pool of
// documents waiting to be mined.
//
// Each document id has exactly one status: pending, or the number of the block
// that committed it. A document sits in the pending pool iff its status is pending.
//
// The index lives in a LevelDB instance opened over in-memory storage, so nothing
// touches disk. Keys are namespaced:
//
//	status_<id>  -> "pending" | decimal block number
//	pending_<id> -> JSON record holding the payload bytes verbatim
//
// Multi-key updates (commit, reset) go through a single write batch and are
// applied atomically.
package registry
