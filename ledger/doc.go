// Package ledger implements an append-only, hash-linked ledger of documents whose
// blocks are admitted by proof of work.
//
// # Core Components
//
// Ledger: The owner of the chain, the document registry and the pending pool. Every
// mutation runs under a single write lock, so writers are serialized; reads return
// independent snapshots.
//
// Watcher: Ledger.Watch periodically mines the pending pool while a context is live,
// skipping ticks while a previous attempt is still running.
//
// # Fork Choice
//
// SetChain replaces the chain only with a candidate that is strictly longer and valid
// on its own. The replacement is all-or-nothing: the registry is rebuilt from the
// candidate's blocks and documents still waiting in the pool stay pending.
//
// # Usage
//
// Create a ledger with New, submit documents with CreateDocument or AddDocument and
// call MineBlock to seal the pending pool into the next block. MineBlock takes a
// context; cancelling it is the only way to bound a search that cannot succeed.
package ledger
