package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/luca-patrignani/docledger/chain"
	"github.com/luca-patrignani/docledger/consensus"
	"github.com/luca-patrignani/docledger/registry"
)

var (
	// ErrDocumentNotFound is returned for ids that are unknown or still pending.
	ErrDocumentNotFound = errors.New("ledger: document not found in any block")

	// ErrStaleBlock is returned by MineBlock when the chain moved while mining.
	ErrStaleBlock = errors.New("ledger: mined block no longer extends the chain")

	// ErrInvalidPrefix is returned by New for a prefix no digest can carry.
	ErrInvalidPrefix = errors.New("ledger: prefix must be lowercase hex")

	// ErrNoWorkers is returned by New when a genesis block is requested but no
	// worker could ever mine it.
	ErrNoWorkers = errors.New("ledger: genesis block needs at least one worker")
)

// Ledger owns a hash-linked chain of blocks, the registry of document statuses
// and the pending pool. It is safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	blocks    []chain.Block
	registry  *registry.Registry
	validator chain.Validator
	miner     *consensus.Miner
	logger    *slog.Logger
	mining    atomic.Bool
}

// New returns an empty ledger configured by opts. With WithGenesis the genesis
// document is mined into block 0 before New returns.
func New(opts ...Option) (*Ledger, error) {
	o := defaultOptions()
	for _, opt := range opts {
		o = opt(o)
	}
	if !chain.ValidPrefix(o.prefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, o.prefix)
	}
	if o.hasGenesis && o.workers <= 0 {
		return nil, ErrNoWorkers
	}

	reg, err := registry.New(o.ids)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		registry:  reg,
		validator: chain.NewValidator(o.prefix, o.hasher),
		miner: consensus.NewMiner(
			consensus.WithWorkers(o.workers),
			consensus.WithPrefix(o.prefix),
			consensus.WithHasher(o.hasher),
			consensus.WithLogger(o.logger),
		),
		logger: o.logger,
	}

	if o.hasGenesis {
		if _, err := l.CreateDocument(o.genesis); err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("ledger: genesis document: %w", err)
		}
		if _, err := l.MineBlock(context.Background()); err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("ledger: genesis block: %w", err)
		}
	}
	return l, nil
}

// Close releases the registry. The ledger must not be used afterwards.
func (l *Ledger) Close() error {
	return l.registry.Close()
}

// Prefix returns the proof-of-work prefix blocks must carry.
func (l *Ledger) Prefix() string {
	return l.validator.Prefix()
}

// Chain returns a deep copy of the chain.
func (l *Ledger) Chain() []chain.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return chain.CloneChain(l.blocks)
}

// Height returns the number of blocks in the chain.
func (l *Ledger) Height() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// PendingDocuments returns a copy of the pending pool.
func (l *Ledger) PendingDocuments() map[string]chain.Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pending, err := l.registry.Pending()
	if err != nil {
		l.logger.Error("reading pending pool", "error", err)
		return map[string]chain.Document{}
	}
	return pending
}

// PendingCount returns the size of the pending pool.
func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, err := l.registry.PendingCount()
	if err != nil {
		l.logger.Error("counting pending pool", "error", err)
		return 0
	}
	return n
}

// DocumentByID returns a copy of a committed document. Pending and unknown ids
// both yield ErrDocumentNotFound.
func (l *Ledger) DocumentByID(id string) (chain.Document, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok, err := l.registry.Status(id)
	if err != nil {
		return chain.Document{}, err
	}
	if !ok || s.Pending || len(l.blocks) == 0 {
		return chain.Document{}, ErrDocumentNotFound
	}
	first := l.blocks[0].Number
	if s.Block < first || s.Block-first >= uint64(len(l.blocks)) {
		return chain.Document{}, ErrDocumentNotFound
	}
	doc, ok := l.blocks[s.Block-first].Documents[id]
	if !ok {
		return chain.Document{}, ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

// AllDocuments returns every committed document in block order, sorted by id
// within a block.
func (l *Ledger) AllDocuments() []chain.Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var docs []chain.Document
	for _, b := range l.blocks {
		for _, id := range b.SortedIDs() {
			docs = append(docs, b.Documents[id].Clone())
		}
	}
	return docs
}

// CreateDocument stores a new pending document holding payload.
func (l *Ledger) CreateDocument(payload json.RawMessage) (chain.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.registry.Create(payload)
	if err != nil {
		return chain.Document{}, err
	}
	l.logger.Debug("document created", "id", doc.ID)
	return doc.Clone(), nil
}

// AddDocument puts doc into the pending pool. It reports false when doc is invalid
// or already committed.
func (l *Ledger) AddDocument(doc chain.Document) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, err := l.registry.Add(doc)
	if err != nil {
		l.logger.Error("adding document", "id", doc.ID, "error", err)
		return false
	}
	return ok
}

// SetPendingDocuments imports docs into the pending pool. Each document is validated
// and invalid ones are dropped.
func (l *Ledger) SetPendingDocuments(docs map[string]chain.Document) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.registry.Import(docs)
	if err != nil {
		l.logger.Error("importing pending documents", "error", err)
		return
	}
	if skipped := len(docs) - n; skipped > 0 {
		l.logger.Warn("dropped invalid pending documents", "skipped", skipped)
	}
}

// AddBlock appends b if it validly extends the tip. On an empty ledger b must be
// block 0 linked to the genesis sentinel. A rejected block leaves the ledger as it was.
func (l *Ledger) AddBlock(b chain.Block) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.extendsLocked(b) {
		l.logger.Debug("block rejected", "number", b.Number, "hash", b.Hash)
		return false
	}
	if err := l.appendLocked(b.Clone()); err != nil {
		l.logger.Error("appending block", "number", b.Number, "error", err)
		return false
	}
	return true
}

// SetChain replaces the chain with candidate when it is strictly longer and valid.
func (l *Ledger) SetChain(candidate []chain.Block) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(candidate) <= len(l.blocks) {
		l.logger.Debug("candidate chain not longer", "candidate", len(candidate), "current", len(l.blocks))
		return false
	}
	if i := l.validator.FirstInvalid(candidate); i >= 0 {
		l.logger.Debug("candidate chain invalid", "index", i)
		return false
	}

	blocks := chain.CloneChain(candidate)
	if err := l.registry.Reset(); err != nil {
		l.logger.Error("resetting registry", "error", err)
		return false
	}
	l.blocks = nil
	for _, b := range blocks {
		if err := l.appendLocked(b); err != nil {
			l.logger.Error("replaying block", "number", b.Number, "error", err)
			return false
		}
	}
	if err := l.registry.MarkPending(); err != nil {
		l.logger.Error("re-marking pending documents", "error", err)
		return false
	}
	l.logger.Info("chain replaced", "height", len(l.blocks))
	return true
}

// MineBlock seals the pending pool into the next block and appends it. The search
// runs without holding the ledger lock; if the chain changed meanwhile the block is
// discarded and ErrStaleBlock is returned. Cancelling ctx aborts the search.
func (l *Ledger) MineBlock(ctx context.Context) (chain.Block, error) {
	l.mu.RLock()
	var tip *chain.Block
	if n := len(l.blocks); n > 0 {
		t := l.blocks[n-1].Clone()
		tip = &t
	}
	pending, err := l.registry.Pending()
	l.mu.RUnlock()
	if err != nil {
		return chain.Block{}, err
	}

	b, err := l.miner.Mine(ctx, chain.Assemble(tip, pending))
	if err != nil {
		return chain.Block{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.extendsLocked(b) {
		l.logger.Warn("discarding stale block", "number", b.Number, "hash", b.Hash)
		return chain.Block{}, ErrStaleBlock
	}
	if err := l.appendLocked(b); err != nil {
		return chain.Block{}, err
	}
	return b.Clone(), nil
}

// Verify re-validates the whole chain. An empty ledger is reported invalid.
func (l *Ledger) Verify() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.validator.FirstInvalid(l.blocks); i >= 0 {
		l.logger.Warn("chain invalid", "index", i)
		return false
	}
	return true
}

func (l *Ledger) extendsLocked(b chain.Block) bool {
	if len(l.blocks) == 0 {
		return b.Number == 0 && b.PrevHash == chain.GenesisPrevHash &&
			l.validator.IsChainValid([]chain.Block{b})
	}
	return l.validator.IsChainValid([]chain.Block{l.blocks[len(l.blocks)-1], b})
}

// appendLocked commits the documents of b and pushes b. b must not be shared.
func (l *Ledger) appendLocked(b chain.Block) error {
	if err := l.registry.Commit(b.Number, b.SortedIDs()); err != nil {
		return err
	}
	l.blocks = append(l.blocks, b)
	return nil
}
