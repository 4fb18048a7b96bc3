package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/luca-patrignani/docledger/chain"
)

// ErrWorkerFault is returned when a worker fails before any worker succeeds.
var ErrWorkerFault = errors.New("consensus: worker fault")

const defaultCheckInterval = 1024

// Miner searches nonces for block shells. A Miner holds no per-attempt state and may
// run several attempts concurrently.
type Miner struct {
	workers       int
	prefix        string
	hasher        chain.Hasher
	logger        *slog.Logger
	checkInterval uint64
	now           func() time.Time
}

// Option configures a Miner.
type Option func(*Miner)

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) Option {
	return func(m *Miner) {
		m.workers = n
	}
}

// WithPrefix sets the digest prefix a mined block must carry.
func WithPrefix(prefix string) Option {
	return func(m *Miner) {
		m.prefix = prefix
	}
}

// WithHasher replaces the block digest.
func WithHasher(h chain.Hasher) Option {
	return func(m *Miner) {
		if h != nil {
			m.hasher = h
		}
	}
}

// WithLogger sets the logger attempts report to. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(m *Miner) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithCheckInterval sets how many nonces a worker walks between cancellation checks.
func WithCheckInterval(n uint64) Option {
	return func(m *Miner) {
		if n > 0 {
			m.checkInterval = n
		}
	}
}

// NewMiner returns a Miner with one worker, the default prefix and the SHA3 digest,
// adjusted by opts.
func NewMiner(opts ...Option) *Miner {
	m := &Miner{
		workers:       1,
		prefix:        chain.DefaultPrefix,
		hasher:        chain.SHA3Hasher{},
		logger:        slog.Default(),
		checkInterval: defaultCheckInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Workers returns the number of workers started per attempt.
func (m *Miner) Workers() int { return m.workers }

// Prefix returns the digest prefix mined blocks carry.
func (m *Miner) Prefix() string { return m.prefix }

// Mine searches a nonce for shell and returns the completed block. The first worker
// outcome decides the attempt: a success cancels every other worker, a fault fails
// the attempt. If ctx ends first, Mine returns ctx.Err().
//
// With zero workers nothing searches and Mine only returns once ctx is done.
func (m *Miner) Mine(ctx context.Context, shell chain.Block) (chain.Block, error) {
	attempt := uuid.NewString()
	log := m.logger.With("attempt", attempt, "number", shell.Number)
	start := time.Now()

	if m.workers <= 0 {
		log.Warn("mining with no workers, waiting for cancellation")
		<-ctx.Done()
		return chain.Block{}, ctx.Err()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var (
		once  sync.Once
		found bool
		won   Result
	)

	log.Debug("mining started", "workers", m.workers, "pending", len(shell.Documents))
	partitions := uint64(m.workers)
	for i := range partitions {
		job := Job{
			Partitions: partitions,
			Residue:    i,
			Prefix:     m.prefix,
			Shell:      shell.Clone(),
		}
		g.Go(func() error {
			r, err := work(gctx, job, m.hasher, m.checkInterval, m.now)
			if gctx.Err() != nil {
				// another outcome or the caller already decided the attempt
				return nil
			}
			if err != nil {
				log.Error("worker failed", "residue", job.Residue, "error", err)
				return fmt.Errorf("residue %d: %w", job.Residue, err)
			}
			once.Do(func() {
				found, won = true, r
				cancel()
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return chain.Block{}, fmt.Errorf("%w: %w", ErrWorkerFault, err)
	}
	if !found {
		log.Debug("mining cancelled", "elapsed", time.Since(start))
		return chain.Block{}, ctx.Err()
	}
	b := won.Apply(shell)
	log.Info("block mined", "nonce", b.Nonce, "hash", b.Hash, "elapsed", time.Since(start))
	return b, nil
}

// Verify reports whether b carries a proof of work for this miner's prefix and digest.
func (m *Miner) Verify(b chain.Block) bool {
	if !chain.HasPrefix(b.Hash, m.prefix) {
		return false
	}
	hash, err := m.hasher.Sum(b)
	return err == nil && hash == b.Hash
}
