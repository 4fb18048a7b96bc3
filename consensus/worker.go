package consensus

import (
	"context"
	"time"

	"github.com/luca-patrignani/docledger/chain"
)

// Job is the input of one worker.
type Job struct {
	Partitions uint64
	Residue    uint64
	Prefix     string
	Shell      chain.Block
}

// Result is what a worker reports when its search succeeds.
type Result struct {
	Nonce     uint64
	Hash      string
	CreatedAt time.Time
}

// Apply returns a copy of shell completed with r.
func (r Result) Apply(shell chain.Block) chain.Block {
	b := shell.Clone()
	b.Nonce = r.Nonce
	b.Hash = r.Hash
	b.CreatedAt = r.CreatedAt
	return b
}

// work runs the search of a single residue class until a nonce satisfies the prefix,
// the hasher fails, or ctx is done. The context is polled every checkEvery steps.
func work(ctx context.Context, job Job, h chain.Hasher, checkEvery uint64, now func() time.Time) (Result, error) {
	b := job.Shell
	var steps uint64
	for nonce := job.Residue; ; nonce++ {
		steps++
		if steps%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		if nonce%job.Partitions != job.Residue {
			continue
		}
		b.Nonce = nonce
		hash, err := h.Sum(b)
		if err != nil {
			return Result{}, err
		}
		if chain.HasPrefix(hash, job.Prefix) {
			return Result{Nonce: nonce, Hash: hash, CreatedAt: now().UTC()}, nil
		}
	}
}
