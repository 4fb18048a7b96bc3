package ledger

import (
	"encoding/json"
	"log/slog"
	"runtime"
	"slices"

	"github.com/luca-patrignani/docledger/chain"
	"github.com/luca-patrignani/docledger/common"
	"github.com/luca-patrignani/docledger/registry"
)

type options struct {
	prefix     string
	workers    int
	hasher     chain.Hasher
	ids        registry.IDSource
	logger     *slog.Logger
	genesis    json.RawMessage
	hasGenesis bool
}

// Option configures a Ledger at construction time.
type Option func(options) options

func defaultOptions() options {
	return options{
		prefix:  chain.DefaultPrefix,
		workers: runtime.NumCPU(),
		hasher:  chain.SHA3Hasher{},
		ids:     common.NewRandomIDs(),
		logger:  slog.Default(),
	}
}

// WithPrefix sets the proof-of-work prefix, a lowercase hex string.
func WithPrefix(prefix string) Option {
	return func(o options) options {
		o.prefix = prefix
		return o
	}
}

// WithWorkers sets how many workers search a nonce in parallel. Zero workers never
// finish a search; MineBlock then only returns when its context ends.
func WithWorkers(n int) Option {
	return func(o options) options {
		o.workers = n
		return o
	}
}

// WithHasher replaces the block digest used for both mining and validation.
func WithHasher(h chain.Hasher) Option {
	return func(o options) options {
		if h != nil {
			o.hasher = h
		}
		return o
	}
}

// WithIDSource replaces the generator of document ids.
func WithIDSource(ids registry.IDSource) Option {
	return func(o options) options {
		if ids != nil {
			o.ids = ids
		}
		return o
	}
}

// WithLogger sets the logger of the ledger and its miner. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o options) options {
		if l != nil {
			o.logger = l
		}
		return o
	}
}

// WithGenesis makes New create a document with payload and mine it as block 0.
// New fails with ErrNoWorkers if the ledger has no workers to mine it.
func WithGenesis(payload json.RawMessage) Option {
	return func(o options) options {
		o.genesis = slices.Clone(payload)
		o.hasGenesis = true
		return o
	}
}
