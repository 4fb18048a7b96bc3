package common

import (
	"crypto/cipher"
	"encoding/hex"
	"io"
	"sync"

	"go.dedis.ch/kyber/v4/util/random"
)

// IDBits is the entropy of a generated identifier: 256 bits, 64 hex characters.
const IDBits = 256

// RandomIDs draws identifiers from a kyber random stream.
// It is safe for concurrent use.
type RandomIDs struct {
	mu     sync.Mutex
	stream cipher.Stream
}

// NewRandomIDs returns an id source fed by readers. With no readers the stream is
// seeded from crypto/rand.
func NewRandomIDs(readers ...io.Reader) *RandomIDs {
	return &RandomIDs{stream: random.New(readers...)}
}

// NewID returns 64 lowercase hex characters.
func (r *RandomIDs) NewID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return hex.EncodeToString(random.Bits(IDBits, false, r.stream))
}
