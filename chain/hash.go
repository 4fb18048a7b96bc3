package chain

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"maps"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/crypto/sha3"
)

var prefixPattern = regexp.MustCompile(`^[0-9a-f]*$`)

// Hasher computes the digest of a block from its number, previous hash, nonce
// and documents. Implementations must be deterministic and safe for concurrent use.
type Hasher interface {
	Sum(b Block) (string, error)
}

// SHA3Hasher is the default Hasher: SHA3-512 rendered as lowercase hex.
type SHA3Hasher struct{}

// Sum writes the number and nonce as fixed-width little-endian integers around the
// previous hash, followed by the documents in ascending id order. Each document
// contributes its id, its creation time and its exact payload bytes, every
// variable-length field prefixed with its length. A payload that is not nil and
// not a JSON value cannot be digested.
func (SHA3Hasher) Sum(b Block) (string, error) {
	h := sha3.New512()

	writeUint64(h, b.Number)
	writeBytes(h, []byte(b.PrevHash))
	writeUint64(h, b.Nonce)

	ids := slices.Sorted(maps.Keys(b.Documents))
	writeUint64(h, uint64(len(ids)))
	for _, id := range ids {
		d := b.Documents[id]
		if d.Payload != nil && !json.Valid(d.Payload) {
			return "", fmt.Errorf("chain: document %s of block %d: payload is not JSON", id, b.Number)
		}
		writeBytes(h, []byte(d.ID))
		writeUint64(h, uint64(d.CreatedAt.Unix()))
		writeUint64(h, uint64(d.CreatedAt.Nanosecond()))
		if d.Payload == nil {
			_, _ = h.Write([]byte{0})
			continue
		}
		_, _ = h.Write([]byte{1})
		writeBytes(h, d.Payload)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeUint64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func writeBytes(h hash.Hash, p []byte) {
	writeUint64(h, uint64(len(p)))
	_, _ = h.Write(p)
}

// HasPrefix reports whether hash satisfies the proof-of-work prefix.
func HasPrefix(digest, prefix string) bool {
	return strings.HasPrefix(digest, prefix)
}

// ValidPrefix reports whether prefix can ever match a lowercase hex digest.
func ValidPrefix(prefix string) bool {
	return len(prefix) <= 128 && prefixPattern.MatchString(prefix)
}
