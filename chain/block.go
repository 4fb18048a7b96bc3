package chain

import (
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"time"
)

// GenesisPrevHash is the previous-hash sentinel carried by block 0.
const GenesisPrevHash = "0"

// DefaultPrefix is the proof-of-work prefix a block hash must start with.
const DefaultPrefix = "0000"

var idPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Document is an opaque payload tracked by the ledger.
type Document struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Payload   json.RawMessage `json:"payload"`
}

// Clone returns a copy of the document that shares no memory with d.
func (d Document) Clone() Document {
	if d.Payload != nil {
		d.Payload = slices.Clone(d.Payload)
	}
	return d
}

// Block is a numbered, hash-linked batch of documents.
// Hash is empty until the block has been mined.
type Block struct {
	Number    uint64              `json:"number"`
	CreatedAt time.Time           `json:"createdAt"`
	Hash      string              `json:"hash"`
	Nonce     uint64              `json:"nonce"`
	PrevHash  string              `json:"prevHash"`
	Documents map[string]Document `json:"documents"`
}

// Clone returns a deep copy of the block, documents included.
func (b Block) Clone() Block {
	b.Documents = CloneDocuments(b.Documents)
	return b
}

// IsMined reports whether the block carries a hash.
func (b Block) IsMined() bool {
	return b.Hash != ""
}

// SortedIDs returns the ids of the block's documents in ascending order.
func (b Block) SortedIDs() []string {
	return slices.Sorted(maps.Keys(b.Documents))
}

// CloneDocuments deep copies a document set. A nil set yields an empty, non-nil map.
func CloneDocuments(docs map[string]Document) map[string]Document {
	out := make(map[string]Document, len(docs))
	for id, d := range docs {
		out[id] = d.Clone()
	}
	return out
}

// CloneChain deep copies a sequence of blocks.
func CloneChain(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

// ValidID reports whether id is exactly 64 lowercase hex characters.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ValidDocument reports whether doc is well formed: a valid id and a payload
// that is either nil or a single well-formed JSON value. An empty non-nil payload
// is not a JSON value and is rejected.
func ValidDocument(doc Document) bool {
	if !ValidID(doc.ID) {
		return false
	}
	return doc.Payload == nil || json.Valid(doc.Payload)
}
