package chain

// Validator checks blocks and chains against a proof-of-work prefix.
type Validator struct {
	prefix string
	hasher Hasher
}

// NewValidator returns a Validator for prefix. A nil hasher selects SHA3Hasher.
func NewValidator(prefix string, h Hasher) Validator {
	if h == nil {
		h = SHA3Hasher{}
	}
	return Validator{prefix: prefix, hasher: h}
}

// Prefix returns the proof-of-work prefix the validator enforces.
func (v Validator) Prefix() string {
	return v.prefix
}

// IsDocumentValid applies the registry's document rule.
func (v Validator) IsDocumentValid(doc Document) bool {
	return ValidDocument(doc)
}

// IsBlockValid reports whether b is well formed, proves work for the configured
// prefix, carries the digest of its own contents and embeds only valid documents.
func (v Validator) IsBlockValid(b Block) bool {
	structureOK := wellFormed(b)
	workOK := HasPrefix(b.Hash, v.prefix)

	digest, err := v.hasher.Sum(b)
	hashOK := err == nil && digest == b.Hash

	docsOK := true
	for _, d := range b.Documents {
		if !v.IsDocumentValid(d) {
			docsOK = false
			break
		}
	}

	return structureOK && workOK && hashOK && docsOK
}

// IsChainValid reports whether blocks form a valid chain. An empty chain is invalid.
func (v Validator) IsChainValid(blocks []Block) bool {
	return len(blocks) > 0 && v.FirstInvalid(blocks) < 0
}

// FirstInvalid returns the index of the first block that breaks the chain, or -1
// when every block is valid. An empty chain reports index 0.
func (v Validator) FirstInvalid(blocks []Block) int {
	if len(blocks) == 0 {
		return 0
	}
	if !v.IsBlockValid(blocks[0]) {
		return 0
	}
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if !v.IsBlockValid(cur) || cur.PrevHash != prev.Hash || cur.Number != prev.Number+1 {
			return i
		}
	}
	return -1
}

// wellFormed is the typed replacement for a field-set comparison: a mined block
// has a hash and every document sits under its own id.
func wellFormed(b Block) bool {
	if !b.IsMined() || b.PrevHash == "" {
		return false
	}
	for id, d := range b.Documents {
		if id != d.ID {
			return false
		}
	}
	return true
}
