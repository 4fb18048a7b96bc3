package chain

// Assemble builds an unmined block on top of tip holding a snapshot of pending.
// A nil tip yields block 0 linked to GenesisPrevHash. The result shares no
// memory with its inputs.
func Assemble(tip *Block, pending map[string]Document) Block {
	b := Block{
		Number:    0,
		PrevHash:  GenesisPrevHash,
		Documents: CloneDocuments(pending),
	}
	if tip != nil {
		b.Number = tip.Number + 1
		b.PrevHash = tip.Hash
	}
	return b
}
