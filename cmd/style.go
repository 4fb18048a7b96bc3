package main

import (
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/luca-patrignani/docledger/chain"
)

const hashWidth = 16

func renderBanner() {
	_ = pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Doc", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("Ledger", pterm.FgDarkGray.ToStyle()),
	).Render()
}

func renderHelp() {
	_ = pterm.DefaultBulletList.WithItems([]pterm.BulletListItem{
		{Level: 0, Text: "any other line: create a document (JSON kept, text quoted)"},
		{Level: 0, Text: cmdMine + ": mine the pending documents into a block"},
		{Level: 0, Text: cmdChain + ": show the chain"},
		{Level: 0, Text: cmdPending + ": show the pending documents"},
		{Level: 0, Text: cmdDocs + ": show the committed documents"},
		{Level: 0, Text: cmdGet + " <id>: show a committed document"},
		{Level: 0, Text: cmdVerify + ": validate the whole chain"},
		{Level: 0, Text: cmdQuit + ": exit"},
	}).Render()
}

func renderChain(blocks []chain.Block) {
	if len(blocks) == 0 {
		pterm.Info.Println("the chain is empty")
		return
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(chainTable(blocks)).Render()
}

func renderDocuments(title string, docs []chain.Document) {
	if len(docs) == 0 {
		pterm.Info.Printfln("%s: none", title)
		return
	}
	pterm.DefaultSection.Println(title)
	_ = pterm.DefaultTable.WithHasHeader().WithData(documentTable(docs)).Render()
}

// chainTable lays out one row per block with shortened hashes.
func chainTable(blocks []chain.Block) pterm.TableData {
	data := pterm.TableData{{"#", "Hash", "Prev", "Nonce", "Docs", "Mined at"}}
	for _, b := range blocks {
		data = append(data, []string{
			strconv.FormatUint(b.Number, 10),
			short(b.Hash),
			short(b.PrevHash),
			strconv.FormatUint(b.Nonce, 10),
			strconv.Itoa(len(b.Documents)),
			b.CreatedAt.Format(time.RFC3339),
		})
	}
	return data
}

func documentTable(docs []chain.Document) pterm.TableData {
	data := pterm.TableData{{"ID", "Created at", "Payload"}}
	for _, d := range docs {
		data = append(data, []string{short(d.ID), d.CreatedAt.Format(time.RFC3339), string(d.Payload)})
	}
	return data
}

func sortedDocuments(docs map[string]chain.Document) []chain.Document {
	out := make([]chain.Document, 0, len(docs))
	for _, id := range slices.Sorted(maps.Keys(docs)) {
		out = append(out, docs[id])
	}
	return out
}

func short(hash string) string {
	if len(hash) <= hashWidth {
		return hash
	}
	return hash[:hashWidth] + "…"
}
