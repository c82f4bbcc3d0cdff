// Package vocab extracts the word, part-of-speech and relation inventories a
// parser is built from.
package vocab

import (
	"fmt"
	"sort"

	"github.com/crimson-sun/bist/internal/conll"
	"github.com/crimson-sun/bist/internal/model"
)

// Reserved entries at the head of every word index.
const (
	PadWord     = "*PAD*"
	UnknownWord = "*UNK*"
	RootWord    = "*root*"

	RootPOS = "ROOT-POS"
)

// Reserved indices, matching the order of the reserved words.
const (
	PadID = iota
	UnknownID
	RootID
)

// Vocabulary holds the inventories extracted from a training corpus.
type Vocabulary struct {
	Words map[string]int // normalized form -> corpus frequency
	W2I   map[string]int // normalized form -> index, reserved words first
	POS   []string       // RootPOS first, then sorted tags
	Rels  []string       // sorted relation labels
}

// Extract builds a Vocabulary from parsed sentences. Index assignment is
// deterministic: reserved words, then forms in lexical order.
func Extract(sents []model.Sentence) Vocabulary {
	words := make(map[string]int)
	posSet := make(map[string]bool)
	relSet := make(map[string]bool)

	for _, s := range sents {
		for _, tok := range s.Tokens {
			words[Normalize(tok.Form)]++
			if p := POSOf(tok); p != "" {
				posSet[p] = true
			}
			if tok.DepRel != "" {
				relSet[tok.DepRel] = true
			}
		}
	}

	forms := make([]string, 0, len(words))
	for w := range words {
		forms = append(forms, w)
	}
	sort.Strings(forms)

	w2i := make(map[string]int, len(forms)+3)
	for i, w := range []string{PadWord, UnknownWord, RootWord} {
		w2i[w] = i
	}
	for _, w := range forms {
		if _, ok := w2i[w]; !ok {
			w2i[w] = len(w2i)
		}
	}

	return Vocabulary{
		Words: words,
		W2I:   w2i,
		POS:   append([]string{RootPOS}, sortedKeys(posSet)...),
		Rels:  sortedKeys(relSet),
	}
}

// ExtractFile reads a CoNLL-U corpus and extracts its Vocabulary along with
// the sentences it read.
func ExtractFile(path string) (Vocabulary, []model.Sentence, error) {
	sents, err := conll.ReadFile(path)
	if err != nil {
		return Vocabulary{}, nil, fmt.Errorf("vocab: %w", err)
	}
	if len(sents) == 0 {
		return Vocabulary{}, nil, fmt.Errorf("vocab: no sentences in %s", path)
	}
	return Extract(sents), sents, nil
}

// Params combines the vocabulary with an architecture into a parameter bundle.
func (v Vocabulary) Params(opts model.Options) model.Params {
	return model.Params{
		Words:   v.Words,
		W2I:     v.W2I,
		POS:     v.POS,
		Rels:    v.Rels,
		Options: opts,
	}
}

// Lookup returns the index of a surface form, or UnknownID if it was never
// seen.
func Lookup(w2i map[string]int, form string) int {
	if id, ok := w2i[Normalize(form)]; ok {
		return id
	}
	return UnknownID
}

// POSOf returns the tag a parser reads for tok: the universal tag, falling
// back to the language-specific one.
func POSOf(tok model.Token) string {
	if tok.UPOS != "" && tok.UPOS != "_" {
		return tok.UPOS
	}
	if tok.XPOS != "_" {
		return tok.XPOS
	}
	return ""
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
