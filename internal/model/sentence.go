package model

// Token is a single CoNLL-U row. Head and DepRel carry the gold annotation read
// from the corpus; PredHead and PredRel are filled in by a parser.
type Token struct {
	ID     int
	Form   string
	Lemma  string
	UPOS   string
	XPOS   string
	Feats  string
	Head   int // 0 attaches to the virtual root
	DepRel string
	Deps   string
	Misc   string

	PredHead int // -1 until parsed
	PredRel  string
}

// Sentence is an ordered run of tokens. Comments holds the "#" lines that
// preceded the sentence in the source file, without the leading "#".
type Sentence struct {
	Comments []string
	Tokens   []Token

	// Extra keeps multiword-range ("1-2") and empty-node ("1.1") rows
	// verbatim so they can be written back in place.
	Extra []ExtraRow
}

// ExtraRow is a CoNLL-U row the parser does not attach. It was read right
// before Tokens[Before]; Before == len(Tokens) places it after the last token.
type ExtraRow struct {
	Before int
	Line   string
}

// Len returns the number of tokens, excluding the virtual root.
func (s Sentence) Len() int {
	return len(s.Tokens)
}

// Clone returns a deep copy of the sentence.
func (s Sentence) Clone() Sentence {
	out := Sentence{Tokens: make([]Token, len(s.Tokens))}
	copy(out.Tokens, s.Tokens)
	if s.Comments != nil {
		out.Comments = make([]string, len(s.Comments))
		copy(out.Comments, s.Comments)
	}
	if s.Extra != nil {
		out.Extra = make([]ExtraRow, len(s.Extra))
		copy(out.Extra, s.Extra)
	}
	return out
}

// GoldHeads returns the gold head of every token, indexed from 1. Index 0 is
// the root and holds -1.
func (s Sentence) GoldHeads() []int {
	heads := make([]int, len(s.Tokens)+1)
	heads[0] = -1
	for i, tok := range s.Tokens {
		heads[i+1] = tok.Head
	}
	return heads
}

// CloneAll returns deep copies of all sentences.
func CloneAll(sents []Sentence) []Sentence {
	out := make([]Sentence, len(sents))
	for i, s := range sents {
		out[i] = s.Clone()
	}
	return out
}
