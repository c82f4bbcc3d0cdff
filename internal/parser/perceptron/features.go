package perceptron

import (
	"strconv"

	"github.com/crimson-sun/bist/internal/model"
	"github.com/crimson-sun/bist/internal/vocab"
)

const (
	boundary     = "*B*"
	maxBetween   = 10
	distanceCaps = 5
)

// view is a sentence as the feature extractors see it: normalized forms and
// tags, with the virtual root at position 0.
type view struct {
	forms []string
	tags  []string
}

func newView(s model.Sentence, w2i map[string]int) view {
	n := s.Len()
	v := view{
		forms: make([]string, n+1),
		tags:  make([]string, n+1),
	}
	v.forms[0] = vocab.RootWord
	v.tags[0] = vocab.RootPOS
	for i, tok := range s.Tokens {
		form := vocab.Normalize(tok.Form)
		if _, ok := w2i[form]; !ok {
			form = vocab.UnknownWord
		}
		v.forms[i+1] = form
		v.tags[i+1] = vocab.POSOf(tok)
	}
	return v
}

func (v view) len() int { return len(v.forms) - 1 }

func (v view) tag(i int) string {
	if i < 0 || i >= len(v.tags) {
		return boundary
	}
	return v.tags[i]
}

func direction(h, m int) string {
	if h < m {
		return "R"
	}
	return "L"
}

func distance(h, m int) string {
	d := h - m
	if d < 0 {
		d = -d
	}
	switch {
	case d >= 10:
		return "10"
	case d > distanceCaps:
		return "6"
	default:
		return strconv.Itoa(d)
	}
}

// arcFeatures returns the first-order features of h governing m.
func (v view) arcFeatures(h, m int) [][]byte {
	hw, hp := v.forms[h], v.tags[h]
	mw, mp := v.forms[m], v.tags[m]
	dir, dist := direction(h, m), distance(h, m)
	dd := dir + dist

	feats := []string{
		"hw=" + hw,
		"hp=" + hp,
		"hwp=" + hw + "|" + hp,
		"mw=" + mw,
		"mp=" + mp,
		"mwp=" + mw + "|" + mp,
		"hw.mw=" + hw + "|" + mw,
		"hp.mp=" + hp + "|" + mp,
		"hp.mp.dd=" + hp + "|" + mp + "|" + dd,
		"hw.mw.dd=" + hw + "|" + mw + "|" + dd,
		"hwp.mp=" + hw + "|" + hp + "|" + mp,
		"hp.mwp=" + hp + "|" + mw + "|" + mp,
		"hwp.mw=" + hw + "|" + hp + "|" + mw,
		"hw.mwp=" + hw + "|" + mw + "|" + mp,
		"dd=" + dd,
		"hp+1.mp-1=" + hp + "|" + v.tag(h+1) + "|" + v.tag(m-1) + "|" + mp,
		"hp-1.mp-1=" + v.tag(h-1) + "|" + hp + "|" + v.tag(m-1) + "|" + mp,
		"hp+1.mp+1=" + hp + "|" + v.tag(h+1) + "|" + mp + "|" + v.tag(m+1),
		"hp-1.mp+1=" + v.tag(h-1) + "|" + hp + "|" + mp + "|" + v.tag(m+1),
	}

	lo, hi := h, m
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi-lo <= maxBetween {
		for b := lo + 1; b < hi; b++ {
			feats = append(feats, "hp.bp.mp="+hp+"|"+v.tags[b]+"|"+mp)
		}
	}

	return toKeys("a:", feats)
}

// labelContext returns the features shared by every candidate relation of
// the arc h -> m; labelFeatures conjoins them with a relation.
func (v view) labelContext(h, m int) []string {
	hw, hp := v.forms[h], v.tags[h]
	mw, mp := v.forms[m], v.tags[m]
	dd := direction(h, m) + distance(h, m)
	return []string{
		"bias",
		"hp.mp.dd=" + hp + "|" + mp + "|" + dd,
		"hw.mp=" + hw + "|" + mp,
		"hp.mw=" + hp + "|" + mw,
		"mw=" + mw,
		"mp=" + mp,
		"hw=" + hw,
		"dd=" + dd,
		"mctx=" + v.tag(m-1) + "|" + mp + "|" + v.tag(m+1),
	}
}

func labelFeatures(ctx []string, rel string) [][]byte {
	return toKeys("l:"+rel+":", ctx)
}

func toKeys(prefix string, feats []string) [][]byte {
	keys := make([][]byte, len(feats))
	for i, f := range feats {
		k := make([]byte, 0, len(prefix)+len(f))
		k = append(k, prefix...)
		k = append(k, f...)
		keys[i] = k
	}
	return keys
}
