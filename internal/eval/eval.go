// Package eval scores predicted dependency trees against gold annotation.
package eval

import (
	"context"
	"fmt"
	"os"

	"github.com/crimson-sun/bist/internal/conll"
	"github.com/crimson-sun/bist/internal/model"
)

// ReportSuffix is appended to the prediction path to name the report file.
const ReportSuffix = ".txt"

// Evaluator compares a gold CoNLL-U file with a predicted one.
type Evaluator interface {
	Evaluate(ctx context.Context, goldPath, predPath string) (Score, error)
}

// Score summarizes an evaluation run. Attachment scores are percentages.
type Score struct {
	Sentences int
	Tokens    int
	UAS       float64
	LAS       float64
	Report    string
}

func (s Score) String() string {
	return fmt.Sprintf("LAS: %.2f\nUAS: %.2f\nTokens: %d\nSentences: %d\n", s.LAS, s.UAS, s.Tokens, s.Sentences)
}

// Counts accumulates attachment decisions.
type Counts struct {
	Tokens    int
	Unlabeled int // correct head
	Labeled   int // correct head and relation
	Sentences int
}

// Add scores one predicted sentence against its gold counterpart. Tokens
// are matched by position.
func (c *Counts) Add(gold, pred model.Sentence, excludePunct bool) error {
	if gold.Len() != pred.Len() {
		return fmt.Errorf("eval: sentence %d: gold has %d tokens, prediction has %d",
			c.Sentences+1, gold.Len(), pred.Len())
	}
	for i, g := range gold.Tokens {
		if excludePunct && g.UPOS == "PUNCT" {
			continue
		}
		p := pred.Tokens[i]
		c.Tokens++
		if g.Head == p.Head {
			c.Unlabeled++
			if g.DepRel == p.DepRel {
				c.Labeled++
			}
		}
	}
	c.Sentences++
	return nil
}

// Score converts the counts into percentages.
func (c Counts) Score() Score {
	s := Score{Sentences: c.Sentences, Tokens: c.Tokens}
	if c.Tokens > 0 {
		s.UAS = 100 * float64(c.Unlabeled) / float64(c.Tokens)
		s.LAS = 100 * float64(c.Labeled) / float64(c.Tokens)
	}
	return s
}

// Native computes UAS and LAS in-process and writes a short report next to
// the prediction file.
type Native struct {
	ExcludePunct bool
}

// NewNative creates a Native evaluator.
func NewNative(excludePunct bool) *Native {
	return &Native{ExcludePunct: excludePunct}
}

// Evaluate reads both files and scores every sentence pair. The prediction
// file is read with its head and relation columns as written by a parser.
func (n *Native) Evaluate(ctx context.Context, goldPath, predPath string) (Score, error) {
	gold, err := conll.ReadFile(goldPath)
	if err != nil {
		return Score{}, fmt.Errorf("eval: gold: %w", err)
	}
	pred, err := conll.ReadFile(predPath)
	if err != nil {
		return Score{}, fmt.Errorf("eval: prediction: %w", err)
	}
	if len(gold) != len(pred) {
		return Score{}, fmt.Errorf("eval: gold has %d sentences, prediction has %d", len(gold), len(pred))
	}

	var c Counts
	for i := range gold {
		if err := ctx.Err(); err != nil {
			return Score{}, err
		}
		if err := c.Add(gold[i], pred[i], n.ExcludePunct); err != nil {
			return Score{}, err
		}
	}

	score := c.Score()
	score.Report = score.String()
	if err := os.WriteFile(predPath+ReportSuffix, []byte(score.Report), 0644); err != nil {
		return score, fmt.Errorf("eval: write report: %w", err)
	}
	return score, nil
}

// Compare scores in-memory predictions against gold sentences without
// touching disk. Predictions are read from PredHead and PredRel.
func Compare(gold, pred []model.Sentence, excludePunct bool) (Score, error) {
	if len(gold) != len(pred) {
		return Score{}, fmt.Errorf("eval: gold has %d sentences, prediction has %d", len(gold), len(pred))
	}
	var c Counts
	for i := range gold {
		if err := c.Add(gold[i], predictedView(pred[i]), excludePunct); err != nil {
			return Score{}, err
		}
	}
	return c.Score(), nil
}

func predictedView(s model.Sentence) model.Sentence {
	out := s.Clone()
	for i := range out.Tokens {
		out.Tokens[i].Head = out.Tokens[i].PredHead
		out.Tokens[i].DepRel = out.Tokens[i].PredRel
	}
	return out
}
