// Package perceptron implements a first-order graph-based dependency parser:
// arcs and labels are scored by a sparse averaged perceptron and trees are
// decoded with the Eisner algorithm. Weights live in memory and are
// snapshotted to disk through fastcache on Save.
package perceptron

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/crimson-sun/bist/internal/model"
	"github.com/crimson-sun/bist/internal/parser"
	"github.com/crimson-sun/bist/internal/parser/decoder"
)

// Name is the registry name of this backend.
const Name = "perceptron"

const defaultCacheBytes = 64 << 20

func init() {
	parser.Register(Name, func(params model.Params, settings parser.Settings) (parser.Parser, error) {
		return New(params, settings)
	})
}

// meta is stored alongside the weights so that Load can reject snapshots
// trained for another configuration.
type meta struct {
	Options model.Options `json:"options"`
	Rels    []string      `json:"rels"`
	Steps   int64         `json:"steps"`
}

// Parser is the perceptron backend. Train must not run concurrently with
// any other method; Predict may be called concurrently with itself.
type Parser struct {
	params   model.Params
	settings parser.Settings
	weights  *weights
	steps    int64
	rng      *rand.Rand
	pool     *ants.Pool
}

// New creates an untrained parser for params.
func New(params model.Params, settings parser.Settings) (*Parser, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("perceptron: %w", err)
	}
	if settings.Workers <= 0 {
		settings.Workers = 1
	}
	if settings.CacheBytes <= 0 {
		settings.CacheBytes = defaultCacheBytes
	}
	pool, err := ants.NewPool(settings.Workers)
	if err != nil {
		return nil, fmt.Errorf("perceptron: create pool: %w", err)
	}
	return &Parser{
		params:   params,
		settings: settings,
		weights:  newWeights(),
		rng:      rand.New(rand.NewPCG(settings.Seed, settings.Seed^0x9e3779b97f4a7c15)),
		pool:     pool,
	}, nil
}

// Steps returns the number of sentence updates seen so far.
func (p *Parser) Steps() int64 {
	return p.steps
}

// Train runs one shuffled pass over sents. Sentences whose gold heads are
// missing or out of range are skipped.
func (p *Parser) Train(ctx context.Context, sents []model.Sentence) error {
	order := make([]int, len(sents))
	for i := range order {
		order[i] = i
	}
	p.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := sents[i]
		if !hasGoldTree(s) {
			continue
		}
		p.steps++
		p.trainSentence(s)
	}
	return nil
}

func hasGoldTree(s model.Sentence) bool {
	if s.Len() == 0 {
		return false
	}
	for _, tok := range s.Tokens {
		if tok.Head < 0 || tok.Head > s.Len() || tok.DepRel == "" {
			return false
		}
	}
	return true
}

func (p *Parser) trainSentence(s model.Sentence) {
	v := newView(s, p.params.W2I)
	gold := s.GoldHeads()

	scores := p.arcScores(v, false)
	// Cost-augmented decoding: every wrong arc gets a one point head start.
	for m := 1; m < len(gold); m++ {
		for h := range scores {
			if h != gold[m] && h != m {
				scores[h][m]++
			}
		}
	}
	pred := decoder.Eisner(scores)

	for m := 1; m < len(gold); m++ {
		if pred[m] == gold[m] {
			continue
		}
		p.update(v.arcFeatures(gold[m], m), 1)
		p.update(v.arcFeatures(pred[m], m), -1)
	}

	for m := 1; m < len(gold); m++ {
		lctx := v.labelContext(gold[m], m)
		best := p.bestLabel(lctx, false)
		want := s.Tokens[m-1].DepRel
		if best == want {
			continue
		}
		p.update(labelFeatures(lctx, want), 1)
		if best != "" {
			p.update(labelFeatures(lctx, best), -1)
		}
	}
}

func (p *Parser) update(keys [][]byte, delta float64) {
	for _, k := range keys {
		p.weights.add(k, delta, p.steps)
	}
}

// arcScores scores every head/modifier pair; row 0 is the root.
func (p *Parser) arcScores(v view, averaged bool) [][]float64 {
	n := v.len()
	scores := make([][]float64, n+1)
	for h := range scores {
		scores[h] = make([]float64, n+1)
		for m := 1; m <= n; m++ {
			if h == m {
				continue
			}
			scores[h][m] = p.weights.score(v.arcFeatures(h, m), averaged, p.steps)
		}
	}
	return scores
}

func (p *Parser) bestLabel(lctx []string, averaged bool) string {
	best, bestScore := "", 0.0
	for i, rel := range p.params.Rels {
		s := p.weights.score(labelFeatures(lctx, rel), averaged, p.steps)
		if i == 0 || s > bestScore {
			best, bestScore = rel, s
		}
	}
	return best
}

func (p *Parser) parse(s model.Sentence) model.Sentence {
	out := s.Clone()
	if out.Len() == 0 {
		return out
	}
	v := newView(out, p.params.W2I)
	heads := decoder.Eisner(p.arcScores(v, true))
	for m := 1; m < len(heads); m++ {
		tok := &out.Tokens[m-1]
		tok.PredHead = heads[m]
		tok.PredRel = p.bestLabel(v.labelContext(heads[m], m), true)
	}
	return out
}

// Predict parses sents on the worker pool. Output order matches input order.
func (p *Parser) Predict(ctx context.Context, sents []model.Sentence) ([]model.Sentence, error) {
	out := make([]model.Sentence, len(sents))
	var wg sync.WaitGroup
	for i := range sents {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			out[i] = p.parse(sents[i])
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("perceptron: submit: %w", err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save snapshots the weights into the directory at path.
func (p *Parser) Save(path string) error {
	data, err := json.Marshal(meta{Options: p.params.Options, Rels: p.params.Rels, Steps: p.steps})
	if err != nil {
		return fmt.Errorf("perceptron: encode meta: %w", err)
	}
	return p.weights.snapshot(path, p.settings.CacheBytes, p.settings.Workers, data)
}

// Load replaces the weights with the snapshot at path.
func (p *Parser) Load(path string) error {
	w, raw, err := loadWeights(path)
	if err != nil {
		return err
	}
	var m meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("perceptron: decode meta: %w", err)
	}
	if m.Options != p.params.Options {
		return fmt.Errorf("perceptron: weights trained with %+v, params declare %+v", m.Options, p.params.Options)
	}
	if !slices.Equal(m.Rels, p.params.Rels) {
		return fmt.Errorf("perceptron: weights trained for %d relations, params declare %d", len(m.Rels), len(p.params.Rels))
	}

	p.weights.reset()
	p.weights = w
	p.steps = m.Steps
	return nil
}

// Close releases the worker pool and the weight store.
func (p *Parser) Close() error {
	p.pool.Release()
	p.weights.reset()
	return nil
}
