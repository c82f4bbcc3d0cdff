// Package onnx is an inference-only parser backend that runs an exported
// arc/relation scorer through ONNX Runtime and decodes trees with Eisner.
package onnx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/crimson-sun/bist/internal/model"
	"github.com/crimson-sun/bist/internal/parser"
	"github.com/crimson-sun/bist/internal/parser/decoder"
	"github.com/crimson-sun/bist/internal/vocab"
)

// Name is the registry name of this backend.
const Name = "onnx"

func init() {
	parser.RegisterInferenceOnly(Name, func(params model.Params, settings parser.Settings) (parser.Parser, error) {
		return New(params, settings)
	})
}

// Parser scores sentences with an ONNX graph. It cannot be trained; weights
// come from Load. Predict may run concurrently with itself; Load and Close
// may not.
type Parser struct {
	params    model.Params
	settings  parser.Settings
	tagIndex  map[string]int64
	sess      *session
	modelPath string
}

// New creates a Parser for params. A graph must be loaded before Predict.
func New(params model.Params, settings parser.Settings) (*Parser, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	tags := make(map[string]int64, len(params.POS))
	for i, t := range params.POS {
		tags[t] = int64(i)
	}
	return &Parser{params: params, settings: settings, tagIndex: tags}, nil
}

// Train always fails: the graph is trained outside this module.
func (p *Parser) Train(context.Context, []model.Sentence) error {
	return parser.ErrTrainingUnsupported
}

// Load opens the graph at path, replacing any previously loaded one.
func (p *Parser) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("onnx: %w", err)
	}
	sess, err := newSession(path, p.settings.LibraryPath, len(p.params.Rels))
	if err != nil {
		return err
	}
	if p.sess != nil {
		p.sess.close()
	}
	p.sess = sess
	p.modelPath = path
	return nil
}

// Save copies the loaded graph to path.
func (p *Parser) Save(path string) error {
	if p.sess == nil {
		return fmt.Errorf("onnx: no model loaded")
	}
	src, err := filepath.Abs(p.modelPath)
	if err != nil {
		return fmt.Errorf("onnx: %w", err)
	}
	dst, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("onnx: %w", err)
	}
	if src == dst {
		return nil
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("onnx: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("onnx: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("onnx: copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("onnx: %w", err)
	}
	return nil
}

// Predict parses every sentence in order.
func (p *Parser) Predict(ctx context.Context, sents []model.Sentence) ([]model.Sentence, error) {
	if p.sess == nil {
		return nil, fmt.Errorf("onnx: no model loaded")
	}
	out := make([]model.Sentence, len(sents))
	for i, s := range sents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parsed, err := p.parse(s)
		if err != nil {
			return nil, fmt.Errorf("onnx: sentence %d: %w", i+1, err)
		}
		out[i] = parsed
	}
	return out, nil
}

func (p *Parser) parse(s model.Sentence) (model.Sentence, error) {
	out := s.Clone()
	if out.Len() == 0 {
		return out, nil
	}
	words, tags := p.encode(out)
	arcs, rels, err := p.sess.infer(words, tags)
	if err != nil {
		return model.Sentence{}, err
	}

	n := len(words)
	scores := make([][]float64, n)
	for h := range scores {
		scores[h] = make([]float64, n)
		for m := range scores[h] {
			scores[h][m] = float64(arcs[h*n+m])
		}
	}
	heads := decoder.Eisner(scores)

	numRels := len(p.params.Rels)
	for m := 1; m < n; m++ {
		off := (heads[m]*n + m) * numRels
		out.Tokens[m-1].PredHead = heads[m]
		out.Tokens[m-1].PredRel = p.params.Rels[argmax(rels[off:off+numRels])]
	}
	return out, nil
}

// encode maps a sentence to word and tag ids with the root at position 0.
// Unknown tags map to len(POS).
func (p *Parser) encode(s model.Sentence) (words, tags []int64) {
	words = make([]int64, s.Len()+1)
	tags = make([]int64, s.Len()+1)
	words[0] = vocab.RootID
	tags[0] = p.tagIndex[vocab.RootPOS]
	for i, tok := range s.Tokens {
		words[i+1] = int64(vocab.Lookup(p.params.W2I, tok.Form))
		id, ok := p.tagIndex[vocab.POSOf(tok)]
		if !ok {
			id = int64(len(p.params.POS))
		}
		tags[i+1] = id
	}
	return words, tags
}

func argmax(x []float32) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}

// Close releases ONNX Runtime resources.
func (p *Parser) Close() error {
	if p.sess != nil {
		err := p.sess.close()
		p.sess = nil
		return err
	}
	return nil
}
