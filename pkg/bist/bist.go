package bist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/crimson-sun/bist/internal/conll"
	"github.com/crimson-sun/bist/internal/eval"
	"github.com/crimson-sun/bist/internal/model"
	"github.com/crimson-sun/bist/internal/parser"
	_ "github.com/crimson-sun/bist/internal/parser/onnx"
	"github.com/crimson-sun/bist/internal/vocab"
)

// Model is a dependency parser facade. It validates arguments, delegates
// training and inference to a parser backend, and persists the parameter
// bundle as params.json next to the model weights.
// Safe for concurrent use.
type Model struct {
	mu        sync.RWMutex
	opts      model.Options
	backend   parser.Constructor
	name      string
	settings  parser.Settings
	evaluator Evaluator
	logger    *slog.Logger

	// Set together by Fit and Load; nil while the model is only configured.
	params *model.Params
	parser parser.Parser
}

// New creates a configured Model. It does not train or load anything.
func New(opts ...Option) (*Model, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := o.model.Validate(); err != nil {
		return nil, fmt.Errorf("bist: %w: %v", ErrInvalidConfiguration, err)
	}
	if o.workers <= 0 {
		return nil, fmt.Errorf("bist: %w: workers must be positive, got %d", ErrInvalidConfiguration, o.workers)
	}
	if o.cacheBytes < 0 {
		return nil, fmt.Errorf("bist: %w: cache bytes must not be negative, got %d", ErrInvalidConfiguration, o.cacheBytes)
	}
	ctor, err := parser.Get(o.backend)
	if err != nil {
		return nil, fmt.Errorf("bist: %w: %v (have %v)", ErrInvalidConfiguration, err, parser.Backends())
	}
	if o.evaluator == nil {
		o.evaluator = eval.NewNative(false)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Model{
		opts:    o.model,
		backend: ctor,
		name:    o.backend,
		settings: parser.Settings{
			Workers:     o.workers,
			CacheBytes:  o.cacheBytes,
			Seed:        o.seed,
			LibraryPath: o.libraryPath,
		},
		evaluator: o.evaluator,
		logger:    o.logger,
	}, nil
}

// Fit extracts the vocabulary of dataset, builds a fresh parser and trains
// it for the configured number of epochs. With WithDev, every epoch ends by
// parsing the dev corpus to <dev>_epoch_N_pred and evaluating it; an
// evaluation failure is logged and training continues.
//
// On error the previous state of the Model is kept.
func (m *Model) Fit(ctx context.Context, dataset string, opts ...FitOption) error {
	fo := fitOptions{epochs: DefaultEpochs}
	for _, opt := range opts {
		opt(&fo)
	}
	if fo.epochs < 0 {
		return fmt.Errorf("bist: %w: epochs must not be negative, got %d", ErrInvalidConfiguration, fo.epochs)
	}
	if !parser.Trainable(m.name) {
		return fmt.Errorf("bist: %w: backend %q cannot be trained, Load a model instead", ErrInvalidConfiguration, m.name)
	}
	if err := requireFile(dataset); err != nil {
		return err
	}
	var dev []model.Sentence
	if fo.dev != "" {
		if err := requireFile(fo.dev); err != nil {
			return err
		}
		var err error
		if dev, err = conll.ReadFile(fo.dev); err != nil {
			return fmt.Errorf("bist: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("running fit", "dataset", dataset, "dev", fo.dev, "epochs", fo.epochs)

	v, sents, err := vocab.ExtractFile(dataset)
	if err != nil {
		return fmt.Errorf("bist: %w", err)
	}
	params := v.Params(m.opts)
	p, err := m.backend(params, m.settings)
	if err != nil {
		return fmt.Errorf("bist: %w", err)
	}
	m.logger.Debug("extracted vocabulary", "words", len(params.W2I), "pos", len(params.POS), "rels", len(params.Rels))

	for epoch := 1; epoch <= fo.epochs; epoch++ {
		m.logger.Info("starting epoch", "epoch", epoch)
		if err := p.Train(ctx, sents); err != nil {
			p.Close()
			return fmt.Errorf("bist: epoch %d: %w", epoch, err)
		}
		if dev == nil {
			continue
		}
		if err := m.evaluateDev(ctx, p, fo.dev, dev, epoch); err != nil {
			p.Close()
			return err
		}
	}

	m.replace(&params, p)
	return nil
}

func (m *Model) evaluateDev(ctx context.Context, p parser.Parser, devPath string, dev []model.Sentence, epoch int) error {
	pred, err := p.Predict(ctx, dev)
	if err != nil {
		return fmt.Errorf("bist: epoch %d: predict dev: %w", epoch, err)
	}
	out := epochPredPath(devPath, epoch)
	if err := conll.WriteFile(out, pred, conll.Predicted); err != nil {
		return fmt.Errorf("bist: %w: %w", ErrPersistence, err)
	}
	score, err := m.evaluator.Evaluate(ctx, devPath, out)
	if err != nil {
		m.logger.Warn("dev evaluation failed", "epoch", epoch, "pred", out, "error", err)
		return nil
	}
	m.logger.Info("dev evaluation", "epoch", epoch, "uas", score.UAS, "las", score.LAS, "tokens", score.Tokens)
	return nil
}

// Predict parses every sentence of dataset and returns them in file order.
// With evaluate, the result is also written to <dataset>_pred and scored
// against the gold columns of dataset; evaluation errors are returned.
func (m *Model) Predict(ctx context.Context, dataset string, evaluate bool) ([]Sentence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.parser == nil {
		return nil, fmt.Errorf("bist: %w", ErrModelNotReady)
	}
	if err := requireFile(dataset); err != nil {
		return nil, err
	}
	m.logger.Info("running predict", "dataset", dataset, "evaluate", evaluate)

	sents, err := conll.ReadFile(dataset)
	if err != nil {
		return nil, fmt.Errorf("bist: %w", err)
	}
	pred, err := m.parser.Predict(ctx, sents)
	if err != nil {
		return nil, fmt.Errorf("bist: %w", err)
	}
	if !evaluate {
		return pred, nil
	}

	out := predPath(dataset)
	if err := conll.WriteFile(out, pred, conll.Predicted); err != nil {
		return nil, fmt.Errorf("bist: %w: %w", ErrPersistence, err)
	}
	score, err := m.evaluator.Evaluate(ctx, dataset, out)
	if err != nil {
		return nil, fmt.Errorf("bist: evaluate %s: %w", out, err)
	}
	m.logger.Info("evaluation", "dataset", dataset, "uas", score.UAS, "las", score.LAS, "tokens", score.Tokens)
	return pred, nil
}

// PredictConll parses in-memory sentences. The result holds new sentences
// with predicted heads and relations in input order; sents is not modified.
func (m *Model) PredictConll(ctx context.Context, sents []Sentence) ([]Sentence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.parser == nil {
		return nil, fmt.Errorf("bist: %w", ErrModelNotReady)
	}
	if len(sents) == 0 {
		return []Sentence{}, nil
	}
	pred, err := m.parser.Predict(ctx, sents)
	if err != nil {
		return nil, fmt.Errorf("bist: %w", err)
	}
	return pred, nil
}

// Load reads params.json from the directory of path, builds a parser from
// it and loads the weights stored at path. On error the previous state of
// the Model is kept.
func (m *Model) Load(path string) error {
	if err := requireFile(path); err != nil {
		return err
	}

	data, err := os.ReadFile(paramsPath(path))
	if err != nil {
		return fmt.Errorf("bist: %w: %w", ErrPersistence, err)
	}
	var params model.Params
	if err := json.Unmarshal(data, &params); err != nil {
		return fmt.Errorf("bist: %w: decode %s: %w", ErrPersistence, paramsPath(path), err)
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("bist: %w: %w", ErrPersistence, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.backend(params, m.settings)
	if err != nil {
		return fmt.Errorf("bist: %w: %w", ErrPersistence, err)
	}
	if err := p.Load(path); err != nil {
		p.Close()
		return fmt.Errorf("bist: %w: %w", ErrPersistence, err)
	}

	m.logger.Info("loaded model", "path", path, "rels", len(params.Rels))
	m.replace(&params, p)
	return nil
}

// Save writes params.json into the directory of path, then the model
// weights at path. The directory must already exist.
func (m *Model) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.parser == nil {
		return fmt.Errorf("bist: %w", ErrModelNotReady)
	}
	pp := paramsPath(path)
	if fi, err := os.Stat(filepath.Dir(path)); err != nil || !fi.IsDir() {
		return fmt.Errorf("bist: %w: directory of %s does not exist", ErrPersistence, path)
	}

	data, err := json.MarshalIndent(m.params, "", "  ")
	if err != nil {
		return fmt.Errorf("bist: %w: %w", ErrPersistence, err)
	}
	if err := os.WriteFile(pp, data, 0644); err != nil {
		return fmt.Errorf("bist: %w: %w", ErrPersistence, err)
	}
	if err := m.parser.Save(path); err != nil {
		return fmt.Errorf("bist: %w: %w", ErrPersistence, err)
	}
	return nil
}

// Ready reports whether Fit or Load has completed.
func (m *Model) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parser != nil
}

// Options returns the configuration the Model was constructed with.
func (m *Model) Options() Options {
	return m.opts
}

// Params returns a copy of the current parameter bundle. ok is false until
// the Model is ready.
func (m *Model) Params() (params Params, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.params == nil {
		return Params{}, false
	}
	return Params{
		Words:   maps.Clone(m.params.Words),
		W2I:     maps.Clone(m.params.W2I),
		POS:     slices.Clone(m.params.POS),
		Rels:    slices.Clone(m.params.Rels),
		Options: m.params.Options,
	}, true
}

// Close releases the parser. The Model returns to its configured state.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parser == nil {
		return nil
	}
	err := m.parser.Close()
	m.params, m.parser = nil, nil
	return err
}

// replace swaps in a new parser. Callers hold the write lock.
func (m *Model) replace(params *model.Params, p parser.Parser) {
	if m.parser != nil {
		if err := m.parser.Close(); err != nil {
			m.logger.Warn("closing previous parser", "error", err)
		}
	}
	m.params, m.parser = params, p
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("bist: %w: %s", ErrDatasetNotFound, path)
		}
		return fmt.Errorf("bist: %w", err)
	}
	return nil
}
