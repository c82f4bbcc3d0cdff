// Package parser defines the contract between the bist facade and the
// models that actually assign dependency trees, and a registry of backends.
package parser

import (
	"context"
	"errors"

	"github.com/crimson-sun/bist/internal/model"
)

// ErrTrainingUnsupported is returned by inference-only backends.
var ErrTrainingUnsupported = errors.New("parser: backend does not support training")

// Parser is a trainable dependency parser bound to one parameter bundle.
type Parser interface {
	// Train runs one pass over the sentences, updating weights in place.
	Train(ctx context.Context, sents []model.Sentence) error

	// Predict returns copies of sents with PredHead and PredRel filled in,
	// in input order. The input is not modified.
	Predict(ctx context.Context, sents []model.Sentence) ([]model.Sentence, error)

	// Save writes the trained weights to path.
	Save(path string) error

	// Load replaces the weights with those stored at path. It fails if the
	// stored weights were produced for a different configuration.
	Load(path string) error

	Close() error
}

// Settings are runtime knobs shared by all backends. They are not part of
// the persisted parameter bundle.
type Settings struct {
	Workers    int // decode goroutines; <= 0 means one
	CacheBytes int // minimum snapshot cache capacity for backends that use one
	Seed       uint64

	// LibraryPath locates the onnxruntime shared library. Empty means
	// libonnxruntime.so next to the model file.
	LibraryPath string
}
