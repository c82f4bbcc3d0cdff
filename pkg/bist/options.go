package bist

import (
	"log/slog"

	"github.com/klauspost/cpuid/v2"

	"github.com/crimson-sun/bist/internal/model"
	"github.com/crimson-sun/bist/internal/parser/perceptron"
)

// DefaultEpochs is the number of training passes Fit runs without WithEpochs.
const DefaultEpochs = 10

type options struct {
	model       model.Options
	backend     string
	evaluator   Evaluator
	logger      *slog.Logger
	workers     int
	cacheBytes  int
	libraryPath string
	seed        uint64
}

// Option configures a Model.
type Option func(*options)

// WithActivation sets the activation function: "tanh", "sigmoid", "relu"
// or "tanh3". Default: "tanh".
func WithActivation(name string) Option {
	return func(o *options) {
		o.model.Activation = name
	}
}

// WithLSTMLayers sets the number of LSTM layers. Default: 2.
func WithLSTMLayers(n int) Option {
	return func(o *options) {
		o.model.LSTMLayers = n
	}
}

// WithLSTMDims sets the LSTM hidden dimension. Default: 125.
func WithLSTMDims(n int) Option {
	return func(o *options) {
		o.model.LSTMDims = n
	}
}

// WithPOSDims sets the POS embedding dimension. Default: 25.
func WithPOSDims(n int) Option {
	return func(o *options) {
		o.model.POSDims = n
	}
}

// WithBackend selects the parser backend by registered name: "perceptron"
// (trainable, the default) or "onnx" (inference only, Load a .onnx graph).
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithEvaluator replaces the native scorer used after dev passes and by
// Predict with evaluate set.
func WithEvaluator(e Evaluator) Option {
	return func(o *options) {
		o.evaluator = e
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithWorkers sets how many sentences are decoded concurrently.
// Default: the number of logical CPU cores.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithCacheBytes sets the minimum capacity of the fastcache snapshot the
// perceptron backend writes on Save. The snapshot grows past it as needed.
func WithCacheBytes(n int) Option {
	return func(o *options) {
		o.cacheBytes = n
	}
}

// WithORTLibrary sets the path of the onnxruntime shared library used by
// the onnx backend.
func WithORTLibrary(path string) Option {
	return func(o *options) {
		o.libraryPath = path
	}
}

// WithSeed fixes the training shuffle seed.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

func defaultOptions() options {
	workers := cpuid.CPU.LogicalCores
	if workers <= 0 {
		workers = 1
	}
	return options{
		model:   model.DefaultOptions(),
		backend: perceptron.Name,
		workers: workers,
		seed:    1,
	}
}

type fitOptions struct {
	epochs int
	dev    string
}

// FitOption configures a single Fit call.
type FitOption func(*fitOptions)

// WithEpochs sets the number of training passes. Zero builds the parser
// without training it.
func WithEpochs(n int) FitOption {
	return func(o *fitOptions) {
		o.epochs = n
	}
}

// WithDev sets a held-out CoNLL-U file. After every epoch the dev corpus is
// parsed, written next to it as <name>_epoch_N_pred<ext>, and evaluated.
func WithDev(path string) FitOption {
	return func(o *fitOptions) {
		o.dev = path
	}
}
