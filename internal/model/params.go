package model

import "fmt"

// Supported activation functions.
var Activations = []string{"tanh", "sigmoid", "relu", "tanh3"}

// Options is the immutable architecture configuration of a parser.
type Options struct {
	Activation string `json:"activation" yaml:"activation"`
	LSTMLayers int    `json:"lstm_layers" yaml:"lstm_layers"`
	LSTMDims   int    `json:"lstm_dims" yaml:"lstm_dims"`
	POSDims    int    `json:"pos_dims" yaml:"pos_dims"`
}

// DefaultOptions returns the stock architecture: tanh, 2 layers of 125 units
// and 25-dimensional POS embeddings.
func DefaultOptions() Options {
	return Options{
		Activation: "tanh",
		LSTMLayers: 2,
		LSTMDims:   125,
		POSDims:    25,
	}
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	known := false
	for _, a := range Activations {
		if o.Activation == a {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown activation %q (want one of %v)", o.Activation, Activations)
	}
	if o.LSTMLayers <= 0 {
		return fmt.Errorf("lstm layers must be positive, got %d", o.LSTMLayers)
	}
	if o.LSTMDims <= 0 {
		return fmt.Errorf("lstm dims must be positive, got %d", o.LSTMDims)
	}
	if o.POSDims <= 0 {
		return fmt.Errorf("pos dims must be positive, got %d", o.POSDims)
	}
	return nil
}

// Params is the bundle a parser is built from: the vocabulary and tag
// inventories extracted from the training corpus plus the architecture.
// It is persisted as params.json next to the model weights.
type Params struct {
	Words   map[string]int `json:"words"`
	W2I     map[string]int `json:"w2i"`
	POS     []string       `json:"pos"`
	Rels    []string       `json:"rels"`
	Options Options        `json:"options"`
}

// Validate checks that the bundle can back a parser.
func (p Params) Validate() error {
	if len(p.W2I) == 0 {
		return fmt.Errorf("params: empty word index")
	}
	if len(p.Rels) == 0 {
		return fmt.Errorf("params: empty relation set")
	}
	if err := p.Options.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}
