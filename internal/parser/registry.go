package parser

import (
	"fmt"
	"sort"
	"sync"

	"github.com/crimson-sun/bist/internal/model"
)

// Constructor builds a Parser for a parameter bundle.
type Constructor func(params model.Params, settings Settings) (Parser, error)

type backend struct {
	ctor      Constructor
	trainable bool
}

var (
	mu       sync.RWMutex
	registry = map[string]backend{}
)

// Register adds a trainable backend constructor under the given name.
func Register(name string, ctor Constructor) {
	register(name, backend{ctor: ctor, trainable: true})
}

// RegisterInferenceOnly adds a backend whose parsers can only Load weights
// produced elsewhere.
func RegisterInferenceOnly(name string, ctor Constructor) {
	register(name, backend{ctor: ctor})
}

func register(name string, b backend) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = b
}

// Get returns the constructor registered under name.
func Get(name string) (Constructor, error) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown parser backend: %s", name)
	}
	return b.ctor, nil
}

// Trainable reports whether the backend registered under name supports
// Train. Unknown names are not trainable.
func Trainable(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry[name].trainable
}

// Backends returns the names of all registered backends, sorted.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
