// Package testdata embeds a small hand-annotated CoNLL-U corpus used by tests
// across the module.
package testdata

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed train.conllu
var Train []byte

//go:embed dev.conllu
var Dev []byte

// Sentence counts of the embedded files.
const (
	TrainSentences = 6
	DevSentences   = 3
)

// WriteFiles writes the embedded corpora into dir as train.conllu and
// dev.conllu and returns their paths.
func WriteFiles(dir string) (train, dev string, err error) {
	train = filepath.Join(dir, "train.conllu")
	if err := os.WriteFile(train, Train, 0644); err != nil {
		return "", "", fmt.Errorf("write train corpus: %w", err)
	}
	dev = filepath.Join(dir, "dev.conllu")
	if err := os.WriteFile(dev, Dev, 0644); err != nil {
		return "", "", fmt.Errorf("write dev corpus: %w", err)
	}
	return train, dev, nil
}
