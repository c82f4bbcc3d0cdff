package parser

import (
	"context"
	"testing"

	"github.com/crimson-sun/bist/internal/model"
)

type stubParser struct{}

func (stubParser) Train(context.Context, []model.Sentence) error { return nil }
func (stubParser) Predict(_ context.Context, s []model.Sentence) ([]model.Sentence, error) {
	return model.CloneAll(s), nil
}
func (stubParser) Save(string) error { return nil }
func (stubParser) Load(string) error { return nil }
func (stubParser) Close() error      { return nil }

func TestRegisterAndGet(t *testing.T) {
	Register("stub", func(model.Params, Settings) (Parser, error) { return stubParser{}, nil })

	ctor, err := Get("stub")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	p, err := ctor(model.Params{}, Settings{})
	if err != nil || p == nil {
		t.Fatalf("constructor returned %v, %v", p, err)
	}

	found := false
	for _, name := range Backends() {
		if name == "stub" {
			found = true
		}
	}
	if !found {
		t.Errorf("Backends() = %v, missing stub", Backends())
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Get("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestTrainable(t *testing.T) {
	ctor := func(model.Params, Settings) (Parser, error) { return stubParser{}, nil }
	Register("stub-train", ctor)
	RegisterInferenceOnly("stub-infer", ctor)

	tests := []struct {
		name string
		want bool
	}{
		{"stub-train", true},
		{"stub-infer", false},
		{"does-not-exist", false},
	}
	for _, tt := range tests {
		if got := Trainable(tt.name); got != tt.want {
			t.Errorf("Trainable(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
	if _, err := Get("stub-infer"); err != nil {
		t.Errorf("inference-only backend not retrievable: %v", err)
	}
}
