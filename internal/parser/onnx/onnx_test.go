package onnx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/crimson-sun/bist/internal/conll"
	"github.com/crimson-sun/bist/internal/model"
	"github.com/crimson-sun/bist/internal/parser"
	"github.com/crimson-sun/bist/internal/testdata"
	"github.com/crimson-sun/bist/internal/vocab"
)

const (
	testModelPath  = "../../../models/bist.onnx"
	testParamsPath = "../../../models/params.json"
)

func skipIfNoModel(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testModelPath); os.IsNotExist(err) {
		t.Skip("ONNX scorer not found; export one to models/bist.onnx first")
	}
}

func trainParams(t *testing.T) model.Params {
	t.Helper()
	sents, err := conll.Read(bytes.NewReader(testdata.Train))
	if err != nil {
		t.Fatal(err)
	}
	return vocab.Extract(sents).Params(model.DefaultOptions())
}

func info(name string, dims ...int64) ort.InputOutputInfo {
	return ort.InputOutputInfo{Name: name, Dimensions: ort.NewShape(dims...)}
}

func TestValidateIO(t *testing.T) {
	goodIn := []ort.InputOutputInfo{info(inputWords, 1, -1), info(inputTags, 1, -1)}
	goodOut := []ort.InputOutputInfo{info(outputArcs, 1, -1, -1), info(outputRels, 1, -1, -1, 11)}

	tests := []struct {
		name    string
		inputs  []ort.InputOutputInfo
		outputs []ort.InputOutputInfo
		rels    int
		wantErr bool
	}{
		{"valid", goodIn, goodOut, 11, false},
		{"dynamic relation dim", goodIn, []ort.InputOutputInfo{info(outputArcs, 1, -1, -1), info(outputRels, 1, -1, -1, -1)}, 5, false},
		{"missing input", goodIn[:1], goodOut, 11, true},
		{"input rank", []ort.InputOutputInfo{info(inputWords, -1), info(inputTags, 1, -1)}, goodOut, 11, true},
		{"missing arcs", goodIn, goodOut[1:], 11, true},
		{"arc rank", goodIn, []ort.InputOutputInfo{info(outputArcs, 1, -1), goodOut[1]}, 11, true},
		{"missing rels", goodIn, goodOut[:1], 11, true},
		{"relation count", goodIn, goodOut, 12, true},
	}
	for _, tt := range tests {
		err := validateIO(tt.inputs, tt.outputs, tt.rels)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: validateIO() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestEncode(t *testing.T) {
	params := trainParams(t)
	p, err := New(params, parser.Settings{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	s := model.Sentence{Tokens: []model.Token{
		{ID: 1, Form: "The", UPOS: "DET"},
		{ID: 2, Form: "zebra", UPOS: "X"},
	}}
	words, tags := p.encode(s)

	if words[0] != vocab.RootID || tags[0] != 0 {
		t.Errorf("root encoded as %d/%d", words[0], tags[0])
	}
	if words[1] != int64(params.W2I["the"]) {
		t.Errorf("words[1] = %d, want %d", words[1], params.W2I["the"])
	}
	if words[2] != vocab.UnknownID {
		t.Errorf("words[2] = %d, want UnknownID", words[2])
	}
	if tags[2] != int64(len(params.POS)) {
		t.Errorf("unknown tag encoded as %d, want %d", tags[2], len(params.POS))
	}
}

func TestArgmax(t *testing.T) {
	if got := argmax([]float32{0.1, 2, -3, 1.9}); got != 1 {
		t.Errorf("argmax = %d, want 1", got)
	}
}

func TestTrainUnsupported(t *testing.T) {
	p, err := New(trainParams(t), parser.Settings{})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Train(context.Background(), nil); !errors.Is(err, parser.ErrTrainingUnsupported) {
		t.Fatalf("Train() error = %v, want ErrTrainingUnsupported", err)
	}
}

func TestNotLoaded(t *testing.T) {
	p, err := New(trainParams(t), parser.Settings{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Predict(context.Background(), nil); err == nil {
		t.Error("expected Predict error before Load")
	}
	if err := p.Save(filepath.Join(t.TempDir(), "out.onnx")); err == nil {
		t.Error("expected Save error before Load")
	}
	if err := p.Load(filepath.Join(t.TempDir(), "missing.onnx")); err == nil {
		t.Error("expected Load error for missing file")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestPredictWithExportedModel(t *testing.T) {
	skipIfNoModel(t)

	data, err := os.ReadFile(testParamsPath)
	if err != nil {
		t.Skipf("params for the exported model not found: %v", err)
	}
	var params model.Params
	if err := json.Unmarshal(data, &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}

	p, err := New(params, parser.Settings{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()
	if err := p.Load(testModelPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	sents, err := conll.Read(bytes.NewReader(testdata.Dev))
	if err != nil {
		t.Fatal(err)
	}
	pred, err := p.Predict(context.Background(), sents)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if len(pred) != len(sents) {
		t.Fatalf("got %d sentences, want %d", len(pred), len(sents))
	}
	for i, s := range pred {
		for _, tok := range s.Tokens {
			if tok.PredHead < 0 || tok.PredHead > s.Len() {
				t.Errorf("sentence %d token %d: head %d out of range", i, tok.ID, tok.PredHead)
			}
		}
	}
}

func TestRegisteredInferenceOnly(t *testing.T) {
	if _, err := parser.Get(Name); err != nil {
		t.Fatalf("backend not registered: %v", err)
	}
	if parser.Trainable(Name) {
		t.Fatal("onnx backend must not be registered as trainable")
	}
}
