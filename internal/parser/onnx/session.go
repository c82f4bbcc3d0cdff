package onnx

import (
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Tensor names the exported scorer graph must expose.
const (
	inputWords = "word_ids"
	inputTags  = "pos_ids"
	outputArcs = "arc_scores"
	outputRels = "rel_scores"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// session wraps a DynamicAdvancedSession over an arc/relation scorer.
type session struct {
	session *ort.DynamicAdvancedSession
	numRels int64
}

// newSession loads the graph at modelPath after checking that its inputs and
// outputs match what the parser feeds and reads.
func newSession(modelPath, libPath string, numRels int) (*session, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if err := validateIO(inputs, outputs, numRels); err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	s, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputWords, inputTags},
		[]string{outputArcs, outputRels},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}
	return &session{session: s, numRels: int64(numRels)}, nil
}

// validateIO checks the graph signature: two inputs shaped [1, n+1], an arc
// score tensor [1, n+1, n+1] and a relation score tensor [1, n+1, n+1, R]
// whose last dimension, when fixed, equals numRels.
func validateIO(inputs, outputs []ort.InputOutputInfo, numRels int) error {
	in := make(map[string]ort.InputOutputInfo, len(inputs))
	for _, i := range inputs {
		in[i.Name] = i
	}
	for _, name := range []string{inputWords, inputTags} {
		info, ok := in[name]
		if !ok {
			return fmt.Errorf("onnx: model missing required input %q", name)
		}
		if len(info.Dimensions) != 2 {
			return fmt.Errorf("onnx: input %q: expected 2D tensor, got %v", name, info.Dimensions)
		}
	}

	out := make(map[string]ort.InputOutputInfo, len(outputs))
	for _, o := range outputs {
		out[o.Name] = o
	}
	arcs, ok := out[outputArcs]
	if !ok {
		return fmt.Errorf("onnx: model missing required output %q", outputArcs)
	}
	if len(arcs.Dimensions) != 3 {
		return fmt.Errorf("onnx: output %q: expected 3D tensor, got %v", outputArcs, arcs.Dimensions)
	}
	rels, ok := out[outputRels]
	if !ok {
		return fmt.Errorf("onnx: model missing required output %q", outputRels)
	}
	if len(rels.Dimensions) != 4 {
		return fmt.Errorf("onnx: output %q: expected 4D tensor, got %v", outputRels, rels.Dimensions)
	}
	if r := rels.Dimensions[3]; r > 0 && r != int64(numRels) {
		return fmt.Errorf("onnx: model scores %d relations, params declare %d", r, numRels)
	}
	return nil
}

// infer scores one sentence of length n (root included). It returns the
// flat [n*n] arc scores and [n*n*numRels] relation scores.
func (s *session) infer(wordIDs, tagIDs []int64) (arcs, rels []float32, err error) {
	n := int64(len(wordIDs))
	shape := ort.NewShape(1, n)

	tWords, err := ort.NewTensor(shape, wordIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("onnx: failed to create %s tensor: %w", inputWords, err)
	}
	defer tWords.Destroy()

	tTags, err := ort.NewTensor(shape, tagIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("onnx: failed to create %s tensor: %w", inputTags, err)
	}
	defer tTags.Destroy()

	tArcs, err := ort.NewEmptyTensor[float32](ort.NewShape(1, n, n))
	if err != nil {
		return nil, nil, fmt.Errorf("onnx: failed to create %s tensor: %w", outputArcs, err)
	}
	defer tArcs.Destroy()

	tRels, err := ort.NewEmptyTensor[float32](ort.NewShape(1, n, n, s.numRels))
	if err != nil {
		return nil, nil, fmt.Errorf("onnx: failed to create %s tensor: %w", outputRels, err)
	}
	defer tRels.Destroy()

	err = s.session.Run(
		[]ort.Value{tWords, tTags},
		[]ort.Value{tArcs, tRels},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	// Copy data out before the tensors are destroyed.
	arcs = append([]float32(nil), tArcs.GetData()...)
	rels = append([]float32(nil), tRels.GetData()...)
	return arcs, rels, nil
}

func (s *session) close() error {
	return s.session.Destroy()
}
