package bist

import (
	"github.com/crimson-sun/bist/internal/eval"
	"github.com/crimson-sun/bist/internal/model"
)

type (
	// Sentence is one CoNLL-U sentence. Predicted heads and relations are
	// carried next to the gold columns.
	Sentence = model.Sentence
	Token    = model.Token

	// Options is the architecture configuration stored in params.json.
	Options = model.Options

	// Params is the parameter bundle persisted as params.json.
	Params = model.Params

	// Evaluator scores a predicted CoNLL-U file against its gold file.
	Evaluator = eval.Evaluator
	Score     = eval.Score
)

// NativeEvaluator returns the built-in UAS/LAS scorer. With excludePunct,
// tokens tagged PUNCT are not counted.
func NativeEvaluator(excludePunct bool) Evaluator {
	return eval.NewNative(excludePunct)
}

// ScriptEvaluator returns an evaluator that runs an external command with
// the gold and predicted paths appended to args and reads LAS/UAS from its
// output.
func ScriptEvaluator(command string, args ...string) Evaluator {
	return eval.NewScript(command, args...)
}
