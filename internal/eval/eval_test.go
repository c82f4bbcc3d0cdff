package eval

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crimson-sun/bist/internal/conll"
	"github.com/crimson-sun/bist/internal/model"
	"github.com/crimson-sun/bist/internal/testdata"
)

func writeDev(t *testing.T) (string, []model.Sentence) {
	t.Helper()
	_, dev, err := testdata.WriteFiles(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sents, err := conll.ReadFile(dev)
	if err != nil {
		t.Fatal(err)
	}
	return dev, sents
}

func TestNativePerfectPrediction(t *testing.T) {
	dev, sents := writeDev(t)
	pred := filepath.Join(filepath.Dir(dev), "dev_pred.conllu")
	if err := conll.WriteFile(pred, sents, conll.Gold); err != nil {
		t.Fatal(err)
	}

	score, err := NewNative(false).Evaluate(context.Background(), dev, pred)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if score.LAS != 100 || score.UAS != 100 {
		t.Errorf("expected perfect scores, got LAS=%f UAS=%f", score.LAS, score.UAS)
	}
	if score.Sentences != testdata.DevSentences || score.Tokens != 15 {
		t.Errorf("counted %d sentences / %d tokens", score.Sentences, score.Tokens)
	}

	report, err := os.ReadFile(pred + ReportSuffix)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(report), "LAS: 100.00") {
		t.Errorf("unexpected report: %s", report)
	}
}

func TestNativePartialPrediction(t *testing.T) {
	dev, sents := writeDev(t)
	// Break one head and one label in the first sentence.
	sents[0].Tokens[0].Head = 3
	sents[0].Tokens[1].DepRel = "obj"

	pred := filepath.Join(filepath.Dir(dev), "dev_pred.conllu")
	if err := conll.WriteFile(pred, sents, conll.Gold); err != nil {
		t.Fatal(err)
	}

	score, err := NewNative(false).Evaluate(context.Background(), dev, pred)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !closeEnough(score.UAS, 100*14.0/15.0) {
		t.Errorf("UAS = %f, want %f", score.UAS, 100*14.0/15.0)
	}
	if !closeEnough(score.LAS, 100*13.0/15.0) {
		t.Errorf("LAS = %f, want %f", score.LAS, 100*13.0/15.0)
	}
}

func TestNativeExcludePunct(t *testing.T) {
	dev, sents := writeDev(t)
	for i := range sents {
		last := len(sents[i].Tokens) - 1
		sents[i].Tokens[last].Head = 1
	}
	pred := filepath.Join(filepath.Dir(dev), "dev_pred.conllu")
	if err := conll.WriteFile(pred, sents, conll.Gold); err != nil {
		t.Fatal(err)
	}

	score, err := NewNative(true).Evaluate(context.Background(), dev, pred)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if score.UAS != 100 || score.Tokens != 12 {
		t.Errorf("expected punctuation to be ignored, got UAS=%f over %d tokens", score.UAS, score.Tokens)
	}
}

func TestNativeMismatchedFiles(t *testing.T) {
	dev, sents := writeDev(t)
	pred := filepath.Join(filepath.Dir(dev), "dev_pred.conllu")
	if err := conll.WriteFile(pred, sents[:2], conll.Gold); err != nil {
		t.Fatal(err)
	}
	if _, err := NewNative(false).Evaluate(context.Background(), dev, pred); err == nil {
		t.Fatal("expected error for sentence count mismatch")
	}
}

func TestCompare(t *testing.T) {
	_, sents := writeDev(t)
	pred := model.CloneAll(sents)
	for i := range pred {
		for j := range pred[i].Tokens {
			pred[i].Tokens[j].PredHead = pred[i].Tokens[j].Head
			pred[i].Tokens[j].PredRel = "dep"
		}
	}
	score, err := Compare(sents, pred, false)
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	if score.UAS != 100 || score.LAS != 0 {
		t.Errorf("got UAS=%f LAS=%f, want 100/0", score.UAS, score.LAS)
	}
}

func TestCountsEmpty(t *testing.T) {
	var c Counts
	s := c.Score()
	if s.UAS != 0 || s.LAS != 0 {
		t.Errorf("expected zero scores for no tokens, got %+v", s)
	}
}

func TestParseReport(t *testing.T) {
	out := "Metric | Precision\nLAS: 81.25\n  UAS = 90.5 %\n"
	s := parseReport(out)
	if s.LAS != 81.25 || s.UAS != 90.5 {
		t.Errorf("parseReport() = LAS %f UAS %f", s.LAS, s.UAS)
	}
	if s.Report != out {
		t.Error("expected raw output to be kept")
	}
}

func TestScript(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dev, sents := writeDev(t)
	pred := filepath.Join(filepath.Dir(dev), "dev_pred.conllu")
	if err := conll.WriteFile(pred, sents, conll.Gold); err != nil {
		t.Fatal(err)
	}

	ev := NewScript("sh", "-c", `test -f "$1" && test -f "$2" && echo "LAS: 75.5" && echo "UAS: 80"`, "eval")
	score, err := ev.Evaluate(context.Background(), dev, pred)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if score.LAS != 75.5 || score.UAS != 80 {
		t.Errorf("got LAS=%f UAS=%f", score.LAS, score.UAS)
	}
	if _, err := os.Stat(pred + ReportSuffix); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestScriptFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dev, _ := writeDev(t)
	ev := NewScript("sh", "-c", "echo boom >&2; exit 3", "eval")
	_, err := ev.Evaluate(context.Background(), dev, dev)
	if err == nil {
		t.Fatal("expected error from failing script")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
