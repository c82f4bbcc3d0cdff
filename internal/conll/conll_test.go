package conll

import (
	"bytes"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/crimson-sun/bist/internal/model"
	"github.com/crimson-sun/bist/internal/testdata"
)

func TestReadEmbeddedCorpus(t *testing.T) {
	sents, err := Read(bytes.NewReader(testdata.Train))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(sents) != testdata.TrainSentences {
		t.Fatalf("expected %d sentences, got %d", testdata.TrainSentences, len(sents))
	}

	first := sents[0]
	if first.Len() != 7 {
		t.Fatalf("expected 7 tokens in first sentence, got %d", first.Len())
	}
	if len(first.Comments) != 2 {
		t.Errorf("expected 2 comments, got %v", first.Comments)
	}
	tok := first.Tokens[1]
	if tok.Form != "cat" || tok.UPOS != "NOUN" || tok.Head != 3 || tok.DepRel != "nsubj" {
		t.Errorf("unexpected token: %+v", tok)
	}
	if tok.PredHead != -1 {
		t.Errorf("PredHead = %d, want -1 before parsing", tok.PredHead)
	}
}

func TestMultiwordAndEmptyNodesKeptInPlace(t *testing.T) {
	input := strings.Join([]string{
		"# sent_id = es-1",
		"1-2\tdel\t_\t_\t_\t_\t_\t_\t_\t_",
		"1\tde\tde\tADP\t_\t_\t2\tcase\t_\t_",
		"2\tel\tel\tDET\t_\t_\t0\troot\t_\t_",
		"2.1\tx\t_\t_\t_\t_\t_\t_\t_\t_",
		"",
		"",
	}, "\n")

	sents, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(sents) != 1 || sents[0].Len() != 2 {
		t.Fatalf("expected 1 sentence of 2 tokens, got %+v", sents)
	}
	want := []model.ExtraRow{
		{Before: 0, Line: "1-2\tdel\t_\t_\t_\t_\t_\t_\t_\t_"},
		{Before: 2, Line: "2.1\tx\t_\t_\t_\t_\t_\t_\t_\t_"},
	}
	if !reflect.DeepEqual(sents[0].Extra, want) {
		t.Fatalf("Extra = %+v, want %+v", sents[0].Extra, want)
	}

	var gold bytes.Buffer
	if err := Write(&gold, sents, Gold); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if gold.String() != input {
		t.Fatalf("gold round trip differs:\n%s\nwant:\n%s", gold.String(), input)
	}

	sents[0].Tokens[0].PredHead, sents[0].Tokens[0].PredRel = 2, "case"
	sents[0].Tokens[1].PredHead, sents[0].Tokens[1].PredRel = 0, "root"
	var pred bytes.Buffer
	if err := Write(&pred, sents, Predicted); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	inLines := strings.Split(input, "\n")
	outLines := strings.Split(pred.String(), "\n")
	if len(outLines) != len(inLines) {
		t.Fatalf("predicted output has %d lines, input %d", len(outLines), len(inLines))
	}
	for i := range inLines {
		in, out := strings.SplitN(inLines[i], "\t", 2)[0], strings.SplitN(outLines[i], "\t", 2)[0]
		if in != out {
			t.Errorf("line %d: ID %q, want %q", i+1, out, in)
		}
	}
}

func TestReadWithoutTrailingBlankLine(t *testing.T) {
	input := "1\tHi\thi\tINTJ\tUH\t_\t0\troot\t_\t_"
	sents, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(sents) != 1 {
		t.Fatalf("expected 1 sentence, got %d", len(sents))
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few fields", "1\tcat\tcat\tNOUN\n"},
		{"bad id", "x\tcat\tcat\tNOUN\tNN\t_\t0\troot\t_\t_\n"},
		{"bad head", "1\tcat\tcat\tNOUN\tNN\t_\tx\troot\t_\t_\n"},
	}
	for _, tt := range tests {
		if _, err := Read(strings.NewReader(tt.input)); err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
	}
}

func TestWriteGoldRoundTrip(t *testing.T) {
	sents, err := Read(bytes.NewReader(testdata.Dev))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, sents, Gold); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if buf.String() != string(testdata.Dev) {
		t.Errorf("round trip mismatch:\n--- got ---\n%s\n--- want ---\n%s", buf.String(), testdata.Dev)
	}
}

func TestWritePredictedColumns(t *testing.T) {
	sents, err := Read(bytes.NewReader(testdata.Dev))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	sents = sents[:1]
	for i := range sents[0].Tokens {
		sents[0].Tokens[i].PredHead = 0
		sents[0].Tokens[i].PredRel = "dep"
	}

	path := filepath.Join(t.TempDir(), "pred.conllu")
	if err := WriteFile(path, sents, Predicted); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	for _, tok := range back[0].Tokens {
		if tok.Head != 0 || tok.DepRel != "dep" {
			t.Errorf("token %d: head=%d rel=%q, want 0/dep", tok.ID, tok.Head, tok.DepRel)
		}
	}
}

func TestWriteUnparsedHeadIsUnderscore(t *testing.T) {
	sents, _ := Read(strings.NewReader("1\tHi\thi\tINTJ\tUH\t_\t0\troot\t_\t_\n"))

	var buf bytes.Buffer
	if err := Write(&buf, sents, Predicted); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	want := "1\tHi\thi\tINTJ\tUH\t_\t_\t_\t_\t_\n\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.conllu")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
