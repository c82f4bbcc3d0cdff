// Package conll reads and writes dependency corpora in the CoNLL-U format:
// ten tab-separated columns per token, "#" comment lines, and a blank line
// between sentences.
package conll

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/crimson-sun/bist/internal/model"
)

const (
	numFields = 10
	empty     = "_"

	maxLineSize = 1 << 20
)

// Column selects which head/relation pair Write emits.
type Column int

const (
	// Gold writes the annotated head and relation.
	Gold Column = iota
	// Predicted writes the parser's head and relation.
	Predicted
)

// Read parses every sentence from r. Multiword ranges ("1-2") and empty
// nodes ("1.1") are not tokens; they are kept in Sentence.Extra and written
// back unchanged.
func Read(r io.Reader) ([]model.Sentence, error) {
	var (
		sents   []model.Sentence
		cur     model.Sentence
		lineNo  int
		inSent  bool
		scanner = bufio.NewScanner(r)
	)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	flush := func() {
		if inSent && len(cur.Tokens) > 0 {
			sents = append(sents, cur)
		}
		cur = model.Sentence{}
		inSent = false
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		inSent = true
		if strings.HasPrefix(line, "#") {
			cur.Comments = append(cur.Comments, line[1:])
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != numFields {
			return nil, fmt.Errorf("conll: line %d: expected %d fields, got %d", lineNo, numFields, len(fields))
		}
		if strings.ContainsAny(fields[0], "-.") {
			cur.Extra = append(cur.Extra, model.ExtraRow{Before: len(cur.Tokens), Line: line})
			continue
		}
		tok, err := parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("conll: line %d: %w", lineNo, err)
		}
		cur.Tokens = append(cur.Tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("conll: read error: %w", err)
	}
	flush()
	return sents, nil
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) ([]model.Sentence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("conll: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func parseRow(fields []string) (model.Token, error) {
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return model.Token{}, fmt.Errorf("bad ID %q: %w", fields[0], err)
	}
	head := -1
	if fields[6] != empty {
		head, err = strconv.Atoi(fields[6])
		if err != nil {
			return model.Token{}, fmt.Errorf("bad HEAD %q: %w", fields[6], err)
		}
	}
	return model.Token{
		ID:       id,
		Form:     fields[1],
		Lemma:    fields[2],
		UPOS:     fields[3],
		XPOS:     fields[4],
		Feats:    fields[5],
		Head:     head,
		DepRel:   value(fields[7]),
		Deps:     fields[8],
		Misc:     fields[9],
		PredHead: -1,
	}, nil
}

func value(s string) string {
	if s == empty {
		return ""
	}
	return s
}

// Write serializes sentences to w, taking the head and relation columns from
// col.
func Write(w io.Writer, sents []model.Sentence, col Column) error {
	bw := bufio.NewWriter(w)
	for _, sent := range sents {
		for _, c := range sent.Comments {
			bw.WriteString("#")
			bw.WriteString(c)
			bw.WriteByte('\n')
		}
		extra := sent.Extra
		for i, tok := range sent.Tokens {
			for len(extra) > 0 && extra[0].Before <= i {
				bw.WriteString(extra[0].Line)
				bw.WriteByte('\n')
				extra = extra[1:]
			}
			bw.WriteString(formatRow(tok, col))
			bw.WriteByte('\n')
		}
		for _, row := range extra {
			bw.WriteString(row.Line)
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("conll: write: %w", err)
	}
	return nil
}

// WriteFile creates (or truncates) path and writes sentences to it.
func WriteFile(path string, sents []model.Sentence, col Column) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("conll: %w", err)
	}
	if err := Write(f, sents, col); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("conll: close %s: %w", path, err)
	}
	return nil
}

func formatRow(tok model.Token, col Column) string {
	head, rel := tok.Head, tok.DepRel
	if col == Predicted {
		head, rel = tok.PredHead, tok.PredRel
	}
	headStr := empty
	if head >= 0 {
		headStr = strconv.Itoa(head)
	}
	fields := []string{
		strconv.Itoa(tok.ID),
		orEmpty(tok.Form),
		orEmpty(tok.Lemma),
		orEmpty(tok.UPOS),
		orEmpty(tok.XPOS),
		orEmpty(tok.Feats),
		headStr,
		orEmpty(rel),
		orEmpty(tok.Deps),
		orEmpty(tok.Misc),
	}
	return strings.Join(fields, "\t")
}

func orEmpty(s string) string {
	if s == "" {
		return empty
	}
	return s
}
