package eval

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var scoreLine = regexp.MustCompile(`(?im)^\s*(LAS|UAS)\b[^0-9\n]*([0-9]+(?:\.[0-9]+)?)`)

// Script runs an external evaluation program as
//
//	<Command> <Args...> <gold> <pred>
//
// and stores its standard output as the report. LAS and UAS are picked out
// of lines starting with those labels when present.
type Script struct {
	Command string
	Args    []string
}

// NewScript creates a Script evaluator.
func NewScript(command string, args ...string) *Script {
	return &Script{Command: command, Args: args}
}

// Evaluate runs the script and writes its output next to the prediction.
func (s *Script) Evaluate(ctx context.Context, goldPath, predPath string) (Score, error) {
	args := append(append([]string{}, s.Args...), goldPath, predPath)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Score{}, fmt.Errorf("eval: %s: %w: %s", s.Command, err, strings.TrimSpace(stderr.String()))
	}

	score := parseReport(stdout.String())
	if err := os.WriteFile(predPath+ReportSuffix, stdout.Bytes(), 0644); err != nil {
		return score, fmt.Errorf("eval: write report: %w", err)
	}
	return score, nil
}

func parseReport(out string) Score {
	score := Score{Report: out}
	for _, m := range scoreLine.FindAllStringSubmatch(out, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		switch strings.ToUpper(m[1]) {
		case "LAS":
			score.LAS = v
		case "UAS":
			score.UAS = v
		}
	}
	return score
}
