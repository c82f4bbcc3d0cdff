package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"github.com/crimson-sun/bist/internal/config"
	"github.com/crimson-sun/bist/internal/conll"
	"github.com/crimson-sun/bist/internal/logging"
	"github.com/crimson-sun/bist/pkg/bist"
)

type trainArgs struct {
	config string
	train  string
	dev    string
	model  string
	epochs int
}

func trainCmd() *commander.Command {
	var a trainArgs
	cmd := &commander.Command{
		UsageLine: "train -train <conll> -model <path> [-dev <conll>] [options]",
		Short:     "trains a parser and saves it with its params.json",
		Long: `
trains a parser on a CoNLL-U corpus, optionally evaluating on a dev corpus
after every epoch, and saves the weights and params.json

	$ bist train -train en-ud-train.conllu -dev en-ud-dev.conllu -model out/bist.model -epochs 30

`,
		Flag: *flag.NewFlagSet("train", flag.ExitOnError),
		Run: func(cmd *commander.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runTrain(ctx, a)
		},
	}
	cmd.Flag.StringVar(&a.config, "config", "", "Optional - YAML configuration file")
	cmd.Flag.StringVar(&a.train, "train", "", "Training CoNLL-U file")
	cmd.Flag.StringVar(&a.dev, "dev", "", "Optional - Dev CoNLL-U file evaluated after every epoch")
	cmd.Flag.StringVar(&a.model, "model", "", "Output model path; params.json is written next to it")
	cmd.Flag.IntVar(&a.epochs, "epochs", -1, "Number of training epochs (default BIST_EPOCHS)")
	return cmd
}

type parseArgs struct {
	config   string
	model    string
	input    string
	output   string
	evaluate bool
}

func parseCmd() *commander.Command {
	var a parseArgs
	cmd := &commander.Command{
		UsageLine: "parse -model <path> -in <conll> [-out <conll>] [-eval]",
		Short:     "parses a CoNLL-U file with a saved model",
		Long: `
parses a CoNLL-U file with a saved model and writes predicted heads and
relations to -out, or stdout when -out is empty

	$ bist parse -model out/bist.model -in en-ud-test.conllu -out test.pred.conllu

`,
		Flag: *flag.NewFlagSet("parse", flag.ExitOnError),
		Run: func(cmd *commander.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runParse(ctx, a, os.Stdout)
		},
	}
	cmd.Flag.StringVar(&a.config, "config", "", "Optional - YAML configuration file")
	cmd.Flag.StringVar(&a.model, "model", "", "Model path written by train")
	cmd.Flag.StringVar(&a.input, "in", "", "Input CoNLL-U file")
	cmd.Flag.StringVar(&a.output, "out", "", "Optional - Output CoNLL-U file")
	cmd.Flag.BoolVar(&a.evaluate, "eval", false, "Write <in>_pred and score it against the gold columns of -in")
	return cmd
}

type evalArgs struct {
	config string
	gold   string
	pred   string
}

func evalCmd() *commander.Command {
	var a evalArgs
	cmd := &commander.Command{
		UsageLine: "eval -gold <conll> -pred <conll>",
		Short:     "scores a predicted CoNLL-U file",
		Flag:      *flag.NewFlagSet("eval", flag.ExitOnError),
		Run: func(cmd *commander.Command, args []string) error {
			return runEval(context.Background(), a, os.Stdout)
		},
	}
	cmd.Flag.StringVar(&a.config, "config", "", "Optional - YAML configuration file")
	cmd.Flag.StringVar(&a.gold, "gold", "", "Gold CoNLL-U file")
	cmd.Flag.StringVar(&a.pred, "pred", "", "Predicted CoNLL-U file")
	return cmd
}

func runTrain(ctx context.Context, a trainArgs) error {
	if a.train == "" || a.model == "" {
		return fmt.Errorf("train: -train and -model are required")
	}
	cfg, logger, err := setup(a.config)
	if err != nil {
		return err
	}
	epochs := cfg.Train.Epochs
	if a.epochs >= 0 {
		epochs = a.epochs
	}

	m, err := bist.New(modelOptions(cfg, logger)...)
	if err != nil {
		return err
	}
	defer m.Close()

	fitOpts := []bist.FitOption{bist.WithEpochs(epochs)}
	if a.dev != "" {
		fitOpts = append(fitOpts, bist.WithDev(a.dev))
	}
	if err := m.Fit(ctx, a.train, fitOpts...); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.model), 0755); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := m.Save(a.model); err != nil {
		return err
	}
	logger.Info("saved model", "path", a.model)
	return nil
}

func runParse(ctx context.Context, a parseArgs, stdout io.Writer) error {
	if a.model == "" || a.input == "" {
		return fmt.Errorf("parse: -model and -in are required")
	}
	cfg, logger, err := setup(a.config)
	if err != nil {
		return err
	}

	m, err := bist.New(modelOptions(cfg, logger)...)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Load(a.model); err != nil {
		return err
	}
	pred, err := m.Predict(ctx, a.input, a.evaluate)
	if err != nil {
		return err
	}
	if a.output == "" {
		return conll.Write(stdout, pred, conll.Predicted)
	}
	if err := conll.WriteFile(a.output, pred, conll.Predicted); err != nil {
		return err
	}
	logger.Info("wrote predictions", "sentences", len(pred), "path", a.output)
	return nil
}

func runEval(ctx context.Context, a evalArgs, stdout io.Writer) error {
	if a.gold == "" || a.pred == "" {
		return fmt.Errorf("eval: -gold and -pred are required")
	}
	cfg, _, err := setup(a.config)
	if err != nil {
		return err
	}
	score, err := evaluator(cfg).Evaluate(ctx, a.gold, a.pred)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(stdout, score)
	return err
}

// setup loads configuration, overlaying path when set, and installs the
// default logger.
func setup(path string) (config.Config, *slog.Logger, error) {
	cfg := config.Load()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return config.Config{}, nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.Init(cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))
	return cfg, logger, nil
}

func modelOptions(cfg config.Config, logger *slog.Logger) []bist.Option {
	return []bist.Option{
		bist.WithActivation(cfg.Model.Activation),
		bist.WithLSTMLayers(cfg.Model.LSTMLayers),
		bist.WithLSTMDims(cfg.Model.LSTMDims),
		bist.WithPOSDims(cfg.Model.POSDims),
		bist.WithBackend(cfg.Backend.Name),
		bist.WithWorkers(cfg.Backend.Workers),
		bist.WithCacheBytes(cfg.Backend.CacheBytes),
		bist.WithORTLibrary(cfg.Backend.LibraryPath),
		bist.WithEvaluator(evaluator(cfg)),
		bist.WithLogger(logger),
	}
}

// evaluator returns the native scorer unless BIST_EVAL_SCRIPT names an
// external command. The script value is split on spaces so an interpreter
// can be given, e.g. "perl utils/eval.pl -q".
func evaluator(cfg config.Config) bist.Evaluator {
	if fields := strings.Fields(cfg.Eval.Script); len(fields) > 0 {
		return bist.ScriptEvaluator(fields[0], fields[1:]...)
	}
	return bist.NativeEvaluator(cfg.Eval.ExcludePunct)
}
