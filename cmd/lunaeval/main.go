package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	arg "github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lunaeval/internal/backend"
	"lunaeval/internal/config"
	"lunaeval/internal/dataset"
	"lunaeval/internal/evaluator"
	"lunaeval/internal/logging"
	"lunaeval/internal/model"
	"lunaeval/internal/scoring"
)

type args struct {
	Backend     string   `arg:"-b,--backend" help:"compute backend (cpu|gpu) [default: cpu]"`
	Device      *int     `arg:"-i,--device" help:"device index [default: 0]"`
	BatchSize   int      `arg:"-z,--batch-size" help:"samples per inference batch [default: 128]"`
	Seed        int64    `arg:"-r,--seed" help:"seed for shard shuffling [default: 16]"`
	Config      string   `arg:"--config" help:"optional YAML config, flags win over file values"`
	Data        []string `arg:"--data" help:"root directories of WebDataset shards, evaluated together"`
	Model       string   `arg:"--model" help:"model file (.json, .json.gz or .json.sz)"`
	Threshold   *float64 `arg:"--threshold" help:"probability above which a sample is positive [default: 0.5]"`
	Workers     int      `arg:"--workers" help:"shard reader goroutines [default: 1]"`
	PendingCap  int      `arg:"--pending-cap" help:"max half-paired samples held per shard [default: 1024]"`
	Shuffle     bool     `arg:"--shuffle" help:"visit shards in seeded random order"`
	MaxSamples  int      `arg:"--max-samples" help:"stop after this many samples, 0 for all"`
	LogEvery    int      `arg:"--log-every" help:"log throughput every N batches [default: 10]"`
	Predictions string   `arg:"--predictions" help:"write per-sample predictions CSV to this path"`
	PlotDir     string   `arg:"--plot-dir" help:"write ROC and precision-recall PNGs to this directory"`
	LogLevel    string   `arg:"--log-level" default:"info" help:"debug, info, warn or error"`
}

func (args) Description() string {
	return "lunaeval scores a pre-trained classifier against a held-out LUNA16 subset."
}

func (a args) overrides() config.Overrides {
	return config.Overrides{
		Backend:     a.Backend,
		Device:      a.Device,
		BatchSize:   a.BatchSize,
		Seed:        a.Seed,
		DataRoots:   a.Data,
		ModelPath:   a.Model,
		Threshold:   a.Threshold,
		NumWorkers:  a.Workers,
		PendingCap:  a.PendingCap,
		Shuffle:     a.Shuffle,
		MaxSamples:  a.MaxSamples,
		LogEvery:    a.LogEvery,
		Predictions: a.Predictions,
		PlotDir:     a.PlotDir,
	}
}

func main() {
	var a args
	arg.MustParse(&a)

	logger, err := logging.New(a.LogLevel)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a, os.Stdout, logger); err != nil {
		logger.Error("evaluation failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, a args, stdout io.Writer, logger *zap.Logger) error {
	cfg, err := config.Load(a.Config)
	if err != nil {
		return errors.WithMessage(err, "load config")
	}
	cfg.ApplyOverrides(a.overrides())
	if err := cfg.Validate(); err != nil {
		return errors.WithMessage(err, "invalid config")
	}

	roots, err := dataset.DiscoverByRoot(cfg.DataRoots)
	if err != nil {
		return errors.WithMessage(err, "discover shards")
	}
	for _, root := range cfg.DataRoots {
		logger.Info("dataset", zap.String("root", root), zap.Int("shards", len(roots[root])))
	}

	be, err := backend.New(cfg.Backend, cfg.Device, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	net, err := model.Load(cfg.ModelPath)
	if err != nil {
		return err
	}
	in := net.Input()
	logger.Info("model loaded",
		zap.String("path", cfg.ModelPath),
		zap.String("name", net.Name()),
		zap.Int("channels", in.Channels),
		zap.Int("height", in.Height),
		zap.Int("width", in.Width),
		zap.Int("outputs", net.Outputs()),
	)

	res, err := evaluator.Run(ctx, evaluator.RunConfig{
		Roots:      roots,
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
		PendingCap: cfg.PendingCap,
		LogEvery:   cfg.LogEvery,
		Seed:       cfg.Seed,
		Shuffle:    cfg.Shuffle,
		MaxSamples: cfg.MaxSamples,
		Model:      net,
		Backend:    be,
		Logger:     logger,
	})
	if err != nil {
		return errors.WithMessage(err, "inference")
	}

	report, err := scoring.Evaluate(res.Labels, res.Probabilities, cfg.Threshold)
	if err != nil {
		return errors.WithMessage(err, "score")
	}
	if err := report.Print(stdout); err != nil {
		return err
	}
	report.Log(logger)

	if cfg.Predictions != "" {
		rows, err := scoring.Rows(res.Keys, res.Labels, res.Probabilities, report.Predictions)
		if err != nil {
			return err
		}
		if err := scoring.WritePredictions(cfg.Predictions, rows); err != nil {
			return err
		}
		logger.Info("predictions written", zap.String("path", cfg.Predictions), zap.Int("rows", len(rows)))
	}

	if cfg.PlotDir != "" {
		if err := os.MkdirAll(cfg.PlotDir, 0o755); err != nil {
			return errors.Wrap(err, "create plot dir")
		}
		paths, err := scoring.WriteCurves(cfg.PlotDir, report)
		if err != nil {
			return err
		}
		logger.Info("curves written", zap.Strings("paths", paths))
	}
	return nil
}
