// Package evaluator drives a dataset through a model and collects aligned
// probabilities and labels.
package evaluator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lunaeval/internal/backend"
	"lunaeval/internal/dataset"
	"lunaeval/internal/logging"
	"lunaeval/internal/metrics"
	"lunaeval/internal/model"
)

const defaultLogEvery = 10

// RunConfig captures the knobs required by the inference loop.
type RunConfig struct {
	Roots      map[string][]string
	BatchSize  int
	NumWorkers int
	// PendingCap bounds half-paired keys per shard. Zero uses the reader default.
	PendingCap int
	LogEvery   int
	Seed       int64
	Shuffle    bool
	// MaxSamples caps the number of evaluated samples. Zero evaluates everything.
	MaxSamples int

	Model   model.Model
	Backend backend.Backend
	Logger  *zap.Logger
}

// Result holds one entry per evaluated sample, in stream order.
type Result struct {
	Keys          []string
	Probabilities []float64
	Labels        []int
	Batches       int
	Latency       metrics.LatencySummary
}

// Len is the number of evaluated samples.
func (r *Result) Len() int { return len(r.Labels) }

// Run streams every shard of every root once, runs each batch through the model and returns the
// aligned results. Any read, decode or inference failure aborts the run.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.BatchSize <= 0 {
		return nil, errors.New("evaluator: batch size must be > 0")
	}
	if cfg.MaxSamples < 0 {
		return nil, errors.New("evaluator: max samples must be >= 0")
	}
	if cfg.Model == nil {
		return nil, errors.New("evaluator: no model")
	}
	if cfg.Backend == nil {
		return nil, errors.New("evaluator: no backend")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = defaultLogEvery
	}
	logger := logging.OrNop(cfg.Logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	samples, samplerErr, err := dataset.StartSampler(ctx, dataset.SamplerOptions{
		Roots:      cfg.Roots,
		Seed:       cfg.Seed,
		NumWorkers: cfg.NumWorkers,
		PendingCap: cfg.PendingCap,
		Shuffle:    cfg.Shuffle,
		Binary:     true,
	})
	if err != nil {
		return nil, err
	}

	var (
		res     Result
		window  metrics.Window
		latency metrics.Latency
	)
	shape := cfg.Model.Input()

	for {
		limit := cfg.BatchSize
		if cfg.MaxSamples > 0 {
			if remaining := cfg.MaxSamples - res.Len(); remaining < limit {
				limit = remaining
			}
		}
		if limit == 0 {
			break
		}

		startData := time.Now()
		batch, err := nextBatch(ctx, samples, samplerErr, limit, shape)
		if err != nil {
			return nil, err
		}
		if batch.Len() == 0 {
			break
		}
		dataTime := time.Since(startData)

		startCompute := time.Now()
		probs, err := cfg.Model.Predict(ctx, cfg.Backend, batch)
		if err != nil {
			return nil, errors.WithMessagef(err, "batch %d", res.Batches)
		}
		if len(probs) != batch.Len() {
			return nil, errors.Errorf("evaluator: model returned %d probabilities for %d samples", len(probs), batch.Len())
		}
		computeTime := time.Since(startCompute)

		res.Keys = append(res.Keys, batch.Keys...)
		res.Labels = append(res.Labels, batch.Labels...)
		res.Probabilities = append(res.Probabilities, probs...)
		res.Batches++
		window.Record(batch.Len(), dataTime, computeTime)
		latency.Add(computeTime)

		if res.Batches%cfg.LogEvery == 0 {
			snap := window.Snapshot()
			logger.Info("progress",
				zap.Int("batch", res.Batches),
				zap.Int("evaluated", res.Len()),
				zap.Float64("images_per_sec", snap.ImagesPerSec),
				zap.Float64("data_ms", snap.AvgDataMS),
				zap.Float64("compute_ms", snap.AvgComputeMS),
			)
		}
		if batch.Len() < limit {
			break
		}
	}

	if res.Len() == 0 {
		return nil, errors.New("evaluator: dataset produced no samples")
	}
	if res.Latency, err = latency.Summary(); err != nil {
		return nil, err
	}
	logger.Info("inference finished",
		zap.Int("samples", res.Len()),
		zap.Int("batches", res.Batches),
		zap.Float64("batch_ms_mean", res.Latency.MeanMS),
		zap.Float64("batch_ms_p50", res.Latency.P50MS),
		zap.Float64("batch_ms_p95", res.Latency.P95MS),
		zap.Float64("batch_ms_max", res.Latency.MaxMS),
	)
	return &res, nil
}

// nextBatch reads up to size samples. A short batch means the stream is exhausted.
func nextBatch(ctx context.Context, samples <-chan dataset.Sample, errs <-chan error, size int, shape model.Shape) (model.Batch, error) {
	batch := model.Batch{
		Keys:   make([]string, 0, size),
		Inputs: make([][]float64, 0, size),
		Labels: make([]int, 0, size),
	}
	for batch.Len() < size {
		select {
		case <-ctx.Done():
			return model.Batch{}, ctx.Err()
		case sample, ok := <-samples:
			if !ok {
				if err := <-errs; err != nil {
					return model.Batch{}, errors.WithMessage(err, "read dataset")
				}
				if err := ctx.Err(); err != nil {
					return model.Batch{}, err
				}
				return batch, nil
			}
			features, err := dataset.Features(sample.Image, shape.Channels, shape.Height, shape.Width)
			if err != nil {
				return model.Batch{}, errors.WithMessagef(err, "sample %s", sample.Key)
			}
			batch.Keys = append(batch.Keys, sample.Key)
			batch.Inputs = append(batch.Inputs, features)
			batch.Labels = append(batch.Labels, sample.Label)
		}
	}
	return batch, nil
}
