package metrics

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Window accumulates timing stats across multiple batches.
type Window struct {
	samples int
	data    time.Duration
	compute time.Duration
	batches int
}

// Record adds a new measurement to the window.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration) {
	w.samples += batchSize
	w.data += dataTime
	w.compute += computeTime
	w.batches++
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Samples: w.samples}
	total := w.data + w.compute
	if total > 0 {
		snap.ImagesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.batches > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.batches)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.batches)
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Samples      int
	ImagesPerSec float64
	AvgDataMS    float64
	AvgComputeMS float64
}

// Latency keeps every per-batch compute time of a run.
type Latency struct {
	ms []float64
}

// Add records one batch.
func (l *Latency) Add(d time.Duration) {
	l.ms = append(l.ms, d.Seconds()*1000)
}

// LatencySummary describes the distribution of batch compute times in milliseconds.
type LatencySummary struct {
	Batches int
	MeanMS  float64
	P50MS   float64
	P95MS   float64
	MaxMS   float64
}

// Summary computes the distribution. It fails when nothing was recorded.
func (l *Latency) Summary() (LatencySummary, error) {
	if len(l.ms) == 0 {
		return LatencySummary{}, errors.New("latency: no batches recorded")
	}
	data := stats.Float64Data(l.ms)
	var (
		sum LatencySummary
		err error
	)
	sum.Batches = data.Len()
	if sum.MeanMS, err = data.Mean(); err != nil {
		return LatencySummary{}, errors.Wrap(err, "latency mean")
	}
	if sum.P50MS, err = data.Median(); err != nil {
		return LatencySummary{}, errors.Wrap(err, "latency median")
	}
	if sum.P95MS, err = data.Percentile(95); err != nil {
		return LatencySummary{}, errors.Wrap(err, "latency p95")
	}
	if sum.MaxMS, err = data.Max(); err != nil {
		return LatencySummary{}, errors.Wrap(err, "latency max")
	}
	return sum, nil
}
