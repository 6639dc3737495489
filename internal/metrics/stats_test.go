package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(64, 20*time.Millisecond, 10*time.Millisecond)
	w.Record(64, 10*time.Millisecond, 20*time.Millisecond)
	snap := w.Snapshot()
	if math.Abs(snap.ImagesPerSec-2133.3333) > 1 {
		t.Fatalf("unexpected throughput %.2f", snap.ImagesPerSec)
	}
	if w.samples != 0 || w.batches != 0 {
		t.Fatalf("window was not reset")
	}
	assert.Equal(t, 128, snap.Samples)
	assert.InDelta(t, 15.0, snap.AvgDataMS, 1e-9)
	assert.InDelta(t, 15.0, snap.AvgComputeMS, 1e-9)
}

func TestWindowSnapshotEmpty(t *testing.T) {
	var w Window
	assert.Equal(t, Snapshot{}, w.Snapshot())
}

func TestLatencySummary(t *testing.T) {
	var l Latency
	_, err := l.Summary()
	assert.Error(t, err)

	for i := 1; i <= 20; i++ {
		l.Add(time.Duration(i) * time.Millisecond)
	}
	sum, err := l.Summary()
	require.NoError(t, err)
	assert.Equal(t, 20, sum.Batches)
	assert.InDelta(t, 10.5, sum.MeanMS, 1e-9)
	assert.InDelta(t, 10.5, sum.P50MS, 1e-9)
	assert.InDelta(t, 19.0, sum.P95MS, 1e-9)
	assert.InDelta(t, 20.0, sum.MaxMS, 1e-9)
}
