package scoring

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestROCAUCKnownValues(t *testing.T) {
	auc, err := ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, auc, 1e-12)

	auc, err = ROCAUC([]int{0, 1}, []float64{0.9, 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, auc, 1e-12)

	// all tied scores give the chance diagonal.
	auc, err = ROCAUC([]int{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, auc, 1e-12)
}

func TestAveragePrecisionKnownValues(t *testing.T) {
	ap, err := AveragePrecision([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 5.0/6.0, ap, 1e-12)

	ap, err = AveragePrecision([]int{1, 0, 1}, []float64{0.2, 0.9, 0.2})
	require.NoError(t, err)
	// tied positives enter together at precision 2/3.
	assert.InDelta(t, 2.0/3.0, ap, 1e-12)
}

func TestRankingMetricsPermutationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 200
	labels := make([]int, n)
	probs := make([]float64, n)
	for i := range labels {
		labels[i] = i % 3 % 2
		// coarse rounding forces ties.
		probs[i] = math.Round(rng.Float64()*20) / 20
	}
	auc, err := ROCAUC(labels, probs)
	require.NoError(t, err)
	ap, err := AveragePrecision(labels, probs)
	require.NoError(t, err)

	for trial := 0; trial < 10; trial++ {
		perm := rng.Perm(n)
		pl := make([]int, n)
		pp := make([]float64, n)
		for i, j := range perm {
			pl[i], pp[i] = labels[j], probs[j]
		}
		gotAUC, err := ROCAUC(pl, pp)
		require.NoError(t, err)
		gotAP, err := AveragePrecision(pl, pp)
		require.NoError(t, err)
		assert.InDelta(t, auc, gotAUC, 1e-12)
		assert.InDelta(t, ap, gotAP, 1e-12)
	}
}

func TestROCDoesNotMutateInput(t *testing.T) {
	labels := []int{1, 0, 1, 0}
	probs := []float64{0.9, 0.8, 0.1, 0.2}
	_, err := ROC(labels, probs)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1, 0}, labels)
	assert.Equal(t, []float64{0.9, 0.8, 0.1, 0.2}, probs)
}

func TestLogLossLimits(t *testing.T) {
	perfect, err := LogLoss([]int{0, 1, 1}, []float64{0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, perfect, 1e-12)

	prev := -1.0
	for _, p := range []float64{0.5, 0.6, 0.8, 0.9, 0.99, 0.999999, 1} {
		// label 0, growing confidence in class 1.
		loss, err := LogLoss([]int{0}, []float64{p})
		require.NoError(t, err)
		assert.Greater(t, loss, prev, "p=%v", p)
		assert.False(t, math.IsInf(loss, 0))
		prev = loss
	}
}

func TestLogLossKnownValue(t *testing.T) {
	loss, err := LogLoss([]int{0, 1, 1, 0}, []float64{0.1, 0.9, 0.4, 0.3})
	require.NoError(t, err)
	want := -(math.Log(0.9) + math.Log(0.9) + math.Log(0.4) + math.Log(0.7)) / 4
	assert.InDelta(t, want, loss, 1e-12)
}

func TestMetricErrors(t *testing.T) {
	_, err := ROCAUC([]int{1, 1}, []float64{0.2, 0.3})
	assert.True(t, errors.Is(err, ErrSingleClass), "got %v", err)

	_, err = AveragePrecision([]int{0, 0}, []float64{0.2, 0.3})
	assert.True(t, errors.Is(err, ErrSingleClass), "got %v", err)

	_, err = LogLoss([]int{0}, []float64{0.2, 0.3})
	assert.True(t, errors.Is(err, ErrLengthMismatch), "got %v", err)

	_, err = LogLoss(nil, nil)
	assert.True(t, errors.Is(err, ErrEmpty), "got %v", err)

	_, err = ROCAUC([]int{0, 2}, []float64{0.2, 0.3})
	assert.True(t, errors.Is(err, ErrLabel), "got %v", err)
}

func TestNonFiniteProbabilitiesAreRejected(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		probs := []float64{0.2, bad}

		_, err := Evaluate([]int{0, 1}, probs, DefaultThreshold)
		assert.True(t, errors.Is(err, ErrNotFinite), "got %v", err)
		assert.Contains(t, err.Error(), "probability[1]")

		_, err = LogLoss([]int{0, 1}, probs)
		assert.True(t, errors.Is(err, ErrNotFinite), "got %v", err)
	}
}

func TestPrecisionRecallCurve(t *testing.T) {
	c, err := ROC([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Positives)
	assert.Equal(t, 2, c.Negatives)
	assert.True(t, math.IsInf(c.Thresholds[0], 1))

	pr := c.PrecisionRecall()
	assert.Equal(t, []float64{0.8, 0.4, 0.35, 0.1}, pr.Thresholds)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 1, 1}, pr.Recall, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0.5, 2.0 / 3.0, 0.5}, pr.Precision, 1e-12)
}

func TestConfusion(t *testing.T) {
	c, err := Confuse([]int{0, 1, 1, 0, 1}, []int{0, 1, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, Confusion{TruePositive: 2, FalsePositive: 1, TrueNegative: 1, FalseNegative: 1}, c)
	assert.Equal(t, 5, c.Total())
	assert.Equal(t, 3, c.PredictedPositive())
	assert.Equal(t, 3, c.ActualPositive())
	assert.InDelta(t, 0.6, c.Accuracy(), 1e-12)
	assert.InDelta(t, 2.0/3.0, c.Precision(), 1e-12)
	assert.InDelta(t, 2.0/3.0, c.Recall(), 1e-12)

	var empty Confusion
	assert.Zero(t, empty.Accuracy())
	assert.Zero(t, empty.Precision())
	assert.Zero(t, empty.Recall())

	_, err = Confuse([]int{0}, nil)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}
