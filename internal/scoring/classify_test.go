package scoring

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBoundary(t *testing.T) {
	assert.Equal(t, []int{1}, Classify([]float64{0.6}, 0.5))
	assert.Equal(t, []int{0}, Classify([]float64{0.4}, 0.5))
	assert.Equal(t, []int{0}, Classify([]float64{0.5}, 0.5))
	assert.Equal(t, []int{}, Classify(nil, DefaultThreshold))
}

func TestClassifyTotal(t *testing.T) {
	in := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -3, 7, 0.5000001}
	assert.Equal(t, []int{0, 1, 0, 0, 1, 1}, Classify(in, 0.5))
}

func TestClassifyBinaryAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(16))
	for trial := 0; trial < 50; trial++ {
		probs := make([]float64, 1+rng.Intn(64))
		for i := range probs {
			probs[i] = rng.NormFloat64()
		}
		threshold := rng.Float64() * 0.999

		once := Classify(probs, threshold)
		for _, v := range once {
			assert.True(t, v == 0 || v == 1, "non-binary output %d", v)
		}

		asFloat := make([]float64, len(once))
		for i, v := range once {
			asFloat[i] = float64(v)
		}
		assert.Equal(t, once, Classify(asFloat, threshold))
	}
}
