package backend

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectors(t *testing.T) {
	be, err := New("CPU", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "cpu", be.Name())
	assert.Equal(t, 0, be.Device())
	assert.Positive(t, be.Workers())
	assert.NoError(t, be.Close())

	_, err = New("gpu", 0, nil)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)

	_, err = New("tpu", 0, nil)
	assert.True(t, errors.Is(err, ErrUnknown), "got %v", err)

	_, err = New("cpu", 1, nil)
	assert.Error(t, err)

	_, err = New("cpu", -1, nil)
	assert.Error(t, err)
}

func TestCPUGemm(t *testing.T) {
	be, err := New("cpu", 0, nil)
	require.NoError(t, err)

	// a is 2x3, b is 3x2.
	a := []float64{1, 2, 3, 4, 5, 6}
	b := []float64{7, 8, 9, 10, 11, 12}
	c := make([]float64, 4)
	be.Gemm(false, false, 2, 2, 3, 1, a, b, 0, c)
	assert.Equal(t, []float64{58, 64, 139, 154}, c)

	// accumulate with beta.
	be.Gemm(false, false, 2, 2, 3, 1, a, b, 1, c)
	assert.Equal(t, []float64{116, 128, 278, 308}, c)
}

func TestCPUGemmTransposed(t *testing.T) {
	be, err := New("cpu", 0, nil)
	require.NoError(t, err)

	// at is a stored transposed (3x2); bt is b stored transposed (2x3).
	at := []float64{1, 4, 2, 5, 3, 6}
	bt := []float64{7, 9, 11, 8, 10, 12}
	c := make([]float64, 4)
	be.Gemm(true, true, 2, 2, 3, 1, at, bt, 0, c)
	assert.Equal(t, []float64{58, 64, 139, 154}, c)
}
