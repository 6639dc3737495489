package scoring

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCurves(t *testing.T) {
	r, err := Evaluate([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, DefaultThreshold)
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := WriteCurves(dir, r)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, ROCPlotFile), filepath.Join(dir, PRPlotFile)}, paths)

	for _, path := range paths {
		f, err := os.Open(path)
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(f)
		f.Close()
		require.NoError(t, err, path)
		assert.Greater(t, cfg.Width, 0)
	}
}

func TestWriteCurvesMissingDir(t *testing.T) {
	r, err := Evaluate([]int{0, 1}, []float64{0.2, 0.7}, DefaultThreshold)
	require.NoError(t, err)
	_, err = WriteCurves(filepath.Join(t.TempDir(), "missing"), r)
	assert.Error(t, err)
}
