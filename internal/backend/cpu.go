package backend

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// CPU runs on the host through gonum's native BLAS.
type CPU struct {
	workers  int
	features []string
}

func newCPU(device int, logger *zap.Logger) (*CPU, error) {
	if device != 0 {
		return nil, errors.Errorf("backend: cpu has a single device (got index %d)", device)
	}
	c := &CPU{workers: cpuWorkers(), features: simdFeatures()}
	logger.Info("backend ready",
		zap.String("backend", c.Name()),
		zap.String("cpu", cpuid.CPU.BrandName),
		zap.Strings("simd", c.features),
		zap.Int("workers", c.workers),
	)
	return c, nil
}

func cpuWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func simdFeatures() []string {
	var out []string
	for _, f := range []struct {
		name string
		id   cpuid.FeatureID
	}{
		{"sse4.2", cpuid.SSE42},
		{"avx", cpuid.AVX},
		{"avx2", cpuid.AVX2},
		{"fma3", cpuid.FMA3},
		{"avx512f", cpuid.AVX512F},
		{"asimd", cpuid.ASIMD},
	} {
		if cpuid.CPU.Supports(f.id) {
			out = append(out, f.name)
		}
	}
	return out
}

// Name implements Backend.
func (c *CPU) Name() string { return "cpu" }

// Device implements Backend.
func (c *CPU) Device() int { return 0 }

// Workers implements Backend.
func (c *CPU) Workers() int { return c.workers }

// Gemm implements Backend.
func (c *CPU) Gemm(transA, transB bool, m, n, k int, alpha float64, a, b []float64, beta float64, out []float64) {
	ta, lda := blas.NoTrans, k
	if transA {
		ta, lda = blas.Trans, m
	}
	tb, ldb := blas.NoTrans, n
	if transB {
		tb, ldb = blas.Trans, k
	}
	blas64.Implementation().Dgemm(ta, tb, m, n, k, alpha, a, lda, b, ldb, beta, out, n)
}

// Close implements Backend.
func (c *CPU) Close() error { return nil }
