// Package backend selects the compute device the model runs on.
package backend

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lunaeval/internal/logging"
)

var (
	// ErrUnknown is returned for a selector that names no backend.
	ErrUnknown = errors.New("backend: unknown selector")
	// ErrUnavailable is returned for a backend that is not compiled into this binary.
	ErrUnavailable = errors.New("backend: not available in this build")
)

// Backend provides the dense linear algebra the model layers are built on.
type Backend interface {
	Name() string
	Device() int
	// Workers is the number of samples that may be evaluated concurrently.
	Workers() int
	// Gemm computes c = alpha*op(a)*op(b) + beta*c with row-major operands,
	// op(a) m×k, op(b) k×n and c m×n.
	Gemm(transA, transB bool, m, n, k int, alpha float64, a, b []float64, beta float64, c []float64)
	Close() error
}

// New returns the backend for name on the given device index.
func New(name string, device int, logger *zap.Logger) (Backend, error) {
	logger = logging.OrNop(logger)
	if device < 0 {
		return nil, errors.Errorf("backend: device index must be >= 0 (got %d)", device)
	}
	switch strings.ToLower(name) {
	case "cpu":
		return newCPU(device, logger)
	case "gpu":
		return nil, errors.Wrapf(ErrUnavailable, "gpu device %d", device)
	default:
		return nil, errors.Wrapf(ErrUnknown, "%q", name)
	}
}
