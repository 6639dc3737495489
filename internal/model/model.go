package model

import (
	"context"

	"lunaeval/internal/backend"
)

// Batch represents a minibatch of features and labels.
type Batch struct {
	Keys   []string
	Inputs [][]float64
	Labels []int
}

// Len returns the number of samples in the batch.
func (b Batch) Len() int { return len(b.Inputs) }

// Model defines the inference functionality required by the evaluator.
type Model interface {
	// Input is the shape every sample tensor must have.
	Input() Shape
	// Predict returns the positive-class probability of every sample, in batch order.
	Predict(ctx context.Context, be backend.Backend, batch Batch) ([]float64, error)
}

// Shape is a channel-major tensor shape.
type Shape struct {
	Channels int `json:"channels"`
	Height   int `json:"height"`
	Width    int `json:"width"`
}

// Size is the number of elements in a tensor of this shape.
func (s Shape) Size() int { return s.Channels * s.Height * s.Width }

func (s Shape) valid() bool { return s.Channels > 0 && s.Height > 0 && s.Width > 0 }

// flat reports whether the tensor is a plain vector.
func (s Shape) flat() bool { return s.Height == 1 && s.Width == 1 }
