package model

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"lunaeval/internal/backend"
)

// LayerSpec is one entry of a model file's layer stack.
type LayerSpec struct {
	Type    string      `json:"type"`
	In      int         `json:"in,omitempty"`
	Out     int         `json:"out,omitempty"`
	Kernel  int         `json:"kernel,omitempty"`
	Stride  int         `json:"stride,omitempty"`
	Padding int         `json:"padding,omitempty"`
	Weights []float64   `json:"weights,omitempty"`
	Bias    []float64   `json:"bias,omitempty"`
	Layers  []LayerSpec `json:"layers,omitempty"`
}

// File is the on-disk description of a pre-trained network.
type File struct {
	Name          string      `json:"name"`
	Input         Shape       `json:"input"`
	PositiveIndex int         `json:"positive_index"`
	Layers        []LayerSpec `json:"layers"`
}

// Network is a feed-forward layer stack with pre-trained parameters.
type Network struct {
	name     string
	input    Shape
	outputs  int
	positive int
	layers   []layer
}

var _ Model = (*Network)(nil)

// New validates f and builds the network it describes.
func New(f *File) (*Network, error) {
	if f == nil {
		return nil, errors.New("model: nil file")
	}
	if !f.Input.valid() {
		return nil, errors.Wrapf(ErrShape, "input shape %+v", f.Input)
	}
	if len(f.Layers) == 0 {
		return nil, errors.New("model: no layers")
	}
	switch f.Layers[len(f.Layers)-1].Type {
	case TypeSigmoid, TypeSoftmax:
	default:
		return nil, errors.Errorf("model: last layer must be %s or %s, got %q", TypeSigmoid, TypeSoftmax, f.Layers[len(f.Layers)-1].Type)
	}

	layers, err := buildLayers(f.Layers)
	if err != nil {
		return nil, err
	}
	out, err := chainShape(layers, f.Input)
	if err != nil {
		return nil, err
	}
	if !out.flat() {
		return nil, errors.Wrapf(ErrShape, "output %+v is not a vector", out)
	}
	if f.PositiveIndex < 0 || f.PositiveIndex >= out.Channels {
		return nil, errors.Wrapf(ErrShape, "positive_index %d outside %d outputs", f.PositiveIndex, out.Channels)
	}
	return &Network{
		name:     f.Name,
		input:    f.Input,
		outputs:  out.Channels,
		positive: f.PositiveIndex,
		layers:   layers,
	}, nil
}

func buildLayers(specs []LayerSpec) ([]layer, error) {
	layers := make([]layer, 0, len(specs))
	for i, spec := range specs {
		l, err := buildLayer(spec)
		if err != nil {
			return nil, errors.WithMessagef(err, "layer %d (%s)", i, spec.Type)
		}
		layers = append(layers, l)
	}
	return layers, nil
}

func buildLayer(spec LayerSpec) (layer, error) {
	switch spec.Type {
	case TypeConv2D:
		if spec.In <= 0 || spec.Out <= 0 || spec.Kernel <= 0 || spec.Padding < 0 || spec.Stride < 0 {
			return nil, errors.Wrapf(ErrShape, "in=%d out=%d kernel=%d stride=%d padding=%d", spec.In, spec.Out, spec.Kernel, spec.Stride, spec.Padding)
		}
		if err := checkParams(spec, spec.Out*spec.In*spec.Kernel*spec.Kernel, spec.Out); err != nil {
			return nil, err
		}
		stride := spec.Stride
		if stride == 0 {
			stride = 1
		}
		return &conv2d{
			in: spec.In, out: spec.Out, kernel: spec.Kernel, stride: stride, padding: spec.Padding,
			weights: spec.Weights, bias: spec.Bias,
		}, nil
	case TypeDense:
		if spec.In <= 0 || spec.Out <= 0 {
			return nil, errors.Wrapf(ErrShape, "in=%d out=%d", spec.In, spec.Out)
		}
		if err := checkParams(spec, spec.Out*spec.In, spec.Out); err != nil {
			return nil, err
		}
		return &dense{in: spec.In, out: spec.Out, weights: spec.Weights, bias: spec.Bias}, nil
	case TypeMaxPool2D:
		if spec.Kernel <= 0 || spec.Stride < 0 {
			return nil, errors.Wrapf(ErrShape, "kernel=%d stride=%d", spec.Kernel, spec.Stride)
		}
		stride := spec.Stride
		if stride == 0 {
			stride = spec.Kernel
		}
		return &maxPool2D{kernel: spec.Kernel, stride: stride}, nil
	case TypeAvgPool:
		return avgPool{}, nil
	case TypeResidual:
		body, err := buildLayers(spec.Layers)
		if err != nil {
			return nil, err
		}
		return &residual{body: body}, nil
	case TypeReLU:
		return &elementwise{name: TypeReLU, fn: relu}, nil
	case TypeSigmoid:
		return &elementwise{name: TypeSigmoid, fn: sigmoid}, nil
	case TypeSoftmax:
		return &elementwise{name: TypeSoftmax, fn: softmax}, nil
	default:
		return nil, errors.Errorf("model: unknown layer type %q", spec.Type)
	}
}

func checkParams(spec LayerSpec, weights, bias int) error {
	if len(spec.Weights) != weights {
		return errors.Wrapf(ErrShape, "%d weights, want %d", len(spec.Weights), weights)
	}
	if len(spec.Bias) != bias {
		return errors.Wrapf(ErrShape, "%d biases, want %d", len(spec.Bias), bias)
	}
	return nil
}

// Name returns the name recorded in the model file.
func (n *Network) Name() string { return n.name }

// Input implements Model.
func (n *Network) Input() Shape { return n.input }

// Outputs is the width of the network's output vector.
func (n *Network) Outputs() int { return n.outputs }

// Forward runs a single sample through the stack and returns the raw output vector.
func (n *Network) Forward(be backend.Backend, x []float64) ([]float64, error) {
	if len(x) != n.input.Size() {
		return nil, errors.Wrapf(ErrShape, "sample has %d values, model expects %d", len(x), n.input.Size())
	}
	out, _ := runChain(be, n.layers, x, n.input)
	return out, nil
}

// Predict implements Model. Samples are spread over at most be.Workers() goroutines;
// each result lands at its sample's index.
func (n *Network) Predict(ctx context.Context, be backend.Backend, batch Batch) ([]float64, error) {
	probs := make([]float64, batch.Len())
	limit := be.Workers()
	if limit <= 0 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) { once.Do(func() { firstErr = err }) }

	for i := range batch.Inputs {
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := n.Forward(be, batch.Inputs[i])
			if err != nil {
				key := ""
				if i < len(batch.Keys) {
					key = batch.Keys[i]
				}
				fail(errors.WithMessagef(err, "sample %d %s", i, key))
				return
			}
			probs[i] = out[n.positive]
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return probs, nil
}
