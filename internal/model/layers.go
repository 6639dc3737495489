package model

import (
	"math"

	"github.com/pkg/errors"

	"lunaeval/internal/backend"
)

// ErrShape reports a parameter or tensor shape that does not fit the layer stack.
var ErrShape = errors.New("model: shape mismatch")

// Layer types understood by the model file.
const (
	TypeConv2D    = "conv2d"
	TypeReLU      = "relu"
	TypeMaxPool2D = "maxpool2d"
	TypeAvgPool   = "avgpool"
	TypeDense     = "dense"
	TypeResidual  = "residual"
	TypeSigmoid   = "sigmoid"
	TypeSoftmax   = "softmax"
)

type layer interface {
	// outShape checks the layer accepts in and returns the shape it produces.
	outShape(in Shape) (Shape, error)
	forward(be backend.Backend, x []float64, in Shape) []float64
}

type conv2d struct {
	in, out, kernel, stride, padding int
	weights, bias                    []float64
}

func (l *conv2d) outShape(in Shape) (Shape, error) {
	if in.Channels != l.in {
		return Shape{}, errors.Wrapf(ErrShape, "conv2d: %d input channels, layer expects %d", in.Channels, l.in)
	}
	h := (in.Height+2*l.padding-l.kernel)/l.stride + 1
	w := (in.Width+2*l.padding-l.kernel)/l.stride + 1
	if in.Height+2*l.padding < l.kernel || in.Width+2*l.padding < l.kernel {
		return Shape{}, errors.Wrapf(ErrShape, "conv2d: kernel %d larger than padded %dx%d input", l.kernel, in.Height, in.Width)
	}
	return Shape{Channels: l.out, Height: h, Width: w}, nil
}

func (l *conv2d) forward(be backend.Backend, x []float64, in Shape) []float64 {
	out, _ := l.outShape(in)
	cols := l.im2col(x, in, out)
	spatial := out.Height * out.Width
	res := make([]float64, l.out*spatial)
	for o := 0; o < l.out; o++ {
		row := res[o*spatial : (o+1)*spatial]
		for i := range row {
			row[i] = l.bias[o]
		}
	}
	be.Gemm(false, false, l.out, spatial, l.in*l.kernel*l.kernel, 1, l.weights, cols, 1, res)
	return res
}

// im2col lays every receptive field out as a column so the convolution becomes one GEMM.
// Rows are ordered (channel, ky, kx), matching the weight layout [out][in][ky][kx].
func (l *conv2d) im2col(x []float64, in, out Shape) []float64 {
	spatial := out.Height * out.Width
	cols := make([]float64, l.in*l.kernel*l.kernel*spatial)
	row := 0
	for c := 0; c < l.in; c++ {
		plane := x[c*in.Height*in.Width : (c+1)*in.Height*in.Width]
		for ky := 0; ky < l.kernel; ky++ {
			for kx := 0; kx < l.kernel; kx++ {
				dst := cols[row*spatial : (row+1)*spatial]
				for oy := 0; oy < out.Height; oy++ {
					iy := oy*l.stride - l.padding + ky
					for ox := 0; ox < out.Width; ox++ {
						ix := ox*l.stride - l.padding + kx
						if iy < 0 || iy >= in.Height || ix < 0 || ix >= in.Width {
							continue
						}
						dst[oy*out.Width+ox] = plane[iy*in.Width+ix]
					}
				}
				row++
			}
		}
	}
	return cols
}

type maxPool2D struct {
	kernel, stride int
}

func (l *maxPool2D) outShape(in Shape) (Shape, error) {
	if in.Height < l.kernel || in.Width < l.kernel {
		return Shape{}, errors.Wrapf(ErrShape, "maxpool2d: kernel %d larger than %dx%d input", l.kernel, in.Height, in.Width)
	}
	return Shape{
		Channels: in.Channels,
		Height:   (in.Height-l.kernel)/l.stride + 1,
		Width:    (in.Width-l.kernel)/l.stride + 1,
	}, nil
}

func (l *maxPool2D) forward(_ backend.Backend, x []float64, in Shape) []float64 {
	out, _ := l.outShape(in)
	res := make([]float64, out.Size())
	for c := 0; c < in.Channels; c++ {
		plane := x[c*in.Height*in.Width:]
		dst := res[c*out.Height*out.Width:]
		for oy := 0; oy < out.Height; oy++ {
			for ox := 0; ox < out.Width; ox++ {
				best := math.Inf(-1)
				for ky := 0; ky < l.kernel; ky++ {
					for kx := 0; kx < l.kernel; kx++ {
						v := plane[(oy*l.stride+ky)*in.Width+ox*l.stride+kx]
						if v > best {
							best = v
						}
					}
				}
				dst[oy*out.Width+ox] = best
			}
		}
	}
	return res
}

// avgPool averages every channel down to a single value.
type avgPool struct{}

func (avgPool) outShape(in Shape) (Shape, error) {
	return Shape{Channels: in.Channels, Height: 1, Width: 1}, nil
}

func (avgPool) forward(_ backend.Backend, x []float64, in Shape) []float64 {
	area := in.Height * in.Width
	res := make([]float64, in.Channels)
	for c := range res {
		sum := 0.0
		for _, v := range x[c*area : (c+1)*area] {
			sum += v
		}
		res[c] = sum / float64(area)
	}
	return res
}

type dense struct {
	in, out       int
	weights, bias []float64
}

func (l *dense) outShape(in Shape) (Shape, error) {
	if in.Size() != l.in {
		return Shape{}, errors.Wrapf(ErrShape, "dense: %d inputs, layer expects %d", in.Size(), l.in)
	}
	return Shape{Channels: l.out, Height: 1, Width: 1}, nil
}

func (l *dense) forward(be backend.Backend, x []float64, _ Shape) []float64 {
	res := append([]float64(nil), l.bias...)
	be.Gemm(false, false, l.out, 1, l.in, 1, l.weights, x, 1, res)
	return res
}

// residual computes relu(x + f(x)).
type residual struct {
	body []layer
}

func (l *residual) outShape(in Shape) (Shape, error) {
	out, err := chainShape(l.body, in)
	if err != nil {
		return Shape{}, errors.WithMessage(err, "residual")
	}
	if out != in {
		return Shape{}, errors.Wrapf(ErrShape, "residual: body maps %+v to %+v", in, out)
	}
	return in, nil
}

func (l *residual) forward(be backend.Backend, x []float64, in Shape) []float64 {
	y, _ := runChain(be, l.body, x, in)
	for i := range y {
		y[i] = math.Max(0, y[i]+x[i])
	}
	return y
}

type elementwise struct {
	name string
	fn   func([]float64) []float64
}

func (l *elementwise) outShape(in Shape) (Shape, error) { return in, nil }

func (l *elementwise) forward(_ backend.Backend, x []float64, _ Shape) []float64 {
	return l.fn(x)
}

func relu(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			out[i] = v
		}
	}
	return out
}

func sigmoid(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if v >= 0 {
			out[i] = 1 / (1 + math.Exp(-v))
		} else {
			e := math.Exp(v)
			out[i] = e / (1 + e)
		}
	}
	return out
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		exp := math.Exp(v - maxLogit)
		out[i] = exp
		sum += exp
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}

func chainShape(layers []layer, in Shape) (Shape, error) {
	shape := in
	for i, l := range layers {
		next, err := l.outShape(shape)
		if err != nil {
			return Shape{}, errors.WithMessagef(err, "layer %d", i)
		}
		if !next.valid() {
			return Shape{}, errors.Wrapf(ErrShape, "layer %d produces empty tensor %+v", i, next)
		}
		shape = next
	}
	return shape, nil
}

func runChain(be backend.Backend, layers []layer, x []float64, in Shape) ([]float64, Shape) {
	shape := in
	for _, l := range layers {
		next, _ := l.outShape(shape)
		x = l.forward(be, x, shape)
		shape = next
	}
	return x, shape
}
