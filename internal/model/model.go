// Package model hides the probability model behind one call:
// Predict(vector) -> probability in [0,1].
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Predictor scores one feature vector.
type Predictor interface {
	Predict(vec []float32) (float64, error)
	Close() error
}

// ErrUnavailable is returned when a backend is not compiled in.
var ErrUnavailable = errors.New("model: backend unavailable")

// Constant always returns P. Used in dry runs without a trained model and
// in tests.
type Constant struct{ P float64 }

func (c Constant) Predict([]float32) (float64, error) { return Clamp(c.P) }
func (Constant) Close() error                         { return nil }

// Func adapts a function to Predictor.
type Func func(vec []float32) (float64, error)

func (f Func) Predict(vec []float32) (float64, error) {
	p, err := f(vec)
	if err != nil {
		return 0, err
	}
	return Clamp(p)
}
func (Func) Close() error { return nil }

// Clamp bounds p to [0,1] and rejects NaN.
func Clamp(p float64) (float64, error) {
	if math.IsNaN(p) {
		return 0, errors.New("model: NaN probability")
	}
	return math.Min(1, math.Max(0, p)), nil
}

// Options selects a backend.
type Options struct {
	Kind        string // constant | onnx
	Constant    float64
	Path        string
	LibPath     string
	InputName   string
	OutputName  string
	NumFeatures int
	OutputSize  int
	OutputIndex int
}

// Open builds the predictor named by o.Kind.
func Open(o Options) (Predictor, error) {
	switch strings.ToLower(strings.TrimSpace(o.Kind)) {
	case "", "constant":
		return Constant{P: o.Constant}, nil
	case "onnx":
		return OpenONNX(o)
	default:
		return nil, fmt.Errorf("model: unsupported kind %q (use: constant, onnx)", o.Kind)
	}
}
