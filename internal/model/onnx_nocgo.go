//go:build !cgo

package model

import "fmt"

// OpenONNX needs cgo for onnxruntime.
func OpenONNX(Options) (Predictor, error) {
	return nil, fmt.Errorf("%w: onnx requires a cgo build", ErrUnavailable)
}
