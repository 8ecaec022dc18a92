//go:build cgo

package model

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

func initORT(libPath string) error {
	ortOnce.Do(func() {
		if libPath == "" {
			switch runtime.GOOS {
			case "windows":
				libPath = "onnxruntime.dll"
			case "darwin":
				libPath = "libonnxruntime.dylib"
			default:
				libPath = "/usr/lib/libonnxruntime.so"
			}
		}
		ort.SetSharedLibraryPath(libPath)
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ONNX runs a classifier exported to ONNX with a [1, NumFeatures] float
// input and a [1, OutputSize] float output; OutputIndex picks the positive
// class column.
type ONNX struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	n       int
	index   int
}

func OpenONNX(o Options) (Predictor, error) {
	if o.NumFeatures <= 0 {
		return nil, fmt.Errorf("model: onnx needs num_features > 0")
	}
	if o.OutputSize <= 0 {
		o.OutputSize = 1
	}
	if o.OutputIndex < 0 || o.OutputIndex >= o.OutputSize {
		return nil, fmt.Errorf("model: output_index %d outside [0,%d)", o.OutputIndex, o.OutputSize)
	}
	if o.InputName == "" {
		o.InputName = "input"
	}
	if o.OutputName == "" {
		o.OutputName = "output"
	}
	if err := initORT(o.LibPath); err != nil {
		return nil, fmt.Errorf("model: onnxruntime init: %w", err)
	}

	in, err := ort.NewTensor(ort.NewShape(1, int64(o.NumFeatures)), make([]float32, o.NumFeatures))
	if err != nil {
		return nil, fmt.Errorf("model: input tensor: %w", err)
	}
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(o.OutputSize)))
	if err != nil {
		in.Destroy()
		return nil, fmt.Errorf("model: output tensor: %w", err)
	}
	sess, err := ort.NewAdvancedSession(o.Path,
		[]string{o.InputName}, []string{o.OutputName},
		[]ort.Value{in}, []ort.Value{out}, nil)
	if err != nil {
		in.Destroy()
		out.Destroy()
		return nil, fmt.Errorf("model: session %s: %w", o.Path, err)
	}
	return &ONNX{session: sess, input: in, output: out, n: o.NumFeatures, index: o.OutputIndex}, nil
}

func (m *ONNX) Predict(vec []float32) (float64, error) {
	if len(vec) != m.n {
		return 0, fmt.Errorf("model: got %d features, model expects %d", len(vec), m.n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.input.GetData(), vec)
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("model: inference: %w", err)
	}
	return Clamp(float64(m.output.GetData()[m.index]))
}

func (m *ONNX) Close() error {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
	return nil
}
