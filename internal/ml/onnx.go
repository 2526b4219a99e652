//go:build onnx

package ml

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"forest-cover/internal/common"
	"forest-cover/internal/features"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// onnxModel runs a classifier exported with a single float32 input of shape
// [1, VectorLen] and an int64 label as its first output.
type onnxModel struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	metadata   ModelMetadata
}

func newONNXModel(data []byte, libPath string) (Model, error) {
	if libPath == "" {
		libPath = common.DefaultONNXLibPath
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(data)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected 1 input, got %d", len(inputs))
	}
	if len(outputs) == 0 {
		return nil, errors.New("onnx: model has no outputs")
	}
	dims := inputs[0].Dimensions
	if len(dims) != 2 {
		return nil, fmt.Errorf("onnx: expected 2D input tensor, got %v", dims)
	}
	if width := dims[1]; width != -1 && width != features.VectorLen {
		return nil, fmt.Errorf("%w: model input width %d, encoder produces %d",
			ErrColumnMismatch, width, features.VectorLen)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		data,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &onnxModel{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		metadata: ModelMetadata{
			Version: "onnx",
			Format:  common.FormatONNX,
		},
	}, nil
}

func (m *onnxModel) Predict(ctx context.Context, v features.FeatureVector) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	in, err := ort.NewTensor(ort.NewShape(1, features.VectorLen), v.Float32())
	if err != nil {
		return 0, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		return 0, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return 0, fmt.Errorf("onnx: inference failed: %w", err)
	}
	return int(out.GetData()[0]), nil
}

func (m *onnxModel) Metadata() ModelMetadata { return m.metadata }

func (m *onnxModel) Close() error {
	return m.session.Destroy()
}
