//go:build !onnx

package ml

import "errors"

// Build with -tags onnx to enable the onnxruntime backend.
func newONNXModel(_ []byte, _ string) (Model, error) {
	return nil, errors.New("onnx support not compiled in; rebuild with -tags onnx")
}
