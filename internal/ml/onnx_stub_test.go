//go:build !onnx

package ml

import (
	"testing"

	"forest-cover/internal/common"

	"github.com/stretchr/testify/assert"
)

func TestDecode_ONNXNotCompiledIn(t *testing.T) {
	_, err := Decode(common.FormatONNX, []byte{0x08, 0x01}, DecodeOptions{})
	assert.ErrorContains(t, err, "-tags onnx")
}
