// Package ml loads the cover type classifier once per process and serves
// predictions from it.
//
// A Model is any classifier that maps a features.FeatureVector to a class
// code. Three backends exist: a JSON tree ensemble evaluated in process, an
// ONNX session (build tag onnx) and a remote predict service. The Gateway
// owns the single load of whichever backend is configured and turns raw
// observations into labelled predictions.
package ml

import (
	"context"
	"fmt"

	"forest-cover/internal/common"
	"forest-cover/internal/features"
)

// Model is a loaded classifier handle. Implementations must be safe for
// concurrent use and must not mutate themselves in Predict.
type Model interface {
	Predict(ctx context.Context, v features.FeatureVector) (int, error)
	Metadata() ModelMetadata
	Close() error
}

// Loader obtains a Model. Errors should be *RetrievalError.
type Loader func(ctx context.Context) (Model, error)

// MetricsInterface defines metrics methods needed by the gateway
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLCacheHitsInc()
	MLClassInc(label string)
	MLModelLoadObserve(ok bool, seconds float64)
}

// DecodeOptions carries backend specific settings for Decode.
type DecodeOptions struct {
	ONNXLibPath string
}

// Decode builds a Model from a serialized artifact.
func Decode(format string, data []byte, opts DecodeOptions) (Model, error) {
	switch format {
	case common.FormatEnsemble:
		return ParseEnsemble(data)
	case common.FormatONNX:
		return newONNXModel(data, opts.ONNXLibPath)
	default:
		return nil, fmt.Errorf("unknown model format %q", format)
	}
}
