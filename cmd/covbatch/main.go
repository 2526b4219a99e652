package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forest-cover/internal/artifact"
	"forest-cover/internal/batch"
	"forest-cover/internal/common"
	"forest-cover/internal/logging"
	"forest-cover/internal/ml"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		inPath      = flag.String("in", "-", "Input CSV of observations (- for stdin)")
		outPath     = flag.String("out", "-", "Output CSV (- for stdout)")
		modelPath   = flag.String("model", common.DefaultModelPath, "Path to a model artifact")
		modelFormat = flag.String("format", common.DefaultModelFormat, "Model format: ensemble or onnx")
		predictURL  = flag.String("predict-url", "", "Use a remote predict service instead of a local artifact")
		onnxLib     = flag.String("onnx-lib", common.DefaultONNXLibPath, "Path to the onnxruntime shared library")
		encodeOnly  = flag.Bool("encode-only", false, "Write feature vectors instead of predictions")
		reportPath  = flag.String("report", "", "Write a JSON summary to this path")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	closer := logging.Setup(logging.Options{Level: *logLevel, Format: "console"})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := openInput(*inPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open input")
	}
	defer in.Close()

	out, err := openOutput(*outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open output")
	}
	defer out.Close()

	reader, err := batch.NewReader(in)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read input")
	}

	var results *batch.Results
	if *encodeOnly {
		results, err = batch.Encode(reader, out)
	} else {
		gateway := ml.NewGateway(loader(*modelPath, *modelFormat, *predictURL, *onnxLib), ml.GatewayConfig{
			PredictTimeout: 5 * time.Second,
			CacheSize:      common.DefaultCacheSize,
			CacheTTL:       time.Hour,
		}, nil)
		defer gateway.Close()
		results, err = batch.Predict(ctx, gateway, reader, out)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("batch failed")
	}

	results.PrintSummary(os.Stderr)
	if *reportPath != "" {
		if err := results.WriteJSON(*reportPath); err != nil {
			log.Error().Err(err).Msg("failed to write report")
		}
	}
}

func loader(modelPath, format, predictURL, onnxLib string) ml.Loader {
	if predictURL != "" {
		return ml.RemoteLoader(ml.RemoteConfig{BaseURL: predictURL, Retries: common.DefaultFetchRetries, RetryWait: time.Second})
	}
	return ml.ArtifactLoader("file:"+modelPath, format, func(context.Context, func([]byte) error) ([]byte, error) {
		return artifact.ReadFile(modelPath)
	}, ml.DecodeOptions{ONNXLibPath: onnxLib})
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
