package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"forest-cover/internal/artifact"
	"forest-cover/internal/cfg"
	"forest-cover/internal/common"
	"forest-cover/internal/logging"
	"forest-cover/internal/metrics"
	"forest-cover/internal/ml"
	"forest-cover/internal/storage"
	"forest-cover/internal/web"

	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	closer := logging.Setup(logging.Options{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile})
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)
	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	var cache artifact.Cache
	if store != nil {
		cache = store
	}
	fetcher := artifact.NewFetcher(artifact.Config{
		DriveBaseURL: c.DriveBaseURL,
		Timeout:      c.FetchTimeout,
		Retries:      c.FetchRetries,
		RetryWait:    c.FetchRetryWait,
	}, cache, mw)

	gateway := ml.NewGateway(buildLoader(c, fetcher), ml.GatewayConfig{
		PredictTimeout: c.PredictTimeout,
		CacheSize:      c.CacheSize,
		CacheTTL:       c.CacheTTL,
	}, mw)
	defer gateway.Close()

	var wg sync.WaitGroup

	// load eagerly so the first visitor does not wait for the download
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.Load(ctx); err != nil {
			log.Error().Err(err).Msg("model unavailable, serving retrieval error")
		}
	}()

	server := web.NewServer(gateway, mw, c.HTTPPort)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("web server failed")
			cancel()
		}
	}()

	var modelServer *ml.ModelServer
	if c.ModelServerPort != 0 {
		modelServer = ml.NewModelServer(gateway, c.ModelServerPort)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := modelServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("model server failed")
				cancel()
			}
		}()
	}

	log.Info().
		Int("http_port", c.HTTPPort).
		Int("model_server_port", c.ModelServerPort).
		Str("source", c.ModelSource).
		Str("model", c.ModelKey()).
		Msg("forest cover service started")

	waitForShutdown(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop web server")
	}
	if modelServer != nil {
		if err := modelServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to stop model server")
		}
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-shutdownCtx.Done():
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}

// initializeStorage opens the artifact store if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataPath, 0o755); err != nil {
		log.Warn().Err(err).Msg("cannot create data path, continuing without artifact cache")
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without artifact cache")
		return nil
	}
	return store
}

// buildLoader returns the loader for the configured model source.
func buildLoader(c cfg.Settings, fetcher *artifact.Fetcher) ml.Loader {
	if c.ModelSource == common.SourceRemote {
		return ml.RemoteLoader(ml.RemoteConfig{
			BaseURL:   c.PredictURL,
			Timeout:   c.PredictTimeout,
			Retries:   c.FetchRetries,
			RetryWait: c.FetchRetryWait,
		})
	}

	src := artifactSource(c)
	return ml.ArtifactLoader(src.Key(), c.ModelFormat, func(ctx context.Context, accept func([]byte) error) ([]byte, error) {
		return fetcher.Fetch(ctx, src, accept)
	}, ml.DecodeOptions{ONNXLibPath: c.ONNXLibPath})
}

func artifactSource(c cfg.Settings) artifact.Source {
	switch c.ModelSource {
	case common.SourceURL:
		return artifact.Source{Kind: common.SourceURL, Location: c.ModelURL}
	case common.SourceFile:
		return artifact.Source{Kind: common.SourceFile, Location: c.ModelPath}
	default:
		return artifact.Source{Kind: common.SourceDrive, Location: c.ModelFileID}
	}
}

// waitForShutdown blocks until SIGINT, SIGTERM or ctx is cancelled.
func waitForShutdown(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}
	log.Info().Msg("shutting down gracefully...")
}
