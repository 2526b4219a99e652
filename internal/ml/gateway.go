package ml

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"forest-cover/internal/features"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// GatewayConfig contains configuration for the gateway
type GatewayConfig struct {
	PredictTimeout time.Duration
	CacheSize      int // 0 disables the prediction cache
	CacheTTL       time.Duration
}

// LoadState describes where the one-time model load stands.
type LoadState string

const (
	StatePending LoadState = "pending"
	StateReady   LoadState = "ready"
	StateFailed  LoadState = "failed"
)

// Prediction is the labelled result of one encode-then-predict cycle.
type Prediction struct {
	Code     int                    `json:"code"`
	Label    string                 `json:"label"`
	Features features.FeatureVector `json:"-"`
	Cached   bool                   `json:"cached"`
	Latency  time.Duration          `json:"-"`
}

// Gateway loads a model at most once per process and serves predictions
// from it. The handle is read-only after load, so Predict needs no locking
// beyond the load guard.
type Gateway struct {
	loader  Loader
	config  GatewayConfig
	metrics MetricsInterface

	once  sync.Once
	done  chan struct{}
	model Model
	err   error

	cache *expirable.LRU[features.FeatureVector, int]
}

// NewGateway creates a gateway around loader. Nothing is loaded until the
// first call to Load or Predict.
func NewGateway(loader Loader, config GatewayConfig, metrics MetricsInterface) *Gateway {
	g := &Gateway{
		loader:  loader,
		config:  config,
		metrics: metrics,
		done:    make(chan struct{}),
	}
	if config.CacheSize > 0 {
		g.cache = expirable.NewLRU[features.FeatureVector, int](config.CacheSize, nil, config.CacheTTL)
	}
	return g
}

// Load runs the loader on first call and returns the stored outcome on every
// call after. Cancelling ctx does not abort a load already in progress, so a
// dropped request cannot leave the process without a model.
func (g *Gateway) Load(ctx context.Context) error {
	g.once.Do(func() {
		defer close(g.done)

		start := time.Now()
		model, err := g.runLoader(context.WithoutCancel(ctx))
		elapsed := time.Since(start)

		if err == nil && model == nil {
			err = &RetrievalError{Source: "loader", Err: errors.New("loader returned no model")}
		}
		if err != nil {
			var re *RetrievalError
			if !errors.As(err, &re) {
				err = &RetrievalError{Source: "loader", Err: err}
			}
			g.err = err
			if g.metrics != nil {
				g.metrics.MLModelLoadObserve(false, elapsed.Seconds())
			}
			log.Error().Err(err).Dur("elapsed", elapsed).Msg("model load failed")
			return
		}

		g.model = model
		if g.metrics != nil {
			g.metrics.MLModelLoadObserve(true, elapsed.Seconds())
		}
		md := model.Metadata()
		log.Info().
			Str("version", md.Version).
			Str("format", md.Format).
			Str("source", md.Source).
			Dur("elapsed", elapsed).
			Msg("model loaded")
	})
	return g.err
}

// runLoader calls the loader and reports a panic as a *RetrievalError.
func (g *Gateway) runLoader(ctx context.Context) (model Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			model = nil
			err = &RetrievalError{Source: "loader", Err: fmt.Errorf("loader panicked: %v", r)}
		}
	}()
	return g.loader(ctx)
}

// State reports the load state without blocking.
func (g *Gateway) State() LoadState {
	select {
	case <-g.done:
		if g.err != nil {
			return StateFailed
		}
		return StateReady
	default:
		return StatePending
	}
}

// Ready reports whether a model is loaded and usable.
func (g *Gateway) Ready() bool { return g.State() == StateReady }

// Err returns the load failure, or nil while pending or after success.
func (g *Gateway) Err() error {
	if g.State() == StateFailed {
		return g.err
	}
	return nil
}

// Metadata returns the loaded model's metadata.
func (g *Gateway) Metadata() (ModelMetadata, bool) {
	if !g.Ready() {
		return ModelMetadata{}, false
	}
	return g.model.Metadata(), true
}

// Predict validates, encodes and classifies obs. Input errors are returned
// as *features.FieldError, load failures as *RetrievalError and model
// failures as *PredictionError.
func (g *Gateway) Predict(ctx context.Context, obs features.RawObservation) (Prediction, error) {
	if err := g.Load(ctx); err != nil {
		return Prediction{}, err
	}
	if err := obs.Validate(); err != nil {
		return Prediction{}, err
	}
	return g.PredictVector(ctx, features.Encode(obs))
}

// PredictVector classifies an already encoded vector.
func (g *Gateway) PredictVector(ctx context.Context, v features.FeatureVector) (Prediction, error) {
	if err := g.Load(ctx); err != nil {
		return Prediction{}, err
	}

	start := time.Now()
	if g.cache != nil {
		if code, ok := g.cache.Get(v); ok {
			if g.metrics != nil {
				g.metrics.MLCacheHitsInc()
			}
			// codes are only cached after they resolved
			label, _ := ResolveLabel(code)
			return g.finish(ctx, Prediction{Code: code, Label: label, Features: v, Cached: true}, start), nil
		}
	}

	predictCtx := ctx
	if g.config.PredictTimeout > 0 {
		var cancel context.CancelFunc
		predictCtx, cancel = context.WithTimeout(ctx, g.config.PredictTimeout)
		defer cancel()
	}

	code, err := g.model.Predict(predictCtx, v)
	if err != nil {
		return Prediction{}, g.fail(ctx, err)
	}
	label, err := ResolveLabel(code)
	if err != nil {
		return Prediction{}, g.fail(ctx, err)
	}

	if g.cache != nil {
		g.cache.Add(v, code)
	}
	return g.finish(ctx, Prediction{Code: code, Label: label, Features: v}, start), nil
}

func (g *Gateway) finish(ctx context.Context, p Prediction, start time.Time) Prediction {
	p.Latency = time.Since(start)
	if g.metrics != nil {
		g.metrics.MLPredictionsInc()
		g.metrics.MLLatencyObserve(p.Latency.Seconds())
		g.metrics.MLClassInc(p.Label)
	}
	log.Debug().
		Str("request_id", RequestIDFromContext(ctx)).
		Int("code", p.Code).
		Str("label", p.Label).
		Bool("cached", p.Cached).
		Dur("latency", p.Latency).
		Msg("prediction")
	return p
}

func (g *Gateway) fail(ctx context.Context, err error) error {
	if g.metrics != nil {
		g.metrics.MLFailuresInc()
	}
	log.Warn().Err(err).Str("request_id", RequestIDFromContext(ctx)).Msg("prediction failed")
	var pe *PredictionError
	if errors.As(err, &pe) {
		return err
	}
	return &PredictionError{Err: err}
}

// Close releases the model handle if one was loaded.
func (g *Gateway) Close() error {
	if !g.Ready() {
		return nil
	}
	if err := g.model.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	return nil
}
