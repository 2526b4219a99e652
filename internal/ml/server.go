package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"forest-cover/internal/features"

	"github.com/rs/zerolog/log"
)

// ModelServer exposes a gateway's model over HTTP so other processes can use
// it through RemoteModel.
type ModelServer struct {
	gateway *Gateway
	server  *http.Server
	started time.Time
}

// PredictionRequest represents the incoming prediction request
type PredictionRequest struct {
	Features  []float64 `json:"features"`
	RequestID string    `json:"request_id,omitempty"`
}

// PredictionResponse represents the prediction result
type PredictionResponse struct {
	Class        int       `json:"class"`
	Label        string    `json:"label"`
	Cached       bool      `json:"cached"`
	RequestID    string    `json:"request_id,omitempty"`
	ModelVersion string    `json:"model_version"`
	Latency      float64   `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthStatus is the body of /health.
type HealthStatus struct {
	Healthy       bool      `json:"healthy"`
	State         LoadState `json:"state"`
	ModelVersion  string    `json:"model_version,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

// NewModelServer creates a new HTTP server for model serving
func NewModelServer(gateway *Gateway, port int) *ModelServer {
	ms := &ModelServer{
		gateway: gateway,
		started: time.Now(),
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      ms.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler returns the server's routes.
func (ms *ModelServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", ms.handlePredict)
	mux.HandleFunc("/health", ms.handleHealth)
	mux.HandleFunc("/model/info", ms.handleModelInfo)
	mux.HandleFunc("/model/importance", ms.handleImportance)
	return mux
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	start := time.Now()

	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	if len(req.Features) != features.VectorLen {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("expected %d features, got %d", features.VectorLen, len(req.Features)),
		})
		return
	}
	var v features.FeatureVector
	copy(v[:], req.Features)

	ctx := WithRequestID(r.Context(), req.RequestID)
	pred, err := ms.gateway.PredictVector(ctx, v)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrRetrieval) {
			status = http.StatusServiceUnavailable
		}
		log.Error().Err(err).Str("request_id", RequestIDFromContext(ctx)).Msg("prediction failed")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	md, _ := ms.gateway.Metadata()
	writeJSON(w, http.StatusOK, PredictionResponse{
		Class:        pred.Code,
		Label:        pred.Label,
		Cached:       pred.Cached,
		RequestID:    RequestIDFromContext(ctx),
		ModelVersion: md.Version,
		Latency:      float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:    time.Now(),
	})
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := ms.Health()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// Health summarizes the gateway state.
func (ms *ModelServer) Health() HealthStatus {
	return GatewayHealth(ms.gateway, ms.started)
}

// GatewayHealth builds a HealthStatus for g.
func GatewayHealth(g *Gateway, started time.Time) HealthStatus {
	h := HealthStatus{
		Healthy:       g.Ready(),
		State:         g.State(),
		UptimeSeconds: time.Since(started).Seconds(),
	}
	if md, ok := g.Metadata(); ok {
		h.ModelVersion = md.Version
	}
	if err := g.Err(); err != nil {
		h.LastError = err.Error()
	}
	return h
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	md, ok := ms.gateway.Metadata()
	if !ok {
		msg := "model not loaded"
		if err := ms.gateway.Err(); err != nil {
			msg = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (ms *ModelServer) handleImportance(w http.ResponseWriter, r *http.Request) {
	stats, ok := ms.gateway.FeatureImportance()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "model does not report feature importance"})
		return
	}
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid top %q", raw)})
			return
		}
		stats = TopFeatures(stats, n)
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
