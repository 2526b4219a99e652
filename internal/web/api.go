package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"forest-cover/internal/features"
	"forest-cover/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 64 << 10

// PredictResponse is the body of a successful POST /api/predict.
type PredictResponse struct {
	RequestID    string    `json:"request_id"`
	Code         int       `json:"code"`
	Label        string    `json:"label"`
	Cached       bool      `json:"cached"`
	ModelVersion string    `json:"model_version,omitempty"`
	LatencyMs    float64   `json:"latency_ms"`
	Features     []float64 `json:"features,omitempty"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
}

// Schema describes the inputs and outputs of the service.
type Schema struct {
	Domains         []features.Domain `json:"domains"`
	WildernessAreas int               `json:"wilderness_areas"`
	SoilTypes       int               `json:"soil_types"`
	Labels          []ml.Label        `json:"labels"`
	Columns         []string          `json:"columns"`
}

// WSMessage is one server to client websocket frame.
type WSMessage struct {
	Type      string       `json:"type"` // status, prediction or error
	RequestID string       `json:"request_id,omitempty"`
	State     ml.LoadState `json:"state,omitempty"`
	Code      int          `json:"code,omitempty"`
	Label     string       `json:"label,omitempty"`
	Cached    bool         `json:"cached,omitempty"`
	Error     string       `json:"error,omitempty"`
	Field     string       `json:"field,omitempty"`
}

// decodeObservation reads one observation. Omitted fields keep their
// defaults.
func decodeObservation(r io.Reader) (features.RawObservation, error) {
	obs := features.DefaultObservation()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&obs); err != nil {
		return obs, fmt.Errorf("invalid observation: %w", err)
	}
	return obs, nil
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := ml.RequestIDFromContext(ctx)

	obs, err := decodeObservation(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{RequestID: requestID, Error: err.Error()})
		return
	}

	pred, err := s.gateway.Predict(ctx, obs)
	if err != nil {
		writeJSON(w, statusFor(err), errorBody(requestID, err))
		return
	}

	resp := PredictResponse{
		RequestID: requestID,
		Code:      pred.Code,
		Label:     pred.Label,
		Cached:    pred.Cached,
		LatencyMs: float64(pred.Latency.Microseconds()) / 1000,
	}
	if md, ok := s.gateway.Metadata(); ok {
		resp.ModelVersion = md.Version
	}
	if r.URL.Query().Get("features") == "1" {
		resp.Features = pred.Features.Slice()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Schema{
		Domains:         features.Domains[:],
		WildernessAreas: features.WildernessAreas,
		SoilTypes:       features.SoilTypes,
		Labels:          ml.Labels(),
		Columns:         features.Columns[:],
	})
}

// handleWebSocket answers every observation frame with a prediction or an
// error frame. The first frame reports the load state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()
	if s.metrics != nil {
		s.metrics.WSConnectionsAdd(1)
	}
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		if s.metrics != nil {
			s.metrics.WSConnectionsAdd(-1)
		}
	}()

	status := WSMessage{Type: "status", State: s.gateway.State()}
	if err := s.gateway.Err(); err != nil {
		status.Error = err.Error()
	}
	if err := conn.WriteJSON(status); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket client dropped")
			}
			return
		}

		// each frame is its own request
		ctx := ml.WithRequestID(r.Context(), "")
		msg := s.predictFrame(ctx, data)
		if err := conn.WriteMessage(websocket.TextMessage, mustJSON(msg)); err != nil {
			log.Debug().Err(err).Msg("failed to write websocket frame")
			return
		}
	}
}

func (s *Server) predictFrame(ctx context.Context, data []byte) WSMessage {
	requestID := ml.RequestIDFromContext(ctx)
	obs, err := decodeObservation(bytes.NewReader(data))
	if err != nil {
		return WSMessage{Type: "error", RequestID: requestID, Error: err.Error()}
	}
	pred, err := s.gateway.Predict(ctx, obs)
	if err != nil {
		body := errorBody(requestID, err)
		return WSMessage{Type: "error", RequestID: requestID, Error: body.Error, Field: body.Field}
	}
	return WSMessage{
		Type:      "prediction",
		RequestID: requestID,
		Code:      pred.Code,
		Label:     pred.Label,
		Cached:    pred.Cached,
	}
}

func errorBody(requestID string, err error) ErrorResponse {
	body := ErrorResponse{RequestID: requestID, Error: err.Error()}
	var fe *features.FieldError
	if errors.As(err, &fe) {
		body.Field = fe.Field
	}
	return body
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"error","error":"encode failed"}`)
	}
	return data
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
