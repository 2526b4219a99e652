package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"forest-cover/internal/features"
	"forest-cover/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// elevationModel answers Krummholz above 3000m and Lodgepole Pine below.
type elevationModel struct {
	code int // when set, returned for every vector
}

func (m elevationModel) Predict(ctx context.Context, v features.FeatureVector) (int, error) {
	if m.code != 0 {
		return m.code, nil
	}
	if v[0] > 3000 {
		return int(ml.Krummholz), nil
	}
	return int(ml.LodgepolePine), nil
}

func (m elevationModel) Metadata() ml.ModelMetadata {
	return ml.ModelMetadata{Version: "test-v1", Format: "test"}
}

func (m elevationModel) Close() error { return nil }

type recordingMetrics struct {
	mu       sync.Mutex
	requests map[string]int
	ws       float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{requests: make(map[string]int)}
}

func (m *recordingMetrics) HTTPRequestInc(route string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[route+" "+http.StatusText(code)]++
}

func (m *recordingMetrics) WSConnectionsAdd(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ws += v
}

func (m *recordingMetrics) count(route string, code int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[route+" "+http.StatusText(code)]
}

func readyServer(t *testing.T, model ml.Model) *Server {
	t.Helper()
	g := ml.NewGateway(func(ctx context.Context) (ml.Model, error) { return model, nil },
		ml.GatewayConfig{PredictTimeout: time.Second}, nil)
	require.NoError(t, g.Load(context.Background()))
	return NewServer(g, nil, 0)
}

func failedServer(t *testing.T) *Server {
	t.Helper()
	g := ml.NewGateway(func(ctx context.Context) (ml.Model, error) {
		return nil, &ml.RetrievalError{Source: "drive:abc", Err: errors.New("download quota exceeded")}
	}, ml.GatewayConfig{}, nil)
	require.Error(t, g.Load(context.Background()))
	return NewServer(g, nil, 0)
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestForm_Get(t *testing.T) {
	s := readyServer(t, elevationModel{})

	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Model loaded (test-v1)")
	assert.Contains(t, body, `name="elevation"`)
	assert.Contains(t, body, `min="2000" max="4000" step="1" value="2600"`)
	assert.Contains(t, body, "Wilderness area 4")
	assert.Contains(t, body, "Soil type 40")
	assert.NotContains(t, body, "Soil type 41")
	assert.NotContains(t, body, `id="result"`)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestForm_Submit(t *testing.T) {
	s := readyServer(t, elevationModel{})

	rec := do(t, s.Handler(), postForm(url.Values{
		"elevation":       {"3500"},
		"wilderness_area": {"3"},
		"soil_type":       {"22"},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<strong>Krummholz</strong> (class 7)")
	// the submitted values are kept on the re-rendered form
	assert.Contains(t, body, `value="3500"`)
	assert.Contains(t, body, `<option value="22" selected>Soil type 22</option>`)
	assert.Contains(t, body, `<option value="3" selected>Wilderness area 3</option>`)
}

func TestForm_SubmitDefaults(t *testing.T) {
	s := readyServer(t, elevationModel{})

	rec := do(t, s.Handler(), postForm(url.Values{}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>Lodgepole Pine</strong> (class 2)")
}

func TestForm_SubmitInvalid(t *testing.T) {
	s := readyServer(t, elevationModel{})

	tests := []struct {
		name   string
		values url.Values
		want   string
	}{
		{"out of range", url.Values{"elevation": {"9999"}}, "elevation: 9999 outside [2000, 4000]"},
		{"not a number", url.Values{"slope": {"steep"}}, "slope: &#34;steep&#34; is not a number"},
		{"bad soil", url.Values{"soil_type": {"41"}}, "soil_type"},
		{"soil not integer", url.Values{"soil_type": {"x"}}, "soil_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), postForm(tt.values))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), `id="error"`)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.NotContains(t, rec.Body.String(), `id="result"`)
		})
	}
}

func TestForm_FailedLoadBlocksEveryPage(t *testing.T) {
	s := failedServer(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/", nil),
		postForm(url.Values{"elevation": {"3000"}}),
	} {
		rec := do(t, s.Handler(), req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Model could not be retrieved")
		assert.Contains(t, body, "download quota exceeded")
		assert.Contains(t, body, "<fieldset disabled")
		assert.NotContains(t, body, `id="result"`)
	}
}

func TestForm_Pending(t *testing.T) {
	release := make(chan struct{})
	g := ml.NewGateway(func(ctx context.Context) (ml.Model, error) {
		<-release
		return elevationModel{}, nil
	}, ml.GatewayConfig{}, nil)
	defer close(release)
	go g.Load(context.Background())

	s := NewServer(g, nil, 0)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Model is loading")
	assert.Contains(t, rec.Body.String(), `http-equiv="refresh"`)
}

func TestAPIPredict(t *testing.T) {
	s := readyServer(t, elevationModel{})

	req := httptest.NewRequest(http.MethodPost, "/api/predict?features=1",
		strings.NewReader(`{"elevation": 3200, "wilderness_area": 1, "soil_type": 29}`))
	req.Header.Set(requestIDHeader, "req-42")
	rec := do(t, s.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, int(ml.Krummholz), resp.Code)
	assert.Equal(t, "Krummholz", resp.Label)
	assert.Equal(t, "test-v1", resp.ModelVersion)
	require.Len(t, resp.Features, features.VectorLen)
	assert.Equal(t, 3200.0, resp.Features[0])
	assert.Equal(t, 1.0, resp.Features[features.WildernessOffset])
	assert.Equal(t, 1.0, resp.Features[features.SoilOffset+28])
}

func TestAPIPredict_FeaturesOmittedByDefault(t *testing.T) {
	s := readyServer(t, elevationModel{})

	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"features"`)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAPIPredict_Errors(t *testing.T) {
	ready := readyServer(t, elevationModel{})
	broken := readyServer(t, elevationModel{code: 9})
	failed := failedServer(t)

	tests := []struct {
		name   string
		server *Server
		body   string
		status int
		field  string
	}{
		{"malformed json", ready, `{"elevation":`, http.StatusBadRequest, ""},
		{"unknown field", ready, `{"altitude": 3000}`, http.StatusBadRequest, ""},
		{"out of range", ready, `{"aspect": 400}`, http.StatusUnprocessableEntity, "aspect"},
		{"bad wilderness", ready, `{"wilderness_area": 5}`, http.StatusUnprocessableEntity, "wilderness_area"},
		{"unexpected class", broken, `{}`, http.StatusInternalServerError, ""},
		{"model unavailable", failed, `{}`, http.StatusServiceUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, tt.server.Handler(), httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestSchema(t *testing.T) {
	s := readyServer(t, elevationModel{})

	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var schema Schema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.Len(t, schema.Domains, features.ContinuousFields)
	assert.Equal(t, "elevation", schema.Domains[0].Key)
	assert.Equal(t, 4, schema.WildernessAreas)
	assert.Equal(t, 40, schema.SoilTypes)
	require.Len(t, schema.Labels, 7)
	assert.Equal(t, "Spruce/Fir", schema.Labels[0].Name)
	assert.Len(t, schema.Columns, features.VectorLen)
}

func TestHealth(t *testing.T) {
	rec := do(t, readyServer(t, elevationModel{}).Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"ready"`)

	rec = do(t, failedServer(t).Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "download quota exceeded")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, readyServer(t, elevationModel{}).Handler(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestMetrics(t *testing.T) {
	s := readyServer(t, elevationModel{})
	m := newRecordingMetrics()
	s.metrics = m
	h := s.Handler()

	do(t, h, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`)))
	do(t, h, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`)))
	do(t, h, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"slope": 90}`)))
	do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 2, m.count("/api/predict", http.StatusOK))
	assert.Equal(t, 1, m.count("/api/predict", http.StatusUnprocessableEntity))
	assert.Equal(t, 1, m.count("/", http.StatusOK))
}

func dialWS(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestWebSocket(t *testing.T) {
	s := readyServer(t, elevationModel{})
	m := newRecordingMetrics()
	s.metrics = m
	conn, cleanup := dialWS(t, s)
	defer cleanup()

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "status", msg.Type)
	assert.Equal(t, ml.StateReady, msg.State)

	require.NoError(t, conn.WriteJSON(map[string]any{"elevation": 3100, "soil_type": 12}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "prediction", msg.Type)
	assert.Equal(t, "Krummholz", msg.Label)
	assert.NotEmpty(t, msg.RequestID)
	first := msg.RequestID

	require.NoError(t, conn.WriteJSON(map[string]any{"hillshade_noon": 300}))
	msg = WSMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "hillshade_noon", msg.Field)
	assert.NotEqual(t, first, msg.RequestID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg = WSMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "invalid observation")

	m.mu.Lock()
	assert.Equal(t, 1.0, m.ws)
	m.mu.Unlock()
}

func TestWebSocket_FailedLoad(t *testing.T) {
	conn, cleanup := dialWS(t, failedServer(t))
	defer cleanup()

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "status", msg.Type)
	assert.Equal(t, ml.StateFailed, msg.State)
	assert.Contains(t, msg.Error, "download quota exceeded")

	require.NoError(t, conn.WriteJSON(map[string]any{}))
	msg = WSMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "retrieve model")
}

func TestStop(t *testing.T) {
	s := readyServer(t, elevationModel{})
	// never started
	assert.NoError(t, s.Stop(context.Background()))
}
