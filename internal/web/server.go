// Package web serves the cover type form, its JSON API and a websocket for
// live predictions while the sliders move.
//
// Every request goes through the shared ml.Gateway. When the one-time model
// load has failed, every page answers 503 with the retrieval error and the
// form is rendered disabled.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"forest-cover/internal/features"
	"forest-cover/internal/ml"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// MetricsInterface is the HTTP side of metrics.MetricsWrapper.
type MetricsInterface interface {
	HTTPRequestInc(route string, code int)
	WSConnectionsAdd(v float64)
}

// Server is the web front end of the service.
type Server struct {
	gateway   *ml.Gateway
	metrics   MetricsInterface
	server    *http.Server
	page      *template.Template
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	started   time.Time
	isRunning bool
	mu        sync.Mutex
}

// NewServer creates the web server on port. metrics may be nil.
func NewServer(gateway *ml.Gateway, metrics MetricsInterface, port int) *Server {
	s := &Server{
		gateway:  gateway,
		metrics:  metrics,
		page:     template.Must(template.New("page").Funcs(pageFuncs).Parse(pageTemplate)),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]bool),
		started:  time.Now(),
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.countRequests)

	r.HandleFunc("/", s.handleForm).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/api/predict", s.handleAPIPredict).Methods(http.MethodPost)
	r.HandleFunc("/api/schema", s.handleSchema).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// Start serves until Stop is called. It blocks.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("web server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	log.Info().Str("address", s.server.Addr).Msg("starting web server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes websocket clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return nil
	}

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown web server")
		return err
	}
	s.isRunning = false
	log.Info().Msg("web server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := ml.GatewayHealth(s.gateway, s.started)
	status := http.StatusOK
	if health.State == ml.StateFailed {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// statusFor maps a gateway error to the HTTP status it is reported with.
func statusFor(err error) int {
	var fe *features.FieldError
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ml.ErrRetrieval):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
