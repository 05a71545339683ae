package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Presence receives presence signals from an embedding surface.
type Presence interface {
	RecordActivity()
	SetForeground(foreground bool)
	SetDialogOpen(open bool)
}

// RefreshFunc performs an explicit refresh of the current view.
type RefreshFunc func(ctx context.Context) error

// Server provides HTTP endpoints for health monitoring and for the
// presence and refresh signals of a headless deployment.
type Server struct {
	monitor  *Monitor
	presence Presence
	refresh  RefreshFunc
	mux      *http.ServeMux
	server   *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new health server. presence and refresh may be nil;
// their endpoints are then not registered.
func NewServer(monitor *Monitor, port int, presence Presence, refresh RefreshFunc) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor:  monitor,
		presence: presence,
		refresh:  refresh,
		mux:      mux,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())

	if presence != nil {
		mux.HandleFunc("POST /presence/activity", s.handleActivity)
		mux.HandleFunc("POST /presence/visibility", s.handleVisibility)
		mux.HandleFunc("POST /presence/dialog", s.handleDialog)
	}
	if refresh != nil {
		mux.HandleFunc("POST /refresh", s.handleRefresh)
	}

	return s
}

// Handler returns the server's handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listen binds the server's port and returns the bound address. Serve
// uses the listener; calling Listen again returns the same address.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Serve serves on the bound listener, binding first if needed. It returns
// nil after Stop.
func (s *Server) Serve() error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start binds and serves. It returns nil after Stop.
func (s *Server) Start() error {
	return s.Serve()
}

// Stop stops the HTTP server and releases a listener that was never served.
func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth()

	response := map[string]string{"status": string(report.SystemStatus)}
	w.Header().Set("Content-Type", "application/json")

	if report.SystemStatus == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	s.presence.RecordActivity()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	v, ok := boolParam(w, r, "foreground")
	if !ok {
		return
	}
	s.presence.SetForeground(v)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDialog(w http.ResponseWriter, r *http.Request) {
	v, ok := boolParam(w, r, "open")
	if !ok {
		return
	}
	s.presence.SetDialogOpen(v)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresh(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func boolParam(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		http.Error(w, fmt.Sprintf("query parameter %q must be a boolean", name), http.StatusBadRequest)
		return false, false
	}
	return v, true
}
