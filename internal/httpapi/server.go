package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Enriquefft/signal-receiver/internal/logging"
	"github.com/Enriquefft/signal-receiver/internal/state"
)

// StateResponse is the body of GET /state.
type StateResponse struct {
	Name       string         `json:"name"`
	UniqueID   string         `json:"unique_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// Server exposes the receiver's current value, a liveness probe and the
// metrics registry over HTTP.
type Server struct {
	Addr     string
	View     state.View
	Registry *prometheus.Registry
}

// Handler returns the routes served by Run.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/health", handleHealth)
	if s.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully. It returns
// once in-flight requests have finished or the shutdown timeout expires.
func (s *Server) Run(ctx context.Context) error {
	logger := logging.NewLogger("httpapi")

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	logger.Infof("http server listening on %s", ln.Addr())

	stopped := make(chan struct{})
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	close(stopped)
	<-shutdownDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.View == nil {
		http.Error(w, "receiver not running", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StateResponse{
		Name:       s.View.Name(),
		UniqueID:   s.View.UniqueID(),
		State:      s.View.Value(),
		Attributes: s.View.Attributes(),
	})
}

// handleHealth returns 200 OK; used by the status command.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}
