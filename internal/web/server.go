// Package web provides the node's HTTP status server.
package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/sweeney/smarthome-node/internal/status"
)

// Options configures the optional parts of the server.
type Options struct {
	// Metrics, if set, is served on /metrics.
	Metrics http.Handler

	// AllowedOrigins enables CORS for dashboards hosted elsewhere.
	AllowedOrigins []string

	// AccessLog, if set, receives one Apache common log line per request.
	AccessLog io.Writer
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	s := &Server{tracker: tracker}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet, http.MethodHead)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	var h http.Handler = r
	if len(opts.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler(h)
	}
	if opts.AccessLog != nil {
		h = handlers.LoggingHandler(opts.AccessLog, h)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
