package infra

import (
	"context"
	"net"
	"net/http"
	"time"
)

// HTTPServer wraps the stdlib server with this service's timeout profile.
// The write timeout is generous because download and preview stream whole
// clips; the read side only ever sees small JSON bodies and uploads that
// MaxBytesReader already bounds.
type HTTPServer struct {
	srv *http.Server
}

// NewHTTPServer builds a server listening on the configured port.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{srv: &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *HTTPServer) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests, bounded by ctx. Pollers keep running
// independently; only the request surface stops.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
