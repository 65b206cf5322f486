// Package callback receives the OAuth2 authorization redirect on a loopback
// address, so the CLI login does not need the code to be pasted by hand.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/florianilch/allegro-rest/internal/observability/middleware"
)

// Result is the outcome of one authorization redirect.
type Result struct {
	Code string
	Err  error
}

// Server listens on the host and path of a loopback redirect URI.
type Server struct {
	addr    string
	path    string
	results chan Result
	ready   atomic.Bool

	server   *http.Server
	listener net.Listener
}

// IsLoopback reports whether redirectURI is a plain-HTTP URI on this machine,
// the only kind the server can receive.
func IsLoopback(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// New creates a server for redirectURI. It does not listen until Start.
func New(redirectURI string) (*Server, error) {
	if !IsLoopback(redirectURI) {
		return nil, fmt.Errorf("redirect URI %q is not a loopback http URI", redirectURI)
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, err
	}

	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	return &Server{
		addr:    net.JoinHostPort(u.Hostname(), port),
		path:    path,
		results: make(chan Result, 1),
	}, nil
}

// Results delivers the first authorization redirect received.
func (s *Server) Results() <-chan Result {
	return s.results
}

// Addr returns the listening address once started, the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", livenessHandler())
	mux.HandleFunc("GET /readyz", readinessHandler(&s.ready))
	mux.HandleFunc("GET "+s.path, s.redirectHandler)

	return chain(mux,
		s.recoverer,
		middleware.RequestIDGeneration,
		middleware.Logging(slog.Default(), "code", "state"),
		middleware.TraceContextExtraction,
		middleware.RequestIDPropagation,
	)
}

// Start listens and serves in the background. Listening errors are returned
// directly; later serve errors are sent on the returned channel.
func (s *Server) Start(ctx context.Context) (<-chan error, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.ready.Store(true)
	slog.DebugContext(ctx, "callback server listening", "addr", s.Addr(), "path", s.path)

	return errCh, nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// redirectHandler answers the browser and publishes the code or the error
// Allegro reported. Only the first result is kept.
func (s *Server) redirectHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	if errCode := query.Get("error"); errCode != "" {
		middleware.SetLogAttrs(r.Context(), slog.String("oauth_error", errCode))
		s.publish(Result{Err: fmt.Errorf("authorization failed: %s: %s", errCode, query.Get("error_description"))})
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintf(w, "Authorization failed: %s\n", errCode)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	s.publish(Result{Code: code})
	_, _ = fmt.Fprintln(w, "Authorization complete. You can close this window and return to the terminal.")
}

func (s *Server) publish(res Result) {
	select {
	case s.results <- res:
	default:
	}
}
