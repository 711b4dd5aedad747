// Package server serves the local settings page and API on 127.0.0.1.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yok-tottii/EzCall/internal/logger"
)

//go:embed frontend/*
var frontendFS embed.FS

// Server manages the HTTP server for settings UI
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	listener   net.Listener
	port       int
	config     Config
	log        *logger.Logger
	mu         sync.Mutex
	running    bool
}

// Config holds server configuration
type Config struct {
	Port            int           // Port to listen on (0 = random)
	ReadTimeout     time.Duration // HTTP read timeout
	WriteTimeout    time.Duration // HTTP write timeout
	ShutdownTimeout time.Duration // Graceful shutdown timeout
	Logger          *logger.Logger
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Port:            18765, // Default port
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second, // mic tests hold the request for their duration
		ShutdownTimeout: 5 * time.Second,
	}
}

// New creates a new HTTP server. Handlers may be added to its mux before or
// after Start.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = logger.Discard()
	}

	mux := http.NewServeMux()
	if sub, err := fs.Sub(frontendFS, "frontend"); err == nil {
		mux.Handle("/", http.FileServer(http.FS(sub)))
	} else {
		log.Error("failed to create frontend sub-filesystem: %v", err)
	}

	return &Server{
		mux:    mux,
		port:   config.Port,
		config: config,
		log:    log.Component("server"),
	}
}

// GetMux returns the mux handlers are registered on
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// RegisterAPIHandler registers an API handler at the given path
func (s *Server) RegisterAPIHandler(path string, handler http.Handler) (err error) {
	// ServeMux panics on duplicate or malformed patterns
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to register %s: %v", path, r)
		}
	}()
	s.mux.Handle(path, handler)
	return nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	// Create listener on localhost only
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	s.httpServer = &http.Server{
		Handler:      corsMiddleware(s.mux),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	srv := s.httpServer
	go func() {
		s.log.Info("HTTP server listening on http://127.0.0.1:%d", listener.Addr().(*net.TCPAddr).Port)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error: %v", err)
		}
	}()

	s.running = true
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.running = false
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

// Port returns the port the server is listening on
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the full URL to the server
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.Port())
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// isLocalOrigin reports whether an Origin header names this machine
func isLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// corsMiddleware adds CORS headers for localhost-only access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if !isLocalOrigin(origin) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
