// Package devserver is a local implementation of the capsule REST API for
// development and end-to-end testing of the client.
package devserver

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/wizard"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Options configures the development server.
type Options struct {
	Version      string
	Bind         string
	Port         int
	MaxFileBytes int64
	Logger       *slog.Logger

	// Clock overrides time.Now (tests).
	Clock func() time.Time
}

// NewHandler builds the routed handler without binding a listener.
func NewHandler(database *sql.DB, opts Options) http.Handler {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(fmt.Sprintf("failed to create template sub-FS: %v", err))
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to create static sub-FS: %v", err))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	maxFileBytes := opts.MaxFileBytes
	if maxFileBytes <= 0 {
		maxFileBytes = capsule.MaxFileBytes
	}

	metrics := NewMetrics()
	h := &Handlers{
		db:           database,
		validator:    wizard.NewValidator(nil, maxFileBytes, clock),
		renderer:     NewRenderer(templateSub, opts.Version, logger),
		metrics:      metrics,
		logger:       logger,
		maxFileBytes: maxFileBytes,
		now:          clock,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", h.HandleLogin)
	mux.HandleFunc("GET /api/friends", h.requireToken(h.HandleFriends))
	mux.HandleFunc("POST /api/capsule/create", h.requireToken(h.HandleCreate))
	mux.HandleFunc("GET /api/capsules", h.requireToken(h.HandleListCapsules))
	mux.HandleFunc("GET /api/capsules/shared", h.requireToken(h.HandleListShared))
	mux.HandleFunc("PUT /api/capsules/share/{id}/status", h.requireToken(h.HandleShareStatus))
	mux.HandleFunc("POST /api/capsules/{id}/accept", h.requireToken(h.HandleAccept))

	mux.HandleFunc("GET /capsules/{id}", h.HandleCapsule)
	mux.HandleFunc("GET /capsules/{id}/images/{n}", h.HandleImage)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(mux)
}

// NewServer creates and configures the HTTP server.
func NewServer(database *sql.DB, opts Options) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Bind, opts.Port),
		Handler:           NewHandler(database, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("development API running", "url", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
