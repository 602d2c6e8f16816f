// Package server exposes the message router, settings and run history over
// HTTP for the browser extension.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/valpere/sheetmentor/internal"
	"github.com/valpere/sheetmentor/internal/message"
	"github.com/valpere/sheetmentor/internal/store"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	maxBodyBytes           = 1 << 20
	defaultRunLimit        = 20
)

// Messages handles a raw tagged message. *message.Router satisfies it.
type Messages interface {
	HandleRaw(ctx context.Context, raw []byte) message.Response
}

// Settings is the key-value store behind /v1/settings.
type Settings interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Keys() ([]string, error)
}

// History is the run store behind /v1/runs.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]internal.BatchRun, error)
	GetRun(ctx context.Context, id string) (*internal.BatchRun, error)
	Stats(ctx context.Context) (*store.RunStats, error)
}

type Config struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type Deps struct {
	Messages Messages
	Settings Settings
	History  History // optional
	Logger   zerolog.Logger
}

type Server struct {
	cfg  Config
	deps Deps
	mux  *chi.Mux
	srv  *http.Server
	log  zerolog.Logger
}

func New(cfg Config, deps Deps) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mux:  chi.NewRouter(),
		log:  deps.Logger.With().Str("component", "server").Logger(),
	}
	s.routes()
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.Use(requestID)
	s.mux.Use(accessLog(s.log))
	s.mux.Use(chimw.Recoverer)
	s.mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	s.mux.Get("/healthz", s.handleHealth)
	s.mux.Route("/v1", func(r chi.Router) {
		r.Post("/messages", s.handleMessage)

		r.Get("/settings", s.handleListSettings)
		r.Get("/settings/{key}", s.handleGetSetting)
		r.Put("/settings/{key}", s.handlePutSetting)
		r.Delete("/settings/{key}", s.handleDeleteSetting)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/stats", s.handleRunStats)
		r.Get("/runs/{id}", s.handleGetRun)

		r.Get("/sheets/detect", s.handleDetect)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("http listening")
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info().Msg("shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
