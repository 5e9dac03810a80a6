// Package web provides the HTTP server for the song swiper: the /songs
// aggregation endpoint, Spotify sign-in, playlists, export and recommendations.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/justestif/go-song-swiper/internal/auth"
	"github.com/justestif/go-song-swiper/internal/recommend"
	"github.com/justestif/go-song-swiper/internal/songcache"
	"github.com/justestif/go-song-swiper/internal/songs"
)

const (
	// DefaultAddr is the default server address.
	DefaultAddr = "127.0.0.1:8080"

	shutdownTimeout = 10 * time.Second
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr        string
	RedirectURI string

	// Source is the one catalog every /songs request is served from.
	Source songs.Source

	// Cache is optional; nil disables response caching.
	Cache *songcache.Cache

	// Recommender is optional; nil builds one over Source with no generator key.
	Recommender *recommend.Recommender

	// Sessions defaults to an in-memory SessionStore.
	Sessions SessionManager

	// SpotifyCredentials supplies the client id/secret for the sign-in flow.
	SpotifyCredentials auth.Credentials

	// SpotifyAPIURL overrides the Web API base URL (tests only).
	SpotifyAPIURL string

	DefaultLimit int
	Logger       *log.Logger
}

// Server is the HTTP server for the web application.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	logger   *log.Logger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Source == nil {
		return nil, errors.New("web: a catalog source is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = auth.DefaultRedirectURI
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionStore()
	}
	if cfg.SpotifyCredentials == nil {
		cfg.SpotifyCredentials = func() (string, string) { return "", "" }
	}
	if cfg.Recommender == nil {
		cfg.Recommender = recommend.NewRecommender(recommend.NewGemini(nil, ""), cfg.Source,
			recommend.WithLogger(cfg.Logger))
	}

	s := &Server{
		router: chi.NewRouter(),
		logger: cfg.Logger.With("component", "web"),
		handlers: &Handlers{
			source:       cfg.Source,
			cache:        cfg.Cache,
			recommender:  cfg.Recommender,
			sessions:     cfg.Sessions,
			credentials:  cfg.SpotifyCredentials,
			redirectURI:  cfg.RedirectURI,
			spotifyAPI:   cfg.SpotifyAPIURL,
			defaultLimit: cfg.DefaultLimit,
			logger:       cfg.Logger.With("component", "handlers", "catalog", cfg.Source.Name()),
		},
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the router, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.Health)

	s.router.Get("/songs", s.handlers.Songs)
	s.router.Get("/songs/similar", s.handlers.Similar)
	s.router.Post("/recommendations", s.handlers.Recommendations)
	s.router.Post("/liked/export", s.handlers.ExportLiked)
	s.router.Post("/playlists", s.handlers.CreatePlaylist)

	s.router.Get("/auth/login", s.handlers.Login)
	s.router.Get("/auth/session", s.handlers.Session)
	s.router.Get("/callback", s.handlers.Callback)
	s.router.Post("/auth/logout", s.handlers.Logout)
}

// requestLogger writes one line per request through logger.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "url", "http://"+s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and shuts it down gracefully when ctx is cancelled
// or an interrupt signal arrives.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
