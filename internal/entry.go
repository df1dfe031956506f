// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/starford/qrdirector/internal/api"
	"github.com/starford/qrdirector/internal/apperr"
	"github.com/starford/qrdirector/internal/directory"
	"github.com/starford/qrdirector/internal/mcpserver"
	"github.com/starford/qrdirector/internal/metrics"
	"github.com/starford/qrdirector/internal/qr"
	"github.com/starford/qrdirector/internal/sse"
	"github.com/starford/qrdirector/internal/storage"
)

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func (a *application) configure(opts []Option) (*Config, error) {
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	return a.config, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	cfg, err := app.configure(opts)
	if err != nil {
		return err
	}

	// Initialize structured JSON logger.
	logger := newLogger(cfg)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("base_url", cfg.App.PublicBaseURL()),
		slog.String("links_path", cfg.Links.Path),
		slog.String("logo_path", cfg.QR.LogoPath),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if cfg.Admin.CookieSecret == DefaultCookieSecret {
		logger.Warn("using the default cookie secret; set COOKIE_SECRET")
	}
	if cfg.Admin.Password == "admin" {
		logger.Warn("using the default admin password; set ADMIN_PASSWORD")
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Link directory.
	store := storage.NewFile(app.fs, cfg.Links.Path)
	dir := directory.New(store,
		directory.WithLogger(logger),
		directory.WithFallbackURL(cfg.Links.DefaultURL),
		directory.WithObserver(broker.PublishLinkEvent),
	)
	dir.Load(ctx)

	baseURL := cfg.App.PublicBaseURL()
	composer := qr.NewComposer(app.fs, cfg.QR.LogoPath)
	svc := api.NewService(dir, composer, baseURL)

	var mcpHandler http.Handler
	if cfg.Auth.AuthEnabled() {
		mcpHandler = mcpserver.New(dir, composer, baseURL).Handler()
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.App.Metrics {
		r.Use(metrics.Middleware)
		r.Handle("/metrics", promhttp.Handler())
	}

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(dir, broker))

	api.Mount(r, api.RouterConfig{
		Service:      svc,
		Sessions:     sessions.NewCookieStore([]byte(cfg.Admin.CookieSecret)),
		Admin:        api.Credentials{Username: cfg.Admin.Username, Password: cfg.Admin.Password},
		SecureCookie: cfg.Admin.SecureCookie,
		APIEnabled:   cfg.Auth.AuthEnabled(),
		APIToken:     cfg.Auth.Token,
		Events:       broker,
		MCP:          mcpHandler,
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Open SSE streams only end when the broker closes their channels.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// Migrate loads the links file, upgrades legacy records, restores the
// default link and rewrites the file, then exits.
func Migrate(ctx context.Context, opts ...Option) error {
	app := &application{}
	cfg, err := app.configure(opts)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	dir := directory.New(storage.NewFile(app.fs, cfg.Links.Path),
		directory.WithLogger(logger),
		directory.WithFallbackURL(cfg.Links.DefaultURL),
	)
	rep := dir.Load(ctx)
	if rep.Err != nil {
		return fmt.Errorf("load links: %w", rep.Err)
	}
	if (rep.Changed() || rep.DefaultRestored) && !rep.Rewritten {
		return fmt.Errorf("save links %s: %w", cfg.Links.Path, apperr.ErrPersistence)
	}

	logger.Info("Migration finished",
		slog.String("links_path", cfg.Links.Path),
		slog.Int("links", dir.Len(ctx)),
		slog.Int("upgraded", len(rep.Upgraded)),
		slog.Int("skipped", len(rep.Skipped)),
		slog.Bool("default_restored", rep.DefaultRestored),
		slog.Bool("rewritten", rep.Rewritten))
	return nil
}

// readyHandler reports the link count and the number of open admin event
// streams.
func readyHandler(dir *directory.Directory, broker *sse.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","links":%d,"event_clients":%d}`,
			dir.Len(r.Context()), broker.ClientCount())
	}
}

// ServeMCP exposes the link directory over MCP on stdin/stdout. Logs go to
// stderr so they do not corrupt the protocol stream.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	cfg, err := app.configure(opts)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	slog.SetDefault(logger)

	dir := directory.New(storage.NewFile(app.fs, cfg.Links.Path),
		directory.WithLogger(logger),
		directory.WithFallbackURL(cfg.Links.DefaultURL),
	)
	dir.Load(ctx)

	composer := qr.NewComposer(app.fs, cfg.QR.LogoPath)
	return mcpserver.New(dir, composer, cfg.App.PublicBaseURL()).ServeStdio()
}
