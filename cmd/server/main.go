// Prayu - grounded AI chat widget server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/api"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/chat"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/config"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/diagnostics"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/gemini"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/guide"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/identity"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/intent"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/middleware"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/observability"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/store"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/stream"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/upstream"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/web"
)

const (
	shutdownTimeout   = 10 * time.Second
	retentionInterval = time.Hour
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "ai_enabled", cfg.AIEnabled())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		return err
	}
	slog.Info("Database connected")

	promptGuide, err := guide.Default()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Upstream completion path.
	opts := []upstream.Option{}
	var recorder *diagnostics.Recorder
	if cfg.Diagnostics.Enabled {
		recorder = diagnostics.NewRecorder(repo, cfg.Diagnostics.QueueSize)
		opts = append(opts, upstream.WithObserver(recorder))
	}
	policy := upstream.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxJitter:   cfg.Retry.MaxJitter,
	}
	requester := upstream.New(&http.Client{Timeout: cfg.Gemini.Timeout}, policy, opts...)
	client := gemini.NewClient(requester, gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	})
	if !client.Configured() {
		slog.Warn("GEMINI_API_KEY not set, chat turns will report a connection failure")
	}

	router := intent.NewRouter()
	registry := chat.NewRegistry(func(key string) *chat.Session {
		return chat.NewSession(key, client, router, chat.Options{
			Timeout: turnTimeout(policy, cfg.Gemini.Timeout),
			Parent:  ctx,
		})
	})
	conns := stream.NewManager()

	// Handlers.
	sessionHandler := api.NewSessionHandler(registry, cfg.MaxRequestBodySize)
	guideHandler := api.NewGuideHandler(promptGuide)
	configHandler := api.NewConfigHandler(api.ClientConfig{
		AIEnabled: cfg.AIEnabled(),
		Model:     client.Model(),
		Grounding: true,
	})
	diagnosticsHandler := api.NewDiagnosticsHandler(repo)
	healthHandler := api.NewHealthHandler(repo, api.DefaultHealthCheckTimeout, registry.Len)
	wsHandler := stream.NewHandler(registry, conns, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	sessionHandler.RegisterRoutes(r)
	guideHandler.RegisterRoutes(r)
	configHandler.RegisterRoutes(r)
	diagnosticsHandler.RegisterRoutes(r)

	r.Get("/ws/session", wsHandler.ServeHTTP)

	// Serve embedded widget (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// No WriteTimeout: WebSocket streams are long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return registry.RunSweeper(gctx, cfg.SweepInterval, cfg.SessionTTL, conns.CloseSession)
	})

	if recorder != nil {
		g.Go(func() error { return recorder.Run(gctx) })
		g.Go(func() error {
			return diagnostics.RunRetention(gctx, repo, retentionInterval, cfg.Diagnostics.Retention)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		conns.CloseAll()
		registry.CloseAll()
		if err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
		return err
	})

	return g.Wait()
}

// turnTimeout is the worst case for one chat turn: every attempt timing out
// plus the longest wait between attempts.
func turnTimeout(p upstream.Policy, perAttempt time.Duration) time.Duration {
	total := time.Duration(0)
	for i := 0; i < p.MaxAttempts; i++ {
		total += perAttempt
		if i < p.MaxAttempts-1 {
			total += p.Delay(i, p.MaxJitter)
		}
	}
	return total
}
