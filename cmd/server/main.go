// Trivia bot server
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

	"github.com/ashureev/trivia-bot/internal/api"
	"github.com/ashureev/trivia-bot/internal/chat"
	"github.com/ashureev/trivia-bot/internal/command"
	"github.com/ashureev/trivia-bot/internal/config"
	"github.com/ashureev/trivia-bot/internal/identity"
	"github.com/ashureev/trivia-bot/internal/metrics"
	"github.com/ashureev/trivia-bot/internal/middleware"
	"github.com/ashureev/trivia-bot/internal/rpc"
	"github.com/ashureev/trivia-bot/internal/store"
	"github.com/ashureev/trivia-bot/internal/trivia"
	"github.com/ashureev/trivia-bot/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "grpc_enabled", cfg.GRPCEnabled, "prefix", cfg.CommandPrefix)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	// Initialize services.
	m := metrics.New()
	game := trivia.NewService(repo, trivia.WithLogger(logger))
	dispatcher := command.NewDispatcher(game,
		command.WithPrefix(cfg.CommandPrefix),
		command.WithLogger(logger),
		command.WithRecorder(m),
	)
	hub := chat.NewHub()

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo)
	triviaHandler := api.NewTriviaHandler(dispatcher, game)
	chatHandler := chat.NewHandler(hub, dispatcher, cfg.AllowedOrigins)
	chatHandler.SetRecorder(m)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(m.Instrument)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware)

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	triviaHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/channels/{channelID}", chatHandler.ServeHTTP)

	// Serve embedded chat client (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WebSocket connections are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start gRPC server.
	grpcDone := make(chan error, 1)
	if cfg.GRPCEnabled {
		grpcServer, err := rpc.NewServer(":"+cfg.GRPCPort, dispatcher, logger)
		if err != nil {
			slog.Error("Failed to initialize gRPC server", "error", err)
			os.Exit(1)
		}
		go func() {
			grpcDone <- grpcServer.Serve(ctx)
		}()
	} else {
		close(grpcDone)
	}

	// Start HTTP server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not closed by Shutdown.
	hub.CloseAll("server shutting down")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := <-grpcDone; err != nil {
		slog.Error("gRPC server stopped with error", "error", err)
	}

	slog.Info("Server stopped successfully")
}
