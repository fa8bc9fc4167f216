package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clearledge/coursedrive/internal/config"
	"github.com/clearledge/coursedrive/internal/db"
	"github.com/clearledge/coursedrive/internal/graph"
	"github.com/clearledge/coursedrive/internal/media"
	appMiddleware "github.com/clearledge/coursedrive/internal/middleware"
	"github.com/clearledge/coursedrive/internal/storage"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := graph.NewAppTokenSource(
		ctx, cfg.AzureAuthority, cfg.AzureClientID, cfg.AzureClientSecret,
		cfg.AzureGraphScope, logger,
	)

	// Metadata calls get a short deadline; transfer calls move whole
	// chunks and range reads, so the per-request context bounds them
	// instead of a client timeout.
	metaClient := graph.NewClient(cfg.GraphBaseURL, &http.Client{Timeout: 20 * time.Second}, tokens, logger)
	transferClient := graph.NewClient(cfg.GraphBaseURL, &http.Client{}, tokens, logger)

	resolver := graph.NewSiteResolver(metaClient, cfg.TenantHost, cfg.SitePath, cfg.DriveName, logger)

	store := storage.NewStore(pool)
	signer := media.NewSigner(cfg.StreamSigningSecret, cfg.StreamTTL)

	mediaSvc := media.NewService(
		metaClient, transferClient, resolver, store,
		cfg.OfficeRoot, cfg.FieldRoot, cfg.UploadChunkSize, logger,
	)
	mediaHandler := media.NewHandler(mediaSvc, signer, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Range", "X-Request-ID"},
		ExposedHeaders: []string{"Accept-Ranges", "Content-Range", "Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/creator", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.Use(appMiddleware.RequireTrainer)
			mediaHandler.CreatorRoutes(r)
		})

		r.Group(func(authed chi.Router) {
			authed.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			mediaHandler.VideoRoutes(authed, r)
		})
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Streaming responses for large videos outlive any sane write
		// timeout; rely on IdleTimeout and client disconnects instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
