package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/userstack/userstack/internal/api"
	"github.com/userstack/userstack/internal/auth"
	"github.com/userstack/userstack/internal/cache"
	"github.com/userstack/userstack/internal/config"
	"github.com/userstack/userstack/internal/image"
	"github.com/userstack/userstack/internal/pipeline"
	"github.com/userstack/userstack/internal/push"
	"github.com/userstack/userstack/internal/store"
	"github.com/userstack/userstack/internal/ws"
)

// cacheSweepInterval controls how often expired cache entries are physically removed.
const cacheSweepInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("userstack-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"store_path", cfg.Server.Store.Path,
		"cache_ttl", cfg.Server.Cache.TTL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// SQLite record store.
	st, err := store.Open(cfg.Server.Store.Path)
	if err != nil {
		slog.Error("failed to open record store", "path", cfg.Server.Store.Path, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	// Collection cache with background expiry sweep.
	mem := cache.NewMemory()
	go mem.Run(ctx, cacheSweepInterval)

	// Derived-image admission.
	imgs, err := image.NewProcessor(cfg.Server.Uploads.Dir)
	if err != nil {
		slog.Error("failed to prepare uploads dir", "err", err)
		os.Exit(1)
	}

	// Push subscriber registry and fan-out.
	registry := push.NewRegistry()
	sender := push.New(registry, cfg.Server.Push)
	if !sender.Enabled() {
		slog.Warn("push delivery disabled — VAPID keys not configured")
	}

	// WebSocket hub — broadcasts each mutation to connected observers.
	hub := ws.New()
	go hub.Run(ctx)

	pipe := pipeline.New(st, mem, hub, sender, cfg.Server.Cache, cfg.Server.Push.Timeout)

	// Hot-reload the runtime-tunable settings on config file writes.
	go func() {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			pipe.SetCacheTTL(c.Server.Cache.TTL)
			sender.SetPruneFailed(c.Server.Push.PruneFailed)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// REST API with optional API key authentication.
	protect := auth.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/", protect(api.New(pipe, registry, imgs)))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", promhttp.Handler())
	httpMux.Handle("/uploads/", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(imgs.Dir()))))

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization", cfg.Server.Auth.EffectiveHeader()},
	}).Handler(httpMux)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: handler,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("userstack-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
