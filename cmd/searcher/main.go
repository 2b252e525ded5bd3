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

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/httpapi"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexreader"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tfidx/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "optional path to a config file")
	port := flag.Int("port", 0, "HTTP port to listen on (overrides config; PORT env wins over both)")
	indexDir := flag.String("index", "", "path to a sealed index directory (overrides config; INDEX_DIR env wins over both)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *indexDir != "" {
		cfg.Index.Dir = *indexDir
	}
	// Environment variables take precedence over both flags and config file.
	if v := os.Getenv("PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}
	if v := os.Getenv("INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index_dir", cfg.Index.Dir)

	m := metrics.New()

	reader, err := indexreader.Open(cfg.Index.Dir, indexreader.Options{
		PostingsCacheSize: cfg.Index.PostingsCacheSize,
		TextCacheSize:     cfg.Index.TextCacheSize,
		Metrics:           m,
	})
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	slog.Info("index opened", "num_docs", reader.NumDocs(), "num_terms", reader.Dictionary().Size())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m.IndexSizeDocs.Set(float64(reader.NumDocs()))
	m.IndexSizeTerms.Set(float64(reader.Dictionary().Size()))

	var redisClient *pkgredis.Client
	if cfg.Cache.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Cache)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("search cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	}
	queryCache := cache.New(redisClient, cfg.Cache.TTL, m)

	checker := health.NewChecker()
	checker.Register("index_reader", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d docs, %d terms", reader.NumDocs(), reader.Dictionary().Size())}
	})
	checker.Register("query_cache", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := httpapi.New(reader, queryCache, m, cfg.Admin.Token)
	router := httpapi.NewRouter(h, middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSAllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-ADMIN-TOKEN", "X-Request-ID"},
		MaxAge:       86400,
	}, cfg.Server.MaxConcurrent, cfg.Server.WriteTimeout, middleware.Metrics(m))

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
