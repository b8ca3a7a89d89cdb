// Command pipeline runs the keyword-research pipeline's HTTP API: an
// orchestrator serving Runs over a Gin router, backed by either an
// in-memory store (default, single-process) or Postgres
// (STORE_BACKEND=postgres), with progress streamed over WebSocket.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/kwforge/pipeline/pkg/api"
	"github.com/kwforge/pipeline/pkg/batcher"
	"github.com/kwforge/pipeline/pkg/cache"
	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/events"
	"github.com/kwforge/pipeline/pkg/orchestrator"
	"github.com/kwforge/pipeline/pkg/providers"
	"github.com/kwforge/pipeline/pkg/store"
	"github.com/kwforge/pipeline/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	settingsPath := flag.String("settings", getEnv("PIPELINE_SETTINGS", ""), "path to a pipeline settings YAML file (optional; defaults applied if empty)")
	llmAddr := flag.String("llm-addr", getEnv("LLM_GRPC_ADDR", ""), "gRPC address of the LLM sidecar (empty = deterministic mock)")
	embedAddr := flag.String("embed-addr", getEnv("EMBEDDING_GRPC_ADDR", ""), "gRPC address of the embedding sidecar (empty = deterministic mock)")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "release")
	gin.SetMode(ginMode)

	slog.Info("starting pipeline", "version", version.Full(), "http_port", httpPort)

	settings := config.Defaults()
	if *settingsPath != "" {
		loaded, err := config.Load(*settingsPath)
		if err != nil {
			log.Fatalf("failed to load settings from %s: %v", *settingsPath, err)
		}
		settings = *loaded
	}

	st, closeStore := mustRunStore()
	defer closeStore()

	deps := mustDependencies(*llmAddr, *embedAddr)

	connManager := events.NewConnectionManager(10 * time.Second)
	publisher := events.NewPublisher(connManager)

	orch := orchestrator.New(st, publisher, deps, maxConcurrentRunsFromEnv(), 0, slog.Default())

	server := api.NewServer(st, orch, connManager, settings)

	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: server.Engine(),
	}

	go func() {
		slog.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

// mustRunStore selects the RunStore backend from STORE_BACKEND ("memory",
// the default, or "postgres") and returns it along with a close func.
func mustRunStore() (store.RunStore, func()) {
	backend := getEnv("STORE_BACKEND", "memory")
	switch backend {
	case "postgres":
		cfg, err := store.LoadConfigFromEnv()
		if err != nil {
			log.Fatalf("invalid postgres store configuration: %v", err)
		}
		pg, err := store.NewPostgresStore(context.Background(), cfg)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		slog.Info("using postgres run store", "host", cfg.Host, "database", cfg.Database)
		return pg, pg.Close
	default:
		slog.Info("using in-memory run store")
		mem := store.NewMemoryStore()
		return mem, func() {}
	}
}

// mustDependencies wires the LLM, embedding, and metrics providers plus
// the embedding cache and enrichment batcher every stage needs. llmAddr/
// embedAddr empty means no sidecar configured — the pipeline falls back
// to its deterministic mock LLM/embedder, the same "explicit source,
// never silent" fallback pattern the metrics Provider Abstraction uses.
func mustDependencies(llmAddr, embedAddr string) orchestrator.Dependencies {
	var llm providers.LLMProvider
	if llmAddr != "" {
		p, err := providers.NewGRPCLLMProvider(llmAddr, getEnv("LLM_MODEL", "gpt-4o-mini"), 0.4)
		if err != nil {
			log.Fatalf("failed to dial LLM sidecar at %s: %v", llmAddr, err)
		}
		llm = p
	} else {
		slog.Warn("no LLM_GRPC_ADDR configured, using deterministic mock LLM provider")
		llm = providers.NewMockLLMProvider()
	}

	var embedder providers.EmbeddingProvider
	if embedAddr != "" {
		p, err := providers.NewGRPCEmbeddingProvider(embedAddr, 1536)
		if err != nil {
			log.Fatalf("failed to dial embedding sidecar at %s: %v", embedAddr, err)
		}
		embedder = p
	} else {
		slog.Warn("no EMBEDDING_GRPC_ADDR configured, using deterministic mock embedding provider")
		embedder = providers.NewMockEmbeddingProvider(1536)
	}

	// No real metrics vendors are registered in this build; the registry's
	// auto policy falls through to the mock, which tags every record with
	// Source = mock so downstream artifacts stay honest about provenance.
	registry := providers.NewRegistry(nil, providers.NewMockProvider(), true)
	metricsProvider, err := registry.Select(context.Background())
	if err != nil {
		log.Fatalf("no metrics provider available: %v", err)
	}

	var durable cache.Durable
	if redisAddr := getEnv("REDIS_ADDR", ""); redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: getEnv("REDIS_PASSWORD", ""),
		})
		durable = cache.NewRedisDurable(client, 0)
		slog.Info("embedding cache backed by redis", "addr", redisAddr)
	}

	embedCache, err := cache.New(50000, durable, slog.Default())
	if err != nil {
		log.Fatalf("failed to construct embedding cache: %v", err)
	}

	enrichBatcher := batcher.New(batcher.Config{
		Component: "provider.metrics",
		Limiter: batcher.LimiterConfig{
			MaxPerWindow:  60,
			Window:        time.Minute,
			BurstCapacity: 10,
		},
		Circuit: batcher.CircuitConfig{
			Name:                "provider.metrics",
			ConsecutiveFailures: 5,
			Cooldown:            30 * time.Second,
		},
		MaxInFlight: 8,
		MaxRetries:  batcher.DefaultMaxRetry,
	}, slog.Default())

	return orchestrator.Dependencies{
		LLM:           llm,
		Embedder:      embedder,
		Metrics:       metricsProvider,
		EmbedCache:    embedCache,
		EnrichBatcher: enrichBatcher,
	}
}

func maxConcurrentRunsFromEnv() int {
	v := getEnv("MAX_CONCURRENT_RUNS", "4")
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 4
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 4
	}
	return n
}
