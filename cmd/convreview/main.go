package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jordanhubbard/convreview/internal/api"
	"github.com/jordanhubbard/convreview/internal/cache"
	"github.com/jordanhubbard/convreview/internal/database"
	"github.com/jordanhubbard/convreview/internal/learning"
	"github.com/jordanhubbard/convreview/internal/messagebus"
	"github.com/jordanhubbard/convreview/internal/metrics"
	"github.com/jordanhubbard/convreview/internal/pipeline"
	"github.com/jordanhubbard/convreview/internal/provider"
	"github.com/jordanhubbard/convreview/internal/scheduler"
	"github.com/jordanhubbard/convreview/internal/scoring"
	"github.com/jordanhubbard/convreview/internal/teaching"
	"github.com/jordanhubbard/convreview/internal/telemetry"
	"github.com/jordanhubbard/convreview/internal/temporal"
	"github.com/jordanhubbard/convreview/internal/transcript"
	"github.com/jordanhubbard/convreview/pkg/config"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help message")
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	if *showVersion {
		fmt.Printf("convreview v%s\n", version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config from %s: %v", *configPath, err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTelemetry(runCtx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			log.Printf("Warning: Failed to initialize telemetry: %v", err)
		} else {
			defer func() {
				if err := shutdownTelemetry(context.Background()); err != nil {
					log.Printf("Error shutting down telemetry: %v", err)
				}
			}()
		}
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	m := metrics.NewMetrics()

	client := provider.NewClient(
		provider.NewOpenAIProvider(cfg.Provider.Endpoint, cfg.Provider.APIKey, &http.Client{}),
		provider.Options{
			Model:      cfg.Provider.Model,
			Timeout:    cfg.Provider.Timeout,
			MaxRetries: cfg.Provider.Retries,
			Metrics:    m,
		},
	)

	scoreCache, closeCache := openCache(runCtx, cfg.Cache)
	defer closeCache()

	extractor := learning.NewExtractor(client, learning.Options{
		Temperature: cfg.Teaching.ExtractionTemperature,
		MaxTokens:   cfg.Teaching.MaxTokens,
		Metrics:     m,
	})
	scorer := scoring.NewScorer(client, scoring.Options{
		Model:       cfg.Provider.Model,
		Temperature: cfg.Scoring.Temperature,
		MaxTokens:   cfg.Scoring.MaxTokens,
		Cache:       scoreCache,
		CacheTTL:    cfg.Cache.DefaultTTL,
		Metrics:     m,
	})
	engine := teaching.NewEngine(client, extractor, teaching.Options{
		Temperature:      cfg.Teaching.Temperature,
		MaxTokens:        cfg.Teaching.MaxTokens,
		MinHistoryToSave: cfg.Teaching.MinHistoryToSave,
	})

	opts := pipeline.Options{
		MaxBatch:        cfg.Batch.MaxLeads,
		DefaultDaysBack: cfg.Batch.DefaultDaysBack,
		Metrics:         m,
	}

	var bus *messagebus.NatsMessageBus
	if cfg.Messaging.Enabled {
		bus, err = messagebus.NewNatsMessageBus(messagebus.Config{
			URL:        cfg.Messaging.NATSURL,
			StreamName: cfg.Messaging.StreamName,
			Timeout:    cfg.Messaging.Timeout,
		})
		if err != nil {
			log.Printf("Warning: NATS unavailable, events will not be published: %v", err)
		} else {
			defer bus.Close()
			opts.Events = bus
		}
	}

	p := pipeline.New(db, transcript.NewParser(cfg.Scoring.AgentNames), scorer, engine, extractor, opts)

	// Batches run in-process unless a Temporal worker is available.
	var batch api.BatchAnalyzer = p
	if cfg.Temporal.Enabled {
		tm, err := temporal.NewManager(&cfg.Temporal, p)
		if err != nil {
			log.Printf("Warning: Temporal unavailable, running batches in-process: %v", err)
		} else if err := tm.Start(); err != nil {
			log.Printf("Warning: %v", err)
			tm.Stop()
		} else {
			defer tm.Stop()
			batch = tm
		}
	}

	if cfg.Batch.BaselineOnStartup {
		go func() {
			res, err := batch.EnsureBaselineAnalysis(runCtx, cfg.Batch.DefaultDaysBack)
			if err != nil {
				log.Printf("Startup baseline analysis failed: %v", err)
				return
			}
			log.Printf("Startup baseline analysis: %d analysed, %d failed", res.Analyzed, res.Failed())
		}()
	}

	if cfg.Batch.BaselineSchedule != "" {
		sched := scheduler.New(batch, cfg.Batch.BaselineSchedule, cfg.Batch.DefaultDaysBack)
		if err := sched.Start(runCtx); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	apiServer := api.NewServer(p, batch, cfg)
	apiServer.SetMetrics(m)
	apiServer.AddHealthCheck("database", db.Ping)
	if bus != nil {
		apiServer.AddHealthCheck("nats", func(context.Context) error { return bus.Health() })
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      apiServer.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("convreview API listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}

// loadConfig reads path, falling back to defaults when the file is absent.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("No config file at %s, using defaults", path)
		return config.DefaultConfig(), nil
	}
	return config.LoadConfigFromFile(path)
}

func applyEnvOverrides(cfg *config.Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if endpoint := os.Getenv("CONVREVIEW_PROVIDER_ENDPOINT"); endpoint != "" {
		cfg.Provider.Endpoint = endpoint
		log.Printf("Using provider endpoint from environment: %s", endpoint)
	}
	if model := os.Getenv("CONVREVIEW_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.Type = "postgres"
		cfg.Database.DSN = dsn
		log.Printf("Using Postgres from DATABASE_URL")
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.Messaging.Enabled = true
		cfg.Messaging.NATSURL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Cache.Enabled = true
		cfg.Cache.Backend = "redis"
		cfg.Cache.RedisURL = url
	}
	if host := os.Getenv("TEMPORAL_HOST"); host != "" {
		cfg.Temporal.Enabled = true
		cfg.Temporal.Host = host
		log.Printf("Using Temporal host from environment: %s", host)
	}
	if ns := os.Getenv("TEMPORAL_NAMESPACE"); ns != "" {
		cfg.Temporal.Namespace = ns
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.OTLPEndpoint = endpoint
	}
	if keys := os.Getenv("CONVREVIEW_API_KEYS"); keys != "" {
		cfg.Security.EnableAuth = true
		cfg.Security.APIKeys = strings.Split(keys, ",")
	}
}

// openCache returns the configured score cache, or nil when caching is off.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Backend, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.DefaultTTL = cfg.DefaultTTL
	if cfg.MaxSize > 0 {
		cacheCfg.MaxSize = cfg.MaxSize
	}

	if cfg.Backend == "redis" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cacheCfg)
		if err == nil {
			log.Printf("Score cache: redis")
			return rc, func() { rc.Close() }
		}
		log.Printf("Warning: Redis unavailable, falling back to in-memory cache: %v", err)
	}

	mc := cache.New(cacheCfg)
	log.Printf("Score cache: in-memory (max %d entries)", cacheCfg.MaxSize)
	return mc, mc.Close
}

func printHelp() {
	fmt.Println("Usage: convreview [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -config   Path to configuration file (default: config.yaml)")
	fmt.Println("  -version  Show version information")
	fmt.Println("  -help     Show help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  OPENAI_API_KEY       API key for the completion service")
	fmt.Println("  DATABASE_URL         Postgres DSN (otherwise SQLite from config)")
	fmt.Println("  NATS_URL             Enable event publication")
	fmt.Println("  REDIS_URL            Enable the Redis score cache")
	fmt.Println("  TEMPORAL_HOST        Run batches as Temporal workflows")
	fmt.Println("  CONVREVIEW_API_KEYS  Comma-separated API keys")
}
