package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"casegraph/config"
	"casegraph/internal/broadcast"
	"casegraph/internal/graph"
	inputredis "casegraph/internal/input/redis"
	"casegraph/internal/logger"
	"casegraph/internal/pipeline"
	"casegraph/internal/rules"
	"casegraph/internal/store"
	"casegraph/internal/store/memstore"
	"casegraph/internal/store/mysqlstore"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("casegraph.yml"); err == nil {
		return "casegraph.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "casegraph.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "casegraph.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.CaseGraph.Store.Backend == "" {
		cfg.CaseGraph.Store.Backend = "mysql"
	}
	if cfg.CaseGraph.Store.MySQL.MaxOpenConns <= 0 {
		cfg.CaseGraph.Store.MySQL.MaxOpenConns = 16
	}
	if cfg.CaseGraph.Store.MySQL.ConnMaxLifetime <= 0 {
		cfg.CaseGraph.Store.MySQL.ConnMaxLifetime = 30 * time.Minute
	}

	if cfg.CaseGraph.Input.Redis.Addr == "" {
		cfg.CaseGraph.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.CaseGraph.Input.Redis.Key == "" {
		cfg.CaseGraph.Input.Redis.Key = "casegraph_events"
	}
	if cfg.CaseGraph.Input.Redis.BlockTimeout == 0 {
		cfg.CaseGraph.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if cfg.CaseGraph.Pipeline.Workers <= 0 {
		cfg.CaseGraph.Pipeline.Workers = 4
	}

	if cfg.CaseGraph.Broadcast.Redis.ChannelPrefix == "" {
		cfg.CaseGraph.Broadcast.Redis.ChannelPrefix = "graph_updates"
	}
	if cfg.CaseGraph.Broadcast.Redis.Addr == "" {
		cfg.CaseGraph.Broadcast.Redis.Addr = cfg.CaseGraph.Input.Redis.Addr
	}

	if cfg.CaseGraph.HTTP.Addr == "" {
		cfg.CaseGraph.HTTP.Addr = ":8085"
	}

	if cfg.CaseGraph.Logging.Level == "" {
		cfg.CaseGraph.Logging.Level = "info"
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.CaseGraph.Store.Backend {
	case "memory":
		return memstore.New(), nil
	default:
		st, err := mysqlstore.Open(mysqlstore.Config{
			DSN:             cfg.CaseGraph.Store.MySQL.DSN,
			MaxOpenConns:    cfg.CaseGraph.Store.MySQL.MaxOpenConns,
			ConnMaxLifetime: cfg.CaseGraph.Store.MySQL.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	}
}

func main() {
	configArg := ""
	if len(os.Args) > 1 {
		configArg = os.Args[1]
	}

	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.CaseGraph.Logging.Enabled, cfg.CaseGraph.Logging.Level, cfg.CaseGraph.Logging.File, cfg.CaseGraph.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("CaseGraph starting")
	logger.Infof("Config loaded from: %s", configPath)

	st, err := openStore(cfg)
	if err != nil {
		logger.Errorf("Failed to open store: %v", err)
		log.Fatalf("Failed to open store: %v", err)
	}
	logger.Infof("Store backend: %s", cfg.CaseGraph.Store.Backend)

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         cfg.CaseGraph.Input.Redis.Addr,
		Password:     cfg.CaseGraph.Input.Redis.Password,
		DB:           cfg.CaseGraph.Input.Redis.DB,
		Key:          cfg.CaseGraph.Input.Redis.Key,
		BlockTimeout: cfg.CaseGraph.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}

	var engine rules.Engine
	if cfg.CaseGraph.Rules.Enabled {
		if strings.TrimSpace(cfg.CaseGraph.Rules.Path) == "" {
			logger.Warnf("Rules enabled but rules.path is empty; MITRE tagging disabled")
		} else {
			sigmaEngine, stats, err := rules.NewSigmaEngine(cfg.CaseGraph.Rules.Path)
			if err != nil {
				logger.Errorf("Failed to load Sigma rules from %s: %v", cfg.CaseGraph.Rules.Path, err)
				log.Fatalf("Failed to load Sigma rules: %v", err)
			}
			engine = sigmaEngine
			logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d",
				stats.Loaded,
				stats.SkippedComplex,
				stats.SkippedInvalid,
				stats.TotalFiles,
			)
			if stats.Loaded == 0 {
				logger.Warnf("No compatible Sigma rules loaded; MITRE tagging is effectively disabled")
			}
		}
	}

	hub := broadcast.NewHub()
	broadcasters := broadcast.Multi{hub}

	var redisPub *broadcast.RedisPublisher
	if cfg.CaseGraph.Broadcast.Redis.Enabled {
		redisPub = broadcast.NewRedisPublisher(broadcast.RedisConfig{
			Addr:          cfg.CaseGraph.Broadcast.Redis.Addr,
			Password:      cfg.CaseGraph.Broadcast.Redis.Password,
			DB:            cfg.CaseGraph.Broadcast.Redis.DB,
			ChannelPrefix: cfg.CaseGraph.Broadcast.Redis.ChannelPrefix,
		})
		broadcasters = append(broadcasters, redisPub)
		logger.Infof("Redis pub/sub broadcast enabled (prefix %s)", cfg.CaseGraph.Broadcast.Redis.ChannelPrefix)
	}

	locks := graph.NewIncidentLocks()
	builder := graph.NewBuilder(st, locks)
	updater := graph.NewUpdater(st, locks)

	pipe := pipeline.NewEventPipeline(consumer, engine, updater, broadcasters, cfg.CaseGraph.Pipeline.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:    cfg.CaseGraph.HTTP.Addr,
		Handler: newRouter(st, builder, broadcasters, hub),
	}
	go func() {
		logger.Infof("HTTP listening on %s", cfg.CaseGraph.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error shutting down HTTP server: %v", err)
	}

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	if redisPub != nil {
		if err := redisPub.Close(); err != nil {
			logger.Errorf("Error closing Redis publisher: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Errorf("Error closing store: %v", err)
	}

	logger.Infof("CaseGraph stopped")
}
