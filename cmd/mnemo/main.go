// Command mnemo runs the persistent associative-memory engine behind an
// HTTP API: one route per Query Surface operation, plus health and
// metrics endpoints for operators.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mnemo/internal/clock"
	"mnemo/internal/config"
	"mnemo/internal/engine"
	"mnemo/internal/metrics"
	"mnemo/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	environment := flag.String("env", "development", "deployment environment (development|production)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg.Logging.Level, *environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	backend, err := cfg.OpenStore()
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}

	eng, err := engine.Open(ctx, backend, clock.System{}, cfg.Workspace, cfg.EngineParams())
	if err != nil {
		logger.Fatal("open engine", zap.Error(err))
	}
	eng.SetPolicy(cfg.InitialPolicy())

	collector := metrics.NewCollector("mnemo")
	instrumented := metrics.Instrument(eng, collector)

	// Tracing covers the periodic decay/consolidate maintenance loop,
	// which runs independent of any inbound request and so has no HTTP
	// span of its own to nest under.
	var tp *observability.TracerProvider
	var stopMaintenance func()
	if cfg.Tracing.Enabled {
		serviceName := cfg.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "mnemo"
		}
		tp, err = observability.InitTracing(ctx, serviceName, *environment, cfg.Tracing.Endpoint)
		if err != nil {
			logger.Error("init tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Error("shutdown tracer", zap.Error(err))
				}
			}()
			traced := observability.WrapEngine(eng, tp.Tracer())
			stopMaintenance = runMaintenanceLoop(ctx, traced, cfg.Decay.HalfLifeDays, logger)
		}
	}
	if stopMaintenance != nil {
		defer stopMaintenance()
	}

	var watcher *config.PolicyWatcher
	if cfg.PolicyDir != "" {
		watcher, err = config.NewPolicyWatcher(cfg.PolicyDir, policySlotNames(), eng.SetPolicyFn, logger)
		if err != nil {
			logger.Error("start policy watcher", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	srv := NewServer(instrumented, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(collector),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting mnemo", zap.String("addr", cfg.Server.Addr), zap.String("workspace", cfg.Workspace))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if _, err := eng.Snapshot(shutdownCtx); err != nil {
		logger.Error("final snapshot", zap.Error(err))
	}
	if err := eng.Close(shutdownCtx); err != nil {
		logger.Error("engine close", zap.Error(err))
	}

	logger.Info("mnemo stopped")
}

func newLogger(level, environment string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zapConfig.Build()
}

// runMaintenanceLoop runs decay and consolidation on a fixed interval
// through the traced engine, so background upkeep gets span coverage
// distinct from the request path's metrics. Returns a func that stops
// the loop.
func runMaintenanceLoop(ctx context.Context, traced *observability.TracedEngine, halfLifeDays float64, logger *zap.Logger) func() {
	ticker := time.NewTicker(10 * time.Minute)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := traced.DecayNow(ctx, halfLifeDays)
				logger.Info("scheduled decay", zap.Int("decayed", stats.DecayedItems), zap.Int("pruned_edges", stats.PrunedEdges))

				cstats := traced.Consolidate(ctx)
				logger.Info("scheduled consolidate",
					zap.Int("expired", cstats.ExpiredItems),
					zap.Int("reflections_created", cstats.ReflectionsCreated),
					zap.Int("clustered_removed", cstats.ClusteredRemoved))
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { close(done) }
}

func policySlotNames() []string {
	return []string{"decay", "recall-score", "recall-combiner", "exploration", "policy-generator"}
}
