package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jbandu/fleetscraper/internal/agents"
	"github.com/jbandu/fleetscraper/internal/common"
	"github.com/jbandu/fleetscraper/internal/config"
	"github.com/jbandu/fleetscraper/internal/db"
	"github.com/jbandu/fleetscraper/internal/db/repositories"
	"github.com/jbandu/fleetscraper/internal/logging"
	"github.com/jbandu/fleetscraper/internal/metrics"
	"github.com/jbandu/fleetscraper/internal/monitoring"
	"github.com/jbandu/fleetscraper/internal/queue"
	"github.com/jbandu/fleetscraper/internal/routes"
	"github.com/jbandu/fleetscraper/internal/scheduler"
	"github.com/jbandu/fleetscraper/internal/scrape"
	"github.com/jbandu/fleetscraper/internal/workflow"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(cfg.AppEnv); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logging.Close()

	logging.Info("fleetscraper starting",
		"environment", cfg.AppEnv,
		"timestamp", time.Now().Format(time.RFC3339),
	)

	conn, err := db.InitPostgres(cfg.DSN(), cfg.PGMaxConns)
	if err != nil {
		logging.Fatal("failed to connect to Postgres", "error", err.Error())
	}
	defer conn.Close()
	logging.Info("connected to Postgres", "host", cfg.PGHost, "database", cfg.PGDatabase)

	metricsReg := metrics.NewMetricsRegistry()

	catalog := repositories.NewCatalog(conn)
	cacheSvc := common.NewCacheServiceWithMetrics(10*time.Minute, 30*time.Minute, metricsReg)
	typeCache := common.NewTypeSpecCache(cacheSvc, catalog.Types)

	loader := scrape.NewHTTPPageLoader(cfg.PageLoaderTimeout, cfg.RateLimit)
	extractor := scrape.NewLLMExtractor(cfg.ExtractorURL, cfg.ExtractorAPIKey, cfg.ExtractorModel, cfg.PageLoaderTimeout)

	discovery := agents.NewDiscoveryAgent(catalog.Airlines, loader, extractor)
	details := agents.NewDetailsAgent(catalog.Aircraft, loader, extractor)
	validation := agents.NewValidationAgent(typeCache, extractor)

	wf := workflow.New(discovery, details, validation, catalog, workflow.Config{
		Concurrency: cfg.WorkflowConcurrency,
		BatchDelay:  cfg.RateLimit,
	})

	jobQueue := queue.NewJobQueue(conn, catalog.Airlines, queue.Defaults{
		MaxRetries:        cfg.MaxRetries,
		RetryDelayMinutes: cfg.RetryDelayMinutes,
	})

	sched := scheduler.New(scheduler.Config{
		MaxConcurrentJobs:   cfg.MaxConcurrentJobs,
		PollInterval:        cfg.PollInterval,
		WorkflowConcurrency: cfg.WorkflowConcurrency,
		CronEnabled:         cfg.CronEnabled,
		CronExpression:      cfg.CronExpression,
		Timezone:            cfg.Timezone,
		StaleJobTimeout:     cfg.StaleJobTimeout,
	}, scheduler.QueueFacade{JobQueue: jobQueue}, catalog.Airlines, wf, metricsReg)

	monitor := monitoring.NewMonitor(conn)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", routes.RegisterRoutes(conn, monitor, time.Now()))

	opsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.OpsPort),
		Handler: mux,
	}
	go func() {
		logging.Info("ops server listening", "port", cfg.OpsPort)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("ops server stopped", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Run(ctx); err != nil {
		logging.Fatal("scheduler failed", "error", err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = opsServer.Shutdown(shutdownCtx)

	logging.Info("fleetscraper stopped")
}
