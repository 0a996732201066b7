package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aigoflow/proof-service/internal/config"
	"github.com/aigoflow/proof-service/internal/handlers"
	"github.com/aigoflow/proof-service/internal/orchestrator"
	"github.com/aigoflow/proof-service/internal/ratelimit"
	"github.com/aigoflow/proof-service/internal/receipts"
	"github.com/aigoflow/proof-service/internal/registry"
	"github.com/aigoflow/proof-service/internal/services"
	"github.com/aigoflow/proof-service/internal/store"
	"github.com/aigoflow/proof-service/internal/webhook"
	"github.com/aigoflow/proof-service/internal/zk"
	"github.com/aigoflow/proof-service/pkg/server"
)

func main() {
	var envFile = flag.String("env", "", "Optional .env file to load")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize database
	_ = os.MkdirAll(cfg.DataDir, 0755)
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	_ = os.MkdirAll(cfg.UploadedModelsDir, 0755)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.Event("info", "startup", "Server starting", map[string]interface{}{
		"http_addr": cfg.HTTPAddr,
		"db_path":   cfg.DBPath,
	})

	// Load models from disk
	reg := registry.New()
	for _, err := range reg.ScanDir(cfg.ModelsDir, false) {
		slog.Warn("Skipping built-in model", "error", err)
	}
	for _, err := range reg.ScanDir(cfg.UploadedModelsDir, true) {
		slog.Warn("Skipping uploaded model", "error", err)
	}
	db.Event("info", "models.scanned", "Model scan complete", map[string]interface{}{
		"models": reg.Len(),
	})

	// Compile circuits and set up proving keys in the background so the
	// server accepts traffic immediately; prove requests against a model
	// return 503 until its key is ready.
	engine := zk.NewEngine()
	go func() {
		for _, m := range reg.List() {
			w, ok := reg.Weights(m.ID)
			if !ok {
				continue
			}
			start := time.Now()
			constraints, err := engine.Preprocess(m.ID, w, m.TraceLength)
			if err != nil {
				db.Event("error", "model.failed", "Model preprocessing failed", map[string]interface{}{
					"model_id": m.ID,
					"error":    err.Error(),
				})
				slog.Error("Model preprocessing failed", "model_id", m.ID, "error", err)
				continue
			}
			db.Event("info", "model.ready", "Model proving key ready", map[string]interface{}{
				"model_id":    m.ID,
				"constraints": constraints,
			})
			slog.Info("Model ready", "model_id", m.ID, "constraints", constraints, "elapsed", time.Since(start))
		}
	}()

	// Receipt store: in-memory cache over the durable sqlite tier
	receiptStore, err := receipts.New(db, cfg.CacheTTL)
	if err != nil {
		slog.Error("Failed to initialize receipt store", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional NATS eventing
	events, err := services.ConnectEvents(cfg.NatsURL, cfg.EventPrefix)
	if err != nil {
		slog.Error("Failed to connect NATS", "nats_url", cfg.NatsURL, "error", err)
		os.Exit(1)
	}
	defer events.Close()

	// Webhook dispatcher
	dispatcher := webhook.NewDispatcher(cfg.WebhookAttempts, cfg.WebhookBackoff)
	go dispatcher.Run(ctx)

	// Proof orchestrator, with recovery of jobs interrupted by a restart
	orch := orchestrator.New(receiptStore, engine, orchestrator.Options{
		Workers:  cfg.ProveConcurrency,
		Timeout:  cfg.ProveTimeout,
		Queue:    cfg.QueueDepth,
		Webhooks: dispatcher,
		Events:   events,
	})
	if n, err := orch.RecoverInterrupted(cfg.RecoveryGrace); err != nil {
		slog.Error("Interrupted-receipt recovery failed", "error", err)
	} else if n > 0 {
		db.Event("warn", "receipts.recovered", "Interrupted receipts failed", map[string]interface{}{
			"count": n,
		})
		slog.Warn("Recovered interrupted receipts", "count", n)
	}
	orch.Start(ctx)

	// Rate limiter with periodic idle-bucket sweep
	limiter := ratelimit.New(ratelimit.DefaultLimits())
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	}()

	// Services
	proveService := services.NewProveService(reg, engine, receiptStore, orch, events, cfg.BaseURL)
	verifyService := services.NewVerifyService(receiptStore, engine)
	uploadService := services.NewUploadService(reg, engine, db, cfg.UploadedModelsDir, cfg.MaxUploadBytes)
	metricsService := services.NewMetricsService(receiptStore)
	healthService := services.NewHealthService(reg, engine, orch)

	// HTTP server
	httpServer := server.NewServer(cfg.HTTPAddr, limiter, server.Handlers{
		Prove:   handlers.NewProveHandler(proveService),
		Receipt: handlers.NewReceiptHandler(receiptStore, metricsService, cfg.BaseURL),
		Verify:  handlers.NewVerifyHandler(verifyService),
		Badge:   handlers.NewBadgeHandler(receiptStore),
		Models:  handlers.NewModelsHandler(reg),
		Upload:  handlers.NewUploadHandler(uploadService, cfg.MaxUploadBytes),
		Convert: handlers.NewConvertHandler(cfg.ConverterURL),
		OpenAPI: handlers.NewOpenAPIHandler(),
		Health:  handlers.NewHealthHandler(healthService, metricsService),
	})

	db.Event("info", "server.ready", "Server ready to accept requests", map[string]interface{}{
		"http_addr": cfg.HTTPAddr,
		"models":    reg.Len(),
	})

	go func() {
		if err := httpServer.Start(ctx); err != nil {
			db.Event("error", "http.failed", "HTTP server failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	db.Event("info", "shutdown", "Server shutting down", nil)
	slog.Info("Shutting down server")
	cancel()
	time.Sleep(time.Second)
}
