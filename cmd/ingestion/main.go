package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"helmet-monitor/ingestion/internal/auth"
	"helmet-monitor/ingestion/internal/config"
	"helmet-monitor/ingestion/internal/detect"
	"helmet-monitor/ingestion/internal/escalate"
	"helmet-monitor/ingestion/internal/metrics"
	"helmet-monitor/ingestion/internal/notify"
	"helmet-monitor/ingestion/internal/pipeline"
	"helmet-monitor/ingestion/internal/store"
	transporthttp "helmet-monitor/ingestion/internal/transport/http"
	"helmet-monitor/ingestion/internal/transport/ws"
)

func main() {
	log := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: slog.LevelInfo,
	}))

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using system environment")
	}

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewTimescaleStore(ctx, cfg)
	if err != nil {
		log.Error("timescale init failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redis, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	var sender notify.Sender
	if cfg.GatewayURL != "" {
		sender = notify.NewGatewaySender(cfg.GatewayURL, cfg.GatewayToken, cfg.SenderNumber, cfg.SenderEmail)
	} else {
		log.Warn("NOTIFY_GATEWAY_URL not set, escalations will record every recipient as failed")
	}
	notifier := notify.NewNotifier(sender, log)

	scheduler := escalate.NewScheduler(db, notifier, redis, cfg.Recipients, cfg.GraceDelay, log)

	dispatcher := pipeline.NewDispatcher(cfg.PersistChannelSize, cfg.StateChannelSize)

	var workers sync.WaitGroup

	// Exactly one reading writer: per-helmet persistence order depends on it.
	readingWriter := pipeline.NewReadingWriter(dispatcher.PersistChan, db, log, cfg.DBBatchSize, cfg.DBFlushIntervalMS)
	workers.Add(1)
	go func() {
		defer workers.Done()
		readingWriter.Run(ctx)
	}()

	for i := 0; i < cfg.StateWorkers; i++ {
		stateWriter := pipeline.NewStateWriter(dispatcher.StateChan, redis, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			stateWriter.Run(ctx)
		}()
	}

	thresholds := detect.Thresholds{
		AngleChange:    cfg.AngleThreshold,
		VelocityChange: cfg.VelocityThreshold,
	}

	authn := auth.NewAuthenticator(cfg, redis)
	authMW := transporthttp.NewAuthMiddleware(authn)

	mux := http.NewServeMux()
	mux.Handle("/ws", authMW.Wrap(ws.NewHandler(thresholds, dispatcher, scheduler, log)))
	mux.Handle("/share-location", authMW.Wrap(transporthttp.NewShareLocationHandler(db, redis, cfg.AppEnv, log)))
	mux.Handle("/latest-reading", authMW.Wrap(transporthttp.NewLatestReadingHandler(db, log)))
	mux.Handle("/healthz", transporthttp.NewHealthHandler(db, redis))
	mux.HandleFunc("/metrics", metrics.HandleMetrics)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: mux,
	}

	go func() {
		log.Info("ingestion listening",
			"port", cfg.HTTPPort,
			"grace_delay", cfg.GraceDelay,
			"recipients", len(cfg.Recipients),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
	}

	cancel()
	workers.Wait()
	log.Info("workers drained")
}
