package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calebrw/taskgate/internal/ack"
	"github.com/calebrw/taskgate/internal/audit"
	"github.com/calebrw/taskgate/internal/auth"
	"github.com/calebrw/taskgate/internal/config"
	"github.com/calebrw/taskgate/internal/health"
	"github.com/calebrw/taskgate/internal/idempotency"
	"github.com/calebrw/taskgate/internal/logging"
	"github.com/calebrw/taskgate/internal/metrics"
	"github.com/calebrw/taskgate/internal/queue"
	"github.com/calebrw/taskgate/internal/receiver"
	"github.com/calebrw/taskgate/internal/retry"
	"github.com/calebrw/taskgate/internal/store"
	"github.com/calebrw/taskgate/internal/tracing"
	"github.com/calebrw/taskgate/internal/work"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New(cfg.AppName)

	// OpenTelemetry tracing
	shutdownTracing, err := tracing.InitTracing(ctx, cfg.AppName)
	if err != nil {
		logger.Plain().WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdownTracing()

	// Idempotency record store
	records, err := newStore(ctx, cfg)
	if err != nil {
		// Dependency init failure is CRITICAL: the gate is unusable for
		// this process instance.
		logger.Plain().WithField("backend", cfg.Store.Backend).WithError(err).
			Critical("store connect failed")
		os.Exit(1)
	}
	defer records.Close()

	// Deletion-audit publisher (optional)
	var auditPub audit.Publisher
	if cfg.Audit.Publish {
		prod, err := nsq.NewProducer(cfg.Audit.NsqdTCPAddr, nsq.NewConfig())
		if err != nil {
			logger.Plain().WithError(err).Critical("nsq producer for audit topic failed")
			os.Exit(1)
		}
		defer prod.Stop()
		auditPub = prod
	}
	recorder := audit.NewRecorder(logger, auditPub, cfg.Audit.Topic)

	// Queue admin client with retry-wrapped deletion
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.Delay,
		Logger:      logger,
	}
	var tokens *auth.TokenSource
	if cfg.Queue.Auth.SigningKey != "" {
		tokens, err = auth.NewTokenSource(cfg.Queue.Auth.SigningKey, cfg.Queue.Auth.Issuer,
			cfg.Queue.Auth.Audience, cfg.Queue.Auth.TokenTTL)
		if err != nil {
			logger.Plain().WithError(err).Critical("queue token source init failed")
			os.Exit(1)
		}
	}
	queueClient := queue.NewClient(cfg.Queue.BaseURL, tokens, policy)

	// Work unit: forward downstream when configured, otherwise ack-only
	var unit work.Unit = work.Noop{}
	if cfg.Forward.URL != "" {
		unit = work.NewForwarder(cfg.Forward, policy)
	}

	gate := idempotency.NewGate(records, logger)
	acker := ack.New(queueClient, recorder, logger)
	coord := receiver.NewCoordinator(gate, acker, unit, records, cfg.Queue, logger)

	// Prometheus metrics
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(records))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	coord.Routes(mux)

	httpSrv := &http.Server{Addr: cfg.HTTPPort, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("receiver HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("receiver HTTP server failed")
		}
	}()

	// Graceful stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down receiver")
	_ = httpSrv.Shutdown(context.Background())
	logger.Plain().Info("receiver stopped")
}

// newStore constructs the record store selected by config.
func newStore(ctx context.Context, cfg config.Config) (store.RecordStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		return store.ConnectRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisTTL)
	default:
		return store.ConnectPostgres(ctx, cfg.DSN())
	}
}
