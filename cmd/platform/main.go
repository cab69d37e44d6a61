// Command platform runs the commerce core: the outbox publisher, the
// inventory expiry sweep, the payment reconciliation loop, and the
// background worker plane, all sharing one Postgres connection pool.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/nordkit/commerce-core/internal/broker"
	"github.com/nordkit/commerce-core/internal/config"
	"github.com/nordkit/commerce-core/internal/domain"
	"github.com/nordkit/commerce-core/internal/inventory"
	"github.com/nordkit/commerce-core/internal/logging"
	"github.com/nordkit/commerce-core/internal/orders"
	"github.com/nordkit/commerce-core/internal/outbox"
	"github.com/nordkit/commerce-core/internal/payments"
	"github.com/nordkit/commerce-core/internal/queue"
	"github.com/nordkit/commerce-core/internal/searchindex"
	"github.com/nordkit/commerce-core/internal/store"
	"github.com/nordkit/commerce-core/internal/telemetry"
	"github.com/nordkit/commerce-core/internal/worker"
)

// App wires every component together and owns their lifecycle, mirroring
// the per-service App struct this core's services used to have
// individually before collapsing into one process.
type App struct {
	cfg config.Config
	log *slog.Logger

	db  *store.DB
	rdb *redis.Client

	shutdownTracer func()
	cron           *cron.Cron
	metricsServer  *http.Server
	amqpCloser     func() error

	cancel context.CancelFunc
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.ServiceName)

	app, err := newApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	app.Shutdown()
}

func newApp(cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := store.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	shutdownTracer, err := telemetry.InitTracer(cfg.ServiceName, log)
	if err != nil {
		log.Warn("tracer initialization failed, continuing without tracing", slog.Any("error", err))
		shutdownTracer = func() {}
	}

	return &App{
		cfg:            cfg,
		log:            log,
		db:             db,
		rdb:            rdb,
		shutdownTracer: shutdownTracer,
		cron:           cron.New(),
	}, nil
}

// Start wires repositories, the outbox publisher, the worker plane, and
// the periodic inventory sweep, then starts them all as goroutines.
func (a *App) Start(ctx context.Context) {
	outboxMetrics := telemetry.NewOutboxMetrics()
	inventoryMetrics := telemetry.NewInventoryMetrics()
	paymentMetrics := telemetry.NewPaymentMetrics()
	queueMetrics := telemetry.NewQueueMetrics()

	outboxRepo := store.NewOutboxRepo(a.db)
	variantRepo := store.NewVariantRepo(a.db)
	inventoryRepo := store.NewInventoryRepo(a.db)
	orderRepo := store.NewOrderRepo(a.db)
	paymentRepo := store.NewPaymentRepo(a.db)
	variantCache := store.NewVariantCache(a.rdb, 5*time.Minute, a.log)

	sb := broker.NewStreamBroker(a.rdb)

	orderWriter := outbox.NewWriter(outboxRepo, a.cfg.ServiceName, "domain-events", a.cfg.Outbox.MaxAttempts)
	assigner := inventory.NewAssigner(percentForStrategy(a.cfg.Inventory.StrategyDefault))
	engine := inventory.NewEngine(a.db, inventoryRepo, variantRepo, variantCache, orderWriter, assigner,
		inventoryMetrics, a.log, time.Duration(a.cfg.Inventory.ReservationTTLSeconds)*time.Second, a.cfg.Inventory.OptimisticCASRetries)

	orderSvc := orders.NewService(a.db, orderRepo, engine, orderWriter, a.log)

	var provider payments.Provider
	if a.cfg.StripeKey != "" {
		provider = payments.NewStripeProvider(a.cfg.StripeKey)
	} else {
		provider = payments.NewMockProvider()
	}
	paymentCoordinator := payments.NewCoordinator(a.db, paymentRepo, orderRepo, provider, orderWriter, paymentMetrics, a.log)
	paymentCoordinator.OnSettled = func(ctx context.Context, orderID string, succeeded bool) {
		to := domainOrderStatusForSettlement(succeeded)
		if err := orderSvc.Transition(ctx, orderID, to); err != nil {
			a.log.Error("order transition after payment settlement failed", slog.String("order_id", orderID), slog.Any("error", err))
		}
	}
	reconciler := payments.NewReconciler(a.db, paymentRepo, provider, orderWriter, paymentMetrics, a.log)
	reconciler.OnSettled = paymentCoordinator.OnSettled

	publisher := outbox.NewPublisher(a.db, outboxRepo, sb, a.log, outboxMetrics, a.cfg.Outbox.PollingInterval, a.cfg.Outbox.BatchSize)
	go publisher.Run(ctx)

	indexer := searchindex.NewMemoryIndexer()
	searchWriter := outbox.NewWriter(outboxRepo, a.cfg.ServiceName, "domain-events", a.cfg.Outbox.MaxAttempts)
	searchWorker := worker.NewSearchIndexWorker(sb, variantRepo, indexer, a.db, searchWriter, a.log,
		a.cfg.SearchIndexing.Concurrency, a.cfg.SearchIndexing.RatePerSec, "domain-events", "search-indexing", a.cfg.InstanceID)
	go searchWorker.Run(ctx)

	amqpCh, amqpCloser, err := queue.Connect(a.cfg.AMQPUser, a.cfg.AMQPPass, a.cfg.AMQPHost, a.cfg.AMQPPort)
	if err != nil {
		a.log.Error("rabbitmq connection failed, webhook retry and DLQ monitoring disabled", slog.Any("error", err))
	} else {
		a.amqpCloser = amqpCloser
		for _, q := range []string{"webhook-retry", "payment-reconciliation"} {
			if err := queue.DeclareQueue(amqpCh, q); err != nil {
				a.log.Error("declare queue failed", slog.String("queue", q), slog.Any("error", err))
			}
		}

		webhookWorker := worker.NewWebhookRetryWorker(amqpCh, "webhook-retry", func(ctx context.Context, job queue.Job) error {
			var wp payments.WebhookJobPayload
			if err := json.Unmarshal(job.Payload, &wp); err != nil {
				return err
			}
			return paymentCoordinator.ProcessWebhook(ctx, wp.PaymentID, wp.EventID, wp.Payload,
				wp.SignatureHeader, a.cfg.StripeWebhookSecret, wp.ProviderStatus)
		}, a.cfg.Payment.WebhookRetryBaseMS, a.cfg.Payment.WebhookRetryCapMS, a.cfg.Payment.WebhookMaxAttempts, a.log)
		go func() {
			if err := webhookWorker.Run(ctx); err != nil {
				a.log.Error("webhook retry worker stopped", slog.Any("error", err))
			}
		}()

		dlq := queue.NewDLQHandler(amqpCh)
		monitor := worker.NewMonitor(outboxRepo, dlq, []string{"webhook-retry", "payment-reconciliation"}, queueMetrics, a.log,
			a.cfg.Monitoring.PollInterval, a.cfg.Monitoring.WarnWaiting, a.cfg.Monitoring.WarnFailed, a.cfg.Monitoring.WarnDelayed)
		go monitor.Run(ctx)
	}

	a.cron.AddFunc("@every 1m", func() {
		if _, err := engine.SweepExpired(ctx); err != nil {
			a.log.Error("inventory sweep failed", slog.Any("error", err))
		}
	})
	a.cron.AddFunc("@every 5m", func() {
		reconcilePending(ctx, a.log, paymentRepo, reconciler)
	})
	a.cron.Start()

	a.metricsServer = &http.Server{Addr: ":9090", Handler: promhttp.Handler()}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	a.log.Info("commerce core started", slog.String("instance_id", a.cfg.InstanceID))
}

// Shutdown tears down background work in the reverse order it was
// started: stop accepting new work, flush the metrics server, close the
// broker connection, flush tracing.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	a.cron.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.log.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
	if a.amqpCloser != nil {
		if err := a.amqpCloser(); err != nil {
			a.log.Error("rabbitmq close failed", slog.Any("error", err))
		}
	}
	if err := a.rdb.Close(); err != nil {
		a.log.Error("redis close failed", slog.Any("error", err))
	}
	if err := a.db.Close(); err != nil {
		a.log.Error("postgres close failed", slog.Any("error", err))
	}
	a.shutdownTracer()
	a.log.Info("commerce core stopped")
}

func percentForStrategy(defaultStrategy string) int {
	if defaultStrategy == "pessimistic" {
		return 0
	}
	return 100
}

func domainOrderStatusForSettlement(succeeded bool) domain.OrderStatus {
	if succeeded {
		return domain.OrderPaid
	}
	return domain.OrderCancelled
}

func reconcilePending(ctx context.Context, log *slog.Logger, repo *store.PaymentRepo, reconciler *payments.Reconciler) {
	ids, err := repo.ListPending(ctx, 100)
	if err != nil {
		log.Error("reconciliation pending list failed", slog.Any("error", err))
		return
	}
	for _, id := range ids {
		if _, err := reconciler.ReconcileOne(ctx, id); err != nil {
			log.Error("reconciliation failed", slog.String("payment_id", id), slog.Any("error", err))
		}
	}
}
