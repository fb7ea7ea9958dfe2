package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/committer"
	"github.com/t77yq/worksched/internal/config"
	"github.com/t77yq/worksched/internal/monitor"
	"github.com/t77yq/worksched/internal/scheduler"
	"github.com/t77yq/worksched/internal/service"
	"github.com/t77yq/worksched/internal/storage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load(os.Getenv("WORKSCHED_CONFIG"))
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Connect to NATS with more options
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.ReconnectBufSize(5 * 1024 * 1024), // 5MB
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS connection error",
				zap.String("subject", subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(strings.Join(cfg.NATS.URLs, ","), opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))

	// Create JetStream context
	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	if err := service.EnsureStreams(js, logger); err != nil {
		logger.Fatal("Failed to create streams", zap.Error(err))
	}

	// Create schedule storage
	store, err := storage.NewSQLiteScheduleStore(logger, cfg.Storage.Path)
	if err != nil {
		logger.Fatal("Failed to create schedule storage", zap.Error(err))
	}
	defer store.Close()

	engine := scheduler.NewEngine(scheduler.EngineConfig{
		SafetyMarginDays:   cfg.Scheduler.SafetyMarginDays,
		DefaultTempo:       cfg.Scheduler.DefaultTempo,
		DefaultGranularity: cfg.Scheduler.DefaultGranularity,
		QuietHours:         cfg.Scheduler.QuietHours,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Monitoring
	collector := monitor.NewMetricsCollector(js, cfg.Metrics.Interval, logger)
	if err := collector.Start(ctx); err != nil {
		logger.Fatal("Failed to start metrics collector", zap.Error(err))
	}
	defer collector.Stop()

	alerts := monitor.NewAlertManager(logger, js)
	for _, rule := range monitor.DefaultRules() {
		if err := alerts.AddRule(rule); err != nil {
			logger.Fatal("Failed to add alert rule", zap.String("rule", rule.Name), zap.Error(err))
		}
	}
	if cfg.Alerts.WebhookURL != "" {
		alerts.AddChannel("webhook", monitor.NewWebhookChannel(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookHeaders, cfg.Alerts.WebhookTimeout, logger))
	}
	if email := cfg.Alerts.Email; email.Host != "" {
		alerts.AddChannel("email", monitor.NewEmailChannel(monitor.EmailConfig{
			Host:       email.Host,
			Port:       email.Port,
			Username:   email.Username,
			Password:   email.Password,
			From:       email.From,
			Recipients: email.Recipients,
		}, logger))
	}
	if err := alerts.Start(ctx); err != nil {
		logger.Fatal("Failed to start alert manager", zap.Error(err))
	}
	defer alerts.Stop()

	// Request handlers
	svc := service.NewSchedulingService(nc, js, engine, committer.NewCommitter(store, js, logger), store,
		service.Options{PreviewRemediations: cfg.Scheduler.PreviewRemediations}, logger)
	if err := svc.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduling service", zap.Error(err))
	}

	housekeeper := service.NewHousekeeper(store, cfg.Storage.CleanupSchedule, cfg.Storage.Retention, logger)
	if err := housekeeper.Start(); err != nil {
		logger.Fatal("Failed to start housekeeper", zap.Error(err))
	}

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	svc.Stop()
	housekeeper.Stop()

	if err := nc.Drain(); err != nil {
		logger.Warn("Failed to drain NATS connection", zap.Error(err))
	}

	logger.Info("Server shutting down gracefully")
}
