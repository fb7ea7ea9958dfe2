package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/storage"
)

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// Housekeeper deletes committed schedules older than the retention period
// on a cron schedule.
type Housekeeper struct {
	logger    *zap.Logger
	store     storage.ScheduleStore
	retention time.Duration
	spec      string
	cron      *cron.Cron
	now       func() time.Time
}

// NewHousekeeper creates a housekeeper running at spec, a six-field cron
// expression with seconds.
func NewHousekeeper(store storage.ScheduleStore, spec string, retention time.Duration, logger *zap.Logger) *Housekeeper {
	logger = logger.Named("housekeeper")
	cl := &cronLogger{logger: logger.Named("cron")}
	return &Housekeeper{
		logger:    logger,
		store:     store,
		retention: retention,
		spec:      spec,
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl)),
		now:       time.Now,
	}
}

// Start registers the cleanup job and starts the cron runner
func (h *Housekeeper) Start() error {
	if h.retention <= 0 {
		return fmt.Errorf("retention must be positive, got %s", h.retention)
	}
	if _, err := h.cron.AddFunc(h.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := h.RunOnce(ctx); err != nil {
			h.logger.Error("Retention cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to add cleanup job: %w", err)
	}
	h.cron.Start()
	h.logger.Info("Housekeeper started",
		zap.String("schedule", h.spec),
		zap.Duration("retention", h.retention))
	return nil
}

// Stop stops the cron runner and waits for a running job
func (h *Housekeeper) Stop() {
	<-h.cron.Stop().Done()
}

// RunOnce deletes every commit older than the retention period
func (h *Housekeeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := h.now().Add(-h.retention)
	deleted, err := h.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old commits: %w", err)
	}
	h.logger.Info("Retention cleanup finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted))
	return deleted, nil
}
