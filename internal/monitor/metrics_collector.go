package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/model"
)

const (
	// SubjectResult carries a model.ResultSummary for every computed plan
	SubjectResult = "schedule.result"
	// SubjectMetrics carries the periodic model.SchedulerMetrics snapshot
	SubjectMetrics = "metrics.scheduler"
)

// MetricsCollector aggregates plan computations and host usage
type MetricsCollector struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	interval time.Duration
	mu       sync.RWMutex
	runs     int
	verdicts map[model.Verdict]int
	hours    float64
	unsched  int
	totalMs  float64
	last     *model.ResultSummary
	host     model.HostStats
	sub      *nats.Subscription
	stop     chan struct{}
	once     sync.Once
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(js nats.JetStreamContext, interval time.Duration, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		logger:   logger.Named("metrics-collector"),
		js:       js,
		interval: interval,
		verdicts: make(map[model.Verdict]int),
		stop:     make(chan struct{}),
	}
}

// Start subscribes to plan results and starts the publish loop
func (c *MetricsCollector) Start(ctx context.Context) error {
	c.logger.Info("Starting metrics collector")

	sub, err := c.js.Subscribe(SubjectResult, c.handleResult, nats.DeliverNew())
	if err != nil {
		return fmt.Errorf("failed to subscribe to plan results: %w", err)
	}
	c.sub = sub

	go c.collectLoop(ctx)

	return nil
}

// Stop stops the metrics collector
func (c *MetricsCollector) Stop() {
	c.once.Do(func() {
		c.logger.Info("Stopping metrics collector")
		if c.sub != nil {
			_ = c.sub.Unsubscribe()
		}
		close(c.stop)
	})
}

func (c *MetricsCollector) handleResult(msg *nats.Msg) {
	var summary model.ResultSummary
	if err := json.Unmarshal(msg.Data, &summary); err != nil {
		c.logger.Error("Failed to unmarshal plan result", zap.Error(err))
		return
	}
	c.Record(summary)
}

// Record adds one computation to the running totals
func (c *MetricsCollector) Record(summary model.ResultSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runs++
	c.verdicts[summary.Verdict]++
	c.hours += summary.Stats.PlacedHours
	c.unsched += len(summary.Unscheduled)
	c.totalMs += summary.Duration
	last := summary
	c.last = &last
}

func (c *MetricsCollector) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.collectMetrics()
		}
	}
}

func (c *MetricsCollector) collectMetrics() {
	cpuPercent, err := cpu.Percent(0, false)
	if err != nil {
		c.logger.Error("Failed to get CPU usage", zap.Error(err))
		return
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		c.logger.Error("Failed to get memory usage", zap.Error(err))
		return
	}

	host := model.HostStats{
		MemoryUsage: memInfo.UsedPercent,
		CollectedAt: time.Now(),
	}
	if len(cpuPercent) > 0 {
		host.CPUUsage = cpuPercent[0]
	}

	c.mu.Lock()
	c.host = host
	c.mu.Unlock()

	metrics := c.Snapshot()
	data, err := json.Marshal(metrics)
	if err != nil {
		c.logger.Error("Failed to marshal metrics", zap.Error(err))
		return
	}

	if _, err := c.js.Publish(SubjectMetrics, data); err != nil {
		c.logger.Error("Failed to publish metrics", zap.Error(err))
		return
	}

	c.logger.Debug("Metrics collected",
		zap.Float64("cpu_usage", host.CPUUsage),
		zap.Float64("memory_usage", host.MemoryUsage),
		zap.Int("runs", metrics.Runs))
}

// Snapshot returns the current metrics
func (c *MetricsCollector) Snapshot() model.SchedulerMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	verdicts := make(map[model.Verdict]int, len(c.verdicts))
	for v, n := range c.verdicts {
		verdicts[v] = n
	}

	metrics := model.SchedulerMetrics{
		Timestamp:      time.Now(),
		Host:           c.host,
		Runs:           c.runs,
		Verdicts:       verdicts,
		PlacedHours:    c.hours,
		UnscheduledSum: c.unsched,
	}
	if c.runs > 0 {
		metrics.AvgDurationMs = c.totalMs / float64(c.runs)
	}
	if c.last != nil {
		last := *c.last
		metrics.LastRun = &last
	}
	return metrics
}
