package service

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamSpec describes one JetStream stream the service publishes into
type StreamSpec struct {
	Name     string
	Subjects []string
	MaxAge   time.Duration
}

// Streams lists the streams the service depends on
var Streams = []StreamSpec{
	{Name: "SCHEDULES", Subjects: []string{SubjectResult, SubjectCommitted, "schedule.worker.>"}},
	{Name: "ALERTS", Subjects: []string{"alert.*"}},
	{Name: "METRICS", Subjects: []string{"metrics.*"}, MaxAge: 24 * time.Hour},
}

// EnsureStreams creates every stream in Streams that does not exist yet
func EnsureStreams(js nats.JetStreamContext, logger *zap.Logger) error {
	for _, spec := range Streams {
		_, err := js.StreamInfo(spec.Name)
		if err == nil {
			logger.Info("Using existing stream", zap.String("name", spec.Name))
			continue
		}
		if err != nats.ErrStreamNotFound {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		_, err = js.AddStream(&nats.StreamConfig{
			Name:     spec.Name,
			Subjects: spec.Subjects,
			Storage:  nats.FileStorage,
			MaxAge:   spec.MaxAge,
			MaxMsgs:  -1,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", spec.Name, err)
		}
		logger.Info("Created stream", zap.String("name", spec.Name))
	}
	return nil
}
