package committer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/model"
	"github.com/t77yq/worksched/internal/report"
	"github.com/t77yq/worksched/internal/scheduler"
	"github.com/t77yq/worksched/internal/storage"
)

const (
	committedSubject = "schedule.committed"
	workerSubject    = "schedule.worker."
)

var (
	// ErrNothingToCommit is returned for a nil or empty result
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrFingerprintMismatch is returned when a result's placements do not
	// hash to the fingerprint it carries
	ErrFingerprintMismatch = errors.New("fingerprint does not match placements")
)

var subjectUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// CommitEvent is published once per new commit
type CommitEvent struct {
	CommitID    string        `json:"commit_id"`
	Fingerprint string        `json:"fingerprint"`
	Verdict     model.Verdict `json:"verdict"`
	FinishTime  time.Time     `json:"finish_time"`
	TaskCount   int           `json:"task_count"`
	Workers     []string      `json:"workers"`
	CommittedAt time.Time     `json:"committed_at"`
}

// WorkerAgendaEvent carries the tasks assigned to one worker
type WorkerAgendaEvent struct {
	CommitID string        `json:"commit_id"`
	Agenda   report.Agenda `json:"agenda"`
}

// Committer freezes accepted results into the schedule store and announces
// them. A nil JetStream context disables announcements.
type Committer struct {
	logger *zap.Logger
	store  storage.ScheduleStore
	js     nats.JetStreamContext
	now    func() time.Time
}

// NewCommitter creates a new committer
func NewCommitter(store storage.ScheduleStore, js nats.JetStreamContext, logger *zap.Logger) *Committer {
	return &Committer{
		logger: logger.Named("committer"),
		store:  store,
		js:     js,
		now:    time.Now,
	}
}

// Confirm returns a copy of result with every tentative placement confirmed.
// Unscheduled records stay unscheduled.
func Confirm(result *model.SchedulingResult) *model.SchedulingResult {
	confirmed := *result
	confirmed.ScheduledTasks = make([]model.ScheduledTask, len(result.ScheduledTasks))
	for i, st := range result.ScheduledTasks {
		if st.Status == model.PlacementTentative {
			st.Status = model.PlacementConfirmed
		}
		confirmed.ScheduledTasks[i] = st
	}
	return &confirmed
}

// Commit confirms result and stores it. The fingerprint is recomputed from
// the placements; a result carrying a different one is rejected. Committing
// a result whose fingerprint is already stored returns the existing record
// and books nothing twice.
func (c *Committer) Commit(ctx context.Context, result *model.SchedulingResult) (*storage.CommitRecord, bool, error) {
	if result == nil || len(result.ScheduledTasks) == 0 {
		return nil, false, ErrNothingToCommit
	}

	fingerprint, err := scheduler.Fingerprint(result)
	if err != nil {
		return nil, false, err
	}
	if result.Fingerprint != "" && result.Fingerprint != fingerprint {
		c.logger.Warn("Rejected result with stale fingerprint",
			zap.String("claimed", result.Fingerprint),
			zap.String("fingerprint", fingerprint))
		return nil, false, ErrFingerprintMismatch
	}

	confirmed := Confirm(result)
	confirmed.Fingerprint = fingerprint
	confirmed.Suggestions = nil

	record := &storage.CommitRecord{
		ID:          uuid.New().String(),
		Fingerprint: fingerprint,
		Verdict:     confirmed.Verdict,
		FinishTime:  confirmed.FinishTime,
		TaskCount:   confirmed.Stats.TaskCount,
		CommittedAt: c.now(),
		Result:      confirmed,
	}

	stored, created, err := c.store.Commit(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("failed to commit schedule: %w", err)
	}
	if !created {
		c.logger.Info("Schedule already committed",
			zap.String("commit_id", stored.ID),
			zap.String("fingerprint", fingerprint))
		return stored, false, nil
	}

	c.logger.Info("Schedule committed",
		zap.String("commit_id", stored.ID),
		zap.String("fingerprint", fingerprint),
		zap.String("verdict", string(stored.Verdict)))

	if err := c.announce(stored); err != nil {
		return stored, true, err
	}
	return stored, true, nil
}

func (c *Committer) announce(record *storage.CommitRecord) error {
	if c.js == nil {
		return nil
	}

	agendas := report.BuildAgendas(record.Result)
	event := CommitEvent{
		CommitID:    record.ID,
		Fingerprint: record.Fingerprint,
		Verdict:     record.Verdict,
		FinishTime:  record.FinishTime,
		TaskCount:   record.TaskCount,
		Workers:     make([]string, 0, len(agendas)),
		CommittedAt: record.CommittedAt,
	}
	for _, a := range agendas {
		event.Workers = append(event.Workers, a.WorkerID)
	}

	if err := c.publish(committedSubject, event); err != nil {
		return err
	}
	for _, a := range agendas {
		if err := c.publish(WorkerSubject(a.WorkerID), WorkerAgendaEvent{CommitID: record.ID, Agenda: a}); err != nil {
			return err
		}
	}

	c.logger.Debug("Commit announced",
		zap.String("commit_id", record.ID),
		zap.Int("agendas", len(agendas)))
	return nil
}

func (c *Committer) publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", subject, err)
	}
	if _, err := c.js.Publish(subject, data); err != nil {
		c.logger.Error("Failed to publish commit event",
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// WorkerSubject returns the agenda subject of a worker. Characters NATS
// treats specially are replaced with underscores.
func WorkerSubject(workerID string) string {
	return workerSubject + subjectUnsafe.ReplaceAllString(workerID, "_")
}
