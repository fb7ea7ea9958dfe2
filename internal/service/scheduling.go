// Package service exposes the scheduling engine over NATS request/reply and
// announces every computed plan on JetStream.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/committer"
	"github.com/t77yq/worksched/internal/model"
	"github.com/t77yq/worksched/internal/monitor"
	"github.com/t77yq/worksched/internal/scheduler"
	"github.com/t77yq/worksched/internal/storage"
)

const (
	SubjectCompute   = "schedule.compute"
	SubjectRemediate = "schedule.remediate"
	SubjectCommit    = "schedule.commit"
	SubjectDiff      = "schedule.diff"
	SubjectSuggest   = "schedule.suggest"
	SubjectLookup    = "schedule.lookup"
	SubjectHistory   = "schedule.history"
	SubjectHours     = "schedule.hours"
	SubjectResult    = monitor.SubjectResult
	SubjectCommitted = "schedule.committed"

	queueGroup = "worksched"

	defaultHistoryLimit = 20
)

// RemediateRequest is the body of a schedule.remediate request
type RemediateRequest struct {
	Inputs model.SchedulingInputs `json:"inputs"`
	Kind   model.SuggestionKind   `json:"kind"`
}

// LookupRequest selects one commit by id or fingerprint. An empty request
// selects the latest commit.
type LookupRequest struct {
	ID          string `json:"id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// HistoryRequest pages through commits, newest first
type HistoryRequest struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// HoursRequest asks for the hours a worker is booked for
type HoursRequest struct {
	WorkerID string `json:"worker_id"`
}

// ReplyError is the error half of a Reply
type ReplyError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Reply is the envelope every request is answered with. Exactly one of
// Error or the payload fields is set.
type Reply struct {
	RequestID string                  `json:"request_id"`
	Result    *model.SchedulingResult `json:"result,omitempty"`
	Commit    *storage.CommitRecord   `json:"commit,omitempty"`
	Created   bool                    `json:"created,omitempty"`
	Diff      *storage.ScheduleDiff   `json:"diff,omitempty"`

	Suggestions []model.RemediationSuggestion `json:"suggestions,omitempty"`
	History     []*storage.CommitRecord       `json:"history,omitempty"`
	Total       int                           `json:"total,omitempty"`
	Hours       float64                       `json:"hours,omitempty"`

	Error *ReplyError `json:"error,omitempty"`
}

// SchedulingService answers scheduling requests
type SchedulingService struct {
	logger    *zap.Logger
	nc        *nats.Conn
	js        nats.JetStreamContext
	engine    *scheduler.Engine
	committer *committer.Committer
	store     storage.ScheduleStore
	preview   bool
	now       func() time.Time

	mu   sync.Mutex
	subs []*nats.Subscription
}

// Options configures a SchedulingService
type Options struct {
	// PreviewRemediations forces remediation previews on every compute
	PreviewRemediations bool
}

// NewSchedulingService creates a new scheduling service
func NewSchedulingService(nc *nats.Conn, js nats.JetStreamContext, engine *scheduler.Engine,
	c *committer.Committer, store storage.ScheduleStore, opts Options, logger *zap.Logger) *SchedulingService {
	return &SchedulingService{
		logger:    logger.Named("scheduling-service"),
		nc:        nc,
		js:        js,
		engine:    engine,
		committer: c,
		store:     store,
		preview:   opts.PreviewRemediations,
		now:       time.Now,
	}
}

// Start subscribes the request handlers
func (s *SchedulingService) Start(ctx context.Context) error {
	handlers := map[string]func(context.Context, []byte) Reply{
		SubjectCompute:   s.handleCompute,
		SubjectRemediate: s.handleRemediate,
		SubjectCommit:    s.handleCommit,
		SubjectDiff:      s.handleDiff,
		SubjectSuggest:   s.handleSuggest,
		SubjectLookup:    s.handleLookup,
		SubjectHistory:   s.handleHistory,
		SubjectHours:     s.handleHours,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for subject, handle := range handlers {
		handle := handle
		sub, err := s.nc.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
			s.respond(ctx, msg, handle)
		})
		if err != nil {
			s.unsubscribeLocked()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}

	s.logger.Info("Scheduling service started", zap.Int("subjects", len(handlers)))
	return nil
}

// Stop drains the request subscriptions
func (s *SchedulingService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked()
	s.logger.Info("Scheduling service stopped")
}

func (s *SchedulingService) unsubscribeLocked() {
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			s.logger.Warn("Failed to drain subscription",
				zap.String("subject", sub.Subject),
				zap.Error(err))
		}
	}
	s.subs = nil
}

func (s *SchedulingService) respond(ctx context.Context, msg *nats.Msg, handle func(context.Context, []byte) Reply) {
	requestID := uuid.New().String()
	reply := handle(context.WithValue(ctx, requestIDKey{}, requestID), msg.Data)
	reply.RequestID = requestID

	if reply.Error != nil {
		s.logger.Warn("Request failed",
			zap.String("subject", msg.Subject),
			zap.String("request_id", requestID),
			zap.String("kind", reply.Error.Kind),
			zap.String("error", reply.Error.Message))
	}

	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Error("Failed to send reply",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func errorReply(kind string, err error) Reply {
	return Reply{Error: &ReplyError{Kind: kind, Message: err.Error()}}
}

func engineError(err error) Reply {
	return errorReply(scheduler.ErrorKind(err), err)
}

func (s *SchedulingService) prepare(inputs *model.SchedulingInputs) {
	if inputs.PlanningStart.IsZero() {
		inputs.PlanningStart = s.now()
	}
	if s.preview {
		inputs.PreviewRemediations = true
	}
}

func (s *SchedulingService) handleCompute(ctx context.Context, data []byte) Reply {
	var inputs model.SchedulingInputs
	if err := json.Unmarshal(data, &inputs); err != nil {
		return errorReply("decode", err)
	}
	s.prepare(&inputs)

	started := time.Now()
	result, err := s.engine.Compute(inputs)
	if err != nil {
		return engineError(err)
	}
	s.announce(ctx, result, time.Since(started))
	return Reply{Result: result}
}

func (s *SchedulingService) handleRemediate(ctx context.Context, data []byte) Reply {
	var req RemediateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorReply("decode", err)
	}
	if req.Kind == "" {
		return errorReply("decode", errors.New("kind is required"))
	}
	s.prepare(&req.Inputs)

	started := time.Now()
	result, err := s.engine.Remediate(req.Inputs, req.Kind)
	if err != nil {
		return engineError(err)
	}
	s.announce(ctx, result, time.Since(started))
	return Reply{Result: result}
}

func (s *SchedulingService) handleCommit(ctx context.Context, data []byte) Reply {
	var result model.SchedulingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return errorReply("decode", err)
	}

	record, created, err := s.committer.Commit(ctx, &result)
	if errors.Is(err, committer.ErrNothingToCommit) || errors.Is(err, committer.ErrFingerprintMismatch) {
		return errorReply("validation", err)
	}
	if err != nil && record == nil {
		return errorReply("internal", err)
	}
	if err != nil {
		// stored but not announced
		s.logger.Warn("Commit stored without announcement", zap.Error(err))
	}
	return Reply{Commit: record, Created: created}
}

func (s *SchedulingService) handleDiff(ctx context.Context, data []byte) Reply {
	var result model.SchedulingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return errorReply("decode", err)
	}
	diff, err := s.store.Diff(ctx, &result)
	if err != nil {
		return errorReply("internal", err)
	}
	return Reply{Diff: diff}
}

func (s *SchedulingService) handleSuggest(ctx context.Context, data []byte) Reply {
	var inputs model.SchedulingInputs
	if err := json.Unmarshal(data, &inputs); err != nil {
		return errorReply("decode", err)
	}
	s.prepare(&inputs)

	suggestions, err := s.engine.Suggestions(inputs)
	if err != nil {
		return engineError(err)
	}
	return Reply{Suggestions: suggestions}
}

func (s *SchedulingService) handleLookup(ctx context.Context, data []byte) Reply {
	var req LookupRequest
	if err := decodeOptional(data, &req); err != nil {
		return errorReply("decode", err)
	}

	var (
		record *storage.CommitRecord
		err    error
	)
	switch {
	case req.ID != "":
		record, err = s.store.Get(ctx, req.ID)
	case req.Fingerprint != "":
		record, err = s.store.GetByFingerprint(ctx, req.Fingerprint)
	default:
		record, err = s.store.Latest(ctx)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return errorReply("not_found", err)
	}
	if err != nil {
		return errorReply("internal", err)
	}
	return Reply{Commit: record}
}

func (s *SchedulingService) handleHistory(ctx context.Context, data []byte) Reply {
	req := HistoryRequest{Limit: defaultHistoryLimit}
	if err := decodeOptional(data, &req); err != nil {
		return errorReply("decode", err)
	}
	if req.Offset < 0 || req.Limit <= 0 {
		return errorReply("validation", fmt.Errorf("invalid page offset=%d limit=%d", req.Offset, req.Limit))
	}

	records, err := s.store.List(ctx, req.Offset, req.Limit)
	if err != nil {
		return errorReply("internal", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return errorReply("internal", err)
	}
	return Reply{History: records, Total: total}
}

func (s *SchedulingService) handleHours(ctx context.Context, data []byte) Reply {
	var req HoursRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorReply("decode", err)
	}
	if req.WorkerID == "" {
		return errorReply("validation", errors.New("worker_id is required"))
	}

	hours, err := s.store.WorkerHours(ctx, req.WorkerID)
	if err != nil {
		return errorReply("internal", err)
	}
	return Reply{Hours: hours}
}

// decodeOptional unmarshals data into v unless the body is empty.
func decodeOptional(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// announce publishes the plan summary. Failures are only logged.
func (s *SchedulingService) announce(ctx context.Context, result *model.SchedulingResult, took time.Duration) {
	if s.js == nil {
		return
	}
	summary := model.Summarize(requestID(ctx), result, took, s.now())
	data, err := json.Marshal(summary)
	if err != nil {
		s.logger.Error("Failed to marshal result summary", zap.Error(err))
		return
	}
	if _, err := s.js.Publish(SubjectResult, data); err != nil {
		s.logger.Error("Failed to publish result summary",
			zap.String("fingerprint", result.Fingerprint),
			zap.Error(err))
	}
}
