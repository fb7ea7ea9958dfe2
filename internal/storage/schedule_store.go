package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/model"
)

// ErrNotFound is returned when a commit does not exist
var ErrNotFound = errors.New("commit not found")

// CommitRecord is one durable commit of an accepted scheduling result
type CommitRecord struct {
	ID          string                  `json:"id"`
	Fingerprint string                  `json:"fingerprint"`
	Verdict     model.Verdict           `json:"verdict"`
	FinishTime  time.Time               `json:"finish_time"`
	TaskCount   int                     `json:"task_count"`
	CommittedAt time.Time               `json:"committed_at"`
	Result      *model.SchedulingResult `json:"result,omitempty"`
}

// ScheduleDiff compares a result against the last committed schedule
type ScheduleDiff struct {
	Added     []model.TaskID `json:"added,omitempty"`
	Moved     []model.TaskID `json:"moved,omitempty"`
	Removed   []model.TaskID `json:"removed,omitempty"`
	Unchanged int            `json:"unchanged"`
}

// Empty reports whether the result matches the committed schedule.
func (d *ScheduleDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Moved) == 0 && len(d.Removed) == 0
}

// ScheduleStore defines the interface for committed schedule storage
type ScheduleStore interface {
	// Commit stores a commit and replaces the current schedule. It reports
	// false and the existing record when the fingerprint was committed before.
	Commit(ctx context.Context, record *CommitRecord) (*CommitRecord, bool, error)

	// Get retrieves a commit by ID
	Get(ctx context.Context, id string) (*CommitRecord, error)

	// GetByFingerprint retrieves the commit of a result fingerprint
	GetByFingerprint(ctx context.Context, fingerprint string) (*CommitRecord, error)

	// Latest returns the most recent commit
	Latest(ctx context.Context) (*CommitRecord, error)

	// List retrieves commits, newest first
	List(ctx context.Context, offset, limit int) ([]*CommitRecord, error)

	// Count returns the number of stored commits
	Count(ctx context.Context) (int, error)

	// CurrentSchedule returns the placements of the last commit keyed by task id
	CurrentSchedule(ctx context.Context) (map[model.TaskID][]model.ScheduledTask, error)

	// WorkerHours returns the hours a worker is booked for in the current
	// schedule
	WorkerHours(ctx context.Context, workerID string) (float64, error)

	// Diff compares result with the current schedule
	Diff(ctx context.Context, result *model.SchedulingResult) (*ScheduleDiff, error)

	// DeleteBefore deletes commits older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)

	// Close releases the database
	Close() error
}

// SQLiteScheduleStore implements ScheduleStore using SQLite
type SQLiteScheduleStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteScheduleStore opens or creates the database at dbPath
func NewSQLiteScheduleStore(logger *zap.Logger, dbPath string) (*SQLiteScheduleStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteScheduleStore{
		logger: logger.Named("schedule-store"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteScheduleStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schedule_commits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			fingerprint TEXT NOT NULL UNIQUE,
			verdict TEXT NOT NULL,
			finish_time DATETIME,
			task_count INTEGER NOT NULL,
			result TEXT NOT NULL,
			committed_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS current_schedule (
			task_id TEXT NOT NULL,
			worker_id TEXT NOT NULL,
			session INTEGER NOT NULL,
			title TEXT,
			start_time DATETIME,
			end_time DATETIME,
			target_completion DATETIME,
			latest_completion DATETIME,
			status TEXT NOT NULL,
			reason TEXT,
			commit_id TEXT NOT NULL,
			PRIMARY KEY (task_id, worker_id, session)
		);
		CREATE INDEX IF NOT EXISTS idx_schedule_commits_committed_at ON schedule_commits(committed_at);
		CREATE INDEX IF NOT EXISTS idx_current_schedule_worker_id ON current_schedule(worker_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Commit implements ScheduleStore.Commit
func (s *SQLiteScheduleStore) Commit(ctx context.Context, record *CommitRecord) (*CommitRecord, bool, error) {
	if record.Result == nil {
		return nil, false, fmt.Errorf("commit %s has no result", record.ID)
	}
	resultData, err := json.Marshal(record.Result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanCommit(tx.QueryRowContext(ctx, selectCommit+" WHERE fingerprint = ?", record.Fingerprint))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedule_commits (
			id, fingerprint, verdict, finish_time, task_count, result, committed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Fingerprint,
		record.Verdict,
		record.FinishTime.UTC(),
		record.TaskCount,
		string(resultData),
		record.CommittedAt.UTC(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store commit: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM current_schedule"); err != nil {
		return nil, false, fmt.Errorf("failed to clear current schedule: %w", err)
	}
	for _, st := range record.Result.ScheduledTasks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO current_schedule (
				task_id, worker_id, session, title, start_time, end_time,
				target_completion, latest_completion, status, reason, commit_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.TaskID,
			st.WorkerID,
			st.Session,
			st.Title,
			nullTime(st.StartTime),
			nullTime(st.EndTime),
			nullTime(st.TargetCompletionDate),
			nullTime(st.LatestCompletionDate),
			st.Status,
			sql.NullString{String: st.Reason, Valid: st.Reason != ""},
			record.ID,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to store scheduled task %s: %w", st.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Stored schedule commit",
		zap.String("commit_id", record.ID),
		zap.String("fingerprint", record.Fingerprint),
		zap.Int("records", len(record.Result.ScheduledTasks)))

	return record, true, nil
}

const selectCommit = `SELECT id, fingerprint, verdict, finish_time, task_count, result, committed_at FROM schedule_commits`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommit(row rowScanner) (*CommitRecord, error) {
	var record CommitRecord
	var finish sql.NullTime
	var resultData string

	err := row.Scan(
		&record.ID,
		&record.Fingerprint,
		&record.Verdict,
		&finish,
		&record.TaskCount,
		&resultData,
		&record.CommittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan commit: %w", err)
	}
	if finish.Valid {
		record.FinishTime = finish.Time
	}

	record.Result = &model.SchedulingResult{}
	if err := json.Unmarshal([]byte(resultData), record.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result of commit %s: %w", record.ID, err)
	}
	return &record, nil
}

// Get implements ScheduleStore.Get
func (s *SQLiteScheduleStore) Get(ctx context.Context, id string) (*CommitRecord, error) {
	return scanCommit(s.db.QueryRowContext(ctx, selectCommit+" WHERE id = ?", id))
}

// GetByFingerprint implements ScheduleStore.GetByFingerprint
func (s *SQLiteScheduleStore) GetByFingerprint(ctx context.Context, fingerprint string) (*CommitRecord, error) {
	return scanCommit(s.db.QueryRowContext(ctx, selectCommit+" WHERE fingerprint = ?", fingerprint))
}

// Latest implements ScheduleStore.Latest
func (s *SQLiteScheduleStore) Latest(ctx context.Context) (*CommitRecord, error) {
	return scanCommit(s.db.QueryRowContext(ctx, selectCommit+" ORDER BY seq DESC LIMIT 1"))
}

// List implements ScheduleStore.List
func (s *SQLiteScheduleStore) List(ctx context.Context, offset, limit int) ([]*CommitRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectCommit+" ORDER BY seq DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	defer rows.Close()

	var records []*CommitRecord
	for rows.Next() {
		record, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// Count implements ScheduleStore.Count
func (s *SQLiteScheduleStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedule_commits").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count commits: %w", err)
	}
	return count, nil
}

// CurrentSchedule implements ScheduleStore.CurrentSchedule
func (s *SQLiteScheduleStore) CurrentSchedule(ctx context.Context) (map[model.TaskID][]model.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, worker_id, session, title, start_time, end_time,
			target_completion, latest_completion, status, reason
		FROM current_schedule
		ORDER BY task_id, session, worker_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query current schedule: %w", err)
	}
	defer rows.Close()

	schedule := make(map[model.TaskID][]model.ScheduledTask)
	for rows.Next() {
		var st model.ScheduledTask
		var title, reason sql.NullString
		var start, end, target, latest sql.NullTime

		err := rows.Scan(
			&st.TaskID,
			&st.WorkerID,
			&st.Session,
			&title,
			&start,
			&end,
			&target,
			&latest,
			&st.Status,
			&reason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled task: %w", err)
		}

		st.Title = title.String
		st.Reason = reason.String
		st.StartTime = start.Time
		st.EndTime = end.Time
		st.TargetCompletionDate = target.Time
		st.LatestCompletionDate = latest.Time
		schedule[st.TaskID] = append(schedule[st.TaskID], st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return schedule, nil
}

// WorkerHours implements ScheduleStore.WorkerHours
func (s *SQLiteScheduleStore) WorkerHours(ctx context.Context, workerID string) (float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_time, end_time FROM current_schedule
		WHERE worker_id = ? AND status != ?`,
		workerID, model.PlacementUnscheduled)
	if err != nil {
		return 0, fmt.Errorf("failed to query worker hours: %w", err)
	}
	defer rows.Close()

	var hours float64
	for rows.Next() {
		var start, end sql.NullTime
		if err := rows.Scan(&start, &end); err != nil {
			return 0, fmt.Errorf("failed to scan worker hours: %w", err)
		}
		if start.Valid && end.Valid {
			hours += end.Time.Sub(start.Time).Hours()
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read worker hours: %w", err)
	}
	return hours, nil
}

// Diff implements ScheduleStore.Diff
func (s *SQLiteScheduleStore) Diff(ctx context.Context, result *model.SchedulingResult) (*ScheduleDiff, error) {
	current, err := s.CurrentSchedule(ctx)
	if err != nil {
		return nil, err
	}

	proposed := make(map[model.TaskID][]model.ScheduledTask)
	for _, st := range result.ScheduledTasks {
		proposed[st.TaskID] = append(proposed[st.TaskID], st)
	}

	diff := &ScheduleDiff{}
	for id, records := range proposed {
		old, ok := current[id]
		switch {
		case !ok || !placed(old):
			if placed(records) {
				diff.Added = append(diff.Added, id)
			} else if ok {
				diff.Unchanged++
			}
		case !placed(records):
			diff.Removed = append(diff.Removed, id)
		case summarize(old) != summarize(records):
			diff.Moved = append(diff.Moved, id)
		default:
			diff.Unchanged++
		}
	}
	for id, old := range current {
		if _, ok := proposed[id]; !ok && placed(old) {
			diff.Removed = append(diff.Removed, id)
		}
	}

	sortIDs(diff.Added)
	sortIDs(diff.Moved)
	sortIDs(diff.Removed)
	return diff, nil
}

// DeleteBefore implements ScheduleStore.DeleteBefore. The current schedule
// is kept even when its commit is removed.
func (s *SQLiteScheduleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM schedule_commits WHERE committed_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete commits: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old schedule commits",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

// Close closes the database connection
func (s *SQLiteScheduleStore) Close() error {
	return s.db.Close()
}

// placementKey is the comparable shape of one task's placement.
type placementKey struct {
	start, end string
	workers    string
}

func summarize(records []model.ScheduledTask) placementKey {
	var k placementKey
	var workers []string
	var start, end time.Time
	for _, st := range records {
		if st.Status == model.PlacementUnscheduled {
			continue
		}
		if start.IsZero() || st.StartTime.Before(start) {
			start = st.StartTime
		}
		if st.EndTime.After(end) {
			end = st.EndTime
		}
		workers = append(workers, st.WorkerID)
	}
	sort.Strings(workers)
	k.start = start.UTC().Format(time.RFC3339)
	k.end = end.UTC().Format(time.RFC3339)
	for _, w := range workers {
		k.workers += w + ","
	}
	return k
}

func placed(records []model.ScheduledTask) bool {
	for _, st := range records {
		if st.Status != model.PlacementUnscheduled {
			return true
		}
	}
	return false
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func sortIDs(ids []model.TaskID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
