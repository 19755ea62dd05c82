// Package store persists per-bucket mining aggregates in SQLite so totals
// over any bucket range can be folded without re-reading event logs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/chainminer/internal/miner"
	"github.com/harrison/chainminer/internal/models"
)

// Run statuses
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded mining run.
type Run struct {
	ID            string
	Source        string
	StartedAt     time.Time
	FinishedAt    *time.Time
	Events        int
	Buckets       int
	FailedBuckets int
	Status        string
}

// Range restricts queries to buckets in [Since, Until]. Empty bounds are open.
// Bucket keys are ISO dates or hours, so lexical order is chronological.
type Range struct {
	Since string
	Until string
}

func (r Range) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	if r.Since != "" {
		conds = append(conds, "bucket >= ?")
		args = append(args, r.Since)
	}
	if r.Until != "" {
		conds = append(conds, "bucket <= ?")
		args = append(args, r.Until)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Store manages the SQLite mining database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database.
// ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer, and every new connection to ":memory:"
	// would see an empty database.
	db.SetMaxOpenConns(1)

	// busy_timeout must be set first so later pragmas wait on locks
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return s, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginRun records the start of a run over source and returns its id.
func (s *Store) BeginRun(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, started_at, status) VALUES (?, ?, ?, ?)`,
		id, source, time.Now().UTC(), StatusRunning)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run with its totals and final status.
func (s *Store) FinishRun(ctx context.Context, runID string, summary models.RunSummary) error {
	status := StatusSuccess
	switch summary.Status() {
	case "PARTIAL":
		status = StatusPartial
	case "FAILED":
		status = StatusFailed
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, events = ?, buckets = ?, failed_buckets = ?, status = ? WHERE id = ?`,
		time.Now().UTC(), summary.Events, summary.Buckets, summary.Failed, status, runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecordBucket stores the aggregates of one bucket, replacing whatever the
// same source previously recorded for it. Recording the same bucket again
// is therefore idempotent, while the same bucket mined from different
// sources adds up in the totals.
func (s *Store) RecordBucket(ctx context.Context, runID, bucket string, counts miner.TransitionCounts, lengths map[int]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var source string
	err = tx.QueryRowContext(ctx, `SELECT source FROM runs WHERE id = ?`, runID).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}

	for _, table := range []string{"bucket_transitions", "bucket_trace_lengths"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE source = ? AND bucket = ?`, table), source, bucket); err != nil {
			return fmt.Errorf("clear %s for %s: %w", table, bucket, err)
		}
	}

	for _, t := range counts.Transitions() {
		n := counts[t]
		if n < 0 {
			return fmt.Errorf("%w: %s = %d", models.ErrNegativeCount, t, n)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bucket_transitions (source, bucket, from_category, to_category, count, run_id) VALUES (?, ?, ?, ?, ?, ?)`,
			source, bucket, string(t.From), string(t.To), n, runID); err != nil {
			return fmt.Errorf("insert transition %s: %w", t, err)
		}
	}

	for length, cases := range lengths {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bucket_trace_lengths (source, bucket, length, cases, run_id) VALUES (?, ?, ?, ?, ?)`,
			source, bucket, length, cases, runID); err != nil {
			return fmt.Errorf("insert trace length %d: %w", length, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bucket %s: %w", bucket, err)
	}
	return nil
}

// BucketTransitions returns per-bucket counts in r, summed across sources.
func (s *Store) BucketTransitions(ctx context.Context, r Range) (miner.BucketedCounts, error) {
	where, args := r.where()
	rows, err := s.db.QueryContext(ctx,
		`SELECT bucket, from_category, to_category, SUM(count) FROM bucket_transitions`+where+
			` GROUP BY bucket, from_category, to_category`, args...)
	if err != nil {
		return nil, fmt.Errorf("query bucket transitions: %w", err)
	}
	defer rows.Close()

	out := miner.BucketedCounts{}
	for rows.Next() {
		var bucket, from, to string
		var n int
		if err := rows.Scan(&bucket, &from, &to, &n); err != nil {
			return nil, fmt.Errorf("scan bucket transition: %w", err)
		}
		if out[bucket] == nil {
			out[bucket] = miner.TransitionCounts{}
		}
		out[bucket][models.NewTransition(models.Category(from), models.Category(to))] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bucket transitions: %w", err)
	}
	return out, nil
}

// TraceLengths returns the trace-length histogram of every bucket in r.
func (s *Store) TraceLengths(ctx context.Context, r Range) (miner.TraceLengthHistogram, error) {
	where, args := r.where()
	rows, err := s.db.QueryContext(ctx,
		`SELECT bucket, length, SUM(cases) FROM bucket_trace_lengths`+where+
			` GROUP BY bucket, length`, args...)
	if err != nil {
		return nil, fmt.Errorf("query trace lengths: %w", err)
	}
	defer rows.Close()

	hist := miner.TraceLengthHistogram{}
	for rows.Next() {
		var bucket string
		var length, cases int
		if err := rows.Scan(&bucket, &length, &cases); err != nil {
			return nil, fmt.Errorf("scan trace length: %w", err)
		}
		if hist[bucket] == nil {
			hist[bucket] = map[int]int{}
		}
		hist[bucket][length] = cases
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace lengths: %w", err)
	}
	return hist, nil
}

// BucketSpan returns the smallest and largest stored bucket in r.
// Both are empty when nothing is stored.
func (s *Store) BucketSpan(ctx context.Context, r Range) (string, string, error) {
	where, args := r.where()
	var lo, hi sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MIN(bucket), MAX(bucket) FROM bucket_transitions`+where, args...).Scan(&lo, &hi)
	if err != nil {
		return "", "", fmt.Errorf("query bucket span: %w", err)
	}
	return lo.String, hi.String, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, source, started_at, finished_at, events, buckets, failed_buckets, status
		FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Source, &run.StartedAt, &finished,
			&run.Events, &run.Buckets, &run.FailedBuckets, &run.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Clear removes every run and aggregate. The schema is kept.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"bucket_transitions", "bucket_trace_lengths", "runs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
