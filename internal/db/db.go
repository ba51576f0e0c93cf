package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/pkg/models"
)

//go:embed migration.sql
var migrationSQL string

// DB wraps the SQLite decision log
type DB struct {
	conn   *sql.DB
	path   string
	logger *zap.Logger
}

var (
	_ interfaces.DecisionStore = (*DB)(nil)
	_ interfaces.Observer      = (*DB)(nil)
)

// New opens (creating if needed) the database at dbPath and migrates it
func New(dbPath string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	// Pure-Go driver, no CGO
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1) // one writer; observers serialise through it
	conn.SetMaxIdleConns(1)

	db := &DB{
		conn:   conn,
		path:   dbPath,
		logger: logger,
	}

	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return db, nil
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(migrationSQL); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file
func (db *DB) Path() string {
	return db.path
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// GetSetting retrieves a setting value
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting updates or inserts a setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = strftime('%s', 'now')
	`, key, value, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// LogDecision stores one classification call
func (db *DB) LogDecision(ctx context.Context, rec *models.CallRecord) (int64, error) {
	var (
		category   sql.NullString
		confidence float64
		fallback   bool
		scores     sql.NullString
		errMsg     sql.NullString
	)
	if rec.Result != nil {
		category = sql.NullString{String: rec.Result.Category.String(), Valid: true}
		confidence = rec.Result.Confidence
		fallback = rec.Result.ShouldUseFallback
		if data, err := json.Marshal(rec.Result.AllScores); err == nil {
			scores = sql.NullString{String: string(data), Valid: true}
		}
	}
	if rec.Err != nil {
		errMsg = sql.NullString{String: rec.Err.Error(), Valid: true}
	}
	created := rec.Started
	if created.IsZero() {
		created = time.Now()
	}

	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO decisions (request_id, input, category, confidence, fallback, outcome, error_message, scores, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RequestID, rec.Text, category, confidence, fallback, rec.Outcome(), errMsg, scores, rec.Total.Milliseconds(), created.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to log decision: %w", err)
	}
	return result.LastInsertId()
}

// Observe logs rec, reporting failures instead of returning them
func (db *DB) Observe(ctx context.Context, rec *models.CallRecord) {
	if _, err := db.LogDecision(ctx, rec); err != nil {
		db.logger.Warn("failed to log decision", zap.String("request_id", rec.RequestID), zap.Error(err))
	}
}

// RecentDecisions returns up to limit entries, newest first
func (db *DB) RecentDecisions(ctx context.Context, limit int) ([]models.DecisionEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, COALESCE(request_id, ''), input, COALESCE(category, ''), confidence, fallback,
		       outcome, COALESCE(error_message, ''), duration_ms, created_at
		FROM decisions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var entries []models.DecisionEntry
	for rows.Next() {
		var (
			e       models.DecisionEntry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Input, &e.Category, &e.Confidence, &e.Fallback,
			&e.Outcome, &e.Error, &e.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarises the log
type Stats struct {
	Total        int64            `json:"total"`
	FallbackRate float64          `json:"fallback_rate"`
	ByOutcome    map[string]int64 `json:"by_outcome"`
	ByCategory   map[string]int64 `json:"by_category"`
}

// DecisionStats counts logged calls by outcome and category
func (db *DB) DecisionStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByOutcome: map[string]int64{}, ByCategory: map[string]int64{}}

	if err := db.countBy(ctx, "outcome", stats.ByOutcome); err != nil {
		return nil, err
	}
	if err := db.countBy(ctx, "category", stats.ByCategory); err != nil {
		return nil, err
	}

	var succeeded int64
	for outcome, n := range stats.ByOutcome {
		stats.Total += n
		if outcome == "local" || outcome == "fallback" {
			succeeded += n
		}
	}
	if succeeded > 0 {
		stats.FallbackRate = float64(stats.ByOutcome["fallback"]) / float64(succeeded)
	}
	return stats, nil
}

func (db *DB) countBy(ctx context.Context, column string, into map[string]int64) error {
	// column is one of two literals above, never user input
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM decisions WHERE %s IS NOT NULL GROUP BY %s", column, column, column))
	if err != nil {
		return fmt.Errorf("failed to count decisions by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

// PruneBefore deletes entries older than cutoff and returns how many went
func (db *DB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM decisions WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune decisions: %w", err)
	}
	return result.RowsAffected()
}
