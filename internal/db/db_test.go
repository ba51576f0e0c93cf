package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/themobileprof/textclass/internal/mocks"
	"github.com/themobileprof/textclass/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "textclass-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	db, err := New(filepath.Join(tmpDir, "data", "test.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew(t *testing.T) {
	db := newTestDB(t)

	if _, err := os.Stat(db.Path()); os.IsNotExist(err) {
		t.Errorf("Database file was not created: %s", db.Path())
	}

	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Database connection is not valid: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)

	tables := []string{"decisions", "settings"}
	for _, table := range tables {
		var count int
		err := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Errorf("Failed to query table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("Table %s does not exist after migration", table)
		}
	}

	// Migrations are idempotent
	if err := db.Migrate(); err != nil {
		t.Errorf("Second migration failed: %v", err)
	}
}

func TestSettings(t *testing.T) {
	db := newTestDB(t)

	if err := db.SetSetting("model_version", "v1"); err != nil {
		t.Fatalf("Failed to set setting: %v", err)
	}
	if err := db.SetSetting("model_version", "v2"); err != nil {
		t.Fatalf("Failed to update setting: %v", err)
	}

	retrieved, err := db.GetSetting("model_version")
	if err != nil {
		t.Fatalf("Failed to get setting: %v", err)
	}
	if retrieved != "v2" {
		t.Errorf("Expected v2, got %s", retrieved)
	}

	retrieved, err = db.GetSetting("nonexistent")
	if err != nil {
		t.Fatalf("Unexpected error for non-existent key: %v", err)
	}
	if retrieved != "" {
		t.Errorf("Expected empty string for non-existent key, got %s", retrieved)
	}
}

func TestLogDecision(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := &models.CallRecord{
		RequestID: "req-1",
		Text:      "spent 50 dollars",
		Started:   time.Now(),
		Total:     12 * time.Millisecond,
		Result:    mocks.Result(models.CategoryBudget, 0.91),
	}
	id, err := db.LogDecision(ctx, rec)
	if err != nil {
		t.Fatalf("Failed to log decision: %v", err)
	}
	if id == 0 {
		t.Error("Expected non-zero log ID")
	}

	var scores string
	if err := db.conn.QueryRow("SELECT scores FROM decisions WHERE id = ?", id).Scan(&scores); err != nil {
		t.Fatalf("Failed to query scores: %v", err)
	}
	if scores == "" || scores[0] != '{' {
		t.Errorf("Expected JSON scores, got %q", scores)
	}

	entries, err := db.RecentDecisions(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to read decisions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Category != "budget" || e.Outcome != "local" || e.Fallback {
		t.Errorf("Unexpected entry: %+v", e)
	}
	if e.DurationMs != 12 {
		t.Errorf("Expected duration 12ms, got %d", e.DurationMs)
	}
	if e.RequestID != "req-1" {
		t.Errorf("Expected request id req-1, got %s", e.RequestID)
	}
}

func TestObserveAndStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.Observe(ctx, &models.CallRecord{Text: "milk", Result: mocks.Result(models.CategoryShopping, 0.9)})
	db.Observe(ctx, &models.CallRecord{Text: "eggs", Result: mocks.Result(models.CategoryShopping, 0.95)})
	db.Observe(ctx, &models.CallRecord{Text: "hmm", Result: mocks.Result(models.CategoryNote, 0.3)})
	db.Observe(ctx, &models.CallRecord{Text: " ", Err: models.NewError(models.ErrEmptyInput, models.StageTokenize, nil)})
	db.Observe(ctx, &models.CallRecord{Text: "x", Err: errors.New("boom")})

	stats, err := db.DecisionStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Total != 5 {
		t.Errorf("Expected 5 decisions, got %d", stats.Total)
	}
	if stats.ByCategory["shopping"] != 2 {
		t.Errorf("Expected 2 shopping, got %d", stats.ByCategory["shopping"])
	}
	if stats.ByOutcome["fallback"] != 1 || stats.ByOutcome["local"] != 2 {
		t.Errorf("Unexpected outcomes: %v", stats.ByOutcome)
	}
	if stats.ByOutcome[models.ErrEmptyInput.Error()] != 1 || stats.ByOutcome["error"] != 1 {
		t.Errorf("Unexpected error outcomes: %v", stats.ByOutcome)
	}
	if want := 1.0 / 3; stats.FallbackRate < want-1e-9 || stats.FallbackRate > want+1e-9 {
		t.Errorf("Expected fallback rate %f, got %f", want, stats.FallbackRate)
	}

	entries, err := db.RecentDecisions(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to read decisions: %v", err)
	}
	if len(entries) != 2 || entries[0].Input != "x" || entries[1].Input != " " {
		t.Errorf("Expected newest first, got %+v", entries)
	}
	if entries[0].Error != "boom" {
		t.Errorf("Expected error message boom, got %q", entries[0].Error)
	}
}

func TestPruneBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	db.Observe(ctx, &models.CallRecord{Text: "old", Started: old, Result: mocks.Result(models.CategoryQuote, 0.8)})
	db.Observe(ctx, &models.CallRecord{Text: "new", Started: time.Now(), Result: mocks.Result(models.CategoryQuote, 0.8)})

	n, err := db.PruneBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 pruned row, got %d", n)
	}

	entries, err := db.RecentDecisions(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to read decisions: %v", err)
	}
	if len(entries) != 1 || entries[0].Input != "new" {
		t.Errorf("Unexpected entries after prune: %+v", entries)
	}
}
