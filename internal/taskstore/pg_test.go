package taskstore

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newMockStore(t *testing.T) (*PGTaskStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGTaskStore(db), mock
}

func TestCreate_InsertsPendingTask(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	task, err := store.Create(ctx, "api", "tenant-1", "trend_analysis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", task.Status)
	}
	if task.Progress != 0 {
		t.Fatalf("expected 0 progress, got %d", task.Progress)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStart_FailsWhenNotPending(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Start(ctx, id)
	if err == nil {
		t.Fatal("expected error when no row matches the pending precondition")
	}
}

func TestGet_UnmarshalsLogsAndResult(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())

	logs := []StepLog{{Step: 1, Name: "init", Status: "completed", Timestamp: time.Now().UTC()}}
	logsJSON, _ := json.Marshal(logs)
	resultJSON, _ := json.Marshal(map[string]any{"report": "5 new notes"})

	rows := sqlmock.NewRows([]string{
		"id", "source", "source_id", "task_type", "status", "progress",
		"result", "error", "logs", "created_at", "started_at", "completed_at",
	}).AddRow(
		id, "api", "tenant-1", "creator_monitor", StatusCompleted, 100,
		resultJSON, nil, logsJSON, time.Now().UTC(), time.Now().UTC(), time.Now().UTC(),
	)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, source, source_id, task_type, status, progress, result, error, logs, created_at, started_at, completed_at")).
		WillReturnRows(rows)

	task, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(task.Logs) != 1 || task.Logs[0].Name != "init" {
		t.Fatalf("expected 1 log entry 'init', got %+v", task.Logs)
	}
	if task.Result["report"] != "5 new notes" {
		t.Fatalf("expected result.report to round-trip, got %+v", task.Result)
	}
}

func TestComplete_SetsProgress100(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET status = $1, progress = 100,")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Complete(ctx, id, map[string]any{"report": "done"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLogStep_UpdatesInPlaceOnRepeatedStepNumber(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())

	existing := []StepLog{{Step: 1, Name: "init", Status: "running"}}
	existingJSON, _ := json.Marshal(existing)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT logs FROM tasks WHERE id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"logs"}).AddRow(existingJSON))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.LogStep(ctx, id, 1, "init", nil, map[string]any{"ok": true}, "completed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
