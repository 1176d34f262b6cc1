package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PGTaskStore implements TaskStore against a PostgreSQL `tasks` table,
// grounded on internal/store/pg/teams_tasks.go's read-modify-save shape:
// the closest existing analogue is the teacher's TeamTaskData CRUD over a
// JSONB-backed table, adapted here to the Task lifecycle of spec §4.B
// (field names and transitions differ entirely — this is adaptation, not
// reuse of that struct).
type PGTaskStore struct {
	db *sql.DB
}

// NewPGTaskStore wraps an open *sql.DB (pgx/v5 stdlib driver).
func NewPGTaskStore(db *sql.DB) *PGTaskStore {
	return &PGTaskStore{db: db}
}

func (s *PGTaskStore) Create(ctx context.Context, source, sourceID, taskType string) (*Task, error) {
	t := &Task{
		ID:        uuid.Must(uuid.NewV7()),
		Source:    source,
		SourceID:  sourceID,
		TaskType:  taskType,
		Status:    StatusPending,
		Progress:  0,
		Logs:      []StepLog{},
		CreatedAt: time.Now().UTC(),
	}
	logsJSON, err := json.Marshal(t.Logs)
	if err != nil {
		return nil, fmt.Errorf("taskstore: marshal logs: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, source, source_id, task_type, status, progress, result, error, logs, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL, $7, $8)`,
		t.ID, t.Source, t.SourceID, t.TaskType, t.Status, t.Progress, logsJSON, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("taskstore: create: %w", err)
	}
	return t, nil
}

func (s *PGTaskStore) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, source_id, task_type, status, progress, result, error, logs, created_at, started_at, completed_at
		 FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("taskstore: task %s not found", id)
		}
		return nil, fmt.Errorf("taskstore: get: %w", err)
	}
	return t, nil
}

func (s *PGTaskStore) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	query := `SELECT id, source, source_id, task_type, status, progress, result, error, logs, created_at, started_at, completed_at
	          FROM tasks WHERE 1=1`
	var args []any
	n := 0
	addClause := func(clause string, val any) {
		n++
		query += fmt.Sprintf(" AND %s $%d", clause, n)
		args = append(args, val)
	}
	if filter.SourceID != "" {
		addClause("source_id =", filter.SourceID)
	}
	if filter.Status != "" {
		addClause("status =", filter.Status)
	}
	if filter.TaskType != "" {
		addClause("task_type =", filter.TaskType)
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("taskstore: list: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("taskstore: scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PGTaskStore) ListByStatus(ctx context.Context, status TaskStatus) ([]*Task, error) {
	return s.List(ctx, ListFilter{Status: status, Limit: 10000})
}

// scanner abstracts over *sql.Row and *sql.Rows so scanTask serves both Get
// and List/ListByStatus without duplicating the column list.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var t Task
	var resultJSON, logsJSON []byte
	var errText sql.NullString
	var startedAt, completedAt sql.NullTime

	if err := row.Scan(
		&t.ID, &t.Source, &t.SourceID, &t.TaskType, &t.Status, &t.Progress,
		&resultJSON, &errText, &logsJSON, &t.CreatedAt, &startedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	if errText.Valid {
		t.Error = errText.String
	}
	if startedAt.Valid {
		v := startedAt.Time
		t.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &t.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &t.Logs); err != nil {
			return nil, fmt.Errorf("unmarshal logs: %w", err)
		}
	}
	return &t, nil
}

func (s *PGTaskStore) Start(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, started_at = $2
		 WHERE id = $3 AND status = $4`,
		StatusRunning, now, id, StatusPending,
	)
	return checkTransition(res, err, id, "start")
}

func (s *PGTaskStore) WaitingLogin(ctx context.Context, id uuid.UUID, info map[string]any) error {
	result := map[string]any{"login_required": true}
	for k, v := range info {
		result[k] = v
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("taskstore: marshal login info: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, result = $2
		 WHERE id = $3 AND status = $4`,
		StatusWaitingLogin, resultJSON, id, StatusRunning,
	)
	return checkTransition(res, err, id, "waiting_login")
}

func (s *PGTaskStore) Complete(ctx context.Context, id uuid.UUID, result map[string]any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("taskstore: marshal result: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, progress = 100, result = $2, completed_at = $3
		 WHERE id = $4 AND status IN ($5, $6)`,
		StatusCompleted, resultJSON, now, id, StatusRunning, StatusWaitingLogin,
	)
	return checkTransition(res, err, id, "complete")
}

func (s *PGTaskStore) Fail(ctx context.Context, id uuid.UUID, errMsg string, progress *int) error {
	now := time.Now().UTC()
	if progress != nil {
		res, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET status = $1, error = $2, progress = $3, completed_at = $4
			 WHERE id = $5 AND status IN ($6, $7)`,
			StatusFailed, errMsg, *progress, now, id, StatusRunning, StatusWaitingLogin,
		)
		return checkTransition(res, err, id, "fail")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, error = $2, completed_at = $3
		 WHERE id = $4 AND status IN ($5, $6)`,
		StatusFailed, errMsg, now, id, StatusRunning, StatusWaitingLogin,
	)
	return checkTransition(res, err, id, "fail")
}

func (s *PGTaskStore) Cancel(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, completed_at = $2
		 WHERE id = $3 AND status IN ($4, $5, $6)`,
		StatusCancelled, now, id, StatusPending, StatusRunning, StatusWaitingLogin,
	)
	return checkTransition(res, err, id, "cancel")
}

// LogStep serializes writes per task with SELECT ... FOR UPDATE (spec §4.B:
// "log writes ... MUST be serialized per task"), coalescing a repeated step
// number into an in-place update rather than appending a duplicate.
func (s *PGTaskStore) LogStep(ctx context.Context, id uuid.UUID, step int, name string, input, output map[string]any, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("taskstore: begin: %w", err)
	}
	defer tx.Rollback()

	var logsJSON []byte
	if err := tx.QueryRowContext(ctx, `SELECT logs FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&logsJSON); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("taskstore: task %s not found", id)
		}
		return fmt.Errorf("taskstore: lock logs: %w", err)
	}

	var logs []StepLog
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &logs); err != nil {
			return fmt.Errorf("taskstore: unmarshal logs: %w", err)
		}
	}

	entry := StepLog{
		Step:      step,
		Name:      name,
		Timestamp: time.Now().UTC(),
		Input:     input,
		Output:    output,
		Status:    status,
	}
	replaced := false
	for i := range logs {
		if logs[i].Step == step {
			logs[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		logs = append(logs, entry)
	}

	newLogsJSON, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("taskstore: marshal logs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET logs = $1 WHERE id = $2`, newLogsJSON, id); err != nil {
		return fmt.Errorf("taskstore: update logs: %w", err)
	}
	return tx.Commit()
}

func checkTransition(res sql.Result, err error, id uuid.UUID, op string) error {
	if err != nil {
		return fmt.Errorf("taskstore: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("taskstore: %s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("taskstore: %s: task %s not in an eligible status (already terminal or concurrently modified)", op, id)
	}
	return nil
}
