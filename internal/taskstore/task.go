// Package taskstore persists the Task actor: the long-lived record of a
// single orchestrator run (creator monitor, trend analysis, harvest/analyze,
// or a bare connector operation) together with its append-only step log.
package taskstore

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is one of the states in the task lifecycle DAG:
//
//	pending -> {running, cancelled}
//	running -> {completed, failed, cancelled, waiting_login}
//	waiting_login -> {completed, failed, cancelled}
type TaskStatus string

const (
	StatusPending      TaskStatus = "pending"
	StatusRunning      TaskStatus = "running"
	StatusWaitingLogin TaskStatus = "waiting_login"
	StatusCompleted    TaskStatus = "completed"
	StatusFailed       TaskStatus = "failed"
	StatusCancelled    TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// StepLog is one entry in a task's execution log. Step numbers may repeat;
// storage coalesces repeated numbers into an update-in-place of that entry.
type StepLog struct {
	Step      int            `json:"step"`
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	Input     map[string]any `json:"input,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	Status    string         `json:"status"`
}

// Task is the AI-native task record: the orchestrator's working memory,
// readable by a human or an LLM via ToAgentReadable.
type Task struct {
	ID       uuid.UUID
	Source   string
	SourceID string
	TaskType string

	Status   TaskStatus
	Progress int

	Result map[string]any
	Error  string

	Logs []StepLog

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// defaultTimeouts gives the sweeper (§4.G) a per-task-type running-time
// budget. Spec.md's Data Model does not carry a stored timeout column, so
// this table is the concrete resolution of "task.timeout_config" — a
// source ambiguity recorded in DESIGN.md rather than invented silently.
var defaultTimeouts = map[string]time.Duration{
	"trend_analysis":      15 * time.Minute,
	"creator_monitor":     15 * time.Minute,
	"harvest_content":     10 * time.Minute,
	"search_and_extract":  5 * time.Minute,
	"get_note_detail":     5 * time.Minute,
	"harvest_user_content": 10 * time.Minute,
	"publish_content":     2 * time.Minute,
	"login":               3 * time.Minute,
}

const defaultTaskTimeout = 10 * time.Minute

// TimeoutFor returns the running-time budget for a task type.
func TimeoutFor(taskType string) time.Duration {
	if d, ok := defaultTimeouts[taskType]; ok {
		return d
	}
	return defaultTaskTimeout
}
