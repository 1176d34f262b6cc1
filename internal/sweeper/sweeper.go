// Package sweeper implements the task timeout sweeper (spec §4.G): a
// singleton background loop that fails tasks abandoned by a dead owner
// process. Grounded structurally on
// internal/mcp/manager_connect.go's healthLoop ticker-plus-select shape,
// and on the Lua-atomic-election pattern from
// original_source/middleware/task_timeout.py's TaskTimeoutChecker.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/harvestgate/internal/lockstore"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

const (
	checkInterval = 60 * time.Second
	lockKey       = "task_timeout_checker:lock"
	lockOwner     = "locked"
	lockTimeout   = 70 * time.Second // must exceed checkInterval
)

// Sweeper is the singleton cluster-wide task-timeout monitor. Only one
// instance across the cluster performs a check on any given tick, elected
// via a short-lived distributed lock.
type Sweeper struct {
	locks lockstore.Store
	tasks taskstore.TaskStore
}

// New constructs a Sweeper. Call Run in its own goroutine.
func New(locks lockstore.Store, tasks taskstore.TaskStore) *Sweeper {
	return &Sweeper{locks: locks, tasks: tasks}
}

// Run blocks, ticking every checkInterval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	acquired, err := s.locks.AcquireLock(ctx, lockKey, lockOwner, lockTimeout)
	if err != nil {
		slog.Error("sweeper: lock acquire failed, skipping this tick", "error", err)
		return
	}
	if !acquired {
		slog.Debug("sweeper: lock held elsewhere, skipping this tick")
		return
	}
	defer func() {
		if _, err := s.locks.ReleaseLock(ctx, lockKey, lockOwner); err != nil {
			slog.Error("sweeper: lock release failed, will auto-expire", "error", err)
		}
	}()

	s.checkTimeouts(ctx)
}

// checkTimeouts loads every running task and fails those whose own
// task-type timeout budget has elapsed since started_at (spec §4.G step 2).
func (s *Sweeper) checkTimeouts(ctx context.Context) {
	running, err := s.tasks.ListByStatus(ctx, taskstore.StatusRunning)
	if err != nil {
		slog.Error("sweeper: failed to list running tasks", "error", err)
		return
	}

	now := time.Now()
	for _, task := range running {
		if task.StartedAt == nil {
			continue
		}
		timeout := taskstore.TimeoutFor(task.TaskType)
		if now.Sub(*task.StartedAt) <= timeout {
			continue
		}

		progress := task.Progress
		errMsg := "task timed out after " + timeout.String()
		if err := s.tasks.Fail(ctx, task.ID, errMsg, &progress); err != nil {
			slog.Error("sweeper: failed to mark task as failed", "task_id", task.ID, "error", err)
			continue
		}
		slog.Warn("sweeper: task timed out", "task_id", task.ID, "task_type", task.TaskType, "timeout", timeout)
	}
}
