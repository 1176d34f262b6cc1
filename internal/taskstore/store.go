package taskstore

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows TaskStore.List. Zero values mean "no filter".
type ListFilter struct {
	SourceID string
	Status   TaskStatus
	TaskType string
	Limit    int
}

// TaskStore is the persistence contract for Task. Every mutation MUST
// persist before returning (spec §4.B: "all mutations must persist before
// returning"). Implementations MUST serialize LogStep calls per task id,
// even though there is no ordering requirement across different tasks.
type TaskStore interface {
	Create(ctx context.Context, source, sourceID, taskType string) (*Task, error)
	Get(ctx context.Context, id uuid.UUID) (*Task, error)
	List(ctx context.Context, filter ListFilter) ([]*Task, error)

	Start(ctx context.Context, id uuid.UUID) error
	WaitingLogin(ctx context.Context, id uuid.UUID, info map[string]any) error
	Complete(ctx context.Context, id uuid.UUID, result map[string]any) error
	// Fail transitions the task to failed. progress, when non-nil, overrides
	// the stored progress (spec: "preserves progress if provided").
	Fail(ctx context.Context, id uuid.UUID, errMsg string, progress *int) error
	Cancel(ctx context.Context, id uuid.UUID) error

	// LogStep appends a step, or updates in place when step repeats an
	// existing entry's Step number.
	LogStep(ctx context.Context, id uuid.UUID, step int, name string, input, output map[string]any, status string) error

	// ListByStatus returns every task in the given status, for the timeout
	// sweeper (§4.G), which loads all `running` tasks and compares each
	// one's own started_at against its task-type timeout budget.
	ListByStatus(ctx context.Context, status TaskStatus) ([]*Task, error)
}
