package httpapi

import (
	"context"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/authfilter"
	"github.com/nextlevelbuilder/harvestgate/internal/connectorsvc"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

// runSyncOperation wires a single bare connector operation (spec §4.F) into
// the Task lifecycle: create, start, run fn through a connectorsvc.Service,
// release the service's locks via Close, then complete or fail the task.
// This mirrors the propagation policy of spec §7: "Orchestrators catch
// exceptions, transition the task to failed with the error text, then
// re-raise ... for a 5xx."
func (s *Server) runSyncOperation(ctx context.Context, identity authfilter.Identity, taskType string, fn func(ctx context.Context, svc *connectorsvc.Service) (map[string]any, error)) (*taskstore.Task, map[string]any, error) {
	if !s.localLimit.Allow(identity.Source + ":" + identity.SourceID) {
		return nil, nil, apperr.RateLimitExceeded(taskType)
	}

	task, err := s.tasks.Create(ctx, identity.Source, identity.SourceID, taskType)
	if err != nil {
		return nil, nil, err
	}
	if err := s.tasks.Start(ctx, task.ID); err != nil {
		return nil, nil, err
	}
	task.Status = taskstore.StatusRunning

	svc := s.newConnectorService(identity, task)

	result, opErr := fn(ctx, svc)
	svc.Close(ctx, opErr)

	if opErr != nil {
		progress := task.Progress
		_ = s.tasks.Fail(ctx, task.ID, opErr.Error(), &progress)
		return task, nil, opErr
	}
	if err := s.tasks.Complete(ctx, task.ID, result); err != nil {
		return task, nil, err
	}
	return task, result, nil
}
