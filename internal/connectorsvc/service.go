// Package connectorsvc dispatches connector operations through the
// distributed lock + rate-limit gate (spec §4.F), grounded on
// original_source/services/sniper/connectors/connector_service.py's
// ConnectorService.
package connectorsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/lockstore"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
	"github.com/nextlevelbuilder/harvestgate/internal/tracing"
)

var tracer = tracing.Tracer("harvestgate/connectorsvc")

type heldLock struct {
	key   string
	token string
}

// Service is constructed per request/task (spec §4.F: "Constructed per
// request/task with (browser_driver, source, source_id, task)"). A single
// Service instance handles exactly one task's operations and MUST have
// Close called on scope exit to release any locks it acquired.
type Service struct {
	locks    lockstore.Store
	tasks    taskstore.TaskStore
	registry *connectors.Registry

	source, sourceID string
	task             *taskstore.Task

	mu        sync.Mutex
	heldLocks []heldLock
}

// New constructs a Service bound to one task's lifecycle.
func New(locks lockstore.Store, tasks taskstore.TaskStore, registry *connectors.Registry, source, sourceID string, task *taskstore.Task) *Service {
	return &Service{locks: locks, tasks: tasks, registry: registry, source: source, sourceID: sourceID, task: task}
}

// executeWithLockAndLimit wraps fn in the gate algorithm (spec §4.F): bypass
// if no config row exists; otherwise rate_incr, then acquire_lock, then run.
// The lock is recorded for release on Close, never released here — it must
// outlive a single operation only until the owning task's scope exits
// (mirroring the Python's `async with distributed_lock(...)` nested inside
// the *instance's* lifetime, not the call's).
func (s *Service) executeWithLockAndLimit(ctx context.Context, platform, operation string, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, span := tracer.Start(ctx, "connectorsvc."+operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("harvestgate.platform", platform),
		attribute.String("harvestgate.source", s.source),
	)

	result, err := s.executeGated(ctx, platform, operation, fn)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (s *Service) executeGated(ctx context.Context, platform, operation string, fn func(ctx context.Context) (any, error)) (any, error) {
	limit, ok := limitFor(platform, operation)
	if !ok {
		return fn(ctx)
	}
	if s.task == nil {
		return nil, apperr.Internal(errors.New("connectorsvc: task is required for lock management"))
	}

	key := lockstore.LockKey(s.source, s.sourceID, platform, operation)
	rateKey := lockstore.RateKey(s.source, s.sourceID, platform, operation)

	count, err := s.locks.RateIncr(ctx, rateKey, limit.Window)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if count > int64(limit.MaxRequests) {
		return nil, apperr.RateLimitExceeded(operation)
	}

	taskID := s.task.ID.String()
	acquired, err := s.locks.AcquireLock(ctx, key, taskID, limit.LockTimeout)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !acquired {
		return nil, apperr.LockConflict(fmt.Sprintf("another task for this tenant+operation is in progress: %s/%s", platform, operation))
	}

	s.mu.Lock()
	s.heldLocks = append(s.heldLocks, heldLock{key: key, token: taskID})
	s.mu.Unlock()

	return fn(ctx)
}

func (s *Service) connectorFor(platform string) (connectors.Connector, error) {
	conn, err := s.registry.Get(platform)
	if err != nil {
		return nil, apperr.Validation("unsupported platform %q", platform)
	}
	return conn, nil
}

func (s *Service) SearchAndExtract(ctx context.Context, platform string, keywords []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	conn, err := s.connectorFor(platform)
	if err != nil {
		return nil, err
	}
	out, err := s.executeWithLockAndLimit(ctx, platform, "search_and_extract", func(ctx context.Context) (any, error) {
		return conn.SearchAndExtract(ctx, s.source, s.sourceID, keywords, limit, concurrency)
	})
	if err != nil {
		return nil, err
	}
	return out.([]connectors.NoteSummary), nil
}

func (s *Service) GetNoteDetails(ctx context.Context, platform string, urls []string, concurrency int) ([]connectors.NoteDetail, error) {
	conn, err := s.connectorFor(platform)
	if err != nil {
		return nil, err
	}
	out, err := s.executeWithLockAndLimit(ctx, platform, "get_note_detail", func(ctx context.Context) (any, error) {
		return conn.GetNoteDetail(ctx, s.source, s.sourceID, urls, concurrency)
	})
	if err != nil {
		return nil, err
	}
	return out.([]connectors.NoteDetail), nil
}

func (s *Service) HarvestUserContent(ctx context.Context, platform string, creatorIDs []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	conn, err := s.connectorFor(platform)
	if err != nil {
		return nil, err
	}
	out, err := s.executeWithLockAndLimit(ctx, platform, "harvest_user_content", func(ctx context.Context) (any, error) {
		return conn.HarvestUserContent(ctx, s.source, s.sourceID, creatorIDs, limit, concurrency)
	})
	if err != nil {
		return nil, err
	}
	return out.([]connectors.NoteSummary), nil
}

func (s *Service) PublishContent(ctx context.Context, platform, content, contentType string, images, tags []string) (connectors.PublishResult, error) {
	conn, err := s.connectorFor(platform)
	if err != nil {
		return connectors.PublishResult{}, err
	}
	out, err := s.executeWithLockAndLimit(ctx, platform, "publish_content", func(ctx context.Context) (any, error) {
		return conn.Publish(ctx, s.source, s.sourceID, content, contentType, images, tags)
	})
	if err != nil {
		return connectors.PublishResult{}, err
	}
	return out.(connectors.PublishResult), nil
}

// LoginMethod names the two supported login strategies (spec §4.E.iv).
type LoginMethod string

const (
	LoginMethodCookie LoginMethod = "cookie"
	LoginMethodQR     LoginMethod = "qrcode"
)

func (s *Service) Login(ctx context.Context, platform string, method LoginMethod, cookies map[string]string, timeoutSeconds int) (connectors.LoginResult, error) {
	conn, err := s.connectorFor(platform)
	if err != nil {
		return connectors.LoginResult{}, err
	}
	switch method {
	case LoginMethodCookie:
		if len(cookies) == 0 {
			return connectors.LoginResult{}, apperr.Validation("cookie login requires a cookies map")
		}
		out, err := s.executeWithLockAndLimit(ctx, platform, "login", func(ctx context.Context) (any, error) {
			return conn.LoginWithCookies(ctx, s.source, s.sourceID, cookies)
		})
		if err != nil {
			return connectors.LoginResult{}, err
		}
		return out.(connectors.LoginResult), nil
	case LoginMethodQR:
		out, err := s.executeWithLockAndLimit(ctx, platform, "login", func(ctx context.Context) (any, error) {
			return conn.LoginWithQR(ctx, s.source, s.sourceID, timeoutSeconds)
		})
		if err != nil {
			return connectors.LoginResult{}, err
		}
		return out.(connectors.LoginResult), nil
	default:
		return connectors.LoginResult{}, apperr.Validation("unsupported login method %q", method)
	}
}

func (s *Service) ConfirmLogin(ctx context.Context, platform, contextID string) error {
	conn, err := s.connectorFor(platform)
	if err != nil {
		return err
	}
	return conn.ConfirmLogin(ctx, contextID)
}

// Close releases every lock this instance acquired, LIFO, and couples the
// outcome to the task's lifecycle (spec §4.F step 6, grounded on
// ConnectorService.__aexit__): a cancellation marks the task cancelled; any
// other error while the task is still running/waiting_login marks it
// failed; otherwise Close leaves the task alone — the orchestrator's own
// code is responsible for calling Complete with its result.
func (s *Service) Close(ctx context.Context, opErr error) {
	s.mu.Lock()
	held := s.heldLocks
	s.heldLocks = nil
	s.mu.Unlock()

	for i := len(held) - 1; i >= 0; i-- {
		// Release failures are swallowed: the lock auto-expires via TTL, and
		// this path must never mask the primary error (spec §4.A).
		_, _ = s.locks.ReleaseLock(ctx, held[i].key, held[i].token)
	}

	if s.task == nil || s.tasks == nil {
		return
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		if s.task.Status != taskstore.StatusCancelled {
			_ = s.tasks.Cancel(context.WithoutCancel(ctx), s.task.ID)
		}
	case opErr != nil && (s.task.Status == taskstore.StatusRunning || s.task.Status == taskstore.StatusWaitingLogin):
		progress := s.task.Progress
		_ = s.tasks.Fail(context.WithoutCancel(ctx), s.task.ID, opErr.Error(), &progress)
	}
}

