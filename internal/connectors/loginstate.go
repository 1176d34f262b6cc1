package connectors

import (
	"context"
	"sync"
	"time"

	"github.com/nextlevelbuilder/harvestgate/internal/pagedriver"
	"github.com/nextlevelbuilder/harvestgate/internal/remotebrowser"
)

// LoginTask is the in-memory record of a pending QR login, kept on the
// connector instance (spec §3 "LoginTask (in-memory)"): written when QR
// login starts, read and deleted when the user confirms, or replaced by a
// later QR login for the same context. No background loop expires entries
// past Deadline; Expired only lists them. Grounded structurally on
// internal/channels/zalo/personal/auth.go's preloaded->saved->interactive
// QR-login shape, generalized to this spec's confirm/timeout race.
type LoginTask struct {
	Session   remotebrowser.Session
	Driver    pagedriver.Driver
	Deadline  time.Time
}

// LoginTaskMap is the connector's login-flow state, one entry per
// context_id. Resolution MUST be idempotent: two callers (e.g. two confirm
// requests, or a confirm and an expiry pass over Expired) may race to
// resolve the same context_id, and only the first one to
// observe the entry should perform the delete-with-sync (spec §9 open
// question, §4.E.iv "Login confirmation").
type LoginTaskMap struct {
	mu    sync.Mutex
	tasks map[string]*LoginTask
}

// NewLoginTaskMap returns an empty map.
func NewLoginTaskMap() *LoginTaskMap {
	return &LoginTaskMap{tasks: make(map[string]*LoginTask)}
}

// Start records a pending login task for contextID. Overwrites any prior
// entry for the same key (a stale deadline that was never resolved).
func (m *LoginTaskMap) Start(contextID string, task *LoginTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[contextID] = task
}

// Resolve removes and returns the task for contextID, if still pending. The
// bool return is false when another caller already resolved it — the
// caller should treat that as success-by-no-op, not an error, since
// concurrent resolvers of the same id are expected.
func (m *LoginTaskMap) Resolve(contextID string) (*LoginTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[contextID]
	if !ok {
		return nil, false
	}
	delete(m.tasks, contextID)
	return task, true
}

// Expired returns every (contextID, task) pair whose deadline has passed,
// for a background sweep. Callers MUST still call Resolve for each id
// before acting, since the explicit confirm endpoint may resolve the same
// id concurrently.
func (m *LoginTaskMap) Expired(now time.Time) map[string]*LoginTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*LoginTask)
	for id, t := range m.tasks {
		if now.After(t.Deadline) {
			out[id] = t
		}
	}
	return out
}

// ConfirmOrExpire is the teardown the connectors' ConfirmLogin runs, usable
// as-is by an expiry pass over Expired: resolve the entry (idempotent —
// the second caller sees ok=false and does nothing), then always flush the
// context on delete, since a user who opened the viewer and let the timer
// elapse either succeeded or abandoned, and either way the cookies that
// exist should be kept (spec §4.E.iv).
func ConfirmOrExpire(ctx context.Context, browser remotebrowser.Client, tasks *LoginTaskMap, contextID string) error {
	task, ok := tasks.Resolve(contextID)
	if !ok {
		return nil
	}
	if task.Driver != nil {
		_ = task.Driver.Close(ctx)
	}
	_, err := browser.Delete(ctx, task.Session, true)
	return err
}
