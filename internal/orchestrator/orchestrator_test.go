package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/connectorsvc"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

// fakeLocks is a no-contention lockstore.Store for orchestrator tests,
// which exercise workflow logic, not the gate itself (covered by
// internal/connectorsvc's own tests).
type fakeLocks struct{ mu sync.Mutex }

func (f *fakeLocks) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return true, nil
}
func (f *fakeLocks) ReleaseLock(ctx context.Context, key, owner string) (bool, error) {
	return true, nil
}
func (f *fakeLocks) RateIncr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 1, nil
}
func (f *fakeLocks) ScanAndDelete(ctx context.Context, prefix string) (int, error) { return 0, nil }

// fakeTasks is an in-memory taskstore.TaskStore recording every call an
// orchestrator workflow makes, so tests can assert on the resulting state
// without a real database.
type fakeTasks struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*taskstore.Task
	Steps []taskstore.StepLog
}

func newFakeTasks(task *taskstore.Task) *fakeTasks {
	return &fakeTasks{tasks: map[uuid.UUID]*taskstore.Task{task.ID: task}}
}

func (f *fakeTasks) Create(ctx context.Context, source, sourceID, taskType string) (*taskstore.Task, error) {
	return nil, nil
}
func (f *fakeTasks) Get(ctx context.Context, id uuid.UUID) (*taskstore.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id], nil
}
func (f *fakeTasks) List(ctx context.Context, filter taskstore.ListFilter) ([]*taskstore.Task, error) {
	return nil, nil
}
func (f *fakeTasks) Start(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeTasks) WaitingLogin(ctx context.Context, id uuid.UUID, info map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		t.Status = taskstore.StatusWaitingLogin
		t.Result = info
	}
	return nil
}
func (f *fakeTasks) Complete(ctx context.Context, id uuid.UUID, result map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		t.Status = taskstore.StatusCompleted
		t.Result = result
		t.Progress = 100
	}
	return nil
}
func (f *fakeTasks) Fail(ctx context.Context, id uuid.UUID, errMsg string, progress *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		t.Status = taskstore.StatusFailed
		t.Error = errMsg
	}
	return nil
}
func (f *fakeTasks) Cancel(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeTasks) LogStep(ctx context.Context, id uuid.UUID, step int, name string, input, output map[string]any, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Steps = append(f.Steps, taskstore.StepLog{Step: step, Name: name, Input: input, Output: output, Status: status})
	return nil
}
func (f *fakeTasks) ListByStatus(ctx context.Context, status taskstore.TaskStatus) ([]*taskstore.Task, error) {
	return nil, nil
}

// fakeConnector returns canned data for every operation, keyed by creator
// or URL so tests can script distinct responses per call.
type fakeConnector struct {
	harvestByCreator map[string][]connectors.NoteSummary
	search           []connectors.NoteSummary
	detailByURL      map[string]connectors.NoteDetail
	login            connectors.LoginResult
}

func (c *fakeConnector) Platform() string                             { return "shortvideo" }
func (c *fakeConnector) Capabilities() map[connectors.Capability]bool { return nil }

func (c *fakeConnector) SearchAndExtract(ctx context.Context, source, sourceID string, keywords []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	return c.search, nil
}

func (c *fakeConnector) HarvestUserContent(ctx context.Context, source, sourceID string, creatorIDs []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	var out []connectors.NoteSummary
	for _, id := range creatorIDs {
		out = append(out, c.harvestByCreator[id]...)
	}
	return out, nil
}

func (c *fakeConnector) GetNoteDetail(ctx context.Context, source, sourceID string, urls []string, concurrency int) ([]connectors.NoteDetail, error) {
	out := make([]connectors.NoteDetail, 0, len(urls))
	for _, u := range urls {
		if d, ok := c.detailByURL[u]; ok {
			out = append(out, d)
		} else {
			out = append(out, connectors.NoteDetail{URL: u, Success: false, Error: "not found"})
		}
	}
	return out, nil
}

func (c *fakeConnector) Publish(ctx context.Context, source, sourceID, content, contentType string, images, tags []string) (connectors.PublishResult, error) {
	return connectors.PublishResult{}, nil
}
func (c *fakeConnector) LoginWithCookies(ctx context.Context, source, sourceID string, cookies map[string]string) (connectors.LoginResult, error) {
	return connectors.LoginResult{}, nil
}
func (c *fakeConnector) LoginWithQR(ctx context.Context, source, sourceID string, timeoutSeconds int) (connectors.LoginResult, error) {
	return c.login, nil
}
func (c *fakeConnector) ConfirmLogin(ctx context.Context, contextID string) error { return nil }

func newTestTask() *taskstore.Task {
	return &taskstore.Task{ID: uuid.Must(uuid.NewV7()), Status: taskstore.StatusRunning, TaskType: "trend_analysis"}
}

func newTestService(conn connectors.Connector, task *taskstore.Task) (*connectorsvc.Service, *fakeTasks) {
	reg := connectors.NewRegistry()
	reg.Register("shortvideo", func() (connectors.Connector, error) { return conn, nil })
	tasks := newFakeTasks(task)
	svc := connectorsvc.New(&fakeLocks{}, tasks, reg, "sniper", "tenant1", task)
	return svc, tasks
}
