package connectorsvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/lockstore"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

// fakeLockStore is a simple in-memory lockstore.Store for gate tests.
type fakeLockStore struct {
	mu      sync.Mutex
	locks   map[string]string
	counts  map[string]int64
	Release []string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{locks: map[string]string{}, counts: map[string]int64{}}
}

func (f *fakeLockStore) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.locks[key]; held {
		return false, nil
	}
	f.locks[key] = owner
	return true, nil
}

func (f *fakeLockStore) ReleaseLock(ctx context.Context, key, owner string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Release = append(f.Release, key)
	if f.locks[key] != owner {
		return false, nil
	}
	delete(f.locks, key)
	return true, nil
}

func (f *fakeLockStore) RateIncr(ctx context.Context, key string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeLockStore) ScanAndDelete(ctx context.Context, prefix string) (int, error) { return 0, nil }

// fakeTaskStore records Cancel/Fail calls; other methods are unused by
// these tests but required to satisfy taskstore.TaskStore.
type fakeTaskStore struct {
	mu        sync.Mutex
	Cancelled []uuid.UUID
	Failed    []string
}

func (f *fakeTaskStore) Create(ctx context.Context, source, sourceID, taskType string) (*taskstore.Task, error) {
	return nil, nil
}
func (f *fakeTaskStore) Get(ctx context.Context, id uuid.UUID) (*taskstore.Task, error) { return nil, nil }
func (f *fakeTaskStore) List(ctx context.Context, filter taskstore.ListFilter) ([]*taskstore.Task, error) {
	return nil, nil
}
func (f *fakeTaskStore) Start(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeTaskStore) WaitingLogin(ctx context.Context, id uuid.UUID, info map[string]any) error {
	return nil
}
func (f *fakeTaskStore) Complete(ctx context.Context, id uuid.UUID, result map[string]any) error {
	return nil
}
func (f *fakeTaskStore) Fail(ctx context.Context, id uuid.UUID, errMsg string, progress *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Failed = append(f.Failed, errMsg)
	return nil
}
func (f *fakeTaskStore) Cancel(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancelled = append(f.Cancelled, id)
	return nil
}
func (f *fakeTaskStore) LogStep(ctx context.Context, id uuid.UUID, step int, name string, input, output map[string]any, status string) error {
	return nil
}
func (f *fakeTaskStore) ListByStatus(ctx context.Context, status taskstore.TaskStatus) ([]*taskstore.Task, error) {
	return nil, nil
}

// stubConnector returns canned results for every operation; tests assert
// gate behavior, not extraction behavior.
type stubConnector struct {
	summaries []connectors.NoteSummary
	err       error
}

func (c *stubConnector) Platform() string { return "shortvideo" }
func (c *stubConnector) Capabilities() map[connectors.Capability]bool { return nil }
func (c *stubConnector) SearchAndExtract(ctx context.Context, source, sourceID string, keywords []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	return c.summaries, c.err
}
func (c *stubConnector) HarvestUserContent(ctx context.Context, source, sourceID string, creatorIDs []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	return c.summaries, c.err
}
func (c *stubConnector) GetNoteDetail(ctx context.Context, source, sourceID string, urls []string, concurrency int) ([]connectors.NoteDetail, error) {
	return nil, c.err
}
func (c *stubConnector) Publish(ctx context.Context, source, sourceID, content, contentType string, images, tags []string) (connectors.PublishResult, error) {
	return connectors.PublishResult{}, c.err
}
func (c *stubConnector) LoginWithCookies(ctx context.Context, source, sourceID string, cookies map[string]string) (connectors.LoginResult, error) {
	return connectors.LoginResult{}, c.err
}
func (c *stubConnector) LoginWithQR(ctx context.Context, source, sourceID string, timeoutSeconds int) (connectors.LoginResult, error) {
	return connectors.LoginResult{}, c.err
}
func (c *stubConnector) ConfirmLogin(ctx context.Context, contextID string) error { return c.err }

func newTestService(t *testing.T, locks *fakeLockStore, tasks *fakeTaskStore, conn connectors.Connector, status taskstore.TaskStatus) *Service {
	t.Helper()
	reg := connectors.NewRegistry()
	reg.Register("shortvideo", func() (connectors.Connector, error) { return conn, nil })
	reg.Register("messaging", func() (connectors.Connector, error) { return conn, nil })
	task := &taskstore.Task{ID: uuid.Must(uuid.NewV7()), Status: status, Progress: 40}
	return New(locks, tasks, reg, "sniper", "tenant1", task)
}

// messaging/search_and_extract has no row in rateLimitConfigs, so the call
// MUST bypass gating entirely (spec §4.F gate algorithm step 1) rather than
// erroring or consuming a rate-limit slot.
func TestSearchAndExtract_BypassesGateForUnconfiguredOperation(t *testing.T) {
	locks := newFakeLockStore()
	tasks := &fakeTaskStore{}
	conn := &stubConnector{summaries: []connectors.NoteSummary{{Title: "x"}}}
	svc := newTestService(t, locks, tasks, conn, taskstore.StatusRunning)

	out, err := svc.SearchAndExtract(context.Background(), "messaging", []string{"kw"}, 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 summary, got %+v", out)
	}
	if len(locks.locks) != 0 {
		t.Fatalf("expected no lock held for a bypassed operation, got %+v", locks.locks)
	}
}

func TestSearchAndExtract_RateLimitExceeded(t *testing.T) {
	locks := newFakeLockStore()
	tasks := &fakeTaskStore{}
	conn := &stubConnector{summaries: []connectors.NoteSummary{{Title: "x"}}}
	svc := newTestService(t, locks, tasks, conn, taskstore.StatusRunning)

	var lastErr error
	for i := 0; i < 11; i++ {
		_, lastErr = svc.SearchAndExtract(context.Background(), "shortvideo", []string{"kw"}, 10, 2)
	}
	e, ok := apperr.As(lastErr)
	if !ok || e.Kind != apperr.KindRateLimitExceeded {
		t.Fatalf("expected RateLimitExceeded on the 11th call (max_requests=10), got %v", lastErr)
	}
}

func TestSearchAndExtract_LockConflictWhenAlreadyHeld(t *testing.T) {
	locks := newFakeLockStore()
	tasks := &fakeTaskStore{}
	conn := &stubConnector{summaries: []connectors.NoteSummary{{Title: "x"}}}
	svc := newTestService(t, locks, tasks, conn, taskstore.StatusRunning)

	if _, err := svc.SearchAndExtract(context.Background(), "shortvideo", []string{"kw"}, 10, 2); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}

	// A second Service instance (different task) competing for the same
	// (source, source_id, platform, operation) key must be rejected.
	otherTask := &taskstore.Task{ID: uuid.Must(uuid.NewV7()), Status: taskstore.StatusRunning}
	other := New(locks, tasks, svc.registry, "sniper", "tenant1", otherTask)
	_, err := other.SearchAndExtract(context.Background(), "shortvideo", []string{"kw"}, 10, 2)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindLockConflict {
		t.Fatalf("expected LockConflict, got %v", err)
	}
}

func TestClose_FailsRunningTaskOnError(t *testing.T) {
	locks := newFakeLockStore()
	tasks := &fakeTaskStore{}
	conn := &stubConnector{}
	svc := newTestService(t, locks, tasks, conn, taskstore.StatusRunning)

	svc.Close(context.Background(), apperr.Internal(nil))
	if len(tasks.Failed) != 1 {
		t.Fatalf("expected task to be failed on Close with an error, got %+v", tasks.Failed)
	}
}

func TestClose_CancelsTaskOnContextCancellation(t *testing.T) {
	locks := newFakeLockStore()
	tasks := &fakeTaskStore{}
	conn := &stubConnector{}
	svc := newTestService(t, locks, tasks, conn, taskstore.StatusRunning)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Close(ctx, nil)
	if len(tasks.Cancelled) != 1 {
		t.Fatalf("expected task to be cancelled on Close with a cancelled context, got %+v", tasks.Cancelled)
	}
}

func TestClose_ReleasesHeldLocksLIFO(t *testing.T) {
	locks := newFakeLockStore()
	tasks := &fakeTaskStore{}
	conn := &stubConnector{}
	svc := newTestService(t, locks, tasks, conn, taskstore.StatusRunning)

	if _, err := svc.SearchAndExtract(context.Background(), "shortvideo", nil, 10, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.HarvestUserContent(context.Background(), "shortvideo", nil, 10, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.Close(context.Background(), nil)
	if len(locks.locks) != 0 {
		t.Fatalf("expected every held lock released, got %+v", locks.locks)
	}
	want := []string{
		lockstore.LockKey(svc.source, svc.sourceID, "shortvideo", "harvest_user_content"),
		lockstore.LockKey(svc.source, svc.sourceID, "shortvideo", "search_and_extract"),
	}
	if len(locks.Release) != 2 || locks.Release[0] != want[0] || locks.Release[1] != want[1] {
		t.Fatalf("expected locks released in reverse acquisition order %v, got %v", want, locks.Release)
	}
}
