package remotebrowser

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Client backing connector unit tests and the
// session-hygiene property (spec §8 invariant 9: every successful
// SessionCreate is matched by a Delete along every code path).
type Fake struct {
	mu sync.Mutex

	contexts map[string]*Context
	sessions map[string]*fakeSession

	CreatedCount int
	DeletedCount int

	// NextExtract, when set, is returned by every fakeAgent.Extract call.
	NextExtract map[string]any
	// LoggedIn controls what the probe-style navigate+evaluate sequence
	// would observe; connectors under test consult this via their own page
	// driver fake, not this field directly — kept here for convenience in
	// tests that want a single fake to configure.
	LoggedIn bool
}

// NewFake returns a ready-to-use in-memory provider fake.
func NewFake() *Fake {
	return &Fake{
		contexts: make(map[string]*Context),
		sessions: make(map[string]*fakeSession),
	}
}

// LiveSessions returns the ids of sessions created but not yet deleted —
// the invariant-9 assertion point for tests.
func (f *Fake) LiveSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.sessions))
	for id := range f.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (f *Fake) ContextGet(ctx context.Context, name string, createIfMissing bool) (*Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contexts[name]; ok {
		return c, nil
	}
	if !createIfMissing {
		return nil, fmt.Errorf("remotebrowser: context %q not found", name)
	}
	c := &Context{ID: "ctx-" + name, Name: name}
	f.contexts[name] = c
	return c, nil
}

func (f *Fake) SessionCreate(ctx context.Context, opts SessionCreateOptions) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreatedCount++
	id := fmt.Sprintf("sess-%d", f.CreatedCount)
	s := &fakeSession{
		fake:        f,
		id:          id,
		endpointURL: "ws://fake-cdp/" + id,
		resourceURL: "https://fake-viewer/" + id,
	}
	f.sessions[id] = s
	return s, nil
}

func (f *Fake) Delete(ctx context.Context, session Session, syncContext bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[session.ID()]; !ok {
		// Idempotent: a second delete of an already-removed session is not
		// an error (spec §9 confirm/timeout race).
		return true, nil
	}
	delete(f.sessions, session.ID())
	f.DeletedCount++
	return true, nil
}

type fakeSession struct {
	fake        *Fake
	id          string
	endpointURL string
	resourceURL string
}

func (s *fakeSession) ID() string          { return s.id }
func (s *fakeSession) EndpointURL() string { return s.endpointURL }
func (s *fakeSession) ResourceURL() string { return s.resourceURL }

func (s *fakeSession) Initialize(ctx context.Context, opts InitOptions) (bool, error) {
	return true, nil
}

func (s *fakeSession) Agent() AgentHandle {
	return &fakeAgent{fake: s.fake}
}

type fakeAgent struct {
	fake *Fake
}

func (a *fakeAgent) Navigate(ctx context.Context, url string) error { return nil }
func (a *fakeAgent) Act(ctx context.Context, instruction string) error { return nil }

func (a *fakeAgent) Extract(ctx context.Context, instruction string, schema map[string]any) (map[string]any, error) {
	a.fake.mu.Lock()
	defer a.fake.mu.Unlock()
	return a.fake.NextExtract, nil
}

func (a *fakeAgent) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("fake-screenshot"), nil
}
