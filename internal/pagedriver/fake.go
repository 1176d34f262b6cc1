package pagedriver

import (
	"context"
	"sync"
	"time"
)

// FakeDriver is an in-memory Driver backing connector unit tests: the
// initial-state polling loop, the DOM-evaluation extraction strategy, and
// login probes, all without a real browser.
type FakeDriver struct {
	mu sync.Mutex

	// EvalResults is consumed in order by successive Evaluate calls; the
	// initial-state polling loop can be exercised by queuing nil results
	// for the first N attempts and a populated value for the last.
	EvalResults []any
	evalIdx     int

	// Selectors present on the page, consulted by QuerySelector /
	// WaitForSelector (e.g. an is-logged-in probe selector).
	Selectors map[string]bool

	Cookies    []Cookie
	Navigated  []string
	Closed     bool
	ClosedCh   chan struct{}
	pages      int
}

// NewFakeDriver returns a FakeDriver with no selectors present and no
// queued evaluate results (Evaluate returns nil until configured).
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		Selectors: make(map[string]bool),
		ClosedCh:  make(chan struct{}),
	}
}

func (d *FakeDriver) NewPage(ctx context.Context) (Driver, error) {
	d.mu.Lock()
	d.pages++
	d.mu.Unlock()
	return d, nil
}

func (d *FakeDriver) Goto(ctx context.Context, url string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Navigated = append(d.Navigated, url)
	return nil
}

func (d *FakeDriver) WaitForLoadState(ctx context.Context) error { return nil }

func (d *FakeDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Selectors[selector] {
		return nil
	}
	return errSelectorNotFound(selector)
}

func (d *FakeDriver) QuerySelector(ctx context.Context, selector string) (ElementHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &fakeElement{present: d.Selectors[selector]}, nil
}

func (d *FakeDriver) Evaluate(ctx context.Context, script string, args ...any) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.evalIdx >= len(d.EvalResults) {
		return nil, nil
	}
	v := d.EvalResults[d.evalIdx]
	d.evalIdx++
	return v, nil
}

func (d *FakeDriver) AddCookies(ctx context.Context, cookies []Cookie) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Cookies = append(d.Cookies, cookies...)
	return nil
}

func (d *FakeDriver) Screenshot(ctx context.Context, opts *ScreenshotOptions) ([]byte, error) {
	return []byte("fake-screenshot"), nil
}

func (d *FakeDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Closed {
		d.Closed = true
		close(d.ClosedCh)
	}
	return nil
}

type fakeElement struct {
	present bool
}

func (e *fakeElement) Exists() bool { return e.present }

type selectorNotFoundError string

func (e selectorNotFoundError) Error() string { return "pagedriver: selector not found: " + string(e) }

func errSelectorNotFound(selector string) error { return selectorNotFoundError(selector) }
