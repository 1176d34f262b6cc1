// Package pagedriver is the thin CDP-attached page-automation layer
// connectors drive to navigate, wait, query, and evaluate script against a
// single browser page. Grounded on the go-rod usage pattern seen across the
// retrieval pack's browser-automation files (rod.New().ControlURL(...).Connect(),
// page.Context(ctx).Navigate(url)).
package pagedriver

import (
	"context"
	"time"
)

// ElementHandle is an opaque reference to a DOM node found by QuerySelector.
type ElementHandle interface {
	// Exists reports whether the element was actually found (nil handles
	// from a missed QuerySelector still satisfy the interface via a no-op
	// implementation so callers can probe without nil checks).
	Exists() bool
}

// Cookie mirrors the fields needed for cookie-based login (spec §4.E.iv):
// domain=".<platform-domain>", path="/", expires=now+24h.
type Cookie struct {
	Name    string
	Value   string
	Domain  string
	Path    string
	Expires time.Time
}

// ScreenshotOptions clips the capture area; a zero value captures the
// full visible viewport.
type ScreenshotOptions struct {
	X, Y, Width, Height int
}

// Driver is the page-automation contract a connector drives. One Driver
// instance owns one page; pages sharing a session share cookies through
// the underlying CDP connection's browser context (spec §4.D).
type Driver interface {
	// NewPage opens a fresh page sharing the session's browser context.
	NewPage(ctx context.Context) (Driver, error)
	Goto(ctx context.Context, url string, timeout time.Duration) error
	WaitForLoadState(ctx context.Context) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	QuerySelector(ctx context.Context, selector string) (ElementHandle, error)
	Evaluate(ctx context.Context, script string, args ...any) (any, error)
	AddCookies(ctx context.Context, cookies []Cookie) error
	Screenshot(ctx context.Context, opts *ScreenshotOptions) ([]byte, error)
	Close(ctx context.Context) error
}

// DefaultNavTimeout and DefaultReadyTimeout are the spec §5 suspension-point
// defaults: 60s for page navigation, 10s for page-ready waits.
const (
	DefaultNavTimeout   = 60 * time.Second
	DefaultReadyTimeout = 10 * time.Second
)
