// Package remotebrowser is the narrow boundary onto an external
// headless-browser-as-a-service control plane: named persistent contexts,
// ephemeral fingerprinted sessions, and an LLM-driven action surface on top
// of each session. Grounded on original_source/services/sniper/connectors/base.py's
// AgentBay usage (CreateSessionParams, BrowserContext, BrowserOption,
// BrowserFingerprint) and douyin.py's agent.act/extract/screenshot calls.
package remotebrowser

import (
	"context"
	"time"
)

// Context is an idempotent handle to a named, persistent cookie+storage
// profile held by the provider.
type Context struct {
	ID   string
	Name string
}

// Fingerprint configures the session's browser identity.
type Fingerprint struct {
	ScreenWidth  int
	ScreenHeight int
	DeviceClass  string // e.g. "desktop", "mobile"
	OSClass      string // e.g. "windows", "macos"
	Locales      []string
}

// SessionCreateOptions parameterizes SessionCreate.
type SessionCreateOptions struct {
	ImageID    string
	ContextID  string // empty means no persistent context binding
	AutoUpload bool
}

// InitOptions parameterizes Session.Initialize.
type InitOptions struct {
	Fingerprint   Fingerprint
	Stealth       bool
	SolveCaptchas bool
}

// Client is the provider control plane: context lifecycle and session
// allocation. Implementations: HTTPClient (production) and Fake (tests).
type Client interface {
	// ContextGet returns the named context, creating it first if missing and
	// createIfMissing is true.
	ContextGet(ctx context.Context, name string, createIfMissing bool) (*Context, error)

	// SessionCreate allocates a fresh browser session, optionally bound to a
	// context.
	SessionCreate(ctx context.Context, opts SessionCreateOptions) (Session, error)

	// Delete releases a session. When syncContext is true, the session's
	// cookies/storage are flushed back to its bound context before teardown.
	// Delete must be idempotent: a second Delete call for an
	// already-deleted session returns (true, nil) rather than erroring —
	// more than one cleanup path can race to call it for the same
	// session (spec §4.E.iv, §9 open
	// question on confirm/timeout race idempotence).
	Delete(ctx context.Context, session Session, syncContext bool) (bool, error)
}

// AgentHandle is the LLM-driven action surface used where CSS-selector
// extraction is insufficient (spec §4.C).
type AgentHandle interface {
	Navigate(ctx context.Context, url string) error
	Act(ctx context.Context, instruction string) error
	Extract(ctx context.Context, instruction string, schema map[string]any) (map[string]any, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Session is an ephemeral handle on one fingerprinted headless browser.
type Session interface {
	ID() string
	Initialize(ctx context.Context, opts InitOptions) (bool, error)
	EndpointURL() string // CDP endpoint for page-driver attachment
	ResourceURL() string // user-facing viewer URL, e.g. to show a QR code
	Agent() AgentHandle
}

// DefaultTimeout is the default timeout for provider HTTP calls (spec §5).
const DefaultTimeout = 30 * time.Second
