// Package connectors defines the platform-connector contract shared by the
// three platform packages (shortvideo, messaging, videoshare) and the
// fan-out/login-state helpers every connector is built on (spec §4.E).
package connectors

import (
	"context"

	"github.com/nextlevelbuilder/harvestgate/internal/pagedriver"
	"github.com/nextlevelbuilder/harvestgate/internal/remotebrowser"
)

// Capability names a dispatchable operation (spec §9 "connector
// polymorphism" design note). connectorsvc dispatches every operation
// without consulting Capabilities; a connector's own method returns
// NotImplemented for an operation it does not declare.
type Capability string

const (
	CapSearch        Capability = "search"
	CapHarvest       Capability = "harvest"
	CapGetDetail     Capability = "get_detail"
	CapPublish       Capability = "publish"
	CapLoginCookie   Capability = "login_cookie"
	CapLoginQR       Capability = "login_qr"
)

// NoteSummary is a search/harvest result card: enough to rank and
// deduplicate before a detail fetch.
type NoteSummary struct {
	NoteID     string
	FullURL    string
	Title      string
	LikedCount int
	Pinned     bool
	PublishedAt string // ISO-8601; platforms vary in precision
	Extra      map[string]any
}

// NoteDetail is a single detail-fetch result, success or failure per item
// per spec §4.E.i step 5 ("failures in one worker MUST NOT abort siblings").
type NoteDetail struct {
	URL     string
	Success bool
	Error   string
	Record  map[string]any
}

// LoginResult is the outcome of either login method (spec §4.E.iv).
type LoginResult struct {
	IsLoggedIn bool
	ContextID  string
	QRCode     string // resource_url, set only when IsLoggedIn is false
	TimeoutAt  int64  // unix seconds, set only when IsLoggedIn is false
}

// PublishResult is the outcome of Publish (spec §4.E.v).
type PublishResult struct {
	Success  bool
	Platform string
	Content  string
}

// Connector is the platform-specific adapter implementing the extraction
// contract. Every platform package returns a value satisfying this
// interface from its New(...) constructor.
type Connector interface {
	Platform() string
	Capabilities() map[Capability]bool

	SearchAndExtract(ctx context.Context, source, sourceID string, keywords []string, limit, concurrency int) ([]NoteSummary, error)
	HarvestUserContent(ctx context.Context, source, sourceID string, creatorIDs []string, limit, concurrency int) ([]NoteSummary, error)
	GetNoteDetail(ctx context.Context, source, sourceID string, urls []string, concurrency int) ([]NoteDetail, error)
	Publish(ctx context.Context, source, sourceID string, content string, contentType string, images, tags []string) (PublishResult, error)
	LoginWithCookies(ctx context.Context, source, sourceID string, cookies map[string]string) (LoginResult, error)
	LoginWithQR(ctx context.Context, source, sourceID string, timeoutSeconds int) (LoginResult, error)
	// ConfirmLogin resolves a pending QR login task, flushing cookies to
	// the context and tearing the session down. Idempotent: a second call
	// for the same context (e.g. a repeated confirm) is a no-op.
	ConfirmLogin(ctx context.Context, contextID string) error
}

// Deps bundles the shared collaborators every connector constructor needs,
// so a platform package's New(...) signature stays small and uniform.
type Deps struct {
	Browser remotebrowser.Client
	Driver  DriverFactory
}

// DriverFactory attaches a pagedriver.Driver to a freshly created remote
// session's CDP endpoint. Production code passes pagedriver.Connect;
// tests pass a factory that returns a pagedriver.FakeDriver.
type DriverFactory func(ctx context.Context, endpointURL string) (pagedriver.Driver, error)
