package videoshare

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/pagedriver"
	"github.com/nextlevelbuilder/harvestgate/internal/remotebrowser"
)

func newTestConnector() (*Connector, *remotebrowser.Fake) {
	fake := remotebrowser.NewFake()
	deps := connectors.Deps{
		Browser: fake,
		Driver: func(ctx context.Context, endpointURL string) (pagedriver.Driver, error) {
			return pagedriver.NewFakeDriver(), nil
		},
	}
	return New(deps), fake
}

func TestSearchAndExtract_ParsesItemsAndClosesSession(t *testing.T) {
	c, fake := newTestConnector()
	fake.NextExtract = map[string]any{
		"items": []any{
			map[string]any{"title": "clip 1", "url": "https://a", "author": "alice", "liked_count": "1.2w"},
			map[string]any{"title": "clip 2", "url": "https://b", "author": "bob", "liked_count": "300"},
		},
	}

	out, err := c.SearchAndExtract(context.Background(), "videoshare", "tenant1", []string{"cats"}, 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 summaries, got %d: %+v", len(out), out)
	}
	if len(fake.LiveSessions()) != 0 {
		t.Fatalf("expected no live sessions after search, got %v", fake.LiveSessions())
	}
}

func TestGetNoteDetail_ReturnsExtractedRecord(t *testing.T) {
	c, fake := newTestConnector()
	fake.NextExtract = map[string]any{"video_id": "v1", "title": "T"}

	out, err := c.GetNoteDetail(context.Background(), "videoshare", "tenant1", []string{"https://x/1"}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || !out[0].Success {
		t.Fatalf("expected 1 successful detail, got %+v", out)
	}
	if out[0].Record["video_id"] != "v1" {
		t.Fatalf("unexpected record: %+v", out[0].Record)
	}
}

func TestLoginWithQR_AlreadyLoggedIn_ReturnsImmediately(t *testing.T) {
	c, fake := newTestConnector()
	fake.NextExtract = map[string]any{"has_login": true}

	result, err := c.LoginWithQR(context.Background(), "videoshare", "tenant1", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsLoggedIn {
		t.Fatalf("expected already-logged-in result, got %+v", result)
	}
	if len(fake.LiveSessions()) != 0 {
		t.Fatalf("expected session to be torn down, got %v", fake.LiveSessions())
	}
}

func TestLoginWithQR_NotLoggedIn_StartsLoginTaskAndConfirmIsIdempotent(t *testing.T) {
	c, fake := newTestConnector()
	fake.NextExtract = map[string]any{"has_login": false}

	result, err := c.LoginWithQR(context.Background(), "videoshare", "tenant1", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsLoggedIn {
		t.Fatalf("expected pending login")
	}
	if result.QRCode == "" {
		t.Fatalf("expected a resource url for the qr viewer")
	}
	if len(fake.LiveSessions()) != 1 {
		t.Fatalf("expected exactly 1 live session during pending login, got %v", fake.LiveSessions())
	}

	if err := c.ConfirmLogin(context.Background(), result.ContextID); err != nil {
		t.Fatalf("unexpected confirm error: %v", err)
	}
	if len(fake.LiveSessions()) != 0 {
		t.Fatalf("expected session torn down after confirm, got %v", fake.LiveSessions())
	}
	if err := c.ConfirmLogin(context.Background(), result.ContextID); err != nil {
		t.Fatalf("expected second confirm to be a no-op, got %v", err)
	}
}

func TestPublish_ReturnsNotImplemented(t *testing.T) {
	c, _ := newTestConnector()
	_, err := c.Publish(context.Background(), "videoshare", "tenant1", "x", "text", nil, nil)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindNotImplemented {
		t.Fatalf("expected NotImplemented, got %v", err)
	}
}
