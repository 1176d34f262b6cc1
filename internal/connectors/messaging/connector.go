package messaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
)

const Platform = "messaging"

// Connector implements connectors.Connector for the messaging-app article
// platform. Unlike shortvideo/videoshare it needs no browser session at
// all: articles are reached over plain HTTP, grounded on
// original_source/services/sniper/connectors/wechat.py, which has no
// QR-login or publish path and explicitly raises NotImplementedError for
// anything requiring the messaging client itself
// ("extract_by_creator_id not supported ... 待开发").
type Connector struct {
	httpClient *http.Client
}

// New constructs the messaging connector.
func New() *Connector {
	return &Connector{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Connector) Platform() string { return Platform }

func (c *Connector) Capabilities() map[connectors.Capability]bool {
	return map[connectors.Capability]bool{
		connectors.CapHarvest:   true,
		connectors.CapGetDetail: true,
	}
}

// HarvestUserContent treats each creatorID as a feed URL (the original's
// public-account article feed) and streams it through ParseFeed with no
// keyword filter, capped at limit.
func (c *Connector) HarvestUserContent(ctx context.Context, source, sourceID string, creatorIDs []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	type feedResult struct {
		items []FeedItem
	}
	results := connectors.FanOut(ctx, creatorIDs, concurrency, func(ctx context.Context, feedURL string) feedResult {
		items, err := c.fetchFeed(ctx, feedURL, "", limit)
		if err != nil {
			return feedResult{}
		}
		return feedResult{items: items}
	})

	var out []connectors.NoteSummary
	for _, r := range results {
		for _, item := range r.items {
			out = append(out, connectors.NoteSummary{
				NoteID:      item.ID,
				FullURL:     item.Link,
				Title:       item.Title,
				PublishedAt: item.Updated,
				Extra:       map[string]any{"description": item.Description, "channel_name": item.ChannelName},
			})
		}
	}
	return out, nil
}

func (c *Connector) GetNoteDetail(ctx context.Context, source, sourceID string, urls []string, concurrency int) ([]connectors.NoteDetail, error) {
	return connectors.FanOut(ctx, urls, concurrency, func(ctx context.Context, url string) connectors.NoteDetail {
		return c.fetchDetail(ctx, url)
	}), nil
}

var metaTitleRe = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']*)["']`)
var metaDescRe = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:description["'][^>]+content=["']([^"']*)["']`)

func (c *Connector) fetchDetail(ctx context.Context, url string) connectors.NoteDetail {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return connectors.NoteDetail{URL: url, Success: false, Error: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: err.Error()}
	}

	record := map[string]any{}
	if m := metaTitleRe.FindSubmatch(body); m != nil {
		record["title"] = string(m[1])
	}
	if m := metaDescRe.FindSubmatch(body); m != nil {
		record["description"] = string(m[1])
	}
	return connectors.NoteDetail{URL: url, Success: true, Record: record}
}

func (c *Connector) fetchFeed(ctx context.Context, feedURL, keyword string, limit int) ([]FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("messaging: feed %s returned status %d", feedURL, resp.StatusCode)
	}
	return ParseFeed(resp.Body, keyword, limit)
}

// SearchAndExtract is not supported on this platform (no rate-limit config
// row exists for messaging-article/search_and_extract — spec §4.F table).
func (c *Connector) SearchAndExtract(ctx context.Context, source, sourceID string, keywords []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	return nil, apperr.NotImplemented(Platform, "search_and_extract")
}

func (c *Connector) Publish(ctx context.Context, source, sourceID string, content, contentType string, images, tags []string) (connectors.PublishResult, error) {
	return connectors.PublishResult{}, apperr.NotImplemented(Platform, "publish_content")
}

func (c *Connector) LoginWithCookies(ctx context.Context, source, sourceID string, cookies map[string]string) (connectors.LoginResult, error) {
	return connectors.LoginResult{}, apperr.NotImplemented(Platform, "login_cookie")
}

func (c *Connector) LoginWithQR(ctx context.Context, source, sourceID string, timeoutSeconds int) (connectors.LoginResult, error) {
	return connectors.LoginResult{}, apperr.NotImplemented(Platform, "login_qr")
}

func (c *Connector) ConfirmLogin(ctx context.Context, contextID string) error {
	return apperr.NotImplemented(Platform, "login_qr")
}
