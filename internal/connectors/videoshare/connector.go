// Package videoshare implements connectors.Connector for the video-sharing
// platform via the DOM-evaluation/agent strategy (spec §4.E item 2): unlike
// shortvideo's client-state-dump polling, these pages expose no scrapeable
// state object, so every extraction goes through the LLM-driven
// remotebrowser.AgentHandle (Navigate/Act/Extract), grounded end to end on
// original_source/services/sniper/connectors/douyin.py.
package videoshare

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/pagedriver"
	"github.com/nextlevelbuilder/harvestgate/internal/remotebrowser"
)

const Platform = "videoshare"

const isLoggedInSelector = ".login-btn"

// searchItemsSchema mirrors douyin.py's SearchItems pydantic model.
var searchItemsSchema = map[string]any{
	"items": []string{"title", "url", "author", "liked_count"},
}

// videoDetailSchema mirrors douyin.py's VideoDetail pydantic model.
var videoDetailSchema = map[string]any{
	"fields": []string{"video_id", "title", "desc", "author", "liked_count", "comment_count", "share_count"},
}

// checkLoginSchema mirrors douyin.py's CheckLoginStatus pydantic model.
var checkLoginSchema = map[string]any{"fields": []string{"has_login"}}

// Connector implements connectors.Connector for the video-sharing platform.
type Connector struct {
	browser remotebrowser.Client
	connect connectors.DriverFactory
	logins  *connectors.LoginTaskMap
	locale  []string
}

// New constructs the videoshare connector.
func New(deps connectors.Deps) *Connector {
	return &Connector{
		browser: deps.Browser,
		connect: deps.Driver,
		logins:  connectors.NewLoginTaskMap(),
		locale:  []string{"zh-CN"},
	}
}

func (c *Connector) Platform() string { return Platform }

func (c *Connector) Capabilities() map[connectors.Capability]bool {
	return map[connectors.Capability]bool{
		connectors.CapSearch:      true,
		connectors.CapHarvest:     true,
		connectors.CapGetDetail:   true,
		connectors.CapLoginCookie: true,
		connectors.CapLoginQR:     true,
	}
}

func contextID(source, sourceID string) string {
	return fmt.Sprintf("%s-context:%s-%s", Platform, source, sourceID)
}

// withAgentSession mirrors shortvideo's withSession but hands fn the
// session's AgentHandle instead of a pagedriver.Driver, since every
// videoshare extraction is agent-driven (douyin.py never touches a page
// object directly).
func (c *Connector) withAgentSession(ctx context.Context, source, sourceID string, requireContext bool, fn func(ctx context.Context, agent remotebrowser.AgentHandle) error) error {
	cid := contextID(source, sourceID)
	browserCtx, err := c.browser.ContextGet(ctx, cid, !requireContext)
	if err != nil {
		return apperr.ContextNotFound(cid)
	}

	session, err := c.browser.SessionCreate(ctx, remotebrowser.SessionCreateOptions{
		ImageID:   "browser_latest",
		ContextID: browserCtx.ID,
	})
	if err != nil {
		return fmt.Errorf("videoshare: session create: %w", err)
	}
	ok, err := session.Initialize(ctx, remotebrowser.InitOptions{
		Fingerprint: remotebrowser.Fingerprint{
			ScreenWidth: 1920, ScreenHeight: 1080,
			DeviceClass: "desktop", OSClass: "windows",
			Locales: c.locale,
		},
		Stealth:       true,
		SolveCaptchas: true,
	})
	if err != nil || !ok {
		c.browser.Delete(ctx, session, false)
		return fmt.Errorf("videoshare: browser init failed: %w", err)
	}

	fnErr := fn(ctx, session.Agent())
	if _, delErr := c.browser.Delete(ctx, session, true); delErr != nil {
		_ = delErr
	}
	return fnErr
}

func (c *Connector) SearchAndExtract(ctx context.Context, source, sourceID string, keywords []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	var out []connectors.NoteSummary
	err := c.withAgentSession(ctx, source, sourceID, false, func(ctx context.Context, agent remotebrowser.AgentHandle) error {
		results := connectors.FanOut(ctx, keywords, concurrency, func(ctx context.Context, keyword string) []connectors.NoteSummary {
			if err := agent.Navigate(ctx, searchURL(keyword)); err != nil {
				return nil
			}
			if err := agent.Act(ctx, "if there is a popup, close it. click the video results tab."); err != nil {
				return nil
			}
			data, err := agent.Extract(ctx, fmt.Sprintf("list the top %d search results currently visible", limit), searchItemsSchema)
			if err != nil {
				return nil
			}
			return parseSearchItems(data, limit)
		})
		for _, r := range results {
			out = append(out, r...)
		}
		return nil
	})
	return out, err
}

func (c *Connector) HarvestUserContent(ctx context.Context, source, sourceID string, creatorIDs []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	var out []connectors.NoteSummary
	err := c.withAgentSession(ctx, source, sourceID, true, func(ctx context.Context, agent remotebrowser.AgentHandle) error {
		results := connectors.FanOut(ctx, creatorIDs, concurrency, func(ctx context.Context, creatorID string) []connectors.NoteSummary {
			if err := agent.Navigate(ctx, creatorSearchURL(creatorID)); err != nil {
				return nil
			}
			if err := agent.Act(ctx, "if there is a popup, close it. click the first user result to open their profile. scroll to the bottom."); err != nil {
				return nil
			}
			data, err := agent.Extract(ctx, fmt.Sprintf("list this creator's videos, at most %d", limit), searchItemsSchema)
			if err != nil {
				return nil
			}
			return parseSearchItems(data, limit)
		})
		for _, r := range results {
			out = append(out, r...)
		}
		return nil
	})
	return out, err
}

func (c *Connector) GetNoteDetail(ctx context.Context, source, sourceID string, urls []string, concurrency int) ([]connectors.NoteDetail, error) {
	var out []connectors.NoteDetail
	err := c.withAgentSession(ctx, source, sourceID, true, func(ctx context.Context, agent remotebrowser.AgentHandle) error {
		out = connectors.BatchesOf3(ctx, urls, concurrency, func(ctx context.Context, batch []string) []connectors.NoteDetail {
			return connectors.FanOut(ctx, batch, concurrency, func(ctx context.Context, url string) connectors.NoteDetail {
				return fetchDetail(ctx, agent, url)
			})
		})
		return nil
	})
	return out, err
}

func fetchDetail(ctx context.Context, agent remotebrowser.AgentHandle, url string) connectors.NoteDetail {
	if err := agent.Navigate(ctx, url); err != nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: err.Error()}
	}
	data, err := agent.Extract(ctx, "extract the video id, title, description, author, like count, comment count and share count from this page", videoDetailSchema)
	if err != nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: err.Error()}
	}
	if len(data) == 0 {
		return connectors.NoteDetail{URL: url, Success: false, Error: "failed to extract video detail"}
	}
	return connectors.NoteDetail{URL: url, Success: true, Record: data}
}

func (c *Connector) Publish(ctx context.Context, source, sourceID string, content, contentType string, images, tags []string) (connectors.PublishResult, error) {
	return connectors.PublishResult{}, apperr.NotImplemented(Platform, "publish_content")
}

func (c *Connector) LoginWithCookies(ctx context.Context, source, sourceID string, cookies map[string]string) (connectors.LoginResult, error) {
	cid := contextID(source, sourceID)
	browserCtx, err := c.browser.ContextGet(ctx, cid, true)
	if err != nil {
		return connectors.LoginResult{}, fmt.Errorf("videoshare: context get: %w", err)
	}
	session, err := c.browser.SessionCreate(ctx, remotebrowser.SessionCreateOptions{ImageID: "browser_latest", ContextID: browserCtx.ID})
	if err != nil {
		return connectors.LoginResult{}, fmt.Errorf("videoshare: session create: %w", err)
	}
	if _, err := session.Initialize(ctx, remotebrowser.InitOptions{Fingerprint: remotebrowser.Fingerprint{Locales: c.locale}}); err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("videoshare: browser init: %w", err)
	}
	driver, err := c.connect(ctx, session.EndpointURL())
	if err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("videoshare: attach driver: %w", err)
	}
	defer driver.Close(ctx)

	expires := time.Now().Add(24 * time.Hour)
	cookieList := make([]pagedriver.Cookie, 0, len(cookies))
	for name, value := range cookies {
		cookieList = append(cookieList, pagedriver.Cookie{
			Name: name, Value: value, Domain: ".douyin.com", Path: "/", Expires: expires,
		})
	}
	if err := driver.AddCookies(ctx, cookieList); err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("videoshare: add cookies: %w", err)
	}
	if err := driver.Goto(ctx, homeURL(), 0); err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("videoshare: navigate home: %w", err)
	}
	driver.WaitForLoadState(ctx)

	if !c.probeLoggedIn(ctx, driver) {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("videoshare: cookie login failed, not_logged_in probe")
	}
	c.browser.Delete(ctx, session, true)
	return connectors.LoginResult{IsLoggedIn: true, ContextID: cid}, nil
}

// probeLoggedIn mirrors douyin.py's _check_login_status_douyin: the
// presence of the login button means the session is NOT logged in.
func (c *Connector) probeLoggedIn(ctx context.Context, driver pagedriver.Driver) bool {
	el, err := driver.QuerySelector(ctx, isLoggedInSelector)
	if err != nil {
		return true
	}
	return !el.Exists()
}

func (c *Connector) LoginWithQR(ctx context.Context, source, sourceID string, timeoutSeconds int) (connectors.LoginResult, error) {
	cid := contextID(source, sourceID)
	browserCtx, err := c.browser.ContextGet(ctx, cid, true)
	if err != nil {
		return connectors.LoginResult{}, fmt.Errorf("videoshare: context get: %w", err)
	}
	session, err := c.browser.SessionCreate(ctx, remotebrowser.SessionCreateOptions{ImageID: "browser_latest", ContextID: browserCtx.ID})
	if err != nil {
		return connectors.LoginResult{}, fmt.Errorf("videoshare: session create: %w", err)
	}
	if _, err := session.Initialize(ctx, remotebrowser.InitOptions{Fingerprint: remotebrowser.Fingerprint{Locales: c.locale}}); err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("videoshare: browser init: %w", err)
	}

	agent := session.Agent()
	agent.Navigate(ctx, homeURL())

	data, _ := agent.Extract(ctx, "look at this page and determine whether a user is currently logged in, from an avatar or similar marker", checkLoginSchema)
	if hasLogin, _ := data["has_login"].(bool); hasLogin {
		c.browser.Delete(ctx, session, true)
		return connectors.LoginResult{IsLoggedIn: true, ContextID: cid}, nil
	}

	agent.Act(ctx, "find the login button and click it. choose QR-code login. make sure the code is visible.")

	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	c.logins.Start(cid, &connectors.LoginTask{Session: session, Driver: nil, Deadline: deadline})

	return connectors.LoginResult{
		IsLoggedIn: false,
		ContextID:  cid,
		QRCode:     session.ResourceURL(),
		TimeoutAt:  deadline.Unix(),
	}, nil
}

func (c *Connector) ConfirmLogin(ctx context.Context, contextID string) error {
	return connectors.ConfirmOrExpire(ctx, c.browser, c.logins, contextID)
}

func searchURL(keyword string) string {
	return fmt.Sprintf("https://www.douyin.com/jingxuan/search/%s", keyword)
}

func creatorSearchURL(creatorID string) string {
	return fmt.Sprintf("https://www.douyin.com/jingxuan/search/%s?type=user", creatorID)
}

func homeURL() string { return "https://www.douyin.com" }
