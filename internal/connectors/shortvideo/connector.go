package shortvideo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/pagedriver"
	"github.com/nextlevelbuilder/harvestgate/internal/remotebrowser"
)

const Platform = "shortvideo"

// isLoggedInSelector is the CSS probe used by the login flow (spec
// §4.E.iv): its presence on the platform home page means the session's
// context already carries valid cookies.
const isLoggedInSelector = ".user-avatar-logged-in"

// Connector implements connectors.Connector for the short-video platform
// via the client-state-dump strategy, grounded end to end on
// original_source/services/sniper/connectors/xiaohongshu.py.
type Connector struct {
	browser remotebrowser.Client
	connect connectors.DriverFactory
	logins  *connectors.LoginTaskMap
	locale  []string
}

// New constructs the shortvideo connector.
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
		connectors.CapPublish:     true,
		connectors.CapLoginCookie: true,
		connectors.CapLoginQR:     true,
	}
}

func contextID(source, sourceID string) string {
	return fmt.Sprintf("%s-context:%s-%s", Platform, source, sourceID)
}

// withSession runs fn against a fresh session bound to (source, sourceID)'s
// context, tearing the session down with sync_context=true once fn has run —
// including when fn returns an error — per spec §4.E.i steps 3-7. If browser
// init or driver attach fails before fn runs, the session is deleted with
// sync_context=false.
func (c *Connector) withSession(ctx context.Context, source, sourceID string, requireContext bool, fn func(ctx context.Context, session remotebrowser.Session, driver pagedriver.Driver) error) error {
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
		return fmt.Errorf("shortvideo: session create: %w", err)
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
		return fmt.Errorf("shortvideo: browser init failed: %w", err)
	}

	driver, err := c.connect(ctx, session.EndpointURL())
	if err != nil {
		c.browser.Delete(ctx, session, false)
		return fmt.Errorf("shortvideo: attach driver: %w", err)
	}

	fnErr := fn(ctx, session, driver)
	driver.Close(ctx)
	if _, delErr := c.browser.Delete(ctx, session, true); delErr != nil {
		// Swallow: primary error, if any, takes precedence (spec §7
		// "lock release and session delete ... MUST NOT mask the primary
		// exception — log and swallow").
		_ = delErr
	}
	return fnErr
}

func (c *Connector) SearchAndExtract(ctx context.Context, source, sourceID string, keywords []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	var out []connectors.NoteSummary
	err := c.withSession(ctx, source, sourceID, false, func(ctx context.Context, session remotebrowser.Session, driver pagedriver.Driver) error {
		type kwResult struct {
			summaries []connectors.NoteSummary
			err       error
		}
		results := connectors.FanOut(ctx, keywords, concurrency, func(ctx context.Context, keyword string) kwResult {
			page, err := driver.NewPage(ctx)
			if err != nil {
				return kwResult{err: err}
			}
			defer page.Close(ctx)
			if err := page.Goto(ctx, searchURL(keyword), 0); err != nil {
				return kwResult{err: err}
			}
			raw, err := extractInitialState(ctx, page, "search.feeds")
			if err != nil {
				return kwResult{err: err}
			}
			return kwResult{summaries: parseSummaries(raw, limit)}
		})
		for _, r := range results {
			if r.err == nil {
				out = append(out, r.summaries...)
			}
		}
		return nil
	})
	return out, err
}

func (c *Connector) HarvestUserContent(ctx context.Context, source, sourceID string, creatorIDs []string, limit, concurrency int) ([]connectors.NoteSummary, error) {
	var out []connectors.NoteSummary
	err := c.withSession(ctx, source, sourceID, true, func(ctx context.Context, session remotebrowser.Session, driver pagedriver.Driver) error {
		type creatorResult struct {
			summaries []connectors.NoteSummary
		}
		results := connectors.FanOut(ctx, creatorIDs, concurrency, func(ctx context.Context, creatorID string) creatorResult {
			page, err := driver.NewPage(ctx)
			if err != nil {
				return creatorResult{}
			}
			defer page.Close(ctx)
			if err := page.Goto(ctx, profileURL(creatorID), 0); err != nil {
				return creatorResult{}
			}
			raw, err := extractInitialState(ctx, page, "user.notes")
			if err != nil {
				return creatorResult{}
			}
			return creatorResult{summaries: parseSummaries(raw, limit)}
		})
		for _, r := range results {
			out = append(out, r.summaries...)
		}
		return nil
	})
	return out, err
}

func (c *Connector) GetNoteDetail(ctx context.Context, source, sourceID string, urls []string, concurrency int) ([]connectors.NoteDetail, error) {
	var out []connectors.NoteDetail
	err := c.withSession(ctx, source, sourceID, true, func(ctx context.Context, session remotebrowser.Session, driver pagedriver.Driver) error {
		out = connectors.BatchesOf3(ctx, urls, concurrency, func(ctx context.Context, batch []string) []connectors.NoteDetail {
			return connectors.FanOut(ctx, batch, concurrency, func(ctx context.Context, url string) connectors.NoteDetail {
				return c.fetchDetail(ctx, driver, url)
			})
		})
		return nil
	})
	return out, err
}

func (c *Connector) fetchDetail(ctx context.Context, driver pagedriver.Driver, url string) connectors.NoteDetail {
	page, err := driver.NewPage(ctx)
	if err != nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: err.Error()}
	}
	defer page.Close(ctx)

	if err := page.Goto(ctx, url, 0); err != nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: err.Error()}
	}
	if err := page.WaitForSelector(ctx, "body", 0); err != nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: err.Error()}
	}
	raw, err := extractInitialState(ctx, page, "note.noteDetailMap")
	if err != nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: err.Error()}
	}
	record, ok := raw.(map[string]any)
	if !ok || record == nil {
		return connectors.NoteDetail{URL: url, Success: false, Error: "note detail not found"}
	}
	return connectors.NoteDetail{URL: url, Success: true, Record: record}
}

// Publish drives the publish-content agent flow (spec §4.E.v), grounded on
// publish_content in original_source/services/sniper/connectors/xiaohongshu.py:
// navigate to the creator publish page, then hand a natural-language
// instruction describing the content/images/tags to the session's agent.
func (c *Connector) Publish(ctx context.Context, source, sourceID string, content string, contentType string, images, tags []string) (connectors.PublishResult, error) {
	result := connectors.PublishResult{Platform: Platform, Content: content}
	err := c.withSession(ctx, source, sourceID, true, func(ctx context.Context, session remotebrowser.Session, driver pagedriver.Driver) error {
		agent := session.Agent()
		if err := agent.Navigate(ctx, publishURL()); err != nil {
			return fmt.Errorf("shortvideo: navigate publish page: %w", err)
		}

		if err := agent.Act(ctx, publishInstruction(content, contentType, images, tags)); err != nil {
			return fmt.Errorf("shortvideo: publish act: %w", err)
		}

		result.Success = true
		return nil
	})
	return result, err
}

// publishInstruction builds the agent instruction for Publish, matching the
// three content-type phrasings of the original publish_content.
func publishInstruction(content, contentType string, images, tags []string) string {
	tagStr := strings.Join(tags, ", ")
	switch contentType {
	case "image":
		return fmt.Sprintf("发布图文笔记：内容「%s」，上传图片：%s，添加标签：%s", content, strings.Join(images, ", "), tagStr)
	case "video":
		return fmt.Sprintf("发布视频笔记：内容「%s」，添加标签：%s", content, tagStr)
	default:
		return fmt.Sprintf("发布文字笔记：内容「%s」，添加标签：%s", content, tagStr)
	}
}

func (c *Connector) LoginWithCookies(ctx context.Context, source, sourceID string, cookies map[string]string) (connectors.LoginResult, error) {
	cid := contextID(source, sourceID)
	browserCtx, err := c.browser.ContextGet(ctx, cid, true)
	if err != nil {
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: context get: %w", err)
	}
	session, err := c.browser.SessionCreate(ctx, remotebrowser.SessionCreateOptions{ImageID: "browser_latest", ContextID: browserCtx.ID})
	if err != nil {
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: session create: %w", err)
	}
	if _, err := session.Initialize(ctx, remotebrowser.InitOptions{Fingerprint: remotebrowser.Fingerprint{Locales: c.locale}}); err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: browser init: %w", err)
	}
	driver, err := c.connect(ctx, session.EndpointURL())
	if err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: attach driver: %w", err)
	}
	defer driver.Close(ctx)

	expires := time.Now().Add(24 * time.Hour)
	cookieList := make([]pagedriver.Cookie, 0, len(cookies))
	for name, value := range cookies {
		cookieList = append(cookieList, pagedriver.Cookie{
			Name: name, Value: value, Domain: ".xiaohongshu.com", Path: "/", Expires: expires,
		})
	}
	if err := driver.AddCookies(ctx, cookieList); err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: add cookies: %w", err)
	}
	if err := driver.Goto(ctx, homeURL(), 0); err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: navigate home: %w", err)
	}
	driver.WaitForLoadState(ctx)

	loggedIn := c.probeLoggedIn(ctx, driver)
	if !loggedIn {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: cookie login failed, not_logged_in probe")
	}
	c.browser.Delete(ctx, session, true)
	return connectors.LoginResult{IsLoggedIn: true, ContextID: cid}, nil
}

func (c *Connector) LoginWithQR(ctx context.Context, source, sourceID string, timeoutSeconds int) (connectors.LoginResult, error) {
	cid := contextID(source, sourceID)
	browserCtx, err := c.browser.ContextGet(ctx, cid, true)
	if err != nil {
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: context get: %w", err)
	}
	session, err := c.browser.SessionCreate(ctx, remotebrowser.SessionCreateOptions{ImageID: "browser_latest", ContextID: browserCtx.ID})
	if err != nil {
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: session create: %w", err)
	}
	if _, err := session.Initialize(ctx, remotebrowser.InitOptions{Fingerprint: remotebrowser.Fingerprint{Locales: c.locale}}); err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: browser init: %w", err)
	}
	driver, err := c.connect(ctx, session.EndpointURL())
	if err != nil {
		c.browser.Delete(ctx, session, false)
		return connectors.LoginResult{}, fmt.Errorf("shortvideo: attach driver: %w", err)
	}

	driver.Goto(ctx, homeURL(), 0)
	if c.probeLoggedIn(ctx, driver) {
		driver.Close(ctx)
		c.browser.Delete(ctx, session, true)
		return connectors.LoginResult{IsLoggedIn: true, ContextID: cid}, nil
	}

	session.Agent().Navigate(ctx, loginURL())
	session.Agent().Act(ctx, "display the login QR code")

	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	c.logins.Start(cid, &connectors.LoginTask{Session: session, Driver: driver, Deadline: deadline})

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

func (c *Connector) probeLoggedIn(ctx context.Context, driver pagedriver.Driver) bool {
	el, err := driver.QuerySelector(ctx, isLoggedInSelector)
	if err != nil {
		return false
	}
	return el.Exists()
}

func searchURL(keyword string) string {
	return fmt.Sprintf("https://www.xiaohongshu.com/search_result?keyword=%s", keyword)
}

func profileURL(creatorID string) string {
	return fmt.Sprintf("https://www.xiaohongshu.com/user/profile/%s", creatorID)
}

func homeURL() string    { return "https://www.xiaohongshu.com" }
func loginURL() string   { return "https://www.xiaohongshu.com/login" }
func publishURL() string { return "https://creator.xiaohongshu.com/publish/publish" }
