package pagedriver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodDriver implements Driver over a go-rod page attached to a remote
// session's CDP endpoint.
type RodDriver struct {
	browser *rod.Browser
	page    *rod.Page
	owned   bool // true if this Driver owns the *rod.Browser and must close it
}

// Connect attaches to the CDP endpoint exposed by a remote-browser Session
// (remotebrowser.Session.EndpointURL), the same ControlURL/Connect sequence
// used by the browser-pool implementations in the retrieval pack.
func Connect(ctx context.Context, endpointURL string) (*RodDriver, error) {
	browser := rod.New().ControlURL(endpointURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("pagedriver: connect to %s: %w", endpointURL, err)
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("pagedriver: open page: %w", err)
	}
	return &RodDriver{browser: browser, page: page, owned: true}, nil
}

func (d *RodDriver) NewPage(ctx context.Context) (Driver, error) {
	page, err := d.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("pagedriver: new page: %w", err)
	}
	return &RodDriver{browser: d.browser, page: page, owned: false}, nil
}

func (d *RodDriver) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultNavTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := d.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("pagedriver: navigate %s: %w", url, err)
	}
	return nil
}

func (d *RodDriver) WaitForLoadState(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, DefaultReadyTimeout)
	defer cancel()
	if err := d.page.Context(waitCtx).WaitLoad(); err != nil {
		return fmt.Errorf("pagedriver: wait load: %w", err)
	}
	return nil
}

func (d *RodDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := d.page.Context(waitCtx).Element(selector)
	if err != nil {
		return fmt.Errorf("pagedriver: wait for selector %q: %w", selector, err)
	}
	return nil
}

// QuerySelector returns a handle whose Exists() is false, not an error,
// when selector is simply absent from the page — presence/absence is the
// expected outcome connectors probe for (e.g. is_logged_in checks).
func (d *RodDriver) QuerySelector(ctx context.Context, selector string) (ElementHandle, error) {
	el, err := d.page.Context(ctx).Element(selector)
	if err != nil {
		return &rodElement{el: nil}, nil
	}
	return &rodElement{el: el}, nil
}

func (d *RodDriver) Evaluate(ctx context.Context, script string, args ...any) (any, error) {
	result, err := d.page.Context(ctx).Eval(script, args...)
	if err != nil {
		return nil, fmt.Errorf("pagedriver: evaluate: %w", err)
	}
	return result.Value.Val(), nil
}

func (d *RodDriver) AddCookies(ctx context.Context, cookies []Cookie) error {
	protoCookies := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		protoCookies = append(protoCookies, &proto.NetworkCookieParam{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: proto.TimeSinceEpoch(c.Expires.Unix()),
		})
	}
	if err := d.page.Context(ctx).SetCookies(protoCookies); err != nil {
		return fmt.Errorf("pagedriver: add cookies: %w", err)
	}
	return nil
}

func (d *RodDriver) Screenshot(ctx context.Context, opts *ScreenshotOptions) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{}
	if opts != nil {
		req.Clip = &proto.PageViewport{
			X: float64(opts.X), Y: float64(opts.Y),
			Width: float64(opts.Width), Height: float64(opts.Height),
			Scale: 1,
		}
	}
	data, err := d.page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("pagedriver: screenshot: %w", err)
	}
	return data, nil
}

func (d *RodDriver) Close(ctx context.Context) error {
	if err := d.page.Close(); err != nil {
		return fmt.Errorf("pagedriver: close page: %w", err)
	}
	if d.owned {
		return d.browser.Close()
	}
	return nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Exists() bool { return e.el != nil }
