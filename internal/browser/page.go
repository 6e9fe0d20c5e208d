package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/failure"
)

// Page is one browser tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// run executes actions on the tab, aborting when either ctx or the tab is done.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the load event. Failures are transient.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return failure.AsTransient(fmt.Errorf("failed to navigate to %s: %w", url, err))
	}
	return nil
}

// Location returns the current URL of the tab.
func (p *Page) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Evaluate runs js in the page and stores its result in res (may be nil).
func (p *Page) Evaluate(ctx context.Context, js string, res any) error {
	return p.run(ctx, chromedp.Evaluate(js, res))
}

func (p *Page) ScrollBy(ctx context.Context, dy int) error {
	return p.Evaluate(ctx, fmt.Sprintf("window.scrollBy(0, %d)", dy), nil)
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	return p.Evaluate(ctx, "window.scrollTo(0, document.body.scrollHeight)", nil)
}

// Viewport returns window.innerWidth and window.innerHeight.
func (p *Page) Viewport(ctx context.Context) (width, height int, err error) {
	var size []int
	if err := p.Evaluate(ctx, "[window.innerWidth, window.innerHeight]", &size); err != nil {
		return 0, 0, fmt.Errorf("failed to read viewport: %w", err)
	}
	if len(size) != 2 {
		return 0, 0, fmt.Errorf("unexpected viewport result %v", size)
	}
	return size[0], size[1], nil
}

// Screenshot captures the visible viewport, or the whole page when full is set.
func (p *Page) Screenshot(ctx context.Context, full bool) (image.Image, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if full {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return img, nil
}

// Click issues a left click at viewport coordinates.
func (p *Page) Click(ctx context.Context, x, y int) error {
	if err := p.run(ctx, chromedp.MouseClickXY(float64(x), float64(y))); err != nil {
		return fmt.Errorf("failed to click at (%d, %d): %w", x, y, err)
	}
	return nil
}

// WaitVisible waits up to timeout for sel to become visible.
func (p *Page) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// Text returns the visible text of the first node matching sel.
func (p *Page) Text(ctx context.Context, sel string) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Text(sel, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read text of %s: %w", sel, err)
	}
	return text, nil
}

// Type focuses sel and sends text as key events.
func (p *Page) Type(ctx context.Context, sel, text string) error {
	if err := p.run(ctx, chromedp.SendKeys(sel, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to type into %s: %w", sel, err)
	}
	return nil
}

// ClickSelector clicks the first visible node matching sel.
func (p *Page) ClickSelector(ctx context.Context, sel string) error {
	if err := p.run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %s: %w", sel, err)
	}
	return nil
}

// Cookies returns all cookies visible to the tab.
func (p *Page) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// SetCookies injects cookies before navigation.
func (p *Page) SetCookies(ctx context.Context, cookies []*network.Cookie) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

// Close closes the tab.
func (p *Page) Close() {
	p.cancel()
}
