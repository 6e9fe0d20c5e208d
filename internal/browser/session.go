package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/failure"
)

// Session is one Chrome process. Pages opened from it share cookies.
type Session struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger
}

// Launch starts Chrome. Failing to start is fatal for the run.
func Launch(ctx context.Context, cfg config.BrowserConfig, userAgent string, logger *zap.Logger) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(cfg, userAgent)...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, failure.AsFatal(fmt.Errorf("failed to start browser: %w", err))
	}

	logger.Named("browser").Info("Browser started", zap.Bool("headless", cfg.Headless))
	return &Session{
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      cancel,
		logger:      logger.Named("browser"),
	}, nil
}

// NewPage opens a new tab.
func (s *Session) NewPage(ctx context.Context) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.ctx)

	// The first Run attaches the target and its event loop lives on the
	// context given here, so it must be the tab context itself. ctx may
	// only abort the attach.
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx)
	if !stop() {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", ctx.Err())
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &Page{ctx: tabCtx, cancel: cancel, logger: s.logger}, nil
}

// SetCookies injects cookies into the browser before navigation.
func (s *Session) SetCookies(ctx context.Context, cookies []*network.Cookie) error {
	p := &Page{ctx: s.ctx, cancel: func() {}, logger: s.logger}
	return p.SetCookies(ctx, cookies)
}

// Close shuts Chrome down.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}
