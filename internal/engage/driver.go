// Package engage performs the on-page actions of a visit: reading, clapping,
// following and commenting.
package engage

import (
	"context"
	"image"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/failure"
	"github.com/ibeckermayer/clap4me/internal/vision"
)

// Page is the subset of a browser tab the driver needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	ScrollBy(ctx context.Context, dy int) error
	ScrollToBottom(ctx context.Context) error
	Viewport(ctx context.Context) (width, height int, err error)
	Screenshot(ctx context.Context, full bool) (image.Image, error)
	Click(ctx context.Context, x, y int) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	Text(ctx context.Context, sel string) (string, error)
	Type(ctx context.Context, sel, text string) error
	ClickSelector(ctx context.Context, sel string) error
	Close()
}

// PageOpener opens a fresh tab.
type PageOpener func(ctx context.Context) (Page, error)

// CommentGenerator writes a comment for an article's text.
type CommentGenerator interface {
	Generate(ctx context.Context, article string) (string, error)
}

// Sleeper waits between actions. Tests replace it to run instantly.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type clockSleeper struct{}

func (clockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Rand is the randomness the driver draws from. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Int64N(n int64) int64
	Float64() float64
}

// Driver runs engagement actions against pages.
type Driver struct {
	cfg      *config.Config
	matcher  *vision.Matcher
	sleeper  Sleeper
	rng      Rand
	comments CommentGenerator
	retry    failure.RetryPolicy
	logger   *zap.Logger
}

// Option customises a Driver.
type Option func(*Driver)

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(s Sleeper) Option { return func(d *Driver) { d.sleeper = s } }

// WithRand sets the source of click counts, delays and coin flips.
func WithRand(r Rand) Option { return func(d *Driver) { d.rng = r } }

// WithMatcher sets the template matcher used to locate buttons.
func WithMatcher(m *vision.Matcher) Option { return func(d *Driver) { d.matcher = m } }

// WithCommenter enables comment posting through g.
func WithCommenter(g CommentGenerator) Option { return func(d *Driver) { d.comments = g } }

// WithRetryPolicy sets how navigation failures are retried.
func WithRetryPolicy(p failure.RetryPolicy) Option { return func(d *Driver) { d.retry = p } }

// New creates a driver for cfg.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Driver {
	d := &Driver{
		cfg:     cfg,
		matcher: vision.NewMatcher(),
		sleeper: clockSleeper{},
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		retry:   failure.DefaultRetryPolicy(),
		logger:  logger.Named("engage"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// decide reports whether a toggled action runs for this article.
func (d *Driver) decide(t config.Toggle) bool {
	if !t.Enabled {
		return false
	}
	if t.Randomize {
		return d.rng.Float64() < 0.5
	}
	return true
}

// between returns a uniform duration in [lo, hi].
func (d *Driver) between(lo, hi config.Duration) time.Duration {
	if hi.Duration <= lo.Duration {
		return lo.Duration
	}
	return lo.Duration + time.Duration(d.rng.Int64N(int64(hi.Duration-lo.Duration)+1))
}

// intBetween returns a uniform int in [lo, hi].
func (d *Driver) intBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + d.rng.IntN(hi-lo+1)
}

// loadTemplate reads a template at point of use. A missing or broken file is
// logged and reported as nil, which matches nothing.
func (d *Driver) loadTemplate(name string) *vision.Template {
	path := d.cfg.TemplatePath(name)
	t, err := vision.LoadTemplate(path)
	if err != nil {
		d.logger.Warn("Failed to load template", zap.String("path", path), zap.Error(err))
		return nil
	}
	return t
}

// locate looks for the first of templates in img and logs every score.
func (d *Driver) locate(img *vision.Gray, threshold float64, templates ...*vision.Template) vision.Result {
	res, err := d.matcher.FindFirst(img, templates, threshold)
	for _, a := range res.Attempts {
		if a.Err != nil {
			d.logger.Debug("Template not evaluated", zap.String("template", a.Template), zap.Error(a.Err))
			continue
		}
		d.logger.Info("Template score",
			zap.String("template", a.Template),
			zap.Float64("score", a.Score),
			zap.Float64("threshold", threshold))
	}
	if err != nil {
		d.logger.Warn("No template could be matched", zap.Error(err))
	}
	return res
}
