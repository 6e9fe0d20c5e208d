package engage

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/failure"
	"github.com/ibeckermayer/clap4me/internal/vision"
)

// noise returns a reproducible random grayscale image.
func noise(w, h int, seed uint64) *image.Gray {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.IntN(256))
	}
	return img
}

// paste copies patch into dst with its top-left at (x, y).
func paste(dst *image.Gray, patch *image.Gray, x, y int) {
	b := patch.Bounds()
	draw.Draw(dst, b.Add(image.Pt(x, y)), patch, b.Min, draw.Src)
}

type fixture struct {
	cfg        *config.Config
	clap       *image.Gray
	blackClap  *image.Gray
	followDark *image.Gray
	followLite *image.Gray
}

// newFixture writes distinct noise templates into a temp dir and points the
// config at them.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		cfg:        config.Default(),
		clap:       noise(16, 16, 11),
		blackClap:  noise(16, 16, 12),
		followDark: noise(20, 12, 13),
		followLite: noise(16, 16, 14),
	}
	f.cfg.Templates.Dir = dir
	for name, img := range map[string]image.Image{
		f.cfg.Templates.Clap:        f.clap,
		f.cfg.Templates.BlackClap:   f.blackClap,
		f.cfg.Templates.FollowBlack: f.followDark,
		f.cfg.Templates.FollowWhite: f.followLite,
	} {
		require.NoError(t, imaging.Save(img, filepath.Join(dir, name)))
	}
	return f
}

func (f *fixture) driver(opts ...Option) (*Driver, *recordingSleeper) {
	s := &recordingSleeper{}
	base := []Option{
		WithSleeper(s),
		WithMatcher(&vision.Matcher{}),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithRetryPolicy(failure.RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}),
	}
	return New(f.cfg, zap.NewNop(), append(base, opts...)...), s
}

type recordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return ctx.Err()
}

// fakeRand pins the coin flips while keeping the numeric draws real.
type fakeRand struct {
	*rand.Rand
	coin float64
}

func (r fakeRand) Float64() float64 { return r.coin }

type fakePage struct {
	shots   []image.Image // viewport screenshots in order, the last repeats
	full    image.Image
	width   int
	height  int
	visible map[string]bool
	texts   map[string]string

	shotErr  error
	navErrs  []error
	navCalls int
	shotIdx  int
	clicks   []image.Point
	scrolls  []int
	waited   []string
	selected []string
	typed    map[string]string
	bottom   bool
	closed   bool
}

func newFakePage(shots ...image.Image) *fakePage {
	return &fakePage{
		shots:   shots,
		width:   200,
		height:  150,
		visible: map[string]bool{},
		texts:   map[string]string{},
		typed:   map[string]string{},
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navCalls++
	if len(p.navErrs) > 0 {
		err := p.navErrs[0]
		p.navErrs = p.navErrs[1:]
		return err
	}
	return nil
}

func (p *fakePage) ScrollBy(ctx context.Context, dy int) error {
	p.scrolls = append(p.scrolls, dy)
	return nil
}

func (p *fakePage) ScrollToBottom(ctx context.Context) error {
	p.bottom = true
	return nil
}

func (p *fakePage) Viewport(ctx context.Context) (int, int, error) {
	return p.width, p.height, nil
}

func (p *fakePage) Screenshot(ctx context.Context, full bool) (image.Image, error) {
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	if full {
		return p.full, nil
	}
	i := min(p.shotIdx, len(p.shots)-1)
	p.shotIdx++
	return p.shots[i], nil
}

func (p *fakePage) Click(ctx context.Context, x, y int) error {
	p.clicks = append(p.clicks, image.Pt(x, y))
	return nil
}

func (p *fakePage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	p.waited = append(p.waited, sel)
	if p.visible[sel] {
		return nil
	}
	return context.DeadlineExceeded
}

func (p *fakePage) Text(ctx context.Context, sel string) (string, error) {
	text, ok := p.texts[sel]
	if !ok {
		return "", errors.New("no such node")
	}
	return text, nil
}

func (p *fakePage) Type(ctx context.Context, sel, text string) error {
	p.typed[sel] = text
	return nil
}

func (p *fakePage) ClickSelector(ctx context.Context, sel string) error {
	p.selected = append(p.selected, sel)
	return nil
}

func (p *fakePage) Close() { p.closed = true }

// opener hands out the given pages in order.
func opener(pages ...*fakePage) (PageOpener, *int) {
	opened := 0
	return func(ctx context.Context) (Page, error) {
		if opened >= len(pages) {
			return nil, errors.New("no more pages")
		}
		p := pages[opened]
		opened++
		return p, nil
	}, &opened
}

type fakeGenerator struct {
	comment string
	err     error
	input   string
}

func (g *fakeGenerator) Generate(ctx context.Context, article string) (string, error) {
	g.input = article
	return g.comment, g.err
}
