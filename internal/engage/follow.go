package engage

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/failure"
	"github.com/ibeckermayer/clap4me/internal/vision"
)

// FollowResult describes both follow-detection strategies.
type FollowResult struct {
	Matched    bool // a follow template met the threshold
	Template   string
	Clicked    bool
	Suppressed bool // matched, but the click point was outside the viewport
	CSSFound   bool // button.follow became visible
}

// Follow runs template-based detection on a full-page screenshot, clicking
// when the button centre lies inside the viewport, and then waits for the
// follow button selector. The selector check only logs; it never clicks.
// Both strategies always run; a browser failure in the first is returned
// after the second has finished.
func (d *Driver) Follow(ctx context.Context, page Page) (FollowResult, error) {
	var res FollowResult
	errTemplate := d.followByTemplate(ctx, page, &res)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	if err := page.WaitVisible(ctx, FollowButton, d.cfg.Timing.FollowSelector.Duration); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		d.logger.Info("Follow button not found using CSS selector")
	} else {
		res.CSSFound = true
		d.logger.Info("Follow button found using CSS selector")
	}

	return res, errTemplate
}

func (d *Driver) followByTemplate(ctx context.Context, page Page, res *FollowResult) error {
	shot, err := page.Screenshot(ctx, true)
	if err != nil {
		return failure.AsSkip(err)
	}

	black := d.loadTemplate(d.cfg.Templates.FollowBlack)
	white := d.loadTemplate(d.cfg.Templates.FollowWhite)
	m := d.locate(vision.FromImage(shot), d.cfg.Templates.FollowThreshold, black, white)
	if !m.Found {
		d.logger.Info("Follow button not found using template matching")
		return nil
	}
	res.Matched, res.Template = true, m.Template

	// The click point uses the dark template's size whichever template matched
	size := image.Pt(m.W, m.H)
	if black != nil {
		size = image.Pt(black.Gray.W, black.Gray.H)
	}
	x, y := m.X+size.X/2, m.Y+size.Y/2

	width, height, err := page.Viewport(ctx)
	if err != nil {
		return failure.AsSkip(err)
	}
	if x < 0 || x > width || y < 0 || y > height {
		res.Suppressed = true
		d.logger.Warn("Follow button outside viewport, not clicking",
			zap.Int("x", x), zap.Int("y", y),
			zap.Int("width", width), zap.Int("height", height))
		return nil
	}

	if err := page.Click(ctx, x, y); err != nil {
		return failure.AsSkip(err)
	}
	res.Clicked = true
	d.logger.Info("Follow button clicked", zap.String("template", m.Template), zap.Int("x", x), zap.Int("y", y))
	return nil
}
