package engage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/failure"
	"github.com/ibeckermayer/clap4me/internal/vision"
)

// ClapResult describes what the clap loop did.
type ClapResult struct {
	Clapped  bool
	Claps    int
	Attempts int
	Template string
}

// Clap looks for the clap button in the viewport and clicks it, scrolling
// down between attempts. Not finding it is not an error. Browser failures
// abort the loop and skip the article.
func (d *Driver) Clap(ctx context.Context, page Page) (ClapResult, error) {
	var res ClapResult
	t := d.cfg.Timing
	threshold := d.cfg.Templates.ClapThreshold

	for res.Attempts < d.cfg.Templates.MaxAttempts {
		res.Attempts++
		log := d.logger.With(zap.Int("attempt", res.Attempts))

		shot, err := page.Screenshot(ctx, false)
		if err != nil {
			return res, failure.AsSkip(err)
		}
		img := vision.FromImage(shot)

		if m := d.locate(img, threshold, d.loadTemplate(d.cfg.Templates.BlackClap)); m.Found {
			c := m.Center()
			log.Info("Black clap button found", zap.Int("x", c.X), zap.Int("y", c.Y))
			if err := d.sleeper.Sleep(ctx, d.between(t.BlackClapWaitMin, t.BlackClapWaitMax)); err != nil {
				return res, err
			}
			if err := page.Click(ctx, c.X, c.Y); err != nil {
				return res, failure.AsSkip(err)
			}
			if err := d.sleeper.Sleep(ctx, t.AfterBlackClap.Duration); err != nil {
				return res, err
			}
			res.Clapped, res.Claps, res.Template = true, 1, m.Template
			return res, nil
		}

		if m := d.locate(img, threshold, d.loadTemplate(d.cfg.Templates.Clap)); m.Found {
			c := m.Center()
			n := d.intBetween(d.cfg.Engagement.MinClaps, d.cfg.Engagement.MaxLikesOnPost)
			log.Info("Clap button found", zap.Int("x", c.X), zap.Int("y", c.Y), zap.Int("claps", n))
			for i := 0; i < n; i++ {
				if i > 0 {
					if err := d.sleeper.Sleep(ctx, d.between(t.ClapPauseMin, t.ClapPauseMax)); err != nil {
						return res, err
					}
				}
				if err := page.Click(ctx, c.X, c.Y); err != nil {
					return res, failure.AsSkip(fmt.Errorf("clap %d of %d: %w", i+1, n, err))
				}
				res.Claps++
			}
			res.Clapped, res.Template = true, m.Template
			return res, nil
		}

		_, height, err := page.Viewport(ctx)
		if err != nil {
			return res, failure.AsSkip(err)
		}
		log.Info("Clap button not found, scrolling", zap.Int("dy", height/2))
		if err := page.ScrollBy(ctx, height/2); err != nil {
			return res, failure.AsSkip(err)
		}
		if err := d.sleeper.Sleep(ctx, t.ScrollRetryWait.Duration); err != nil {
			return res, err
		}
	}

	d.logger.Warn("Clap button not found", zap.Int("attempts", res.Attempts))
	return res, nil
}
