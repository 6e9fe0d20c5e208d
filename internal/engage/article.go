package engage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/failure"
)

// Visit is what happened on one article.
type Visit struct {
	URL       string
	Clap      ClapResult
	Follow    FollowResult
	Commented bool
	Comment   string
}

// Process reads the article in one tab (clapping and commenting there) and then
// opens it again in a second tab to look for the follow button.
func (d *Driver) Process(ctx context.Context, open PageOpener, url string) (Visit, error) {
	v := Visit{URL: url}
	e := d.cfg.Engagement
	like, comment, follow := d.decide(e.Like), d.decide(e.Comment), d.decide(e.Follow)
	log := d.logger.With(zap.String("url", url))
	log.Info("Visiting article", zap.Bool("like", like), zap.Bool("comment", comment), zap.Bool("follow", follow))

	if err := d.read(ctx, open, &v, like, comment); err != nil {
		return v, err
	}
	if !follow {
		return v, nil
	}
	if err := d.followVisit(ctx, open, &v); err != nil {
		return v, err
	}
	return v, nil
}

func (d *Driver) read(ctx context.Context, open PageOpener, v *Visit, like, comment bool) error {
	t := d.cfg.Timing
	page, err := d.openAt(ctx, open, v.URL)
	if err != nil {
		return err
	}
	defer page.Close()

	if err := d.sleeper.Sleep(ctx, d.between(t.PageLoadMin, t.PageLoadMax)); err != nil {
		return err
	}
	if err := page.ScrollToBottom(ctx); err != nil {
		return failure.AsSkip(err)
	}
	if err := d.sleeper.Sleep(ctx, t.Dwell.Duration); err != nil {
		return err
	}

	if like {
		res, err := d.Clap(ctx, page)
		v.Clap = res
		if err != nil {
			return fmt.Errorf("failed to clap: %w", err)
		}
	}

	if comment {
		text, err := d.Comment(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Warn("Skipping comment", zap.String("url", v.URL), zap.Error(err))
		} else {
			v.Commented, v.Comment = true, text
		}
	}
	return nil
}

func (d *Driver) followVisit(ctx context.Context, open PageOpener, v *Visit) error {
	t := d.cfg.Timing
	page, err := d.openAt(ctx, open, v.URL)
	if err != nil {
		return err
	}
	defer page.Close()

	if err := d.sleeper.Sleep(ctx, d.between(t.FollowWaitMin, t.FollowWaitMax)); err != nil {
		return err
	}
	res, err := d.Follow(ctx, page)
	v.Follow = res
	if err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}
	return nil
}

// openAt opens a tab and navigates it to url, retrying transient failures.
func (d *Driver) openAt(ctx context.Context, open PageOpener, url string) (Page, error) {
	page, err := open(ctx)
	if err != nil {
		return nil, failure.AsSkip(fmt.Errorf("failed to open tab: %w", err))
	}
	err = failure.Retry(ctx, d.retry, func(ctx context.Context) error {
		return page.Navigate(ctx, url)
	})
	if err != nil {
		page.Close()
		return nil, err
	}
	return page, nil
}
