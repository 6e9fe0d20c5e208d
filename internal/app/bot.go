package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/engage"
	"github.com/ibeckermayer/clap4me/internal/failure"
	"github.com/ibeckermayer/clap4me/internal/feed"
	"github.com/ibeckermayer/clap4me/internal/store"
	"github.com/ibeckermayer/clap4me/internal/types"
	"github.com/ibeckermayer/clap4me/internal/visited"
)

// FeedSource fetches the feeds of several tags at once.
type FeedSource interface {
	FetchAll(ctx context.Context, tags []string) feed.Batch
}

// Visitor engages with one article.
type Visitor interface {
	Process(ctx context.Context, open engage.PageOpener, url string) (engage.Visit, error)
}

// Deps are the collaborators of a Bot.
type Deps struct {
	Feeds   FeedSource
	Visited *visited.Store
	History *store.Store
	Driver  Visitor
	Open    engage.PageOpener
	Cache   *store.Cache // optional
}

// Bot runs one engagement session over the configured tags.
type Bot struct {
	cfg    *config.Config
	deps   Deps
	logger *zap.Logger
}

// NewBot creates a bot.
func NewBot(cfg *config.Config, deps Deps, logger *zap.Logger) *Bot {
	return &Bot{cfg: cfg, deps: deps, logger: logger.Named("app")}
}

// Run processes every unseen article of every tag, one at a time. Each
// processed URL is persisted to the visited file before the next one starts.
// A fatal error ends the run; per-article errors are recorded and skipped.
func (b *Bot) Run(ctx context.Context) (types.SessionStats, error) {
	sessionID, err := b.deps.History.StartSession()
	if err != nil {
		return types.SessionStats{}, failure.AsFatal(err)
	}
	log := b.logger.With(zap.String("session", sessionID))
	log.Info("Session started", zap.Strings("tags", b.cfg.Feed.Tags), zap.Int("visited", b.deps.Visited.Len()))

	runErr := b.processTags(ctx, log, sessionID)

	stats, err := b.deps.History.FinishSession(sessionID)
	if err != nil {
		log.Warn("Failed to finish session", zap.Error(err))
	}
	log.Info("Session finished",
		zap.Int("processed", stats.Processed),
		zap.Int("clapped", stats.Clapped),
		zap.Int("followed", stats.Followed),
		zap.Int("commented", stats.Commented),
		zap.Int("failed", stats.Failed))

	return stats, runErr
}

func (b *Bot) processTags(ctx context.Context, log *zap.Logger, sessionID string) error {
	batch := b.deps.Feeds.FetchAll(ctx, b.cfg.Feed.Tags)
	for tag, err := range batch.Errors {
		log.Warn("Skipping tag", zap.String("tag", tag), zap.Error(err))
	}
	if b.deps.Cache != nil {
		if path, err := store.SaveStepOutput(b.deps.Cache, store.StepFeeds, batch.Articles); err != nil {
			log.Warn("Failed to cache feeds", zap.Error(err))
		} else {
			log.Debug("Cached feeds", zap.String("path", path))
		}
	}

	for _, tag := range b.cfg.Feed.Tags {
		queue := feed.Unseen(batch.Articles[tag], b.seen, b.cfg.Feed.ArticleBlacklist, b.cfg.Feed.ArticlesPerTag)
		log.Info("Processing tag", zap.String("tag", tag), zap.Int("queued", len(queue)))

		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			article := queue[len(queue)-1]
			queue = queue[:len(queue)-1]

			if b.seen(article.URL) {
				continue
			}
			if err := b.processArticle(ctx, log, sessionID, article); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}

// processArticle returns only errors that end the run.
func (b *Bot) processArticle(ctx context.Context, log *zap.Logger, sessionID string, article types.Article) error {
	log = log.With(zap.String("url", article.URL), zap.String("tag", article.Tag))

	visit, err := b.deps.Driver.Process(ctx, b.deps.Open, article.URL)
	if ctx.Err() != nil {
		log.Info("Stopping: run cancelled", zap.Error(ctx.Err()))
		return ctx.Err()
	}

	e := types.Engagement{
		SessionID: sessionID,
		URL:       article.URL,
		Tag:       article.Tag,
		Clapped:   visit.Clap.Clapped,
		Claps:     visit.Clap.Claps,
		Followed:  visit.Follow.Clicked,
		Commented: visit.Commented,
		Outcome:   types.OutcomeDone,
	}
	switch {
	case err == nil:
		log.Info("Article processed", zap.Int("claps", e.Claps), zap.Bool("followed", e.Followed))
	case failure.IsFatal(err):
		log.Error("Fatal error, stopping run", zap.Error(err))
		b.record(log, withError(e, types.OutcomeFailed, err))
		return err
	case failure.KindOf(err) == failure.Skip:
		log.Warn("Skipping article", zap.Error(err))
		e = withError(e, types.OutcomeSkipped, err)
	default:
		log.Error("Article failed", zap.Error(err))
		e = withError(e, types.OutcomeFailed, err)
	}

	b.deps.Visited.Add(article.URL)
	if err := b.deps.Visited.Save(); err != nil {
		return failure.AsFatal(fmt.Errorf("failed to save visited links: %w", err))
	}
	b.record(log, e)
	return nil
}

func (b *Bot) record(log *zap.Logger, e types.Engagement) {
	if err := b.deps.History.RecordEngagement(e); err != nil {
		log.Warn("Failed to record engagement", zap.Error(err))
	}
}

func withError(e types.Engagement, outcome types.Outcome, err error) types.Engagement {
	e.Outcome = outcome
	e.Error = err.Error()
	return e
}

// seen reports whether url was handled before: it is in the visited list,
// or the history holds a completed engagement for it (a reset visited file).
func (b *Bot) seen(url string) bool {
	if b.deps.Visited.Contains(url) {
		return true
	}
	engaged, err := b.deps.History.Engaged(url)
	if err != nil {
		b.logger.Warn("History lookup failed", zap.String("url", url), zap.Error(err))
		return false
	}
	return engaged
}

// IsCancelled reports whether err only means the run was interrupted.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
