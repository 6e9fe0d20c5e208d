// Package feed discovers article links from Medium's per-tag RSS feeds.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/failure"
	"github.com/ibeckermayer/clap4me/internal/types"
)

// Fetcher downloads and parses tag feeds.
type Fetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	limiter   *rate.Limiter
	baseURL   string
	userAgent string
	retry     failure.RetryPolicy
	logger    *zap.Logger
}

// New creates a fetcher from the feed config.
func New(cfg config.FeedConfig, logger *zap.Logger) *Fetcher {
	limit := rate.Inf
	if cfg.MinInterval.Duration > 0 {
		limit = rate.Every(cfg.MinInterval.Duration)
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		parser:    gofeed.NewParser(),
		limiter:   rate.NewLimiter(limit, 1),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		retry:     failure.DefaultRetryPolicy(),
		logger:    logger.Named("feed"),
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func (f *Fetcher) WithRetryPolicy(p failure.RetryPolicy) *Fetcher {
	f.retry = p
	return f
}

// TagURL builds the feed URL for a tag: spaces become hyphens, lowercased.
func TagURL(baseURL, tag string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), " ", "-"))
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(slug)
}

// Fetch returns the articles of one tag feed in feed order.
func (f *Fetcher) Fetch(ctx context.Context, tag string) ([]types.Article, error) {
	feedURL := TagURL(f.baseURL, tag)
	f.logger.Info("Fetching articles for tag", zap.String("tag", tag), zap.String("url", feedURL))

	var parsed *gofeed.Feed
	err := failure.Retry(ctx, f.retry, func(ctx context.Context) error {
		var err error
		parsed, err = f.fetchOnce(ctx, feedURL)
		if err != nil {
			f.logger.Debug("Feed request failed", zap.String("tag", tag), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed for tag %q: %w", tag, err)
	}

	if len(parsed.Items) == 0 {
		f.logger.Warn("No entries found in the RSS feed", zap.String("tag", tag))
		return nil, nil
	}

	articles := make([]types.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		a := types.Article{URL: item.Link, Title: item.Title, Tag: tag}
		if item.PublishedParsed != nil {
			a.Published = *item.PublishedParsed
		}
		if item.Author != nil {
			a.Author = item.Author.Name
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, failure.AsSkip(fmt.Errorf("failed to create request: %w", err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, failure.AsTransient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, failure.Transientf("feed returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, failure.Skipf("feed returned status %d", resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, failure.AsSkip(fmt.Errorf("failed to parse feed: %w", err))
	}
	return parsed, nil
}

// Batch is the prefetched feeds of several tags.
type Batch struct {
	Articles map[string][]types.Article
	Errors   map[string]error
}

// FetchAll fetches every tag concurrently. The limiter still spaces the
// requests out. A failing tag is recorded in Errors and does not affect the
// others.
func (f *Fetcher) FetchAll(ctx context.Context, tags []string) Batch {
	articles := make([][]types.Article, len(tags))
	errs := make([]error, len(tags))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, tag := range tags {
		g.Go(func() error {
			articles[i], errs[i] = f.Fetch(ctx, tag)
			return nil
		})
	}
	g.Wait()

	b := Batch{Articles: make(map[string][]types.Article), Errors: make(map[string]error)}
	for i, tag := range tags {
		if errs[i] != nil {
			b.Errors[tag] = errs[i]
			continue
		}
		b.Articles[tag] = articles[i]
	}
	return b
}

// Unseen keeps the articles that have not been visited and whose URL
// contains none of the blacklisted substrings, in feed order, truncated to
// limit (0 means no limit).
func Unseen(articles []types.Article, visited func(string) bool, blacklist []string, limit int) []types.Article {
	var out []types.Article
	for _, a := range articles {
		if visited(a.URL) || blacklisted(a.URL, blacklist) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func blacklisted(u string, blacklist []string) bool {
	for _, b := range blacklist {
		if b != "" && strings.Contains(u, b) {
			return true
		}
	}
	return false
}
