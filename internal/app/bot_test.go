package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/engage"
	"github.com/ibeckermayer/clap4me/internal/failure"
	"github.com/ibeckermayer/clap4me/internal/feed"
	"github.com/ibeckermayer/clap4me/internal/store"
	"github.com/ibeckermayer/clap4me/internal/types"
	"github.com/ibeckermayer/clap4me/internal/visited"
)

type staticFeeds struct {
	batch feed.Batch
	asked []string
}

func (f *staticFeeds) FetchAll(ctx context.Context, tags []string) feed.Batch {
	f.asked = tags
	return f.batch
}

func articles(tag string, urls ...string) []types.Article {
	out := make([]types.Article, len(urls))
	for i, u := range urls {
		out[i] = types.Article{URL: u, Tag: tag}
	}
	return out
}

type recordingVisitor struct {
	processed []string
	errs      map[string]error
	cancel    context.CancelFunc
	cancelAt  string
}

func (v *recordingVisitor) Process(ctx context.Context, open engage.PageOpener, url string) (engage.Visit, error) {
	v.processed = append(v.processed, url)
	if url == v.cancelAt && v.cancel != nil {
		v.cancel()
	}
	visit := engage.Visit{URL: url, Clap: engage.ClapResult{Clapped: true, Claps: 12}}
	return visit, v.errs[url]
}

type harness struct {
	cfg     *config.Config
	visited *visited.Store
	history *store.Store
	feeds   *staticFeeds
	visitor *recordingVisitor
	path    string
}

func newHarness(t *testing.T, tags ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		cfg:     config.Default(),
		path:    filepath.Join(dir, "visited.csv"),
		feeds:   &staticFeeds{batch: feed.Batch{Articles: map[string][]types.Article{}, Errors: map[string]error{}}},
		visitor: &recordingVisitor{errs: map[string]error{}},
	}
	h.cfg.Feed.Tags = tags

	var err error
	h.visited, err = visited.Load(h.path)
	require.NoError(t, err)
	h.history, err = store.New(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.history.Close() })
	return h
}

func (h *harness) bot() *Bot {
	return NewBot(h.cfg, Deps{
		Feeds:   h.feeds,
		Visited: h.visited,
		History: h.history,
		Driver:  h.visitor,
		Open:    func(ctx context.Context) (engage.Page, error) { return nil, errors.New("unused") },
	}, zap.NewNop())
}

func (h *harness) savedURLs(t *testing.T) []string {
	t.Helper()
	s, err := visited.Load(h.path)
	require.NoError(t, err)
	return s.URLs()
}

func TestRunSkipsVisitedAndPersistsEachArticle(t *testing.T) {
	h := newHarness(t, "go")
	h.visited.Add("https://medium.com/p/b")
	h.feeds.batch.Articles["go"] = articles("go", "https://medium.com/p/a", "https://medium.com/p/b", "https://medium.com/p/c")

	stats, err := h.bot().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://medium.com/p/c", "https://medium.com/p/a"}, h.visitor.processed)
	assert.Equal(t, []string{"https://medium.com/p/a", "https://medium.com/p/b", "https://medium.com/p/c"}, h.savedURLs(t))
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 2, stats.Clapped)
	assert.Equal(t, []string{"go"}, h.feeds.asked)
}

func TestRunSkipsArticlesEngagedInEarlierSessions(t *testing.T) {
	h := newHarness(t, "go")
	prev, err := h.history.StartSession()
	require.NoError(t, err)
	require.NoError(t, h.history.RecordEngagement(types.Engagement{
		SessionID: prev, URL: "https://medium.com/p/a", Tag: "go", Clapped: true, Claps: 12, Outcome: types.OutcomeDone,
	}))
	require.NoError(t, h.history.RecordEngagement(types.Engagement{
		SessionID: prev, URL: "https://medium.com/p/b", Tag: "go", Outcome: types.OutcomeFailed, Error: "timeout",
	}))
	_, err = h.history.FinishSession(prev)
	require.NoError(t, err)

	h.feeds.batch.Articles["go"] = articles("go", "https://medium.com/p/a", "https://medium.com/p/b")

	_, err = h.bot().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://medium.com/p/b"}, h.visitor.processed)
}

func TestRunProcessesTagsInConfigOrder(t *testing.T) {
	h := newHarness(t, "rust", "go")
	h.feeds.batch.Articles["go"] = articles("go", "https://medium.com/p/g1", "https://medium.com/p/shared")
	h.feeds.batch.Articles["rust"] = articles("rust", "https://medium.com/p/r1", "https://medium.com/p/shared")

	_, err := h.bot().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://medium.com/p/shared",
		"https://medium.com/p/r1",
		"https://medium.com/p/g1",
	}, h.visitor.processed)
}

func TestRunDeduplicatesWithinFeed(t *testing.T) {
	h := newHarness(t, "go")
	h.feeds.batch.Articles["go"] = articles("go", "https://medium.com/p/a", "https://medium.com/p/a")

	_, err := h.bot().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://medium.com/p/a"}, h.visitor.processed)
}

func TestRunHonoursLimitAndBlacklist(t *testing.T) {
	h := newHarness(t, "go")
	h.cfg.Feed.ArticlesPerTag = 2
	h.cfg.Feed.ArticleBlacklist = []string{"promo"}
	h.feeds.batch.Articles["go"] = articles("go",
		"https://medium.com/p/promo-1", "https://medium.com/p/a", "https://medium.com/p/b", "https://medium.com/p/c")

	_, err := h.bot().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://medium.com/p/b", "https://medium.com/p/a"}, h.visitor.processed)
}

func TestRunContinuesAfterArticleFailure(t *testing.T) {
	h := newHarness(t, "go")
	h.feeds.batch.Articles["go"] = articles("go", "https://medium.com/p/a", "https://medium.com/p/b")
	h.visitor.errs["https://medium.com/p/b"] = failure.Skipf("clap button vanished")

	stats, err := h.bot().Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, h.visitor.processed, 2)
	assert.Len(t, h.savedURLs(t), 2)
	assert.Equal(t, 2, stats.Processed)

	recent, err := h.history.RecentEngagements(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, types.OutcomeDone, recent[0].Outcome)
	assert.Equal(t, types.OutcomeSkipped, recent[1].Outcome)
	assert.Contains(t, recent[1].Error, "clap button vanished")
}

func TestRunStopsOnFatalError(t *testing.T) {
	h := newHarness(t, "go")
	h.feeds.batch.Articles["go"] = articles("go", "https://medium.com/p/a", "https://medium.com/p/b")
	h.visitor.errs["https://medium.com/p/b"] = failure.Fatalf("browser crashed")

	stats, err := h.bot().Run(context.Background())
	require.Error(t, err)
	assert.True(t, failure.IsFatal(err))

	assert.Equal(t, []string{"https://medium.com/p/b"}, h.visitor.processed)
	assert.Empty(t, h.savedURLs(t))
	assert.Equal(t, 1, stats.Failed)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	h := newHarness(t, "go")
	h.feeds.batch.Articles["go"] = articles("go", "https://medium.com/p/a", "https://medium.com/p/b", "https://medium.com/p/c")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.visitor.cancel = cancel
	h.visitor.cancelAt = "https://medium.com/p/b"

	_, err := h.bot().Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsCancelled(err))

	assert.Equal(t, []string{"https://medium.com/p/c", "https://medium.com/p/b"}, h.visitor.processed)
	assert.Equal(t, []string{"https://medium.com/p/c"}, h.savedURLs(t))
}

func TestRunSkipsFailedTags(t *testing.T) {
	h := newHarness(t, "broken", "go")
	h.feeds.batch.Errors["broken"] = failure.Skipf("feed returned status 404")
	h.feeds.batch.Articles["go"] = articles("go", "https://medium.com/p/a")

	_, err := h.bot().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://medium.com/p/a"}, h.visitor.processed)
}

func TestRunWritesFeedSnapshot(t *testing.T) {
	h := newHarness(t, "go")
	h.feeds.batch.Articles["go"] = articles("go", "https://medium.com/p/a")
	cache := store.NewCache(t.TempDir())

	b := h.bot()
	b.deps.Cache = cache
	_, err := b.Run(context.Background())
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(cache.Dir(store.StepFeeds), "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
