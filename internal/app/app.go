// Package app wires configuration, browser, feeds and history into bot runs.
package app

import (
	"context"
	"fmt"
	"sync"

	pkgbrowser "github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/auth"
	"github.com/ibeckermayer/clap4me/internal/browser"
	"github.com/ibeckermayer/clap4me/internal/comment"
	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/engage"
	"github.com/ibeckermayer/clap4me/internal/failure"
	"github.com/ibeckermayer/clap4me/internal/feed"
	"github.com/ibeckermayer/clap4me/internal/notifier"
	"github.com/ibeckermayer/clap4me/internal/report"
	"github.com/ibeckermayer/clap4me/internal/store"
	"github.com/ibeckermayer/clap4me/internal/types"
	"github.com/ibeckermayer/clap4me/internal/vision"
	"github.com/ibeckermayer/clap4me/internal/visited"
)

// App holds the application state.
type App struct {
	mu          sync.RWMutex
	authManager *auth.Manager // immutable after creation
	cache       *store.Cache  // immutable after creation
	configPath  string
	logger      *zap.Logger

	// Serialises runs; a scheduled run never overlaps a manual one.
	runMu sync.Mutex

	// Mutable fields - use getSnapshot() for concurrent access.
	config   *config.Config
	fetcher  *feed.Fetcher
	comments *comment.Generator
	notifier *notifier.Notifier
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config   *config.Config
	fetcher  *feed.Fetcher
	comments *comment.Generator
	notifier *notifier.Notifier
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:   a.config,
		fetcher:  a.fetcher,
		comments: a.comments,
		notifier: a.notifier,
	}
}

// New creates a new App instance. configPath is used by ReloadConfig.
func New(cfg *config.Config, configPath string, authManager *auth.Manager, cache *store.Cache, logger *zap.Logger) (*App, error) {
	a := &App{
		authManager: authManager,
		cache:       cache,
		configPath:  configPath,
		logger:      logger,
	}
	if err := a.apply(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// apply builds the config-dependent collaborators and swaps them in.
func (a *App) apply(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return failure.AsFatal(fmt.Errorf("invalid config: %w", err))
	}

	var gen *comment.Generator
	if cfg.Engagement.Comment.Enabled {
		var err error
		gen, err = comment.New(cfg.Comment, a.cache, a.logger)
		if err != nil {
			return failure.AsFatal(err)
		}
	}

	var n *notifier.Notifier
	if cfg.Email.Enabled {
		var err error
		n, err = notifier.NewFromConfig(cfg.Email)
		if err != nil {
			return failure.AsFatal(err)
		}
	}

	a.mu.Lock()
	a.config = cfg
	a.fetcher = feed.New(cfg.Feed, a.logger)
	a.comments = gen
	a.notifier = n
	a.mu.Unlock()
	return nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// IsAuthenticated checks if Medium credentials are stored.
func (a *App) IsAuthenticated() bool {
	return a.authManager.IsAuthenticated()
}

// RunSession launches the browser and runs one bot session.
func (a *App) RunSession(ctx context.Context) (types.SessionStats, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	s := a.getSnapshot()
	cfg := s.config

	visitedPath, err := cfg.VisitedPath()
	if err != nil {
		return types.SessionStats{}, failure.AsFatal(err)
	}
	vs, err := visited.Load(visitedPath)
	if err != nil {
		return types.SessionStats{}, failure.AsFatal(err)
	}

	historyPath, err := cfg.HistoryPath()
	if err != nil {
		return types.SessionStats{}, failure.AsFatal(err)
	}
	history, err := store.New(historyPath)
	if err != nil {
		return types.SessionStats{}, failure.AsFatal(fmt.Errorf("failed to open history: %w", err))
	}
	defer history.Close()

	sess, err := browser.Launch(ctx, cfg.Browser, cfg.Feed.UserAgent, a.logger)
	if err != nil {
		return types.SessionStats{}, err
	}
	defer sess.Close()

	if err := a.ensureLogin(ctx, sess); err != nil {
		return types.SessionStats{}, err
	}

	var opts []engage.Option
	if cfg.Templates.Exhaustive {
		opts = append(opts, engage.WithMatcher(&vision.Matcher{}))
	}
	if s.comments != nil {
		opts = append(opts, engage.WithCommenter(s.comments))
	}
	bot := NewBot(cfg, Deps{
		Feeds:   s.fetcher,
		Visited: vs,
		History: history,
		Driver:  engage.New(cfg, a.logger, opts...),
		Open:    pageOpener(sess),
		Cache:   a.cache,
	}, a.logger)

	stats, err := bot.Run(ctx)
	if s.notifier != nil && stats.ID != "" {
		a.mailReport(s.notifier, history, stats.ID)
	}
	return stats, err
}

// mailReport sends the session report. Delivery problems never fail the run.
func (a *App) mailReport(n *notifier.Notifier, history *store.Store, id string) {
	r, err := renderReport(history, id)
	if err != nil {
		a.logger.Warn("Could not render session report", zap.String("session", id), zap.Error(err))
		return
	}
	if err := n.SendReport(r); err != nil {
		a.logger.Warn("Could not mail session report", zap.String("session", id), zap.Error(err))
		return
	}
	a.logger.Info("Mailed session report", zap.String("session", id))
}

func renderReport(history *store.Store, id string) (*report.Report, error) {
	rep, err := history.Report(id)
	if err != nil {
		return nil, err
	}
	builder, err := report.New()
	if err != nil {
		return nil, err
	}
	return builder.Build(rep)
}

// pageOpener adapts a browser session to the driver's tab factory.
func pageOpener(sess *browser.Session) engage.PageOpener {
	return func(ctx context.Context) (engage.Page, error) {
		page, err := sess.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		return page, nil
	}
}

// ensureLogin injects stored cookies, or logs in when that can happen unattended.
func (a *App) ensureLogin(ctx context.Context, sess *browser.Session) error {
	if a.authManager.IsAuthenticated() {
		cookies, err := a.authManager.GetCookies()
		if err != nil {
			return failure.AsFatal(fmt.Errorf("failed to get cookies: %w", err))
		}
		if err := sess.SetCookies(ctx, cookies); err != nil {
			return failure.AsFatal(fmt.Errorf("failed to inject cookies: %w", err))
		}
		return nil
	}

	if !a.authManager.CanLoginUnattended() {
		return failure.Fatalf("not logged in to Medium: run `clap4me login` first")
	}

	page, err := sess.NewPage(ctx)
	if err != nil {
		return failure.AsFatal(err)
	}
	defer page.Close()
	if err := a.authManager.Login(ctx, page); err != nil {
		return failure.AsFatal(err)
	}
	return nil
}

// TriggerLogin opens a visible browser and runs the configured login flow.
func (a *App) TriggerLogin(ctx context.Context) error {
	cfg := a.getSnapshot().config
	a.logger.Info("Login triggered - opening browser for Medium authentication",
		zap.String("service", cfg.Account.LoginService))

	browserCfg := cfg.Browser
	browserCfg.Headless = false
	sess, err := browser.Launch(ctx, browserCfg, cfg.Feed.UserAgent, a.logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	page, err := sess.NewPage(ctx)
	if err != nil {
		return err
	}
	defer page.Close()

	if err := a.authManager.Login(ctx, page); err != nil {
		a.logger.Error("Login failed", zap.Error(err))
		return err
	}
	a.logger.Info("Login successful - cookies saved")
	return nil
}

// TriggerLogout clears stored Medium credentials.
func (a *App) TriggerLogout() error {
	a.logger.Info("Logout triggered - clearing stored cookies")
	if err := a.authManager.Logout(); err != nil {
		a.logger.Error("Logout failed", zap.Error(err))
		return err
	}
	return nil
}

// BuildLastReport renders the most recent session and saves it to the cache.
// Returns the rendered report and the path of the HTML file.
func (a *App) BuildLastReport() (*report.Report, string, error) {
	cfg := a.getSnapshot().config
	historyPath, err := cfg.HistoryPath()
	if err != nil {
		return nil, "", err
	}
	history, err := store.New(historyPath)
	if err != nil {
		return nil, "", err
	}
	defer history.Close()

	id, err := history.LatestSession()
	if err != nil {
		return nil, "", err
	}
	r, err := renderReport(history, id)
	if err != nil {
		return nil, "", err
	}

	path, err := a.cache.SaveTextOutput(store.StepReport, r.HTMLBody, ".html")
	if err != nil {
		return nil, "", fmt.Errorf("failed to save report: %w", err)
	}
	return r, path, nil
}

// ViewLastReport renders the most recent session and opens it in the default browser.
func (a *App) ViewLastReport() error {
	_, path, err := a.BuildLastReport()
	if err != nil {
		a.logger.Error("No report available", zap.Error(err))
		return err
	}
	a.logger.Info("Opening report", zap.String("path", path))
	return pkgbrowser.OpenFile(path)
}

// RecentEngagements returns the latest engagements across sessions, newest first.
func (a *App) RecentEngagements(limit int) ([]types.Engagement, error) {
	historyPath, err := a.getSnapshot().config.HistoryPath()
	if err != nil {
		return nil, err
	}
	history, err := store.New(historyPath)
	if err != nil {
		return nil, err
	}
	defer history.Close()
	return history.RecentEngagements(limit)
}

// EmailLastReport mails the most recent session report using the email settings.
func (a *App) EmailLastReport() error {
	n := a.getSnapshot().notifier
	if n == nil {
		return fmt.Errorf("email is not enabled in the config")
	}
	r, _, err := a.BuildLastReport()
	if err != nil {
		return err
	}
	return n.SendReport(r)
}

// ReloadConfig reloads the configuration from disk. The next session uses it;
// a running session keeps the config it started with.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := a.apply(cfg); err != nil {
		return err
	}
	a.logger.Info("Configuration reloaded")
	return nil
}
