package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// LLM providers for comment generation
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Login services
const (
	LoginFacebook = "facebook"
	LoginManual   = "manual"
)

const appName = "clap4me"

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	Verbose    bool             `toml:"verbose"`
	Account    AccountConfig    `toml:"account"`
	Engagement EngagementConfig `toml:"engagement"`
	Feed       FeedConfig       `toml:"feed"`
	Browser    BrowserConfig    `toml:"browser"`
	Templates  TemplatesConfig  `toml:"templates"`
	Timing     TimingConfig     `toml:"timing"`
	Comment    CommentConfig    `toml:"comment"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Email      EmailConfig      `toml:"email"`
	Paths      PathsConfig      `toml:"paths"`
}

type AccountConfig struct {
	Email        string `toml:"email"`
	Password     string `toml:"password"`
	LoginService string `toml:"login_service"`
}

// Toggle switches one engagement action. With Randomize set the action
// runs on roughly half of the articles.
type Toggle struct {
	Enabled   bool `toml:"enabled"`
	Randomize bool `toml:"randomize"`
}

type EngagementConfig struct {
	Like              Toggle   `toml:"like"`
	Comment           Toggle   `toml:"comment"`
	Follow            Toggle   `toml:"follow"`
	Unfollow          Toggle   `toml:"unfollow"`
	MinClaps          int      `toml:"min_claps"`
	MaxLikesOnPost    int      `toml:"max_likes_on_post"`
	UnfollowBlacklist []string `toml:"unfollow_blacklist"`
}

type FeedConfig struct {
	Tags             []string `toml:"tags"`
	ArticlesPerTag   int      `toml:"articles_per_tag"`
	ArticleBlacklist []string `toml:"article_blacklist"`
	UseRelatedTags   bool     `toml:"use_related_tags"`
	BaseURL          string   `toml:"base_url"`
	UserAgent        string   `toml:"user_agent"`
	MinInterval      Duration `toml:"min_interval"`
	Timeout          Duration `toml:"timeout"`
}

type BrowserConfig struct {
	Headless     bool   `toml:"headless"`
	ExecPath     string `toml:"exec_path"`
	UserDataDir  string `toml:"user_data_dir"`
	WindowWidth  int    `toml:"window_width"`
	WindowHeight int    `toml:"window_height"`
}

type TemplatesConfig struct {
	Dir             string  `toml:"dir"`
	Clap            string  `toml:"clap"`
	BlackClap       string  `toml:"black_clap"`
	FollowBlack     string  `toml:"follow_black"`
	FollowWhite     string  `toml:"follow_white"`
	ClapThreshold   float64 `toml:"clap_threshold"`
	FollowThreshold float64 `toml:"follow_threshold"`
	MaxAttempts     int     `toml:"max_attempts"`

	// Exhaustive disables the coarse-to-fine search. Slower, for tuning.
	Exhaustive bool `toml:"exhaustive"`
}

type TimingConfig struct {
	PageLoadMin      Duration `toml:"page_load_min"`
	PageLoadMax      Duration `toml:"page_load_max"`
	Dwell            Duration `toml:"dwell"`
	FollowWaitMin    Duration `toml:"follow_wait_min"`
	FollowWaitMax    Duration `toml:"follow_wait_max"`
	ClapPauseMin     Duration `toml:"clap_pause_min"`
	ClapPauseMax     Duration `toml:"clap_pause_max"`
	BlackClapWaitMin Duration `toml:"black_clap_wait_min"`
	BlackClapWaitMax Duration `toml:"black_clap_wait_max"`
	AfterBlackClap   Duration `toml:"after_black_clap"`
	ScrollRetryWait  Duration `toml:"scroll_retry_wait"`
	FollowSelector   Duration `toml:"follow_selector_timeout"`
}

type CommentConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	DraftModel      string `toml:"draft_model"`
	RefineModel     string `toml:"refine_model"`
	EditModel       string `toml:"edit_model"`
	DraftMaxTokens  int    `toml:"draft_max_tokens"`
	RefineMaxTokens int    `toml:"refine_max_tokens"`
}

type ScheduleConfig struct {
	Cron     string `toml:"cron"`
	Timezone string `toml:"timezone"`
}

// EmailConfig controls mailing the session report after each run.
type EmailConfig struct {
	Enabled  bool   `toml:"enabled"`
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_addr"`
	ToAddr   string `toml:"to_addr"`
}

type PathsConfig struct {
	VisitedFile string `toml:"visited_file"`
	HistoryDB   string `toml:"history_db"`
}

// Duration is a time.Duration that reads and writes as "45s" in TOML.
type Duration struct {
	time.Duration
}

// D wraps a time.Duration.
func D(d time.Duration) Duration { return Duration{d} }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Account: AccountConfig{
			LoginService: LoginManual,
		},
		Engagement: EngagementConfig{
			Like:           Toggle{Enabled: true},
			Comment:        Toggle{Enabled: false},
			Follow:         Toggle{Enabled: true},
			MinClaps:       11,
			MaxLikesOnPost: 22,
		},
		Feed: FeedConfig{
			Tags:        []string{},
			BaseURL:     "https://medium.com/feed/tag",
			UserAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MinInterval: D(2 * time.Second),
			Timeout:     D(20 * time.Second),
		},
		Browser: BrowserConfig{
			Headless:     false,
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Templates: TemplatesConfig{
			Dir:             "buttontemps",
			Clap:            "clap_button_template.png",
			BlackClap:       "black_clap_button_template.png",
			FollowBlack:     "follow_button_template_black.png",
			FollowWhite:     "follow_button_template_white.png",
			ClapThreshold:   0.51,
			FollowThreshold: 0.6,
			MaxAttempts:     5,
		},
		Timing: TimingConfig{
			PageLoadMin:      D(3 * time.Second),
			PageLoadMax:      D(5 * time.Second),
			Dwell:            D(45 * time.Second),
			FollowWaitMin:    D(5 * time.Second),
			FollowWaitMax:    D(15 * time.Second),
			ClapPauseMin:     D(100 * time.Millisecond),
			ClapPauseMax:     D(300 * time.Millisecond),
			BlackClapWaitMin: D(3 * time.Second),
			BlackClapWaitMax: D(5 * time.Second),
			AfterBlackClap:   D(5 * time.Second),
			ScrollRetryWait:  D(2 * time.Second),
			FollowSelector:   D(5 * time.Second),
		},
		Comment: CommentConfig{
			Provider:        ProviderGroq,
			BaseURL:         "https://api.groq.com/openai/v1",
			DraftModel:      "llama3-8b-8192",
			RefineModel:     "llama3-70b-8192",
			EditModel:       "llama3-70b-8192",
			DraftMaxTokens:  506,
			RefineMaxTokens: 8192,
		},
		Schedule: ScheduleConfig{
			Cron:     "0 */6 * * *",
			Timezone: "Local",
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
	}
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Account.LoginService {
	case LoginFacebook:
		if c.Account.Email == "" || c.Account.Password == "" {
			errs = append(errs, errors.New("account: facebook login needs email and password"))
		}
	case LoginManual, "":
	default:
		errs = append(errs, fmt.Errorf("account: unknown login service %q", c.Account.LoginService))
	}

	e := c.Engagement
	if e.MinClaps < 1 {
		errs = append(errs, fmt.Errorf("engagement: min_claps must be at least 1, got %d", e.MinClaps))
	}
	if e.MaxLikesOnPost < e.MinClaps {
		errs = append(errs, fmt.Errorf("engagement: max_likes_on_post (%d) is below min_claps (%d)", e.MaxLikesOnPost, e.MinClaps))
	}

	if c.Feed.ArticlesPerTag < 0 {
		errs = append(errs, errors.New("feed: articles_per_tag cannot be negative"))
	}
	if c.Feed.BaseURL == "" {
		errs = append(errs, errors.New("feed: base_url is required"))
	}

	t := c.Templates
	if t.MaxAttempts < 1 {
		errs = append(errs, errors.New("templates: max_attempts must be at least 1"))
	}
	for name, v := range map[string]float64{"clap_threshold": t.ClapThreshold, "follow_threshold": t.FollowThreshold} {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("templates: %s must be in (0, 1], got %v", name, v))
		}
	}

	tm := c.Timing
	for name, r := range map[string][2]Duration{
		"page_load":       {tm.PageLoadMin, tm.PageLoadMax},
		"follow_wait":     {tm.FollowWaitMin, tm.FollowWaitMax},
		"clap_pause":      {tm.ClapPauseMin, tm.ClapPauseMax},
		"black_clap_wait": {tm.BlackClapWaitMin, tm.BlackClapWaitMax},
	} {
		if r[0].Duration < 0 || r[1].Duration < r[0].Duration {
			errs = append(errs, fmt.Errorf("timing: %s range %v-%v is invalid", name, r[0], r[1]))
		}
	}

	if e.Comment.Enabled {
		switch c.Comment.Provider {
		case ProviderGroq, ProviderOpenAI, ProviderAnthropic:
		default:
			errs = append(errs, fmt.Errorf("comment: unknown provider %q", c.Comment.Provider))
		}
		if c.Comment.APIKey == "" {
			errs = append(errs, errors.New("comment: api_key is required when commenting is enabled"))
		}
	}

	if em := c.Email; em.Enabled {
		if em.Provider != "smtp" {
			errs = append(errs, fmt.Errorf("email: unknown provider %q", em.Provider))
		}
		if em.SMTPHost == "" || em.ToAddr == "" || em.FromAddr == "" {
			errs = append(errs, errors.New("email: smtp_host, from_addr and to_addr are required"))
		}
	}

	return errors.Join(errs...)
}

// TemplatePath resolves a template file name against the templates dir.
func (c *Config) TemplatePath(name string) string {
	if filepath.IsAbs(name) || c.Templates.Dir == "" {
		return name
	}
	return filepath.Join(c.Templates.Dir, name)
}

// VisitedPath returns the visited-URL CSV location.
func (c *Config) VisitedPath() (string, error) {
	if c.Paths.VisitedFile != "" {
		return c.Paths.VisitedFile, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "visited_urls.csv"), nil
}

// HistoryPath returns the engagement history database location.
func (c *Config) HistoryPath() (string, error) {
	if c.Paths.HistoryDB != "" {
		return c.Paths.HistoryDB, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory.
// On macOS this is ~/Library/Caches/clap4me/
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// DataDir holds durable state: the visited list and the history database.
func DataDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// Load reads config from disk. An empty path means ConfigPath().
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes config to disk. An empty path means ConfigPath().
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
