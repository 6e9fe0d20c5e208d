package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/config"
)

const (
	mediumSignInURL = "https://medium.com/m/signin"

	// Facebook form selectors
	facebookEmail  = `#email`
	facebookPass   = `#pass`
	facebookSubmit = `#loginbutton`

	facebookAppID = "542599432471018"
)

// Page is the part of a browser tab login needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]*network.Cookie, error)
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	Type(ctx context.Context, sel, text string) error
	ClickSelector(ctx context.Context, sel string) error
}

// Manager handles Medium authentication
type Manager struct {
	cookieStore  *CookieStore
	account      config.AccountConfig
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.Logger
}

// NewManager creates a new auth manager
func NewManager(cookieStore *CookieStore, account config.AccountConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cookieStore:  cookieStore,
		account:      account,
		pollInterval: 2 * time.Second,
		timeout:      5 * time.Minute, // Give user 5 minutes to log in
		logger:       logger.Named("auth"),
	}
}

// IsAuthenticated checks if we have valid stored credentials
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// CanLoginUnattended reports whether Login needs no human in front of the browser.
func (m *Manager) CanLoginUnattended() bool {
	return m.account.LoginService == config.LoginFacebook
}

// FacebookLoginURL is Facebook's login page continuing into Medium's OAuth callback.
func FacebookLoginURL() string {
	oauth := url.Values{
		"client_id":     {facebookAppID},
		"redirect_uri":  {"https://medium.com/m/callback/v2/facebook"},
		"scope":         {"public_profile,email"},
		"response_type": {"token"},
		"ret":           {"login"},
	}
	q := url.Values{
		"skip_api_login": {"1"},
		"api_key":        {facebookAppID},
		"app_id":         {facebookAppID},
		"signed_next":    {"1"},
		"display":        {"page"},
		"locale":         {"en_US"},
		"next":           {"https://www.facebook.com/v5.0/dialog/oauth?" + oauth.Encode()},
	}
	return "https://www.facebook.com/login.php?" + q.Encode()
}

// Login signs in with the configured service, waits for Medium's session
// cookies and saves them.
func (m *Manager) Login(ctx context.Context, page Page) error {
	switch m.account.LoginService {
	case config.LoginFacebook:
		if err := m.fillFacebookForm(ctx, page); err != nil {
			return fmt.Errorf("facebook login failed: %w", err)
		}
	case config.LoginManual, "":
		m.logger.Info("Waiting for manual sign-in", zap.Duration("timeout", m.timeout))
		if err := page.Navigate(ctx, mediumSignInURL); err != nil {
			return fmt.Errorf("failed to navigate to login page: %w", err)
		}
	default:
		return fmt.Errorf("unknown login service %q", m.account.LoginService)
	}

	cookies, err := m.waitForLogin(ctx, page)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	m.logger.Info("Logged in successfully")
	return nil
}

func (m *Manager) fillFacebookForm(ctx context.Context, page Page) error {
	if m.account.Email == "" || m.account.Password == "" {
		return errors.New("email and password are required")
	}
	if err := page.Navigate(ctx, FacebookLoginURL()); err != nil {
		return err
	}
	m.logger.Info("Logging in to Facebook")

	if err := page.WaitVisible(ctx, facebookEmail, 30*time.Second); err != nil {
		return fmt.Errorf("login form did not appear: %w", err)
	}
	if err := page.Type(ctx, facebookEmail, m.account.Email); err != nil {
		return err
	}
	if err := page.Type(ctx, facebookPass, m.account.Password); err != nil {
		return err
	}
	return page.ClickSelector(ctx, facebookSubmit)
}

// waitForLogin polls until the browser holds Medium session cookies
func (m *Manager) waitForLogin(ctx context.Context, page Page) ([]*network.Cookie, error) {
	timeout := time.After(m.timeout)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, errors.New("login timeout exceeded")
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			cookies, err := page.Cookies(ctx)
			if err != nil {
				m.logger.Debug("Failed to read cookies", zap.Error(err))
				continue
			}
			if HasSession(cookies) {
				return cookies, nil
			}
			if loc, err := page.Location(ctx); err == nil {
				m.logger.Debug("Still waiting for session", zap.String("location", loc))
			}
		}
	}
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.cookieStore.Clear()
}

// GetCookies returns the stored cookies for injection into a browser
func (m *Manager) GetCookies() ([]*network.Cookie, error) {
	return m.cookieStore.MediumCookies()
}
