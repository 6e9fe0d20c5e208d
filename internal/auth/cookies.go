package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/clap4me/internal/config"
)

// Medium session cookies. Both must be present for a logged-in session.
var sessionCookies = []string{"sid", "uid"}

// CookieStore handles storage of Medium session cookies
type CookieStore struct {
	path string
	now  func() time.Time
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// DefaultCookieStorePath returns the default path for cookie storage
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

func isMedium(c *network.Cookie) bool {
	d := strings.TrimPrefix(c.Domain, ".")
	return d == "medium.com" || strings.HasSuffix(d, ".medium.com")
}

func isSession(c *network.Cookie) bool {
	for _, name := range sessionCookies {
		if c.Name == name && c.Value != "" && isMedium(c) {
			return true
		}
	}
	return false
}

// Save persists cookies to disk
// TODO: Encrypt cookies at rest
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Find the earliest expiration among session cookies; session-only
	// cookies (Expires <= 0) do not bound it
	var earliestExpiry time.Time
	for _, c := range cookies {
		if !isSession(c) || c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
			earliestExpiry = exp
		}
	}

	normalized := make([]*network.Cookie, len(cookies))
	for i, c := range cookies {
		normalized[i] = normalize(c)
	}

	stored := StoredCookies{
		Cookies:    normalized,
		CapturedAt: cs.now(),
		ExpiresAt:  earliestExpiry,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Cookies    []json.RawMessage `json:"cookies"`
		CapturedAt time.Time         `json:"captured_at"`
		ExpiresAt  time.Time         `json:"expires_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	stored := StoredCookies{CapturedAt: raw.CapturedAt, ExpiresAt: raw.ExpiresAt}
	for i, r := range raw.Cookies {
		c, err := decodeCookie(r)
		if err != nil {
			return nil, fmt.Errorf("cookie %d: %w", i, err)
		}
		stored.Cookies = append(stored.Cookies, c)
	}

	return &stored, nil
}

// Enum fields that Chrome always fills but older files may hold as "".
var cookieEnums = []string{"priority", "sourceScheme", "sameSite"}

// decodeCookie drops empty enum values before decoding, since cdproto
// rejects them, and fills in Chrome's defaults.
func decodeCookie(data []byte) (*network.Cookie, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for _, k := range cookieEnums {
		if v, ok := fields[k]; ok && string(v) == `""` {
			delete(fields, k)
		}
	}
	cleaned, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	var c network.Cookie
	if err := json.Unmarshal(cleaned, &c); err != nil {
		return nil, err
	}
	return normalize(&c), nil
}

// normalize returns a copy of c whose required enums hold valid values.
func normalize(c *network.Cookie) *network.Cookie {
	out := *c
	if out.Priority == "" {
		out.Priority = network.CookiePriorityMedium
	}
	if out.SourceScheme == "" {
		out.SourceScheme = network.CookieSourceSchemeUnset
	}
	return &out
}

// IsValid checks if stored cookies are still valid
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}

	if !stored.ExpiresAt.IsZero() && cs.now().After(stored.ExpiresAt) {
		return false
	}

	return HasSession(stored.Cookies)
}

// HasSession reports whether cookies contain every Medium session cookie.
func HasSession(cookies []*network.Cookie) bool {
	found := make(map[string]bool)
	for _, c := range cookies {
		if isSession(c) {
			found[c.Name] = true
		}
	}
	return len(found) == len(sessionCookies)
}

// Clear removes stored cookies
func (cs *CookieStore) Clear() error {
	return os.Remove(cs.path)
}

// MediumCookies returns only the medium.com cookies for injection
func (cs *CookieStore) MediumCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var out []*network.Cookie
	for _, c := range stored.Cookies {
		if isMedium(c) {
			out = append(out, c)
		}
	}

	return out, nil
}
