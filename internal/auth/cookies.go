package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/xmedia/internal/config"
)

// Session cookies the API client needs
const (
	CookieAuthToken = "auth_token"
	CookieCSRF      = "ct0"
	CookieGuest     = "gt"
)

// CookieStore persists X.com session cookies captured from a browser
type CookieStore struct {
	path string
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// DefaultCookieStorePath returns the default path for cookie storage
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// Save persists cookies to disk
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// The session lasts as long as its shortest-lived credential
	var earliestExpiry time.Time
	for _, c := range cookies {
		if c.Name == CookieAuthToken || c.Name == CookieCSRF {
			if c.Expires <= 0 {
				continue
			}
			exp := time.Unix(int64(c.Expires), 0)
			if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
				earliestExpiry = exp
			}
		}
	}

	stored := StoredCookies{
		Cookies:    cookies,
		CapturedAt: time.Now(),
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

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	return &stored, nil
}

// IsValid reports whether an unexpired logged-in session is stored
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}

	if !stored.ExpiresAt.IsZero() && time.Now().After(stored.ExpiresAt) {
		return false
	}

	jar := StaticCookies(stored.Cookies)
	return jar.Cookie(CookieAuthToken) != "" && jar.Cookie(CookieCSRF) != ""
}

// Clear removes stored cookies
func (cs *CookieStore) Clear() error {
	err := os.Remove(cs.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetXCookies returns only the x.com related cookies
func (cs *CookieStore) GetXCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}
	return filterX(stored.Cookies), nil
}

// Cookie returns the stored value of an x.com cookie, or "" when the store
// is missing or has no such cookie. The file is read on every call.
func (cs *CookieStore) Cookie(name string) string {
	cookies, err := cs.GetXCookies()
	if err != nil {
		return ""
	}
	return StaticCookies(cookies).Cookie(name)
}

// StaticCookies is a fixed cookie set, e.g. one read from a live browser session
type StaticCookies []*network.Cookie

// Cookie returns the value of the first cookie called name
func (s StaticCookies) Cookie(name string) string {
	for _, c := range s {
		if c != nil && c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Chain looks a cookie up in each source in turn
type Chain []interface{ Cookie(string) string }

// Cookie returns the first non-empty value
func (ch Chain) Cookie(name string) string {
	for _, src := range ch {
		if src == nil {
			continue
		}
		if v := src.Cookie(name); v != "" {
			return v
		}
	}
	return ""
}

// Credentials is the cookie source handed to the API client: cookies captured
// from a live session first, then the persisted login. Either may be nil.
func Credentials(store *CookieStore, captured []*network.Cookie) Chain {
	ch := Chain{StaticCookies(filterX(captured))}
	if store != nil {
		ch = append(ch, store)
	}
	return ch
}

func filterX(cookies []*network.Cookie) []*network.Cookie {
	var xCookies []*network.Cookie
	for _, c := range cookies {
		d := strings.TrimPrefix(c.Domain, ".")
		if d == "x.com" || d == "twitter.com" {
			xCookies = append(xCookies, c)
		}
	}
	return xCookies
}
