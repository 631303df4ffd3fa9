package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xmedia/internal/browser"
)

// Manager handles X.com session cookies
type Manager struct {
	cookieStore  *CookieStore
	loginTimeout time.Duration
}

// NewManager creates a new auth manager
func NewManager(cookieStore *CookieStore) *Manager {
	return &Manager{cookieStore: cookieStore, loginTimeout: 5 * time.Minute}
}

// IsAuthenticated checks if we have valid stored credentials
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// Store returns the underlying cookie store
func (m *Manager) Store() *CookieStore {
	return m.cookieStore
}

// Login opens a visible browser for the user to log in to X.com and stores
// the resulting session cookies
func (m *Manager) Login(ctx context.Context) error {
	opts := append(browser.Options(false), chromedp.Flag("start-maximized", true))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate("https://x.com/login")); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	if err := m.waitForLogin(browserCtx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cookies, err := ExtractCookies(browserCtx)
	if err != nil {
		return fmt.Errorf("failed to extract cookies: %w", err)
	}

	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	logrus.Infof("Saved %d cookies", len(cookies))
	return nil
}

// waitForLogin polls until the browser lands on the home timeline with an auth_token cookie
func (m *Manager) waitForLogin(ctx context.Context) error {
	timeout := time.After(m.loginTimeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("login timeout exceeded")
		case <-ticker.C:
			var location string
			if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
				continue
			}
			if !strings.HasSuffix(location, "x.com/home") && !strings.HasSuffix(location, "twitter.com/home") {
				continue
			}

			cookies, err := ExtractCookies(ctx)
			if err != nil {
				continue
			}
			if StaticCookies(cookies).Cookie(CookieAuthToken) != "" {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ExtractCookies gets all cookies from the browser behind ctx
func ExtractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)

	return cookies, err
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.cookieStore.Clear()
}

// GetCookies returns the stored x.com cookies for injecting into a browser
func (m *Manager) GetCookies() ([]*network.Cookie, error) {
	return m.cookieStore.GetXCookies()
}
