// Package scraper captures post pages from a live Chrome session for offline extraction.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xmedia/internal/browser"
	"github.com/ibeckermayer/xmedia/internal/dom"
)

// DefaultTargetSelector picks the element treated as activated when the caller names none
const DefaultTargetSelector = dom.TweetMedia

// DefaultTimeout bounds a single capture
const DefaultTimeout = time.Minute

// ErrTargetNotFound means the page had no element matching the target
var ErrTargetNotFound = errors.New("target element not found")

// Target selects the element to mark as activated: the Index-th match of Selector
type Target struct {
	Selector string
	Index    int
}

// Capture is a DOM snapshot of a post page
type Capture struct {
	HTML     string
	Location string
	Cookies  []*network.Cookie
	Marked   bool
}

// Session is a running browser
type Session struct {
	ctx           context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	headless      bool
	timeout       time.Duration
}

// Option configures a Session
type Option func(*Session)

func WithHeadless(headless bool) Option {
	return func(s *Session) { s.headless = headless }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Open starts a browser and injects cookies. Close the session when done.
func Open(ctx context.Context, cookies []*network.Cookie, opts ...Option) (*Session, error) {
	s := &Session{headless: true, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browser.CaptureOptions(s.headless)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	s.ctx, s.allocCancel, s.browserCancel = browserCtx, allocCancel, browserCancel

	// Starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if err := injectCookies(browserCtx, cookies); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to inject cookies: %w", err)
	}

	return s, nil
}

// Close stops the browser
func (s *Session) Close() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// run executes actions in the browser, bounded by the session timeout and ctx
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, actions...)
}

// Capture navigates to postURL, annotates the page for extraction and
// snapshots it. A missing target is not an error; Marked reports it.
func (s *Session) Capture(ctx context.Context, postURL string, target Target) (*Capture, error) {
	if target.Selector == "" {
		target.Selector = DefaultTargetSelector
	}
	log := logrus.WithField("url", postURL)

	script, err := annotateScript(target)
	if err != nil {
		return nil, err
	}

	c := &Capture{}
	err = s.run(ctx,
		chromedp.Navigate(postURL),
		chromedp.WaitVisible(dom.WaitForTweets, chromedp.ByQuery),
		// let lazy media settle
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(script, &c.Marked),
		chromedp.OuterHTML("html", &c.HTML, chromedp.ByQuery),
		chromedp.Location(&c.Location),
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().WithURLs([]string{"https://x.com"}).Do(ctx)
			if err != nil {
				return err
			}
			c.Cookies = cookies
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s: %w", postURL, err)
	}

	if !c.Marked {
		log.WithError(ErrTargetNotFound).Warnf("No element %d for %s", target.Index, target.Selector)
	}
	log.Debugf("Captured %d bytes of HTML", len(c.HTML))
	return c, nil
}

// PauseActiveVideo pauses every playing video on the current page
func (s *Session) PauseActiveVideo(ctx context.Context) error {
	var paused int
	err := s.run(ctx, chromedp.Evaluate(pauseScript, &paused))
	if err != nil {
		return fmt.Errorf("failed to pause video: %w", err)
	}
	logrus.Debugf("Paused %d videos", paused)
	return nil
}

// injectCookies sets cookies in the browser context
func injectCookies(ctx context.Context, cookies []*network.Cookie) error {
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)

				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}
