// Package twitter fetches a post's media from X's GraphQL TweetResultByRestId endpoint.
package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xmedia/internal/types"
)

// Session cookie names
const (
	CookieCSRF  = "ct0"
	CookieGuest = "gt"
	CookieAuth  = "auth_token"
)

// ErrTransport marks network failures and non-OK responses
var ErrTransport = errors.New("twitter api transport failure")

// StatusError is a non-OK response from the API
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// CookieSource provides session cookie values by name
type CookieSource interface {
	Cookie(name string) string
}

// Client talks to the TweetResultByRestId endpoint
type Client struct {
	httpClient *http.Client
	host       string
	guestHost  string
	queryID    string
	bearer     string
	cookies    CookieSource
	cache      *RequestCache
	maxRetries uint64
	newBackOff func() backoff.BackOff
	tokens     map[string]string
	tokensMu   sync.Mutex
	guestTried bool
}

// Option configures a Client
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHost sets the GraphQL origin, e.g. an httptest server
func WithHost(host string) Option {
	return func(c *Client) { c.host = host }
}

func WithGuestHost(host string) Option {
	return func(c *Client) { c.guestHost = host }
}

func WithRequestCache(rc *RequestCache) Option {
	return func(c *Client) { c.cache = rc }
}

func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackOff sets the retry schedule factory. Tests use backoff.ZeroBackOff.
func WithBackOff(fn func() backoff.BackOff) Option { return func(c *Client) { c.newBackOff = fn } }

// WithQueryID overrides the GraphQL query id, which X rotates periodically
func WithQueryID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.queryID = id
		}
	}
}

func WithBearerToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.bearer = token
		}
	}
}

// NewClient creates a client reading session cookies from cookies, which may be nil
func NewClient(cookies CookieSource, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		host:       DefaultHost,
		guestHost:  DefaultGuestHost,
		queryID:    DefaultQueryID,
		bearer:     DefaultBearerToken,
		cookies:    cookies,
		maxRetries: 3,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		tokens:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewRequestCache(DefaultRequestCacheSize)
	}
	return c
}

// GetMediaForPost returns the post's media, quoted-post media first.
// Transport failures are returned as errors wrapping ErrTransport; a payload
// without the expected fields yields an empty list and a nil error.
func (c *Client) GetMediaForPost(ctx context.Context, postID string) ([]Media, error) {
	log := logrus.WithField("post_id", postID)

	reqURL, err := tweetURL(c.host, c.queryID, postID)
	if err != nil {
		return nil, err
	}

	c.ensureGuestToken(ctx)

	body, err := c.fetch(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch post %s: %w", postID, err)
	}

	var resp tweetResultResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.WithError(err).Warn("Malformed TweetResultByRestId payload")
		return []Media{}, nil
	}

	result := resp.Data.TweetResult.Result
	if result == nil {
		log.Debug("TweetResultByRestId payload has no result")
		return []Media{}, nil
	}

	media := extractMedia(result)
	if media == nil {
		media = []Media{}
	}
	log.Debugf("API returned %d media items", len(media))
	return media, nil
}

// ResolveVideo finds the playable video behind a thumbnail. It matches the
// video whose preview URL starts with the thumbnail URL minus its query. An
// unmatched thumbnail falls back to the post's only video; it returns nil
// when the post has no video or several.
func (c *Client) ResolveVideo(ctx context.Context, postID, thumbnailURL string) (*Media, error) {
	media, err := c.GetMediaForPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	base := thumbnailURL
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}

	var videos []*Media
	for i := range media {
		m := &media[i]
		if m.Kind != types.KindVideo {
			continue
		}
		if base != "" && strings.HasPrefix(m.PreviewURL, base) {
			return m, nil
		}
		videos = append(videos, m)
	}
	if len(videos) == 1 {
		return videos[0], nil
	}
	return nil, nil
}

// token returns a session cookie value. A value once found is kept for the
// lifetime of the client; a missing value is looked up again on the next call.
func (c *Client) token(name string) string {
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()

	if v, ok := c.tokens[name]; ok {
		return v
	}
	if c.cookies == nil {
		return ""
	}
	v := c.cookies.Cookie(name)
	if v != "" {
		c.tokens[name] = v
	}
	return v
}

// ensureGuestToken activates a guest token once when there is neither a
// logged-in session nor a gt cookie. Failure only means the request goes out
// without one.
func (c *Client) ensureGuestToken(ctx context.Context) {
	if c.token(CookieAuth) != "" || c.token(CookieGuest) != "" {
		return
	}

	c.tokensMu.Lock()
	if c.guestTried {
		c.tokensMu.Unlock()
		return
	}
	c.guestTried = true
	c.tokensMu.Unlock()

	gt, err := c.activateGuest(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Guest token activation failed")
		c.tokensMu.Lock()
		c.guestTried = false
		c.tokensMu.Unlock()
		return
	}

	c.tokensMu.Lock()
	c.tokens[CookieGuest] = gt
	c.tokensMu.Unlock()
	logrus.Debug("Activated guest token")
}

func (c *Client) activateGuest(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, guestActivateURL(c.guestHost), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("authorization", "Bearer "+c.bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	var payload struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode guest token: %w", err)
	}
	if payload.GuestToken == "" {
		return "", errors.New("empty guest token")
	}
	return payload.GuestToken, nil
}

// fetch returns the body of a GET, serving repeats from the request cache.
// Network errors, 429 and 5xx are retried; other non-OK statuses are not.
func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if body, ok := c.cache.Get(reqURL); ok {
		logrus.Debug("Request cache hit")
		return body, nil
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			serr := &StatusError{StatusCode: resp.StatusCode, URL: reqURL}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return serr
			}
			return backoff.Permanent(serr)
		}

		body = data
		return nil
	}

	schedule := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	err := backoff.RetryNotify(op, schedule, func(err error, next time.Duration) {
		logrus.WithError(err).Warnf("API request failed, retrying in %v", next)
	})
	if err != nil {
		return nil, err
	}

	c.cache.Set(reqURL, body)
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("authorization", "Bearer "+c.bearer)
	req.Header.Set("x-twitter-client-language", "en")
	req.Header.Set("x-twitter-active-user", "yes")
	req.Header.Set("content-type", "application/json")

	if ct0 := c.token(CookieCSRF); ct0 != "" {
		req.Header.Set("x-csrf-token", ct0)
		req.AddCookie(&http.Cookie{Name: CookieCSRF, Value: ct0})
	}

	if auth := c.token(CookieAuth); auth != "" {
		req.Header.Set("x-twitter-auth-type", "OAuth2Session")
		req.AddCookie(&http.Cookie{Name: CookieAuth, Value: auth})
	} else if gt := c.token(CookieGuest); gt != "" {
		req.Header.Set("x-guest-token", gt)
		req.AddCookie(&http.Cookie{Name: CookieGuest, Value: gt})
	}
}
