// Package app wires configuration, credentials, the API client, the media
// cache and the extraction engine together for the CLI and the server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xmedia/internal/api"
	"github.com/ibeckermayer/xmedia/internal/auth"
	"github.com/ibeckermayer/xmedia/internal/config"
	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/extractor"
	"github.com/ibeckermayer/xmedia/internal/scheduler"
	"github.com/ibeckermayer/xmedia/internal/scraper"
	"github.com/ibeckermayer/xmedia/internal/store"
	"github.com/ibeckermayer/xmedia/internal/twitter"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// App holds the application state.
type App struct {
	mu          sync.RWMutex
	authManager *auth.Manager // immutable after creation
	store       *store.Store  // nil when the cache is disabled
	requests    *twitter.RequestCache

	// Replaced by ReloadConfig
	config *config.Config
}

// Report is the result of one CLI extraction
type Report struct {
	Outcome      types.ExtractionOutcome
	Location     string
	OutcomePath  string
	SnapshotPath string
}

// ExtractOptions controls one CLI extraction
type ExtractOptions struct {
	Target  scraper.Target
	Dump    bool
	NoAPI   bool
	Options *types.Options // nil uses the configured options
}

// New creates a new App instance. The media cache is opened at the
// configured path; noCache skips it.
func New(cfg *config.Config, authManager *auth.Manager, noCache bool) (*App, error) {
	a := &App{
		config:      cfg,
		authManager: authManager,
		requests:    twitter.NewRequestCache(cfg.API.RequestCacheSize),
	}
	if noCache {
		return a, nil
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache path: %w", err)
	}
	st, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open media cache: %w", err)
	}
	a.store = st
	return a, nil
}

// Close releases the media cache
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Store returns the media cache, or nil when it is disabled
func (a *App) Store() *store.Store {
	return a.store
}

// Config returns the current configuration
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// IsAuthenticated checks if X.com credentials are stored.
func (a *App) IsAuthenticated() bool {
	return a.authManager.IsAuthenticated()
}

// TriggerLogin starts the X.com login flow.
func (a *App) TriggerLogin(ctx context.Context) error {
	logrus.Info("Opening browser for X.com authentication")
	if err := a.authManager.Login(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	logrus.Info("Login successful, cookies saved")
	return nil
}

// TriggerLogout clears stored X.com credentials.
func (a *App) TriggerLogout() error {
	if err := a.authManager.Logout(); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	logrus.Info("Logout successful, cookies cleared")
	return nil
}

// ReloadConfig reloads the configuration from disk. The cache path is not
// reopened.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	config.SetLogLevel(cfg.LogLevel)

	a.mu.Lock()
	a.config = cfg
	a.mu.Unlock()

	logrus.Info("Configuration reloaded")
	return nil
}

// credentials layers captured browser cookies over the stored session
func (a *App) credentials(captured []*network.Cookie) auth.Chain {
	return auth.Credentials(a.authManager.Store(), captured)
}

// Client builds an API client using captured cookies, falling back to the
// stored session. Clients share one request cache.
func (a *App) Client(captured []*network.Cookie) *twitter.Client {
	cfg := a.Config().API
	return twitter.NewClient(a.credentials(captured),
		twitter.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}),
		twitter.WithHost(cfg.Host),
		twitter.WithGuestHost(cfg.GuestHost),
		twitter.WithQueryID(cfg.QueryID),
		twitter.WithBearerToken(cfg.BearerToken),
		twitter.WithMaxRetries(cfg.MaxRetries),
		twitter.WithRequestCache(a.requests),
	)
}

// Engine builds an extraction engine backed by the media cache, or by an
// in-memory cache when it is disabled. pauser may be nil.
func (a *App) Engine(captured []*network.Cookie, pauser extractor.VideoPauser) *extractor.Engine {
	return a.engine(captured, pauser, true)
}

func (a *App) engine(captured []*network.Cookie, pauser extractor.VideoPauser, useAPI bool) *extractor.Engine {
	var client extractor.MediaClient
	if useAPI {
		client = a.Client(captured)
	}

	var cache extractor.MediaCache = extractor.NewMemoryCache()
	if a.store != nil {
		cache = a.store
	}

	var opts []extractor.Option
	if pauser != nil {
		opts = append(opts, extractor.WithPauser(pauser))
	}
	return extractor.New(client, cache, opts...)
}

// ExtractHTML runs the engine on a saved page snapshot
func (a *App) ExtractHTML(ctx context.Context, html, location string, opts ExtractOptions) (*Report, error) {
	page, err := dom.ParseString(html, location)
	if err != nil {
		return nil, err
	}
	return a.extract(ctx, a.engine(nil, nil, !opts.NoAPI), page, html, opts)
}

// ExtractLive opens postURL in a browser, marks the target element as
// activated and runs the engine on the snapshot
func (a *App) ExtractLive(ctx context.Context, postURL string, opts ExtractOptions) (*Report, error) {
	cfg := a.Config()

	var cookies []*network.Cookie
	if a.authManager.IsAuthenticated() {
		c, err := a.authManager.GetCookies()
		if err != nil {
			logrus.WithError(err).Warn("Failed to load stored cookies, continuing as guest")
		} else {
			cookies = c
		}
	} else {
		logrus.Info("Not logged in, continuing as guest")
	}

	session, err := scraper.Open(ctx, cookies,
		scraper.WithHeadless(cfg.Browser.Headless),
		scraper.WithTimeout(time.Duration(cfg.Browser.CaptureTimeoutSec)*time.Second),
	)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if opts.Target.Selector == "" {
		opts.Target.Selector = cfg.Browser.DefaultSelector
	}
	capture, err := session.Capture(ctx, postURL, opts.Target)
	if err != nil {
		return nil, err
	}

	page, err := dom.ParseString(capture.HTML, capture.Location)
	if err != nil {
		return nil, err
	}

	// The snapshot is already marked; select nothing again
	opts.Target = scraper.Target{}
	return a.extract(ctx, a.engine(capture.Cookies, session, !opts.NoAPI), page, capture.HTML, opts)
}

func (a *App) extract(ctx context.Context, engine *extractor.Engine, page *dom.Page, html string, opts ExtractOptions) (*Report, error) {
	cfg := a.Config()

	req := extractor.Request{Page: page, Options: cfg.Extraction.Options}
	if opts.Options != nil {
		req.Options = *opts.Options
	}
	if opts.Target.Selector != "" {
		req.Activated = page.Doc.Find(opts.Target.Selector).Eq(opts.Target.Index)
	}

	if cfg.Extraction.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Extraction.TimeoutSec)*time.Second)
		defer cancel()
	}

	r := &Report{Outcome: engine.Extract(ctx, req)}
	if page.Location != nil {
		r.Location = page.Location.String()
	}
	if a.store != nil {
		if err := a.store.RecordExtraction(r.Outcome); err != nil {
			logrus.WithError(err).Warn("Failed to record extraction")
		}
	}

	if opts.Dump {
		var err error
		if r.OutcomePath, err = store.SaveOutcome(r.Outcome); err != nil {
			logrus.WithError(err).Warn("Failed to dump outcome")
		}
		if r.SnapshotPath, err = store.SaveSnapshot(r.Outcome.ExtractionID, html); err != nil {
			logrus.WithError(err).Warn("Failed to dump snapshot")
		}
	}
	return r, nil
}

// Prune drops cache entries older than the configured max age
func (a *App) Prune(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	maxAge := time.Duration(a.Config().Cache.MaxAgeHours) * time.Hour
	if maxAge <= 0 {
		return nil
	}
	n, err := a.store.Prune(maxAge)
	if err != nil {
		return fmt.Errorf("failed to prune media cache: %w", err)
	}
	logrus.WithField("removed", n).Info("Pruned media cache")
	return nil
}

// Serve runs the HTTP API and the prune schedule until ctx is done
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config()

	sched, err := scheduler.New(cfg.Cache.Timezone)
	if err != nil {
		return err
	}
	if a.store != nil {
		if err := sched.AddPruneJob(cfg.Cache.PruneSchedule, a.Prune); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	apiCfg := api.Config{
		Engine:  a.Engine(nil, nil),
		APIKey:  cfg.Server.APIKey,
		Timeout: time.Duration(cfg.Extraction.TimeoutSec) * time.Second,
	}
	if a.store != nil {
		apiCfg.Store = a.store
	}
	return api.Start(ctx, cfg.Server.Listen, apiCfg)
}
