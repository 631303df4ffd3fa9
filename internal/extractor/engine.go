// Package extractor runs the media extraction pipeline for one activated element:
// cache, API, DOM strategies and merge, then minimal direct extraction.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xmedia/internal/clickindex"
	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/merge"
	"github.com/ibeckermayer/xmedia/internal/postctx"
	"github.com/ibeckermayer/xmedia/internal/strategy"
	"github.com/ibeckermayer/xmedia/internal/twitter"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// Stage names recorded in diagnostics next to the strategy names
const (
	StageCache   = "cache"
	StageAPI     = "api"
	StageMerge   = "merge"
	StageMinimal = "minimal"
)

// ErrNoMedia is the failure recorded when every stage came back empty
var ErrNoMedia = errors.New("no media found for activated element")

// MediaClient is the API surface the engine needs
type MediaClient interface {
	GetMediaForPost(ctx context.Context, postID string) ([]twitter.Media, error)
	ResolveVideo(ctx context.Context, postID, thumbnailURL string) (*twitter.Media, error)
}

// VideoPauser pauses whatever video is playing on the page
type VideoPauser interface {
	PauseActiveVideo(ctx context.Context) error
}

// Request is one activation. A nil Activated falls back to the element the
// capture script marked in Page.
type Request struct {
	Page      *dom.Page
	Activated *goquery.Selection
	Options   types.Options
}

// Engine extracts media. It is safe for concurrent use when its cache and
// client are.
type Engine struct {
	client     MediaClient
	cache      MediaCache
	pauser     VideoPauser
	strategies []strategy.Strategy
}

// Option configures an Engine
type Option func(*Engine)

func WithPauser(p VideoPauser) Option {
	return func(e *Engine) { e.pauser = p }
}

// WithStrategies replaces the default DOM strategy set
func WithStrategies(s ...strategy.Strategy) Option {
	return func(e *Engine) { e.strategies = s }
}

// New creates an engine. client and cache may be nil, which disables the
// API and cache stages.
func New(client MediaClient, cache MediaCache, opts ...Option) *Engine {
	if c, ok := client.(*twitter.Client); ok && c == nil {
		client = nil
	}
	if c, ok := cache.(*MemoryCache); ok && c == nil {
		cache = nil
	}

	e := &Engine{client: client, cache: cache}
	for _, opt := range opts {
		opt(e)
	}
	if e.strategies == nil {
		var resolver strategy.VideoResolver
		if e.client != nil {
			resolver = e.client
		}
		e.strategies = strategy.Default(resolver)
	}
	return e
}

// run carries the state of one extraction
type run struct {
	ctx       context.Context
	log       *logrus.Entry
	page      *dom.Page
	activated *goquery.Selection
	container *goquery.Selection
	opts      types.Options
	postID    string
	author    string
	out       *types.ExtractionOutcome
}

// Extract runs the pipeline to a terminal outcome. It never returns an error
// and never panics; failures are reported in the outcome.
func (e *Engine) Extract(ctx context.Context, req Request) (out types.ExtractionOutcome) {
	start := time.Now()
	out = types.ExtractionOutcome{
		ExtractionID:   uuid.NewString(),
		Items:          []types.MediaReference{},
		ActivatedIndex: -1,
		Diagnostics:    []types.Diagnostic{},
		SourceKind:     types.SourceNone,
	}
	log := logrus.WithField("extraction_id", out.ExtractionID)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Extraction panicked: %v", r)
			out.Succeeded = false
			out.Items = []types.MediaReference{}
			out.ActivatedIndex = -1
			out.SourceKind = types.SourceNone
			out.ErrorMessage = fmt.Sprintf("extraction panicked: %v", r)
		}
		out.ElapsedMs = time.Since(start).Milliseconds()
		log.WithFields(logrus.Fields{
			"source":     out.SourceKind,
			"items":      len(out.Items),
			"activated":  out.ActivatedIndex,
			"elapsed_ms": out.ElapsedMs,
		}).Info("Extraction finished")
	}()

	if req.Page == nil {
		out.ErrorMessage = "no page to extract from"
		return out
	}

	r := &run{ctx: ctx, log: log, page: req.Page, opts: req.Options, out: &out}
	r.activated = req.Activated
	if dom.Empty(r.activated) {
		r.activated = req.Page.Activated()
	}

	if r.opts.PreserveVideoState && e.pauser != nil {
		e.pause(ctx, log)
	}

	r.container = dom.FindContainer(r.activated)
	if pc := postctx.Resolve(r.page, r.container); pc != nil {
		out.Context = pc
		r.postID = pc.PostID
		r.author = pc.AuthorHandle
		out.PostID = pc.PostID
	}
	log = log.WithField("post_id", r.postID)
	r.log = log

	if e.fromCache(r) || e.fromAPI(r) || e.fromDOM(r) || e.minimal(r) {
		return out
	}

	out.ErrorMessage = ErrNoMedia.Error()
	log.Warn("No media found")
	return out
}

// pause fires the video pause side effect without waiting for it
func (e *Engine) pause(ctx context.Context, log *logrus.Entry) {
	pctx := context.WithoutCancel(ctx)
	go func() {
		if err := e.pauser.PauseActiveVideo(pctx); err != nil {
			log.WithError(err).Debug("Failed to pause active video")
		}
	}()
}

func (e *Engine) fromCache(r *run) bool {
	if e.cache == nil || r.postID == "" {
		return false
	}
	start := time.Now()
	items, ok, err := e.cache.Get(r.postID)
	d := types.Diagnostic{StrategyName: StageCache, ItemCount: len(items), Succeeded: ok && len(items) > 0}
	if err != nil {
		r.log.WithError(err).Warn("Media cache lookup failed")
		d.Error = err.Error()
	}
	r.record(d, start)
	if !d.Succeeded {
		return false
	}

	r.log.Debugf("Cache hit with %d items", len(items))
	r.finish(types.SourceCache, items, -1)
	return true
}

func (e *Engine) fromAPI(r *run) bool {
	if e.client == nil || r.postID == "" || !r.opts.FallbackToVideoAPI {
		return false
	}
	start := time.Now()
	media, err := e.client.GetMediaForPost(r.ctx, r.postID)
	d := types.Diagnostic{StrategyName: StageAPI}
	if err != nil {
		r.log.WithError(err).Warn("API attempt failed")
		d.Error = err.Error()
		r.record(d, start)
		return false
	}

	items := twitter.References(media)
	d.ItemCount = len(items)
	d.Succeeded = len(items) > 0
	r.record(d, start)
	if !d.Succeeded {
		return false
	}

	e.store(r, items, types.SourceAPI)
	r.finish(types.SourceAPI, items, -1)
	return true
}

func (e *Engine) fromDOM(r *run) bool {
	if dom.Empty(r.container) {
		r.log.Debug("No post container found, skipping DOM strategies")
		return false
	}

	in := strategy.Input{
		Container: r.container,
		Activated: r.activated,
		Options:   r.opts,
		PostID:    r.postID,
		Author:    r.author,
	}
	acc := strategy.NewAccumulator()
	for _, s := range e.strategies {
		start := time.Now()
		res, err := runStrategy(r.ctx, s, in, acc)
		d := types.Diagnostic{
			StrategyName: s.Name(),
			ItemCount:    len(res.Items),
			Succeeded:    err == nil && len(res.Items) > 0,
			Skipped:      res.Skipped,
		}
		if err != nil {
			r.log.WithError(err).Warnf("Strategy %s failed", s.Name())
			d.Error = err.Error()
		}
		r.record(d, start)
		acc.Add(res)
	}

	start := time.Now()
	merged := merge.Merge(acc.Results())
	r.record(types.Diagnostic{StrategyName: StageMerge, ItemCount: len(merged.Items), Succeeded: len(merged.Items) > 0}, start)
	if len(merged.Items) == 0 {
		return false
	}

	r.log.Debugf("Strategy %s won with %d merged items", merged.Winner, len(merged.Items))
	if r.postID != "" {
		e.store(r, merged.Items, types.SourceDOM)
	}
	r.finish(types.SourceDOM, merged.Items, merged.ActivatedIndex)
	return true
}

func (e *Engine) minimal(r *run) bool {
	start := time.Now()
	items := minimalExtract(r.activated, r.postID, r.author, r.opts)
	r.record(types.Diagnostic{StrategyName: StageMinimal, ItemCount: len(items), Succeeded: len(items) > 0}, start)
	if len(items) == 0 {
		return false
	}
	r.finish(types.SourceMinimal, items, 0)
	return true
}

func (e *Engine) store(r *run, items []types.MediaReference, source types.SourceKind) {
	if e.cache == nil || r.postID == "" {
		return
	}
	if err := e.cache.Set(r.postID, items, source); err != nil {
		r.log.WithError(err).Warn("Failed to cache extracted media")
	}
}

// runStrategy runs one strategy, turning a panic into an error and an empty result
func runStrategy(ctx context.Context, s strategy.Strategy, in strategy.Input, acc *strategy.Accumulator) (res strategy.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = strategy.Result{StrategyName: s.Name(), ActivatedIndex: -1}
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), p)
		}
	}()
	return s.Run(ctx, in, acc), nil
}

func (r *run) record(d types.Diagnostic, start time.Time) {
	d.ElapsedMs = time.Since(start).Milliseconds()
	r.out.Diagnostics = append(r.out.Diagnostics, d)
}

// finish fills a successful outcome. A negative activated index is resolved
// against the items with the click-index chain.
func (r *run) finish(source types.SourceKind, items []types.MediaReference, activated int) {
	if activated < 0 || activated >= len(items) {
		res := clickindex.Resolve(r.activated, items)
		activated = res.Value
		r.log.Debugf("Click index %d from %s (confidence %.2f)", res.Value, res.Name, res.Confidence)
	}
	r.out.Succeeded = true
	r.out.Items = types.CloneItems(items)
	r.out.ActivatedIndex = activated
	r.out.SourceKind = source
}
