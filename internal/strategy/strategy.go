// Package strategy holds the DOM scanners that discover media inside a post container.
package strategy

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xmedia/internal/mediaurl"
	"github.com/ibeckermayer/xmedia/internal/twitter"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// Strategy names, in execution order
const (
	NameImage      = "image"
	NameVideo      = "video"
	NameAttribute  = "attribute"
	NameBackground = "background"
)

// Input is what every strategy scans
type Input struct {
	Container *goquery.Selection
	Activated *goquery.Selection
	Options   types.Options
	PostID    string
	Author    string
}

// Result is one strategy's contribution. ActivatedIndex is -1 when the
// strategy did not see the activated element.
type Result struct {
	StrategyName   string
	Items          []types.MediaReference
	ActivatedIndex int
	Skipped        bool
}

// Strategy scans a container for media
type Strategy interface {
	Name() string
	Run(ctx context.Context, in Input, acc *Accumulator) Result
}

// VideoResolver finds the playable video behind a thumbnail
type VideoResolver interface {
	ResolveVideo(ctx context.Context, postID, thumbnailURL string) (*twitter.Media, error)
}

// Default returns the four strategies in priority order. resolver may be nil.
func Default(resolver VideoResolver) []Strategy {
	return []Strategy{
		&ImageStrategy{resolver: resolver},
		&VideoStrategy{resolver: resolver},
		&AttributeStrategy{},
		&BackgroundStrategy{},
	}
}

// Accumulator threads cumulative state through one strategy pass
type Accumulator struct {
	consumed map[string]bool
	results  []Result
	videos   int
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{consumed: make(map[string]bool)}
}

// Consume marks a URL as already accounted for
func (a *Accumulator) Consume(raw string) {
	if key := mediaurl.Normalize(raw); key != "" {
		a.consumed[key] = true
	}
}

// Consumed reports whether a URL was marked by an earlier strategy
func (a *Accumulator) Consumed(raw string) bool {
	return a.consumed[mediaurl.Normalize(raw)]
}

// Add records a finished strategy result
func (a *Accumulator) Add(r Result) {
	a.results = append(a.results, r)
	for _, it := range r.Items {
		if it.IsVideo() {
			a.videos++
		}
	}
}

// HasVideo reports whether any recorded result contributed a video
func (a *Accumulator) HasVideo() bool {
	return a.videos > 0
}

// Results returns recorded results in execution order
func (a *Accumulator) Results() []Result {
	return a.results
}

func newResult(name string) Result {
	return Result{StrategyName: name, ActivatedIndex: -1}
}

func (r *Result) add(item types.MediaReference, activated bool) {
	if activated && r.ActivatedIndex < 0 {
		r.ActivatedIndex = len(r.Items)
	}
	r.Items = append(r.Items, item)
}

func newItem(in Input, strategy string, index int, kind types.MediaKind, source, preview string) types.MediaReference {
	owner := in.PostID
	if owner == "" {
		owner = "dom"
	}
	return types.MediaReference{
		ID:           fmt.Sprintf("%s_%s_%d", owner, strategy, index),
		SourceURL:    source,
		PreviewURL:   preview,
		Kind:         kind,
		Ordinal:      index,
		OriginPostID: in.PostID,
		OriginAuthor: in.Author,
		DisplayIndex: index + 1,
	}
}

func videoItem(in Input, strategy string, index int, m *twitter.Media, preview string) types.MediaReference {
	if preview == "" {
		preview = m.PreviewURL
	}
	item := newItem(in, strategy, index, types.KindVideo, m.DownloadURL, preview)
	item.MediaID = m.MediaID
	item.Width, item.Height = m.Width, m.Height
	item.AspectRatio = m.AspectRatio
	return item
}

// resolveVideo asks the API for the video behind thumb when the options and
// context allow it. Failures are logged and treated as "no video".
func resolveVideo(ctx context.Context, r VideoResolver, in Input, thumb string) *twitter.Media {
	if r == nil || !in.Options.FallbackToVideoAPI || in.PostID == "" || thumb == "" {
		return nil
	}
	m, err := r.ResolveVideo(ctx, in.PostID, thumb)
	if err != nil {
		logrus.WithError(err).WithField("post_id", in.PostID).Debug("Video resolution failed")
		return nil
	}
	return m
}
