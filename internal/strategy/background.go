package strategy

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/mediaurl"
	"github.com/ibeckermayer/xmedia/internal/twitter"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// BackgroundStrategy reads effective background images of every descendant
type BackgroundStrategy struct{}

func (s *BackgroundStrategy) Name() string { return NameBackground }

func (s *BackgroundStrategy) Run(_ context.Context, in Input, acc *Accumulator) Result {
	res := newResult(NameBackground)

	in.Container.Find("*").Each(func(_ int, el *goquery.Selection) {
		value := dom.BackgroundImage(el)
		if value == "" {
			return
		}
		best := BestBackgroundURL(dom.CSSURLs(value))
		if best == "" || acc.Consumed(best) {
			return
		}
		index := len(res.Items)
		res.add(newItem(in, NameBackground, index, types.KindImage, twitter.OriginalPhotoURL(best), best), dom.Related(el, in.Activated))
	})

	return res
}

var nameQuality = map[string]int{
	"orig":      5,
	"4096x4096": 4,
	"large":     3,
	"medium":    2,
	"small":     1,
}

// BestBackgroundURL picks the highest-quality valid candidate from a
// background-image list, or "" when none is valid
func BestBackgroundURL(candidates []string) string {
	best, bestQ, bestPx := "", -1, -1
	for _, c := range candidates {
		if !mediaurl.IsValid(c) {
			continue
		}
		q, px := quality(c)
		if q > bestQ || (q == bestQ && px > bestPx) {
			best, bestQ, bestPx = c, q, px
		}
	}
	return best
}

func quality(raw string) (int, int) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, 0
	}
	name := strings.ToLower(u.Query().Get("name"))
	q := nameQuality[name]
	if w, h, ok := twitter.DimensionsFromURL("/" + name + "/"); ok {
		return q, w * h
	}
	if w, h, ok := twitter.DimensionsFromURL(u.Path); ok {
		return q, w * h
	}
	return q, 0
}
