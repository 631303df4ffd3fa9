package strategy

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/mediaurl"
	"github.com/ibeckermayer/xmedia/internal/twitter"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// mediaAttributes may carry a media URL on elements that render nothing yet
var mediaAttributes = []string{"data-src", "data-background-image", "data-url", "data-image-url"}

const mediaAttributeSelector = "[data-src], [data-background-image], [data-url], [data-image-url]"

// AttributeStrategy reads media URLs from lazy-load style attributes
type AttributeStrategy struct{}

func (s *AttributeStrategy) Name() string { return NameAttribute }

func (s *AttributeStrategy) Run(_ context.Context, in Input, acc *Accumulator) Result {
	res := newResult(NameAttribute)

	in.Container.Find(mediaAttributeSelector).Each(func(_ int, el *goquery.Selection) {
		for _, attr := range mediaAttributes {
			raw := dom.Attr(el, attr)
			if strings.Contains(raw, "url(") {
				if urls := dom.CSSURLs(raw); len(urls) > 0 {
					raw = urls[0]
				}
			}
			if !mediaurl.IsValid(raw) || acc.Consumed(raw) {
				continue
			}

			index := len(res.Items)
			kind := mediaurl.KindOf(raw)
			source := raw
			if kind == types.KindImage {
				source = twitter.OriginalPhotoURL(raw)
			}
			res.add(newItem(in, NameAttribute, index, kind, source, raw), dom.Related(el, in.Activated))
			return
		}
	})

	return res
}
