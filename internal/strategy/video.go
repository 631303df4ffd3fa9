package strategy

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/mediaurl"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// VideoStrategy scans video elements. The in-page src is usually a blob or
// an HLS segment, so the API-resolved mp4 is preferred.
type VideoStrategy struct {
	resolver VideoResolver
}

func (s *VideoStrategy) Name() string { return NameVideo }

func (s *VideoStrategy) Run(ctx context.Context, in Input, acc *Accumulator) Result {
	res := newResult(NameVideo)
	if !in.Options.IncludeVideoElements || acc.HasVideo() {
		res.Skipped = true
		return res
	}

	in.Container.Find("video").Each(func(_ int, v *goquery.Selection) {
		poster := dom.Attr(v, "poster")
		if poster != "" && acc.Consumed(poster) {
			return
		}
		activated := dom.Related(v, in.Activated)
		index := len(res.Items)

		if m := resolveVideo(ctx, s.resolver, in, poster); m != nil {
			acc.Consume(poster)
			res.add(videoItem(in, NameVideo, index, m, poster), activated)
			return
		}

		src := dom.VideoSource(v)
		if !mediaurl.IsValid(src) && !mediaurl.IsBlob(src) {
			return
		}
		acc.Consume(poster)
		res.add(newItem(in, NameVideo, index, types.KindVideo, src, poster), activated)
	})

	return res
}
