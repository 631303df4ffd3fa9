package strategy

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/mediaurl"
	"github.com/ibeckermayer/xmedia/internal/twitter"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// thumbnailAlts are accessible names X gives video and GIF posters
var thumbnailAlts = map[string]bool{
	"Animated Text GIF": true,
	"Embedded video":    true,
}

// ImageStrategy scans img elements, turning video thumbnails into videos
type ImageStrategy struct {
	resolver VideoResolver
}

func (s *ImageStrategy) Name() string { return NameImage }

func (s *ImageStrategy) Run(ctx context.Context, in Input, acc *Accumulator) Result {
	res := newResult(NameImage)

	in.Container.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := dom.Attr(img, "src")
		if !mediaurl.IsValid(src) || acc.Consumed(src) {
			return
		}
		activated := dom.Related(img, in.Activated)
		index := len(res.Items)

		if isVideoThumbnail(img, src) {
			if m := resolveVideo(ctx, s.resolver, in, src); m != nil {
				acc.Consume(src)
				res.add(videoItem(in, NameImage, index, m, src), activated)
				return
			}
		}

		res.add(newItem(in, NameImage, index, types.KindImage, twitter.OriginalPhotoURL(src), src), activated)
	})

	return res
}

// isVideoThumbnail checks filename markers, accessible names and player ancestors
func isVideoThumbnail(img *goquery.Selection, src string) bool {
	if mediaurl.IsVideoThumbnail(src) {
		return true
	}
	if thumbnailAlts[dom.Attr(img, "alt")] {
		return true
	}
	return !dom.Empty(img.Closest(dom.VideoPlayer))
}
