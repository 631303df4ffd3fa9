package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/mediaurl"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// minimalExtract reads media straight off the activated element and its
// immediate children. It never searches for a container.
func minimalExtract(activated *goquery.Selection, postID, author string, opts types.Options) []types.MediaReference {
	if dom.Empty(activated) {
		return nil
	}
	el := activated.First()
	candidates := []*goquery.Selection{el}
	el.Children().Each(func(_ int, c *goquery.Selection) {
		candidates = append(candidates, c)
	})

	owner := postID
	if owner == "" {
		owner = "dom"
	}

	var items []types.MediaReference
	seen := map[string]bool{}
	add := func(raw, preview string, kind types.MediaKind) {
		if !mediaurl.IsValid(raw) && !mediaurl.IsBlob(raw) {
			return
		}
		key := mediaurl.Normalize(raw)
		if seen[key] {
			return
		}
		seen[key] = true
		i := len(items)
		items = append(items, types.MediaReference{
			ID:           fmt.Sprintf("%s_minimal_%d", owner, i),
			SourceURL:    raw,
			PreviewURL:   preview,
			Kind:         kind,
			Ordinal:      i,
			OriginPostID: postID,
			OriginAuthor: author,
			DisplayIndex: i + 1,
		})
	}

	for _, c := range candidates {
		switch dom.Tag(c) {
		case "img":
			src := dom.Attr(c, "src")
			add(src, src, mediaurl.KindOf(src))
		case "picture":
			src := firstSrcset(dom.Attr(c.Find("source[srcset]"), "srcset"))
			add(src, src, types.KindImage)
		case "source":
			src := firstSrcset(dom.Attr(c, "srcset"))
			add(src, src, types.KindImage)
		case "video":
			add(dom.VideoSource(c), dom.Attr(c, "poster"), types.KindVideo)
		}
		if v := dom.Attr(c, "data-image-url"); v != "" {
			add(v, v, types.KindImage)
		}
		if urls := dom.CSSURLs(dom.BackgroundImage(c)); len(urls) > 0 {
			add(urls[0], urls[0], types.KindImage)
		}
	}

	// Lazy images keep their real URL in data-src until a mutation swaps it in
	if opts.EnableMutationObserver {
		for _, c := range candidates {
			if v := dom.Attr(c, "data-src"); v != "" {
				add(v, v, mediaurl.KindOf(v))
			}
		}
	}

	return items
}

// firstSrcset returns the URL of the first srcset candidate
func firstSrcset(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
