// Package clickindex maps the element a user activated to a position in an
// extracted item list.
package clickindex

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/mediaurl"
	"github.com/ibeckermayer/xmedia/internal/resolve"
	"github.com/ibeckermayer/xmedia/internal/types"
)

const (
	ConfidenceDirect   = 0.99
	ConfidenceDOMOrder = 0.85
	ConfidenceFallback = 0.5

	maxAncestors = 10
)

// Resolve returns the index of the activated item. Value is -1 only when
// items is empty.
func Resolve(activated *goquery.Selection, items []types.MediaReference) resolve.Result[int] {
	chain := resolve.NewChain(func(i int) bool { return i >= 0 && i < len(items) },
		resolve.Candidate[int]{Name: "direct", Confidence: ConfidenceDirect, Compute: func() (int, bool) {
			return directMatch(activated, items)
		}},
		resolve.Candidate[int]{Name: "dom-order", Confidence: ConfidenceDOMOrder, Compute: func() (int, bool) {
			return domOrder(activated, len(items))
		}},
		resolve.Candidate[int]{Name: "fallback", Confidence: ConfidenceFallback, Compute: func() (int, bool) {
			return 0, len(items) > 0
		}},
	)

	res := chain.Evaluate()
	if !res.OK {
		res.Value = -1
	}
	return res
}

// activatedURLs returns the URLs shown by the activated element or its
// nearest media descendant, poster before playable source
func activatedURLs(activated *goquery.Selection) []string {
	if dom.Empty(activated) {
		return nil
	}
	el := activated.First()
	switch dom.Tag(el) {
	case "img", "video":
	default:
		el = el.Find(dom.MediaElements).First()
	}

	var urls []string
	switch dom.Tag(el) {
	case "img":
		urls = append(urls, dom.Attr(el, "src"))
	case "video":
		urls = append(urls, dom.Attr(el, "poster"), dom.VideoSource(el))
	}
	if len(urls) == 0 {
		if bg := dom.CSSURLs(dom.BackgroundImage(activated.First())); len(bg) > 0 {
			urls = append(urls, bg[0])
		}
	}

	out := urls[:0]
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

func directMatch(activated *goquery.Selection, items []types.MediaReference) (int, bool) {
	urls := activatedURLs(activated)
	if len(urls) == 0 {
		return -1, false
	}

	for _, u := range urls {
		for i, it := range items {
			if it.SourceURL == u || it.PreviewURL == u {
				return i, true
			}
		}
	}

	for _, u := range urls {
		name := mediaurl.Filename(u)
		if name == "" {
			continue
		}
		for i, it := range items {
			if mediaurl.Filename(it.SourceURL) == name || mediaurl.Filename(it.PreviewURL) == name {
				return i, true
			}
		}
	}
	return -1, false
}

// domOrder finds the closest ancestor holding a group of media elements and
// returns the activated element's position in it
func domOrder(activated *goquery.Selection, count int) (int, bool) {
	if dom.Empty(activated) || count == 0 {
		return -1, false
	}

	ancestor := activated.First().Parent()
	for depth := 0; depth < maxAncestors && !dom.Empty(ancestor); depth++ {
		group := mediaGroup(ancestor)
		if len(group) >= 2 {
			for i, el := range group {
				if dom.Related(el, activated) {
					return clamp(i, count), true
				}
			}
			return -1, false
		}
		ancestor = ancestor.Parent()
	}
	return -1, false
}

func mediaGroup(ancestor *goquery.Selection) []*goquery.Selection {
	var group []*goquery.Selection
	ancestor.Find(dom.MediaElements).Each(func(_ int, el *goquery.Selection) {
		src := dom.MediaSource(el)
		if mediaurl.IsValid(src) || mediaurl.IsBlob(src) {
			group = append(group, el)
		}
	})
	return group
}

func clamp(i, count int) int {
	if i < 0 {
		return 0
	}
	if i >= count {
		return count - 1
	}
	return i
}
