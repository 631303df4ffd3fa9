// Package merge combines strategy results into one ordered, duplicate-free item list.
package merge

import (
	"fmt"

	"github.com/ibeckermayer/xmedia/internal/mediaurl"
	"github.com/ibeckermayer/xmedia/internal/strategy"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// Merged is the reduced output of a strategy pass. ActivatedIndex is -1 when
// no strategy located the activated element among the kept items.
type Merged struct {
	Items          []types.MediaReference
	ActivatedIndex int
	Winner         string
}

// NormalizeURL is the identity key used for URL and thumbnail dedup
func NormalizeURL(raw string) string {
	return mediaurl.Normalize(raw)
}

type index struct {
	items  []types.MediaReference
	byID   map[string]int
	bySrc  map[string]int
	byPrev map[string]int
}

func newIndex() *index {
	return &index{
		byID:   make(map[string]int),
		bySrc:  make(map[string]int),
		byPrev: make(map[string]int),
	}
}

// lookup finds a kept duplicate of it: explicit media id first, then
// normalized source URL, then either URL against a kept thumbnail
func (x *index) lookup(it types.MediaReference) (int, bool) {
	if it.MediaID != "" {
		if i, ok := x.byID[it.MediaID]; ok {
			return i, true
		}
	}
	src, prev := NormalizeURL(it.SourceURL), NormalizeURL(it.PreviewURL)
	if src != "" {
		if i, ok := x.bySrc[src]; ok {
			return i, true
		}
	}
	for _, key := range []string{src, prev} {
		if key == "" {
			continue
		}
		if i, ok := x.byPrev[key]; ok {
			return i, true
		}
	}
	if prev != "" {
		if i, ok := x.bySrc[prev]; ok {
			return i, true
		}
	}
	return -1, false
}

func (x *index) register(i int, it types.MediaReference) {
	if it.MediaID != "" {
		x.byID[it.MediaID] = i
	}
	if k := NormalizeURL(it.SourceURL); k != "" {
		x.bySrc[k] = i
	}
	if k := NormalizeURL(it.PreviewURL); k != "" {
		x.byPrev[k] = i
	}
}

// Merge reduces results in order. The first strategy to contribute an item
// owns its position; a later video that duplicates a kept image replaces it
// in place.
func Merge(results []strategy.Result) Merged {
	x := newIndex()
	out := Merged{ActivatedIndex: -1}
	reporter := firstReporter(results)

	for r, res := range results {
		for j, it := range res.Items {
			pos, dup := x.lookup(it)
			switch {
			case !dup:
				pos = len(x.items)
				x.items = append(x.items, it)
				if out.Winner == "" {
					out.Winner = res.StrategyName
				}
			case it.IsVideo() && !x.items[pos].IsVideo():
				x.items[pos] = it
			}
			x.register(pos, it)

			if r == reporter && j == res.ActivatedIndex {
				out.ActivatedIndex = pos
			}
		}
	}

	out.Items = finalize(x.items)
	return out
}

// firstReporter returns the index of the first result that located the
// activated element, or -1
func firstReporter(results []strategy.Result) int {
	for r, res := range results {
		if res.ActivatedIndex >= 0 && res.ActivatedIndex < len(res.Items) {
			return r
		}
	}
	return -1
}

// finalize assigns ordinals and display indices and makes ids unique
func finalize(items []types.MediaReference) []types.MediaReference {
	out := types.CloneItems(items)
	seen := make(map[string]bool, len(out))
	for i := range out {
		out[i].Ordinal = i
		out[i].DisplayIndex = i + 1
		id := out[i].ID
		if id == "" {
			id = fmt.Sprintf("item_%d", i)
		}
		for seen[id] {
			id = fmt.Sprintf("%s_%d", id, i)
		}
		seen[id] = true
		out[i].ID = id
	}
	return out
}
