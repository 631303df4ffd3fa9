// Package postctx resolves who wrote a post and which post it is, on a best-effort basis.
package postctx

import (
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/resolve"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// Confidence of each resolution stage
const (
	ConfidenceDOM  = 0.9
	ConfidenceURL  = 0.8
	ConfidenceMeta = 0.7
)

// systemPages are first path segments that are X routes, not handles
var systemPages = map[string]bool{
	"home":          true,
	"explore":       true,
	"notifications": true,
	"messages":      true,
	"bookmarks":     true,
	"lists":         true,
	"profile":       true,
	"settings":      true,
	"help":          true,
	"search":        true,
	"login":         true,
	"signup":        true,
	"i":             true,
	"compose":       true,
}

var (
	handleRe     = regexp.MustCompile(`^[a-zA-Z0-9_]{1,15}$`)
	hrefHandleRe = regexp.MustCompile(`^/([a-zA-Z0-9_]+)$`)
	pathHandleRe = regexp.MustCompile(`^/([a-zA-Z0-9_]+)(?:/status/\d+)?/?$`)
	statusIDRe   = regexp.MustCompile(`/status/(\d+)`)
	tweetIDRe    = regexp.MustCompile(`^\d{15,20}$`)
	digitsRe     = regexp.MustCompile(`\d{15,20}`)
)

// CleanHandle normalizes a handle candidate and reports whether it is valid
func CleanHandle(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "@")
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimPrefix(s, "@")
	if !handleRe.MatchString(s) || systemPages[strings.ToLower(s)] {
		return "", false
	}
	return s, true
}

// Resolve builds the PostContext for a post. container may be empty, in
// which case only page-level sources are used. It returns nil when neither
// the author nor the post id can be determined.
func Resolve(page *dom.Page, container *goquery.Selection) *types.PostContext {
	res := AuthorChain(page, container).Evaluate()
	postID := PostID(page, container)

	if !res.OK && postID == "" {
		return nil
	}

	pc := &types.PostContext{
		PostID:      postID,
		DisplayText: displayText(container),
	}
	if res.OK {
		pc.AuthorHandle = res.Value
		pc.Source = res.Name
		pc.Confidence = res.Confidence
	}
	if pc.AuthorHandle != "" && postID != "" {
		pc.CanonicalURL = "https://x.com/" + pc.AuthorHandle + "/status/" + postID
	}
	return pc
}

// AuthorChain is the ranked author-handle resolution chain
func AuthorChain(page *dom.Page, container *goquery.Selection) *resolve.Chain[string] {
	return resolve.NewChain(func(h string) bool { return h != "" },
		resolve.Candidate[string]{Name: "dom", Confidence: ConfidenceDOM, Compute: func() (string, bool) {
			return fromDOM(page, container)
		}},
		resolve.Candidate[string]{Name: "url", Confidence: ConfidenceURL, Compute: func() (string, bool) {
			return fromURL(page)
		}},
		resolve.Candidate[string]{Name: "meta", Confidence: ConfidenceMeta, Compute: func() (string, bool) {
			return fromMeta(page)
		}},
	)
}

var textSelectors = []string{
	dom.ProfileUserName,
	dom.UserNameText,
	dom.ArticleLinkText,
	dom.HeadingText,
}

func fromDOM(page *dom.Page, container *goquery.Selection) (string, bool) {
	var scopes []*goquery.Selection
	if !dom.Empty(container) {
		scopes = append(scopes, container)
	}
	if page != nil {
		scopes = append(scopes, page.Doc.Selection)
	}

	for _, scope := range scopes {
		for _, sel := range textSelectors {
			if h, ok := firstHandle(scope.Find(sel), func(s *goquery.Selection) string { return s.Text() }); ok {
				return h, true
			}
		}
		if h, ok := firstHandle(scope.Find(dom.UserNameLink), hrefHandle); ok {
			return h, true
		}
	}
	return "", false
}

func firstHandle(sel *goquery.Selection, read func(*goquery.Selection) string) (string, bool) {
	var handle string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(read(s))
		// Display names and handles share these locations; only "@handle" text counts
		if !strings.HasPrefix(text, "@") && !strings.HasPrefix(text, "/") {
			return true
		}
		if h, ok := CleanHandle(text); ok {
			handle = h
			return false
		}
		return true
	})
	return handle, handle != ""
}

func hrefHandle(s *goquery.Selection) string {
	m := hrefHandleRe.FindStringSubmatch(dom.Attr(s, "href"))
	if m == nil {
		return ""
	}
	return "/" + m[1]
}

func fromURL(page *dom.Page) (string, bool) {
	if page == nil {
		return "", false
	}
	m := pathHandleRe.FindStringSubmatch(page.Path())
	if m == nil {
		return "", false
	}
	return CleanHandle(m[1])
}

func fromMeta(page *dom.Page) (string, bool) {
	if page == nil {
		return "", false
	}
	candidates := []string{
		page.Meta("property", "profile:username"),
		page.Meta("property", "twitter:creator"),
		page.Meta("name", "twitter:creator"),
	}
	if og := page.Meta("property", "og:url"); og != "" {
		og = statusIDRe.ReplaceAllString(og, "")
		candidates = append(candidates, path.Base(strings.TrimRight(og, "/")))
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if h, ok := CleanHandle(c); ok {
			return h, true
		}
	}
	return "", false
}

// PostID finds the numeric id of the post, from the container first and the
// page location second
func PostID(page *dom.Page, container *goquery.Selection) string {
	if !dom.Empty(container) {
		if id := postIDFromContainer(container); id != "" {
			return id
		}
	}
	if page != nil && page.Location != nil {
		if m := statusIDRe.FindStringSubmatch(page.Location.Path); m != nil {
			return m[1]
		}
	}
	return ""
}

func postIDFromContainer(c *goquery.Selection) string {
	// the permalink sits on the timestamp
	if href := dom.Attr(c.Find(dom.TweetTimestamp).First().Parent(), "href"); href != "" {
		if m := statusIDRe.FindStringSubmatch(href); m != nil {
			return m[1]
		}
	}

	var id string
	c.Find(dom.TweetLink).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		// skip links into a quoted post
		if !dom.Empty(s.Closest(dom.QuoteIndicator)) {
			return true
		}
		if m := statusIDRe.FindStringSubmatch(dom.Attr(s, "href")); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	if id != "" {
		return id
	}

	if v := dom.Attr(c.Filter(dom.TweetIDAttr).AddSelection(c.Find(dom.TweetIDAttr)), "data-tweet-id"); tweetIDRe.MatchString(v) {
		return v
	}

	if m := digitsRe.FindString(dom.Attr(c, "aria-label")); m != "" {
		return m
	}
	return ""
}

func displayText(container *goquery.Selection) string {
	if dom.Empty(container) {
		return ""
	}
	return strings.TrimSpace(container.Find(dom.TweetText).First().Text())
}
