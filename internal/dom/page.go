// Package dom models a captured page as a goquery document plus the location
// it was captured from.
package dom

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed DOM snapshot
type Page struct {
	Doc      *goquery.Document
	Location *url.URL
}

// Parse reads an HTML snapshot. location may be empty.
func Parse(r io.Reader, location string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	p := &Page{Doc: doc}
	if location != "" {
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("failed to parse location %q: %w", location, err)
		}
		p.Location = u
		doc.Url = u
	}
	return p, nil
}

// ParseString is Parse over an in-memory string
func ParseString(s, location string) (*Page, error) {
	return Parse(strings.NewReader(s), location)
}

// Activated returns the element marked by the capture script, or an empty selection
func (p *Page) Activated() *goquery.Selection {
	return p.Doc.Find("[" + ActivatedAttr + "]").First()
}

// Path returns the location path, or "" when the location is unknown
func (p *Page) Path() string {
	if p.Location == nil {
		return ""
	}
	return p.Location.Path
}

// Meta returns the content of the first meta tag whose attr equals key
func (p *Page) Meta(attr, key string) string {
	var content string
	p.Doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr(attr); v == key {
			content = strings.TrimSpace(s.AttrOr("content", ""))
			return false
		}
		return true
	})
	return content
}

// Node returns the first node of sel, or nil
func Node(sel *goquery.Selection) *html.Node {
	if sel == nil || sel.Length() == 0 {
		return nil
	}
	return sel.Get(0)
}

// Empty reports whether sel holds no nodes
func Empty(sel *goquery.Selection) bool {
	return Node(sel) == nil
}

// Same reports whether a and b start with the same node
func Same(a, b *goquery.Selection) bool {
	na, nb := Node(a), Node(b)
	return na != nil && na == nb
}

// Contains reports whether inner is outer or one of its descendants
func Contains(outer, inner *goquery.Selection) bool {
	no, ni := Node(outer), Node(inner)
	if no == nil || ni == nil {
		return false
	}
	for n := ni; n != nil; n = n.Parent {
		if n == no {
			return true
		}
	}
	return false
}

// Related reports whether one of a, b contains the other
func Related(a, b *goquery.Selection) bool {
	return Contains(a, b) || Contains(b, a)
}

// Tag returns the lowercased element name of sel
func Tag(sel *goquery.Selection) string {
	if Empty(sel) {
		return ""
	}
	return strings.ToLower(goquery.NodeName(sel.First()))
}

// Attr returns a trimmed attribute value
func Attr(sel *goquery.Selection, name string) string {
	if Empty(sel) {
		return ""
	}
	return strings.TrimSpace(sel.First().AttrOr(name, ""))
}

// MediaSource returns the URL an img or video element displays.
// Videos prefer the poster, which is what the user sees before playback.
func MediaSource(sel *goquery.Selection) string {
	switch Tag(sel) {
	case "img":
		return Attr(sel, "src")
	case "video":
		if poster := Attr(sel, "poster"); poster != "" {
			return poster
		}
		if src := Attr(sel, "src"); src != "" {
			return src
		}
		return Attr(sel.Find("source[src]"), "src")
	}
	return ""
}

// VideoSource returns the playable URL of a video element
func VideoSource(sel *goquery.Selection) string {
	if src := Attr(sel, "src"); src != "" {
		return src
	}
	return Attr(sel.Find("source[src]"), "src")
}

var (
	backgroundDeclRe = regexp.MustCompile(`(?i)background(?:-image)?\s*:\s*([^;]+)`)
	cssURLRe         = regexp.MustCompile(`url\((?:"([^"]+)"|'([^']+)'|([^'"()]+))\)`)
)

// BackgroundImage returns the effective background-image value of an element.
// The capture script records computed styles in BackgroundAttr; inline styles
// are the fallback for snapshots taken without it.
func BackgroundImage(sel *goquery.Selection) string {
	if v := Attr(sel, BackgroundAttr); v != "" && v != "none" {
		return v
	}
	style := Attr(sel, "style")
	if style == "" {
		return ""
	}
	m := backgroundDeclRe.FindStringSubmatch(style)
	if m == nil {
		return ""
	}
	v := strings.TrimSpace(m[1])
	if !strings.Contains(v, "url(") {
		return ""
	}
	return v
}

// CSSURLs extracts every url(...) target from a CSS value
func CSSURLs(value string) []string {
	var urls []string
	for _, m := range cssURLRe.FindAllStringSubmatch(value, -1) {
		for _, g := range m[1:] {
			if g = strings.TrimSpace(g); g != "" {
				urls = append(urls, g)
				break
			}
		}
	}
	return urls
}

// FindContainer returns the closest enclosing post of sel, or an empty selection
func FindContainer(sel *goquery.Selection) *goquery.Selection {
	if Empty(sel) {
		return sel
	}
	for _, selector := range ContainerSelectors {
		if c := sel.First().Closest(selector); c.Length() > 0 {
			return c
		}
	}
	return sel.Slice(0, 0)
}
