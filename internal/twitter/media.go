package twitter

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/ibeckermayer/xmedia/internal/types"
)

// Media is one media entity of a post, resolved to its best-quality URL
type Media struct {
	PostID      string          `json:"postId"`
	ScreenName  string          `json:"screenName"`
	Type        string          `json:"type"` // photo, video or animated_gif
	Kind        types.MediaKind `json:"kind"`
	DownloadURL string          `json:"downloadUrl"`
	PreviewURL  string          `json:"previewUrl"`
	MediaID     string          `json:"mediaId"`
	MediaKey    string          `json:"mediaKey"`
	ExpandedURL string          `json:"expandedUrl"`
	Text        string          `json:"text"`
	Index       int             `json:"index"`
	TypeIndex   int             `json:"typeIndex"`
	Width       int             `json:"width,omitempty"`
	Height      int             `json:"height,omitempty"`
	AspectRatio []int           `json:"aspectRatio,omitempty"`
	Quoted      bool            `json:"quoted"`
}

// Reference converts the media into an engine item at the given ordinal
func (m Media) Reference(ordinal int) types.MediaReference {
	return types.MediaReference{
		ID:           fmt.Sprintf("%s_api_%d", m.PostID, ordinal),
		SourceURL:    m.DownloadURL,
		PreviewURL:   m.PreviewURL,
		Kind:         m.Kind,
		Width:        m.Width,
		Height:       m.Height,
		AspectRatio:  m.AspectRatio,
		Ordinal:      ordinal,
		OriginPostID: m.PostID,
		OriginAuthor: m.ScreenName,
		DisplayIndex: m.TypeIndex + 1,
		MediaID:      m.MediaID,
		Quoted:       m.Quoted,
	}
}

// References converts an API media list into engine items, keeping order
func References(media []Media) []types.MediaReference {
	out := make([]types.MediaReference, 0, len(media))
	for i, m := range media {
		out = append(out, m.Reference(i))
	}
	return out
}

// extractMedia returns the media of a tweet with quoted media first.
// Indices of the tweet's own media are offset by the quoted count.
func extractMedia(t *tweetResult) []Media {
	t = t.unwrap()
	if t == nil {
		return nil
	}
	t.normalize()

	var out []Media
	if q := t.quoted(); q != nil {
		q.normalize()
		out = append(out, mediaOf(q, 0, true)...)
	}
	return append(out, mediaOf(t, len(out), false)...)
}

func mediaOf(t *tweetResult, offset int, quoted bool) []Media {
	if t.ExtendedEntities == nil {
		return nil
	}

	var out []Media
	typeIndex := map[string]int{}
	for _, e := range t.ExtendedEntities.Media {
		m, ok := resolveEntity(e)
		if !ok {
			continue
		}
		m.PostID = t.IDStr
		m.ScreenName = t.screenName()
		m.Text = t.FullText
		m.Quoted = quoted
		m.Index = offset + len(out)
		m.TypeIndex = typeIndex[string(m.Kind)]
		typeIndex[string(m.Kind)]++
		out = append(out, m)
	}
	return out
}

// resolveEntity picks the download URL and dimensions of one media entity.
// It reports false when no URL can be resolved.
func resolveEntity(e mediaEntity) (Media, bool) {
	m := Media{
		Type:        e.Type,
		MediaID:     e.IDStr,
		MediaKey:    e.MediaKey,
		ExpandedURL: e.ExpandedURL,
		PreviewURL:  e.MediaURLHTTPS,
	}

	switch e.Type {
	case "photo":
		m.Kind = types.KindImage
		m.DownloadURL = originalPhotoURL(e.MediaURLHTTPS)
	case "video", "animated_gif":
		m.Kind = types.KindVideo
		m.DownloadURL = bestVariantURL(e)
	default:
		return m, false
	}
	if m.DownloadURL == "" {
		return m, false
	}

	var hint []int
	if e.VideoInfo != nil && len(e.VideoInfo.AspectRatio) == 2 {
		w, h := int(e.VideoInfo.AspectRatio[0]), int(e.VideoInfo.AspectRatio[1])
		if w > 0 && h > 0 {
			hint = []int{w, h}
		}
	}

	switch {
	case e.OriginalInfo != nil && e.OriginalInfo.Width > 0 && e.OriginalInfo.Height > 0:
		m.Width, m.Height = int(e.OriginalInfo.Width), int(e.OriginalInfo.Height)
	default:
		if w, h, ok := DimensionsFromURL(m.DownloadURL); ok {
			m.Width, m.Height = w, h
		} else if hint != nil {
			m.Width, m.Height = hint[0], hint[1]
		}
	}
	m.AspectRatio = hint

	return m, true
}

// bestVariantURL returns the highest-bitrate mp4 variant
func bestVariantURL(e mediaEntity) string {
	if e.VideoInfo == nil {
		return ""
	}
	best, bestRate := "", -1
	for _, v := range e.VideoInfo.Variants {
		if !strings.HasPrefix(v.ContentType, "video/mp4") || v.URL == "" {
			continue
		}
		if v.Bitrate > bestRate {
			best, bestRate = v.URL, v.Bitrate
		}
	}
	return best
}

var photoExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// originalPhotoURL rewrites a pbs.twimg.com photo URL to request the original size
func originalPhotoURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	q := u.Query()
	if u.RawQuery == "" {
		if ext := strings.ToLower(path.Ext(u.Path)); photoExts[ext] {
			u.Path = strings.TrimSuffix(u.Path, path.Ext(u.Path))
			q.Set("format", ext[1:])
		}
	}
	q.Set("name", "orig")
	u.RawQuery = q.Encode()
	return u.String()
}

// OriginalPhotoURL is originalPhotoURL for callers outside the API client.
// Non-twimg URLs are returned unchanged.
func OriginalPhotoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host != "pbs.twimg.com" || !strings.HasPrefix(u.Path, "/media/") {
		return raw
	}
	return originalPhotoURL(raw)
}

var dimensionRe = regexp.MustCompile(`/(\d{2,6})x(\d{2,6})/`)

// DimensionsFromURL parses an NxM path segment such as /vid/avc1/1280x720/
func DimensionsFromURL(raw string) (int, int, bool) {
	m := dimensionRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, false
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
