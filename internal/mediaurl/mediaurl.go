// Package mediaurl classifies and normalizes X media URLs.
package mediaurl

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/ibeckermayer/xmedia/internal/types"
)

// rejected marks image URLs that are never post media
var rejected = []string{"profile_images", "/emoji/", "hashflags", "profile_banners"}

var thumbnailMarkers = []string{"ext_tw_video_thumb", "amplify_video_thumb", "tweet_video_thumb"}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".m4v": true, ".m3u8": true,
}

var (
	sizeSegmentRe = regexp.MustCompile(`/\d{2,6}x\d{2,6}/`)
	colonSuffixRe = regexp.MustCompile(`:[A-Za-z0-9_]+$`)
)

// IsBlob reports whether raw is a blob: URL
func IsBlob(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "blob:")
}

// IsValid reports whether raw is an http(s) URL that can be post media
func IsValid(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	for _, r := range rejected {
		if strings.Contains(raw, r) {
			return false
		}
	}
	return true
}

// IsVideoThumbnail reports whether raw is the poster frame of a video or GIF
func IsVideoThumbnail(raw string) bool {
	for _, m := range thumbnailMarkers {
		if strings.Contains(raw, m) {
			return true
		}
	}
	return false
}

// KindOf guesses the media kind from a URL
func KindOf(raw string) types.MediaKind {
	if IsVideoThumbnail(raw) {
		return types.KindImage
	}
	u, err := url.Parse(raw)
	if err != nil {
		return types.KindImage
	}
	if strings.EqualFold(u.Host, "video.twimg.com") {
		return types.KindVideo
	}
	if videoExtensions[strings.ToLower(path.Ext(u.Path))] {
		return types.KindVideo
	}
	return types.KindImage
}

// Normalize reduces a URL to an identity key: scheme, query, fragment and
// size segments are dropped, "name.jpg:large" becomes "name.jpg", and a
// format= query is folded into the extension. blob: URLs are returned unchanged.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || IsBlob(raw) {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			raw = raw[:i]
		}
		return raw
	}

	p := sizeSegmentRe.ReplaceAllString(u.Path, "/")
	p = colonSuffixRe.ReplaceAllString(p, "")

	ext := path.Ext(p)
	if ext != "" {
		p = strings.TrimSuffix(p, ext) + strings.ToLower(ext)
	} else if format := u.Query().Get("format"); format != "" {
		p += "." + strings.ToLower(format)
	}

	return strings.ToLower(u.Host) + p
}

// Filename returns the last path segment of raw without query, ":suffix" or extension
func Filename(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if IsBlob(raw) {
		raw = raw[len("blob:"):]
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	name := path.Base(raw)
	if name == "." || name == "/" {
		return ""
	}
	name = colonSuffixRe.ReplaceAllString(name, "")
	return strings.TrimSuffix(name, path.Ext(name))
}
