// Package twittertest provides a fake TweetResultByRestId server and payload
// builders for tests.
package twittertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Entity is one media entity in a payload
type Entity map[string]any

// Photo builds a photo entity. Zero dimensions omit original_info.
func Photo(id, mediaURL string, width, height int) Entity {
	e := Entity{
		"type":            "photo",
		"id_str":          id,
		"media_key":       "3_" + id,
		"media_url_https": mediaURL,
		"expanded_url":    "https://x.com/i/status/photo/1",
	}
	if width > 0 && height > 0 {
		e["original_info"] = map[string]any{"width": width, "height": height}
	}
	return e
}

// Variant is one video rendition
type Variant struct {
	Bitrate     int    `json:"bitrate,omitempty"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// Video builds a video entity whose preview is thumbURL
func Video(id, thumbURL string, aspect []int, variants ...Variant) Entity {
	info := map[string]any{"variants": variants}
	if aspect != nil {
		info["aspect_ratio"] = aspect
	}
	return Entity{
		"type":            "video",
		"id_str":          id,
		"media_key":       "7_" + id,
		"media_url_https": thumbURL,
		"video_info":      info,
	}
}

// Tweet is a tweet result payload under construction
type Tweet map[string]any

// NewTweet builds a tweet whose fields live under legacy, as the API sends them
func NewTweet(id, screenName string, media ...Entity) Tweet {
	if media == nil {
		media = []Entity{}
	}
	return Tweet{
		"__typename": "Tweet",
		"rest_id":    id,
		"core": map[string]any{
			"user_results": map[string]any{
				"result": map[string]any{
					"legacy": map[string]any{"screen_name": screenName, "name": screenName},
				},
			},
		},
		"legacy": map[string]any{
			"id_str":            id,
			"full_text":         "post " + id,
			"extended_entities": map[string]any{"media": media},
		},
	}
}

// Quoting attaches q as the quoted post
func (t Tweet) Quoting(q Tweet) Tweet {
	t["quoted_status_result"] = map[string]any{"result": q}
	return t
}

// WithVisibility wraps t the way restricted posts are returned
func (t Tweet) WithVisibility() Tweet {
	return Tweet{"__typename": "TweetWithVisibilityResults", "tweet": t}
}

// Payload renders the full response document for t
func (t Tweet) Payload() []byte {
	b, _ := json.Marshal(map[string]any{
		"data": map[string]any{"tweetResult": map[string]any{"result": t}},
	})
	return b
}

// Server is a fake X API
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	payloads    map[string][]byte
	statuses    map[string]int
	hits        map[string]int
	guestHits   int
	lastHeaders http.Header
}

// NewServer starts a fake API. Close it when done.
func NewServer() *Server {
	s := &Server{
		payloads: make(map[string][]byte),
		statuses: make(map[string]int),
		hits:     make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// SetPayload serves body for postID
func (s *Server) SetPayload(postID string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[postID] = body
}

// SetTweet serves t for postID
func (s *Server) SetTweet(postID string, t Tweet) {
	s.SetPayload(postID, t.Payload())
}

// SetStatus makes requests for postID fail with code
func (s *Server) SetStatus(postID string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[postID] = code
}

// Hits returns how many GraphQL requests were made for postID
func (s *Server) Hits(postID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[postID]
}

// GuestHits returns how many guest activations were made
func (s *Server) GuestHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guestHits
}

// LastHeaders returns the headers of the most recent GraphQL request
func (s *Server) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeaders.Clone()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.HasSuffix(r.URL.Path, "/guest/activate.json") {
		s.guestHits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"guest_token":"guest-1"}`))
		return
	}

	if !strings.HasSuffix(r.URL.Path, "/TweetResultByRestId") {
		http.NotFound(w, r)
		return
	}

	var vars struct {
		TweetID string `json:"tweetId"`
	}
	_ = json.Unmarshal([]byte(r.URL.Query().Get("variables")), &vars)

	s.hits[vars.TweetID]++
	s.lastHeaders = r.Header.Clone()

	if code, ok := s.statuses[vars.TweetID]; ok {
		http.Error(w, "failure", code)
		return
	}
	body, ok := s.payloads[vars.TweetID]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
