package twitter

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// tweetResultResponse is the envelope of TweetResultByRestId
type tweetResultResponse struct {
	Data struct {
		TweetResult struct {
			Result *tweetResult `json:"result"`
		} `json:"tweetResult"`
	} `json:"data"`
}

type tweetResult struct {
	Typename string       `json:"__typename"`
	Tweet    *tweetResult `json:"tweet"` // TweetWithVisibilityResults wrapper
	RestID   string       `json:"rest_id"`

	Core *struct {
		UserResults struct {
			Result *userResult `json:"result"`
		} `json:"user_results"`
	} `json:"core"`

	Legacy    *tweetLegacy `json:"legacy"`
	NoteTweet *struct {
		NoteTweetResults struct {
			Result struct {
				Text string `json:"text"`
			} `json:"result"`
		} `json:"note_tweet_results"`
	} `json:"note_tweet"`

	QuotedStatusResult *struct {
		Result *tweetResult `json:"result"`
	} `json:"quoted_status_result"`

	// Top-level copies, back-filled from Legacy by normalize
	ExtendedEntities *extendedEntities `json:"extended_entities"`
	FullText         string            `json:"full_text"`
	IDStr            string            `json:"id_str"`
}

type tweetLegacy struct {
	ExtendedEntities *extendedEntities `json:"extended_entities"`
	FullText         string            `json:"full_text"`
	IDStr            string            `json:"id_str"`
	ConversationID   string            `json:"conversation_id_str"`
}

type userResult struct {
	RestID string      `json:"rest_id"`
	Legacy *userLegacy `json:"legacy"`
	Core   *userLegacy `json:"core"`

	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

type userLegacy struct {
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

type extendedEntities struct {
	Media []mediaEntity `json:"media"`
}

type mediaEntity struct {
	Type          string `json:"type"`
	IDStr         string `json:"id_str"`
	MediaKey      string `json:"media_key"`
	MediaURLHTTPS string `json:"media_url_https"`
	ExpandedURL   string `json:"expanded_url"`
	DisplayURL    string `json:"display_url"`
	URL           string `json:"url"`

	OriginalInfo *struct {
		Width  dimension `json:"width"`
		Height dimension `json:"height"`
	} `json:"original_info"`

	VideoInfo *struct {
		AspectRatio []dimension    `json:"aspect_ratio"`
		Variants    []videoVariant `json:"variants"`
	} `json:"video_info"`
}

type videoVariant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// dimension accepts a JSON number or a numeric string and keeps the rounded
// value when it is positive. Anything else decodes to zero.
type dimension int

func (d *dimension) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*d = 0
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*d = 0
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		*d = 0
		return nil
	}
	*d = dimension(math.Round(f))
	return nil
}

// unwrap returns the tweet inside a visibility wrapper, if any
func (t *tweetResult) unwrap() *tweetResult {
	if t != nil && t.Tweet != nil {
		return t.Tweet
	}
	return t
}

// normalize back-fills top-level fields from the legacy wrapper for the
// tweet and its author
func (t *tweetResult) normalize() {
	if t == nil {
		return
	}
	if l := t.Legacy; l != nil {
		if t.ExtendedEntities == nil {
			t.ExtendedEntities = l.ExtendedEntities
		}
		if t.FullText == "" {
			t.FullText = l.FullText
		}
		if t.IDStr == "" {
			t.IDStr = l.IDStr
		}
	}
	if t.NoteTweet != nil {
		if text := t.NoteTweet.NoteTweetResults.Result.Text; text != "" {
			t.FullText = text
		}
	}
	if t.IDStr == "" {
		t.IDStr = t.RestID
	}
	if u := t.user(); u != nil {
		u.normalize()
	}
}

func (t *tweetResult) user() *userResult {
	if t == nil || t.Core == nil {
		return nil
	}
	return t.Core.UserResults.Result
}

func (t *tweetResult) quoted() *tweetResult {
	if t == nil || t.QuotedStatusResult == nil {
		return nil
	}
	return t.QuotedStatusResult.Result.unwrap()
}

func (t *tweetResult) screenName() string {
	if u := t.user(); u != nil {
		return u.ScreenName
	}
	return ""
}

func (u *userResult) normalize() {
	for _, src := range []*userLegacy{u.Legacy, u.Core} {
		if src == nil {
			continue
		}
		if u.ScreenName == "" {
			u.ScreenName = src.ScreenName
		}
		if u.Name == "" {
			u.Name = src.Name
		}
	}
}
