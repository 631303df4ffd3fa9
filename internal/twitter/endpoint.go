package twitter

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultHost      = "https://x.com"
	DefaultGuestHost = "https://api.x.com"
	DefaultQueryID   = "zAz9764BcLZOJ0JU2wrd1A"

	// DefaultBearerToken is the public web-client token embedded in x.com's bundle
	DefaultBearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"
)

type tweetVariables struct {
	TweetID                string `json:"tweetId"`
	WithCommunity          bool   `json:"withCommunity"`
	IncludePromotedContent bool   `json:"includePromotedContent"`
	WithVoice              bool   `json:"withVoice"`
}

type fieldToggles struct {
	WithArticleRichContentState bool `json:"withArticleRichContentState"`
	WithArticlePlainText        bool `json:"withArticlePlainText"`
	WithGrokAnalyze             bool `json:"withGrokAnalyze"`
	WithDisallowedReplyControls bool `json:"withDisallowedReplyControls"`
}

// features mirrors the flag set the web client sends with TweetResultByRestId.
// encoding/json sorts map keys, so the encoded query is stable across calls.
var features = map[string]bool{
	"creator_subscriptions_tweet_preview_api_enabled":                         true,
	"premium_content_api_read_enabled":                                        false,
	"communities_web_enable_tweet_community_results_fetch":                    true,
	"c9s_tweet_anatomy_moderator_badge_enabled":                               true,
	"responsive_web_grok_analyze_button_fetch_trends_enabled":                 false,
	"responsive_web_grok_analyze_post_followups_enabled":                      false,
	"responsive_web_jetfuel_frame":                                            false,
	"responsive_web_grok_share_attachment_enabled":                            true,
	"articles_preview_enabled":                                                true,
	"responsive_web_edit_tweet_api_enabled":                                   true,
	"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
	"view_counts_everywhere_api_enabled":                                      true,
	"longform_notetweets_consumption_enabled":                                 true,
	"responsive_web_twitter_article_tweet_consumption_enabled":                true,
	"tweet_awards_web_tipping_enabled":                                        false,
	"responsive_web_grok_show_grok_translated_post":                           false,
	"responsive_web_grok_analysis_button_from_backend":                        false,
	"creator_subscriptions_quote_tweet_preview_enabled":                       false,
	"freedom_of_speech_not_reach_fetch_enabled":                               true,
	"standardized_nudges_misinfo":                                             true,
	"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
	"longform_notetweets_rich_text_read_enabled":                              true,
	"longform_notetweets_inline_media_enabled":                                true,
	"payments_enabled":                                                        false,
	"profile_label_improvements_pcf_label_in_post_enabled":                    true,
	"rweb_tipjar_consumption_enabled":                                         true,
	"verified_phone_label_enabled":                                            false,
	"responsive_web_grok_image_annotation_enabled":                            true,
	"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
	"responsive_web_graphql_timeline_navigation_enabled":                      true,
	"responsive_web_enhance_cards_enabled":                                    false,
}

// tweetURL builds the TweetResultByRestId request URL for a post
func tweetURL(host, queryID, postID string) (string, error) {
	vars, err := json.Marshal(tweetVariables{TweetID: postID})
	if err != nil {
		return "", fmt.Errorf("failed to encode variables: %w", err)
	}
	feats, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("failed to encode features: %w", err)
	}
	toggles, err := json.Marshal(fieldToggles{WithArticleRichContentState: true})
	if err != nil {
		return "", fmt.Errorf("failed to encode field toggles: %w", err)
	}

	q := url.Values{}
	q.Set("variables", string(vars))
	q.Set("features", string(feats))
	q.Set("fieldToggles", string(toggles))

	return strings.TrimRight(host, "/") + "/i/api/graphql/" + queryID + "/TweetResultByRestId?" + q.Encode(), nil
}

func guestActivateURL(host string) string {
	return strings.TrimRight(host, "/") + "/1.1/guest/activate.json"
}
