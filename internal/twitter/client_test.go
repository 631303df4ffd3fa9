package twitter

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xmedia/internal/twitter/twittertest"
	"github.com/ibeckermayer/xmedia/internal/types"
)

type countingCookies struct {
	values map[string]string
	reads  map[string]int
}

func newCookies(values map[string]string) *countingCookies {
	return &countingCookies{values: values, reads: map[string]int{}}
}

func (c *countingCookies) Cookie(name string) string {
	c.reads[name]++
	return c.values[name]
}

func newTestClient(srv *twittertest.Server, cookies CookieSource) *Client {
	return NewClient(cookies,
		WithHost(srv.URL),
		WithGuestHost(srv.URL),
		WithMaxRetries(2),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func threePhotos() twittertest.Tweet {
	return twittertest.NewTweet("100", "jack",
		twittertest.Photo("1", "https://pbs.twimg.com/media/A.jpg", 1200, 800),
		twittertest.Photo("2", "https://pbs.twimg.com/media/B.png", 0, 0),
		twittertest.Photo("3", "https://pbs.twimg.com/media/C?format=webp&name=small", 0, 0),
	)
}

func TestGetMediaForPostPhotos(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetTweet("100", threePhotos())

	c := newTestClient(srv, newCookies(map[string]string{"ct0": "csrf-1", "gt": "guest-9"}))
	media, err := c.GetMediaForPost(context.Background(), "100")
	require.NoError(t, err)
	require.Len(t, media, 3)

	assert.Equal(t, "https://pbs.twimg.com/media/A?format=jpg&name=orig", media[0].DownloadURL)
	assert.Equal(t, "https://pbs.twimg.com/media/B?format=png&name=orig", media[1].DownloadURL)
	assert.Equal(t, "https://pbs.twimg.com/media/C?format=webp&name=orig", media[2].DownloadURL)
	assert.Equal(t, "https://pbs.twimg.com/media/B.png", media[1].PreviewURL)

	for i, m := range media {
		assert.Equal(t, i, m.Index)
		assert.Equal(t, i, m.TypeIndex)
		assert.Equal(t, "100", m.PostID)
		assert.Equal(t, "jack", m.ScreenName)
		assert.Equal(t, types.KindImage, m.Kind)
		assert.False(t, m.Quoted)
	}
	assert.Equal(t, 1200, media[0].Width)
	assert.Equal(t, 800, media[0].Height)

	h := srv.LastHeaders()
	assert.Equal(t, "Bearer "+DefaultBearerToken, h.Get("authorization"))
	assert.Equal(t, "csrf-1", h.Get("x-csrf-token"))
	assert.Equal(t, "guest-9", h.Get("x-guest-token"))
	assert.Equal(t, "en", h.Get("x-twitter-client-language"))
	assert.Equal(t, "yes", h.Get("x-twitter-active-user"))
	assert.Empty(t, h.Get("x-twitter-auth-type"))
	assert.Zero(t, srv.GuestHits())
}

func TestAuthenticatedSessionHeaders(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetTweet("100", threePhotos())

	c := newTestClient(srv, newCookies(map[string]string{"ct0": "csrf-1", "gt": "guest-9", "auth_token": "tok"}))
	_, err := c.GetMediaForPost(context.Background(), "100")
	require.NoError(t, err)

	h := srv.LastHeaders()
	assert.Equal(t, "OAuth2Session", h.Get("x-twitter-auth-type"))
	assert.Empty(t, h.Get("x-guest-token"))
}

func TestQuotedMediaPrepended(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()

	quoted := twittertest.NewTweet("50", "alice",
		twittertest.Photo("q1", "https://pbs.twimg.com/media/Q1.jpg", 100, 100),
		twittertest.Photo("q2", "https://pbs.twimg.com/media/Q2.jpg", 100, 100),
	)
	outer := twittertest.NewTweet("200", "bob",
		twittertest.Video("v1", "https://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/T.jpg", []int{16, 9},
			twittertest.Variant{ContentType: "application/x-mpegURL", URL: "https://video.twimg.com/x.m3u8"},
			twittertest.Variant{Bitrate: 832000, ContentType: "video/mp4", URL: "https://video.twimg.com/ext_tw_video/1/pu/vid/avc1/640x360/low.mp4"},
			twittertest.Variant{Bitrate: 2176000, ContentType: "video/mp4", URL: "https://video.twimg.com/ext_tw_video/1/pu/vid/avc1/1280x720/high.mp4?tag=12"},
		),
	).Quoting(quoted)
	srv.SetTweet("200", outer)

	c := newTestClient(srv, newCookies(map[string]string{"ct0": "c", "gt": "g"}))
	media, err := c.GetMediaForPost(context.Background(), "200")
	require.NoError(t, err)
	require.Len(t, media, 3)

	assert.True(t, media[0].Quoted)
	assert.True(t, media[1].Quoted)
	assert.Equal(t, "50", media[0].PostID)
	assert.Equal(t, "alice", media[1].ScreenName)
	assert.Equal(t, 0, media[0].Index)
	assert.Equal(t, 1, media[1].Index)

	v := media[2]
	assert.False(t, v.Quoted)
	assert.Equal(t, 2, v.Index)
	assert.Equal(t, 0, v.TypeIndex)
	assert.Equal(t, types.KindVideo, v.Kind)
	assert.Equal(t, "https://video.twimg.com/ext_tw_video/1/pu/vid/avc1/1280x720/high.mp4?tag=12", v.DownloadURL)
	assert.Equal(t, 1280, v.Width)
	assert.Equal(t, 720, v.Height)
	assert.Equal(t, []int{16, 9}, v.AspectRatio)
}

func TestAspectRatioHintAsLastResort(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetTweet("300", twittertest.NewTweet("300", "gif",
		twittertest.Video("g1", "https://pbs.twimg.com/tweet_video_thumb/G.jpg", []int{4, 3},
			twittertest.Variant{ContentType: "video/mp4", URL: "https://video.twimg.com/tweet_video/G.mp4"},
		),
	))

	c := newTestClient(srv, newCookies(map[string]string{"gt": "g"}))
	media, err := c.GetMediaForPost(context.Background(), "300")
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "https://video.twimg.com/tweet_video/G.mp4", media[0].DownloadURL)
	assert.Equal(t, 4, media[0].Width)
	assert.Equal(t, 3, media[0].Height)
}

func TestUnresolvableMediaDropped(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetTweet("400", twittertest.NewTweet("400", "x",
		twittertest.Video("v", "https://pbs.twimg.com/ext_tw_video_thumb/2/pu/img/T.jpg", nil,
			twittertest.Variant{ContentType: "application/x-mpegURL", URL: "https://video.twimg.com/only.m3u8"},
		),
		twittertest.Photo("p", "https://pbs.twimg.com/media/P.jpg", 0, 0),
	))

	c := newTestClient(srv, newCookies(map[string]string{"gt": "g"}))
	media, err := c.GetMediaForPost(context.Background(), "400")
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, types.KindImage, media[0].Kind)
	assert.Equal(t, 0, media[0].Index)
}

func TestLegacyBackfillAndVisibilityWrapper(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()

	tw := twittertest.NewTweet("500", "ignored",
		twittertest.Photo("1", "https://pbs.twimg.com/media/W.jpg", 0, 0),
	)
	// newer payloads carry the handle under core instead of legacy
	tw["core"] = map[string]any{"user_results": map[string]any{"result": map[string]any{
		"core": map[string]any{"screen_name": "carol", "name": "Carol"},
	}}}
	tw["note_tweet"] = map[string]any{"note_tweet_results": map[string]any{"result": map[string]any{"text": "long text"}}}
	srv.SetTweet("500", tw.WithVisibility())

	c := newTestClient(srv, newCookies(map[string]string{"gt": "g"}))
	media, err := c.GetMediaForPost(context.Background(), "500")
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "carol", media[0].ScreenName)
	assert.Equal(t, "500", media[0].PostID)
	assert.Equal(t, "long text", media[0].Text)
}

func TestMalformedPayloadYieldsEmpty(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetPayload("1", []byte(`{"data":{}}`))
	srv.SetPayload("2", []byte(`this is not json`))
	srv.SetPayload("3", []byte(`{"data":{"tweetResult":{"result":{"__typename":"Tweet","legacy":{}}}}}`))

	c := newTestClient(srv, newCookies(map[string]string{"gt": "g"}))
	for _, id := range []string{"1", "2", "3"} {
		media, err := c.GetMediaForPost(context.Background(), id)
		require.NoError(t, err, id)
		assert.NotNil(t, media, id)
		assert.Empty(t, media, id)
	}
}

func TestTransportFailurePropagates(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetStatus("403", http.StatusForbidden)
	srv.SetStatus("503", http.StatusServiceUnavailable)

	c := newTestClient(srv, newCookies(map[string]string{"gt": "g"}))

	_, err := c.GetMediaForPost(context.Background(), "403")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusForbidden, serr.StatusCode)
	assert.Equal(t, 1, srv.Hits("403"), "4xx is not retried")

	_, err = c.GetMediaForPost(context.Background(), "503")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, 3, srv.Hits("503"), "5xx is retried")

	// failures are never cached
	_, err = c.GetMediaForPost(context.Background(), "403")
	require.Error(t, err)
	assert.Equal(t, 2, srv.Hits("403"))
}

func TestNetworkFailurePropagates(t *testing.T) {
	srv := twittertest.NewServer()
	srv.Close()

	c := newTestClient(srv, newCookies(map[string]string{"gt": "g"}))
	_, err := c.GetMediaForPost(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestRepeatedRequestServedFromCache(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetTweet("100", threePhotos())

	c := newTestClient(srv, newCookies(map[string]string{"gt": "g"}))
	first, err := c.GetMediaForPost(context.Background(), "100")
	require.NoError(t, err)
	second, err := c.GetMediaForPost(context.Background(), "100")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, srv.Hits("100"))
}

func TestCredentialsMemoized(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetTweet("1", twittertest.NewTweet("1", "a"))
	srv.SetTweet("2", twittertest.NewTweet("2", "a"))

	cookies := newCookies(map[string]string{"ct0": "csrf", "gt": "g"})
	c := newTestClient(srv, cookies)

	_, err := c.GetMediaForPost(context.Background(), "1")
	require.NoError(t, err)
	_, err = c.GetMediaForPost(context.Background(), "2")
	require.NoError(t, err)

	assert.Equal(t, 1, cookies.reads["ct0"])
	assert.Equal(t, 1, cookies.reads["gt"])
	assert.Greater(t, cookies.reads["auth_token"], 1, "missing values are looked up again")
}

func TestGuestTokenActivation(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetTweet("1", twittertest.NewTweet("1", "a"))
	srv.SetTweet("2", twittertest.NewTweet("2", "a"))

	c := newTestClient(srv, nil)
	_, err := c.GetMediaForPost(context.Background(), "1")
	require.NoError(t, err)
	_, err = c.GetMediaForPost(context.Background(), "2")
	require.NoError(t, err)

	assert.Equal(t, 1, srv.GuestHits())
	assert.Equal(t, "guest-1", srv.LastHeaders().Get("x-guest-token"))
}

func TestResolveVideo(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetTweet("600", twittertest.NewTweet("600", "v",
		twittertest.Photo("p", "https://pbs.twimg.com/media/P.jpg", 0, 0),
		twittertest.Video("a", "https://pbs.twimg.com/ext_tw_video_thumb/A/pu/img/a.jpg", nil,
			twittertest.Variant{Bitrate: 1, ContentType: "video/mp4", URL: "https://video.twimg.com/a.mp4"}),
		twittertest.Video("b", "https://pbs.twimg.com/ext_tw_video_thumb/B/pu/img/b.jpg", nil,
			twittertest.Variant{Bitrate: 1, ContentType: "video/mp4", URL: "https://video.twimg.com/b.mp4"}),
	))
	srv.SetTweet("601", twittertest.NewTweet("601", "v",
		twittertest.Photo("p", "https://pbs.twimg.com/media/P.jpg", 0, 0)))

	c := newTestClient(srv, newCookies(map[string]string{"gt": "g"}))
	ctx := context.Background()

	m, err := c.ResolveVideo(ctx, "600", "https://pbs.twimg.com/ext_tw_video_thumb/B/pu/img/b?format=jpg&name=small")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "https://video.twimg.com/b.mp4", m.DownloadURL)

	m, err = c.ResolveVideo(ctx, "600", "https://pbs.twimg.com/unrelated.jpg")
	require.NoError(t, err)
	assert.Nil(t, m, "an unmatched thumbnail must not pick one of several videos")

	m, err = c.ResolveVideo(ctx, "601", "https://pbs.twimg.com/unrelated.jpg")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestResolveVideoSingleVideoFallback(t *testing.T) {
	srv := twittertest.NewServer()
	defer srv.Close()
	srv.SetTweet("602", twittertest.NewTweet("602", "v",
		twittertest.Photo("p", "https://pbs.twimg.com/media/P.jpg", 0, 0),
		twittertest.Video("a", "https://pbs.twimg.com/ext_tw_video_thumb/A/pu/img/a.jpg", nil,
			twittertest.Variant{Bitrate: 1, ContentType: "video/mp4", URL: "https://video.twimg.com/a.mp4"}),
	))

	c := newTestClient(srv, newCookies(map[string]string{"gt": "g"}))
	m, err := c.ResolveVideo(context.Background(), "602", "https://pbs.twimg.com/amplify_video_thumb/Z/img/z.jpg")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "https://video.twimg.com/a.mp4", m.DownloadURL)
}

func TestReferences(t *testing.T) {
	refs := References([]Media{
		{PostID: "9", ScreenName: "q", Kind: types.KindImage, DownloadURL: "d0", PreviewURL: "p0", MediaID: "m0", TypeIndex: 0, Quoted: true},
		{PostID: "10", ScreenName: "c", Kind: types.KindVideo, DownloadURL: "d1", PreviewURL: "p1", MediaID: "m1", TypeIndex: 0},
	})
	require.Len(t, refs, 2)
	assert.Equal(t, "9_api_0", refs[0].ID)
	assert.Equal(t, "10_api_1", refs[1].ID)
	assert.Equal(t, 1, refs[1].Ordinal)
	assert.Equal(t, 1, refs[1].DisplayIndex)
	assert.Equal(t, "d1", refs[1].SourceURL)
	assert.True(t, refs[0].Quoted)
}
