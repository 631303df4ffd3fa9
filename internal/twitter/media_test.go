package twitter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginalPhotoURL(t *testing.T) {
	cases := map[string]string{
		"https://pbs.twimg.com/media/A.jpg":                     "https://pbs.twimg.com/media/A?format=jpg&name=orig",
		"https://pbs.twimg.com/media/A.PNG":                     "https://pbs.twimg.com/media/A?format=png&name=orig",
		"https://pbs.twimg.com/media/A?format=jpg&name=900x900": "https://pbs.twimg.com/media/A?format=jpg&name=orig",
		"https://pbs.twimg.com/media/A":                         "https://pbs.twimg.com/media/A?name=orig",
		"":                                                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, originalPhotoURL(in), in)
	}

	assert.Equal(t, "https://example.com/a.jpg", OriginalPhotoURL("https://example.com/a.jpg"))
	assert.Equal(t, "https://pbs.twimg.com/media/Z?format=jpg&name=orig", OriginalPhotoURL("https://pbs.twimg.com/media/Z.jpg"))
}

func TestDimensionsFromURL(t *testing.T) {
	w, h, ok := DimensionsFromURL("https://video.twimg.com/amplify_video/1/vid/avc1/720x1280/x.mp4")
	require.True(t, ok)
	assert.Equal(t, 720, w)
	assert.Equal(t, 1280, h)

	_, _, ok = DimensionsFromURL("https://video.twimg.com/tweet_video/x.mp4")
	assert.False(t, ok)
}

func TestDimensionDecoding(t *testing.T) {
	var info struct {
		A dimension `json:"a"`
		B dimension `json:"b"`
		C dimension `json:"c"`
		D dimension `json:"d"`
		E dimension `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":640,"b":"480","c":12.6,"d":-3,"e":"wide"}`), &info))
	assert.Equal(t, dimension(640), info.A)
	assert.Equal(t, dimension(480), info.B)
	assert.Equal(t, dimension(13), info.C)
	assert.Zero(t, info.D)
	assert.Zero(t, info.E)
}

func TestTweetURLIsStable(t *testing.T) {
	a, err := tweetURL("https://x.com/", DefaultQueryID, "123")
	require.NoError(t, err)
	b, err := tweetURL("https://x.com", DefaultQueryID, "123")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "https://x.com/i/api/graphql/"+DefaultQueryID+"/TweetResultByRestId?")
	assert.Contains(t, a, "fieldToggles=")
	assert.Contains(t, a, "features=")
	assert.Contains(t, a, "%22tweetId%22%3A%22123%22")
}
