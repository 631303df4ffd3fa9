package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionCookies(expires time.Time) []*network.Cookie {
	return []*network.Cookie{
		{Name: "auth_token", Value: "tok", Domain: ".x.com", Expires: float64(expires.Unix())},
		{Name: "ct0", Value: "csrf", Domain: ".x.com", Expires: float64(expires.Unix())},
		{Name: "gt", Value: "guest", Domain: "x.com"},
		{Name: "other", Value: "nope", Domain: ".example.com"},
	}
}

func TestCookieStoreRoundTrip(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "nested", "cookies.json"))
	require.NoError(t, cs.Save(sessionCookies(time.Now().Add(time.Hour))))

	assert.True(t, cs.IsValid())
	assert.Equal(t, "csrf", cs.Cookie("ct0"))
	assert.Equal(t, "guest", cs.Cookie("gt"))
	assert.Empty(t, cs.Cookie("other"), "non-x.com cookies are filtered")

	xc, err := cs.GetXCookies()
	require.NoError(t, err)
	assert.Len(t, xc, 3)

	require.NoError(t, cs.Clear())
	assert.False(t, cs.IsValid())
	assert.Empty(t, cs.Cookie("ct0"))
	assert.NoError(t, cs.Clear(), "clearing twice is fine")
}

func TestCookieStoreExpired(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, cs.Save(sessionCookies(time.Now().Add(-time.Hour))))
	assert.False(t, cs.IsValid())
}

func TestCookieStoreRequiresSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	data, err := json.Marshal(StoredCookies{Cookies: []*network.Cookie{{Name: "gt", Value: "g", Domain: ".x.com"}}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	assert.False(t, NewCookieStore(path).IsValid())
}

func TestChain(t *testing.T) {
	live := StaticCookies{{Name: "ct0", Value: "live"}}
	stored := StaticCookies{{Name: "ct0", Value: "stored"}, {Name: "gt", Value: "g"}}

	ch := Chain{live, nil, stored}
	assert.Equal(t, "live", ch.Cookie("ct0"))
	assert.Equal(t, "g", ch.Cookie("gt"))
	assert.Empty(t, ch.Cookie("auth_token"))
}

func TestCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	store := NewCookieStore(path)
	require.NoError(t, store.Save(sessionCookies(time.Now().Add(time.Hour))))

	captured := []*network.Cookie{
		{Name: "ct0", Value: "captured", Domain: ".x.com"},
		{Name: "gt", Value: "elsewhere", Domain: "example.com"},
	}
	creds := Credentials(store, captured)
	assert.Equal(t, "captured", creds.Cookie("ct0"))
	assert.NotEmpty(t, creds.Cookie("auth_token"))
	assert.Equal(t, "guest", creds.Cookie("gt"), "non-x.com captured cookies are ignored")

	assert.Empty(t, Credentials(nil, nil).Cookie("ct0"))
}
