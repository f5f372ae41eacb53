package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type tokenServer struct {
	*httptest.Server
	grants atomic.Int32
	forms  chan url.Values
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()

	ts := &tokenServer{forms: make(chan url.Values, 10)}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ts.forms <- r.PostForm
		n := ts.grants.Add(1)

		if r.PostForm.Get("code") == "bad" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-" + string(rune('0'+n)),
			"refresh_token": "refresh",
			"token_type":    "bearer",
			"expires_in":    3600,
			"scope":         "public read_user",
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestManager(t *testing.T) (*Manager, *tokenServer, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ts := newTokenServer(t)
	m, err := NewManager(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8765/callback",
		AuthURL:      ts.URL + "/oauth/authorize",
		TokenURL:     ts.URL + "/oauth/token",
	}, rdb, zerolog.Nop())
	require.NoError(t, err)
	return m, ts, mr
}

func TestNewManager_Validation(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	_, err := NewManager(Config{ClientID: "id"}, rdb, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewManager(Config{ClientID: "id", ClientSecret: "s"}, rdb, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewManager(Config{ClientID: "id", ClientSecret: "s", RedirectURL: "http://x"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestAuthCodeURL(t *testing.T) {
	m, ts, mr := newTestManager(t)

	authURL, state, err := m.AuthCodeURL(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/oauth/authorize", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, "public read_user write_likes read_collections write_collections", q.Get("scope"))

	assert.True(t, mr.Exists(stateKeyPrefix+state))
	assert.InDelta(t, StateTTL.Seconds(), mr.TTL(stateKeyPrefix+state).Seconds(), 1)
}

func TestExchange(t *testing.T) {
	m, ts, _ := newTestManager(t)
	ctx := context.Background()

	_, state, err := m.AuthCodeURL(ctx)
	require.NoError(t, err)

	tok, err := m.Exchange(ctx, state, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)

	form := <-ts.forms
	assert.Equal(t, "good-code", form.Get("code"))
	assert.Equal(t, "client", form.Get("client_id"))
	assert.Equal(t, "secret", form.Get("client_secret"))

	loggedIn, err := m.LoggedIn(ctx)
	require.NoError(t, err)
	assert.True(t, loggedIn)

	// state is single use
	_, err = m.Exchange(ctx, state, "good-code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExchange_InvalidState(t *testing.T) {
	m, ts, mr := newTestManager(t)
	ctx := context.Background()

	_, err := m.Exchange(ctx, "not-a-uuid", "code")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, state, err := m.AuthCodeURL(ctx)
	require.NoError(t, err)
	mr.FastForward(StateTTL + time.Second)

	_, err = m.Exchange(ctx, state, "code")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Zero(t, ts.grants.Load())
}

func TestExchange_ProviderRejects(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, state, err := m.AuthCodeURL(ctx)
	require.NoError(t, err)

	_, err = m.Exchange(ctx, state, "bad")
	assert.Error(t, err)

	loggedIn, err := m.LoggedIn(ctx)
	require.NoError(t, err)
	assert.False(t, loggedIn)
}

func TestTokenSource_PersistsRefresh(t *testing.T) {
	m, ts, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.store.Save(ctx, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	src, err := m.TokenSource(ctx)
	require.NoError(t, err)

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)

	form := <-ts.forms
	assert.Equal(t, "refresh_token", form.Get("grant_type"))

	stored, err := m.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken)
}

func TestTokenSource_ValidTokenNoRefresh(t *testing.T) {
	m, ts, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.store.Save(ctx, &oauth2.Token{AccessToken: "fresh", TokenType: "bearer"}))

	src, err := m.TokenSource(ctx)
	require.NoError(t, err)

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Zero(t, ts.grants.Load())
}

func TestLogout(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.store.Save(ctx, &oauth2.Token{AccessToken: "tok"}))
	require.NoError(t, m.Logout(ctx))

	_, err := m.TokenSource(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestScope(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Scope(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	alice := &oauth2.Token{AccessToken: "a-1", RefreshToken: "alice-refresh"}
	require.NoError(t, m.store.Save(ctx, alice))
	aliceScope, err := m.Scope(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScopeOf(alice), aliceScope)
	assert.Regexp(t, `^user-[0-9a-f]{16}$`, aliceScope)

	// a refreshed access token keeps the scope
	require.NoError(t, m.store.Save(ctx, &oauth2.Token{AccessToken: "a-2", RefreshToken: "alice-refresh"}))
	refreshed, err := m.Scope(ctx)
	require.NoError(t, err)
	assert.Equal(t, aliceScope, refreshed)

	// another account gets its own scope
	require.NoError(t, m.store.Save(ctx, &oauth2.Token{AccessToken: "b-1", RefreshToken: "bob-refresh"}))
	bobScope, err := m.Scope(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, aliceScope, bobScope)
}

func TestScopeOf_AccessTokenOnly(t *testing.T) {
	assert.NotEqual(t,
		ScopeOf(&oauth2.Token{AccessToken: "one"}),
		ScopeOf(&oauth2.Token{AccessToken: "two"}))
}
