package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/plashr/plashr/internal/testutil"
	"github.com/plashr/plashr/pkg/client"
	"github.com/plashr/plashr/pkg/message"
	"github.com/plashr/plashr/pkg/pagination"
	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	mock  *testutil.MockAPI
	redis *miniredis.Miniredis
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	mock := testutil.NewMockAPI(t)
	_, mr := testutil.NewRedis(t)

	t.Chdir(t.TempDir())
	t.Setenv("PLASHR_API_BASE_URL", mock.URL())
	t.Setenv("PLASHR_API_ACCESS_KEY", "test-access-key")
	t.Setenv("PLASHR_API_PAGE_SIZE", "10")
	t.Setenv("PLASHR_REDIS_ADDR", mr.Addr())
	t.Setenv("PLASHR_LOG_LEVEL", "disabled")

	return &cliEnv{mock: mock, redis: mr}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd, s := newRootCmd()
	defer s.close()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--"+NoSpinnerFlag))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestFeed_FirstPage(t *testing.T) {
	env := newCLIEnv(t)
	env.mock.SetPagedList("/photos", 25, nil)

	out, errOut, err := env.run(t, "feed")
	require.NoError(t, err, errOut)

	assert.Contains(t, out, "item-10")
	assert.NotContains(t, out, "item-11")
	assert.Contains(t, errOut, "more: --page 2")
}

func TestFeed_AllPages(t *testing.T) {
	env := newCLIEnv(t)
	env.mock.SetPagedList("/photos", 25, nil)

	out, errOut, err := env.run(t, "feed", "--pages", "0")
	require.NoError(t, err, errOut)

	assert.Contains(t, out, "item-25")
	assert.NotContains(t, errOut, "more:")
	assert.Equal(t, 3, env.mock.GetRequestCount())
}

func TestFeed_StartPageAndJSON(t *testing.T) {
	env := newCLIEnv(t)
	env.mock.SetPagedList("/photos", 25, nil)

	out, _, err := env.run(t, "feed", "--page", "3", "--format", "json")
	require.NoError(t, err)

	var photos []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &photos))
	require.Len(t, photos, 5)
	assert.Equal(t, "item-21", photos[0].ID)

	reqs := env.mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "3", reqs[0].Query.Get("page"))
	assert.Equal(t, "10", reqs[0].Query.Get("per_page"))
}

func TestFeed_InvalidOrder(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "feed", "--order", "random")
	require.Error(t, err)

	assert.Contains(t, describe(message.NewPrinter("en"), err), "Invalid")
	assert.Zero(t, env.mock.GetRequestCount())
}

func TestFeed_InvalidPageFlags(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "feed", "--per-page", "50")
	assert.Error(t, err)

	_, _, err = env.run(t, "feed", "--page", "0")
	assert.Error(t, err)
}

func TestFeed_ServerError(t *testing.T) {
	env := newCLIEnv(t)
	env.mock.SetResponse("/photos", testutil.MockResponse{StatusCode: http.StatusServiceUnavailable})

	_, _, err := env.run(t, "feed")
	require.Error(t, err)

	assert.Equal(t, pagination.KindHTTPStatus, pagination.KindOf(err))
	assert.Equal(t, "The photo service is having trouble (HTTP 503).", describe(message.NewPrinter("en"), err))
}

func TestTopic_MultipleSlugs(t *testing.T) {
	env := newCLIEnv(t)
	env.mock.SetPagedList("/topics/nature/photos", 5, nil)

	out, errOut, err := env.run(t, "topic", "nature", "missing")
	require.NoError(t, err)

	assert.Contains(t, out, "== nature: 5 photos")
	assert.Contains(t, out, "== missing: no photos")
	assert.Contains(t, errOut, "missing: Nothing was found here.")
}

func TestTopic_RepeatedSlugLoadedOnce(t *testing.T) {
	env := newCLIEnv(t)
	env.mock.SetPagedList("/topics/nature/photos", 5, nil)
	env.mock.SetPagedList("/topics/film/photos", 3, nil)

	out, _, err := env.run(t, "topic", "nature", "film", "nature", "--format", "json")
	require.NoError(t, err)

	var byTopic map[string][]struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &byTopic), out)
	assert.Len(t, byTopic, 2)
	assert.Len(t, byTopic["nature"], 5)
	assert.Len(t, byTopic["film"], 3)

	natureLoads := 0
	for _, r := range env.mock.Requests() {
		if r.Path == "/topics/nature/photos" {
			natureLoads++
		}
	}
	assert.Equal(t, 1, natureLoads)
}

func TestUniqueSlugs(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, uniqueSlugs([]string{"b", "a", "b", "c", "a"}))
	assert.Equal(t, []string{"a"}, uniqueSlugs([]string{"a"}))
}

func TestTopic_AllFail(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "topic", "a", "b")
	assert.Error(t, err)
}

func TestSearchPhotos(t *testing.T) {
	env := newCLIEnv(t)
	env.mock.SetPagedList("/search/photos", 3, testutil.SearchEnvelope(10))

	out, _, err := env.run(t, "search", "photos", "snowy", "mountains", "--color", "blue")
	require.NoError(t, err)

	assert.Contains(t, out, "item-3")
	reqs := env.mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "snowy mountains", reqs[0].Query.Get("query"))
	assert.Equal(t, "blue", reqs[0].Query.Get("color"))
}

func TestPhoto(t *testing.T) {
	env := newCLIEnv(t)
	env.mock.SetJSON("/photos/item-1", http.StatusOK, testutil.Record(1))

	out, _, err := env.run(t, "photo", "item-1")
	require.NoError(t, err)

	assert.Contains(t, out, "item-1")
	assert.Contains(t, out, "4000x3000")
}

func TestLike(t *testing.T) {
	env := newCLIEnv(t)
	rec := testutil.Record(7)
	rec["likes"] = 1234
	env.mock.SetJSON("POST /photos/item-7/like", http.StatusCreated, map[string]any{"photo": rec})

	out, _, err := env.run(t, "like", "item-7")
	require.NoError(t, err)

	assert.Equal(t, "liked item-7 (1,234 likes)\n", out)
}

func TestDownload(t *testing.T) {
	env := newCLIEnv(t)
	rec := testutil.Record(1)
	rec["urls"] = map[string]string{"small": env.mock.URL() + "/img/item-1"}
	env.mock.SetJSON("/photos/item-1", http.StatusOK, rec)
	env.mock.SetJSON("/photos/item-1/download", http.StatusOK, map[string]string{"url": env.mock.URL() + "/img/item-1"})
	env.mock.SetResponse("/img/item-1", testutil.MockResponse{StatusCode: http.StatusOK, Body: "jpeg-bytes"})

	dir := filepath.Join(t.TempDir(), "out")
	out, errOut, err := env.run(t, "download", "item-1", "--quality", "small", "--dir", dir)
	require.NoError(t, err, errOut)

	data, err := os.ReadFile(filepath.Join(dir, "item-1-small.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Contains(t, out, "Saved")
}

func TestSettings(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "settings", "set", "locale", "de")
	require.NoError(t, err)

	out, _, err := env.run(t, "settings", "get", "locale")
	require.NoError(t, err)
	assert.Equal(t, "de\n", out)

	_, _, err = env.run(t, "settings", "set", "theme", "neon")
	assert.Error(t, err)

	_, _, err = env.run(t, "settings", "set", "volume", "11")
	assert.Error(t, err)

	out, _, err = env.run(t, "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "download_quality")

	_, _, err = env.run(t, "settings", "reset")
	require.NoError(t, err)
	out, _, err = env.run(t, "settings", "get", "locale")
	require.NoError(t, err)
	assert.Equal(t, "en\n", out)
}

func TestLocalizedFailure(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "settings", "set", "locale", "de")
	require.NoError(t, err)

	cmd, s := newRootCmd()
	defer s.close()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"photo", "nope", "--" + NoSpinnerFlag})

	err = cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Hier wurde nichts gefunden.", describe(s.messages(), err))
}

func TestLogout(t *testing.T) {
	env := newCLIEnv(t)
	env.redis.Set("plashr:oauth:token", `{"access_token":"abc"}`)

	out, _, err := env.run(t, "logout")
	require.NoError(t, err)

	assert.Equal(t, "Signed out.\n", out)
	assert.False(t, env.redis.Exists("plashr:oauth:token"))
}

func TestLogin_RequiresSecret(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_key")
}

func TestFormatFlag(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "feed", "--format", "yaml")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	p := message.NewPrinter("en")

	assert.Equal(t, "Error: boom", describe(p, fmt.Errorf("boom")))
	assert.Equal(t, p.Sprintf(message.MsgRateLimited), describe(p, client.ErrRateLimited))
	assert.Equal(t, p.Sprintf(message.MsgCancelled), describe(p, context.Canceled))
	assert.Equal(t, p.Sprintf(message.MsgMissingBody),
		describe(p, &pagination.LoadError{Kind: pagination.KindMissingBody, Page: 1, Err: pagination.ErrMissingBody}))
}

func TestAwaitCallback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	base := "http://" + ln.Addr().String() + "/callback"
	go func() {
		// Wrong state is rejected and does not end the wait.
		if resp, err := http.Get(base + "?state=other&code=x"); err == nil {
			resp.Body.Close()
		}
		if resp, err := http.Get(base + "?" + url.Values{"state": {"s1"}, "code": {"c0de"}}.Encode()); err == nil {
			resp.Body.Close()
		}
	}()

	code, err := awaitCallback(ctx, ln, "/callback", "s1")
	require.NoError(t, err)
	assert.Equal(t, "c0de", code)
}

func TestAwaitCallback_Denied(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		if resp, err := http.Get("http://" + ln.Addr().String() + "/?state=s1&error=access_denied"); err == nil {
			resp.Body.Close()
		}
	}()

	_, err = awaitCallback(ctx, ln, "", "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestAwaitCallback_Timeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = awaitCallback(ctx, ln, "/callback", "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "short", ellipsize("short", 10))
	assert.Equal(t, "a b", ellipsize("a\n  b", 10))
	assert.Equal(t, "abcdefg...", ellipsize("abcdefghijklmnop", 10))
}

func TestPrintTopics_PlainTable(t *testing.T) {
	var buf bytes.Buffer
	err := printTopics(&buf, FormatTable, []unsplash.Topic{
		{Slug: "nature", Title: "Nature", TotalPhotos: 1200, Featured: true},
		{Slug: "film", Title: "Film", TotalPhotos: 7},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^SLUG\s+TITLE\s+PHOTOS\s+FEATURED`, lines[0])
	assert.Regexp(t, `^nature\s+Nature\s+1200\s+true`, lines[1])
	assert.Regexp(t, `^film\s+Film\s+7\s+false`, lines[2])
	assert.NotContains(t, buf.String(), "|")
	assert.NotContains(t, buf.String(), "+")
	assert.NotContains(t, buf.String(), "─")
}
