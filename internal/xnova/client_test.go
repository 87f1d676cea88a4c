package xnova

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*Config)) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	cfg := Config{
		Host:     u.Host,
		Scheme:   u.Scheme,
		Variant:  VariantUni5,
		Login:    "player@example.com",
		Password: "secret",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestFetchTracksReferer(t *testing.T) {
	var referers []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referers = append(referers, r.Header.Get("Referer"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<title>Боевой доклад</title>"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	ctx := context.Background()

	c.SetReferer("https://uni5.xnova.su/log/")
	body, err := c.Fetch(ctx, "log/100/")
	require.NoError(t, err)
	assert.Contains(t, body, "Боевой доклад")

	_, err = c.Fetch(ctx, "/log/101/")
	require.NoError(t, err)

	require.Len(t, referers, 2)
	assert.Equal(t, "https://uni5.xnova.su/log/", referers[0])
	assert.Equal(t, srv.URL+"/log/100/", referers[1])
	assert.Empty(t, c.LastError())
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.Fetch(context.Background(), "log/1/")
	require.Error(t, err)

	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusBadGateway, herr.StatusCode)
	assert.Equal(t, "HTTP 502", c.LastError())
}

func TestFetchDoesNotFollowRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte("login page"))
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.Fetch(context.Background(), "galaxy/1/1/")
	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusFound, herr.StatusCode)
}

func TestFetchLogsInAgainAfterSessionExpires(t *testing.T) {
	var posts int
	valid := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
			valid = fmt.Sprintf("t%d", posts)
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: valid, Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "s", Path: "/"})
			return
		}
		ck, err := r.Cookie("PHPSESSID")
		if r.URL.Path == "/" || err != nil || valid == "" || ck.Value != valid {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("galaxy " + ck.Value))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx))

	body, err := c.Fetch(ctx, "galaxy/1/1/")
	require.NoError(t, err)
	assert.Equal(t, "galaxy t1", body)

	// サーバ側でセッションを切る
	valid = ""
	body, err = c.Fetch(ctx, "galaxy/1/2/")
	require.NoError(t, err)
	assert.Equal(t, "galaxy t2", body)
	assert.Equal(t, 2, posts)
	assert.Empty(t, c.LastError())
}

func TestFetchReturnsLoginErrorWhenReloginFails(t *testing.T) {
	var posts, gets int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
			if posts == 1 {
				http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "a", Path: "/"})
				http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "b", Path: "/"})
			}
			return
		}
		gets++
		http.Redirect(w, r, "/", http.StatusFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx))

	_, err := c.Fetch(ctx, "galaxy/1/1/")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, 2, posts)
	assert.Equal(t, 1, gets)
	assert.Equal(t, ErrAuthFailed.Error(), c.LastError())

	// 次はログイン済み扱いではないので、そのままリダイレクトのエラーになる
	_, err = c.Fetch(ctx, "galaxy/1/2/")
	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, 2, posts)
}

func TestFetchDecodesCharset(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().String("<center>Лог не существует</center>")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/header" {
			w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		} else {
			w.Header().Set("Content-Type", "text/html")
		}
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	body, err := c.Fetch(context.Background(), "header")
	require.NoError(t, err)
	assert.Equal(t, "<center>Лог не существует</center>", body)

	forced := newTestClient(t, srv, func(cfg *Config) { cfg.Charset = "windows-1251" })
	body, err = forced.Fetch(context.Background(), "plain")
	require.NoError(t, err)
	assert.Equal(t, "<center>Лог не существует</center>", body)
}

func TestAuthorizeUni5(t *testing.T) {
	var form url.Values
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login/", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		headers = r.Header.Clone()
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "def", Path: "/"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	cookies, err := Authorize(context.Background(), c.client, c.Config())
	require.NoError(t, err)
	assert.Equal(t, "abc", cookies["PHPSESSID"])

	assert.Equal(t, "player@example.com", form.Get("email"))
	assert.Equal(t, "Y", form.Get("ajax"))
	assert.Equal(t, "on", form.Get("rememberme"))
	assert.Equal(t, "XMLHttpRequest", headers.Get("X-Requested-With"))
	assert.Equal(t, srv.URL, headers.Get("Origin"))
	assert.True(t, strings.HasPrefix(headers.Get("Content-Type"), "application/x-www-form-urlencoded"))

	assert.True(t, c.hasSession())
}

func TestAuthorizeUni4(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.URL.Query().Get("set") != "login" || r.PostForm.Get("emails") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, name := range []string{"x_id", "x_secret", "x_uni"} {
			http.SetCookie(w, &http.Cookie{Name: name, Value: "1", Path: "/"})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.Variant = VariantUni4 })
	require.NoError(t, c.Login(context.Background()))
	assert.True(t, c.hasSession())
}

func TestAuthorizeFailsWithoutCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// session_id が欠けている
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	err := c.Login(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestEnsureLoginRestoresSession(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "def", Path: "/"})
		}
	}))
	defer srv.Close()

	key := strings.Repeat("k", 32)
	file := filepath.Join(t.TempDir(), "session.enc")
	withStore := func(cfg *Config) {
		cfg.CookieFile = file
		cfg.CookieEncKeyRaw = key
	}

	first := newTestClient(t, srv, withStore)
	require.NoError(t, first.EnsureLogin(context.Background()))
	assert.Equal(t, 1, posts)

	second := newTestClient(t, srv, withStore)
	require.NoError(t, second.EnsureLogin(context.Background()))
	assert.Equal(t, 1, posts)
	assert.True(t, second.hasSession())
}

func TestSessionSealRoundTrip(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	in := Session{URL: "https://uni5.xnova.su/", Cookies: []*http.Cookie{{Name: "PHPSESSID", Value: "abc"}}}

	blob, err := SealSession(key, in)
	require.NoError(t, err)
	out, err := OpenSession(key, blob)
	require.NoError(t, err)
	assert.Equal(t, in.URL, out.URL)
	require.Len(t, out.Cookies, 1)
	assert.Equal(t, "abc", out.Cookies[0].Value)

	_, err = OpenSession(strings.Repeat("x", 32), blob)
	require.Error(t, err)
	_, err = SealSession("short", in)
	require.Error(t, err)
}

func TestVariantFromHost(t *testing.T) {
	assert.Equal(t, VariantUni5, VariantFromHost("uni5.xnova.su"))
	assert.Equal(t, VariantUni4, VariantFromHost("uni4.xnova.su"))
	assert.Equal(t, VariantUni4, Config{Host: "uni4.xnova.su"}.withDefaults().Variant)
}
