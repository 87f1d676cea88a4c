package xnova

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// HTTPError は 2xx 以外の応答。
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Client はゲームのページを取得する。Cookie と Referer を持ち回る。
type Client struct {
	cfg    Config
	client *http.Client

	mu       sync.Mutex
	referer  string
	lastErr  string
	loggedIn bool
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	hc := &http.Client{
		Jar:     jar,
		Timeout: cfg.Timeout,
		// ゲーム側はログイン切れでトップへ飛ばすので追わない
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &Client{cfg: cfg, client: hc}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// URL はサイト内パスを絶対URLにする。
func (c *Client) URL(path string) string {
	return c.cfg.BaseURL() + "/" + strings.TrimLeft(path, "/")
}

// Fetch はサイト内パスを GET して本文を文字列で返す。
// ログイン済みでリダイレクトされたらセッション切れとみなし、ログインし直して一度だけ取り直す。
func (c *Client) Fetch(ctx context.Context, path string) (string, error) {
	text, err := c.FetchURL(ctx, c.URL(path))
	if err == nil || !c.isLoggedIn() {
		return text, err
	}
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode < 300 || herr.StatusCode > 399 {
		return text, err
	}

	fmt.Printf("[xnova] session expired (%s), logging in again\n", path)
	if lerr := c.Login(ctx); lerr != nil {
		c.setLoggedIn(false)
		c.setLastError(lerr)
		return "", fmt.Errorf("relogin: %w", lerr)
	}
	return c.FetchURL(ctx, c.URL(path))
}

// FetchURL は絶対URLを GET する。成功したら Referer をそのURLに更新する。
func (c *Client) FetchURL(ctx context.Context, rawURL string) (string, error) {
	resp, body, err := c.getReturn(ctx, rawURL)
	if err != nil {
		c.setLastError(err)
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
		c.setLastError(herr)
		return "", herr
	}
	text, err := c.decode(body, resp.Header.Get("Content-Type"))
	if err != nil {
		err = fmt.Errorf("decode %s: %w", rawURL, err)
		c.setLastError(err)
		return "", err
	}

	c.mu.Lock()
	c.referer = rawURL
	c.lastErr = ""
	c.mu.Unlock()
	return text, nil
}

// SetReferer は次のリクエストの Referer を上書きする。
func (c *Client) SetReferer(ref string) {
	c.mu.Lock()
	c.referer = ref
	c.mu.Unlock()
}

// LastError は直前の取得失敗の内容。成功後は空。
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

func (c *Client) isLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) setLoggedIn(v bool) {
	c.mu.Lock()
	c.loggedIn = v
	c.mu.Unlock()
}

func (c *Client) currentReferer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.referer
}

func (c *Client) decode(body []byte, contentType string) (string, error) {
	if c.cfg.Charset != "" {
		enc, err := htmlindex.Get(c.cfg.Charset)
		if err != nil {
			return "", err
		}
		out, err := enc.NewDecoder().Bytes(body)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *Client) getReturn(ctx context.Context, rawURL string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	c.applyHeaders(req)
	if ref := c.currentReferer(); ref != "" {
		req.Header.Set("Referer", ref)
	}
	return c.do(req)
}

func (c *Client) postFormReturn(ctx context.Context, rawURL string, fields map[string]string, headers map[string]string) (*http.Response, []byte, error) {
	req, err := newFormRequest(ctx, rawURL, fields)
	if err != nil {
		return nil, nil, err
	}
	c.applyHeaders(req)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	c.debugRequest(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	c.debugResponse(req, resp)
	defer resp.Body.Close()
	body, err := readBody(resp)
	if err != nil {
		return resp, nil, err
	}
	return resp, body, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.8,en-US;q=0.6,en;q=0.4")
}

func (c *Client) debugRequest(req *http.Request) {
	if !c.cfg.Debug || req == nil || req.URL == nil {
		return
	}
	fmt.Printf("[xnova][debug] req %s %s\n", req.Method, req.URL.String())
	fmt.Printf("[xnova][debug] headers: Referer=%s Origin=%s\n", req.Header.Get("Referer"), req.Header.Get("Origin"))
	if c.client.Jar != nil {
		fmt.Printf("[xnova][debug] cookies: %s\n", summarizeCookies(c.client.Jar.Cookies(req.URL)))
	}
}

func (c *Client) debugResponse(req *http.Request, resp *http.Response) {
	if !c.cfg.Debug || req == nil || resp == nil {
		return
	}
	fmt.Printf("[xnova][debug] resp %s\n", debugSummary(resp))
	if set := resp.Header.Values("Set-Cookie"); len(set) > 0 {
		fmt.Printf("[xnova][debug] set-cookie: %s\n", summarizeSetCookies(set))
	}
}
