package xnova

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

var ErrAuthFailed = errors.New("xnova authorization failed")

// 宇宙ごとのログイン成功時に揃う Cookie
var sessionCookies = map[string][]string{
	VariantUni4: {"x_id", "x_secret", "x_uni"},
	VariantUni5: {"PHPSESSID", "session_id"},
}

// Authorize はログインフォームを POST して、応答で受け取った Cookie を返す。
// hc に Jar があればそこにも入る。
func Authorize(ctx context.Context, hc *http.Client, cfg Config) (map[string]string, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, client: hc}
	return c.authorize(ctx)
}

func (c *Client) authorize(ctx context.Context) (map[string]string, error) {
	base := c.cfg.BaseURL()
	postURL := base + "/?set=login&xd"
	fields := map[string]string{
		"emails":     c.cfg.Login,
		"password":   c.cfg.Password,
		"rememberme": "on",
	}
	if c.cfg.Variant == VariantUni5 {
		postURL = base + "/login/?"
		fields = map[string]string{
			"email":      c.cfg.Login,
			"password":   c.cfg.Password,
			"rememberme": "on",
			"ajax":       "Y",
		}
	}
	headers := map[string]string{
		"Accept":           "*/*",
		"Referer":          base,
		"Origin":           base,
		"X-Requested-With": "XMLHttpRequest",
	}

	fmt.Printf("[xnova] authorize: %s\n", postURL)
	resp, _, err := c.postFormReturn(ctx, postURL, fields, headers)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	fmt.Printf("[xnova] authorize response: %s\n", debugSummary(resp))

	cookies := make(map[string]string)
	for _, ck := range resp.Cookies() {
		cookies[ck.Name] = ck.Value
	}
	if hasAll(cookies, sessionCookies[VariantUni4]) {
		return cookies, nil
	}
	// uni5 は uni4 形式の Cookie を返すこともある
	if c.cfg.Variant == VariantUni5 && hasAll(cookies, sessionCookies[VariantUni5]) {
		return cookies, nil
	}
	return nil, ErrAuthFailed
}

// Login はログインして Cookie を Jar に入れる。CookieFile があれば保存もする。
func (c *Client) Login(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if _, err := c.authorize(ctx); err != nil {
		return err
	}
	fmt.Printf("[xnova] login ok (%s)\n", c.cfg.Variant)
	c.setLoggedIn(true)
	if c.cfg.CookieFile != "" && c.cfg.CookieEncKeyRaw != "" {
		if err := c.SaveSession(c.cfg.CookieFile); err != nil {
			fmt.Printf("[xnova] session save failed: %v\n", err)
		}
	}
	return nil
}

// EnsureLogin は保存済みセッションを戻し、それでも Cookie が無ければログインする。
func (c *Client) EnsureLogin(ctx context.Context) error {
	if c.cfg.CookieFile != "" && c.cfg.CookieEncKeyRaw != "" {
		if err := c.LoadSession(c.cfg.CookieFile); err != nil && c.cfg.Debug {
			fmt.Printf("[xnova][debug] session restore skipped: %v\n", err)
		}
	}
	if c.hasSession() {
		c.setLoggedIn(true)
		return nil
	}
	return c.Login(ctx)
}

func (c *Client) hasSession() bool {
	u, err := url.Parse(c.cfg.BaseURL() + "/")
	if err != nil {
		return false
	}
	names := make(map[string]string)
	for _, ck := range c.client.Jar.Cookies(u) {
		names[ck.Name] = ck.Value
	}
	if hasAll(names, sessionCookies[VariantUni4]) {
		return true
	}
	return c.cfg.Variant == VariantUni5 && hasAll(names, sessionCookies[VariantUni5])
}

func hasAll(cookies map[string]string, names []string) bool {
	for _, n := range names {
		if _, ok := cookies[n]; !ok {
			return false
		}
	}
	return true
}
