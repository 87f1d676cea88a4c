package xnova

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Session はログイン Cookie のスナップショット。
type Session struct {
	URL     string         `json:"url"`
	Cookies []*http.Cookie `json:"cookies"`
}

// ExportSession はサイトの Cookie を取り出す。
func (c *Client) ExportSession() (Session, error) {
	rawURL := c.cfg.BaseURL() + "/"
	u, err := url.Parse(rawURL)
	if err != nil {
		return Session{}, err
	}
	return Session{URL: rawURL, Cookies: c.client.Jar.Cookies(u)}, nil
}

// ImportSession は保存済み Cookie を Jar に戻す。
func (c *Client) ImportSession(s Session) error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return err
	}
	c.client.Jar.SetCookies(u, s.Cookies)
	return nil
}

// SaveSession は Cookie を暗号化してファイルに書く。
func (c *Client) SaveSession(path string) error {
	s, err := c.ExportSession()
	if err != nil {
		return err
	}
	if len(s.Cookies) == 0 {
		return errors.New("no cookies to save")
	}
	blob, err := SealSession(c.cfg.CookieEncKeyRaw, s)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(blob), 0o600)
}

// LoadSession は SaveSession で書いたファイルを読み戻す。
func (c *Client) LoadSession(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s, err := OpenSession(c.cfg.CookieEncKeyRaw, strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("open session %s: %w", path, err)
	}
	return c.ImportSession(s)
}

// SealSession は AES-GCM で暗号化して base64 にする。先頭に nonce を付ける。
func SealSession(keyRaw string, s Session) (string, error) {
	plain, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(keyRaw)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plain, nil)), nil
}

// OpenSession は SealSession の逆。
func OpenSession(keyRaw, blob string) (Session, error) {
	gcm, err := newGCM(keyRaw)
	if err != nil {
		return Session{}, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return Session{}, err
	}
	n := gcm.NonceSize()
	if len(ciphertext) < n {
		return Session{}, errors.New("ciphertext too short")
	}
	plain, err := gcm.Open(nil, ciphertext[:n], ciphertext[n:], nil)
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(plain, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func newGCM(keyRaw string) (cipher.AEAD, error) {
	key, err := parseCookieKey(keyRaw)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// parseCookieKey は32バイト鍵（raw/base64/hex）を解釈する。
func parseCookieKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, errors.New("cookie encryption key missing")
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	return nil, errors.New("cookie encryption key must be 32 bytes (raw/base64/hex)")
}
