package xnova

import (
	"errors"
	"strings"
	"time"
)

const (
	VariantUni4 = "uni4"
	VariantUni5 = "uni5"

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

// Config はゲームサーバへの接続設定。
type Config struct {
	Host     string
	Scheme   string
	Variant  string
	Login    string
	Password string

	UserAgent string
	// Charset が空なら Content-Type と meta から判定する。
	Charset string
	Timeout time.Duration
	Debug   bool

	CookieFile      string
	CookieEncKeyRaw string
}

func (c Config) withDefaults() Config {
	if c.Scheme == "" {
		c.Scheme = "https"
	}
	if c.Variant == "" {
		c.Variant = VariantFromHost(c.Host)
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	return c
}

// Validate はログインに必要な値が揃っているかを見る。
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("XNOVA_HOST required")
	}
	if c.Login == "" || c.Password == "" {
		return errors.New("XNOVA_LOGIN/XNOVA_PASSWORD required")
	}
	switch c.Variant {
	case "", VariantUni4, VariantUni5:
		return nil
	}
	return errors.New("XNOVA_VARIANT must be uni4 or uni5")
}

// BaseURL は末尾スラッシュ無しのサイトURL。
func (c Config) BaseURL() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimRight(c.Host, "/")
}

// VariantFromHost はホスト名から宇宙の種類を推定する。uni5 以外は uni4 扱い。
func VariantFromHost(host string) string {
	if strings.HasPrefix(host, "uni5") {
		return VariantUni5
	}
	return VariantUni4
}
