package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"xnstat/database"
	"xnstat/internal/battlelog"
	"xnstat/internal/domain"
	"xnstat/internal/scraper"
	"xnstat/internal/xnova"
)

// Config はスクレイパとサーバで共通の設定。
// 読み込み順: .env → 既定値 → YAML → 環境変数。
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
}

type SiteConfig struct {
	Host         string        `yaml:"host"`
	Scheme       string        `yaml:"scheme"`
	Variant      string        `yaml:"variant"`
	Login        string        `yaml:"login"`
	Password     string        `yaml:"password"`
	Charset      string        `yaml:"charset"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
	Debug        bool          `yaml:"debug"`
	CookieFile   string        `yaml:"cookie_file"`
	CookieEncKey string        `yaml:"cookie_enc_key"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ScraperConfig struct {
	// StartLogID より DB の最大値が大きければそちらから続ける。
	StartLogID   int64         `yaml:"start_log_id"`
	MaxErrors    int           `yaml:"max_errors"`
	Delay        time.Duration `yaml:"delay"`
	ResultPolicy string        `yaml:"result_policy"`
	// Timezone は戦闘時刻の解釈に使う。空ならローカル。
	Timezone  string        `yaml:"timezone"`
	Galaxies  []int         `yaml:"galaxies"`
	SystemMin int           `yaml:"system_min"`
	SystemMax int           `yaml:"system_max"`
	JSTimeout time.Duration `yaml:"js_timeout"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// DataFiles はトップページに更新時刻を出すファイル。
	DataFiles            []string      `yaml:"data_files"`
	OnlinePollInterval   time.Duration `yaml:"online_poll_interval"`
	OnlinePlayerDelayMax time.Duration `yaml:"online_player_delay_max"`
}

type DiscordConfig struct {
	Token         string `yaml:"token"`
	AppID         string `yaml:"app_id"`
	GuildID       string `yaml:"guild_id"`
	NotifyChannel string `yaml:"notify_channel"`
	NotifyMinLoss int64  `yaml:"notify_min_loss"`
}

// Default は何も設定しないときの値。
func Default() Config {
	return Config{
		Site: SiteConfig{
			Host:    "uni5.xnova.su",
			Scheme:  "https",
			Timeout: 20 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: database.DriverSQLite,
			DSN:    "xnstat.db",
		},
		Scraper: ScraperConfig{
			Delay:        scraper.DefaultDelay,
			ResultPolicy: "strict",
			SystemMin:    1,
			SystemMax:    domain.MaxSystem,
			JSTimeout:    5 * time.Second,
		},
		Server: ServerConfig{
			Port:                 "8080",
			OnlinePlayerDelayMax: 3 * time.Second,
		},
	}
}

// Load は設定を組み立てる。path が空なら YAML は読まない。
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Site.Variant == "" {
		cfg.Site.Variant = xnova.VariantFromHost(cfg.Site.Host)
	}
	if cfg.Scraper.MaxErrors <= 0 {
		cfg.Scraper.MaxErrors = scraper.DefaultMaxErrors
		if cfg.Site.Variant == xnova.VariantUni4 {
			cfg.Scraper.MaxErrors = scraper.DefaultLegacyMaxErrors
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Site.Host = envOrDefault("XNOVA_HOST", c.Site.Host)
	c.Site.Scheme = envOrDefault("XNOVA_SCHEME", c.Site.Scheme)
	c.Site.Variant = envOrDefault("XNOVA_VARIANT", c.Site.Variant)
	c.Site.Login = envOrDefault("XNOVA_LOGIN", c.Site.Login)
	c.Site.Password = envOrDefault("XNOVA_PASSWORD", c.Site.Password)
	c.Site.Charset = envOrDefault("XNOVA_CHARSET", c.Site.Charset)
	c.Site.UserAgent = envOrDefault("XNOVA_USER_AGENT", c.Site.UserAgent)
	c.Site.Timeout = envDuration("XNOVA_TIMEOUT", c.Site.Timeout)
	c.Site.Debug = envBool("XNOVA_DEBUG", c.Site.Debug)
	c.Site.CookieFile = envOrDefault("XNOVA_COOKIE_FILE", c.Site.CookieFile)
	c.Site.CookieEncKey = envOrDefault("XNOVA_COOKIE_ENC_KEY", c.Site.CookieEncKey)

	c.Database.Driver = envOrDefault("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = envOrDefault("DB_DSN", c.Database.DSN)

	c.Scraper.StartLogID = int64(envInt("SCRAPER_START_LOG_ID", int(c.Scraper.StartLogID)))
	c.Scraper.MaxErrors = envInt("SCRAPER_MAX_ERRORS", c.Scraper.MaxErrors)
	c.Scraper.Delay = envDuration("SCRAPER_DELAY", c.Scraper.Delay)
	c.Scraper.ResultPolicy = envOrDefault("SCRAPER_RESULT_POLICY", c.Scraper.ResultPolicy)
	c.Scraper.Timezone = envOrDefault("SCRAPER_TIMEZONE", c.Scraper.Timezone)
	c.Scraper.SystemMin = envInt("SCRAPER_SYSTEM_MIN", c.Scraper.SystemMin)
	c.Scraper.SystemMax = envInt("SCRAPER_SYSTEM_MAX", c.Scraper.SystemMax)
	c.Scraper.JSTimeout = envDuration("SCRAPER_JS_TIMEOUT", c.Scraper.JSTimeout)
	if raw := os.Getenv("SCRAPER_GALAXIES"); raw != "" {
		gals, err := parseInts(raw)
		if err != nil {
			return fmt.Errorf("SCRAPER_GALAXIES: %w", err)
		}
		c.Scraper.Galaxies = gals
	}

	c.Server.Port = envOrDefault("PORT", c.Server.Port)
	if raw := os.Getenv("DATA_FILES"); raw != "" {
		c.Server.DataFiles = splitList(raw)
	}
	c.Server.OnlinePollInterval = envDuration("ONLINE_POLL_INTERVAL", c.Server.OnlinePollInterval)
	c.Server.OnlinePlayerDelayMax = envDuration("ONLINE_POLL_PLAYER_DELAY_MAX", c.Server.OnlinePlayerDelayMax)

	c.Discord.Token = envOrDefault("DISCORD_TOKEN", c.Discord.Token)
	c.Discord.AppID = envOrDefault("DISCORD_APP_ID", c.Discord.AppID)
	c.Discord.GuildID = envOrDefault("DISCORD_GUILD_ID", c.Discord.GuildID)
	c.Discord.NotifyChannel = envOrDefault("DISCORD_NOTIFY_CHANNEL", c.Discord.NotifyChannel)
	c.Discord.NotifyMinLoss = int64(envInt("DISCORD_NOTIFY_MIN_LOSS", int(c.Discord.NotifyMinLoss)))
	return nil
}

// Validate は起動前に最低限の値を確認する。ログイン情報は XNova() 側で見る。
func (c Config) Validate() error {
	if c.Site.Host == "" {
		return errors.New("XNOVA_HOST required")
	}
	switch c.Database.Driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %s or %s", database.DriverSQLite, database.DriverPostgres)
	}
	if c.Database.DSN == "" {
		return errors.New("DB_DSN required")
	}
	if _, err := battlelog.ParsePolicy(c.Scraper.ResultPolicy); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Scraper.SystemMin > c.Scraper.SystemMax {
		return errors.New("SCRAPER_SYSTEM_MIN must not exceed SCRAPER_SYSTEM_MAX")
	}
	if c.Discord.NotifyChannel != "" && c.Discord.Token == "" {
		return errors.New("DISCORD_TOKEN required for DISCORD_NOTIFY_CHANNEL")
	}
	return nil
}

// XNova はクライアント用の設定を返す。
func (c Config) XNova() xnova.Config {
	return xnova.Config{
		Host:            c.Site.Host,
		Scheme:          c.Site.Scheme,
		Variant:         c.Site.Variant,
		Login:           c.Site.Login,
		Password:        c.Site.Password,
		UserAgent:       c.Site.UserAgent,
		Charset:         c.Site.Charset,
		Timeout:         c.Site.Timeout,
		Debug:           c.Site.Debug,
		CookieFile:      c.Site.CookieFile,
		CookieEncKeyRaw: c.Site.CookieEncKey,
	}
}

func (c Config) SiteURL() string {
	return c.XNova().BaseURL()
}

func (c Config) Policy() battlelog.ResultPolicy {
	p, _ := battlelog.ParsePolicy(c.Scraper.ResultPolicy)
	return p
}

func (c Config) Location() (*time.Location, error) {
	if c.Scraper.Timezone == "" || c.Scraper.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scraper.Timezone)
	if err != nil {
		return nil, fmt.Errorf("SCRAPER_TIMEZONE: %w", err)
	}
	return loc, nil
}

// envOrDefault は未設定ならデフォルト値を返す。
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func envDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInts(raw string) ([]int, error) {
	var out []int
	for _, part := range splitList(raw) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
