package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xnstat/database"
	"xnstat/internal/battlelog"
	"xnstat/internal/scraper"
	"xnstat/internal/xnova"
)

// .env を拾わないように空ディレクトリへ移る
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "uni5.xnova.su", cfg.Site.Host)
	assert.Equal(t, xnova.VariantUni5, cfg.Site.Variant)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, scraper.DefaultMaxErrors, cfg.Scraper.MaxErrors)
	assert.Equal(t, scraper.DefaultDelay, cfg.Scraper.Delay)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://uni5.xnova.su", cfg.SiteURL())
	require.NoError(t, cfg.Validate())
}

func TestLoadLegacyUniverseUsesLowerErrorLimit(t *testing.T) {
	chdirTemp(t)
	t.Setenv("XNOVA_HOST", "uni4.xnova.su")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, xnova.VariantUni4, cfg.Site.Variant)
	assert.Equal(t, scraper.DefaultLegacyMaxErrors, cfg.Scraper.MaxErrors)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "xnstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
site:
  host: uni5.xnova.su
  login: yaml@example.com
database:
  driver: postgres
  dsn: postgres://localhost/xnstat
scraper:
  start_log_id: 1200
  delay: 2s
  result_policy: lenient
  galaxies: [1, 3]
server:
  data_files: [logs.db, galaxy.db]
`), 0o644))
	t.Setenv("XNOVA_LOGIN", "env@example.com")
	t.Setenv("SCRAPER_GALAXIES", "2, 4")
	t.Setenv("PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env@example.com", cfg.Site.Login)
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, int64(1200), cfg.Scraper.StartLogID)
	assert.Equal(t, 2*time.Second, cfg.Scraper.Delay)
	assert.Equal(t, battlelog.PolicyLenient, cfg.Policy())
	assert.Equal(t, []int{2, 4}, cfg.Scraper.Galaxies)
	assert.Equal(t, []string{"logs.db", "galaxy.db"}, cfg.Server.DataFiles)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "env@example.com", cfg.XNova().Login)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("XNOVA_PASSWORD=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("XNOVA_PASSWORD") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Site.Password)
}

func TestLoadRejectsBadInput(t *testing.T) {
	chdirTemp(t)

	_, err := Load("missing.yaml")
	require.Error(t, err)

	t.Setenv("SCRAPER_GALAXIES", "1,x")
	_, err = Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Default()
	require.NoError(t, base.Validate())

	bad := base
	bad.Database.Driver = "mysql"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Scraper.ResultPolicy = "whatever"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Scraper.Timezone = "Nowhere/Nothing"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Scraper.SystemMin, bad.Scraper.SystemMax = 10, 5
	assert.Error(t, bad.Validate())

	bad = base
	bad.Discord.NotifyChannel = "123"
	assert.Error(t, bad.Validate())
}

func TestLocation(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Scraper.Timezone = "Europe/Moscow"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())
}
