package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/require"

	"xnstat/database"
	"xnstat/internal/domain"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewConnection(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func quietLogger() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}

// fakeParser はページ本文をキーに星系を返す。
type fakeParser struct {
	systems map[string]domain.SystemRows
	calls   int
}

func (p *fakeParser) ParsePage(_ context.Context, page string) (domain.SystemRows, error) {
	p.calls++
	rows, ok := p.systems[page]
	if !ok {
		return domain.SystemRows{}, errors.New("parse error (1)")
	}
	return rows, nil
}

type fakeFetcher struct {
	pages    map[string]string
	loginErr error
	paths    []string
	lastErr  string
}

func (f *fakeFetcher) EnsureLogin(context.Context) error { return f.loginErr }

func (f *fakeFetcher) Fetch(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	page, ok := f.pages[path]
	if !ok {
		f.lastErr = "HTTP 404"
		return "", fmt.Errorf("HTTP 404")
	}
	f.lastErr = ""
	return page, nil
}

func (f *fakeFetcher) LastError() string { return f.lastErr }

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func i64Ptr(n int64) *int64   { return &n }

func row(slot int, name, user string) *domain.GalaxyRow {
	return &domain.GalaxyRow{Slot: slot, Planet: slot, PlanetID: int64(1000 + slot), PlanetName: name, PlanetType: 1, UserID: 7, UserName: user}
}
