package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xnstat/internal/domain"
	"xnstat/internal/repository"
)

func lastActiveFixture(t *testing.T) (*lastActiveService, *fakeFetcher, *fakeParser) {
	t.Helper()
	planets := repository.NewPlanetRepository(newTestDB(t))
	seedPlanets(t, planets)

	var sys domain.SystemRows
	sys[3] = row(3, "Arnon", "minlexx")
	sys[3].PlanetID = 54450
	sys[3].LastActive = 15
	sys[3].MoonName = strPtr("Luna")
	sys[9] = row(9, "Outpost", "minlexx")
	sys[9].PlanetID = 54451
	sys[9].LastActive = 4
	sys[11] = row(11, "Other", "someone")

	fetcher := &fakeFetcher{pages: map[string]string{"galaxy/1/23/": "page-1-23"}}
	parser := &fakeParser{systems: map[string]domain.SystemRows{"page-1-23": sys}}
	svc := NewLastActiveService(planets, fetcher, parser, "https://uni5.xnova.su").(*lastActiveService)
	return svc, fetcher, parser
}

func TestLastActiveLookupUsesSystemCache(t *testing.T) {
	svc, fetcher, parser := lastActiveFixture(t)

	res, err := svc.Lookup(context.Background(), "minlexx")
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	require.Equal(t, 2, res.Total)
	assert.Equal(t, LastActiveRow{
		PlanetName: "Arnon",
		LunaName:   "Luna",
		CoordsLink: `<a href="https://uni5.xnova.su/galaxy/1/23/">[1:23:3]</a>`,
		LastActive: 15,
	}, res.Rows[0])
	assert.Equal(t, "", res.Rows[1].LunaName)

	// 2惑星とも 1:23 なので取得は1回
	assert.Equal(t, []string{"galaxy/1/23/"}, fetcher.paths)
	assert.Equal(t, 1, parser.calls)
}

func TestLastActiveLookupErrors(t *testing.T) {
	ctx := context.Background()

	svc, fetcher, _ := lastActiveFixture(t)
	fetcher.loginErr = errors.New("no cookies")
	res, err := svc.Lookup(ctx, "minlexx")
	require.NoError(t, err)
	assert.Equal(t, "Failed to authorize to xnova site!", res.Error)
	assert.Empty(t, res.Rows)

	svc, fetcher, _ = lastActiveFixture(t)
	fetcher.pages = map[string]string{}
	res, err = svc.Lookup(ctx, "minlexx")
	require.NoError(t, err)
	assert.Equal(t, "Failed to download, HTTP 404", res.Error)

	svc, _, parser := lastActiveFixture(t)
	parser.systems = map[string]domain.SystemRows{}
	res, err = svc.Lookup(ctx, "minlexx")
	require.NoError(t, err)
	assert.Equal(t, "Failed to parse galaxy page, parse error (1)", res.Error)
	assert.Equal(t, 0, res.Total)
}

func TestLastActiveLookupEscapesNames(t *testing.T) {
	svc, _, parser := lastActiveFixture(t)
	sys := parser.systems["page-1-23"]
	sys[3].PlanetName = "<script>x</script>"
	sys[3].MoonName = strPtr(`"moon"`)
	parser.systems["page-1-23"] = sys

	res, err := svc.Lookup(context.Background(), "minlexx")
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	assert.Equal(t, "&lt;script&gt;x&lt;/script&gt;", res.Rows[0].PlanetName)
	assert.Equal(t, "&#34;moon&#34;", res.Rows[0].LunaName)
}

func TestLastActiveUnknownPlayer(t *testing.T) {
	svc, fetcher, _ := lastActiveFixture(t)

	res, err := svc.Lookup(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, fetcher.paths)
}

func TestLastActiveCheck(t *testing.T) {
	svc, _, _ := lastActiveFixture(t)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	check, err := svc.Check(context.Background(), domain.WatchedPlayer{PlayerID: 71995, PlayerName: "minlexx"})
	require.NoError(t, err)
	assert.Equal(t, domain.OnlineCheck{
		PlayerID:           71995,
		CheckTime:          1700000000,
		OnlineTime:         4,
		NumPlanets:         2,
		MostActivePlanetID: 54451,
	}, check)

	_, err = svc.Check(context.Background(), domain.WatchedPlayer{PlayerID: 1})
	assert.Error(t, err)
}
