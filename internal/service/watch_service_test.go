package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xnstat/internal/domain"
	"xnstat/internal/repository"
)

func TestWatchServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	planets := repository.NewPlanetRepository(db)
	watch := repository.NewWatchRepository(db)
	seedPlanets(t, planets)

	svc := NewWatchService(watch, planets).(*watchService)
	svc.now = func() time.Time { return time.Unix(1000, 0) }

	p, added, err := svc.Add(ctx, "minl")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, domain.WatchedPlayer{PlayerID: 71995, PlayerName: "minlexx", AddTime: 1000}, p)

	_, added, err = svc.Add(ctx, "minlexx")
	require.NoError(t, err)
	assert.False(t, added)

	_, _, err = svc.Add(ctx, "ghost")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	require.NoError(t, watch.RecordCheck(ctx, domain.OnlineCheck{PlayerID: 71995, CheckTime: 2000, OnlineTime: 3, NumPlanets: 2}))
	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Check)
	assert.Equal(t, 3, list[0].Check.OnlineTime)

	removed, err := svc.Remove(ctx, "minlexx")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Remove(ctx, "minlexx")
	require.NoError(t, err)
	assert.False(t, removed)

	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
