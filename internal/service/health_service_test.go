package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"xnstat/internal/repository"
)

func TestHealthServiceReadiness(t *testing.T) {
	db := newTestDB(t)
	svc := NewHealthService(repository.NewHealthRepository(db))
	ctx := context.Background()

	assert.False(t, svc.Ready(ctx))
	svc.MarkReady()
	assert.True(t, svc.IsReady())
	assert.True(t, svc.Ready(ctx))

	svc.MarkNotReady()
	assert.False(t, svc.Ready(ctx))

	svc.MarkReady()
	db.Close()
	assert.False(t, svc.Ready(ctx))
	assert.Error(t, svc.Check(ctx))
}
