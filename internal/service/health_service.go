package service

import (
	"context"
	"sync/atomic"

	"xnstat/internal/repository"
)

type HealthService interface {
	// MarkReady / MarkNotReady は起動完了とドレインの切り替え。
	MarkReady()
	MarkNotReady()
	IsReady() bool
	// Ready はフラグが立っていて、DB にも届くときだけ true。
	Ready(ctx context.Context) bool
	Check(ctx context.Context) error
}

type healthService struct {
	repo  repository.HealthRepository
	ready atomic.Bool
}

func NewHealthService(repo repository.HealthRepository) HealthService {
	return &healthService{repo: repo}
}

func (s *healthService) MarkReady()    { s.ready.Store(true) }
func (s *healthService) MarkNotReady() { s.ready.Store(false) }
func (s *healthService) IsReady() bool { return s.ready.Load() }

func (s *healthService) Ready(ctx context.Context) bool {
	if !s.IsReady() {
		return false
	}
	return s.Check(ctx) == nil
}

func (s *healthService) Check(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
