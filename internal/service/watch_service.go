package service

import (
	"context"
	"errors"
	"time"

	"xnstat/internal/domain"
	"xnstat/internal/repository"
)

var ErrPlayerNotFound = errors.New("player not found in galaxy database")

// WatchStatus は監視中プレイヤーと最後の確認結果。
type WatchStatus struct {
	Player domain.WatchedPlayer
	Check  *domain.OnlineCheck
}

type WatchService interface {
	// Add は名前から user_id を引いて監視に加える。既に監視中なら added は false。
	Add(ctx context.Context, name string) (player domain.WatchedPlayer, added bool, err error)
	Remove(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]WatchStatus, error)
}

type watchService struct {
	watch   repository.WatchRepository
	planets repository.PlanetRepository
	now     func() time.Time
}

func NewWatchService(watch repository.WatchRepository, planets repository.PlanetRepository) WatchService {
	return &watchService{watch: watch, planets: planets, now: time.Now}
}

func (s *watchService) Add(ctx context.Context, name string) (domain.WatchedPlayer, bool, error) {
	if name == "" {
		return domain.WatchedPlayer{}, false, errors.New("player name is required")
	}
	ref, err := s.planets.FindPlayer(ctx, name)
	if err != nil {
		return domain.WatchedPlayer{}, false, err
	}
	if ref == nil {
		return domain.WatchedPlayer{}, false, ErrPlayerNotFound
	}
	p := domain.WatchedPlayer{PlayerID: ref.UserID, PlayerName: ref.UserName, AddTime: s.now().Unix()}
	added, err := s.watch.Add(ctx, p)
	if err != nil {
		return domain.WatchedPlayer{}, false, err
	}
	return p, added, nil
}

func (s *watchService) Remove(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, errors.New("player name is required")
	}
	players, err := s.watch.List(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range players {
		if p.PlayerName != name {
			continue
		}
		n, err := s.watch.Remove(ctx, p.PlayerID)
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
	return false, nil
}

func (s *watchService) List(ctx context.Context) ([]WatchStatus, error) {
	players, err := s.watch.List(ctx)
	if err != nil {
		return nil, err
	}
	checks, err := s.watch.LatestChecks(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.OnlineCheck, len(checks))
	for _, c := range checks {
		byID[c.PlayerID] = c
	}
	out := make([]WatchStatus, 0, len(players))
	for _, p := range players {
		st := WatchStatus{Player: p}
		if c, ok := byID[p.PlayerID]; ok {
			st.Check = &c
		}
		out = append(out, st)
	}
	return out, nil
}
