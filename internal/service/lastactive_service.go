package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"xnstat/internal/domain"
	"xnstat/internal/repository"
)

// GalaxyFetcher は xnova.Client が満たす。
type GalaxyFetcher interface {
	EnsureLogin(ctx context.Context) error
	Fetch(ctx context.Context, path string) (string, error)
	LastError() string
}

type LastActiveRow struct {
	PlanetName string `json:"planet_name"`
	LunaName   string `json:"luna_name"`
	CoordsLink string `json:"coords_link"`
	LastActive int    `json:"lastactive"`
}

type LastActiveResult struct {
	Rows  []LastActiveRow `json:"rows"`
	Total int             `json:"total"`
	Error string          `json:"error,omitempty"`
}

// LastActiveService はプレイヤーの惑星がある星系をその場で取りに行き、
// 各惑星の last_active を返す。
type LastActiveService interface {
	Lookup(ctx context.Context, playerName string) (LastActiveResult, error)
	Check(ctx context.Context, player domain.WatchedPlayer) (domain.OnlineCheck, error)
}

type lastActiveService struct {
	planets repository.PlanetRepository
	fetcher GalaxyFetcher
	parser  GalaxyParser
	siteURL string
	now     func() time.Time

	// サイトへは同時に1本しか投げない
	mu sync.Mutex
}

func NewLastActiveService(planets repository.PlanetRepository, fetcher GalaxyFetcher, parser GalaxyParser, siteURL string) LastActiveService {
	return &lastActiveService{
		planets: planets,
		fetcher: fetcher,
		parser:  parser,
		siteURL: strings.TrimRight(siteURL, "/"),
		now:     time.Now,
	}
}

// activityError はレスポンスの error 欄にそのまま出す文言。
type activityError struct {
	msg string
}

func (e *activityError) Error() string { return e.msg }

type planetActivity struct {
	planet domain.Planet
	row    *domain.GalaxyRow
}

func (s *lastActiveService) Lookup(ctx context.Context, playerName string) (LastActiveResult, error) {
	res := LastActiveResult{Rows: []LastActiveRow{}}
	if playerName == "" {
		return res, nil
	}
	found, err := s.collect(ctx, playerName)
	if err != nil {
		var aerr *activityError
		if errors.As(err, &aerr) {
			res.Error = aerr.msg
			return res, nil
		}
		return res, err
	}
	for _, a := range found {
		row := LastActiveRow{
			PlanetName: html.EscapeString(a.row.PlanetName),
			CoordsLink: fmt.Sprintf(`<a href="%s/galaxy/%d/%d/">%s</a>`, s.siteURL, a.planet.Galaxy, a.planet.System, a.planet.Coords),
			LastActive: a.row.LastActive,
		}
		if a.row.MoonName != nil {
			row.LunaName = html.EscapeString(*a.row.MoonName)
		}
		res.Rows = append(res.Rows, row)
	}
	res.Total = len(res.Rows)
	return res, nil
}

// Check は監視用に一番最近動いた惑星を選ぶ。
func (s *lastActiveService) Check(ctx context.Context, player domain.WatchedPlayer) (domain.OnlineCheck, error) {
	if player.PlayerName == "" {
		return domain.OnlineCheck{}, errors.New("player name is required")
	}
	found, err := s.collect(ctx, player.PlayerName)
	if err != nil {
		return domain.OnlineCheck{}, err
	}
	check := domain.OnlineCheck{
		PlayerID:   player.PlayerID,
		CheckTime:  s.now().Unix(),
		NumPlanets: len(found),
		OnlineTime: domain.OnlineTimeUnknown,
	}
	for _, a := range found {
		if check.OnlineTime == domain.OnlineTimeUnknown || a.row.LastActive < check.OnlineTime {
			check.OnlineTime = a.row.LastActive
			check.MostActivePlanetID = a.row.PlanetID
		}
	}
	return check, nil
}

func (s *lastActiveService) collect(ctx context.Context, playerName string) ([]planetActivity, error) {
	planets, err := s.planets.PlayerPlanets(ctx, playerName)
	if err != nil {
		return nil, err
	}
	if len(planets) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fetcher.EnsureLogin(ctx); err != nil {
		return nil, &activityError{msg: "Failed to authorize to xnova site!"}
	}

	cache := map[repository.SystemKey]domain.SystemRows{}
	var out []planetActivity
	for _, p := range planets {
		key := repository.SystemKey{Galaxy: p.Galaxy, System: p.System}
		rows, ok := cache[key]
		if !ok {
			page, err := s.fetcher.Fetch(ctx, fmt.Sprintf("galaxy/%d/%d/", p.Galaxy, p.System))
			if err != nil {
				return nil, &activityError{msg: "Failed to download, " + s.fetcher.LastError()}
			}
			rows, err = s.parser.ParsePage(ctx, page)
			if err != nil {
				return nil, &activityError{msg: "Failed to parse galaxy page, " + err.Error()}
			}
			cache[key] = rows
		}
		for _, row := range rows.Occupied() {
			if row.Planet == p.Slot {
				out = append(out, planetActivity{planet: p, row: row})
			}
		}
	}
	return out, nil
}
