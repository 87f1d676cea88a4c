package service

import (
	"context"
	"errors"

	"xnstat/internal/domain"
	"xnstat/internal/repository"
	"xnstat/internal/scraper"
)

// GalaxyParser は galaxy.Unscrambler が満たす。
type GalaxyParser interface {
	ParsePage(ctx context.Context, page string) (domain.SystemRows, error)
}

type galaxyIngestService struct {
	repo   repository.PlanetRepository
	parser GalaxyParser
	logger Logger
}

// NewGalaxyIngestService は星系ページを planets に入れるハンドラを返す。
func NewGalaxyIngestService(repo repository.PlanetRepository, parser GalaxyParser, logger Logger) scraper.Handler {
	if logger == nil {
		logger = nopLogger{}
	}
	return &galaxyIngestService{repo: repo, parser: parser, logger: logger}
}

func (s *galaxyIngestService) Handle(ctx context.Context, t scraper.Target, page string) (scraper.Outcome, error) {
	if t.Galaxy <= 0 || t.System <= 0 {
		return 0, errors.New("galaxy and system are required")
	}
	rows, err := s.parser.ParsePage(ctx, page)
	if err != nil {
		return 0, err
	}
	occupied := rows.Occupied()
	planets := make([]domain.Planet, 0, len(occupied))
	for _, row := range occupied {
		planets = append(planets, domain.PlanetFromRow(t.Galaxy, t.System, row))
	}
	if err := s.repo.ReplaceSystem(ctx, t.Galaxy, t.System, planets); err != nil {
		return 0, err
	}
	s.logger.Debugf("system %d:%d: %d planets", t.Galaxy, t.System, len(planets))
	return scraper.OutcomeStored, nil
}
