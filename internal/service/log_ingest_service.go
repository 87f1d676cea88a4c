package service

import (
	"context"
	"errors"
	"time"

	"xnstat/internal/battlelog"
	"xnstat/internal/domain"
	"xnstat/internal/repository"
	"xnstat/internal/scraper"
)

// BattleNotifier は新しく保存された戦闘を外へ知らせる。
type BattleNotifier interface {
	NotifyBattle(ctx context.Context, rec domain.BattleRecord) error
}

type LogIngestOptions struct {
	Variant  string
	Policy   battlelog.ResultPolicy
	Location *time.Location
	Logger   Logger
	Notifier BattleNotifier
}

// LogIngestService は戦闘ログページを解析して logs に入れる。
type LogIngestService interface {
	scraper.Handler
	// StartLogID は次に取りに行く log_id。
	StartLogID(ctx context.Context, configured int64) (int64, error)
}

type logIngestService struct {
	repo repository.LogRepository
	opts LogIngestOptions
}

func NewLogIngestService(repo repository.LogRepository, opts LogIngestOptions) LogIngestService {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &logIngestService{repo: repo, opts: opts}
}

func (s *logIngestService) StartLogID(ctx context.Context, configured int64) (int64, error) {
	last, err := s.repo.MaxLogID(ctx)
	if err != nil {
		return 0, err
	}
	if configured > last {
		last = configured
	}
	return last + 1, nil
}

func (s *logIngestService) Handle(ctx context.Context, t scraper.Target, page string) (scraper.Outcome, error) {
	if t.LogID <= 0 {
		return 0, errors.New("log id is required")
	}
	ex, err := battlelog.New(s.opts.Variant, battlelog.Options{
		Location: s.opts.Location,
		Policy:   s.opts.Policy,
		Logger:   s.opts.Logger,
	})
	if err != nil {
		return 0, err
	}
	report, err := battlelog.Parse(page, ex)
	if err != nil {
		return 0, err
	}
	switch report.Status {
	case battlelog.StatusNonexistent:
		return scraper.OutcomeNonexistent, nil
	case battlelog.StatusIncomplete:
		return scraper.OutcomeIncomplete, nil
	}

	rec := report.Record
	rec.LogID = t.LogID
	added, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return 0, err
	}
	if !added {
		s.opts.Logger.Warnf("refusing to add duplicate log id %d", rec.LogID)
		return scraper.OutcomeDuplicate, nil
	}
	s.opts.Logger.Infof("log %d: %s vs %s, loss %d", rec.LogID, rec.Attacker, rec.Defender, rec.TotalLoss)

	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.NotifyBattle(ctx, rec); err != nil {
			s.opts.Logger.Warnf("notify log %d: %v", rec.LogID, err)
		}
	}
	return scraper.OutcomeStored, nil
}
