package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"xnstat/database"
	"xnstat/internal/domain"
)

type WatchRepository interface {
	// Add は既に監視中なら false を返す。
	Add(ctx context.Context, p domain.WatchedPlayer) (bool, error)
	Remove(ctx context.Context, playerID int64) (int64, error)
	List(ctx context.Context) ([]domain.WatchedPlayer, error)
	RecordCheck(ctx context.Context, c domain.OnlineCheck) error
	LatestChecks(ctx context.Context) ([]domain.OnlineCheck, error)
}

type watchRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewWatchRepository(db *sqlx.DB) WatchRepository {
	return &watchRepository{db: db, sb: database.Builder(db)}
}

func (r *watchRepository) Add(ctx context.Context, p domain.WatchedPlayer) (bool, error) {
	if p.PlayerID <= 0 {
		return false, errors.New("player_id is required")
	}
	query, args, err := r.sb.Insert("watched_players").
		Columns("player_id", "player_name", "add_time").
		Values(p.PlayerID, p.PlayerName, p.AddTime).
		Suffix("ON CONFLICT (player_id) DO NOTHING").ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *watchRepository) Remove(ctx context.Context, playerID int64) (int64, error) {
	if playerID <= 0 {
		return 0, errors.New("player_id is required")
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query, args, err := r.sb.Delete("players_online").Where(sq.Eq{"player_id": playerID}).ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, err
	}
	query, args, err = r.sb.Delete("watched_players").Where(sq.Eq{"player_id": playerID}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (r *watchRepository) List(ctx context.Context) ([]domain.WatchedPlayer, error) {
	query, args, err := r.sb.Select("player_id", "player_name", "add_time").
		From("watched_players").OrderBy("add_time", "player_id").ToSql()
	if err != nil {
		return nil, err
	}
	var out []domain.WatchedPlayer
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordCheck はプレイヤーごとに最新の結果だけを持つ。
func (r *watchRepository) RecordCheck(ctx context.Context, c domain.OnlineCheck) error {
	if c.PlayerID <= 0 {
		return errors.New("player_id is required")
	}
	query, args, err := r.sb.Insert("players_online").
		Columns("player_id", "check_time", "online_time", "num_planets", "most_active_planet_id").
		Values(c.PlayerID, c.CheckTime, c.OnlineTime, c.NumPlanets, c.MostActivePlanetID).
		Suffix(`ON CONFLICT (player_id) DO UPDATE SET
			check_time = EXCLUDED.check_time,
			online_time = EXCLUDED.online_time,
			num_planets = EXCLUDED.num_planets,
			most_active_planet_id = EXCLUDED.most_active_planet_id`).ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *watchRepository) LatestChecks(ctx context.Context) ([]domain.OnlineCheck, error) {
	query, args, err := r.sb.Select("player_id", "check_time", "online_time", "num_planets", "most_active_planet_id").
		From("players_online").OrderBy("player_id").ToSql()
	if err != nil {
		return nil, err
	}
	var out []domain.OnlineCheck
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}
