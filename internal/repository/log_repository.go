package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"xnstat/database"
	"xnstat/internal/domain"
)

var logColumns = []string{
	"log_id", "log_time", "attacker", "defender", "attacker_coords", "defender_coords",
	"total_loss", "po_me", "po_cry", "win_me", "win_cry", "win_deit", "moon_chance",
}

// LogFilter は ListSince の条件。Nick は攻撃側/防御側の前方一致。
type LogFilter struct {
	Since int64
	Nick  string
	Limit uint64
}

type LogRepository interface {
	MaxLogID(ctx context.Context) (int64, error)
	Exists(ctx context.Context, logID int64) (bool, error)
	// Insert は同じ log_id が既にあれば何もせず false を返す。
	Insert(ctx context.Context, rec domain.BattleRecord) (bool, error)
	ListSince(ctx context.Context, f LogFilter) ([]domain.BattleRecord, error)
}

type logRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewLogRepository(db *sqlx.DB) LogRepository {
	return &logRepository{db: db, sb: database.Builder(db)}
}

func (r *logRepository) MaxLogID(ctx context.Context) (int64, error) {
	query, args, err := r.sb.Select("COALESCE(MAX(CAST(log_id AS BIGINT)), 0)").From("logs").ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("max log id: %w", err)
	}
	return id, nil
}

func (r *logRepository) Exists(ctx context.Context, logID int64) (bool, error) {
	return r.exists(ctx, r.db, logID)
}

func (r *logRepository) exists(ctx context.Context, q sqlx.QueryerContext, logID int64) (bool, error) {
	query, args, err := r.sb.Select("COUNT(*)").From("logs").Where(sq.Eq{"log_id": logID}).ToSql()
	if err != nil {
		return false, err
	}
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *logRepository) Insert(ctx context.Context, rec domain.BattleRecord) (bool, error) {
	if rec.LogID <= 0 {
		return false, errors.New("log_id is required")
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	found, err := r.exists(ctx, tx, rec.LogID)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	query, args, err := r.sb.Insert("logs").Columns(logColumns...).Values(
		rec.LogID, rec.LogTime, rec.Attacker, rec.Defender, rec.AttackerCoords, rec.DefenderCoords,
		rec.TotalLoss, rec.PoMetal, rec.PoCrystal, rec.WinMetal, rec.WinCrystal, rec.WinDeuterium, rec.MoonChance,
	).ToSql()
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("insert log %d: %w", rec.LogID, err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// 古い DB では log_time が TEXT 型のことがあるので、比較も並びも数値にそろえる。
func (r *logRepository) ListSince(ctx context.Context, f LogFilter) ([]domain.BattleRecord, error) {
	b := r.sb.Select(logColumns...).From("logs").
		Where(sq.Expr("CAST(log_time AS BIGINT) >= ?", f.Since)).
		OrderBy("CAST(log_time AS BIGINT) DESC", "CAST(log_id AS BIGINT) DESC")
	if f.Nick != "" {
		b = b.Where(sq.Or{
			sq.Like{"attacker": f.Nick + "%"},
			sq.Like{"defender": f.Nick + "%"},
		})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var out []domain.BattleRecord
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return out, nil
}
