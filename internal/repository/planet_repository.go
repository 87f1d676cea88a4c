package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"xnstat/database"
	"xnstat/internal/domain"
)

var planetColumns = []string{
	"g", "s", "p",
	"planet_id", "planet_name", "planet_type", "planet_metal", "planet_crystal", "planet_destroyed",
	"luna_id", "luna_name", "luna_diameter", "luna_destroyed",
	"user_id", "user_name", "user_rank", "user_onlinetime", "user_banned", "user_ro", "user_race",
	"ally_id", "ally_name", "ally_tag", "ally_members",
}

// 並び替えに使ってよいカラム
var planetSortColumns = map[string]bool{
	"planet_name": true,
	"planet_type": true,
	"user_name":   true,
	"user_rank":   true,
	"ally_name":   true,
	"luna_name":   true,
}

const (
	SearchPlayer   = "player"
	SearchAlliance = "alliance"
)

// PlanetQuery はプレイヤー名/同盟名での検索条件。
type PlanetQuery struct {
	Category   string
	Value      string
	SortColumn string
	SortOrder  string
}

// InactiveQuery はイナクティブ検索の条件。
// UserFlags: i = onlinetime 1, I = onlinetime > 0, G = BAN 中, U = 休暇中。
type InactiveQuery struct {
	UserFlags  string
	Galaxies   []int
	SystemMin  int
	SystemMax  int
	MinRank    int
	SortColumn string
	SortOrder  string
}

type MapMode int

const (
	MapMoons MapMode = iota
	MapPlayer
	MapAlliance
)

// MapFilter はギャラクシーマップに打つ点の条件。
type MapFilter struct {
	Mode      MapMode
	Name      string
	MoonsOnly bool
}

type SystemKey struct {
	Galaxy int
	System int
}

type PlayerRef struct {
	UserID   int64  `db:"user_id"`
	UserName string `db:"user_name"`
}

type PlanetRepository interface {
	// ReplaceSystem は (g, s) の行を入れ替える。1トランザクション。
	ReplaceSystem(ctx context.Context, galaxy, system int, planets []domain.Planet) error
	Search(ctx context.Context, q PlanetQuery) ([]domain.Planet, error)
	Inactives(ctx context.Context, q InactiveQuery) ([]domain.Planet, error)
	CountInSystem(ctx context.Context, galaxy, system int) (int, error)
	SystemCounts(ctx context.Context) (map[SystemKey]int, error)
	FindPlayer(ctx context.Context, name string) (*PlayerRef, error)
	PlayerPlanets(ctx context.Context, name string) ([]domain.Planet, error)
	MapPoints(ctx context.Context, f MapFilter) ([]domain.Coords, error)
}

type planetRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewPlanetRepository(db *sqlx.DB) PlanetRepository {
	return &planetRepository{db: db, sb: database.Builder(db)}
}

func (r *planetRepository) ReplaceSystem(ctx context.Context, galaxy, system int, planets []domain.Planet) error {
	if galaxy < 1 || system < 1 {
		return errors.New("galaxy and system are required")
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query, args, err := r.sb.Delete("planets").Where(sq.Eq{"g": galaxy, "s": system}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear system %d:%d: %w", galaxy, system, err)
	}

	if len(planets) > 0 {
		ins := r.sb.Insert("planets").Columns(planetColumns...)
		for _, p := range planets {
			if p.Galaxy != galaxy || p.System != system {
				return fmt.Errorf("planet %s is outside system %d:%d", p.Coords, galaxy, system)
			}
			ins = ins.Values(
				p.Galaxy, p.System, p.Slot,
				p.PlanetID, p.PlanetName, p.PlanetType, p.PlanetMetal, p.PlanetCrystal, p.PlanetDestroyed,
				p.MoonID, p.MoonName, p.MoonDiameter, p.MoonDestroyed,
				p.UserID, p.UserName, p.UserRank, p.UserOnlineTime, p.UserBanned, p.UserRO, p.UserRace,
				p.AllyID, p.AllyName, p.AllyTag, p.AllyMembers,
			)
		}
		query, args, err = ins.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert system %d:%d: %w", galaxy, system, err)
		}
	}
	return tx.Commit()
}

func (r *planetRepository) Search(ctx context.Context, q PlanetQuery) ([]domain.Planet, error) {
	if q.Value == "" {
		return nil, errors.New("search value is required")
	}
	like := q.Value + "%"
	b := r.sb.Select(planetColumns...).From("planets")
	switch q.Category {
	case SearchPlayer:
		b = b.Where(sq.Like{"user_name": like})
	case SearchAlliance:
		b = b.Where(sq.Or{sq.Like{"ally_name": like}, sq.Like{"ally_tag": like}})
	default:
		return nil, fmt.Errorf("unknown search category %q", q.Category)
	}
	order, err := orderBy(q.SortColumn, q.SortOrder)
	if err != nil {
		return nil, err
	}
	return r.selectPlanets(ctx, b.OrderBy(order...))
}

func (r *planetRepository) Inactives(ctx context.Context, q InactiveQuery) ([]domain.Planet, error) {
	b := r.sb.Select(planetColumns...).From("planets")

	// I は i を含む
	switch {
	case strings.Contains(q.UserFlags, "I"):
		b = b.Where(sq.Gt{"user_onlinetime": 0})
	case strings.Contains(q.UserFlags, "i"):
		b = b.Where(sq.Eq{"user_onlinetime": 1})
	}
	if strings.Contains(q.UserFlags, "G") {
		b = b.Where(sq.Gt{"user_banned": 0})
	} else {
		b = b.Where(sq.Eq{"user_banned": 0})
	}
	if strings.Contains(q.UserFlags, "U") {
		b = b.Where(sq.Gt{"user_ro": 0})
	} else {
		b = b.Where(sq.Eq{"user_ro": 0})
	}
	if len(q.Galaxies) > 0 {
		b = b.Where(sq.Eq{"g": q.Galaxies})
	}
	if q.SystemMin > 0 && q.SystemMax > 0 {
		b = b.Where(sq.Expr("s BETWEEN ? AND ?", q.SystemMin, q.SystemMax))
	}
	if q.MinRank > 0 {
		b = b.Where(sq.Expr("user_rank BETWEEN ? AND ?", 1, q.MinRank))
	}
	// 無人スロットは除外
	b = b.Where(sq.Gt{"user_id": 0})

	order, err := orderBy(q.SortColumn, q.SortOrder)
	if err != nil {
		return nil, err
	}
	return r.selectPlanets(ctx, b.OrderBy(order...))
}

func (r *planetRepository) CountInSystem(ctx context.Context, galaxy, system int) (int, error) {
	query, args, err := r.sb.Select("COUNT(*)").From("planets").
		Where(sq.Eq{"g": galaxy, "s": system}).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *planetRepository) SystemCounts(ctx context.Context) (map[SystemKey]int, error) {
	query, args, err := r.sb.Select("g", "s", "COUNT(*) AS n").From("planets").
		GroupBy("g", "s").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []struct {
		G int `db:"g"`
		S int `db:"s"`
		N int `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("system counts: %w", err)
	}
	out := make(map[SystemKey]int, len(rows))
	for _, row := range rows {
		out[SystemKey{Galaxy: row.G, System: row.S}] = row.N
	}
	return out, nil
}

func (r *planetRepository) FindPlayer(ctx context.Context, name string) (*PlayerRef, error) {
	if name == "" {
		return nil, errors.New("player name is required")
	}
	query, args, err := r.sb.Select("user_id", "user_name").From("planets").
		Where(sq.Like{"user_name": name + "%"}).
		Where(sq.Gt{"user_id": 0}).
		OrderBy("user_name").Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	var ref PlayerRef
	if err := r.db.GetContext(ctx, &ref, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

func (r *planetRepository) PlayerPlanets(ctx context.Context, name string) ([]domain.Planet, error) {
	if name == "" {
		return nil, errors.New("player name is required")
	}
	b := r.sb.Select(planetColumns...).From("planets").
		Where(sq.Eq{"user_name": name}).
		OrderBy("g ASC", "s ASC", "p ASC")
	return r.selectPlanets(ctx, b)
}

func (r *planetRepository) MapPoints(ctx context.Context, f MapFilter) ([]domain.Coords, error) {
	b := r.sb.Select("g", "s", "p").From("planets")
	switch f.Mode {
	case MapMoons:
		b = b.Where(sq.Gt{"luna_id": 0})
	case MapPlayer:
		if f.Name == "" {
			return nil, errors.New("player name is required")
		}
		b = b.Where(sq.Like{"user_name": f.Name})
	case MapAlliance:
		if f.Name == "" {
			return nil, errors.New("alliance name is required")
		}
		b = b.Where(sq.Or{sq.Like{"ally_name": f.Name}, sq.Like{"ally_tag": f.Name}})
	default:
		return nil, fmt.Errorf("unknown map mode %d", f.Mode)
	}
	if f.MoonsOnly && f.Mode != MapMoons {
		b = b.Where(sq.Gt{"luna_id": 0})
	}
	query, args, err := b.OrderBy("g", "s", "p").ToSql()
	if err != nil {
		return nil, err
	}
	var out []domain.Coords
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("map points: %w", err)
	}
	return out, nil
}

func (r *planetRepository) selectPlanets(ctx context.Context, b sq.SelectBuilder) ([]domain.Planet, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var out []domain.Planet
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("select planets: %w", err)
	}
	return out, nil
}

// ValidSortColumn は並び替えに使えるカラムかどうか。
func ValidSortColumn(column string) bool {
	return planetSortColumns[column]
}

// orderBy は ORDER BY 句を組み立てる。カラムはホワイトリストのみ。
func orderBy(column, order string) ([]string, error) {
	tail := []string{"g ASC", "s ASC", "p ASC"}
	if column == "" {
		return tail, nil
	}
	if !planetSortColumns[column] {
		return nil, fmt.Errorf("invalid sort column %q", column)
	}
	switch strings.ToLower(order) {
	case "", "asc":
		order = "ASC"
	case "desc":
		order = "DESC"
	default:
		return nil, fmt.Errorf("invalid sort order %q", order)
	}
	return append([]string{column + " " + order}, tail...), nil
}
