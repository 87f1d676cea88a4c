package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// NewConnection は DB に接続して疎通を確認する。
// sqlite は書き込みが直列なので接続を1本に絞る。
func NewConnection(driver, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	switch driver {
	case DriverSQLite, DriverPostgres:
	case "":
		driver = DriverSQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// Placeholder はドライバ名に合う squirrel のプレースホルダ形式を返す。
func Placeholder(driver string) sq.PlaceholderFormat {
	if driver == DriverPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Builder は db に合わせた StatementBuilder。
func Builder(db *sqlx.DB) sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(Placeholder(db.DriverName()))
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS logs (
		log_id BIGINT NOT NULL,
		log_time BIGINT NOT NULL DEFAULT 0,
		attacker TEXT NOT NULL DEFAULT '',
		defender TEXT NOT NULL DEFAULT '',
		attacker_coords TEXT NOT NULL DEFAULT '',
		defender_coords TEXT NOT NULL DEFAULT '',
		total_loss BIGINT NOT NULL DEFAULT 0,
		po_me BIGINT NOT NULL DEFAULT 0,
		po_cry BIGINT NOT NULL DEFAULT 0,
		win_me BIGINT NOT NULL DEFAULT 0,
		win_cry BIGINT NOT NULL DEFAULT 0,
		win_deit BIGINT NOT NULL DEFAULT 0,
		moon_chance INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_log_id ON logs (log_id)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_log_time ON logs (log_time)`,
	`CREATE TABLE IF NOT EXISTS planets (
		g INTEGER NOT NULL,
		s INTEGER NOT NULL,
		p INTEGER NOT NULL,
		planet_id BIGINT NOT NULL DEFAULT 0,
		planet_name TEXT NOT NULL DEFAULT '',
		planet_type INTEGER NOT NULL DEFAULT 1,
		planet_metal BIGINT NOT NULL DEFAULT 0,
		planet_crystal BIGINT NOT NULL DEFAULT 0,
		planet_destroyed INTEGER NOT NULL DEFAULT 0,
		luna_id BIGINT NOT NULL DEFAULT 0,
		luna_name TEXT NOT NULL DEFAULT '',
		luna_diameter INTEGER NOT NULL DEFAULT 0,
		luna_destroyed INTEGER NOT NULL DEFAULT 0,
		user_id BIGINT NOT NULL DEFAULT 0,
		user_name TEXT NOT NULL DEFAULT '',
		user_rank INTEGER NOT NULL DEFAULT 0,
		user_onlinetime INTEGER NOT NULL DEFAULT 0,
		user_banned BIGINT NOT NULL DEFAULT 0,
		user_ro BIGINT NOT NULL DEFAULT 0,
		user_race INTEGER NOT NULL DEFAULT 0,
		ally_id BIGINT NOT NULL DEFAULT 0,
		ally_name TEXT NOT NULL DEFAULT '',
		ally_tag TEXT NOT NULL DEFAULT '',
		ally_members INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (g, s, p)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_planets_user_name ON planets (user_name)`,
	`CREATE INDEX IF NOT EXISTS idx_planets_ally_name ON planets (ally_name)`,
	`CREATE TABLE IF NOT EXISTS watched_players (
		player_id BIGINT PRIMARY KEY,
		player_name TEXT NOT NULL DEFAULT '',
		add_time BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS players_online (
		player_id BIGINT PRIMARY KEY,
		check_time BIGINT NOT NULL DEFAULT 0,
		online_time INTEGER NOT NULL DEFAULT 0,
		num_planets INTEGER NOT NULL DEFAULT 0,
		most_active_planet_id BIGINT NOT NULL DEFAULT 0
	)`,
}

// 古い DB ファイルには無いカラム。無ければ足す。
var addedColumns = []struct {
	table, column, ddl string
}{
	{"logs", "moon_chance", "INTEGER NOT NULL DEFAULT 0"},
}

// Migrate はテーブルを作る。既存のテーブルはそのまま使う。
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w (%s)", err, firstLine(stmt))
		}
	}
	for _, c := range addedColumns {
		exists := fmt.Sprintf("SELECT %s FROM %s WHERE 1 = 0", c.column, c.table)
		rows, err := db.QueryContext(ctx, exists)
		if err == nil {
			rows.Close()
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, c.ddl)
		if _, err := db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("migrate: add column %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
