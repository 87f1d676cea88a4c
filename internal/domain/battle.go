package domain

// BattleRecord は戦闘ログ1件分。log_id で一意。
// DB のカラム名は昔の logs テーブルに合わせている。
type BattleRecord struct {
	LogID          int64  `db:"log_id" json:"log_id"`
	LogTime        int64  `db:"log_time" json:"log_time"`
	Attacker       string `db:"attacker" json:"attacker"`
	Defender       string `db:"defender" json:"defender"`
	AttackerCoords string `db:"attacker_coords" json:"attacker_coords"`
	DefenderCoords string `db:"defender_coords" json:"defender_coords"`
	TotalLoss      int64  `db:"total_loss" json:"total_loss"`
	PoMetal        int64  `db:"po_me" json:"po_metal"`
	PoCrystal      int64  `db:"po_cry" json:"po_crystal"`
	WinMetal       int64  `db:"win_me" json:"win_metal"`
	WinCrystal     int64  `db:"win_cry" json:"win_crystal"`
	WinDeuterium   int64  `db:"win_deit" json:"win_deuterium"`
	MoonChance     int64  `db:"moon_chance" json:"moon_chance"`
}
