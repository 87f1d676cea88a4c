package domain

type WatchedPlayer struct {
	PlayerID   int64  `db:"player_id" json:"player_id"`
	PlayerName string `db:"player_name" json:"player_name"`
	AddTime    int64  `db:"add_time" json:"add_time"`
}

// OnlineTimeUnknown は惑星が一つも見つからず最終アクティブが分からないときの OnlineTime。
const OnlineTimeUnknown = -1

// OnlineCheck は監視中プレイヤーの最終アクティブ確認結果。
type OnlineCheck struct {
	PlayerID           int64 `db:"player_id"`
	CheckTime          int64 `db:"check_time"`
	OnlineTime         int   `db:"online_time"`
	NumPlanets         int   `db:"num_planets"`
	MostActivePlanetID int64 `db:"most_active_planet_id"`
}

// Known は最終アクティブが取れたかどうか。
func (c OnlineCheck) Known() bool {
	return c.OnlineTime != OnlineTimeUnknown && c.NumPlanets > 0
}
