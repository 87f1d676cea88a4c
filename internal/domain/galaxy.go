package domain

import "fmt"

const (
	MaxGalaxy      = 5
	MaxSystem      = 499
	SlotsPerSystem = 15

	PlanetTypePlanet = 1
	PlanetTypeBase   = 5
)

// GalaxyRow はギャラクシー画面の1スロット分（row[N]={...} の中身）。
// null が来るフィールドは Go のゼロ値になる。月と同盟は有無を区別したいのでポインタ。
type GalaxyRow struct {
	Slot int `json:"-"`

	Planet        int     `json:"planet"`
	PlanetID      int64   `json:"id_planet"`
	AllyPlanet    int64   `json:"ally_planet"`
	Metal         int64   `json:"metal"`
	Crystal       int64   `json:"crystal"`
	PlanetName    string  `json:"name"`
	PlanetType    int     `json:"planet_type"`
	Destroyed     int     `json:"destruyed"`
	Image         string  `json:"image"`
	LastActive    int     `json:"last_active"`
	ParentPlanet  int64   `json:"parent_planet"`
	MoonID        *int64  `json:"luna_id"`
	MoonName      *string `json:"luna_name"`
	MoonDestroyed *int    `json:"luna_destruyed"`
	MoonDiameter  *int    `json:"luna_diameter"`
	MoonTemp      *int    `json:"luna_temp"`

	UserID       int64   `json:"user_id"`
	UserName     string  `json:"username"`
	Race         int     `json:"race"`
	AuthLevel    int     `json:"authlevel"`
	OnlineTime   int     `json:"onlinetime"`
	VacationTime int64   `json:"urlaubs_modus_time"`
	BannedDay    int64   `json:"banaday"`
	Sex          int     `json:"sex"`
	Avatar       int     `json:"avatar"`
	UserImage    string  `json:"user_image"`
	TotalRank    int     `json:"total_rank"`
	TotalPoints  float64 `json:"total_points"`

	AllyID      int64   `json:"ally_id"`
	AllyName    *string `json:"ally_name"`
	AllyMembers *int    `json:"ally_members"`
	AllyWeb     *string `json:"ally_web"`
	AllyTag     *string `json:"ally_tag"`
}

// HasMoon は月があるかどうか。
func (r *GalaxyRow) HasMoon() bool {
	return r.MoonID != nil && *r.MoonID > 0
}

// SystemRows は1星系分。添字がスロット番号で、0 は使わない。空きスロットは nil。
type SystemRows [SlotsPerSystem + 1]*GalaxyRow

// Occupied は埋まっているスロットをスロット順に返す。
func (rows SystemRows) Occupied() []*GalaxyRow {
	var out []*GalaxyRow
	for slot := 1; slot <= SlotsPerSystem; slot++ {
		if rows[slot] != nil {
			out = append(out, rows[slot])
		}
	}
	return out
}

// Coords は [g:s:p] 表記。
type Coords struct {
	Galaxy int `db:"g" json:"g"`
	System int `db:"s" json:"s"`
	Slot   int `db:"p" json:"p"`
}

func (c Coords) String() string {
	return fmt.Sprintf("[%d:%d:%d]", c.Galaxy, c.System, c.Slot)
}

// Planet は planets テーブルの1行。
type Planet struct {
	Coords
	PlanetID        int64  `db:"planet_id"`
	PlanetName      string `db:"planet_name"`
	PlanetType      int    `db:"planet_type"`
	PlanetMetal     int64  `db:"planet_metal"`
	PlanetCrystal   int64  `db:"planet_crystal"`
	PlanetDestroyed int    `db:"planet_destroyed"`
	MoonID          int64  `db:"luna_id"`
	MoonName        string `db:"luna_name"`
	MoonDiameter    int    `db:"luna_diameter"`
	MoonDestroyed   int    `db:"luna_destroyed"`
	UserID          int64  `db:"user_id"`
	UserName        string `db:"user_name"`
	UserRank        int    `db:"user_rank"`
	UserOnlineTime  int    `db:"user_onlinetime"`
	UserBanned      int64  `db:"user_banned"`
	UserRO          int64  `db:"user_ro"`
	UserRace        int    `db:"user_race"`
	AllyID          int64  `db:"ally_id"`
	AllyName        string `db:"ally_name"`
	AllyTag         string `db:"ally_tag"`
	AllyMembers     int    `db:"ally_members"`
}

// PlanetFromRow はギャラクシー行を保存用の形に変換する。
func PlanetFromRow(galaxy, system int, r *GalaxyRow) Planet {
	p := Planet{
		Coords:          Coords{Galaxy: galaxy, System: system, Slot: r.Slot},
		PlanetID:        r.PlanetID,
		PlanetName:      r.PlanetName,
		PlanetType:      r.PlanetType,
		PlanetMetal:     r.Metal,
		PlanetCrystal:   r.Crystal,
		PlanetDestroyed: r.Destroyed,
		UserID:          r.UserID,
		UserName:        r.UserName,
		UserRank:        r.TotalRank,
		UserOnlineTime:  r.OnlineTime,
		UserBanned:      r.BannedDay,
		UserRO:          r.VacationTime,
		UserRace:        r.Race,
		AllyID:          r.AllyID,
		AllyName:        deref(r.AllyName),
		AllyTag:         deref(r.AllyTag),
	}
	if r.AllyMembers != nil {
		p.AllyMembers = *r.AllyMembers
	}
	if r.HasMoon() {
		p.MoonID = *r.MoonID
		p.MoonName = deref(r.MoonName)
		if r.MoonDiameter != nil {
			p.MoonDiameter = *r.MoonDiameter
		}
		if r.MoonDestroyed != nil {
			p.MoonDestroyed = *r.MoonDestroyed
		}
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
