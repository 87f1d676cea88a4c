package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"xnstat/internal/domain"
	"xnstat/internal/render"
	"xnstat/internal/repository"
)

const (
	CategoryPlayer    = "player"
	CategoryAlliance  = "alliance"
	CategoryInactives = "inactives"

	// MaxMinRank は min_rank の上限。
	MaxMinRank = 1000000
)

// GridParams は /api/grid のクエリそのまま。UserFlags は未指定なら nil。
type GridParams struct {
	Query     string
	Category  string
	Sort      string
	Order     string
	UserFlags *string
	Gals      string
	SMin      string
	SMax      string
	MinRank   string
}

// GridRow はグリッド表示用に整形済みの惑星1行。
type GridRow struct {
	Coords         string `json:"coords"`
	CoordsLink     string `json:"coords_link"`
	PlanetID       int64  `json:"planet_id"`
	PlanetName     string `json:"planet_name"`
	PlanetType     int    `json:"planet_type"`
	UserID         int64  `json:"user_id"`
	UserName       string `json:"user_name"`
	UserRank       int    `json:"user_rank"`
	UserOnlineTime int    `json:"user_onlinetime"`
	UserBanned     int64  `json:"user_banned"`
	UserRO         int64  `json:"user_ro"`
	UserRace       int    `json:"user_race"`
	UserRaceImg    string `json:"user_race_img"`
	AllyName       string `json:"ally_name"`
	AllyTag        string `json:"ally_tag"`
	AllyMembers    int    `json:"ally_members"`
	LunaName       string `json:"luna_name"`
	LunaDiameter   int    `json:"luna_diameter"`
}

type GridResult struct {
	Rows  []GridRow `json:"rows"`
	Total int       `json:"total"`
}

type LastLogsParams struct {
	Category string
	Value    string
	Nick     string
}

// LogRow は lastlogs 表示用に整形済みのログ1行。
type LogRow struct {
	LogID     string `json:"log_id"`
	LogTime   string `json:"log_time"`
	Attacker  string `json:"attacker"`
	Defender  string `json:"defender"`
	TotalLoss string `json:"total_loss"`
	Po        string `json:"po"`
	Win       string `json:"win"`
}

type LogResult struct {
	Rows  []LogRow `json:"rows"`
	Total int      `json:"total"`
}

var ErrUnknownMapMode = errors.New("unknown map mode")

// MapRequest は galaxymap の描画条件。
type MapRequest struct {
	Mode    string
	Objects string
	Name    string
}

type ReportService interface {
	Grid(ctx context.Context, p GridParams) (GridResult, error)
	LastLogs(ctx context.Context, p LastLogsParams) (LogResult, error)
	RecentLogs(ctx context.Context, since time.Duration, nick string, limit uint64) ([]domain.BattleRecord, error)
	Population(ctx context.Context) ([]int, error)
	MapLayers(ctx context.Context, req MapRequest) (render.Layers, error)
	PlayerPlanets(ctx context.Context, name string) ([]domain.Planet, error)
}

type ReportOptions struct {
	// SiteURL はリンク先のゲームサイト。例: https://uni5.xnova.su
	SiteURL  string
	Location *time.Location
	Now      func() time.Time
}

type reportService struct {
	planets repository.PlanetRepository
	logs    repository.LogRepository
	opts    ReportOptions
}

func NewReportService(planets repository.PlanetRepository, logs repository.LogRepository, opts ReportOptions) ReportService {
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &reportService{planets: planets, logs: logs, opts: opts}
}

func (s *reportService) Grid(ctx context.Context, p GridParams) (GridResult, error) {
	column, order := sanitizeSort(p.Sort, p.Order)

	var (
		planets []domain.Planet
		err     error
	)
	switch p.Category {
	case CategoryPlayer, CategoryAlliance:
		if p.Query == "" {
			break
		}
		planets, err = s.planets.Search(ctx, repository.PlanetQuery{
			Category:   p.Category,
			Value:      p.Query,
			SortColumn: column,
			SortOrder:  order,
		})
	case CategoryInactives:
		if p.UserFlags == nil {
			break
		}
		sMin, sMax := ParseSystemRange(p.SMin, p.SMax)
		planets, err = s.planets.Inactives(ctx, repository.InactiveQuery{
			UserFlags:  *p.UserFlags,
			Galaxies:   ParseGalaxies(p.Gals),
			SystemMin:  sMin,
			SystemMax:  sMax,
			MinRank:    fitInRange(safeAtoi(p.MinRank), 0, MaxMinRank),
			SortColumn: column,
			SortOrder:  order,
		})
	}
	if err != nil {
		return GridResult{}, err
	}

	rows := make([]GridRow, 0, len(planets))
	for _, planet := range planets {
		rows = append(rows, s.gridRow(planet))
	}
	return GridResult{Rows: rows, Total: len(rows)}, nil
}

// 名前はゲーム内でプレイヤーが付けたものなので、HTML に埋める前にエスケープする。
func (s *reportService) gridRow(p domain.Planet) GridRow {
	r := GridRow{
		Coords:         p.Coords.String(),
		CoordsLink:     s.coordsLink(p.Coords, true),
		PlanetID:       p.PlanetID,
		PlanetName:     html.EscapeString(p.PlanetName),
		PlanetType:     p.PlanetType,
		UserID:         p.UserID,
		UserName:       html.EscapeString(p.UserName),
		UserRank:       p.UserRank,
		UserOnlineTime: p.UserOnlineTime,
		UserBanned:     p.UserBanned,
		UserRO:         p.UserRO,
		UserRace:       p.UserRace,
		UserRaceImg:    fmt.Sprintf(`<img border="0" src="css/icons/race%d.png" width="18" />`, p.UserRace),
		AllyName:       html.EscapeString(p.AllyName),
		AllyTag:        html.EscapeString(p.AllyTag),
		AllyMembers:    p.AllyMembers,
		LunaName:       html.EscapeString(p.MoonName),
		LunaDiameter:   p.MoonDiameter,
	}
	if flags := UserFlags(p); flags != "" {
		r.UserName += " (" + flags + ")"
	}
	if r.AllyMembers == 0 {
		r.AllyName = ""
	} else {
		if r.AllyTag != r.AllyName {
			r.AllyName += " [" + r.AllyTag + "]"
		}
		r.AllyName += fmt.Sprintf(" (%d тел)", r.AllyMembers)
	}
	if r.LunaName != "" && r.LunaDiameter > 0 {
		r.LunaName += fmt.Sprintf(" (%d)", r.LunaDiameter)
	}
	if r.PlanetType == domain.PlanetTypeBase {
		r.PlanetName += " (base)"
	}
	return r
}

// UserFlags は名前の後ろに付ける U/G/i/I。
func UserFlags(p domain.Planet) string {
	var b strings.Builder
	if p.UserRO > 0 {
		b.WriteString("U")
	}
	if p.UserBanned > 0 {
		b.WriteString("G")
	}
	switch p.UserOnlineTime {
	case 1:
		b.WriteString("i")
	case 2:
		b.WriteString("I")
	}
	return b.String()
}

func (s *reportService) coordsLink(c domain.Coords, newTab bool) string {
	target := ""
	if newTab {
		target = ` target="_blank"`
	}
	return fmt.Sprintf(`<a href="%s/galaxy/%d/%d/"%s>%s</a>`, s.opts.SiteURL, c.Galaxy, c.System, target, c)
}

// sanitizeSort は許可されていない並び替えを黙って捨てる。
func sanitizeSort(column, order string) (string, string) {
	if !repository.ValidSortColumn(column) {
		return "", ""
	}
	if order != "asc" && order != "desc" {
		order = ""
	}
	return column, order
}

// ParseGalaxies は "12345" のような数字列を銀河番号にする。
// 1..5 に丸めて重複は落とす。空なら全銀河。
func ParseGalaxies(gals string) []int {
	if gals == "" {
		gals = "12345"
	}
	var out []int
	seen := map[int]bool{}
	for _, ch := range gals {
		g := fitInRange(safeAtoi(string(ch)), 1, domain.MaxGalaxy)
		if seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

// ParseSystemRange は逆順なら入れ替えて 1..499 に収める。
func ParseSystemRange(sMin, sMax string) (int, int) {
	lo, hi := 1, domain.MaxSystem
	if sMin != "" {
		lo = safeAtoi(sMin)
	}
	if sMax != "" {
		hi = safeAtoi(sMax)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return fitInRange(lo, 1, domain.MaxSystem), fitInRange(hi, 1, domain.MaxSystem)
}

func (s *reportService) LastLogs(ctx context.Context, p LastLogsParams) (LogResult, error) {
	value := safeAtoi(p.Value)
	if value <= 0 {
		value = 24
	}
	hours := value
	if p.Category == "days" {
		hours = 24 * value
	}
	records, err := s.RecentLogs(ctx, time.Duration(hours)*time.Hour, p.Nick, 0)
	if err != nil {
		return LogResult{}, err
	}
	rows := make([]LogRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, s.logRow(rec))
	}
	return LogResult{Rows: rows, Total: len(rows)}, nil
}

func (s *reportService) RecentLogs(ctx context.Context, since time.Duration, nick string, limit uint64) ([]domain.BattleRecord, error) {
	return s.logs.ListSince(ctx, repository.LogFilter{
		Since: s.opts.Now().Add(-since).Unix(),
		Nick:  nick,
		Limit: limit,
	})
}

var coordsRe = regexp.MustCompile(`\[(\d+):(\d+):(\d+)\]`)

func (s *reportService) logRow(rec domain.BattleRecord) LogRow {
	return LogRow{
		LogID:     fmt.Sprintf(`<a href="%s/log/%d/" target="_blank">#%d</a>`, s.opts.SiteURL, rec.LogID, rec.LogID),
		LogTime:   time.Unix(rec.LogTime, 0).In(s.opts.Location).Format("02-01-2006 15:04:05"),
		Attacker:  s.participant(rec.Attacker, rec.AttackerCoords),
		Defender:  s.participant(rec.Defender, rec.DefenderCoords),
		TotalLoss: ResStr(rec.TotalLoss),
		Po:        ResStr(rec.PoMetal) + " me, " + ResStr(rec.PoCrystal) + " cry",
		Win:       ResStr(rec.WinMetal) + " me, " + ResStr(rec.WinCrystal) + " cry, " + ResStr(rec.WinDeuterium) + " deit",
	}
}

// participant は名前の後ろに最初の座標の星系へのリンクを付ける。
func (s *reportService) participant(names, coords string) string {
	link := ""
	if m := coordsRe.FindStringSubmatch(coords); m != nil {
		link = fmt.Sprintf("%s/galaxy/%s/%s/", s.opts.SiteURL, m[1], m[2])
	}
	return fmt.Sprintf(`%s <a href="%s" target="_blank">%s</a>`, html.EscapeString(names), link, html.EscapeString(coords))
}

// ResStr は資源量を 12K, 3.4M のような短い表記にする。
func ResStr(n int64) string {
	millions := n / 1000000
	rest := n - millions*1000000
	if millions == 0 {
		if k := rest / 1000; k > 0 {
			return strconv.FormatInt(k, 10) + "K"
		}
		return "0"
	}
	k := int64(math.RoundToEven(float64(rest) / 100000))
	if k >= 10 {
		millions++
		k = 0
	}
	if k > 0 {
		return fmt.Sprintf("%d.%dM", millions, k)
	}
	return fmt.Sprintf("%dM", millions)
}

func (s *reportService) Population(ctx context.Context) ([]int, error) {
	counts, err := s.planets.SystemCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, render.Galaxies*domain.MaxSystem)
	for g := 1; g <= render.Galaxies; g++ {
		for sys := 1; sys <= domain.MaxSystem; sys++ {
			out = append(out, counts[repository.SystemKey{Galaxy: g, System: sys}])
		}
	}
	return out, nil
}

func (s *reportService) MapLayers(ctx context.Context, req MapRequest) (render.Layers, error) {
	counts, err := s.planets.SystemCounts(ctx)
	if err != nil {
		return render.Layers{}, err
	}
	layers := render.Layers{Population: make(map[domain.Coords]int, len(counts))}
	for key, n := range counts {
		layers.Population[domain.Coords{Galaxy: key.Galaxy, System: key.System}] = n
	}

	filter := repository.MapFilter{Name: req.Name, MoonsOnly: req.Objects == "moons"}
	switch req.Mode {
	case "", "population":
		return layers, nil
	case "moons":
		filter.Mode = repository.MapMoons
	case "player":
		filter.Mode = repository.MapPlayer
	case "alliance":
		filter.Mode = repository.MapAlliance
	default:
		return render.Layers{}, fmt.Errorf("%w: %q", ErrUnknownMapMode, req.Mode)
	}
	if filter.Mode != repository.MapMoons && req.Name == "" {
		// 名前なしは人口だけ
		return layers, nil
	}
	points, err := s.planets.MapPoints(ctx, filter)
	if err != nil {
		return render.Layers{}, err
	}
	layers.Points = points
	return layers, nil
}

func (s *reportService) PlayerPlanets(ctx context.Context, name string) ([]domain.Planet, error) {
	return s.planets.PlayerPlanets(ctx, name)
}

func safeAtoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func fitInRange(v, lower, upper int) int {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
