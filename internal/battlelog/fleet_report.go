package battlelog

import (
	"strings"

	"xnstat/internal/htmlscan"

	"golang.org/x/net/html"
)

// fleetReportExtractor は uni5 形式の戦闘ログ（report_user / report_fleet / report_result）を読む。
type fleetReportExtractor struct {
	opts Options

	exists      bool
	nonexistent bool
	err         error
	done        bool

	// report_user, report_fleet は1回読んだら下ろす。report_result は最後まで立てたまま。
	inParticipants bool
	inFleet        bool
	inResult       bool

	attackers      []string
	defenders      []string
	attackerCoords map[string]string
	defenderCoords map[string]string

	report Report
}

// NewFleetReportExtractor は uni5 用の抽出器を作る。
func NewFleetReportExtractor(opts Options) Extractor {
	return &fleetReportExtractor{
		opts:           opts.withDefaults(),
		attackerCoords: map[string]string{},
		defenderCoords: map[string]string{},
	}
}

func (e *fleetReportExtractor) HandleStartTag(tag string, attrs []html.Attribute) {
	switch tag {
	case "table":
		if htmlscan.HasClass(attrs, "report_user") {
			e.inParticipants = true
			return
		}
		if htmlscan.HasClass(attrs, "report_result") {
			e.inResult = true
		}
	case "div":
		if htmlscan.HasClass(attrs, "report_fleet") {
			e.inFleet = true
		}
	}
}

func (e *fleetReportExtractor) HandleText(text, tag string, attrs []html.Attribute) {
	if e.err != nil || e.nonexistent {
		return
	}
	if isNonexistentNotice(text) {
		e.nonexistent = true
		e.opts.Logger.Debugf("nonexistent log notice: [%s]", text)
		return
	}
	switch tag {
	case "title":
		// <title>Боевой доклад :: Звездная Империя 5</title>
		if strings.HasPrefix(text, battleTitlePrefix) {
			e.exists = true
		}
		return
	case "div", "center":
		if strings.HasSuffix(text, battleOccurredSuffix) {
			e.readTime(text)
			return
		}
	case "span":
		e.handleSpan(text, attrs)
		return
	}
	if e.inResult {
		e.handleResultLine(text)
	}
}

func (e *fleetReportExtractor) readTime(text string) {
	ts, unix, perr := battleTime(text, e.opts.Location)
	if perr != nil {
		e.fail(perr)
		return
	}
	e.exists = true
	e.report.TimeText = ts
	e.report.Record.LogTime = unix
}

func (e *fleetReportExtractor) handleSpan(text string, attrs []html.Attribute) {
	negative := htmlscan.HasClass(attrs, "negative")
	positive := htmlscan.HasClass(attrs, "positive")
	if !negative && !positive {
		return
	}
	if e.inParticipants {
		// フラグを先に下ろすので、同じ span が攻撃側と防御側の両方に入ることはない
		e.inParticipants = false
		if negative {
			e.attackers = append(e.attackers, text)
		} else {
			e.defenders = append(e.defenders, text)
		}
		return
	}
	if e.inFleet {
		// <div class='report_fleet'><span class='negative'>Атакующий Name [1:5:3]</span>
		e.inFleet = false
		name, coords, ok := splitFleetLine(text)
		if !ok {
			e.opts.Logger.Warnf("fleet line without coords: [%s]", text)
			return
		}
		dict := e.defenderCoords
		if negative {
			dict = e.attackerCoords
		}
		if _, seen := dict[name]; !seen {
			dict[name] = coords
		}
	}
}

// splitFleetLine は "Атакующий Name [1:2:3]" を名前と座標に分ける。
func splitFleetLine(s string) (string, string, bool) {
	s = strings.TrimPrefix(s, attackerPrefix)
	s = strings.TrimPrefix(s, defenderPrefix)
	bpos := strings.IndexByte(s, '[')
	if bpos == -1 {
		return s, "", false
	}
	return strings.TrimSuffix(s[:bpos], " "), s[bpos:], true
}

func (e *fleetReportExtractor) handleResultLine(text string) {
	rec := &e.report.Record
	switch {
	case strings.HasPrefix(text, "Он получает"):
		m := plunderPattern.FindStringSubmatch(text)
		if m == nil {
			e.fail(&ParseError{What: "win resources", Text: text})
			return
		}
		rec.WinMetal = SafeInt(m[1])
		rec.WinCrystal = SafeInt(m[2])
		rec.WinDeuterium = SafeInt(m[3])
	case strings.HasPrefix(text, "Атакующий потерял"):
		m := lossPattern.FindStringSubmatch(text)
		if m == nil {
			e.fail(&ParseError{What: "attacker loss", Text: text})
			return
		}
		e.report.AttackerLoss = SafeInt(m[1])
		rec.TotalLoss += e.report.AttackerLoss
	case strings.HasPrefix(text, "Обороняющийся потерял"):
		m := lossPattern.FindStringSubmatch(text)
		if m == nil {
			e.fail(&ParseError{What: "defender loss", Text: text})
			return
		}
		e.report.DefenderLoss = SafeInt(m[1])
		rec.TotalLoss += e.report.DefenderLoss
	case strings.HasPrefix(text, "Поле обломков:"):
		m := debrisPattern.FindStringSubmatch(text)
		if m == nil {
			e.fail(&ParseError{What: "debris field", Text: text})
			return
		}
		rec.PoMetal = SafeInt(m[1])
		rec.PoCrystal = SafeInt(m[2])
	case strings.HasPrefix(text, moonChancePrefix):
		// "Шанс появления луны составляет 0%"
		v := strings.TrimSuffix(strings.TrimPrefix(text, moonChancePrefix), "%")
		rec.MoonChance = SafeInt(v)
	}
}

func (e *fleetReportExtractor) fail(perr *ParseError) {
	if e.opts.Policy == PolicyLenient {
		e.opts.Logger.Warnf("skip: %v", perr)
		return
	}
	e.err = perr
}

func (e *fleetReportExtractor) Report() (Report, error) {
	if e.err != nil {
		return Report{}, e.err
	}
	if !e.done {
		e.done = true
		rec := &e.report.Record
		rec.Attacker = strings.Join(e.attackers, ",")
		rec.Defender = strings.Join(e.defenders, ",")
		rec.AttackerCoords = joinCoords(e.attackers, e.attackerCoords, "attacker", e.opts.Logger)
		rec.DefenderCoords = joinCoords(e.defenders, e.defenderCoords, "defender", e.opts.Logger)
		switch {
		case e.nonexistent:
			e.report.Status = StatusNonexistent
		case e.exists:
			e.report.Status = StatusBattle
		default:
			e.report.Status = StatusIncomplete
		}
	}
	return e.report, nil
}

// joinCoords は名前順に座標を並べる。見つからない名前は飛ばすので件数がずれることがある。
func joinCoords(names []string, dict map[string]string, side string, logger Logger) string {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		c, ok := dict[name]
		if !ok {
			logger.Errorf("cannot find [%s] in %s coords dict, %s list: %v", name, side, side, names)
			continue
		}
		parts = append(parts, c)
	}
	return strings.Join(parts, ",")
}
