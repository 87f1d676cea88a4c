package battlelog

import (
	"strings"

	"golang.org/x/net/html"
)

var lossReplacer = strings.NewReplacer(".", "", ")", "")

// titleExtractor は旧形式（uni4, ?set=log&id=N）のログを読む。
// 参加者と総損失はタイトルから取る。
type titleExtractor struct {
	opts Options

	hasTitle    bool
	exists      bool
	nonexistent bool
	err         error

	report Report
}

// NewTitleExtractor は旧形式用の抽出器を作る。
func NewTitleExtractor(opts Options) Extractor {
	return &titleExtractor{opts: opts.withDefaults()}
}

func (e *titleExtractor) HandleText(text, tag string, _ []html.Attribute) {
	if e.err != nil || e.nonexistent {
		return
	}
	rec := &e.report.Record
	switch tag {
	case "title":
		e.readTitle(text)
		return
	case "center":
		// "В 30-11-2015 03:25:26 произошёл бой между следующими флотами:"
		if strings.HasSuffix(text, battleOccurredSuffix) {
			ts, unix, perr := battleTime(text, e.opts.Location)
			if perr != nil {
				e.fail(perr)
				return
			}
			e.report.TimeText = ts
			rec.LogTime = unix
			e.exists = true
			return
		}
		if text == noticeNotAvailable || text == noticeNotFound {
			e.nonexistent = true
			e.opts.Logger.Debugf("nonexistent log notice: [%s]", text)
			return
		}
	case "span":
		// "Атакующий ScumWir [1:233:9]"
		if rec.AttackerCoords == "" && strings.Contains(text, attackerPrefix+rec.Attacker+" [") {
			if m := coordsPattern.FindString(text); m != "" {
				rec.AttackerCoords = m
				return
			}
		}
		if rec.DefenderCoords == "" && strings.Contains(text, defenderPrefix+rec.Defender+" [") {
			if m := coordsPattern.FindString(text); m != "" {
				rec.DefenderCoords = m
				return
			}
		}
	case "td":
		if strings.HasPrefix(text, "Поле обломков:") {
			if m := debrisPattern.FindStringSubmatch(text); m != nil {
				rec.PoMetal = SafeInt(m[1])
				rec.PoCrystal = SafeInt(m[2])
			}
		}
		return
	}
	if m := plunderPattern.FindStringSubmatch(text); m != nil && strings.Contains(text, "Он получает") {
		rec.WinMetal = SafeInt(m[1])
		rec.WinCrystal = SafeInt(m[2])
		rec.WinDeuterium = SafeInt(m[3])
	}
}

// readTitle は "A,B vs C (П: 1.471.000)" を読む。両方の目印がなければ無視する。
func (e *titleExtractor) readTitle(text string) {
	if !strings.Contains(text, " vs ") || !strings.Contains(text, "(П:") {
		return
	}
	parts := strings.SplitN(text, " vs ", 3)
	rest := strings.SplitN(parts[1], "(П:", 3)
	if len(rest) < 2 {
		return
	}
	e.hasTitle = true
	rec := &e.report.Record
	rec.Attacker = strings.TrimSpace(parts[0])
	rec.Defender = strings.TrimSpace(rest[0])
	rec.TotalLoss = SafeInt(lossReplacer.Replace(strings.TrimSpace(rest[1])))
	e.opts.Logger.Debugf("battle [%s] vs [%s] (loss: %d)", rec.Attacker, rec.Defender, rec.TotalLoss)
}

func (e *titleExtractor) fail(perr *ParseError) {
	if e.opts.Policy == PolicyLenient {
		e.opts.Logger.Warnf("skip: %v", perr)
		return
	}
	e.err = perr
}

func (e *titleExtractor) Report() (Report, error) {
	if e.err != nil {
		return Report{}, e.err
	}
	switch {
	case e.nonexistent:
		e.report.Status = StatusNonexistent
	case e.hasTitle && e.exists:
		e.report.Status = StatusBattle
	default:
		e.report.Status = StatusIncomplete
	}
	return e.report, nil
}
