package battlelog

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"xnstat/internal/domain"
	"xnstat/internal/htmlscan"

	"github.com/labstack/gommon/log"
)

// Status はページの分類結果。
type Status int

const (
	// StatusIncomplete は戦闘データとして確定できなかったページ。
	StatusIncomplete Status = iota
	// StatusNonexistent はサイト側が「そのログは無い」と返したページ。
	StatusNonexistent
	StatusBattle
)

func (s Status) String() string {
	switch s {
	case StatusNonexistent:
		return "nonexistent"
	case StatusBattle:
		return "battle"
	default:
		return "incomplete"
	}
}

// ResultPolicy は結果欄の行がテンプレートに合わなかったときの扱い。
type ResultPolicy int

const (
	// PolicyStrict はそのページの処理を *ParseError で打ち切る。
	PolicyStrict ResultPolicy = iota
	// PolicyLenient はログに残して読み飛ばす。
	PolicyLenient
)

// ParsePolicy は設定文字列からポリシーを決める。
func ParsePolicy(s string) (ResultPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "lenient", "skip":
		return PolicyLenient, nil
	default:
		return PolicyStrict, fmt.Errorf("unknown result policy: %q", s)
	}
}

// ParseError は期待した書式の行を読めなかったことを表す。
type ParseError struct {
	What string
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: [%s]", e.What, e.Text)
}

// Logger は抽出処理が使う最小限のロガー。
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Options は抽出器の設定。
type Options struct {
	// Location は戦闘時刻の解釈に使う。nil なら time.Local。
	Location *time.Location
	Policy   ResultPolicy
	Logger   Logger
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Logger == nil {
		o.Logger = log.New("battlelog")
	}
	return o
}

// Report は1ページ分の抽出結果。Record.LogID は呼び出し側で埋める。
type Report struct {
	Status       Status
	Record       domain.BattleRecord
	TimeText     string
	AttackerLoss int64
	DefenderLoss int64
}

// Extractor は1ページ専用の抽出器。ページごとに作り直す。
type Extractor interface {
	htmlscan.Visitor
	Report() (Report, error)
}

const (
	VariantFleetReport = "uni5"
	VariantTitle       = "uni4"
)

// New は variant に応じた抽出器を作る。
func New(variant string, opts Options) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(variant)) {
	case "", VariantFleetReport, "fleet":
		return NewFleetReportExtractor(opts), nil
	case VariantTitle, "legacy", "title":
		return NewTitleExtractor(opts), nil
	default:
		return nil, fmt.Errorf("unknown extractor variant: %q", variant)
	}
}

// Parse は page を走査して ex の結果を返す。
func Parse(page string, ex Extractor) (Report, error) {
	if err := htmlscan.ScanString(page, ex); err != nil {
		return Report{}, err
	}
	return ex.Report()
}

const (
	battleTitlePrefix    = "Боевой доклад"
	battleOccurredSuffix = "произошёл бой между следующими флотами:"
	noticeNotAvailable   = "Данный лог боя пока недоступен для просмотра!"
	noticeNotFound       = "Запрашиваемого лога не существует в базе данных"
	attackerPrefix       = "Атакующий "
	defenderPrefix       = "Защитник "
	moonChancePrefix     = "Шанс появления луны составляет "
	battleTimeLayout     = "02-01-2006 15:04:05"
)

var (
	plunderPattern = regexp.MustCompile(`([\d.]+) металла, ([\d.]+) кристалла и ([\d.]+) дейтерия`)
	lossPattern    = regexp.MustCompile(`потерял ([\d.]+) единиц`)
	debrisPattern  = regexp.MustCompile(`([\d.]+) металла и ([\d.]+) кристалла`)
	coordsPattern  = regexp.MustCompile(`\[(\d+):(\d+):(\d+)\]`)
)

func isNonexistentNotice(text string) bool {
	return strings.Contains(text, noticeNotAvailable) || strings.Contains(text, noticeNotFound)
}

// battleTime は "В 30-11-2015 03:25:26 произошёл бой..." の日時部分（2..21文字目）を読む。
func battleTime(text string, loc *time.Location) (string, int64, *ParseError) {
	runes := []rune(text)
	if len(runes) < 21 {
		return "", 0, &ParseError{What: "battle time", Text: text}
	}
	ts := string(runes[2:21])
	t, err := time.ParseInLocation(battleTimeLayout, ts, loc)
	if err != nil {
		return ts, 0, &ParseError{What: "battle time", Text: text}
	}
	return ts, t.Unix(), nil
}
