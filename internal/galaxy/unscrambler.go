package galaxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"xnstat/internal/domain"
	"xnstat/internal/htmlscan"

	"github.com/labstack/gommon/log"
	"golang.org/x/net/html"
)

const (
	scriptPrefix   = "var Deuterium = "
	packedMarker   = "eval(function(p,a,c,k,e,d)"
	rowsEndMarker  = "$('#galaxy').append(PrintRow());"
	selectorMarker = "$('#galaxy').append(PrintSelector(fleet_shortcut));"
)

var (
	ErrScriptNotFound        = errors.New("galaxy script not found on page")
	ErrBadScriptPrefix       = errors.New("Invalid format of script body: cannot parse it!")
	ErrPackedStartNotFound   = errors.New("parse error (1) cannot find start (and end) of packed function")
	ErrPackedEndNotFound     = errors.New("parse error (2) cannot find end of packed function")
	ErrUnpackedStartNotFound = errors.New("parse error (3) cannot find start of unpacked function")
)

// ScriptError はサンドボックス側で評価に失敗したとき。
type ScriptError struct {
	Stage string
	Err   error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("galaxy script %s: %v", e.Stage, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// ScriptEvaluator はページに埋め込まれた JS を評価する。
type ScriptEvaluator interface {
	// EvalString は式を評価して文字列を返す。
	EvalString(ctx context.Context, expr string) (string, error)
	// RunJSON は関数本体を実行し、戻り値を JSON で返す。
	RunJSON(ctx context.Context, body string) ([]byte, error)
}

type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Unscrambler はギャラクシー画面のスクリプトから行データを復元する。
type Unscrambler struct {
	eval   ScriptEvaluator
	logger Logger
}

func NewUnscrambler(eval ScriptEvaluator, logger Logger) *Unscrambler {
	if logger == nil {
		logger = log.New("galaxy")
	}
	return &Unscrambler{eval: eval, logger: logger}
}

// ParsePage はページからスクリプトを探して復元する。
func (u *Unscrambler) ParsePage(ctx context.Context, page string) (domain.SystemRows, error) {
	body, err := LocateScript(page)
	if err != nil {
		return domain.SystemRows{}, err
	}
	return u.Unscramble(ctx, body)
}

// Unscramble は script 本文から row[N] の配列を取り出す。
// 失敗したときは空の SystemRows とエラーを返す（途中までの結果は返さない）。
func (u *Unscrambler) Unscramble(ctx context.Context, body string) (domain.SystemRows, error) {
	if !strings.HasPrefix(body, scriptPrefix) {
		return domain.SystemRows{}, ErrBadScriptPrefix
	}

	var statements string
	if start := strings.Index(body, packedMarker); start >= 0 {
		end := strings.Index(body, rowsEndMarker)
		if end == -1 || end < start {
			return domain.SystemRows{}, ErrPackedEndNotFound
		}
		// eval(function(p,a,c,k,e,d){...}(...)) -> function(p,a,c,k,e,d){...}(...)
		packed := strings.TrimSpace(body[start:end])
		if len(packed) < 6 {
			return domain.SystemRows{}, ErrPackedEndNotFound
		}
		packed = packed[5 : len(packed)-1]
		u.logger.Debugf("unpacking galaxy script (%d bytes)", len(packed))
		decoded, err := u.eval.EvalString(ctx, packed)
		if err != nil {
			return domain.SystemRows{}, &ScriptError{Stage: "unpack", Err: err}
		}
		statements = decoded
	} else {
		end := strings.Index(body, rowsEndMarker)
		if end == -1 {
			return domain.SystemRows{}, ErrPackedStartNotFound
		}
		start := strings.Index(body, selectorMarker)
		if start == -1 || start+len(selectorMarker) > end {
			return domain.SystemRows{}, ErrUnpackedStartNotFound
		}
		statements = strings.TrimSpace(body[start+len(selectorMarker) : end])
	}

	raw, err := u.eval.RunJSON(ctx, "var row = []; "+statements+"\nreturn row;")
	if err != nil {
		return domain.SystemRows{}, &ScriptError{Stage: "rows", Err: err}
	}
	rows, err := u.decodeRows(raw)
	if err != nil {
		return domain.SystemRows{}, &ScriptError{Stage: "decode", Err: err}
	}
	return rows, nil
}

func (u *Unscrambler) decodeRows(raw []byte) (domain.SystemRows, error) {
	var rows domain.SystemRows
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return rows, err
	}
	for slot, item := range items {
		if len(item) == 0 || string(item) == "null" {
			continue
		}
		if slot < 1 || slot > domain.SlotsPerSystem {
			u.logger.Warnf("galaxy row outside slot range: %d", slot)
			continue
		}
		row := &domain.GalaxyRow{}
		if err := json.Unmarshal(item, row); err != nil {
			return domain.SystemRows{}, fmt.Errorf("row[%d]: %w", slot, err)
		}
		row.Slot = slot
		rows[slot] = row
	}
	return rows, nil
}

// LocateScript は <div id="galaxy"> 配下の script 本文を返す。
func LocateScript(page string) (string, error) {
	loc := &scriptLocator{}
	if err := htmlscan.ScanString(page, loc); err != nil {
		return "", err
	}
	if loc.body == "" {
		return "", ErrScriptNotFound
	}
	return loc.body, nil
}

type scriptLocator struct {
	inGalaxy bool
	body     string
}

func (l *scriptLocator) HandleStartTag(tag string, attrs []html.Attribute) {
	if tag != "div" {
		return
	}
	if id, ok := htmlscan.Attr(attrs, "id"); ok && id == "galaxy" {
		l.inGalaxy = true
	}
}

func (l *scriptLocator) HandleEndTag(tag string) {
	if l.inGalaxy && tag == "script" {
		l.inGalaxy = false
	}
}

func (l *scriptLocator) HandleText(text, tag string, _ []html.Attribute) {
	if l.inGalaxy && tag == "script" {
		l.body = text
	}
}
