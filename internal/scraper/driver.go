package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Outcome はページ1枚の処理結果。
type Outcome int

const (
	OutcomeStored Outcome = iota
	OutcomeDuplicate
	OutcomeIncomplete
	OutcomeNonexistent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeNonexistent:
		return "nonexistent"
	}
	return "unknown"
}

// Fetcher はページ取得側。xnova.Client が満たす。
type Fetcher interface {
	Fetch(ctx context.Context, path string) (string, error)
	SetReferer(ref string)
}

// Handler は取得したページを解析して保存する。
type Handler interface {
	Handle(ctx context.Context, t Target, page string) (Outcome, error)
}

type HandlerFunc func(ctx context.Context, t Target, page string) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, t Target, page string) (Outcome, error) {
	return f(ctx, t, page)
}

type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type Options struct {
	// MaxErrors 回連続で失敗したら止まる。
	MaxErrors int
	Delay     time.Duration
	Logger    Logger
}

const (
	DefaultDelay           = 5 * time.Second
	DefaultMaxErrors       = 20
	DefaultLegacyMaxErrors = 10
)

type StopReason int

const (
	StopExhausted StopReason = iota
	StopThresholdHit
	StopInterrupted
)

func (r StopReason) String() string {
	switch r {
	case StopThresholdHit:
		return "threshold"
	case StopInterrupted:
		return "interrupted"
	}
	return "exhausted"
}

// Stats は1回の実行結果。
// Parsed は保存済みの重複も含む。
type Stats struct {
	RunID       string
	Parsed      int
	Duplicates  int
	Failed      []Target
	Nonexistent []Target
	Stop        StopReason
	Started     time.Time
	Finished    time.Time
}

// ExitCode は閾値で止まったときだけ 1。
func (s Stats) ExitCode() int {
	if s.Stop == StopThresholdHit {
		return 1
	}
	return 0
}

// Report は STATS 行を出す。unit は "logs" や "systems"。
func (s Stats) Report(logger Logger, unit string) {
	if unit == "" {
		unit = "logs"
	}
	if len(s.Failed) > 0 {
		logger.Infof("STATS: Failed %s: %s", unit, joinTargets(s.Failed))
	}
	if len(s.Nonexistent) > 0 {
		logger.Infof("STATS: Non-existent %s: %s", unit, joinTargets(s.Nonexistent))
	}
	logger.Infof("STATS: Succesfully parsed: %d %s", s.Parsed, unit)
	logger.Infof("STATS: run %s stopped (%s) after %s, %s duplicates",
		s.RunID, s.Stop, s.Finished.Sub(s.Started).Round(time.Second), humanize.Comma(int64(s.Duplicates)))
}

func joinTargets(ts []Target) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// Driver は取得→解析→分類を1件ずつ順番に回す。
type Driver struct {
	src     PageSource
	fetcher Fetcher
	handler Handler
	opts    Options
}

func NewDriver(src PageSource, fetcher Fetcher, handler Handler, opts Options) *Driver {
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Driver{src: src, fetcher: fetcher, handler: handler, opts: opts}
}

// Run は止まるまで回して結果を返す。
func (d *Driver) Run(ctx context.Context) Stats {
	log := d.opts.Logger
	stats := Stats{RunID: uuid.NewString(), Started: time.Now()}

	numErrors := 0
	for {
		if ctx.Err() != nil {
			stats.Stop = StopInterrupted
			break
		}
		t, ok := d.src.Next()
		if !ok {
			stats.Stop = StopExhausted
			break
		}

		if ref := d.src.Referer(t); ref != "" {
			d.fetcher.SetReferer(ref)
		}
		path := d.src.Path(t)
		log.Debugf("downloading %s...", path)
		page, err := d.fetcher.Fetch(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				stats.Stop = StopInterrupted
				break
			}
			numErrors++
			stats.Failed = append(stats.Failed, t)
			log.Errorf("failed to download %s: %v", path, err)
		} else {
			outcome, herr := d.handler.Handle(ctx, t, page)
			switch {
			case herr != nil:
				numErrors++
				stats.Failed = append(stats.Failed, t)
				log.Errorf("failed to parse %s: %v", t, herr)
			case outcome == OutcomeNonexistent:
				numErrors++
				stats.Nonexistent = append(stats.Nonexistent, t)
				log.Debugf("%s does not exist", t)
			case outcome == OutcomeIncomplete:
				numErrors++
				stats.Failed = append(stats.Failed, t)
				log.Warnf("%s: page is incomplete", t)
			case outcome == OutcomeDuplicate:
				stats.Parsed++
				stats.Duplicates++
				numErrors = 0
			default:
				stats.Parsed++
				numErrors = 0
			}
		}

		if numErrors >= d.opts.MaxErrors {
			log.Infof("max errors (%d) exceeded, exiting", numErrors)
			stats.Stop = StopThresholdHit
			break
		}
		if !sleepCtx(ctx, d.opts.Delay) {
			stats.Stop = StopInterrupted
			break
		}
	}
	stats.Finished = time.Now()
	return stats
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
