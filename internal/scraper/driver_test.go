package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	pages    map[string]string
	referers []string
	paths    []string
	onFetch  func(path string)
}

func (f *fakeFetcher) Fetch(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	if f.onFetch != nil {
		f.onFetch(path)
	}
	page, ok := f.pages[path]
	if !ok {
		return "", fmt.Errorf("HTTP 404")
	}
	return page, nil
}

func (f *fakeFetcher) SetReferer(ref string) { f.referers = append(f.referers, ref) }

// ページ本文をそのまま結果として解釈するハンドラ
func scriptedHandler() Handler {
	return HandlerFunc(func(_ context.Context, t Target, page string) (Outcome, error) {
		switch page {
		case "ok":
			return OutcomeStored, nil
		case "dup":
			return OutcomeDuplicate, nil
		case "gone":
			return OutcomeNonexistent, nil
		case "half":
			return OutcomeIncomplete, nil
		}
		return 0, errors.New("bad page " + t.String())
	})
}

type capture struct{ lines []string }

func (c *capture) Debugf(string, ...interface{}) {}
func (c *capture) Warnf(string, ...interface{})  {}
func (c *capture) Errorf(string, ...interface{}) {}
func (c *capture) Infof(format string, args ...interface{}) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func TestDriverStopsAtThreshold(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"log/10/": "ok",
		"log/11/": "gone",
		"log/12/": "garbage",
		"log/13/": "dup",
		"log/14/": "gone",
		"log/15/": "half",
	}}
	d := NewDriver(NewLogIDSource(10, "https://uni5.xnova.su"), f, scriptedHandler(), Options{MaxErrors: 3})

	stats := d.Run(context.Background())

	assert.Equal(t, StopThresholdHit, stats.Stop)
	assert.Equal(t, 1, stats.ExitCode())
	assert.Equal(t, 2, stats.Parsed)
	assert.Equal(t, 1, stats.Duplicates)
	// 14 gone, 15 half, 16 fetch error で3連続
	assert.Equal(t, []Target{{LogID: 12}, {LogID: 15}, {LogID: 16}}, stats.Failed)
	assert.Equal(t, []Target{{LogID: 11}, {LogID: 14}}, stats.Nonexistent)
	assert.Equal(t, "log/16/", f.paths[len(f.paths)-1])
	assert.Equal(t, "https://uni5.xnova.su/log/", f.referers[0])
	assert.NotEmpty(t, stats.RunID)
}

func TestDriverSuccessResetsCounter(t *testing.T) {
	pages := map[string]string{}
	for i := 1; i <= 9; i++ {
		page := "gone"
		if i%2 == 0 {
			page = "ok"
		}
		pages[fmt.Sprintf("log/%d/", i)] = page
	}
	f := &fakeFetcher{pages: pages}
	d := NewDriver(NewLogIDSource(1, "http://x"), f, scriptedHandler(), Options{MaxErrors: 2})

	stats := d.Run(context.Background())

	// 9 (gone) と 10 (取得失敗) で止まる
	assert.Equal(t, StopThresholdHit, stats.Stop)
	assert.Equal(t, 4, stats.Parsed)
	assert.Len(t, stats.Nonexistent, 5)
	assert.Equal(t, []Target{{LogID: 10}}, stats.Failed)
}

func TestDriverExhaustsFiniteSource(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"galaxy/1/1/": "ok",
		"galaxy/1/2/": "garbage",
		"galaxy/1/3/": "ok",
	}}
	src := NewCoordSource([]int{1}, 1, 3, "https://uni5.xnova.su/")
	stats := NewDriver(src, f, scriptedHandler(), Options{MaxErrors: 5}).Run(context.Background())

	assert.Equal(t, StopExhausted, stats.Stop)
	assert.Equal(t, 0, stats.ExitCode())
	assert.Equal(t, 2, stats.Parsed)
	assert.Equal(t, []Target{{Galaxy: 1, System: 2}}, stats.Failed)
	assert.Equal(t, "https://uni5.xnova.su/galaxy/", f.referers[0])
}

func TestDriverInterruptedDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{pages: map[string]string{"log/1/": "ok"}}
	f.onFetch = func(string) { cancel() }

	d := NewDriver(NewLogIDSource(1, "http://x"), f, scriptedHandler(), Options{MaxErrors: 5, Delay: time.Hour})
	done := make(chan Stats, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case stats := <-done:
		assert.Equal(t, StopInterrupted, stats.Stop)
		assert.Equal(t, 0, stats.ExitCode())
		assert.Equal(t, 1, stats.Parsed)
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop on cancel")
	}
}

func TestStatsReport(t *testing.T) {
	c := &capture{}
	Stats{
		RunID:       "run",
		Parsed:      7,
		Failed:      []Target{{LogID: 3}, {LogID: 5}},
		Nonexistent: []Target{{LogID: 9}},
	}.Report(c, "logs")

	require.GreaterOrEqual(t, len(c.lines), 3)
	assert.Equal(t, "STATS: Failed logs: 3,5", c.lines[0])
	assert.Equal(t, "STATS: Non-existent logs: 9", c.lines[1])
	assert.Equal(t, "STATS: Succesfully parsed: 7 logs", c.lines[2])

	c = &capture{}
	Stats{Parsed: 0}.Report(c, "")
	assert.True(t, strings.HasPrefix(c.lines[0], "STATS: Succesfully parsed: 0 logs"))
}

func TestCoordSourceBounds(t *testing.T) {
	src := NewCoordSource([]int{2, 9}, 498, 1000, "http://x")
	assert.Equal(t, 2, src.Len())
	first, ok := src.Next()
	require.True(t, ok)
	assert.Equal(t, "galaxy/2/498/", src.Path(first))
	_, _ = src.Next()
	_, ok = src.Next()
	assert.False(t, ok)

	all := NewCoordSource(nil, 0, 0, "http://x")
	assert.Equal(t, 5*499, all.Len())
}
