package scraper

import (
	"fmt"
	"strings"

	"xnstat/internal/domain"
)

// Target は1回の取得対象。ログなら LogID、ギャラクシーなら Galaxy/System を使う。
type Target struct {
	LogID  int64
	Galaxy int
	System int
}

func (t Target) String() string {
	if t.LogID > 0 {
		return fmt.Sprintf("%d", t.LogID)
	}
	return fmt.Sprintf("%d:%d", t.Galaxy, t.System)
}

// PageSource は次に取るページを決める。
type PageSource interface {
	Next() (Target, bool)
	Path(t Target) string
	Referer(t Target) string
}

// LogIDSource は start から1つずつ増やしていく。終わりは無い。
type LogIDSource struct {
	next    int64
	referer string
}

func NewLogIDSource(start int64, baseURL string) *LogIDSource {
	if start < 1 {
		start = 1
	}
	return &LogIDSource{next: start, referer: strings.TrimRight(baseURL, "/") + "/log/"}
}

func (s *LogIDSource) Next() (Target, bool) {
	t := Target{LogID: s.next}
	s.next++
	return t, true
}

func (s *LogIDSource) Path(t Target) string {
	return fmt.Sprintf("log/%d/", t.LogID)
}

func (s *LogIDSource) Referer(Target) string {
	return s.referer
}

// CoordSource は指定範囲の星系を銀河順、星系順に回る。
type CoordSource struct {
	targets []Target
	pos     int
	referer string
}

func NewCoordSource(galaxies []int, systemMin, systemMax int, baseURL string) *CoordSource {
	if systemMin < 1 {
		systemMin = 1
	}
	if systemMax < 1 || systemMax > domain.MaxSystem {
		systemMax = domain.MaxSystem
	}
	if len(galaxies) == 0 {
		for g := 1; g <= domain.MaxGalaxy; g++ {
			galaxies = append(galaxies, g)
		}
	}
	var targets []Target
	for _, g := range galaxies {
		if g < 1 || g > domain.MaxGalaxy {
			continue
		}
		for sys := systemMin; sys <= systemMax; sys++ {
			targets = append(targets, Target{Galaxy: g, System: sys})
		}
	}
	return &CoordSource{targets: targets, referer: strings.TrimRight(baseURL, "/") + "/galaxy/"}
}

func (s *CoordSource) Next() (Target, bool) {
	if s.pos >= len(s.targets) {
		return Target{}, false
	}
	t := s.targets[s.pos]
	s.pos++
	return t, true
}

func (s *CoordSource) Path(t Target) string {
	return fmt.Sprintf("galaxy/%d/%d/", t.Galaxy, t.System)
}

func (s *CoordSource) Referer(Target) string {
	return s.referer
}

// Len は残りの件数。
func (s *CoordSource) Len() int {
	return len(s.targets) - s.pos
}
