package battlelog

import (
	"math"
	"strconv"
	"strings"
)

// SafeInt はゲーム表記の数値を整数にする。
// "1.471.000" -> 1471000, "1.601kk" -> 1601000000, 数値でなければ 0。
// kk を掛けて int64 に収まらないものも 0。
func SafeInt(s string) int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ".", ""))
	var multiplier int64 = 1
	if strings.HasSuffix(s, "kk") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "kk"))
		multiplier = 1000000
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	if n > math.MaxInt64/multiplier || n < math.MinInt64/multiplier {
		return 0
	}
	return n * multiplier
}
