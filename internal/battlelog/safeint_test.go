package battlelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeInt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"plain", "8000", 8000},
		{"dotted", "1.471.000", 1471000},
		{"kk suffix", "1.601kk", 1601000000},
		{"kk without dots", "3kk", 3000000},
		{"surrounding spaces", " 42 ", 42},
		{"empty", "", 0},
		{"garbage", "abc", 0},
		{"trailing garbage", "12abc", 0},
		{"only kk", "kk", 0},
		{"negative", "-5", -5},
		{"kk overflow", "10.000.000.000.000kk", 0},
		{"negative kk overflow", "-10.000.000.000.000kk", 0},
		{"largest kk", "9.223.372.036.854kk", 9223372036854000000},
		{"beyond int64", "99999999999999999999", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeInt(tt.in))
		})
	}
}
