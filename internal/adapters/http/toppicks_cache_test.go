package http

import (
	"testing"
	"time"
)

func TestTopPicksMaxAge(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"midday", time.Date(2024, 3, 15, 12, 0, 0, 0, loc), 300},
		{"five minutes left", time.Date(2024, 3, 15, 23, 55, 0, 0, loc), 300},
		{"one minute left", time.Date(2024, 3, 15, 23, 59, 0, 0, loc), 60},
		{"last second", time.Date(2024, 12, 31, 23, 59, 59, 0, loc), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := topPicksMaxAge(tt.now); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
