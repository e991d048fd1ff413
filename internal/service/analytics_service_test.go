package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smartstudy/platform-api/internal/models"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse day %s: %v", value, err)
	}
	return parsed
}

func TestComputeStreak(t *testing.T) {
	now := day(t, "2026-08-28").Add(9 * time.Hour)

	cases := []struct {
		name string
		days []string
		want models.Streak
	}{
		{
			name: "no downloads",
			days: nil,
			want: models.Streak{},
		},
		{
			name: "single download today",
			days: []string{"2026-08-28"},
			want: models.Streak{Current: 1, Max: 1},
		},
		{
			name: "run ending today",
			days: []string{"2026-08-28", "2026-08-27", "2026-08-26"},
			want: models.Streak{Current: 3, Max: 3},
		},
		{
			name: "run broken yesterday",
			days: []string{"2026-08-27", "2026-08-26", "2026-08-25"},
			want: models.Streak{Current: 0, Max: 3},
		},
		{
			name: "old run longer than current",
			days: []string{"2026-08-28", "2026-08-27", "2026-08-20", "2026-08-19", "2026-08-18", "2026-08-17"},
			want: models.Streak{Current: 2, Max: 4},
		},
		{
			name: "gap inside history",
			days: []string{"2026-08-28", "2026-08-25", "2026-08-24"},
			want: models.Streak{Current: 1, Max: 2},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			days := make([]time.Time, 0, len(tc.days))
			for _, d := range tc.days {
				days = append(days, day(t, d))
			}
			assert.Equal(t, tc.want, computeStreak(days, now))
		})
	}
}
