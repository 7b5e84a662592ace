package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jstittsworth/player-valuation/internal/player"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResolveTrailingWindows(t *testing.T) {
	sel := NewSelector(day(2025, time.September, 28), fixedClock(time.Date(2025, time.July, 15, 18, 30, 0, 0, time.UTC)))

	tests := []struct {
		token string
		start time.Time
		end   time.Time
	}{
		{"yesterday", day(2025, time.July, 14), day(2025, time.July, 14)},
		{"last_7", day(2025, time.July, 8), day(2025, time.July, 15)},
		{"last_30", day(2025, time.June, 15), day(2025, time.July, 15)},
		{"LAST_90 ", day(2025, time.April, 16), day(2025, time.July, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			w := sel.Resolve(tt.token, nil, nil)
			assert.True(t, w.HasRange())
			assert.Equal(t, tt.start, w.Start)
			assert.Equal(t, tt.end, w.End)
		})
	}
}

func TestResolveAnchorsToSeasonEndInOffseason(t *testing.T) {
	sel := NewSelector(day(2025, time.September, 28), fixedClock(day(2026, time.January, 10)))

	w := sel.Resolve("last_7", nil, nil)
	assert.Equal(t, day(2025, time.September, 21), w.Start)
	assert.Equal(t, day(2025, time.September, 28), w.End)
	assert.Equal(t, "2025-09-21", w.StartDate())
	assert.Equal(t, "2025-09-28", w.EndDate())
}

func TestResolveSeasonTokens(t *testing.T) {
	sel := NewSelector(time.Time{}, fixedClock(day(2025, time.May, 1)))

	for _, token := range []string{"season_curr", "season_last", "pace_season", "bogus", ""} {
		w := sel.Resolve(token, nil, nil)
		assert.True(t, w.SeasonAnchor, token)
		assert.Empty(t, w.StartDate(), token)
	}
}

func TestResolveCustom(t *testing.T) {
	sel := NewSelector(time.Time{}, fixedClock(day(2025, time.May, 1)))
	start := time.Date(2025, time.April, 3, 15, 0, 0, 0, time.UTC)
	end := day(2025, time.April, 20)

	w := sel.Resolve("custom", &start, &end)
	assert.True(t, w.HasRange())
	assert.Equal(t, day(2025, time.April, 3), w.Start)
	assert.Equal(t, end, w.End)

	assert.True(t, sel.Resolve("custom", &start, nil).SeasonAnchor, "missing end")
	assert.True(t, sel.Resolve("custom", &end, &start).SeasonAnchor, "inverted dates")
}

func TestSelect(t *testing.T) {
	sel := NewSelector(time.Time{}, fixedClock(day(2025, time.May, 1)))

	ranged := Select(sel.Resolve("last_30", nil, nil))
	assert.Equal(t, player.BucketRange, ranged.Display)
	assert.Equal(t, player.BucketSeason, ranged.Current)
	assert.Equal(t, player.BucketRange, ranged.RangeSource)
	assert.False(t, ranged.Pace)

	paced := Select(sel.Resolve("pace_season", nil, nil))
	assert.True(t, paced.Pace)
	assert.Equal(t, player.BucketSeason, paced.Display)
	assert.Equal(t, player.BucketSeason, paced.RangeSource)

	last := Select(sel.Resolve("season_last", nil, nil))
	assert.Equal(t, player.BucketPriorSeason, last.Display)
	assert.Equal(t, player.BucketPriorSeason, last.Current)
	assert.Empty(t, last.Prior)

	unknown := Select(sel.Resolve("whatever", nil, nil))
	assert.Equal(t, player.BucketSeason, unknown.Display)
	assert.Equal(t, player.BucketPriorSeason, unknown.Prior)
}
