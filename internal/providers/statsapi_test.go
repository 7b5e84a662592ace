package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/player-valuation/internal/player"
)

const pitchingStatsJSON = `{
  "stats": [{
    "splits": [
      {
        "player": {"id": 669373, "fullName": "Tarik Skubal", "currentAge": 28},
        "team": {"id": 116, "abbreviation": "DET"},
        "position": {"abbreviation": "P"},
        "stat": {
          "gamesPlayed": 31, "gamesStarted": 31, "inningsPitched": "192.1",
          "wins": 18, "strikeOuts": 228, "battersFaced": 753,
          "era": "2.39", "whip": "0.92", "strikeoutsPer9Inn": "10.67"
        }
      },
      {
        "player": {"id": 700002, "fullName": "Opener Guy"},
        "position": {"abbreviation": "P"},
        "stat": {"inningsPitched": "0.2", "era": "-.--", "whip": "*.**", "strikeOuts": 1}
      },
      {
        "player": {"id": 0, "fullName": "Nobody"},
        "stat": {"wins": 1}
      }
    ]
  }]
}`

func TestParseStatsResponsePitching(t *testing.T) {
	rows, err := ParseStatsResponse([]byte(pitchingStatsJSON), player.GroupPitching)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	skubal := rows[0]
	assert.Equal(t, 669373, skubal.PlayerID)
	assert.Equal(t, "DET", skubal.Team)
	assert.Equal(t, 28, skubal.Age)
	assert.Equal(t, player.GroupPitching, skubal.Group)
	assert.InDelta(t, 192+1.0/3, skubal.Stats[player.StatIP], 1e-9)
	assert.Equal(t, 2.39, skubal.Stats[player.StatERA])
	assert.Equal(t, 228.0, skubal.Stats[player.StatSO])
	assert.Equal(t, 753.0, skubal.Stats[player.StatBF])

	opener := rows[1]
	assert.InDelta(t, 2.0/3, opener.Stats[player.StatIP], 1e-9)
	_, hasERA := opener.Stats.Get(player.StatERA)
	assert.False(t, hasERA, "placeholder rates stay absent")
	_, hasWHIP := opener.Stats.Get(player.StatWHIP)
	assert.False(t, hasWHIP)
}

func TestParseInnings(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{`"45.1"`, 45 + 1.0/3, true},
		{`"45.2"`, 45 + 2.0/3, true},
		{`"45.0"`, 45, true},
		{`"12"`, 12, true},
		{`7.2`, 7 + 2.0/3, true},
		{`"45.3"`, 0, false},
		{`"abc"`, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseInnings(json.RawMessage(tt.raw))
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.InDelta(t, tt.want, got, 1e-9, tt.raw)
	}
}

func TestParseStatsResponseRejectsGarbage(t *testing.T) {
	_, err := ParseStatsResponse([]byte("<html>"), player.GroupHitting)
	assert.Error(t, err)
}

func TestStatsFeedClientBuildsQueries(t *testing.T) {
	var queries []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		q := r.URL.Query()
		queries = append(queries, map[string]string{
			"stats":     q.Get("stats"),
			"group":     q.Get("group"),
			"season":    q.Get("season"),
			"startDate": q.Get("startDate"),
			"endDate":   q.Get("endDate"),
		})
		_, _ = w.Write([]byte(`{"stats":[{"splits":[{"player":{"id":1,"fullName":"A B"},"stat":{"homeRuns":3,"ops":".950"}}]}]}`))
	}))
	defer server.Close()

	client := NewStatsFeedClient(NewFetcher(0, 0, testLogger()), server.URL, testLogger())

	rows, err := client.Fetch(context.Background(), StatsQuery{Group: player.GroupHitting, Season: 2025})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.95, rows[0].Stats[player.StatOPS])
	assert.Equal(t, 3.0, rows[0].Stats[player.StatHR])

	_, err = client.Fetch(context.Background(), StatsQuery{Group: player.GroupPitching, Season: 2025, Start: "2025-06-01", End: "2025-06-07"})
	require.NoError(t, err)

	require.Len(t, queries, 2)
	assert.Equal(t, map[string]string{"stats": "season", "group": "hitting", "season": "2025", "startDate": "", "endDate": ""}, queries[0])
	assert.Equal(t, map[string]string{"stats": "byDateRange", "group": "pitching", "season": "2025", "startDate": "2025-06-01", "endDate": "2025-06-07"}, queries[1])
}

func TestStatsQueryLabel(t *testing.T) {
	assert.Equal(t, "hitting:2025", StatsQuery{Group: player.GroupHitting, Season: 2025}.Label())
	assert.Equal(t, "pitching:2025:2025-06-01:2025-06-07", StatsQuery{Group: player.GroupPitching, Season: 2025, Start: "2025-06-01", End: "2025-06-07"}.Label())
}
