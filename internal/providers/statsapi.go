package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/player"
)

// StatsQuery selects one official-feed pull
type StatsQuery struct {
	Group  player.StatGroup
	Season int
	// Start and End (YYYY-MM-DD) switch the query to a date range
	Start string
	End   string
}

// Label names the query for logs, metrics and cache keys
func (q StatsQuery) Label() string {
	if q.Start != "" {
		return fmt.Sprintf("%s:%d:%s:%s", q.Group, q.Season, q.Start, q.End)
	}
	return fmt.Sprintf("%s:%d", q.Group, q.Season)
}

// StatsFeedClient reads the official MLB Stats API
type StatsFeedClient struct {
	fetcher *Fetcher
	baseURL string
	logger  *logrus.Logger
}

// NewStatsFeedClient creates a stats feed client
func NewStatsFeedClient(fetcher *Fetcher, baseURL string, logger *logrus.Logger) *StatsFeedClient {
	return &StatsFeedClient{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Stats API response structures
type statsResponse struct {
	Stats []struct {
		Splits []statsSplit `json:"splits"`
	} `json:"stats"`
}

type statsSplit struct {
	Player struct {
		ID         int    `json:"id"`
		FullName   string `json:"fullName"`
		CurrentAge int    `json:"currentAge"`
	} `json:"player"`
	Team struct {
		ID           int    `json:"id"`
		Abbreviation string `json:"abbreviation"`
	} `json:"team"`
	Position struct {
		Abbreviation string `json:"abbreviation"`
	} `json:"position"`
	Stat map[string]json.RawMessage `json:"stat"`
}

var hittingFields = map[string]string{
	"gamesPlayed":      player.StatG,
	"plateAppearances": player.StatPA,
	"atBats":           player.StatAB,
	"hits":             player.StatH,
	"homeRuns":         player.StatHR,
	"rbi":              player.StatRBI,
	"runs":             player.StatR,
	"stolenBases":      player.StatSB,
	"baseOnBalls":      player.StatBB,
	"strikeOuts":       player.StatSO,
	"avg":              player.StatAVG,
	"obp":              player.StatOBP,
	"slg":              player.StatSLG,
	"ops":              player.StatOPS,
}

var pitchingFields = map[string]string{
	"gamesPlayed":       player.StatG,
	"gamesStarted":      player.StatGS,
	"inningsPitched":    player.StatIP,
	"wins":              player.StatW,
	"saves":             player.StatSV,
	"holds":             player.StatHolds,
	"strikeOuts":        player.StatSO,
	"baseOnBalls":       player.StatBB,
	"battersFaced":      player.StatBF,
	"era":               player.StatERA,
	"whip":              player.StatWHIP,
	"strikeoutsPer9Inn": player.StatK9,
}

// Fetch pulls one group for a season or a date range
func (c *StatsFeedClient) Fetch(ctx context.Context, q StatsQuery) ([]player.StatRow, error) {
	body, err := c.fetcher.Get(ctx, c.buildURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("stats feed %s: %w", q.Label(), err)
	}
	rows, err := ParseStatsResponse(body, q.Group)
	if err != nil {
		return nil, fmt.Errorf("stats feed %s: %w", q.Label(), err)
	}

	c.logger.WithFields(logrus.Fields{
		"source": "statsapi",
		"query":  q.Label(),
		"rows":   len(rows),
	}).Debug("Fetched official stats")
	return rows, nil
}

func (c *StatsFeedClient) buildURL(q StatsQuery) string {
	params := url.Values{}
	params.Set("group", string(q.Group))
	params.Set("season", strconv.Itoa(q.Season))
	params.Set("sportId", "1")
	params.Set("playerPool", "ALL")
	params.Set("limit", "5000")
	params.Set("hydrate", "person,team")
	if q.Start != "" && q.End != "" {
		params.Set("stats", "byDateRange")
		params.Set("startDate", q.Start)
		params.Set("endDate", q.End)
	} else {
		params.Set("stats", "season")
	}
	return c.baseURL + "/stats?" + params.Encode()
}

// ParseStatsResponse maps a stats payload to rows. Unparsable values such as "-.--" stay absent.
func ParseStatsResponse(body []byte, group player.StatGroup) ([]player.StatRow, error) {
	var resp statsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode stats response: %w", err)
	}

	fields := hittingFields
	if group == player.GroupPitching {
		fields = pitchingFields
	}

	var rows []player.StatRow
	for _, block := range resp.Stats {
		for _, split := range block.Splits {
			if split.Player.ID <= 0 {
				continue
			}
			rows = append(rows, player.StatRow{
				PlayerID: split.Player.ID,
				Name:     split.Player.FullName,
				Team:     split.Team.Abbreviation,
				Position: split.Position.Abbreviation,
				Age:      split.Player.CurrentAge,
				Group:    group,
				Stats:    mapStatFields(split.Stat, fields),
			})
		}
	}
	return rows, nil
}

func mapStatFields(raw map[string]json.RawMessage, fields map[string]string) player.StatLine {
	line := make(player.StatLine, len(fields))
	for field, key := range fields {
		value, ok := raw[field]
		if !ok {
			continue
		}
		var v float64
		var parsed bool
		if key == player.StatIP {
			v, parsed = parseInnings(value)
		} else {
			v, parsed = parseNumeric(value)
		}
		if parsed {
			line[key] = v
		}
	}
	return line
}

// parseNumeric accepts JSON numbers and numeric strings such as ".287"
func parseNumeric(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseInnings converts thirds notation: "45.1" is 45 and one third innings
func parseInnings(raw json.RawMessage) (float64, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = strings.TrimSpace(string(raw))
	}
	whole, frac, hasFrac := strings.Cut(strings.TrimSpace(s), ".")
	innings, err := strconv.Atoi(whole)
	if err != nil {
		return 0, false
	}
	if !hasFrac || frac == "" || frac == "0" {
		return float64(innings), true
	}
	outs, err := strconv.Atoi(frac)
	if err != nil || outs < 0 || outs > 2 {
		return 0, false
	}
	return float64(innings) + float64(outs)/3, true
}
