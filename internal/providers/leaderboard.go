package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/player"
)

// Leaderboard describes one advanced-metrics CSV export. Columns maps CSV headers to stat keys;
// key sets are disjoint across the catalog.
type Leaderboard struct {
	Name       string
	Path       string // fmt template taking the season
	IDColumn   string
	NameColumn string
	Columns    map[string]string
}

// LeaderboardCatalog lists the known leaderboards by name
var LeaderboardCatalog = map[string]Leaderboard{
	"exit_velocity": {
		Name:       "exit_velocity",
		Path:       "/leaderboard/statcast?type=batter&year=%d&position=&team=&min=q&csv=true",
		IDColumn:   "player_id",
		NameColumn: "last_name, first_name",
		Columns: map[string]string{
			"avg_hit_speed": "avg_hit_speed",
			"max_hit_speed": "max_hit_speed",
			"avg_hit_angle": "avg_hit_angle",
			"ev95percent":   "hard_hit_pct",
			"brl_percent":   "barrel_pct",
		},
	},
	"sprint_speed": {
		Name:       "sprint_speed",
		Path:       "/leaderboard/sprint_speed?year=%d&position=&team=&min=10&csv=true",
		IDColumn:   "player_id",
		NameColumn: "last_name, first_name",
		Columns: map[string]string{
			"sprint_speed": "sprint_speed",
			"hp_to_1b":     "home_to_first",
			"bolts":        "bolts",
		},
	},
	"outs_above_average": {
		Name:       "outs_above_average",
		Path:       "/leaderboard/outs_above_average?type=Fielder&startYear=%[1]d&endYear=%[1]d&split=no&team=&range=year&min=q&pos=&roles=&viz=hide&csv=true",
		IDColumn:   "player_id",
		NameColumn: "last_name, first_name",
		Columns: map[string]string{
			"outs_above_average":      "oaa",
			"fielding_runs_prevented": "fielding_runs_prevented",
		},
	},
	"pitch_movement": {
		Name:       "pitch_movement",
		Path:       "/leaderboard/pitch-movement?year=%d&team=&min=q&pitch_type=FF&hand=&x=pitcher_break_x&z=pitcher_break_z&csv=true",
		IDColumn:   "pitcher_id",
		NameColumn: "last_name, first_name",
		Columns: map[string]string{
			"avg_speed":           "ff_velocity",
			"pitcher_break_z":     "ff_break_z",
			"pitcher_break_x":     "ff_break_x",
			"diff_z":              "ff_break_z_vs_avg",
			"percent_rank_diff_z": "ff_break_z_pct_rank",
		},
	},
}

// ParseStats counts what a leaderboard parse kept and skipped
type ParseStats struct {
	Rows    int
	Skipped int
}

// LeaderboardClient downloads leaderboard CSV exports
type LeaderboardClient struct {
	fetcher *Fetcher
	baseURL string
	logger  *logrus.Logger
}

// NewLeaderboardClient creates a leaderboard client
func NewLeaderboardClient(fetcher *Fetcher, baseURL string, logger *logrus.Logger) *LeaderboardClient {
	return &LeaderboardClient{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Fetch downloads and parses one leaderboard for a season
func (c *LeaderboardClient) Fetch(ctx context.Context, board Leaderboard, season int) ([]player.LeaderboardRow, error) {
	body, err := c.fetcher.Get(ctx, c.baseURL+fmt.Sprintf(board.Path, season), nil)
	if err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", board.Name, err)
	}

	rows, stats, err := ParseLeaderboard(bytes.NewReader(body), board)
	if err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", board.Name, err)
	}

	entry := c.logger.WithFields(logrus.Fields{
		"source":  "leaderboard",
		"board":   board.Name,
		"rows":    stats.Rows,
		"skipped": stats.Skipped,
	})
	if stats.Skipped > 0 {
		entry.Debug("Skipped malformed leaderboard rows")
	} else {
		entry.Debug("Fetched leaderboard")
	}
	return rows, nil
}

// ParseLeaderboard reads a delimited export with a header row. The header-to-index map is built
// from the file itself. Rows shorter than the header or with a non-numeric ID are skipped;
// unparsable numeric cells become 0.
func ParseLeaderboard(r io.Reader, board Leaderboard) ([]player.LeaderboardRow, ParseStats, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ParseStats{}, nil
		}
		return nil, ParseStats{}, fmt.Errorf("failed to read header: %w", err)
	}

	index := headerIndex(header)

	idCol, ok := index[strings.ToLower(board.IDColumn)]
	if !ok {
		return nil, ParseStats{}, fmt.Errorf("missing id column %q", board.IDColumn)
	}
	nameCol, hasName := index[strings.ToLower(board.NameColumn)]

	var (
		rows  []player.LeaderboardRow
		stats ParseStats
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Skipped++
				continue
			}
			return nil, stats, fmt.Errorf("failed to read row: %w", err)
		}

		if len(record) < len(header) {
			stats.Skipped++
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(record[idCol]))
		if err != nil || id <= 0 {
			stats.Skipped++
			continue
		}

		row := player.LeaderboardRow{PlayerID: id, Stats: make(player.StatLine, len(board.Columns))}
		if hasName {
			row.Name = DisplayName(record[nameCol])
		}
		for column, key := range board.Columns {
			col, ok := index[column]
			if !ok {
				continue
			}
			row.Stats[key] = parseCell(record[col])
		}
		rows = append(rows, row)
		stats.Rows++
	}
	return rows, stats, nil
}

// headerIndex maps lowercased column names to positions
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return index
}

// stripBOM drops a leading UTF-8 byte-order mark. It must go before the CSV reader sees the
// first byte, or a quoted first header is read as a bare field.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(3)
	}
	return br
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DisplayName turns "Last, First" into "First Last"; anything else is returned trimmed
func DisplayName(raw string) string {
	raw = strings.TrimSpace(raw)
	last, first, ok := strings.Cut(raw, ",")
	if !ok {
		return raw
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if first == "" || last == "" {
		return raw
	}
	return first + " " + last
}

func parseCell(cell string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0
	}
	return v
}
