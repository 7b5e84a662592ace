package player

import "strings"

// StatGroup is the official feed's split between hitting and pitching lines
type StatGroup string

const (
	GroupHitting  StatGroup = "hitting"
	GroupPitching StatGroup = "pitching"
)

// Type returns the player type implied by the group
func (g StatGroup) Type() Type {
	if g == GroupPitching {
		return TypePitcher
	}
	return TypeBatter
}

// StatRow is one player's line from the official stats feed
type StatRow struct {
	PlayerID int
	Name     string
	Team     string
	Position string
	Age      int
	Group    StatGroup
	Stats    StatLine
}

// LeaderboardRow is one player's row from an advanced-metrics leaderboard
type LeaderboardRow struct {
	PlayerID int
	Name     string
	Stats    StatLine
}

// RosterPlayer is a roster entry that resolved to a canonical ID through the mapping table
type RosterPlayer struct {
	CanonicalID int
	Name        string
	Positions   []string
}

var pitcherPositions = map[string]bool{"P": true, "SP": true, "RP": true, "CL": true}

// IsPitcherPosition reports whether a position abbreviation is a pitching slot
func IsPitcherPosition(position string) bool {
	return pitcherPositions[strings.ToUpper(strings.TrimSpace(position))]
}

// TypeForPositions returns pitcher only when every listed position is a pitching slot
func TypeForPositions(positions []string) Type {
	seen := false
	for _, pos := range positions {
		if strings.TrimSpace(pos) == "" {
			continue
		}
		if !IsPitcherPosition(pos) {
			return TypeBatter
		}
		seen = true
	}
	if seen {
		return TypePitcher
	}
	return TypeBatter
}
