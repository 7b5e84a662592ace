// Package pace extrapolates partial-sample counting stats to a full-season total.
package pace

import (
	"math"
	"strings"

	"github.com/jstittsworth/player-valuation/internal/player"
)

// Full-season denominators
const (
	StarterIPTarget  = 180.0
	RelieverIPTarget = 65.0
	BatterPATarget   = 600.0

	// MaxMultiplier bounds extrapolation; multipliers outside (0, MaxMultiplier) skip projection
	MaxMultiplier = 20.0
)

var (
	// PitcherCountingKeys are the pitcher stats that get paced
	PitcherCountingKeys = []string{player.StatSO, player.StatW, player.StatSV}
	// BatterCountingKeys are the batter stats that get paced
	BatterCountingKeys = []string{player.StatHR, player.StatRBI, player.StatSB, player.StatR}
)

// Project returns a new line with each counting key scaled by target/sample.
// The input is never mutated. When the multiplier is not in (0, MaxMultiplier) the
// returned line is an unmodified copy.
func Project(stats player.StatLine, target, sample float64, keys []string) player.StatLine {
	out := stats.Clone()
	if out == nil {
		out = player.StatLine{}
	}
	if sample <= 0 {
		return out
	}

	multiplier := target / sample
	if !(multiplier > 0 && multiplier < MaxMultiplier) {
		return out
	}

	for _, key := range keys {
		if v, ok := stats.Get(key); ok {
			out[key] = roundHalfUp(v * multiplier)
		}
	}
	return out
}

// Target returns the full-season denominator and the sample drawn from line for the player
func Target(p *player.CanonicalPlayer, line player.StatLine) (target, sample float64, keys []string) {
	if p.IsPitcher() {
		if IsStarter(p.Position, line) {
			return StarterIPTarget, line.Value(player.StatIP), PitcherCountingKeys
		}
		return RelieverIPTarget, line.Value(player.StatIP), PitcherCountingKeys
	}
	return BatterPATarget, line.Value(player.StatPA), BatterCountingKeys
}

// ProjectPlayer paces the given line using the player's type-specific target
func ProjectPlayer(p *player.CanonicalPlayer, line player.StatLine) player.StatLine {
	target, sample, keys := Target(p, line)
	return Project(line, target, sample, keys)
}

// IsStarter classifies a pitcher. An explicit SP/RP position wins; otherwise a pitcher
// who started at least half of his appearances is a starter.
func IsStarter(position string, line player.StatLine) bool {
	switch strings.ToUpper(strings.TrimSpace(position)) {
	case "SP":
		return true
	case "RP", "CL":
		return false
	}
	games := line.Value(player.StatG)
	if games <= 0 {
		return false
	}
	return line.Value(player.StatGS)*2 >= games
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
