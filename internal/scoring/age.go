package scoring

import "github.com/jstittsworth/player-valuation/internal/player"

type ageBand struct {
	maxAge int
	factor float64
}

var (
	batterAgeCurve = []ageBand{
		{22, 1.40},
		{25, 1.25},
		{29, 1.00},
		{31, 0.80},
		{34, 0.40},
	}
	pitcherAgeCurve = []ageBand{
		{23, 1.10},
		{27, 1.00},
		{30, 0.85},
		{33, 0.50},
	}
)

const (
	batterVeteranFactor  = 0.15
	pitcherVeteranFactor = 0.20
)

// AgeFactor is the dynasty multiplier for a player's age. Unknown age (<= 0) is neutral.
func AgeFactor(t player.Type, age int) float64 {
	if age <= 0 {
		return 1.0
	}

	curve, veteran := batterAgeCurve, batterVeteranFactor
	if t == player.TypePitcher {
		curve, veteran = pitcherAgeCurve, pitcherVeteranFactor
	}
	for _, band := range curve {
		if age <= band.maxAge {
			return band.factor
		}
	}
	return veteran
}
