package blend

import (
	"github.com/jstittsworth/player-valuation/internal/player"
)

// Sample-size thresholds for the career inertia blend and the reliability discount
const (
	PitcherTrustIP   = 100.0
	BatterTrustPA    = 400.0
	PitcherMinIP     = 15.0
	PitcherRampIP    = 135.0
	BatterMinPA      = 50.0
	BatterRampPA     = 550.0
	ReliabilityFloor = 0.5
)

// Blend mixes the current and prior value for key using trust as the current-season weight.
// The bool result is false only when neither bucket knows the key.
func Blend(key string, current, prior player.StatLine, trust float64) (float64, bool) {
	cur, hasCur := current.Get(key)
	pri, hasPrior := prior.Get(key)

	switch {
	case !hasCur && !hasPrior:
		return 0, false
	case !hasCur:
		return pri, true
	case !hasPrior:
		return cur, true
	}

	trust = clamp01(trust)
	return cur*trust + pri*(1-trust), true
}

// TrustFactor is the current-season weight: monotonic in sample size, saturating at 1.
// sample is innings pitched for pitchers and plate appearances for batters.
func TrustFactor(t player.Type, sample float64) float64 {
	denominator := BatterTrustPA
	if t == player.TypePitcher {
		denominator = PitcherTrustIP
	}
	return clamp01(sample / denominator)
}

// Reliability is the small-sample discount applied to rate-stat scoring inputs
func Reliability(t player.Type, sample float64) float64 {
	minimum, ramp := BatterMinPA, BatterRampPA
	if t == player.TypePitcher {
		minimum, ramp = PitcherMinIP, PitcherRampIP
	}
	if sample < minimum {
		return 0
	}
	r := clamp01((sample - minimum) / ramp)
	return r * r
}

// SampleSize returns the same-season sample that drives trust and reliability
func SampleSize(t player.Type, line player.StatLine) float64 {
	if t == player.TypePitcher {
		return line.Value(player.StatIP)
	}
	return line.Value(player.StatPA)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
