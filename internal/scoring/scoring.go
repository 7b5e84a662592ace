// Package scoring computes the four independent valuation scores of a fused player.
//
// Every score is an integer in [0, 100]. Missing stats are zero-coalesced here, at the point of
// use; a missing rate stat contributes nothing to its term.
package scoring

import (
	"math"

	"github.com/jstittsworth/player-valuation/internal/blend"
	"github.com/jstittsworth/player-valuation/internal/pace"
	"github.com/jstittsworth/player-valuation/internal/player"
	"github.com/jstittsworth/player-valuation/internal/window"
)

var (
	batterRateKeys  = []string{player.StatAVG, player.StatOBP, player.StatSLG, player.StatOPS}
	pitcherRateKeys = []string{player.StatERA, player.StatWHIP, player.StatKPct, player.StatK9}
)

// Input is everything a score needs, already selected from the player's buckets
type Input struct {
	Type player.Type
	Age  int
	// Rates holds blended rate stats
	Rates player.StatLine
	// Counting holds display counting stats, paced when the window asks for it
	Counting player.StatLine
	// Raw holds the undiluted window stats used by Range
	Raw         player.StatLine
	Trust       float64
	Reliability float64
}

// Breakdown explains a score for diagnostics
type Breakdown struct {
	Trust       float64            `json:"trust"`
	Reliability float64            `json:"reliability"`
	Capped      bool               `json:"capped"`
	Normalized  map[string]float64 `json:"normalized"`
	RotoBase    float64            `json:"rotoBase"`
	AgeFactor   float64            `json:"ageFactor"`
}

// Scorer applies the configured norms
type Scorer struct {
	norms Norms
}

// NewScorer creates a scorer; nil norms fall back to the embedded table
func NewScorer(norms Norms) *Scorer {
	if norms == nil {
		norms = DefaultNorms()
	}
	return &Scorer{norms: norms}
}

// ScorePlayer selects inputs from the player's buckets and scores them
func (s *Scorer) ScorePlayer(p *player.CanonicalPlayer, sel window.Selection) (player.Scores, Breakdown) {
	return s.Score(Prepare(p, sel))
}

// Prepare builds the scoring input for a player under a bucket selection
func Prepare(p *player.CanonicalPlayer, sel window.Selection) Input {
	current := WithDerivedRates(p.Bucket(sel.Current))
	var prior player.StatLine
	if sel.Prior != "" {
		prior = WithDerivedRates(p.Bucket(sel.Prior))
	}

	sample := blend.SampleSize(p.Type, current)
	trust := blend.TrustFactor(p.Type, sample)

	keys := batterRateKeys
	if p.IsPitcher() {
		keys = pitcherRateKeys
	}
	rates := player.StatLine{}
	for _, key := range keys {
		if v, ok := blend.Blend(key, current, prior, trust); ok {
			rates[key] = v
		}
	}

	counting := p.Bucket(sel.Display)
	if sel.Pace {
		counting = pace.ProjectPlayer(p, counting)
	}

	return Input{
		Type:        p.Type,
		Age:         p.Age,
		Rates:       rates,
		Counting:    counting,
		Raw:         p.Bucket(sel.RangeSource),
		Trust:       trust,
		Reliability: blend.Reliability(p.Type, sample),
	}
}

// WithDerivedRates fills k_pct from so/bf when the feed did not supply it
func WithDerivedRates(line player.StatLine) player.StatLine {
	if line == nil {
		return nil
	}
	if _, ok := line.Get(player.StatKPct); ok {
		return line
	}
	so, hasSO := line.Get(player.StatSO)
	bf, hasBF := line.Get(player.StatBF)
	if !hasSO || !hasBF || bf <= 0 {
		return line
	}
	out := line.Clone()
	out[player.StatKPct] = so / bf * 100
	return out
}

// Score computes roto, dyna, points and range independently
func (s *Scorer) Score(in Input) (player.Scores, Breakdown) {
	rates, breakdown := s.effectiveRates(in)

	var rotoBase float64
	if in.Type == player.TypePitcher {
		rotoBase = pitcherRoto(rates, in.Counting)
	} else {
		rotoBase = batterRoto(rates, in.Counting)
	}

	ageFactor := AgeFactor(in.Type, in.Age)
	breakdown.RotoBase = rotoBase
	breakdown.AgeFactor = ageFactor

	return player.Scores{
		Roto:   clampScore(rotoBase),
		Dyna:   clampScore(clampFloat(rotoBase) * ageFactor),
		Points: clampScore(points(in.Type, in.Counting)),
		Range:  clampScore(rangeValue(in.Type, in.Raw)),
	}, breakdown
}

// effectiveRates normalizes every rate with a configured norm and, below the reliability floor,
// pulls capped rates back to the value that scores exactly ReliabilityCap.
func (s *Scorer) effectiveRates(in Input) (player.StatLine, Breakdown) {
	breakdown := Breakdown{
		Trust:       in.Trust,
		Reliability: in.Reliability,
		Capped:      in.Reliability < blend.ReliabilityFloor,
		Normalized:  make(map[string]float64, len(in.Rates)),
	}

	effective := in.Rates.Clone()
	if effective == nil {
		effective = player.StatLine{}
	}
	for key, value := range in.Rates {
		norm, ok := s.norms[key]
		if !ok {
			continue
		}
		normalized := norm.Normalize(value)
		if breakdown.Capped && normalized > ReliabilityCap {
			normalized = ReliabilityCap
			effective[key] = norm.Denormalize(ReliabilityCap)
		}
		breakdown.Normalized[key] = normalized
	}
	return effective, breakdown
}

func batterRoto(rates, counting player.StatLine) float64 {
	v := counting.Value(player.StatHR)*1.1 + counting.Value(player.StatSB)*0.9
	if ops, ok := rates.Get(player.StatOPS); ok {
		v += (ops - 0.6) * 120
	}
	return v
}

func pitcherRoto(rates, counting player.StatLine) float64 {
	v := counting.Value(player.StatW) * 1.5
	if kPct, ok := rates.Get(player.StatKPct); ok {
		v += kPct * 0.8
	}
	if era, ok := rates.Get(player.StatERA); ok {
		v += (4.5 - era) * 12
	}
	return v
}

func points(t player.Type, counting player.StatLine) float64 {
	if t == player.TypePitcher {
		return (counting.Value(player.StatIP)*3 + counting.Value(player.StatSO) + counting.Value(player.StatW)*5) / 8
	}
	return (counting.Value(player.StatHR)*4 + counting.Value(player.StatRBI) + counting.Value(player.StatSB)*2) / 4.5
}

func rangeValue(t player.Type, raw player.StatLine) float64 {
	if t == player.TypePitcher {
		return (raw.Value(player.StatSO)*1.5 + raw.Value(player.StatW)*5) * 1.5
	}
	return (raw.Value(player.StatHR)*6 + raw.Value(player.StatSB)*3) * 1.5
}

func clampFloat(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func clampScore(v float64) int {
	return int(math.Round(clampFloat(v)))
}
