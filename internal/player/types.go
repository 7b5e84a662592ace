package player

import (
	"strings"
)

// Type distinguishes hitters from pitchers
type Type string

const (
	TypeBatter  Type = "batter"
	TypePitcher Type = "pitcher"
)

// Level marks whether a player came from the league-wide pool or was synthesized from a roster
type Level string

const (
	LevelMLB      Level = "mlb"
	LevelProspect Level = "prospect"
)

// BucketName identifies one of the stat buckets carried by a fused player
type BucketName string

const (
	BucketRange       BucketName = "range"
	BucketSeason      BucketName = "season"
	BucketPriorSeason BucketName = "prior_season"
)

// Stat keys shared by providers, the aggregator and the scorer
const (
	StatPA    = "pa"
	StatAB    = "ab"
	StatH     = "h"
	StatHR    = "hr"
	StatRBI   = "rbi"
	StatR     = "r"
	StatSB    = "sb"
	StatBB    = "bb"
	StatSO    = "so"
	StatAVG   = "avg"
	StatOBP   = "obp"
	StatSLG   = "slg"
	StatOPS   = "ops"
	StatG     = "g"
	StatGS    = "gs"
	StatIP    = "ip"
	StatW     = "w"
	StatSV    = "sv"
	StatERA   = "era"
	StatWHIP  = "whip"
	StatBF    = "bf"
	StatKPct  = "k_pct"
	StatK9    = "k9"
	StatHolds = "hld"
)

// StatLine is a sparse stat-key -> value mapping. A missing key means unknown, not zero.
type StatLine map[string]float64

// Get returns the value for key and whether it is known
func (s StatLine) Get(key string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s[key]
	return v, ok
}

// Value returns the value for key, zero-coalescing unknown keys. Only scoring code should use it.
func (s StatLine) Value(key string) float64 {
	v, _ := s.Get(key)
	return v
}

// Clone returns an independent copy of the line
func (s StatLine) Clone() StatLine {
	if s == nil {
		return nil
	}
	out := make(StatLine, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge copies keys from other that are not already present. Present keys are never overwritten.
func (s StatLine) Merge(other StatLine) {
	for k, v := range other {
		if _, exists := s[k]; !exists {
			s[k] = v
		}
	}
}

// OwnershipStatus classifies a player relative to the caller's fantasy team
type OwnershipStatus string

const (
	Available OwnershipStatus = "AVAILABLE"
	Rostered  OwnershipStatus = "ROSTERED"
	MyTeam    OwnershipStatus = "MY_TEAM"
)

// Ownership is the tag assigned by the ownership tagger
type Ownership struct {
	Status  OwnershipStatus `json:"availability"`
	TeamKey string          `json:"ownerTeamKey,omitempty"`
}

// Scores holds the four independent 0-100 valuation scores
type Scores struct {
	Roto   int `json:"roto"`
	Dyna   int `json:"dyna"`
	Points int `json:"points"`
	Range  int `json:"range"`
}

// CanonicalPlayer is the fused, request-scoped record for one athlete
type CanonicalPlayer struct {
	ID       int                     `json:"id"`
	Name     string                  `json:"name"`
	Team     string                  `json:"team"`
	Position string                  `json:"position"`
	Type     Type                    `json:"type"`
	Level    Level                   `json:"level"`
	Age      int                     `json:"age,omitempty"`
	Buckets  map[BucketName]StatLine `json:"-"`

	Ownership Ownership `json:"-"`
	Scores    Scores    `json:"scores"`
}

// Bucket returns the named bucket, or nil when it is absent
func (p *CanonicalPlayer) Bucket(name BucketName) StatLine {
	if p == nil || p.Buckets == nil {
		return nil
	}
	return p.Buckets[name]
}

// IsPitcher reports whether the player is scored as a pitcher
func (p *CanonicalPlayer) IsPitcher() bool {
	return p != nil && p.Type == TypePitcher
}

// NormalizeName lowercases and trims a display name for exact, case-insensitive matching.
// It deliberately does not reorder tokens, strip suffixes or fold accents.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
