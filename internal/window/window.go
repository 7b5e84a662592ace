// Package window turns a requested range token into concrete dates and decides which stat
// bucket feeds display, blending and the Range score.
package window

import (
	"strings"
	"time"

	"github.com/jstittsworth/player-valuation/internal/player"
)

// Token is a logical range requested by the caller
type Token string

const (
	TokenCustom     Token = "custom"
	TokenYesterday  Token = "yesterday"
	TokenLast7      Token = "last_7"
	TokenLast30     Token = "last_30"
	TokenLast90     Token = "last_90"
	TokenSeasonCurr Token = "season_curr"
	TokenSeasonLast Token = "season_last"
	TokenPaceSeason Token = "pace_season"
)

// DateLayout is the wire format for window dates
const DateLayout = "2006-01-02"

var trailingDays = map[Token]int{
	TokenLast7:  7,
	TokenLast30: 30,
	TokenLast90: 90,
}

// Window is either a concrete inclusive date range or the season anchor
type Window struct {
	Token        Token
	Start        time.Time
	End          time.Time
	SeasonAnchor bool
}

// HasRange reports whether the window names concrete dates
func (w Window) HasRange() bool {
	return !w.SeasonAnchor
}

// StartDate formats Start for upstream queries
func (w Window) StartDate() string {
	if w.SeasonAnchor {
		return ""
	}
	return w.Start.Format(DateLayout)
}

// EndDate formats End for upstream queries
func (w Window) EndDate() string {
	if w.SeasonAnchor {
		return ""
	}
	return w.End.Format(DateLayout)
}

// Selection describes which buckets a resolved window reads from
type Selection struct {
	// Display feeds the stats object and the counting inputs of Roto and Points
	Display player.BucketName
	// Current and Prior feed the career-inertia blend; an empty Prior disables blending
	Current player.BucketName
	Prior   player.BucketName
	// RangeSource holds the undiluted stats for the Range score
	RangeSource player.BucketName
	// Pace projects Display counting stats to a full season
	Pace bool
}

// Selector resolves tokens against a reference date
type Selector struct {
	seasonEnd time.Time
	now       func() time.Time
}

// NewSelector builds a selector. A zero seasonEnd means the reference date is always today.
// now defaults to time.Now.
func NewSelector(seasonEnd time.Time, now func() time.Time) *Selector {
	if now == nil {
		now = time.Now
	}
	return &Selector{seasonEnd: seasonEnd, now: now}
}

// ReferenceDate is min(today, season end) at day precision in UTC
func (s *Selector) ReferenceDate() time.Time {
	today := truncateDay(s.now())
	if s.seasonEnd.IsZero() {
		return today
	}
	end := truncateDay(s.seasonEnd)
	if end.Before(today) {
		return end
	}
	return today
}

// Resolve maps a token, plus optional custom dates, to a window. It performs no I/O.
func (s *Selector) Resolve(token string, customStart, customEnd *time.Time) Window {
	t := Token(strings.ToLower(strings.TrimSpace(token)))
	ref := s.ReferenceDate()

	switch t {
	case TokenCustom:
		if customStart == nil || customEnd == nil {
			return anchor(t)
		}
		start, end := truncateDay(*customStart), truncateDay(*customEnd)
		if end.Before(start) {
			return anchor(t)
		}
		return Window{Token: t, Start: start, End: end}
	case TokenYesterday:
		day := ref.AddDate(0, 0, -1)
		return Window{Token: t, Start: day, End: day}
	case TokenLast7, TokenLast30, TokenLast90:
		return Window{Token: t, Start: ref.AddDate(0, 0, -trailingDays[t]), End: ref}
	default:
		// season_curr, season_last, pace_season and unknown tokens
		return anchor(t)
	}
}

// Select returns the bucket selection for a resolved window
func Select(w Window) Selection {
	if w.HasRange() {
		return Selection{
			Display:     player.BucketRange,
			Current:     player.BucketSeason,
			Prior:       player.BucketPriorSeason,
			RangeSource: player.BucketRange,
		}
	}

	switch w.Token {
	case TokenSeasonLast:
		return Selection{
			Display:     player.BucketPriorSeason,
			Current:     player.BucketPriorSeason,
			RangeSource: player.BucketPriorSeason,
		}
	case TokenPaceSeason:
		return Selection{
			Display:     player.BucketSeason,
			Current:     player.BucketSeason,
			Prior:       player.BucketPriorSeason,
			RangeSource: player.BucketSeason,
			Pace:        true,
		}
	default:
		return Selection{
			Display:     player.BucketSeason,
			Current:     player.BucketSeason,
			Prior:       player.BucketPriorSeason,
			RangeSource: player.BucketSeason,
		}
	}
}

func anchor(t Token) Window {
	return Window{Token: t, SeasonAnchor: true}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
