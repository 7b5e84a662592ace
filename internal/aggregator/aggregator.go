// Package aggregator fuses per-source rows into one canonical player per ID.
package aggregator

import (
	"sort"

	"github.com/jstittsworth/player-valuation/internal/player"
)

// Sources is the request-scoped set of fetched snapshots. Nothing in it is mutated by fusion.
type Sources struct {
	// Official feed rows per bucket. Hitting rows should precede pitching rows.
	Season      []player.StatRow
	Range       []player.StatRow
	PriorSeason []player.StatRow

	// Leaderboards holds rows per leaderboard name; each contributes a disjoint key set
	Leaderboards map[string][]player.LeaderboardRow

	// Rostered are roster entries already resolved through the mapping table
	Rostered []player.RosterPlayer
}

// Stats summarizes one fusion pass
type Stats struct {
	Players          int
	Prospects        int
	OrphanLeaderRows int
	IgnoredGroupRows int
	// TwoWayPlayers lists players whose second stat group was dropped, in first-seen order
	TwoWayPlayers []int
}

// FuseAll returns one player per canonical ID in first-seen order
func FuseAll(sources Sources) ([]player.CanonicalPlayer, Stats) {
	f := newFuser(nil)
	f.run(sources)
	return f.result()
}

// Fuse builds the single player with the given canonical ID
func Fuse(id int, sources Sources) (player.CanonicalPlayer, bool) {
	f := newFuser(func(candidate int) bool { return candidate == id })
	f.run(sources)
	p, ok := f.players[id]
	if !ok {
		return player.CanonicalPlayer{}, false
	}
	return *p, true
}

type fuser struct {
	keep    func(id int) bool
	order   []int
	players map[int]*player.CanonicalPlayer
	twoWay  map[int]bool
	stats   Stats
}

func newFuser(keep func(id int) bool) *fuser {
	if keep == nil {
		keep = func(int) bool { return true }
	}
	return &fuser{
		keep:    keep,
		players: make(map[int]*player.CanonicalPlayer),
		twoWay:  make(map[int]bool),
	}
}

func (f *fuser) run(sources Sources) {
	// Season rows establish identity first, then range and prior rows fill gaps
	f.addRows(player.BucketSeason, sources.Season)
	f.addRows(player.BucketRange, sources.Range)
	f.addRows(player.BucketPriorSeason, sources.PriorSeason)

	// Prospects go in before leaderboards so they can pick up advanced metrics
	for _, rp := range sources.Rostered {
		f.addProspect(rp)
	}

	names := make([]string, 0, len(sources.Leaderboards))
	for name := range sources.Leaderboards {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f.addLeaderboard(sources.Leaderboards[name])
	}
}

func (f *fuser) result() ([]player.CanonicalPlayer, Stats) {
	out := make([]player.CanonicalPlayer, 0, len(f.order))
	for _, id := range f.order {
		p := f.players[id]
		if p.Level == player.LevelProspect {
			f.stats.Prospects++
		}
		out = append(out, *p)
	}
	f.stats.Players = len(out)
	return out, f.stats
}

func (f *fuser) addRows(bucket player.BucketName, rows []player.StatRow) {
	for _, row := range rows {
		if row.PlayerID <= 0 || !f.keep(row.PlayerID) {
			continue
		}

		existing, exists := f.players[row.PlayerID]
		if !exists {
			f.players[row.PlayerID] = createFromRow(row, bucket)
			f.order = append(f.order, row.PlayerID)
			continue
		}

		// A two-way player keeps the group that introduced him
		if row.Group.Type() != existing.Type {
			f.stats.IgnoredGroupRows++
			if !f.twoWay[row.PlayerID] {
				f.twoWay[row.PlayerID] = true
				f.stats.TwoWayPlayers = append(f.stats.TwoWayPlayers, row.PlayerID)
			}
			continue
		}
		mergeIntoExisting(existing, row, bucket)
	}
}

func (f *fuser) addLeaderboard(rows []player.LeaderboardRow) {
	for _, row := range rows {
		if !f.keep(row.PlayerID) {
			continue
		}
		existing, exists := f.players[row.PlayerID]
		if !exists {
			// no identity baseline to attach the metrics to
			f.stats.OrphanLeaderRows++
			continue
		}
		season := existing.Buckets[player.BucketSeason]
		if season == nil {
			season = player.StatLine{}
			existing.Buckets[player.BucketSeason] = season
		}
		season.Merge(row.Stats)
	}
}

func (f *fuser) addProspect(rp player.RosterPlayer) {
	if rp.CanonicalID <= 0 || !f.keep(rp.CanonicalID) {
		return
	}
	if _, exists := f.players[rp.CanonicalID]; exists {
		return
	}

	position := ""
	if len(rp.Positions) > 0 {
		position = rp.Positions[0]
	}
	f.players[rp.CanonicalID] = &player.CanonicalPlayer{
		ID:       rp.CanonicalID,
		Name:     rp.Name,
		Position: position,
		Type:     player.TypeForPositions(rp.Positions),
		Level:    player.LevelProspect,
		Buckets:  map[player.BucketName]player.StatLine{},
	}
	f.order = append(f.order, rp.CanonicalID)
}

func createFromRow(row player.StatRow, bucket player.BucketName) *player.CanonicalPlayer {
	p := &player.CanonicalPlayer{
		ID:       row.PlayerID,
		Name:     row.Name,
		Team:     row.Team,
		Position: row.Position,
		Type:     row.Group.Type(),
		Level:    player.LevelMLB,
		Age:      row.Age,
		Buckets:  map[player.BucketName]player.StatLine{},
	}
	if row.Stats != nil {
		p.Buckets[bucket] = row.Stats.Clone()
	}
	return p
}

func mergeIntoExisting(existing *player.CanonicalPlayer, row player.StatRow, bucket player.BucketName) {
	if existing.Name == "" {
		existing.Name = row.Name
	}
	if existing.Team == "" {
		existing.Team = row.Team
	}
	if existing.Position == "" {
		existing.Position = row.Position
	}
	if existing.Age == 0 {
		existing.Age = row.Age
	}

	if row.Stats == nil {
		return
	}
	line, ok := existing.Buckets[bucket]
	if !ok {
		existing.Buckets[bucket] = row.Stats.Clone()
		return
	}
	line.Merge(row.Stats)
}
