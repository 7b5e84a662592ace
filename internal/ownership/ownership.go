// Package ownership tags fused players as available, rostered elsewhere or on the caller's team.
package ownership

import (
	"github.com/jstittsworth/player-valuation/internal/identity"
	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/internal/player"
)

// Index maps canonical IDs, and as a fallback normalized names, to owning team keys
type Index struct {
	byID      map[int]string
	byName    map[string]string
	ambiguous map[string]struct{}

	mapped     int
	unresolved int
}

// BuildIndex resolves every roster entry. Entries resolved through the mapping table go into the
// ID index; entries resolved only by name go into the name index, unless two different teams
// claim the same name. Unresolved entries are skipped.
func BuildIndex(entries []models.RosterEntry, resolver *identity.Resolver) *Index {
	idx := &Index{
		byID:      make(map[int]string, len(entries)),
		byName:    make(map[string]string),
		ambiguous: make(map[string]struct{}),
	}

	for _, e := range entries {
		if e.TeamKey == "" {
			continue
		}
		id, method, ok := resolver.ResolveWithMethod(e.Platform, e.PlatformPlayerID, e.PlayerName)
		if !ok {
			idx.unresolved++
			continue
		}
		if method == identity.MethodMapping {
			idx.byID[id] = e.TeamKey
			idx.mapped++
			continue
		}
		idx.addName(e.PlayerName, e.TeamKey)
	}
	return idx
}

func (idx *Index) addName(name, teamKey string) {
	normalized := player.NormalizeName(name)
	if _, dup := idx.ambiguous[normalized]; dup {
		return
	}
	if existing, ok := idx.byName[normalized]; ok && existing != teamKey {
		delete(idx.byName, normalized)
		idx.ambiguous[normalized] = struct{}{}
		return
	}
	idx.byName[normalized] = teamKey
}

// Owner returns the team that owns the player, if any
func (idx *Index) Owner(p *player.CanonicalPlayer) (string, bool) {
	if idx == nil || p == nil {
		return "", false
	}
	if team, ok := idx.byID[p.ID]; ok {
		return team, true
	}
	team, ok := idx.byName[player.NormalizeName(p.Name)]
	return team, ok
}

// Tag classifies one player. Exactly one status is returned.
func Tag(p *player.CanonicalPlayer, idx *Index, activeTeamKey string) player.Ownership {
	team, ok := idx.Owner(p)
	switch {
	case !ok:
		return player.Ownership{Status: player.Available}
	case activeTeamKey != "" && team == activeTeamKey:
		return player.Ownership{Status: player.MyTeam, TeamKey: team}
	default:
		return player.Ownership{Status: player.Rostered, TeamKey: team}
	}
}

// Counts reports how the index was built
func (idx *Index) Counts() (mapped, byName, unresolved int) {
	if idx == nil {
		return 0, 0, 0
	}
	return idx.mapped, len(idx.byName), idx.unresolved
}

// MappedPlayers returns roster entries that resolve through the mapping table alone.
// They feed prospect synthesis before any fused name index exists.
func MappedPlayers(entries []models.RosterEntry, snapshot *identity.Snapshot) []player.RosterPlayer {
	out := make([]player.RosterPlayer, 0, len(entries))
	for _, e := range entries {
		id, ok := snapshot.Lookup(e.Platform, e.PlatformPlayerID)
		if !ok {
			continue
		}
		out = append(out, player.RosterPlayer{
			CanonicalID: id,
			Name:        e.PlayerName,
			Positions:   []string(e.EligiblePositions),
		})
	}
	return out
}
