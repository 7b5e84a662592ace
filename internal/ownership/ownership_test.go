package ownership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jstittsworth/player-valuation/internal/identity"
	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/internal/player"
)

const (
	myTeam    = "mlb.l.1234.t.1"
	otherTeam = "mlb.l.1234.t.2"
)

func fused() []player.CanonicalPlayer {
	return []player.CanonicalPlayer{
		{ID: 545361, Name: "Mike Trout"},
		{ID: 660670, Name: "Ronald Acuña Jr."},
		{ID: 665742, Name: "Juan Soto"},
		{ID: 592450, Name: "Aaron Judge"},
		{ID: 111111, Name: "Will Smith"},
		{ID: 222222, Name: "Will Smith"},
		{ID: 605141, Name: "Mookie Betts"},
	}
}

func resolverFor(players []player.CanonicalPlayer) *identity.Resolver {
	snapshot := identity.NewSnapshot([]models.IdentityMapping{
		{Platform: models.PlatformYahoo, PlatformPlayerID: "10621", CanonicalID: 545361},
		{Platform: models.PlatformYahoo, PlatformPlayerID: "9988", CanonicalID: 805000},
	}, time.Now())
	return identity.NewResolver(snapshot, identity.NewNameIndex(players))
}

func TestTagLookupOrder(t *testing.T) {
	players := fused()
	entries := []models.RosterEntry{
		{TeamKey: myTeam, Platform: models.PlatformYahoo, PlatformPlayerID: "10621", PlayerName: "M. Trout"},
		{TeamKey: otherTeam, Platform: models.PlatformYahoo, PlatformPlayerID: "55555", PlayerName: "juan soto"},
		{TeamKey: otherTeam, Platform: models.PlatformYahoo, PlatformPlayerID: "12345", PlayerName: "Jr., Acuna"},
		{TeamKey: myTeam, Platform: models.PlatformYahoo, PlatformPlayerID: "77777", PlayerName: "Will Smith"},
	}
	idx := BuildIndex(entries, resolverFor(players))

	tags := map[int]player.Ownership{}
	for i := range players {
		tags[players[i].ID] = Tag(&players[i], idx, myTeam)
	}

	assert.Equal(t, player.Ownership{Status: player.MyTeam, TeamKey: myTeam}, tags[545361], "mapping path")
	assert.Equal(t, player.Ownership{Status: player.Rostered, TeamKey: otherTeam}, tags[665742], "name fallback")
	assert.Equal(t, player.Available, tags[660670].Status, "Jr., Acuna must not merge into Acuña Jr.")
	assert.Equal(t, player.Available, tags[111111].Status, "ambiguous canonical name")
	assert.Equal(t, player.Available, tags[222222].Status)
	assert.Equal(t, player.Available, tags[592450].Status)

	mapped, byName, unresolved := idx.Counts()
	assert.Equal(t, 1, mapped)
	assert.Equal(t, 1, byName)
	assert.Equal(t, 2, unresolved)
}

func TestNameClaimedByTwoTeamsIsExcluded(t *testing.T) {
	players := fused()
	entries := []models.RosterEntry{
		{TeamKey: myTeam, Platform: models.PlatformESPN, PlatformPlayerID: "1", PlayerName: "Mookie Betts"},
		{TeamKey: otherTeam, Platform: models.PlatformESPN, PlatformPlayerID: "2", PlayerName: "Mookie Betts"},
		{TeamKey: otherTeam, Platform: models.PlatformESPN, PlatformPlayerID: "3", PlayerName: "Mookie Betts"},
	}
	idx := BuildIndex(entries, resolverFor(players))

	assert.Equal(t, player.Available, Tag(&players[6], idx, myTeam).Status)
}

func TestOwnershipExclusivity(t *testing.T) {
	players := fused()
	entries := []models.RosterEntry{
		{TeamKey: myTeam, Platform: models.PlatformYahoo, PlatformPlayerID: "10621", PlayerName: "Mike Trout"},
		{TeamKey: otherTeam, Platform: models.PlatformYahoo, PlatformPlayerID: "x", PlayerName: "Aaron Judge"},
	}
	idx := BuildIndex(entries, resolverFor(players))

	for _, active := range []string{myTeam, otherTeam, ""} {
		for i := range players {
			tag := Tag(&players[i], idx, active)
			valid := map[player.OwnershipStatus]bool{player.Available: true, player.Rostered: true, player.MyTeam: true}
			assert.True(t, valid[tag.Status])
			if tag.Status == player.Available {
				assert.Empty(t, tag.TeamKey)
			} else {
				assert.NotEmpty(t, tag.TeamKey)
			}
			if active == "" {
				assert.NotEqual(t, player.MyTeam, tag.Status, "no active team means nothing is MY_TEAM")
			}
		}
	}
}

func TestNilIndexTagsAvailable(t *testing.T) {
	p := player.CanonicalPlayer{ID: 545361, Name: "Mike Trout"}
	assert.Equal(t, player.Available, Tag(&p, nil, myTeam).Status)
}

func TestMappedPlayers(t *testing.T) {
	snapshot := identity.NewSnapshot([]models.IdentityMapping{
		{Platform: models.PlatformYahoo, PlatformPlayerID: "9988", CanonicalID: 805000},
	}, time.Now())
	out := MappedPlayers([]models.RosterEntry{
		{TeamKey: myTeam, Platform: models.PlatformYahoo, PlatformPlayerID: "9988", PlayerName: "Top Prospect", EligiblePositions: []string{"SS"}},
		{TeamKey: myTeam, Platform: models.PlatformYahoo, PlatformPlayerID: "1", PlayerName: "Unknown"},
	}, snapshot)

	assert.Equal(t, []player.RosterPlayer{{CanonicalID: 805000, Name: "Top Prospect", Positions: []string{"SS"}}}, out)
}
