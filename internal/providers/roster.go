package providers

import (
	"context"

	"github.com/jstittsworth/player-valuation/internal/models"
)

// RosterSource fetches a league's current roster snapshot from one fantasy platform
type RosterSource interface {
	Platform() string
	FetchRoster(ctx context.Context, leagueKey string) ([]models.RosterEntry, error)
}
