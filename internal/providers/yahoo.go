package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/jstittsworth/player-valuation/internal/models"
)

// YahooRosterClient reads league rosters from the Yahoo Fantasy API. The access token comes from
// an OAuth flow outside this service.
type YahooRosterClient struct {
	fetcher     *Fetcher
	baseURL     string
	accessToken string
	logger      *logrus.Logger
}

// NewYahooRosterClient creates a Yahoo roster client
func NewYahooRosterClient(fetcher *Fetcher, baseURL, accessToken string, logger *logrus.Logger) *YahooRosterClient {
	return &YahooRosterClient{
		fetcher:     fetcher,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		logger:      logger,
	}
}

func (c *YahooRosterClient) Platform() string {
	return models.PlatformYahoo
}

// FetchRoster returns every rostered player in the league
func (c *YahooRosterClient) FetchRoster(ctx context.Context, leagueKey string) ([]models.RosterEntry, error) {
	header := http.Header{}
	if c.accessToken != "" {
		header.Set("Authorization", "Bearer "+c.accessToken)
	}

	url := fmt.Sprintf("%s/league/%s/teams/roster?format=json", c.baseURL, leagueKey)
	body, err := c.fetcher.Get(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("yahoo roster %s: %w", leagueKey, err)
	}

	entries, err := ParseYahooRoster(body, leagueKey, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("yahoo roster %s: %w", leagueKey, err)
	}

	c.logger.WithFields(logrus.Fields{
		"platform":   models.PlatformYahoo,
		"league_key": leagueKey,
		"entries":    len(entries),
	}).Debug("Fetched roster snapshot")
	return entries, nil
}

// The Yahoo payload nests everything in positional arrays and "0".."n-1" keyed objects with a
// "count" sibling. Each level below is decoded into a fixed shape.

type yahooEnvelope struct {
	FantasyContent struct {
		League []json.RawMessage `json:"league"`
	} `json:"fantasy_content"`
}

type yahooLeagueTeams struct {
	Teams json.RawMessage `json:"teams"`
}

type yahooTeamWrapper struct {
	Team []json.RawMessage `json:"team"`
}

type yahooTeamMeta struct {
	TeamKey string `json:"team_key"`
	Name    string `json:"name"`
}

type yahooRosterBlock struct {
	Roster map[string]json.RawMessage `json:"roster"`
}

type yahooRosterSlot struct {
	Players json.RawMessage `json:"players"`
}

type yahooPlayerWrapper struct {
	Player []json.RawMessage `json:"player"`
}

type yahooPlayerMeta struct {
	PlayerKey string `json:"player_key"`
	PlayerID  string `json:"player_id"`
	Name      *struct {
		Full string `json:"full"`
	} `json:"name"`
	EditorialTeamAbbr string `json:"editorial_team_abbr"`
	DisplayPosition   string `json:"display_position"`
	Status            string `json:"status"`
	EligiblePositions []struct {
		Position string `json:"position"`
	} `json:"eligible_positions"`
}

type yahooSelectedPosition struct {
	SelectedPosition []struct {
		Position string `json:"position"`
	} `json:"selected_position"`
}

// ParseYahooRoster converts a league teams/roster payload into roster entries
func ParseYahooRoster(body []byte, leagueKey string, syncedAt time.Time) ([]models.RosterEntry, error) {
	var env yahooEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode yahoo envelope: %w", err)
	}
	if len(env.FantasyContent.League) < 2 {
		return nil, fmt.Errorf("yahoo league payload has %d sections, want 2", len(env.FantasyContent.League))
	}

	var league yahooLeagueTeams
	if err := json.Unmarshal(env.FantasyContent.League[1], &league); err != nil {
		return nil, fmt.Errorf("failed to decode yahoo teams: %w", err)
	}

	teams, err := countedItems(league.Teams)
	if err != nil {
		return nil, fmt.Errorf("yahoo teams: %w", err)
	}

	var entries []models.RosterEntry
	for _, rawTeam := range teams {
		var team yahooTeamWrapper
		if err := json.Unmarshal(rawTeam, &team); err != nil || len(team.Team) < 2 {
			return nil, fmt.Errorf("unexpected yahoo team shape")
		}

		var meta yahooTeamMeta
		mergeObjects(team.Team[0], &meta)
		if meta.TeamKey == "" {
			return nil, fmt.Errorf("yahoo team without team_key")
		}

		players, err := yahooRosterPlayers(team.Team[1])
		if err != nil {
			return nil, fmt.Errorf("yahoo team %s: %w", meta.TeamKey, err)
		}
		for _, rawPlayer := range players {
			entry, ok := yahooEntry(rawPlayer, leagueKey, meta.TeamKey, syncedAt)
			if ok {
				entries = append(entries, entry)
			}
		}
	}
	return entries, nil
}

func yahooRosterPlayers(raw json.RawMessage) ([]json.RawMessage, error) {
	var block yahooRosterBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}
	slotRaw, ok := block.Roster["0"]
	if !ok {
		return nil, nil
	}
	var slot yahooRosterSlot
	if err := json.Unmarshal(slotRaw, &slot); err != nil {
		return nil, fmt.Errorf("failed to decode roster players: %w", err)
	}
	return countedItems(slot.Players)
}

func yahooEntry(raw json.RawMessage, leagueKey, teamKey string, syncedAt time.Time) (models.RosterEntry, bool) {
	var wrapper yahooPlayerWrapper
	if err := json.Unmarshal(raw, &wrapper); err != nil || len(wrapper.Player) == 0 {
		return models.RosterEntry{}, false
	}

	var meta yahooPlayerMeta
	mergeObjects(wrapper.Player[0], &meta)
	if meta.PlayerID == "" {
		return models.RosterEntry{}, false
	}

	entry := models.RosterEntry{
		LeagueKey:        leagueKey,
		TeamKey:          teamKey,
		Platform:         models.PlatformYahoo,
		PlatformPlayerID: meta.PlayerID,
		SyncedAt:         syncedAt,
	}
	if meta.Name != nil {
		entry.PlayerName = meta.Name.Full
	}
	for _, p := range meta.EligiblePositions {
		entry.EligiblePositions = append(entry.EligiblePositions, p.Position)
	}

	attrs := map[string]string{
		"player_key":  meta.PlayerKey,
		"mlb_team":    meta.EditorialTeamAbbr,
		"display_pos": meta.DisplayPosition,
	}
	if meta.Status != "" {
		attrs["status"] = meta.Status
	}
	if len(wrapper.Player) > 1 {
		var selected yahooSelectedPosition
		if err := json.Unmarshal(wrapper.Player[1], &selected); err == nil {
			for _, sp := range selected.SelectedPosition {
				if sp.Position != "" {
					attrs["selected_position"] = sp.Position
				}
			}
		}
	}
	if b, err := json.Marshal(attrs); err == nil {
		entry.Attributes = datatypes.JSON(b)
	}
	return entry, true
}

// countedItems reads a {"0": ..., "1": ..., "count": n} object in index order
func countedItems(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		// an empty collection is sometimes sent as []
		var arr []json.RawMessage
		if arrErr := json.Unmarshal(raw, &arr); arrErr == nil && len(arr) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("expected counted object: %w", err)
	}

	count := 0
	if rawCount, ok := obj["count"]; ok {
		if err := json.Unmarshal(rawCount, &count); err != nil {
			return nil, fmt.Errorf("invalid count: %w", err)
		}
	}

	items := make([]json.RawMessage, 0, count)
	for i := 0; i < count; i++ {
		item, ok := obj[strconv.Itoa(i)]
		if !ok {
			return nil, fmt.Errorf("missing item %d of %d", i, count)
		}
		items = append(items, item)
	}
	return items, nil
}

// mergeObjects decodes each object element of a Yahoo metadata array into dst.
// Elements that are not objects (Yahoo pads with []) are ignored.
func mergeObjects(raw json.RawMessage, dst interface{}) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return
	}
	for _, el := range elements {
		trimmed := bytes.TrimSpace(el)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		_ = json.Unmarshal(trimmed, dst)
	}
}
