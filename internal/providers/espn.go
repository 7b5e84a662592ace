package providers

import (
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

// espnSlots maps ESPN lineup slot IDs to position labels. Bench, IL and NA slots are omitted.
var espnSlots = map[int]string{
	0:  "C",
	1:  "1B",
	2:  "2B",
	3:  "3B",
	4:  "SS",
	5:  "OF",
	6:  "2B/SS",
	7:  "1B/3B",
	8:  "LF",
	9:  "CF",
	10: "RF",
	11: "DH",
	12: "UTIL",
	13: "P",
	14: "SP",
	15: "RP",
	19: "IF",
}

// ESPNRosterClient reads league rosters from the ESPN fantasy API. Private leagues need the
// espn_s2 and SWID cookies of a league member.
type ESPNRosterClient struct {
	fetcher *Fetcher
	baseURL string
	season  int
	espnS2  string
	swid    string
	logger  *logrus.Logger
}

// NewESPNRosterClient creates an ESPN roster client
func NewESPNRosterClient(fetcher *Fetcher, baseURL string, season int, espnS2, swid string, logger *logrus.Logger) *ESPNRosterClient {
	return &ESPNRosterClient{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		season:  season,
		espnS2:  espnS2,
		swid:    swid,
		logger:  logger,
	}
}

func (c *ESPNRosterClient) Platform() string {
	return models.PlatformESPN
}

// FetchRoster returns every rostered player in the league
func (c *ESPNRosterClient) FetchRoster(ctx context.Context, leagueKey string) ([]models.RosterEntry, error) {
	header := http.Header{}
	var cookies []string
	if c.espnS2 != "" {
		cookies = append(cookies, (&http.Cookie{Name: "espn_s2", Value: c.espnS2}).String())
	}
	if c.swid != "" {
		cookies = append(cookies, (&http.Cookie{Name: "SWID", Value: c.swid}).String())
	}
	if len(cookies) > 0 {
		header.Set("Cookie", strings.Join(cookies, "; "))
	}

	url := fmt.Sprintf("%s/seasons/%d/segments/0/leagues/%s?view=mRoster", c.baseURL, c.season, leagueKey)
	body, err := c.fetcher.Get(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("espn roster %s: %w", leagueKey, err)
	}

	entries, err := ParseESPNRoster(body, leagueKey, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("espn roster %s: %w", leagueKey, err)
	}

	c.logger.WithFields(logrus.Fields{
		"platform":   models.PlatformESPN,
		"league_key": leagueKey,
		"entries":    len(entries),
	}).Debug("Fetched roster snapshot")
	return entries, nil
}

type espnLeague struct {
	Teams []struct {
		ID     int `json:"id"`
		Roster struct {
			Entries []struct {
				LineupSlotID    int `json:"lineupSlotId"`
				PlayerPoolEntry struct {
					Player struct {
						ID            int    `json:"id"`
						FullName      string `json:"fullName"`
						EligibleSlots []int  `json:"eligibleSlots"`
						ProTeamID     int    `json:"proTeamId"`
						Injured       bool   `json:"injured"`
					} `json:"player"`
				} `json:"playerPoolEntry"`
			} `json:"entries"`
		} `json:"roster"`
	} `json:"teams"`
}

// ParseESPNRoster converts an mRoster payload into roster entries. Team keys are ESPN team IDs.
func ParseESPNRoster(body []byte, leagueKey string, syncedAt time.Time) ([]models.RosterEntry, error) {
	var league espnLeague
	if err := json.Unmarshal(body, &league); err != nil {
		return nil, fmt.Errorf("failed to decode espn league: %w", err)
	}

	var entries []models.RosterEntry
	for _, team := range league.Teams {
		teamKey := strconv.Itoa(team.ID)
		for _, e := range team.Roster.Entries {
			p := e.PlayerPoolEntry.Player
			if p.ID <= 0 {
				continue
			}

			entry := models.RosterEntry{
				LeagueKey:         leagueKey,
				TeamKey:           teamKey,
				Platform:          models.PlatformESPN,
				PlatformPlayerID:  strconv.Itoa(p.ID),
				PlayerName:        p.FullName,
				EligiblePositions: espnPositions(p.EligibleSlots),
				SyncedAt:          syncedAt,
			}
			attrs := map[string]interface{}{
				"lineup_slot": e.LineupSlotID,
				"pro_team_id": p.ProTeamID,
				"injured":     p.Injured,
			}
			if b, err := json.Marshal(attrs); err == nil {
				entry.Attributes = datatypes.JSON(b)
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func espnPositions(slots []int) []string {
	seen := make(map[string]bool, len(slots))
	var positions []string
	for _, slot := range slots {
		label, ok := espnSlots[slot]
		if !ok || seen[label] {
			continue
		}
		seen[label] = true
		positions = append(positions, label)
	}
	return positions
}
