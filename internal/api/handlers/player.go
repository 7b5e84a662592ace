package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/api/middleware"
	"github.com/jstittsworth/player-valuation/internal/services"
	"github.com/jstittsworth/player-valuation/internal/window"
	"github.com/jstittsworth/player-valuation/pkg/config"
	"github.com/jstittsworth/player-valuation/pkg/utils"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "pv_session"
)

// Valuator is the engine surface the player endpoints need
type Valuator interface {
	Valuate(ctx context.Context, req services.ValuationRequest) (*services.ValuationResult, error)
	ValuatePlayer(ctx context.Context, req services.ValuationRequest, id int) (*services.PlayerValuation, *services.ValuationResult, error)
}

type PlayerHandler struct {
	engine     Valuator
	sessions   *services.SessionStore
	leagues    []config.League
	sessionTTL time.Duration
	logger     *logrus.Logger
}

func NewPlayerHandler(engine Valuator, sessions *services.SessionStore, leagues []config.League, sessionTTL time.Duration, logger *logrus.Logger) *PlayerHandler {
	return &PlayerHandler{
		engine:     engine,
		sessions:   sessions,
		leagues:    leagues,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// GetPlayers returns every fused player scored under the requested window
func (h *PlayerHandler) GetPlayers(c *gin.Context) {
	req, err := h.buildRequest(c)
	if err != nil {
		utils.SendValidationError(c, "Invalid query parameters", err.Error())
		return
	}

	result, err := h.engine.Valuate(c.Request.Context(), req)
	if err != nil {
		h.sendEngineError(c, err)
		return
	}

	utils.SendSuccessWithMeta(c, result.Players, buildMeta(req, result, len(result.Players)))
}

// GetPlayer returns one player with the score breakdown
func (h *PlayerHandler) GetPlayer(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		utils.SendValidationError(c, "Invalid player ID", c.Param("id"))
		return
	}

	req, err := h.buildRequest(c)
	if err != nil {
		utils.SendValidationError(c, "Invalid query parameters", err.Error())
		return
	}

	valuation, result, err := h.engine.ValuatePlayer(c.Request.Context(), req, id)
	if err != nil {
		h.sendEngineError(c, err)
		return
	}

	utils.SendSuccessWithMeta(c, valuation, buildMeta(req, result, 1))
}

// buildRequest parses the window and league context and merges it with the session defaults
func (h *PlayerHandler) buildRequest(c *gin.Context) (services.ValuationRequest, error) {
	req := services.ValuationRequest{
		Range:     strings.ToLower(strings.TrimSpace(c.Query("range"))),
		Sort:      strings.ToLower(c.Query("sort")),
		RequestID: middleware.GetRequestID(c),
	}

	var err error
	if req.Start, err = parseDate(c.Query("start")); err != nil {
		return req, fmt.Errorf("%w: start %v", utils.ErrInvalidInput, err)
	}
	if req.End, err = parseDate(c.Query("end")); err != nil {
		return req, fmt.Errorf("%w: end %v", utils.ErrInvalidInput, err)
	}
	if req.Range == "" && req.Start != nil && req.End != nil {
		req.Range = string(window.TokenCustom)
	}
	if req.Range == string(window.TokenCustom) && req.Start != nil && req.End != nil && req.End.Before(*req.Start) {
		return req, fmt.Errorf("%w: end is before start", utils.ErrInvalidInput)
	}

	req.League = h.resolveLeague(c)
	return req, nil
}

func (h *PlayerHandler) resolveLeague(c *gin.Context) services.SessionDefaults {
	supplied := services.SessionDefaults{
		Platform:  strings.ToLower(c.Query("platform")),
		LeagueKey: c.Query("league"),
		TeamKey:   c.Query("team"),
	}
	if supplied.LeagueKey != "" && supplied.Platform == "" {
		if league, ok := h.findLeague(supplied.LeagueKey); ok {
			supplied.Platform = league.Platform
		}
	}

	sessionID := sessionIDFrom(c)
	if sessionID == "" && !supplied.IsZero() {
		sessionID = uuid.NewString()
		c.SetCookie(SessionCookie, sessionID, int(h.sessionTTL.Seconds()), "/", "", false, true)
		c.Header(SessionHeader, sessionID)
	}

	league, err := h.sessions.Apply(c.Request.Context(), sessionID, supplied)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"component":  "player_handler",
			"request_id": middleware.GetRequestID(c),
		}).WithError(err).Warn("Session defaults unavailable, using supplied values")
	}

	// a configured league carries the operator's own team
	if configured, ok := h.findLeague(league.LeagueKey); ok {
		if league.Platform == "" {
			league.Platform = configured.Platform
		}
		if league.TeamKey == "" {
			league.TeamKey = configured.TeamKey
		}
	}
	return league
}

func (h *PlayerHandler) findLeague(leagueKey string) (config.League, bool) {
	if leagueKey == "" {
		return config.League{}, false
	}
	for _, l := range h.leagues {
		if l.LeagueKey == leagueKey {
			return l, true
		}
	}
	return config.League{}, false
}

func (h *PlayerHandler) sendEngineError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, services.ErrPlayerNotFound):
		utils.SendNotFound(c, "Player not found")
	case errors.Is(err, services.ErrBaselineUnavailable):
		utils.SendUpstreamError(c, "Official stats unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		utils.SendError(c, http.StatusGatewayTimeout, utils.NewAppError(utils.ErrCodeUpstreamUnavailable, "Request budget exceeded"))
	default:
		utils.SendInternalError(c, "Failed to value players")
	}
}

func buildMeta(req services.ValuationRequest, result *services.ValuationResult, total int) *utils.Meta {
	return &utils.Meta{
		Total:     total,
		Range:     string(result.Window.Token),
		Start:     result.Window.StartDate(),
		End:       result.Window.EndDate(),
		League:    req.League.LeagueKey,
		Team:      req.League.TeamKey,
		Degraded:  result.Degraded,
		RequestID: req.RequestID,
		Sources:   result.Sources,
	}
}

func sessionIDFrom(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" {
		return id
	}
	if id, err := c.Cookie(SessionCookie); err == nil {
		return id
	}
	return ""
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(window.DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("must be %s", window.DateLayout)
	}
	return &t, nil
}
