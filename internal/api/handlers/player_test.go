package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/jstittsworth/player-valuation/internal/api/handlers"
	"github.com/jstittsworth/player-valuation/internal/api/middleware"
	"github.com/jstittsworth/player-valuation/internal/player"
	"github.com/jstittsworth/player-valuation/internal/services"
	"github.com/jstittsworth/player-valuation/internal/window"
	"github.com/jstittsworth/player-valuation/pkg/config"
	"github.com/jstittsworth/player-valuation/pkg/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *utils.AppError `json:"error"`
	Meta    *utils.Meta     `json:"meta"`
}

type fakeValuator struct {
	mu       sync.Mutex
	requests []services.ValuationRequest
	err      error
}

func (f *fakeValuator) record(req services.ValuationRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeValuator) last() services.ValuationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeValuator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeValuator) result(req services.ValuationRequest) *services.ValuationResult {
	start := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	w := window.Window{Token: window.Token(req.Range), Start: start, End: start.AddDate(0, 0, 7)}
	if req.Range == "" {
		w = window.Window{Token: window.TokenSeasonCurr, SeasonAnchor: true}
	}
	return &services.ValuationResult{
		Players: []services.PlayerValuation{
			{ID: 660670, Name: "Ronald Acuña Jr.", Type: player.TypeBatter, Level: player.LevelMLB, Scores: player.Scores{Roto: 100}},
			{ID: 669373, Name: "Tarik Skubal", Type: player.TypePitcher, Level: player.LevelMLB, Scores: player.Scores{Roto: 56}},
		},
		Window:   w,
		Sources:  map[string]string{"statsapi:season:hitting": "ok", "leaderboard:sprint_speed": "timeout"},
		Degraded: true,
	}
}

func (f *fakeValuator) Valuate(ctx context.Context, req services.ValuationRequest) (*services.ValuationResult, error) {
	f.record(req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result(req), nil
}

func (f *fakeValuator) ValuatePlayer(ctx context.Context, req services.ValuationRequest, id int) (*services.PlayerValuation, *services.ValuationResult, error) {
	f.record(req)
	if f.err != nil {
		return nil, nil, f.err
	}
	res := f.result(req)
	for i := range res.Players {
		if res.Players[i].ID == id {
			return &res.Players[i], res, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %d", services.ErrPlayerNotFound, id)
}

type PlayerHandlerTestSuite struct {
	suite.Suite
	engine *fakeValuator
	router *gin.Engine
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func (s *PlayerHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.engine = &fakeValuator{}

	sessions := services.NewSessionStore(services.NewCacheService(nil, quietLogger()), time.Hour)
	leagues := []config.League{{Platform: "yahoo", LeagueKey: "mlb.l.1234", TeamKey: "mlb.l.1234.t.3"}}
	h := handlers.NewPlayerHandler(s.engine, sessions, leagues, time.Hour, quietLogger())

	s.router = gin.New()
	s.router.Use(middleware.RequestID())
	s.router.GET("/players", h.GetPlayers)
	s.router.GET("/players/:id", h.GetPlayer)
}

func (s *PlayerHandlerTestSuite) get(path string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var body envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func (s *PlayerHandlerTestSuite) TestGetPlayersReportsWindowAndSources() {
	w, body := s.get("/players?range=last_7&league=mlb.l.1234&sort=points", map[string]string{
		handlers.SessionHeader:     "session-1",
		middleware.RequestIDHeader: "req-42",
	})

	s.Equal(http.StatusOK, w.Code)
	s.True(body.Success)
	s.Require().NotNil(body.Meta)
	s.Equal(2, body.Meta.Total)
	s.Equal("last_7", body.Meta.Range)
	s.Equal("2025-06-08", body.Meta.Start)
	s.Equal("2025-06-15", body.Meta.End)
	s.Equal("mlb.l.1234", body.Meta.League)
	s.Equal("mlb.l.1234.t.3", body.Meta.Team, "configured leagues supply the operator's team")
	s.True(body.Meta.Degraded)
	s.Equal("req-42", body.Meta.RequestID)
	s.Equal("timeout", body.Meta.Sources["leaderboard:sprint_speed"])

	var players []services.PlayerValuation
	s.Require().NoError(json.Unmarshal(body.Data, &players))
	s.Require().Len(players, 2)
	s.Equal(660670, players[0].ID)

	req := s.engine.last()
	s.Equal("points", req.Sort)
	s.Equal("yahoo", req.League.Platform)
	s.Equal("req-42", req.RequestID)
}

func (s *PlayerHandlerTestSuite) TestSessionDefaultsCarryOver() {
	headers := map[string]string{handlers.SessionHeader: "session-2"}
	s.get("/players?league=espn.99&team=7&platform=ESPN", headers)
	first := s.engine.last()
	s.Equal("espn", first.League.Platform)
	s.Equal("7", first.League.TeamKey)

	_, body := s.get("/players?range=last_30", headers)
	second := s.engine.last()
	s.Equal("espn.99", second.League.LeagueKey)
	s.Equal("7", second.League.TeamKey)
	s.Equal("espn.99", body.Meta.League)

	// switching league drops the old team
	s.get("/players?league=mlb.l.1234", headers)
	third := s.engine.last()
	s.Equal("mlb.l.1234", third.League.LeagueKey)
	s.Equal("mlb.l.1234.t.3", third.League.TeamKey)
}

func (s *PlayerHandlerTestSuite) TestNewSessionIsIssuedWhenLeagueSupplied() {
	w, _ := s.get("/players?league=espn.99&team=7", nil)
	s.Equal(http.StatusOK, w.Code)

	sessionID := w.Header().Get(handlers.SessionHeader)
	s.Len(sessionID, 36)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == handlers.SessionCookie {
			cookie = c
		}
	}
	s.Require().NotNil(cookie)
	s.Equal(sessionID, cookie.Value)
	s.True(cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/players", nil)
	req.AddCookie(&http.Cookie{Name: handlers.SessionCookie, Value: sessionID})
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("espn.99", s.engine.last().League.LeagueKey)
}

func (s *PlayerHandlerTestSuite) TestNoSessionWithoutLeagueContext() {
	w, _ := s.get("/players", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Empty(w.Header().Get(handlers.SessionHeader))
	s.Empty(w.Result().Cookies())
	s.Equal("", s.engine.last().Range)
}

func (s *PlayerHandlerTestSuite) TestCustomDates() {
	s.get("/players?start=2025-05-01&end=2025-05-31", nil)
	req := s.engine.last()
	s.Equal("custom", req.Range)
	s.Require().NotNil(req.Start)
	s.Require().NotNil(req.End)
	s.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), *req.Start)
	s.Equal(time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), *req.End)
}

func (s *PlayerHandlerTestSuite) TestInvalidQueryIsRejected() {
	tests := []struct {
		name string
		path string
	}{
		{"bad start", "/players?range=custom&start=05/01/2025&end=2025-05-31"},
		{"bad end", "/players?range=custom&start=2025-05-01&end=yesterday"},
		{"reversed", "/players?range=custom&start=2025-05-31&end=2025-05-01"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w, body := s.get(tt.path, nil)
			s.Equal(http.StatusBadRequest, w.Code)
			s.False(body.Success)
			s.Require().NotNil(body.Error)
			s.Equal(utils.ErrCodeValidation, body.Error.Code)
		})
	}
	s.Zero(s.engine.calls())
}

func (s *PlayerHandlerTestSuite) TestBaselineFailureIsBadGateway() {
	s.engine.err = fmt.Errorf("%w: season hitting: boom", services.ErrBaselineUnavailable)

	w, body := s.get("/players", nil)
	s.Equal(http.StatusBadGateway, w.Code)
	s.Require().NotNil(body.Error)
	s.Equal(utils.ErrCodeUpstreamUnavailable, body.Error.Code)
}

func (s *PlayerHandlerTestSuite) TestGetPlayer() {
	w, body := s.get("/players/669373?range=last_7", nil)
	s.Equal(http.StatusOK, w.Code)

	var p services.PlayerValuation
	s.Require().NoError(json.Unmarshal(body.Data, &p))
	s.Equal("Tarik Skubal", p.Name)
	s.Equal(player.TypePitcher, p.Type)
	s.Equal(1, body.Meta.Total)

	w, body = s.get("/players/123", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(utils.ErrCodeNotFound, body.Error.Code)

	w, body = s.get("/players/abc", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(utils.ErrCodeValidation, body.Error.Code)
}

func TestPlayerHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(PlayerHandlerTestSuite))
}
