package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/jstittsworth/player-valuation/internal/api/middleware"
	"github.com/jstittsworth/player-valuation/internal/identity"
	"github.com/jstittsworth/player-valuation/internal/metrics"
	"github.com/jstittsworth/player-valuation/internal/services"
	"github.com/jstittsworth/player-valuation/internal/testutil"
	"github.com/jstittsworth/player-valuation/internal/window"
	"github.com/jstittsworth/player-valuation/pkg/config"
	"github.com/jstittsworth/player-valuation/pkg/database"
)

const testSecret = "router-secret"

type stubEngine struct{}

func (stubEngine) Valuate(ctx context.Context, req services.ValuationRequest) (*services.ValuationResult, error) {
	return &services.ValuationResult{
		Window:  window.Window{Token: window.TokenSeasonCurr, SeasonAnchor: true},
		Sources: map[string]string{"statsapi:season:hitting": "ok"},
	}, nil
}

func (stubEngine) ValuatePlayer(ctx context.Context, req services.ValuationRequest, id int) (*services.PlayerValuation, *services.ValuationResult, error) {
	return nil, nil, services.ErrPlayerNotFound
}

type RouterTestSuite struct {
	suite.Suite
	db       *database.DB
	recorder *metrics.Recorder
	fetcher  *services.DataFetcherService
	router   *gin.Engine
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s.db = testutil.NewSQLiteDB(s.T())
	s.recorder = metrics.NewRecorder()
	cache := services.NewCacheService(nil, logger)

	s.fetcher = services.NewDataFetcherService(s.recorder, logger, time.Second)
	s.Require().NoError(s.fetcher.AddJob(services.JobIdentityRefresh, "", "Identity refresh", func(ctx context.Context) error {
		return nil
	}))
	s.Require().NoError(s.fetcher.AddJob(services.JobRosterSync, "", "Roster sync", func(ctx context.Context) error {
		return errors.New("yahoo returned 503")
	}))

	s.router = NewRouter(Dependencies{
		Config: &config.Config{
			JWTSecret:   testSecret,
			CorsOrigins: []string{"http://localhost:5173"},
			SessionTTL:  time.Hour,
		},
		DB:          s.db,
		Cache:       cache,
		Engine:      stubEngine{},
		Sessions:    services.NewSessionStore(cache, time.Hour),
		Identity:    identity.NewStore(s.db, logger),
		Breakers:    services.NewCircuitBreakerService(5, time.Second, s.recorder, logger),
		DataFetcher: s.fetcher,
		Metrics:     s.recorder,
		Logger:      logger,
	})
}

func (s *RouterTestSuite) do(method, path, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		token, err := middleware.IssueToken(testSecret, middleware.Claims{
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) TestProbes() {
	w := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(middleware.RequestIDHeader))

	w = s.do(http.MethodGet, "/ready", "")
	s.Equal(http.StatusOK, w.Code)

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &ready))
	s.Equal("ready", ready.Status)
	s.Equal("ok", ready.Checks["database"])
	s.Equal("disabled", ready.Checks["cache"])

	s.Require().NoError(s.db.Close())
	w = s.do(http.MethodGet, "/ready", "")
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *RouterTestSuite) TestMetricsEndpointSeesRequests() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/players", "").Code)

	w := s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	s.True(strings.Contains(body, "http_request_duration_seconds"))
	s.True(strings.Contains(body, `route="/api/v1/players"`))
}

func (s *RouterTestSuite) TestAdminRequiresAdminToken() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/admin/jobs", "").Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/api/v1/admin/jobs", "viewer").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/jobs", middleware.RoleAdmin).Code)
}

func (s *RouterTestSuite) TestAdminJobs() {
	w := s.do(http.MethodPost, "/api/v1/admin/identity/refresh", middleware.RoleAdmin)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/rosters/sync", middleware.RoleAdmin)
	s.Equal(http.StatusBadGateway, w.Code)
	s.Contains(w.Body.String(), "yahoo returned 503")

	w = s.do(http.MethodPost, "/api/v1/admin/cache/warm", middleware.RoleAdmin)
	s.Equal(http.StatusNotFound, w.Code, "warming job is not registered here")

	w = s.do(http.MethodGet, "/api/v1/admin/jobs", middleware.RoleAdmin)
	var body struct {
		Data []services.JobInfo `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Require().Len(body.Data, 2)
	s.Equal(services.JobIdentityRefresh, body.Data[0].ID)
	s.Equal(services.JobCompleted, body.Data[0].Status)
	s.Equal(1, body.Data[0].RunCount)
	s.Equal(services.JobFailed, body.Data[1].Status)
	s.Equal(1, body.Data[1].ErrorCount)
}

func (s *RouterTestSuite) TestCacheInvalidate() {
	w := s.do(http.MethodPost, "/api/v1/admin/cache/invalidate?target=sessions", middleware.RoleAdmin)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/cache/invalidate", middleware.RoleAdmin)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"deleted":0`)
	s.Contains(w.Body.String(), `"target":"all"`)
}

func (s *RouterTestSuite) TestSyncRuns() {
	w := s.do(http.MethodGet, "/api/v1/admin/sync-runs?limit=0", middleware.RoleAdmin)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/sync-runs", middleware.RoleAdmin)
	s.Equal(http.StatusOK, w.Code)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
