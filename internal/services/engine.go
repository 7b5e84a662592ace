package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/aggregator"
	"github.com/jstittsworth/player-valuation/internal/identity"
	"github.com/jstittsworth/player-valuation/internal/metrics"
	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/internal/ownership"
	"github.com/jstittsworth/player-valuation/internal/player"
	"github.com/jstittsworth/player-valuation/internal/providers"
	"github.com/jstittsworth/player-valuation/internal/scoring"
	"github.com/jstittsworth/player-valuation/internal/window"
	"github.com/jstittsworth/player-valuation/pkg/database"
)

var (
	// ErrBaselineUnavailable means neither official season feed answered; nothing can be fused
	ErrBaselineUnavailable = errors.New("official stats baseline unavailable")
	// ErrPlayerNotFound means the canonical ID is not in any fetched source
	ErrPlayerNotFound = errors.New("player not found")
)

// StatsSource is the official stats feed
type StatsSource interface {
	Fetch(ctx context.Context, q providers.StatsQuery) ([]player.StatRow, error)
}

// LeaderboardSource downloads advanced-metrics leaderboards
type LeaderboardSource interface {
	Fetch(ctx context.Context, board providers.Leaderboard, season int) ([]player.LeaderboardRow, error)
}

// Upstreams groups the engine's data sources
type Upstreams struct {
	Stats        StatsSource
	Leaderboards LeaderboardSource
	Boards       []providers.Leaderboard
	// Rosters is keyed by platform
	Rosters map[string]providers.RosterSource
}

// EngineConfig holds the request budget and season context
type EngineConfig struct {
	Season             int
	RequestTimeout     time.Duration
	LeaderboardTimeout time.Duration
	CacheTTL           time.Duration
}

// ValuationRequest is one call of the engine's entry point
type ValuationRequest struct {
	Range     string
	Start     *time.Time
	End       *time.Time
	League    SessionDefaults
	Sort      string
	RequestID string
}

// PlayerValuation is the serialized shape of one scored player
type PlayerValuation struct {
	ID           int                    `json:"id"`
	Name         string                 `json:"name"`
	Team         string                 `json:"team"`
	Position     string                 `json:"position"`
	Type         player.Type            `json:"type"`
	Level        player.Level           `json:"level"`
	Age          int                    `json:"age,omitempty"`
	Stats        player.StatLine        `json:"stats"`
	Availability player.OwnershipStatus `json:"availability"`
	OwnerTeamKey string                 `json:"ownerTeamKey,omitempty"`
	Scores       player.Scores          `json:"scores"`
	Breakdown    *scoring.Breakdown     `json:"breakdown,omitempty"`
}

// ValuationResult is the engine output plus what the response meta reports
type ValuationResult struct {
	Players []PlayerValuation
	Window  window.Window
	// Sources maps every upstream label to its fetch outcome
	Sources  map[string]string
	Degraded bool
	Fusion   aggregator.Stats
}

// ValuationEngine fetches every source concurrently, fuses, tags ownership and scores
type ValuationEngine struct {
	upstreams Upstreams
	identity  *identity.Store
	db        *database.DB
	cache     *CacheService
	breakers  *CircuitBreakerService
	scorer    *scoring.Scorer
	selector  *window.Selector
	metrics   *metrics.Recorder
	logger    *logrus.Logger
	cfg       EngineConfig

	advancedKeys map[string]bool
}

// NewValuationEngine creates the engine
func NewValuationEngine(
	upstreams Upstreams,
	identityStore *identity.Store,
	db *database.DB,
	cache *CacheService,
	breakers *CircuitBreakerService,
	scorer *scoring.Scorer,
	selector *window.Selector,
	recorder *metrics.Recorder,
	logger *logrus.Logger,
	cfg EngineConfig,
) *ValuationEngine {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 8 * time.Second
	}
	if cfg.LeaderboardTimeout <= 0 {
		cfg.LeaderboardTimeout = 4 * time.Second
	}
	if cache == nil {
		cache = NewCacheService(nil, logger)
	}

	advanced := make(map[string]bool)
	for _, board := range upstreams.Boards {
		for _, key := range board.Columns {
			advanced[key] = true
		}
	}

	return &ValuationEngine{
		upstreams:    upstreams,
		identity:     identityStore,
		db:           db,
		cache:        cache,
		breakers:     breakers,
		scorer:       scorer,
		selector:     selector,
		metrics:      recorder,
		logger:       logger,
		cfg:          cfg,
		advancedKeys: advanced,
	}
}

// Valuate returns every fused player scored under the requested window
func (e *ValuationEngine) Valuate(ctx context.Context, req ValuationRequest) (*ValuationResult, error) {
	w := e.selector.Resolve(req.Range, req.Start, req.End)
	sel := window.Select(w)

	fetched, err := e.gather(ctx, w, req.League, req.RequestID)
	if err != nil {
		return nil, err
	}

	players, fusion := aggregator.FuseAll(fetched.sources)
	idx := e.ownershipIndex(players, fetched.roster)

	valuations := make([]PlayerValuation, 0, len(players))
	for i := range players {
		valuations = append(valuations, e.value(&players[i], sel, idx, req.League.TeamKey, false))
	}
	SortValuations(valuations, req.Sort)

	e.metrics.RecordScored(string(w.Token), len(valuations))
	if len(fusion.TwoWayPlayers) > 0 {
		e.requestLogger(req, w).WithField("player_ids", fusion.TwoWayPlayers).
			Debug("Two-way players scored on their first stat group only")
	}
	e.requestLogger(req, w).WithFields(logrus.Fields{
		"players":      fusion.Players,
		"prospects":    fusion.Prospects,
		"orphan_rows":  fusion.OrphanLeaderRows,
		"ignored_rows": fusion.IgnoredGroupRows,
		"degraded":     fetched.degraded(),
	}).Info("Valuation complete")

	return &ValuationResult{
		Players:  valuations,
		Window:   w,
		Sources:  fetched.outcomes,
		Degraded: fetched.degraded(),
		Fusion:   fusion,
	}, nil
}

// ValuatePlayer scores a single canonical ID and includes the score breakdown
func (e *ValuationEngine) ValuatePlayer(ctx context.Context, req ValuationRequest, id int) (*PlayerValuation, *ValuationResult, error) {
	w := e.selector.Resolve(req.Range, req.Start, req.End)
	sel := window.Select(w)

	fetched, err := e.gather(ctx, w, req.League, req.RequestID)
	if err != nil {
		return nil, nil, err
	}

	p, ok := aggregator.Fuse(id, fetched.sources)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}

	// name fallback ambiguity is judged against the whole pool, as in the list view
	pool, fusion := aggregator.FuseAll(fetched.sources)
	idx := e.ownershipIndex(pool, fetched.roster)

	v := e.value(&p, sel, idx, req.League.TeamKey, true)
	return &v, &ValuationResult{
		Window:   w,
		Sources:  fetched.outcomes,
		Degraded: fetched.degraded(),
		Fusion:   fusion,
	}, nil
}

// Warm loads the current season baseline and leaderboards into the cache
func (e *ValuationEngine) Warm(ctx context.Context) (map[string]string, error) {
	fetched, err := e.gather(ctx, window.Window{Token: window.TokenSeasonCurr, SeasonAnchor: true}, SessionDefaults{}, "")
	if err != nil {
		return nil, err
	}
	return fetched.outcomes, nil
}

func (e *ValuationEngine) ownershipIndex(players []player.CanonicalPlayer, roster []models.RosterEntry) *ownership.Index {
	if len(roster) == 0 {
		return nil
	}
	resolver := identity.NewResolver(e.snapshot(), identity.NewNameIndex(players))
	idx := ownership.BuildIndex(roster, resolver)

	mapped, byName, unresolved := idx.Counts()
	e.logger.WithFields(logrus.Fields{
		"component":  "ownership",
		"mapped":     mapped,
		"by_name":    byName,
		"unresolved": unresolved,
	}).Debug("Ownership index built")
	return idx
}

func (e *ValuationEngine) value(p *player.CanonicalPlayer, sel window.Selection, idx *ownership.Index, teamKey string, withBreakdown bool) PlayerValuation {
	in := scoring.Prepare(p, sel)
	scores, breakdown := e.scorer.Score(in)
	owner := ownership.Tag(p, idx, teamKey)

	v := PlayerValuation{
		ID:           p.ID,
		Name:         p.Name,
		Team:         p.Team,
		Position:     p.Position,
		Type:         p.Type,
		Level:        p.Level,
		Age:          p.Age,
		Stats:        e.displayStats(p, in.Counting),
		Availability: owner.Status,
		OwnerTeamKey: owner.TeamKey,
		Scores:       scores,
	}
	if withBreakdown {
		v.Breakdown = &breakdown
	}
	return v
}

// displayStats is the display bucket plus season-level advanced metrics the bucket lacks
func (e *ValuationEngine) displayStats(p *player.CanonicalPlayer, display player.StatLine) player.StatLine {
	out := display.Clone()
	if out == nil {
		out = player.StatLine{}
	}
	for key, v := range p.Bucket(player.BucketSeason) {
		if e.advancedKeys[key] {
			if _, ok := out[key]; !ok {
				out[key] = v
			}
		}
	}
	return out
}

// SortValuations orders by the named score (roto by default), highest first, then by ID
func SortValuations(vs []PlayerValuation, by string) {
	score := func(v PlayerValuation) int { return v.Scores.Roto }
	switch strings.ToLower(by) {
	case "dyna":
		score = func(v PlayerValuation) int { return v.Scores.Dyna }
	case "points":
		score = func(v PlayerValuation) int { return v.Scores.Points }
	case "range":
		score = func(v PlayerValuation) int { return v.Scores.Range }
	}
	sort.SliceStable(vs, func(i, j int) bool {
		si, sj := score(vs[i]), score(vs[j])
		if si != sj {
			return si > sj
		}
		return vs[i].ID < vs[j].ID
	})
}

func (e *ValuationEngine) requestLogger(req ValuationRequest, w window.Window) *logrus.Entry {
	return e.logger.WithFields(logrus.Fields{
		"component":  "valuation_engine",
		"request_id": req.RequestID,
		"range":      string(w.Token),
		"league_key": req.League.LeagueKey,
	})
}

// Source fan-out

type fetchKind int

const (
	kindSeason fetchKind = iota
	kindRange
	kindPrior
	kindLeaderboard
	kindRoster
)

// FetchResult is what one upstream goroutine sends back
type FetchResult struct {
	Source   string
	Outcome  string
	Err      error
	Duration time.Duration

	rows       []player.StatRow
	leaderRows []player.LeaderboardRow
	rosterRows []models.RosterEntry
}

type fetchJob struct {
	source  string
	kind    fetchKind
	group   player.StatGroup
	board   string
	timeout time.Duration
	run     func(ctx context.Context, res *FetchResult) error
}

type fetchedSources struct {
	sources  aggregator.Sources
	roster   []models.RosterEntry
	outcomes map[string]string
}

func (f *fetchedSources) degraded() bool {
	for _, outcome := range f.outcomes {
		if outcome != metrics.OutcomeOK {
			return true
		}
	}
	return false
}

func (e *ValuationEngine) gather(ctx context.Context, w window.Window, league SessionDefaults, requestID string) (*fetchedSources, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	jobs := e.plan(w, league)
	results := make(chan FetchResult, len(jobs))

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job fetchJob) {
			defer wg.Done()
			results <- e.execute(ctx, job, requestID)
		}(job)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make(map[string]FetchResult, len(jobs))
collect:
	for {
		select {
		case res, ok := <-results:
			if !ok {
				break collect
			}
			collected[res.Source] = res
		case <-ctx.Done():
			// late results are abandoned; the buffered channel lets their goroutines exit
			break collect
		}
	}

	fetched := &fetchedSources{
		sources:  aggregator.Sources{Leaderboards: make(map[string][]player.LeaderboardRow)},
		outcomes: make(map[string]string, len(jobs)),
	}
	byGroup := map[fetchKind]map[player.StatGroup][]player.StatRow{
		kindSeason: {},
		kindRange:  {},
		kindPrior:  {},
	}
	baselineFailures := 0
	var baselineErrs []string
	rosterFailed := false

	for _, job := range jobs {
		res, ok := collected[job.source]
		if !ok {
			res = FetchResult{Source: job.source, Outcome: metrics.OutcomeTimeout, Err: ctx.Err()}
			e.metrics.RecordFetch(job.source, metrics.OutcomeTimeout, e.cfg.RequestTimeout)
		}
		fetched.outcomes[job.source] = res.Outcome

		if res.Err != nil {
			switch job.kind {
			case kindSeason:
				baselineFailures++
				baselineErrs = append(baselineErrs, fmt.Sprintf("%s: %v", job.source, res.Err))
			case kindRoster:
				rosterFailed = true
			}
			continue
		}

		switch job.kind {
		case kindSeason, kindRange, kindPrior:
			byGroup[job.kind][job.group] = res.rows
		case kindLeaderboard:
			fetched.sources.Leaderboards[job.board] = res.leaderRows
		case kindRoster:
			fetched.roster = res.rosterRows
		}
	}

	if baselineFailures > 0 && baselineFailures == countKind(jobs, kindSeason) {
		return nil, fmt.Errorf("%w: %s", ErrBaselineUnavailable, strings.Join(baselineErrs, "; "))
	}

	fetched.sources.Season = hittingFirst(byGroup[kindSeason])
	fetched.sources.Range = hittingFirst(byGroup[kindRange])
	fetched.sources.PriorSeason = hittingFirst(byGroup[kindPrior])

	if league.LeagueKey != "" && (rosterFailed || !e.hasRosterSource(league.Platform)) {
		fetched.roster = e.storedRoster(league.LeagueKey)
		if rosterFailed {
			fetched.outcomes["roster:stored"] = metrics.OutcomeOK
		}
	}
	fetched.sources.Rostered = ownership.MappedPlayers(fetched.roster, e.snapshot())

	return fetched, nil
}

func (e *ValuationEngine) plan(w window.Window, league SessionDefaults) []fetchJob {
	season := e.cfg.Season
	groups := []player.StatGroup{player.GroupHitting, player.GroupPitching}

	var jobs []fetchJob
	for _, g := range groups {
		jobs = append(jobs, e.statsJob(kindSeason, "season", providers.StatsQuery{Group: g, Season: season}))
		jobs = append(jobs, e.statsJob(kindPrior, "prior", providers.StatsQuery{Group: g, Season: season - 1}))
		if w.HasRange() {
			jobs = append(jobs, e.statsJob(kindRange, "range", providers.StatsQuery{
				Group:  g,
				Season: w.End.Year(),
				Start:  w.StartDate(),
				End:    w.EndDate(),
			}))
		}
	}

	if e.upstreams.Leaderboards != nil {
		for _, board := range e.upstreams.Boards {
			jobs = append(jobs, e.leaderboardJob(board, season))
		}
	}

	if league.LeagueKey != "" && e.hasRosterSource(league.Platform) {
		jobs = append(jobs, e.rosterJob(e.upstreams.Rosters[league.Platform], league.LeagueKey))
	}
	return jobs
}

func (e *ValuationEngine) statsJob(kind fetchKind, label string, q providers.StatsQuery) fetchJob {
	source := fmt.Sprintf("statsapi:%s:%s", label, q.Group)
	return fetchJob{
		source: source,
		kind:   kind,
		group:  q.Group,
		run: func(ctx context.Context, res *FetchResult) error {
			rows, _, err := Cached(ctx, e.cache, StatsCacheKey(q.Label()), e.cfg.CacheTTL, func(ctx context.Context) ([]player.StatRow, error) {
				// per-job breaker so optional prior and range queries never trip the baseline
				v, err := e.breakers.Execute(source, func() (interface{}, error) {
					return e.upstreams.Stats.Fetch(ctx, q)
				})
				if err != nil {
					return nil, err
				}
				return v.([]player.StatRow), nil
			})
			res.rows = rows
			return err
		},
	}
}

func (e *ValuationEngine) leaderboardJob(board providers.Leaderboard, season int) fetchJob {
	source := "leaderboard:" + board.Name
	return fetchJob{
		source:  source,
		kind:    kindLeaderboard,
		board:   board.Name,
		timeout: e.cfg.LeaderboardTimeout,
		run: func(ctx context.Context, res *FetchResult) error {
			rows, _, err := Cached(ctx, e.cache, LeaderboardCacheKey(board.Name, season), e.cfg.CacheTTL, func(ctx context.Context) ([]player.LeaderboardRow, error) {
				v, err := e.breakers.Execute(source, func() (interface{}, error) {
					return e.upstreams.Leaderboards.Fetch(ctx, board, season)
				})
				if err != nil {
					return nil, err
				}
				return v.([]player.LeaderboardRow), nil
			})
			res.leaderRows = rows
			return err
		},
	}
}

func (e *ValuationEngine) rosterJob(src providers.RosterSource, leagueKey string) fetchJob {
	source := "roster:" + src.Platform()
	return fetchJob{
		source: source,
		kind:   kindRoster,
		run: func(ctx context.Context, res *FetchResult) error {
			v, err := e.breakers.Execute(source, func() (interface{}, error) {
				return src.FetchRoster(ctx, leagueKey)
			})
			if err != nil {
				return err
			}
			res.rosterRows = v.([]models.RosterEntry)
			return nil
		},
	}
}

func (e *ValuationEngine) execute(ctx context.Context, job fetchJob, requestID string) FetchResult {
	if job.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.timeout)
		defer cancel()
	}

	res := FetchResult{Source: job.source}
	start := time.Now()
	res.Err = job.run(ctx, &res)
	res.Duration = time.Since(start)
	res.Outcome = fetchOutcome(res.Err)

	e.metrics.RecordFetch(job.source, res.Outcome, res.Duration)
	if res.Err != nil {
		e.logger.WithFields(logrus.Fields{
			"component":  "valuation_engine",
			"request_id": requestID,
			"source":     job.source,
			"outcome":    res.Outcome,
			"duration":   res.Duration.String(),
		}).WithError(res.Err).Warn("Upstream source degraded to empty")
	}
	return res
}

func (e *ValuationEngine) snapshot() *identity.Snapshot {
	if e.identity == nil {
		return nil
	}
	return e.identity.Snapshot()
}

func (e *ValuationEngine) hasRosterSource(platform string) bool {
	_, ok := e.upstreams.Rosters[platform]
	return ok
}

// storedRoster reads the last synced snapshot. It runs after the fan-out so it gets its own budget.
func (e *ValuationEngine) storedRoster(leagueKey string) []models.RosterEntry {
	if e.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	entries, err := models.ListRosterEntries(ctx, e.db, leagueKey)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"component":  "valuation_engine",
			"league_key": leagueKey,
		}).WithError(err).Warn("Stored roster unavailable")
		return nil
	}
	return entries
}

func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case IsBreakerOpen(err):
		return metrics.OutcomeBreakerOpen
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}

func countKind(jobs []fetchJob, kind fetchKind) int {
	n := 0
	for _, j := range jobs {
		if j.kind == kind {
			n++
		}
	}
	return n
}

func hittingFirst(byGroup map[player.StatGroup][]player.StatRow) []player.StatRow {
	rows := make([]player.StatRow, 0, len(byGroup[player.GroupHitting])+len(byGroup[player.GroupPitching]))
	rows = append(rows, byGroup[player.GroupHitting]...)
	return append(rows, byGroup[player.GroupPitching]...)
}
