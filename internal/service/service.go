// Package service orchestrates the daily index build: loading snapshots,
// folding the engine forward, persisting states, and serving read paths
// through the cache.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wonny/ewindex/internal/calendar"
	"github.com/wonny/ewindex/internal/export"
	"github.com/wonny/ewindex/internal/index"
	"github.com/wonny/ewindex/internal/returns"
	"github.com/wonny/ewindex/internal/store"
	"github.com/wonny/ewindex/pkg/logger"
	"github.com/wonny/ewindex/pkg/redis"
)

// MarketStore provides stored market snapshots.
type MarketStore interface {
	SnapshotsForDate(ctx context.Context, date time.Time) ([]index.StockSnapshot, error)
	LatestDate(ctx context.Context) (time.Time, error)
}

// IndexStore persists and retrieves index states and changes.
type IndexStore interface {
	SaveState(ctx context.Context, state index.IndexState, changes []index.CompositionChange) error
	LoadState(ctx context.Context, date time.Time) (index.IndexState, error)
	StatesBetween(ctx context.Context, from, to time.Time) ([]store.StatePoint, error)
	LatestStateDate(ctx context.Context) (time.Time, error)
	ChangesBetween(ctx context.Context, from, to time.Time) ([]index.CompositionChange, error)
}

// Service exposes the index operations behind the API and CLI.
type Service struct {
	settings index.Settings
	markets  MarketStore
	states   IndexStore
	cache    *redis.Cache
	logger   *logger.Logger
}

// New creates a service. cache may be backed by a disabled client; reads
// then always go to the store.
func New(settings index.Settings, markets MarketStore, states IndexStore, cache *redis.Cache, log *logger.Logger) *Service {
	return &Service{
		settings: settings,
		markets:  markets,
		states:   states,
		cache:    cache,
		logger:   log,
	}
}

// BuildResult summarizes a build run.
type BuildResult struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	DaysBuilt  int       `json:"days_built"`
	Changes    int       `json:"changes"`
	FinalLevel float64   `json:"final_level"`
}

// BuildRange folds the index forward over every trading day in [from, to],
// persisting each day's state and changes. The range must start at the
// base date or directly after already-built history.
func (s *Service) BuildRange(ctx context.Context, from, to time.Time) (*BuildResult, error) {
	from = calendar.Normalize(from)
	to = calendar.Normalize(to)

	if from.Before(s.settings.BaseDate) {
		return nil, &index.ValidationError{
			Field:  "from",
			Date:   from,
			Reason: fmt.Sprintf("before base date %s", s.settings.BaseDate.Format("2006-01-02")),
		}
	}

	days := calendar.Expand(from, to)
	if len(days) == 0 {
		return nil, &index.ValidationError{
			Field:  "range",
			Reason: fmt.Sprintf("no trading days in %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		}
	}

	prior, havePrior, err := s.priorState(ctx, days[0])
	if err != nil {
		return nil, err
	}

	result := &BuildResult{From: days[0], To: days[len(days)-1]}
	for _, day := range days {
		snapshots, err := s.markets.SnapshotsForDate(ctx, day)
		if err != nil {
			return result, fmt.Errorf("load snapshots for %s: %w", day.Format("2006-01-02"), err)
		}
		if len(snapshots) == 0 {
			return result, &index.InsufficientDataError{
				Date: day,
				What: "market snapshots",
				Need: s.settings.Size,
				Have: 0,
			}
		}

		var (
			state   index.IndexState
			changes []index.CompositionChange
		)
		if havePrior {
			state, changes, err = index.Advance(s.settings, prior, day, snapshots)
		} else {
			state, changes, err = index.Initialize(s.settings, snapshots)
		}
		if err != nil {
			return result, fmt.Errorf("build %s: %w", day.Format("2006-01-02"), err)
		}

		if err := s.states.SaveState(ctx, state, changes); err != nil {
			return result, fmt.Errorf("persist %s: %w", day.Format("2006-01-02"), err)
		}
		s.cacheDay(ctx, state, changes)

		s.logger.WithFields(map[string]interface{}{
			"date":    day.Format("2006-01-02"),
			"level":   state.Level(),
			"members": len(state.Members),
			"changes": len(changes),
		}).Info("Built index day")

		prior, havePrior = state, true
		result.DaysBuilt++
		result.Changes += len(changes)
		result.FinalLevel = state.Level()
	}

	return result, nil
}

// priorState resolves the state the first build day folds from. The base
// date itself needs none; any later day requires the previous trading
// day's state to already exist.
func (s *Service) priorState(ctx context.Context, first time.Time) (index.IndexState, bool, error) {
	if first.Equal(s.settings.BaseDate) {
		return index.IndexState{}, false, nil
	}

	prevDay := calendar.PrevTradingDay(first)
	prior, err := s.states.LoadState(ctx, prevDay)
	if errors.Is(err, store.ErrStateNotFound) {
		return index.IndexState{}, false, &index.ValidationError{
			Field:  "from",
			Date:   first,
			Reason: fmt.Sprintf("no prior state for %s; build from the base date first", prevDay.Format("2006-01-02")),
		}
	}
	if err != nil {
		return index.IndexState{}, false, fmt.Errorf("load prior state: %w", err)
	}
	return prior, true, nil
}

// Composition returns the stored state for a date, read through the cache.
func (s *Service) Composition(ctx context.Context, date time.Time) (index.IndexState, error) {
	date = calendar.Normalize(date)

	var cached index.IndexState
	if hit, err := s.cache.Get(ctx, redis.StateKey(date), &cached); err == nil && hit {
		return cached, nil
	}

	state, err := s.states.LoadState(ctx, date)
	if err != nil {
		return index.IndexState{}, err
	}
	if err := s.cache.Set(ctx, redis.StateKey(date), state, redis.TTLDaily); err != nil {
		s.logger.WithError(err).Debug("State cache fill failed")
	}
	return state, nil
}

// Changes returns composition changes in [from, to]. Single-day queries
// read through the cache.
func (s *Service) Changes(ctx context.Context, from, to time.Time) ([]index.CompositionChange, error) {
	from = calendar.Normalize(from)
	to = calendar.Normalize(to)

	if !from.Equal(to) {
		return s.states.ChangesBetween(ctx, from, to)
	}

	var cached []index.CompositionChange
	if hit, err := s.cache.Get(ctx, redis.ChangesKey(from), &cached); err == nil && hit {
		return cached, nil
	}

	changes, err := s.states.ChangesBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, redis.ChangesKey(from), changes, redis.TTLDaily); err != nil {
		s.logger.WithError(err).Debug("Changes cache fill failed")
	}
	return changes, nil
}

// PerformanceResult bundles the return series with its summary report.
type PerformanceResult struct {
	Points []returns.Point       `json:"points"`
	Report *returns.PeriodReport `json:"report"`
}

// Performance derives daily and cumulative returns for [from, to]. The
// window is extended one trading day back so the first requested day has
// a daily return.
func (s *Service) Performance(ctx context.Context, from, to time.Time) (*PerformanceResult, error) {
	from = calendar.Normalize(from)
	to = calendar.Normalize(to)

	lookback := calendar.PrevTradingDay(from)
	if lookback.Before(s.settings.BaseDate) {
		lookback = s.settings.BaseDate
	}

	points, err := s.states.StatesBetween(ctx, lookback, to)
	if err != nil {
		return nil, err
	}

	levels := make([]returns.LevelPoint, 0, len(points))
	for _, p := range points {
		levels = append(levels, returns.LevelPoint{Date: p.Date, Level: p.Level})
	}

	daily, err := returns.Daily(levels)
	if err != nil {
		return nil, err
	}
	report, err := returns.Analyze(levels)
	if err != nil {
		return nil, err
	}

	// Drop lookback days that precede the requested window.
	trimmed := daily[:0:0]
	for _, p := range daily {
		if !p.Date.Before(from) {
			trimmed = append(trimmed, p)
		}
	}

	return &PerformanceResult{Points: trimmed, Report: report}, nil
}

// Levels returns stored level points in [from, to].
func (s *Service) Levels(ctx context.Context, from, to time.Time) ([]store.StatePoint, error) {
	return s.states.StatesBetween(ctx, calendar.Normalize(from), calendar.Normalize(to))
}

// Status reports how far ingestion and the build have progressed.
type Status struct {
	LatestMarketDate time.Time `json:"latest_market_date"`
	LatestStateDate  time.Time `json:"latest_state_date"`
	LatestLevel      float64   `json:"latest_level"`
}

// CurrentStatus returns the latest ingested and built dates.
func (s *Service) CurrentStatus(ctx context.Context) (*Status, error) {
	marketDate, err := s.markets.LatestDate(ctx)
	if err != nil {
		return nil, err
	}
	stateDate, err := s.states.LatestStateDate(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{LatestMarketDate: marketDate, LatestStateDate: stateDate}
	if !stateDate.IsZero() {
		state, err := s.states.LoadState(ctx, stateDate)
		if err != nil {
			return nil, err
		}
		status.LatestLevel = state.Level()
	}
	return status, nil
}

// Export writes the built history for [from, to] as a zip of CSV files.
// The report uses the last day in range as its closing composition.
func (s *Service) Export(ctx context.Context, from, to time.Time, w io.Writer) error {
	from = calendar.Normalize(from)
	to = calendar.Normalize(to)

	points, err := s.states.StatesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return &index.InsufficientDataError{Date: to, What: "index states", Need: 1, Have: 0}
	}

	levels := make([]returns.LevelPoint, 0, len(points))
	for _, p := range points {
		levels = append(levels, returns.LevelPoint{Date: p.Date, Level: p.Level})
	}

	// A single-day export has no return series; that is still a valid report.
	daily, err := returns.Daily(levels)
	if err != nil {
		var derr *index.InsufficientDataError
		if !errors.As(err, &derr) {
			return err
		}
		daily = nil
	}

	closing, err := s.states.LoadState(ctx, points[len(points)-1].Date)
	if err != nil {
		return err
	}
	changes, err := s.states.ChangesBetween(ctx, from, to)
	if err != nil {
		return err
	}

	return export.Write(w, export.Data{
		Levels:      points,
		Returns:     daily,
		Composition: closing,
		Changes:     changes,
	})
}

// Settings returns the engine settings the service was built with.
func (s *Service) Settings() index.Settings {
	return s.settings
}

// cacheDay writes a freshly built day into the cache. Failures are logged
// and ignored; the store remains the source of truth.
func (s *Service) cacheDay(ctx context.Context, state index.IndexState, changes []index.CompositionChange) {
	if err := s.cache.Set(ctx, redis.StateKey(state.Date), state, redis.TTLDaily); err != nil {
		s.logger.WithError(err).Debug("State cache write failed")
	}
	if err := s.cache.Set(ctx, redis.ChangesKey(state.Date), changes, redis.TTLDaily); err != nil {
		s.logger.WithError(err).Debug("Changes cache write failed")
	}
}
