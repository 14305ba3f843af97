package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"wx-data-platform/internal/models"
	"wx-data-platform/internal/repository"
	"wx-data-platform/pkg/logging"
	"wx-data-platform/pkg/metrics"
)

// ErrEmptyDataset is returned when there is nothing to aggregate
var ErrEmptyDataset = errors.New("no observations to aggregate")

// StatisticsService handles yearly statistics
type StatisticsService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

type stationYear struct {
	stationID string
	year      string
}

type yearAccumulator struct {
	count     int
	sumMaxT   float64
	sumMinT   float64
	sumPrecip float64
}

// AggregateYearly groups observations by (StationID, Year) and returns the mean
// MaxT, mean MinT and total precipitation in cm of each group, sorted by
// station then year. Precip is converted from mm to cm per record before summing.
func AggregateYearly(observations []models.DailyObservation) ([]models.YearlyStat, error) {
	if len(observations) == 0 {
		return nil, ErrEmptyDataset
	}

	groups := make(map[stationYear]*yearAccumulator)
	for _, obs := range observations {
		key := stationYear{stationID: obs.StationID, year: obs.Year()}
		acc, ok := groups[key]
		if !ok {
			acc = &yearAccumulator{}
			groups[key] = acc
		}
		acc.count++
		acc.sumMaxT += obs.MaxT
		acc.sumMinT += obs.MinT
		acc.sumPrecip += obs.Precip / 10.0
	}

	keys := make([]stationYear, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].stationID != keys[j].stationID {
			return keys[i].stationID < keys[j].stationID
		}
		return keys[i].year < keys[j].year
	})

	stats := make([]models.YearlyStat, 0, len(keys))
	for _, key := range keys {
		acc := groups[key]
		stats = append(stats, models.YearlyStat{
			StationID:   key.stationID,
			Year:        key.year,
			AvgMaxT:     acc.sumMaxT / float64(acc.count),
			AvgMinT:     acc.sumMinT / float64(acc.count),
			TotalPrecip: acc.sumPrecip,
		})
	}

	return stats, nil
}

// CalculateStatistics aggregates observations. A failed aggregation is logged
// and yields an empty result; it never aborts the run.
func (s *StatisticsService) CalculateStatistics(ctx context.Context, observations []models.DailyObservation) []models.YearlyStat {
	timer := s.metrics.NewTimer(s.metrics.StatsCalculationDuration)

	s.logger.Info(ctx, "[STATS_CALC_START] Calculating yearly average max/min temperature and total precipitation", logging.Fields{
		"records": len(observations),
		"stage":   "AGGREGATION",
	})

	stats, err := AggregateYearly(observations)
	duration := timer.ObserveDuration()
	if err != nil {
		s.logger.Warn(ctx, "[STATS_CALC_WARN] Could not calculate statistics for weather data", logging.Fields{
			"reason": err.Error(),
		})
		return []models.YearlyStat{}
	}

	s.logger.Info(ctx, "[STATS_CALC_COMPLETE] Statistics calculation completed", logging.Fields{
		"total_statistics": len(stats),
		"duration_ms":      duration.Milliseconds(),
		"stage":            "COMPLETE",
	})

	return stats
}

// ListYearlyStats retrieves statistics with filtering
func (s *StatisticsService) ListYearlyStats(ctx context.Context, filter repository.StatisticsFilter) ([]models.YearlyStat, error) {
	timer := time.Now()
	stats, err := s.repo.ListStatistics(ctx, filter)
	s.metrics.RecordStage("list_statistics", time.Since(timer))
	return stats, err
}
