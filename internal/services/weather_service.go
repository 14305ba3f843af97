package services

import (
	"context"
	"time"

	"wx-data-platform/internal/models"
	"wx-data-platform/internal/repository"
	"wx-data-platform/pkg/logging"
	"wx-data-platform/pkg/metrics"
)

// Default paging of the query API
const (
	DefaultLimit  = 10
	DefaultOffset = 0
)

// WeatherService serves reads over the raw observation dataset
type WeatherService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherService creates a new weather service
func NewWeatherService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WeatherService {
	return &WeatherService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListObservations retrieves raw observations with filtering
func (s *WeatherService) ListObservations(ctx context.Context, filter repository.ObservationFilter) ([]models.DailyObservation, error) {
	timer := time.Now()
	observations, err := s.repo.ListObservations(ctx, filter)
	s.metrics.RecordStage("list_observations", time.Since(timer))
	return observations, err
}

// HealthCheck checks both stores
func (s *WeatherService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
