package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"wx-data-platform/internal/models"
	"wx-data-platform/internal/repository"
	"wx-data-platform/pkg/filelock"
	"wx-data-platform/pkg/logging"
	"wx-data-platform/pkg/metrics"
)

// ErrNoInput means the input directory is absent or empty
var ErrNoInput = errors.New("no input data")

// PipelineService runs ingestion and aggregation at most once per output pair.
// A stage is skipped when its dataset already exists in the store.
type PipelineService struct {
	repo      repository.WeatherRepository
	ingestion *IngestionService
	stats     *StatisticsService
	lockFile  string
	clock     clockwork.Clock
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// PipelineResult summarises one run
type PipelineResult struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
	DryRun       bool
	FilesFound   int
	FilesFailed  int
	RawRecords   int
	StatsRecords int
	RawSkipped   bool
	StatsSkipped bool
	SkipReason   string
	Errors       []string
}

// NewPipelineService creates a new pipeline service. An empty lockFile disables locking.
func NewPipelineService(
	repo repository.WeatherRepository,
	ingestion *IngestionService,
	stats *StatisticsService,
	lockFile string,
	clock clockwork.Clock,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *PipelineService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PipelineService{
		repo:      repo,
		ingestion: ingestion,
		stats:     stats,
		lockFile:  lockFile,
		clock:     clock,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// CheckInputDir verifies that dir exists, is a directory and has at least one entry
func CheckInputDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", ErrNoInput, dir)
		}
		return fmt.Errorf("%w: %s: %v", ErrNoInput, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNoInput, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoInput, dir, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s has no files", ErrNoInput, dir)
	}

	return nil
}

// Run checks the input directory, then loads the raw dataset and the stats
// dataset unless they already exist. Only ErrNoInput and store failures are
// returned as errors; unreadable files and failed aggregation are logged.
func (p *PipelineService) Run(ctx context.Context, dataDir string) (result *PipelineResult, err error) {
	result = &PipelineResult{StartedAt: p.clock.Now(), Errors: make([]string, 0)}
	defer p.finish(ctx, result, &err)

	p.logger.Info(ctx, "[PIPELINE_START] Starting weather data pipeline", logging.Fields{
		"data_dir":   dataDir,
		"started_at": result.StartedAt.Format(time.RFC3339),
		"stage":      "INITIALIZATION",
	})

	if err := p.checkInput(ctx, dataDir); err != nil {
		return result, err
	}

	if p.lockFile != "" {
		lock, err := filelock.Acquire(p.lockFile)
		if err != nil {
			return result, err
		}
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				p.logger.Error(ctx, "[PIPELINE_LOCK_ERROR] Failed to release lock", logging.Fields{
					"lock_file": p.lockFile,
				}, releaseErr)
			}
		}()
	}

	rawExists, err := p.repo.ObservationsExist(ctx)
	if err != nil {
		return result, err
	}
	if rawExists {
		result.RawSkipped = true
		result.StatsSkipped = true
		result.SkipReason = models.RawDataset + " already exists"
		p.metrics.RecordSkip("raw")
		p.logger.Info(ctx, "[RAW_SKIP] Raw dataset already exists, skipping ingestion", logging.Fields{
			"dataset": models.RawDataset,
		})
		return result, nil
	}

	observations, err := p.readInput(ctx, dataDir, result)
	if err != nil {
		return result, err
	}

	stageStart := p.clock.Now()
	p.logger.Info(ctx, "[RAW_WRITE] Loading raw weather data into store", logging.Fields{
		"dataset": models.RawDataset,
		"records": len(observations),
	})
	result.RawRecords, err = p.repo.ReplaceObservations(ctx, observations)
	if err != nil {
		return result, err
	}
	p.metrics.RecordStage("raw_write", p.clock.Since(stageStart))

	if result.RawRecords == 0 {
		result.StatsSkipped = true
		result.SkipReason = "raw dataset is empty"
		p.logger.Warn(ctx, "[STATS_SKIP] Raw weather dataset empty, not calculating stats", logging.Fields{})
		return result, nil
	}

	statsExists, err := p.repo.StatisticsExist(ctx)
	if err != nil {
		return result, err
	}
	if statsExists {
		result.StatsSkipped = true
		result.SkipReason = models.StatsDataset + " already exists"
		p.metrics.RecordSkip("stats")
		p.logger.Info(ctx, "[STATS_SKIP] Stats dataset already exists, skipping aggregation", logging.Fields{
			"dataset": models.StatsDataset,
		})
		return result, nil
	}

	stageStart = p.clock.Now()
	stats := p.stats.CalculateStatistics(ctx, observations)
	p.metrics.RecordStage("aggregate", p.clock.Since(stageStart))

	stageStart = p.clock.Now()
	p.logger.Info(ctx, "[STATS_WRITE] Loading weather stats into store", logging.Fields{
		"dataset": models.StatsDataset,
		"records": len(stats),
	})
	result.StatsRecords, err = p.repo.ReplaceStatistics(ctx, stats)
	if err != nil {
		return result, err
	}
	p.metrics.RecordStage("stats_write", p.clock.Since(stageStart))

	return result, nil
}

// DryRun parses and aggregates without touching either store
func (p *PipelineService) DryRun(ctx context.Context, dataDir string) (result *PipelineResult, err error) {
	result = &PipelineResult{StartedAt: p.clock.Now(), DryRun: true, Errors: make([]string, 0)}
	defer p.finish(ctx, result, &err)

	p.logger.Info(ctx, "[PIPELINE_START] Starting dry run, stores are left untouched", logging.Fields{
		"data_dir":   dataDir,
		"started_at": result.StartedAt.Format(time.RFC3339),
	})

	if err := p.checkInput(ctx, dataDir); err != nil {
		return result, err
	}

	observations, err := p.readInput(ctx, dataDir, result)
	if err != nil {
		return result, err
	}
	result.RawRecords = len(observations)

	if len(observations) > 0 {
		result.StatsRecords = len(p.stats.CalculateStatistics(ctx, observations))
	}

	return result, nil
}

func (p *PipelineService) checkInput(ctx context.Context, dataDir string) error {
	absPath, _ := filepath.Abs(dataDir)
	p.logger.Info(ctx, "[INPUT_CHECK] Checking input directory", logging.Fields{
		"data_dir":      dataDir,
		"absolute_path": absPath,
	})

	if err := CheckInputDir(dataDir); err != nil {
		p.logger.Error(ctx, "[INPUT_MISSING] Input directory missing or empty", logging.Fields{
			"data_dir": dataDir,
		}, err)
		return err
	}

	p.logger.Info(ctx, "[INPUT_OK] Input directory has files", logging.Fields{"data_dir": dataDir})
	return nil
}

func (p *PipelineService) readInput(ctx context.Context, dataDir string, result *PipelineResult) ([]models.DailyObservation, error) {
	stageStart := p.clock.Now()
	p.logger.Info(ctx, "[READ_START] Started reading files", logging.Fields{
		"at": stageStart.Format(time.RFC3339),
	})

	read, err := p.ingestion.ReadDirectory(ctx, dataDir)
	if err != nil {
		return nil, err
	}

	result.FilesFound = read.TotalFiles
	result.FilesFailed = read.FailedFiles
	result.Errors = append(result.Errors, read.Errors...)

	finishedAt := p.clock.Now()
	p.metrics.RecordStage("parse", finishedAt.Sub(stageStart))
	p.logger.Info(ctx, "[READ_COMPLETE] Finished reading files", logging.Fields{
		"at":            finishedAt.Format(time.RFC3339),
		"total_records": len(read.Observations),
		"files":         read.TotalFiles,
		"failed_files":  read.FailedFiles,
	})

	return read.Observations, nil
}

func (p *PipelineService) finish(ctx context.Context, result *PipelineResult, err *error) {
	result.FinishedAt = p.clock.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	p.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	fields := logging.Fields{
		"started_at":    result.StartedAt.Format(time.RFC3339),
		"finished_at":   result.FinishedAt.Format(time.RFC3339),
		"dry_run":       result.DryRun,
		"files_found":   result.FilesFound,
		"files_failed":  result.FilesFailed,
		"raw_records":   result.RawRecords,
		"stats_records": result.StatsRecords,
		"raw_skipped":   result.RawSkipped,
		"stats_skipped": result.StatsSkipped,
		"skip_reason":   result.SkipReason,
	}

	if *err != nil {
		p.logger.Error(ctx, "[PIPELINE_FAILED] Weather data pipeline failed", fields, *err)
		return
	}
	p.logger.Info(ctx, "[PIPELINE_COMPLETE] Weather data pipeline finished", fields)
}
