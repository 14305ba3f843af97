package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"

	"wx-data-platform/internal/config"
	"wx-data-platform/internal/repository"
	"wx-data-platform/internal/services"
	"wx-data-platform/pkg/database"
	"wx-data-platform/pkg/filelock"
	"wx-data-platform/pkg/logging"
	"wx-data-platform/pkg/metrics"
)

const version = "1.0.0"

// Exit codes from sysexits.h
const (
	exitOK        = 0
	exitFailure   = 1
	exitNoInput   = 66
	exitTempFail  = 75
	exitBadConfig = 78
)

func main() {
	os.Exit(run())
}

func run() int {
	dataDir := flag.String("data-dir", "", "Directory containing station files (overrides DATA_DIR)")
	batchSize := flag.Int("batch-size", 0, "Rows per insert batch (overrides INGEST_BATCH_SIZE)")
	dryRun := flag.Bool("dry-run", false, "Parse and aggregate without writing to the stores")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitBadConfig
	}
	if *dataDir != "" {
		cfg.Ingest.DataDir = *dataDir
	}
	if *batchSize > 0 {
		cfg.Ingest.BatchSize = *batchSize
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitBadConfig
	}

	clock := clockwork.NewRealClock()

	logger := logging.NewStructuredLogger("wx-ingester", version, logging.ParseLevel(cfg.Logging.Level))
	logger.SetFormat(logging.Format(cfg.Logging.Format))

	runLog, err := logging.OpenRunLog(cfg.Logging.Dir, clock.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run log: %v\n", err)
		return exitFailure
	}
	defer runLog.Close()
	logger.SetOutput(io.MultiWriter(os.Stdout, runLog))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[INGESTER_START] Starting weather data ingestion", logging.Fields{
		"version":    version,
		"data_dir":   cfg.Ingest.DataDir,
		"batch_size": cfg.Ingest.BatchSize,
		"dry_run":    *dryRun,
		"db_driver":  cfg.Database.Driver,
		"run_log":    runLog.Name(),
	})

	metricsCollector := metrics.NewCollector("wx_ingester")
	ingestionService := services.NewIngestionService(logger, metricsCollector)

	var result *services.PipelineResult
	if *dryRun {
		pipeline := services.NewPipelineService(nil, ingestionService,
			services.NewStatisticsService(nil, logger, metricsCollector),
			"", clock, logger, metricsCollector)
		result, err = pipeline.DryRun(ctx, cfg.Ingest.DataDir)
	} else {
		result, err = ingest(ctx, cfg, clock, ingestionService, logger, metricsCollector)
	}

	if result != nil {
		printSummary(result)
	}

	return exitCode(err)
}

// exitCode maps a pipeline error to a sysexits code, reporting it on stderr
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, services.ErrNoInput):
		fmt.Fprintf(os.Stderr, "No input: %v\n", err)
		return exitNoInput
	case errors.Is(err, filelock.ErrLocked):
		fmt.Fprintf(os.Stderr, "Another ingestion is running: %v\n", err)
		return exitTempFail
	default:
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		return exitFailure
	}
}

func ingest(
	ctx context.Context,
	cfg *config.Config,
	clock clockwork.Clock,
	ingestionService *services.IngestionService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) (*services.PipelineResult, error) {
	// Opening a sqlite store creates its file, so reject missing input first.
	if err := services.CheckInputDir(cfg.Ingest.DataDir); err != nil {
		logger.Error(ctx, "[INPUT_MISSING] Input directory missing or empty", logging.Fields{
			"data_dir": cfg.Ingest.DataDir,
		}, err)
		return nil, err
	}

	rawDB, err := database.Open(cfg.RawStore(), logger, metricsCollector)
	if err != nil {
		logger.Error(ctx, "[INGESTER_ERROR] Failed to open raw store", logging.Fields{}, err)
		return nil, err
	}
	defer rawDB.Close()

	statsDB, err := database.Open(cfg.StatsStore(), logger, metricsCollector)
	if err != nil {
		logger.Error(ctx, "[INGESTER_ERROR] Failed to open stats store", logging.Fields{}, err)
		return nil, err
	}
	defer statsDB.Close()

	weatherRepo := repository.NewWeatherRepository(rawDB, statsDB, cfg.Ingest.BatchSize, logger, metricsCollector)
	statsService := services.NewStatisticsService(weatherRepo, logger, metricsCollector)

	pipeline := services.NewPipelineService(weatherRepo, ingestionService, statsService,
		cfg.Ingest.LockFile, clock, logger, metricsCollector)

	return pipeline.Run(ctx, cfg.Ingest.DataDir)
}

func printSummary(result *services.PipelineResult) {
	title := "INGESTION COMPLETE"
	if result.DryRun {
		title = "DRY RUN COMPLETE"
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Started:            %s\n", result.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Finished:           %s\n", result.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration:           %v\n", result.Duration)
	fmt.Printf("Files Found:        %d\n", result.FilesFound)
	fmt.Printf("Files Failed:       %d\n", result.FilesFailed)
	fmt.Printf("Raw Records:        %d\n", result.RawRecords)
	fmt.Printf("Stats Records:      %d\n", result.StatsRecords)
	if result.RawSkipped || result.StatsSkipped {
		fmt.Printf("Skipped:            raw=%t stats=%t (%s)\n", result.RawSkipped, result.StatsSkipped, result.SkipReason)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}
