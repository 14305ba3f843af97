package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"wx-data-platform/internal/config"
	"wx-data-platform/internal/models"
	"wx-data-platform/internal/repository"
	"wx-data-platform/pkg/database"
	"wx-data-platform/pkg/logging"
	"wx-data-platform/pkg/metrics"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// reset drops persisted datasets so the next ingester run rebuilds them
func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("wx-reset", flag.ContinueOnError)
	dataset := flags.String("dataset", "all", "Dataset to drop: raw, stats or all")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	dropRaw, dropStats := false, false
	switch *dataset {
	case "raw":
		dropRaw = true
	case "stats":
		dropStats = true
	case "all":
		dropRaw, dropStats = true, true
	default:
		fmt.Fprintf(os.Stderr, "Invalid -dataset %q (allowed: raw, stats, all)\n", *dataset)
		return exitUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitFailure
	}

	logger := logging.NewStructuredLogger("wx-reset", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	logger.SetFormat(logging.Format(cfg.Logging.Format))
	metricsCollector := metrics.NewCollectorWithRegisterer("wx_reset", nil)

	rawDB, err := database.Open(cfg.RawStore(), logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open raw store: %v\n", err)
		return exitFailure
	}
	defer rawDB.Close()

	statsDB, err := database.Open(cfg.StatsStore(), logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open stats store: %v\n", err)
		return exitFailure
	}
	defer statsDB.Close()

	fmt.Println("Connected to stores successfully")

	repo := repository.NewWeatherRepository(rawDB, statsDB, cfg.Ingest.BatchSize, logger, metricsCollector)
	ctx := context.Background()

	if dropRaw {
		fmt.Printf("Dropping %s\n", models.RawDataset)
		if err := repo.DropObservations(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to drop %s: %v\n", models.RawDataset, err)
			return exitFailure
		}
	}

	if dropStats {
		fmt.Printf("Dropping %s\n", models.StatsDataset)
		if err := repo.DropStatistics(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to drop %s: %v\n", models.StatsDataset, err)
			return exitFailure
		}
	}

	fmt.Println("Reset completed successfully")
	return exitOK
}
