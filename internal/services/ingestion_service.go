package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"wx-data-platform/internal/models"
	"wx-data-platform/pkg/logging"
	"wx-data-platform/pkg/metrics"
)

// StationFilePattern matches station files inside the input directory
const StationFilePattern = "*.txt"

// IngestionService reads station files into daily observations
type IngestionService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains the concatenated observations and read statistics
type IngestionResult struct {
	Observations []models.DailyObservation
	TotalFiles   int
	FailedFiles  int
	TotalRecords int
	Duration     time.Duration
	Errors       []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ReadDirectory parses every station file in dataDir sequentially and
// concatenates the surviving observations in file order. A file that fails to
// parse is logged and skipped.
func (s *IngestionService) ReadDirectory(ctx context.Context, dataDir string) (*IngestionResult, error) {
	startTime := time.Now()

	files, err := filepath.Glob(filepath.Join(dataDir, StationFilePattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list station files: %w", err)
	}
	sort.Strings(files)

	result := &IngestionResult{
		Observations: []models.DailyObservation{},
		TotalFiles:   len(files),
		Errors:       make([]string, 0),
	}

	s.logger.Info(ctx, "[INGEST_FILES] Found station files", logging.Fields{
		"data_dir":   dataDir,
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fileLog := s.logger.WithFields(logging.Fields{
			"file_path": filePath,
			"stage":     "FILE_PROCESSING",
		})

		observations, err := ParseStationFile(filePath)
		if err != nil {
			result.FailedFiles++
			result.Errors = append(result.Errors, err.Error())
			fileLog.Warn(ctx, "[INGEST_FILE_WARN] Problem reading station file, skipping", logging.Fields{
				"reason": err.Error(),
			})
			s.metrics.RecordIngestionError("parse_error")
			s.metrics.RecordFile("failed")
			continue
		}

		result.Observations = append(result.Observations, observations...)
		result.TotalRecords += len(observations)
		s.metrics.RecordFile("parsed")

		fileLog.Debug(ctx, "[INGEST_FILE_SUCCESS] Station file parsed", logging.Fields{
			"records": len(observations),
		})
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[INGEST_READ_COMPLETE] Finished reading station files", logging.Fields{
		"total_files":   result.TotalFiles,
		"failed_files":  result.FailedFiles,
		"total_records": result.TotalRecords,
		"duration_ms":   result.Duration.Milliseconds(),
	})

	return result, nil
}

// StationIDFromPath derives the station id from the file base name up to its first dot
func StationIDFromPath(filePath string) string {
	fileName := filepath.Base(filePath)
	stationID, _, _ := strings.Cut(fileName, ".")
	return stationID
}

// ParseStationFile reads one station file. Lines where all three values are
// the -9999 sentinel are dropped, the rest are converted from tenths. Any
// unreadable or malformed content fails the whole file with a *models.ParseError.
func ParseStationFile(filePath string) ([]models.DailyObservation, error) {
	stationID := StationIDFromPath(filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return nil, &models.ParseError{File: filePath, Reason: "failed to open file", Err: err}
	}
	defer file.Close()

	observations := []models.DailyObservation{}
	lineNum := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNum++

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		record, err := parseLine(line)
		if err != nil {
			return nil, &models.ParseError{File: filePath, Line: lineNum, Reason: "malformed line", Err: err}
		}

		if record.IsMissing() {
			continue
		}

		observations = append(observations, record.ToObservation(stationID))
	}

	if err := scanner.Err(); err != nil {
		return nil, &models.ParseError{File: filePath, Line: lineNum, Reason: "failed to read file", Err: err}
	}

	return observations, nil
}

var errFieldCount = errors.New("expected 4 tab-separated fields")

// parseLine parses a single line from weather data file
// Format: YYYYMMDD\tMAX_TEMP\tMIN_TEMP\tPRECIP
func parseLine(line string) (*models.RawWeatherRecord, error) {
	parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w, got %d", errFieldCount, len(parts))
	}

	maxTemp, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid max temperature: %w", err)
	}

	minTemp, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid min temperature: %w", err)
	}

	precip, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid precipitation: %w", err)
	}

	return &models.RawWeatherRecord{
		Date:                 strings.TrimSpace(parts[0]),
		MaxTemperatureTenths: maxTemp,
		MinTemperatureTenths: minTemp,
		PrecipitationTenths:  precip,
	}, nil
}
