package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wx-data-platform/internal/models"
	"wx-data-platform/pkg/database"
	"wx-data-platform/pkg/logging"
	"wx-data-platform/pkg/metrics"
)

// DefaultBatchSize is the number of rows inserted per prepared-statement batch
const DefaultBatchSize = 1000

// WeatherRepository provides data access for the raw and stats datasets
type WeatherRepository interface {
	// Raw dataset (WX_Data_Raw)
	ObservationsExist(ctx context.Context) (bool, error)
	ReplaceObservations(ctx context.Context, observations []models.DailyObservation) (int, error)
	ListObservations(ctx context.Context, filter ObservationFilter) ([]models.DailyObservation, error)
	DropObservations(ctx context.Context) error

	// Stats dataset (WX_Data_Stats)
	StatisticsExist(ctx context.Context) (bool, error)
	ReplaceStatistics(ctx context.Context, stats []models.YearlyStat) (int, error)
	ListStatistics(ctx context.Context, filter StatisticsFilter) ([]models.YearlyStat, error)
	DropStatistics(ctx context.Context) error

	HealthCheck(ctx context.Context) error
}

// ObservationFilter defines filters for querying observations.
// Nil filters impose no constraint. Limit and Offset go to the store unchanged.
type ObservationFilter struct {
	StationID *string
	Date      *string
	Limit     int
	Offset    int
}

// StatisticsFilter defines filters for querying statistics
type StatisticsFilter struct {
	StationID *string
	Year      *string
	Limit     int
	Offset    int
}

// weatherRepository implements WeatherRepository over two stores
type weatherRepository struct {
	rawDB     *database.DB
	statsDB   *database.DB
	batchSize int
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewWeatherRepository creates a new weather repository. rawDB and statsDB may be the same handle.
func NewWeatherRepository(rawDB, statsDB *database.DB, batchSize int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) WeatherRepository {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &weatherRepository{
		rawDB:     rawDB,
		statsDB:   statsDB,
		batchSize: batchSize,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

var (
	rawColumns   = []string{"Date", "MaxT", "MinT", "Precip", "StationID"}
	statsColumns = []string{"StationID", "Year", "AvgMaxT", "AvgMinT", "TotalPrecip"}
)

var rawTableDDL = fmt.Sprintf(`CREATE TABLE %s (
	"Date" TEXT,
	"MaxT" DOUBLE PRECISION,
	"MinT" DOUBLE PRECISION,
	"Precip" DOUBLE PRECISION,
	"StationID" TEXT
)`, database.QuoteIdent(models.RawDataset))

var statsTableDDL = fmt.Sprintf(`CREATE TABLE %s (
	"StationID" TEXT,
	"Year" TEXT,
	"AvgMaxT" DOUBLE PRECISION,
	"AvgMinT" DOUBLE PRECISION,
	"TotalPrecip" DOUBLE PRECISION
)`, database.QuoteIdent(models.StatsDataset))

// ObservationsExist reports whether the raw dataset has been created
func (r *weatherRepository) ObservationsExist(ctx context.Context) (bool, error) {
	return r.rawDB.TableExists(ctx, models.RawDataset)
}

// StatisticsExist reports whether the stats dataset has been created
func (r *weatherRepository) StatisticsExist(ctx context.Context) (bool, error) {
	return r.statsDB.TableExists(ctx, models.StatsDataset)
}

// ReplaceObservations discards WX_Data_Raw and reloads it with observations in order
func (r *weatherRepository) ReplaceObservations(ctx context.Context, observations []models.DailyObservation) (int, error) {
	rows := make([][]interface{}, len(observations))
	for i, obs := range observations {
		rows[i] = []interface{}{obs.Date, obs.MaxT, obs.MinT, obs.Precip, obs.StationID}
	}

	n, err := r.replaceTable(ctx, r.rawDB, models.RawDataset, rawTableDDL, rawColumns, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to replace observations: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(n))
	return n, nil
}

// ReplaceStatistics discards WX_Data_Stats and reloads it with stats in order
func (r *weatherRepository) ReplaceStatistics(ctx context.Context, stats []models.YearlyStat) (int, error) {
	rows := make([][]interface{}, len(stats))
	for i, s := range stats {
		rows[i] = []interface{}{s.StationID, s.Year, s.AvgMaxT, s.AvgMinT, s.TotalPrecip}
	}

	n, err := r.replaceTable(ctx, r.statsDB, models.StatsDataset, statsTableDDL, statsColumns, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to replace statistics: %w", err)
	}

	r.metrics.StatsRowsTotal.Add(float64(n))
	return n, nil
}

// replaceTable drops, recreates and bulk-loads table inside one transaction
func (r *weatherRepository) replaceTable(ctx context.Context, db *database.DB, table, ddl string, columns []string, rows [][]interface{}) (int, error) {
	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_REPLACE] Table replaced", logging.Fields{
			"store":       db.Name(),
			"table":       table,
			"count":       len(rows),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	// Begin transaction
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+database.QuoteIdent(table)); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", table, err)
	}

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", table, err)
	}

	// Prepare statement
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(insertQuery(table, columns)))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for start := 0; start < len(rows); start += r.batchSize {
		end := start + r.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		for _, row := range rows[start:end] {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
			}
		}
		r.metrics.IngestionBatchSize.Observe(float64(end - start))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch inserted", logging.Fields{
			"table": table,
			"rows":  end,
			"total": len(rows),
		})
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(rows), nil
}

func insertQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = database.QuoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		database.QuoteIdent(table), strings.Join(quoted, ", "), placeholders)
}

// ListObservations retrieves raw observations with filtering and pagination.
// No ORDER BY is applied: rows come back in the store's natural order.
func (r *weatherRepository) ListObservations(ctx context.Context, filter ObservationFilter) ([]models.DailyObservation, error) {
	query := fmt.Sprintf(`SELECT "Date", "MaxT", "MinT", "Precip", "StationID" FROM %s WHERE 1=1`,
		database.QuoteIdent(models.RawDataset))
	args := []interface{}{}

	if filter.StationID != nil {
		query += ` AND "StationID" = ?`
		args = append(args, *filter.StationID)
	}

	if filter.Date != nil {
		query += ` AND "Date" = ?`
		args = append(args, *filter.Date)
	}

	query += " LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	observations := []models.DailyObservation{}
	if err := r.rawDB.SelectContext(ctx, "list_observations", &observations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}

	return observations, nil
}

// ListStatistics retrieves yearly statistics with filtering and pagination
func (r *weatherRepository) ListStatistics(ctx context.Context, filter StatisticsFilter) ([]models.YearlyStat, error) {
	query := fmt.Sprintf(`SELECT "StationID", "Year", "AvgMaxT", "AvgMinT", "TotalPrecip" FROM %s WHERE 1=1`,
		database.QuoteIdent(models.StatsDataset))
	args := []interface{}{}

	if filter.StationID != nil {
		query += ` AND "StationID" = ?`
		args = append(args, *filter.StationID)
	}

	if filter.Year != nil {
		query += ` AND "Year" = ?`
		args = append(args, *filter.Year)
	}

	query += " LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	stats := []models.YearlyStat{}
	if err := r.statsDB.SelectContext(ctx, "list_statistics", &stats, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list statistics: %w", err)
	}

	return stats, nil
}

// DropObservations removes WX_Data_Raw so the guarded pipeline can run again
func (r *weatherRepository) DropObservations(ctx context.Context) error {
	if _, err := r.rawDB.ExecContext(ctx, "drop_observations", "DROP TABLE IF EXISTS "+database.QuoteIdent(models.RawDataset)); err != nil {
		return fmt.Errorf("failed to drop observations: %w", err)
	}
	return nil
}

// DropStatistics removes WX_Data_Stats
func (r *weatherRepository) DropStatistics(ctx context.Context) error {
	if _, err := r.statsDB.ExecContext(ctx, "drop_statistics", "DROP TABLE IF EXISTS "+database.QuoteIdent(models.StatsDataset)); err != nil {
		return fmt.Errorf("failed to drop statistics: %w", err)
	}
	return nil
}

// HealthCheck performs a repository health check on both stores
func (r *weatherRepository) HealthCheck(ctx context.Context) error {
	if err := r.rawDB.HealthCheck(ctx); err != nil {
		return fmt.Errorf("raw store: %w", err)
	}
	if err := r.statsDB.HealthCheck(ctx); err != nil {
		return fmt.Errorf("stats store: %w", err)
	}
	return nil
}
