package services_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wx-data-platform/internal/models"
	"wx-data-platform/internal/repository"
	"wx-data-platform/internal/services"
	"wx-data-platform/internal/testsupport"
	"wx-data-platform/pkg/filelock"
)

var pipelineStart = time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC)

type pipelineFixture struct {
	env      *testsupport.Env
	dataDir  string
	lockFile string
	pipeline *services.PipelineService
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	env := testsupport.NewEnv(t)
	dataDir := filepath.Join(env.Dir, "wx_data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	lockFile := filepath.Join(env.Dir, "wx_data.lock")

	pipeline := services.NewPipelineService(
		env.Repo,
		services.NewIngestionService(env.Logger, env.Metrics),
		services.NewStatisticsService(env.Repo, env.Logger, env.Metrics),
		lockFile,
		clockwork.NewFakeClockAt(pipelineStart),
		env.Logger,
		env.Metrics,
	)

	return &pipelineFixture{env: env, dataDir: dataDir, lockFile: lockFile, pipeline: pipeline}
}

func (f *pipelineFixture) listRaw(t *testing.T) []models.DailyObservation {
	t.Helper()
	rows, err := f.env.Repo.ListObservations(context.Background(), repository.ObservationFilter{Limit: 1000})
	require.NoError(t, err)
	return rows
}

func (f *pipelineFixture) listStats(t *testing.T) []models.YearlyStat {
	t.Helper()
	rows, err := f.env.Repo.ListStatistics(context.Background(), repository.StatisticsFilter{Limit: 1000})
	require.NoError(t, err)
	return rows
}

func TestPipeline_StationExample(t *testing.T) {
	f := newPipelineFixture(t)
	writeStationFile(t, f.dataDir, "USC1.txt", "20200101\t100\t-50\t0\n20200102\t-9999\t-9999\t-9999\n")

	result, err := f.pipeline.Run(context.Background(), f.dataDir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesFound)
	assert.Equal(t, 1, result.RawRecords)
	assert.Equal(t, 1, result.StatsRecords)
	assert.False(t, result.RawSkipped)
	assert.False(t, result.StatsSkipped)

	assert.Equal(t, []models.DailyObservation{
		{Date: "20200101", MaxT: 10.0, MinT: -5.0, Precip: 0.0, StationID: "USC1"},
	}, f.listRaw(t))
	assert.Equal(t, []models.YearlyStat{
		{StationID: "USC1", Year: "2020", AvgMaxT: 10.0, AvgMinT: -5.0, TotalPrecip: 0.0},
	}, f.listStats(t))

	lock, err := filelock.Acquire(f.lockFile)
	require.NoError(t, err, "lock released after the run")
	assert.NoError(t, lock.Release())
}

func TestPipeline_UsesClockForTimestamps(t *testing.T) {
	f := newPipelineFixture(t)
	writeStationFile(t, f.dataDir, "USC1.txt", "20200101\t100\t-50\t0\n")

	result, err := f.pipeline.Run(context.Background(), f.dataDir)
	require.NoError(t, err)

	assert.Equal(t, pipelineStart, result.StartedAt)
	assert.Equal(t, pipelineStart, result.FinishedAt)
	assert.Zero(t, result.Duration)
}

func TestPipeline_SecondRunIsNoOp(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	writeStationFile(t, f.dataDir, "USC1.txt", "20200101\t100\t-50\t0\n")

	_, err := f.pipeline.Run(ctx, f.dataDir)
	require.NoError(t, err)
	rawBefore, statsBefore := f.listRaw(t), f.listStats(t)

	writeStationFile(t, f.dataDir, "USC2.txt", "20200101\t300\t100\t20\n")

	result, err := f.pipeline.Run(ctx, f.dataDir)
	require.NoError(t, err)
	assert.True(t, result.RawSkipped)
	assert.True(t, result.StatsSkipped)
	assert.Zero(t, result.FilesFound, "no files read once the raw dataset exists")

	assert.Equal(t, rawBefore, f.listRaw(t))
	assert.Equal(t, statsBefore, f.listStats(t))
}

func TestPipeline_ExistingStatsAreKept(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	writeStationFile(t, f.dataDir, "USC1.txt", "20200101\t100\t-50\t0\n")

	existing := []models.YearlyStat{{StationID: "OLD", Year: "1999", AvgMaxT: 1, AvgMinT: 1, TotalPrecip: 1}}
	_, err := f.env.Repo.ReplaceStatistics(ctx, existing)
	require.NoError(t, err)

	result, err := f.pipeline.Run(ctx, f.dataDir)
	require.NoError(t, err)
	assert.False(t, result.RawSkipped)
	assert.True(t, result.StatsSkipped)
	assert.Equal(t, 1, result.RawRecords)

	assert.Len(t, f.listRaw(t), 1)
	assert.Equal(t, existing, f.listStats(t))
}

func TestPipeline_EmptyRawSkipsStats(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	writeStationFile(t, f.dataDir, "USC1.txt", "20200102\t-9999\t-9999\t-9999\n")
	writeStationFile(t, f.dataDir, "BROKEN.txt", "garbage\n")

	result, err := f.pipeline.Run(ctx, f.dataDir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesFound)
	assert.Equal(t, 1, result.FilesFailed)
	assert.Zero(t, result.RawRecords)
	assert.True(t, result.StatsSkipped)

	rawExists, err := f.env.Repo.ObservationsExist(ctx)
	require.NoError(t, err)
	assert.True(t, rawExists, "an empty raw dataset is still written")

	statsExists, err := f.env.Repo.StatisticsExist(ctx)
	require.NoError(t, err)
	assert.False(t, statsExists)
}

func TestPipeline_NoInput(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *pipelineFixture) string
	}{
		{
			name: "missing directory",
			setup: func(t *testing.T, f *pipelineFixture) string {
				return filepath.Join(f.env.Dir, "does-not-exist")
			},
		},
		{
			name: "empty directory",
			setup: func(t *testing.T, f *pipelineFixture) string {
				return f.dataDir
			},
		},
		{
			name: "path is a file",
			setup: func(t *testing.T, f *pipelineFixture) string {
				return writeStationFile(t, f.env.Dir, "plain.txt", "20200101\t1\t1\t1\n")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			dir := tt.setup(t, f)

			_, err := f.pipeline.Run(context.Background(), dir)
			assert.ErrorIs(t, err, services.ErrNoInput)

			rawExists, err := f.env.Repo.ObservationsExist(context.Background())
			require.NoError(t, err)
			assert.False(t, rawExists)
		})
	}
}

func TestPipeline_ChecksNamedDirectoryNotWorkingDirectory(t *testing.T) {
	f := newPipelineFixture(t)

	// the working directory has files, the named input directory does not
	cwd := t.TempDir()
	writeStationFile(t, cwd, "USC1.txt", "20200101\t100\t-50\t0\n")
	prevWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(cwd))
	t.Cleanup(func() { _ = os.Chdir(prevWD) })

	_, err = f.pipeline.Run(context.Background(), f.dataDir)
	assert.ErrorIs(t, err, services.ErrNoInput)
}

func TestPipeline_LockHeld(t *testing.T) {
	f := newPipelineFixture(t)
	writeStationFile(t, f.dataDir, "USC1.txt", "20200101\t100\t-50\t0\n")

	lock, err := filelock.Acquire(f.lockFile)
	require.NoError(t, err)
	defer lock.Release()

	_, err = f.pipeline.Run(context.Background(), f.dataDir)
	assert.ErrorIs(t, err, filelock.ErrLocked)

	rawExists, err := f.env.Repo.ObservationsExist(context.Background())
	require.NoError(t, err)
	assert.False(t, rawExists)
}

func TestPipeline_DryRunLeavesStoresAlone(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	writeStationFile(t, f.dataDir, "USC1.txt", "20200101\t100\t-50\t0\n20210101\t50\t-20\t3\n")

	result, err := f.pipeline.DryRun(ctx, f.dataDir)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.RawRecords)
	assert.Equal(t, 2, result.StatsRecords)

	rawExists, err := f.env.Repo.ObservationsExist(ctx)
	require.NoError(t, err)
	statsExists, err := f.env.Repo.StatisticsExist(ctx)
	require.NoError(t, err)
	assert.False(t, rawExists)
	assert.False(t, statsExists)
}
