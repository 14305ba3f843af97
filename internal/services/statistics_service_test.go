package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wx-data-platform/internal/models"
	"wx-data-platform/internal/repository"
	"wx-data-platform/internal/services"
	"wx-data-platform/internal/testsupport"
)

func TestAggregateYearly(t *testing.T) {
	observations := []models.DailyObservation{
		{Date: "20210101", MaxT: 1.0, MinT: -1.0, Precip: 5.0, StationID: "USC2"},
		{Date: "20200101", MaxT: 10.0, MinT: -5.0, Precip: 2.5, StationID: "USC1"},
		{Date: "20200102", MaxT: 20.0, MinT: 5.0, Precip: 7.5, StationID: "USC1"},
		{Date: "20190615", MaxT: 30.0, MinT: 15.0, Precip: 0.0, StationID: "USC1"},
	}

	got, err := services.AggregateYearly(observations)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// sorted by station then year
	assert.Equal(t, "USC1", got[0].StationID)
	assert.Equal(t, "2019", got[0].Year)
	assert.Equal(t, "USC1", got[1].StationID)
	assert.Equal(t, "2020", got[1].Year)
	assert.Equal(t, "USC2", got[2].StationID)
	assert.Equal(t, "2021", got[2].Year)

	assert.InDelta(t, 15.0, got[1].AvgMaxT, 1e-9)
	assert.InDelta(t, 0.0, got[1].AvgMinT, 1e-9)
	// (2.5 + 7.5) mm = 1.0 cm
	assert.InDelta(t, 1.0, got[1].TotalPrecip, 1e-9)
	assert.InDelta(t, 0.5, got[2].TotalPrecip, 1e-9)
}

func TestAggregateYearly_PartialSentinelsCountAsValues(t *testing.T) {
	observations := []models.DailyObservation{
		{Date: "20200101", MaxT: -999.9, MinT: 2.0, Precip: -999.9, StationID: "USC1"},
		{Date: "20200102", MaxT: 10.0, MinT: 4.0, Precip: 10.0, StationID: "USC1"},
	}

	got, err := services.AggregateYearly(observations)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, -494.95, got[0].AvgMaxT, 1e-9)
	assert.InDelta(t, 3.0, got[0].AvgMinT, 1e-9)
	assert.InDelta(t, -98.99, got[0].TotalPrecip, 1e-9)
}

func TestAggregateYearly_ShortDateIsItsOwnYear(t *testing.T) {
	got, err := services.AggregateYearly([]models.DailyObservation{
		{Date: "202", MaxT: 1.0, MinT: 1.0, Precip: 1.0, StationID: "X"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "202", got[0].Year)
}

func TestAggregateYearly_Empty(t *testing.T) {
	got, err := services.AggregateYearly(nil)
	assert.ErrorIs(t, err, services.ErrEmptyDataset)
	assert.Nil(t, got)
}

func TestCalculateStatistics_EmptyYieldsEmptySet(t *testing.T) {
	env := testsupport.NewEnv(t)
	svc := services.NewStatisticsService(env.Repo, env.Logger, env.Metrics)

	got := svc.CalculateStatistics(context.Background(), nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListYearlyStats(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	svc := services.NewStatisticsService(env.Repo, env.Logger, env.Metrics)

	stats := svc.CalculateStatistics(ctx, []models.DailyObservation{
		{Date: "20200101", MaxT: 10.0, MinT: -5.0, Precip: 0.0, StationID: "USC1"},
		{Date: "20200101", MaxT: 12.0, MinT: -3.0, Precip: 4.0, StationID: "USC2"},
	})
	_, err := env.Repo.ReplaceStatistics(ctx, stats)
	require.NoError(t, err)

	station := "USC2"
	got, err := svc.ListYearlyStats(ctx, repository.StatisticsFilter{StationID: &station, Limit: services.DefaultLimit})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "USC2", got[0].StationID)
	assert.InDelta(t, 0.4, got[0].TotalPrecip, 1e-9)
}
