package rollup_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"walkerwatch/internal/models"
	"walkerwatch/internal/repository"
	"walkerwatch/internal/rollup"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestHourBucket(t *testing.T) {
	require.Equal(t, int64(1700000000-1700000000%3600), rollup.HourBucket(1700000000))
	require.Equal(t, int64(3600), rollup.HourBucket(3600))
	require.Equal(t, int64(3600), rollup.HourBucket(7199))
}

func TestUTCDate(t *testing.T) {
	// 2023-11-14 22:13:20 UTC
	require.Equal(t, "2023-11-14", rollup.UTCDate(1700000000))
	// 日界前后
	require.Equal(t, "2023-11-14", rollup.UTCDate(1700006399))
	require.Equal(t, "2023-11-15", rollup.UTCDate(1700006400))
}

func TestBuildDelta_WalkerOnly(t *testing.T) {
	m := models.MergedMetrics{Steps: intPtr(42), TiltDeg: floatPtr(61.0), FallSuspected: true}
	delta := rollup.BuildDelta(m, nil, true, false, 2)

	require.Equal(t, int64(2), delta.ActiveSeconds)
	require.Equal(t, 42, *delta.Steps)
	require.True(t, delta.Fall)
	require.True(t, delta.TiltSpike)
	require.True(t, delta.HeavyLean)
	require.False(t, delta.Inactivity)
	require.Nil(t, delta.Cadence)
	require.Nil(t, delta.StepVar)
}

func TestBuildDelta_VisionGaitMetrics(t *testing.T) {
	vision := &models.VisionPacket{CadenceSpm: floatPtr(92.5), StepVar: floatPtr(0.08)}
	delta := rollup.BuildDelta(models.MergedMetrics{TiltDeg: floatPtr(59.9)}, vision, false, false, 2)

	require.False(t, delta.TiltSpike)
	require.InDelta(t, 92.5, *delta.Cadence, 1e-6)
	require.InDelta(t, 0.08, *delta.StepVar, 1e-6)
}

// fakeRollupsRepo 记录 upsert 调用
type fakeRollupsRepo struct {
	repository.RollupsRepository
	hourlyCalls []upsertCall
	dailyCalls  []upsertCall
	failHourly  error
}

type upsertCall struct {
	residentID  string
	bucketStart int64
	date        string
	delta       *repository.RollupDelta
}

func (f *fakeRollupsRepo) UpsertHourly(ctx context.Context, residentID string, bucketStart int64, date string, delta *repository.RollupDelta) error {
	if f.failHourly != nil {
		return f.failHourly
	}
	f.hourlyCalls = append(f.hourlyCalls, upsertCall{residentID, bucketStart, date, delta})
	return nil
}

func (f *fakeRollupsRepo) UpsertDaily(ctx context.Context, residentID string, date string, delta *repository.RollupDelta) error {
	f.dailyCalls = append(f.dailyCalls, upsertCall{residentID: residentID, date: date, delta: delta})
	return nil
}

func TestAggregator_AppliesBothBuckets(t *testing.T) {
	repo := &fakeRollupsRepo{}
	agg := rollup.NewAggregator(repo, zap.NewNop())

	delta := &repository.RollupDelta{ActiveSeconds: 2, Fall: true}
	require.NoError(t, agg.Apply(context.Background(), "r1", 1700000000, delta))

	require.Len(t, repo.hourlyCalls, 1)
	require.Equal(t, rollup.HourBucket(1700000000), repo.hourlyCalls[0].bucketStart)
	require.Equal(t, "2023-11-14", repo.hourlyCalls[0].date)

	require.Len(t, repo.dailyCalls, 1)
	require.Equal(t, "2023-11-14", repo.dailyCalls[0].date)
}

func TestAggregator_HourlyFailureStopsDaily(t *testing.T) {
	repo := &fakeRollupsRepo{failHourly: context.DeadlineExceeded}
	agg := rollup.NewAggregator(repo, zap.NewNop())

	err := agg.Apply(context.Background(), "r1", 1700000000, &repository.RollupDelta{})
	require.Error(t, err)
	require.Empty(t, repo.dailyCalls)
}

func TestRollupRow_LazyAverages(t *testing.T) {
	row := repository.RollupRow{CadenceSum: 180.0, CadenceCount: 2}
	require.InDelta(t, 90.0, *row.CadenceAvg(), 1e-6)
	require.Nil(t, row.StepVarAvg())
}
