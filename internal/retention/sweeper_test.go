package retention_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"walkerwatch/internal/config"
	"walkerwatch/internal/models"
	"walkerwatch/internal/repository"
	"walkerwatch/internal/retention"
)

// fakeTables 记录各表的删除 cutoff
type fakeTables struct {
	metricTs   []int64
	exerciseTs []int64
	eventsTs   []int64
	hourlyDate []string
	dailyDate  []string
	reportDate []string
}

func (f *fakeTables) InsertMetricSample(ctx context.Context, row *repository.MetricSampleRow) error {
	return nil
}
func (f *fakeTables) InsertExerciseSample(ctx context.Context, row *repository.ExerciseSampleRow) error {
	return nil
}
func (f *fakeTables) DeleteMetricSamplesBefore(ctx context.Context, ts int64) (int64, error) {
	f.metricTs = append(f.metricTs, ts)
	return 3, nil
}
func (f *fakeTables) DeleteExerciseSamplesBefore(ctx context.Context, ts int64) (int64, error) {
	f.exerciseTs = append(f.exerciseTs, ts)
	return 2, nil
}
func (f *fakeTables) InsertEvent(ctx context.Context, event *models.SafetyEvent) error { return nil }
func (f *fakeTables) ListRecent(ctx context.Context, residentID string, sinceTs int64, limit int) ([]repository.EventRow, error) {
	return nil, nil
}
func (f *fakeTables) DeleteEventsBefore(ctx context.Context, ts int64) (int64, error) {
	f.eventsTs = append(f.eventsTs, ts)
	return 1, nil
}
func (f *fakeTables) UpsertHourly(ctx context.Context, residentID string, bucketStart int64, date string, delta *repository.RollupDelta) error {
	return nil
}
func (f *fakeTables) UpsertDaily(ctx context.Context, residentID string, date string, delta *repository.RollupDelta) error {
	return nil
}
func (f *fakeTables) ListHourly(ctx context.Context, residentID string, fromTs, toTs int64) ([]repository.RollupRow, error) {
	return nil, nil
}
func (f *fakeTables) ListDaily(ctx context.Context, residentID string, fromDate, toDate string) ([]repository.RollupRow, error) {
	return nil, nil
}
func (f *fakeTables) DeleteHourlyBefore(ctx context.Context, date string) (int64, error) {
	f.hourlyDate = append(f.hourlyDate, date)
	return 4, nil
}
func (f *fakeTables) DeleteDailyBefore(ctx context.Context, date string) (int64, error) {
	f.dailyDate = append(f.dailyDate, date)
	return 5, nil
}
func (f *fakeTables) DeleteReportsBefore(ctx context.Context, date string) (int64, error) {
	f.reportDate = append(f.reportDate, date)
	return 6, nil
}

func retentionConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Retention.Enabled = true
	cfg.Retention.RunIntervalSeconds = 3600
	cfg.Retention.MetricSamplesDays = 14
	cfg.Retention.ExerciseSamplesDays = 30
	cfg.Retention.IngestEventsDays = 60
	cfg.Retention.HourlyRollupsDays = 90
	cfg.Retention.DailyRollupsDays = 365
	cfg.Retention.DailyReportsDays = 365
	return cfg
}

func TestSweeper_RunCutoffs(t *testing.T) {
	tables := &fakeTables{}
	s := retention.NewSweeper(retentionConfig(), tables, tables, tables, tables, zap.NewNop())

	// 2023-11-14 22:13:20 UTC
	now := int64(1700000000)
	report := s.Run(context.Background(), now)

	require.True(t, report.Enabled)
	require.Equal(t, []int64{now - 14*86400}, tables.metricTs)
	require.Equal(t, []int64{now - 30*86400}, tables.exerciseTs)
	require.Equal(t, []int64{now - 60*86400}, tables.eventsTs)

	expectDate := func(days int) string {
		return time.Unix(now, 0).UTC().AddDate(0, 0, -days).Format("2006-01-02")
	}
	require.Equal(t, []string{expectDate(90)}, tables.hourlyDate)
	require.Equal(t, []string{expectDate(365)}, tables.dailyDate)
	require.Equal(t, []string{expectDate(365)}, tables.reportDate)

	require.Equal(t, int64(3), report.Deleted["metric_samples"])
	require.Equal(t, int64(5), report.Deleted["daily_metric_rollups"])
	require.Equal(t, report, s.LastReport())
}

func TestSweeper_DisabledDeletesNothing(t *testing.T) {
	cfg := retentionConfig()
	cfg.Retention.Enabled = false
	tables := &fakeTables{}
	s := retention.NewSweeper(cfg, tables, tables, tables, tables, zap.NewNop())

	report := s.Run(context.Background(), 1700000000)

	require.False(t, report.Enabled)
	require.Empty(t, tables.metricTs)
	require.Empty(t, tables.dailyDate)
}

func TestSweeper_MaybeRunGating(t *testing.T) {
	tables := &fakeTables{}
	s := retention.NewSweeper(retentionConfig(), tables, tables, tables, tables, zap.NewNop())

	now := int64(1700000000)
	s.SetNowFunc(func() int64 { return now })

	s.MaybeRun(context.Background())
	require.Len(t, tables.metricTs, 1)

	// 间隔未到不再运行
	now += 3599
	s.MaybeRun(context.Background())
	require.Len(t, tables.metricTs, 1)

	now += 1
	s.MaybeRun(context.Background())
	require.Len(t, tables.metricTs, 2)
}

func TestSweeper_MinimumInterval(t *testing.T) {
	cfg := retentionConfig()
	cfg.Retention.RunIntervalSeconds = 5
	tables := &fakeTables{}
	s := retention.NewSweeper(cfg, tables, tables, tables, tables, zap.NewNop())

	now := int64(1700000000)
	s.SetNowFunc(func() int64 { return now })

	s.MaybeRun(context.Background())
	// 配置低于 60s 下限时按 60s 执行
	now += 59
	s.MaybeRun(context.Background())
	require.Len(t, tables.metricTs, 1)

	now += 1
	s.MaybeRun(context.Background())
	require.Len(t, tables.metricTs, 2)
}
