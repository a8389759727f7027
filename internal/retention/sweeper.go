// Package retention 提供有界时限的数据清理
//
// 各持久化表有独立的保留窗口；按固定最小间隔运行（默认 1 小时，
// 最短 60s）。删除失败或跳过的一轮直接等下一个间隔，无需协调——
// 单进程内运行即安全（多进程部署属外部协作问题）。
package retention

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"walkerwatch/internal/config"
	"walkerwatch/internal/repository"
)

// minRunIntervalSeconds 两轮清理之间的最小间隔
const minRunIntervalSeconds = 60

// Report 单轮清理报告（健康检查接口对外暴露）
type Report struct {
	Enabled bool              `json:"enabled"`
	RunAtTs int64             `json:"runAtTs"`
	Deleted map[string]int64  `json:"deleted"`
	Cutoffs map[string]string `json:"cutoffs"`
}

// Sweeper 保留期清理器
type Sweeper struct {
	cfg      *config.Config
	samples  repository.SamplesRepository
	events   repository.EventsRepository
	rollups  repository.RollupsRepository
	reports  repository.ReportsRepository
	logger   *zap.Logger

	mu         sync.Mutex
	lastRunTs  int64
	lastReport Report

	nowFn func() int64
}

// NewSweeper 创建清理器
func NewSweeper(
	cfg *config.Config,
	samples repository.SamplesRepository,
	events repository.EventsRepository,
	rollups repository.RollupsRepository,
	reports repository.ReportsRepository,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		cfg:     cfg,
		samples: samples,
		events:  events,
		rollups: rollups,
		reports: reports,
		logger:  logger,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc 替换时间源（仅测试使用）
func (s *Sweeper) SetNowFunc(fn func() int64) {
	s.nowFn = fn
}

// Start 启动周期清理任务（独立于接收路径）
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(minRunIntervalSeconds) * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.MaybeRun(ctx)
			}
		}
	}()
}

// runInterval 实际运行间隔（配置值，下限 60s）
func (s *Sweeper) runInterval() int64 {
	interval := int64(s.cfg.Retention.RunIntervalSeconds)
	if interval < minRunIntervalSeconds {
		interval = minRunIntervalSeconds
	}
	return interval
}

// MaybeRun 到达间隔则运行一轮清理
func (s *Sweeper) MaybeRun(ctx context.Context) {
	now := s.nowFn()

	s.mu.Lock()
	if now-s.lastRunTs < s.runInterval() {
		s.mu.Unlock()
		return
	}
	s.lastRunTs = now
	s.mu.Unlock()

	report := s.Run(ctx, now)
	if report.Enabled {
		s.logger.Info("Retention cleanup completed",
			zap.Int64("run_at_ts", report.RunAtTs),
			zap.Any("deleted", report.Deleted),
		)
	}
}

// Run 执行一轮清理并记录报告
//
// 单表删除失败只计日志，不中断其余表；整轮结果写入 lastReport。
func (s *Sweeper) Run(ctx context.Context, now int64) Report {
	if !s.cfg.Retention.Enabled {
		report := Report{Enabled: false, RunAtTs: now, Deleted: map[string]int64{}}
		s.setLastReport(report)
		return report
	}

	metricCutoff := now - int64(s.cfg.Retention.MetricSamplesDays)*86400
	exerciseCutoff := now - int64(s.cfg.Retention.ExerciseSamplesDays)*86400
	eventsCutoff := now - int64(s.cfg.Retention.IngestEventsDays)*86400
	hourlyDateCutoff := utcDateDaysAgo(now, s.cfg.Retention.HourlyRollupsDays)
	dailyDateCutoff := utcDateDaysAgo(now, s.cfg.Retention.DailyRollupsDays)
	reportsDateCutoff := utcDateDaysAgo(now, s.cfg.Retention.DailyReportsDays)

	deleted := make(map[string]int64)

	if n, err := s.samples.DeleteMetricSamplesBefore(ctx, metricCutoff); err != nil {
		s.logger.Error("Failed to sweep metric samples", zap.Error(err))
	} else {
		deleted["metric_samples"] = n
	}
	if n, err := s.samples.DeleteExerciseSamplesBefore(ctx, exerciseCutoff); err != nil {
		s.logger.Error("Failed to sweep exercise samples", zap.Error(err))
	} else {
		deleted["exercise_metric_samples"] = n
	}
	if n, err := s.events.DeleteEventsBefore(ctx, eventsCutoff); err != nil {
		s.logger.Error("Failed to sweep ingest events", zap.Error(err))
	} else {
		deleted["ingest_events"] = n
	}
	if n, err := s.rollups.DeleteHourlyBefore(ctx, hourlyDateCutoff); err != nil {
		s.logger.Error("Failed to sweep hourly rollups", zap.Error(err))
	} else {
		deleted["hourly_metric_rollups"] = n
	}
	if n, err := s.rollups.DeleteDailyBefore(ctx, dailyDateCutoff); err != nil {
		s.logger.Error("Failed to sweep daily rollups", zap.Error(err))
	} else {
		deleted["daily_metric_rollups"] = n
	}
	if n, err := s.reports.DeleteReportsBefore(ctx, reportsDateCutoff); err != nil {
		s.logger.Error("Failed to sweep daily reports", zap.Error(err))
	} else {
		deleted["daily_reports"] = n
	}

	report := Report{
		Enabled: true,
		RunAtTs: now,
		Deleted: deleted,
		Cutoffs: map[string]string{
			"metric_samples_ts":          formatTs(metricCutoff),
			"exercise_metric_samples_ts": formatTs(exerciseCutoff),
			"ingest_events_ts":           formatTs(eventsCutoff),
			"hourly_metric_rollups_date": hourlyDateCutoff,
			"daily_metric_rollups_date":  dailyDateCutoff,
			"daily_reports_date":         reportsDateCutoff,
		},
	}
	s.setLastReport(report)
	return report
}

// LastReport 最近一轮清理报告
func (s *Sweeper) LastReport() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

func (s *Sweeper) setLastReport(report Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = report
}

func utcDateDaysAgo(now int64, days int) string {
	if days < 0 {
		days = 0
	}
	return time.Unix(now, 0).UTC().AddDate(0, 0, -days).Format("2006-01-02")
}

func formatTs(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
