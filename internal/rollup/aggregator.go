// Package rollup 提供增量的小时/天聚合
//
// 每个分析 tick 把一份 RollupDelta 同时落到小时桶（ts − ts mod 3600）
// 和天桶（UTC 日历日）。桶行懒创建，计数器只增不减；
// steps_max 是运行最大值，从不重算。
package rollup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"walkerwatch/internal/models"
	"walkerwatch/internal/repository"
)

// tiltSpikeDeg 倾角尖峰阈值（度）
const tiltSpikeDeg = 60.0

// HourBucket 小时桶起点
func HourBucket(ts int64) int64 {
	return ts - ts%3600
}

// UTCDate ts 对应的 UTC 日历日（YYYY-MM-DD）
func UTCDate(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// BuildDelta 由本 tick 的融合指标构建聚合增量
//
// cadence/stepVar 来自视觉流最新读数；heavyLean/inactivity 表示
// 事件检测器在本 tick 放行了对应事件。
func BuildDelta(m models.MergedMetrics, vision *models.VisionPacket, heavyLean, inactivity bool, activeSeconds int64) *repository.RollupDelta {
	delta := &repository.RollupDelta{
		ActiveSeconds: activeSeconds,
		Steps:         m.Steps,
		Fall:          m.FallSuspected,
		TiltSpike:     m.TiltDeg != nil && *m.TiltDeg >= tiltSpikeDeg,
		HeavyLean:     heavyLean,
		Inactivity:    inactivity,
	}
	if vision != nil {
		delta.Cadence = vision.CadenceSpm
		delta.StepVar = vision.StepVar
	}
	return delta
}

// Aggregator 聚合器
type Aggregator struct {
	repo   repository.RollupsRepository
	logger *zap.Logger
}

// NewAggregator 创建聚合器
func NewAggregator(repo repository.RollupsRepository, logger *zap.Logger) *Aggregator {
	return &Aggregator{repo: repo, logger: logger}
}

// Apply 把增量应用到小时桶和天桶
func (a *Aggregator) Apply(ctx context.Context, residentID string, ts int64, delta *repository.RollupDelta) error {
	hourBucket := HourBucket(ts)
	date := UTCDate(ts)

	if err := a.repo.UpsertHourly(ctx, residentID, hourBucket, date, delta); err != nil {
		return fmt.Errorf("failed to apply hourly rollup: %w", err)
	}
	if err := a.repo.UpsertDaily(ctx, residentID, date, delta); err != nil {
		return fmt.Errorf("failed to apply daily rollup: %w", err)
	}

	a.logger.Debug("Applied rollup delta",
		zap.String("resident_id", residentID),
		zap.Int64("hour_bucket", hourBucket),
		zap.String("date", date),
	)
	return nil
}
