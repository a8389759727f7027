// Package repository 提供持久化层访问
//
// 与参考实现一致：database/sql + lib/pq，强类型行结构，$n 占位符。
// 平均值永远以 sum/count 对存储，读取时惰性计算，不落库均值
// （跨桶合并均值会产生 average-of-averages 错误）。
package repository

import (
	"context"
	"time"

	"walkerwatch/internal/models"
)

// MetricSampleRow 原始采样行（节流后每 tick 一行，紧凑或全量负载）
type MetricSampleRow struct {
	ID         string
	ResidentID string
	Ts         int64
	WalkerJSON string
	VisionJSON string
	MergedJSON string
}

// ExerciseSampleRow 归一化运动指标行（视觉字段平铺成列）
type ExerciseSampleRow struct {
	ID                       string
	ResidentID               string
	CameraID                 *string
	Ts                       int64
	FallSuspected            bool
	FallCount                *int
	TotalTimeOnGroundSeconds *float64
	PostureState             *string
	StepCount                *int
	CadenceSpm               *float64
	AvgCadenceSpm            *float64
	StepTimeCv               *float64
	StepTimeMean             *float64
	ActivityState            *string
	AsymmetryIndex           *float64
	FallRiskLevel            *string
	FallRiskScore            *float64
	FogStatus                *string
	FogEpisodes              *int
	FogDurationSeconds       *float64
	PersonDetected           *bool
	Confidence               *float64
	SourceFps                *float64
	FrameID                  *string
	StepsMerged              *int
	TiltDeg                  *float64
	StepVar                  *float64
	CreatedAt                time.Time
}

// EventRow 安全事件行
type EventRow struct {
	ID          string    `json:"id"`
	ResidentID  string    `json:"residentId"`
	Ts          int64     `json:"ts"`
	EventType   string    `json:"eventType"`
	Severity    string    `json:"severity"`
	PayloadJSON string    `json:"payload"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RollupRow 聚合桶行（小时/天共用计数器结构）
type RollupRow struct {
	ID              string  `json:"id"`
	ResidentID      string  `json:"residentId"`
	BucketStartTs   int64   `json:"bucketStartTs,omitempty"` // 小时桶专用
	Date            string  `json:"date"`                    // UTC 日历日，YYYY-MM-DD
	SampleCount     int64   `json:"sampleCount"`
	StepsMax        int64   `json:"stepsMax"`
	CadenceSum      float64 `json:"cadenceSum"`
	CadenceCount    int64   `json:"cadenceCount"`
	StepVarSum      float64 `json:"stepVarSum"`
	StepVarCount    int64   `json:"stepVarCount"`
	FallCount       int64   `json:"fallCount"`
	TiltSpikeCount  int64   `json:"tiltSpikeCount"`
	HeavyLeanCount  int64   `json:"heavyLeanCount"`
	InactivityCount int64   `json:"inactivityCount"`
	ActiveSeconds   int64   `json:"activeSeconds"`
}

// CadenceAvg 惰性计算的步频均值（无样本返回 nil）
func (r *RollupRow) CadenceAvg() *float64 {
	if r.CadenceCount == 0 {
		return nil
	}
	avg := r.CadenceSum / float64(r.CadenceCount)
	return &avg
}

// StepVarAvg 惰性计算的步态变异均值（无样本返回 nil）
func (r *RollupRow) StepVarAvg() *float64 {
	if r.StepVarCount == 0 {
		return nil
	}
	avg := r.StepVarSum / float64(r.StepVarCount)
	return &avg
}

// RollupDelta 单 tick 的聚合增量
//
// 所有计数增量应用到小时桶和天桶两行；桶内计数器只增不减。
type RollupDelta struct {
	ActiveSeconds int64
	Steps         *int
	Cadence       *float64
	StepVar       *float64
	Fall          bool
	TiltSpike     bool
	HeavyLean     bool
	Inactivity    bool
}

// ResidentsRepository 住户表（FK 目标，首包自动建行）
type ResidentsRepository interface {
	Ensure(ctx context.Context, residentID string) error
}

// SamplesRepository 原始/归一化采样表
type SamplesRepository interface {
	InsertMetricSample(ctx context.Context, row *MetricSampleRow) error
	InsertExerciseSample(ctx context.Context, row *ExerciseSampleRow) error
	DeleteMetricSamplesBefore(ctx context.Context, ts int64) (int64, error)
	DeleteExerciseSamplesBefore(ctx context.Context, ts int64) (int64, error)
}

// EventsRepository 安全事件表
type EventsRepository interface {
	InsertEvent(ctx context.Context, event *models.SafetyEvent) error
	ListRecent(ctx context.Context, residentID string, sinceTs int64, limit int) ([]EventRow, error)
	DeleteEventsBefore(ctx context.Context, ts int64) (int64, error)
}

// RollupsRepository 小时/天聚合表
type RollupsRepository interface {
	UpsertHourly(ctx context.Context, residentID string, bucketStart int64, date string, delta *RollupDelta) error
	UpsertDaily(ctx context.Context, residentID string, date string, delta *RollupDelta) error
	ListHourly(ctx context.Context, residentID string, fromTs, toTs int64) ([]RollupRow, error)
	ListDaily(ctx context.Context, residentID string, fromDate, toDate string) ([]RollupRow, error)
	DeleteHourlyBefore(ctx context.Context, date string) (int64, error)
	DeleteDailyBefore(ctx context.Context, date string) (int64, error)
}

// ReportsRepository 生成报告表（本服务只做保留期清理）
type ReportsRepository interface {
	DeleteReportsBefore(ctx context.Context, date string) (int64, error)
}
