// Package service 实现监测主流程
//
// 每个入站数据包走同一条管线：解析 → 归一化 → 去重 → 融合 →
// 主动播报评估 → 实时推送 → 缓存镜像 → 节流决策 → 分析/持久化。
// 管线单包内串行、包间并发安全；持久化失败只计数不回滚内存状态，
// 实时读路径永远可用。
package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"walkerwatch/internal/config"
	"walkerwatch/internal/detector"
	"walkerwatch/internal/fusion"
	"walkerwatch/internal/hub"
	"walkerwatch/internal/ingest"
	"walkerwatch/internal/models"
	"walkerwatch/internal/persist"
	"walkerwatch/internal/proactive"
	"walkerwatch/internal/repository"
	"walkerwatch/internal/rollup"
)

// MonitorService 监测服务
type MonitorService struct {
	cfg        *config.Config
	state      *fusion.StateStore
	cache      *fusion.CacheMirror
	normalizer *ingest.Normalizer
	stats      *ingest.Stats
	throttler  *persist.Throttler
	steps      *detector.StepTracker
	suppress   *detector.Suppressor
	aggregator *rollup.Aggregator
	hub        *hub.Hub
	dispatcher *proactive.Dispatcher
	residents  repository.ResidentsRepository
	samples    repository.SamplesRepository
	events     repository.EventsRepository
	logger     *zap.Logger

	nowFn func() int64
}

// NewMonitorService 创建监测服务
func NewMonitorService(
	cfg *config.Config,
	state *fusion.StateStore,
	cache *fusion.CacheMirror,
	normalizer *ingest.Normalizer,
	stats *ingest.Stats,
	throttler *persist.Throttler,
	aggregator *rollup.Aggregator,
	h *hub.Hub,
	dispatcher *proactive.Dispatcher,
	residents repository.ResidentsRepository,
	samples repository.SamplesRepository,
	events repository.EventsRepository,
	logger *zap.Logger,
) *MonitorService {
	return &MonitorService{
		cfg:        cfg,
		state:      state,
		cache:      cache,
		normalizer: normalizer,
		stats:      stats,
		throttler:  throttler,
		steps:      detector.NewStepTracker(),
		suppress:   detector.NewSuppressor(detector.DurableCooldowns(), detector.CooldownDefault),
		aggregator: aggregator,
		hub:        h,
		dispatcher: dispatcher,
		residents:  residents,
		samples:    samples,
		events:     events,
		logger:     logger,
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc 替换时间源（仅测试使用）
func (s *MonitorService) SetNowFunc(fn func() int64) {
	s.nowFn = fn
}

// Stats 接入统计快照
func (s *MonitorService) Stats() ingest.Stats {
	return s.stats.Snapshot()
}

// State 融合状态存储（查询接口用）
func (s *MonitorService) State() *fusion.StateStore {
	return s.state
}

// HandleWalkerPacket 处理一个助行器数据包
func (s *MonitorService) HandleWalkerPacket(ctx context.Context, data []byte) error {
	pkt, err := models.ParseWalkerPacket(data)
	if err != nil {
		return err
	}
	if err := s.normalizer.EnforceResident(pkt.ResidentID); err != nil {
		return err
	}

	pkt.Ts = s.normalizer.NormalizeTs(pkt.Ts)
	pkt.Raw["ts"] = pkt.Ts
	s.stats.RecordPacket(ingest.StreamWalker, pkt.Ts)

	if s.normalizer.IsDuplicate(ingest.StreamWalker, pkt.ResidentID, pkt.Raw) {
		s.stats.RecordDeduped(ingest.StreamWalker)
		return nil
	}

	prev, curr := s.state.UpdateWalker(pkt)
	s.afterMerge(ctx, prev, curr)
	return nil
}

// HandleVisionPacket 处理一个视觉分析数据包
func (s *MonitorService) HandleVisionPacket(ctx context.Context, data []byte) error {
	pkt, err := models.ParseVisionPacket(data)
	if err != nil {
		return err
	}
	if err := s.normalizer.EnforceResident(pkt.ResidentID); err != nil {
		return err
	}

	pkt.Ts = s.normalizer.NormalizeTs(pkt.Ts)
	pkt.Raw["ts"] = pkt.Ts
	s.stats.RecordPacket(ingest.StreamVision, pkt.Ts)

	if s.normalizer.IsDuplicate(ingest.StreamVision, pkt.ResidentID, pkt.Raw) {
		s.stats.RecordDeduped(ingest.StreamVision)
		return nil
	}

	prev, curr := s.state.UpdateVision(pkt)
	s.afterMerge(ctx, prev, curr)
	return nil
}

// afterMerge 融合后的公共路径
func (s *MonitorService) afterMerge(ctx context.Context, prev, curr *models.MergedState) {
	residentID := curr.ResidentID

	s.dispatcher.EvaluateAndEnqueue(residentID, curr.Metrics, curr.Ts)
	s.hub.Publish(residentID, hub.NewMergedUpdate(curr))

	if err := s.cache.Update(ctx, curr); err != nil {
		s.stats.RecordCacheFailure()
		s.logger.Warn("Realtime cache update failed",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
	}

	if err := s.residents.Ensure(ctx, residentID); err != nil {
		s.logger.Error("Failed to ensure resident row",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
	}

	now := s.nowFn()
	critical := persist.CriticalTick(curr.Metrics)
	significant := persist.SignificantChange(prev, curr)
	decision := s.throttler.Decide(residentID, now, critical, significant)

	if decision.Analytics {
		s.analyticsTick(ctx, curr)
	}
	if decision.Persist {
		s.persistSample(ctx, curr, decision.FullPayload)
	} else {
		s.stats.RecordPersistSkip()
	}
}

// analyticsTick 归一化分析：安全事件检测落库 + 聚合桶增量
func (s *MonitorService) analyticsTick(ctx context.Context, curr *models.MergedState) {
	residentID := curr.ResidentID
	sinceStepChange := s.steps.Observe(residentID, curr.Metrics.Steps, curr.Ts)

	var heavyLean, inactivity bool
	for _, c := range detector.CollectDurable(curr.Metrics, sinceStepChange) {
		signature := detector.Signature(c.EventType, curr.Metrics)
		if !s.suppress.Allow(residentID, c.EventType, curr.Ts, signature) {
			continue
		}
		switch c.EventType {
		case models.EventHeavyLean:
			heavyLean = true
		case models.EventInactive:
			inactivity = true
		}

		event := &models.SafetyEvent{
			ResidentID: residentID,
			EventType:  c.EventType,
			Severity:   c.Severity,
			Ts:         curr.Ts,
			Payload:    c.Payload,
		}
		if err := s.events.InsertEvent(ctx, event); err != nil {
			s.logger.Error("Failed to persist safety event",
				zap.String("resident_id", residentID),
				zap.String("event_type", c.EventType),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("Safety event recorded",
			zap.String("resident_id", residentID),
			zap.String("event_type", c.EventType),
			zap.String("severity", c.Severity),
			zap.Int64("ts", curr.Ts),
		)
	}

	delta := rollup.BuildDelta(curr.Metrics, s.state.LatestVision(residentID),
		heavyLean, inactivity, s.throttler.AnalyticsIntervalSeconds())
	if err := s.aggregator.Apply(ctx, residentID, curr.Ts, delta); err != nil {
		s.logger.Error("Failed to apply rollup delta",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
	}
}

// persistSample 采样落库（紧凑或全量负载）
func (s *MonitorService) persistSample(ctx context.Context, curr *models.MergedState, fullPayload bool) {
	residentID := curr.ResidentID

	walkerJSON, visionJSON := "{}", "{}"
	merged := map[string]interface{}{
		"residentId": residentID,
		"ts":         curr.Ts,
		"metrics":    curr.Metrics,
	}
	if fullPayload {
		walkerRaw, visionRaw := s.state.RawPayloads(residentID)
		walkerJSON = marshalOrEmpty(walkerRaw)
		visionJSON = marshalOrEmpty(visionRaw)
		merged["walker"] = curr.Walker
		merged["vision"] = curr.Vision
	}

	row := &repository.MetricSampleRow{
		ResidentID: residentID,
		Ts:         curr.Ts,
		WalkerJSON: walkerJSON,
		VisionJSON: visionJSON,
		MergedJSON: marshalOrEmpty(merged),
	}
	if err := s.samples.InsertMetricSample(ctx, row); err != nil {
		s.stats.RecordPersistFailure()
		s.logger.Error("Failed to persist metric sample",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
		return
	}
	s.stats.RecordPersistWrite()

	// 归一化运动指标行每次落库都写，纯步行器部署视觉字段留空
	if err := s.samples.InsertExerciseSample(ctx,
		buildExerciseRow(curr, s.state.LatestVision(residentID))); err != nil {
		s.stats.RecordPersistFailure()
		s.logger.Error("Failed to persist exercise sample",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
	}
}

// buildExerciseRow 视觉字段平铺成归一化运动指标行；vision 可为 nil
func buildExerciseRow(curr *models.MergedState, vision *models.VisionPacket) *repository.ExerciseSampleRow {
	if vision == nil {
		row := &repository.ExerciseSampleRow{
			ResidentID:    curr.ResidentID,
			Ts:            curr.Ts,
			FallSuspected: curr.Metrics.FallSuspected,
			StepCount:     curr.Metrics.Steps,
			StepsMerged:   curr.Metrics.Steps,
			TiltDeg:       curr.Metrics.TiltDeg,
		}
		return row
	}

	row := &repository.ExerciseSampleRow{
		ResidentID:               curr.ResidentID,
		Ts:                       curr.Ts,
		FallSuspected:            curr.Metrics.FallSuspected,
		FallCount:                vision.VisionInt("fallCount", "fall_count"),
		TotalTimeOnGroundSeconds: vision.VisionFloat("totalTimeOnGroundSeconds", "total_time_on_ground_seconds"),
		PostureState:             vision.VisionString("postureState", "posture_state"),
		StepCount:                vision.StepCount,
		CadenceSpm:               vision.CadenceSpm,
		AvgCadenceSpm:            vision.VisionFloat("avgCadenceSpm", "avg_cadence_spm"),
		StepTimeCv:               vision.VisionFloat("stepTimeCv", "step_time_cv"),
		StepTimeMean:             vision.VisionFloat("stepTimeMean", "step_time_mean"),
		ActivityState:            vision.VisionString("activityState", "activity_state"),
		AsymmetryIndex:           vision.VisionFloat("asymmetryIndex", "asymmetry_index"),
		FallRiskLevel:            vision.VisionString("fallRiskLevel", "fall_risk_level"),
		FallRiskScore:            vision.VisionFloat("fallRiskScore", "fall_risk_score"),
		FogStatus:                vision.VisionString("fogStatus", "fog_status"),
		FogEpisodes:              vision.VisionInt("fogEpisodes", "fog_episodes"),
		FogDurationSeconds:       vision.VisionFloat("fogDurationSeconds", "fog_duration_seconds"),
		PersonDetected:           vision.VisionBool("personDetected", "person_detected"),
		Confidence:               vision.VisionFloat("confidence"),
		SourceFps:                vision.VisionFloat("sourceFps", "source_fps"),
		FrameID:                  vision.VisionString("frameId", "frame_id"),
		StepsMerged:              curr.Metrics.Steps,
		TiltDeg:                  curr.Metrics.TiltDeg,
		StepVar:                  vision.StepVar,
	}
	if row.StepCount == nil {
		row.StepCount = curr.Metrics.Steps
	}
	if vision.CameraID != "" {
		cameraID := vision.CameraID
		row.CameraID = &cameraID
	}
	return row
}

func marshalOrEmpty(v interface{}) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
