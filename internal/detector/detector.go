// Package detector 提供融合指标上的安全/活动事件检测
//
// 事件类型与阈值：
// - fall：fallSuspected 为真，级别 high
// - near-fall：倾角 [50, 60)，级别 medium
// - heavy-lean：倾角 ≥ 35，≥ 60 时升级为 high
// - inactivity：步数连续无增长达到冷却窗口（默认 300s），级别 medium
// - high_load / imbalance：仅主动播报路径，阈值可配
//
// 检测本身是纯函数；冷却/签名抑制由 Suppressor 承担，
// 持久化路径和主动播报路径各用一个实例。
package detector

import (
	"math"

	"walkerwatch/internal/models"
)

// 持久化路径冷却时间（秒）
const (
	CooldownFall      = 45
	CooldownNearFall  = 45
	CooldownHeavyLean = 60
	CooldownInactive  = 300
	CooldownDefault   = 60
)

// 倾角阈值（度）
const (
	heavyLeanTiltDeg = 35.0
	nearFallTiltDeg  = 50.0
	fallTiltDeg      = 60.0
)

// DurableCooldowns 持久化路径的事件冷却表
func DurableCooldowns() map[string]int64 {
	return map[string]int64{
		models.EventFall:      CooldownFall,
		models.EventNearFall:  CooldownNearFall,
		models.EventHeavyLean: CooldownHeavyLean,
		models.EventInactive:  CooldownInactive,
	}
}

// Candidate 候选事件（未经抑制）
type Candidate struct {
	EventType string
	Severity  string
	Payload   map[string]interface{}
}

// CollectDurable 持久化路径候选事件
//
// sinceStepChange 为距上次步数增长的秒数（由 StepTracker 维护）。
// 顺序固定：inactivity → heavy-lean → fall → near-fall。
func CollectDurable(m models.MergedMetrics, sinceStepChange int64) []Candidate {
	var out []Candidate

	if sinceStepChange >= CooldownInactive {
		out = append(out, Candidate{
			EventType: models.EventInactive,
			Severity:  models.SeverityMedium,
			Payload:   map[string]interface{}{"secondsWithoutStepIncrease": sinceStepChange},
		})
	}

	if m.TiltDeg != nil && *m.TiltDeg >= heavyLeanTiltDeg {
		severity := models.SeverityMedium
		if *m.TiltDeg >= fallTiltDeg {
			severity = models.SeverityHigh
		}
		out = append(out, Candidate{
			EventType: models.EventHeavyLean,
			Severity:  severity,
			Payload:   map[string]interface{}{"tiltDeg": *m.TiltDeg},
		})
	}

	if m.FallSuspected {
		out = append(out, Candidate{
			EventType: models.EventFall,
			Severity:  models.SeverityHigh,
			Payload:   map[string]interface{}{"fallSuspected": true},
		})
	}

	if m.TiltDeg != nil && *m.TiltDeg >= nearFallTiltDeg && *m.TiltDeg < fallTiltDeg {
		out = append(out, Candidate{
			EventType: models.EventNearFall,
			Severity:  models.SeverityMedium,
			Payload:   map[string]interface{}{"tiltDeg": *m.TiltDeg},
		})
	}

	return out
}

// CollectProactive 主动播报路径候选事件
func CollectProactive(m models.MergedMetrics, weightThreshold, balanceThreshold float64) []Candidate {
	var out []Candidate

	if m.FallSuspected {
		out = append(out, Candidate{
			EventType: models.EventFall,
			Severity:  models.SeverityHigh,
		})
	}

	if m.Reliance >= weightThreshold {
		out = append(out, Candidate{
			EventType: models.EventHighLoad,
			Severity:  models.SeverityMedium,
		})
	}

	if math.Abs(m.Balance) >= balanceThreshold {
		out = append(out, Candidate{
			EventType: models.EventImbalance,
			Severity:  models.SeverityMedium,
		})
	}

	return out
}
