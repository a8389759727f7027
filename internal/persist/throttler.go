// Package persist 提供持久化节流决策
//
// 每个接收的融合 tick 都会询问节流器是否落库：
// - 风险态（fallSuspected 或倾角 ≥ 50）用短间隔（默认 1s），否则长间隔（默认 5s）
// - 非风险态还要求指标有显著变化（步数变化、跌倒标志翻转、倾角变化 ≥ 2°），
//   稳定低信息流不挤爆存储，也不丢变化
// - 每第 N 次落库保留全量原始负载（默认 3），其余只存紧凑融合指标
// - 归一化分析 tick 以 persistInterval/2 的节奏独立落库，风险态必落
package persist

import (
	"math"
	"sync"

	"walkerwatch/internal/models"
)

// criticalTiltDeg 进入风险态的倾角阈值（度）
const criticalTiltDeg = 50.0

// significantTiltDelta 视为显著变化的倾角差（度）
const significantTiltDelta = 2.0

// CriticalTick 本 tick 是否为风险态
func CriticalTick(m models.MergedMetrics) bool {
	if m.FallSuspected {
		return true
	}
	return m.TiltDeg != nil && *m.TiltDeg >= criticalTiltDeg
}

// SignificantChange 相邻两个融合快照之间是否有显著变化
func SignificantChange(prev, curr *models.MergedState) bool {
	if prev == nil {
		return true
	}
	pm, cm := prev.Metrics, curr.Metrics

	if !intPtrEqual(pm.Steps, cm.Steps) {
		return true
	}
	if pm.FallSuspected != cm.FallSuspected {
		return true
	}
	if pm.TiltDeg != nil && cm.TiltDeg != nil {
		return math.Abs(*cm.TiltDeg-*pm.TiltDeg) >= significantTiltDelta
	}
	// 一侧缺倾角：出现或消失都算变化
	return (pm.TiltDeg == nil) != (cm.TiltDeg == nil)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Decision 单 tick 的落库决策
type Decision struct {
	Analytics   bool // 本 tick 写归一化分析（事件 + rollup）
	Persist     bool // 本 tick 写原始采样行
	FullPayload bool // 本次落库保留全量原始负载
}

// Throttler 持久化节流器
type Throttler struct {
	mu sync.Mutex

	intervalSeconds         int64
	criticalIntervalSeconds int64
	fullPayloadEveryN       int64

	lastPersist   map[string]int64
	lastAnalytics map[string]int64
	sampleCounter map[string]int64
}

// NewThrottler 创建节流器
func NewThrottler(intervalSeconds, criticalIntervalSeconds, fullPayloadEveryN int) *Throttler {
	if intervalSeconds < 1 {
		intervalSeconds = 1
	}
	if criticalIntervalSeconds < 1 {
		criticalIntervalSeconds = 1
	}
	if fullPayloadEveryN < 1 {
		fullPayloadEveryN = 1
	}
	return &Throttler{
		intervalSeconds:         int64(intervalSeconds),
		criticalIntervalSeconds: int64(criticalIntervalSeconds),
		fullPayloadEveryN:       int64(fullPayloadEveryN),
		lastPersist:             make(map[string]int64),
		lastAnalytics:           make(map[string]int64),
		sampleCounter:           make(map[string]int64),
	}
}

// AnalyticsIntervalSeconds 分析 tick 节奏（rollup 的 activeSeconds 增量用）
func (t *Throttler) AnalyticsIntervalSeconds() int64 {
	interval := t.intervalSeconds / 2
	if interval < 1 {
		interval = 1
	}
	return interval
}

// Decide 单 tick 决策
//
// critical 与 significant 由调用方从融合快照推导。
// Persist 为真时已登记本次落库时间和采样计数。
func (t *Throttler) Decide(residentID string, now int64, critical, significant bool) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	var d Decision

	if critical || now-t.lastAnalytics[residentID] >= t.AnalyticsIntervalSeconds() {
		t.lastAnalytics[residentID] = now
		d.Analytics = true
	}

	effective := t.intervalSeconds
	if critical {
		effective = t.criticalIntervalSeconds
	}
	if now-t.lastPersist[residentID] < effective {
		return d
	}
	if !critical && !significant {
		return d
	}

	t.lastPersist[residentID] = now
	t.sampleCounter[residentID]++
	d.Persist = true
	d.FullPayload = t.sampleCounter[residentID]%t.fullPayloadEveryN == 0
	return d
}

// Reset 清空节流状态（测试用）
func (t *Throttler) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastPersist = make(map[string]int64)
	t.lastAnalytics = make(map[string]int64)
	t.sampleCounter = make(map[string]int64)
}
