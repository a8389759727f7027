package models

// 事件类型
const (
	EventFall      = "fall"
	EventNearFall  = "near-fall"
	EventHeavyLean = "heavy-lean"
	EventInactive  = "inactivity"
	EventHighLoad  = "high_load"
	EventImbalance = "imbalance"
)

// 事件级别
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// SafetyEvent 安全/活动事件（持久化路径）
//
// 由 detector 在冷却窗口约束下产出，写入 ingest_events 表并计入 rollup。
type SafetyEvent struct {
	ResidentID string                 `json:"residentId"`
	EventType  string                 `json:"eventType"`
	Severity   string                 `json:"severity"`
	Ts         int64                  `json:"ts"`
	Payload    map[string]interface{} `json:"payload"`
}

// ProactiveEvent 主动播报事件（语音路径）
//
// 与 SafetyEvent 共用检测逻辑但各自维护冷却状态，
// 由 proactive.Dispatcher 的单 worker 按全局 FIFO 消费。
type ProactiveEvent struct {
	ResidentID string        `json:"residentId"`
	EventType  string        `json:"eventType"`
	Severity   string        `json:"severity"`
	Metrics    MergedMetrics `json:"metricsSnapshot"`
	Ts         int64         `json:"ts"`
}
