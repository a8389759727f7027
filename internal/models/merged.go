package models

// MergedMetrics 融合后的核心指标
//
// 融合规则：
// - steps：优先视觉步数（更准确），无视觉数据则用助行器步数
// - reliance = fsrLeft + fsrRight + ε（ε 防止除零）
// - balance = (fsrLeft − fsrRight) / reliance，取值 [−1, 1]
// - fallSuspected = 视觉跌倒标志 OR 倾角 ≥ 60°
type MergedMetrics struct {
	Steps         *int     `json:"steps"`
	TiltDeg       *float64 `json:"tiltDeg"`
	Reliance      float64  `json:"reliance"`
	Balance       float64  `json:"balance"`
	FallSuspected bool     `json:"fallSuspected"`
}

// MergedState 单个住户的融合实时状态
//
// 只由 fusion.StateStore 整体替换，读方永远看到完整快照。
type MergedState struct {
	ResidentID string                 `json:"residentId"`
	Ts         int64                  `json:"ts"`
	Walker     map[string]interface{} `json:"walker"`
	Vision     map[string]interface{} `json:"vision"`
	Metrics    MergedMetrics          `json:"metrics"`
}
