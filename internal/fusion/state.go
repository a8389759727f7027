// Package fusion 提供双流状态融合功能
//
// 将助行器传感器流和视觉分析流的最新读数合并为单个住户的实时状态：
// - steps：优先视觉步数（更准确），无视觉数据则用助行器步数
// - reliance/balance：由左右压力读数推导
// - fallSuspected：视觉跌倒标志 OR 倾角 ≥ 60°
//
// 融合是当前两条最新读数的纯函数，不依赖历史；每次接收的数据包整体
// 替换对应流的读数，读方只会看到完整快照。
package fusion

import (
	"sync"
	"time"

	"walkerwatch/internal/models"
)

// tipOverTiltDeg 倾角达到该角度视为助行器倾倒
const tipOverTiltDeg = 60.0

// relianceEpsilon 防止零压力时除零
const relianceEpsilon = 1e-6

// StateStore 融合状态存储
//
// 每个住户一条 MergedState，只增不删；所有 map 仅由本组件持有和修改。
type StateStore struct {
	mu     sync.RWMutex
	walker map[string]*models.WalkerPacket
	vision map[string]*models.VisionPacket
	merged map[string]*models.MergedState

	nowFn func() int64
}

// NewStateStore 创建融合状态存储
func NewStateStore() *StateStore {
	return &StateStore{
		walker: make(map[string]*models.WalkerPacket),
		vision: make(map[string]*models.VisionPacket),
		merged: make(map[string]*models.MergedState),
		nowFn:  func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc 替换时间源（仅测试使用）
func (s *StateStore) SetNowFunc(fn func() int64) {
	s.nowFn = fn
}

// UpdateWalker 替换助行器流最新读数并重算融合状态
// 返回更新前和更新后的融合快照（更新前可能为 nil）
func (s *StateStore) UpdateWalker(pkt *models.WalkerPacket) (prev, curr *models.MergedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.merged[pkt.ResidentID]
	s.walker[pkt.ResidentID] = pkt
	curr = s.computeMergedLocked(pkt.ResidentID)
	s.merged[pkt.ResidentID] = curr
	return prev, curr
}

// UpdateVision 替换视觉流最新读数并重算融合状态
func (s *StateStore) UpdateVision(pkt *models.VisionPacket) (prev, curr *models.MergedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.merged[pkt.ResidentID]
	s.vision[pkt.ResidentID] = pkt
	curr = s.computeMergedLocked(pkt.ResidentID)
	s.merged[pkt.ResidentID] = curr
	return prev, curr
}

// Get 返回住户当前融合状态；尚无数据时 ok 为 false
func (s *StateStore) Get(residentID string) (*models.MergedState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.merged[residentID]
	return m, ok
}

// Snapshot 返回所有已知住户的融合状态（订阅回放用）
func (s *StateStore) Snapshot() []*models.MergedState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.MergedState, 0, len(s.merged))
	for _, m := range s.merged {
		out = append(out, m)
	}
	return out
}

// Count 已知住户数量（健康检查用）
func (s *StateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.merged)
}

// LatestVision 住户的视觉流最新读数（归一化入库用）
func (s *StateStore) LatestVision(residentID string) *models.VisionPacket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vision[residentID]
}

// RawPayloads 两条流的原始负载（全量持久化用）
func (s *StateStore) RawPayloads(residentID string) (walker, vision map[string]interface{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w := s.walker[residentID]; w != nil {
		walker = w.Raw
	}
	if v := s.vision[residentID]; v != nil {
		vision = v.Raw
	}
	return walker, vision
}

// computeMergedLocked 由两条最新读数计算融合状态（需持有写锁）
func (s *StateStore) computeMergedLocked(residentID string) *models.MergedState {
	w := s.walker[residentID]
	v := s.vision[residentID]

	var fsrLeft, fsrRight float64
	var tilt *float64
	var walkerSteps *int
	var walkerRaw map[string]interface{}
	var walkerTs int64
	if w != nil {
		fsrLeft = float64(w.FsrLeft)
		fsrRight = float64(w.FsrRight)
		tilt = w.TiltDeg
		walkerSteps = w.Steps
		walkerRaw = w.Raw
		walkerTs = w.Ts
	}

	reliance := fsrLeft + fsrRight + relianceEpsilon
	balance := (fsrLeft - fsrRight) / reliance

	var visionFall bool
	var visionSteps *int
	var visionRaw map[string]interface{}
	var visionTs int64
	if v != nil {
		visionFall = v.FallSuspected
		visionSteps = v.StepCount
		visionRaw = v.Raw
		visionTs = v.Ts
	}

	steps := walkerSteps
	if visionSteps != nil {
		steps = visionSteps
	}

	tipped := tilt != nil && *tilt >= tipOverTiltDeg

	ts := s.nowFn()
	if walkerTs > ts {
		ts = walkerTs
	}
	if visionTs > ts {
		ts = visionTs
	}

	return &models.MergedState{
		ResidentID: residentID,
		Ts:         ts,
		Walker:     walkerRaw,
		Vision:     visionRaw,
		Metrics: models.MergedMetrics{
			Steps:         steps,
			TiltDeg:       tilt,
			Reliance:      reliance,
			Balance:       balance,
			FallSuspected: visionFall || tipped,
		},
	}
}
