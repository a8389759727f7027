package detector

import (
	"fmt"
	"sync"

	"walkerwatch/internal/models"
)

// Suppressor 事件抑制状态
//
// 按 (residentId, eventType) 维护冷却时间戳和上次发出的签名。
// 持久化路径和主动播报路径各持有独立实例，互不挤占。
type Suppressor struct {
	mu              sync.Mutex
	cooldowns       map[string]int64 // eventType → 冷却秒数
	defaultCooldown int64
	lastTs          map[suppressKey]int64
	lastSig         map[suppressKey]string
}

type suppressKey struct {
	residentID string
	eventType  string
}

// NewSuppressor 创建抑制器
// cooldowns 缺失的事件类型使用 defaultCooldown
func NewSuppressor(cooldowns map[string]int64, defaultCooldown int64) *Suppressor {
	cp := make(map[string]int64, len(cooldowns))
	for k, v := range cooldowns {
		cp[k] = v
	}
	return &Suppressor{
		cooldowns:       cp,
		defaultCooldown: defaultCooldown,
		lastTs:          make(map[suppressKey]int64),
		lastSig:         make(map[suppressKey]string),
	}
}

// Allow 判定事件是否放行
//
// 先检查冷却：距上次放行不足该类型冷却时间则拒绝。
// 再检查签名：与上次放行的签名相同则拒绝（避免数值完全未变的
// 重复触发，即使冷却恰好已过）。放行时同时更新时间戳和签名。
func (s *Suppressor) Allow(residentID, eventType string, ts int64, signature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := suppressKey{residentID: residentID, eventType: eventType}
	cooldown, ok := s.cooldowns[eventType]
	if !ok {
		cooldown = s.defaultCooldown
	}
	if ts-s.lastTs[key] < cooldown {
		return false
	}
	if sig, ok := s.lastSig[key]; ok && sig == signature {
		return false
	}
	s.lastTs[key] = ts
	s.lastSig[key] = signature
	return true
}

// Reset 清空抑制状态（测试用）
func (s *Suppressor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTs = make(map[suppressKey]int64)
	s.lastSig = make(map[suppressKey]string)
}

// Signature 数值快照签名
//
// reliance 取 0.1 精度，balance 取 0.01 精度，附跌倒标志。
func Signature(eventType string, m models.MergedMetrics) string {
	fall := 0
	if m.FallSuspected {
		fall = 1
	}
	return fmt.Sprintf("%s:%.1f:%.2f:%d", eventType, m.Reliance, m.Balance, fall)
}
