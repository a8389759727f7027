package detector

import "sync"

// StepTracker 步数增长跟踪
//
// 记录每个住户上次步数增长的时间，inactivity 检测据此判定。
// 步数回退（设备重置）按新基线处理，不视为增长。
type StepTracker struct {
	mu         sync.Mutex
	lastSteps  map[string]int
	lastChange map[string]int64
}

// NewStepTracker 创建步数跟踪器
func NewStepTracker() *StepTracker {
	return &StepTracker{
		lastSteps:  make(map[string]int),
		lastChange: make(map[string]int64),
	}
}

// Observe 记录一次观测，返回距上次步数增长的秒数
//
// steps 为 nil 时不更新基线；首次观测返回 0。
func (t *StepTracker) Observe(residentID string, steps *int, ts int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if steps != nil {
		prev, seen := t.lastSteps[residentID]
		if !seen || *steps > prev {
			t.lastChange[residentID] = ts
		}
		t.lastSteps[residentID] = *steps
	}

	changeTs, ok := t.lastChange[residentID]
	if !ok {
		return 0
	}
	return ts - changeTs
}

// Reset 清空跟踪状态（测试用）
func (t *StepTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSteps = make(map[string]int)
	t.lastChange = make(map[string]int64)
}
