package ingest

import "sync"

// Stats 接入统计指标
//
// 健康检查接口对外暴露；所有字段只增不减（LastWalkerTs/LastVisionTs 除外）。
type Stats struct {
	mu sync.RWMutex

	WalkerPackets    int64 `json:"walkerPackets"`
	VisionPackets    int64 `json:"visionPackets"`
	WalkerDeduped    int64 `json:"walkerDeduped"`
	VisionDeduped    int64 `json:"visionDeduped"`
	ResidentRejected int64 `json:"residentRejected"`
	TsNormalized     int64 `json:"tsNormalized"`
	TsRejected       int64 `json:"tsRejected"`
	PersistWrites    int64 `json:"persistWrites"`
	PersistSkips     int64 `json:"persistSkips"`
	PersistFailures  int64 `json:"persistFailures"`
	CacheFailures    int64 `json:"cacheFailures"`

	LastWalkerTs int64 `json:"lastWalkerTs"`
	LastVisionTs int64 `json:"lastVisionTs"`
}

// NewStats 创建统计指标
func NewStats() *Stats {
	return &Stats{}
}

// RecordPacket 记录一个接收的数据包
func (s *Stats) RecordPacket(stream string, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stream == StreamWalker {
		s.WalkerPackets++
		s.LastWalkerTs = ts
	} else {
		s.VisionPackets++
		s.LastVisionTs = ts
	}
}

// RecordDeduped 记录一次重复包抑制
func (s *Stats) RecordDeduped(stream string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stream == StreamWalker {
		s.WalkerDeduped++
	} else {
		s.VisionDeduped++
	}
}

// RecordResidentMismatch 记录一次住户号不一致（软告警，包仍被接收）
func (s *Stats) RecordResidentMismatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResidentRejected++
}

// RecordTsNormalized 记录一次毫秒级时间戳换算
func (s *Stats) RecordTsNormalized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TsNormalized++
}

// RecordTsRejected 记录一次越界时间戳替换
func (s *Stats) RecordTsRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TsRejected++
}

// RecordPersistWrite 记录一次持久化写入
func (s *Stats) RecordPersistWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PersistWrites++
}

// RecordPersistSkip 记录一次持久化跳过（节流）
func (s *Stats) RecordPersistSkip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PersistSkips++
}

// RecordPersistFailure 记录一次持久化失败（不回滚内存状态）
func (s *Stats) RecordPersistFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PersistFailures++
}

// RecordCacheFailure 记录一次缓存镜像失败
func (s *Stats) RecordCacheFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CacheFailures++
}

// Snapshot 获取指标快照（线程安全）
func (s *Stats) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		WalkerPackets:    s.WalkerPackets,
		VisionPackets:    s.VisionPackets,
		WalkerDeduped:    s.WalkerDeduped,
		VisionDeduped:    s.VisionDeduped,
		ResidentRejected: s.ResidentRejected,
		TsNormalized:     s.TsNormalized,
		TsRejected:       s.TsRejected,
		PersistWrites:    s.PersistWrites,
		PersistSkips:     s.PersistSkips,
		PersistFailures:  s.PersistFailures,
		CacheFailures:    s.CacheFailures,
		LastWalkerTs:     s.LastWalkerTs,
		LastVisionTs:     s.LastVisionTs,
	}
}
