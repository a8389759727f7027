// Package hub 提供状态变更的订阅广播
//
// 两种订阅范围：全量（所有住户的更新）和单住户。发送失败的订阅者被
// 静默移除，单个坏连接不能阻塞或拖垮其它订阅者的投递。
package hub

import (
	"sync"

	"go.uber.org/zap"

	"walkerwatch/internal/models"
)

// Subscriber 订阅者连接抽象
//
// TrySend 不得长时间阻塞；返回 error 表示连接已不可用，
// 由 Hub 负责移除，调用方不处理。
type Subscriber interface {
	TrySend(payload interface{}) error
}

// MergedUpdate merged_update 广播事件
type MergedUpdate struct {
	Type string              `json:"type"`
	Data *models.MergedState `json:"data"`
}

// NewMergedUpdate 构建 merged_update 事件
func NewMergedUpdate(state *models.MergedState) MergedUpdate {
	return MergedUpdate{Type: "merged_update", Data: state}
}

// SnapshotFunc 订阅时的状态回放来源
// residentID 为空表示全量范围
type SnapshotFunc func(residentID string) []*models.MergedState

// Hub 广播中心
type Hub struct {
	mu         sync.RWMutex
	all        map[Subscriber]struct{}
	byResident map[string]map[Subscriber]struct{}
	scope      map[Subscriber]string // 订阅者 → 住户范围（"" 表示全量）

	snapshot SnapshotFunc
	logger   *zap.Logger
}

// NewHub 创建广播中心
func NewHub(snapshot SnapshotFunc, logger *zap.Logger) *Hub {
	return &Hub{
		all:        make(map[Subscriber]struct{}),
		byResident: make(map[string]map[Subscriber]struct{}),
		scope:      make(map[Subscriber]string),
		snapshot:   snapshot,
		logger:     logger,
	}
}

// Subscribe 注册订阅者
//
// residentID 为空时加入全量范围，否则只接收该住户的事件。
// 注册后立即回放当前已知状态快照，新订阅者不必等下一个 tick。
func (h *Hub) Subscribe(sub Subscriber, residentID string) {
	h.mu.Lock()
	if residentID == "" {
		h.all[sub] = struct{}{}
	} else {
		set, ok := h.byResident[residentID]
		if !ok {
			set = make(map[Subscriber]struct{})
			h.byResident[residentID] = set
		}
		set[sub] = struct{}{}
	}
	h.scope[sub] = residentID
	h.mu.Unlock()

	if h.snapshot == nil {
		return
	}
	for _, state := range h.snapshot(residentID) {
		if err := sub.TrySend(NewMergedUpdate(state)); err != nil {
			h.Unsubscribe(sub)
			return
		}
	}
}

// Unsubscribe 注销订阅者（重复调用无害）
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	residentID, ok := h.scope[sub]
	if !ok {
		return
	}
	delete(h.scope, sub)
	delete(h.all, sub)
	if set, ok := h.byResident[residentID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.byResident, residentID)
		}
	}
}

// Publish 广播事件
//
// 投递给全量范围的所有订阅者；residentID 非空时同时投递给该住户
// 范围。对订阅者之间不保证投递顺序（逐连接 fire-and-forget）。
func (h *Hub) Publish(residentID string, payload interface{}) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.all))
	for sub := range h.all {
		targets = append(targets, sub)
	}
	if residentID != "" {
		for sub := range h.byResident[residentID] {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.TrySend(payload); err != nil {
			h.logger.Debug("Removing dead subscriber", zap.Error(err))
			h.Unsubscribe(sub)
		}
	}
}

// SubscriberCount 当前订阅者数量（健康检查用）
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scope)
}
