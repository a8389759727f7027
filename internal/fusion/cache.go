package fusion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"walkerwatch/internal/models"
	"walkerwatch/internal/store"
)

// CacheMirror 实时状态缓存镜像
//
// 每次接收的融合 tick 后把快照写入 Redis（带 TTL），供其它进程读取
// 实时状态而不必访问本进程。写失败只记日志，不影响接收路径。
type CacheMirror struct {
	kv        store.KV
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewCacheMirror 创建缓存镜像
func NewCacheMirror(kv store.KV, keyPrefix string, ttlSeconds int, logger *zap.Logger) *CacheMirror {
	return &CacheMirror{
		kv:        kv,
		keyPrefix: keyPrefix,
		ttl:       time.Duration(ttlSeconds) * time.Second,
		logger:    logger,
	}
}

// Update 写入住户实时状态快照
func (c *CacheMirror) Update(ctx context.Context, state *models.MergedState) error {
	key := fmt.Sprintf("%s%s:realtime", c.keyPrefix, state.ResidentID)

	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime state: %w", err)
	}

	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}

	c.logger.Debug("Updated realtime cache",
		zap.String("resident_id", state.ResidentID),
		zap.String("key", key),
	)

	return nil
}
