// Package ingest 提供入站数据包的归一化与去重
//
// 处理顺序：
// 1. 住户号校验：配置了 allowedResidentID 且不一致时记警告但仍接收
//    （容忍多租户测试流量，不丢数据）
// 2. 时间戳归一化：缺失补当前时间；毫秒级（>10^10）除以 1000；
//    超过 5 年前或 1 天后视为异常，替换为当前时间并计数
// 3. 去重：对剔除 ts 后的负载计算稳定签名，与上一包相同且间隔在
//    去重窗口内（默认 250ms）时短路返回成功，不触碰融合状态
//
// 除负载形状非法外，接入路径永不硬失败。
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 流标识
const (
	StreamWalker = "walker"
	StreamVision = "vision"
)

// 时间戳有效窗口
const (
	tsMaxPastSeconds   = 86400 * 365 * 5 // 5 年前
	tsMaxFutureSeconds = 86400           // 1 天后
	tsMillisThreshold  = 10_000_000_000  // 超过该值视为毫秒级时间戳
)

// sigEntry 去重签名记录
type sigEntry struct {
	signature string
	atMs      int64
}

// Normalizer 入站数据包归一化器
type Normalizer struct {
	allowedResident string
	dedupeWindowMs  int64
	stats           *Stats
	logger          *zap.Logger

	mu            sync.Mutex
	lastSignature map[string]sigEntry // key: "<stream>:<residentId>"

	nowFn func() time.Time
}

// NewNormalizer 创建归一化器
func NewNormalizer(allowedResident string, dedupeWindowMs int, stats *Stats, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		allowedResident: allowedResident,
		dedupeWindowMs:  int64(dedupeWindowMs),
		stats:           stats,
		logger:          logger,
		lastSignature:   make(map[string]sigEntry),
		nowFn:           time.Now,
	}
}

// SetNowFunc 替换时间源（仅测试使用）
func (n *Normalizer) SetNowFunc(fn func() time.Time) {
	n.nowFn = fn
}

// EnforceResident 住户号软校验
//
// 返回 error 仅当住户号为空；配置不一致时记警告并计数，包仍被接收。
func (n *Normalizer) EnforceResident(residentID string) error {
	if residentID == "" {
		return fmt.Errorf("residentId is required")
	}
	if n.allowedResident != "" && residentID != n.allowedResident {
		n.stats.RecordResidentMismatch()
		n.logger.Warn("residentId mismatch; accepting packet",
			zap.String("received", residentID),
			zap.String("configured", n.allowedResident),
		)
	}
	return nil
}

// NormalizeTs 时间戳归一化（Unix 秒）
func (n *Normalizer) NormalizeTs(ts int64) int64 {
	now := n.nowFn().Unix()
	if ts == 0 {
		return now
	}
	if ts > tsMillisThreshold {
		ts = ts / 1000
		n.stats.RecordTsNormalized()
	}
	if ts < now-tsMaxPastSeconds || ts > now+tsMaxFutureSeconds {
		n.stats.RecordTsRejected()
		return now
	}
	return ts
}

// IsDuplicate 重传去重判定
//
// 签名覆盖剔除 ts 后的负载（重传的时间戳抖动不破坏去重）。
// 无论判定结果如何都会记录本次签名，下一包与之比较。
func (n *Normalizer) IsDuplicate(stream, residentID string, payload map[string]interface{}) bool {
	if n.dedupeWindowMs <= 0 {
		return false
	}

	signature := payloadSignature(payload)
	nowMs := n.nowFn().UnixMilli()
	key := stream + ":" + residentID

	n.mu.Lock()
	prev, ok := n.lastSignature[key]
	n.lastSignature[key] = sigEntry{signature: signature, atMs: nowMs}
	n.mu.Unlock()

	return ok && prev.signature == signature && nowMs-prev.atMs <= n.dedupeWindowMs
}

// payloadSignature 负载稳定签名（SHA-256，键序固定，剔除 ts）
func payloadSignature(payload map[string]interface{}) string {
	forSig := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == "ts" {
			continue
		}
		forSig[k] = v
	}
	// encoding/json 对 map 键做字典序输出，签名稳定
	data, err := json.Marshal(forSig)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
