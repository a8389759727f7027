// Package proactive 实现主动语音播报
//
// 融合指标触发 fall / high_load / imbalance 候选事件后，经独立的
// 冷却+签名抑制入队，由单 worker 顺序完成：消息生成 → 安全检查 →
// 速率窗口 → 语音合成 → 数字人下发。所有播报结果（含失败）都会
// 作为 proactive_event 通知推给实时订阅方。
package proactive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"walkerwatch/internal/config"
	"walkerwatch/internal/detector"
	"walkerwatch/internal/models"
)

// rateWindowSeconds 播报速率滚动窗口
const rateWindowSeconds = 60

// MessageGenerator 播报文案生成方
type MessageGenerator interface {
	Generate(ctx context.Context, event models.ProactiveEvent) (string, error)
}

// SpeechSynthesizer 语音合成方
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AvatarChannel 数字人下发通道
type AvatarChannel interface {
	SendInterrupt(ctx context.Context, sessionID string) error
	SpeakPCM(ctx context.Context, sessionID string, pcm []byte) error
}

// NoticePublisher 播报结果通知出口（由 hub 实现）
type NoticePublisher interface {
	Publish(residentID string, payload interface{})
}

// Notice 播报结果通知（实时推送负载）
type Notice struct {
	Type       string `json:"type"`
	ResidentID string `json:"residentId"`
	EventType  string `json:"eventType"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Spoken     bool   `json:"spoken"`
	Ts         int64  `json:"ts"`
	Error      string `json:"error,omitempty"`
}

// Dispatcher 主动播报调度器
//
// 抑制器与持久化路径完全独立：同一事件类型两条路径各按自己的
// 冷却窗口放行。会话注册表记录各住户当前的数字人会话，无会话时
// 播报降级为 spoken:false 的通知。
type Dispatcher struct {
	cfg       *config.Config
	queue     *Queue
	suppress  *detector.Suppressor
	generator MessageGenerator
	tts       SpeechSynthesizer
	avatar    AvatarChannel
	publisher NoticePublisher
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]string  // residentId → 会话 ID
	spokenAt map[string][]int64 // residentId → 速率窗口内的播报时间

	nowFn func() int64
	wg    sync.WaitGroup
}

// NewDispatcher 创建调度器
func NewDispatcher(
	cfg *config.Config,
	generator MessageGenerator,
	tts SpeechSynthesizer,
	avatar AvatarChannel,
	publisher NoticePublisher,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		queue:     NewQueue(),
		suppress:  detector.NewSuppressor(nil, int64(cfg.Proactive.CooldownSeconds)),
		generator: generator,
		tts:       tts,
		avatar:    avatar,
		publisher: publisher,
		logger:    logger,
		sessions:  make(map[string]string),
		spokenAt:  make(map[string][]int64),
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc 替换时间源（仅测试使用）
func (d *Dispatcher) SetNowFunc(fn func() int64) {
	d.nowFn = fn
}

// Start 启动消费 worker；ctx 取消后关闭队列并排空退出
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			event, ok := d.queue.Pop()
			if !ok {
				return
			}
			d.process(ctx, event)
		}
	}()
	go func() {
		<-ctx.Done()
		d.queue.Close()
	}()
}

// Wait 等待 worker 退出
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// SetResidentSession 注册住户的数字人会话（覆盖旧会话）
func (d *Dispatcher) SetResidentSession(residentID, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[residentID] = sessionID
}

// ClearSession 注销会话，同时清空该住户的速率窗口（幂等）
func (d *Dispatcher) ClearSession(residentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, residentID)
	delete(d.spokenAt, residentID)
}

// Session 当前会话 ID
func (d *Dispatcher) Session(residentID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sessionID, ok := d.sessions[residentID]
	return sessionID, ok
}

// QueueLen 当前队列积压
func (d *Dispatcher) QueueLen() int {
	return d.queue.Len()
}

// EvaluateAndEnqueue 基于融合指标生成候选事件并入队
//
// 接收路径同步调用，仅做抑制判定和入队，不做任何外部 I/O。
func (d *Dispatcher) EvaluateAndEnqueue(residentID string, m models.MergedMetrics, ts int64) {
	if !d.cfg.Proactive.Enabled {
		return
	}

	candidates := detector.CollectProactive(m,
		d.cfg.Proactive.WeightThresholdKg,
		d.cfg.Proactive.BalanceThreshold,
	)
	for _, c := range candidates {
		signature := detector.Signature(c.EventType, m)
		if !d.suppress.Allow(residentID, c.EventType, ts, signature) {
			continue
		}
		d.queue.Push(models.ProactiveEvent{
			ResidentID: residentID,
			EventType:  c.EventType,
			Severity:   c.Severity,
			Metrics:    m,
			Ts:         ts,
		})
	}
}

// process 完成一次播报流程并推送结果通知
func (d *Dispatcher) process(ctx context.Context, event models.ProactiveEvent) {
	notice := Notice{
		Type:       "proactive_event",
		ResidentID: event.ResidentID,
		EventType:  event.EventType,
		Severity:   event.Severity,
		Ts:         event.Ts,
	}

	// 无会话不算错误，仅标记未播报；不合成语音也不占用速率窗口
	sessionID, hasSession := d.Session(event.ResidentID)
	if !hasSession {
		notice.Message = d.buildMessage(ctx, event)
		notice.Error = "no active avatar session"
		d.publish(notice)
		return
	}

	notice.Message = d.buildMessage(ctx, event)

	if !d.allowSpeak(event.ResidentID) {
		notice.Error = "rate_limited"
		d.publish(notice)
		return
	}

	pcm, err := d.tts.Synthesize(ctx, notice.Message)
	if err != nil {
		d.logger.Error("Speech synthesis failed",
			zap.String("resident_id", event.ResidentID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		notice.Error = fmt.Sprintf("tts: %v", err)
		d.publish(notice)
		return
	}

	// 合成成功即占用速率窗口名额，下发失败不退还
	d.recordSpeak(event.ResidentID)

	if event.EventType == models.EventFall {
		if err := d.avatar.SendInterrupt(ctx, sessionID); err != nil {
			d.logger.Warn("Avatar interrupt failed",
				zap.String("resident_id", event.ResidentID),
				zap.Error(err),
			)
		}
	}

	if err := d.avatar.SpeakPCM(ctx, sessionID, pcm); err != nil {
		d.logger.Error("Avatar speak failed",
			zap.String("resident_id", event.ResidentID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		notice.Error = fmt.Sprintf("avatar: %v", err)
		d.publish(notice)
		return
	}

	notice.Spoken = true
	d.publish(notice)
}

// buildMessage 生成播报文案
//
// 外部生成失败则回退到内置模板；跌倒播报必须包含求助提示，
// 不满足时强制替换为回退模板。
func (d *Dispatcher) buildMessage(ctx context.Context, event models.ProactiveEvent) string {
	message, err := d.generator.Generate(ctx, event)
	if err != nil || strings.TrimSpace(message) == "" {
		if err != nil {
			d.logger.Warn("Message generation failed, using fallback",
				zap.String("resident_id", event.ResidentID),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
		}
		return fallbackMessage(event.EventType)
	}
	if event.EventType == models.EventFall && !strings.Contains(strings.ToLower(message), "help") {
		d.logger.Warn("Generated fall message missed safety phrase, using fallback",
			zap.String("resident_id", event.ResidentID),
		)
		return fallbackMessage(models.EventFall)
	}
	return message
}

// fallbackMessage 内置播报模板
func fallbackMessage(eventType string) string {
	switch eventType {
	case models.EventFall:
		return "I think you may have fallen. Do you need help? Please respond or press your alert button."
	case models.EventHighLoad:
		return "You are leaning heavily on your walker. Please slow down and steady yourself."
	case models.EventImbalance:
		return "Your weight looks uneven on the walker. Please adjust your grip and find your balance."
	default:
		return "Please take a moment to check your posture and steady yourself."
	}
}

// allowSpeak 滚动窗口速率判定（不占名额）
func (d *Dispatcher) allowSpeak(residentID string) bool {
	now := d.nowFn()
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.spokenAt[residentID][:0]
	for _, ts := range d.spokenAt[residentID] {
		if now-ts < rateWindowSeconds {
			kept = append(kept, ts)
		}
	}
	d.spokenAt[residentID] = kept
	return len(kept) < d.cfg.Proactive.MaxSpeaksPerMinute
}

// recordSpeak 占用一个速率窗口名额
func (d *Dispatcher) recordSpeak(residentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spokenAt[residentID] = append(d.spokenAt[residentID], d.nowFn())
}

var _ NoticePublisher = (nopPublisher{})

// nopPublisher 空通知出口（无实时订阅时使用）
type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

// NopPublisher 返回空通知出口
func NopPublisher() NoticePublisher { return nopPublisher{} }

func (d *Dispatcher) publish(notice Notice) {
	d.publisher.Publish(notice.ResidentID, notice)
}
