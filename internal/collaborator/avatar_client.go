package collaborator

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"walkerwatch/internal/config"
)

// AvatarClient 数字人下发通道客户端
//
// 按会话 ID 下发打断与语音播放指令；音频以 base64 编码随请求体传输。
type AvatarClient struct {
	httpClient *resty.Client
	apiKey     string
	logger     *zap.Logger
}

// NewAvatarClient 创建数字人通道客户端
func NewAvatarClient(cfg *config.Config, logger *zap.Logger) *AvatarClient {
	client := resty.New().
		SetBaseURL(cfg.Collaborator.AvatarBaseURL).
		SetTimeout(time.Duration(cfg.Collaborator.TimeoutSeconds) * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(300 * time.Millisecond).
		SetHeader("Content-Type", "application/json")

	return &AvatarClient{
		httpClient: client,
		apiKey:     cfg.Collaborator.AvatarAPIKey,
		logger:     logger,
	}
}

// SendInterrupt 打断当前播报（跌倒事件优先抢占）
func (c *AvatarClient) SendInterrupt(ctx context.Context, sessionID string) error {
	if c.httpClient.BaseURL == "" {
		return ErrNotConfigured
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(map[string]string{"sessionId": sessionID}).
		Post("/v1/avatar/interrupt")
	if err != nil {
		return fmt.Errorf("failed to call avatar interrupt: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("avatar interrupt error: status %d", resp.StatusCode())
	}
	return nil
}

// SpeakPCM 下发一段 PCM 语音
func (c *AvatarClient) SpeakPCM(ctx context.Context, sessionID string, pcm []byte) error {
	if c.httpClient.BaseURL == "" {
		return ErrNotConfigured
	}

	body := map[string]string{
		"sessionId": sessionID,
		"audio":     base64.StdEncoding.EncodeToString(pcm),
		"format":    "pcm",
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(body).
		Post("/v1/avatar/speak")
	if err != nil {
		return fmt.Errorf("failed to call avatar speak: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("avatar speak error: status %d", resp.StatusCode())
	}

	c.logger.Debug("Delivered speech to avatar session",
		zap.String("session_id", sessionID),
		zap.Int("pcm_bytes", len(pcm)),
	)
	return nil
}
