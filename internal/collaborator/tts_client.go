package collaborator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"walkerwatch/internal/config"
)

// TTSClient 语音合成客户端（返回原始 PCM 音频）
type TTSClient struct {
	httpClient *resty.Client
	apiKey     string
	voiceID    string
	logger     *zap.Logger
}

// NewTTSClient 创建语音合成客户端
func NewTTSClient(cfg *config.Config, logger *zap.Logger) *TTSClient {
	client := resty.New().
		SetBaseURL(cfg.Collaborator.TTSBaseURL).
		SetTimeout(time.Duration(cfg.Collaborator.TimeoutSeconds) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &TTSClient{
		httpClient: client,
		apiKey:     cfg.Collaborator.TTSAPIKey,
		voiceID:    cfg.Collaborator.TTSVoiceID,
		logger:     logger,
	}
}

type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
	Format  string `json:"format"`
}

// Synthesize 合成播报语音
func (c *TTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.httpClient.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(ttsRequest{Text: text, VoiceID: c.voiceID, Format: "pcm"}).
		Post("/v1/tts/synthesize")
	if err != nil {
		return nil, fmt.Errorf("failed to call TTS API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("TTS API error: status %d", resp.StatusCode())
	}
	pcm := resp.Body()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("TTS API returned empty audio")
	}

	c.logger.Debug("Synthesized speech",
		zap.Int("text_len", len(text)),
		zap.Int("pcm_bytes", len(pcm)),
	)
	return pcm, nil
}
