// Package collaborator 封装主动播报依赖的外部服务客户端
//
// 三个协作方均可不配置（BaseURL 为空），此时调用返回
// ErrNotConfigured，由 proactive 调度器降级处理。
package collaborator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"walkerwatch/internal/config"
	"walkerwatch/internal/models"
)

// ErrNotConfigured 协作方未配置
var ErrNotConfigured = errors.New("collaborator not configured")

// MessageClient 播报文案生成客户端（chat completions 协议）
type MessageClient struct {
	httpClient *resty.Client
	apiKey     string
	model      string
	logger     *zap.Logger
}

// NewMessageClient 创建文案生成客户端
func NewMessageClient(cfg *config.Config, logger *zap.Logger) *MessageClient {
	client := resty.New().
		SetBaseURL(cfg.Collaborator.MessageBaseURL).
		SetTimeout(time.Duration(cfg.Collaborator.TimeoutSeconds) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &MessageClient{
		httpClient: client,
		apiKey:     cfg.Collaborator.MessageAPIKey,
		model:      cfg.Collaborator.MessageModel,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate 生成一条简短播报文案
func (c *MessageClient) Generate(ctx context.Context, event models.ProactiveEvent) (string, error) {
	if c.httpClient.BaseURL == "" {
		return "", ErrNotConfigured
	}

	prompt := buildPrompt(event)
	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a caring voice assistant for an elderly resident using a walker. Reply with one short spoken sentence, no markdown."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   80,
		Temperature: 0.4,
	}

	var response chatResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(request).
		SetResult(&response).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to call message API: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("message API error: status %d", resp.StatusCode())
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("message API returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

// buildPrompt 按事件类型组织提示词
func buildPrompt(event models.ProactiveEvent) string {
	switch event.EventType {
	case models.EventFall:
		return "A possible fall was just detected. Generate an urgent but calm check-in that explicitly offers help."
	case models.EventHighLoad:
		return fmt.Sprintf("The resident is pressing %.1f kg onto the walker grips. Generate a gentle reminder to slow down.", event.Metrics.Reliance)
	case models.EventImbalance:
		return fmt.Sprintf("The resident's left/right grip balance is %.2f. Generate a gentle reminder to even out their stance.", event.Metrics.Balance)
	default:
		return "Generate a gentle posture check-in for the resident."
	}
}
