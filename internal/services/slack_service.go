package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"trendscope-pipeline/internal/config"
	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
)

// SlackService posts messages through the Slack Web API and delivers
// payloads to response URLs.
type SlackService struct {
	config config.SlackConfig
	client *http.Client
	logger *logger.Logger
}

type PostMessageResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error"`
}

func NewSlackService(cfg config.SlackConfig, log *logger.Logger) (*SlackService, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("Slack bot token required")
	}

	return &SlackService{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}, nil
}

// PostMessage sends blocks to a channel via chat.postMessage. A non-empty
// threadTS threads the message under an earlier post. Link unfurling is
// off so report links stay compact.
func (s *SlackService) PostMessage(ctx context.Context, channelID string, blocks []Block, fallbackText, threadTS string) (*PostMessageResponse, error) {
	startTime := time.Now()

	body := map[string]any{
		"channel":      channelID,
		"blocks":       blocks,
		"text":         fallbackText,
		"unfurl_links": false,
		"unfurl_media": false,
	}
	if threadTS != "" {
		body["thread_ts"] = threadTS
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, models.NewInternalError("SLACK_ENCODE_FAILED", "failed to encode Slack message").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/chat.postMessage", bytes.NewReader(encoded))
	if err != nil {
		return nil, models.NewInternalError("SLACK_REQUEST_FAILED", "failed to build Slack request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("Authorization", "Bearer "+s.config.BotToken)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.LogService("slack", "post_message", time.Since(startTime), map[string]any{
			"channel": channelID,
		}, err)
		return nil, models.WrapExternalError("SLACK", err)
	}
	defer resp.Body.Close()

	var decoded PostMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, models.WrapExternalError("SLACK", fmt.Errorf("decode chat.postMessage response: %w", err))
	}

	if !decoded.OK {
		err := fmt.Errorf("chat.postMessage failed: %s", decoded.Error)
		s.logger.LogService("slack", "post_message", time.Since(startTime), map[string]any{
			"channel":   channelID,
			"slack_err": decoded.Error,
		}, err)
		return &decoded, models.WrapExternalError("SLACK", err)
	}

	s.logger.LogService("slack", "post_message", time.Since(startTime), map[string]any{
		"channel":  channelID,
		"threaded": threadTS != "",
		"ts":       decoded.TS,
	}, nil)

	return &decoded, nil
}

// SendCallback POSTs a payload to a Slack response URL. Delivery counts
// as successful only when Slack answers 200 with a readable body; there
// is no retry, response URLs are short-lived.
func (s *SlackService) SendCallback(ctx context.Context, callbackURL string, payload any) error {
	startTime := time.Now()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return models.NewInternalError("SLACK_ENCODE_FAILED", "failed to encode callback payload").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(encoded))
	if err != nil {
		return models.NewInternalError("SLACK_REQUEST_FAILED", "failed to build callback request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.LogService("slack", "send_callback", time.Since(startTime), nil, err)
		return models.WrapExternalError("SLACK", err)
	}
	defer resp.Body.Close()

	if _, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err != nil {
		return models.WrapExternalError("SLACK", fmt.Errorf("read callback response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("callback returned status %d", resp.StatusCode)
		s.logger.LogService("slack", "send_callback", time.Since(startTime), nil, err)
		return models.WrapExternalError("SLACK", err)
	}

	s.logger.LogService("slack", "send_callback", time.Since(startTime), nil, nil)
	return nil
}
