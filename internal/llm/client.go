// Package llm adapts the OpenAI chat completions API for the
// inspection agents: one shared transport with budget gating, retry
// handling, and usage accounting.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/InonELGABSI/houseScanner/internal/config"
	"github.com/InonELGABSI/houseScanner/internal/governor"
	"github.com/InonELGABSI/houseScanner/internal/usage"
)

// The request encoder drops a zero temperature, so the smallest
// encodable value stands in for the deterministic setting.
const deterministicTemperature = math.SmallestNonzeroFloat32

var backoffBase = time.Second // shortened in tests

// Client is shared by all agents and is safe for concurrent use. Per
// request state lives in the usage.Tracker passed to each call.
type Client struct {
	api    *openai.Client
	gov    *governor.Governor
	cfg    config.OpenAIConfig
	logger *zap.Logger
}

// NewClient builds the shared inference client.
func NewClient(cfg config.OpenAIConfig, gov *governor.Governor, logger *zap.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 6
	}
	if cfg.EmptyRetries < 0 {
		cfg.EmptyRetries = 0
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		gov:    gov,
		cfg:    cfg,
		logger: logger,
	}
}

// VisionModel reports the configured vision model name.
func (c *Client) VisionModel() string { return c.cfg.VisionModel }

// TextModel reports the configured text model name.
func (c *Client) TextModel() string { return c.cfg.TextModel }

// completeJSON sends one JSON-mode completion with the prompt as a
// single text part followed by the images, and returns the trimmed
// response content. The governor slot is held across retries. An empty
// completion after the configured extra attempts returns "" with a nil
// error so callers can fall back to defaults.
func (c *Client) completeJSON(ctx context.Context, tracker *usage.Tracker, model, label, prompt string, images [][]byte) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(img),
				Detail: openai.ImageURLDetailLow,
			},
		})
	}

	estimate := governor.EstimateTokens(len(images), len(prompt))
	if err := c.gov.Acquire(ctx, estimate, label); err != nil {
		return "", err
	}
	defer c.gov.Release()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: deterministicTemperature,
	}

	emptyLeft := c.cfg.EmptyRetries
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			if !retryable(err) {
				return "", fmt.Errorf("%s: %w", label, err)
			}
			lastErr = err
			c.logger.Warn("inference call failed, retrying",
				zap.String("label", label),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if err := sleepBackoff(ctx, attempt); err != nil {
				return "", err
			}
			continue
		}

		tracker.RecordUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, model, label)

		var content string
		if len(resp.Choices) > 0 {
			content = strings.TrimSpace(resp.Choices[0].Message.Content)
		}
		if content == "" && emptyLeft > 0 {
			emptyLeft--
			c.logger.Warn("empty completion, retrying", zap.String("label", label))
			continue
		}
		return content, nil
	}

	if lastErr == nil {
		lastErr = errors.New("empty completions")
	}
	return "", fmt.Errorf("%s: retries exhausted: %w", label, lastErr)
}

// retryable reports whether an API failure is worth another attempt.
// Rate limits, timeouts, server errors, and transport failures are;
// cancellation and the remaining client errors are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(status int) bool {
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return true
	}
	return status >= 500 && status <= 599
}

// sleepBackoff waits 1<<(attempt-1) seconds, honoring cancellation.
func sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(1<<uint(attempt-1)) * backoffBase)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func dataURL(img []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)
}
