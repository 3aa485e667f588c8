// Package generation is the boundary to the external text-generation provider.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/planix/backend/internal/compliance"
	"github.com/planix/backend/internal/domain"
	"github.com/sethvargo/go-retry"
)

// PlaceholderKey is the sample credential shipped in .env templates. It is
// treated the same as no credential at all.
const PlaceholderKey = "your-deepseek-api-key-here"

// ErrGenerationFailed is returned in Strict mode when the provider call fails.
var ErrGenerationFailed = errors.New("floor plan generation failed")

// Policy decides what happens when the provider fails.
type Policy int

const (
	// Strict propagates ErrGenerationFailed.
	Strict Policy = iota
	// Fallback returns the canned plan instead.
	Fallback
)

// Config holds provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retries int
	// RetryBase is the first backoff delay. Defaults to 500ms.
	RetryBase time.Duration
}

// Gateway calls a DeepSeek-compatible chat completions API.
type Gateway struct {
	cfg       Config
	client    *http.Client
	evaluator *compliance.Evaluator
	logger    *slog.Logger
}

// NewGateway creates a Gateway. Compliance reports are produced by evaluator.
func NewGateway(cfg Config, evaluator *compliance.Evaluator, logger *slog.Logger) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		evaluator: evaluator,
		logger:    logger,
	}
}

// Configured reports whether a real provider credential is set.
func (g *Gateway) Configured() bool {
	key := strings.TrimSpace(g.cfg.APIKey)
	return key != "" && key != PlaceholderKey
}

// ComplianceMode returns the evaluator's mode.
func (g *Gateway) ComplianceMode() compliance.Mode {
	return g.evaluator.Mode()
}

// Generate produces an architectural description for spec. Without a
// configured credential it returns the canned plan and never errors.
func (g *Gateway) Generate(ctx context.Context, spec domain.PlanSpec, policy Policy) (string, error) {
	if !g.Configured() {
		return CannedPlan(spec), nil
	}

	text, err := g.complete(ctx, chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: architectSystemPrompt},
			{Role: "user", Content: planPrompt(spec)},
		},
		MaxTokens:   3000,
		Temperature: 0.7,
	})
	if err != nil {
		if policy == Fallback {
			g.logger.Warn("generation provider failed, using canned plan", "error", err)
			return CannedPlan(spec), nil
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return text, nil
}

// CheckCompliance returns a compliance report for a generated plan. In
// offline mode, or without a credential, the canonical report is returned.
// Provider failures yield the failure report.
func (g *Gateway) CheckCompliance(ctx context.Context, text string, spec domain.PlanSpec) domain.ComplianceReport {
	if g.evaluator.Mode() == compliance.ModeOffline || !g.Configured() {
		return compliance.Offline()
	}

	review, err := g.complete(ctx, chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: inspectorSystemPrompt},
			{Role: "user", Content: compliancePrompt(text, spec)},
		},
		MaxTokens:   2000,
		Temperature: 0.3,
	})
	if err != nil {
		g.logger.Warn("compliance review failed", "error", err)
		return compliance.Failure()
	}
	return g.evaluator.Evaluate(review, spec)
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

// complete performs one chat completion, retrying transport errors, 429 and 5xx.
func (g *Gateway) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	backoff := retry.WithMaxRetries(uint64(g.cfg.Retries), retry.NewExponential(g.cfg.RetryBase))

	var text string
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		t, err := g.post(ctx, body)
		if err != nil {
			g.logger.Debug("provider call failed", "attempt", attempt, "error", err)
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *Gateway) post(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("provider request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("failed to read provider response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("provider returned status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", retry.RetryableError(err)
		}
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("malformed provider response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("provider returned no content")
	}
	return out.Choices[0].Message.Content, nil
}
