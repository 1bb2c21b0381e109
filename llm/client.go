package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"lexcase-backend/resilience"
)

var (
	// ErrNotConfigured is returned immediately when no API key is set.
	// Stages treat it as a signal to run their degraded fallback.
	ErrNotConfigured = errors.New("llm not configured")

	// ErrUnavailable is returned when the completion API keeps failing
	// after the retry budget is exhausted. It fails the calling stage.
	ErrUnavailable = errors.New("llm unavailable")
)

const generationEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// errEmptyCompletion marks an OK response with no usable text; the model
// occasionally does this and a retry usually recovers it.
var errEmptyCompletion = errors.New("api returned empty completion")

// Completer is the single text-completion contract the pipeline stages use
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Configured() bool
}

// Config holds Gemini client settings
type Config struct {
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	RequestTimeout  time.Duration
}

// ConfigFromEnv builds the client configuration from environment variables.
// An empty GEMINI_API_KEY is a supported configuration: the client reports
// Configured() == false and every stage degrades to its mechanical fallback.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:          os.Getenv("GEMINI_API_KEY"),
		Model:           os.Getenv("GEMINI_MODEL"),
		Temperature:     0.2,
		MaxOutputTokens: 2048,
		RequestTimeout:  120 * time.Second,
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = t
		}
	}
	if v := os.Getenv("LLM_MAX_OUTPUT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxOutputTokens = n
		}
	}
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeout = time.Duration(n) * time.Second
		}
	}
	return cfg
}

// GeminiClient calls the Gemini generateContent REST API with retry and
// backoff for transient failures.
type GeminiClient struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

// NewGeminiClient creates a completion client. The executor supplies the
// retry and circuit-breaker policy.
func NewGeminiClient(cfg Config, executor *resilience.Executor, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	return &GeminiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		executor:   executor,
		logger:     logger,
	}
}

// Configured reports whether an API key is present
func (c *GeminiClient) Configured() bool {
	return c.cfg.APIKey != ""
}

// Complete sends the prompt and returns the raw completion text.
// Returns ErrNotConfigured without any network call when no key is set,
// and ErrUnavailable once transient failures exhaust the retry budget.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	if len(prompt) > maxPromptChars {
		c.logger.Warn("prompt too long, truncating", "chars", len(prompt), "limit", maxPromptChars)
		prompt = TruncateForPrompt(prompt, maxPromptChars)
	}

	var out string
	err := c.executor.Execute(ctx, "gemini.generate", func(ctx context.Context) error {
		text, err := c.generate(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	}, isTransient)

	if err != nil {
		if isPermanent(err) {
			return "", fmt.Errorf("gemini request rejected: %w", err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gemini api error: status %d: %s", e.status, e.body)
}

func isTransient(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == http.StatusTooManyRequests || ae.status >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, errEmptyCompletion)
}

func isPermanent(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == http.StatusBadRequest || ae.status == http.StatusUnauthorized ||
			ae.status == http.StatusForbidden
	}
	return false
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     c.cfg.Temperature,
			"maxOutputTokens": c.cfg.MaxOutputTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf(generationEndpoint, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("gemini api error", "status", resp.StatusCode, "body", truncate(string(bodyBytes), 500))
		return "", &apiError{status: resp.StatusCode, body: truncate(string(bodyBytes), 500)}
	}

	var apiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason,omitempty"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason,omitempty"`
		} `json:"promptFeedback,omitempty"`
	}

	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if apiResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", apiResp.PromptFeedback.BlockReason)
	}
	if len(apiResp.Candidates) == 0 {
		return "", fmt.Errorf("api returned no candidates")
	}

	var text strings.Builder
	for _, candidate := range apiResp.Candidates {
		if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
			c.logger.Warn("candidate finished abnormally", "reason", candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
	}

	result := text.String()
	if result == "" {
		return "", errEmptyCompletion
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
