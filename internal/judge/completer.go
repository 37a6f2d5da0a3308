package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/screener/internal/reliability"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultAnthropicModel   = "claude-sonnet-4-20250514"
	anthropicVersion        = "2023-06-01"
	defaultMaxTokens        = 1024
	retryBase               = 250 * time.Millisecond
	retryCap                = 4 * time.Second
)

// ErrUnavailable means the model backend could not be reached after retries.
var ErrUnavailable = errors.New("judge backend unavailable")

// Completer sends one prompt to a language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	client     *http.Client
}

func NewAnthropicClient(apiKey, model, baseURL string, timeout time.Duration, maxRetries int) *AnthropicClient {
	if strings.TrimSpace(model) == "" {
		model = DefaultAnthropicModel
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AnthropicClient{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(anthropicRequest{
		Model:       c.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	body, err := postWithRetry(ctx, c.client, c.maxRetries, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var res anthropicResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	var out strings.Builder
	for _, block := range res.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// HTTPClient forwards prompts to a generic completion endpoint. It posts
// {"prompt": "..."} and accepts either a JSON object with a text-like field or
// a plain text body.
type HTTPClient struct {
	url        string
	maxRetries int
	client     *http.Client
}

func NewHTTPClient(url string, timeout time.Duration, maxRetries int) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		url:        strings.TrimSpace(url),
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	body, err := postWithRetry(ctx, c.client, c.maxRetries, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return strings.TrimSpace(string(body)), nil
	}
	return strings.TrimSpace(extractText(obj)), nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "output", "completion", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// postWithRetry executes the request built by newReq, retrying transport
// errors and retryable statuses. Exhausted retries wrap ErrUnavailable.
func postWithRetry(
	ctx context.Context,
	client *http.Client,
	maxRetries int,
	newReq func(context.Context) (*http.Request, error),
) ([]byte, error) {
	var body []byte
	err := reliability.Retry(ctx, maxRetries, retryBase, retryCap, func(int) error {
		req, err := newReq(ctx)
		if err != nil {
			return &reliability.Permanent{Err: fmt.Errorf("create request: %w", err)}
		}
		res, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return &reliability.Permanent{Err: ctx.Err()}
			}
			return fmt.Errorf("send request: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode < 200 || res.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
			statusErr := fmt.Errorf("judge http status %d: %s", res.StatusCode, strings.TrimSpace(string(snippet)))
			if reliability.IsRetryableHTTPStatus(res.StatusCode) {
				return statusErr
			}
			return &reliability.Permanent{Err: statusErr}
		}
		b, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		body = b
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, nil
}
