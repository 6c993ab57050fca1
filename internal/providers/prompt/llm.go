package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const llmDefaultTimeout = 20 * time.Second

// LLMOptions controls how the chat-completion enhancer is configured.
type LLMOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Style      string
	Timeout    time.Duration
	HTTPClient *http.Client
	OnFallback func(reason string, err error)
}

// LLMEnhancer rewrites prompts via an OpenAI-compatible chat completion
// endpoint. Every failure path falls back to the original prompt; callers
// can never observe an enhancer failure as their own.
type LLMEnhancer struct {
	apiKey     string
	baseURL    string
	model      string
	system     string
	timeout    time.Duration
	client     *http.Client
	onFallback func(reason string, err error)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewLLMEnhancer constructs an enhancer bound to the given model endpoint.
func NewLLMEnhancer(opts LLMOptions) (*LLMEnhancer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("prompt: api key is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("prompt: model endpoint is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("prompt: base url is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = llmDefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &LLMEnhancer{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      opts.Model,
		system:     buildSystemPrompt(opts.Style),
		timeout:    timeout,
		client:     client,
		onFallback: opts.OnFallback,
	}, nil
}

// Enhance rewrites the prompt, returning the original on any failure.
func (e *LLMEnhancer) Enhance(ctx context.Context, prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		return prompt
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload := chatRequest{
		Model:       e.model,
		Temperature: 0.7,
		MaxTokens:   200,
		Messages: []chatMessage{
			{Role: "system", Content: e.system},
			{Role: "user", Content: buildUserPrompt(prompt)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return e.fallback(prompt, "encode_request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", &buf)
	if err != nil {
		return e.fallback(prompt, "build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return e.fallback(prompt, "http_request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return e.fallback(prompt, fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("llm status %d", resp.StatusCode))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return e.fallback(prompt, "decode_response", err)
	}
	if len(out.Choices) == 0 {
		return e.fallback(prompt, "empty_choices", errors.New("no choices"))
	}
	enhanced := trimQuotes(out.Choices[0].Message.Content)
	if enhanced == "" {
		return e.fallback(prompt, "empty_response", errors.New("empty response"))
	}
	return enhanced
}

func (e *LLMEnhancer) fallback(prompt, reason string, err error) string {
	if e.onFallback != nil {
		e.onFallback(reason, err)
	}
	return prompt
}

func buildUserPrompt(prompt string) string {
	var b strings.Builder
	b.WriteString("Transform this into a video generation prompt:\n\n")
	b.WriteString(`"`)
	b.WriteString(prompt)
	b.WriteString(`"`)
	b.WriteString("\n\nFocus on visual details, camera work, and motion. Output only the enhanced prompt.")
	return b.String()
}

var _ Enhancer = (*LLMEnhancer)(nil)
