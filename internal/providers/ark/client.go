package ark

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// JobStatus is the normalized remote task status. The provider reports
// "queuing" and "running" while in flight; both map onto the non-terminal
// values here.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusSucceeded  JobStatus = "succeeded"
	StatusFailed     JobStatus = "failed"
)

// ContentItem is one element of a generation request payload: a text
// instruction, a reference image, or a source video.
type ContentItem struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *MediaURL `json:"image_url,omitempty"`
	VideoURL *MediaURL `json:"video_url,omitempty"`
}

// MediaURL wraps a media reference, either a public URL or a data URL.
type MediaURL struct {
	URL string `json:"url"`
}

// TextContent builds a text content item.
func TextContent(text string) ContentItem {
	return ContentItem{Type: "text", Text: text}
}

// ImageContent builds an image content item from a URL or data URL.
func ImageContent(url string) ContentItem {
	return ContentItem{Type: "image_url", ImageURL: &MediaURL{URL: url}}
}

// VideoContent builds a video content item from a URL or data URL.
func VideoContent(url string) ContentItem {
	return ContentItem{Type: "video_url", VideoURL: &MediaURL{URL: url}}
}

// DataURL inlines raw media bytes as a base64 data URL the provider accepts
// in place of a fetchable address.
func DataURL(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// SubmitRequest carries everything needed to open a generation job.
type SubmitRequest struct {
	Content   []ContentItem
	Ratio     string
	Duration  int
	Watermark bool
}

// JobResult is the provider-side view of a job at one poll.
type JobResult struct {
	Status   JobStatus
	VideoURL string
	Message  string
}

// API is the surface the lifecycle manager drives. It is a pure protocol
// binding: no retry or backoff logic lives behind it.
type API interface {
	SubmitJob(ctx context.Context, req SubmitRequest) (string, error)
	GetJob(ctx context.Context, jobID string) (*JobResult, error)
}

// TransportError marks failures to reach the provider (network errors and
// 5xx responses) as distinct from provider-side rejections, so callers can
// retry the former and surface the latter.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "ark: transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err stems from failing to reach the provider.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Options controls how the Ark client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client is a typed binding to the Ark content-generation task API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient constructs an Ark client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("ark: api key is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("ark: model endpoint is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      opts.Model,
		httpClient: client,
	}, nil
}

// Model returns the configured video model endpoint identifier.
func (c *Client) Model() string { return c.model }

type submitPayload struct {
	Model     string        `json:"model"`
	Content   []ContentItem `json:"content"`
	Ratio     string        `json:"ratio,omitempty"`
	Duration  int           `json:"duration,omitempty"`
	Watermark bool          `json:"watermark"`
}

type taskEnvelope struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Content struct {
		VideoURL string `json:"video_url"`
	} `json:"content"`
	Error *arkError `json:"error,omitempty"`
}

type arkError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type errorEnvelope struct {
	Error arkError `json:"error"`
}

// SubmitJob opens a generation job and returns the provider task id.
func (c *Client) SubmitJob(ctx context.Context, req SubmitRequest) (string, error) {
	payload := submitPayload{
		Model:     c.model,
		Content:   req.Content,
		Ratio:     req.Ratio,
		Duration:  req.Duration,
		Watermark: req.Watermark,
	}
	var out taskEnvelope
	if err := c.invoke(ctx, http.MethodPost, "/contents/generations/tasks", payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("ark: submit response missing task id")
	}
	return out.ID, nil
}

// GetJob fetches the current status of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobResult, error) {
	path := "/contents/generations/tasks/" + url.PathEscape(jobID)
	var out taskEnvelope
	if err := c.invoke(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	result := &JobResult{
		Status:   normalizeStatus(out.Status),
		VideoURL: out.Content.VideoURL,
	}
	if out.Error != nil {
		result.Message = out.Error.Message
	}
	return result, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ark: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ark: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &TransportError{Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("ark: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("ark: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ark: decode response: %w", err)
	}
	return nil
}

func normalizeStatus(s string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "queuing", "pending":
		return StatusQueued
	case "running", "processing":
		return StatusProcessing
	case "succeeded":
		return StatusSucceeded
	case "failed", "error", "cancelled":
		return StatusFailed
	default:
		return StatusProcessing
	}
}

var _ API = (*Client)(nil)
