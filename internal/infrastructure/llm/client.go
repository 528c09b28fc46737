package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"AssessmentPipeline/internal/config"
	"AssessmentPipeline/internal/ports"
)

// JobClient implements ports.GenerativeService against an HTTP job API:
// POST {endpoint}/jobs submits, GET {endpoint}/jobs/{id} polls.
type JobClient struct {
	endpoint     string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.GenerativeService = (*JobClient)(nil)

// NewJobClient builds a client from configuration.
func NewJobClient(cfg config.GenAIConfig) *JobClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &JobClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type submitRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Messages    []message `json:"messages"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type pollResponse struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Usage  struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error string `json:"error"`
}

// SubmitJob queues a generation job and returns its identifier.
func (c *JobClient) SubmitJob(ctx context.Context, prompt string, cfg ports.ModelConfig) (string, error) {
	if c == nil || c.endpoint == "" {
		return "", eris.New("genai client misconfigured")
	}

	system := cfg.SystemPrompt
	if system == "" {
		system = c.systemPrompt
	}
	payload := submitRequest{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Messages: []message{
			{Role: "system", Content: safePrompt(system)},
			{Role: "user", Content: prompt},
		},
	}

	var resp submitResponse
	if err := c.do(ctx, "submit job", http.MethodPost, c.endpoint+"/jobs", payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// PollJob reports the job state. Unrecognized states are passed through so
// the caller can reject them.
func (c *JobClient) PollJob(ctx context.Context, jobID string) (ports.JobStatus, error) {
	if c == nil || c.endpoint == "" {
		return ports.JobStatus{}, eris.New("genai client misconfigured")
	}

	var resp pollResponse
	if err := c.do(ctx, "poll job", http.MethodGet, c.endpoint+"/jobs/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return ports.JobStatus{}, err
	}

	status := ports.JobStatus{
		State:      mapState(resp.Status),
		Payload:    outputBytes(resp.Output),
		TokensUsed: resp.Usage.TotalTokens,
		Error:      resp.Error,
	}
	return status, nil
}

func mapState(raw string) ports.JobState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "queued", "running", "in_progress":
		return ports.JobPending
	case "complete", "completed", "succeeded":
		return ports.JobComplete
	case "error", "failed":
		return ports.JobError
	}
	return ports.JobState(raw)
}

// outputBytes unwraps a JSON string output; structured output is kept as-is.
func outputBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return []byte(s)
	}
	return []byte(raw)
}

func (c *JobClient) do(ctx context.Context, op, method, target string, payload any, v any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return eris.Wrap(err, "marshal payload")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return eris.Wrap(err, "new request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ports.ServiceError{Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &ports.ServiceError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &ports.ServiceError{Op: op, Message: "decode response", Err: err}
	}
	return nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a business analyst. Answer with a single JSON object."
	}
	return prompt
}
