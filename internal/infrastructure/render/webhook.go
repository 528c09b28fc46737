package render

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/ports"
)

// WebhookSink posts finished run snapshots to the report renderer.
type WebhookSink struct {
	url    string
	client *http.Client
}

var _ ports.ReportSink = (*WebhookSink)(nil)

// NewWebhookSink posts to url with the given timeout (5s when unset).
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Publish sends the run as JSON. Any non-2xx response is an error.
func (w *WebhookSink) Publish(ctx context.Context, run domain.PipelineRun) error {
	if w.url == "" || w.client == nil {
		return eris.New("render webhook misconfigured")
	}

	body, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "marshal run")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Run-ID", run.RunID)

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Errorf("renderer error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}
