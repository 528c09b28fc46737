package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"AssessmentPipeline/internal/domain"
)

func TestPublishPostsRunSnapshot(t *testing.T) {
	var got domain.PipelineRun
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Run-ID") != "run-1" {
			t.Fatalf("missing run id header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, 0)
	run := domain.PipelineRun{RunID: "run-1", SubmissionID: "sub-1", OverallStatus: domain.StatusPartial}
	if err := sink.Publish(context.Background(), run); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.SubmissionID != "sub-1" || got.OverallStatus != domain.StatusPartial {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestPublishReportsRendererErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "template missing", http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := NewWebhookSink(server.URL, 0).Publish(context.Background(), domain.PipelineRun{}); err == nil {
		t.Fatal("expected error on 500")
	}
	if err := NewWebhookSink("", 0).Publish(context.Background(), domain.PipelineRun{}); err == nil {
		t.Fatal("expected error without url")
	}
}
