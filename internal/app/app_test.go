package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"AssessmentPipeline/internal/config"
	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/infrastructure/metrics"
)

// fakeGenAI completes each job on its second poll.
type fakeGenAI struct {
	mu    sync.Mutex
	next  int
	polls map[string]int
}

func (f *fakeGenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.polls == nil {
		f.polls = map[string]int{}
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/jobs":
		f.next++
		_ = json.NewEncoder(w).Encode(map[string]string{"id": fmt.Sprintf("job-%d", f.next)})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/jobs/"):
		id := strings.TrimPrefix(r.URL.Path, "/jobs/")
		f.polls[id]++
		if f.polls[id] < 2 {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "running"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "completed",
			"output": map[string]any{"summary": "analysis " + id, "strengths": []string{"clear plan"}},
			"usage":  map[string]int{"total_tokens": 7},
		})
	default:
		http.NotFound(w, r)
	}
}

func testConfig(t *testing.T, endpoint string) config.Config {
	t.Helper()
	for _, key := range []string{"GENAI_ENDPOINT", "GENAI_API_KEY", "GENAI_MODEL", "DATABASE_DRIVER", "DATABASE_DSN", "RENDER_WEBHOOK_URL", "LOG_LEVEL", "HTTP_ADDR"} {
		t.Setenv(key, "")
	}
	cfg, err := config.LoadFile("")
	require.NoError(t, err)
	cfg.GenAI.Endpoint = endpoint
	cfg.Poller.PollInterval = 5 * time.Millisecond
	cfg.Poller.MaxWait = 5 * time.Second
	cfg.Cache.PruneInterval = 0
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = filepath.Join(t.TempDir(), "phases.db")
	return cfg
}

func TestRunFilesEndToEnd(t *testing.T) {
	srv := httptest.NewServer(&fakeGenAI{})
	defer srv.Close()

	a, err := New(testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	path := filepath.Join(t.TempDir(), "acme.json")
	body := `{"company":"Acme","revenue":1200000,"answers":{"str_01":4,"str_02":"yes","sal_01":3,"sal_02":"40%"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	runs, err := a.RunFiles(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]

	assert.Equal(t, "acme", run.SubmissionID)
	assert.Equal(t, domain.StatusComplete, run.OverallStatus)

	analyze, ok := run.Phase(domain.PhaseAnalyze)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPartial, analyze.Status)
	assert.Equal(t, 2, analyze.Succeeded)
	assert.Equal(t, 10, analyze.Failed)
	assert.Equal(t, 14, analyze.TokensUsed)

	require.NotNil(t, run.Scores)
	_, ok = run.Scores.Chapter("GE")
	assert.True(t, ok)
	assert.Len(t, run.Scores.Chapters, 1)
	assert.Contains(t, run.Summaries, "GE")
	assert.Contains(t, run.Summaries, "executive")

	handler := a.Handler()
	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/api/v1/submissions/acme/phases")
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Phases []string `json:"phases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.ElementsMatch(t, []string{"normalize", "analyze", "synthesize", "run"}, listed.Phases)

	w = get("/api/v1/submissions/acme/phases/run")
	require.Equal(t, http.StatusOK, w.Code)
	var archived domain.PipelineRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &archived))
	assert.Equal(t, run.RunID, archived.RunID)

	assert.Equal(t, http.StatusNotFound, get("/api/v1/submissions/acme/phases/bogus").Code)

	w = get("/api/v1/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	var totals map[domain.PhaseName]metrics.PhaseTotals
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &totals))
	assert.Equal(t, 1, totals[domain.PhaseAnalyze].Runs)
	assert.Equal(t, 14, totals[domain.PhaseAnalyze].Tokens)
}

func TestNewRejectsUnknownChapterWeights(t *testing.T) {
	cfg := testConfig(t, "http://localhost:9")
	cfg.Database.Driver = config.DriverNone
	cfg.Pipeline.ChapterWeights = map[string]float64{"GE": 0.5, "ZZ": 0.5}

	_, err := New(cfg, zap.NewNop())
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, []string{"chapter weight for unknown chapter ZZ"}, verr.Problems)
}

func TestHandlerServesHealthWithoutStore(t *testing.T) {
	cfg := testConfig(t, "http://localhost:9")
	cfg.Database.Driver = config.DriverNone

	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
