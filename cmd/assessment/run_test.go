package main

import (
	"strings"
	"testing"
	"time"

	"AssessmentPipeline/internal/domain"
)

func TestRenderRun(t *testing.T) {
	run := &domain.PipelineRun{
		RunID:         "run-7",
		SubmissionID:  "acme",
		Company:       "Acme",
		OverallStatus: domain.StatusComplete,
		Scores: &domain.ScoreSnapshot{
			Overall: 64,
			Chapters: map[string]domain.ChapterScore{
				"RS": {Code: "RS", Score: 58.4, Excluded: []string{"CMP"}},
				"GE": {Code: "GE", Score: 71.2},
			},
		},
		Phases: []domain.PhaseRecord{
			{Name: domain.PhaseAnalyze, Status: domain.StatusPartial, Succeeded: 11, Failed: 1, Attempts: 1,
				Tasks: []domain.AnalysisTask{{Topic: "CMP", Status: domain.TaskFailed, ErrorKind: domain.ErrorInsufficientData}}},
		},
		Metrics: domain.RunMetrics{TokensTotal: 420, Duration: 1500 * time.Millisecond},
		Summary: "Solid growth engine.",
	}

	out := renderRun(run)
	for _, want := range []string{"Acme (acme)", "run-7", "64/100", "no data: CMP", "11 ok, 1 failed", "InsufficientData", "Solid growth engine."} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered run missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "GE") > strings.Index(out, "RS") {
		t.Errorf("chapters not sorted:\n%s", out)
	}
}
