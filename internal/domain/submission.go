package domain

import "time"

// Submission is a questionnaire payload keyed by question identifier.
type Submission struct {
	ID         string          `json:"id"`
	Company    string          `json:"company"`
	Revenue    *float64        `json:"revenue,omitempty"`
	Answers    map[string]any  `json:"answers"`
	Estimates  map[string]bool `json:"estimates,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// RevenueContext returns the revenue used as the currency normalization context.
func (s Submission) RevenueContext() (float64, bool) {
	if s.Revenue == nil || *s.Revenue <= 0 {
		return 0, false
	}
	return *s.Revenue, true
}

// AnalysisResult is the parsed form of one generated analysis artifact.
type AnalysisResult struct {
	Topic           string   `json:"topic"`
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths,omitempty"`
	Weaknesses      []string `json:"weaknesses,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}
