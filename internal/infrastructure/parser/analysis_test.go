package parser

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseJSONFlattensHTMLFragments(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
	  "summary": "<p>Cash position is <b>solid</b>,\n  margins are thin.</p>",
	  "strengths": ["<li>Low debt</li>", "  "],
	  "weaknesses": ["Thin margins"],
	  "recommendations": ["Review <em>pricing</em>"]
	}`)

	result, err := NewAnalysisParser().Parse("FIN", payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Topic != "FIN" {
		t.Fatalf("unexpected topic: %s", result.Topic)
	}
	if result.Summary != "Cash position is solid, margins are thin." {
		t.Fatalf("unexpected summary: %q", result.Summary)
	}
	if !reflect.DeepEqual(result.Strengths, []string{"Low debt"}) {
		t.Fatalf("unexpected strengths: %v", result.Strengths)
	}
	if !reflect.DeepEqual(result.Recommendations, []string{"Review pricing"}) {
		t.Fatalf("unexpected recommendations: %v", result.Recommendations)
	}
}

func TestParseCodeFencedJSON(t *testing.T) {
	t.Parallel()

	payload := []byte("```json\n{\"topic\":\"GE\",\"executive_summary\":\"Growth is steady.\"}\n```")
	result, err := NewAnalysisParser().Parse("fallback", payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Topic != "GE" || result.Summary != "Growth is steady." {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestParseHTMLDocument(t *testing.T) {
	t.Parallel()

	html := `
	<html><body>
	  <h1>Operations</h1>
	  <p>Processes are documented.</p>
	  <p>KPIs are reviewed monthly.</p>
	  <h2>Strengths</h2>
	  <ul><li>Standard work</li><li>Clear ownership</li></ul>
	  <h2>Weaknesses</h2>
	  <ul><li>Manual reporting</li></ul>
	  <h2>Recommendations</h2>
	  <ol><li>Automate the weekly report</li></ol>
	</body></html>`

	result, err := NewAnalysisParser().Parse("OPS", []byte(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Topic != "Operations" {
		t.Fatalf("unexpected topic: %s", result.Topic)
	}
	if result.Summary != "Processes are documented. KPIs are reviewed monthly." {
		t.Fatalf("unexpected summary: %q", result.Summary)
	}
	if !reflect.DeepEqual(result.Strengths, []string{"Standard work", "Clear ownership"}) {
		t.Fatalf("unexpected strengths: %v", result.Strengths)
	}
	if !reflect.DeepEqual(result.Weaknesses, []string{"Manual reporting"}) {
		t.Fatalf("unexpected weaknesses: %v", result.Weaknesses)
	}
	if !reflect.DeepEqual(result.Recommendations, []string{"Automate the weekly report"}) {
		t.Fatalf("unexpected recommendations: %v", result.Recommendations)
	}
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":         "   ",
		"plain text":    "sorry, I cannot help with that",
		"broken json":   `{"summary": `,
		"no summary":    `{"strengths": ["x"]}`,
		"empty html":    `<div></div>`,
		"fenced broken": "```\n{nope\n```",
	}
	for name, payload := range cases {
		_, err := NewAnalysisParser().Parse("X", []byte(payload))
		if !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("%s: expected ErrMalformedPayload, got %v", name, err)
		}
	}
}
