package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/ports"
)

// ErrMalformedPayload marks a generated payload that cannot be turned into
// an analysis. Retrying the same job will not fix it.
var ErrMalformedPayload = errors.New("malformed analysis payload")

var (
	fenceExpr = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	spaceExpr = regexp.MustCompile(`\s+`)
)

// AnalysisParser accepts JSON analyses (fields may carry HTML fragments) or
// HTML documents with Strengths/Weaknesses/Recommendations sections.
type AnalysisParser struct{}

var _ ports.AnalysisParser = (*AnalysisParser)(nil)

func NewAnalysisParser() *AnalysisParser {
	return &AnalysisParser{}
}

type analysisPayload struct {
	Topic            string   `json:"topic"`
	Summary          string   `json:"summary"`
	ExecutiveSummary string   `json:"executive_summary"`
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
	Recommendations  []string `json:"recommendations"`
}

// Parse converts payload into an AnalysisResult for topic.
func (p *AnalysisParser) Parse(topic string, payload []byte) (domain.AnalysisResult, error) {
	body := bytes.TrimSpace(payload)
	if m := fenceExpr.FindSubmatch(body); m != nil {
		body = bytes.TrimSpace(m[1])
	}
	if len(body) == 0 {
		return domain.AnalysisResult{}, eris.Wrap(ErrMalformedPayload, "empty payload")
	}

	var (
		result domain.AnalysisResult
		err    error
	)
	switch body[0] {
	case '{':
		result, err = parseJSON(body)
	case '<':
		result, err = parseHTML(body)
	default:
		return domain.AnalysisResult{}, eris.Wrapf(ErrMalformedPayload, "unexpected payload prefix %q", body[0])
	}
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	if result.Summary == "" {
		return domain.AnalysisResult{}, eris.Wrap(ErrMalformedPayload, "summary is missing")
	}
	if result.Topic == "" {
		result.Topic = topic
	}
	return result, nil
}

func parseJSON(body []byte) (domain.AnalysisResult, error) {
	var raw analysisPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.AnalysisResult{}, eris.Wrapf(ErrMalformedPayload, "decode json: %v", err)
	}
	summary := raw.Summary
	if summary == "" {
		summary = raw.ExecutiveSummary
	}
	return domain.AnalysisResult{
		Topic:           strings.TrimSpace(raw.Topic),
		Summary:         flatten(summary),
		Strengths:       flattenAll(raw.Strengths),
		Weaknesses:      flattenAll(raw.Weaknesses),
		Recommendations: flattenAll(raw.Recommendations),
	}, nil
}

func parseHTML(body []byte) (domain.AnalysisResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.AnalysisResult{}, eris.Wrapf(ErrMalformedPayload, "parse html: %v", err)
	}

	var result domain.AnalysisResult
	result.Topic = collapse(doc.Find("h1").First().Text())

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	result.Summary = strings.Join(paragraphs, " ")

	doc.Find("h2, h3").Each(func(_ int, heading *goquery.Selection) {
		items := listItems(heading.NextFilteredUntil("ul, ol", "h2, h3").First())
		switch strings.ToLower(collapse(heading.Text())) {
		case "strengths":
			result.Strengths = items
		case "weaknesses", "risks":
			result.Weaknesses = items
		case "recommendations", "next steps":
			result.Recommendations = items
		}
	})
	return result, nil
}

func listItems(list *goquery.Selection) []string {
	var items []string
	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		if text := collapse(li.Text()); text != "" {
			items = append(items, text)
		}
	})
	return items
}

// flatten strips HTML markup from a fragment, keeping its text.
func flatten(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}

func flattenAll(fragments []string) []string {
	var out []string
	for _, f := range fragments {
		if text := flatten(f); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func collapse(s string) string {
	return strings.TrimSpace(spaceExpr.ReplaceAllString(s, " "))
}
