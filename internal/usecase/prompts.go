package usecase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"AssessmentPipeline/internal/catalog"
	"AssessmentPipeline/internal/domain"
)

const (
	kindCategoryAnalysis = "category-analysis"
	kindChapterSynthesis = "chapter-synthesis"
	kindExecutiveSummary = "executive-summary"

	// ExecutiveTopic keys the executive summary in PipelineRun.Summaries.
	ExecutiveTopic = "executive"
)

const responseFormat = `Respond with a single JSON object:
{"topic": string, "summary": string, "strengths": [string], "weaknesses": [string], "recommendations": [string]}`

type answerLine struct {
	QuestionID string  `json:"questionId"`
	Prompt     string  `json:"prompt"`
	Answer     string  `json:"answer"`
	Score      float64 `json:"score"`
	Estimate   bool    `json:"estimate,omitempty"`
	Missing    bool    `json:"missing,omitempty"`
}

// categoryInput is everything a category analysis depends on. Its hash is
// the fingerprint input, so two runs with identical answers share a result.
type categoryInput struct {
	Model    string       `json:"model"`
	Company  string       `json:"company"`
	Category string       `json:"category"`
	Name     string       `json:"name"`
	Chapter  string       `json:"chapter"`
	Score    float64      `json:"score"`
	Answers  []answerLine `json:"answers"`
}

type categoryDigest struct {
	Code    string  `json:"code"`
	Score   float64 `json:"score"`
	Summary string  `json:"summary,omitempty"`
}

type chapterInput struct {
	Model      string           `json:"model"`
	Company    string           `json:"company"`
	Chapter    string           `json:"chapter"`
	Name       string           `json:"name"`
	Score      float64          `json:"score"`
	Categories []categoryDigest `json:"categories"`
	Excluded   []string         `json:"excluded,omitempty"`
}

type chapterDigest struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

type executiveInput struct {
	Model      string           `json:"model"`
	Company    string           `json:"company"`
	Overall    int              `json:"overall"`
	Chapters   []chapterDigest  `json:"chapters"`
	Highlights []categoryDigest `json:"highlights"`
	Missing    []string         `json:"missing,omitempty"`
}

func buildCategoryInput(model, company string, cat *catalog.Catalog, category catalog.Category, score float64, responses []domain.NormalizedResponse) categoryInput {
	in := categoryInput{
		Model:    model,
		Company:  company,
		Category: category.Code,
		Name:     category.Name,
		Chapter:  category.Chapter,
		Score:    round2(score),
	}
	for _, r := range responses {
		line := answerLine{
			QuestionID: r.QuestionID,
			Answer:     describeRaw(r.RawValue),
			Score:      round2(r.NormalizedScore),
			Estimate:   r.IsEstimate,
			Missing:    r.Missing,
		}
		if q, ok := cat.Question(r.QuestionID); ok {
			line.Prompt = q.Prompt
		}
		in.Answers = append(in.Answers, line)
	}
	sort.Slice(in.Answers, func(i, j int) bool { return in.Answers[i].QuestionID < in.Answers[j].QuestionID })
	return in
}

func (in categoryInput) prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess the %q category (%s) of %s.\n", in.Name, in.Category, companyName(in.Company))
	fmt.Fprintf(&b, "Category score: %.0f/100.\n\nAnswers:\n", in.Score)
	for _, a := range in.Answers {
		label := a.Prompt
		if label == "" {
			label = a.QuestionID
		}
		flag := ""
		switch {
		case a.Missing:
			flag = " (unanswered)"
		case a.Estimate:
			flag = " (estimate)"
		}
		fmt.Fprintf(&b, "- %s: %s -> %.0f%s\n", label, a.Answer, a.Score, flag)
	}
	b.WriteString("\n")
	b.WriteString(responseFormat)
	return b.String()
}

func (in chapterInput) prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the %q chapter summary (%s) for %s.\n", in.Name, in.Chapter, companyName(in.Company))
	fmt.Fprintf(&b, "Chapter score: %.0f/100.\n\nCategory findings:\n", in.Score)
	for _, c := range in.Categories {
		summary := c.Summary
		if summary == "" {
			summary = "no analysis available"
		}
		fmt.Fprintf(&b, "- %s (%.0f): %s\n", c.Code, c.Score, summary)
	}
	if len(in.Excluded) > 0 {
		fmt.Fprintf(&b, "Not assessed: %s\n", strings.Join(in.Excluded, ", "))
	}
	b.WriteString("\n")
	b.WriteString(responseFormat)
	return b.String()
}

func (in executiveInput) prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an executive summary of the business assessment for %s.\n", companyName(in.Company))
	fmt.Fprintf(&b, "Overall score: %d/100.\n\nChapters:\n", in.Overall)
	for _, c := range in.Chapters {
		fmt.Fprintf(&b, "- %s %s: %.0f (weight %.2f)\n", c.Code, c.Name, c.Score, c.Weight)
	}
	if len(in.Highlights) > 0 {
		b.WriteString("\nCategory findings:\n")
		for _, h := range in.Highlights {
			fmt.Fprintf(&b, "- %s (%.0f): %s\n", h.Code, h.Score, h.Summary)
		}
	}
	if len(in.Missing) > 0 {
		fmt.Fprintf(&b, "\nNo data for: %s\n", strings.Join(in.Missing, ", "))
	}
	b.WriteString("\n")
	b.WriteString(responseFormat)
	return b.String()
}

func describeRaw(v domain.RawValue) string {
	switch v.Kind {
	case domain.ValueNumeric:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case domain.ValuePercentage:
		return strconv.FormatFloat(v.Number, 'f', -1, 64) + "%"
	case domain.ValueBoolean:
		if v.Bool {
			return "yes"
		}
		return "no"
	case domain.ValueText:
		return v.Text
	case domain.ValueMulti:
		return strings.Join(v.Items, ", ")
	}
	return "n/a"
}

func companyName(company string) string {
	if company == "" {
		return "the company"
	}
	return company
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
