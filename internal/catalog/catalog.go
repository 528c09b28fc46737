// Package catalog holds the static question → category → chapter mapping.
// A Catalog is built once, validated, and never mutated afterwards.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"AssessmentPipeline/internal/domain"
)

const (
	MinWeight = 0.5
	MaxWeight = 2.0
)

// Chapter is the top level of the taxonomy.
type Chapter struct {
	Code   string  `yaml:"code"`
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// Category groups questions inside a chapter.
type Category struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Chapter string `yaml:"chapter"`
}

// Question maps one questionnaire item to its category and scoring policy.
type Question struct {
	ID       string              `yaml:"id"`
	Category string              `yaml:"category"`
	Type     domain.ResponseType `yaml:"type"`
	Weight   float64             `yaml:"weight"`
	ScaleMax float64             `yaml:"scaleMax,omitempty"`
	Prompt   string              `yaml:"prompt"`
}

// Definition is the serialized form of a catalog.
type Definition struct {
	Chapters   []Chapter  `yaml:"chapters"`
	Categories []Category `yaml:"categories"`
	Questions  []Question `yaml:"questions"`
}

// Catalog is an immutable, validated question mapping.
type Catalog struct {
	chapters   []Chapter
	categories []Category
	questions  []Question

	chapterByCode  map[string]Chapter
	categoryByCode map[string]Category
	questionByID   map[string]Question
	byCategory     map[string][]Question
	byChapter      map[string][]string
}

// ConfigError lists every problem found while validating a catalog or a
// submission against it.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "catalog: " + strings.Join(e.Problems, "; ")
}

// New validates the definition and builds the lookup indexes. Question
// weights outside [MinWeight, MaxWeight] are clamped; non-positive weights
// are rejected.
func New(def Definition) (*Catalog, error) {
	c := &Catalog{
		chapterByCode:  map[string]Chapter{},
		categoryByCode: map[string]Category{},
		questionByID:   map[string]Question{},
		byCategory:     map[string][]Question{},
		byChapter:      map[string][]string{},
	}
	var problems []string

	for _, ch := range def.Chapters {
		if ch.Code == "" {
			problems = append(problems, "chapter with empty code")
			continue
		}
		if _, dup := c.chapterByCode[ch.Code]; dup {
			problems = append(problems, fmt.Sprintf("duplicate chapter %s", ch.Code))
			continue
		}
		if ch.Weight < 0 {
			problems = append(problems, fmt.Sprintf("chapter %s has negative weight", ch.Code))
		}
		c.chapterByCode[ch.Code] = ch
		c.chapters = append(c.chapters, ch)
	}

	for _, cat := range def.Categories {
		if cat.Code == "" {
			problems = append(problems, "category with empty code")
			continue
		}
		if _, dup := c.categoryByCode[cat.Code]; dup {
			problems = append(problems, fmt.Sprintf("duplicate category %s", cat.Code))
			continue
		}
		if _, ok := c.chapterByCode[cat.Chapter]; !ok {
			problems = append(problems, fmt.Sprintf("category %s references unknown chapter %q", cat.Code, cat.Chapter))
			continue
		}
		c.categoryByCode[cat.Code] = cat
		c.categories = append(c.categories, cat)
		c.byChapter[cat.Chapter] = append(c.byChapter[cat.Chapter], cat.Code)
	}

	for _, q := range def.Questions {
		if q.ID == "" {
			problems = append(problems, "question with empty id")
			continue
		}
		if _, dup := c.questionByID[q.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate question %s", q.ID))
			continue
		}
		if _, ok := c.categoryByCode[q.Category]; !ok {
			problems = append(problems, fmt.Sprintf("question %s references unknown category %q", q.ID, q.Category))
			continue
		}
		if !q.Type.Valid() {
			problems = append(problems, fmt.Sprintf("question %s has unknown response type %q", q.ID, q.Type))
			continue
		}
		if q.Weight <= 0 {
			problems = append(problems, fmt.Sprintf("question %s must have a positive weight", q.ID))
			continue
		}
		q.Weight = clampWeight(q.Weight)
		if q.Type == domain.ResponseOrdinal && q.ScaleMax == 0 {
			q.ScaleMax = 5
		}
		c.questionByID[q.ID] = q
		c.questions = append(c.questions, q)
		c.byCategory[q.Category] = append(c.byCategory[q.Category], q)
	}

	if len(c.chapters) == 0 {
		problems = append(problems, "no chapters defined")
	}
	for _, cat := range c.categories {
		if len(c.byCategory[cat.Code]) == 0 {
			problems = append(problems, fmt.Sprintf("category %s has no questions", cat.Code))
		}
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return c, nil
}

// Load reads a YAML catalog definition from path.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read catalog %s", path)
	}
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, eris.Wrapf(err, "parse catalog %s", path)
	}
	return New(def)
}

// ValidateAnswers rejects answer keys that do not map to a known question.
func (c *Catalog) ValidateAnswers(answers map[string]any) error {
	var unknown []string
	for id := range answers {
		if _, ok := c.questionByID[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	problems := make([]string, 0, len(unknown))
	for _, id := range unknown {
		problems = append(problems, fmt.Sprintf("answer for unknown question %q", id))
	}
	return &ConfigError{Problems: problems}
}

func (c *Catalog) Chapters() []Chapter {
	return append([]Chapter(nil), c.chapters...)
}

func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

func (c *Catalog) Questions() []Question {
	return append([]Question(nil), c.questions...)
}

func (c *Catalog) Question(id string) (Question, bool) {
	q, ok := c.questionByID[id]
	return q, ok
}

func (c *Catalog) Category(code string) (Category, bool) {
	cat, ok := c.categoryByCode[code]
	return cat, ok
}

func (c *Catalog) Chapter(code string) (Chapter, bool) {
	ch, ok := c.chapterByCode[code]
	return ch, ok
}

// QuestionsIn returns the questions of a category in definition order.
func (c *Catalog) QuestionsIn(category string) []Question {
	return append([]Question(nil), c.byCategory[category]...)
}

// CategoriesOf returns the category codes of a chapter in definition order.
func (c *Catalog) CategoriesOf(chapter string) []string {
	return append([]string(nil), c.byChapter[chapter]...)
}

// ChapterWeights returns the configured chapter weights keyed by code.
func (c *Catalog) ChapterWeights() map[string]float64 {
	weights := make(map[string]float64, len(c.chapters))
	for _, ch := range c.chapters {
		weights[ch.Code] = ch.Weight
	}
	return weights
}

func clampWeight(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}
