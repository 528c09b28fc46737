package domain

import (
	"math"
	"time"
)

// CategoryScore is the weighted mean of a category's normalized responses.
type CategoryScore struct {
	Code        string  `json:"code"`
	Chapter     string  `json:"chapter"`
	Score       float64 `json:"score"`
	Responses   int     `json:"responses"`
	TotalWeight float64 `json:"totalWeight"`
	Estimated   int     `json:"estimated"`
}

// Rounded returns the score rounded half away from zero.
func (c CategoryScore) Rounded() int {
	return int(math.Round(c.Score))
}

// ChapterScore is the unweighted mean of the chapter's contributing categories.
type ChapterScore struct {
	Code       string   `json:"code"`
	Score      float64  `json:"score"`
	Categories []string `json:"categories"`
	Excluded   []string `json:"excluded,omitempty"`
}

// Rounded returns the score rounded half away from zero.
func (c ChapterScore) Rounded() int {
	return int(math.Round(c.Score))
}

// ScoreSnapshot is an immutable result of one scoring pass.
type ScoreSnapshot struct {
	Categories map[string]CategoryScore `json:"categories"`
	Chapters   map[string]ChapterScore  `json:"chapters"`
	Overall    int                      `json:"overall"`
	HasData    bool                     `json:"hasData"`
	ComputedAt time.Time                `json:"computedAt"`
}

// Category looks up a category score; ok is false for categories without responses.
func (s ScoreSnapshot) Category(code string) (CategoryScore, bool) {
	c, ok := s.Categories[code]
	return c, ok
}

// Chapter looks up a chapter score; ok is false for chapters without data.
func (s ScoreSnapshot) Chapter(code string) (ChapterScore, bool) {
	c, ok := s.Chapters[code]
	return c, ok
}
