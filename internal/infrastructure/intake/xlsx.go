package intake

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/intake"
)

const (
	answersSheet = "answers"
	metaSheet    = "meta"
)

// XLSXReader reads a workbook whose "answers" sheet (or first sheet) holds
// rows of question_id | answer | estimate, and whose optional "meta" sheet
// holds key | value rows for id, company and revenue.
type XLSXReader struct{}

var _ intake.Reader = XLSXReader{}

func (XLSXReader) Format() string       { return "xlsx" }
func (XLSXReader) Extensions() []string { return []string{".xlsx"} }

func (XLSXReader) Read(_ context.Context, r io.Reader) (domain.Submission, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.Submission{}, eris.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheet := answersSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.Submission{}, eris.Wrapf(err, "read sheet %s", sheet)
	}

	sub := domain.Submission{Answers: map[string]any{}, Estimates: map[string]bool{}}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" || (i == 0 && strings.EqualFold(id, "question_id")) {
			continue
		}
		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			sub.Answers[id] = strings.TrimSpace(row[1])
		}
		if len(row) > 2 && isYes(row[2]) {
			sub.Estimates[id] = true
		}
	}

	if idx, err := f.GetSheetIndex(metaSheet); err == nil && idx >= 0 {
		meta, err := f.GetRows(metaSheet)
		if err != nil {
			return domain.Submission{}, eris.Wrap(err, "read meta sheet")
		}
		if err := applyMeta(&sub, meta); err != nil {
			return domain.Submission{}, err
		}
	}

	return finish(sub)
}

func applyMeta(sub *domain.Submission, rows [][]string) error {
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		value := strings.TrimSpace(row[1])
		switch strings.ToLower(strings.TrimSpace(row[0])) {
		case "id":
			sub.ID = value
		case "company":
			sub.Company = value
		case "revenue":
			if value == "" {
				continue
			}
			revenue, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
			if err != nil {
				return eris.Wrapf(err, "meta revenue %q", value)
			}
			sub.Revenue = &revenue
		}
	}
	return nil
}

func isYes(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1", "estimate":
		return true
	}
	return false
}
