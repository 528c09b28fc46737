package intake

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/intake"
)

// JSONReader decodes {"id", "company", "revenue", "answers": {...}, "estimates": {...}}.
type JSONReader struct{}

var _ intake.Reader = JSONReader{}

func (JSONReader) Format() string       { return "json" }
func (JSONReader) Extensions() []string { return []string{".json"} }

func (JSONReader) Read(_ context.Context, r io.Reader) (domain.Submission, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var sub domain.Submission
	if err := dec.Decode(&sub); err != nil {
		return domain.Submission{}, eris.Wrap(err, "decode json submission")
	}
	return finish(sub)
}

// finish applies the checks shared by every reader.
func finish(sub domain.Submission) (domain.Submission, error) {
	sub.ID = strings.TrimSpace(sub.ID)
	sub.Company = strings.TrimSpace(sub.Company)
	if len(sub.Answers) == 0 {
		return domain.Submission{}, eris.New("submission has no answers")
	}
	return sub, nil
}
