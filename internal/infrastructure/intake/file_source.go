package intake

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/intake"
)

// FileSource loads submissions from files using registered readers.
type FileSource struct {
	registry *intake.Registry
	logger   *zap.Logger
}

// NewFileSource wires the reader registry.
func NewFileSource(reg *intake.Registry, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{registry: reg, logger: logger}
}

// NewDefaultRegistry registers the JSON and XLSX readers.
func NewDefaultRegistry() *intake.Registry {
	reg := intake.NewRegistry()
	reg.Register(JSONReader{})
	reg.Register(XLSXReader{})
	return reg
}

// Load reads each path in order. A submission without an id takes the file
// name without extension.
func (s *FileSource) Load(ctx context.Context, paths ...string) ([]domain.Submission, error) {
	if s.registry == nil {
		return nil, eris.New("reader registry is not configured")
	}

	submissions := make([]domain.Submission, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sub, err := s.loadOne(ctx, path)
		if err != nil {
			return nil, eris.Wrapf(err, "load %s", path)
		}
		s.logger.Debug("intake: submission loaded",
			zap.String("path", path),
			zap.String("submission_id", sub.ID),
			zap.Int("answers", len(sub.Answers)))
		submissions = append(submissions, sub)
	}
	return submissions, nil
}

func (s *FileSource) loadOne(ctx context.Context, path string) (domain.Submission, error) {
	reader, err := s.registry.ResolvePath(path)
	if err != nil {
		return domain.Submission{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Submission{}, eris.Wrap(err, "open")
	}
	defer f.Close()

	sub, err := reader.Read(ctx, f)
	if err != nil {
		return domain.Submission{}, err
	}
	if sub.ID == "" {
		sub.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if sub.ReceivedAt.IsZero() {
		if info, err := f.Stat(); err == nil {
			sub.ReceivedAt = info.ModTime().UTC()
		}
	}
	return sub, nil
}
