// Package intake resolves submission readers by format name or file extension.
package intake

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"AssessmentPipeline/internal/domain"
)

// Reader decodes one questionnaire submission from a stream.
type Reader interface {
	Format() string
	Extensions() []string
	Read(ctx context.Context, r io.Reader) (domain.Submission, error)
}

// Registry keeps a mapping from formats and extensions to readers.
type Registry struct {
	readers map[string]Reader
	byExt   map[string]Reader
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{readers: map[string]Reader{}, byExt: map[string]Reader{}}
}

// Register adds or replaces a reader and claims its extensions.
func (r *Registry) Register(reader Reader) {
	if r.readers == nil {
		r.readers = map[string]Reader{}
		r.byExt = map[string]Reader{}
	}
	r.readers[strings.ToLower(reader.Format())] = reader
	for _, ext := range reader.Extensions() {
		r.byExt[strings.ToLower(ext)] = reader
	}
}

// Resolve returns a reader by format name.
func (r *Registry) Resolve(format string) (Reader, error) {
	if reader, ok := r.readers[strings.ToLower(format)]; ok {
		return reader, nil
	}
	return nil, eris.Errorf("submission format %s is not registered", format)
}

// ResolvePath picks a reader from the file extension.
func (r *Registry) ResolvePath(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if reader, ok := r.byExt[ext]; ok {
		return reader, nil
	}
	return nil, eris.Errorf("no submission reader for %q files", ext)
}

// Formats lists registered format names in sorted order.
func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.readers))
	for f := range r.readers {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}
