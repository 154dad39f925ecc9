package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/silverrag/internal/core"
)

// Part is one output file of a split. Pages are 1-based and inclusive.
type Part struct {
	Index     int
	Name      string
	Path      string
	FirstPage int
	LastPage  int
}

func (p Part) Pages() int { return p.LastPage - p.FirstPage + 1 }

// SplitSession owns the scratch directory of one split. Cleanup removes it.
type SplitSession struct {
	Dir      string
	Original string
	Parts    []Part
}

// Cleanup deletes the session directory. Errors are logged, never returned.
func (s *SplitSession) Cleanup() {
	if s == nil || s.Dir == "" {
		return
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		log.Warn().Err(err).Str("dir", s.Dir).Msg("split cleanup failed")
	}
}

// Splitter cuts PDFs into parts of at most MaxPages pages and, where a single
// page allows it, at most MaxBytes bytes.
type Splitter struct {
	MaxPages int
	MaxBytes int64
	TempDir  string

	pages pageSource
}

func NewSplitter(maxPages int, maxBytes int64, tempDir string) *Splitter {
	return &Splitter{MaxPages: maxPages, MaxBytes: maxBytes, TempDir: tempDir, pages: newPdfcpuPages()}
}

// Split persists r under filename in a fresh scratch directory and splits it.
// On error the directory is already removed; on success the caller owns the
// session and must call Cleanup.
func (s *Splitter) Split(ctx context.Context, filename string, r io.Reader) (*SplitSession, error) {
	dir, err := os.MkdirTemp(s.TempDir, "pdf_split_*")
	if err != nil {
		return nil, scratchError(err)
	}
	session := &SplitSession{Dir: dir}

	parts, err := s.split(ctx, session, filename, r)
	if err != nil {
		session.Cleanup()
		return nil, err
	}
	session.Parts = parts
	return session, nil
}

func (s *Splitter) split(ctx context.Context, session *SplitSession, filename string, r io.Reader) ([]Part, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "upload.pdf"
	}
	original := filepath.Join(session.Dir, name)
	session.Original = original

	size, err := writeFile(original, r)
	if err != nil {
		return nil, scratchError(err)
	}

	total, err := s.pages.PageCount(original)
	if err != nil {
		return nil, pdfError(session.Dir, err)
	}
	if total < 1 {
		return nil, core.Errorf(core.KindPDF, "split", "PDF splitting error: document has no pages")
	}

	numParts := s.partCount(total, size)
	if numParts == 1 {
		return []Part{{Index: 1, Name: name, Path: original, FirstPage: 1, LastPage: total}}, nil
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	perPart, extra := total/numParts, total%numParts

	var (
		parts []Part
		cur   int // pages assigned so far
	)
	for i := 0; cur < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, core.E(core.KindInternal, "split", err)
		}

		target := perPart
		if i < extra {
			target++
		}
		if i >= numParts {
			// Rollbacks left pages over; keep going so none are dropped.
			target = min(s.MaxPages, total-cur)
		}

		part := Part{
			Index:     i + 1,
			Name:      fmt.Sprintf("%s_%d.pdf", stem, i+1),
			FirstPage: cur + 1,
		}
		part.Path = filepath.Join(session.Dir, part.Name)

		last, err := s.fillPart(original, part.Path, part.FirstPage, target, total)
		if err != nil {
			return nil, err
		}
		part.LastPage = last
		cur = last
		parts = append(parts, part)
	}

	log.Ctx(ctx).Debug().
		Str("filename", name).
		Int("pages", total).
		Int64("bytes", size).
		Int("parts", len(parts)).
		Msg("pdf split")
	return parts, nil
}

// partCount is the page-driven part count, raised when the average part would
// exceed MaxBytes.
func (s *Splitter) partCount(total int, size int64) int {
	pageParts := ceilDiv(int64(total), int64(s.MaxPages))
	numParts := pageParts
	if size > s.MaxBytes*pageParts {
		numParts = max(pageParts, ceilDiv(size, s.MaxBytes))
	}
	return int(numParts)
}

// fillPart adds pages starting at first until target pages are in the part,
// measuring the written file from the second page on. A page that pushes the
// part over MaxBytes is rolled back. It returns the last page kept.
func (s *Splitter) fillPart(src, dst string, first, target, total int) (int, error) {
	last := first
	written := 0
	for added := 1; added < target && last < total; added++ {
		if err := s.pages.ExtractPages(src, dst, first, last+1); err != nil {
			return 0, pdfError(filepath.Dir(dst), err)
		}
		size, err := fileSize(dst)
		if err != nil {
			return 0, scratchError(err)
		}
		if size > s.MaxBytes {
			written = 0
			break
		}
		last++
		written = last
	}
	if written != last {
		if err := s.pages.ExtractPages(src, dst, first, last); err != nil {
			return 0, pdfError(filepath.Dir(dst), err)
		}
	}
	return last, nil
}

// pdfError keeps the parser's diagnostic but drops the scratch directory from it.
func pdfError(dir string, err error) error {
	msg := strings.ReplaceAll(err.Error(), dir+string(filepath.Separator), "")
	msg = strings.ReplaceAll(msg, dir, "")
	return &core.Error{Kind: core.KindPDF, Op: "split", Message: "PDF splitting error: " + msg, Err: err}
}

// scratchError hides local paths behind a fixed message.
func scratchError(err error) error {
	return &core.Error{Kind: core.KindInternal, Op: "split", Message: "could not write scratch file", Err: err}
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
