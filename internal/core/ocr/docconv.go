package ocr

import (
	"bytes"
	"context"
	"html"
	"strings"

	"code.sajari.com/docconv"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/silverrag/internal/core"
)

var _ core.DocumentParser = (*DocconvParser)(nil)

// DocconvParser extracts the text layer locally. It does not OCR scanned pages
// and is meant for offline environments without an Upstage key.
type DocconvParser struct {
	useReadability bool
}

func NewDocconvParser(useReadability bool) *DocconvParser {
	return &DocconvParser{useReadability: useReadability}
}

func (p *DocconvParser) Parse(ctx context.Context, filename string, data []byte) (*core.ParsedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.E(core.KindProvider, "docconv.parse", err)
	}

	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", p.useReadability)
	if err != nil {
		return nil, core.E(core.KindProvider, "docconv.parse", err)
	}
	if strings.TrimSpace(res.Body) == "" {
		log.Ctx(ctx).Warn().Str("filename", filename).Msg("docconv extracted empty text")
	}

	paragraphs := splitParagraphs(res.Body)
	return &core.ParsedDocument{
		HTML:     renderHTML(paragraphs),
		Markdown: strings.Join(paragraphs, "\n\n"),
	}, nil
}

func splitParagraphs(text string) []string {
	var (
		out []string
		cur []string
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = cur[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

func renderHTML(paragraphs []string) string {
	var sb strings.Builder
	for _, p := range paragraphs {
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(p))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}
