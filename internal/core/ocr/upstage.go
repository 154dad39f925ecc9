package ocr

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/core/provider"
)

var _ core.DocumentParser = (*UpstageClient)(nil)

// UpstageClient calls the Upstage document-parse endpoint with forced OCR.
type UpstageClient struct {
	url    string
	apiKey string
	caller *provider.Caller
}

func NewUpstageClient(url, apiKey string, caller *provider.Caller) *UpstageClient {
	return &UpstageClient{url: url, apiKey: apiKey, caller: caller}
}

type upstageResponse struct {
	Content struct {
		HTML     string `json:"html"`
		Markdown string `json:"markdown"`
	} `json:"content"`
}

// Parse uploads the PDF and returns the HTML and Markdown renditions.
func (c *UpstageClient) Parse(ctx context.Context, filename string, data []byte) (*core.ParsedDocument, error) {
	body, contentType, err := upstageForm(filename, data)
	if err != nil {
		return nil, core.E(core.KindProvider, "upstage.parse", err)
	}

	var out upstageResponse
	err = c.caller.JSON(ctx, "parse", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, &out)
	if err != nil {
		return nil, err
	}

	return &core.ParsedDocument{HTML: out.Content.HTML, Markdown: out.Content.Markdown}, nil
}

func upstageForm(filename string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	fields := []struct{ key, value string }{
		{"output_formats", `["html", "markdown"]`},
		{"base64_encoding", `["table"]`},
		{"chart_recognition", "true"},
		{"model", "document-parse"},
		{"ocr", "force"},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
