package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/core/provider"
)

var _ core.Indexer = (*DatasetClient)(nil)

// processRule asks the dataset to chunk and embed with its automatic rules.
var processRule = map[string]any{
	"indexing_technique": "high_quality",
	"doc_form":           "text_model",
	"process_rule":       map[string]any{"mode": "automatic"},
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// DatasetClient manages documents inside one Dify knowledge dataset.
type DatasetClient struct {
	baseURL string
	apiKey  string
	caller  *provider.Caller
}

// NewDatasetClient takes the dataset base URL, e.g. https://api.dify.ai/v1/datasets/<id>.
func NewDatasetClient(baseURL, apiKey string, caller *provider.Caller) *DatasetClient {
	return &DatasetClient{baseURL: baseURL, apiKey: apiKey, caller: caller}
}

type createResponse struct {
	Document struct {
		ID             string `json:"id"`
		DataSourceInfo struct {
			UploadFileID string `json:"upload_file_id"`
		} `json:"data_source_info"`
	} `json:"document"`
}

// CreateDocument uploads content as a file and returns the ids Dify assigned.
func (c *DatasetClient) CreateDocument(ctx context.Context, filename string, content []byte) (*core.IndexedDocument, error) {
	body, contentType, err := datasetForm(filename, content)
	if err != nil {
		return nil, core.E(core.KindProvider, "dify.create_document", err)
	}

	var out createResponse
	err = c.caller.JSON(ctx, "create_document", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/document/create-by-file", bytes.NewReader(body))
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
	if out.Document.ID == "" {
		return nil, core.Errorf(core.KindProvider, "dify.create_document", "response has no document id")
	}

	return &core.IndexedDocument{
		DocumentID:   out.Document.ID,
		UploadFileID: out.Document.DataSourceInfo.UploadFileID,
	}, nil
}

// DeleteDocument removes the document from the dataset.
func (c *DatasetClient) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := c.caller.Raw(ctx, "delete_document", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/documents/"+url.PathEscape(documentID), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	})
	return err
}

func datasetForm(filename string, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	rule, err := json.Marshal(processRule)
	if err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("data", string(rule)); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+quoteEscaper.Replace(filename)+`"`)
	h.Set("Content-Type", "text/markdown")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
