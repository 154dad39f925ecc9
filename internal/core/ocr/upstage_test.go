package ocr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/core/provider"
)

func newCaller() *provider.Caller {
	return provider.NewCaller(provider.Options{Name: "upstage", Timeout: 2 * time.Second})
}

func TestUpstageParseSendsForcedOCRForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer up-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		want := map[string]string{
			"output_formats":    `["html", "markdown"]`,
			"base64_encoding":   `["table"]`,
			"chart_recognition": "true",
			"model":             "document-parse",
			"ocr":               "force",
		}
		for k, v := range want {
			if got := r.FormValue(k); got != v {
				t.Errorf("field %s: expected %q, got %q", k, v, got)
			}
		}
		f, hdr, err := r.FormFile("document")
		if err != nil {
			t.Errorf("document part: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			if hdr.Filename != "report_1.pdf" || string(data) != "%PDF-fake" {
				t.Errorf("unexpected document part %q %q", hdr.Filename, data)
			}
		}
		_, _ = w.Write([]byte(`{"content":{"html":"<h1>Title</h1>","markdown":"# Title"}}`))
	}))
	defer srv.Close()

	c := NewUpstageClient(srv.URL, "up-key", newCaller())
	doc, err := c.Parse(context.Background(), "report_1.pdf", []byte("%PDF-fake"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.HTML != "<h1>Title</h1>" || doc.Markdown != "# Title" {
		t.Fatalf("unexpected parsed document: %+v", doc)
	}
}

func TestUpstageParseErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer srv.Close()

	c := NewUpstageClient(srv.URL, "bad", newCaller())
	_, err := c.Parse(context.Background(), "a.pdf", []byte("%PDF"))
	if !core.IsKind(err, core.KindProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestUpstageParseMissingContentYieldsEmptyStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	doc, err := NewUpstageClient(srv.URL, "k", newCaller()).Parse(context.Background(), "a.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.HTML != "" || doc.Markdown != "" {
		t.Fatalf("expected empty content, got %+v", doc)
	}
}
