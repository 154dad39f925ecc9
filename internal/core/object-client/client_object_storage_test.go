package objectclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/markdave123-py/silverrag/internal/config"
	"github.com/markdave123-py/silverrag/internal/core"
)

type s3Object struct {
	data        []byte
	contentType string
}

// s3Server is an in-memory, path-style S3 endpoint covering the calls the
// client makes.
type s3Server struct {
	mu      sync.Mutex
	buckets map[string]map[string]s3Object
	created []string
}

func newS3Server() *s3Server {
	return &s3Server{buckets: map[string]map[string]s3Object{}}
}

type listResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Xmlns       string   `xml:"xmlns,attr"`
	Name        string   `xml:"Name"`
	Prefix      string   `xml:"Prefix"`
	KeyCount    int      `xml:"KeyCount"`
	MaxKeys     int      `xml:"MaxKeys"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []listEntry `xml:"Contents"`
}

type listEntry struct {
	Key  string `xml:"Key"`
	Size int    `xml:"Size"`
}

func (s *s3Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	objects, exists := s.buckets[bucket]

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
		}
	case key == "" && r.Method == http.MethodPut:
		s.buckets[bucket] = map[string]s3Object{}
		s.created = append(s.created, bucket)
	case key == "" && r.Method == http.MethodGet:
		s.list(w, r, bucket, objects)
	case !exists:
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut:
		data, err := readPayload(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		objects[key] = s3Object{data: data, contentType: r.Header.Get("Content-Type")}
		w.Header().Set("ETag", `"etag"`)
	case r.Method == http.MethodGet:
		obj, ok := objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		w.Write(obj.data)
	case r.Method == http.MethodDelete:
		delete(objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *s3Server) list(w http.ResponseWriter, r *http.Request, bucket string, objects map[string]s3Object) {
	prefix := r.URL.Query().Get("prefix")
	res := listResult{Xmlns: "http://s3.amazonaws.com/doc/2006-03-01/", Name: bucket, Prefix: prefix, MaxKeys: 1000}
	if mk, err := strconv.Atoi(r.URL.Query().Get("max-keys")); err == nil {
		res.MaxKeys = mk
	}

	var keys []string
	for k := range objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > res.MaxKeys {
		keys = keys[:res.MaxKeys]
	}
	for _, k := range keys {
		res.Contents = append(res.Contents, listEntry{Key: k, Size: len(objects[k].data)})
	}
	res.KeyCount = len(res.Contents)

	w.Header().Set("Content-Type", "application/xml")
	io.WriteString(w, xml.Header)
	xml.NewEncoder(w).Encode(res)
}

func (s *s3Server) createdBuckets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.created...)
}

func (s *s3Server) keys(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.buckets[bucket] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// readPayload returns the request body, decoding aws-chunked framing when the
// SDK streams it with a trailing checksum.
func readPayload(r *http.Request) ([]byte, error) {
	if !strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") &&
		!strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}
	var out bytes.Buffer
	br := bufio.NewReader(r.Body)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, err
		}
		if _, err := br.Discard(2); err != nil {
			return nil, err
		}
	}
}

func newTestS3Client(t *testing.T) (*S3Client, *s3Server) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_REQUEST_CHECKSUM_CALCULATION", "when_required")
	t.Setenv("AWS_RESPONSE_CHECKSUM_VALIDATION", "when_required")

	fake := newS3Server()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := NewS3Client(ctx, &config.Config{
		AwsAccessKey: "ak",
		AwsSecretKey: "sk",
		AwsRegion:    "us-east-2",
		S3Endpoint:   srv.URL,
		BucketName:   "silverrag-docs",
	})
	if err != nil {
		t.Fatalf("new s3 client: %v", err)
	}
	return client, fake
}

func TestS3ClientCreatesMissingBucket(t *testing.T) {
	_, fake := newTestS3Client(t)

	if created := fake.createdBuckets(); len(created) != 1 || created[0] != "silverrag-docs" {
		t.Fatalf("expected the bucket to be created once, got %v", created)
	}
}

func TestS3ClientUploadGetRoundTrip(t *testing.T) {
	client, fake := newTestS3Client(t)
	ctx := context.Background()
	payload := []byte("%PDF-1.4 part one")

	id, err := client.Upload(ctx, "report_1.pdf", "application/pdf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	other, err := client.Upload(ctx, "report_1.pdf", "application/pdf", bytes.NewReader([]byte("other")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id == other {
		t.Fatalf("expected a fresh id per upload")
	}
	keys := fake.keys("silverrag-docs")
	if len(keys) != 2 {
		t.Fatalf("expected two objects, got %v", keys)
	}
	for _, k := range keys {
		if k != id+"/report_1.pdf" && k != other+"/report_1.pdf" {
			t.Fatalf("unexpected key %q", k)
		}
	}

	obj, err := client.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(obj.Data, payload) {
		t.Fatalf("unexpected data %q", obj.Data)
	}
	if obj.Name != "report_1.pdf" || obj.ContentType != "application/pdf" {
		t.Fatalf("unexpected object metadata: %s %s", obj.Name, obj.ContentType)
	}

	url, err := client.SignedURL(ctx, id, 15*time.Minute)
	if err != nil {
		t.Fatalf("signed url: %v", err)
	}
	if !strings.Contains(url, "/silverrag-docs/"+id+"/report_1.pdf") || !strings.Contains(url, "X-Amz-Expires=900") {
		t.Fatalf("unexpected signed url %q", url)
	}
}

func TestS3ClientGetEmptyPrefixIsNotFound(t *testing.T) {
	client, _ := newTestS3Client(t)

	_, err := client.Get(context.Background(), "6f1c0a4e-missing")
	if !core.IsKind(err, core.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := client.SignedURL(context.Background(), "6f1c0a4e-missing", time.Minute); !core.IsKind(err, core.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestS3ClientDeleteRemovesPrefix(t *testing.T) {
	client, fake := newTestS3Client(t)
	ctx := context.Background()

	id, err := client.Upload(ctx, "a.pdf", "application/pdf", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	keep, err := client.Upload(ctx, "b.pdf", "application/pdf", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	deleted, err := client.Delete(ctx, id)
	if err != nil || !deleted {
		t.Fatalf("expected delete to report true, got %v (%v)", deleted, err)
	}
	if keys := fake.keys("silverrag-docs"); len(keys) != 1 || keys[0] != keep+"/b.pdf" {
		t.Fatalf("expected only the other upload to remain, got %v", keys)
	}

	deleted, err = client.Delete(ctx, id)
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got %v (%v)", deleted, err)
	}
	if _, err := client.Get(ctx, id); !core.IsKind(err, core.KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestS3ClientRejectsNestedID(t *testing.T) {
	client, _ := newTestS3Client(t)

	if _, err := client.Delete(context.Background(), "a/b"); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
