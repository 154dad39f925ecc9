package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/core/ingestion_engine"
	"github.com/markdave123-py/silverrag/internal/models"
	"github.com/markdave123-py/silverrag/internal/services"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to disk.
const multipartMemory = 32 << 20

type DocumentHandler struct {
	ingestor  ingestion_engine.Ingestor
	documents *services.DocumentService
	maxUpload int64
	urlTTL    time.Duration
}

func NewDocumentHandler(ing ingestion_engine.Ingestor, documents *services.DocumentService, maxUpload int64, urlTTL time.Duration) *DocumentHandler {
	return &DocumentHandler{ingestor: ing, documents: documents, maxUpload: maxUpload, urlTTL: urlTTL}
}

// UploadDocument ingests the multipart "file" field. A document that was not
// split is returned as an object, a split one as an array.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeStatus(w, r, http.StatusRequestEntityTooLarge, "File too large", "The upload exceeds the size limit")
			return
		}
		writeError(w, r, core.Errorf(core.KindValidation, "documents.upload", "expected a multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, core.Errorf(core.KindValidation, "documents.upload", "missing file field"))
		return
	}
	defer file.Close()

	docs, err := h.ingestor.Ingest(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, r, err, withFilename(header.Filename))
		return
	}
	if len(docs) == 1 {
		writeJSON(w, http.StatusOK, docs[0])
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", services.DefaultPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.documents.List(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, withDocumentID(id))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) GetDocumentByIndexID(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.GetByIndexID(r.Context(), chi.URLParam(r, "indexDocID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// LookupDocument resolves ?id, ?storage_id or ?index_id, in that order.
func (h *DocumentHandler) LookupDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lookup := models.DocumentLookup{StorageID: q.Get("storage_id"), IndexID: q.Get("index_id")}
	if raw := q.Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, core.Errorf(core.KindValidation, "documents.lookup", "id must be an integer"))
			return
		}
		lookup.ID = &id
	}
	if lookup.Empty() {
		writeStatus(w, r, http.StatusUnprocessableEntity, "Missing identifier", "Provide one of id, storage_id or index_id")
		return
	}

	doc, err := h.documents.Lookup(r.Context(), lookup)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.documents.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err, withDocumentID(id))
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

// DownloadFile streams the stored PDF back with an inline disposition.
func (h *DocumentHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	obj, err := h.documents.File(r.Context(), id)
	if err != nil {
		writeError(w, r, err, withDocumentID(id))
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": obj.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

func (h *DocumentHandler) FileURL(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	url, err := h.documents.FileURL(r.Context(), id)
	if err != nil {
		writeError(w, r, err, withDocumentID(id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int(h.urlTTL.Seconds()),
	})
}

func (h *DocumentHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, r, core.Errorf(core.KindValidation, "documents", "document id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.Errorf(core.KindValidation, "documents.list", "%s must be an integer", key)
	}
	return n, nil
}
