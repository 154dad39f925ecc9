package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/markdave123-py/silverrag/internal/core"
)

const (
	internalServerError = "Internal server error"
	storageFailure      = "The file store could not complete the request"
)

// errorResponse is the error envelope shared by every route.
type errorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	RequestID      string `json:"request_id,omitempty"`
	ProviderStatus int    `json:"provider_status,omitempty"`
	Filename       string `json:"filename,omitempty"`
	DocumentID     *int64 `json:"document_id,omitempty"`
}

// withFilename and withDocumentID add identifying fields to an error envelope.
func withFilename(name string) func(*errorResponse) {
	return func(e *errorResponse) { e.Filename = name }
}

func withDocumentID(id int64) func(*errorResponse) {
	return func(e *errorResponse) { e.DocumentID = &id }
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err and writes the matching status and envelope. Storage,
// database and unclassified failures never leak their message.
func writeError(w http.ResponseWriter, r *http.Request, err error, fields ...func(*errorResponse)) {
	kind := core.KindOf(err)
	status, tag := statusOf(kind)

	event := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.Err(err).Str("kind", string(kind)).Int("status", status).Msg("request failed")

	resp := errorResponse{
		Error:     tag,
		Message:   core.MessageOf(err),
		RequestID: middleware.GetReqID(r.Context()),
	}
	switch kind {
	case core.KindDatabase, core.KindInternal:
		resp.Message = internalServerError
	case core.KindStorage:
		resp.Message = storageFailure
	case core.KindProvider:
		var perr *core.Error
		if errors.As(err, &perr) {
			resp.ProviderStatus = perr.StatusCode
		}
	}
	for _, f := range fields {
		f(&resp)
	}
	writeJSON(w, status, resp)
}

// writeStatus writes an envelope for failures detected in the HTTP layer.
func writeStatus(w http.ResponseWriter, r *http.Request, status int, tag, message string) {
	writeJSON(w, status, errorResponse{Error: tag, Message: message, RequestID: middleware.GetReqID(r.Context())})
}

func statusOf(kind core.Kind) (int, string) {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest, "Invalid request"
	case core.KindPDF:
		return http.StatusBadRequest, "PDF processing error"
	case core.KindUnauthorized:
		return http.StatusUnauthorized, "Unauthorized"
	case core.KindNotFound:
		return http.StatusNotFound, "Not found"
	case core.KindConflict:
		return http.StatusConflict, "Conflict"
	case core.KindProvider:
		return http.StatusInternalServerError, "Provider error"
	case core.KindStorage:
		return http.StatusInternalServerError, "Storage error"
	default:
		return http.StatusInternalServerError, internalServerError
	}
}
