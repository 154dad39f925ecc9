package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	appMiddleware "github.com/markdave123-py/silverrag/internal/api/middlewares"
	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
	"github.com/markdave123-py/silverrag/internal/observability/metrics"
	"github.com/markdave123-py/silverrag/internal/services"
)

const streamChunkSize = 4 << 10

type ChatHandler struct {
	chat    *services.ChatService
	metrics *metrics.Metrics
}

func NewChatHandler(chat *services.ChatService, m *metrics.Metrics) *ChatHandler {
	return &ChatHandler{chat: chat, metrics: m}
}

type ChatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
}

// SendMessage relays the provider's event stream to the client as it arrives.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, core.Errorf(core.KindValidation, "chat.send", "invalid JSON body"))
		return
	}

	stream, err := h.chat.SendMessage(r.Context(), user, req.Query, req.ConversationID)
	if err != nil {
		h.metrics.RecordChatStream(metrics.Outcome(err))
		writeError(w, r, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	err = relay(w, stream)
	h.metrics.RecordChatStream(metrics.Outcome(err))
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Int64("user_id", user.ID).Msg("chat stream interrupted")
	}
}

// relay copies src to w chunk by chunk, flushing after every write.
func relay(w http.ResponseWriter, src io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, streamChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (h *ChatHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	raw, err := h.chat.Conversations(r.Context(), user)
	writeRaw(w, r, raw, err)
}

func (h *ChatHandler) ConversationMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	raw, err := h.chat.Messages(r.Context(), user, r.URL.Query().Get("conversation_id"))
	writeRaw(w, r, raw, err)
}

func (h *ChatHandler) SuggestedQuestions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	raw, err := h.chat.SuggestedQuestions(r.Context(), user, chi.URLParam(r, "id"))
	writeRaw(w, r, raw, err)
}

func (h *ChatHandler) user(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := appMiddleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, core.Errorf(core.KindUnauthorized, "chat", "Authentication required"))
	}
	return user, ok
}

func writeRaw(w http.ResponseWriter, r *http.Request, raw json.RawMessage, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
