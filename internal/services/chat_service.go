package services

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

// ChatService relays chat traffic for an authenticated user. The provider
// sees the decimal user id as its user key.
type ChatService struct {
	provider   core.ChatProvider
	logs       core.UserStore
	logTimeout time.Duration
}

func NewChatService(provider core.ChatProvider, logs core.UserStore, logTimeout time.Duration) *ChatService {
	if logTimeout <= 0 {
		logTimeout = 10 * time.Second
	}
	return &ChatService{provider: provider, logs: logs, logTimeout: logTimeout}
}

// SendMessage opens the provider stream. The chat activity row is written in
// the background and never fails the request.
func (s *ChatService) SendMessage(ctx context.Context, user *models.User, query, conversationID string) (io.ReadCloser, error) {
	if strings.TrimSpace(query) == "" {
		return nil, core.Errorf(core.KindValidation, "chat.send", "Query must not be empty")
	}

	s.logChat(ctx, user.ID, query)

	return s.provider.SendMessage(ctx, core.ChatMessage{
		Query:          query,
		ConversationID: conversationID,
		User:           userKey(user),
	})
}

func (s *ChatService) logChat(ctx context.Context, userID int64, query string) {
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logTimeout)
	go func() {
		defer cancel()
		entry := &models.UserLog{UserID: &userID, Action: models.ActionChatMessage, Details: query}
		if err := s.logs.CreateUserLog(logCtx, entry); err != nil {
			log.Ctx(logCtx).Error().Err(err).Int64("user_id", userID).Msg("failed to log chat activity")
		}
	}()
}

func (s *ChatService) Conversations(ctx context.Context, user *models.User) (json.RawMessage, error) {
	return s.provider.Conversations(ctx, userKey(user))
}

func (s *ChatService) Messages(ctx context.Context, user *models.User, conversationID string) (json.RawMessage, error) {
	if conversationID == "" {
		return nil, core.Errorf(core.KindValidation, "chat.messages", "conversation_id is required")
	}
	return s.provider.Messages(ctx, userKey(user), conversationID)
}

func (s *ChatService) SuggestedQuestions(ctx context.Context, user *models.User, messageID string) (json.RawMessage, error) {
	return s.provider.SuggestedQuestions(ctx, messageID, userKey(user))
}

func userKey(u *models.User) string {
	return strconv.FormatInt(u.ID, 10)
}
