package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/core/provider"
)

var _ core.ChatProvider = (*ChatClient)(nil)

// ChatClient relays traffic to a Dify chat application.
type ChatClient struct {
	baseURL string
	apiKey  string
	caller  *provider.Caller
}

func NewChatClient(baseURL, apiKey string, caller *provider.Caller) *ChatClient {
	return &ChatClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, caller: caller}
}

type chatRequest struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	ResponseMode   string         `json:"response_mode"`
	ConversationID string         `json:"conversation_id"`
	User           string         `json:"user"`
}

// SendMessage opens a streaming chat completion. The returned body carries the
// upstream event stream unmodified.
func (c *ChatClient) SendMessage(ctx context.Context, msg core.ChatMessage) (io.ReadCloser, error) {
	payload, err := json.Marshal(chatRequest{
		Inputs:         map[string]any{},
		Query:          msg.Query,
		ResponseMode:   "streaming",
		ConversationID: msg.ConversationID,
		User:           msg.User,
	})
	if err != nil {
		return nil, core.E(core.KindProvider, "dify.chat_messages", err)
	}

	return c.caller.Stream(ctx, "chat_messages", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat-messages", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		return req, nil
	})
}

func (c *ChatClient) Conversations(ctx context.Context, user string) (json.RawMessage, error) {
	return c.get(ctx, "conversations", "/conversations", url.Values{"user": {user}})
}

func (c *ChatClient) Messages(ctx context.Context, user, conversationID string) (json.RawMessage, error) {
	return c.get(ctx, "messages", "/messages", url.Values{"user": {user}, "conversation_id": {conversationID}})
}

func (c *ChatClient) SuggestedQuestions(ctx context.Context, messageID, user string) (json.RawMessage, error) {
	return c.get(ctx, "suggested", "/messages/"+url.PathEscape(messageID)+"/suggested", url.Values{"user": {user}})
}

func (c *ChatClient) get(ctx context.Context, op, path string, query url.Values) (json.RawMessage, error) {
	raw, err := c.caller.Raw(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, core.Errorf(core.KindProvider, "dify."+op, "response is not valid JSON")
	}
	return raw, nil
}
