package core

import (
	"context"
	"encoding/json"
	"io"
)

// ParsedDocument is the structured output of a document parser.
type ParsedDocument struct {
	HTML     string
	Markdown string
}

// DocumentParser turns PDF bytes into HTML and Markdown.
type DocumentParser interface {
	Parse(ctx context.Context, filename string, data []byte) (*ParsedDocument, error)
}

// IndexedDocument identifies a document inside the knowledge base.
type IndexedDocument struct {
	DocumentID   string
	UploadFileID string
}

// Indexer registers content with the knowledge base used for retrieval.
type Indexer interface {
	CreateDocument(ctx context.Context, filename string, content []byte) (*IndexedDocument, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// ChatMessage is a query sent to the chat application.
type ChatMessage struct {
	Query          string
	ConversationID string
	User           string
}

// ChatProvider relays chat traffic to the hosted chat application.
type ChatProvider interface {
	// SendMessage returns the raw streaming body; the caller must close it.
	SendMessage(ctx context.Context, msg ChatMessage) (io.ReadCloser, error)
	Conversations(ctx context.Context, user string) (json.RawMessage, error)
	Messages(ctx context.Context, user, conversationID string) (json.RawMessage, error)
	SuggestedQuestions(ctx context.Context, messageID, user string) (json.RawMessage, error)
}
