package models

import (
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Activity actions recorded in user_logs.
const (
	ActionCreateUser     = "create_user"
	ActionUpdatePassword = "update_password"
	ActionChatMessage    = "chat_message"
)

// User represents an authenticated user of the system.
type User struct {
	ID           int64     `db:"id" json:"id"`
	UUID         string    `db:"uuid" json:"uuid"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserLog is one row of the append-only activity audit.
type UserLog struct {
	ID        int64     `db:"id" json:"id"`
	UserID    *int64    `db:"user_id" json:"user_id,omitempty"` // nil for anonymous actions
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Document is one indexed part of an uploaded PDF.
// The JSON names of the external identifiers are kept stable for existing clients.
type Document struct {
	ID                int64      `db:"id" json:"id"`
	Filename          string     `db:"filename" json:"filename"`
	StorageID         string     `db:"storage_id" json:"gcs_document_id"`
	HTMLContent       string     `db:"html_content" json:"html_content"`
	MarkdownContent   string     `db:"markdown_content" json:"markdown_content"`
	IndexDocumentID   string     `db:"index_document_id" json:"dify_document_id"`
	IndexUploadFileID string     `db:"index_upload_file_id" json:"dify_upload_file_id"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	DeletedAt         *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// DocumentPage is one page of the document listing.
type DocumentPage struct {
	Items      []Document `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// DocumentLookup selects a document by exactly one of its identifiers.
// The first non-empty field wins in the order ID, StorageID, IndexID.
type DocumentLookup struct {
	ID        *int64
	StorageID string
	IndexID   string
}

func (l DocumentLookup) Empty() bool {
	return l.ID == nil && l.StorageID == "" && l.IndexID == ""
}

// StoredObject is the payload retrieved from object storage.
type StoredObject struct {
	Name        string
	ContentType string
	Data        []byte
}
