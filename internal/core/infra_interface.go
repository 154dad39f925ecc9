package core

import (
	"context"
	"io"
	"time"

	"github.com/markdave123-py/silverrag/internal/models"
)

// DocumentStore persists Document rows. Lookups ignore soft-deleted rows and
// return (nil, nil) when nothing matches.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id int64) (*models.Document, error)
	GetDocumentByStorageID(ctx context.Context, storageID string) (*models.Document, error)
	GetDocumentByIndexID(ctx context.Context, indexID string) (*models.Document, error)
	ListDocuments(ctx context.Context, page, pageSize int) ([]models.Document, int, error)
	SoftDeleteDocument(ctx context.Context, id int64) (bool, error)
}

// UserStore persists users and their activity log.
type UserStore interface {
	// CreateUser inserts the user and a create_user log row attributed to createdBy
	// in one transaction.
	CreateUser(ctx context.Context, user *models.User, createdBy *int64) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	// UpdatePassword stores the new hash and an update_password log row in one transaction.
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	CreateUserLog(ctx context.Context, entry *models.UserLog) error
}

// DbClient is the full persistence surface used by the application.
type DbClient interface {
	DocumentStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

// ObjectClient stores opaque file bytes under generated identifiers.
type ObjectClient interface {
	// Upload stores body as <new id>/<name> and returns the new id.
	Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error)
	// Get returns the first object stored under id.
	Get(ctx context.Context, id string) (*models.StoredObject, error)
	// Delete removes every object under id and reports whether any existed.
	Delete(ctx context.Context, id string) (bool, error)
	SignedURL(ctx context.Context, id string, ttl time.Duration) (string, error)
}
