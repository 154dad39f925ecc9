package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

const documentColumns = `id, filename, storage_id, html_content, markdown_content,
	index_document_id, index_upload_file_id, created_at, deleted_at`

// Implementing the db interface for Document

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return core.Errorf(core.KindValidation, "db.create_document", "nil document")
	}
	const q = `
		INSERT INTO documents
			(filename, storage_id, html_content, markdown_content, index_document_id, index_upload_file_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := c.db.QueryRowContext(ctx, q,
		doc.Filename, doc.StorageID, doc.HTMLContent, doc.MarkdownContent, doc.IndexDocumentID, doc.IndexUploadFileID,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return core.E(core.KindDatabase, "db.create_document", err)
	}
	return nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id int64) (*models.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND deleted_at IS NULL`
	return c.getDocument(ctx, "db.get_document", q, id)
}

func (c *DatabaseClient) GetDocumentByStorageID(ctx context.Context, storageID string) (*models.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents
		WHERE storage_id = $1 AND deleted_at IS NULL
		ORDER BY id
		LIMIT 1`
	return c.getDocument(ctx, "db.get_document_by_storage_id", q, storageID)
}

func (c *DatabaseClient) GetDocumentByIndexID(ctx context.Context, indexID string) (*models.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents
		WHERE index_document_id = $1 AND deleted_at IS NULL
		ORDER BY id
		LIMIT 1`
	return c.getDocument(ctx, "db.get_document_by_index_id", q, indexID)
}

func (c *DatabaseClient) getDocument(ctx context.Context, op, q string, arg any) (*models.Document, error) {
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.E(core.KindDatabase, op, err)
	}
	return d, nil
}

// ListDocuments returns one page of live documents, newest first, plus the live total.
func (c *DatabaseClient) ListDocuments(ctx context.Context, page, pageSize int) ([]models.Document, int, error) {
	var total int
	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM documents WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, core.E(core.KindDatabase, "db.count_documents", err)
	}

	const q = `SELECT ` + documentColumns + ` FROM documents
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := c.db.QueryContext(ctx, q, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, core.E(core.KindDatabase, "db.list_documents", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0, pageSize)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, core.E(core.KindDatabase, "db.list_documents", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, core.E(core.KindDatabase, "db.list_documents", err)
	}
	return out, total, nil
}

// SoftDeleteDocument stamps deleted_at. It returns false when the row is
// missing or already deleted.
func (c *DatabaseClient) SoftDeleteDocument(ctx context.Context, id int64) (bool, error) {
	const q = `
		UPDATE documents
		SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, core.E(core.KindDatabase, "db.soft_delete_document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.E(core.KindDatabase, "db.soft_delete_document", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		d         models.Document
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.Filename, &d.StorageID, &d.HTMLContent, &d.MarkdownContent,
		&d.IndexDocumentID, &d.IndexUploadFileID, &d.CreatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Time
	}
	return &d, nil
}
