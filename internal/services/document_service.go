package services

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// listPreviewLength is how much Markdown a listing carries per document.
	listPreviewLength = 300
)

type DocumentService struct {
	db      core.DocumentStore
	storage core.ObjectClient
	indexer core.Indexer
	urlTTL  time.Duration
}

func NewDocumentService(db core.DocumentStore, storage core.ObjectClient, indexer core.Indexer, urlTTL time.Duration) *DocumentService {
	return &DocumentService{db: db, storage: storage, indexer: indexer, urlTTL: urlTTL}
}

// List returns one page of live documents, newest first, with Markdown
// trimmed to a preview. page < 1 is treated as 1 and pageSize is clamped.
func (s *DocumentService) List(ctx context.Context, page, pageSize int) (*models.DocumentPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	items, total, err := s.db.ListDocuments(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].MarkdownContent = truncateRunes(items[i].MarkdownContent, listPreviewLength)
	}
	if items == nil {
		items = []models.Document{}
	}
	return &models.DocumentPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *DocumentService) Get(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, documentNotFound("documents.get")
	}
	return doc, nil
}

func (s *DocumentService) GetByIndexID(ctx context.Context, indexID string) (*models.Document, error) {
	doc, err := s.db.GetDocumentByIndexID(ctx, indexID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, documentNotFound("documents.get_by_index_id")
	}
	return doc, nil
}

// Lookup tries the identifiers in the order id, storage id, index id and
// returns the first match.
func (s *DocumentService) Lookup(ctx context.Context, l models.DocumentLookup) (*models.Document, error) {
	const op = "documents.lookup"
	if l.Empty() {
		return nil, core.Errorf(core.KindValidation, op, "At least one identifier (id, storage_id or index_id) is required")
	}

	if l.ID != nil {
		doc, err := s.db.GetDocumentByID(ctx, *l.ID)
		if err != nil || doc != nil {
			return doc, err
		}
	}
	if l.StorageID != "" {
		doc, err := s.db.GetDocumentByStorageID(ctx, l.StorageID)
		if err != nil || doc != nil {
			return doc, err
		}
	}
	if l.IndexID != "" {
		doc, err := s.db.GetDocumentByIndexID(ctx, l.IndexID)
		if err != nil || doc != nil {
			return doc, err
		}
	}
	return nil, documentNotFound(op)
}

// File returns the stored PDF of a live document.
func (s *DocumentService) File(ctx context.Context, id int64) (*models.StoredObject, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.storage.Get(ctx, doc.StorageID)
}

// FileURL returns a time limited download URL for the stored PDF.
func (s *DocumentService) FileURL(ctx context.Context, id int64) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.storage.SignedURL(ctx, doc.StorageID, s.urlTTL)
}

// Delete removes the stored file and the indexed copy, then soft deletes the
// row. Any external failure leaves the row untouched.
func (s *DocumentService) Delete(ctx context.Context, id int64) (bool, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		removed, err := s.storage.Delete(gctx, doc.StorageID)
		if err == nil && !removed {
			log.Ctx(ctx).Warn().Int64("document_id", id).Str("storage_id", doc.StorageID).Msg("no stored objects to delete")
		}
		return err
	})
	g.Go(func() error {
		return s.indexer.DeleteDocument(gctx, doc.IndexDocumentID)
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	deleted, err := s.db.SoftDeleteDocument(ctx, id)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, documentNotFound("documents.delete")
	}
	log.Ctx(ctx).Info().Int64("document_id", id).Msg("document deleted")
	return true, nil
}

func documentNotFound(op string) error {
	return core.Errorf(core.KindNotFound, op, "The requested document does not exist or has been deleted")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
