package ingestion_engine

import (
	"context"
	"io"

	"github.com/markdave123-py/silverrag/internal/models"
)

type Ingestor interface {
	Ingest(ctx context.Context, filename string, r io.Reader) ([]models.Document, error)
}

var _ Ingestor = (*DocumentIngestor)(nil)
