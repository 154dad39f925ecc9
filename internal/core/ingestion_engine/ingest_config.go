package ingestion_engine

import (
	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/observability/metrics"
)

// IngestConfig tunes the ingestion pipeline.
//
// MaxPages:    page limit of a single split part (e.g., 3).
// MaxBytes:    byte limit of a single split part (e.g., 50 MiB).
// TempDir:     parent of the per-upload scratch directories ("" = os.TempDir()).
// Concurrency: how many parts are processed at once (1 = page order, one at a time).
type IngestConfig struct {
	MaxPages    int
	MaxBytes    int64
	TempDir     string
	Concurrency int
}

// DocumentIngestor orchestrates the upload pipeline:
//
// db:       persistence for the finished document rows.
// storage:  object storage for the raw PDF parts.
// parser:   OCR provider turning PDF bytes into HTML and Markdown.
// indexer:  knowledge base receiving the Markdown.
// splitter: cuts oversized uploads into bounded parts.
type DocumentIngestor struct {
	db       core.DocumentStore
	storage  core.ObjectClient
	parser   core.DocumentParser
	indexer  core.Indexer
	splitter *Splitter
	metrics  *metrics.Metrics
	cfg      IngestConfig
}
