package ingestion_engine

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
	"github.com/markdave123-py/silverrag/internal/observability/metrics"
)

const pdfContentType = "application/pdf"

// NewDocumentIngestor constructs the ingestor with a pdfcpu backed splitter.
func NewDocumentIngestor(db core.DocumentStore, storage core.ObjectClient, parser core.DocumentParser, indexer core.Indexer, m *metrics.Metrics, cfg IngestConfig) *DocumentIngestor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &DocumentIngestor{
		db: db, storage: storage, parser: parser, indexer: indexer, metrics: m, cfg: cfg,
		splitter: NewSplitter(cfg.MaxPages, cfg.MaxBytes, cfg.TempDir),
	}
}

// Ingest splits the upload and runs every part through
// storage -> OCR -> index -> database. It returns one document per part, in
// part order. A failed part stops the parts that have not started yet; work
// already done for earlier parts (and earlier stages of the failed part) is
// kept as is.
func (i *DocumentIngestor) Ingest(ctx context.Context, filename string, r io.Reader) ([]models.Document, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, &core.Error{Kind: core.KindValidation, Op: "ingest", Message: "Only PDF files are accepted"}
	}
	logger := log.Ctx(ctx).With().Str("filename", filename).Logger()

	start := time.Now()
	session, err := i.splitter.Split(ctx, filename, r)
	i.metrics.ObserveStage("split", metrics.Outcome(err), time.Since(start))
	if err != nil {
		i.metrics.RecordUpload(metrics.Outcome(err), 0)
		return nil, err
	}
	defer session.Cleanup()

	logger.Info().Int("parts", len(session.Parts)).Msg("ingesting document")

	docs := make([]models.Document, len(session.Parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.Concurrency)
	for idx, part := range session.Parts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := i.ingestPart(gctx, part)
			if err != nil {
				logger.Error().Err(err).Str("part", part.Name).Msg("part ingestion failed")
				return err
			}
			docs[idx] = *doc
			return nil
		})
	}
	err = g.Wait()
	i.metrics.RecordUpload(metrics.Outcome(err), len(session.Parts))
	if err != nil {
		return nil, err
	}

	logger.Info().Int("documents", len(docs)).Dur("took", time.Since(start)).Msg("document ingested")
	return docs, nil
}

func (i *DocumentIngestor) ingestPart(ctx context.Context, part Part) (*models.Document, error) {
	data, err := os.ReadFile(part.Path)
	if err != nil {
		return nil, pdfError(filepath.Dir(part.Path), err)
	}

	var storageID string
	err = i.stage("storage", func() (err error) {
		storageID, err = i.storage.Upload(ctx, part.Name, pdfContentType, bytes.NewReader(data))
		return err
	})
	if err != nil {
		return nil, err
	}

	var parsed *core.ParsedDocument
	err = i.stage("ocr", func() (err error) {
		parsed, err = i.parser.Parse(ctx, part.Name, data)
		return err
	})
	if err != nil {
		log.Ctx(ctx).Warn().Str("storage_id", storageID).Msg("ocr failed, stored object left in place")
		return nil, err
	}

	var indexed *core.IndexedDocument
	err = i.stage("index", func() (err error) {
		indexed, err = i.indexer.CreateDocument(ctx, markdownName(part.Name), []byte(parsed.Markdown))
		return err
	})
	if err != nil {
		log.Ctx(ctx).Warn().Str("storage_id", storageID).Msg("indexing failed, stored object left in place")
		return nil, err
	}

	doc := &models.Document{
		Filename:          part.Name,
		StorageID:         storageID,
		HTMLContent:       parsed.HTML,
		MarkdownContent:   parsed.Markdown,
		IndexDocumentID:   indexed.DocumentID,
		IndexUploadFileID: indexed.UploadFileID,
	}
	err = i.stage("persist", func() error {
		return i.db.CreateDocument(ctx, doc)
	})
	if err != nil {
		log.Ctx(ctx).Warn().
			Str("storage_id", storageID).
			Str("index_document_id", indexed.DocumentID).
			Msg("persist failed, stored object and indexed document left in place")
		return nil, err
	}
	return doc, nil
}

func (i *DocumentIngestor) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	i.metrics.ObserveStage(name, metrics.Outcome(err), time.Since(start))
	return err
}

// markdownName maps "report_2.pdf" to "report_2.md".
func markdownName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".md"
}
