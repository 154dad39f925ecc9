package objectclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	cfg "github.com/markdave123-py/silverrag/internal/config"
	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

var _ core.ObjectClient = (*GCSClient)(nil)

type GCSClient struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

func NewGCSClient(ctx context.Context, cfg *cfg.Config) (*GCSClient, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("GCS bucket name not set")
	}

	var opts []option.ClientOption
	if cfg.GCSCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentials))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	c := &GCSClient{client: client, bucket: client.Bucket(cfg.BucketName), name: cfg.BucketName}
	if err := c.ensureBucket(ctx, cfg.GCSProjectID); err != nil {
		_ = client.Close()
		return nil, err
	}
	log.Info().Str("bucket", c.name).Msg("connected to GCS")
	return c, nil
}

func (c *GCSClient) ensureBucket(ctx context.Context, projectID string) error {
	_, err := c.bucket.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return core.E(core.KindStorage, "gcs.bucket_attrs", err)
	}
	if projectID == "" {
		return core.Errorf(core.KindStorage, "gcs.create_bucket", "bucket %s does not exist and GCS_PROJECT_ID is not set", c.name)
	}
	if err := c.bucket.Create(ctx, projectID, nil); err != nil {
		return core.E(core.KindStorage, "gcs.create_bucket", err)
	}
	log.Info().Str("bucket", c.name).Msg("created GCS bucket")
	return nil
}

func (c *GCSClient) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	id, key := newObjectKey(name)

	ctxUpload, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	w := c.bucket.Object(key).NewWriter(ctxUpload)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", core.E(core.KindStorage, "gcs.upload", err)
	}
	if err := w.Close(); err != nil {
		return "", core.E(core.KindStorage, "gcs.upload", err)
	}
	return id, nil
}

func (c *GCSClient) Get(ctx context.Context, id string) (*models.StoredObject, error) {
	attrs, err := c.firstObject(ctx, id)
	if err != nil {
		return nil, err
	}

	r, err := c.bucket.Object(attrs.Name).NewReader(ctx)
	if err != nil {
		return nil, core.E(core.KindStorage, "gcs.get", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, core.E(core.KindStorage, "gcs.get", err)
	}

	contentType := attrs.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &models.StoredObject{Name: nameFromKey(attrs.Name), ContentType: contentType, Data: data}, nil
}

func (c *GCSClient) firstObject(ctx context.Context, id string) (*storage.ObjectAttrs, error) {
	prefix, err := prefixOf(id)
	if err != nil {
		return nil, err
	}
	attrs, err := c.bucket.Objects(ctx, &storage.Query{Prefix: prefix}).Next()
	if errors.Is(err, iterator.Done) {
		return nil, notFound("gcs.get", id)
	}
	if err != nil {
		return nil, core.E(core.KindStorage, "gcs.list", err)
	}
	return attrs, nil
}

func (c *GCSClient) Delete(ctx context.Context, id string) (bool, error) {
	prefix, err := prefixOf(id)
	if err != nil {
		return false, err
	}

	deleted := false
	it := c.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return deleted, core.E(core.KindStorage, "gcs.list", err)
		}
		if err := c.bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return deleted, core.E(core.KindStorage, "gcs.delete", err)
		}
		deleted = true
	}
	return deleted, nil
}

func (c *GCSClient) SignedURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	attrs, err := c.firstObject(ctx, id)
	if err != nil {
		return "", err
	}
	u, err := c.bucket.SignedURL(attrs.Name, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", core.E(core.KindStorage, "gcs.sign", err)
	}
	return u, nil
}

func (c *GCSClient) Close() error {
	return c.client.Close()
}
