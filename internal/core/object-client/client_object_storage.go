package objectclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	cfg "github.com/markdave123-py/silverrag/internal/config"
	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

var _ core.ObjectClient = (*S3Client)(nil)

type S3Client struct {
	client *s3.Client
	region string
	bucket string
}

func NewS3Client(ctx context.Context, cfg *cfg.Config) (*S3Client, error) {
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	awsCfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(cfg.AwsRegion),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	c := &S3Client{client: client, region: cfg.AwsRegion, bucket: cfg.BucketName}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info().Str("bucket", c.bucket).Str("region", c.region).Msg("connected to S3")
	return c, nil
}

func (c *S3Client) ensureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	var nf *types.NotFound
	if !errors.As(err, &nf) {
		return core.E(core.KindStorage, "s3.head_bucket", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	if c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}
	if _, err := c.client.CreateBucket(ctx, input); err != nil {
		return core.E(core.KindStorage, "s3.create_bucket", err)
	}
	log.Info().Str("bucket", c.bucket).Msg("created S3 bucket")
	return nil
}

// Upload streams body to <new id>/<name> and returns the new id.
func (c *S3Client) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	id, key := newObjectKey(name)
	uploader := manager.NewUploader(c.client)

	ctxUpload, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	_, err := uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", core.E(core.KindStorage, "s3.upload", err)
	}
	return id, nil
}

func (c *S3Client) Get(ctx context.Context, id string) (*models.StoredObject, error) {
	key, err := c.firstKey(ctx, id)
	if err != nil {
		return nil, err
	}

	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := c.client.GetObject(ctxGet, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, core.E(core.KindStorage, "s3.get", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.E(core.KindStorage, "s3.get", err)
	}

	contentType := aws.ToString(resp.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &models.StoredObject{Name: nameFromKey(key), ContentType: contentType, Data: data}, nil
}

func (c *S3Client) firstKey(ctx context.Context, id string) (string, error) {
	prefix, err := prefixOf(id)
	if err != nil {
		return "", err
	}
	out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return "", core.E(core.KindStorage, "s3.list", err)
	}
	if len(out.Contents) == 0 {
		return "", notFound("s3.get", id)
	}
	return aws.ToString(out.Contents[0].Key), nil
}

// Delete removes every object under the id prefix.
func (c *S3Client) Delete(ctx context.Context, id string) (bool, error) {
	prefix, err := prefixOf(id)
	if err != nil {
		return false, err
	}

	deleted := false
	pages := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return deleted, core.E(core.KindStorage, "s3.list", err)
		}
		for _, obj := range page.Contents {
			if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(c.bucket),
				Key:    obj.Key,
			}); err != nil {
				return deleted, core.E(core.KindStorage, "s3.delete", err)
			}
			deleted = true
		}
	}
	return deleted, nil
}

// SignedURL presigns a GET for the first object under id.
func (c *S3Client) SignedURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	key, err := c.firstKey(ctx, id)
	if err != nil {
		return "", err
	}
	req, err := s3.NewPresignClient(c.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", core.E(core.KindStorage, "s3.presign", err)
	}
	return req.URL, nil
}
