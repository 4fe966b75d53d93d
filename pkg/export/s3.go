package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the slice of the S3 client the uploader needs.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader ships evidence packs to an object storage bucket. Keys are
// date-partitioned and carry the sequence range, so an auditor can locate
// a period without listing the whole bucket.
type S3Uploader struct {
	client s3API
	bucket string
	prefix string
}

// S3UploaderConfig holds uploader configuration.
type S3UploaderConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO or LocalStack
	Prefix   string
}

// NewS3Uploader creates an uploader with credentials from the default AWS
// config chain.
func NewS3Uploader(ctx context.Context, cfg S3UploaderConfig) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("export: load aws config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}

	return &S3Uploader{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Upload stores the bundle and records the object key on it. The pack
// checksum travels as object metadata so downloads can be spot-checked
// without opening the zip.
func (u *S3Uploader) Upload(ctx context.Context, bundle *Bundle, start, end int64) error {
	key := u.objectKey(bundle.GeneratedAt, start, end)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(bundle.Data),
		ContentType: aws.String("application/zip"),
		Metadata: map[string]string{
			"ledger-checksum":    bundle.Checksum,
			"ledger-merkle-root": bundle.MerkleRoot,
		},
	})
	if err != nil {
		return fmt.Errorf("export: upload %s: %w", key, err)
	}

	bundle.ObjectKey = key
	return nil
}

func (u *S3Uploader) objectKey(generatedAt time.Time, start, end int64) string {
	return path.Join(u.prefix,
		generatedAt.UTC().Format("2006/01/02"),
		fmt.Sprintf("ledger-%d-%d-%s.zip", start, end, generatedAt.UTC().Format("150405")))
}
