package vectorstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config locates the snapshot object.
type S3Config struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string // optional, for S3-compatible services (MinIO, R2)
	AccessKey string // optional; the default credential chain is used when empty
	SecretKey string
	// ForcePathStyle addresses objects as endpoint/bucket/key. Implied by Endpoint.
	ForcePathStyle bool
}

// S3Snapshot stores the snapshot as a single S3 object.
type S3Snapshot struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	key      string
}

// NewS3Snapshot builds an S3 client from the default AWS config chain.
func NewS3Snapshot(ctx context.Context, cfg S3Config) (*S3Snapshot, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 snapshot: bucket is required")
	}
	key := cfg.Key
	if key == "" {
		key = "gomemory/vectors.json"
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return &S3Snapshot{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		key:      key,
	}, nil
}

func (s *S3Snapshot) Location() string { return "s3://" + s.bucket + "/" + s.key }

func (s *S3Snapshot) Read(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Snapshot) Write(ctx context.Context, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (s *S3Snapshot) Size(ctx context.Context) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return 0, ErrSnapshotNotFound
		}
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}
