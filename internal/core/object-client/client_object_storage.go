package objectclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/markdave123-py/docingest/internal/config"
	"github.com/markdave123-py/docingest/internal/core"
)

const downloadTimeout = 5 * time.Minute

type S3Client struct {
	client     *s3.Client
	downloader *manager.Downloader
	region     string
}

var _ core.ObjectClient = (*S3Client)(nil)

// NewS3Client uses static credentials when both keys are set and the default
// AWS credential chain otherwise.
func NewS3Client(ctx context.Context, cfg *cfg.Config) (*S3Client, error) {
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	slog.InfoContext(ctx, "s3 client configured", "region", cfg.AwsRegion)

	return &S3Client{
		client:     client,
		downloader: manager.NewDownloader(client),
		region:     cfg.AwsRegion,
	}, nil
}

// DownloadFile fetches bucket/key into w using concurrent ranged GETs.
func (c *S3Client) DownloadFile(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	ctxGet, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	n, err := c.downloader.Download(ctxGet, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, fmt.Errorf("s3 download failed: %w", err)
	}
	return n, nil
}
