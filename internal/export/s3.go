// Package export archives finished day reports to object storage
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// Config selects the bucket and, for S3-compatible stores, the endpoint
type Config struct {
	Bucket    string
	Prefix    string // object key prefix, e.g. "reports/"
	Region    string
	Endpoint  string // empty for AWS
	AccessKey string // empty to use the default credential chain
	SecretKey string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter writes one JSON object per day
type S3Exporter struct {
	client objectPutter
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Exporter creates an exporter for cfg.Bucket
func NewS3Exporter(ctx context.Context, cfg Config, logger zerolog.Logger) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("export bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
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
	})

	return newS3Exporter(client, cfg, logger), nil
}

func newS3Exporter(client objectPutter, cfg Config, logger zerolog.Logger) *S3Exporter {
	return &S3Exporter{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.With().Str("component", "export").Str("bucket", cfg.Bucket).Logger(),
	}
}

// ObjectKey returns the key a day report is stored under
func (e *S3Exporter) ObjectKey(day string) string {
	prefix := e.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + day + ".json"
}

// Export uploads report and returns its s3:// location
func (e *S3Exporter) Export(ctx context.Context, report types.DailyReport) (string, error) {
	if report.Date == "" {
		return "", fmt.Errorf("report has no date")
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal report %s: %w", report.Date, err)
	}

	key := e.ObjectKey(report.Date)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	e.logger.Info().
		Str("day", report.Date).
		Str("key", key).
		Int("entities", len(report.Aggregates)).
		Msg("report exported")

	return fmt.Sprintf("s3://%s/%s", e.bucket, key), nil
}
