package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"translation_gateway/internal/models"
	"translation_gateway/internal/utils"
)

// S3Archiver ships persisted usage batches to S3 as JSON Lines files, one
// object per batch.
type S3Archiver struct {
	client   *s3.Client
	bucket   string
	prefix   string
	instance string
	logger   *utils.Logger
}

// NewS3Archiver creates an S3 archiver. instance names this gateway replica
// so concurrent writers never collide on keys.
func NewS3Archiver(ctx context.Context, bucket, region, prefix, instance string) (*S3Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Archiver{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		prefix:   prefix,
		instance: instance,
		logger:   utils.NewLogger("s3-archiver"),
	}, nil
}

// WriteBatch uploads a batch of usage records and returns the object key.
// Key layout: usage/2026/08/29/gateway-0-20260829-143022-123456789.jsonl
func (a *S3Archiver) WriteBatch(ctx context.Context, records []*models.UsageRecord) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	now := time.Now()
	key := fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		a.prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		a.instance,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			a.logger.Error("Failed to encode record", "request_id", record.RequestID, "error", err)
			continue
		}
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	a.logger.Info("Wrote usage batch to S3", "key", key, "count", len(records), "bytes", buf.Len())
	return key, nil
}
