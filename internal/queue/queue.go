// Package queue buffers usage records between the request path and the
// persistence worker. Two backends: an in-memory channel queue for standalone
// deployments, and a Redis list queue that survives restarts and supports
// distributed workers. Failed batches land in a dead-letter queue after the
// worker exhausts its retries.
package queue

import (
	"context"
	"time"

	"translation_gateway/internal/models"
)

// Queue defines the interface for buffering usage records
type Queue interface {
	// Enqueue adds a record to the queue
	Enqueue(ctx context.Context, record *models.UsageRecord) error

	// Dequeue retrieves records from the queue (up to maxItems)
	// Blocks until at least one record is available or context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]*models.UsageRecord, error)

	// DequeueWithTimeout retrieves records with a timeout
	// Returns records if available before timeout, empty slice otherwise
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.UsageRecord, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue holds records that could not be persisted
type DeadLetterQueue interface {
	// Add adds a failed record with error info
	Add(ctx context.Context, record *models.UsageRecord, err error) error

	// List retrieves items from the dead letter queue
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove removes an item from the dead letter queue
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem represents a record parked in the dead letter queue
type DeadLetterItem struct {
	ID        string              `json:"id"`
	Record    *models.UsageRecord `json:"record"`
	Error     string              `json:"error"`
	Timestamp time.Time           `json:"timestamp"`
	Retries   int                 `json:"retries"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of records to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		QueueName:    queueName,
	}
}
