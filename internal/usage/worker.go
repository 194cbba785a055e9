package usage

import (
	"context"
	"fmt"
	"time"

	"translation_gateway/internal/models"
	"translation_gateway/internal/queue"
	"translation_gateway/internal/utils"
)

// Store persists usage records. Implemented by storage.UsageRepository.
type Store interface {
	Create(ctx context.Context, record *models.UsageRecord) error
	CreateBatch(ctx context.Context, records []*models.UsageRecord) error
}

// SpendLedger settles provider cost against durable workspace counters.
// Implemented by storage.QuotaRepository.
type SpendLedger interface {
	ApplySpend(ctx context.Context, workspaceID string, costUSD float64) error
}

// Archiver ships persisted records to long-term storage. Optional.
type Archiver interface {
	WriteBatch(ctx context.Context, records []*models.UsageRecord) (string, error)
}

// Worker drains the usage queue in batches. A failed batch insert falls back
// to individual inserts with retries; records that still fail move to the
// dead letter queue.
type Worker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	store       Store
	ledger      SpendLedger
	archiver    Archiver
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewWorker creates a usage worker. ledger and archiver may be nil.
func NewWorker(q queue.Queue, dlq queue.DeadLetterQueue, store Store, ledger SpendLedger, archiver Archiver, config *queue.Config) *Worker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}

	return &Worker{
		queue:       q,
		dlq:         dlq,
		store:       store,
		ledger:      ledger,
		archiver:    archiver,
		config:      config,
		logger:      utils.NewLogger("usage-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// run is the main worker loop
func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Usage worker stopping")
			w.drain()
			return
		case <-ctx.Done():
			w.logger.Info("Usage worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// drain flushes records still buffered in the queue so completed requests
// are not lost across a restart. Runs on a detached bounded context because
// the loop context may already be gone during shutdown.
func (w *Worker) drain() {
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for {
		records, err := w.queue.DequeueWithTimeout(drainCtx, w.config.BatchSize, 50*time.Millisecond)
		if err != nil || len(records) == 0 {
			return
		}
		w.persist(drainCtx, records)
	}
}

// processBatch drains and persists one batch
func (w *Worker) processBatch(ctx context.Context) {
	records, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("Failed to dequeue usage records", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(records) == 0 {
		return
	}

	w.persist(ctx, records)
}

// persist writes one batch, falling back to individual inserts, then settles
// spend and archives whatever made it to the store.
func (w *Worker) persist(ctx context.Context, records []*models.UsageRecord) {
	w.logger.Debug("Processing usage batch", "count", len(records))

	persisted := records
	if err := w.store.CreateBatch(ctx, records); err != nil {
		w.logger.Error("Failed to insert batch, falling back to individual inserts", "error", err)
		persisted = make([]*models.UsageRecord, 0, len(records))
		for _, record := range records {
			if err := w.processRecord(ctx, record); err != nil {
				w.logger.Error("Failed to process usage record", "request_id", record.RequestID, "error", err)
				continue
			}
			persisted = append(persisted, record)
		}
	}

	if len(persisted) == 0 {
		return
	}

	w.settleSpend(ctx, persisted)
	w.archive(ctx, persisted)
}

// processRecord inserts a single record with retries, parking it in the DLQ
// when retries run out
func (w *Worker) processRecord(ctx context.Context, record *models.UsageRecord) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying usage record", "attempt", attempt, "backoff", backoff)
			time.Sleep(backoff)
		}

		if err := w.store.Create(ctx, record); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, record, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Usage record moved to DLQ", "request_id", record.RequestID, "error", lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// settleSpend folds provider cost into the durable workspace counters.
// Cache hits carry no provider cost and are skipped.
func (w *Worker) settleSpend(ctx context.Context, records []*models.UsageRecord) {
	if w.ledger == nil {
		return
	}

	totals := make(map[string]float64)
	for _, record := range records {
		if record.CacheHit || record.CostUSD == 0 {
			continue
		}
		totals[record.WorkspaceID] += record.CostUSD
	}

	for workspaceID, cost := range totals {
		if err := w.ledger.ApplySpend(ctx, workspaceID, cost); err != nil {
			w.logger.Error("Failed to settle spend", "workspace", workspaceID, "cost_usd", cost, "error", err)
		}
	}
}

// archive ships the batch to long-term storage, best effort
func (w *Worker) archive(ctx context.Context, records []*models.UsageRecord) {
	if w.archiver == nil {
		return
	}

	key, err := w.archiver.WriteBatch(ctx, records)
	if err != nil {
		w.logger.Error("Failed to archive usage batch", "error", err)
		return
	}
	w.logger.Debug("Archived usage batch", "key", key, "count", len(records))
}

// QueueLength returns the current queue length
func (w *Worker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems returns items from the dead letter queue
func (w *Worker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a parked record
func (w *Worker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}

		if err := w.queue.Enqueue(ctx, dlItem.Record); err != nil {
			return fmt.Errorf("failed to re-enqueue record: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
