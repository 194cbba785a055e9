// Package usage records what every admitted request actually did: characters
// translated, provider cost, cache hit or miss. Records are enqueued off the
// request path and persisted in batches by a background worker.
package usage

import (
	"context"
	"time"

	"translation_gateway/internal/models"
	"translation_gateway/internal/queue"
	"translation_gateway/internal/utils"
)

// Emitter hands usage records to the queue. Failures are logged and dropped;
// usage accounting never blocks or fails a translation.
type Emitter struct {
	queue  queue.Queue
	logger *utils.Logger
}

// NewEmitter creates an emitter over the given queue.
func NewEmitter(q queue.Queue) *Emitter {
	return &Emitter{
		queue:  q,
		logger: utils.NewLogger("usage"),
	}
}

// Emit enqueues a record, detached from the request's context so a cancelled
// request still gets billed for work already done.
func (e *Emitter) Emit(record *models.UsageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := e.queue.Enqueue(ctx, record); err != nil {
		e.logger.Error("Failed to enqueue usage record", "request_id", record.RequestID, "error", err)
	}
}
