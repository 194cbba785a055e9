package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translation_gateway/internal/models"
)

func testRecord(workspaceID string) *models.UsageRecord {
	return &models.UsageRecord{
		WorkspaceID: workspaceID,
		UserID:      "u-1",
		Provider:    "deepl",
		SourceLang:  "en",
		TargetLang:  "de",
		Characters:  42,
		CostUSD:     0.002,
	}
}

func TestMemoryQueueEnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testRecord("ws-1")))
	require.NoError(t, q.Enqueue(ctx, testRecord("ws-2")))

	records, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ws-1", records[0].WorkspaceID)
	assert.Equal(t, "ws-2", records[1].WorkspaceID)
}

func TestMemoryQueueDequeueRespectsMaxItems(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, testRecord(fmt.Sprintf("ws-%d", i))))
	}

	records, err := q.Dequeue(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, length)
}

func TestMemoryQueueDequeueWithTimeoutEmpty(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	start := time.Now()
	records, err := q.DequeueWithTimeout(context.Background(), 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestMemoryQueueClosed(t *testing.T) {
	q := NewMemoryQueue(nil)
	require.NoError(t, q.Close())

	err := q.Enqueue(context.Background(), testRecord("ws-1"))
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, err = q.Length(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryQueueDequeueCancelled(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := q.Dequeue(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()

	ctx := context.Background()
	require.NoError(t, dlq.Add(ctx, testRecord("ws-1"), errors.New("insert failed")))
	require.NoError(t, dlq.Add(ctx, testRecord("ws-2"), errors.New("insert failed")))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "insert failed", items[0].Error)
	assert.Equal(t, "ws-1", items[0].Record.WorkspaceID)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))

	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	err = dlq.Remove(ctx, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}
