package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisQueue(t *testing.T) (*RedisQueue, *RedisDeadLetterQueue) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := DefaultConfig("usage-test")
	q, err := NewRedisQueue(client, cfg)
	require.NoError(t, err)

	dlq, err := NewRedisDeadLetterQueue(client, cfg)
	require.NoError(t, err)

	return q, dlq
}

func TestRedisQueueEnqueueDequeue(t *testing.T) {
	q, _ := newTestRedisQueue(t)

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testRecord("ws-1")))
	require.NoError(t, q.Enqueue(ctx, testRecord("ws-2")))

	records, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ws-1", records[0].WorkspaceID)
	assert.Equal(t, "ws-2", records[1].WorkspaceID)
	assert.Equal(t, 42, records[0].Characters)
}

func TestRedisQueueDequeueRespectsMaxItems(t *testing.T) {
	q, _ := newTestRedisQueue(t)

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

func TestRedisQueueDequeueWithTimeoutEmpty(t *testing.T) {
	q, _ := newTestRedisQueue(t)

	records, err := q.DequeueWithTimeout(context.Background(), 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRedisQueueSurvivesReconnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := DefaultConfig("usage-persist")
	q, err := NewRedisQueue(client, cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testRecord("ws-1")))
	require.NoError(t, q.Close())

	// A fresh queue instance over the same backing list sees the record.
	q2, err := NewRedisQueue(client, cfg)
	require.NoError(t, err)

	records, err := q2.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ws-1", records[0].WorkspaceID)
}

func TestRedisDeadLetterQueue(t *testing.T) {
	_, dlq := newTestRedisQueue(t)

	ctx := context.Background()
	require.NoError(t, dlq.Add(ctx, testRecord("ws-1"), errors.New("insert failed")))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "insert failed", items[0].Error)
	assert.Equal(t, "ws-1", items[0].Record.WorkspaceID)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))

	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}
