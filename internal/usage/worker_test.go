package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translation_gateway/internal/models"
	"translation_gateway/internal/queue"
)

type fakeStore struct {
	mu          sync.Mutex
	records     []*models.UsageRecord
	batchErr    error
	createFails int
}

func (s *fakeStore) Create(ctx context.Context, record *models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createFails > 0 {
		s.createFails--
		return errors.New("insert failed")
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeStore) CreateBatch(ctx context.Context, records []*models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return s.batchErr
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeLedger struct {
	mu     sync.Mutex
	totals map[string]float64
}

func (l *fakeLedger) ApplySpend(ctx context.Context, workspaceID string, costUSD float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.totals == nil {
		l.totals = make(map[string]float64)
	}
	l.totals[workspaceID] += costUSD
	return nil
}

func (l *fakeLedger) total(workspaceID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[workspaceID]
}

func fastConfig() *queue.Config {
	cfg := queue.DefaultConfig("usage-test")
	cfg.BatchTimeout = 20 * time.Millisecond
	cfg.RetryBackoff = 1 * time.Millisecond
	return cfg
}

func record(workspaceID string, cost float64, cacheHit bool) *models.UsageRecord {
	return &models.UsageRecord{
		WorkspaceID: workspaceID,
		UserID:      "u-1",
		Provider:    "deepl",
		SourceLang:  "en",
		TargetLang:  "fr",
		Characters:  100,
		CostUSD:     cost,
		CacheHit:    cacheHit,
	}
}

func TestWorkerPersistsBatch(t *testing.T) {
	cfg := fastConfig()
	q := queue.NewMemoryQueue(cfg)
	store := &fakeStore{}
	ledger := &fakeLedger{}

	w := NewWorker(q, queue.NewMemoryDeadLetterQueue(), store, ledger, nil, cfg)
	w.Start(context.Background())
	defer w.Stop()

	emitter := NewEmitter(q)
	emitter.Emit(record("ws-1", 0.002, false))
	emitter.Emit(record("ws-1", 0.003, false))
	emitter.Emit(record("ws-1", 0, true))

	require.Eventually(t, func() bool {
		return store.count() == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return ledger.total("ws-1") > 0.0049 && ledger.total("ws-1") < 0.0051
	}, 2*time.Second, 10*time.Millisecond, "cache hits must not contribute spend")
}

func TestWorkerFallsBackToIndividualInserts(t *testing.T) {
	cfg := fastConfig()
	q := queue.NewMemoryQueue(cfg)
	store := &fakeStore{batchErr: errors.New("batch failed")}

	w := NewWorker(q, queue.NewMemoryDeadLetterQueue(), store, nil, nil, cfg)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, q.Enqueue(context.Background(), record("ws-1", 0.002, false)))
	require.NoError(t, q.Enqueue(context.Background(), record("ws-2", 0.001, false)))

	require.Eventually(t, func() bool {
		return store.count() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerParksExhaustedRecordsInDLQ(t *testing.T) {
	cfg := fastConfig()
	q := queue.NewMemoryQueue(cfg)
	dlq := queue.NewMemoryDeadLetterQueue()
	// Batch fails, then every individual retry fails too.
	store := &fakeStore{batchErr: errors.New("batch failed"), createFails: cfg.MaxRetries + 1}

	w := NewWorker(q, dlq, store, nil, nil, cfg)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, q.Enqueue(context.Background(), record("ws-1", 0.002, false)))

	require.Eventually(t, func() bool {
		items, err := dlq.List(context.Background(), 0)
		return err == nil && len(items) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerRetryDeadLetterItem(t *testing.T) {
	cfg := fastConfig()
	q := queue.NewMemoryQueue(cfg)
	dlq := queue.NewMemoryDeadLetterQueue()
	store := &fakeStore{batchErr: errors.New("batch failed"), createFails: cfg.MaxRetries + 1}

	w := NewWorker(q, dlq, store, nil, nil, cfg)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, q.Enqueue(context.Background(), record("ws-1", 0.002, false)))

	var itemID string
	require.Eventually(t, func() bool {
		items, err := dlq.List(context.Background(), 0)
		if err != nil || len(items) != 1 {
			return false
		}
		itemID = items[0].ID
		return true
	}, 2*time.Second, 10*time.Millisecond)

	// The store works again; retrying drains the DLQ back through the queue.
	require.NoError(t, w.RetryDeadLetterItem(context.Background(), itemID))

	require.Eventually(t, func() bool {
		return store.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	items, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = w.RetryDeadLetterItem(context.Background(), "missing")
	assert.ErrorIs(t, err, queue.ErrItemNotFound)
}

func TestWorkerDrainFlushesBufferedRecords(t *testing.T) {
	cfg := fastConfig()
	q := queue.NewMemoryQueue(cfg)
	store := &fakeStore{}
	ledger := &fakeLedger{}

	w := NewWorker(q, queue.NewMemoryDeadLetterQueue(), store, ledger, nil, cfg)

	require.NoError(t, q.Enqueue(context.Background(), record("ws-1", 0.002, false)))
	require.NoError(t, q.Enqueue(context.Background(), record("ws-1", 0.001, false)))

	// The loop never ran; drain alone must flush what is buffered.
	w.drain()

	assert.Equal(t, 2, store.count())
	assert.InDelta(t, 0.003, ledger.total("ws-1"), 1e-9)
}

func TestWorkerStopFlushesBeforeReturning(t *testing.T) {
	cfg := fastConfig()
	q := queue.NewMemoryQueue(cfg)
	store := &fakeStore{}

	w := NewWorker(q, queue.NewMemoryDeadLetterQueue(), store, nil, nil, cfg)
	w.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), record("ws-1", 0.001, false)))
	}

	require.NoError(t, w.Stop())

	// Once Stop has returned, every enqueued record is in the store.
	assert.Equal(t, 5, store.count())

	length, err := q.Length(context.Background())
	require.NoError(t, err)
	assert.Zero(t, length)
}
