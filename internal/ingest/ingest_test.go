package ingest

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/package-search/internal/errors"
	"github.com/gcbaptista/package-search/internal/metrics"
	"github.com/gcbaptista/package-search/model"
	"github.com/gcbaptista/package-search/store"
)

// fakeReader replays queued messages and then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    atomic.Bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()
	ds := store.NewDocumentStore()
	m := metrics.NewForTest()
	h := NewHandler(ds, m, nil)

	t.Run("upsert", func(t *testing.T) {
		err := h.HandleMessage(ctx, []byte("http"), []byte(`{"name":"http","description":"http client","popularity":0.9}`))
		require.NoError(t, err)

		doc, ok := ds.Get("http")
		require.True(t, ok)
		assert.Equal(t, "http client", doc.Description)
		assert.Equal(t, 0.9, doc.Popularity)
	})

	t.Run("name falls back to key", func(t *testing.T) {
		require.NoError(t, h.HandleMessage(ctx, []byte("path"), []byte(`{"description":"path utils"}`)))
		_, ok := ds.Get("path")
		assert.True(t, ok)
	})

	t.Run("tombstone deletes", func(t *testing.T) {
		require.NoError(t, h.HandleMessage(ctx, []byte("path"), nil))
		_, ok := ds.Get("path")
		assert.False(t, ok)
	})

	t.Run("tombstone for unknown package is ignored", func(t *testing.T) {
		assert.NoError(t, h.HandleMessage(ctx, []byte("never-seen"), nil))
	})

	t.Run("malformed json", func(t *testing.T) {
		err := h.HandleMessage(ctx, []byte("x"), []byte(`{"name":`))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("missing name and key", func(t *testing.T) {
		err := h.HandleMessage(ctx, nil, []byte(`{"description":"anonymous"}`))
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("tombstone without key", func(t *testing.T) {
		err := h.HandleMessage(ctx, nil, nil)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestMessagesTotal.WithLabelValues(OutcomeUpserted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestMessagesTotal.WithLabelValues(OutcomeDeleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestMessagesTotal.WithLabelValues(OutcomeIgnored)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IngestMessagesTotal.WithLabelValues(OutcomeInvalid)))
	assert.Equal(t, int64(3), h.TakePending())
	assert.Equal(t, int64(0), h.TakePending())
}

func TestConsumer_CommitsHandledAndInvalidMessages(t *testing.T) {
	ds := store.NewDocumentStore()
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Key: []byte("http"), Value: []byte(`{"name":"http"}`)},
		{Offset: 2, Key: []byte("bad"), Value: []byte(`not json`)},
		{Offset: 3, Key: []byte("dio"), Value: []byte(`{"name":"dio"}`)},
	}}
	c := NewConsumer(reader, NewHandler(ds, nil, nil), nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.committedOffsets()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	// The malformed message is committed too; it would never apply on a retry.
	assert.Equal(t, []int64{1, 2, 3}, reader.committedOffsets())
	assert.True(t, reader.closed.Load())
	assert.Equal(t, 2, ds.Len())
}

// flakySink fails the first failures store calls with a transient error.
type flakySink struct {
	*store.DocumentStore
	failures atomic.Int32
	calls    atomic.Int32
}

func (s *flakySink) AddPackage(doc model.PackageDocument) error {
	s.calls.Add(1)
	if s.failures.Add(-1) >= 0 {
		return stderrors.New("store unavailable")
	}
	return s.DocumentStore.AddPackage(doc)
}

func TestConsumer_RetriesTransientFailures(t *testing.T) {
	sink := &flakySink{DocumentStore: store.NewDocumentStore()}
	sink.failures.Store(2)
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Key: []byte("http"), Value: []byte(`{"name":"http"}`)},
		{Offset: 2, Key: []byte("dio"), Value: []byte(`{"name":"dio"}`)},
	}}
	m := metrics.NewForTest()
	c := NewConsumer(reader, NewHandler(sink, m, nil), nil, time.Hour)
	c.retryBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.committedOffsets()) == 2 }, 2*time.Second, 5*time.Millisecond)

	// Offset 1 is only committed once it is applied, and before offset 2.
	assert.Equal(t, []int64{1, 2}, reader.committedOffsets())
	assert.Equal(t, int32(4), sink.calls.Load())
	assert.Equal(t, 2, sink.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.IngestMessagesTotal.WithLabelValues(OutcomeInvalid)))
}

func TestConsumer_StopsWhileRetrying(t *testing.T) {
	sink := &flakySink{DocumentStore: store.NewDocumentStore()}
	sink.failures.Store(1 << 30)
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Key: []byte("http"), Value: []byte(`{"name":"http"}`)},
	}}
	c := NewConsumer(reader, NewHandler(sink, nil, nil), nil, time.Hour)
	c.retryBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return sink.calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Empty(t, reader.committedOffsets())
	assert.True(t, reader.closed.Load())
}

func TestConsumer_Flush(t *testing.T) {
	ctx := context.Background()
	ds := store.NewDocumentStore()
	h := NewHandler(ds, nil, nil)

	var rebuilds atomic.Int32
	failNext := atomic.Bool{}
	c := NewConsumer(&fakeReader{}, h, func(context.Context) error {
		rebuilds.Add(1)
		if failNext.Load() {
			return stderrors.New("build failed")
		}
		return nil
	}, time.Hour)

	c.Flush(ctx)
	assert.Equal(t, int32(0), rebuilds.Load(), "nothing pending")

	require.NoError(t, h.HandleMessage(ctx, []byte("http"), []byte(`{"name":"http"}`)))
	failNext.Store(true)
	c.Flush(ctx)
	assert.Equal(t, int32(1), rebuilds.Load())

	// Failed publication keeps the changes pending.
	failNext.Store(false)
	c.Flush(ctx)
	assert.Equal(t, int32(2), rebuilds.Load())

	c.Flush(ctx)
	assert.Equal(t, int32(2), rebuilds.Load())
}

func TestConsumer_PeriodicFlush(t *testing.T) {
	ds := store.NewDocumentStore()
	h := NewHandler(ds, nil, nil)
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 7, Key: []byte("http"), Value: []byte(`{"name":"http"}`)},
	}}

	published := make(chan struct{}, 1)
	c := NewConsumer(reader, h, func(context.Context) error {
		select {
		case published <- struct{}{}:
		default:
		}
		return nil
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Start(ctx) }()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("ingested change was never published")
	}
}
