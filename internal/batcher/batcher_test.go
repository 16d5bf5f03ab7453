package batcher

import (
	"sync"
	"testing"
	"time"

	"github.com/sentrel/sentrel/internal/logging"
	"github.com/sentrel/sentrel/internal/models"
)

func TestSubmitFlushesAtBatchSize(t *testing.T) {
	var mu sync.Mutex
	var flushed [][]models.IndexedDocument

	b := New(3, time.Hour, func(docs []models.IndexedDocument) {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, docs)
	}, logging.Default())

	for i := 0; i < 3; i++ {
		b.Submit(models.IndexedDocument{EventID: "e"})
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 1 || len(flushed[0]) != 3 {
		t.Fatalf("expected one flush of 3 docs, got %+v", flushed)
	}
}

func TestSubmitBelowBatchSizeDoesNotFlush(t *testing.T) {
	flushCount := 0
	b := New(10, time.Hour, func(docs []models.IndexedDocument) {
		flushCount++
	}, logging.Default())

	b.Submit(models.IndexedDocument{EventID: "e"})

	if flushCount != 0 {
		t.Fatalf("expected no flush below batch size, got %d", flushCount)
	}
	if b.len() != 1 {
		t.Fatalf("expected buffered document, got len=%d", b.len())
	}
}

func TestManualFlushDrainsBuffer(t *testing.T) {
	var got []models.IndexedDocument
	b := New(100, time.Hour, func(docs []models.IndexedDocument) {
		got = docs
	}, logging.Default())

	b.Submit(models.IndexedDocument{EventID: "a"})
	b.Submit(models.IndexedDocument{EventID: "b"})

	n := b.Flush()
	if n != 2 {
		t.Fatalf("expected flush count 2, got %d", n)
	}
	if len(got) != 2 {
		t.Fatalf("expected callback to receive 2 docs, got %d", len(got))
	}
	if b.len() != 0 {
		t.Fatalf("expected buffer empty after flush, got len=%d", b.len())
	}
}

func TestFlushOnEmptyBufferIsNoop(t *testing.T) {
	called := false
	b := New(10, time.Hour, func(docs []models.IndexedDocument) {
		called = true
	}, logging.Default())

	n := b.Flush()
	if n != 0 || called {
		t.Fatalf("expected flush on empty buffer to be a no-op, got n=%d called=%v", n, called)
	}
}

func TestStopPerformsFinalFlush(t *testing.T) {
	var mu sync.Mutex
	flushedCount := 0

	b := New(100, time.Hour, func(docs []models.IndexedDocument) {
		mu.Lock()
		defer mu.Unlock()
		flushedCount += len(docs)
	}, logging.Default())

	b.Start()
	b.Submit(models.IndexedDocument{EventID: "a"})
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	if flushedCount != 1 {
		t.Fatalf("expected final flush to deliver buffered doc, got %d", flushedCount)
	}
}

func TestTimeoutTriggersFlush(t *testing.T) {
	done := make(chan struct{})
	b := New(100, 50*time.Millisecond, func(docs []models.IndexedDocument) {
		close(done)
	}, logging.Default())

	b.Start()
	defer b.Stop()
	b.Submit(models.IndexedDocument{EventID: "a"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected timeout-triggered flush")
	}
}

func TestPanicInFlushCallbackDoesNotCrash(t *testing.T) {
	b := New(1, time.Hour, func(docs []models.IndexedDocument) {
		panic("boom")
	}, logging.Default())

	b.Submit(models.IndexedDocument{EventID: "a"})
}
