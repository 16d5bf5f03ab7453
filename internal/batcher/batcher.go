// Package batcher implements the Batcher (C7): a mutex-guarded buffer of
// IndexedDocuments that flushes on size or time thresholds and hands the
// accumulated batch off to a supplied callback (in the default wiring,
// the Indexer's bulk write).
package batcher

import (
	"sync"
	"time"

	"github.com/sentrel/sentrel/internal/logging"
	"github.com/sentrel/sentrel/internal/metrics"
	"github.com/sentrel/sentrel/internal/models"
)

// FlushFunc processes one flushed batch. A failure should be logged by the
// callback itself; the Batcher does not re-enqueue on failure, since it is
// not a durable queue (see internal/queue for the durable alternative).
type FlushFunc func(docs []models.IndexedDocument)

// Batcher accumulates documents and flushes them on size or time triggers.
type Batcher struct {
	batchSize     int
	batchTimeout  time.Duration
	flush         FlushFunc
	log           *logging.Logger

	mu            sync.Mutex
	buffer        []models.IndexedDocument
	firstEventAt  time.Time

	stopCh   chan struct{}
	stopped  chan struct{}
	running  bool
	runMu    sync.Mutex
}

// New constructs a Batcher with the given thresholds and flush callback.
func New(batchSize int, batchTimeout time.Duration, flush FlushFunc, log *logging.Logger) *Batcher {
	return &Batcher{
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		flush:        flush,
		log:          log,
	}
}

// Start launches the 1Hz background timer that triggers timeout-based
// flushes. Safe to call once; a second call is a no-op.
func (b *Batcher) Start() {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.stopped = make(chan struct{})

	go b.flushLoop()
}

// Submit enqueues a document. If the buffer reaches batchSize, it flushes
// inline before returning.
func (b *Batcher) Submit(doc models.IndexedDocument) {
	b.mu.Lock()
	b.buffer = append(b.buffer, doc)
	if b.firstEventAt.IsZero() {
		b.firstEventAt = time.Now()
	}
	shouldFlush := len(b.buffer) >= b.batchSize
	b.mu.Unlock()

	metrics.BufferDepth.Set(float64(b.len()))

	if shouldFlush {
		b.doFlush("size")
	}
}

func (b *Batcher) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Flush immediately drains the buffer and returns the number of documents
// handed off.
func (b *Batcher) Flush() int {
	return b.doFlush("manual")
}

func (b *Batcher) doFlush(trigger string) int {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return 0
	}
	docs := b.buffer
	b.buffer = nil
	b.firstEventAt = time.Time{}
	b.mu.Unlock()

	metrics.BufferDepth.Set(0)
	metrics.BatchFlushTotal.WithLabelValues(trigger).Inc()
	metrics.BatchSize.Observe(float64(len(docs)))

	if b.flush != nil {
		// Runs outside the lock so a slow indexer round-trip doesn't block
		// concurrent Submit calls.
		func() {
			defer func() {
				if r := recover(); r != nil && b.log != nil {
					b.log.Error("batch flush callback panicked", "panic", r)
				}
			}()
			b.flush(docs)
		}()
	}

	return len(docs)
}

func (b *Batcher) flushLoop() {
	defer close(b.stopped)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.mu.Lock()
			due := !b.firstEventAt.IsZero() && time.Since(b.firstEventAt) >= b.batchTimeout
			b.mu.Unlock()
			if due {
				b.doFlush("timeout")
			}
		}
	}
}

// Stop cancels the timer and performs one final flush, returning only
// after the flush completes.
func (b *Batcher) Stop() {
	b.runMu.Lock()
	if !b.running {
		b.runMu.Unlock()
		b.doFlush("shutdown")
		return
	}
	b.running = false
	close(b.stopCh)
	b.runMu.Unlock()

	<-b.stopped
	b.doFlush("shutdown")
}
