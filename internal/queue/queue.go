// Package queue provides the distributed-queue alternative to the in-process
// batcher: events are published to NATS JetStream instead of being buffered
// and flushed to OpenSearch directly, for deployments that want ingestion
// decoupled from indexing.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sentrel/sentrel/internal/models"
	"github.com/sentrel/sentrel/internal/natsclient"
)

// ErrNotConnected is returned by Ping when the underlying NATS connection
// has dropped.
var ErrNotConnected = fmt.Errorf("nats connection is not established")

// Sink is the contract of a distributed queue backend (JetStreamSink). The
// in-process batcher does not implement it; both paths reach the handlers
// through pipeline.Sink instead.
type Sink interface {
	Submit(ctx context.Context, doc models.IndexedDocument) error
	Stats(ctx context.Context) map[string]interface{}
	Close() error
}

// QueuedEvent is the envelope written to JetStream.
type QueuedEvent struct {
	Document  models.IndexedDocument `json:"document"`
	QueuedAt  time.Time              `json:"queued_at"`
}

// JetStreamSink publishes documents to NATS JetStream for out-of-process
// indexing. Safe for concurrent use across ingestion goroutines.
type JetStreamSink struct {
	js        *natsclient.JetStreamClient
	submitted uint64
}

// NewJetStreamSink provisions the events stream and returns a ready sink.
func NewJetStreamSink(ctx context.Context, js *natsclient.JetStreamClient) (*JetStreamSink, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}

	if _, err := js.CreateOrUpdateStream(ctx, natsclient.EventsStream); err != nil {
		return nil, fmt.Errorf("create events stream: %w", err)
	}

	return &JetStreamSink{js: js}, nil
}

// Submit publishes one document to the project's subject partition and
// blocks until the broker acknowledges the write.
func (s *JetStreamSink) Submit(ctx context.Context, doc models.IndexedDocument) error {
	queued := QueuedEvent{Document: doc, QueuedAt: time.Now().UTC()}

	data, err := json.Marshal(queued)
	if err != nil {
		return fmt.Errorf("marshal queued event: %w", err)
	}

	subject := fmt.Sprintf("sentrel.events.%d", doc.ProjectID)
	if _, err := s.js.PublishSync(ctx, subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	atomic.AddUint64(&s.submitted, 1)
	return nil
}

// Stats reports queue throughput observed by this process.
func (s *JetStreamSink) Stats(ctx context.Context) map[string]interface{} {
	if s == nil {
		return map[string]interface{}{"enabled": false, "backend": "jetstream"}
	}
	return map[string]interface{}{
		"enabled":        true,
		"backend":        "jetstream",
		"submitted_local": atomic.LoadUint64(&s.submitted),
	}
}

// Ping reports whether the broker connection is up, for GET /ready.
func (s *JetStreamSink) Ping(ctx context.Context) error {
	if s == nil || s.js == nil || !s.js.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close releases the underlying NATS connection.
func (s *JetStreamSink) Close() error {
	if s == nil || s.js == nil {
		return nil
	}
	return s.js.Close()
}
