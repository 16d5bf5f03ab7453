// Package pipeline wires decode, transform, and enrich into the single
// per-event path the receiver calls for every envelope/store item, then
// hands the resulting document to whichever sink (Batcher or distributed
// queue) the deployment is configured with.
package pipeline

import (
	"context"
	"time"

	"github.com/sentrel/sentrel/internal/enrich"
	"github.com/sentrel/sentrel/internal/metrics"
	"github.com/sentrel/sentrel/internal/models"
	"github.com/sentrel/sentrel/internal/sentryevent"
	"github.com/sentrel/sentrel/internal/transform"
)

// Sink is anything that accepts a normalized document for async delivery to
// OpenSearch, whether that's the in-process Batcher or a distributed queue.
type Sink interface {
	Submit(ctx context.Context, doc models.IndexedDocument)
}

// BatcherSink adapts *batcher.Batcher (whose Submit has no error return and
// no context) to the Sink interface.
type BatcherSink struct {
	Submitter interface {
		Submit(doc models.IndexedDocument)
	}
}

// Submit forwards to the underlying batcher, ignoring ctx. The batcher
// buffers in-process, but a submit that fills the batch runs the flush
// callback (and its indexing round-trip) inline before returning.
func (b BatcherSink) Submit(ctx context.Context, doc models.IndexedDocument) {
	b.Submitter.Submit(doc)
}

// QueueSink adapts a distributed queue.Sink (whose Submit can fail) to the
// pipeline's fire-and-forget Sink interface; publish errors are logged by
// the caller-supplied onError hook rather than propagated, matching the
// receiver's "never fail the HTTP response on a downstream hiccup" contract.
type QueueSink struct {
	Submitter interface {
		Submit(ctx context.Context, doc models.IndexedDocument) error
	}
	OnError func(doc models.IndexedDocument, err error)
}

func (q QueueSink) Submit(ctx context.Context, doc models.IndexedDocument) {
	if err := q.Submitter.Submit(ctx, doc); err != nil && q.OnError != nil {
		q.OnError(doc, err)
	}
}

// Pipeline runs one event payload through decode, transform, and enrich,
// then submits the result to the configured sink.
type Pipeline struct {
	enricher *enrich.Enricher
	sink     Sink
}

// New builds a Pipeline. enricher may be nil (GeoIP/UA enrichment
// disabled); sink must not be nil.
func New(enricher *enrich.Enricher, sink Sink) *Pipeline {
	return &Pipeline{enricher: enricher, sink: sink}
}

// Process decodes one event/transaction/store payload, normalizes it into
// the canonical document, enriches it, and submits it downstream. It always
// returns the event id used (decoded, envelope-header, or freshly
// generated) so the caller can build the receiver's {"id": ...} response;
// it never returns an error, since per-item failures are swallowed rather
// than propagated (decode failures just yield a minimal
// placeholder event per sentryevent.Decode's contract).
func (p *Pipeline) Process(ctx context.Context, payload []byte, projectID int, envelopeHeaderID string) string {
	start := time.Now()

	raw := sentryevent.Decode(payload)
	doc := transform.Transform(raw, projectID, envelopeHeaderID)

	if p.enricher != nil {
		doc = p.enricher.Enrich(doc)
	}

	metrics.NormalizationDuration.Observe(time.Since(start).Seconds())

	p.sink.Submit(ctx, doc)
	return doc.EventID
}
