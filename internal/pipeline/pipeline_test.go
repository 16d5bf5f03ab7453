package pipeline

import (
	"context"
	"testing"

	"github.com/sentrel/sentrel/internal/models"
)

type captureSink struct {
	docs []models.IndexedDocument
}

func (c *captureSink) Submit(ctx context.Context, doc models.IndexedDocument) {
	c.docs = append(c.docs, doc)
}

func TestProcessDecodesTransformsAndSubmits(t *testing.T) {
	sink := &captureSink{}
	p := New(nil, sink)

	payload := []byte(`{"event_id":"abc123","message":"hello","level":"warning"}`)
	id := p.Process(context.Background(), payload, 7, "fallback-header-id")

	if id != "abc123" {
		t.Fatalf("expected event id abc123, got %q", id)
	}
	if len(sink.docs) != 1 {
		t.Fatalf("expected one document submitted, got %d", len(sink.docs))
	}
	if sink.docs[0].ProjectID != 7 {
		t.Fatalf("expected project id 7, got %d", sink.docs[0].ProjectID)
	}
	if sink.docs[0].Message != "hello" {
		t.Fatalf("expected message to survive transform, got %q", sink.docs[0].Message)
	}
}

func TestProcessFallsBackToEnvelopeHeaderID(t *testing.T) {
	sink := &captureSink{}
	p := New(nil, sink)

	payload := []byte(`{"message":"no id here"}`)
	id := p.Process(context.Background(), payload, 1, "header-id-789")

	if id != "header-id-789" {
		t.Fatalf("expected fallback to envelope header id, got %q", id)
	}
}

func TestBatcherSinkForwardsSubmit(t *testing.T) {
	var got *models.IndexedDocument
	fake := fakeSubmitter{fn: func(doc models.IndexedDocument) { got = &doc }}

	sink := BatcherSink{Submitter: fake}
	sink.Submit(context.Background(), models.IndexedDocument{EventID: "x"})

	if got == nil || got.EventID != "x" {
		t.Fatalf("expected batcher sink to forward submit, got %+v", got)
	}
}

type fakeSubmitter struct {
	fn func(doc models.IndexedDocument)
}

func (f fakeSubmitter) Submit(doc models.IndexedDocument) {
	f.fn(doc)
}

func TestQueueSinkInvokesOnErrorOnFailure(t *testing.T) {
	var gotErr error
	fake := fakeQueueSubmitter{err: errBoom}

	sink := QueueSink{
		Submitter: fake,
		OnError:   func(doc models.IndexedDocument, err error) { gotErr = err },
	}
	sink.Submit(context.Background(), models.IndexedDocument{EventID: "x"})

	if gotErr != errBoom {
		t.Fatalf("expected OnError to receive submit error, got %v", gotErr)
	}
}

type fakeQueueSubmitter struct {
	err error
}

func (f fakeQueueSubmitter) Submit(ctx context.Context, doc models.IndexedDocument) error {
	return f.err
}

func TestQueueSinkSucceedsSilentlyWhenSubmitSucceeds(t *testing.T) {
	fake := fakeQueueSubmitter{err: nil}

	sink := QueueSink{
		Submitter: fake,
		OnError:   func(doc models.IndexedDocument, err error) { t.Fatal("unexpected OnError") },
	}
	sink.Submit(context.Background(), models.IndexedDocument{EventID: "x"})
}

var errBoom = errBoomType{}

type errBoomType struct{}

func (errBoomType) Error() string { return "boom" }
