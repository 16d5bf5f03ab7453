package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sentrel/sentrel/internal/models"
)

func TestNilSinkStatsReportsDisabled(t *testing.T) {
	var s *JetStreamSink
	stats := s.Stats(nil)

	if stats["enabled"] != false {
		t.Fatalf("expected nil sink to report disabled, got %+v", stats)
	}
	if stats["backend"] != "jetstream" {
		t.Fatalf("expected backend=jetstream, got %+v", stats)
	}
}

func TestNilSinkCloseIsNoop(t *testing.T) {
	var s *JetStreamSink
	if err := s.Close(); err != nil {
		t.Fatalf("expected nil sink close to be a no-op, got %v", err)
	}
}

func TestNilSinkPingFails(t *testing.T) {
	var s *JetStreamSink
	if err := s.Ping(nil); err == nil {
		t.Fatal("expected nil sink ping to fail")
	}
}

func TestNewJetStreamSinkRejectsNilClient(t *testing.T) {
	_, err := NewJetStreamSink(nil, nil)
	if err == nil {
		t.Fatal("expected error when jetstream client is nil")
	}
}

func TestQueuedEventRoundTripsJSON(t *testing.T) {
	doc := models.IndexedDocument{EventID: "abc", ProjectID: 7}
	queued := QueuedEvent{Document: doc, QueuedAt: time.Unix(1700000000, 0).UTC()}

	data, err := json.Marshal(queued)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded QueuedEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.Document.EventID != "abc" || decoded.Document.ProjectID != 7 {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}
