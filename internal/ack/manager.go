// Package ack tracks completion of events submitted to the distributed
// queue backend. It has no role in the synchronous Sentry HTTP contract —
// the client always gets an immediate {"id": ...} response — this exists so
// internal tooling can see whether a queued submission was accepted by the
// broker. Indexing happens out-of-process and is not tracked here.
package ack

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentrel/sentrel/internal/metrics"
)

// Status is the lifecycle state of a tracked submission.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailed
)

// String renders a Status for JSON/log output.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Ack records one batch of events submitted to the queue.
type Ack struct {
	ID        string
	Status    Status
	Timestamp time.Time
	EventIDs  []string
}

// Manager is an in-memory, TTL-expiring table of Acks. Not durable across
// restarts; a process crash loses pending acknowledgement state, which is
// acceptable since the queue itself is the durable record.
type Manager struct {
	mu        sync.RWMutex
	acks      map[string]*Ack
	ttl       time.Duration
	cleanupCh chan struct{}
}

// NewManager starts a Manager with a background goroutine that expires
// entries older than ttl once a minute.
func NewManager(ttl time.Duration) *Manager {
	m := &Manager{
		acks:      make(map[string]*Ack),
		ttl:       ttl,
		cleanupCh: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Create registers a new pending acknowledgement for a batch of event IDs
// and returns its ID.
func (m *Manager) Create(eventIDs []string) string {
	id := uuid.New().String()

	m.mu.Lock()
	m.acks[id] = &Ack{ID: id, Status: StatusPending, Timestamp: time.Now(), EventIDs: eventIDs}
	m.mu.Unlock()

	metrics.AcksPending.Inc()
	return id
}

// Complete marks an acknowledgement as successful (in the default wiring:
// the broker acknowledged the publish).
func (m *Manager) Complete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ack, ok := m.acks[id]; ok && ack.Status == StatusPending {
		ack.Status = StatusSuccess
		ack.Timestamp = time.Now()
		metrics.AcksPending.Dec()
		metrics.AcksCompleted.Inc()
	}
}

// Fail marks an acknowledgement as failed.
func (m *Manager) Fail(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ack, ok := m.acks[id]; ok && ack.Status == StatusPending {
		ack.Status = StatusFailed
		ack.Timestamp = time.Now()
		metrics.AcksPending.Dec()
	}
}

// Query reports, for each requested ID that's still tracked, whether it
// completed successfully. IDs with no tracked entry are omitted.
func (m *Manager) Query(ids []string) map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		if ack, ok := m.acks[id]; ok {
			result[id] = ack.Status == StatusSuccess
		}
	}
	return result
}

// List returns a snapshot of every currently tracked ack, so internal
// tooling can audit queue submissions without needing to already know
// specific ack IDs (see GET /acks).
func (m *Manager) List() []Ack {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Ack, 0, len(m.acks))
	for _, a := range m.acks {
		out = append(out, *a)
	}
	return out
}

// Pending returns the number of acknowledgements still awaiting completion.
func (m *Manager) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, ack := range m.acks {
		if ack.Status == StatusPending {
			count++
		}
	}
	return count
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.cleanupCh:
			return
		}
	}
}

func (m *Manager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.ttl)
	for id, ack := range m.acks {
		if ack.Timestamp.Before(cutoff) {
			if ack.Status == StatusPending {
				metrics.AcksPending.Dec()
			}
			delete(m.acks, id)
		}
	}
}

// Close stops the background cleanup goroutine.
func (m *Manager) Close() {
	close(m.cleanupCh)
}
