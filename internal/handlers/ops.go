package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sentrel/sentrel/internal/ack"
	"github.com/sentrel/sentrel/internal/httputil"
	"github.com/sentrel/sentrel/internal/models"
)

// IndexPinger is satisfied by *indexer.Indexer, narrowed to the one call
// readiness needs.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// StatsSource is satisfied by *indexer.Indexer.
type StatsSource interface {
	Stats(ctx context.Context) (models.IngestionStats, error)
}

// QueuePinger is satisfied by a queue backend that exposes a broker health
// check; nil when the deployment runs batcher-only.
type QueuePinger interface {
	Ping(ctx context.Context) error
}

// AckLister is satisfied by *ack.Manager; nil when the deployment runs
// batcher-only and has nothing to track acks for.
type AckLister interface {
	List() []ack.Ack
}

// Ops serves the operational surface: /health, /ready, /stats, /acks.
type Ops struct {
	indexer IndexPinger
	stats   StatsSource
	queue   QueuePinger
	acks    AckLister
}

// NewOps builds an Ops handler. queue and acks may be nil (batcher-only
// deployments have nothing to ping or track besides OpenSearch).
func NewOps(indexer IndexPinger, stats StatsSource, queue QueuePinger, acks AckLister) *Ops {
	return &Ops{indexer: indexer, stats: stats, queue: queue, acks: acks}
}

// Health always returns 200 while the process is up.
func (o *Ops) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready returns 200 only if OpenSearch is reachable (green/yellow) and, if a
// queue backend is configured, its broker also responds.
func (o *Ops) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	ok := true

	if o.indexer != nil {
		if err := o.indexer.Ping(ctx); err != nil {
			checks["opensearch"] = err.Error()
			ok = false
		} else {
			checks["opensearch"] = "ok"
		}
	}

	if o.queue != nil {
		if err := o.queue.Ping(ctx); err != nil {
			checks["queue"] = err.Error()
			ok = false
		} else {
			checks["queue"] = "ok"
		}
	}

	status := http.StatusOK
	statusText := "ready"
	if !ok {
		status = http.StatusServiceUnavailable
		statusText = "not_ready"
	}
	httputil.WriteJSON(w, status, map[string]interface{}{
		"status": statusText,
		"checks": checks,
	})
}

// Stats returns index counts and sizes per GET /stats.
func (o *Ops) Stats(w http.ResponseWriter, r *http.Request) {
	if o.stats == nil {
		httputil.WriteJSON(w, http.StatusOK, models.IngestionStats{Indices: []models.IndexStat{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := o.stats.Stats(ctx)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// ackView is the JSON shape returned by GET /acks: an ack.Ack with Status
// rendered as a string instead of its internal int representation.
type ackView struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	EventIDs  []string  `json:"event_ids"`
	Timestamp time.Time `json:"timestamp"`
}

// Acks lists every currently tracked queue-backend acknowledgement, for
// internal tooling auditing whether queued submissions were accepted by the
// broker.
// Not part of the Sentry-compatible ingestion surface.
func (o *Ops) Acks(w http.ResponseWriter, r *http.Request) {
	if o.acks == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"acks": []ackView{}})
		return
	}

	tracked := o.acks.List()
	views := make([]ackView, 0, len(tracked))
	for _, a := range tracked {
		views = append(views, ackView{
			ID:        a.ID,
			Status:    a.Status.String(),
			EventIDs:  a.EventIDs,
			Timestamp: a.Timestamp,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"acks": views})
}
