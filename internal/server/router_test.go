package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"log/slog"

	"github.com/sentrel/sentrel/internal/dsn"
	"github.com/sentrel/sentrel/internal/enrich"
	"github.com/sentrel/sentrel/internal/handlers"
	"github.com/sentrel/sentrel/internal/logging"
	"github.com/sentrel/sentrel/internal/middleware"
	"github.com/sentrel/sentrel/internal/models"
	"github.com/sentrel/sentrel/internal/pipeline"
	"github.com/sentrel/sentrel/internal/ratelimit"
)

type fakeIndexPinger struct{ err error }

func (f fakeIndexPinger) Ping(ctx context.Context) error { return f.err }
func (f fakeIndexPinger) Stats(ctx context.Context) (models.IngestionStats, error) {
	return models.IngestionStats{Indices: []models.IndexStat{}}, nil
}

func newTestRouter() http.Handler {
	recv := handlers.NewReceiver(
		handlers.ReceiverConfig{AuthPolicy: dsn.Policy{}},
		pipeline.New(enrich.New(nil), pipeline.BatcherSink{Submitter: noopBatcher{}}),
		ratelimit.NoOpLimiter{},
		logging.New(slog.LevelError, "json"),
	)
	pinger := fakeIndexPinger{}
	ops := handlers.NewOps(pinger, pinger, nil, nil)
	return NewRouter(recv, ops, middleware.CORSConfig{AllowedOrigins: []string{"*"}})
}

type noopBatcher struct{}

func (noopBatcher) Submit(doc models.IndexedDocument) {}

func TestRouterHealthIsReachable(t *testing.T) {
	h := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterMetricsIsReachable(t *testing.T) {
	h := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterProjectProbeFallsThroughGet(t *testing.T) {
	h := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/1/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for project probe, got %d", rec.Code)
	}
}

func TestRouterEnvelopeRouteDispatches(t *testing.T) {
	h := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/api/1/envelope/", nil)
	req.Header.Set("X-Sentry-Auth", "Sentry sentry_key=abc, sentry_version=7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code == http.StatusNotFound {
		t.Fatalf("expected envelope route to dispatch, got 404")
	}
}

func TestRouterUnknownRouteIs404(t *testing.T) {
	h := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/api/1/nonsense/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unrecognized route, got %d", rec.Code)
	}
}

func TestRouterAcksIsReachable(t *testing.T) {
	h := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/acks", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"acks"`) {
		t.Fatalf("expected acks key in body, got %s", rec.Body.String())
	}
}

func TestRouterRequestIDHeaderIsSet(t *testing.T) {
	h := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header to be set")
	}
}
