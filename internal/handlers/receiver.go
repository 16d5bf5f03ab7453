// Package handlers implements the Receiver (C9): the HTTP entry points the
// Sentry wire protocol is served from, plus the ops surface (health, ready,
// stats).
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sentrel/sentrel/internal/dsn"
	"github.com/sentrel/sentrel/internal/envelope"
	"github.com/sentrel/sentrel/internal/httputil"
	"github.com/sentrel/sentrel/internal/logging"
	"github.com/sentrel/sentrel/internal/metrics"
	"github.com/sentrel/sentrel/internal/pipeline"
	"github.com/sentrel/sentrel/internal/ratelimit"
)

const (
	defaultMaxRequestSize  = 5 * 1024 * 1024
	minidumpMaxRequestSize = 50 * 1024 * 1024
)

// ReceiverConfig holds the subset of configuration the receiver checks per
// request: the project allow-list and the DSN validation policy.
type ReceiverConfig struct {
	AllowedProjects []int
	AuthPolicy      dsn.Policy
	MaxRequestSize  int
}

func (c ReceiverConfig) projectAllowed(projectID int) bool {
	if len(c.AllowedProjects) == 0 {
		return true
	}
	for _, id := range c.AllowedProjects {
		if id == projectID {
			return true
		}
	}
	return false
}

// Receiver implements the ingest HTTP surface: envelope, store, minidump,
// security, and the per-project connectivity probe.
type Receiver struct {
	cfg      ReceiverConfig
	pipeline *pipeline.Pipeline
	limiter  ratelimit.Limiter
	log      *logging.Logger
}

// NewReceiver builds a Receiver. limiter may be ratelimit.NoOpLimiter{}.
func NewReceiver(cfg ReceiverConfig, p *pipeline.Pipeline, limiter ratelimit.Limiter, log *logging.Logger) *Receiver {
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = defaultMaxRequestSize
	}
	return &Receiver{cfg: cfg, pipeline: p, limiter: limiter, log: log}
}

// HandleEnvelope serves POST /api/{project_id}/envelope/.
func (h *Receiver) HandleEnvelope(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.checkCommon(w, r, h.cfg.MaxRequestSize)
	if !ok {
		return
	}

	body, ok := h.readBody(w, r, h.cfg.MaxRequestSize, "envelope")
	if !ok {
		return
	}

	env := envelope.Decode(body)

	var firstID string
	for _, payload := range env.Events() {
		id := h.pipeline.Process(r.Context(), payload, projectID, env.Header.EventID)
		if firstID == "" {
			firstID = id
		}
	}
	for range env.Sessions() {
		// Session items are accepted but not indexed as events; they don't
		// carry an event_id relevant to the response.
	}

	metrics.EventsTotal.WithLabelValues("envelope", "ok").Inc()
	metrics.EventBytesTotal.Add(float64(len(body)))
	h.respondWithID(w, firstID)
}

// HandleStore serves the legacy POST /api/{project_id}/store/.
func (h *Receiver) HandleStore(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.checkCommon(w, r, h.cfg.MaxRequestSize)
	if !ok {
		return
	}

	body, ok := h.readBody(w, r, h.cfg.MaxRequestSize, "store")
	if !ok {
		return
	}

	id := h.pipeline.Process(r.Context(), body, projectID, "")

	metrics.EventsTotal.WithLabelValues("store", "ok").Inc()
	metrics.EventBytesTotal.Add(float64(len(body)))
	h.respondWithID(w, id)
}

// HandleMinidump serves POST /api/{project_id}/minidump/ -- acknowledged
// only, per spec: the binary crash dump itself is not parsed or indexed.
func (h *Receiver) HandleMinidump(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.checkCommon(w, r, minidumpMaxRequestSize)
	if !ok {
		return
	}

	if _, ok := h.readBody(w, r, minidumpMaxRequestSize, "minidump"); !ok {
		return
	}

	metrics.EventsTotal.WithLabelValues("minidump", "ok").Inc()
	_ = projectID
	h.respondWithID(w, "")
}

// HandleSecurity serves POST /api/{project_id}/security/ -- CSP reports are
// acknowledged only, per spec.
func (h *Receiver) HandleSecurity(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.checkCommon(w, r, h.cfg.MaxRequestSize)
	if !ok {
		return
	}

	if _, ok := h.readBody(w, r, h.cfg.MaxRequestSize, "security"); !ok {
		return
	}

	metrics.EventsTotal.WithLabelValues("security", "ok").Inc()
	_ = projectID
	h.respondWithID(w, "")
}

// HandleProjectProbe serves GET /api/{project_id}/.
func (h *Receiver) HandleProjectProbe(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseProjectID(r.URL.Path)
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "unknown project")
		return
	}
	if !h.cfg.projectAllowed(projectID) {
		httputil.WriteError(w, http.StatusNotFound, "unknown project")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"status":     "ok",
	})
}

// checkCommon runs the shared pre-checks every ingestion route needs:
// project allow-list, auth, body-size cap (by Content-Length), and rate
// limiting. It writes the error response itself and returns ok=false when a
// check fails.
func (h *Receiver) checkCommon(w http.ResponseWriter, r *http.Request, maxSize int) (int, bool) {
	projectID, ok := parseProjectID(r.URL.Path)
	if !ok || !h.cfg.projectAllowed(projectID) {
		metrics.EventsTotal.WithLabelValues(routeName(r.URL.Path), "project_unknown").Inc()
		httputil.WriteError(w, http.StatusNotFound, "unknown project")
		return 0, false
	}

	if !h.checkRateLimit(w, r) {
		return 0, false
	}

	authHeader := r.Header.Get("X-Sentry-Auth")
	key, present := dsn.ExtractPublicKey(authHeader, r.URL.Query())
	if !h.cfg.AuthPolicy.Validate(key, present) {
		metrics.EventsTotal.WithLabelValues(routeName(r.URL.Path), "auth_error").Inc()
		httputil.WriteError(w, http.StatusUnauthorized, "invalid or missing sentry auth")
		return 0, false
	}

	if r.ContentLength > int64(maxSize) {
		metrics.EventsTotal.WithLabelValues(routeName(r.URL.Path), "too_large").Inc()
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return 0, false
	}

	return projectID, true
}

func (h *Receiver) checkRateLimit(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil {
		return true
	}

	client := clientID(r)
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	result, err := h.limiter.Allow(ctx, client)
	if err != nil {
		if h.log != nil {
			h.log.Error("rate limit check failed", "error", err)
		}
		return true
	}
	if !result.Allowed {
		metrics.EventsTotal.WithLabelValues(routeName(r.URL.Path), "rate_limited").Inc()
		w.Header().Set("Retry-After", strconv.Itoa(result.ResetSecs))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

// readBody reads the body, enforcing the actual size after Content-Length
// (which can lie or be absent); on overflow it fails with 413.
func (h *Receiver) readBody(w http.ResponseWriter, r *http.Request, maxSize int, route string) ([]byte, bool) {
	defer r.Body.Close()

	limited := io.LimitReader(r.Body, int64(maxSize)+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		metrics.EventsTotal.WithLabelValues(route, "read_error").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if len(body) > maxSize {
		metrics.EventsTotal.WithLabelValues(route, "too_large").Inc()
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return nil, false
	}
	return body, true
}

func (h *Receiver) respondWithID(w http.ResponseWriter, id string) {
	var body map[string]interface{}
	if id == "" {
		body = map[string]interface{}{"id": nil}
	} else {
		body = map[string]interface{}{"id": id}
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// clientID picks the rate-limit key: the first token of X-Forwarded-For if
// present, else the request's peer address.
func clientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	return r.RemoteAddr
}

// parseProjectID extracts the {project_id} path segment from
// /api/{project_id}/<route>/.
func parseProjectID(path string) (int, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "api" {
		return 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

func routeName(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return "unknown"
	}
	return parts[2]
}
