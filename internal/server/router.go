package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentrel/sentrel/internal/handlers"
	"github.com/sentrel/sentrel/internal/middleware"
)

// NewRouter builds the ServeMux for the ingest and ops HTTP surfaces,
// wrapped in request-id propagation and CORS.
func NewRouter(receiver *handlers.Receiver, ops *handlers.Ops, cors middleware.CORSConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		routeIngest(receiver, w, r)
	})

	mux.HandleFunc("/health", ops.Health)
	mux.HandleFunc("/ready", ops.Ready)
	mux.HandleFunc("/stats", ops.Stats)
	mux.HandleFunc("/acks", ops.Acks)
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = middleware.CORS(cors)(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// routeIngest dispatches /api/{project_id}/<route>/ to the matching
// Receiver method by trailing path segment, since net/http's ServeMux
// pattern matching (pre-1.22 style, as used throughout this stack) can't
// express a middle wildcard segment directly.
func routeIngest(h *handlers.Receiver, w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case hasSuffixSegment(path, "envelope") && r.Method == http.MethodPost:
		h.HandleEnvelope(w, r)
	case hasSuffixSegment(path, "store") && r.Method == http.MethodPost:
		h.HandleStore(w, r)
	case hasSuffixSegment(path, "minidump") && r.Method == http.MethodPost:
		h.HandleMinidump(w, r)
	case hasSuffixSegment(path, "security") && r.Method == http.MethodPost:
		h.HandleSecurity(w, r)
	case r.Method == http.MethodGet:
		h.HandleProjectProbe(w, r)
	default:
		http.NotFound(w, r)
	}
}

func hasSuffixSegment(path, segment string) bool {
	trimmed := path
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) < len(segment) {
		return false
	}
	tail := trimmed[len(trimmed)-len(segment):]
	if tail != segment {
		return false
	}
	boundary := len(trimmed) - len(segment) - 1
	return boundary < 0 || trimmed[boundary] == '/'
}
