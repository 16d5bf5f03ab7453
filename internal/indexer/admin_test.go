package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEnsureTodayIndexCreatesAliasAndRefreshes(t *testing.T) {
	var sawAliasUpdate, sawRefresh bool

	idx := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/_aliases":
			sawAliasUpdate = true
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"acknowledged":true}`))
		case r.Method == http.MethodPost:
			sawRefresh = true
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"_shards":{"total":1,"successful":1,"failed":0}}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	})

	if err := idx.EnsureTodayIndex(context.Background()); err != nil {
		t.Fatalf("expected ensure today index to succeed, got %v", err)
	}
	if !sawAliasUpdate {
		t.Fatal("expected write alias to be updated")
	}
	if !sawRefresh {
		t.Fatal("expected the new index to be refreshed")
	}
}

func TestEnsureTodayIndexSkipsCreateWhenAlreadyExists(t *testing.T) {
	var sawCreate bool

	idx := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut:
			sawCreate = true
			w.WriteHeader(http.StatusOK)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"acknowledged":true}`))
		}
	})

	if err := idx.EnsureTodayIndex(context.Background()); err != nil {
		t.Fatalf("expected ensure today index to succeed, got %v", err)
	}
	if sawCreate {
		t.Fatal("expected no create call when index already exists")
	}
}

func TestUpdateWriteAliasSurfacesErrors(t *testing.T) {
	idx := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	})

	if err := idx.updateWriteAlias(context.Background(), "sentry-events-2023.11.14"); err == nil {
		t.Fatal("expected alias update failure to surface")
	}
}
