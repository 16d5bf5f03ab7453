// Package indexer implements the Indexer (C6) and Index Administrator (C8):
// time-sharded routing of IndexedDocuments into OpenSearch, chunked bulk
// writes, index template/ISM policy management, and retention maintenance.
package indexer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/sentrel/sentrel/internal/logging"
	"github.com/sentrel/sentrel/internal/metrics"
	"github.com/sentrel/sentrel/internal/models"
)

// Config holds OpenSearch connection and index management settings.
type Config struct {
	Hosts         []string
	Username      string
	Password      string
	UseSSL        bool
	VerifyCerts   bool
	IndexPrefix   string
	ChunkSize     int
	WarmAfterDays int
	ColdAfterDays int
	DeleteAfterDays int
}

// DefaultConfig returns the spec-enumerated defaults.
func DefaultConfig() Config {
	return Config{
		Hosts:           []string{"http://localhost:9200"},
		IndexPrefix:     "sentry-events",
		ChunkSize:       500,
		WarmAfterDays:   7,
		ColdAfterDays:   30,
		DeleteAfterDays: 90,
	}
}

// Indexer routes IndexedDocuments into time-sharded OpenSearch indices.
type Indexer struct {
	client *opensearch.Client
	config Config
	log    *logging.Logger
}

// New constructs an Indexer against the given OpenSearch client config.
func New(cfg Config, log *logging.Logger) (*Indexer, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifyCerts},
		},
	}

	osCfg := opensearch.Config{
		Addresses: cfg.Hosts,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Indexer{client: client, config: cfg, log: log}, nil
}

// IndexName computes the time-sharded index name for a document (I5, rule C6).
func IndexName(prefix string, doc models.IndexedDocument) string {
	t, err := time.Parse("2006-01-02T15:04:05.000Z", doc.Timestamp)
	if err != nil {
		t = time.Now().UTC()
	}
	return fmt.Sprintf("%s-%s", prefix, t.Format("2006.01.02"))
}

// IndexOneResult is the outcome of a synchronous single-document write.
type IndexOneResult struct {
	OK    bool
	ID    string
	Index string
	Err   error
}

// IndexOne writes a single document synchronously, keyed by event_id so
// redelivery overwrites rather than duplicates (I1/P5).
func (idx *Indexer) IndexOne(ctx context.Context, doc models.IndexedDocument) IndexOneResult {
	start := time.Now()
	defer func() {
		metrics.IndexerDuration.WithLabelValues("index_one").Observe(time.Since(start).Seconds())
	}()

	index := IndexName(idx.config.IndexPrefix, doc)
	body, err := json.Marshal(doc)
	if err != nil {
		metrics.IndexerErrors.WithLabelValues("index_one").Inc()
		return IndexOneResult{Err: fmt.Errorf("marshal document: %w", err)}
	}

	req := opensearchapi.IndexRequest{
		Index:      index,
		DocumentID: doc.EventID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, idx.client)
	if err != nil {
		metrics.IndexerErrors.WithLabelValues("index_one").Inc()
		return IndexOneResult{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		metrics.IndexerErrors.WithLabelValues("index_one").Inc()
		respBody, _ := io.ReadAll(res.Body)
		return IndexOneResult{Err: fmt.Errorf("opensearch error: %s - %s", res.Status(), string(respBody))}
	}

	return IndexOneResult{OK: true, ID: doc.EventID, Index: index}
}

// BulkResult summarizes a chunked bulk write. Errors are truncated to at
// most 10 entries per the Indexer's failure-reporting contract.
type BulkResult struct {
	SuccessCount int
	FailCount    int
	Errors       []string
}

const maxBulkErrors = 10

func (r *BulkResult) addError(msg string) {
	if len(r.Errors) < maxBulkErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// IndexBulk writes docs in chunks of chunkSize (default 500 if <= 0).
// Per-chunk failures do not abort later chunks.
func (idx *Indexer) IndexBulk(ctx context.Context, docs []models.IndexedDocument, chunkSize int) BulkResult {
	if chunkSize <= 0 {
		chunkSize = idx.config.ChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = 500
	}

	var result BulkResult
	for start := 0; start < len(docs); start += chunkSize {
		end := start + chunkSize
		if end > len(docs) {
			end = len(docs)
		}
		idx.indexChunk(ctx, docs[start:end], &result)
	}
	return result
}

func (idx *Indexer) indexChunk(ctx context.Context, chunk []models.IndexedDocument, result *BulkResult) {
	start := time.Now()
	defer func() {
		metrics.IndexerDuration.WithLabelValues("index_bulk").Observe(time.Since(start).Seconds())
	}()

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{Client: idx.client})
	if err != nil {
		metrics.IndexerErrors.WithLabelValues("index_bulk").Inc()
		result.FailCount += len(chunk)
		result.addError(fmt.Sprintf("failed to create bulk indexer: %v", err))
		return
	}

	for _, doc := range chunk {
		data, err := json.Marshal(doc)
		if err != nil {
			result.FailCount++
			result.addError(fmt.Sprintf("failed to marshal document %s: %v", doc.EventID, err))
			continue
		}

		index := IndexName(idx.config.IndexPrefix, doc)
		docID := doc.EventID

		addErr := bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:     "index",
			Index:      index,
			DocumentID: docID,
			Body:       bytes.NewReader(data),
			OnSuccess: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem) {
				result.SuccessCount++
			},
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				result.FailCount++
				if err != nil {
					result.addError(err.Error())
				} else {
					result.addError(fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason))
				}
			},
		})
		if addErr != nil {
			result.FailCount++
			result.addError(fmt.Sprintf("failed to enqueue document %s: %v", docID, addErr))
		}
	}

	// A failure spanning the whole chunk (e.g. transport-level) is caught
	// here and recorded as one aggregate error rather than per-document.
	if err := bi.Close(ctx); err != nil {
		metrics.IndexerErrors.WithLabelValues("index_bulk").Inc()
		result.addError(fmt.Sprintf("bulk indexer close error: %v", err))
	}
}

// Refresh requests a refresh on indices matching pattern so newly written
// documents become visible to search. Writes never request this implicitly.
func (idx *Indexer) Refresh(ctx context.Context, pattern string) error {
	req := opensearchapi.IndicesRefreshRequest{Index: []string{pattern}}
	res, err := req.Do(ctx, idx.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("refresh failed: %s - %s", res.Status(), string(body))
	}
	return nil
}

// DeleteOld enumerates indices matching "{prefix}-*", parses the date
// suffix, and deletes those older than now_utc() - days. Malformed
// suffixes are skipped rather than failing the whole maintenance pass.
func (idx *Indexer) DeleteOld(ctx context.Context, days int) error {
	names, err := idx.listIndices(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var stale []string
	for _, name := range names {
		t, ok := parseIndexDate(idx.config.IndexPrefix, name)
		if !ok {
			continue
		}
		if t.Before(cutoff) {
			stale = append(stale, name)
		}
	}

	if len(stale) == 0 {
		return nil
	}

	req := opensearchapi.IndicesDeleteRequest{Index: stale}
	res, err := req.Do(ctx, idx.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("delete_old failed: %s - %s", res.Status(), string(body))
	}
	return nil
}

func parseIndexDate(prefix, name string) (time.Time, bool) {
	wantPrefix := prefix + "-"
	if !strings.HasPrefix(name, wantPrefix) {
		return time.Time{}, false
	}
	suffix := strings.TrimPrefix(name, wantPrefix)
	t, err := time.Parse("2006.01.02", suffix)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (idx *Indexer) listIndices(ctx context.Context) ([]string, error) {
	req := opensearchapi.CatIndicesRequest{
		Index:  []string{idx.config.IndexPrefix + "-*"},
		Format: "json",
	}
	res, err := req.Do(ctx, idx.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("cat indices failed: %s - %s", res.Status(), string(body))
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["index"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Stats returns per-index document counts and sizes for GET /stats.
func (idx *Indexer) Stats(ctx context.Context) (models.IngestionStats, error) {
	req := opensearchapi.CatIndicesRequest{
		Index:  []string{idx.config.IndexPrefix + "-*"},
		Format: "json",
		Bytes:  "b",
	}
	res, err := req.Do(ctx, idx.client)
	if err != nil {
		return models.IngestionStats{}, err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return models.IngestionStats{}, fmt.Errorf("cat indices failed: %s - %s", res.Status(), string(body))
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return models.IngestionStats{}, err
	}

	var stats models.IngestionStats
	for _, row := range rows {
		name, _ := row["index"].(string)
		count := parseInt64(row["docs.count"])
		size := parseInt64(row["store.size"])
		stats.Indices = append(stats.Indices, models.IndexStat{
			Index:     name,
			DocCount:  count,
			SizeBytes: size,
		})
	}
	return stats, nil
}

func parseInt64(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Ping reports whether the OpenSearch cluster is reachable and at least
// yellow status, for the /ready check.
func (idx *Indexer) Ping(ctx context.Context) error {
	req := opensearchapi.ClusterHealthRequest{}
	res, err := req.Do(ctx, idx.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("cluster health returned %s", res.Status())
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return err
	}
	if health.Status != "green" && health.Status != "yellow" {
		return fmt.Errorf("cluster status is %s", health.Status)
	}
	return nil
}
