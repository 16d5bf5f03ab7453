// Command sentrel runs the event ingestion gateway: it accepts Sentry SDK
// envelope/store payloads over HTTP, normalizes and enriches them, and
// writes the result into time-sharded OpenSearch indices, either directly
// (the in-process batcher) or via a distributed queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/sentrel/sentrel/internal/ack"
	"github.com/sentrel/sentrel/internal/batcher"
	"github.com/sentrel/sentrel/internal/config"
	"github.com/sentrel/sentrel/internal/dsn"
	"github.com/sentrel/sentrel/internal/enrich"
	"github.com/sentrel/sentrel/internal/handlers"
	"github.com/sentrel/sentrel/internal/indexer"
	"github.com/sentrel/sentrel/internal/logging"
	"github.com/sentrel/sentrel/internal/metrics"
	"github.com/sentrel/sentrel/internal/middleware"
	"github.com/sentrel/sentrel/internal/models"
	"github.com/sentrel/sentrel/internal/natsclient"
	"github.com/sentrel/sentrel/internal/pipeline"
	"github.com/sentrel/sentrel/internal/queue"
	"github.com/sentrel/sentrel/internal/ratelimit"
	"github.com/sentrel/sentrel/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sentrel exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	format := "json"
	if cfg.Debug {
		format = "text"
	}
	log := logging.New(logging.ParseLevel(strings.ToLower(cfg.LogLevel)), format)
	logging.SetDefault(log)
	log.Info("starting sentrel", "app", cfg.AppName, "host", cfg.Host, "port", cfg.Port)

	policyDefaults := indexer.DefaultConfig()
	idx, err := indexer.New(indexer.Config{
		Hosts:           cfg.OpenSearchHosts,
		Username:        cfg.OpenSearchUsername,
		Password:        cfg.OpenSearchPassword,
		UseSSL:          cfg.OpenSearchUseSSL,
		VerifyCerts:     cfg.OpenSearchVerifyCerts,
		IndexPrefix:     cfg.OpenSearchIndexPrefix,
		ChunkSize:       500,
		WarmAfterDays:   policyDefaults.WarmAfterDays,
		ColdAfterDays:   policyDefaults.ColdAfterDays,
		DeleteAfterDays: policyDefaults.DeleteAfterDays,
	}, log)
	if err != nil {
		return fmt.Errorf("build indexer: %w", err)
	}

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootstrapCancel()
	if err := idx.EnsureTemplate(bootstrapCtx); err != nil {
		log.Warn("failed to ensure index template, continuing", "error", err)
	}
	if err := idx.EnsurePolicy(bootstrapCtx); err != nil {
		log.Warn("failed to ensure ISM policy, continuing", "error", err)
	}
	if err := idx.EnsureTodayIndex(bootstrapCtx); err != nil {
		log.Warn("failed to ensure today's index, continuing", "error", err)
	}

	limiter, err := buildLimiter(cfg, log)
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}

	geoReader, err := buildGeoReader(cfg, log)
	if err != nil {
		log.Warn("failed to open geoip database, continuing without geo enrichment", "error", err)
	}
	if geoReader != nil {
		defer geoReader.Close()
	}
	enricher := enrich.New(geoReaderOrNil(geoReader))

	sink, closeSink, err := buildSink(cfg, log)
	if err != nil {
		return fmt.Errorf("build ingestion sink: %w", err)
	}
	defer closeSink()

	pipe := pipeline.New(enricher, sink)

	receiver := handlers.NewReceiver(handlers.ReceiverConfig{
		AllowedProjects: cfg.ProjectIDs,
		AuthPolicy: dsn.Policy{
			Required:  cfg.AuthRequired,
			AllowList: cfg.AllowedPublicKeys,
		},
		MaxRequestSize: cfg.MaxRequestSize,
	}, pipe, limiter, log)

	var queuePinger handlers.QueuePinger
	var ackLister handlers.AckLister
	if qs, ok := sink.(*queueSinkPinger); ok {
		queuePinger = qs.inner
		ackLister = qs.acks
	}
	ops := handlers.NewOps(idx, idx, queuePinger, ackLister)

	router := server.NewRouter(receiver, ops, middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedCORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Sentry-Auth"},
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	return nil
}

func buildLimiter(cfg *config.Config, log *logging.Logger) (ratelimit.Limiter, error) {
	if !cfg.RateLimitEnabled {
		return ratelimit.NoOpLimiter{}, nil
	}
	limiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL, cfg.RateLimitRequests, cfg.RateLimitWindow)
	if err != nil {
		log.Warn("failed to connect to redis, falling back to no-op rate limiting", "error", err)
		return ratelimit.NoOpLimiter{}, nil
	}
	return limiter, nil
}

func buildGeoReader(cfg *config.Config, log *logging.Logger) (*geoip2.Reader, error) {
	if !cfg.EnableGeoIP || cfg.GeoIPDatabasePath == "" {
		return nil, nil
	}
	return geoip2.Open(cfg.GeoIPDatabasePath)
}

// geoReaderOrNil adapts *geoip2.Reader to enrich.GeoReader, preserving a true
// nil interface when reader is nil (a non-nil interface wrapping a nil
// pointer would defeat enrich.New's nil check).
func geoReaderOrNil(reader *geoip2.Reader) enrich.GeoReader {
	if reader == nil {
		return nil
	}
	return reader
}

// queueSinkPinger lets main expose the queue backend's Ping method and its
// ack tracker to Ops without handlers importing the queue or ack packages
// directly.
type queueSinkPinger struct {
	pipeline.Sink
	inner handlers.QueuePinger
	acks  *ack.Manager
}

// ackTrackingSubmitter wraps a queue.Sink so every publish has a genuine
// pending window: the ack is created before the broker call and resolved
// from that call's own result, which is the strongest completion signal
// available in this process. The consumer that actually indexes off the
// queue runs out-of-process, so "the broker persisted it" is as far as this
// gateway can truthfully track.
type ackTrackingSubmitter struct {
	submitter interface {
		Submit(ctx context.Context, doc models.IndexedDocument) error
	}
	acks *ack.Manager
}

func (a ackTrackingSubmitter) Submit(ctx context.Context, doc models.IndexedDocument) error {
	id := a.acks.Create([]string{doc.EventID})

	if err := a.submitter.Submit(ctx, doc); err != nil {
		a.acks.Fail(id)
		return err
	}

	a.acks.Complete(id)
	return nil
}

// buildSink selects the ingestion sink per use_celery: the in-process
// batcher (direct OpenSearch writes) or a JetStream-backed distributed
// queue. Returns a cleanup func that stops the batcher or closes the NATS
// connection.
func buildSink(cfg *config.Config, log *logging.Logger) (pipeline.Sink, func(), error) {
	if !cfg.UseCelery {
		idx, err := indexer.New(indexer.Config{
			Hosts:       cfg.OpenSearchHosts,
			Username:    cfg.OpenSearchUsername,
			Password:    cfg.OpenSearchPassword,
			UseSSL:      cfg.OpenSearchUseSSL,
			VerifyCerts: cfg.OpenSearchVerifyCerts,
			IndexPrefix: cfg.OpenSearchIndexPrefix,
			ChunkSize:   500,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("build batcher indexer: %w", err)
		}

		b := batcher.New(cfg.BatchSize, time.Duration(cfg.BatchTimeoutSeconds)*time.Second, func(docs []models.IndexedDocument) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			result := idx.IndexBulk(ctx, docs, 500)
			if result.FailCount > 0 {
				log.Error("bulk index had failures", "failed", result.FailCount, "ok", result.SuccessCount)
			}
		}, log)
		b.Start()

		return pipeline.BatcherSink{Submitter: b}, func() { b.Stop() }, nil
	}

	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = cfg.NatsURL
	js, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	qSink, err := queue.NewJetStreamSink(ctx, js)
	if err != nil {
		js.Close()
		return nil, nil, fmt.Errorf("build jetstream sink: %w", err)
	}

	acks := ack.NewManager(10 * time.Minute)

	onError := func(doc models.IndexedDocument, err error) {
		log.Error("failed to publish event to queue", "event_id", doc.EventID, "error", err)
		metrics.ItemsDroppedTotal.WithLabelValues("queue_publish_error").Inc()
	}

	sink := &queueSinkPinger{
		Sink: pipeline.QueueSink{
			Submitter: ackTrackingSubmitter{submitter: qSink, acks: acks},
			OnError:   onError,
		},
		inner: qSink,
		acks:  acks,
	}

	cleanup := func() {
		acks.Close()
		qSink.Close()
		js.Close()
	}
	return sink, cleanup, nil
}
