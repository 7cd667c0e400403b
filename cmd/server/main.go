// Command server wires the certification pipeline behind HTTP. Backends are
// chosen by configuration: S3-compatible storage, postgres, redis, and kafka
// when configured, in-memory equivalents otherwise so a bare `go run` works.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"veridoc/internal/audit"
	"veridoc/internal/blobstore"
	"veridoc/internal/docgen"
	"veridoc/internal/platform/config"
	"veridoc/internal/platform/httpserver"
	"veridoc/internal/platform/logger"
	"veridoc/internal/platform/metrics"
	platformredis "veridoc/internal/platform/redis"
	"veridoc/internal/registry"
	"veridoc/internal/render"
	"veridoc/internal/resolve"
	"veridoc/internal/resolve/cache"
	httptransport "veridoc/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var checks []httptransport.HealthCheck

	// Blob backend.
	var blobs blobstore.Store
	if cfg.Storage.Endpoint != "" {
		store, err := blobstore.NewMinioStore(cfg.Storage)
		if err != nil {
			log.Error("storage init failed", "error", err.Error())
			os.Exit(1)
		}
		blobs = store
	} else {
		log.Warn("no storage endpoint configured, using in-memory blob store")
		blobs = blobstore.NewInMemoryStore(blobstore.NewLinkSigner(cfg.LinkSigningKey))
	}

	// Registry backend.
	var records registry.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "error", err.Error())
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("postgres ping failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		if err := registry.EnsureSchema(context.Background(), db); err != nil {
			log.Error("registry schema apply failed", "error", err.Error())
			os.Exit(1)
		}
		records = registry.NewPostgresStore(db)
		checks = append(checks, httptransport.HealthCheck{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return db.PingContext(ctx) },
		})
	} else {
		log.Warn("no postgres DSN configured, using in-memory registry")
		records = registry.NewInMemoryStore()
	}

	// Resolution hint cache.
	var hints cache.HintCache
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		hints = cache.NewRedisCache(redisClient, config.ResolutionHintTTL)
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: redisClient.Health})
	} else {
		hints = cache.NewInMemoryCache(config.ResolutionHintTTL)
	}

	// Audit sink and worker. The kafka path goes through a buffered channel
	// so broker latency never sits on the request path.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	var auditStore audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(context.Background(), cfg.Kafka)
		if err != nil {
			log.Error("kafka audit sink init failed", "error", err.Error())
			os.Exit(1)
		}
		defer sink.Close()
		inbox := make(chan audit.Event, 256)
		worker := audit.NewWorker(sink, inbox)
		go func() {
			if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				log.Error("audit worker stopped", "error", err.Error())
			}
		}()
		auditStore = audit.ChannelStore(inbox)
	} else {
		auditStore = audit.NewInMemoryStore()
	}
	auditor := audit.NewPublisher(auditStore)

	renderer, err := render.NewRenderer(cfg.VerifyBaseURL)
	if err != nil {
		log.Error("renderer init failed", "error", err.Error())
		os.Exit(1)
	}

	buckets := blobstore.Buckets{
		Sandbox:    cfg.Storage.SandboxBucket,
		Production: cfg.Storage.ProductionBucket,
	}
	generator, err := docgen.New(docgen.Stabilizer(renderer), blobs, buckets, records, auditor, log, m)
	if err != nil {
		log.Error("generator init failed", "error", err.Error())
		os.Exit(1)
	}
	resolver, err := resolve.New(blobs, hints, auditor, log, m, cfg.SignedLinkTTL)
	if err != nil {
		log.Error("resolver init failed", "error", err.Error())
		os.Exit(1)
	}

	handler := httptransport.NewHandler(log, generator, resolver, records)
	router := httptransport.NewRouter(log, handler, checks)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting veridoc", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
