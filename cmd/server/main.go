package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailevents/internal/api"
	"github.com/ignite/mailevents/internal/awsclient"
	"github.com/ignite/mailevents/internal/cdn"
	"github.com/ignite/mailevents/internal/config"
	"github.com/ignite/mailevents/internal/eventstore"
	"github.com/ignite/mailevents/internal/metrics"
	"github.com/ignite/mailevents/internal/objectstore"
	"github.com/ignite/mailevents/internal/pkg/distlock"
	"github.com/ignite/mailevents/internal/pkg/logger"
	"github.com/ignite/mailevents/internal/repository/dynamo"
	"github.com/ignite/mailevents/internal/repository/postgres"
	"github.com/ignite/mailevents/internal/service/aggregate"
	"github.com/ignite/mailevents/internal/service/ingest"
	"github.com/ignite/mailevents/internal/service/report"
	"github.com/ignite/mailevents/internal/service/shortlink"
	"github.com/ignite/mailevents/internal/service/spamledger"
	"github.com/ignite/mailevents/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	slash := strings.Index(rest, "/")
	if slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func openDatabase(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", c.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(c.ConnectTimeoutSeconds)*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  SendGrid Event Ledger (cmd/server/main.go)                ║")
	log.Println("║  Webhook ingestion, delivery reports and short links       ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	if err := logger.Setup(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		RedactPII:  cfg.Logging.ShouldRedactPII(),
	}); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer logger.Sync()

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database at %s: %v", extractHost(cfg.Database.URL), err)
	}
	defer db.Close()
	log.Printf("Connected to PostgreSQL at %s", extractHost(cfg.Database.URL))

	// Redis is optional
	redisClient, err := openRedis(ctx, cfg.Redis.URL)
	if err != nil {
		log.Printf("Warning: Redis unavailable, using PostgreSQL advisory locks: %v", err)
		redisClient = nil
	} else if redisClient != nil {
		defer redisClient.Close()
		log.Println("Connected to Redis")
	}
	locks := distlock.NewFactory(redisClient, db, 30*time.Second)

	// AWS
	awsClients, err := awsclient.Load(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	redirects := objectstore.NewRedirectStore(awsClients.S3, cfg.Storage.S3Bucket)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "mailevents")

	// Aggregates
	var aggRepo aggregate.Repository
	switch cfg.Storage.AggregateBackend {
	case "dynamodb":
		aggRepo = dynamo.NewAggregateRepo(awsClients.DynamoDB, cfg.Storage.DynamoDBTable)
		log.Printf("Aggregates stored in DynamoDB table %s", cfg.Storage.DynamoDBTable)
	default:
		aggRepo = postgres.NewAggregateRepo(db)
		log.Println("Aggregates stored in PostgreSQL")
	}
	aggSvc := aggregate.NewService(aggRepo, cfg.Reports.Generation)
	if err := aggSvc.EnsureGeneration(ctx); err != nil {
		log.Fatalf("Failed to register report generation %d: %v", cfg.Reports.Generation, err)
	}
	log.Printf("Ingestion writes to report generation %d", aggSvc.Generation())

	spamSvc := spamledger.NewService(postgres.NewSpamRepo(db))
	router := eventstore.NewRouter(eventstore.MustDefaultRegistry(), postgres.NewEventBackend(db), locks)

	ingestOpts := []ingest.Option{
		ingest.WithMetrics(m),
		ingest.WithMaxConcurrency(cfg.Ingest.MaxConcurrency),
	}
	if cfg.Ingest.DedupeEnabled {
		if redisClient == nil {
			log.Println("Warning: ingest dedupe requested but Redis is not configured; dedupe disabled")
		} else {
			ingestOpts = append(ingestOpts, ingest.WithDeduper(ingest.NewRedisDeduper(redisClient, cfg.Ingest.DedupeTTL())))
			log.Printf("Ingest dedupe enabled (ttl %s)", cfg.Ingest.DedupeTTL())
		}
	}
	ingestSvc := ingest.NewService(spamSvc, aggSvc, router, ingestOpts...)
	reportSvc := report.NewService(router, aggSvc, spamSvc)

	linkOpts := []shortlink.Option{shortlink.WithLocks(locks), shortlink.WithMetrics(m)}
	if inv := cdn.NewInvalidator(awsClients.CloudFront, cfg.ShortLinks.CloudFrontDistributionID); inv != nil {
		linkOpts = append(linkOpts, shortlink.WithInvalidator(inv))
		log.Printf("CloudFront invalidation enabled for distribution %s", cfg.ShortLinks.CloudFrontDistributionID)
	}
	linkSvc := shortlink.NewService(postgres.NewShortLinkRepo(db), db, redirects, shortlink.Config{
		CDNDomain:   cfg.ShortLinks.CDNDomain,
		CodeLength:  cfg.ShortLinks.CodeLength,
		MaxAttempts: cfg.ShortLinks.MaxAttempts,
	}, linkOpts...)

	archive, err := worker.NewWebhookReceiver(ctx, db, cfg.Server.MaxBodyBytes)
	if err != nil {
		log.Fatalf("Failed to prepare webhook archive: %v", err)
	}
	defer archive.Close()

	server := api.NewServer(cfg.Server, api.RouteDeps{
		Handlers:       api.NewHandlers(ingestSvc, reportSvc, linkSvc, cfg.Server.MaxBodyBytes),
		Health:         api.NewHealthChecker(db, redisClient, redirects, router),
		Archive:        archive.HandleSendGridWebhook,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	stats := archive.Stats()
	log.Printf("Server stopped (archived %d webhook events, %d errors)", stats["events_received"], stats["errors"])
}
