package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/api"
	"github.com/JakeFAU/site-enricher/internal/callback"
	"github.com/JakeFAU/site-enricher/internal/clock/system"
	"github.com/JakeFAU/site-enricher/internal/config"
	"github.com/JakeFAU/site-enricher/internal/crawl"
	"github.com/JakeFAU/site-enricher/internal/enrich"
	"github.com/JakeFAU/site-enricher/internal/extract"
	collyfetcher "github.com/JakeFAU/site-enricher/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/site-enricher/internal/fetcher/headless"
	"github.com/JakeFAU/site-enricher/internal/hash/sha256"
	"github.com/JakeFAU/site-enricher/internal/id/uuid"
	"github.com/JakeFAU/site-enricher/internal/llm"
	"github.com/JakeFAU/site-enricher/internal/llm/openai"
	"github.com/JakeFAU/site-enricher/internal/llm/tokenizer"
	"github.com/JakeFAU/site-enricher/internal/logging"
	"github.com/JakeFAU/site-enricher/internal/metrics"
	"github.com/JakeFAU/site-enricher/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/site-enricher/internal/publisher/pubsub"
	"github.com/JakeFAU/site-enricher/internal/scheduler"
	"github.com/JakeFAU/site-enricher/internal/site"
	"github.com/JakeFAU/site-enricher/internal/storage/gcs"
	"github.com/JakeFAU/site-enricher/internal/storage/local"
	"github.com/JakeFAU/site-enricher/internal/storage/memory"
	mongostore "github.com/JakeFAU/site-enricher/internal/storage/mongo"
	"github.com/JakeFAU/site-enricher/internal/storage/postgres"
	"github.com/JakeFAU/site-enricher/internal/submission"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	if err := run(cfg, logger); err != nil {
		logger.Error("enricher exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// closer is a shutdown step run in reverse order of registration.
type closer func(ctx context.Context) error

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](shutdownCtx); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}()

	clock := system.New()
	checks := map[string]api.ReadinessCheck{}

	sites, submissions, err := buildStores(ctx, cfg, checks, &closers)
	if err != nil {
		return err
	}

	crawler, err := buildCrawler(cfg, &closers, logger)
	if err != nil {
		return err
	}

	pipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	opts, err := buildSideEffects(ctx, cfg, &closers, logger)
	if err != nil {
		return err
	}
	orchestrator := enrich.New(crawler, pipeline, sites, clock, enrich.Config{
		ArchivePrefix: cfg.Archive.Prefix,
		ContentType:   cfg.Archive.ContentType,
		Topic:         cfg.PubSub.TopicName,
	}, logger, opts...)

	processor := submission.NewProcessor(submissions, orchestrator, submission.ProcessorConfig{
		DefaultLimit: cfg.Queue.DefaultLimit,
		Languages:    cfg.Queue.Languages,
		Tags:         cfg.Queue.Tags,
		UseCache:     cfg.Queue.UseCache,
	}, logger)
	submissionService := submission.NewService(submissions, uuid.New(), clock)

	dispatch := callback.New(orchestrator, callback.NewWebhook(cfg.Callback.Timeout()), callback.Config{
		Workers:        cfg.Callback.Workers,
		QueueDepth:     cfg.Callback.QueueDepth,
		EnqueueTimeout: cfg.Callback.EnqueueTimeout(),
	}, logger)
	// Workers outlive the signal context so queued tasks can finish during
	// shutdown.
	workCtx, cancelWork := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		logger.Info("callback dispatcher started", zap.Int("workers", cfg.Callback.Workers))
		dispatch.Run(workCtx)
	}()
	closers = append(closers, func(ctx context.Context) error {
		dispatch.Close()
		select {
		case <-dispatchDone:
		case <-ctx.Done():
			logger.Warn("callback workers still busy at shutdown")
		}
		cancelWork()
		return nil
	})

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(processor, clock.NewTicker, scheduler.Config{
			Interval:     cfg.Scheduler.Interval(),
			BatchLimit:   cfg.Scheduler.BatchLimit,
			Order:        site.ParseOrder(cfg.Scheduler.OrderBy),
			SingleFlight: cfg.Scheduler.SingleFlight,
		}, logger)
		if err := sched.Start(workCtx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		closers = append(closers, sched.Stop)
	}

	apiServer := api.NewServer(orchestrator, dispatch, submissionService, processor, api.Config{
		AuthSecret:     cfg.Auth.Secret,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		Checks:         checks,
	}, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	closers = append(closers, srv.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
		return nil
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}
}

func shutdownTimeout(cfg config.Config) time.Duration {
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
}

func buildStores(
	ctx context.Context,
	cfg config.Config,
	checks map[string]api.ReadinessCheck,
	closers *[]closer,
) (site.SiteStore, site.SubmissionStore, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:      cfg.Storage.Postgres.DSN,
			MaxConns: cfg.Storage.Postgres.MaxConns,
		})
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		checks["postgres"] = pool.Ping
		if err := postgres.EnsureSchema(ctx, pool, cfg.Storage.Postgres.SitesTable, cfg.Storage.Postgres.SubmissionTable); err != nil {
			return nil, nil, err
		}
		sites, err := postgres.NewSiteStore(pool, cfg.Storage.Postgres.SitesTable)
		if err != nil {
			return nil, nil, err
		}
		subs, err := postgres.NewSubmissionStore(pool, cfg.Storage.Postgres.SubmissionTable)
		if err != nil {
			return nil, nil, err
		}
		return sites, subs, nil
	case "mongo":
		client, err := mongostore.Connect(ctx, mongostore.Config{
			URI:             cfg.Storage.Mongo.URI,
			Database:        cfg.Storage.Mongo.Database,
			SitesColl:       cfg.Storage.Mongo.SitesColl,
			SubmissionsColl: cfg.Storage.Mongo.SubmissionsColl,
		})
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, client.Close)
		checks["mongo"] = client.Ping
		return client.Sites(), client.Submissions(), nil
	default:
		return memory.NewSiteStore(), memory.NewSubmissionStore(), nil
	}
}

func buildCrawler(cfg config.Config, closers *[]closer, logger *zap.Logger) (*crawl.Service, error) {
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: !cfg.Crawler.IgnoreRobots,
		Timeout:       time.Duration(cfg.Crawler.TimeoutSeconds) * time.Second,
	})
	var headless crawl.Fetcher
	if cfg.Headless.Enabled {
		h, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher: %w", err)
		}
		*closers = append(*closers, func(context.Context) error {
			h.Close()
			return nil
		})
		headless = h
	}
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Crawler.RatePerSecond, Burst: cfg.Crawler.RateBurst})
	return crawl.NewService(probe, headless, extract.New(), limiter, crawl.Config{
		MinContentChars: cfg.Crawler.MinContentChars,
	}, logger), nil
}

func buildPipeline(cfg config.Config, logger *zap.Logger) (*llm.Pipeline, error) {
	completer, err := openai.New(openai.Config{
		Source:      cfg.LLM.Source,
		APIKey:      cfg.LLM.APIKey(),
		Model:       cfg.LLM.Model(),
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout(),
		SiteURL:     cfg.LLM.SiteURL,
		AppName:     cfg.LLM.AppName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	var tok site.Tokenizer
	if cfg.LLM.MaxTokens > 0 {
		t, err := tokenizer.New(cfg.LLM.Encoding)
		if err != nil {
			return nil, fmt.Errorf("tokenizer: %w", err)
		}
		tok = t
	}
	return llm.NewPipeline(completer, tok, llm.Config{
		Prompts: llm.Prompts{
			Detail:   cfg.Prompts.Detail,
			Tags:     cfg.Prompts.Tags,
			Language: cfg.Prompts.Language,
		},
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger), nil
}

func buildSideEffects(ctx context.Context, cfg config.Config, closers *[]closer, logger *zap.Logger) ([]enrich.Option, error) {
	var opts []enrich.Option

	var blobs site.BlobStore
	switch cfg.Archive.Backend {
	case "memory":
		blobs = memory.NewBlobStore()
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Archive.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local archive: %w", err)
		}
		blobs = store
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		*closers = append(*closers, func(context.Context) error { return client.Close() })
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs archive: %w", err)
		}
		blobs = store
	}
	if blobs != nil {
		logger.Info("page archive enabled", zap.String("backend", cfg.Archive.Backend))
		opts = append(opts, enrich.WithArchive(blobs, sha256.New()))
	}

	if cfg.PubSub.Enabled {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client, cfg.PubSub.TopicName)
		*closers = append(*closers, func(context.Context) error { return pub.Close() })
		opts = append(opts, enrich.WithPublisher(pub))
	}
	return opts, nil
}
