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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"mailout/internal/awsutil"
	"mailout/internal/config"
	"mailout/internal/customers"
	"mailout/internal/dispatch"
	"mailout/internal/esp"
	"mailout/internal/httpserver"
	"mailout/internal/lock"
	"mailout/internal/logging"
	"mailout/internal/observability"
	"mailout/internal/personalize"
	"mailout/internal/providers/postmark"
	"mailout/internal/providers/resend"
	"mailout/internal/providers/ses"
	sqsqueue "mailout/internal/queue/sqs"
	"mailout/internal/recipients"
	"mailout/internal/render"
	"mailout/internal/service"
	"mailout/internal/store/pg"
	"mailout/internal/thumbnail"
	"mailout/internal/tracking"
	"mailout/internal/worker"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DB.DSN, "mailout-api", pg.PoolOptions{
		MaxConns:          cfg.DB.MaxConns,
		MinConns:          cfg.DB.MinConns,
		MaxConnLifetime:   cfg.DB.MaxConnLifetime,
		MaxConnIdleTime:   cfg.DB.MaxConnIdleTime,
		HealthCheckPeriod: cfg.DB.HealthCheckPeriod,
		PingTimeout:       3 * time.Second,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.MigrateOnStart {
		if err := pg.Migrate(ctx, db); err != nil {
			slog.Error("api migrate failed", "err", err)
			os.Exit(1)
		}
	}

	observability.Register(prometheus.DefaultRegisterer)
	store := pg.New(db)

	sender, err := newSender(ctx, cfg)
	if err != nil {
		slog.Error("api esp init failed", "err", err)
		os.Exit(1)
	}
	if missing := cfg.CredentialMissing(); missing != "" {
		slog.Warn("esp credential missing, campaign sends will be rejected", "provider", sender.Name(), "missing", missing)
	}

	var limiter *rate.Limiter
	if cfg.ESPRPSPerPod > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ESPRPSPerPod), max(cfg.ESPBurst, 1))
	}

	var locker lock.Locker = lock.NewMemory()
	readyChecks := []httpserver.ReadyzCheck{{Name: "postgres", Check: store.Ping}}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("api redis url invalid", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.SendLockTTL)
		readyChecks = append(readyChecks, httpserver.ReadyzCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	var recordQueue service.RecordPublisher
	if cfg.RecordQueueURL != "" {
		sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
		if err != nil {
			slog.Error("api sqs client init failed", "err", err)
			os.Exit(1)
		}
		recordQueue = &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.RecordQueueURL}
	}

	footer, err := newFooter(cfg)
	if err != nil {
		slog.Error("api footer init failed", "err", err)
		os.Exit(1)
	}

	campaigns := &service.CampaignService{
		Campaigns: store,
		Resolver: &recipients.Resolver{
			Customers:    &customers.Client{URL: cfg.CustomerURL(), HTTP: &http.Client{Timeout: 15 * time.Second}},
			Suppressions: store,
		},
		Dispatcher: &dispatch.Engine{
			Sender:        sender,
			BatchSize:     cfg.SendBatchSize,
			Concurrency:   cfg.SendConcurrency,
			RatePerSecond: cfg.MessagesPerSecond,
			MaxAttempts:   cfg.SendMaxAttempts,
			Limiter:       limiter,
		},
		Locks:       locker,
		Recorder:    &worker.Processor{Store: store},
		RecordQueue: recordQueue,

		Renderer:     &render.Renderer{Thumbnails: thumbnail.NewClient(cfg.ThumbnailEndpoint(), cfg.ThumbnailTimeout)},
		Classifier:   render.NewDomainClassifier(),
		Personalizer: personalize.Personalizer{EscapeHTML: cfg.PersonalizeEscapeHTML},
		Injector: &tracking.Injector{
			URLs:      tracking.URLs{BaseURL: cfg.AppBaseURL},
			OrgDomain: cfg.OrgDomain,
			Footer:    footer,
		},

		Provider:          sender.Name(),
		CredentialMissing: cfg.CredentialMissing(),
		From:              cfg.FromEmail,
		ReplyTo:           cfg.ReplyToEmail,
		MaxRecipients:     cfg.MaxRecipients,
	}
	tracker := &service.TrackingService{Store: store}

	s := httpserver.New()
	(&httpserver.API{Campaigns: campaigns, Tracking: tracker}).Register(s.Mux)
	(&httpserver.Webhook{Events: tracker, Secret: cfg.ResendWebhookSecret}).Register(s.Mux)
	(&httpserver.Thumbnails{Generator: thumbnail.NewFetcher()}).Register(s.Mux)
	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, readyChecks...))

	srv := httpserver.HTTPServer(":"+cfg.Port, s.Handler(), cfg.WriteTimeout)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("api metrics listening", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api metrics server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		// In-flight campaign sends get the same budget as a write.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port, "esp", sender.Name())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}

func newSender(ctx context.Context, cfg config.APIConfig) (esp.Sender, error) {
	var next esp.Sender
	switch strings.ToLower(cfg.ESPProvider) {
	case "resend":
		next = &resend.Client{
			APIKey:  cfg.ResendAPIKey,
			BaseURL: cfg.ResendBaseURL,
			HTTP:    &http.Client{Timeout: 30 * time.Second},
		}
	case "ses":
		client, err := awsutil.NewSESClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
		if err != nil {
			return nil, err
		}
		next = &ses.Sender{Client: client, ConfigurationSet: cfg.SESConfigurationSet}
	case "postmark":
		next = postmark.New(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.PostmarkStream)
	default:
		return nil, fmt.Errorf("unknown ESP_PROVIDER %q", cfg.ESPProvider)
	}
	return &esp.BreakerSender{Next: next, Breaker: esp.NewBreaker(next.Name())}, nil
}

func newFooter(cfg config.APIConfig) (*tracking.Footer, error) {
	branding, err := config.LoadBranding(cfg.BrandingFile)
	if err != nil {
		return nil, err
	}
	src := ""
	if cfg.FooterTemplateFile != "" {
		raw, err := os.ReadFile(cfg.FooterTemplateFile)
		if err != nil {
			return nil, fmt.Errorf("read footer template: %w", err)
		}
		src = string(raw)
	}
	return tracking.NewFooter(src, branding)
}
