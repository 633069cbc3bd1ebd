package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailout/internal/awsutil"
	"mailout/internal/config"
	"mailout/internal/httpserver"
	"mailout/internal/logging"
	"mailout/internal/observability"
	sqsqueue "mailout/internal/queue/sqs"
	"mailout/internal/store/pg"
	"mailout/internal/worker"
)

// recorder drains campaign bookkeeping that the API could not write inline.
func main() {
	cfg := config.LoadRecorder()
	logging.Init("recorder", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.NewPool(ctx, cfg.DB.DSN, "mailout-recorder", pg.PoolOptions{
		MaxConns:          cfg.DB.MaxConns,
		MinConns:          cfg.DB.MinConns,
		MaxConnLifetime:   cfg.DB.MaxConnLifetime,
		MaxConnIdleTime:   cfg.DB.MaxConnIdleTime,
		HealthCheckPeriod: cfg.DB.HealthCheckPeriod,
		PingTimeout:       3 * time.Second,
	})
	if err != nil {
		slog.Error("recorder db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	store := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("recorder sqs client init failed", "err", err)
		os.Exit(1)
	}

	queueReachable := func(c context.Context) error {
		_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
			QueueUrl:       &cfg.RecordQueueURL,
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
		})
		return err
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := queueReachable(startupCtx); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	consumer := &sqsqueue.Consumer{
		SQS: sqsClient, QueueURL: cfg.RecordQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}
	processor := &worker.Processor{Store: store}

	// health server (liveness + readiness) also serves /metrics
	health := httpserver.New()
	health.Mux.HandleFunc("/healthz", httpserver.Healthz())
	health.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second,
		httpserver.ReadyzCheck{Name: "postgres", Check: store.Ping},
		httpserver.ReadyzCheck{Name: "sqs", Check: queueReachable},
	))
	health.Mux.Handle("/metrics", promhttp.Handler())

	healthSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.Logging(health.Mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("recorder health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("recorder starting poll", "queue_url", cfg.RecordQueueURL, "concurrency", cfg.Concurrency)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.Concurrency, func(ctx context.Context, ev sqsqueue.RecordEvent) error {
			start := time.Now()
			err := processor.Process(ctx, ev)
			attrs := []any{
				"campaign_id", ev.CampaignID,
				"send_id", ev.SendID,
				"kind", ev.Kind,
				"duration", time.Since(start),
			}
			if err != nil {
				slog.Warn("recorder event failed", append(attrs, "err", err)...)
				return err
			}
			slog.Info("recorder event applied", attrs...)
			return nil
		})
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("recorder poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("recorder health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("recorder shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("recorder shutdown timeout waiting for poll loop")
	}
}
