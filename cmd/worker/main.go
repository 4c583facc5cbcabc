package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/bootstrap"
	"github.com/kirillkom/bank-document-pipeline/internal/config"
	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
	"github.com/kirillkom/bank-document-pipeline/internal/observability/logging"
	"github.com/kirillkom/bank-document-pipeline/internal/observability/metrics"
	"github.com/kirillkom/bank-document-pipeline/internal/scheduler"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app.Bus.OnDeadLetter(func(queue string) {
		workerMetrics.RecordDeadLetter("worker", queue)
	})
	go serveMetrics(cfg.WorkerMetricsPort, workerMetrics, logger)

	sched := scheduler.New(logger)
	registerSchedules(cfg, app, sched)
	sched.Start()
	defer sched.Stop()

	consumers := map[string]ports.MessageHandler{
		cfg.QueueAnalysisEvents: jsonHandler(workerMetrics, "completion", func(ctx context.Context, note domain.JobNotification) error {
			return app.Completion.HandleNotification(ctx, note)
		}),
		cfg.QueueClassification: jsonHandler(workerMetrics, "classify", func(ctx context.Context, msg domain.PipelineMessage) error {
			return app.Classify.HandleRouting(ctx, msg)
		}),
		cfg.QueueIdentity: jsonHandler(workerMetrics, "identity", func(ctx context.Context, msg domain.PipelineMessage) error {
			return app.Identity.Handle(ctx, msg)
		}),
		cfg.QueueContract: jsonHandler(workerMetrics, "contract", func(ctx context.Context, msg domain.PipelineMessage) error {
			return app.Contract.Handle(ctx, msg)
		}),
		cfg.QueueFinancial: jsonHandler(workerMetrics, "financial", func(ctx context.Context, msg domain.PipelineMessage) error {
			return app.Financial.Handle(ctx, msg)
		}),
		cfg.QueueDefault: jsonHandler(workerMetrics, "generic", func(ctx context.Context, msg domain.PipelineMessage) error {
			return app.Generic.Handle(ctx, msg)
		}),
	}

	var wg sync.WaitGroup
	for queue, handler := range consumers {
		wg.Add(1)
		go func(queue string, handler ports.MessageHandler) {
			defer wg.Done()
			logger.Info("worker consuming", "queue", queue)
			if err := app.Bus.Consume(ctx, queue, handler); err != nil && ctx.Err() == nil {
				logger.Error("consumer stopped", "queue", queue, "error", err)
				stop()
			}
		}(queue, handler)
	}

	<-ctx.Done()
	wg.Wait()
}

// jsonHandler adapts a typed stage handler to the raw bus contract. A body
// that does not decode can never succeed, so it is reported as a parsing
// failure and parked.
func jsonHandler[T any](m *metrics.WorkerMetrics, stage string, fn func(ctx context.Context, msg T) error) ports.MessageHandler {
	return func(ctx context.Context, data []byte) error {
		var msg T
		if err := json.Unmarshal(data, &msg); err != nil {
			return domain.WrapError(domain.ErrParsing, "decode "+stage+" message", err)
		}

		m.StartStage()
		start := time.Now()
		err := fn(ctx, msg)
		m.FinishStage("worker", stage, time.Since(start), err)
		return err
	}
}

func registerSchedules(cfg config.Config, app *bootstrap.App, sched *scheduler.Scheduler) {
	err := sched.Add(cfg.ExpirySweepSchedule, "expiry_sweep", 10*time.Minute, func(ctx context.Context) error {
		_, err := app.Expiry.Sweep(ctx, time.Now())
		return err
	})
	if err != nil {
		log.Fatalf("schedule expiry sweep: %v", err)
	}

	err = sched.Add(cfg.ViewSweepSchedule, "client_view_aggregation", 30*time.Minute, func(ctx context.Context) error {
		_, err := app.Views.RecomputeAll(ctx)
		return err
	})
	if err != nil {
		log.Fatalf("schedule view aggregation: %v", err)
	}
}

func serveMetrics(port string, m *metrics.WorkerMetrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("worker metrics server error", "error", err)
	}
}
