// Package bootstrap wires configuration, infrastructure and use cases into
// one App shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/classifier/rules"
	"github.com/kirillkom/bank-document-pipeline/internal/config"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
	"github.com/kirillkom/bank-document-pipeline/internal/core/usecase"
	"github.com/kirillkom/bank-document-pipeline/internal/infrastructure/analysis/docanalysis"
	"github.com/kirillkom/bank-document-pipeline/internal/infrastructure/notification/mailer"
	natsqueue "github.com/kirillkom/bank-document-pipeline/internal/infrastructure/queue/nats"
	"github.com/kirillkom/bank-document-pipeline/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/bank-document-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/bank-document-pipeline/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/bank-document-pipeline/internal/infrastructure/validation"
)

type App struct {
	Config config.Config
	Log    *slog.Logger

	Bus     *natsqueue.Bus
	Routing usecase.QueueRouting

	Documents ports.DocumentRepository

	Intake     ports.DocumentIntake
	Completion ports.CompletionHandler
	Classify   ports.RoutingHandler
	Identity   ports.SpecializedHandler
	Contract   ports.SpecializedHandler
	Financial  ports.SpecializedHandler
	Generic    ports.SpecializedHandler
	Expiry     ports.ExpiryMonitor
	Views      ports.ViewAggregator
	Reviews    ports.ReviewService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	docs := postgres.NewDocumentRepository(db)
	jobs := postgres.NewAnalysisJobRepository(db)
	fields := postgres.NewExtractedFieldsRepository(db)
	classifications := postgres.NewClassificationRepository(db)
	records := postgres.NewSpecializedRecordRepository(db)
	alerts := postgres.NewExpiryAlertRepository(db)
	clients := postgres.NewClientRepository(db)
	views := postgres.NewClientViewRepository(db)
	reviews := postgres.NewReviewRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	routing := usecase.QueueRouting{
		Identity:  cfg.QueueIdentity,
		Contract:  cfg.QueueContract,
		Financial: cfg.QueueFinancial,
		Default:   cfg.QueueDefault,
	}
	bus, err := natsqueue.New(cfg.NATSURL, natsqueue.Options{
		StreamName: cfg.QueueStream,
		Subjects: []string{
			cfg.QueueAnalysisEvents,
			cfg.QueueClassification,
			cfg.QueueIdentity,
			cfg.QueueContract,
			cfg.QueueFinancial,
			cfg.QueueDefault,
		},
		AckWait:            time.Duration(cfg.QueueAckWaitSeconds) * time.Second,
		MaxDeliver:         cfg.QueueMaxDeliver,
		Concurrency:        cfg.WorkerConcurrency,
		ResilienceExecutor: executor,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("init message bus: %w", err)
	}

	analysisClient := docanalysis.New(cfg.AnalysisURL, executor)
	mailClient := mailer.New(cfg.MailerURL, cfg.SourceEmail, executor)
	validator := validation.New()

	engine, err := rules.Load(cfg.RulesPath)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("load classification rules: %w", err)
	}

	intake := usecase.NewIntakeUseCase(docs, jobs, storage, analysisClient, validator, cfg.MaxUploadBytes, log)
	viewsUC := usecase.NewClientViewUseCase(docs, records, clients, views, log)
	completion := usecase.NewExtractionResultUseCase(docs, jobs, fields, reviews, analysisClient, bus, cfg.QueueClassification, log)
	classify := usecase.NewClassifyUseCase(docs, fields, classifications, engine, bus, routing, log)
	expiry := usecase.NewExpiryUseCase(alerts, clients, mailClient, cfg.ExpiryLookaheadDays, cfg.SourceEmail, log)
	review := usecase.NewReviewUseCase(reviews, intake, log)

	return &App{
		Config:  cfg,
		Log:     log,
		Bus:     bus,
		Routing: routing,

		Documents: docs,

		Intake:     intake,
		Completion: completion,
		Classify:   classify,
		Identity:   usecase.NewIdentityExtractor(docs, fields, records, reviews, viewsUC, log),
		Contract:   usecase.NewContractExtractor(docs, fields, records, reviews, viewsUC, log),
		Financial:  usecase.NewFinancialExtractor(docs, fields, records, reviews, viewsUC, log),
		Generic:    usecase.NewGenericExtractor(docs, fields, reviews, viewsUC, log),
		Expiry:     expiry,
		Views:      viewsUC,
		Reviews:    review,

		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
