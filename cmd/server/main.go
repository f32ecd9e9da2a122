package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anyai-fi/invoicerobot/internal/analyzer"
	"github.com/anyai-fi/invoicerobot/internal/api"
	"github.com/anyai-fi/invoicerobot/internal/approval"
	"github.com/anyai-fi/invoicerobot/internal/config"
	"github.com/anyai-fi/invoicerobot/internal/email"
	"github.com/anyai-fi/invoicerobot/internal/fetcher"
	"github.com/anyai-fi/invoicerobot/internal/matcher"
	"github.com/anyai-fi/invoicerobot/internal/netvisor"
	"github.com/anyai-fi/invoicerobot/internal/ocr"
	"github.com/anyai-fi/invoicerobot/internal/report"
	"github.com/anyai-fi/invoicerobot/internal/repository"
	"github.com/anyai-fi/invoicerobot/internal/worker"
	"github.com/anyai-fi/invoicerobot/pkg/database"
	"github.com/anyai-fi/invoicerobot/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting InvoiceRobot",
		zap.Int("port", cfg.Server.Port),
		zap.Float64("confidence_threshold", cfg.Matching.ConfidenceThreshold))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	projectRepo := repository.NewProjectRepository(db.DB, logger)
	approvalRepo := repository.NewApprovalRepository(db.DB, logger)

	accounting := newAccountingService(cfg, logger)

	extractor := newExtractor(cfg, logger)
	matcherChain := newMatcherChain(cfg, logger)

	mailer := email.NewLogMailer(logger)
	notifier := email.NewSender(email.Config{
		ApprovalBaseURL:  cfg.Approval.BaseURL,
		FallbackApprover: cfg.Approval.FallbackApprover,
	}, mailer, logger)

	invoiceAnalyzer := analyzer.New(
		analyzer.Config{ConfidenceThreshold: cfg.Matching.ConfidenceThreshold},
		invoiceRepo, projectRepo, approvalRepo, db,
		accounting, extractor, matcherChain, notifier,
		logger,
	)

	invoiceFetcher := fetcher.New(
		fetcher.Config{Lookback: cfg.Netvisor.InvoiceLookback},
		accounting, invoiceRepo, projectRepo, logger,
	)

	resolver := approval.NewResolver(approvalRepo, invoiceRepo, db, accounting, logger)
	expirer := approval.NewExpirer(approvalRepo, cfg.Approval.RequestTTL, logger)

	handlers := api.NewHandlers(resolver, invoiceRepo, approvalRepo, projectRepo, report.NewExporter(logger), logger)
	server := api.NewServer(api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	manager := worker.NewManager(logger)
	manager.Register(worker.NewPeriodic("invoice-fetcher", cfg.Worker.FetchInterval, invoiceFetcher.Run, logger))
	manager.Register(worker.NewPeriodic("invoice-analyzer", cfg.Worker.AnalyzeInterval, invoiceAnalyzer.Run, logger))
	manager.Register(worker.NewPeriodic("approval-expirer", cfg.Worker.AnalyzeInterval, expirer.Run, logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()
	manager.StopAll()
	logger.Info("InvoiceRobot stopped")
}

// newAccountingService selects the accounting client. Only the mock is
// bundled; real credentials require the external Netvisor client.
func newAccountingService(cfg *config.Config, logger *zap.Logger) netvisor.Service {
	if !cfg.Netvisor.UseMock {
		logger.Warn("Real Netvisor client not bundled, falling back to mock")
	}
	return netvisor.NewMockService()
}

// newExtractor builds the text extraction pipeline: the PDF text layer
// first, the vision model for scanned documents when AI is enabled.
func newExtractor(cfg *config.Config, logger *zap.Logger) ocr.Extractor {
	fitz := ocr.NewFitzExtractor(logger)
	if !cfg.Matching.EnableAIMatcher || cfg.OpenAI.APIKey == "" {
		return fitz
	}
	vision := ocr.NewVisionExtractor(cfg.OpenAI.APIKey, cfg.OpenAI.VisionModel, logger)
	return ocr.NewFallback(logger, fitz, vision)
}

// newMatcherChain builds the matcher chain: heuristics first, the AI
// matcher as fallback when enabled.
func newMatcherChain(cfg *config.Config, logger *zap.Logger) *matcher.Chain {
	matchers := []matcher.ProjectMatcher{matcher.NewHeuristicMatcher(logger)}
	if cfg.Matching.EnableAIMatcher {
		matchers = append(matchers, matcher.NewOpenAIMatcher(
			cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature, logger))
	}
	return matcher.NewChain(logger, matchers...)
}
