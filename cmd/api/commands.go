package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-essay-api/internal/config"
	"github.com/noah-isme/gema-essay-api/internal/dto"
	"github.com/noah-isme/gema-essay-api/internal/handler"
	"github.com/noah-isme/gema-essay-api/internal/middleware"
	"github.com/noah-isme/gema-essay-api/internal/repository"
	"github.com/noah-isme/gema-essay-api/internal/router"
	"github.com/noah-isme/gema-essay-api/internal/service"
	"github.com/noah-isme/gema-essay-api/internal/utils"
)

var (
	withNotifier bool

	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the retry scheduler",
	RunE:  runServe,
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-evaluate failed submissions once and exit",
	RunE:  runRetry,
}

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Consume API failure events and send alerts",
	RunE:  runNotifier,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator token for the admin endpoints",
	RunE:  runToken,
}

func init() {
	serveCmd.Flags().BoolVar(&withNotifier, "with-notifier", false, "also run the alert notifier in this process")

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleOperator, "token role (admin or operator)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(serveCmd, retryCmd, notifierCmd, tokenCmd)
}

func loadRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newRuntime(cfg, newLogger(cfg.LogLevel)), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.openDatabase(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := rt.openBus(); err != nil {
		return fmt.Errorf("failed to open event bus: %w", err)
	}
	evaluator, err := rt.newEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}

	cfg := rt.cfg
	logger := rt.logger
	validate := dto.NewValidator()

	submissionRepo := repository.NewSubmissionRepository(rt.db)
	studentRepo := repository.NewStudentRepository(rt.db)
	revisionRepo := repository.NewRevisionRepository(rt.db)
	requestLogRepo := repository.NewRequestLogRepository(rt.db)

	submissionService := service.NewSubmissionService(submissionRepo, studentRepo, evaluator, validate, logger)
	revisionService := service.NewRevisionService(revisionRepo, submissionRepo, evaluator, validate, logger)
	retryService := service.NewRetryService(submissionRepo, evaluator, rt.bus, service.RetryConfig{
		Schedule:      cfg.RetrySchedule,
		MaxRetryCount: cfg.RetryMaxCount,
		Topic:         cfg.BusTopic,
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: utils.ErrorHandler,
	})

	middleware.Register(app, middleware.Config{
		TraceLogging: middleware.TraceLoggingConfig{
			Logs:      requestLogRepo,
			Publisher: rt.bus,
			Topic:     cfg.BusTopic,
			Logger:    logger,
		},
	})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, middleware.RateLimit("submissions", cfg.SubmissionRateLimit, cfg.SubmissionRateWindow), logger),
		RevisionHandler:   handler.NewRevisionHandler(revisionService, logger),
		AdminRetryHandler: handler.NewAdminRetryHandler(retryService, logger),
		HealthProbes:      rt.healthProbes(),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := retryService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start retry scheduler: %w", err)
	}
	defer retryService.Stop()

	if withNotifier {
		dispatcher, err := rt.newDispatcher()
		if err != nil {
			return fmt.Errorf("failed to create notifier: %w", err)
		}
		go func() {
			if err := dispatcher.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("notifier stopped")
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(cfg.HTTPAddress())
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Str("bus", cfg.BusDriver).Msg("server started")

	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	waitForShutdown(app, rt)
	return nil
}

func runRetry(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.openDatabase(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := rt.openBus(); err != nil {
		return fmt.Errorf("failed to open event bus: %w", err)
	}
	evaluator, err := rt.newEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}

	retryService := service.NewRetryService(repository.NewSubmissionRepository(rt.db), evaluator, rt.bus, service.RetryConfig{
		MaxRetryCount: rt.cfg.RetryMaxCount,
		Topic:         rt.cfg.BusTopic,
	}, rt.logger)

	report, err := retryService.RetryFailed(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "selected=%d succeeded=%d failed=%d duration=%s\n",
		report.Selected, report.Succeeded, report.Failed, report.Duration)
	return nil
}

func runNotifier(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.openBus(); err != nil {
		return fmt.Errorf("failed to open event bus: %w", err)
	}
	dispatcher, err := rt.newDispatcher()
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt.logger.Info().Str("bus", rt.cfg.BusDriver).Str("group", rt.cfg.BusGroup).Msg("notifier started")
	return dispatcher.Run(ctx)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	token, err := middleware.IssueOperatorToken(cfg.JWTSecret, tokenSubject, tokenRole, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func waitForShutdown(app *fiber.App, rt *runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		rt.logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	rt.logger.Info().Msg("server stopped")
}
