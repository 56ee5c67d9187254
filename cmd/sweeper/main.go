// The sweeper runs the background ledger maintenance jobs: rolling over
// budgets whose periods have ended, reminding users of upcoming loan
// instalments, and reconciling cached aggregates against the tracked
// transaction sets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"finledger/internal/config"
	"finledger/internal/database"
	"finledger/internal/logger"
	"finledger/internal/notify"
	"finledger/internal/scheduler"
	"finledger/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	var sender notify.Sender
	if appConfig.AMQPURL != "" {
		publisher, err := notify.NewPublisher(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.AMQPQueue)
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP broker: %w", err)
		}
		sender = publisher
	} else {
		log.Warn("AMQP_URL not set, notifications will only be logged")
		sender = notify.NewLogSender()
	}
	defer func() {
		if err := sender.Close(); err != nil {
			log.Warnf("failed to close notification sender: %v", err)
		}
	}()

	db := dbManager.DB()
	notificationService := services.NewNotificationService(db, sender)
	rolloverService := services.NewRolloverService(db, notificationService)
	reconciliationService := services.NewReconciliationService(db)

	sched := scheduler.New()
	sched.Add(scheduler.Job{
		Name: "rollover-sweep",
		Run: func(ctx context.Context, now time.Time) error {
			count, err := rolloverService.SweepDueBudgets(ctx, now)
			if err != nil {
				return err
			}
			log.Infow("rollover sweep finished", "budgets_rolled", count)
			return nil
		},
	}, scheduler.NewTickerTrigger(appConfig.RolloverSweepInterval))

	sched.Add(scheduler.Job{
		Name: "instalment-reminders",
		Run: func(ctx context.Context, now time.Time) error {
			count, err := notificationService.SweepInstalmentReminders(ctx, now)
			if err != nil {
				return err
			}
			log.Infow("instalment reminder sweep finished", "reminders_sent", count)
			return nil
		},
	}, scheduler.NewTickerTrigger(appConfig.ReminderSweepInterval))

	sched.Add(scheduler.Job{
		Name: "reconciliation",
		Run: func(ctx context.Context, now time.Time) error {
			report, err := reconciliationService.Run(ctx, now)
			if err != nil {
				return err
			}
			log.Infow("reconciliation finished",
				"budgets_checked", report.BudgetsChecked,
				"budgets_corrected", report.BudgetsCorrected,
				"loans_checked", report.LoansChecked,
				"loans_corrected", report.LoansCorrected,
			)
			return nil
		},
	}, scheduler.NewTickerTrigger(appConfig.ReconcileSweepInterval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start(ctx)
		return nil
	})

	log.Infow("sweeper started",
		"rollover_interval", appConfig.RolloverSweepInterval,
		"reminder_interval", appConfig.ReminderSweepInterval,
		"reconcile_interval", appConfig.ReconcileSweepInterval,
	)

	<-ctx.Done()
	log.Info("Shutdown signal received, waiting for in-flight jobs")
	return g.Wait()
}
