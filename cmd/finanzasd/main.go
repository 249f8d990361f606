package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finanzas/internal/amqp"
	"finanzas/internal/backend"
	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/currency"
	apphttp "finanzas/internal/http"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
	"finanzas/internal/partition"
	"finanzas/internal/services"
	"finanzas/internal/session"
	"finanzas/internal/storage"
)

func main() {
	// Load .env for local development; absent in containers.
	_ = godotenv.Load()

	logger := log.NewComponent(log.ComponentApp)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid", log.FieldError, err.Error())
		os.Exit(1)
	}

	clock := core.SystemClock{}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.NewStore(ctx, cfg, clock, logger)
	if err != nil {
		logger.Error("backend init failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("sqlite open failed", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var (
		notifier services.Notifier
		bus      *amqp.Client
	)
	if cfg.AMQPURL != "" {
		bus, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log.NewComponent(log.ComponentAMQP))
		if err != nil {
			logger.Error("amqp connect failed", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer bus.Close()
		notifier = amqp.NewNotifier(bus, log.NewComponent(log.ComponentAMQP))
		logger.Info("event bus connected", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("event bus disabled, AMQP_URL not set")
	}

	resolver := partition.NewResolver(store, log.NewComponent(log.ComponentPartition))
	led := ledger.New(resolver, clock, log.NewComponent(log.ComponentLedger))

	rateAPI := currency.NewDolarAPIClient(cfg.RateAPIURL, cfg.RateCacheTTL)

	// One lock table for every tracker writing through the same store.
	locks := services.NewPartitionLocks()

	gamify := services.NewGamification(repo, resolver, led, clock, log.NewComponent(log.ComponentGamify))
	budgets := services.NewBudgetTracker(resolver, locks, led, log.NewComponent(log.ComponentBudget))
	savings := services.NewSavingsTracker(resolver, locks, clock, repo, notifier, log.NewComponent(log.ComponentSavings))
	debts := services.NewDebtTracker(resolver, locks, clock, log.NewComponent(log.ComponentDebt))
	recurring := services.NewRecurringScheduler(resolver, locks, clock, log.NewComponent(log.ComponentRecurring))
	rates := services.NewRateAdmin(resolver, rateAPI, log.NewComponent(log.ComponentCurrency))
	transactions := services.NewTransactionService(led, resolver, locks, budgets, gamify, repo, notifier, log.NewComponent(log.ComponentLedger))

	sessions := session.NewStore(cfg.SessionTTL, clock, log.NewComponent(log.ComponentSession))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions: transactions,
		Budgets:      budgets,
		Savings:      savings,
		Debts:        debts,
		Recurring:    recurring,
		Rates:        rates,
		Gamify:       gamify,
		Sessions:     sessions,
		Logger:       log.NewComponent(log.ComponentHTTP),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sessions.Run(ctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("finanzasd started", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}
