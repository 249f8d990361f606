package services

import (
	"context"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/currency"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
)

const (
	RateSourceBCV      = "BCV"
	RateSourceParallel = "PARALELO"

	// RateSourceManual marks an operator-set rate. Distinct from the
	// factory default source so a hand-set rate of 1.0 still reads as a
	// configured partition, not an untouched one.
	RateSourceManual = "MANUAL_SET"
)

// RateAdmin sets each partition's conversion rate, by hand or from the
// exchange rate API.
type RateAdmin struct {
	resolver ledger.Resolver
	rates    currency.RateService
	logger   *log.Logger
}

func NewRateAdmin(resolver ledger.Resolver, rates currency.RateService, logger *log.Logger) *RateAdmin {
	return &RateAdmin{resolver: resolver, rates: rates, logger: logger}
}

// SetManual stores an operator-provided rate.
func (a *RateAdmin) SetManual(ctx context.Context, key core.MonthKey, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: rate must be positive", core.ErrInvalidAmount)
	}
	part, err := a.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	if err := part.SetRate(ctx, rate, RateSourceManual, 0, 0); err != nil {
		return fmt.Errorf("set rate: %w", err)
	}
	a.logger.Info("rate set manually",
		log.FieldPartition, key.String(),
		log.FieldRate, rate,
	)
	return nil
}

// Refresh pulls current rates from the API and stores the chosen source's
// value as the partition rate, keeping both quotes for reference.
func (a *RateAdmin) Refresh(ctx context.Context, key core.MonthKey, source string) (float64, error) {
	if a.rates == nil {
		return 0, core.ErrRateUnavailable
	}
	quotes, err := a.rates.CurrentRates(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrRateUnavailable, err)
	}

	var rate float64
	switch source {
	case RateSourceParallel:
		rate = quotes.Parallel
	case RateSourceBCV, "":
		source = RateSourceBCV
		rate = quotes.Official
	default:
		return 0, fmt.Errorf("unknown rate source %q", source)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("%w: source %s returned no quote", core.ErrRateUnavailable, source)
	}

	part, err := a.resolver.Resolve(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := part.SetRate(ctx, rate, source, quotes.Official, quotes.Parallel); err != nil {
		return 0, fmt.Errorf("set rate: %w", err)
	}
	a.logger.Info("rate refreshed from api",
		log.FieldPartition, key.String(),
		log.FieldRate, rate,
		"source", source,
	)
	return rate, nil
}
