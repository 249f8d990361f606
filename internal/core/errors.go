package core

import "errors"

// Error taxonomy shared across the core. Callers branch with errors.Is; every
// other failure is wrapped context around one of these or an infrastructure
// error.
var (
	// ErrPartitionNotFound means the month's backing container does not exist
	// and must be provisioned manually; the core never creates containers.
	ErrPartitionNotFound = errors.New("partition not found: manual provisioning required")

	// ErrDuplicateTransaction rejects a candidate without mutating anything.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCurrency = errors.New("invalid currency")

	ErrGoalNotFound       = errors.New("savings goal not found")
	ErrDebtNotFound       = errors.New("debt not found")
	ErrObligationNotFound = errors.New("recurring obligation not found")

	// ErrRateUnavailable means no usable conversion rate exists: the partition
	// is unconfigured, no stamped precedent could be reused, or the rate API
	// failed. Non-base writes fail rather than guess.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
)
