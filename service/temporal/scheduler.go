package temporal

import (
	"context"
	"time"
)

// Scheduler manages per-wallet scan schedules.
// Each wallet gets its own schedule that triggers ScanWalletWorkflow.
type Scheduler interface {
	// UpsertScanSchedule creates the wallet's schedule or replaces its interval and dust threshold.
	UpsertScanSchedule(ctx context.Context, address string, interval time.Duration, dustThreshold uint64) error

	// DeleteScanSchedule deletes the wallet's schedule.
	DeleteScanSchedule(ctx context.Context, address string) error
}

// scheduleID returns the Temporal schedule ID for a wallet address.
func scheduleID(address string) string {
	return "scan-wallet-" + address
}
