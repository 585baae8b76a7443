package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	temporalsdk "go.temporal.io/sdk/temporal"

	"github.com/brojonat/solsweep/service/metrics"
	natspkg "github.com/brojonat/solsweep/service/nats"
	"github.com/brojonat/solsweep/service/reclaim"
)

// ScanWalletInput is the argument of ScanWalletWorkflow and the ScanWallet activity.
type ScanWalletInput struct {
	Address       string `json:"address"`
	DustThreshold uint64 `json:"dust_threshold"` // raw token units; 0 counts only empty accounts as reclaimable
}

// ScanWalletResult summarizes one scheduled scan.
type ScanWalletResult struct {
	Address     string              `json:"address"`
	Report      *reclaim.ScanReport `json:"report,omitempty"`
	Recorded    bool                `json:"recorded"`
	Published   bool                `json:"published"`
	CompletedAt time.Time           `json:"completed_at"`
	Error       *string             `json:"error,omitempty"`
}

// ScanStoreInterface persists scan reports.
type ScanStoreInterface interface {
	RecordScan(ctx context.Context, report *reclaim.ScanReport) error
}

// PublisherInterface announces scan reports.
type PublisherInterface interface {
	PublishScan(ctx context.Context, event *natspkg.ScanEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
// store and publisher may be nil, in which case their activities do nothing.
type Activities struct {
	chain     reclaim.ScanSource
	store     ScanStoreInterface
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	chain reclaim.ScanSource,
	store ScanStoreInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		chain:     chain,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// ScanWallet reads the wallet's token accounts and builds a health report.
func (a *Activities) ScanWallet(ctx context.Context, input ScanWalletInput) (report *reclaim.ScanReport, err error) {
	start := time.Now()
	defer func() { a.recordDuration("ScanWallet", start, err) }()

	wallet, err := solanago.PublicKeyFromBase58(input.Address)
	if err != nil {
		a.logger.ErrorContext(ctx, "invalid wallet address",
			"address", input.Address,
			"error", err,
		)
		return nil, temporalsdk.NewNonRetryableApplicationError("invalid wallet address", "InvalidAddress", err)
	}

	report, err = reclaim.Scan(ctx, a.chain, wallet, reclaim.ClosurePolicy{DustThreshold: input.DustThreshold})
	if err != nil {
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	a.logger.InfoContext(ctx, "scanned wallet",
		"address", input.Address,
		"accounts", report.TotalAccounts,
		"closeable", report.Closeable,
		"reclaimable_lamports", report.ReclaimableRent,
		"health_score", report.HealthScore,
	)
	return report, nil
}

// RecordScan writes the report to the ledger.
func (a *Activities) RecordScan(ctx context.Context, report *reclaim.ScanReport) (err error) {
	start := time.Now()
	defer func() { a.recordDuration("RecordScan", start, err) }()

	if a.store == nil {
		a.logger.DebugContext(ctx, "no store configured, skipping scan record")
		return nil
	}
	if err := a.store.RecordScan(ctx, report); err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	return nil
}

// PublishScan announces the report on NATS.
func (a *Activities) PublishScan(ctx context.Context, report *reclaim.ScanReport) (err error) {
	start := time.Now()
	defer func() { a.recordDuration("PublishScan", start, err) }()

	if a.publisher == nil {
		a.logger.DebugContext(ctx, "no publisher configured, skipping scan event")
		return nil
	}
	if err := a.publisher.PublishScan(ctx, natspkg.FromScanReport(report)); err != nil {
		return fmt.Errorf("failed to publish scan: %w", err)
	}
	return nil
}

func (a *Activities) recordDuration(activity string, start time.Time, err error) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, time.Since(start).Seconds(), err)
	}
}
