package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/brojonat/solsweep/service/reclaim"
)

var a *Activities // for type-safe activity invocation

// ScanWalletWorkflow scans a wallet, records the report and publishes it.
// It is started by a per-wallet schedule. A failed publish is logged and
// does not fail the workflow.
func ScanWalletWorkflow(ctx workflow.Context, input ScanWalletInput) (*ScanWalletResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ScanWalletWorkflow started", "address", input.Address)

	result := &ScanWalletResult{Address: input.Address}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 120 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var report *reclaim.ScanReport
	if err := workflow.ExecuteActivity(ctx, a.ScanWallet, input).Get(ctx, &report); err != nil {
		return fail(ctx, result, "failed to scan wallet", err)
	}
	result.Report = report

	if err := workflow.ExecuteActivity(ctx, a.RecordScan, report).Get(ctx, nil); err != nil {
		return fail(ctx, result, "failed to record scan", err)
	}
	result.Recorded = true

	if err := workflow.ExecuteActivity(ctx, a.PublishScan, report).Get(ctx, nil); err != nil {
		logger.Warn("failed to publish scan", "address", input.Address, "error", err)
	} else {
		result.Published = true
	}

	result.CompletedAt = workflow.Now(ctx)
	logger.Info("ScanWalletWorkflow completed",
		"address", input.Address,
		"health_score", report.HealthScore,
		"closeable", report.Closeable,
	)
	return result, nil
}

func fail(ctx workflow.Context, result *ScanWalletResult, msg string, err error) (*ScanWalletResult, error) {
	workflow.GetLogger(ctx).Error(msg, "address", result.Address, "error", err)
	errMsg := fmt.Sprintf("%s: %v", msg, err)
	result.Error = &errMsg
	result.CompletedAt = workflow.Now(ctx)
	return result, fmt.Errorf("%s: %w", msg, err)
}
