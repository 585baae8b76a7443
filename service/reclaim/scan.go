package reclaim

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/solsweep/service/solana"
)

// ScanSource is what a wallet scan reads from the chain.
type ScanSource interface {
	FetchTokenAccounts(ctx context.Context, owner solanago.PublicKey) ([]solana.TokenAccountRaw, error)
	Balance(ctx context.Context, account solanago.PublicKey) (uint64, error)
}

// ScanReport summarizes a wallet's token accounts.
type ScanReport struct {
	Wallet             string    `json:"wallet"`
	BalanceLamports    uint64    `json:"balance_lamports"`
	TotalAccounts      int       `json:"total_accounts"`
	EmptyAccounts      int       `json:"empty_accounts"`
	WithBalance        int       `json:"with_balance"`
	Delegated          int       `json:"delegated"`
	Frozen             int       `json:"frozen"`
	UniqueMints        int       `json:"unique_mints"`
	Closeable          int       `json:"closeable"`
	RentLockedLamports uint64    `json:"rent_locked_lamports"`
	ReclaimableRent    uint64    `json:"reclaimable_rent_lamports"`
	HealthScore        int       `json:"health_score"`
	ScannedAt          time.Time `json:"scanned_at"`
}

// HealthRating is a label for a health score.
func (r ScanReport) HealthRating() string {
	switch {
	case r.HealthScore >= 90:
		return "Excellent"
	case r.HealthScore >= 70:
		return "Good"
	case r.HealthScore >= 50:
		return "Fair"
	default:
		return "Needs attention"
	}
}

// Scan reads wallet's balance and token accounts and scores them. Accounts
// too short to include a state byte are not counted. Reclaimable rent uses
// the same rules as a clean under policy.
func Scan(ctx context.Context, chain ScanSource, wallet solanago.PublicKey, policy ClosurePolicy) (*ScanReport, error) {
	balance, err := chain.Balance(ctx, wallet)
	if err != nil {
		return nil, err
	}
	raws, err := chain.FetchTokenAccounts(ctx, wallet)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{
		Wallet:          wallet.String(),
		BalanceLamports: balance,
		ScannedAt:       time.Now().UTC(),
	}
	mints := make(map[solanago.PublicKey]struct{})

	for _, raw := range raws {
		layout := solana.DecodeTokenAccount(raw.Data)
		if layout.Completeness != solana.LayoutComplete {
			continue
		}

		report.TotalAccounts++
		report.RentLockedLamports += raw.Lamports
		mints[layout.Mint] = struct{}{}

		if layout.Amount == 0 {
			report.EmptyAccounts++
		} else {
			report.WithBalance++
		}
		if layout.HasDelegate {
			report.Delegated++
		}
		if layout.IsFrozen() {
			report.Frozen++
		}
		if _, verdict := Classify(raw, policy); verdict == VerdictCloseable {
			report.Closeable++
			report.ReclaimableRent += raw.Lamports
		}
	}

	report.UniqueMints = len(mints)
	report.HealthScore = HealthScore(report.EmptyAccounts, report.Delegated, report.Frozen, report.TotalAccounts)
	return report, nil
}

// HealthScore rates a wallet from 0 to 100. Empty accounts cost up to 35
// points by share, delegations 5 each (max 25), frozen accounts 2 each (max 10).
func HealthScore(empty, delegated, frozen, total int) int {
	if total == 0 {
		return 100
	}
	score := 100

	emptyPct := int(float64(empty) / float64(total) * 100)
	switch {
	case emptyPct <= 5:
	case emptyPct <= 20:
		score -= 10
	case emptyPct <= 50:
		score -= 20
	default:
		score -= 35
	}

	score -= min(delegated*5, 25)
	score -= min(frozen*2, 10)

	return max(0, min(score, 100))
}

// String renders the score the way the CLI prints it.
func (r ScanReport) String() string {
	return fmt.Sprintf("%d/100 (%s)", r.HealthScore, r.HealthRating())
}
