// Package reclaim finds token accounts whose rent can be recovered and closes
// them in batches, for one wallet or a fleet of wallets.
package reclaim

import (
	"math"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/solsweep/service/solana"
)

// TokenDecimals is the decimal count assumed for every mint when converting
// raw amounts to display balances and dust thresholds.
const TokenDecimals = 9

var tokenScale = math.Pow10(TokenDecimals)

// Verdict is the classifier's decision for one account.
type Verdict int

const (
	VerdictCloseable Verdict = iota
	VerdictMalformed
	VerdictDelegated
	VerdictFrozen
	VerdictHasBalance
)

func (v Verdict) String() string {
	switch v {
	case VerdictCloseable:
		return "closeable"
	case VerdictMalformed:
		return "malformed"
	case VerdictDelegated:
		return "delegated"
	case VerdictFrozen:
		return "frozen"
	case VerdictHasBalance:
		return "has_balance"
	default:
		return "unknown"
	}
}

// ClosurePolicy decides which balances still allow closing.
// DustThreshold is in raw token units; zero disables dust closing.
type ClosurePolicy struct {
	DustThreshold uint64
}

// DustThresholdFromTokens converts a whole-token dust amount into raw units.
// Non-positive values disable dust closing.
func DustThresholdFromTokens(tokens float64) uint64 {
	if tokens <= 0 || math.IsNaN(tokens) {
		return 0
	}
	return uint64(tokens * tokenScale)
}

func (p ClosurePolicy) allows(amount uint64) bool {
	if amount == 0 {
		return true
	}
	return p.DustThreshold > 0 && amount <= p.DustThreshold
}

// CloseableAccount is an account that passed classification.
type CloseableAccount struct {
	Address      solanago.PublicKey `json:"address"`
	Mint         solanago.PublicKey `json:"mint"`
	TokenBalance float64            `json:"token_balance"`
	RawAmount    uint64             `json:"raw_amount"`
	RentLamports uint64             `json:"rent_lamports"`
}

// Classify decides whether raw can be closed under policy. It never panics;
// the returned account is only meaningful when the verdict is VerdictCloseable.
func Classify(raw solana.TokenAccountRaw, policy ClosurePolicy) (CloseableAccount, Verdict) {
	layout := solana.DecodeTokenAccount(raw.Data)
	switch {
	case layout.Completeness == solana.LayoutMalformed:
		return CloseableAccount{}, VerdictMalformed
	case layout.HasDelegate:
		return CloseableAccount{}, VerdictDelegated
	case layout.IsFrozen():
		return CloseableAccount{}, VerdictFrozen
	case !policy.allows(layout.Amount):
		return CloseableAccount{}, VerdictHasBalance
	}

	return CloseableAccount{
		Address:      raw.Address,
		Mint:         layout.Mint,
		TokenBalance: float64(layout.Amount) / tokenScale,
		RawAmount:    layout.Amount,
		RentLamports: raw.Lamports,
	}, VerdictCloseable
}

// Classification is the outcome of classifying a wallet's accounts.
type Classification struct {
	Closeable []CloseableAccount
	Counts    map[Verdict]int
}

// RentLamports sums the rent held by the closeable accounts.
func (c Classification) RentLamports() uint64 {
	return TotalRent(c.Closeable)
}

// ClassifyAll classifies every account, keeping closeable ones in input order.
func ClassifyAll(raws []solana.TokenAccountRaw, policy ClosurePolicy) Classification {
	out := Classification{Counts: make(map[Verdict]int)}
	for _, raw := range raws {
		acc, verdict := Classify(raw, policy)
		out.Counts[verdict]++
		if verdict == VerdictCloseable {
			out.Closeable = append(out.Closeable, acc)
		}
	}
	return out
}

// TotalRent sums RentLamports across accounts.
func TotalRent(accounts []CloseableAccount) uint64 {
	var total uint64
	for _, a := range accounts {
		total += a.RentLamports
	}
	return total
}
