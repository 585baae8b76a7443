package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	// signatureWindow is how many recent signatures are fetched per poll.
	signatureWindow = 100

	LamportsPerSOL = 1_000_000_000
)

// Watcher reports new transactions for a wallet by polling its signature list.
type Watcher struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a Watcher that polls every interval.
func NewWatcher(client *Client, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Watcher{client: client, interval: interval, logger: logger}
}

// Run seeds the seen set with the wallet's current signatures, then calls fn
// for every new transaction, oldest first, until ctx is cancelled. The seed
// count is passed to ready once before polling starts. Cancellation is not an error.
func (w *Watcher) Run(ctx context.Context, wallet solana.PublicKey, ready func(seeded int), fn func(*Transaction)) error {
	initial, err := w.client.SignaturesForAddress(ctx, wallet, signatureWindow)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed initial signature fetch: %w", err)
	}

	seen := make(map[string]struct{}, len(initial))
	for _, sig := range initial {
		seen[sig.Signature.String()] = struct{}{}
	}
	if ready != nil {
		ready(len(seen))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		sigs, err := w.client.SignaturesForAddress(ctx, wallet, signatureWindow)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.WarnContext(ctx, "failed to poll signatures",
				"wallet", wallet.String(),
				"error", err,
			)
			continue
		}

		// RPC returns newest first
		for i := len(sigs) - 1; i >= 0; i-- {
			key := sigs[i].Signature.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fn(w.client.DescribeTransaction(ctx, sigs[i]))
		}
	}
}

// LamportsToSOL converts lamports to SOL for display.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSOL
}

// FormatSOL renders a SOL amount with precision that scales with its size.
func FormatSOL(sol float64) string {
	switch {
	case sol == 0:
		return "0 SOL"
	case sol < 0.001:
		return fmt.Sprintf("%.9f SOL", sol)
	case sol < 1:
		return fmt.Sprintf("%.6f SOL", sol)
	default:
		return fmt.Sprintf("%.4f SOL", sol)
	}
}
