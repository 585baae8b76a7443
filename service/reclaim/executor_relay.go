package reclaim

import (
	"context"
	"fmt"
	"log/slog"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/solsweep/client"
	"github.com/brojonat/solsweep/service/metrics"
	"github.com/brojonat/solsweep/service/solana"
)

// DefaultRelayLabel is shown by the wallet when it opens the relay session.
const DefaultRelayLabel = "solsweep: Close Empty Accounts"

// TransactionRelay stores unsigned transactions for a mobile wallet to sign.
type TransactionRelay interface {
	UploadTransactions(ctx context.Context, upload client.UploadRequest) (*client.Session, error)
}

// BlockhashSource supplies recent blockhashes.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Blockhash, error)
}

// RelayExecutor builds unsigned transactions and hands them to the relay.
// It does not learn whether the wallet signs them, so nothing is counted as closed.
type RelayExecutor struct {
	chain     BlockhashSource
	relay     TransactionRelay
	label     string
	unitPrice uint64
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewRelayExecutor creates a relay executor. Empty label and zero unitPrice take defaults.
func NewRelayExecutor(chain BlockhashSource, relay TransactionRelay, label string, unitPrice uint64, logger *slog.Logger, m *metrics.Metrics) *RelayExecutor {
	if label == "" {
		label = DefaultRelayLabel
	}
	if unitPrice == 0 {
		unitPrice = DefaultComputeUnitPrice
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayExecutor{
		chain:     chain,
		relay:     relay,
		label:     label,
		unitPrice: unitPrice,
		logger:    logger,
		metrics:   m,
	}
}

func (e *RelayExecutor) Mode() string { return "relay" }

// Execute encodes every batch against one shared blockhash and uploads them
// in a single request. All transactions expire together at the returned
// LastValidBlockHeight, so the wallet must sign them promptly.
func (e *RelayExecutor) Execute(ctx context.Context, wallet solanago.PublicKey, batches []Batch) (ExecutionResult, error) {
	var res ExecutionResult
	if len(batches) == 0 {
		return res, nil
	}

	blockhash, err := e.chain.LatestBlockhash(ctx)
	if err != nil {
		return res, err
	}

	encoded := make([]string, 0, len(batches))
	for i, batch := range batches {
		ixs, err := batch.Instructions(wallet, e.unitPrice)
		if err != nil {
			return res, fmt.Errorf("failed to build batch %d: %w", i+1, err)
		}
		tx, err := solana.NewTransaction(ixs, blockhash.Hash, wallet)
		if err != nil {
			return res, fmt.Errorf("failed to build batch %d: %w", i+1, err)
		}
		b64, err := solana.EncodeUnsignedTransaction(tx)
		if err != nil {
			return res, fmt.Errorf("failed to encode batch %d: %w", i+1, err)
		}
		encoded = append(encoded, b64)
	}

	session, err := e.relay.UploadTransactions(ctx, client.UploadRequest{
		Transactions: encoded,
		Wallet:       wallet.String(),
		Label:        e.label,
	})
	if err != nil {
		return res, fmt.Errorf("failed to upload transactions: %w", err)
	}

	res.RelayURI = session.URI
	res.SessionID = session.ID
	res.UploadedBatches = len(encoded)
	res.LastValidBlockHeight = blockhash.LastValidBlockHeight

	if e.metrics != nil {
		for _, batch := range batches {
			e.metrics.RecordBatch(e.Mode(), "uploaded", len(batch.Accounts), batch.RentLamports())
		}
	}
	e.logger.WarnContext(ctx, "relay transactions share one blockhash and expire together",
		"wallet", wallet.String(),
		"session_id", session.ID,
		"transactions", len(encoded),
		"last_valid_block_height", blockhash.LastValidBlockHeight,
	)
	return res, nil
}
