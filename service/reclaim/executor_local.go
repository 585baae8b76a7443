package reclaim

import (
	"context"
	"fmt"
	"log/slog"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/solsweep/service/metrics"
	"github.com/brojonat/solsweep/service/solana"
)

// LocalExecutor signs each batch with a local key and sends it, one batch at a time.
type LocalExecutor struct {
	chain     Chain
	signer    solanago.PrivateKey
	unitPrice uint64
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewLocalExecutor creates an executor signing with signer.
// A zero unitPrice means DefaultComputeUnitPrice.
func NewLocalExecutor(chain Chain, signer solanago.PrivateKey, unitPrice uint64, logger *slog.Logger, m *metrics.Metrics) *LocalExecutor {
	if unitPrice == 0 {
		unitPrice = DefaultComputeUnitPrice
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalExecutor{
		chain:     chain,
		signer:    signer,
		unitPrice: unitPrice,
		logger:    logger,
		metrics:   m,
	}
}

func (e *LocalExecutor) Mode() string { return "local" }

// Execute sends batches in order, each with a fresh blockhash. A batch that
// fails at any step is logged and skipped; later batches still run.
func (e *LocalExecutor) Execute(ctx context.Context, wallet solanago.PublicKey, batches []Batch) (ExecutionResult, error) {
	var res ExecutionResult
	if err := solana.VerifyKeypair(e.signer, wallet); err != nil {
		return res, fmt.Errorf("%w: %v", ErrSignerMismatch, err)
	}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("stopped before batch %d/%d: %w", i+1, len(batches), err)
		}

		sig, err := e.executeBatch(ctx, wallet, batch)
		if err != nil {
			res.FailedBatches++
			e.logger.WarnContext(ctx, "batch failed",
				"wallet", wallet.String(),
				"batch", i+1,
				"batches", len(batches),
				"accounts", len(batch.Accounts),
				"error", err,
			)
			if e.metrics != nil {
				e.metrics.RecordBatch(e.Mode(), "failed", len(batch.Accounts), batch.RentLamports())
			}
			continue
		}

		res.Closed += len(batch.Accounts)
		res.ReclaimedLamports += batch.RentLamports()
		res.Signatures = append(res.Signatures, sig.String())
		e.logger.InfoContext(ctx, "batch confirmed",
			"wallet", wallet.String(),
			"batch", i+1,
			"batches", len(batches),
			"accounts", len(batch.Accounts),
			"signature", sig.String(),
		)
		if e.metrics != nil {
			e.metrics.RecordBatch(e.Mode(), "confirmed", len(batch.Accounts), batch.RentLamports())
		}
	}
	return res, nil
}

func (e *LocalExecutor) executeBatch(ctx context.Context, wallet solanago.PublicKey, batch Batch) (solanago.Signature, error) {
	blockhash, err := e.chain.LatestBlockhash(ctx)
	if err != nil {
		return solanago.Signature{}, err
	}
	ixs, err := batch.Instructions(wallet, e.unitPrice)
	if err != nil {
		return solanago.Signature{}, err
	}
	tx, err := solana.NewTransaction(ixs, blockhash.Hash, wallet)
	if err != nil {
		return solanago.Signature{}, err
	}
	if err := solana.SignTransaction(tx, e.signer); err != nil {
		return solanago.Signature{}, err
	}
	return e.chain.SendAndConfirm(ctx, tx)
}
