package reclaim

import (
	"context"
	"errors"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/solsweep/service/solana"
)

// ErrSignerMismatch is returned when a local signer does not own the wallet being cleaned.
var ErrSignerMismatch = errors.New("signer does not match wallet")

// Chain is the subset of the Solana client the reclaimer uses.
type Chain interface {
	FetchTokenAccounts(ctx context.Context, owner solanago.PublicKey) ([]solana.TokenAccountRaw, error)
	LatestBlockhash(ctx context.Context) (solana.Blockhash, error)
	SendAndConfirm(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
	Balance(ctx context.Context, account solanago.PublicKey) (uint64, error)
}

// Executor carries planned batches to the chain.
type Executor interface {
	// Mode names the execution path for logs, metrics and the ledger.
	Mode() string
	Execute(ctx context.Context, wallet solanago.PublicKey, batches []Batch) (ExecutionResult, error)
}

// ExecutionResult is what an executor accomplished for one wallet. Closed,
// ReclaimedLamports and Signatures only count confirmed batches.
type ExecutionResult struct {
	Closed            int      `json:"closed"`
	ReclaimedLamports uint64   `json:"reclaimed_lamports"`
	Signatures        []string `json:"signatures,omitempty"`
	FailedBatches     int      `json:"failed_batches"`

	// Relay mode only
	RelayURI             string `json:"relay_uri,omitempty"`
	SessionID            string `json:"session_id,omitempty"`
	UploadedBatches      int    `json:"uploaded_batches,omitempty"`
	LastValidBlockHeight uint64 `json:"last_valid_block_height,omitempty"`
}
