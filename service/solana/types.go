package solana

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// TokenAccountRaw is a token account as returned by the RPC node: its address,
// the raw account data, and the lamports it holds (the rent deposit).
type TokenAccountRaw struct {
	Address  solana.PublicKey
	Data     []byte
	Lamports uint64
}

// Blockhash is a recent blockhash together with the last block height at which
// transactions referencing it are still accepted.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// Transaction is a transaction observed for a monitored wallet.
// This is our domain model, independent of the RPC response format.
type Transaction struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
	Memo      *string
	Err       *string // nil if the transaction succeeded

	// BalanceChange is the fee payer's lamport delta (post - pre). Zero when
	// the transaction details could not be fetched.
	BalanceChange int64
	Fee           uint64
}

// Succeeded reports whether the transaction executed without error.
func (t *Transaction) Succeeded() bool {
	return t.Err == nil
}
