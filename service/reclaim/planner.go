package reclaim

import (
	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/solsweep/service/solana"
)

const (
	DefaultBatchSize = 10
	MaxBatchSize     = 20

	// Compute units budgeted per close instruction, plus a fixed overhead.
	ComputeUnitsPerClose = 3000
	ComputeUnitsBase     = 5000

	// DefaultComputeUnitPrice is the priority fee in micro-lamports per compute unit.
	DefaultComputeUnitPrice uint64 = 1000
)

// ClampBatchSize bounds n to [1, MaxBatchSize].
func ClampBatchSize(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}

// Batch is a group of accounts closed by a single transaction.
type Batch struct {
	Accounts []CloseableAccount
}

// ComputeUnitLimit is the compute budget requested for the batch.
func (b Batch) ComputeUnitLimit() uint32 {
	return uint32(len(b.Accounts))*ComputeUnitsPerClose + ComputeUnitsBase
}

// RentLamports is the rent the batch returns when it lands.
func (b Batch) RentLamports() uint64 {
	return TotalRent(b.Accounts)
}

// Addresses lists the batch's account addresses in order.
func (b Batch) Addresses() []solanago.PublicKey {
	out := make([]solanago.PublicKey, len(b.Accounts))
	for i, a := range b.Accounts {
		out[i] = a.Address
	}
	return out
}

// Instructions builds the compute budget and close instructions for owner.
func (b Batch) Instructions(owner solanago.PublicKey, unitPrice uint64) ([]solanago.Instruction, error) {
	return solana.CloseInstructions(owner, b.Addresses(), b.ComputeUnitLimit(), unitPrice)
}

// PlanBatches partitions accounts, in order, into batches of at most size
// (clamped). Every account lands in exactly one batch.
func PlanBatches(accounts []CloseableAccount, size int) []Batch {
	size = ClampBatchSize(size)
	batches := make([]Batch, 0, (len(accounts)+size-1)/size)
	for start := 0; start < len(accounts); start += size {
		end := min(start+size, len(accounts))
		batches = append(batches, Batch{Accounts: accounts[start:end:end]})
	}
	return batches
}
