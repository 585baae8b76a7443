package reclaim

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/solsweep/service/solana"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type accountSpec struct {
	amount    uint64
	delegated bool
	frozen    bool
	lamports  uint64
}

func rawAccount(spec accountSpec) solana.TokenAccountRaw {
	data := make([]byte, solana.TokenAccountSize)
	mint := solanago.NewWallet().PublicKey()
	copy(data[0:32], mint[:])
	binary.LittleEndian.PutUint64(data[64:72], spec.amount)
	if spec.delegated {
		binary.LittleEndian.PutUint32(data[72:76], 1)
	}
	data[108] = byte(solana.AccountStateInitialized)
	if spec.frozen {
		data[108] = byte(solana.AccountStateFrozen)
	}
	lamports := spec.lamports
	if lamports == 0 {
		lamports = 2_039_280
	}
	return solana.TokenAccountRaw{
		Address:  solanago.NewWallet().PublicKey(),
		Data:     data,
		Lamports: lamports,
	}
}

func closeableAccounts(n int) []CloseableAccount {
	out := make([]CloseableAccount, n)
	for i := range out {
		out[i] = CloseableAccount{
			Address:      solanago.NewWallet().PublicKey(),
			Mint:         solanago.NewWallet().PublicKey(),
			RentLamports: uint64(1000 + i),
		}
	}
	return out
}

// mockChain implements Chain and ScanSource.
type mockChain struct {
	mu sync.Mutex

	accounts  []solana.TokenAccountRaw
	fetchErr  error
	fetchWait time.Duration
	balance   uint64

	blockhashErr error
	blockhashes  int

	// sendErrs is consumed one entry per SendAndConfirm call; nil means success.
	sendErrs []error
	sent     []*solanago.Transaction
}

func (m *mockChain) FetchTokenAccounts(ctx context.Context, owner solanago.PublicKey) ([]solana.TokenAccountRaw, error) {
	if m.fetchWait > 0 {
		select {
		case <-time.After(m.fetchWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.accounts, m.fetchErr
}

func (m *mockChain) LatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockhashes++
	if m.blockhashErr != nil {
		return solana.Blockhash{}, m.blockhashErr
	}
	return solana.Blockhash{Hash: solanago.Hash{byte(m.blockhashes)}, LastValidBlockHeight: 1000}, nil
}

func (m *mockChain) SendAndConfirm(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, tx)
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return solanago.Signature{}, err
		}
	}
	return tx.Signatures[0], nil
}

func (m *mockChain) Balance(ctx context.Context, account solanago.PublicKey) (uint64, error) {
	return m.balance, nil
}
