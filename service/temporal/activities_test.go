package temporal

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	natspkg "github.com/brojonat/solsweep/service/nats"
	"github.com/brojonat/solsweep/service/reclaim"
	"github.com/brojonat/solsweep/service/solana"
)

type MockChain struct {
	mock.Mock
}

func (m *MockChain) FetchTokenAccounts(ctx context.Context, owner solanago.PublicKey) ([]solana.TokenAccountRaw, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]solana.TokenAccountRaw), args.Error(1)
}

func (m *MockChain) Balance(ctx context.Context, account solanago.PublicKey) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) RecordScan(ctx context.Context, report *reclaim.ScanReport) error {
	return m.Called(ctx, report).Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tokenAccount(amount uint64, lamports uint64) solana.TokenAccountRaw {
	data := make([]byte, solana.TokenAccountSize)
	mint := solanago.NewWallet().PublicKey()
	copy(data[0:32], mint[:])
	binary.LittleEndian.PutUint64(data[64:72], amount)
	data[108] = byte(solana.AccountStateInitialized)
	return solana.TokenAccountRaw{Address: solanago.NewWallet().PublicKey(), Data: data, Lamports: lamports}
}

func TestActivities_ScanWallet(t *testing.T) {
	wallet := solanago.MustPublicKeyFromBase58(testWallet)
	chain := &MockChain{}
	chain.On("Balance", mock.Anything, wallet).Return(uint64(1_000_000_000), nil)
	chain.On("FetchTokenAccounts", mock.Anything, wallet).Return([]solana.TokenAccountRaw{
		tokenAccount(0, 2_000_000),
		tokenAccount(300, 2_000_000),
		tokenAccount(5_000, 2_000_000),
	}, nil)

	acts := NewActivities(chain, nil, nil, nil, quietLogger())
	report, err := acts.ScanWallet(context.Background(), ScanWalletInput{Address: testWallet, DustThreshold: 500})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalAccounts)
	assert.Equal(t, 2, report.Closeable)
	assert.Equal(t, uint64(4_000_000), report.ReclaimableRent)
	chain.AssertExpectations(t)
}

func TestActivities_ScanWallet_InvalidAddressIsNonRetryable(t *testing.T) {
	acts := NewActivities(&MockChain{}, nil, nil, nil, quietLogger())

	_, err := acts.ScanWallet(context.Background(), ScanWalletInput{Address: "not-a-wallet"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "InvalidAddress", appErr.Type())
}

func TestActivities_ScanWallet_ChainError(t *testing.T) {
	chain := &MockChain{}
	chain.On("Balance", mock.Anything, mock.Anything).Return(uint64(0), errors.New("rpc down"))

	acts := NewActivities(chain, nil, nil, nil, quietLogger())
	_, err := acts.ScanWallet(context.Background(), ScanWalletInput{Address: testWallet})
	assert.ErrorContains(t, err, "failed to scan wallet")
}

func TestActivities_RecordScan(t *testing.T) {
	report := &reclaim.ScanReport{Wallet: testWallet}

	t.Run("no store is a no-op", func(t *testing.T) {
		acts := NewActivities(nil, nil, nil, nil, quietLogger())
		assert.NoError(t, acts.RecordScan(context.Background(), report))
	})

	t.Run("store error is wrapped", func(t *testing.T) {
		store := &MockStore{}
		store.On("RecordScan", mock.Anything, report).Return(errors.New("db down"))

		acts := NewActivities(nil, store, nil, nil, quietLogger())
		err := acts.RecordScan(context.Background(), report)
		assert.ErrorContains(t, err, "failed to record scan")
		store.AssertExpectations(t)
	})
}

func TestActivities_PublishScan(t *testing.T) {
	publisher := natspkg.NewMockPublisher()
	acts := NewActivities(nil, nil, publisher, nil, quietLogger())

	require.NoError(t, acts.PublishScan(context.Background(), &reclaim.ScanReport{Wallet: testWallet, HealthScore: 65}))

	events := publisher.ScanEvents()
	require.Len(t, events, 1)
	assert.Equal(t, natspkg.EventTypeScan, events[0].Type)
	assert.Equal(t, 65, events[0].HealthScore)
}

func TestMockScheduler(t *testing.T) {
	ctx := context.Background()
	s := NewMockScheduler()

	require.NoError(t, s.UpsertScanSchedule(ctx, testWallet, 0, 0))
	require.NoError(t, s.UpsertScanSchedule(ctx, testWallet, 3600e9, 1000))

	got, ok := s.Schedule(testWallet)
	require.True(t, ok)
	assert.Equal(t, uint64(1000), got.DustThreshold)

	require.NoError(t, s.DeleteScanSchedule(ctx, testWallet))
	assert.Error(t, s.DeleteScanSchedule(ctx, testWallet))
	assert.Equal(t, "scan-wallet-abc", scheduleID("abc"))
}
