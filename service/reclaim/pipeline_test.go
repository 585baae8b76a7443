package reclaim

import (
	"context"
	"errors"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/solsweep/service/solana"
)

type captureSink struct {
	recorded  []WalletResult
	published []WalletResult
	err       error
}

func (s *captureSink) RecordWalletResult(ctx context.Context, res WalletResult) error {
	s.recorded = append(s.recorded, res)
	return s.err
}

func (s *captureSink) PublishWalletResult(ctx context.Context, res WalletResult) error {
	s.published = append(s.published, res)
	return s.err
}

func mixedAccounts() []solana.TokenAccountRaw {
	return []solana.TokenAccountRaw{
		rawAccount(accountSpec{lamports: 2_000_000}),
		rawAccount(accountSpec{frozen: true}),
		rawAccount(accountSpec{amount: 50, delegated: true}),
		rawAccount(accountSpec{amount: 100, lamports: 3_000_000}),
		rawAccount(accountSpec{amount: 10_000}),
	}
}

func TestPipeline_DryRun(t *testing.T) {
	chain := &mockChain{accounts: mixedAccounts()}
	p := NewPipeline(chain, nil, Options{Policy: ClosurePolicy{DustThreshold: 200}, DryRun: true}, testLogger(), nil)

	res := p.Run(context.Background(), solanago.NewWallet().PublicKey())

	assert.True(t, res.Success)
	assert.Equal(t, "dry_run", res.Mode)
	assert.Equal(t, 5, res.TotalAccounts)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, uint64(5_000_000), res.CandidateRentLamports)
	assert.Zero(t, res.Closed)
	assert.Empty(t, chain.sent)
}

func TestPipeline_FetchFailureMarksWalletFailed(t *testing.T) {
	chain := &mockChain{fetchErr: errors.New("connection refused")}
	p := NewPipeline(chain, nil, Options{}, testLogger(), nil)

	res := p.Run(context.Background(), solanago.NewWallet().PublicKey())

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection refused")
}

func TestPipeline_NothingToClose(t *testing.T) {
	chain := &mockChain{accounts: []solana.TokenAccountRaw{rawAccount(accountSpec{amount: 5})}}
	p := NewPipeline(chain, nil, Options{}, testLogger(), nil)

	res := p.Run(context.Background(), solanago.NewWallet().PublicKey())
	assert.True(t, res.Success)
	assert.Zero(t, res.Candidates)
}

func TestPipeline_ExecutesLocally(t *testing.T) {
	signer := solanago.NewWallet().PrivateKey
	accounts := make([]solana.TokenAccountRaw, 12)
	for i := range accounts {
		accounts[i] = rawAccount(accountSpec{lamports: 1_000})
	}
	chain := &mockChain{accounts: accounts, sendErrs: []error{errors.New("simulation failed")}}
	exec := NewLocalExecutor(chain, signer, 0, testLogger(), nil)
	sink := &captureSink{}

	p := NewPipeline(chain, exec, Options{BatchSize: 5}, testLogger(), nil).
		WithRecorder(sink).
		WithPublisher(sink)
	res := p.Run(context.Background(), signer.PublicKey())

	assert.True(t, res.Success, "partial batch failure is not a wallet failure")
	assert.Equal(t, "local", res.Mode)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 1, res.FailedBatches)
	assert.Equal(t, 7, res.Closed)
	assert.Equal(t, uint64(7_000), res.ReclaimedLamports)
	require.Len(t, sink.recorded, 1)
	require.Len(t, sink.published, 1)
	assert.Equal(t, res.Wallet, sink.recorded[0].Wallet)
}

func TestPipeline_FilterNarrowsCandidates(t *testing.T) {
	chain := &mockChain{accounts: []solana.TokenAccountRaw{
		rawAccount(accountSpec{lamports: 1_000}),
		rawAccount(accountSpec{lamports: 5_000_000}),
	}}
	filter, err := NewAccountFilter([]string{".rent_lamports > 1000000"})
	require.NoError(t, err)

	p := NewPipeline(chain, nil, Options{DryRun: true, Filter: filter}, testLogger(), nil)
	res := p.Run(context.Background(), solanago.NewWallet().PublicKey())

	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, uint64(5_000_000), res.CandidateRentLamports)
}

func TestPipeline_SinkErrorsDoNotFailWallet(t *testing.T) {
	chain := &mockChain{}
	sink := &captureSink{err: errors.New("db down")}
	p := NewPipeline(chain, nil, Options{}, testLogger(), nil).WithRecorder(sink)

	res := p.Run(context.Background(), solanago.NewWallet().PublicKey())
	assert.True(t, res.Success)
	assert.Len(t, sink.recorded, 1)
}

func TestPipeline_MissingExecutor(t *testing.T) {
	chain := &mockChain{accounts: []solana.TokenAccountRaw{rawAccount(accountSpec{})}}
	p := NewPipeline(chain, nil, Options{}, testLogger(), nil)

	res := p.Run(context.Background(), solanago.NewWallet().PublicKey())
	assert.False(t, res.Success)
	assert.Equal(t, "no executor configured", res.Error)
}
