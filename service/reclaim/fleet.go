package reclaim

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	solanago "github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/brojonat/solsweep/service/metrics"
)

// DefaultFleetConcurrency caps how many wallets are processed at once.
const DefaultFleetConcurrency = 10

// Limiter admits a bounded number of concurrent wallet runs.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

type semaphoreLimiter struct {
	sem *semaphore.Weighted
}

// NewLimiter returns a Limiter admitting at most n holders (at least 1).
func NewLimiter(n int) Limiter {
	if n < 1 {
		n = 1
	}
	return &semaphoreLimiter{sem: semaphore.NewWeighted(int64(n))}
}

func (l *semaphoreLimiter) Acquire(ctx context.Context) error { return l.sem.Acquire(ctx, 1) }
func (l *semaphoreLimiter) Release()                          { l.sem.Release(1) }

// WalletEntry is one wallet of a fleet with the key that signs for it.
type WalletEntry struct {
	Wallet solanago.PublicKey
	Signer solanago.PrivateKey
	Line   int // source line, for diagnostics
}

// PipelineFactory builds the pipeline for one fleet wallet. It is called after
// the wallet is admitted, so each run gets its own chain client.
type PipelineFactory func(entry WalletEntry) (*Pipeline, error)

// FleetResult is a wallet result tagged with the wallet's position in the input.
type FleetResult struct {
	Index int `json:"index"`
	WalletResult
}

// Fleet processes many wallets concurrently under a shared Limiter.
type Fleet struct {
	newPipeline PipelineFactory
	limiter     Limiter
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewFleet creates a fleet runner. A nil limiter means NewLimiter(DefaultFleetConcurrency).
func NewFleet(factory PipelineFactory, limiter Limiter, logger *slog.Logger, m *metrics.Metrics) *Fleet {
	if limiter == nil {
		limiter = NewLimiter(DefaultFleetConcurrency)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fleet{
		newPipeline: factory,
		limiter:     limiter,
		logger:      logger,
		metrics:     m,
	}
}

// Run processes every entry and returns results sorted by input index.
// Completion order is unconstrained. A run that panics is logged and left
// out of the results; every other run, including failures, is reported.
func (f *Fleet) Run(ctx context.Context, entries []WalletEntry) []FleetResult {
	var (
		mu      sync.Mutex
		results = make([]FleetResult, 0, len(entries))
		g       errgroup.Group
	)

	for i, entry := range entries {
		g.Go(func() error {
			res, ok := f.runOne(ctx, i, entry)
			if ok {
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].Index < results[b].Index })
	return results
}

func (f *Fleet) runOne(ctx context.Context, index int, entry WalletEntry) (res FleetResult, ok bool) {
	res = FleetResult{Index: index, WalletResult: WalletResult{Wallet: entry.Wallet}}

	if err := f.limiter.Acquire(ctx); err != nil {
		res.Err = fmt.Errorf("not admitted: %w", err)
		res.Error = res.Err.Error()
		return res, true
	}
	defer f.limiter.Release()

	if f.metrics != nil {
		f.metrics.RecordFleetInFlight(1)
		defer f.metrics.RecordFleetInFlight(-1)
	}

	defer func() {
		if r := recover(); r != nil {
			f.logger.ErrorContext(ctx, "wallet run panicked",
				"index", index,
				"wallet", entry.Wallet.String(),
				"panic", fmt.Sprint(r),
			)
			ok = false
		}
	}()

	pipeline, err := f.newPipeline(entry)
	if err != nil {
		res.Err = fmt.Errorf("failed to set up wallet: %w", err)
		res.Error = res.Err.Error()
		return res, true
	}

	res.WalletResult = pipeline.Run(ctx, entry.Wallet)
	return res, true
}

// FleetTotals summarizes a fleet run.
type FleetTotals struct {
	Wallets           int    `json:"wallets"`
	Failed            int    `json:"failed"`
	Closed            int    `json:"closed"`
	ReclaimedLamports uint64 `json:"reclaimed_lamports"`
	Candidates        int    `json:"candidates"`
	CandidateRent     uint64 `json:"candidate_rent_lamports"`
}

// Summarize totals fleet results.
func Summarize(results []FleetResult) FleetTotals {
	var t FleetTotals
	for _, r := range results {
		t.Wallets++
		if !r.Success {
			t.Failed++
		}
		t.Closed += r.Closed
		t.ReclaimedLamports += r.ReclaimedLamports
		t.Candidates += r.Candidates
		t.CandidateRent += r.CandidateRentLamports
	}
	return t
}
