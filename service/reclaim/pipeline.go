package reclaim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/solsweep/service/metrics"
)

// Options control what a pipeline closes and how.
type Options struct {
	Policy    ClosurePolicy
	BatchSize int // clamped to [1, MaxBatchSize]; zero means DefaultBatchSize
	DryRun    bool
	Filter    *AccountFilter
}

// WalletResult is the outcome of one pipeline run.
type WalletResult struct {
	Wallet solanago.PublicKey `json:"wallet"`
	Mode   string             `json:"mode"`
	DryRun bool               `json:"dry_run"`

	TotalAccounts         int                `json:"total_accounts"`
	Candidates            int                `json:"candidates"`
	CandidateRentLamports uint64             `json:"candidate_rent_lamports"`
	Accounts              []CloseableAccount `json:"accounts,omitempty"`
	Batches               int                `json:"batches"`

	ExecutionResult

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Recorder persists wallet results.
type Recorder interface {
	RecordWalletResult(ctx context.Context, res WalletResult) error
}

// Publisher announces wallet results.
type Publisher interface {
	PublishWalletResult(ctx context.Context, res WalletResult) error
}

// Pipeline runs fetch, classify, plan and execute for one wallet.
type Pipeline struct {
	chain     Chain
	executor  Executor
	opts      Options
	recorder  Recorder
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewPipeline creates a pipeline. executor may be nil for dry runs.
func NewPipeline(chain Chain, executor Executor, opts Options, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	opts.BatchSize = ClampBatchSize(opts.BatchSize)
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chain:    chain,
		executor: executor,
		opts:     opts,
		logger:   logger,
		metrics:  m,
	}
}

// WithRecorder sets a sink that persists every result.
func (p *Pipeline) WithRecorder(r Recorder) *Pipeline {
	p.recorder = r
	return p
}

// WithPublisher sets a sink that announces every result.
func (p *Pipeline) WithPublisher(pub Publisher) *Pipeline {
	p.publisher = pub
	return p
}

// Run processes wallet. It never returns an error: failures are reported
// through the result so one wallet cannot stop a fleet.
func (p *Pipeline) Run(ctx context.Context, wallet solanago.PublicKey) WalletResult {
	res := WalletResult{
		Wallet:    wallet,
		DryRun:    p.opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	if p.executor != nil {
		res.Mode = p.executor.Mode()
	}
	if p.opts.DryRun {
		res.Mode = "dry_run"
	}

	p.execute(ctx, wallet, &res)

	res.FinishedAt = time.Now().UTC()
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	p.finish(ctx, res)
	return res
}

func (p *Pipeline) execute(ctx context.Context, wallet solanago.PublicKey, res *WalletResult) {
	raws, err := p.chain.FetchTokenAccounts(ctx, wallet)
	if err != nil {
		res.Err = err
		return
	}
	res.TotalAccounts = len(raws)

	classified := ClassifyAll(raws, p.opts.Policy)
	if p.metrics != nil {
		for verdict, n := range classified.Counts {
			p.metrics.RecordAccountsClassified(verdict.String(), n)
		}
	}

	candidates := p.opts.Filter.Apply(classified.Closeable)
	res.Accounts = candidates
	res.Candidates = len(candidates)
	res.CandidateRentLamports = TotalRent(candidates)

	p.logger.InfoContext(ctx, "classified token accounts",
		"wallet", wallet.String(),
		"total", len(raws),
		"closeable", len(classified.Closeable),
		"candidates", len(candidates),
		"malformed", classified.Counts[VerdictMalformed],
		"delegated", classified.Counts[VerdictDelegated],
		"frozen", classified.Counts[VerdictFrozen],
	)

	if len(candidates) == 0 || p.opts.DryRun {
		res.Success = true
		return
	}
	if p.executor == nil {
		res.Err = errors.New("no executor configured")
		return
	}

	batches := PlanBatches(candidates, p.opts.BatchSize)
	res.Batches = len(batches)

	exec, err := p.executor.Execute(ctx, wallet, batches)
	res.ExecutionResult = exec
	if err != nil {
		res.Err = err
		return
	}
	res.Success = true
}

func (p *Pipeline) finish(ctx context.Context, res WalletResult) {
	outcome := "success"
	if !res.Success {
		outcome = "failed"
		p.logger.ErrorContext(ctx, "wallet pipeline failed",
			"wallet", res.Wallet.String(),
			"error", res.Err,
		)
	} else {
		p.logger.InfoContext(ctx, "wallet pipeline finished",
			"wallet", res.Wallet.String(),
			"mode", res.Mode,
			"candidates", res.Candidates,
			"closed", res.Closed,
			"reclaimed_lamports", res.ReclaimedLamports,
			"failed_batches", res.FailedBatches,
		)
	}
	if p.metrics != nil {
		p.metrics.RecordWalletProcessed(outcome)
	}

	// sink failures are logged only
	if p.recorder != nil {
		if err := p.recorder.RecordWalletResult(ctx, res); err != nil {
			p.logger.WarnContext(ctx, "failed to record wallet result",
				"wallet", res.Wallet.String(),
				"error", err,
			)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.PublishWalletResult(ctx, res); err != nil {
			p.logger.WarnContext(ctx, "failed to publish wallet result",
				"wallet", res.Wallet.String(),
				"error", err,
			)
		}
	}
}
