package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solsweep/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetProgramAccounts(
		ctx context.Context,
		program solana.PublicKey,
		opts *rpc.GetProgramAccountsOpts,
	) (rpc.GetProgramAccountsResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransaction(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

const (
	defaultMaxAttempts     = 3
	defaultRetryBase       = time.Second
	defaultConfirmTimeout  = 60 * time.Second
	defaultConfirmInterval = time.Second
)

// Client provides the chain operations the reclaimer needs.
// It wraps the RPC client with retries, logging and metrics.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (see EndpointLabel)

	maxAttempts     int
	retryBase       time.Duration
	confirmTimeout  time.Duration
	confirmInterval time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetry sets how many times read calls are attempted and the base backoff.
// Rate-limited calls back off twice as long as other failures.
func WithRetry(maxAttempts int, base time.Duration) ClientOption {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if base > 0 {
			c.retryBase = base
		}
	}
}

// WithConfirmation sets how long SendAndConfirm waits and how often it polls.
func WithConfirmation(timeout, interval time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.confirmTimeout = timeout
		}
		if interval > 0 {
			c.confirmInterval = interval
		}
	}
}

// NewClient creates a new Solana client.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		rpc:             rpcClient,
		logger:          logger,
		metrics:         m,
		endpoint:        endpoint,
		maxAttempts:     defaultMaxAttempts,
		retryBase:       defaultRetryBase,
		confirmTimeout:  defaultConfirmTimeout,
		confirmInterval: defaultConfirmInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchTokenAccounts returns every SPL token account owned by owner.
func (c *Client) FetchTokenAccounts(ctx context.Context, owner solana.PublicKey) ([]TokenAccountRaw, error) {
	opts := &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{DataSize: TokenAccountSize},
			{Memcmp: &rpc.RPCFilterMemcmp{
				Offset: ownerOffset,
				Bytes:  solana.Base58(owner.Bytes()),
			}},
		},
	}

	var out rpc.GetProgramAccountsResult
	err := c.withRetry(ctx, "GetProgramAccounts", func() error {
		var err error
		out, err = c.rpc.GetProgramAccounts(ctx, TokenProgramID, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token accounts for %s: %w", owner, err)
	}

	accounts := make([]TokenAccountRaw, 0, len(out))
	for _, keyed := range out {
		if keyed == nil || keyed.Account == nil {
			continue
		}
		var data []byte
		if keyed.Account.Data != nil {
			data = keyed.Account.Data.GetBinary()
		}
		accounts = append(accounts, TokenAccountRaw{
			Address:  keyed.Pubkey,
			Data:     data,
			Lamports: keyed.Account.Lamports,
		})
	}

	c.logger.DebugContext(ctx, "fetched token accounts",
		"wallet", owner.String(),
		"count", len(accounts),
	)
	return accounts, nil
}

// LatestBlockhash fetches a recent blockhash.
func (c *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	var out *rpc.GetLatestBlockhashResult
	err := c.withRetry(ctx, "GetLatestBlockhash", func() error {
		var err error
		out, err = c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		return err
	})
	if err != nil {
		return Blockhash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return Blockhash{}, fmt.Errorf("failed to get latest blockhash: empty response")
	}
	return Blockhash{
		Hash:                 out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// Balance returns the lamport balance of account.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var out *rpc.GetBalanceResult
	err := c.withRetry(ctx, "GetBalance", func() error {
		var err error
		out, err = c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for %s: %w", account, err)
	}
	if out == nil {
		return 0, nil
	}
	return out.Value, nil
}

// SendAndConfirm submits a signed transaction and waits until it reaches
// confirmed commitment. Sends are not retried. A transaction that lands with
// an error, or that is not confirmed in time, is reported as an error along
// with its signature.
func (c *Client) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	c.recordCall("SendTransaction", err, time.Since(start))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.DebugContext(ctx, "transaction sent, awaiting confirmation",
		"signature", sig.String(),
	)

	confirmCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.confirmInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		statuses, err := c.rpc.GetSignatureStatuses(confirmCtx, sig)
		c.recordCall("GetSignatureStatuses", err, time.Since(start))
		if err != nil {
			c.logger.DebugContext(ctx, "signature status check failed",
				"signature", sig.String(),
				"error", err,
			)
		} else if statuses != nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return sig, fmt.Errorf("transaction %s failed: %v", sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return sig, nil
			}
		}

		select {
		case <-confirmCtx.Done():
			return sig, fmt.Errorf("transaction %s not confirmed: %w", sig, confirmCtx.Err())
		case <-ticker.C:
		}
	}
}

// SignaturesForAddress returns up to limit of the most recent signatures for
// address, newest first.
func (c *Client) SignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	}
	var out []*rpc.TransactionSignature
	err := c.withRetry(ctx, "GetSignaturesForAddress", func() error {
		var err error
		out, err = c.rpc.GetSignaturesForAddress(ctx, address, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures for %s: %w", address, err)
	}
	return out, nil
}

// DescribeTransaction resolves a signature into a domain Transaction. When the
// full transaction cannot be fetched or parsed, the signature metadata alone is returned.
func (c *Client) DescribeTransaction(ctx context.Context, sig *rpc.TransactionSignature) *Transaction {
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}
	var result *rpc.GetTransactionResult
	err := c.withRetry(ctx, "GetTransaction", func() error {
		var err error
		result, err = c.rpc.GetTransaction(ctx, sig.Signature, opts)
		return err
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to get transaction details after retries, using metadata only",
			"signature", sig.Signature.String(),
			"error", err,
		)
		return signatureToDomain(sig)
	}

	txn, err := parseTransactionFromResult(sig, result)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to parse transaction, using metadata only",
			"signature", sig.Signature.String(),
			"error", err,
		)
		return signatureToDomain(sig)
	}
	return txn
}

// withRetry runs fn up to maxAttempts times with exponential backoff.
func (c *Client) withRetry(ctx context.Context, method string, fn func() error) error {
	var err error
	for attempt := range c.maxAttempts {
		start := time.Now()
		err = fn()
		c.recordCall(method, err, time.Since(start))
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == c.maxAttempts-1 {
			break
		}

		// Handle rate limiting (429 Too Many Requests) with longer backoff
		reason := "timeout_or_error"
		backoff := c.retryBase * time.Duration(1<<uint(attempt))
		if isRateLimited(err) {
			reason = "rate_limit"
			backoff = c.retryBase * time.Duration(2<<uint(attempt))
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(c.endpoint)
			}
		}
		if c.metrics != nil {
			c.metrics.RecordRPCRetry(method, reason)
		}
		c.logger.WarnContext(ctx, "rpc call failed, retrying",
			"method", method,
			"attempt", attempt+1,
			"reason", reason,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)

		if sleepErr := sleepContext(ctx, backoff); sleepErr != nil {
			return fmt.Errorf("%w (last error: %v)", sleepErr, err)
		}
	}
	return err
}

func (c *Client) recordCall(method string, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, d.Seconds())
}

func isRateLimited(err error) bool {
	return strings.Contains(err.Error(), "429")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
