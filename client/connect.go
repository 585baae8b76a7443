package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

// DefaultConnectPollInterval is how often a connect session is polled.
const DefaultConnectPollInterval = 2 * time.Second

// ErrConnectTimeout is returned when no wallet connects before the deadline.
var ErrConnectTimeout = errors.New("timed out waiting for wallet connection")

// SessionRelay is the subset of the relay a connect session needs.
type SessionRelay interface {
	CreateConnectSession(ctx context.Context, label string) (*Session, error)
	Poll(ctx context.Context, sessionID string) (*PollResult, error)
}

// ConnectSession pairs a mobile wallet through the relay and learns its address.
type ConnectSession struct {
	Relay        SessionRelay
	Label        string
	PollInterval time.Duration // DefaultConnectPollInterval when zero
	Timeout      time.Duration // no limit beyond ctx when zero

	// OnSession is called once with the session so its URI can be shown as a QR code.
	OnSession func(*Session)
	// OnWaiting is called after each poll that found no wallet yet.
	OnWaiting func(polls int)

	Logger *slog.Logger
}

// Wait creates the session and polls until a wallet connects, the timeout
// elapses (ErrConnectTimeout) or ctx is cancelled. A poll failure or an
// unparseable wallet address ends the wait with an error.
func (s *ConnectSession) Wait(ctx context.Context) (solanago.PublicKey, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultConnectPollInterval
	}

	session, err := s.Relay.CreateConnectSession(ctx, s.Label)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("failed to create connect session: %w", err)
	}
	if s.OnSession != nil {
		s.OnSession(session)
	}

	waitCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for polls := 1; ; polls++ {
		select {
		case <-waitCtx.Done():
			return solanago.PublicKey{}, waitError(ctx, waitCtx)
		case <-ticker.C:
		}

		res, err := s.Relay.Poll(waitCtx, session.ID)
		if err != nil {
			if waitCtx.Err() != nil {
				return solanago.PublicKey{}, waitError(ctx, waitCtx)
			}
			return solanago.PublicKey{}, fmt.Errorf("failed to poll connect session: %w", err)
		}

		if res.Connected && res.Wallet != "" {
			wallet, err := solanago.PublicKeyFromBase58(res.Wallet)
			if err != nil {
				return solanago.PublicKey{}, fmt.Errorf("%w %q: %v", ErrInvalidWallet, res.Wallet, err)
			}
			logger.InfoContext(ctx, "wallet connected",
				"session_id", session.ID,
				"wallet", wallet.String(),
				"polls", polls,
			)
			return wallet, nil
		}

		if s.OnWaiting != nil {
			s.OnWaiting(polls)
		}
	}
}

// waitError distinguishes our own deadline from the caller's cancellation.
func waitError(parent, wait context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(wait.Err(), context.DeadlineExceeded) {
		return ErrConnectTimeout
	}
	return wait.Err()
}
