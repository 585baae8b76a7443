package solana

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// TokenAccountSize is the data length of an SPL token account.
const TokenAccountSize = 165

// Byte offsets within token account data.
const (
	mintOffset           = 0
	ownerOffset          = 32
	amountOffset         = 64
	delegateOptionOffset = 72
	stateOffset          = 108

	// minimum lengths needed to read each field
	minAmountLen   = amountOffset + 8
	minDelegateLen = delegateOptionOffset + 4
	minStateLen    = stateOffset + 1
)

// AccountState mirrors the SPL token account state byte.
type AccountState uint8

const (
	AccountStateUninitialized AccountState = 0
	AccountStateInitialized   AccountState = 1
	AccountStateFrozen        AccountState = 2
)

// LayoutCompleteness describes how much of a token account could be read.
type LayoutCompleteness int

const (
	// LayoutMalformed means the amount could not be read; nothing else is trusted.
	LayoutMalformed LayoutCompleteness = iota
	// LayoutPartial means the amount was read but the delegate or state fields
	// were missing and took their zero values (no delegate, not frozen).
	LayoutPartial
	// LayoutComplete means every field was present.
	LayoutComplete
)

func (c LayoutCompleteness) String() string {
	switch c {
	case LayoutMalformed:
		return "malformed"
	case LayoutPartial:
		return "partial"
	case LayoutComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// TokenAccountLayout is the decoded subset of a token account the reclaimer needs.
type TokenAccountLayout struct {
	Mint         solana.PublicKey
	Owner        solana.PublicKey
	Amount       uint64
	HasDelegate  bool
	State        AccountState
	Completeness LayoutCompleteness
}

// IsFrozen reports whether the account state is frozen.
func (l TokenAccountLayout) IsFrozen() bool {
	return l.State == AccountStateFrozen
}

// DecodeTokenAccount reads a token account from raw bytes. It never fails:
// short buffers are reported through Completeness. Buffers too short for the
// delegate option or the state byte read as "no delegate" and "not frozen".
func DecodeTokenAccount(data []byte) TokenAccountLayout {
	var l TokenAccountLayout
	if len(data) < minAmountLen {
		l.Completeness = LayoutMalformed
		return l
	}

	copy(l.Mint[:], data[mintOffset:ownerOffset])
	copy(l.Owner[:], data[ownerOffset:amountOffset])
	l.Amount = binary.LittleEndian.Uint64(data[amountOffset:minAmountLen])
	l.Completeness = LayoutPartial

	if len(data) >= minDelegateLen {
		l.HasDelegate = binary.LittleEndian.Uint32(data[delegateOptionOffset:minDelegateLen]) == 1
	}
	if len(data) >= minStateLen {
		l.State = AccountState(data[stateOffset])
		l.Completeness = LayoutComplete
	}
	return l
}
