package reclaim

import (
	"fmt"
	"math"
	"math/big"

	"github.com/itchyny/gojq"
)

// AccountFilter keeps closeable accounts for which every jq expression is truthy.
// Expressions see the account as an object:
//
//	{"address", "mint", "token_balance", "raw_amount", "rent_lamports"}
type AccountFilter struct {
	exprs []string
	codes []*gojq.Code
}

// NewAccountFilter compiles jq expressions. It returns nil when exprs is empty.
func NewAccountFilter(exprs []string) (*AccountFilter, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	f := &AccountFilter{exprs: exprs, codes: make([]*gojq.Code, len(exprs))}
	for i, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		f.codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
	}
	return f, nil
}

// Match reports whether acc passes every expression. A nil filter matches everything.
func (f *AccountFilter) Match(acc CloseableAccount) bool {
	if f == nil {
		return true
	}
	input := accountToJQ(acc)
	for _, code := range f.codes {
		iter := code.Run(input)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// Apply returns the accounts that match, in order.
func (f *AccountFilter) Apply(accounts []CloseableAccount) []CloseableAccount {
	if f == nil {
		return accounts
	}
	out := make([]CloseableAccount, 0, len(accounts))
	for _, acc := range accounts {
		if f.Match(acc) {
			out = append(out, acc)
		}
	}
	return out
}

// String lists the expressions for logging.
func (f *AccountFilter) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprint(f.exprs)
}

func accountToJQ(acc CloseableAccount) map[string]any {
	return map[string]any{
		"address":       acc.Address.String(),
		"mint":          acc.Mint.String(),
		"token_balance": acc.TokenBalance,
		"raw_amount":    jqUint(acc.RawAmount),
		"rent_lamports": jqUint(acc.RentLamports),
	}
}

// jqUint converts to a type gojq accepts without losing precision.
func jqUint(v uint64) any {
	if v <= math.MaxInt64 {
		return int(v)
	}
	return new(big.Int).SetUint64(v)
}

// isTruthy follows jq: false and null are falsy, everything else is truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
