package solana

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeBase64Envelope builds a TransactionResultEnvelope the way the RPC node
// returns it for base64 encoding: ["<data>", "base64"].
func makeBase64Envelope(t *testing.T, tx *solana.Transaction) *rpc.TransactionResultEnvelope {
	t.Helper()
	encoded, err := EncodeUnsignedTransaction(tx)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]interface{}{
		"transaction": []string{encoded, "base64"},
	})
	require.NoError(t, err)

	var result rpc.GetTransactionResult
	require.NoError(t, json.Unmarshal(payload, &result))
	return result.Transaction
}

func TestParseTransaction_MemoFromInstruction(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	memoIx := solana.NewInstruction(MemoProgramIDSPL, solana.AccountMetaSlice{}, []byte("rent sweep"))
	tx, err := NewTransaction([]solana.Instruction{memoIx}, solana.Hash{}, payer)
	require.NoError(t, err)

	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	result := &rpc.GetTransactionResult{
		Transaction: makeBase64Envelope(t, tx),
		Meta: &rpc.TransactionMeta{
			Fee:          5000,
			PreBalances:  []uint64{10_000, 1},
			PostBalances: []uint64{5_000, 1},
		},
	}

	txn, err := parseTransactionFromResult(&rpc.TransactionSignature{Signature: sig, Slot: 7}, result)
	require.NoError(t, err)

	require.NotNil(t, txn.Memo)
	assert.Equal(t, "rent sweep", *txn.Memo)
	assert.Equal(t, int64(-5000), txn.BalanceChange)
	assert.Equal(t, uint64(7), txn.Slot)
}

func TestParseTransaction_NilResult(t *testing.T) {
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")

	txn, err := parseTransactionFromResult(&rpc.TransactionSignature{Signature: sig}, nil)
	require.NoError(t, err)
	assert.Equal(t, sig.String(), txn.Signature)
	assert.Nil(t, txn.Memo)
}

func TestConvertSignatureToDomain(t *testing.T) {
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	now := time.Now().Unix()
	blockTime := solana.UnixTimeSeconds(now)
	empty := ""

	txn := signatureToDomain(&rpc.TransactionSignature{
		Signature: sig,
		Slot:      100,
		BlockTime: &blockTime,
		Memo:      &empty,
		Err:       "InsufficientFundsForRent",
	})

	assert.Equal(t, sig.String(), txn.Signature)
	assert.Equal(t, uint64(100), txn.Slot)
	assert.Equal(t, now, txn.BlockTime.Unix())
	assert.Nil(t, txn.Memo, "empty memo is dropped")
	require.NotNil(t, txn.Err)
	assert.Contains(t, *txn.Err, "InsufficientFundsForRent")
}

func TestBalanceChange(t *testing.T) {
	assert.Equal(t, int64(1_500_000_000), balanceChange([]uint64{1_000_000_000}, []uint64{2_500_000_000}))
	assert.Equal(t, int64(-5000), balanceChange([]uint64{10_000}, []uint64{5_000}))
	assert.Equal(t, int64(0), balanceChange(nil, []uint64{1}))
	assert.Equal(t, int64(0), balanceChange([]uint64{1}, nil))
}

func TestParseMemo_PlainText(t *testing.T) {
	assert.Equal(t, "hello world", parseMemo([]byte("hello world")))
}

func TestParseMemo_Base64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("order-42"))
	assert.Equal(t, "order-42", parseMemo([]byte(encoded)))
}
