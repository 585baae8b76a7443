package solana

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetComputeUnitLimitInstruction(t *testing.T) {
	ix, err := SetComputeUnitLimitInstruction(35_000)
	require.NoError(t, err)

	assert.Equal(t, ComputeBudgetProgramID, ix.ProgramID())
	assert.Empty(t, ix.Accounts())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 5)
	assert.Equal(t, byte(2), data[0])
	assert.Equal(t, uint32(35_000), binary.LittleEndian.Uint32(data[1:5]))
}

func TestSetComputeUnitPriceInstruction(t *testing.T) {
	ix, err := SetComputeUnitPriceInstruction(1000)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 9)
	assert.Equal(t, byte(3), data[0])
	assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(data[1:9]))
}

func TestCloseAccountInstruction(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	ix, err := CloseAccountInstruction(account, owner)
	require.NoError(t, err)

	assert.Equal(t, TokenProgramID, ix.ProgramID())
	metas := ix.Accounts()
	require.Len(t, metas, 3)
	assert.Equal(t, account, metas[0].PublicKey)
	assert.True(t, metas[0].IsWritable)
	assert.Equal(t, owner, metas[1].PublicKey)
	assert.True(t, metas[1].IsWritable)
	assert.Equal(t, owner, metas[2].PublicKey)
	assert.True(t, metas[2].IsSigner)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, data)
}

func TestCloseInstructions_Order(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	accounts := []solana.PublicKey{
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
	}

	ixs, err := CloseInstructions(owner, accounts, 14_000, 1000)
	require.NoError(t, err)
	require.Len(t, ixs, 5)

	assert.Equal(t, ComputeBudgetProgramID, ixs[0].ProgramID())
	assert.Equal(t, ComputeBudgetProgramID, ixs[1].ProgramID())
	for i, acc := range accounts {
		assert.Equal(t, TokenProgramID, ixs[i+2].ProgramID())
		assert.Equal(t, acc, ixs[i+2].Accounts()[0].PublicKey)
	}
}

func TestEncodeUnsignedTransaction(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	ixs, err := CloseInstructions(owner, []solana.PublicKey{solana.NewWallet().PublicKey()}, 8000, 1000)
	require.NoError(t, err)

	tx, err := NewTransaction(ixs, solana.Hash{}, owner)
	require.NoError(t, err)

	encoded, err := EncodeUnsignedTransaction(tx)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	// one signature slot (compact-u16), zero filled
	require.Greater(t, len(raw), 65)
	assert.Equal(t, byte(1), raw[0])
	assert.Equal(t, make([]byte, 64), raw[1:65])
	// message header: one required signer
	assert.Equal(t, byte(1), raw[65])
	assert.Equal(t, owner, tx.Message.AccountKeys[0], "payer is the first account")
}

func TestSignTransaction(t *testing.T) {
	signer := solana.NewWallet().PrivateKey
	ixs, err := CloseInstructions(signer.PublicKey(), []solana.PublicKey{solana.NewWallet().PublicKey()}, 8000, 1000)
	require.NoError(t, err)
	tx, err := NewTransaction(ixs, solana.Hash{}, signer.PublicKey())
	require.NoError(t, err)

	require.NoError(t, SignTransaction(tx, signer))
	require.Len(t, tx.Signatures, 1)
	assert.NoError(t, tx.VerifySignatures())
}

func TestSignTransaction_WrongSigner(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	ixs, err := CloseInstructions(owner, []solana.PublicKey{solana.NewWallet().PublicKey()}, 8000, 1000)
	require.NoError(t, err)
	tx, err := NewTransaction(ixs, solana.Hash{}, owner)
	require.NoError(t, err)

	assert.Error(t, SignTransaction(tx, solana.NewWallet().PrivateKey))
}
