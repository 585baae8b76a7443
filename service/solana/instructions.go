package solana

import (
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/near/borsh-go"
)

// ComputeBudgetProgramID is the native compute budget program.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Compute budget instruction discriminators
const (
	computeBudgetSetUnitLimit = uint8(2)
	computeBudgetSetUnitPrice = uint8(3)
)

type setComputeUnitLimitData struct {
	Instruction uint8
	Units       uint32
}

type setComputeUnitPriceData struct {
	Instruction   uint8
	MicroLamports uint64
}

// SetComputeUnitLimitInstruction caps the compute units a transaction may consume.
func SetComputeUnitLimitInstruction(units uint32) (solana.Instruction, error) {
	data, err := borsh.Serialize(setComputeUnitLimitData{
		Instruction: computeBudgetSetUnitLimit,
		Units:       units,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode compute unit limit: %w", err)
	}
	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data), nil
}

// SetComputeUnitPriceInstruction sets the priority fee in micro-lamports per compute unit.
func SetComputeUnitPriceInstruction(microLamports uint64) (solana.Instruction, error) {
	data, err := borsh.Serialize(setComputeUnitPriceData{
		Instruction:   computeBudgetSetUnitPrice,
		MicroLamports: microLamports,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode compute unit price: %w", err)
	}
	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data), nil
}

// CloseAccountInstruction closes a token account, sending its rent to owner.
// owner is also the close authority.
func CloseAccountInstruction(account, owner solana.PublicKey) (solana.Instruction, error) {
	ix, err := token.NewCloseAccountInstruction(account, owner, owner, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build close instruction for %s: %w", account, err)
	}
	return ix, nil
}

// CloseInstructions returns the instruction list for one close batch:
// compute unit limit, compute unit price, then one close per account in order.
func CloseInstructions(owner solana.PublicKey, accounts []solana.PublicKey, unitLimit uint32, unitPrice uint64) ([]solana.Instruction, error) {
	limitIx, err := SetComputeUnitLimitInstruction(unitLimit)
	if err != nil {
		return nil, err
	}
	priceIx, err := SetComputeUnitPriceInstruction(unitPrice)
	if err != nil {
		return nil, err
	}

	ixs := make([]solana.Instruction, 0, len(accounts)+2)
	ixs = append(ixs, limitIx, priceIx)
	for _, acc := range accounts {
		closeIx, err := CloseAccountInstruction(acc, owner)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, closeIx)
	}
	return ixs, nil
}

// NewTransaction builds an unsigned transaction paid by payer.
func NewTransaction(ixs []solana.Instruction, blockhash solana.Hash, payer solana.PublicKey) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	return tx, nil
}

// SignTransaction signs tx with signer, which must be the only required signer.
func SignTransaction(tx *solana.Transaction, signer solana.PrivateKey) error {
	signerPub := signer.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signerPub) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// EncodeUnsignedTransaction serializes tx with zero-filled signature slots and
// returns it base64-encoded, ready for a wallet to sign.
func EncodeUnsignedTransaction(tx *solana.Transaction) (string, error) {
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
