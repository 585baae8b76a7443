package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrKeypairMismatch is returned when a private key does not belong to the expected wallet.
var ErrKeypairMismatch = errors.New("keypair does not match wallet")

// ParsePublicKey parses a base58 wallet or account address.
func ParsePublicKey(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid public key %q: %w", s, err)
	}
	return pk, nil
}

// ParsePrivateKey decodes a base58 64-byte ed25519 keypair (seed followed by
// public key) and checks that the two halves belong together.
func ParsePrivateKey(s string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: got %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, errors.New("invalid private key: public half does not match seed")
	}
	return solana.PrivateKey(raw), nil
}

// DefaultKeypairPath is the Solana CLI's default keypair location.
func DefaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "solana", "id.json")
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

// LoadKeypair loads a signer from a Solana CLI keygen JSON file or, when
// source is not an existing file, from a base58 private key string.
// An empty source means DefaultKeypairPath.
func LoadKeypair(source string) (solana.PrivateKey, error) {
	if source == "" {
		source = DefaultKeypairPath()
	}
	if _, err := os.Stat(source); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read keypair file %s: %w", source, err)
		}
		return key, nil
	}
	key, err := ParsePrivateKey(source)
	if err != nil {
		return nil, fmt.Errorf("keypair %q is neither a readable file nor a base58 key: %w", ShortKey(source), err)
	}
	return key, nil
}

// VerifyKeypair checks that key signs for wallet.
func VerifyKeypair(key solana.PrivateKey, wallet solana.PublicKey) error {
	got := key.PublicKey()
	if !got.Equals(wallet) {
		return fmt.Errorf("%w: keypair is %s, expected %s", ErrKeypairMismatch, ShortKey(got.String()), ShortKey(wallet.String()))
	}
	return nil
}

// ShortKey abbreviates an address for display, e.g. "So11…1112".
func ShortKey(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:4] + "…" + s[len(s)-4:]
}

// ShortSignature abbreviates a transaction signature for display.
func ShortSignature(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:8] + "…" + s[len(s)-8:]
}
