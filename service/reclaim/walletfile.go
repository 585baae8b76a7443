package reclaim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/brojonat/solsweep/service/solana"
)

// ErrNoValidWallets is returned when a wallet list has no usable lines.
var ErrNoValidWallets = errors.New("no valid wallets found")

// LoadWalletFile reads a wallet list from path. See ParseWalletList.
func LoadWalletFile(path string, logger *slog.Logger) ([]WalletEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet file: %w", err)
	}
	defer f.Close()
	return ParseWalletList(f, logger)
}

// ParseWalletList reads "publicKey,privateKeyBase58" lines. Blank lines,
// lines starting with '#' and header lines starting with "wallet" (any case)
// are skipped. Malformed lines are logged and skipped. At least one valid
// wallet is required.
func ParseWalletList(r io.Reader, logger *slog.Logger) ([]WalletEntry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var entries []WalletEntry
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(strings.ToUpper(line), "WALLET") {
			continue
		}

		entry, err := parseWalletLine(line)
		if err != nil {
			logger.Warn("skipping wallet line", "line", lineNum, "reason", err.Error())
			continue
		}
		entry.Line = lineNum
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wallet list: %w", err)
	}

	if len(entries) == 0 {
		return nil, ErrNoValidWallets
	}
	return entries, nil
}

func parseWalletLine(line string) (WalletEntry, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 2 {
		return WalletEntry{}, fmt.Errorf("expected 2 fields, got %d", len(fields))
	}
	pubStr := strings.TrimSpace(fields[0])
	privStr := strings.TrimSpace(fields[1])
	if pubStr == "" || privStr == "" {
		return WalletEntry{}, errors.New("empty field")
	}

	wallet, err := solana.ParsePublicKey(pubStr)
	if err != nil {
		return WalletEntry{}, errors.New("invalid public key")
	}
	signer, err := solana.ParsePrivateKey(privStr)
	if err != nil {
		return WalletEntry{}, fmt.Errorf("invalid private key: %w", err)
	}
	if err := solana.VerifyKeypair(signer, wallet); err != nil {
		return WalletEntry{}, errors.New("keypair doesn't match public key")
	}
	return WalletEntry{Wallet: wallet, Signer: signer}, nil
}
