package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/solsweep/client"
	"github.com/brojonat/solsweep/service/reclaim"
	"github.com/brojonat/solsweep/service/solana"
)

func cleanCommand() *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "Close empty token accounts and reclaim their rent",
		ArgsUsage: "[WALLET]",
		Description: `Closes every token account of WALLET that holds no tokens (or at most --dust
tokens), never touching delegated or frozen accounts.

Signing:
  default     sign locally with --keypair (Solana CLI default path when omitted)
  --relay     upload unsigned transactions and sign by scanning a QR code
  --connect   pair a mobile wallet first when WALLET is not given, then relay
  --file      process every "wallet,private_key" line of a file concurrently`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "keypair",
				Aliases: []string{"k"},
				Usage:   "Keypair file or base58 private key for local signing",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Wallet list file (wallet,private_key per line) for fleet mode",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Only report what would be closed",
			},
			&cli.IntFlag{
				Name:  "batch",
				Usage: fmt.Sprintf("Accounts closed per transaction (1-%d)", reclaim.MaxBatchSize),
			},
			&cli.Float64Flag{
				Name:  "dust",
				Usage: "Also close accounts holding at most this many tokens (burning them)",
			},
			&cli.BoolFlag{
				Name:  "connect",
				Usage: "Pair a mobile wallet through the relay and sign there",
			},
			&cli.BoolFlag{
				Name:  "relay",
				Usage: "Sign through the relay instead of a local keypair",
			},
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "Only close accounts for which this jq expression is truthy (repeatable)",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts, err := cleanOptions(c, rt)
			if err != nil {
				return err
			}
			sinks, err := newResultSinks(ctx, rt)
			if err != nil {
				return err
			}

			if path := c.String("file"); path != "" {
				if c.Args().Present() || c.Bool("connect") || c.Bool("relay") {
					return errors.New("--file cannot be combined with WALLET, --connect or --relay")
				}
				return runFleet(ctx, c, rt, path, opts, sinks)
			}
			return runSingle(ctx, c, rt, opts, sinks)
		},
	}
}

func cleanOptions(c *cli.Context, rt *runtime) (reclaim.Options, error) {
	filter, err := reclaim.NewAccountFilter(c.StringSlice("must-jq"))
	if err != nil {
		return reclaim.Options{}, err
	}
	batch := rt.cfg.BatchSize
	if c.IsSet("batch") {
		batch = c.Int("batch")
		if batch < 1 || batch > reclaim.MaxBatchSize {
			return reclaim.Options{}, fmt.Errorf("--batch must be between 1 and %d", reclaim.MaxBatchSize)
		}
	}
	if c.Float64("dust") < 0 {
		return reclaim.Options{}, errors.New("--dust must not be negative")
	}
	return reclaim.Options{
		Policy:    reclaim.ClosurePolicy{DustThreshold: reclaim.DustThresholdFromTokens(c.Float64("dust"))},
		BatchSize: batch,
		DryRun:    c.Bool("dry-run"),
		Filter:    filter,
	}, nil
}

// resultSinks are the optional ledger and event stream every pipeline reports to.
type resultSinks struct {
	recorder  reclaim.Recorder
	publisher reclaim.Publisher
}

func newResultSinks(ctx context.Context, rt *runtime) (resultSinks, error) {
	var sinks resultSinks
	store, err := rt.store(ctx)
	if err != nil {
		return sinks, err
	}
	if store != nil {
		sinks.recorder = store
	}
	pub, err := rt.publisher()
	if err != nil {
		return sinks, err
	}
	if pub != nil {
		sinks.publisher = pub
	}
	return sinks, nil
}

func (s resultSinks) attach(p *reclaim.Pipeline) *reclaim.Pipeline {
	if s.recorder != nil {
		p.WithRecorder(s.recorder)
	}
	if s.publisher != nil {
		p.WithPublisher(s.publisher)
	}
	return p
}

func runSingle(ctx context.Context, c *cli.Context, rt *runtime, opts reclaim.Options, sinks resultSinks) error {
	useRelay := c.Bool("relay") || c.Bool("connect")
	chain := rt.chainClient()

	var (
		wallet solanago.PublicKey
		signer solanago.PrivateKey
		err    error
	)
	switch {
	case c.Args().Present():
		wallet, err = solana.ParsePublicKey(c.Args().First())
		if err != nil {
			return err
		}
	case c.Bool("connect"):
		wallet, err = pairWallet(ctx, rt, rt.relayClient())
		if err != nil {
			return err
		}
	default:
		signer, err = solana.LoadKeypair(c.String("keypair"))
		if err != nil {
			return err
		}
		wallet = signer.PublicKey()
	}

	var executor reclaim.Executor
	switch {
	case opts.DryRun:
	case useRelay:
		executor = reclaim.NewRelayExecutor(chain, rt.relayClient(), reclaim.DefaultRelayLabel, rt.cfg.ComputeUnitPrice, rt.logger, rt.metrics)
	default:
		if signer == nil {
			signer, err = solana.LoadKeypair(c.String("keypair"))
			if err != nil {
				return err
			}
		}
		if err := solana.VerifyKeypair(signer, wallet); err != nil {
			return err
		}
		executor = reclaim.NewLocalExecutor(chain, signer, rt.cfg.ComputeUnitPrice, rt.logger, rt.metrics)
	}

	if !opts.DryRun && !c.Bool("yes") {
		preview := opts
		preview.DryRun = true
		res := reclaim.NewPipeline(chain, nil, preview, rt.logger, rt.metrics).Run(ctx, wallet)
		if res.Err != nil {
			return res.Err
		}
		if res.Candidates == 0 {
			return printWalletResult(rt, res)
		}
		if rt.json {
			return errors.New("--yes is required with --json unless --dry-run is set")
		}
		printCandidates(rt, res)
		ok, err := confirm(c, fmt.Sprintf("Close %d accounts and reclaim %s?", res.Candidates, formatSOL(res.CandidateRentLamports)))
		if err != nil {
			return err
		}
		if !ok {
			rt.printf("Aborted.\n")
			return nil
		}
	}

	pipeline := sinks.attach(reclaim.NewPipeline(chain, executor, opts, rt.logger, rt.metrics))
	res := pipeline.Run(ctx, wallet)
	if err := printWalletResult(rt, res); err != nil {
		return err
	}
	return res.Err
}

// pairWallet runs a connect session, showing its QR code until a wallet connects.
func pairWallet(ctx context.Context, rt *runtime, relay client.SessionRelay) (solanago.PublicKey, error) {
	session := &client.ConnectSession{
		Relay:        relay,
		Label:        reclaim.DefaultRelayLabel,
		PollInterval: rt.cfg.ConnectPollInterval,
		Timeout:      rt.cfg.ConnectTimeout,
		Logger:       rt.logger,
		OnSession: func(s *client.Session) {
			if rt.json {
				return
			}
			rt.printf("Scan with your wallet to connect:\n\n")
			if err := renderQR(rt.out, s.URI); err != nil {
				rt.logger.Warn("failed to render QR code", "error", err)
			}
			rt.printf("Waiting for wallet (timeout %s)...\n", rt.cfg.ConnectTimeout)
		},
	}
	wallet, err := session.Wait(ctx)
	if err != nil {
		return solanago.PublicKey{}, err
	}
	if !rt.json {
		rt.printf("✓ Connected: %s\n\n", wallet)
	}
	return wallet, nil
}

func runFleet(ctx context.Context, c *cli.Context, rt *runtime, path string, opts reclaim.Options, sinks resultSinks) error {
	entries, err := reclaim.LoadWalletFile(path, rt.logger)
	if err != nil {
		return err
	}

	if !opts.DryRun && !c.Bool("yes") {
		if rt.json {
			return errors.New("--yes is required with --json unless --dry-run is set")
		}
		ok, err := confirm(c, fmt.Sprintf("Clean %d wallets with up to %d in flight?", len(entries), rt.cfg.FleetConcurrency))
		if err != nil {
			return err
		}
		if !ok {
			rt.printf("Aborted.\n")
			return nil
		}
	}

	factory := func(entry reclaim.WalletEntry) (*reclaim.Pipeline, error) {
		chain := rt.chainClient()
		var executor reclaim.Executor
		if !opts.DryRun {
			executor = reclaim.NewLocalExecutor(chain, entry.Signer, rt.cfg.ComputeUnitPrice, rt.logger, rt.metrics)
		}
		return sinks.attach(reclaim.NewPipeline(chain, executor, opts, rt.logger, rt.metrics)), nil
	}
	fleet := reclaim.NewFleet(factory, reclaim.NewLimiter(rt.cfg.FleetConcurrency), rt.logger, rt.metrics)

	results := fleet.Run(ctx, entries)
	totals := reclaim.Summarize(results)

	if rt.json {
		return rt.outputJSON(map[string]interface{}{
			"results": results,
			"totals":  totals,
		})
	}

	w := tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tWALLET\tCANDIDATES\tCLOSED\tRECLAIMED\tSTATUS")
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed: " + r.Error
		} else if r.FailedBatches > 0 {
			status = fmt.Sprintf("%d batches failed", r.FailedBatches)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\n",
			r.Index+1,
			solana.ShortKey(r.Wallet.String()),
			r.Candidates,
			r.Closed,
			formatSOL(r.ReclaimedLamports),
			status,
		)
	}
	w.Flush()

	rt.printf("\nWallets: %d (%d failed)\n", totals.Wallets, totals.Failed)
	if opts.DryRun {
		rt.printf("Would close %d accounts for %s\n", totals.Candidates, formatSOL(totals.CandidateRent))
	} else {
		rt.printf("Closed %d accounts, reclaimed %s\n", totals.Closed, formatSOL(totals.ReclaimedLamports))
	}
	if missing := len(entries) - len(results); missing > 0 {
		rt.printf("%d wallets did not report a result (see logs)\n", missing)
	}
	return nil
}

func printCandidates(rt *runtime, res reclaim.WalletResult) {
	w := tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tMINT\tBALANCE\tRENT")
	for _, a := range res.Accounts {
		fmt.Fprintf(w, "%s\t%s\t%g\t%s\n",
			solana.ShortKey(a.Address.String()),
			solana.ShortKey(a.Mint.String()),
			a.TokenBalance,
			formatSOL(a.RentLamports),
		)
	}
	w.Flush()
	rt.printf("\n")
}

func printWalletResult(rt *runtime, res reclaim.WalletResult) error {
	if rt.json {
		return rt.outputJSON(res)
	}

	rt.printf("Wallet: %s\n", res.Wallet)
	rt.printf("Token accounts: %d\n", res.TotalAccounts)
	if res.Err != nil && res.TotalAccounts == 0 {
		return nil
	}
	if res.Candidates == 0 {
		rt.printf("No closeable accounts found.\n")
		return nil
	}
	rt.printf("Closeable: %d (%s)\n", res.Candidates, formatSOL(res.CandidateRentLamports))

	switch {
	case res.DryRun:
		rt.printf("\n")
		printCandidates(rt, res)
		rt.printf("Dry run: nothing was closed.\n")
	case res.RelayURI != "":
		rt.printf("\nScan with your wallet to sign %d transactions:\n\n", res.UploadedBatches)
		if err := renderQR(rt.out, res.RelayURI); err != nil {
			return err
		}
		rt.printf("\nThe transactions expire at block height %d; sign them promptly.\n", res.LastValidBlockHeight)
	default:
		rt.printf("\n✓ Closed %d accounts, reclaimed %s\n", res.Closed, formatSOL(res.ReclaimedLamports))
		for _, sig := range res.Signatures {
			rt.printf("  %s\n", sig)
		}
		if res.FailedBatches > 0 {
			rt.printf("%d batches failed (see logs)\n", res.FailedBatches)
		}
	}
	return nil
}

// confirm asks a yes/no question on the app's reader.
func confirm(c *cli.Context, question string) (bool, error) {
	fmt.Fprintf(c.App.Writer, "%s [y/N]: ", question)
	reader := c.App.Reader
	if reader == nil {
		reader = os.Stdin
	}
	line, err := bufio.NewReader(reader).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
