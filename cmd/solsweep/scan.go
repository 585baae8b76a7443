package main

import (
	"github.com/urfave/cli/v2"

	"github.com/brojonat/solsweep/service/reclaim"
	"github.com/brojonat/solsweep/service/solana"
)

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Report a wallet's token account health",
		ArgsUsage: "WALLET",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "dust",
				Usage: "Count accounts holding at most this many tokens as reclaimable",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("WALLET argument is required", 1)
			}
			wallet, err := solana.ParsePublicKey(c.Args().First())
			if err != nil {
				return err
			}

			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.Close()

			policy := reclaim.ClosurePolicy{DustThreshold: reclaim.DustThresholdFromTokens(c.Float64("dust"))}
			report, err := reclaim.Scan(c.Context, rt.chainClient(), wallet, policy)
			if err != nil {
				return err
			}

			store, err := rt.store(c.Context)
			if err != nil {
				return err
			}
			if store != nil {
				if err := store.RecordScan(c.Context, report); err != nil {
					rt.logger.Warn("failed to record scan", "wallet", report.Wallet, "error", err)
				}
			}

			if rt.json {
				return rt.outputJSON(report)
			}
			printScanReport(rt, report)
			return nil
		},
	}
}

func printScanReport(rt *runtime, r *reclaim.ScanReport) {
	rt.printf("Wallet: %s\n", r.Wallet)
	rt.printf("Balance: %s\n\n", formatSOL(r.BalanceLamports))
	rt.printf("Token accounts: %d\n", r.TotalAccounts)
	rt.printf("  Empty:         %d\n", r.EmptyAccounts)
	rt.printf("  With balance:  %d\n", r.WithBalance)
	rt.printf("  Delegated:     %d\n", r.Delegated)
	rt.printf("  Frozen:        %d\n", r.Frozen)
	rt.printf("  Unique mints:  %d\n\n", r.UniqueMints)
	rt.printf("Rent locked: %s\n", formatSOL(r.RentLockedLamports))
	rt.printf("Reclaimable: %s (%d accounts)\n", formatSOL(r.ReclaimableRent), r.Closeable)
	rt.printf("Health: %s\n", r)
	if r.Closeable > 0 {
		rt.printf("\nRun `solsweep clean %s` to reclaim.\n", r.Wallet)
	}
}
