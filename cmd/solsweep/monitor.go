package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/solsweep/service/solana"
)

func monitorCommand() *cli.Command {
	return &cli.Command{
		Name:      "monitor",
		Usage:     "Print a wallet's new transactions as they land (Ctrl+C to stop)",
		ArgsUsage: "WALLET",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval",
				Value: 3 * time.Second,
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

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher := solana.NewWatcher(rt.chainClient(), c.Duration("interval"), rt.logger)
			ready := func(seeded int) {
				if !rt.json {
					rt.printf("Monitoring %s (%d known transactions, polling every %s)\n\n",
						wallet, seeded, c.Duration("interval"))
				}
			}
			return watcher.Run(ctx, wallet, ready, func(tx *solana.Transaction) {
				if rt.json {
					if err := rt.outputJSON(tx); err != nil {
						rt.logger.Warn("failed to write transaction", "error", err)
					}
					return
				}
				printTransaction(rt, tx)
			})
		},
	}
}

func printTransaction(rt *runtime, tx *solana.Transaction) {
	status := "✓"
	if !tx.Succeeded() {
		status = "✗"
	}
	when := "pending"
	if !tx.BlockTime.IsZero() {
		when = tx.BlockTime.Local().Format("15:04:05")
	}

	rt.printf("%s %s %s", when, status, solana.ShortSignature(tx.Signature))
	if tx.BalanceChange != 0 {
		sign := "+"
		change := tx.BalanceChange
		if change < 0 {
			sign = "-"
			change = -change
		}
		rt.printf("  %s%s", sign, formatSOL(uint64(change)))
	}
	if tx.Memo != nil {
		rt.printf("  memo=%q", *tx.Memo)
	}
	if tx.Err != nil {
		rt.printf("  error=%s", *tx.Err)
	}
	rt.printf("\n")
}
