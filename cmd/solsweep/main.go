package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solsweep",
		Usage: "Reclaim rent from empty Solana token accounts",
		Description: `Finds token accounts that hold no tokens (or only dust) and closes them,
returning their rent deposit to the owner.

Transactions are signed locally with a keypair, or handed to a mobile wallet
through the relay by scanning a QR code.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			cleanCommand(),
			scanCommand(),
			monitorCommand(),
			connectCommand(),
			historyCommand(),
			scheduleCommand(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc",
				Aliases: []string{"u"},
				Usage:   "Solana RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_NODE"},
			},
			&cli.StringFlag{
				Name:    "relay-url",
				Usage:   "Transaction relay base URL",
				EnvVars: []string{"RELAY_URL"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres URL for the reclaim ledger (optional)",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS URL for reclaim events (optional)",
				EnvVars: []string{"NATS_URL"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address while running (optional)",
				EnvVars: []string{"METRICS_ADDR"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
