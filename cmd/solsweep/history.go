package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/solsweep/service/solana"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show recorded clean runs and scans for a wallet",
		ArgsUsage: "WALLET",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum rows to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "scans",
				Usage: "Show health scans instead of clean runs",
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

			store, err := rt.requireStore(c.Context)
			if err != nil {
				return err
			}
			limit := int32(c.Int("limit"))

			if c.Bool("scans") {
				scans, err := store.ListScans(c.Context, wallet.String(), limit)
				if err != nil {
					return err
				}
				if rt.json {
					return rt.outputJSON(scans)
				}
				if len(scans) == 0 {
					rt.printf("No scans recorded for %s\n", wallet)
					return nil
				}
				w := tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SCANNED\tACCOUNTS\tEMPTY\tRECLAIMABLE\tHEALTH")
				for _, s := range scans {
					fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
						s.ScannedAt.Local().Format("2006-01-02 15:04"),
						s.TotalAccounts,
						s.EmptyAccounts,
						formatSOL(s.ReclaimableRent),
						s.ScanReport,
					)
				}
				return w.Flush()
			}

			records, err := store.ListReclaimResults(c.Context, wallet.String(), limit)
			if err != nil {
				return err
			}
			if rt.json {
				return rt.outputJSON(records)
			}
			if len(records) == 0 {
				rt.printf("No clean runs recorded for %s\n", wallet)
				return nil
			}
			w := tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tMODE\tCANDIDATES\tCLOSED\tRECLAIMED\tSTATUS")
			for _, r := range records {
				status := "ok"
				if !r.Success {
					status = "failed"
					if r.Error != nil {
						status += ": " + *r.Error
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.Mode,
					r.Candidates,
					r.Closed,
					formatSOL(uint64(r.ReclaimedLamports)),
					status,
				)
			}
			return w.Flush()
		},
	}
}
