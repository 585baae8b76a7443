package main

import (
	"errors"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/solsweep/service/reclaim"
	"github.com/brojonat/solsweep/service/solana"
	"github.com/brojonat/solsweep/service/temporal"
)

// newScheduler connects to Temporal. Tests replace it.
var newScheduler = func(rt *runtime) (temporal.Scheduler, func(), error) {
	tc, err := temporal.NewClient(rt.cfg.TemporalHost, rt.cfg.TemporalNamespace, rt.cfg.TemporalTaskQueue, rt.logger)
	if err != nil {
		return nil, nil, err
	}
	return tc, tc.Close, nil
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Manage recurring wallet health scans",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Scan a wallet on an interval (replaces an existing schedule)",
				ArgsUsage: "WALLET",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "every",
						Usage: "Scan interval (defaults to SCAN_INTERVAL)",
					},
					&cli.Float64Flag{
						Name:  "dust",
						Usage: "Count accounts holding at most this many tokens as reclaimable",
					},
				},
				Action: func(c *cli.Context) error {
					return withScheduler(c, func(rt *runtime, s temporal.Scheduler, wallet string) error {
						interval := rt.cfg.ScanInterval
						if c.IsSet("every") {
							interval = c.Duration("every")
						}
						if interval < time.Minute {
							return errors.New("--every must be at least 1m")
						}
						dust := reclaim.DustThresholdFromTokens(c.Float64("dust"))
						if err := s.UpsertScanSchedule(c.Context, wallet, interval, dust); err != nil {
							return err
						}
						if rt.json {
							return rt.outputJSON(map[string]interface{}{
								"wallet":         wallet,
								"interval":       interval.String(),
								"dust_threshold": dust,
							})
						}
						rt.printf("✓ Scanning %s every %s\n", wallet, interval)
						return nil
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "Stop scanning a wallet",
				ArgsUsage: "WALLET",
				Action: func(c *cli.Context) error {
					return withScheduler(c, func(rt *runtime, s temporal.Scheduler, wallet string) error {
						if err := s.DeleteScanSchedule(c.Context, wallet); err != nil {
							return err
						}
						if rt.json {
							return rt.outputJSON(map[string]string{"wallet": wallet, "status": "removed"})
						}
						rt.printf("✓ Removed scan schedule for %s\n", wallet)
						return nil
					})
				},
			},
		},
	}
}

func withScheduler(c *cli.Context, fn func(rt *runtime, s temporal.Scheduler, wallet string) error) error {
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

	if v := c.String("temporal-host"); v != "" {
		rt.cfg.TemporalHost = v
	}
	if v := c.String("temporal-namespace"); v != "" {
		rt.cfg.TemporalNamespace = v
	}

	scheduler, closeFn, err := newScheduler(rt)
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(rt, scheduler, wallet.String())
}
