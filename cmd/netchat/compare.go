package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/pgermishuys/netchat/internal/bridge"
	"github.com/pgermishuys/netchat/internal/config"
)

func compareCmd(cfg *config.Config, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "Compare an implementation's output against an expected fixture",
		ArgsUsage: "<expected> <actual>",
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "atol", Usage: "absolute tolerance", Value: cfg.Atol, Destination: &cfg.Atol, Sources: envVars("ATOL")},
			&cli.FloatFlag{Name: "rtol", Usage: "relative tolerance", Value: cfg.Rtol, Destination: &cfg.Rtol, Sources: envVars("RTOL")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			paths, err := args(c, 2)
			if err != nil {
				return err
			}
			if err := validate(cfg); err != nil {
				return err
			}

			cmp, err := bridge.CompareFiles(paths[0], paths[1], cfg.Tolerance())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			fmt.Fprintln(out, cmp.String())
			if !cmp.Passed() {
				return cli.Exit(fmt.Sprintf("FAIL: first mismatch at flat index %d", cmp.FirstMismatch), 1)
			}
			fmt.Fprintln(out, "PASS")
			return nil
		},
	}
}
