package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/pgermishuys/netchat/internal/bridge"
	"github.com/pgermishuys/netchat/internal/config"
)

func inspectCmd(cfg *config.Config, out io.Writer) *cli.Command {
	var showTargets bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "List the parameters of a checkpoint",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "targets", Aliases: []string{"t"}, Usage: "also show the converted name of each parameter", Destination: &showTargets},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			paths, err := args(c, 1)
			if err != nil {
				return err
			}
			if err := validate(cfg); err != nil {
				return err
			}

			ins, err := bridge.Inspect(paths[0])
			if err != nil {
				return convertExit(paths[0], err)
			}

			fmt.Fprintf(out, "%s: %s, %s, %d parameters, %d bytes\n", ins.Path, ins.Format, ins.Shape, len(ins.Entries), ins.Bytes)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, e := range ins.Entries {
				if showTargets {
					fmt.Fprintf(tw, "%s\t%s\t%v\t-> %s\n", e.Name, e.DType, e.Shape, e.Target)
				} else {
					fmt.Fprintf(tw, "%s\t%s\t%v\n", e.Name, e.DType, e.Shape)
				}
			}
			return tw.Flush()
		},
	}
}
