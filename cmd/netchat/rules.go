package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/pgermishuys/netchat/internal/rename"
)

func rulesCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Print the rename rules in evaluation order",
		Action: func(ctx context.Context, c *cli.Command) error {
			for i, r := range rename.New().Rules() {
				fmt.Fprintf(out, "%2d  %-16s %s\n", i+1, r.Name, r)
			}
			return nil
		},
	}
}
