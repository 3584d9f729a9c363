package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/pgermishuys/netchat/internal/arrow_client"
	"github.com/pgermishuys/netchat/internal/bridge"
	"github.com/pgermishuys/netchat/internal/config"
)

func verifyCmd(cfg *config.Config, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Load a checkpoint and write a deterministic input/expected-output fixture pair",
		ArgsUsage: "<checkpoint> <output_dir>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "seq-len", Usage: "tokens per fixture sequence", Value: cfg.SeqLen, Destination: &cfg.SeqLen, Sources: envVars("SEQ_LEN")},
			&cli.IntFlag{Name: "vocab-size", Usage: "upper bound (exclusive) for token ids", Value: cfg.VocabSize, Destination: &cfg.VocabSize, Sources: envVars("VOCAB_SIZE")},
			&cli.Int64Flag{Name: "seed", Usage: "fixture seed", Value: cfg.Seed, Destination: &cfg.Seed, Sources: envVars("SEED")},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "fixture format (msgpack or safetensors)", Value: cfg.FixtureFormat, Destination: &cfg.FixtureFormat, Sources: envVars("FIXTURE_FORMAT")},
			&cli.StringFlag{Name: "flight-addr", Usage: "also publish the fixture to this Arrow Flight endpoint", Destination: &cfg.FlightAddr, Sources: envVars("FLIGHT_ADDR")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			paths, err := args(c, 2)
			if err != nil {
				return err
			}
			if err := validate(cfg); err != nil {
				return err
			}

			opts := bridge.VerifyOptions{
				Checkpoint: paths[0],
				OutputDir:  paths[1],
				Fixture:    cfg.Fixture(),
				Format:     cfg.FixtureFmt(),
			}
			if cfg.PublishesFixtures() {
				opts.Publisher = arrow_client.NewFlightClient(cfg.FlightAddr)
			}

			sum, err := bridge.Verify(ctx, opts)
			if err != nil {
				if bridge.Outcome(err) == bridge.OutcomeFileNotFound {
					return cli.Exit(fmt.Sprintf("error: checkpoint not found: %s", paths[0]), 1)
				}
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			printLines(out, sum.Lines())
			fmt.Fprintf(out, "\nNext: run the forward pass on %s and save its logits, then\n", sum.Input.Path)
			fmt.Fprintf(out, "  netchat compare %s <actual>\n", sum.Output.Path)
			return nil
		},
	}
}
