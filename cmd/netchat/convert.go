package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/pgermishuys/netchat/internal/bridge"
	"github.com/pgermishuys/netchat/internal/checkpoint"
	"github.com/pgermishuys/netchat/internal/config"
	"github.com/pgermishuys/netchat/internal/rename"
)

func convertCmd(cfg *config.Config, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Rename checkpoint parameters to the inference module hierarchy",
		ArgsUsage: "<input> <output>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "list every name conversion", Destination: &cfg.Verbose, Sources: envVars("VERBOSE")},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "output format (msgpack or safetensors); defaults to the output extension", Destination: &cfg.OutputFormat, Sources: envVars("OUTPUT_FORMAT")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			paths, err := args(c, 2)
			if err != nil {
				return err
			}
			if err := validate(cfg); err != nil {
				return err
			}
			format, err := cfg.ConvertFormat(paths[1])
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}

			rep, err := bridge.Convert(ctx, bridge.ConvertOptions{
				Input:    paths[0],
				Output:   paths[1],
				Format:   format,
				Rewriter: rename.New(),
			})
			if err != nil {
				return convertExit(paths[0], err)
			}
			printLines(out, rep.Lines(cfg.Verbose))
			return nil
		},
	}
}

// convertExit maps a conversion error to the message the user sees.
func convertExit(input string, err error) error {
	var shapeErr *checkpoint.UnsupportedShapeError
	switch bridge.Outcome(err) {
	case bridge.OutcomeFileNotFound:
		return cli.Exit(fmt.Sprintf("error: checkpoint not found: %s", input), 1)
	case bridge.OutcomeUnsupportedShape:
		errors.As(err, &shapeErr)
		return cli.Exit(fmt.Sprintf("error: %s", shapeErr), 1)
	case bridge.OutcomeCollision:
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	default:
		return cli.Exit(fmt.Sprintf("error: conversion failed: %+v", err), 1)
	}
}
