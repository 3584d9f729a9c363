// Command netchat converts training checkpoints to the inference naming scheme
// and produces golden fixtures for verifying ported models.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/pgermishuys/netchat/internal/config"
	"github.com/pgermishuys/netchat/internal/logger"
	"github.com/pgermishuys/netchat/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envVars(name string) cli.ValueSourceChain {
	return cli.EnvVars(config.EnvPrefix + name)
}

func newApp(out io.Writer) *cli.Command {
	cfg := config.Default()

	return &cli.Command{
		Name:  "netchat",
		Usage: "Checkpoint name conversion and golden fixture tooling",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: cfg.LogLevel, Destination: &cfg.LogLevel, Sources: envVars("LOG_LEVEL")},
			&cli.StringFlag{Name: "log-format", Usage: "console or json", Value: cfg.LogFormat, Destination: &cfg.LogFormat, Sources: envVars("LOG_FORMAT")},
			&cli.StringFlag{Name: "metrics-file", Usage: "write Prometheus metrics to this textfile on exit", Destination: &cfg.MetricsFile, Sources: envVars("METRICS_FILE")},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger.Setup(cfg.LogLevel, cfg.LogFormat)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if cfg.MetricsFile == "" {
				return nil
			}
			if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Log.Warn("metrics textfile not written", "path", cfg.MetricsFile, "error", err.Error())
			}
			return nil
		},
		Commands: []*cli.Command{
			convertCmd(&cfg, out),
			verifyCmd(&cfg, out),
			inspectCmd(&cfg, out),
			compareCmd(&cfg, out),
			rulesCmd(out),
		},
	}
}

// validate checks the merged configuration once all flags are parsed.
func validate(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 2)
	}
	return nil
}

func args(c *cli.Command, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, cli.Exit(fmt.Sprintf("error: %s expects %d arguments: %s", c.Name, n, c.ArgsUsage), 2)
	}
	return c.Args().Slice(), nil
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
