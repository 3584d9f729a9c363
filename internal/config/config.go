package config

import (
	"fmt"
	"strings"

	"github.com/pgermishuys/netchat/internal/checkpoint"
	"github.com/pgermishuys/netchat/internal/golden"
)

// EnvPrefix is prepended to flag names to form their environment variables.
const EnvPrefix = "NETCHAT_"

type Config struct {
	LogLevel    string
	LogFormat   string
	MetricsFile string

	// convert
	Verbose      bool
	OutputFormat string

	// verify
	SeqLen        int
	VocabSize     int
	Seed          int64
	FixtureFormat string
	FlightAddr    string

	// compare
	Atol float64
	Rtol float64
}

func Default() Config {
	tol := golden.DefaultTolerance()
	return Config{
		LogLevel:      "info",
		LogFormat:     "console",
		SeqLen:        golden.DefaultSeqLen,
		VocabSize:     golden.DefaultVocabSize,
		Seed:          golden.DefaultSeed,
		FixtureFormat: "msgpack",
		Atol:          tol.Atol,
		Rtol:          tol.Rtol,
	}
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %q (want debug, info, warn or error)", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format: %q (want console or json)", c.LogFormat)
	}
	if err := c.Fixture().Validate(); err != nil {
		return fmt.Errorf("invalid fixture: %w", err)
	}
	if c.OutputFormat != "" {
		if _, err := c.outputFormat(); err != nil {
			return err
		}
	}
	if f, err := checkpoint.ParseFormat(c.FixtureFormat); err != nil {
		return err
	} else if !f.Writable() {
		return fmt.Errorf("invalid fixture_format: %s is read-only", f)
	}
	if c.Atol < 0 || c.Rtol < 0 {
		return fmt.Errorf("invalid tolerance: atol=%g rtol=%g (must be non-negative)", c.Atol, c.Rtol)
	}
	return nil
}

func (c *Config) outputFormat() (checkpoint.Format, error) {
	f, err := checkpoint.ParseFormat(c.OutputFormat)
	if err != nil {
		return 0, err
	}
	if !f.Writable() {
		return 0, fmt.Errorf("invalid output_format: %s is read-only", f)
	}
	return f, nil
}

// ConvertFormat is the explicit output format, or the one implied by path.
func (c *Config) ConvertFormat(path string) (checkpoint.Format, error) {
	if c.OutputFormat == "" {
		f := checkpoint.FormatForPath(path)
		if !f.Writable() {
			return 0, fmt.Errorf("cannot write %s checkpoints to %s", f, path)
		}
		return f, nil
	}
	return c.outputFormat()
}

// FixtureFmt is the parsed fixture format; call after Validate.
func (c *Config) FixtureFmt() checkpoint.Format {
	f, _ := checkpoint.ParseFormat(c.FixtureFormat)
	return f
}

func (c *Config) Fixture() golden.Options {
	return golden.Options{SeqLen: c.SeqLen, VocabSize: c.VocabSize, Seed: c.Seed}
}

func (c *Config) Tolerance() golden.Tolerance {
	return golden.Tolerance{Atol: c.Atol, Rtol: c.Rtol}
}

// PublishesFixtures reports whether verify should push fixtures over Flight.
func (c *Config) PublishesFixtures() bool {
	return c.FlightAddr != ""
}
