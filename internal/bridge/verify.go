package bridge

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/arrow_client"
	"github.com/pgermishuys/netchat/internal/checkpoint"
	"github.com/pgermishuys/netchat/internal/golden"
	"github.com/pgermishuys/netchat/internal/logger"
	"github.com/pgermishuys/netchat/internal/metrics"
)

type VerifyOptions struct {
	Checkpoint string
	OutputDir  string
	Fixture    golden.Options
	Format     checkpoint.Format
	// Publisher, when set, also receives the fixture as an Arrow record.
	Publisher arrow_client.Publisher
	Path      []string
}

// Verify loads the checkpoint, then writes a fresh fixture pair to OutputDir.
// Only load and write failures are errors; a checkpoint whose parameters
// cannot be extracted, or a failed publish, is logged and tolerated.
func Verify(ctx context.Context, opts VerifyOptions) (*golden.Summary, error) {
	log := logger.Log.With("checkpoint", opts.Checkpoint)
	log.Info("loading checkpoint")
	v, _, err := checkpoint.Load(opts.Checkpoint)
	if err != nil {
		metrics.RecordValidationError("verify", Outcome(err))
		return nil, err
	}
	if params, shape, err := checkpoint.Extract(v); err != nil {
		log.Warn("checkpoint parameters not extracted", "error", err)
	} else {
		log.Info("checkpoint loaded", "shape", shape.String(), "parameters", params.Len(), "bytes", params.TotalBytes())
	}

	f, err := golden.NewFixture(opts.Fixture)
	if err != nil {
		return nil, err
	}
	sum, err := golden.Save(opts.OutputDir, f, opts.Format)
	if err != nil {
		return nil, err
	}
	metrics.RecordFixture()
	s := sum.Stats
	metrics.RecordLogitAudit(s.Max, s.Min, s.RMS, s.NumNaNs, s.IsFlat, s.HasExtremeValues)

	if opts.Publisher != nil {
		err := publish(ctx, opts.Publisher, opts.Path, f)
		metrics.RecordFixturePublish(err == nil)
		if err != nil {
			log.Warn("fixture publish failed", "error", err)
		}
	}
	return sum, nil
}

func publish(ctx context.Context, p arrow_client.Publisher, path []string, f *golden.Fixture) error {
	if len(path) == 0 {
		path = arrow_client.DefaultPath
	}
	rec, err := arrow_client.FixtureRecord(memory.NewGoAllocator(), f)
	if err != nil {
		return err
	}
	defer rec.Release()

	if err := p.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	return errors.WithMessage(p.Publish(ctx, path, rec), "publish fixture")
}
