// Package bridge wires loading, extraction, renaming and persistence into the
// convert and verify pipelines.
package bridge

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/checkpoint"
	"github.com/pgermishuys/netchat/internal/logger"
	"github.com/pgermishuys/netchat/internal/metrics"
	"github.com/pgermishuys/netchat/internal/rename"
	"github.com/pgermishuys/netchat/internal/report"
)

// Outcome labels used for metrics and exit reporting.
const (
	OutcomeOK               = "ok"
	OutcomeFileNotFound     = "file_not_found"
	OutcomeUnsupportedShape = "unsupported_shape"
	OutcomeCollision        = "collision"
	OutcomeFailure          = "failure"
)

type ConvertOptions struct {
	Input  string
	Output string
	Format checkpoint.Format
	// Rewriter defaults to the standard rule table.
	Rewriter *rename.Rewriter
}

// Outcome classifies an error returned by Convert or Verify.
func Outcome(err error) string {
	var shapeErr *checkpoint.UnsupportedShapeError
	var collision *rename.CollisionError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, checkpoint.ErrFileNotFound):
		return OutcomeFileNotFound
	case errors.As(err, &shapeErr):
		return OutcomeUnsupportedShape
	case errors.As(err, &collision):
		return OutcomeCollision
	default:
		return OutcomeFailure
	}
}

// Convert loads a checkpoint, extracts its parameters, renames them and saves
// the result. The output file is only replaced once everything succeeded.
func Convert(ctx context.Context, opts ConvertOptions) (rep *report.Report, err error) {
	defer func() {
		outcome := Outcome(err)
		if err != nil {
			metrics.RecordConversion(outcome, 0, 0, 0)
			metrics.RecordValidationError("convert", outcome)
			if outcome == OutcomeFailure {
				err = errors.WithStack(err)
			}
		}
	}()

	rw := opts.Rewriter
	if rw == nil {
		rw = rename.New()
	}

	log := logger.Log.With("input", opts.Input)
	log.Info("loading checkpoint")
	start := time.Now()
	v, format, err := checkpoint.Load(opts.Input)
	if err != nil {
		return nil, err
	}
	metrics.RecordStage("load", time.Since(start))

	start = time.Now()
	params, shape, err := checkpoint.Extract(v)
	if err != nil {
		return nil, err
	}
	metrics.RecordStage("extract", time.Since(start))
	metrics.RecordContainerShape(shape.String())
	log.Info("extracted parameters", "format", format.String(), "shape", shape.String(), "parameters", params.Len())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	res, err := rw.Apply(params)
	if err != nil {
		return nil, err
	}
	metrics.RecordStage("rewrite", time.Since(start))
	metrics.RecordRuleHits(res.RuleHits)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("saving converted checkpoint", "path", opts.Output, "format", opts.Format.String())
	start = time.Now()
	if err := checkpoint.Save(opts.Output, res.Collection, opts.Format); err != nil {
		return nil, err
	}
	metrics.RecordStage("save", time.Since(start))

	rep = report.New(params.Keys(), res)
	rep.Source, rep.Output, rep.Shape = opts.Input, opts.Output, shape
	metrics.RecordConversion(OutcomeOK, rep.Renamed, rep.Unchanged, res.Collection.TotalBytes())
	return rep, nil
}
