// Package report summarises a rename run for human review.
package report

import (
	"fmt"

	"github.com/pgermishuys/netchat/internal/checkpoint"
	"github.com/pgermishuys/netchat/internal/rename"
)

// Report counts what a conversion changed. It is built once and never mutated.
type Report struct {
	Source  string
	Output  string
	Shape   checkpoint.Shape
	Total   int
	Renamed int
	// Unchanged is Total - Renamed.
	Unchanged int
	Records   []rename.Record
	RuleHits  map[string]int
}

// New builds a report from the source key list and the rewrite result.
func New(sourceKeys []string, res *rename.Result) *Report {
	return &Report{
		Total:     len(sourceKeys),
		Renamed:   res.Renamed(),
		Unchanged: res.Unchanged,
		Records:   res.Records,
		RuleHits:  res.RuleHits,
	}
}

// Lines renders the summary and, when verbose, one row per renamed key in
// source order.
func (r *Report) Lines(verbose bool) []string {
	lines := []string{
		fmt.Sprintf("Converted %d parameters", r.Total),
		fmt.Sprintf("Renamed %d parameters", r.Renamed),
	}
	if !verbose || len(r.Records) == 0 {
		return lines
	}
	lines = append(lines, "", "Parameter name conversions:")
	for _, rec := range r.Records {
		lines = append(lines, fmt.Sprintf("  %-50s -> %s", rec.From, rec.To))
	}
	return lines
}
