package golden

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/checkpoint"
	"github.com/pgermishuys/netchat/internal/tensor"
)

// Artifact names and the tensor key each artifact stores its tensor under.
const (
	InputBase  = "test_input"
	OutputBase = "expected_output"
	InputKey   = "input_ids"
	LogitsKey  = "logits"

	sampleLen = 5
)

// Artifact describes one persisted tensor.
type Artifact struct {
	Path   string
	Key    string
	DType  tensor.DType
	Shape  []int64
	Bytes  int64
	Sample []float64
}

// Summary is what Save reports for human sanity checks.
type Summary struct {
	Dir    string
	Format checkpoint.Format
	Input  Artifact
	Output Artifact
	Stats  LogitStats
}

// Paths returns the input and expected output paths for dir and format.
func Paths(dir string, format checkpoint.Format) (input, output string) {
	return filepath.Join(dir, InputBase+format.Ext()), filepath.Join(dir, OutputBase+format.Ext())
}

// Save creates dir if needed and writes both artifacts, replacing any earlier
// pair. Each file is written atomically.
func Save(dir string, f *Fixture, format checkpoint.Format) (*Summary, error) {
	if !format.Writable() {
		return nil, errors.Errorf("cannot write fixtures as %s", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}

	inPath, outPath := Paths(dir, format)
	if err := checkpoint.SaveTensor(inPath, InputKey, f.Input); err != nil {
		return nil, errors.WithMessagef(err, "save %s", inPath)
	}
	if err := checkpoint.SaveTensor(outPath, LogitsKey, f.Logits); err != nil {
		return nil, errors.WithMessagef(err, "save %s", outPath)
	}

	in, err := describe(inPath, InputKey, f.Input)
	if err != nil {
		return nil, err
	}
	out, err := describe(outPath, LogitsKey, f.Logits)
	if err != nil {
		return nil, err
	}
	stats, err := AuditTensor(f.Logits)
	if err != nil {
		return nil, err
	}
	return &Summary{Dir: dir, Format: format, Input: in, Output: out, Stats: stats}, nil
}

// LoadFixture reads a pair written by Save.
func LoadFixture(dir string, format checkpoint.Format) (*Fixture, error) {
	inPath, outPath := Paths(dir, format)
	input, err := checkpoint.LoadTensor(inPath, InputKey)
	if err != nil {
		return nil, err
	}
	logits, err := checkpoint.LoadTensor(outPath, LogitsKey)
	if err != nil {
		return nil, err
	}
	if len(input.Shape) != 2 || len(logits.Shape) != 3 || input.Shape[1] != logits.Shape[1] {
		return nil, errors.Errorf("fixture shapes %v and %v do not pair up", input.Shape, logits.Shape)
	}
	return &Fixture{
		Options: Options{SeqLen: int(input.Shape[1]), VocabSize: int(logits.Shape[2])},
		Input:   input,
		Logits:  logits,
	}, nil
}

// describe samples the first ids of the input, or the first token's first
// logits of the output.
func describe(path, key string, t *tensor.Tensor) (Artifact, error) {
	a := Artifact{Path: path, Key: key, DType: t.DType, Shape: t.Shape, Bytes: t.SizeBytes()}
	vals, err := values(t)
	if err != nil {
		return a, err
	}
	n := sampleLen
	if len(t.Shape) > 0 {
		n = min(n, int(t.Shape[len(t.Shape)-1]))
	}
	a.Sample = vals[:min(n, len(vals))]
	return a, nil
}

// values decodes any numeric tensor into float64s.
func values(t *tensor.Tensor) ([]float64, error) {
	if t.DType.IsFloat() {
		fs, err := t.Float32s()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(fs))
		for i, v := range fs {
			out[i] = float64(v)
		}
		return out, nil
	}
	is, err := t.Int64s()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(is))
	for i, v := range is {
		out[i] = float64(v)
	}
	return out, nil
}

// Lines renders the summary the way the verify command prints it.
func (s *Summary) Lines() []string {
	return []string{
		fmt.Sprintf("Saved test input to: %s", s.Input.Path),
		fmt.Sprintf("  Shape: %v", s.Input.Shape),
		fmt.Sprintf("  Sample values: %v", s.Input.Sample),
		"",
		fmt.Sprintf("Saved expected output to: %s", s.Output.Path),
		fmt.Sprintf("  Shape: %v", s.Output.Shape),
		fmt.Sprintf("  Sample logits (first token, first %d vocab): %v", len(s.Output.Sample), s.Output.Sample),
	}
}
