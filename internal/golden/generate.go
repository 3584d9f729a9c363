// Package golden produces and checks deterministic input/output fixture pairs
// used to verify a forward-pass reimplementation against a reference.
package golden

import (
	"math"
	"math/bits"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/tensor"
)

const (
	DefaultSeqLen    = 16
	DefaultVocabSize = 32768
	DefaultSeed      = 42

	// maxElements caps the logits tensor at 1 GiB of F32.
	maxElements = 1 << 28
)

// Stream selectors keep the input and logits sequences independent for a seed.
const (
	inputStream  uint64 = 0x696e7075745f6964 // "input_id"
	logitsStream uint64 = 0x6c6f676974735f30 // "logits_0"
)

// Options describes one fixture.
type Options struct {
	SeqLen    int
	VocabSize int
	Seed      int64
}

func DefaultOptions() Options {
	return Options{SeqLen: DefaultSeqLen, VocabSize: DefaultVocabSize, Seed: DefaultSeed}
}

func (o Options) Validate() error {
	if o.SeqLen <= 0 {
		return errors.Errorf("seq len must be positive, got %d", o.SeqLen)
	}
	if o.VocabSize <= 0 {
		return errors.Errorf("vocab size must be positive, got %d", o.VocabSize)
	}
	if int64(o.SeqLen)*int64(o.VocabSize) > maxElements {
		return errors.Errorf("seq len %d x vocab size %d exceeds %d logits", o.SeqLen, o.VocabSize, maxElements)
	}
	return nil
}

// Fixture is an input/logits pair. It is never mutated after NewFixture.
type Fixture struct {
	Options
	Input  *tensor.Tensor
	Logits *tensor.Tensor
}

// NewFixture builds the input ids and the placeholder logits for o.
func NewFixture(o Options) (*Fixture, error) {
	input, err := GenerateInput(o.SeqLen, o.VocabSize, o.Seed)
	if err != nil {
		return nil, err
	}
	logits, err := PlaceholderLogits(o.SeqLen, o.VocabSize, o.Seed)
	if err != nil {
		return nil, err
	}
	return &Fixture{Options: o, Input: input, Logits: logits}, nil
}

// GenerateInput returns an I64 tensor shaped (1, seqLen) of token ids drawn
// uniformly from [0, vocabSize). The output depends only on the arguments.
func GenerateInput(seqLen, vocabSize int, seed int64) (*tensor.Tensor, error) {
	if err := (Options{SeqLen: seqLen, VocabSize: vocabSize, Seed: seed}).Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(uint64(seed), inputStream)
	ids := make([]int64, seqLen)
	for i := range ids {
		ids[i] = int64(boundedUint64(src, uint64(vocabSize)))
	}
	return tensor.FromInt64s([]int64{1, int64(seqLen)}, ids)
}

// PlaceholderLogits returns F32 standard normal values shaped
// (1, seqLen, vocabSize). They stand in for a real forward pass and only fix
// the shape, dtype and persistence protocol.
func PlaceholderLogits(seqLen, vocabSize int, seed int64) (*tensor.Tensor, error) {
	if err := (Options{SeqLen: seqLen, VocabSize: vocabSize, Seed: seed}).Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(uint64(seed), logitsStream)
	vals := make([]float32, seqLen*vocabSize)
	for i := 0; i < len(vals); i += 2 {
		z0, z1 := boxMuller(src)
		vals[i] = float32(z0)
		if i+1 < len(vals) {
			vals[i+1] = float32(z1)
		}
	}
	return tensor.FromFloat32s([]int64{1, int64(seqLen), int64(vocabSize)}, vals)
}

// boundedUint64 returns a uniform value in [0, n) using the multiply-high
// method with rejection, so no value is favoured for any n.
func boundedUint64(src rand.Source, n uint64) uint64 {
	hi, lo := bits.Mul64(src.Uint64(), n)
	if lo < n {
		threshold := -n % n
		for lo < threshold {
			hi, lo = bits.Mul64(src.Uint64(), n)
		}
	}
	return hi
}

// unitOpen returns a float64 in (0, 1].
func unitOpen(src rand.Source) float64 {
	return float64(src.Uint64()>>11+1) / (1 << 53)
}

func boxMuller(src rand.Source) (float64, float64) {
	u1 := unitOpen(src)
	u2 := float64(src.Uint64()>>11) / (1 << 53)
	r := math.Sqrt(-2 * math.Log(u1))
	theta := 2 * math.Pi * u2
	return r * math.Cos(theta), r * math.Sin(theta)
}
