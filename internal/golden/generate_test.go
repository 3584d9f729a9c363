package golden

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInputDeterministic(t *testing.T) {
	a, err := GenerateInput(16, 32768, 42)
	require.NoError(t, err)
	b, err := GenerateInput(16, 32768, 42)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 16}, a.Shape)
	assert.Equal(t, a.Data, b.Data, "same arguments must give identical bytes")

	c, err := GenerateInput(16, 32768, 43)
	require.NoError(t, err)
	assert.NotEqual(t, a.Data, c.Data)
}

// Fixture files are consumed by other processes; these values must not drift.
func TestGenerateInputPinnedValues(t *testing.T) {
	in, err := GenerateInput(DefaultSeqLen, DefaultVocabSize, DefaultSeed)
	require.NoError(t, err)
	ids, err := in.Int64s()
	require.NoError(t, err)

	want := []int64{13449, 22498, 30106, 31850, 17529, 4595, 20397, 29448, 17611, 10109, 32461, 10055, 14759, 13252, 10608, 28167}
	assert.Equal(t, want, ids)
}

func TestPlaceholderLogitsPinnedValues(t *testing.T) {
	logits, err := PlaceholderLogits(2, 8, 42)
	require.NoError(t, err)

	sum := sha256.Sum256(logits.Data)
	assert.Equal(t, "e0b31d81c92c40f1e067c009de19d712b9f0f0ced34583bc8a3f20d07a5c0f52", hex.EncodeToString(sum[:]))

	vals, err := logits.Float32s()
	require.NoError(t, err)
	wantBits := []uint32{0xc0249adc, 0x3efe1085, 0x4007b354, 0xc015b0a9}
	for i, w := range wantBits {
		assert.Equal(t, w, math.Float32bits(vals[i]), "logit %d", i)
	}
}

func TestGenerateInputShorterRunIsPrefix(t *testing.T) {
	long, err := GenerateInput(64, 1000, 7)
	require.NoError(t, err)
	short, err := GenerateInput(8, 1000, 7)
	require.NoError(t, err)

	lv, _ := long.Int64s()
	sv, _ := short.Int64s()
	assert.Equal(t, lv[:8], sv)
}

func TestGenerateInputRange(t *testing.T) {
	tests := []struct {
		name  string
		vocab int
	}{
		{"single token vocab", 1},
		{"small", 3},
		{"default", DefaultVocabSize},
		{"not a power of two", 50257},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := GenerateInput(512, tt.vocab, 1)
			require.NoError(t, err)
			ids, err := in.Int64s()
			require.NoError(t, err)
			for _, id := range ids {
				require.GreaterOrEqual(t, id, int64(0))
				require.Less(t, id, int64(tt.vocab))
			}
		})
	}
}

func TestGenerateInputIsRoughlyUniform(t *testing.T) {
	in, err := GenerateInput(10000, 10, 99)
	require.NoError(t, err)
	ids, _ := in.Int64s()

	counts := make([]int, 10)
	for _, id := range ids {
		counts[id]++
	}
	for v, n := range counts {
		assert.InDelta(t, 1000, n, 200, "bucket %d", v)
	}
}

func TestGenerateRejectsBadDimensions(t *testing.T) {
	tests := []struct {
		name          string
		seqLen, vocab int
	}{
		{"zero seq len", 0, 10},
		{"negative seq len", -1, 10},
		{"zero vocab", 4, 0},
		{"too many logits", 1 << 20, 1 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateInput(tt.seqLen, tt.vocab, 1)
			assert.Error(t, err)
			_, err = PlaceholderLogits(tt.seqLen, tt.vocab, 1)
			assert.Error(t, err)
		})
	}
}

// fixedSource replays a list of raw draws.
type fixedSource struct {
	vals []uint64
	n    int
}

func (s *fixedSource) Uint64() uint64 {
	v := s.vals[s.n]
	s.n++
	return v
}

func TestBoundedUint64Rejects(t *testing.T) {
	// for n=3 the threshold is 2^64 mod 3 = 1, so a draw of 0 is rejected
	src := &fixedSource{vals: []uint64{0, 1 << 63}}
	assert.Equal(t, uint64(1), boundedUint64(src, 3))
	assert.Equal(t, 2, src.n)

	src = &fixedSource{vals: []uint64{math.MaxUint64}}
	assert.Equal(t, uint64(2), boundedUint64(src, 3))
}

func TestPlaceholderLogits(t *testing.T) {
	logits, err := PlaceholderLogits(16, 1024, 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 16, 1024}, logits.Shape)

	again, err := PlaceholderLogits(16, 1024, 42)
	require.NoError(t, err)
	assert.Equal(t, logits.Data, again.Data)

	vals, err := logits.Float32s()
	require.NoError(t, err)
	stats := Audit(vals)
	assert.InDelta(t, 0, stats.Mean, 0.05)
	assert.InDelta(t, 1, stats.RMS, 0.05)
	assert.True(t, stats.Healthy(), stats.String())
}

func TestPlaceholderLogitsOddCount(t *testing.T) {
	logits, err := PlaceholderLogits(1, 3, 5)
	require.NoError(t, err)
	vals, _ := logits.Float32s()
	require.Len(t, vals, 3)
	for _, v := range vals {
		assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}
}

func TestNewFixture(t *testing.T) {
	f, err := NewFixture(DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, DefaultSeqLen}, f.Input.Shape)
	assert.Equal(t, []int64{1, DefaultSeqLen, DefaultVocabSize}, f.Logits.Shape)

	_, err = NewFixture(Options{SeqLen: 0, VocabSize: 10})
	require.Error(t, err)
}
