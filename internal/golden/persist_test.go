package golden

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgermishuys/netchat/internal/checkpoint"
)

func smallFixture(t *testing.T, seed int64) *Fixture {
	t.Helper()
	f, err := NewFixture(Options{SeqLen: 8, VocabSize: 64, Seed: seed})
	require.NoError(t, err)
	return f
}

func TestSaveWritesBothArtifacts(t *testing.T) {
	for _, format := range []checkpoint.Format{checkpoint.FormatMsgpack, checkpoint.FormatSafetensors} {
		t.Run(format.String(), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "nested", "fixtures")
			f := smallFixture(t, 42)

			sum, err := Save(dir, f, format)
			require.NoError(t, err)

			assert.Equal(t, filepath.Join(dir, "test_input"+format.Ext()), sum.Input.Path)
			assert.Equal(t, filepath.Join(dir, "expected_output"+format.Ext()), sum.Output.Path)
			assert.FileExists(t, sum.Input.Path)
			assert.FileExists(t, sum.Output.Path)

			assert.Equal(t, []int64{1, 8}, sum.Input.Shape)
			assert.Equal(t, []int64{1, 8, 64}, sum.Output.Shape)

			ids, _ := f.Input.Int64s()
			require.Len(t, sum.Input.Sample, 5)
			for i := range 5 {
				assert.Equal(t, float64(ids[i]), sum.Input.Sample[i])
			}
			logits, _ := f.Logits.Float32s()
			require.Len(t, sum.Output.Sample, 5)
			for i := range 5 {
				assert.Equal(t, float64(logits[i]), sum.Output.Sample[i])
			}

			back, err := LoadFixture(dir, format)
			require.NoError(t, err)
			assert.True(t, f.Input.Equal(back.Input))
			assert.True(t, f.Logits.Equal(back.Logits))
			assert.Equal(t, 8, back.SeqLen)
			assert.Equal(t, 64, back.VocabSize)
		})
	}
}

func TestSaveIsIdempotentAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	_, err := Save(dir, smallFixture(t, 1), checkpoint.FormatMsgpack)
	require.NoError(t, err)

	second := smallFixture(t, 2)
	_, err = Save(dir, second, checkpoint.FormatMsgpack)
	require.NoError(t, err)

	back, err := LoadFixture(dir, checkpoint.FormatMsgpack)
	require.NoError(t, err)
	assert.True(t, second.Input.Equal(back.Input))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no leftovers besides the two artifacts")
}

func TestSaveSmallVocabSample(t *testing.T) {
	f, err := NewFixture(Options{SeqLen: 2, VocabSize: 3, Seed: 4})
	require.NoError(t, err)
	sum, err := Save(t.TempDir(), f, checkpoint.FormatSafetensors)
	require.NoError(t, err)
	assert.Len(t, sum.Input.Sample, 2)
	assert.Len(t, sum.Output.Sample, 3)
	assert.Len(t, sum.Lines(), 7)
}

func TestSaveRejectsReadOnlyFormat(t *testing.T) {
	_, err := Save(t.TempDir(), smallFixture(t, 1), checkpoint.FormatGGUF)
	require.Error(t, err)
}

func TestLoadFixtureMissing(t *testing.T) {
	_, err := LoadFixture(t.TempDir(), checkpoint.FormatMsgpack)
	require.ErrorIs(t, err, checkpoint.ErrFileNotFound)
}
