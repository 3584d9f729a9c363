package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStore(t *testing.T, name, tag string, layers []Layer, blob []byte) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("OLLAMA_MODELS", base)

	manifestDir := filepath.Join(base, "manifests", DefaultRegistry, "library", name)
	require.NoError(t, os.MkdirAll(manifestDir, 0o755))
	data, err := json.Marshal(Manifest{SchemaVersion: 2, Layers: layers})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(manifestDir, tag), data, 0o644))

	blobs := filepath.Join(base, "blobs")
	require.NoError(t, os.MkdirAll(blobs, 0o755))
	if blob != nil {
		require.NoError(t, os.WriteFile(filepath.Join(blobs, "sha256-abc123"), blob, 0o644))
	}
	return base
}

func TestStoreDirFromEnv(t *testing.T) {
	t.Setenv("OLLAMA_MODELS", "/custom/models")
	dir, err := StoreDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/models", dir)
}

func TestResolveStoreModel(t *testing.T) {
	layers := []Layer{
		{MediaType: "application/vnd.ollama.image.config", Digest: "sha256:cfg", Size: 10},
		{MediaType: MediaTypeModel, Digest: "sha256:abc123", Size: 4},
	}
	base := writeStore(t, "tiny", DefaultTag, layers, []byte("GGUF"))
	want := filepath.Join(base, "blobs", "sha256-abc123")

	for _, ref := range []string{"tiny", "tiny:latest"} {
		got, err := ResolveStoreModel(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, got)
	}

	got, err := ResolvePath("tiny")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ResolveStoreModel("tiny:8b")
	require.Error(t, err)
}

func TestResolveStoreModelErrors(t *testing.T) {
	t.Run("no model layer", func(t *testing.T) {
		writeStore(t, "cfgonly", DefaultTag, []Layer{{MediaType: "application/vnd.ollama.image.license", Digest: "sha256:x"}}, nil)
		_, err := ResolveStoreModel("cfgonly")
		require.Error(t, err)
	})

	t.Run("missing blob", func(t *testing.T) {
		writeStore(t, "noblob", DefaultTag, []Layer{{MediaType: MediaTypeModel, Digest: "sha256:abc123"}}, nil)
		_, err := ResolveStoreModel("noblob")
		require.Error(t, err)
	})
}

func TestResolvePathPrefersFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, os.WriteFile(path, []byte{0x80}, 0o644))

	got, err := ResolvePath(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	t.Setenv("OLLAMA_MODELS", t.TempDir())
	_, err = ResolvePath("not-a-model")
	require.ErrorIs(t, err, ErrFileNotFound)
	_, err = ResolvePath(filepath.Join(t.TempDir(), "gone.safetensors"))
	require.ErrorIs(t, err, ErrFileNotFound)
}
