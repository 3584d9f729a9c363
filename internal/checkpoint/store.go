package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Local model store layout: manifests/<registry>/library/<name>/<tag> point at
// content-addressed blobs/sha256-<hash> files.
const (
	DefaultTag      = "latest"
	DefaultRegistry = "registry.ollama.ai"
	MediaTypeModel  = "application/vnd.ollama.image.model"
)

type Manifest struct {
	SchemaVersion int     `json:"schemaVersion"`
	Layers        []Layer `json:"layers"`
}

type Layer struct {
	MediaType string `json:"mediaType"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
}

// StoreDir returns $OLLAMA_MODELS or ~/.ollama/models.
func StoreDir() (string, error) {
	if env := os.Getenv("OLLAMA_MODELS"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ollama", "models"), nil
}

// ResolvePath returns arg if it names an existing file, otherwise tries to
// resolve it as a model store reference such as "llama3" or "llama3:8b".
func ResolvePath(arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	} else if !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "stat %s", arg)
	}

	if looksLikeModelRef(arg) {
		if p, err := ResolveStoreModel(arg); err == nil {
			return p, nil
		}
	}
	return "", errors.WithMessage(ErrFileNotFound, arg)
}

func looksLikeModelRef(arg string) bool {
	return arg != "" && !strings.ContainsAny(arg, `/\`) && filepath.Ext(strings.SplitN(arg, ":", 2)[0]) == ""
}

// ResolveStoreModel finds the model blob for name[:tag] in the local store.
func ResolveStoreModel(ref string) (string, error) {
	name, tag, ok := strings.Cut(ref, ":")
	if !ok || tag == "" {
		tag = DefaultTag
	}

	baseDir, err := StoreDir()
	if err != nil {
		return "", err
	}

	manifestPath := filepath.Join(baseDir, "manifests", DefaultRegistry, "library", name, tag)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", errors.Wrapf(err, "model manifest for %s", ref)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", errors.Wrapf(err, "parse manifest %s", manifestPath)
	}

	var digest string
	for _, l := range m.Layers {
		if l.MediaType == MediaTypeModel {
			digest = l.Digest
			break
		}
	}
	if digest == "" {
		return "", errors.Errorf("no model layer in manifest %s", manifestPath)
	}

	// digest "sha256:<hash>" is stored as blobs/sha256-<hash>
	blobPath := filepath.Join(baseDir, "blobs", strings.Replace(digest, ":", "-", 1))
	if _, err := os.Stat(blobPath); err != nil {
		return "", errors.Wrapf(err, "model blob for %s", ref)
	}
	return blobPath, nil
}
