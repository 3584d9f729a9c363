package checkpoint

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Format is an on-disk container layout.
type Format int

const (
	FormatMsgpack Format = iota
	FormatSafetensors
	FormatGGUF
)

var ggufMagic = []byte("GGUF")

func (f Format) String() string {
	switch f {
	case FormatMsgpack:
		return "msgpack"
	case FormatSafetensors:
		return "safetensors"
	case FormatGGUF:
		return "gguf"
	default:
		return "unknown"
	}
}

// Ext is the file extension used when this package names files itself.
func (f Format) Ext() string {
	switch f {
	case FormatSafetensors:
		return ".safetensors"
	case FormatGGUF:
		return ".gguf"
	default:
		return ".ckpt"
	}
}

// Writable reports whether Save can produce this format.
func (f Format) Writable() bool {
	return f == FormatMsgpack || f == FormatSafetensors
}

// ParseFormat accepts a format name or a bare extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "msgpack", "ckpt", "pt", "pth":
		return FormatMsgpack, nil
	case "safetensors", "st":
		return FormatSafetensors, nil
	case "gguf":
		return FormatGGUF, nil
	}
	return 0, errors.Errorf("unknown checkpoint format %q", s)
}

// FormatForPath picks a format from the file extension; anything unknown is
// treated as msgpack.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".safetensors", ".st":
		return FormatSafetensors
	case ".gguf":
		return FormatGGUF
	default:
		return FormatMsgpack
	}
}

// sniff prefers content over the extension for GGUF, since model store blobs
// carry no extension.
func sniff(path string, data []byte) Format {
	if bytes.HasPrefix(data, ggufMagic) {
		return FormatGGUF
	}
	return FormatForPath(path)
}
