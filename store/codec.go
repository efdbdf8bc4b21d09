package store

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// compressionMarker prefixes payloads that went through gzip so reads can
// tell compressed values from plain ones.
const compressionMarker = "gzip:"

// ErrNotSerializable reports a value that cannot be encoded for storage.
// It is the only error Set propagates; it signals a caller programming error.
var ErrNotSerializable = errors.New("value is not serializable")

// encode turns a value into its stored string form. With raw mode the value
// must already be a string and is passed through untouched.
func (s *Store) encode(value any, o callOptions) (string, error) {
	if o.raw {
		str, ok := value.(string)
		if !ok {
			return "", errors.Wrapf(ErrNotSerializable, "raw mode requires a string value, got %T", value)
		}
		return str, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", errors.Wrapf(ErrNotSerializable, "marshal: %v", err)
	}
	return string(data), nil
}

// decode reverses encode. Corrupted cache content degrades to the raw string
// instead of failing the caller.
func (s *Store) decode(raw string, o callOptions) any {
	if o.raw {
		return raw
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		slog.Warn("cache value is not valid JSON, returning raw", "component", "cache", "error", err)
		return raw
	}
	return value
}

// maybeCompress gzips the payload when compression is requested and the
// payload meets the size threshold. Small payloads are stored as-is since the
// marker and base64 overhead would outweigh the savings.
func (s *Store) maybeCompress(payload string, o callOptions) string {
	if !o.compress || len(payload) < s.profile.CompressionThreshold {
		return payload
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(payload)); err != nil {
		slog.Warn("compression failed, storing uncompressed", "component", "cache", "error", err)
		return payload
	}
	if err := zw.Close(); err != nil {
		slog.Warn("compression failed, storing uncompressed", "component", "cache", "error", err)
		return payload
	}
	return compressionMarker + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// maybeDecompress reverses maybeCompress when the marker is present. Any
// failure returns the input unchanged; corruption is treated as data, not as
// a fatal condition.
func maybeDecompress(payload string) string {
	if !strings.HasPrefix(payload, compressionMarker) {
		return payload
	}
	compressed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(payload, compressionMarker))
	if err != nil {
		slog.Warn("compressed cache value has invalid encoding", "component", "cache", "error", err)
		return payload
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		slog.Warn("compressed cache value is corrupted", "component", "cache", "error", err)
		return payload
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		slog.Warn("compressed cache value is corrupted", "component", "cache", "error", err)
		return payload
	}
	return string(plain)
}
