// Package fingerprint provides the system's sole primitive for "equal bytes
// implies equal content": a fast, stable 64-bit checksum over file contents
// and over arbitrary byte/string payloads (flag sets, tool identities, and
// other small values the cache keys on).
package fingerprint

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// IoError wraps a filesystem failure encountered while fingerprinting a
// path, matching the ConfigError/IoError/... taxonomy used across the
// engine: a concrete type callers can errors.As against.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("fingerprint: cannot read %s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// File returns the fingerprint of the file at path. Deterministic across
// runs and machines for identical bytes; it never inspects mtime or any
// other metadata, only content.
func File(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &IoError{Path: path, Err: err}
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, &IoError{Path: path, Err: err}
	}
	return h.Sum64(), nil
}

// Bytes returns the fingerprint of an in-memory payload.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// String returns the fingerprint of a string, using the same checksum as
// Bytes so a round-tripped []byte(s) always fingerprints identically.
func String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Strings fingerprints a slice of strings as a single value, independent of
// input order by design of the caller: callers that care about order
// (e.g. flags, which are positional) must sort or not, as their semantics
// require, before calling this. Used for composing prebuild keys out of
// several already-fingerprinted inputs.
func Strings(parts []string) uint64 {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
