// Package bytecode implements the on-disk compiled-template cache file
// format: a magic-tagged, versioned, source-hash-verified container around
// an opaque serialized compiled program.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// Magic identifies a Kida bytecode cache file.
var Magic = [4]byte{'K', 'I', 'D', 'A'}

// CurrentVersion is the bytecode container format version written by this
// build. Readers reject any other version as a miss, not an error.
const CurrentVersion uint16 = 1

const (
	flagIsAsync byte = 1 << 0
)

// Entry is a decoded bytecode cache record.
type Entry struct {
	Version    uint16
	SourceHash uint64
	IsAsync    bool
	Payload    []byte
}

// HashSource returns the 64-bit hash of normalized template source used as
// the cache key and the stored verification value.
func HashSource(source string) uint64 {
	return xxhash.Sum64String(source)
}

// Encode serializes an Entry to the wire format described by the cache
// file layout: magic, version, source hash, flags, length-prefixed payload.
func Encode(e Entry) []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])

	var versionBuf [2]byte
	binary.LittleEndian.PutUint16(versionBuf[:], e.Version)
	buf.Write(versionBuf[:])

	var hashBuf [8]byte
	binary.LittleEndian.PutUint64(hashBuf[:], e.SourceHash)
	buf.Write(hashBuf[:])

	var flags byte
	if e.IsAsync {
		flags |= flagIsAsync
	}
	buf.WriteByte(flags)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e.Payload)))
	buf.Write(lenBuf[:])
	buf.Write(e.Payload)

	return buf.Bytes()
}

// ErrBadMagic is returned when the leading bytes don't match the Kida
// bytecode magic; callers should treat this the same as a cache miss.
var ErrBadMagic = fmt.Errorf("bytecode: bad magic")

// Decode parses the wire format produced by Encode.
func Decode(data []byte) (Entry, error) {
	if len(data) < 4+2+8+1+4 {
		return Entry{}, fmt.Errorf("bytecode: truncated header")
	}
	if !bytes.Equal(data[0:4], Magic[:]) {
		return Entry{}, ErrBadMagic
	}

	version := binary.LittleEndian.Uint16(data[4:6])
	sourceHash := binary.LittleEndian.Uint64(data[6:14])
	flags := data[14]
	payloadLen := binary.LittleEndian.Uint32(data[15:19])

	payloadStart := 19
	if len(data) < payloadStart+int(payloadLen) {
		return Entry{}, fmt.Errorf("bytecode: truncated payload")
	}

	payload := make([]byte, payloadLen)
	copy(payload, data[payloadStart:payloadStart+int(payloadLen)])

	return Entry{
		Version:    version,
		SourceHash: sourceHash,
		IsAsync:    flags&flagIsAsync != 0,
		Payload:    payload,
	}, nil
}

// Store is a directory-backed bytecode cache. Writes go through a temp
// file and atomic rename so concurrent readers never observe a partial
// file; readers that hit a transient error fall back to recompilation
// rather than erroring the render.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) pathFor(templateName string) string {
	key := xxhash.Sum64String(templateName)
	return filepath.Join(s.dir, fmt.Sprintf("%016x.kdc", key))
}

// Load reads and validates the cached entry for templateName. A mismatched
// source hash, bad magic, unsupported version, or any I/O error is
// reported as (Entry{}, false): a clean miss that should trigger a
// recompile, not surfaced as a render error.
func (s *Store) Load(templateName string, wantSourceHash uint64) (Entry, bool) {
	data, err := os.ReadFile(s.pathFor(templateName))
	if err != nil {
		return Entry{}, false
	}
	entry, err := Decode(data)
	if err != nil {
		return Entry{}, false
	}
	if entry.Version != CurrentVersion {
		return Entry{}, false
	}
	if entry.SourceHash != wantSourceHash {
		return Entry{}, false
	}
	return entry, true
}

// Store persists entry for templateName via temp-file-then-rename.
func (s *Store) Store(templateName string, entry Entry) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("bytecode: create cache dir: %w", err)
	}

	entry.Version = CurrentVersion
	data := Encode(entry)

	target := s.pathFor(templateName)
	tmp, err := os.CreateTemp(s.dir, "kdc-*.tmp")
	if err != nil {
		return fmt.Errorf("bytecode: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("bytecode: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("bytecode: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("bytecode: rename temp file: %w", err)
	}
	return nil
}

// Invalidate removes the cached entry for templateName, if present.
func (s *Store) Invalidate(templateName string) {
	os.Remove(s.pathFor(templateName))
}
