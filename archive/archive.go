// Package archive implements the optional .twasm on-disk format: a compiled
// Module serialized with a fixed-size header so embedders can skip the
// binary decode/lower pass on repeated loads.
package archive

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wasmcore/vm/internal/wasm"
)

const (
	magic   = "TWAS"
	version = "01"

	// headerSize is magic(4) + version(2) + 10 reserved padding bytes.
	headerSize = 16
	paddingLen = 10

	checksumSize = 8
)

var zeroPadding [paddingLen]byte

// InvalidMagicError reports a file that does not start with the "TWAS" magic.
type InvalidMagicError struct{ Got [4]byte }

func (e *InvalidMagicError) Error() string {
	return fmt.Sprintf("archive: invalid magic %q", e.Got[:])
}

// InvalidVersionError reports a header version this package does not
// recognize.
type InvalidVersionError struct{ Got [2]byte }

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("archive: invalid version %q", e.Got[:])
}

// InvalidPaddingError reports reserved header bytes that are not zero.
type InvalidPaddingError struct{}

func (e *InvalidPaddingError) Error() string { return "archive: invalid header padding" }

// InvalidArchiveError reports a payload whose checksum does not match its
// bytes: the archive is truncated or corrupt.
type InvalidArchiveError struct{ Want, Got uint64 }

func (e *InvalidArchiveError) Error() string {
	return fmt.Sprintf("archive: checksum mismatch: want %x, got %x", e.Want, e.Got)
}

// Serialize encodes m into the .twasm byte format: the 16-byte header,
// followed by an 8-byte xxhash checksum of the payload, followed by the
// msgpack-encoded payload itself.
func Serialize(m *wasm.Module) ([]byte, error) {
	payload, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("archive: marshal: %w", err)
	}
	sum := xxhash.Sum64(payload)

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+checksumSize+len(payload)))
	buf.WriteString(magic)
	buf.WriteString(version)
	buf.Write(zeroPadding[:])
	var sumBytes [checksumSize]byte
	putU64LE(sumBytes[:], sum)
	buf.Write(sumBytes[:])
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Load decodes a .twasm byte slice, validating the header and payload
// checksum before unmarshaling the compiled Module.
func Load(b []byte) (*wasm.Module, error) {
	if len(b) < headerSize+checksumSize {
		return nil, fmt.Errorf("archive: %w", &InvalidArchiveError{})
	}

	var gotMagic [4]byte
	copy(gotMagic[:], b[0:4])
	if string(gotMagic[:]) != magic {
		return nil, &InvalidMagicError{Got: gotMagic}
	}

	var gotVersion [2]byte
	copy(gotVersion[:], b[4:6])
	if string(gotVersion[:]) != version {
		return nil, &InvalidVersionError{Got: gotVersion}
	}

	if !bytes.Equal(b[6:16], zeroPadding[:]) {
		return nil, &InvalidPaddingError{}
	}

	wantSum := getU64LE(b[16:24])
	payload := b[24:]
	gotSum := xxhash.Sum64(payload)
	if gotSum != wantSum {
		return nil, &InvalidArchiveError{Want: wantSum, Got: gotSum}
	}

	m := &wasm.Module{}
	if err := msgpack.Unmarshal(payload, m); err != nil {
		return nil, fmt.Errorf("archive: unmarshal: %w", err)
	}
	return m, nil
}

func putU64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
