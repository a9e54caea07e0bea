package binary

import "errors"

// Parse error sentinels: malformed section, invalid encoding, invalid local
// count, duplicate section, unsupported section/operator, end marker not
// reached. Wrapped with fmt.Errorf for positional context, so embedders
// compare with errors.Is.
var (
	ErrMalformed        = errors.New("binary: malformed encoding")
	ErrDuplicateSection = errors.New("binary: duplicate section")
	ErrUnsupportedSection = errors.New("binary: unsupported section id")
	ErrEndNotReached    = errors.New("binary: end marker not reached")
	ErrInvalidLocalCount = errors.New("binary: invalid local count")
	ErrInvalidMagic     = errors.New("binary: invalid wasm magic number")
	ErrInvalidVersion   = errors.New("binary: invalid wasm version")
)
