// Package wire defines the on-the-wire envelope shared by every persisted
// gip structure: a fixed 8-byte header followed by a deterministic CBOR
// payload. The header stays independent of the payload encoding so that a
// reader can always learn the protocol version before committing to a
// payload schema.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the 6-byte prefix that distinguishes a serialized gip structure
// from arbitrary bytes in the content store.
const Magic = "GIPGIP"

// ProtocolVersion is the current protocol version. Bump on every breaking
// change to a persisted structure; pkg/migrations must learn the old shape
// at the same time.
const ProtocolVersion uint16 = 2

// HeaderLen is the fixed width of the envelope header: 6 magic bytes plus a
// big-endian uint16 version. The 65k version space is deliberate headroom.
const HeaderLen = 8

// ErrMalformedHeader reports input that is too short to hold a header or
// whose magic bytes do not match exactly.
var ErrMalformedHeader = errors.New("malformed gip header")

// Header returns the 8-byte envelope header for the given protocol version.
// Callers encoding current-day structures pass ProtocolVersion.
func Header(version uint16) []byte {
	buf := make([]byte, HeaderLen)
	copy(buf, Magic)
	binary.BigEndian.PutUint16(buf[len(Magic):], version)
	return buf
}

// ParseHeader validates the magic bytes and returns the protocol version.
// It performs no version-compatibility policy; that belongs to callers
// (strict decoders demand equality, pkg/migrations tolerates older).
func ParseHeader(data []byte) (uint16, error) {
	if len(data) < HeaderLen {
		return 0, fmt.Errorf("%w: %d bytes would not fit the header", ErrMalformedHeader, len(data))
	}
	if !bytes.Equal(data[:len(Magic)], []byte(Magic)) {
		return 0, fmt.Errorf("%w: bad magic %q", ErrMalformedHeader, data[:len(Magic)])
	}
	return binary.BigEndian.Uint16(data[len(Magic):HeaderLen]), nil
}

// VersionMismatchError reports a payload whose header carries a protocol
// version a strict decoder does not implement.
type VersionMismatchError struct {
	Found uint16
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("protocol version %d does not match current version %d", e.Found, ProtocolVersion)
}
