package dfufile

import (
	"encoding/binary"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

// PrefixLength is the fixed size of a TI Stellaris/LM-DFU prefix.
const PrefixLength = 16

// stellarisMagic is the two-byte marker at prefix offset 0.
var stellarisMagic = [2]byte{0x01, 0x00}

// Prefix is the 16-byte header some TI Stellaris/LM3S bootloaders expect
// ahead of the payload. Layout (little-endian):
//
//	0  magic             2 bytes (0x01, 0x00)
//	2  payloadSizeWords   uint16  (payload length / 4, rounded up)
//	4  address            uint32  (flash address / 1024)
//	8  reserved           8 bytes (zero)
type Prefix struct {
	Address uint32 // flash byte address (already multiplied back out)
}

// ParsePrefix reads a 16-byte prefix from the front of image and
// validates its magic bytes. The payload-size-in-words field is
// informational only (dfu-suffix's own "check" output does not
// re-validate it against the actual payload length, matching
// original_source/src/suffix.c's show_suffix_and_prefix), so it is not
// returned separately; callers compute the payload length from the
// image itself.
func ParsePrefix(image []byte) (Prefix, error) {
	if len(image) < PrefixLength {
		return Prefix{}, dfuerr.New(dfuerr.KindFileFormat, "file too small to contain a Stellaris prefix")
	}
	prefix := image[:PrefixLength]
	if prefix[0] != stellarisMagic[0] || prefix[1] != stellarisMagic[1] {
		return Prefix{}, dfuerr.New(dfuerr.KindFileFormat, "Stellaris prefix magic mismatch")
	}
	addressDiv1024 := binary.LittleEndian.Uint32(prefix[4:8])
	return Prefix{Address: addressDiv1024 * 1024}, nil
}

// EmitPrefix builds a 16-byte Stellaris prefix for payload loaded at
// address, and prepends it to payload.
func EmitPrefix(payload []byte, address uint32) []byte {
	out := make([]byte, PrefixLength+len(payload))
	head := out[:PrefixLength]

	head[0], head[1] = stellarisMagic[0], stellarisMagic[1]
	words := (uint32(len(payload)) + 3) / 4
	binary.LittleEndian.PutUint16(head[2:4], uint16(words))
	binary.LittleEndian.PutUint32(head[4:8], address/1024)
	// head[8:16] left zero (reserved)

	copy(out[PrefixLength:], payload)
	return out
}

// StripPrefix removes a valid leading prefix from image, returning the
// bytes beneath it.
func StripPrefix(image []byte) ([]byte, error) {
	if _, err := ParsePrefix(image); err != nil {
		return nil, err
	}
	return image[PrefixLength:], nil
}
