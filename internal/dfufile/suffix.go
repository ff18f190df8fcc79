package dfufile

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

// SuffixLength is the fixed size of a DFU suffix in bytes.
const SuffixLength = 16

// dfuSignature is the 3-byte "DFU" marker ('U','F','D' little-endian in
// the file, i.e. "D","F","U" reversed) stored at suffix offsets 8..10.
var dfuSignature = [3]byte{'U', 'F', 'D'}

// Suffix is the 16-byte trailer DFU tooling appends to a firmware image.
// Layout (little-endian, offsets relative to the start of the suffix):
//
//	0   bcdDevice   uint16
//	2   idProduct   uint16
//	4   idVendor    uint16
//	6   bcdDFU      uint16
//	8   "UFD"       3 bytes
//	11  bLength     uint8  (always 16)
//	12  dwCRC32     uint32
type Suffix struct {
	BcdDevice uint16
	IDProduct uint16
	IDVendor  uint16
	BcdDFU    uint16
	DwCRC     uint32
}

// ParseSuffix reads the trailing 16 bytes of a file image (everything
// before the suffix is the CRC's input) and validates signature, length,
// and CRC. A mismatch of any of those is FileFormatError; VID/PID
// consistency with a target device is checked by callers, not here,
// since a mismatch there is a warning per spec.md §7, not a parse
// failure.
func ParseSuffix(image []byte) (Suffix, error) {
	if len(image) < SuffixLength {
		return Suffix{}, dfuerr.New(dfuerr.KindFileFormat, "file too small to contain a DFU suffix")
	}
	suffix := image[len(image)-SuffixLength:]

	if suffix[11] != SuffixLength {
		return Suffix{}, dfuerr.New(dfuerr.KindFileFormat, "suffix bLength is not 16")
	}
	if suffix[8] != dfuSignature[0] || suffix[9] != dfuSignature[1] || suffix[10] != dfuSignature[2] {
		return Suffix{}, dfuerr.New(dfuerr.KindFileFormat, "suffix signature is not \"UFD\"")
	}

	s := Suffix{
		BcdDevice: binary.LittleEndian.Uint16(suffix[0:2]),
		IDProduct: binary.LittleEndian.Uint16(suffix[2:4]),
		IDVendor:  binary.LittleEndian.Uint16(suffix[4:6]),
		BcdDFU:    binary.LittleEndian.Uint16(suffix[6:8]),
		DwCRC:     binary.LittleEndian.Uint32(suffix[12:16]),
	}

	want := CRC(image[:len(image)-4])
	if want != s.DwCRC {
		return Suffix{}, dfuerr.New(dfuerr.KindFileFormat, "suffix CRC does not match file contents")
	}
	return s, nil
}

// EmitSuffix appends a freshly computed suffix (including its own CRC)
// to payload and returns the combined image. bcdDFU is written as
// given: the generic suffix uses 0x0100, DfuSe images use 0x011a.
func EmitSuffix(payload []byte, vid, pid, did, bcdDFU uint16) []byte {
	out := make([]byte, len(payload)+SuffixLength)
	copy(out, payload)
	tail := out[len(payload):]

	binary.LittleEndian.PutUint16(tail[0:2], did)
	binary.LittleEndian.PutUint16(tail[2:4], pid)
	binary.LittleEndian.PutUint16(tail[4:6], vid)
	binary.LittleEndian.PutUint16(tail[6:8], bcdDFU)
	copy(tail[8:11], dfuSignature[:])
	tail[11] = SuffixLength

	crc := CRC(out[:len(out)-4])
	binary.LittleEndian.PutUint32(tail[12:16], crc)
	return out
}

// StripSuffix removes a valid trailing suffix from image, returning the
// payload beneath it. It re-validates via ParseSuffix so a corrupt
// suffix is never silently dropped.
func StripSuffix(image []byte) ([]byte, error) {
	if _, err := ParseSuffix(image); err != nil {
		return nil, errors.Wrap(err, "refusing to strip an invalid suffix")
	}
	return image[:len(image)-SuffixLength], nil
}
