package dfufile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashforge/dfu-util/internal/dfufile"
)

func TestCRCTestVector(t *testing.T) {
	// Standard CRC-32 check value, quoted by spec.md §8.
	assert.Equal(t, uint32(0xCBF43926), dfufile.CRC([]byte("123456789")))
}

func TestSuffixRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03}
	image := dfufile.EmitSuffix(payload, 0x1234, 0x5678, 0x0100, 0x0100)

	suffix, err := dfufile.ParseSuffix(image)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), suffix.IDVendor)
	assert.Equal(t, uint16(0x5678), suffix.IDProduct)
	assert.Equal(t, uint16(0x0100), suffix.BcdDevice)
	assert.Equal(t, uint16(0x0100), suffix.BcdDFU)

	stripped, err := dfufile.StripSuffix(image)
	require.NoError(t, err)
	assert.Equal(t, payload, stripped)
}

func TestParseSuffixRejectsBadCRC(t *testing.T) {
	payload := []byte{1, 2, 3}
	image := dfufile.EmitSuffix(payload, 1, 2, 3, 0x0100)
	image[0] ^= 0xff // corrupt payload, CRC no longer matches

	_, err := dfufile.ParseSuffix(image)
	assert.Error(t, err)
}

func TestParseSuffixRejectsShortFile(t *testing.T) {
	_, err := dfufile.ParseSuffix([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestPrefixRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	image := dfufile.EmitPrefix(payload, 0x00020000)

	prefix, err := dfufile.ParsePrefix(image)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00020000), prefix.Address)

	stripped, err := dfufile.StripPrefix(image)
	require.NoError(t, err)
	assert.Equal(t, payload, stripped)
}

func TestParsePrefixRejectsBadMagic(t *testing.T) {
	buf := make([]byte, dfufile.PrefixLength+4)
	buf[0] = 0x02 // wrong magic
	_, err := dfufile.ParsePrefix(buf)
	assert.Error(t, err)
}

func TestLoadStoreFileImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fw.dfu")

	payload := []byte("firmware-bytes")
	image := dfufile.EmitSuffix(payload, 0x0483, 0xdf11, 0x0200, 0x0100)
	require.NoError(t, os.WriteFile(path, image, 0o644))

	img, err := dfufile.Load(path, dfufile.LoadOptions{RequireSuffix: true})
	require.NoError(t, err)
	assert.True(t, img.HasSuffix)
	assert.Equal(t, payload, img.Payload)
	assert.Equal(t, uint16(0x0483), img.Suffix.IDVendor)

	outPath := filepath.Join(dir, "stripped.bin")
	require.NoError(t, dfufile.Store(outPath, img, dfufile.StoreOptions{}))
	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, payload, raw)
}

func TestLoadRequireSuffixFailsWithoutOne(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a dfu file at all!!"), 0o644))

	_, err := dfufile.Load(path, dfufile.LoadOptions{RequireSuffix: true})
	assert.Error(t, err)
}
