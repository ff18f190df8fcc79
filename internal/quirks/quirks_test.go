package quirks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flashforge/dfu-util/internal/quirks"
)

func TestLookupKnownDevice(t *testing.T) {
	flags := quirks.Lookup(0x1457, 0x5119, 0x0100)
	assert.True(t, flags.Has(quirks.PollTimeout))
	assert.False(t, flags.Has(quirks.ForceDFU11))
}

func TestLookupUnknownDeviceIsZero(t *testing.T) {
	flags := quirks.Lookup(0xdead, 0xbeef, 0)
	assert.Equal(t, quirks.Flags(0), flags)
	assert.False(t, flags.Has(quirks.PollTimeout))
}

func TestLookupBcdDeviceWildcard(t *testing.T) {
	flags := quirks.Lookup(0x1cbe, 0x000f, 0x9999)
	assert.True(t, flags.Has(quirks.ForceDFU11))
}
