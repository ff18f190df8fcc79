package memlayout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashforge/dfu-util/internal/memlayout"
)

func TestParseTypicalSTM32Layout(t *testing.T) {
	layout, err := memlayout.Parse("@Internal Flash/0x08000000/04*001Ka,1*127Kg")
	require.NoError(t, err)
	require.Len(t, layout, 5)

	for i := 0; i < 4; i++ {
		assert.Equal(t, uint32(1024), layout[i].PageSize)
		assert.True(t, layout[i].Flags.Has(memlayout.Readable))
		assert.False(t, layout[i].Flags.Has(memlayout.Writeable))
	}
	last := layout[4]
	assert.Equal(t, uint32(127*1024), last.PageSize)
	assert.True(t, last.Flags.Has(memlayout.Readable))
	assert.True(t, last.Flags.Has(memlayout.Erasable))
	assert.True(t, last.Flags.Has(memlayout.Writeable))

	assert.Equal(t, uint32(0x08000000), layout[0].Start)
	assert.Equal(t, uint32(0x08000000+4*1024-1), layout[3].End)
	assert.Equal(t, uint32(0x08001000), last.Start)
}

func TestFindResolvesAddressToSegment(t *testing.T) {
	layout, err := memlayout.Parse("@Flash/0x08000000/2*2Kg")
	require.NoError(t, err)

	seg, ok := layout.Find(0x08000800)
	require.True(t, ok)
	assert.Equal(t, uint32(0x08000800), seg.Start)

	_, ok = layout.Find(0x09000000)
	assert.False(t, ok)
}

func TestParseRejectsNonDescriptorName(t *testing.T) {
	_, err := memlayout.Parse("plain-alt-name")
	assert.Error(t, err)
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	_, err := memlayout.Parse("@Flash/0x0/1*1Kz")
	assert.Error(t, err)
}

func TestParseSingleRegionWithMegabyteUnit(t *testing.T) {
	layout, err := memlayout.Parse("@Flash/0x90000000/1*16Mg")
	require.NoError(t, err)
	require.Len(t, layout, 1)
	assert.Equal(t, uint32(16*1024*1024), layout[0].PageSize)
}
