package dfuse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashforge/dfu-util/internal/dfuse"
)

func TestParseOptionsAddressOnly(t *testing.T) {
	ctx, err := dfuse.ParseOptions("0x08000000")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x08000000), ctx.Address)
	assert.False(t, ctx.Force)
}

func TestParseOptionsAddressAndModifiers(t *testing.T) {
	ctx, err := dfuse.ParseOptions("0x08000000:force:leave")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x08000000), ctx.Address)
	assert.True(t, ctx.Force)
	assert.True(t, ctx.Leave)
	assert.False(t, ctx.MassErase)
}

func TestParseOptionsBareModifierNoAddress(t *testing.T) {
	ctx, err := dfuse.ParseOptions(":leave")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), ctx.Address)
	assert.True(t, ctx.Leave)
}

func TestParseOptionsLengthModifier(t *testing.T) {
	ctx, err := dfuse.ParseOptions("0x08000000:mass-erase:0x100")
	require.NoError(t, err)
	assert.True(t, ctx.MassErase)
	assert.Equal(t, uint32(0x100), ctx.Length)
}

func TestParseOptionsEmptyString(t *testing.T) {
	ctx, err := dfuse.ParseOptions("")
	require.NoError(t, err)
	assert.Equal(t, &dfuse.Context{}, ctx)
}

func TestParseOptionsInvalidAddress(t *testing.T) {
	_, err := dfuse.ParseOptions("not-a-number")
	assert.Error(t, err)
}
