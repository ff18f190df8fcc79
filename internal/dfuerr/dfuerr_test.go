package dfuerr_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind dfuerr.Kind
		want int
	}{
		{dfuerr.KindUsage, dfuerr.ExitUsage},
		{dfuerr.KindTransport, dfuerr.ExitIOErr},
		{dfuerr.KindDeviceStatus, dfuerr.ExitIOErr},
		{dfuerr.KindAddress, dfuerr.ExitIOErr},
		{dfuerr.KindWrongMode, dfuerr.ExitIOErr},
		{dfuerr.KindProtocol, dfuerr.ExitSoftware},
		{dfuerr.KindFileFormat, dfuerr.ExitSoftware},
		{dfuerr.KindUnsupportedVersion, dfuerr.ExitSoftware},
		{dfuerr.KindInternal, dfuerr.ExitSoftware},
	}
	for _, c := range cases {
		err := dfuerr.New(c.kind, "boom")
		assert.Equal(t, c.want, dfuerr.ExitCode(err), c.kind.String())
	}
	assert.Equal(t, dfuerr.ExitOK, dfuerr.ExitCode(nil))
}

func TestWrapPreservesKindAndCause(t *testing.T) {
	err := dfuerr.Wrap(dfuerr.KindTransport, io.ErrUnexpectedEOF, "reading status")
	assert.Equal(t, dfuerr.KindTransport, dfuerr.KindOf(err))
	assert.Contains(t, err.Error(), "reading status")
	assert.Contains(t, err.Error(), io.ErrUnexpectedEOF.Error())
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, dfuerr.Wrap(dfuerr.KindTransport, nil, "x"))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, dfuerr.KindInternal, dfuerr.KindOf(io.EOF))
}
