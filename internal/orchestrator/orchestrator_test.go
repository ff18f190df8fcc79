package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashforge/dfu-util/internal/dfu"
	"github.com/flashforge/dfu-util/internal/dfuse"
	"github.com/flashforge/dfu-util/internal/usbtransport"
)

func TestMatchFiltersOnVendorProductSerial(t *testing.T) {
	m := Match{VendorID: 0x1234, ProductID: 0x5678, Serial: "ABC"}

	assert.True(t, m.matches(usbtransport.DeviceInterface{VendorID: 0x1234, ProductID: 0x5678, Serial: "ABC"}))
	assert.False(t, m.matches(usbtransport.DeviceInterface{VendorID: 0x1234, ProductID: 0x5678, Serial: "XYZ"}))
	assert.False(t, m.matches(usbtransport.DeviceInterface{VendorID: 0x1111, ProductID: 0x5678, Serial: "ABC"}))
}

func TestMatchZeroValuesMatchAnything(t *testing.T) {
	var m Match
	assert.True(t, m.matches(usbtransport.DeviceInterface{VendorID: 0xAAAA, ProductID: 0xBBBB, Serial: "anything"}))
}

func TestMatchFiltersOnPath(t *testing.T) {
	m := Match{Path: "1-2.3"}
	assert.True(t, m.matches(usbtransport.DeviceInterface{PortPath: "1-2.3"}))
	assert.False(t, m.matches(usbtransport.DeviceInterface{PortPath: "1-2.4"}))
}

func TestMatchesDFUFallsBackToRuntimeIdentityWhenUnset(t *testing.T) {
	m := Match{VendorID: 0x1234, ProductID: 0x5678}
	assert.True(t, m.matchesDFU(usbtransport.DeviceInterface{VendorID: 0x1234, ProductID: 0x5678}))
}

func TestMatchesDFUPrefersDFUIdentityWhenSet(t *testing.T) {
	m := Match{VendorID: 0x1234, ProductID: 0x5678, VendorIDDFU: 0x0483, ProductIDDFU: 0xdf11}
	assert.False(t, m.matchesDFU(usbtransport.DeviceInterface{VendorID: 0x1234, ProductID: 0x5678}))
	assert.True(t, m.matchesDFU(usbtransport.DeviceInterface{VendorID: 0x0483, ProductID: 0xdf11}))
}

func TestTransitionToDFUResetsWhenNotWillDetach(t *testing.T) {
	ft := &fakeTransport{
		statusQueue: [][6]byte{{0x00, 0, 0, 0, byte(dfu.StateAppIdle), 0}},
	}
	req := &dfu.Requester{Transport: ft}

	require.NoError(t, transitionToDFU(context.Background(), req, ft, nil, 0))
	assert.Equal(t, 1, ft.detaches)
	assert.Equal(t, 1, ft.resets)
}

func TestTransitionToDFUWaitsWithoutResetWhenWillDetach(t *testing.T) {
	ft := &fakeTransport{
		statusQueue: [][6]byte{{0x00, 0, 0, 0, byte(dfu.StateAppIdle), 0}},
	}
	req := &dfu.Requester{Transport: ft}
	fd := &usbtransport.FunctionalDescriptor{WillDetach: true}

	require.NoError(t, transitionToDFU(context.Background(), req, ft, fd, time.Millisecond))
	assert.Equal(t, 1, ft.detaches)
	assert.Equal(t, 0, ft.resets)
}

func TestTransitionToDFUClearsErrorBeforeDetach(t *testing.T) {
	ft := &fakeTransport{
		statusQueue: [][6]byte{{0x01, 0, 0, 0, byte(dfu.StateDfuError), 0}},
	}
	req := &dfu.Requester{Transport: ft}

	require.NoError(t, transitionToDFU(context.Background(), req, ft, nil, 0))
	assert.Equal(t, 1, ft.clrs)
	assert.Equal(t, 1, ft.detaches)
}

func TestEngineSelectsDfuSeForBcdDfuSe(t *testing.T) {
	s := &Session{Functional: &usbtransport.FunctionalDescriptor{BcdDFUVersion: bcdDfuSe}}
	eng := s.Engine(&dfuse.Context{}, 0)
	_, ok := eng.(*dfuse.Engine)
	assert.True(t, ok)
}

func TestEngineSelectsGenericForOtherVersions(t *testing.T) {
	s := &Session{Functional: &usbtransport.FunctionalDescriptor{BcdDFUVersion: 0x0110}}
	eng := s.Engine(&dfuse.Context{}, 0)
	_, ok := eng.(*dfu.GenericEngine)
	assert.True(t, ok)
}

func TestEngineDefaultsToGenericWithNoDescriptor(t *testing.T) {
	s := &Session{}
	eng := s.Engine(&dfuse.Context{}, 0)
	_, ok := eng.(*dfu.GenericEngine)
	assert.True(t, ok)
}
