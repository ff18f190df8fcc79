package dfu_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashforge/dfu-util/internal/dfu"
)

// alwaysDnloadIdle answers every GETSTATUS with dfuDNLOAD_IDLE so Poll
// returns immediately after one call.
func alwaysDnloadIdle() [][6]byte {
	return [][6]byte{status(0x00, 5)}
}

func TestGenericDownloadBlockNumbersAreSequentialWithManifestTrailer(t *testing.T) {
	ft := &fakeTransport{statusQueue: alwaysDnloadIdle()}
	// Final poll after the zero-length block must report dfuMANIFEST.
	ft.statusQueue = [][6]byte{
		status(0x00, 5), // after block 0
		status(0x00, 5), // after block 1
		status(0x00, 7), // after final zero-length block -> dfuMANIFEST
	}

	engine := &dfu.GenericEngine{
		Req: &dfu.Requester{Transport: ft},
		SM:  &dfu.StateMachine{Req: &dfu.Requester{Transport: ft}, IgnorePollTimeout: true},
	}
	tc := &dfu.TransferContext{XferSize: 4}

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, engine.Download(context.Background(), payload, tc))

	require.Len(t, ft.dnloads, 3)
	assert.Equal(t, []byte{1, 2, 3, 4}, ft.dnloads[0])
	assert.Equal(t, []byte{5, 6, 7, 8}, ft.dnloads[1])
	assert.Empty(t, ft.dnloads[2]) // manifestation trigger
}

func TestGenericUploadStopsOnShortRead(t *testing.T) {
	ft := &fakeTransport{
		statusQueue: alwaysDnloadIdle(),
		uploadData: [][]byte{
			{1, 2, 3, 4},
			{5, 6}, // short read: end of image
		},
	}
	engine := &dfu.GenericEngine{
		Req: &dfu.Requester{Transport: ft},
		SM:  &dfu.StateMachine{Req: &dfu.Requester{Transport: ft}, IgnorePollTimeout: true},
	}
	tc := &dfu.TransferContext{XferSize: 4}

	var out bytes.Buffer
	n, err := engine.Upload(context.Background(), &out, tc)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, out.Bytes())
}

func TestGenericUploadRespectsExpectedCeiling(t *testing.T) {
	ft := &fakeTransport{
		statusQueue: alwaysDnloadIdle(),
		uploadData: [][]byte{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
		},
	}
	engine := &dfu.GenericEngine{
		Req: &dfu.Requester{Transport: ft},
		SM:  &dfu.StateMachine{Req: &dfu.Requester{Transport: ft}, IgnorePollTimeout: true},
	}
	tc := &dfu.TransferContext{XferSize: 4, Expected: 6}

	var out bytes.Buffer
	n, err := engine.Upload(context.Background(), &out, tc)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}
