package dfu

import (
	"context"
	"time"

	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/usbtransport"
)

// bRequest values for the six DFU class requests, per spec.md §4.1.
const (
	reqDetach    = 0
	reqDnload    = 1
	reqUpload    = 2
	reqGetStatus = 3
	reqClrStatus = 4
	reqAbort     = 6
)

// statusReplyLength is the fixed 6-byte GETSTATUS reply.
const statusReplyLength = 6

// Requester issues the six DFU class requests against one claimed
// interface. It is the thin layer everything else in this package is
// built on; DfuSeContext's command layer in internal/dfuse reuses
// Requester's Dnload/GetStatus directly rather than reimplementing
// control-transfer plumbing.
type Requester struct {
	Transport usbtransport.Transport
}

// Detach issues DETACH with the given timeout encoded in wValue.
func (r *Requester) Detach(ctx context.Context, timeout time.Duration) error {
	ms := uint16(timeout / time.Millisecond)
	if err := r.Transport.ControlOut(ctx, reqDetach, ms, nil); err != nil {
		return dfuerr.Wrap(dfuerr.KindTransport, err, "DETACH")
	}
	return nil
}

// Dnload issues DNLOAD with the given block number and payload (which
// may be empty, to trigger manifestation, or a DfuSe command payload).
func (r *Requester) Dnload(ctx context.Context, blockNum uint16, data []byte) error {
	if err := r.Transport.ControlOut(ctx, reqDnload, blockNum, data); err != nil {
		return dfuerr.Wrap(dfuerr.KindTransport, err, "DNLOAD")
	}
	return nil
}

// Upload issues UPLOAD for up to length bytes at the given block
// number, returning whatever the device actually sent (a short read
// signals end-of-image to the caller).
func (r *Requester) Upload(ctx context.Context, blockNum uint16, length int) ([]byte, error) {
	data, err := r.Transport.ControlIn(ctx, reqUpload, blockNum, length)
	if err != nil {
		return nil, dfuerr.Wrap(dfuerr.KindTransport, err, "UPLOAD")
	}
	return data, nil
}

// GetStatus issues GETSTATUS and decodes the 6-byte reply: bStatus (1
// byte), bwPollTimeout (24-bit little-endian), bState (1 byte), iString
// (1 byte, unused).
func (r *Requester) GetStatus(ctx context.Context) (DfuStatus, error) {
	data, err := r.Transport.ControlIn(ctx, reqGetStatus, 0, statusReplyLength)
	if err != nil {
		return DfuStatus{}, dfuerr.Wrap(dfuerr.KindTransport, err, "GETSTATUS")
	}
	if len(data) < statusReplyLength {
		return DfuStatus{}, dfuerr.New(dfuerr.KindProtocol, "short GETSTATUS reply")
	}
	pollMs := uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16
	return DfuStatus{
		Status:      Status(data[0]),
		PollTimeout: time.Duration(pollMs) * time.Millisecond,
		State:       State(data[4]),
		IString:     data[5],
	}, nil
}

// ClrStatus issues CLRSTATUS, clearing a dfuERROR condition.
func (r *Requester) ClrStatus(ctx context.Context) error {
	if err := r.Transport.ControlOut(ctx, reqClrStatus, 0, nil); err != nil {
		return dfuerr.Wrap(dfuerr.KindTransport, err, "CLRSTATUS")
	}
	return nil
}

// Abort issues ABORT, returning the device to dfuIDLE from
// dfuDNLOAD_IDLE or dfuUPLOAD_IDLE.
func (r *Requester) Abort(ctx context.Context) error {
	if err := r.Transport.ControlOut(ctx, reqAbort, 0, nil); err != nil {
		return dfuerr.Wrap(dfuerr.KindTransport, err, "ABORT")
	}
	return nil
}
