package dfu_test

import (
	"context"
)

// fakeTransport is a minimal in-memory usbtransport.Transport used to
// drive the state machine and transfer engine without real hardware,
// the same role testify-based fakes play for the teacher's ble.Client
// interface in rcaelers-nrf-dfu.
type fakeTransport struct {
	ifNum int

	// statusQueue is popped one entry per GETSTATUS; the last entry
	// repeats once exhausted.
	statusQueue [][6]byte
	statusIdx   int

	dnloads [][]byte // every DNLOAD payload issued, wValue ignored here
	aborts  int
	clears  int

	uploadData [][]byte // one slice served per UPLOAD call, in order
	uploadIdx  int
}

func (f *fakeTransport) ControlOut(ctx context.Context, bRequest byte, wValue uint16, data []byte) error {
	switch bRequest {
	case 1: // DNLOAD
		cp := append([]byte(nil), data...)
		f.dnloads = append(f.dnloads, cp)
	case 4: // CLRSTATUS
		f.clears++
	case 6: // ABORT
		f.aborts++
	}
	return nil
}

func (f *fakeTransport) ControlIn(ctx context.Context, bRequest byte, wValue uint16, length int) ([]byte, error) {
	switch bRequest {
	case 2: // UPLOAD
		if f.uploadIdx >= len(f.uploadData) {
			return nil, nil
		}
		data := f.uploadData[f.uploadIdx]
		f.uploadIdx++
		if len(data) > length {
			data = data[:length]
		}
		return data, nil
	case 3: // GETSTATUS
		idx := f.statusIdx
		if idx >= len(f.statusQueue) {
			idx = len(f.statusQueue) - 1
		} else {
			f.statusIdx++
		}
		reply := f.statusQueue[idx]
		return reply[:], nil
	}
	return nil, nil
}

func (f *fakeTransport) SetAltSetting(ctx context.Context, alt int) error { return nil }
func (f *fakeTransport) ClearHalt(ctx context.Context) error             { return nil }
func (f *fakeTransport) Reset(ctx context.Context) error                 { return nil }
func (f *fakeTransport) InterfaceNumber() int                            { return f.ifNum }
func (f *fakeTransport) Close() error                                    { return nil }

// status builds a 6-byte GETSTATUS reply: bStatus, 24-bit poll timeout
// (always 0 here to keep tests fast), bState, iString.
func status(bStatus byte, bState byte) [6]byte {
	return [6]byte{bStatus, 0, 0, 0, bState, 0}
}
