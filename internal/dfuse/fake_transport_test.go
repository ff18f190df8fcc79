package dfuse_test

import "context"

// fakeTransport is a minimal in-memory usbtransport.Transport, the same
// pattern internal/dfu's tests use. It always reports dfuDNLOAD_IDLE so
// command and data polling resolve immediately.
type fakeTransport struct {
	dnloads [][]byte
	aborts  int
}

func (f *fakeTransport) ControlOut(ctx context.Context, bRequest byte, wValue uint16, data []byte) error {
	if bRequest == 1 { // DNLOAD
		cp := append([]byte(nil), data...)
		f.dnloads = append(f.dnloads, cp)
	}
	if bRequest == 6 { // ABORT
		f.aborts++
	}
	return nil
}

func (f *fakeTransport) ControlIn(ctx context.Context, bRequest byte, wValue uint16, length int) ([]byte, error) {
	switch bRequest {
	case 3: // GETSTATUS: OK, dfuDNLOAD_IDLE (5), no poll delay
		return []byte{0x00, 0, 0, 0, 5, 0}, nil
	case 2: // UPLOAD: always fill the requested length, never a short read
		return make([]byte, length), nil
	}
	return nil, nil
}

func (f *fakeTransport) SetAltSetting(ctx context.Context, alt int) error { return nil }
func (f *fakeTransport) ClearHalt(ctx context.Context) error             { return nil }
func (f *fakeTransport) Reset(ctx context.Context) error                 { return nil }
func (f *fakeTransport) InterfaceNumber() int                            { return 0 }
func (f *fakeTransport) Close() error                                    { return nil }
