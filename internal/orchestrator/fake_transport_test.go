package orchestrator

import "context"

// fakeTransport is the same in-memory usbtransport.Transport pattern
// internal/dfu and internal/dfuse tests use.
type fakeTransport struct {
	statusQueue [][6]byte
	statusIdx   int
	resets      int
	detaches    int
	clrs        int
}

func (f *fakeTransport) ControlOut(ctx context.Context, bRequest byte, wValue uint16, data []byte) error {
	switch bRequest {
	case 0: // DETACH
		f.detaches++
	case 4: // CLRSTATUS
		f.clrs++
	}
	return nil
}

func (f *fakeTransport) ControlIn(ctx context.Context, bRequest byte, wValue uint16, length int) ([]byte, error) {
	if bRequest == 3 { // GETSTATUS
		if f.statusIdx < len(f.statusQueue) {
			s := f.statusQueue[f.statusIdx]
			f.statusIdx++
			return s[:], nil
		}
		return []byte{0x00, 0, 0, 0, 2, 0}, nil // dfuIDLE
	}
	return make([]byte, length), nil
}

func (f *fakeTransport) SetAltSetting(ctx context.Context, alt int) error { return nil }
func (f *fakeTransport) ClearHalt(ctx context.Context) error             { return nil }
func (f *fakeTransport) Reset(ctx context.Context) error                 { f.resets++; return nil }
func (f *fakeTransport) InterfaceNumber() int                            { return 0 }
func (f *fakeTransport) Close() error                                    { return nil }
