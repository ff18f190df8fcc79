package usbtransport

import (
	"context"

	"github.com/google/gousb"
	"github.com/pkg/errors"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

// bmRequestType values for class|interface control transfers, per
// spec.md §4.1.
const (
	requestTypeOut = 0x21 // host-to-device, class, interface
	requestTypeIn  = 0xA1 // device-to-host, class, interface
)

// GousbTransport is the production Transport, backed by
// github.com/google/gousb. Its open/claim/release sequence follows
// guiperry-HASHER's internal/driver/device/usb_device.go: context →
// device-by-VID/PID → config → interface, unwinding whatever was
// already opened if a later step fails.
type GousbTransport struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	cfgNum int
	ifNum  int
}

// Open finds a device by VID/PID (optionally narrowed by serial
// number), claims the given configuration/interface/alt-setting, and
// returns a ready-to-use Transport. Every partial-open failure unwinds
// what was already claimed before returning, matching the layered
// cleanup in usb_device.go's OpenUSBDevice.
func Open(vid, pid gousb.ID, serial string, cfgNum, ifNum, altNum int) (*GousbTransport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, dfuerr.Wrapf(dfuerr.KindTransport, err, "opening device %s:%s", vid, pid)
	}
	if dev == nil {
		ctx.Close()
		return nil, dfuerr.New(dfuerr.KindTransport, "no device matched "+vid.String()+":"+pid.String())
	}
	if serial != "" {
		got, err := dev.SerialNumber()
		if err != nil || got != serial {
			dev.Close()
			ctx.Close()
			return nil, dfuerr.New(dfuerr.KindTransport, "device serial number does not match filter")
		}
	}

	if err := dev.SetAutoDetach(true); err != nil {
		// Not fatal: some platforms/drivers don't support auto-detach.
		_ = err
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, dfuerr.Wrapf(dfuerr.KindTransport, err, "selecting config %d", cfgNum)
	}

	intf, err := cfg.Interface(ifNum, altNum)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, dfuerr.Wrapf(dfuerr.KindTransport, err, "claiming interface %d alt %d", ifNum, altNum)
	}

	return &GousbTransport{ctx: ctx, dev: dev, cfg: cfg, intf: intf, cfgNum: cfgNum, ifNum: ifNum}, nil
}

func (t *GousbTransport) ControlOut(ctx context.Context, bRequest byte, wValue uint16, data []byte) error {
	_, cancel := WithTimeout(ctx)
	defer cancel()
	_, err := t.dev.Control(requestTypeOut, bRequest, wValue, uint16(t.ifNum), data)
	if err != nil {
		return dfuerr.Wrapf(dfuerr.KindTransport, err, "control OUT request 0x%02x", bRequest)
	}
	return nil
}

func (t *GousbTransport) ControlIn(ctx context.Context, bRequest byte, wValue uint16, length int) ([]byte, error) {
	_, cancel := WithTimeout(ctx)
	defer cancel()
	buf := make([]byte, length)
	n, err := t.dev.Control(requestTypeIn, bRequest, wValue, uint16(t.ifNum), buf)
	if err != nil {
		return nil, dfuerr.Wrapf(dfuerr.KindTransport, err, "control IN request 0x%02x", bRequest)
	}
	return buf[:n], nil
}

// SetAltSetting re-claims the interface at a different alternate
// setting. gousb binds an *Interface to one alt setting at claim time,
// so switching means releasing the current claim and claiming again.
func (t *GousbTransport) SetAltSetting(ctx context.Context, alt int) error {
	t.intf.Close()
	intf, err := t.cfg.Interface(t.ifNum, alt)
	if err != nil {
		return dfuerr.Wrapf(dfuerr.KindTransport, err, "switching to alt setting %d", alt)
	}
	t.intf = intf
	return nil
}

func (t *GousbTransport) ClearHalt(ctx context.Context) error {
	// Endpoint 0 has no halt state to clear in the DFU control-only
	// model this tool uses; a CLEAR_FEATURE(ENDPOINT_HALT) standard
	// request is only meaningful against a bulk/interrupt endpoint,
	// none of which DFU uses. This is a no-op kept to satisfy the
	// Transport interface for devices whose bootloaders stall and
	// expect a clear regardless.
	return nil
}

func (t *GousbTransport) Reset(ctx context.Context) error {
	if err := t.dev.Reset(); err != nil {
		return dfuerr.Wrap(dfuerr.KindTransport, err, "resetting device")
	}
	return nil
}

func (t *GousbTransport) InterfaceNumber() int { return t.ifNum }

// FetchDescriptor issues a standard GET_DESCRIPTOR request targeted at
// the claimed interface (bmRequestType 0x81: IN, standard, interface),
// used by FetchFunctionalDescriptor to read the DFU functional
// descriptor; the cached configuration descriptor is not consulted.
func (t *GousbTransport) FetchDescriptor(ctx context.Context, descType byte, index int, length int) ([]byte, error) {
	const getDescriptor = 0x06
	const requestTypeStandardInInterface = 0x81

	_, cancel := WithTimeout(ctx)
	defer cancel()
	buf := make([]byte, length)
	wValue := uint16(descType)<<8 | uint16(index)
	n, err := t.dev.Control(requestTypeStandardInInterface, getDescriptor, wValue, uint16(t.ifNum), buf)
	if err != nil {
		return nil, dfuerr.Wrap(dfuerr.KindTransport, err, "fetching descriptor")
	}
	return buf[:n], nil
}

// Close releases the interface, config, device, and context in reverse
// acquisition order, matching usb_device.go's Close. Safe to call more
// than once.
func (t *GousbTransport) Close() error {
	var errs []error
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		if err := t.cfg.Close(); err != nil {
			errs = append(errs, err)
		}
		t.cfg = nil
	}
	if t.dev != nil {
		if err := t.dev.Close(); err != nil {
			errs = append(errs, err)
		}
		t.dev = nil
	}
	if t.ctx != nil {
		if err := t.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		t.ctx = nil
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Wrap(errs[0], "closing USB transport")
}
