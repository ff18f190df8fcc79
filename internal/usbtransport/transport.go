// Package usbtransport abstracts USB device enumeration and class
// control transfers behind a small interface, so the DFU request layer,
// state machine, and transfer engines never import a USB driver
// directly. spec.md §1 calls this out explicitly as an external
// collaborator abstracted behind a UsbTransport interface; this package
// is that interface plus its one concrete implementation.
package usbtransport

import (
	"context"
	"time"
)

// controlTimeout is the fixed 5-second timeout spec.md §4.1 assigns to
// every DFU class control transfer.
const controlTimeout = 5 * time.Second

// FunctionalDescriptor is the DFU functional descriptor (USB DFU spec
// table 4.2), reported by a device in DFU mode (and sometimes in
// runtime mode too).
type FunctionalDescriptor struct {
	// CanDownload, CanUpload, ManifestationTolerant, and WillDetach are
	// the four bits of bmAttributes.
	CanDownload           bool
	CanUpload             bool
	ManifestationTolerant bool
	WillDetach            bool

	DetachTimeout time.Duration
	TransferSize  uint16
	// BcdDFUVersion is 0x0100, 0x0110, or 0x011a (DfuSe).
	BcdDFUVersion uint16
}

// DeviceInterface identifies one USB target interface, per spec.md §3.
// It is constructed from CLI filters, populated by enumeration, and
// carries the open Transport handle once one has been acquired.
type DeviceInterface struct {
	Bus, Address int
	// PortPath is the "bus-port.port..." USB topology string --path
	// matches against (spec.md §8's supplemented device-selection
	// feature).
	PortPath string

	VendorID, ProductID uint16
	BcdDevice           uint16
	// VendorIDDFU/ProductIDDFU, when non-zero, are the identity the
	// device is expected to present after detaching into DFU mode
	// (some devices re-enumerate under a different VID/PID).
	VendorIDDFU, ProductIDDFU uint16

	Config, Interface, AltSetting int
	AltName                      string
	Serial                       string
	// SerialDFU is the serial number filter to apply once the device
	// has re-enumerated in DFU mode, if different from Serial.
	SerialDFU string

	// InDFUMode reports whether this interface was discovered with
	// bInterfaceProtocol == 2 (DFU mode) vs 1 (runtime mode).
	InDFUMode bool

	Functional *FunctionalDescriptor

	Transport Transport
}

// Transport is everything the DFU protocol layers need from a USB
// connection: class-specific control transfers, alternate-setting
// selection, and lifecycle management. GousbTransport is the only
// production implementation; tests substitute a fake.
type Transport interface {
	// ControlOut issues an OUT class|interface control transfer
	// (bmRequestType 0x21) with the given bRequest/wValue and payload.
	ControlOut(ctx context.Context, bRequest byte, wValue uint16, data []byte) error
	// ControlIn issues an IN class|interface control transfer
	// (bmRequestType 0xA1), returning up to length bytes.
	ControlIn(ctx context.Context, bRequest byte, wValue uint16, length int) ([]byte, error)

	// SetAltSetting selects the given alternate setting on the claimed
	// interface, required before DFU mode 0 is assumed implicitly by
	// some bootloaders.
	SetAltSetting(ctx context.Context, alt int) error

	// ClearHalt clears a stalled endpoint's halt condition. Nothing in
	// this module calls it; GousbTransport implements it as a no-op.
	ClearHalt(ctx context.Context) error

	// Reset issues a USB bus reset, used by --reset and by the
	// runtime→DFU transition for devices that do not detach on their
	// own.
	Reset(ctx context.Context) error

	// InterfaceNumber returns the claimed interface's bInterfaceNumber,
	// needed for wIndex on every control transfer.
	InterfaceNumber() int

	// Close releases the interface and closes the underlying device
	// handle. Safe to call once; idempotent on a nil/already-closed
	// transport.
	Close() error
}

// WithTimeout derives a context bounded by the fixed 5-second DFU
// control-transfer timeout, honoring a shorter deadline already set on
// parent.
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, controlTimeout)
}

// DescriptorFetcher is an optional capability a Transport may implement
// to issue the standard GET_DESCRIPTOR request needed to read the DFU
// functional descriptor directly; FetchFunctionalDescriptor uses it, and
// the configuration descriptor's cached extra bytes are not consulted.
// GousbTransport implements this; fakes in tests generally don't need
// to.
type DescriptorFetcher interface {
	FetchDescriptor(ctx context.Context, descType byte, index int, length int) ([]byte, error)
}
