// Package quirks is the static device-workaround table: a pure function
// from (idVendor, idProduct, bcdDevice) to a bitmask, consulted by the
// orchestrator and the DFU state machine. It does no I/O and owns no
// state, mirroring how the teacher keeps pure lookups (ble.Client's
// descriptor accessors) separate from anything that touches the wire.
package quirks

// Flags is a bitmask of device-specific workarounds.
type Flags uint32

const (
	// PollTimeout means the device's bwPollTimeout is known to be
	// bogus; the host should sleep a small fixed delay instead of
	// honoring it.
	PollTimeout Flags = 1 << iota
	// ForceDFU11 means the host should treat bcdDFUVersion as 0x0110
	// regardless of what the device's functional descriptor reports.
	ForceDFU11
)

// Has reports whether f contains want.
func (f Flags) Has(want Flags) bool { return f&want != 0 }

// entry matches a device by VID/PID, optionally narrowed to one
// bcdDevice; bcdDevice == 0 means "any revision".
type entry struct {
	vendor, product uint16
	bcdDevice       uint16
	flags           Flags
}

// table is intentionally small: known-bad devices accumulate here as
// they're reported, the same way dfu-util's upstream quirk table grows
// by bug report rather than by speculation.
var table = []entry{
	// OpenMoko/early OpenPCD bootloaders are known to report a
	// bwPollTimeout that does not reflect real erase/program time.
	{vendor: 0x1457, product: 0x5119, flags: PollTimeout},
	// Early TI Stellaris LM3S bootloaders predate DFU 1.1 functional
	// descriptors but behave like DFU 1.1 devices.
	{vendor: 0x1cbe, product: 0x000f, flags: ForceDFU11},
}

// Lookup returns the workaround bitmask for a device, OR-ing together
// every entry that matches (an entry with an exact bcdDevice and a
// wildcard entry both contribute), so independent quirks on the same
// device compose.
func Lookup(vendor, product, bcdDevice uint16) Flags {
	var flags Flags
	for _, e := range table {
		if e.vendor != vendor || e.product != product {
			continue
		}
		if e.bcdDevice != 0 && e.bcdDevice != bcdDevice {
			continue
		}
		flags |= e.flags
	}
	return flags
}
