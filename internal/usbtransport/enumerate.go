package usbtransport

import (
	"fmt"
	"strings"

	"github.com/google/gousb"
	"github.com/pkg/errors"
)

// dfuInterfaceClass/SubClass/Protocol identify a DFU interface per the
// USB DFU class spec, mirrored from original_source/src/dfu_util.c's
// find_dfu_if: bInterfaceClass 0xfe ("application specific"),
// bInterfaceSubClass 1 ("device firmware upgrade"). Protocol 1 means
// runtime mode, 2 means DFU mode.
const (
	dfuInterfaceClass    = 0xfe
	dfuInterfaceSubClass = 0x01
	dfuProtocolRuntime   = 0x01
	dfuProtocolDFU       = 0x02
)

// Visitor is called once per DFU interface/alt-setting found during a
// Walk. Returning false stops the walk early.
type Visitor func(DeviceInterface) bool

// Walk enumerates every currently attached USB device, opening each
// briefly to read its descriptors, and calls visit once per DFU
// interface/alt-setting combination found (bInterfaceClass 0xfe,
// bInterfaceSubClass 1). This replaces the C source's callback-driven
// libusb_get_device_list walk (design note 9a in spec.md §9: an
// iterator composing match predicates, rather than a mutating closure
// over module state) with a single pass that hands the caller immutable
// DeviceInterface values.
//
// Devices are closed again before Walk returns; callers that want to
// keep one open call Open with the identity Walk reported.
func Walk(visit Visitor) error {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true
	})
	for _, dev := range devices {
		defer dev.Close()
	}
	if err != nil {
		return errors.Wrap(err, "listing USB devices")
	}

	for _, dev := range devices {
		for _, cfg := range dev.Desc.Configs {
			for ifNum, iface := range cfg.Interfaces {
				for _, alt := range iface.AltSettings {
					if alt.Class != dfuInterfaceClass || alt.SubClass != dfuInterfaceSubClass {
						continue
					}
					di := DeviceInterface{
						Bus:        dev.Desc.Bus,
						Address:    dev.Desc.Address,
						PortPath:   portPath(dev.Desc),
						VendorID:   uint16(dev.Desc.Vendor),
						ProductID:  uint16(dev.Desc.Product),
						Config:     cfg.Number,
						Interface:  ifNum,
						AltSetting: alt.Number,
						InDFUMode:  alt.Protocol == dfuProtocolDFU,
					}
					if serial, err := dev.SerialNumber(); err == nil {
						di.Serial = serial
					}
					// Read the DFU functional descriptor now, while dev is
					// still open but before any transition/detach happens,
					// so WillDetach is known pre-detach exactly as
					// original_source/src/main.c's get_cached_extra_descriptor
					// call site requires (spec.md §4.2).
					di.Functional = fetchFunctionalDescriptorRaw(dev, ifNum)
					if !visit(di) {
						return nil
					}
				}
			}
		}
	}
	return nil
}

// Find returns the first DeviceInterface for which match returns true,
// built on top of Walk exactly as spec.md's design note prescribes
// (compose predicates instead of hand-rolling a second walk per
// filter).
func Find(match func(DeviceInterface) bool) (DeviceInterface, bool) {
	var found DeviceInterface
	var ok bool
	_ = Walk(func(di DeviceInterface) bool {
		if match(di) {
			found, ok = di, true
			return false
		}
		return true
	})
	return found, ok
}

// Count returns how many DeviceInterface values satisfy match
// (original_source/src/dfu_util.c's count_matching_dfu_if). The
// orchestrator's exactly-one check uses All instead.
func Count(match func(DeviceInterface) bool) int {
	n := 0
	_ = Walk(func(di DeviceInterface) bool {
		if match(di) {
			n++
		}
		return true
	})
	return n
}

// All collects every DeviceInterface satisfying match, used by the
// `list` CLI command and by the "multiple interfaces found" diagnostic
// from SPEC_FULL.md §8.
func All(match func(DeviceInterface) bool) []DeviceInterface {
	var out []DeviceInterface
	_ = Walk(func(di DeviceInterface) bool {
		if match(di) {
			out = append(out, di)
		}
		return true
	})
	return out
}

// portPath renders a device's USB topology as "bus-port.port...", the
// same format lsusb and --path expect, per SPEC_FULL.md §8.
func portPath(desc *gousb.DeviceDesc) string {
	if len(desc.Path) == 0 {
		return ""
	}
	segs := make([]string, len(desc.Path))
	for i, p := range desc.Path {
		segs[i] = fmt.Sprintf("%d", p)
	}
	return fmt.Sprintf("%d-%s", desc.Bus, strings.Join(segs, "."))
}

// ResolvePath reports whether di's topology path matches path, the
// device-selection filter --path accepts (spec.md §8's supplemented
// "--path bus-port.port..." feature).
func ResolvePath(path string, di DeviceInterface) bool {
	if path == "" {
		return true
	}
	return di.PortPath == path
}

// fetchFunctionalDescriptorRaw issues a GET_DESCRIPTOR request directly
// against an enumerated (but not yet claimed) device, used by Walk to
// capture the DFU functional descriptor before any detach/transition
// happens. Best-effort: a device that stalls or doesn't expose one at
// all simply gets a nil Functional, the same as the runtime-mode
// fallback path in the orchestrator.
func fetchFunctionalDescriptorRaw(dev *gousb.Device, ifNum int) *FunctionalDescriptor {
	const getDescriptor = 0x06
	const requestTypeStandardInInterface = 0x81

	buf := make([]byte, 9)
	n, err := dev.Control(requestTypeStandardInInterface, getDescriptor, uint16(dfuFunctionalDescriptorType)<<8, uint16(ifNum), buf)
	if err != nil {
		return nil
	}
	fd, err := parseFunctionalDescriptor(buf[:n])
	if err != nil {
		return nil
	}
	return fd
}
