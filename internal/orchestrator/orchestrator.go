// Package orchestrator ties the rest of dfu-util together: it finds one
// matching device, transitions it from runtime to DFU mode if needed,
// discovers its functional descriptor, and hands off to whichever
// transfer engine its bcdDFUVersion calls for. spec.md §2 calls this
// component "Orchestrator"; it is the one piece that knows about every
// other package.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/gousb"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/flashforge/dfu-util/internal/dfu"
	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/dfuse"
	"github.com/flashforge/dfu-util/internal/memlayout"
	"github.com/flashforge/dfu-util/internal/quirks"
	"github.com/flashforge/dfu-util/internal/usbtransport"
)

// bcdDfuSe is the DfuSe 1.1a version value the functional descriptor
// reports; any other value uses the generic engine.
const bcdDfuSe = 0x011a

// Match narrows device enumeration by CLI filters. Zero values mean
// "don't filter on this field" except where noted.
type Match struct {
	VendorID, ProductID uint16 // 0 means "any"
	VendorIDDFU, ProductIDDFU uint16
	Serial                    string
	Path                      string // "bus-port.port..." topology path
	Config, Interface, Alt    int  // not filtered on by matches/matchesDFU
	AltByIndex                bool // not read; alternate settings are never selected by name
}

func (m Match) matches(di usbtransport.DeviceInterface) bool {
	if m.VendorID != 0 && di.VendorID != m.VendorID {
		return false
	}
	if m.ProductID != 0 && di.ProductID != m.ProductID {
		return false
	}
	if m.Serial != "" && di.Serial != m.Serial {
		return false
	}
	if !usbtransport.ResolvePath(m.Path, di) {
		return false
	}
	return true
}

// matchesDFU narrows enumeration to a device's expected post-detach
// identity: VendorIDDFU/ProductIDDFU when the caller supplied them,
// falling back to the original VID/PID for devices that keep the same
// identity across the transition (spec.md §3).
func (m Match) matchesDFU(di usbtransport.DeviceInterface) bool {
	vid, pid := m.VendorIDDFU, m.ProductIDDFU
	if vid == 0 {
		vid = m.VendorID
	}
	if pid == 0 {
		pid = m.ProductID
	}
	if vid != 0 && di.VendorID != vid {
		return false
	}
	if pid != 0 && di.ProductID != pid {
		return false
	}
	if !usbtransport.ResolvePath(m.Path, di) {
		return false
	}
	return true
}

// Session is one complete orchestrated operation against one device.
type Session struct {
	DeviceInterface usbtransport.DeviceInterface
	Quirks          quirks.Flags
	MemLayout       memlayout.Layout
	Functional      *usbtransport.FunctionalDescriptor
	// TransferSize is the per-chunk size to use for DNLOAD/UPLOAD: the
	// descriptor's wTransferSize, defaultTransferSize when the
	// descriptor reports 0, and 0 when no descriptor could be read. It
	// is not clamped to bMaxPacketSize0.
	TransferSize int

	req *dfu.Requester
	sm  *dfu.StateMachine
}

// Open finds exactly one device matching m, claims it, and reconciles
// it to dfuIDLE, transitioning out of runtime mode first if necessary.
// More than one match is a UsageError (original_source/src/main.c's
// "We need to detach/reset the device" diagnostic lists every match
// before failing, per SPEC_FULL.md §8).
func Open(ctx context.Context, m Match, cfgNum, ifNum, altNum int, detachDelay time.Duration) (*Session, error) {
	di, err := findOne(m)
	if err != nil {
		return nil, err
	}

	transport, err := usbtransport.Open(gousb.ID(di.VendorID), gousb.ID(di.ProductID), di.Serial, cfgNum, ifNum, altNum)
	if err != nil {
		return nil, err
	}
	di.Transport = transport

	req := &dfu.Requester{Transport: transport}
	q := quirks.Lookup(di.VendorID, di.ProductID, di.BcdDevice)
	sm := &dfu.StateMachine{Req: req, IgnorePollTimeout: q.Has(quirks.PollTimeout)}

	if !di.InDFUMode {
		if err := transitionToDFU(ctx, req, transport, di.Functional, detachDelay); err != nil {
			transport.Close()
			return nil, err
		}
		transport.Close()

		// spec.md §5: the interface is released and the handle closed
		// before re-enumeration; the device may re-appear under
		// VendorIDDFU/ProductIDDFU (spec.md §3).
		redi, err := findOneDFU(m)
		if err != nil {
			return nil, err
		}
		di = redi
		transport, err = usbtransport.Open(gousb.ID(di.VendorID), gousb.ID(di.ProductID), di.Serial, cfgNum, ifNum, altNum)
		if err != nil {
			return nil, err
		}
		di.Transport = transport
		req = &dfu.Requester{Transport: transport}
		q = quirks.Lookup(di.VendorID, di.ProductID, di.BcdDevice)
		sm = &dfu.StateMachine{Req: req, IgnorePollTimeout: q.Has(quirks.PollTimeout)}
	}

	if err := sm.Reconcile(ctx); err != nil {
		transport.Close()
		return nil, err
	}

	var layout memlayout.Layout
	if l, err := memlayout.Parse(di.AltName); err == nil {
		layout = l
	}

	fd, err := usbtransport.FetchFunctionalDescriptor(ctx, transport, ifNum)
	if err != nil {
		// Not fatal: plenty of real devices don't expose this
		// descriptor cleanly. Proceed assuming DFU 1.0 defaults.
		jww.WARN.Printf("could not read DFU functional descriptor: %v", err)
	}
	if fd != nil && q.Has(quirks.ForceDFU11) {
		fd.BcdDFUVersion = 0x0110
	}

	// Without a descriptor the transfer size is undetectable; it stays 0
	// so the engines refuse to run unless --transfer-size supplies one.
	xfer := 0
	if fd != nil {
		xfer = defaultTransferSize
		if fd.TransferSize > 0 {
			xfer = int(fd.TransferSize)
		}
	}

	return &Session{
		DeviceInterface: di,
		Quirks:          q,
		MemLayout:       layout,
		Functional:      fd,
		TransferSize:    xfer,
		req:             req,
		sm:              sm,
	}, nil
}

// defaultTransferSize is used when a device's functional descriptor
// doesn't report wTransferSize (DFU 1.0 devices commonly omit it).
const defaultTransferSize = 1024

// defaultDetachDelay is used when the detachDelay passed to Open is
// zero or negative.
const defaultDetachDelay = 1 * time.Second

// findOne requires exactly one device to match m in its current
// (pre-transition) identity, listing every candidate before failing
// when there's more than one (original_source/src/main.c's
// "We need to detach/reset the device" diagnostic).
func findOne(m Match) (usbtransport.DeviceInterface, error) {
	matches := usbtransport.All(m.matches)
	return pickOne(matches)
}

// findOneDFU re-enumerates after a runtime→DFU transition, matching
// against the device's expected DFU-mode identity (VendorIDDFU/
// ProductIDDFU) per spec.md §3 and §5.
func findOneDFU(m Match) (usbtransport.DeviceInterface, error) {
	matches := usbtransport.All(m.matchesDFU)
	return pickOne(matches)
}

func pickOne(matches []usbtransport.DeviceInterface) (usbtransport.DeviceInterface, error) {
	switch len(matches) {
	case 0:
		return usbtransport.DeviceInterface{}, dfuerr.New(dfuerr.KindUsage, "no matching DFU-capable device found")
	case 1:
		return matches[0], nil
	default:
		for _, di := range matches {
			jww.ERROR.Printf("Found: [%04x:%04x] devnum=%d, cfg=%d, intf=%d, alt=%d",
				di.VendorID, di.ProductID, di.Address, di.Config, di.Interface, di.AltSetting)
		}
		return usbtransport.DeviceInterface{}, dfuerr.New(dfuerr.KindUsage, "more than one DFU-capable device/interface found; narrow the filter")
	}
}

// transitionToDFU implements spec.md §4.2's runtime→DFU transition:
// claim/alt-0, a stall on GETSTATUS is treated as "assume appIDLE",
// DETACH is sent from app mode, and the device either self-detaches
// (WillDetach, per the functional descriptor captured at enumeration
// time) or is bus-reset, matching original_source/src/main.c:383-399's
// get_cached_extra_descriptor/WillDetach branch.
func transitionToDFU(ctx context.Context, req *dfu.Requester, transport usbtransport.Transport, fd *usbtransport.FunctionalDescriptor, detachDelay time.Duration) error {
	if err := transport.SetAltSetting(ctx, 0); err != nil {
		return err
	}

	status, err := req.GetStatus(ctx)
	state := dfu.StateAppIdle
	if err == nil {
		state = status.State
	}
	// A stalled GETSTATUS in runtime mode means the device doesn't
	// implement it pre-detach; assume appIDLE and proceed.

	if state == dfu.StateDfuError {
		if err := req.ClrStatus(ctx); err != nil {
			return err
		}
	}

	if err := req.Detach(ctx, 1000*time.Millisecond); err != nil {
		return err
	}

	if fd != nil && fd.WillDetach {
		if detachDelay <= 0 {
			detachDelay = defaultDetachDelay
		}
		time.Sleep(detachDelay)
		return nil
	}

	time.Sleep(200 * time.Millisecond)
	return transport.Reset(ctx)
}

// Engine selects the DfuSe engine when the descriptor reports bcdDFUSe,
// the generic engine otherwise, per design note 9c. fileBcdDFU is the
// downloaded file's suffix bcdDFU field (0 for upload, where there is
// no file to cross-validate against).
func (s *Session) Engine(dctx *dfuse.Context, fileBcdDFU uint16) dfu.Engine {
	if s.Functional != nil && s.Functional.BcdDFUVersion == bcdDfuSe {
		dctx.MemLayout = s.MemLayout
		return &dfuse.Engine{
			Req:               s.req,
			SM:                s.sm,
			Cmd:               &dfuse.CommandLayer{Req: s.req},
			Ctx:               dctx,
			BcdDFU:            fileBcdDFU,
			CurrentAltSetting: byte(s.DeviceInterface.AltSetting),
		}
	}
	return &dfu.GenericEngine{Req: s.req, SM: s.sm}
}

// Close releases the device's transport handle.
func (s *Session) Close() error {
	if s.DeviceInterface.Transport != nil {
		return s.DeviceInterface.Transport.Close()
	}
	return nil
}
