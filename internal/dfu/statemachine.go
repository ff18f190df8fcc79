package dfu

import (
	"context"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

// minPollSleep is the fixed delay used in place of a device's
// bwPollTimeout when the PollTimeout quirk is set, i.e. the device is
// known to report bogus timeouts (spec.md §4.2).
const minPollSleep = 10 * time.Millisecond

// StateMachine runs the pre-transfer reconciliation loop and the
// post-DNLOAD poll loop on top of a Requester, per spec.md §4.2.
type StateMachine struct {
	Req *Requester
	// IgnorePollTimeout mirrors the quirks.PollTimeout bit for this
	// device: sleep minPollSleep instead of the reported bwPollTimeout.
	IgnorePollTimeout bool
}

// Reconcile drives the device to dfuIDLE before a transfer begins:
// clear any dfuERROR, abort any lingering DNLOAD_IDLE/UPLOAD_IDLE, and
// fail WrongMode if the device is still in application mode.
func (sm *StateMachine) Reconcile(ctx context.Context) error {
	for {
		status, err := sm.Req.GetStatus(ctx)
		if err != nil {
			return err
		}
		switch status.State {
		case StateDfuError:
			if err := sm.Req.ClrStatus(ctx); err != nil {
				return err
			}
			continue
		case StateDfuDnloadIdle, StateDfuUploadIdle:
			if err := sm.Req.Abort(ctx); err != nil {
				return err
			}
			continue
		case StateAppIdle, StateAppDetach:
			return dfuerr.New(dfuerr.KindWrongMode, "device is in application mode, not DFU mode")
		case StateDfuIdle:
			return nil
		default:
			return dfuerr.New(dfuerr.KindProtocol, "unexpected state during reconciliation: "+status.State.String())
		}
	}
}

// sleep honors ctx cancellation during the poll delay so a ^C during a
// long erase doesn't block until the timeout elapses.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return dfuerr.Wrap(dfuerr.KindTransport, ctx.Err(), "interrupted while polling device")
	}
}

// Poll runs the post-DNLOAD poll loop: GETSTATUS, sleep bwPollTimeout
// (or minPollSleep under the quirk), repeat until bState reaches
// dfuDNLOAD_IDLE, dfuERROR, or dfuMANIFEST. dfuERROR is reported as a
// DeviceStatusError carrying the device's bStatus.
func (sm *StateMachine) Poll(ctx context.Context) (DfuStatus, error) {
	for {
		status, err := sm.Req.GetStatus(ctx)
		if err != nil {
			return DfuStatus{}, err
		}
		switch status.State {
		case StateDfuError:
			return status, dfuerr.New(dfuerr.KindDeviceStatus, "device reported "+status.Status.String())
		case StateDfuDnloadIdle, StateDfuManifest:
			return status, nil
		default:
			delay := status.PollTimeout
			if sm.IgnorePollTimeout {
				delay = minPollSleep
			}
			jww.TRACE.Printf("polling: state=%s poll=%s", status.State, delay)
			if err := sleep(ctx, delay); err != nil {
				return DfuStatus{}, err
			}
		}
	}
}
