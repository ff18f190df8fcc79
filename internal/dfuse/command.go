package dfuse

import (
	"context"
	"encoding/binary"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/flashforge/dfu-util/internal/dfu"
	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/memlayout"
)

// minCommandPoll bounds how long runCommand waits between GETSTATUS
// calls while a command is busy, used only when the device's own
// bwPollTimeout is zero.
const minCommandPoll = 10 * time.Millisecond

// Command byte values DfuSe overloads DNLOAD block 0 with, per
// spec.md §4.4.
const (
	cmdSetAddress     byte = 0x21
	cmdErasePage      byte = 0x41 // also MASS_ERASE, distinguished by length
	cmdReadUnprotect  byte = 0x92
)

// CommandLayer issues DfuSe address-set/erase/protection commands on
// top of a generic dfu.Requester.
type CommandLayer struct {
	Req *dfu.Requester
}

func encodeAddress(cmd byte, length int, addr uint32) []byte {
	buf := make([]byte, length)
	buf[0] = cmd
	if length == 5 {
		binary.LittleEndian.PutUint32(buf[1:5], addr)
	}
	return buf
}

// runCommand issues one command-channel DNLOAD (block 0) and the poll
// discipline spec.md §4.4 specifies: poll until bState != dfuDNBUSY,
// poll again to confirm bStatus == OK && bState == dfuDNLOAD_IDLE, then
// ABORT back to dfuIDLE. READ_UNPROTECT is the one exception: the
// device erases and disconnects instead of returning to dfuDNLOAD_IDLE,
// so its caller skips the confirm-and-abort steps entirely.
func (c *CommandLayer) runCommand(ctx context.Context, name string, payload []byte) error {
	if err := c.Req.Dnload(ctx, 0, payload); err != nil {
		return dfuerr.Wrapf(dfuerr.KindTransport, err, "DfuSe command %s", name)
	}

	// First poll: wait out dfuDNBUSY.
	for {
		status, err := c.Req.GetStatus(ctx)
		if err != nil {
			return err
		}
		if status.State != dfu.StateDfuDnbusy {
			break
		}
		delay := status.PollTimeout
		if delay <= 0 {
			delay = minCommandPoll
		}
		jww.TRACE.Printf("DfuSe command %s: still busy, waiting %s", name, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return dfuerr.Wrap(dfuerr.KindTransport, ctx.Err(), "interrupted during DfuSe command")
		}
	}

	// Second poll: confirm success.
	status, err := c.Req.GetStatus(ctx)
	if err != nil {
		return err
	}
	if status.Status != dfu.StatusOK || status.State != dfu.StateDfuDnloadIdle {
		return dfuerr.New(dfuerr.KindDeviceStatus, "DfuSe command "+name+" failed: "+status.Status.String())
	}

	if err := c.Req.Abort(ctx); err != nil {
		return err
	}
	return nil
}

// SetAddress issues the SET_ADDRESS command, pointing the device's
// internal address pointer at addr ahead of the next DNLOAD/UPLOAD.
func (c *CommandLayer) SetAddress(ctx context.Context, addr uint32) error {
	return c.runCommand(ctx, "SET_ADDRESS", encodeAddress(cmdSetAddress, 5, addr))
}

// ErasePage issues ERASE_PAGE for the page containing addr. dctx is
// updated with the newly erased page so later chunks can skip redundant
// erases.
func (c *CommandLayer) ErasePage(ctx context.Context, dctx *Context, addr uint32) error {
	segment, ok := dctx.MemLayout.Find(addr)
	if !ok || !segment.Flags.Has(memlayout.Erasable) {
		return dfuerr.New(dfuerr.KindAddress, "page is not erasable at this address")
	}
	if err := c.runCommand(ctx, "ERASE_PAGE", encodeAddress(cmdErasePage, 5, addr)); err != nil {
		return err
	}
	dctx.MarkErased(addr)
	return nil
}

// MassErase issues MASS_ERASE (ERASE_PAGE's command byte with a 1-byte
// payload), refused unless dctx.Force is set.
func (c *CommandLayer) MassErase(ctx context.Context, dctx *Context) error {
	if !dctx.Force {
		return dfuerr.New(dfuerr.KindUsage, "mass erase refused: pass --force to proceed")
	}
	return c.runCommand(ctx, "MASS_ERASE", encodeAddress(cmdErasePage, 1, 0))
}

// ReadUnprotect issues READ_UNPROTECT, refused unless dctx.Force is
// set. The device erases itself and disconnects in response, so this
// does not run the confirm-and-abort poll discipline other commands do.
func (c *CommandLayer) ReadUnprotect(ctx context.Context, dctx *Context) error {
	if !dctx.Force {
		return dfuerr.New(dfuerr.KindUsage, "read-unprotect refused: pass --force to proceed")
	}
	payload := encodeAddress(cmdReadUnprotect, 1, 0)
	if err := c.Req.Dnload(ctx, 0, payload); err != nil {
		return dfuerr.Wrap(dfuerr.KindTransport, err, "DfuSe command READ_UNPROTECT")
	}
	return nil
}
