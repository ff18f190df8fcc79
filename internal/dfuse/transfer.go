package dfuse

import (
	"context"
	"io"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/flashforge/dfu-util/internal/dfu"
	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/memlayout"
)

// dataBlockNum is the fixed DNLOAD block number DfuSe data transfers
// use; 0 and 1 are reserved (0 for commands), per spec.md §4.5.
const dataBlockNum = 2

// defaultUploadLimit is used when the device, not the host, controls
// the upload's start address and no explicit length was given
// (original_source/src/dfuse.c:dfuse_do_upload).
const defaultUploadLimit = 0x4000

// Engine implements dfu.Engine for DfuSe 1.1a devices: element-aware
// chunked download with minimal-erase logic, and address-based upload.
// It is selected by the orchestrator instead of dfu.GenericEngine when
// the functional descriptor reports bcdDFUVersion == 0x011a.
type Engine struct {
	Req *dfu.Requester
	SM  *dfu.StateMachine
	Cmd *CommandLayer
	Ctx *Context

	// BcdDFU is the downloaded file's suffix bcdDFU field, used to
	// cross-validate against the mode Ctx.Address selects
	// (original_source/src/dfuse.c:675-692).
	BcdDFU uint16

	CurrentAltSetting byte
}

var _ dfu.Engine = (*Engine)(nil)

// dfuSeFileBcdDFU is the bcdDFU value a DfuSe-format file's suffix must
// carry; anything else belongs to a raw binary image.
const dfuSeFileBcdDFU = 0x011a

// Download dispatches to the raw single-element path or the DfuSe file
// parser depending on whether the caller supplied an explicit address
// (Ctx.Address != 0 means raw mode), exactly as
// original_source/src/dfuse.c's dfuse_do_dnload does, then downloads
// every element (one that does not lie in writeable memory fails the
// download with AddressError) and finally performs the "leave"
// sequence if requested.
func (e *Engine) Download(ctx context.Context, payload []byte, tc *dfu.TransferContext) error {
	var elements []Element

	if e.Ctx.Address != 0 {
		if e.BcdDFU == dfuSeFileBcdDFU {
			return dfuerr.New(dfuerr.KindUnsupportedVersion, "file has a DfuSe suffix; omit --dfuse-address's address to use DfuSe-file mode")
		}
		elements = []Element{{Address: e.Ctx.Address, Data: payload}}
	} else {
		if e.BcdDFU != dfuSeFileBcdDFU {
			return dfuerr.New(dfuerr.KindFileFormat, "file is not a DfuSe-format image; pass an explicit --dfuse-address for raw binary download")
		}
		file, err := ParseFile(payload)
		if err != nil {
			return err
		}
		for _, target := range file.Targets {
			if target.AltSetting != e.CurrentAltSetting {
				jww.DEBUG.Printf("skipping target alt=%d (device is on alt=%d)", target.AltSetting, e.CurrentAltSetting)
				continue
			}
			elements = append(elements, target.Elements...)
		}
		if len(elements) == 0 {
			return dfuerr.New(dfuerr.KindFileFormat, "no target in DfuSe file matches the current alternate setting")
		}
	}

	if e.Ctx.Unprotect {
		if err := e.Cmd.ReadUnprotect(ctx, e.Ctx); err != nil {
			return err
		}
	}
	if e.Ctx.MassErase {
		if err := e.Cmd.MassErase(ctx, e.Ctx); err != nil {
			return err
		}
	}

	for _, el := range elements {
		if err := e.downloadElement(ctx, el, tc); err != nil {
			return err
		}
	}

	if e.Ctx.Leave {
		last := elements[len(elements)-1]
		if err := e.Cmd.SetAddress(ctx, last.Address); err != nil {
			return err
		}
		if err := e.Req.Dnload(ctx, dataBlockNum, nil); err != nil {
			return err
		}
	}
	return nil
}

// downloadElement validates the element is entirely writeable, then
// downloads it in tc.XferSize chunks, erasing pages ahead of each chunk
// as needed and issuing SET_ADDRESS before every chunk (spec.md §9 open
// question (a): this redundancy is preserved deliberately).
func (e *Engine) downloadElement(ctx context.Context, el Element, tc *dfu.TransferContext) error {
	if len(el.Data) == 0 {
		return nil
	}
	lastAddr := el.Address + uint32(len(el.Data)) - 1
	seg, ok := e.Ctx.MemLayout.Find(lastAddr)
	if !ok || !seg.Flags.Has(memlayout.Writeable) {
		return dfuerr.New(dfuerr.KindAddress, "element's last address is not writeable")
	}

	xfer := tc.XferSize
	if xfer <= 0 {
		return dfuerr.New(dfuerr.KindUsage, "transfer size must be positive")
	}

	for p := 0; p < len(el.Data); p += xfer {
		end := p + xfer
		if end > len(el.Data) {
			end = len(el.Data)
		}
		chunk := el.Data[p:end]
		addr := el.Address + uint32(p)

		startSeg, ok := e.Ctx.MemLayout.Find(addr)
		if !ok || !startSeg.Flags.Has(memlayout.Writeable) {
			return dfuerr.New(dfuerr.KindAddress, "chunk start address is not writeable")
		}

		if startSeg.Flags.Has(memlayout.Erasable) && !e.Ctx.MassErase {
			if err := e.eraseRange(ctx, addr, addr+uint32(len(chunk))-1); err != nil {
				return err
			}
		}

		if err := e.Cmd.SetAddress(ctx, addr); err != nil {
			return err
		}
		if err := e.Req.Dnload(ctx, dataBlockNum, chunk); err != nil {
			return err
		}
		if _, err := e.SM.Poll(ctx); err != nil {
			return err
		}

		tc.Total(int64(len(chunk)))
	}
	return nil
}

// eraseRange issues ERASE_PAGE for every page overlapping [start, end]
// whose page-aligned address doesn't already match Ctx.LastErased,
// per spec.md §4.5 step 2b.
func (e *Engine) eraseRange(ctx context.Context, start, end uint32) error {
	addr := start
	for addr <= end {
		seg, ok := e.Ctx.MemLayout.Find(addr)
		if !ok || !seg.Flags.Has(memlayout.Erasable) {
			return dfuerr.New(dfuerr.KindAddress, "page is not erasable at this address")
		}
		pageStart := AlignToPage(addr, seg.PageSize)
		if !e.Ctx.ErasedPageMatches(addr, seg.PageSize) {
			if err := e.Cmd.ErasePage(ctx, e.Ctx, pageStart); err != nil {
				return err
			}
		}
		next := pageStart + seg.PageSize
		if next <= addr {
			break // zero-size page guard, shouldn't happen with a valid layout
		}
		addr = next
	}
	return nil
}

// Upload requires an explicit address (Ctx.Address); the length is
// Ctx.Length if set, otherwise the remaining size of the address's
// segment, otherwise defaultUploadLimit when the address isn't in any
// known segment (boot loader controls the real limit).
func (e *Engine) Upload(ctx context.Context, sink io.Writer, tc *dfu.TransferContext) (int64, error) {
	if e.Ctx.Address == 0 {
		return 0, dfuerr.New(dfuerr.KindUsage, "DfuSe upload requires an explicit --dfuse-address")
	}

	segment, ok := e.Ctx.MemLayout.Find(e.Ctx.Address)
	if !e.Ctx.Force && (!ok || !segment.Flags.Has(memlayout.Readable)) {
		return 0, dfuerr.New(dfuerr.KindAddress, "address is not readable")
	}

	limit := int64(e.Ctx.Length)
	if limit == 0 {
		if ok {
			limit = int64(segment.End-e.Ctx.Address) + 1
		} else {
			limit = defaultUploadLimit
		}
	}

	if err := e.Cmd.SetAddress(ctx, e.Ctx.Address); err != nil {
		return 0, err
	}

	xfer := tc.XferSize
	if xfer <= 0 {
		return 0, dfuerr.New(dfuerr.KindUsage, "transfer size must be positive")
	}

	blockNum := uint16(dataBlockNum)
	var total int64
	for total < limit {
		want := xfer
		if remaining := limit - total; remaining < int64(want) {
			want = int(remaining)
		}
		data, err := e.Req.Upload(ctx, blockNum, want)
		if err != nil {
			return total, err
		}
		if len(data) > 0 {
			n, err := sink.Write(data)
			if err != nil {
				return total, dfuerr.Wrap(dfuerr.KindFileFormat, err, "writing uploaded data")
			}
			if n < len(data) {
				return total, dfuerr.New(dfuerr.KindFileFormat, "short write while saving uploaded image")
			}
		}
		blockNum++
		total += int64(len(data))
		tc.Total(int64(len(data)))
		if len(data) < want {
			break
		}
	}
	return total, nil
}
