package dfu

import (
	"context"
	"io"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

// ProgressFunc is called after each chunk of a transfer with the
// cumulative byte count and, when known, the total. Total is 0 when
// unknown (e.g. an upload with no expected-size ceiling).
type ProgressFunc func(done, total int64)

// TransferContext is the per-operation state spec.md §3 describes:
// configured chunk size, running block-number counter, cumulative byte
// counter, and a progress callback. One is constructed per
// Download/Upload call and discarded at completion.
type TransferContext struct {
	XferSize int
	// Expected bounds a GenericEngine upload when the device gives no
	// natural end-of-image signal; 0 means "rely on a short read only".
	// The DfuSe engine sizes its upload from its own Context and uses
	// Expected only as the progress total.
	Expected int64
	Progress ProgressFunc

	blockNum uint16
	total    int64
}

// Total adds n bytes to the cumulative counter and invokes Progress.
// Exported so other engines (internal/dfuse's Engine) that share this
// TransferContext type can report progress without reaching into its
// unexported bookkeeping fields.
func (tc *TransferContext) Total(n int64) {
	tc.total += n
	tc.report()
}

func (tc *TransferContext) report() {
	if tc.Progress != nil {
		tc.Progress(tc.total, tc.Expected)
	}
}

// Engine is the capability spec.md's design note 9c asks for: a small
// interface both the generic DFU engine and the DfuSe engine implement,
// selected by the orchestrator on bcdDFUVersion rather than branching
// throughout the call sites.
type Engine interface {
	Download(ctx context.Context, payload []byte, tc *TransferContext) error
	Upload(ctx context.Context, sink io.Writer, tc *TransferContext) (int64, error)
}

// GenericEngine implements Engine for plain DFU 1.0/1.1 devices: plain
// block-numbered chunking with no address concept, per spec.md §4.3.
type GenericEngine struct {
	Req *Requester
	SM  *StateMachine
}

// Download breaks payload into TransferContext.XferSize chunks, sending
// each with DNLOAD at an incrementing block number, polling to
// completion after each. A final zero-length DNLOAD at the next block
// number triggers manifestation.
func (e *GenericEngine) Download(ctx context.Context, payload []byte, tc *TransferContext) error {
	if tc.XferSize <= 0 {
		return dfuerr.New(dfuerr.KindUsage, "transfer size must be positive")
	}

	for offset := 0; offset < len(payload); offset += tc.XferSize {
		end := offset + tc.XferSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[offset:end]

		if err := e.Req.Dnload(ctx, tc.blockNum, chunk); err != nil {
			return err
		}
		if _, err := e.SM.Poll(ctx); err != nil {
			return err
		}
		tc.blockNum++
		tc.total += int64(len(chunk))
		tc.report()
	}

	jww.DEBUG.Println("sending zero-length DNLOAD to trigger manifestation")
	if err := e.Req.Dnload(ctx, tc.blockNum, nil); err != nil {
		return err
	}
	status, err := e.SM.Poll(ctx)
	if err != nil {
		return err
	}
	if status.State != StateDfuManifest {
		return dfuerr.New(dfuerr.KindProtocol, "expected dfuMANIFEST after final block, got "+status.State.String())
	}
	return nil
}

// Upload issues UPLOAD repeatedly starting at block 0, appending bytes
// to sink until a short read (fewer bytes than requested) or
// tc.Expected is reached.
func (e *GenericEngine) Upload(ctx context.Context, sink io.Writer, tc *TransferContext) (int64, error) {
	if tc.XferSize <= 0 {
		return 0, dfuerr.New(dfuerr.KindUsage, "transfer size must be positive")
	}

	for {
		want := tc.XferSize
		if tc.Expected > 0 {
			if remaining := tc.Expected - tc.total; remaining < int64(want) {
				want = int(remaining)
			}
			if want <= 0 {
				break
			}
		}

		data, err := e.Req.Upload(ctx, tc.blockNum, want)
		if err != nil {
			return tc.total, err
		}
		if len(data) > 0 {
			n, err := sink.Write(data)
			if err != nil {
				return tc.total, dfuerr.Wrap(dfuerr.KindFileFormat, err, "writing uploaded data")
			}
			if n < len(data) {
				return tc.total, dfuerr.New(dfuerr.KindFileFormat, "short write while saving uploaded image")
			}
		}
		tc.blockNum++
		tc.total += int64(len(data))
		tc.report()

		if len(data) < want {
			break
		}
		if tc.Expected > 0 && tc.total >= tc.Expected {
			break
		}
	}
	return tc.total, nil
}
