// Package dfuerr defines the error taxonomy shared by every dfu-util
// package and the exit codes the CLI layer maps them to.
package dfuerr

import (
	"github.com/pkg/errors"
)

// Kind classifies a failure the way the CLI needs to: which exit code to
// use and what kind of message prefix to print.
type Kind int

const (
	// KindUsage covers bad flags, conflicting options, missing files.
	KindUsage Kind = iota
	// KindTransport covers USB I/O failures: can't open, can't claim,
	// control transfer stalled or timed out.
	KindTransport
	// KindProtocol covers responses that don't match the DFU state
	// machine: unexpected bState, malformed GETSTATUS reply.
	KindProtocol
	// KindDeviceStatus covers a device reporting bStatus != OK.
	KindDeviceStatus
	// KindWrongMode covers operations attempted against a device that
	// is not currently in the expected runtime/DFU mode.
	KindWrongMode
	// KindAddress covers DfuSe address-safety violations: writing
	// outside a writeable segment, erasing a read-only page.
	KindAddress
	// KindFileFormat covers suffix/prefix/DfuSe file parse failures
	// and CRC/signature mismatches.
	KindFileFormat
	// KindUnsupportedVersion covers bcdDFU values this tool does not
	// implement.
	KindUnsupportedVersion
	// KindInternal covers bugs: invariants the code assumes but a
	// caller violated.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage error"
	case KindTransport:
		return "transport error"
	case KindProtocol:
		return "protocol error"
	case KindDeviceStatus:
		return "device status error"
	case KindWrongMode:
		return "wrong mode"
	case KindAddress:
		return "address error"
	case KindFileFormat:
		return "file format error"
	case KindUnsupportedVersion:
		return "unsupported version"
	default:
		return "internal error"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// failure class without string-matching messages.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Cause() error { return e.err }
func (e *Error) Unwrap() error { return e.err }

// New creates a Kind-tagged error with no underlying cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap tags err with kind, preserving it as the cause via pkg/errors so
// %+v still prints a stack trace.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: msg, err: errors.WithStack(err)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(kind, err, errors.Errorf(format, args...).Error())
}

// KindOf extracts the Kind of err, defaulting to KindInternal when err
// was not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Exit codes per original_source/src/portable.h, carried unchanged by
// spec.md §6.
const (
	ExitOK      = 0
	ExitUsage   = 64
	ExitSoftware = 70
	ExitIOErr   = 74
)

// ExitCode maps an error's Kind to the process exit code dfu-util and
// dfu-suffix report. Usage errors are EX_USAGE; transport/device/address
// failures are EX_IOERR (the operation touched real hardware or a real
// file and failed); protocol/file-format/version mismatches and internal
// bugs are EX_SOFTWARE.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case KindUsage:
		return ExitUsage
	case KindTransport, KindDeviceStatus, KindAddress, KindWrongMode:
		return ExitIOErr
	default:
		return ExitSoftware
	}
}
