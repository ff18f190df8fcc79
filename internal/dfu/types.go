// Package dfu implements the generic USB DFU 1.0/1.1 protocol: the
// six-request control layer, the bState/bStatus state machine, and the
// block-numbered transfer engine. DfuSe's address-oriented extensions
// build on top of this package from internal/dfuse.
package dfu

import "time"

// State is the device's bState, the 10 values (11 counting dfuERROR)
// defined by the USB DFU class spec.
type State byte

const (
	StateAppIdle              State = 0
	StateAppDetach            State = 1
	StateDfuIdle              State = 2
	StateDfuDnloadSync        State = 3
	StateDfuDnbusy            State = 4
	StateDfuDnloadIdle        State = 5
	StateDfuManifestSync      State = 6
	StateDfuManifest          State = 7
	StateDfuManifestWaitReset State = 8
	StateDfuUploadIdle        State = 9
	StateDfuError             State = 10
)

func (s State) String() string {
	switch s {
	case StateAppIdle:
		return "appIDLE"
	case StateAppDetach:
		return "appDETACH"
	case StateDfuIdle:
		return "dfuIDLE"
	case StateDfuDnloadSync:
		return "dfuDNLOAD_SYNC"
	case StateDfuDnbusy:
		return "dfuDNBUSY"
	case StateDfuDnloadIdle:
		return "dfuDNLOAD_IDLE"
	case StateDfuManifestSync:
		return "dfuMANIFEST_SYNC"
	case StateDfuManifest:
		return "dfuMANIFEST"
	case StateDfuManifestWaitReset:
		return "dfuMANIFEST_WAIT_RESET"
	case StateDfuUploadIdle:
		return "dfuUPLOAD_IDLE"
	case StateDfuError:
		return "dfuERROR"
	default:
		return "unknown state"
	}
}

// Status is the device's bStatus, the error-code enum reported by
// GETSTATUS.
type Status byte

const (
	StatusOK              Status = 0x00
	StatusErrTarget       Status = 0x01
	StatusErrFile         Status = 0x02
	StatusErrWrite        Status = 0x03
	StatusErrErase        Status = 0x04
	StatusErrCheckErased  Status = 0x05
	StatusErrProg         Status = 0x06
	StatusErrVerify       Status = 0x07
	StatusErrAddress      Status = 0x08
	StatusErrNotDone      Status = 0x09
	StatusErrFirmware     Status = 0x0A
	StatusErrVendor       Status = 0x0B
	StatusErrUsbR         Status = 0x0C
	StatusErrPorn         Status = 0x0D
	StatusErrStatledPkt   Status = 0x0E
)

func (s Status) String() string {
	names := map[Status]string{
		StatusOK:             "OK",
		StatusErrTarget:      "errTARGET",
		StatusErrFile:        "errFILE",
		StatusErrWrite:       "errWRITE",
		StatusErrErase:       "errERASE",
		StatusErrCheckErased: "errCHECK_ERASED",
		StatusErrProg:        "errPROG",
		StatusErrVerify:      "errVERIFY",
		StatusErrAddress:     "errADDRESS",
		StatusErrNotDone:     "errNOTDONE",
		StatusErrFirmware:    "errFIRMWARE",
		StatusErrVendor:      "errVENDOR",
		StatusErrUsbR:        "errUSBR",
		StatusErrPorn:        "errPOR",
		StatusErrStatledPkt:  "errSTALLEDPKT",
	}
	if n, ok := names[s]; ok {
		return n
	}
	return "errUNKNOWN"
}

// DfuStatus is the decoded 6-byte GETSTATUS reply.
type DfuStatus struct {
	Status       Status
	PollTimeout  time.Duration
	State        State
	IString      byte
}
