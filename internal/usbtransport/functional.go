package usbtransport

import (
	"context"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

const dfuFunctionalDescriptorType = 0x21

// FetchFunctionalDescriptor reads the DFU functional descriptor for the
// given interface with a single direct GET_DESCRIPTOR request for type
// 0x21 (original_source/src/dfu_util.c's get_functional_descriptor also
// tries the cached extra descriptors first; this does not), tolerating the two
// non-conformant lengths real devices ship. A descriptor shorter than
// 7 bytes is an error; exactly 7 bytes means a DFU 1.0 device that
// omits wTransferSize/bcdDFUVersion (defaulted to 0 and 0x0100); fewer
// than 9 bytes total logs a warning and assumes DFU 1.0.
func FetchFunctionalDescriptor(ctx context.Context, t Transport, ifaceNum int) (*FunctionalDescriptor, error) {
	fetcher, ok := t.(DescriptorFetcher)
	if !ok {
		return nil, nil
	}
	raw, err := fetcher.FetchDescriptor(ctx, dfuFunctionalDescriptorType, 0, 9)
	if err != nil {
		return nil, err
	}
	return parseFunctionalDescriptor(raw)
}

func parseFunctionalDescriptor(raw []byte) (*FunctionalDescriptor, error) {
	if len(raw) < 7 {
		return nil, dfuerr.New(dfuerr.KindProtocol, "DFU functional descriptor shorter than 7 bytes")
	}
	attrs := raw[2]
	fd := &FunctionalDescriptor{
		CanDownload:           attrs&0x01 != 0,
		CanUpload:             attrs&0x02 != 0,
		ManifestationTolerant: attrs&0x04 != 0,
		WillDetach:            attrs&0x08 != 0,
		DetachTimeout:         time.Duration(le16(raw, 3)) * time.Millisecond,
		BcdDFUVersion:         0x0100,
	}
	if len(raw) < 9 {
		jww.WARN.Printf("DFU functional descriptor is %d bytes, expected 9; assuming DFU 1.0", len(raw))
		return fd, nil
	}
	fd.TransferSize = le16(raw, 5)
	fd.BcdDFUVersion = le16(raw, 7)
	return fd, nil
}

func le16(b []byte, off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}
