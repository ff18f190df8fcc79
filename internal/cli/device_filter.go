package cli

import (
	"strconv"
	"strings"

	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/orchestrator"
)

// parseDeviceFilter parses the --device flag syntax dfu-util has always
// used: "vendor:product" or "vendor:product,vendor_dfu:product_dfu",
// each half optional ("vendor:" or ":product" both valid), hex by
// default. Grounded on original_source's main.c device-spec parser
// (`parse_vendprod`), one of the supplemented features SPEC_FULL.md §8
// calls out.
func parseDeviceFilter(spec string) (orchestrator.Match, error) {
	var m orchestrator.Match
	if spec == "" {
		return m, nil
	}

	halves := strings.SplitN(spec, ",", 2)
	vid, pid, err := parseVendProd(halves[0])
	if err != nil {
		return m, err
	}
	m.VendorID, m.ProductID = vid, pid

	if len(halves) == 2 {
		vidDFU, pidDFU, err := parseVendProd(halves[1])
		if err != nil {
			return m, err
		}
		m.VendorIDDFU, m.ProductIDDFU = vidDFU, pidDFU
	}
	return m, nil
}

func parseVendProd(s string) (vid, pid uint16, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) == 0 {
		return 0, 0, nil
	}
	if parts[0] != "" {
		v, err := strconv.ParseUint(parts[0], 16, 16)
		if err != nil {
			return 0, 0, dfuerr.Wrapf(dfuerr.KindUsage, err, "invalid vendor ID %q", parts[0])
		}
		vid = uint16(v)
	}
	if len(parts) == 2 && parts[1] != "" {
		p, err := strconv.ParseUint(parts[1], 16, 16)
		if err != nil {
			return 0, 0, dfuerr.Wrapf(dfuerr.KindUsage, err, "invalid product ID %q", parts[1])
		}
		pid = uint16(p)
	}
	return vid, pid, nil
}
