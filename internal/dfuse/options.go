package dfuse

import (
	"strconv"
	"strings"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

// ParseOptions parses the --dfuse-address colon-separated option string
// into a Context, mirroring original_source/src/dfuse.c's
// dfuse_parse_options exactly:
//
//	[address]:[force]:[leave]:[unprotect]:[mass-erase]:[length]
//
// The address, if present, must come first (it may be empty, letting a
// bare ":leave" select only a modifier). Every other token after the
// first colon is matched against the four known words; anything else
// that parses as a number is the upload length.
func ParseOptions(options string) (*Context, error) {
	ctx := &Context{}
	if options == "" {
		return ctx, nil
	}

	if options[0] != ':' {
		word, rest := splitWord(options)
		n, err := strconv.ParseUint(word, 0, 32)
		if err != nil {
			return nil, dfuerr.Wrapf(dfuerr.KindUsage, err, "invalid dfuse address %q", word)
		}
		ctx.Address = uint32(n)
		options = rest
	}

	for len(options) > 0 {
		if options[0] == ':' {
			options = options[1:]
			continue
		}
		word, rest := splitWord(options)
		switch word {
		case "force":
			ctx.Force = true
		case "leave":
			ctx.Leave = true
		case "unprotect":
			ctx.Unprotect = true
		case "mass-erase":
			ctx.MassErase = true
		default:
			n, err := strconv.ParseUint(word, 0, 32)
			if err != nil {
				return nil, dfuerr.Wrapf(dfuerr.KindUsage, err, "invalid dfuse modifier %q", word)
			}
			ctx.Length = uint32(n)
		}
		options = rest
	}
	return ctx, nil
}

// splitWord returns the text up to (not including) the next ':', and
// the remainder starting at that ':' (or "" if none).
func splitWord(s string) (word, rest string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
