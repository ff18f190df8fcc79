package dfufile

import (
	"os"

	"github.com/pkg/errors"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

// FileImage is a firmware image on disk, with its prefix/suffix regions
// parsed out, matching spec.md §3's FileImage: three logical regions
// (prefix, total payload, suffix) counted independently.
type FileImage struct {
	Name string

	HasPrefix bool
	Prefix    Prefix

	HasSuffix bool
	Suffix    Suffix

	// Payload is the firmware bytes with any prefix/suffix already
	// stripped.
	Payload []byte
}

// LoadOptions controls how Load interprets a file's prefix/suffix.
type LoadOptions struct {
	// RequireSuffix fails the load if no valid DFU suffix is present
	// (dfu-suffix's "delete" mode, and dfu-util download mode when the
	// file is expected to carry one).
	RequireSuffix bool
	// ExpectPrefix, when true, parses a Stellaris prefix if present;
	// when false, the leading 16 bytes are treated as payload even if
	// they happen to match the prefix magic.
	ExpectPrefix bool
}

// Load reads path and decodes whichever of prefix/suffix are present,
// per opts. Suffix parsing always happens opportunistically so HasSuffix
// reflects the file's actual contents; RequireSuffix only changes
// whether its absence is an error.
func Load(path string, opts LoadOptions) (*FileImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dfuerr.Wrapf(dfuerr.KindUsage, err, "reading %s", path)
	}

	img := &FileImage{Name: path, Payload: data}
	raw := data // the suffix CRC covers the prefix bytes too

	if opts.ExpectPrefix {
		if p, err := ParsePrefix(data); err == nil {
			img.HasPrefix = true
			img.Prefix = p
			data, err = StripPrefix(data)
			if err != nil {
				return nil, err
			}
			img.Payload = data
		}
	}

	if s, err := ParseSuffix(raw); err == nil {
		img.HasSuffix = true
		img.Suffix = s
		rest, err := StripSuffix(raw)
		if err != nil {
			return nil, err
		}
		if img.HasPrefix {
			if len(rest) < PrefixLength {
				return nil, dfuerr.New(dfuerr.KindFileFormat, "prefix and suffix overlap")
			}
			rest = rest[PrefixLength:]
		}
		img.Payload = rest
	} else if opts.RequireSuffix {
		return nil, errors.Wrapf(err, "%s has no valid DFU suffix", path)
	}

	return img, nil
}

// StoreOptions controls what Store writes back out.
type StoreOptions struct {
	WriteSuffix bool
	Suffix      Suffix // ignored unless WriteSuffix
	WritePrefix bool
	Prefix      Prefix // ignored unless WritePrefix
}

// Store writes img.Payload to path, optionally wrapped in a prefix
// and/or trailed by a freshly computed suffix (dwCRC is always
// recomputed by EmitSuffix, never copied from a stale value).
func Store(path string, img *FileImage, opts StoreOptions) error {
	out := img.Payload
	if opts.WritePrefix {
		out = EmitPrefix(out, opts.Prefix.Address)
	}
	if opts.WriteSuffix {
		out = EmitSuffix(out, opts.Suffix.IDVendor, opts.Suffix.IDProduct, opts.Suffix.BcdDevice, opts.Suffix.BcdDFU)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return dfuerr.Wrapf(dfuerr.KindUsage, err, "writing %s", path)
	}
	return nil
}
