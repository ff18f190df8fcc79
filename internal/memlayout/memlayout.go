// Package memlayout parses a DfuSe interface alt-setting name into an
// ordered list of memory segments. It is a pure function: no I/O, no
// global state, matching spec.md's classification of this component as
// "a pure function from an alt-setting string to a segment list."
//
// Grammar (as emitted by ST's DfuSe-capable bootloaders and consumed by
// dfu-util upstream):
//
//	@<name>/<start-hex>/<count>*<size><unit><flags>[,<count>*<size><unit><flags>]...
//
// unit is one of 'K' (KiB), 'M' (MiB), or absent (bytes). flags is one
// of the single letters below:
//
//	a  readable
//	b  erasable
//	c  readable + erasable
//	d  writeable
//	e  readable + writeable
//	f  erasable + writeable
//	g  readable + erasable + writeable
package memlayout

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Flags describes what operations a segment permits.
type Flags uint8

const (
	Readable Flags = 1 << iota
	Erasable
	Writeable
)

func (f Flags) Has(want Flags) bool { return f&want != 0 }

var flagLetters = map[byte]Flags{
	'a': Readable,
	'b': Erasable,
	'c': Readable | Erasable,
	'd': Writeable,
	'e': Readable | Writeable,
	'f': Erasable | Writeable,
	'g': Readable | Erasable | Writeable,
}

// Segment is an inclusive byte range sharing one page size and one set
// of permissions.
type Segment struct {
	Start, End uint32
	PageSize   uint32
	Flags      Flags
}

// Layout is an ordered, non-overlapping list of segments covering a
// device's addressable memory as declared by its alt-setting name.
type Layout []Segment

// Find returns the segment containing addr, or ok=false if addr falls
// outside every declared segment.
func (l Layout) Find(addr uint32) (Segment, bool) {
	for _, s := range l {
		if addr >= s.Start && addr <= s.End {
			return s, true
		}
	}
	return Segment{}, false
}

// Parse parses an alt-setting name of the form
// "@Name/0x08000000/04*001Ka,1*127Kg" into a Layout. Names lacking the
// leading '@' are not memory-layout descriptors and return an error;
// callers use this to distinguish a DfuSe target from a plain name.
func Parse(altName string) (Layout, error) {
	if !strings.HasPrefix(altName, "@") {
		return nil, errors.Errorf("memlayout: alt-name %q is not a memory layout descriptor", altName)
	}
	rest := altName[1:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return nil, errors.Errorf("memlayout: missing '/' in %q", altName)
	}
	rest = rest[slash+1:]

	startStr, rest, ok := cut(rest, "/")
	if !ok {
		return nil, errors.Errorf("memlayout: missing start address in %q", altName)
	}
	start, err := strconv.ParseUint(strings.TrimSpace(startStr), 0, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "memlayout: invalid start address %q", startStr)
	}

	var layout Layout
	addr := uint32(start)
	for _, field := range strings.Split(rest, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		seg, size, err := parseField(field, addr)
		if err != nil {
			return nil, errors.Wrapf(err, "memlayout: parsing %q", field)
		}
		layout = append(layout, seg...)
		addr += size
	}
	if len(layout) == 0 {
		return nil, errors.Errorf("memlayout: no segments parsed from %q", altName)
	}
	return layout, nil
}

// parseField parses one "count*sizeUNITflags" field into one Segment
// per page (so Find resolves to a single page's page size directly,
// matching the granularity ERASE_PAGE operates at), starting at base.
func parseField(field string, base uint32) ([]Segment, uint32, error) {
	countStr, rest, ok := cut(field, "*")
	if !ok {
		return nil, 0, errors.Errorf("missing '*'")
	}
	count, err := strconv.ParseUint(countStr, 10, 32)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "invalid page count %q", countStr)
	}
	if len(rest) == 0 {
		return nil, 0, errors.Errorf("missing size/unit/flags")
	}
	flagByte := rest[len(rest)-1]
	flags, ok := flagLetters[flagByte]
	if !ok {
		return nil, 0, errors.Errorf("unknown flag letter %q", string(flagByte))
	}
	sizeStr := rest[:len(rest)-1]
	unit := uint64(1)
	if len(sizeStr) > 0 {
		switch sizeStr[len(sizeStr)-1] {
		case 'K':
			unit = 1024
			sizeStr = sizeStr[:len(sizeStr)-1]
		case 'M':
			unit = 1024 * 1024
			sizeStr = sizeStr[:len(sizeStr)-1]
		}
	}
	size, err := strconv.ParseUint(sizeStr, 10, 32)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "invalid page size %q", sizeStr)
	}
	pageSize := uint32(size * unit)
	if pageSize == 0 {
		return nil, 0, errors.Errorf("zero page size")
	}

	segs := make([]Segment, 0, count)
	addr := base
	for i := uint64(0); i < count; i++ {
		segs = append(segs, Segment{
			Start:    addr,
			End:      addr + pageSize - 1,
			PageSize: pageSize,
			Flags:    flags,
		})
		addr += pageSize
	}
	return segs, pageSize * uint32(count), nil
}

func cut(s, sep string) (before, after string, found bool) {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
