package dfuse

import (
	"bytes"
	"encoding/binary"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

const (
	filePrefixLen   = 11
	targetPrefixLen = 274
	elementHeaderLen = 8
)

var (
	dfuseSignature  = []byte("DfuSe")
	targetSignature = []byte("Target")
)

// Element is one contiguously-addressed chunk of firmware within a
// DfuSe target.
type Element struct {
	Address uint32
	Data    []byte
}

// Target is one alternate-setting's worth of elements within a DfuSe
// file. Name is the optional human-readable label a vendor tool may
// have stamped in; it plays no role in download besides being parsed.
type Target struct {
	AltSetting byte
	Named      bool
	Name       string
	Elements   []Element
}

// File is a parsed DfuSe image: the "DfuSe"-prefixed hierarchical
// format spec.md §4.5 describes, one or more Target sections each
// containing one or more Elements.
type File struct {
	Targets []Target
}

// ParseFile decodes a DfuSe file body (the DFU suffix, if any, must
// already have been stripped by the caller, e.g. via dfufile.StripSuffix
// or dfufile.Load).
// A target whose altSetting doesn't match the currently-selected
// interface is still fully parsed — so the file cursor advances
// correctly — even though Engine.Download will skip downloading it.
func ParseFile(data []byte) (*File, error) {
	if len(data) < filePrefixLen {
		return nil, dfuerr.New(dfuerr.KindFileFormat, "file too small to contain a DfuSe prefix")
	}
	if !bytes.Equal(data[0:5], dfuseSignature) {
		return nil, dfuerr.New(dfuerr.KindFileFormat, "missing \"DfuSe\" signature")
	}
	version := data[5]
	if version != 0x01 {
		return nil, dfuerr.New(dfuerr.KindFileFormat, "unsupported DfuSe prefix version")
	}
	numTargets := int(data[10])
	cursor := data[filePrefixLen:]

	file := &File{}
	for t := 0; t < numTargets; t++ {
		target, rest, err := parseTarget(cursor)
		if err != nil {
			return nil, err
		}
		file.Targets = append(file.Targets, target)
		cursor = rest
	}
	if len(file.Targets) == 0 {
		return nil, dfuerr.New(dfuerr.KindFileFormat, "DfuSe file declares zero targets")
	}
	return file, nil
}

func parseTarget(data []byte) (Target, []byte, error) {
	if len(data) < targetPrefixLen {
		return Target{}, nil, dfuerr.New(dfuerr.KindFileFormat, "file too small to contain a target prefix")
	}
	if !bytes.Equal(data[0:6], targetSignature) {
		return Target{}, nil, dfuerr.New(dfuerr.KindFileFormat, "missing \"Target\" signature")
	}
	altSetting := data[6]
	named := binary.LittleEndian.Uint32(data[7:11]) != 0
	name := cString(data[11:266])
	targetSize := binary.LittleEndian.Uint32(data[266:270])
	numElements := binary.LittleEndian.Uint32(data[270:274])

	body := data[targetPrefixLen:]
	if uint32(len(body)) < targetSize {
		return Target{}, nil, dfuerr.New(dfuerr.KindFileFormat, "target body shorter than declared targetSize")
	}
	elementBytes := body[:targetSize]
	rest := body[targetSize:]

	target := Target{AltSetting: altSetting, Named: named, Name: name}
	for e := uint32(0); e < numElements; e++ {
		el, tail, err := parseElement(elementBytes)
		if err != nil {
			return Target{}, nil, err
		}
		target.Elements = append(target.Elements, el)
		elementBytes = tail
	}
	return target, rest, nil
}

func parseElement(data []byte) (Element, []byte, error) {
	if len(data) < elementHeaderLen {
		return Element{}, nil, dfuerr.New(dfuerr.KindFileFormat, "file too small to contain an element header")
	}
	address := binary.LittleEndian.Uint32(data[0:4])
	size := binary.LittleEndian.Uint32(data[4:8])
	data = data[elementHeaderLen:]
	if uint32(len(data)) < size {
		return Element{}, nil, dfuerr.New(dfuerr.KindFileFormat, "element body shorter than declared size")
	}
	return Element{Address: address, Data: data[:size]}, data[size:], nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
