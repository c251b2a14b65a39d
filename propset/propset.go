// Package propset decodes [MS-OLEPS] property sets, the format used by
// the well-known \005SummaryInformation and
// \005DocumentSummaryInformation streams. A property set is a small
// header, a list of (FMTID, offset) sections, and within each section
// a list of (property ID, offset) entries pointing at typed VARIANT
// values.
package propset

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf16"

	"github.com/cfbfile/olecf/cfberr"
	"github.com/cfbfile/olecf/codepage"
)

// VariantType is the on-disk VARIANT type tag.
type VariantType uint16

const (
	VTEmpty    VariantType = 0x0000
	VTNull     VariantType = 0x0001
	VTI2       VariantType = 0x0002
	VTI4       VariantType = 0x0003
	VTR4       VariantType = 0x0004
	VTR8       VariantType = 0x0005
	VTCY       VariantType = 0x0006
	VTDate     VariantType = 0x0007
	VTBSTR     VariantType = 0x0008
	VTBool     VariantType = 0x000B
	VTDecimal  VariantType = 0x000E
	VTI1       VariantType = 0x0010
	VTUI1      VariantType = 0x0011
	VTUI2      VariantType = 0x0012
	VTUI4      VariantType = 0x0013
	VTI8       VariantType = 0x0014
	VTUI8      VariantType = 0x0015
	VTInt      VariantType = 0x0016
	VTUInt     VariantType = 0x0017
	VTLPSTR    VariantType = 0x001E
	VTLPWSTR   VariantType = 0x001F
	VTFileTime VariantType = 0x0040
	VTBlob     VariantType = 0x0041
	VTCF       VariantType = 0x0047 // clipboard format
	VTGUID     VariantType = 0x0048
	VTVector   VariantType = 0x1000 // combined with a base type via OR
)

// maxClipboardSize is the maximum payload length (in bytes) accepted
// for a VT_CF value, as declared by its 4-byte size field.
const maxClipboardSize = 0x190

// Value is a decoded property value. Exactly one of the typed fields
// is meaningful, selected by Type.
type Value struct {
	Type VariantType

	Int    int64
	UInt   uint64
	Float  float64
	Bool   bool
	Str    string
	Time   time.Time
	Bytes  []byte
	Vector []Value
}

// Property is one decoded (ID, Value) pair within a section.
type Property struct {
	ID    uint32
	Value Value
}

// Section is one FMTID-scoped group of properties.
type Section struct {
	FMTID      [16]byte
	Properties map[uint32]Property
}

// PropertySet is a fully decoded property-set stream.
type PropertySet struct {
	ByteOrder binary.ByteOrder // always little-endian per MS-OLEPS, kept explicit for symmetry with header
	Format    uint16
	OSVersion uint32
	ClassID   [16]byte
	Sections  []Section
}

// decodeOptions controls quirk handling. lenientClipboard mirrors
// cfb.Reader's WithLenientClipboard so the CLI tools can decode a
// stream read independently of a live Reader.
type decodeOptions struct {
	lenientClipboard bool
	asciiCodepage    codepage.Name
}

// Option configures Decode.
type Option func(*decodeOptions)

// Lenient enables the clipboard-size sentinel clamp (default on).
func Lenient(enabled bool) Option {
	return func(o *decodeOptions) { o.lenientClipboard = enabled }
}

// ASCIICodepage selects the legacy codepage used to transcode
// VT_LPSTR property values to UTF-8. Defaults to codepage.ASCII,
// which passes bytes through unchanged.
func ASCIICodepage(name codepage.Name) Option {
	return func(o *decodeOptions) { o.asciiCodepage = name }
}

// Decode parses a full \005SummaryInformation-style stream payload.
func Decode(data []byte, opts ...Option) (*PropertySet, error) {
	o := decodeOptions{lenientClipboard: true, asciiCodepage: codepage.ASCII}
	for _, opt := range opts {
		opt(&o)
	}

	if len(data) < 28 {
		return nil, cfberr.New(cfberr.Input, cfberr.InvalidData, "property set header truncated")
	}
	order := binary.LittleEndian

	byteOrderMark := order.Uint16(data[0:2])
	if byteOrderMark != 0xFFFE {
		return nil, cfberr.New(cfberr.Input, cfberr.ValueMismatch, "unexpected property set byte order mark")
	}

	ps := &PropertySet{ByteOrder: order}
	ps.Format = order.Uint16(data[2:4])
	ps.OSVersion = order.Uint32(data[4:8])
	copy(ps.ClassID[:], data[8:24])

	numSections := order.Uint32(data[24:28])
	if numSections == 0 {
		return nil, cfberr.New(cfberr.Input, cfberr.InvalidData, "property set declares zero sections")
	}

	const sectionDescSize = 20
	descStart := 28
	if len(data) < descStart+int(numSections)*sectionDescSize {
		return nil, cfberr.New(cfberr.Input, cfberr.InvalidData, "section descriptor list truncated")
	}

	ps.Sections = make([]Section, numSections)
	for i := uint32(0); i < numSections; i++ {
		descOff := descStart + int(i)*sectionDescSize
		var fmtid [16]byte
		copy(fmtid[:], data[descOff:descOff+16])
		sectionOffset := order.Uint32(data[descOff+16 : descOff+20])

		sec, err := decodeSection(data, order, int(sectionOffset), o)
		if err != nil {
			return nil, cfberr.Wrapf(cfberr.Input, cfberr.InvalidData, err, "section %d", i)
		}
		sec.FMTID = fmtid
		ps.Sections[i] = sec
	}

	return ps, nil
}

func decodeSection(data []byte, order binary.ByteOrder, sectionOffset int, o decodeOptions) (Section, error) {
	if sectionOffset < 0 || sectionOffset+8 > len(data) {
		return Section{}, cfberr.New(cfberr.Input, cfberr.InvalidData, "section offset out of range")
	}
	sectionSize := order.Uint32(data[sectionOffset : sectionOffset+4])
	numProps := order.Uint32(data[sectionOffset+4 : sectionOffset+8])

	sectionEnd := sectionOffset + int(sectionSize)
	if sectionSize < 8 || sectionEnd > len(data) {
		return Section{}, cfberr.New(cfberr.Input, cfberr.InvalidData, "section size out of range")
	}

	const propDescSize = 8
	propDescStart := sectionOffset + 8
	if propDescStart+int(numProps)*propDescSize > sectionEnd {
		return Section{}, cfberr.New(cfberr.Input, cfberr.InvalidData, "property descriptor list truncated")
	}

	sec := Section{Properties: make(map[uint32]Property, numProps)}
	for i := uint32(0); i < numProps; i++ {
		descOff := propDescStart + int(i)*propDescSize
		id := order.Uint32(data[descOff : descOff+4])
		propOffset := sectionOffset + int(order.Uint32(data[descOff+4:descOff+8]))

		val, err := decodeValue(data, order, propOffset, sectionEnd, o)
		if err != nil {
			return Section{}, cfberr.Wrapf(cfberr.Input, cfberr.InvalidData, err, "property 0x%08X", id)
		}
		sec.Properties[id] = Property{ID: id, Value: val}
	}

	return sec, nil
}

func decodeValue(data []byte, order binary.ByteOrder, offset, limit int, o decodeOptions) (Value, error) {
	if offset < 0 || offset+4 > len(data) {
		return Value{}, cfberr.New(cfberr.Input, cfberr.InvalidData, "property value offset out of range")
	}
	vt := VariantType(order.Uint16(data[offset : offset+2]))
	body := offset + 4

	if vt&VTVector != 0 {
		return decodeVector(data, order, vt&^VTVector, body, limit, o)
	}

	return decodeScalar(data, order, vt, body, limit, o)
}

func decodeVector(data []byte, order binary.ByteOrder, base VariantType, off, limit int, o decodeOptions) (Value, error) {
	if off+4 > len(data) {
		return Value{}, cfberr.New(cfberr.Input, cfberr.InvalidData, "vector count truncated")
	}
	count := order.Uint32(data[off : off+4])
	off += 4

	items := make([]Value, 0, count)
	for i := uint32(0); i < count; i++ {
		v, n, err := decodeScalarAt(data, order, base, off, limit, o)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
		off += n
	}
	return Value{Type: VTVector | base, Vector: items}, nil
}

// decodeScalar decodes one value starting at off and discards the
// consumed length; used for top-level (non-vector) properties.
func decodeScalar(data []byte, order binary.ByteOrder, vt VariantType, off, limit int, o decodeOptions) (Value, error) {
	v, _, err := decodeScalarAt(data, order, vt, off, limit, o)
	return v, err
}

// decodeScalarAt decodes one value of the given type at off and
// reports how many bytes it consumed, so vector decoding can advance.
func decodeScalarAt(data []byte, order binary.ByteOrder, vt VariantType, off, limit int, o decodeOptions) (Value, int, error) {
	need := func(n int) error {
		if off+n > len(data) || off+n > limit {
			return cfberr.New(cfberr.Input, cfberr.InvalidData, "property value truncated")
		}
		return nil
	}

	switch vt {
	case VTEmpty, VTNull:
		return Value{Type: vt}, 0, nil
	case VTI1:
		if err := need(1); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: vt, Int: int64(int8(data[off]))}, 1, nil
	case VTUI1:
		if err := need(1); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: vt, UInt: uint64(data[off])}, 1, nil
	case VTI2:
		if err := need(2); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: vt, Int: int64(int16(order.Uint16(data[off : off+2])))}, 2, nil
	case VTUI2:
		if err := need(2); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: vt, UInt: uint64(order.Uint16(data[off : off+2]))}, 2, nil
	case VTR4:
		if err := need(4); err != nil {
			return Value{}, 0, err
		}
		bits := order.Uint32(data[off : off+4])
		return Value{Type: vt, Float: float64(math.Float32frombits(bits))}, 4, nil
	case VTI4, VTInt:
		if err := need(4); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: vt, Int: int64(int32(order.Uint32(data[off : off+4])))}, 4, nil
	case VTUI4, VTUInt:
		if err := need(4); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: vt, UInt: uint64(order.Uint32(data[off : off+4]))}, 4, nil
	case VTI8, VTUI8, VTCY:
		if err := need(8); err != nil {
			return Value{}, 0, err
		}
		u := order.Uint64(data[off : off+8])
		if vt == VTUI8 {
			return Value{Type: vt, UInt: u}, 8, nil
		}
		return Value{Type: vt, Int: int64(u)}, 8, nil
	case VTR8, VTDate:
		if err := need(8); err != nil {
			return Value{}, 0, err
		}
		bits := order.Uint64(data[off : off+8])
		return Value{Type: vt, Float: math.Float64frombits(bits)}, 8, nil
	case VTBool:
		if err := need(2); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: vt, Bool: order.Uint16(data[off:off+2]) != 0}, 2, nil
	case VTFileTime:
		if err := need(8); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: vt, Time: FileTime(order.Uint64(data[off : off+8]))}, 8, nil
	case VTGUID:
		if err := need(16); err != nil {
			return Value{}, 0, err
		}
		buf := make([]byte, 16)
		copy(buf, data[off:off+16])
		return Value{Type: vt, Bytes: buf}, 16, nil
	case VTLPSTR:
		return decodeLengthPrefixedString(data, order, off, limit, false, o)
	case VTLPWSTR:
		return decodeLengthPrefixedString(data, order, off, limit, true, o)
	case VTCF:
		return decodeClipboard(data, order, off, limit, o)
	case VTBlob, VTBSTR:
		return decodeBlob(data, order, off, limit)
	default:
		return Value{Type: vt}, 0, nil
	}
}

// FileTime converts a raw 64-bit FILETIME (100-ns intervals since
// 1601-01-01) to a time.Time. Exported so callers outside this package
// (directory entry creation/modification times) can share the same
// conversion.
func FileTime(ticks uint64) time.Time {
	const ticksPerSecond = 10_000_000
	const secondsTo1970 = 11644473600
	secs := int64(ticks/ticksPerSecond) - secondsTo1970
	nsecs := int64(ticks%ticksPerSecond) * 100
	return time.Unix(secs, nsecs).UTC()
}

func decodeLengthPrefixedString(data []byte, order binary.ByteOrder, off, limit int, wide bool, o decodeOptions) (Value, int, error) {
	if off+4 > len(data) || off+4 > limit {
		return Value{}, 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "string length truncated")
	}
	length := int(order.Uint32(data[off : off+4]))
	off += 4

	if wide {
		byteLen := length * 2
		if off+byteLen > len(data) || off+byteLen > limit {
			return Value{}, 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "wide string body truncated")
		}
		units := make([]uint16, length)
		for i := 0; i < length; i++ {
			units[i] = order.Uint16(data[off+i*2 : off+i*2+2])
		}
		s := decodeNULTerminatedUTF16(units)
		return Value{Type: VTLPWSTR, Str: s}, 4 + byteLen, nil
	}

	if off+length > len(data) || off+length > limit {
		return Value{}, 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "string body truncated")
	}
	// LPSTR payloads are transcoded via the configured legacy
	// codepage; decode failures fall back to the raw bytes rather than
	// losing the property entirely.
	s := trimNUL(data[off : off+length])
	if decoded, err := codepage.Decode(o.asciiCodepage, []byte(s)); err == nil {
		s = decoded
	}
	return Value{Type: VTLPSTR, Str: s}, 4 + length, nil
}

func decodeBlob(data []byte, order binary.ByteOrder, off, limit int) (Value, int, error) {
	if off+4 > len(data) || off+4 > limit {
		return Value{}, 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "blob length truncated")
	}
	size := int(order.Uint32(data[off : off+4]))
	off += 4
	if size < 0 || off+size > len(data) || off+size > limit {
		return Value{}, 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "blob body truncated")
	}
	buf := make([]byte, size)
	copy(buf, data[off:off+size])
	return Value{Type: VTBlob, Bytes: buf}, 4 + size, nil
}

// decodeClipboard decodes a VT_CF value. A declared size of 0xFFFFFFE
// or 0xFFFFFFF is clamped to 4 bytes rather than treated as a length
// (gated by lenientClipboard); any other size above maxClipboardSize
// is an error, never skipped.
func decodeClipboard(data []byte, order binary.ByteOrder, off, limit int, o decodeOptions) (Value, int, error) {
	if off+4 > len(data) || off+4 > limit {
		return Value{}, 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "clipboard size truncated")
	}
	size := order.Uint32(data[off : off+4])
	off += 4

	if o.lenientClipboard && (size == 0xFFFFFFE || size == 0xFFFFFFF) {
		size = 4
	} else if size > maxClipboardSize {
		return Value{}, 0, cfberr.Newf(cfberr.Input, cfberr.ValueExceedsMaximum, "clipboard size %d exceeds maximum %d", size, maxClipboardSize)
	}

	if off+int(size) > len(data) || off+int(size) > limit {
		return Value{}, 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "clipboard body truncated")
	}
	buf := make([]byte, size)
	copy(buf, data[off:off+int(size)])
	return Value{Type: VTCF, Bytes: buf}, 4 + int(size), nil
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func decodeNULTerminatedUTF16(units []uint16) string {
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}
