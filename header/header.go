// Package header parses the 512-byte OLECF file header and bootstraps
// the embedded 109-entry MSAT seed.
package header

import (
	"encoding/binary"

	"github.com/cfbfile/olecf/cfberr"
	"github.com/cfbfile/olecf/source"
)

const (
	// HeaderSize is the fixed size of the file header.
	HeaderSize = 512

	// EmbeddedMSATEntries is the number of MSAT entries carried inline
	// in the header tail.
	EmbeddedMSATEntries = 109
)

// Reserved sector identifiers. Any other value n names the sector at
// byte offset (n+1)*sector_size.
const (
	SectorFree       uint32 = 0xFFFFFFFF
	SectorEndOfChain uint32 = 0xFFFFFFFE
	SectorSAT        uint32 = 0xFFFFFFFD
	SectorMSAT       uint32 = 0xFFFFFFFC
)

var canonicalSignature = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
var betaSignature = [8]byte{0x0E, 0x11, 0xFC, 0x0D, 0xD0, 0xCF, 0x11, 0x0E}

var littleMarker = [2]byte{0xFE, 0xFF}
var bigMarker = [2]byte{0xFF, 0xFE}

// Header holds the decoded file header fields, in the file's own byte
// order.
type Header struct {
	Order binary.ByteOrder

	MinorVersion uint16
	MajorVersion uint16

	SectorShift      uint16
	ShortSectorShift uint16
	SectorSize       uint32
	ShortSectorSize  uint32

	NumberOfSATSectors uint32

	RootDirectorySectorIdentifier uint32

	// SectorStreamMinimumDataSize is the size threshold below which a
	// stream is read from the mini-stream instead of ordinary sectors.
	SectorStreamMinimumDataSize uint32

	SSATSectorIdentifier uint32
	NumberOfSSATSectors  uint32

	MSATSectorIdentifier uint32
	NumberOfMSATSectors  uint32

	// MSAT holds the embedded MSAT seed: EmbeddedMSATEntries entries
	// read directly from the header tail. alloc.BuildMSAT extends this
	// with any chained MSAT sectors.
	MSAT []uint32
}

// Parse reads and validates the 512-byte header at offset 0 of src.
func Parse(src *source.Source) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if err := src.ReadFullAt(buf, 0); err != nil {
		return nil, cfberr.Wrap(cfberr.Input, cfberr.InvalidData, "read file header", err)
	}

	var sig [8]byte
	copy(sig[:], buf[0:8])
	if sig != canonicalSignature && sig != betaSignature {
		return nil, cfberr.New(cfberr.Runtime, cfberr.UnsupportedValue, "invalid file signature")
	}

	var marker [2]byte
	copy(marker[:], buf[0x1C:0x1E])

	var order binary.ByteOrder
	switch marker {
	case littleMarker:
		order = binary.LittleEndian
	case bigMarker:
		order = binary.BigEndian
	default:
		return nil, cfberr.New(cfberr.Input, cfberr.ValueMismatch, "unsupported byte order marker")
	}

	h := &Header{Order: order}
	h.MinorVersion = order.Uint16(buf[0x18:0x1A])
	h.MajorVersion = order.Uint16(buf[0x1A:0x1C])
	h.SectorShift = order.Uint16(buf[0x1E:0x20])
	h.ShortSectorShift = order.Uint16(buf[0x20:0x22])

	if h.SectorShift > 15 || h.ShortSectorShift > 15 {
		return nil, cfberr.New(cfberr.Input, cfberr.ValueExceedsMaximum, "sector shift exceeds maximum of 15")
	}
	h.SectorSize = uint32(1) << h.SectorShift
	h.ShortSectorSize = uint32(1) << h.ShortSectorShift

	h.NumberOfSATSectors = order.Uint32(buf[0x2C:0x30])
	h.RootDirectorySectorIdentifier = order.Uint32(buf[0x30:0x34])
	h.SectorStreamMinimumDataSize = order.Uint32(buf[0x38:0x3C])
	h.SSATSectorIdentifier = order.Uint32(buf[0x3C:0x40])
	h.NumberOfSSATSectors = order.Uint32(buf[0x40:0x44])
	h.MSATSectorIdentifier = order.Uint32(buf[0x44:0x48])
	h.NumberOfMSATSectors = order.Uint32(buf[0x48:0x4C])

	h.MSAT = make([]uint32, EmbeddedMSATEntries)
	for i := 0; i < EmbeddedMSATEntries; i++ {
		off := 0x4C + i*4
		h.MSAT[i] = order.Uint32(buf[off : off+4])
	}

	return h, nil
}
