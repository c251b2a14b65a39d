// Package testfixture builds a minimal, hand-assembled OLECF container
// in memory for use by this module's own tests, byte-by-byte rather
// than shipping a binary fixture.
package testfixture

import (
	"encoding/binary"
	"unicode/utf16"
)

const (
	SectorSize       = 512
	ShortSectorSize  = 64
	MiniStreamCutoff = 100

	BigStreamName     = "BigStream"
	SmallStreamName   = "SmallStream"
	SummaryStreamName = "\x05SummaryInformation"
	BigStreamData     = 600 // repeated 'A' bytes
	SmallStreamData   = "MINI-STREAM-PAYLOAD!"
	SummaryTitle      = "Hello"
)

// SummaryFMTID is the well-known SummaryInformation section format id
// {F29F85E0-4FF9-1068-AB91-08002B27B3D9} in its on-disk byte layout.
var SummaryFMTID = [16]byte{
	0xE0, 0x85, 0x9F, 0xF2, 0xF9, 0x4F, 0x68, 0x10,
	0xAB, 0x91, 0x08, 0x00, 0x2B, 0x27, 0xB3, 0xD9,
}

// Build returns a complete, valid minimal OLECF file:
//
//	header    (512 bytes)
//	sector 0: SAT
//	sector 1: directory (Root Entry, BigStream, SmallStream,
//	          \x05SummaryInformation)
//	sector 2-3: BigStream's ordinary-sector data ('A' x 600)
//	sector 4: root storage's own stream, carrying the mini-stream
//	          (mini-sector 0: SmallStream; 1-2: the summary property set)
//	sector 5: SSAT
func Build() []byte {
	buf := make([]byte, 512+6*SectorSize)
	order := binary.LittleEndian

	writeHeader(buf, order)
	writeSAT(buf, order)
	writeDirectory(buf, order)
	writeBigStream(buf)
	writeMiniStream(buf)
	writeSSAT(buf, order)

	return buf
}

func sectorAt(buf []byte, sid int) []byte {
	off := 512 + sid*SectorSize
	return buf[off : off+SectorSize]
}

func writeHeader(buf []byte, order binary.ByteOrder) {
	h := buf[:512]
	copy(h[0:8], []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	order.PutUint16(h[0x18:0x1A], 0x003E)
	order.PutUint16(h[0x1A:0x1C], 0x0003)
	copy(h[0x1C:0x1E], []byte{0xFE, 0xFF})
	order.PutUint16(h[0x1E:0x20], 9) // 512-byte sectors
	order.PutUint16(h[0x20:0x22], 6) // 64-byte short sectors
	order.PutUint32(h[0x2C:0x30], 1) // one SAT sector
	order.PutUint32(h[0x30:0x34], 1) // directory starts at sector 1
	order.PutUint32(h[0x38:0x3C], MiniStreamCutoff)
	order.PutUint32(h[0x3C:0x40], 5) // SSAT starts at sector 5
	order.PutUint32(h[0x40:0x44], 1) // one SSAT sector
	order.PutUint32(h[0x44:0x48], 0xFFFFFFFE) // no extra MSAT sectors
	order.PutUint32(h[0x48:0x4C], 0)

	order.PutUint32(h[0x4C:0x50], 0) // MSAT[0] = SAT lives at sector 0
	for i := 1; i < 109; i++ {
		off := 0x4C + i*4
		order.PutUint32(h[off:off+4], 0xFFFFFFFF)
	}
}

func writeSAT(buf []byte, order binary.ByteOrder) {
	s := sectorAt(buf, 0)
	entries := []uint32{
		0xFFFFFFFD, // sector 0: this SAT sector
		0xFFFFFFFE, // sector 1: directory, single sector
		3,          // sector 2: BigStream, continues at 3
		0xFFFFFFFE, // sector 3: BigStream, end of chain
		0xFFFFFFFE, // sector 4: root/mini-stream container, single sector
		0xFFFFFFFE, // sector 5: this SSAT sector
	}
	for i, v := range entries {
		order.PutUint32(s[i*4:i*4+4], v)
	}
	for i := len(entries); i < SectorSize/4; i++ {
		order.PutUint32(s[i*4:i*4+4], 0xFFFFFFFF)
	}
}

func writeDirEntry(rec []byte, order binary.ByteOrder, name string, typ byte, left, right, child, start uint32, size uint64) {
	units := utf16.Encode([]rune(name + "\x00"))
	for i, u := range units {
		order.PutUint16(rec[i*2:i*2+2], u)
	}
	order.PutUint16(rec[0x40:0x42], uint16(len(units)*2))
	rec[0x42] = typ
	order.PutUint32(rec[0x44:0x48], left)
	order.PutUint32(rec[0x48:0x4C], right)
	order.PutUint32(rec[0x4C:0x50], child)
	order.PutUint32(rec[0x74:0x78], start)
	order.PutUint64(rec[0x78:0x80], size)
}

func writeDirectory(buf []byte, order binary.ByteOrder) {
	s := sectorAt(buf, 1)

	const noStream = 0xFFFFFFFF
	writeDirEntry(s[0*128:1*128], order, "", 5, noStream, noStream, 1, 4, 3*ShortSectorSize)
	writeDirEntry(s[1*128:2*128], order, BigStreamName, 2, 3, 2, noStream, 2, BigStreamData)
	writeDirEntry(s[2*128:3*128], order, SmallStreamName, 2, noStream, noStream, noStream, 0, uint64(len(SmallStreamData)))
	writeDirEntry(s[3*128:4*128], order, SummaryStreamName, 2, noStream, noStream, noStream, 1, uint64(len(summaryPropertySet())))
}

func writeBigStream(buf []byte) {
	data := make([]byte, BigStreamData)
	for i := range data {
		data[i] = 'A'
	}
	copy(sectorAt(buf, 2), data[:SectorSize])
	copy(sectorAt(buf, 3), data[SectorSize:])
}

func writeMiniStream(buf []byte) {
	s := sectorAt(buf, 4)
	copy(s[:len(SmallStreamData)], []byte(SmallStreamData))
	copy(s[ShortSectorSize:], summaryPropertySet())
}

func writeSSAT(buf []byte, order binary.ByteOrder) {
	s := sectorAt(buf, 5)
	order.PutUint32(s[0:4], 0xFFFFFFFE)  // mini-sector 0: SmallStream, end of chain
	order.PutUint32(s[4:8], 2)           // mini-sector 1: summary set, continues at 2
	order.PutUint32(s[8:12], 0xFFFFFFFE) // mini-sector 2: summary set, end of chain
	for i := 3; i < SectorSize/4; i++ {
		order.PutUint32(s[i*4:i*4+4], 0xFFFFFFFF)
	}
}

// summaryPropertySet assembles a minimal single-section property set
// with one VT_LPSTR title property, spanning two mini-sectors.
func summaryPropertySet() []byte {
	order := binary.LittleEndian
	title := SummaryTitle + "\x00"

	const (
		headerSize      = 28
		sectionDescSize = 20
		propValueOff    = 16 // section header + one property descriptor
	)
	sectionSize := propValueOff + 4 + 4 + len(title)
	buf := make([]byte, headerSize+sectionDescSize+sectionSize)

	order.PutUint16(buf[0:2], 0xFFFE)
	order.PutUint32(buf[24:28], 1)

	copy(buf[headerSize:headerSize+16], SummaryFMTID[:])
	sectionOffset := uint32(headerSize + sectionDescSize)
	order.PutUint32(buf[headerSize+16:headerSize+20], sectionOffset)

	sec := buf[sectionOffset:]
	order.PutUint32(sec[0:4], uint32(sectionSize))
	order.PutUint32(sec[4:8], 1)
	order.PutUint32(sec[8:12], 0x02) // PIDSI_TITLE
	order.PutUint32(sec[12:16], propValueOff)

	order.PutUint32(sec[propValueOff:propValueOff+4], 0x1E) // VT_LPSTR
	order.PutUint32(sec[propValueOff+4:propValueOff+8], uint32(len(title)))
	copy(sec[propValueOff+8:], title)

	return buf
}
