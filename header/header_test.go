package header

import (
	"encoding/binary"
	"testing"

	"github.com/cfbfile/olecf/source"
)

func minimalHeaderBytes() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	copy(buf[0x1C:0x1E], []byte{0xFE, 0xFF})
	binary.LittleEndian.PutUint16(buf[0x1E:0x20], 9)
	binary.LittleEndian.PutUint16(buf[0x20:0x22], 6)
	binary.LittleEndian.PutUint32(buf[0x30:0x34], 1)
	binary.LittleEndian.PutUint32(buf[0x44:0x48], 0xFFFFFFFE)
	for i := 0; i < EmbeddedMSATEntries; i++ {
		off := 0x4C + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], 0xFFFFFFFF)
	}
	return buf
}

func TestParseValidHeader(t *testing.T) {
	h, err := Parse(source.NewMemory(minimalHeaderBytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.SectorSize != 512 {
		t.Errorf("SectorSize = %d, want 512", h.SectorSize)
	}
	if h.ShortSectorSize != 64 {
		t.Errorf("ShortSectorSize = %d, want 64", h.ShortSectorSize)
	}
	if h.RootDirectorySectorIdentifier != 1 {
		t.Errorf("RootDirectorySectorIdentifier = %d, want 1", h.RootDirectorySectorIdentifier)
	}
	if len(h.MSAT) != EmbeddedMSATEntries {
		t.Errorf("len(MSAT) = %d, want %d", len(h.MSAT), EmbeddedMSATEntries)
	}
}

func TestParseRejectsBadSignature(t *testing.T) {
	buf := minimalHeaderBytes()
	buf[0] = 0x00
	if _, err := Parse(source.NewMemory(buf)); err == nil {
		t.Fatal("expected error for bad signature, got nil")
	}
}

func TestParseRejectsOversizedSectorShift(t *testing.T) {
	buf := minimalHeaderBytes()
	binary.LittleEndian.PutUint16(buf[0x1E:0x20], 16)
	if _, err := Parse(source.NewMemory(buf)); err == nil {
		t.Fatal("expected error for sector shift > 15, got nil")
	}
}

func TestParseAcceptsBetaSignature(t *testing.T) {
	buf := minimalHeaderBytes()
	copy(buf[0:8], []byte{0x0E, 0x11, 0xFC, 0x0D, 0xD0, 0xCF, 0x11, 0x0E})
	if _, err := Parse(source.NewMemory(buf)); err != nil {
		t.Fatalf("Parse with beta signature: %v", err)
	}
}

func TestParseRejectsTruncatedHeader(t *testing.T) {
	buf := minimalHeaderBytes()[:100]
	if _, err := Parse(source.NewMemory(buf)); err == nil {
		t.Fatal("expected error for truncated header, got nil")
	}
}
