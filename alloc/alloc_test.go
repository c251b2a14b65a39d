package alloc

import (
	"testing"

	"github.com/cfbfile/olecf/cfblog"
	"github.com/cfbfile/olecf/header"
	"github.com/cfbfile/olecf/internal/testfixture"
	"github.com/cfbfile/olecf/source"
)

func openFixture(t *testing.T) (*source.Source, *header.Header) {
	t.Helper()
	src := source.NewMemory(testfixture.Build())
	h, err := header.Parse(src)
	if err != nil {
		t.Fatalf("header.Parse: %v", err)
	}
	return src, h
}

func TestBuildMSATEmbeddedOnly(t *testing.T) {
	src, h := openFixture(t)
	msat, err := BuildMSAT(src, h, cfblog.Discard, DefaultMaxChainDepth)
	if err != nil {
		t.Fatalf("BuildMSAT: %v", err)
	}
	if len(msat) != header.EmbeddedMSATEntries {
		t.Fatalf("len(msat) = %d, want %d (no chained MSAT sectors)", len(msat), header.EmbeddedMSATEntries)
	}
	if msat[0] != 0 {
		t.Errorf("msat[0] = %d, want 0 (SAT sector)", msat[0])
	}
}

func TestBuildSATWalksDeclaredSectors(t *testing.T) {
	src, h := openFixture(t)
	msat, err := BuildMSAT(src, h, cfblog.Discard, DefaultMaxChainDepth)
	if err != nil {
		t.Fatalf("BuildMSAT: %v", err)
	}
	sat, err := BuildSAT(src, h, msat)
	if err != nil {
		t.Fatalf("BuildSAT: %v", err)
	}
	if sat.Get(2) != 3 {
		t.Errorf("sat[2] = %d, want 3 (BigStream continuation)", sat.Get(2))
	}
	if sat.Get(3) != header.SectorEndOfChain {
		t.Errorf("sat[3] = %d, want end of chain", sat.Get(3))
	}
}

func TestBuildSSATWalksMiniChain(t *testing.T) {
	src, h := openFixture(t)
	msat, err := BuildMSAT(src, h, cfblog.Discard, DefaultMaxChainDepth)
	if err != nil {
		t.Fatalf("BuildMSAT: %v", err)
	}
	sat, err := BuildSAT(src, h, msat)
	if err != nil {
		t.Fatalf("BuildSAT: %v", err)
	}
	ssat, err := BuildSSAT(src, h, sat, DefaultMaxChainDepth)
	if err != nil {
		t.Fatalf("BuildSSAT: %v", err)
	}
	if ssat.Get(0) != header.SectorEndOfChain {
		t.Errorf("ssat[0] = %d, want end of chain", ssat.Get(0))
	}
}

func TestBuildMSATCoercesZeroCountWithIdentifierSet(t *testing.T) {
	// A writer quirk: the header declares zero extra MSAT sectors but
	// still chains one. The chain terminator is authoritative, so the
	// walk must still pick up the extra entries.
	src, h := openFixture(t)

	// Craft a copy of the fixture with one extra sector appended and
	// used as an MSAT chain sector: first entries are SIDs, last uint32
	// terminates.
	raw := testfixture.Build()
	extra := make([]byte, h.SectorSize)
	order := h.Order
	order.PutUint32(extra[0:4], 7)
	for i := 1; i < int(h.SectorSize/4)-1; i++ {
		order.PutUint32(extra[i*4:i*4+4], header.SectorFree)
	}
	order.PutUint32(extra[len(extra)-4:], header.SectorEndOfChain)
	raw = append(raw, extra...)
	extraSID := uint32(len(raw)/int(h.SectorSize) - 2) // -1 header, -1 to get SID

	src = source.NewMemory(raw)
	h2 := *h
	h2.MSATSectorIdentifier = extraSID
	h2.NumberOfMSATSectors = 0

	msat, err := BuildMSAT(src, &h2, cfblog.Discard, DefaultMaxChainDepth)
	if err != nil {
		t.Fatalf("BuildMSAT: %v", err)
	}
	if len(msat) != header.EmbeddedMSATEntries+int(h.SectorSize/4)-1 {
		t.Fatalf("len(msat) = %d, want %d", len(msat), header.EmbeddedMSATEntries+int(h.SectorSize/4)-1)
	}
	if msat[header.EmbeddedMSATEntries] != 7 {
		t.Errorf("msat[109] = %d, want 7 (first chained entry)", msat[header.EmbeddedMSATEntries])
	}
}

func TestTableGetOutOfRangeIsEndOfChain(t *testing.T) {
	var tbl Table = []uint32{1, 2, 3}
	if tbl.Get(99) != header.SectorEndOfChain {
		t.Error("out-of-range Get should report end of chain, not panic or zero")
	}
}
