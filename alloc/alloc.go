// Package alloc reconstructs an OLECF container's three allocation
// tables: the MSAT (master sector allocation table), the SAT (sector
// allocation table) and the SSAT (short/mini-stream sector allocation
// table). All three are flat arrays of uint32 sector identifiers. The
// SAT and SSAT hold one entry per sector (per short sector, for the
// SSAT) naming the next sector of its chain or a reserved sentinel
// value; the MSAT lists the sectors that hold the SAT.
package alloc

import (
	"github.com/cfbfile/olecf/cfberr"
	"github.com/cfbfile/olecf/cfblog"
	"github.com/cfbfile/olecf/header"
	"github.com/cfbfile/olecf/source"
)

// DefaultMaxChainDepth bounds how many sectors a single allocation-table
// or stream chain may traverse before the file is treated as corrupt,
// so a crafted chain cannot loop unbounded.
const DefaultMaxChainDepth = 4096

// Table is a flat sector allocation table: Table[i] gives the
// identifier of the sector that follows sector i in whatever chain it
// belongs to, or one of the sentinel values in package header.
type Table []uint32

// Get returns the entry for sid, or header.SectorEndOfChain if sid is
// out of range (treated as an implicit end of chain rather than an
// error, matching how short final chains are common in the wild).
func (t Table) Get(sid uint32) uint32 {
	if int(sid) < 0 || int(sid) >= len(t) {
		return header.SectorEndOfChain
	}
	return t[sid]
}

func sectorOffset(sectorSize uint32, sid uint32) int64 {
	return int64(sid+1) * int64(sectorSize)
}

// BuildMSAT returns the complete master sector allocation table: the
// 109 entries embedded in the header, followed by any entries found by
// walking the chain of extra MSAT sectors starting at
// h.MSATSectorIdentifier. maxDepth bounds the walk; pass
// DefaultMaxChainDepth for the standard behavior.
func BuildMSAT(src *source.Source, h *header.Header, log *cfblog.Logger, maxDepth int) ([]uint32, error) {
	if log == nil {
		log = cfblog.Discard
	}

	msat := make([]uint32, len(h.MSAT))
	copy(msat, h.MSAT)

	if h.MSATSectorIdentifier == header.SectorEndOfChain || h.MSATSectorIdentifier == header.SectorFree {
		return msat, nil
	}
	if h.NumberOfMSATSectors == 0 {
		// Some writers leave the count at zero while still chaining an
		// extra MSAT sector. The chain terminator is authoritative;
		// treat the count as 1 and keep walking.
		log.Warn("MSAT sector identifier set but declared count is zero, coercing to 1",
			"identifier", h.MSATSectorIdentifier)
	}

	entriesPerSector := int(h.SectorSize/4) - 1 // last uint32 is the chain pointer
	if entriesPerSector <= 0 {
		return nil, cfberr.New(cfberr.Input, cfberr.InvalidData, "sector size too small for MSAT chaining")
	}

	sid := h.MSATSectorIdentifier
	buf := make([]byte, h.SectorSize)
	visited := 0
	for sid != header.SectorEndOfChain && sid != header.SectorFree {
		visited++
		if visited > maxDepth {
			return nil, cfberr.New(cfberr.Input, cfberr.InvalidData, "MSAT sector chain exceeds maximum depth")
		}
		if err := src.ReadFullAt(buf, sectorOffset(h.SectorSize, sid)); err != nil {
			return nil, cfberr.Wrap(cfberr.IO, cfberr.GetFailed, "read MSAT sector", err)
		}
		for i := 0; i < entriesPerSector; i++ {
			off := i * 4
			msat = append(msat, h.Order.Uint32(buf[off:off+4]))
		}
		next := h.Order.Uint32(buf[entriesPerSector*4 : entriesPerSector*4+4])
		sid = next
	}

	if h.NumberOfMSATSectors != 0 && uint32(visited) != h.NumberOfMSATSectors {
		log.Warn("MSAT chain length does not match header count",
			"declared", h.NumberOfMSATSectors, "walked", visited)
	}

	return msat, nil
}

// BuildSAT reads every sector named by msat and concatenates their
// entries into the sector allocation table. Entries equal to
// header.SectorFree in msat are skipped, so an all-free MSAT yields an
// empty SAT rather than an error.
func BuildSAT(src *source.Source, h *header.Header, msat []uint32) (Table, error) {
	entriesPerSector := int(h.SectorSize / 4)
	if entriesPerSector <= 0 {
		return nil, cfberr.New(cfberr.Input, cfberr.InvalidData, "sector size too small for SAT")
	}

	var sat Table
	buf := make([]byte, h.SectorSize)
	for _, sid := range msat {
		if sid == header.SectorFree {
			continue
		}
		if err := src.ReadFullAt(buf, sectorOffset(h.SectorSize, sid)); err != nil {
			return nil, cfberr.Wrap(cfberr.IO, cfberr.GetFailed, "read SAT sector", err)
		}
		for i := 0; i < entriesPerSector; i++ {
			off := i * 4
			sat = append(sat, h.Order.Uint32(buf[off:off+4]))
		}
	}
	return sat, nil
}

// BuildSSAT walks the short sector allocation table chain starting at
// h.SSATSectorIdentifier, reading each member sector through sat, and
// concatenates their entries. It returns an empty table if the
// container has no mini-stream. maxDepth bounds the walk.
func BuildSSAT(src *source.Source, h *header.Header, sat Table, maxDepth int) (Table, error) {
	if h.SSATSectorIdentifier == header.SectorEndOfChain || h.NumberOfSSATSectors == 0 {
		return nil, nil
	}

	entriesPerSector := int(h.SectorSize / 4)
	var ssat Table
	buf := make([]byte, h.SectorSize)

	sid := h.SSATSectorIdentifier
	visited := 0
	for sid != header.SectorEndOfChain && sid != header.SectorFree {
		visited++
		if visited > maxDepth {
			return nil, cfberr.New(cfberr.Input, cfberr.InvalidData, "SSAT sector chain exceeds maximum depth")
		}
		if err := src.ReadFullAt(buf, sectorOffset(h.SectorSize, sid)); err != nil {
			return nil, cfberr.Wrap(cfberr.IO, cfberr.GetFailed, "read SSAT sector", err)
		}
		for i := 0; i < entriesPerSector; i++ {
			off := i * 4
			ssat = append(ssat, h.Order.Uint32(buf[off:off+4]))
		}
		sid = sat.Get(sid)
	}

	return ssat, nil
}

// SectorOffset exposes the byte offset of an ordinary sector for use by
// the stream reader in package cfb.
func SectorOffset(h *header.Header, sid uint32) int64 {
	return sectorOffset(h.SectorSize, sid)
}
