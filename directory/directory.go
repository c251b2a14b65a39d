// Package directory parses an OLECF container's directory entry stream
// into an in-memory tree: each 128-byte record names a storage or
// stream, siblings form a red-black tree rooted at the owning storage's
// child pointer, and the whole structure is reachable from the single
// root storage entry.
package directory

import (
	"unicode/utf16"

	"github.com/cfbfile/olecf/alloc"
	"github.com/cfbfile/olecf/cfberr"
	"github.com/cfbfile/olecf/cfblog"
	"github.com/cfbfile/olecf/header"
	"github.com/cfbfile/olecf/source"
)

// EntryType enumerates the on-disk object type byte.
type EntryType byte

const (
	TypeEmpty       EntryType = 0
	TypeStorage     EntryType = 1
	TypeStream      EntryType = 2
	TypeLockBytes   EntryType = 3
	TypeProperty    EntryType = 4
	TypeRootStorage EntryType = 5
)

const (
	entrySize  = 128
	noStreamID = 0xFFFFFFFF

	offName        = 0x00
	offNameLen     = 0x40
	offType        = 0x42
	offColor       = 0x43
	offLeftSib     = 0x44
	offRightSib    = 0x48
	offChild       = 0x4C
	offCLSID       = 0x50
	offStateBits   = 0x60
	offCreateTime  = 0x64
	offModifyTime  = 0x6C
	offStartSector = 0x74
	offStreamSize  = 0x78
)

// DefaultMaxTreeDepth bounds red-black tree recursion so a cyclic
// sibling/child pointer cannot loop forever.
const DefaultMaxTreeDepth = 256

// Entry is one directory entry, decoded from its 128-byte record plus
// its position in the tree.
type Entry struct {
	ID   int
	Name string
	Type EntryType

	LeftSibling  uint32
	RightSibling uint32
	Child        uint32

	CLSID [16]byte

	CreationTime uint64
	ModifiedTime uint64

	// StartSector is the first ordinary sector (streams >= the
	// mini-stream cutoff) or the first mini-sector (smaller streams).
	StartSector uint32
	StreamSize  uint64

	// Children maps child entry names to their Entry, populated once
	// the owning storage's red-black tree has been flattened. Nil for
	// non-storage entries.
	Children map[string]*Entry
}

// Names of the two standard property-set streams, recognized during
// tree assembly so callers get a shortcut to them. The leading \x05
// byte is part of the on-disk name.
const (
	SummaryInformationName         = "\x05SummaryInformation"
	DocumentSummaryInformationName = "\x05DocumentSummaryInformation"
)

// Tree is the fully assembled directory: Root is the root storage
// entry (conventionally entry 0); Entries is indexed by on-disk ID.
// SummaryInformation and DocumentSummaryInformation are the root's
// standard property-set stream children, nil when absent.
type Tree struct {
	Root    *Entry
	Entries []*Entry

	SummaryInformation         *Entry
	DocumentSummaryInformation *Entry
}

// Parse reads the directory entry stream (the sector chain beginning
// at h.RootDirectorySectorIdentifier, tolerant of cycles) and assembles
// it into a Tree. maxTreeDepth bounds the red-black tree flattening;
// pass DefaultMaxTreeDepth for the standard behavior.
func Parse(src *source.Source, h *header.Header, sat alloc.Table, log *cfblog.Logger, maxTreeDepth int) (*Tree, error) {
	if log == nil {
		log = cfblog.Discard
	}

	raw, err := readChain(src, h, sat, h.RootDirectorySectorIdentifier)
	if err != nil {
		return nil, cfberr.Wrap(cfberr.IO, cfberr.GetFailed, "read directory entry stream", err)
	}

	count := len(raw) / entrySize
	entries := make([]*Entry, count)
	for i := 0; i < count; i++ {
		rec := raw[i*entrySize : (i+1)*entrySize]
		entries[i] = decodeEntry(h, i, rec)
	}

	if count == 0 {
		return &Tree{}, nil
	}

	// The root storage is conventionally entry 0, but a file whose root
	// sits later is tolerated with a warning, and a file with none at
	// all simply has no content.
	var root *Entry
	for _, e := range entries {
		if e.Type == TypeRootStorage {
			root = e
			break
		}
	}
	if root == nil {
		log.Warn("no root storage entry, container has no content")
		return &Tree{Entries: entries}, nil
	}
	if root.ID != 0 {
		log.Warn("root storage is not the first directory entry", "id", root.ID, "name", root.Name)
	}

	t := &Tree{Root: root, Entries: entries}
	visited := make([]bool, count)
	if err := attachChildren(entries, root, visited, 0, maxTreeDepth, log); err != nil {
		return nil, err
	}

	if root.Children != nil {
		t.SummaryInformation = root.Children[SummaryInformationName]
		t.DocumentSummaryInformation = root.Children[DocumentSummaryInformationName]
	}

	return t, nil
}

func decodeEntry(h *header.Header, id int, rec []byte) *Entry {
	nameLen := h.Order.Uint16(rec[offNameLen : offNameLen+2])
	name := decodeName(h, rec[offName:offName+64], nameLen)

	e := &Entry{
		ID:           id,
		Name:         name,
		Type:         EntryType(rec[offType]),
		LeftSibling:  h.Order.Uint32(rec[offLeftSib : offLeftSib+4]),
		RightSibling: h.Order.Uint32(rec[offRightSib : offRightSib+4]),
		Child:        h.Order.Uint32(rec[offChild : offChild+4]),
		CreationTime: h.Order.Uint64(rec[offCreateTime : offCreateTime+8]),
		ModifiedTime: h.Order.Uint64(rec[offModifyTime : offModifyTime+8]),
		StartSector:  h.Order.Uint32(rec[offStartSector : offStartSector+4]),
		StreamSize:   h.Order.Uint64(rec[offStreamSize : offStreamSize+8]),
	}
	copy(e.CLSID[:], rec[offCLSID:offCLSID+16])

	if e.Type == TypeStorage || e.Type == TypeRootStorage {
		e.Children = make(map[string]*Entry)
	}

	return e
}

func decodeName(h *header.Header, raw []byte, nameLenBytes uint16) string {
	if nameLenBytes < 2 {
		return ""
	}
	chars := int(nameLenBytes)/2 - 1
	if chars <= 0 {
		return ""
	}
	units := make([]uint16, chars)
	for i := 0; i < chars; i++ {
		units[i] = h.Order.Uint16(raw[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}

// attachChildren flattens the red-black tree rooted at storage.Child
// into storage.Children. Exactly one path may lead to each entry: a
// sibling or child pointer reaching an already-attached entry is a
// structural error, unlike the sector-level chain cycles readChain
// tolerates.
func attachChildren(entries []*Entry, storage *Entry, visited []bool, depth, maxDepth int, log *cfblog.Logger) error {
	if storage.Children == nil {
		return nil
	}
	return walkSiblings(entries, storage, storage.Child, visited, depth, maxDepth, log)
}

func walkSiblings(entries []*Entry, storage *Entry, id uint32, visited []bool, depth, maxDepth int, log *cfblog.Logger) error {
	if id == noStreamID {
		return nil
	}
	if depth > maxDepth {
		return cfberr.New(cfberr.Input, cfberr.InvalidData, "directory tree exceeds maximum depth")
	}
	if int(id) < 0 || int(id) >= len(entries) {
		log.Warn("directory entry references out-of-range sibling/child id", "id", id)
		return nil
	}
	if visited[id] {
		return cfberr.Newf(cfberr.Runtime, cfberr.ValueAlreadySet,
			"directory entry %d is reachable more than once", id)
	}
	visited[id] = true

	e := entries[id]
	if e.Type != TypeEmpty {
		storage.Children[e.Name] = e
		if e.Children != nil {
			if err := walkSiblings(entries, e, e.Child, visited, depth+1, maxDepth, log); err != nil {
				return err
			}
		}
	}

	if err := walkSiblings(entries, storage, e.LeftSibling, visited, depth+1, maxDepth, log); err != nil {
		return err
	}
	return walkSiblings(entries, storage, e.RightSibling, visited, depth+1, maxDepth, log)
}

// readChain concatenates every ordinary sector in the chain starting at
// sid, following sat, until the end-of-chain sentinel. A set of
// already-visited sector IDs makes a looping chain terminate silently
// rather than erroring, each distinct sector read exactly once.
func readChain(src *source.Source, h *header.Header, sat alloc.Table, sid uint32) ([]byte, error) {
	var out []byte
	buf := make([]byte, h.SectorSize)
	seen := make(map[uint32]bool)
	for sid != header.SectorEndOfChain && sid != header.SectorFree {
		if seen[sid] {
			break
		}
		seen[sid] = true
		if err := src.ReadFullAt(buf, alloc.SectorOffset(h, sid)); err != nil {
			return nil, err
		}
		out = append(out, buf...)
		sid = sat.Get(sid)
	}
	return out, nil
}
