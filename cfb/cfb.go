// Package cfb is the core read-only OLECF engine: it ties together the
// block source, header, allocation tables and directory tree into a
// single opened container, and provides the dual-tier stream reader
// that serves small streams from the mini-stream and large streams
// from ordinary sectors.
package cfb

import (
	"io"
	"strings"

	"github.com/cfbfile/olecf/alloc"
	"github.com/cfbfile/olecf/cfberr"
	"github.com/cfbfile/olecf/cfblog"
	"github.com/cfbfile/olecf/directory"
	"github.com/cfbfile/olecf/header"
	"github.com/cfbfile/olecf/source"
)

// AbortFunc is polled once per sector during stream reads (Item.ReadAt)
// so a caller can cancel a long read without a context.Context
// threading through every call. Open does not poll it: allocation-table
// reconstruction and directory tree assembly run to completion. The
// signal is advisory; cancellation is not guaranteed prompt.
type AbortFunc func() bool

// Option configures a Reader at Open time.
type Option func(*config)

type config struct {
	logger           *cfblog.Logger
	abort            AbortFunc
	lenientClipboard bool
	maxChainDepth    int
	maxTreeDepth     int
}

// WithLogger installs a diagnostic sink for verbose-mode conditions
// (MSAT/identifier mismatches, non-first root storage, out-of-range
// sibling/child ids). A cycle in the directory sector chain is
// tolerated without a log entry. The default is cfblog.Discard.
func WithLogger(l *cfblog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithAbort installs a function polled before each sector of a stream
// read; once it returns true, the in-progress read fails with a
// Runtime/AbortRequested error.
func WithAbort(f AbortFunc) Option {
	return func(c *config) { c.abort = f }
}

// WithLenientClipboard controls whether the property-set decoder
// clamps the out-of-range clipboard size sentinels (0xFFFFFFE,
// 0xFFFFFFF) to 4 instead of rejecting them. Default true.
func WithLenientClipboard(lenient bool) Option {
	return func(c *config) { c.lenientClipboard = lenient }
}

// WithMaxChainDepth overrides the default bound on allocation-table and
// stream chain walks.
func WithMaxChainDepth(n int) Option {
	return func(c *config) { c.maxChainDepth = n }
}

// Reader is a single opened OLECF container. The header, allocation
// tables and directory tree are immutable after Open, so any number of
// concurrently held Items may share one Reader as long as each owns
// its own cursor.
type Reader struct {
	src    *source.Source
	header *header.Header
	sat    alloc.Table
	ssat   alloc.Table
	tree   *directory.Tree

	logger           *cfblog.Logger
	abort            AbortFunc
	lenientClipboard bool
	maxChainDepth    int
}

// LenientClipboard reports whether the clipboard-size clamp quirk is
// enabled; package olecf passes it to propset.Lenient when decoding
// property sets.
func (r *Reader) LenientClipboard() bool { return r.lenientClipboard }

// Logger returns the diagnostic sink configured for this Reader.
func (r *Reader) Logger() *cfblog.Logger { return r.logger }

// SectorSize returns the container's ordinary sector size in bytes.
func (r *Reader) SectorSize() uint32 { return r.header.SectorSize }

// ShortSectorSize returns the container's mini-stream sector size in bytes.
func (r *Reader) ShortSectorSize() uint32 { return r.header.ShortSectorSize }

// FormatVersion returns the file's major and minor format version.
func (r *Reader) FormatVersion() (major, minor uint16) {
	return r.header.MajorVersion, r.header.MinorVersion
}

// AllocationStats summarizes the reconstructed allocation tables, for
// the oleinfo tool's -a mode.
type AllocationStats struct {
	SATEntries          int
	SSATEntries         int
	FreeSATSectors      int
	FreeSSATSectors     int
	NumberOfSATSectors  uint32
	NumberOfSSATSectors uint32
	NumberOfMSATSectors uint32
}

// Allocation reports occupancy of the reconstructed SAT/SSAT.
func (r *Reader) Allocation() AllocationStats {
	stats := AllocationStats{
		SATEntries:          len(r.sat),
		SSATEntries:         len(r.ssat),
		NumberOfSATSectors:  r.header.NumberOfSATSectors,
		NumberOfSSATSectors: r.header.NumberOfSSATSectors,
		NumberOfMSATSectors: r.header.NumberOfMSATSectors,
	}
	for _, sid := range r.sat {
		if sid == header.SectorFree {
			stats.FreeSATSectors++
		}
	}
	for _, sid := range r.ssat {
		if sid == header.SectorFree {
			stats.FreeSSATSectors++
		}
	}
	return stats
}

// Open reconstructs the MSAT, SAT, SSAT and directory tree from src and
// returns a ready-to-use Reader.
func Open(src *source.Source, opts ...Option) (*Reader, error) {
	cfg := &config{
		logger:           cfblog.Discard,
		lenientClipboard: true,
		maxChainDepth:    alloc.DefaultMaxChainDepth,
		maxTreeDepth:     directory.DefaultMaxTreeDepth,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	h, err := header.Parse(src)
	if err != nil {
		return nil, err
	}

	msat, err := alloc.BuildMSAT(src, h, cfg.logger, cfg.maxChainDepth)
	if err != nil {
		return nil, err
	}

	sat, err := alloc.BuildSAT(src, h, msat)
	if err != nil {
		return nil, err
	}

	ssat, err := alloc.BuildSSAT(src, h, sat, cfg.maxChainDepth)
	if err != nil {
		return nil, err
	}

	tree, err := directory.Parse(src, h, sat, cfg.logger, cfg.maxTreeDepth)
	if err != nil {
		return nil, err
	}

	return &Reader{
		src:              src,
		header:           h,
		sat:              sat,
		ssat:             ssat,
		tree:             tree,
		logger:           cfg.logger,
		abort:            cfg.abort,
		lenientClipboard: cfg.lenientClipboard,
		maxChainDepth:    cfg.maxChainDepth,
	}, nil
}

// Close releases the underlying block source.
func (r *Reader) Close() error { return r.src.Close() }

// Root returns the root storage entry, or nil when the container has
// no content (no root storage in its directory).
func (r *Reader) Root() *directory.Entry { return r.tree.Root }

// SummaryInformation returns the root's \x05SummaryInformation stream
// entry, or nil if the container has none. The reference is recorded
// during tree assembly so callers don't have to walk the tree.
func (r *Reader) SummaryInformation() *directory.Entry { return r.tree.SummaryInformation }

// DocumentSummaryInformation returns the root's
// \x05DocumentSummaryInformation stream entry, or nil if absent.
func (r *Reader) DocumentSummaryInformation() *directory.Entry {
	return r.tree.DocumentSummaryInformation
}

// Find resolves a "\"-separated path of storage and stream names
// starting at the root, e.g. "\005SummaryInformation" or
// "MacroStorage\VBA\dir". A single leading separator is ignored. An
// empty path returns the root.
func (r *Reader) Find(path string) (*directory.Entry, error) {
	if r.tree.Root == nil {
		return nil, cfberr.New(cfberr.Runtime, cfberr.ValueMissing, "container has no root storage")
	}
	path = strings.TrimPrefix(path, `\`)
	if path == "" {
		return r.tree.Root, nil
	}
	parts := strings.Split(path, `\`)

	cur := r.tree.Root
	for _, part := range parts {
		if cur.Children == nil {
			return nil, cfberr.Newf(cfberr.Runtime, cfberr.ValueMissing, "%q is not a storage", cur.Name)
		}
		next, ok := cur.Children[part]
		if !ok {
			return nil, cfberr.Newf(cfberr.Runtime, cfberr.ValueMissing, "no such entry %q", part)
		}
		cur = next
	}
	return cur, nil
}

// Walk calls fn for every entry in the tree in an unspecified order,
// stopping early if fn returns false.
func (r *Reader) Walk(fn func(*directory.Entry) bool) {
	if r.tree.Root == nil {
		return
	}
	walk(r.tree.Root, fn)
}

func walk(e *directory.Entry, fn func(*directory.Entry) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.Children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func (r *Reader) checkAbort() error {
	if r.abort != nil && r.abort() {
		return cfberr.New(cfberr.Runtime, cfberr.AbortRequested, "operation aborted")
	}
	return nil
}

// Stream opens entry for reading. Entries smaller than
// header.SectorStreamMinimumDataSize are served from the mini-stream
// (chained through the SSAT, with bytes sourced from the root storage's
// own stream); larger entries are served from ordinary sectors (chained
// through the SAT).
func (r *Reader) Stream(entry *directory.Entry) (*Item, error) {
	if entry.Type != directory.TypeStream {
		return nil, cfberr.Newf(cfberr.Arguments, cfberr.ValueMismatch, "%q is not a stream", entry.Name)
	}

	if entry.StreamSize < uint64(r.header.SectorStreamMinimumDataSize) {
		return r.openMiniStream(entry)
	}
	return r.openRegularStream(entry)
}

func (r *Reader) openRegularStream(entry *directory.Entry) (*Item, error) {
	return &Item{
		r:          r,
		size:       int64(entry.StreamSize),
		startSID:   entry.StartSector,
		table:      r.sat,
		sectorSize: int64(r.header.SectorSize),
		offsetFn:   func(sid uint32) int64 { return alloc.SectorOffset(r.header, sid) },
		readAt:     r.src.ReadAt,
	}, nil
}

// openMiniStream resolves a small stream's bytes through the SSAT, then
// through the mini-stream's own backing bytes which live inside the
// root storage's regular stream.
func (r *Reader) openMiniStream(entry *directory.Entry) (*Item, error) {
	root := r.tree.Root
	miniOffsetFn := func(msid uint32) int64 {
		return int64(msid) * int64(r.header.ShortSectorSize)
	}
	miniReadAt := func(buf []byte, off int64) (int, error) {
		return r.readMiniBytes(root, buf, off)
	}

	return &Item{
		r:          r,
		size:       int64(entry.StreamSize),
		startSID:   entry.StartSector,
		table:      r.ssat,
		sectorSize: int64(r.header.ShortSectorSize),
		offsetFn:   miniOffsetFn,
		readAt:     miniReadAt,
	}, nil
}

// readMiniBytes satisfies a read against the mini-stream's backing
// store, which is the root storage entry's own regular-sector stream.
func (r *Reader) readMiniBytes(root *directory.Entry, buf []byte, off int64) (int, error) {
	remaining := int64(root.StreamSize) - off
	if remaining <= 0 {
		return 0, io.EOF
	}
	n := int64(len(buf))
	if n > remaining {
		n = remaining
	}

	item := &Item{
		r:          r,
		size:       int64(root.StreamSize),
		startSID:   root.StartSector,
		table:      r.sat,
		sectorSize: int64(r.header.SectorSize),
		offsetFn:   func(sid uint32) int64 { return alloc.SectorOffset(r.header, sid) },
		readAt:     r.src.ReadAt,
	}
	read, err := item.ReadAt(buf[:n], off)
	return read, err
}
