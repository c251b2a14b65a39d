// Package olecf is the public, read-only API for opening OLE Compound
// File (OLECF / MS-CFB) containers, walking their storage/stream tree,
// reading stream bytes, and decoding the well-known property-set
// streams. It is a thin facade over the cfb engine; callers normally
// only need this package.
package olecf

import (
	"io"
	"sort"
	"time"

	"github.com/cfbfile/olecf/cfb"
	"github.com/cfbfile/olecf/cfberr"
	"github.com/cfbfile/olecf/codepage"
	"github.com/cfbfile/olecf/directory"
	"github.com/cfbfile/olecf/propset"
	"github.com/cfbfile/olecf/source"
)

// Option configures File at Open time. It is a type alias so callers
// can pass cfb.Option values (WithLogger, WithAbort,
// WithLenientClipboard, WithMaxChainDepth) directly.
type Option = cfb.Option

var (
	WithLogger           = cfb.WithLogger
	WithAbort            = cfb.WithAbort
	WithLenientClipboard = cfb.WithLenientClipboard
	WithMaxChainDepth    = cfb.WithMaxChainDepth
)

// File is an opened OLECF container.
type File struct {
	r        *cfb.Reader
	codepage codepage.Name
}

// Open opens the named file on disk as an OLECF container.
func Open(path string, opts ...Option) (*File, error) {
	src, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	return open(src, opts...)
}

// OpenMemory opens an in-memory byte slice as an OLECF container. The
// slice is not copied; the caller must not mutate it while File is in
// use.
func OpenMemory(data []byte, opts ...Option) (*File, error) {
	return open(source.NewMemory(data), opts...)
}

// OpenReaderAt adopts an existing io.ReaderAt of known size as an
// OLECF container, without requiring a concrete *os.File.
func OpenReaderAt(r io.ReaderAt, size int64, opts ...Option) (*File, error) {
	return open(source.Adopt(r, size), opts...)
}

func open(src *source.Source, opts ...Option) (*File, error) {
	reader, err := cfb.Open(src, opts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	return &File{r: reader, codepage: codepage.ASCII}, nil
}

// Close releases the container's underlying resources.
func (f *File) Close() error { return f.r.Close() }

// Codepage returns the legacy codepage currently used to transcode
// LPSTR property values. Defaults to codepage.ASCII.
func (f *File) Codepage() codepage.Name { return f.codepage }

// SetCodepage selects the legacy codepage used to transcode LPSTR
// property values decoded by PropertySet.
func (f *File) SetCodepage(name codepage.Name) { f.codepage = name }

// SectorSize returns the container's ordinary sector size in bytes.
func (f *File) SectorSize() uint32 { return f.r.SectorSize() }

// ShortSectorSize returns the container's mini-stream sector size in bytes.
func (f *File) ShortSectorSize() uint32 { return f.r.ShortSectorSize() }

// FormatVersion returns the file's major and minor format version.
func (f *File) FormatVersion() (major, minor uint16) { return f.r.FormatVersion() }

// ClassID returns the root storage's 16-byte class identifier, which
// conventionally identifies the application that wrote the container.
// Zero when the container has no root storage.
func (f *File) ClassID() [16]byte {
	if e := f.r.Root(); e != nil {
		return e.CLSID
	}
	return [16]byte{}
}

// Allocation reports occupancy of the reconstructed allocation tables.
func (f *File) Allocation() cfb.AllocationStats { return f.r.Allocation() }

// Item is a named entry in the container tree: a storage (directory)
// or a stream.
type Item struct {
	entry *directory.Entry
}

// IsStorage reports whether the item is a storage (can have children).
func (it *Item) IsStorage() bool {
	return it.entry.Type == directory.TypeStorage || it.entry.Type == directory.TypeRootStorage
}

// IsStream reports whether the item is a stream (has readable bytes).
func (it *Item) IsStream() bool { return it.entry.Type == directory.TypeStream }

// Name returns the item's on-disk name.
func (it *Item) Name() string { return it.entry.Name }

// Size returns the entry's declared stream size. For the root storage
// this is the size of the mini-stream it carries; other storages
// normally record zero.
func (it *Item) Size() int64 { return int64(it.entry.StreamSize) }

// CLSID returns the item's 16-byte class identifier, as stored.
func (it *Item) CLSID() [16]byte { return it.entry.CLSID }

// CreationTime returns the item's creation FILETIME, converted to a
// time.Time.
func (it *Item) CreationTime() time.Time { return propset.FileTime(it.entry.CreationTime) }

// ModifiedTime returns the item's last-modification FILETIME,
// converted to a time.Time.
func (it *Item) ModifiedTime() time.Time { return propset.FileTime(it.entry.ModifiedTime) }

// childNames returns this item's child names in a stable, sorted
// order, so ChildCount/ChildAt index consistently across calls (Go map
// iteration order is not stable).
func (it *Item) childNames() []string {
	names := make([]string, 0, len(it.entry.Children))
	for name := range it.entry.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Children lists the names of an item's direct children, in stable
// sorted order. Empty for a non-storage item.
func (it *Item) Children() []string { return it.childNames() }

// ChildCount returns the number of direct children. Zero for a
// non-storage item.
func (it *Item) ChildCount() int { return len(it.entry.Children) }

// ChildAt returns the item's i'th direct child in the same stable
// order as Children.
func (it *Item) ChildAt(i int) (*Item, error) {
	names := it.childNames()
	if i < 0 || i >= len(names) {
		return nil, cfberr.Newf(cfberr.Arguments, cfberr.ValueOutOfBounds, "child index %d out of range [0, %d)", i, len(names))
	}
	return &Item{entry: it.entry.Children[names[i]]}, nil
}

// Root returns the container's root storage item, or nil when the
// container has no content (its directory holds no root storage).
func (f *File) Root() *Item {
	e := f.r.Root()
	if e == nil {
		return nil
	}
	return &Item{entry: e}
}

// Find resolves a "\"-separated path of storage and stream names
// starting at the root. A single leading separator is ignored.
func (f *File) Find(path string) (*Item, error) {
	e, err := f.r.Find(path)
	if err != nil {
		return nil, err
	}
	return &Item{entry: e}, nil
}

// Walk visits every item in the tree, stopping early if fn returns
// false.
func (f *File) Walk(fn func(*Item) bool) {
	f.r.Walk(func(e *directory.Entry) bool {
		return fn(&Item{entry: e})
	})
}

// Stream is a readable view over a stream item's bytes. It implements
// io.Reader, io.ReaderAt and io.Seeker.
type Stream struct {
	item *cfb.Item
}

// Open returns a Stream for reading it's bytes. it must be a stream
// (IsStream() true).
func (f *File) Open(it *Item) (*Stream, error) {
	item, err := f.r.Stream(it.entry)
	if err != nil {
		return nil, err
	}
	return &Stream{item: item}, nil
}

func (s *Stream) Read(p []byte) (int, error)                  { return s.item.Read(p) }
func (s *Stream) ReadAt(p []byte, off int64) (int, error)      { return s.item.ReadAt(p, off) }
func (s *Stream) Seek(offset int64, whence int) (int64, error) { return s.item.Seek(offset, whence) }
func (s *Stream) Size() int64                                  { return s.item.Size() }

// Tell returns the current cursor position.
func (s *Stream) Tell() int64 { return s.item.Tell() }

// ReadAll reads an entire stream item's bytes into memory.
func (f *File) ReadAll(it *Item) ([]byte, error) {
	item, err := f.r.Stream(it.entry)
	if err != nil {
		return nil, err
	}
	return cfb.ReadAll(item)
}

// SummaryInformation is the conventional name of the standard property
// stream describing document-independent metadata (title, author,
// subject, ...).
const SummaryInformation = directory.SummaryInformationName

// DocumentSummaryInformation is the conventional name of the extended
// property stream (company, category, ...).
const DocumentSummaryInformation = directory.DocumentSummaryInformationName

// PropertySet reads and decodes the named property-set stream (for
// example SummaryInformation) from the container root. STRING_ASCII
// values are transcoded using f's configured Codepage unless overridden
// by an explicit propset.ASCIICodepage option.
func (f *File) PropertySet(name string, opts ...propset.Option) (*propset.PropertySet, error) {
	it, err := f.Find(name)
	if err != nil {
		return nil, err
	}
	data, err := f.ReadAll(it)
	if err != nil {
		return nil, err
	}
	opts = append([]propset.Option{propset.Lenient(f.r.LenientClipboard()), propset.ASCIICodepage(f.codepage)}, opts...)
	return propset.Decode(data, opts...)
}

// decodeEntry decodes a property set from a directory entry recorded as
// a quick reference during tree assembly.
func (f *File) decodeEntry(e *directory.Entry, name string, opts []propset.Option) (*propset.PropertySet, error) {
	if e == nil {
		return nil, cfberr.Newf(cfberr.Runtime, cfberr.ValueMissing, "no %q stream", name)
	}
	data, err := f.ReadAll(&Item{entry: e})
	if err != nil {
		return nil, err
	}
	opts = append([]propset.Option{propset.Lenient(f.r.LenientClipboard()), propset.ASCIICodepage(f.codepage)}, opts...)
	return propset.Decode(data, opts...)
}

// SummaryInformationSet decodes the container's \x05SummaryInformation
// stream using the quick reference recorded at open time. It fails with
// Runtime/ValueMissing when the container has no such stream.
func (f *File) SummaryInformationSet(opts ...propset.Option) (*propset.PropertySet, error) {
	return f.decodeEntry(f.r.SummaryInformation(), SummaryInformation, opts)
}

// DocumentSummaryInformationSet decodes the container's
// \x05DocumentSummaryInformation stream.
func (f *File) DocumentSummaryInformationSet(opts ...propset.Option) (*propset.PropertySet, error) {
	return f.decodeEntry(f.r.DocumentSummaryInformation(), DocumentSummaryInformation, opts)
}
