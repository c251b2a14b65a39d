package cfb

import (
	"io"

	"github.com/cfbfile/olecf/alloc"
	"github.com/cfbfile/olecf/cfberr"
	"github.com/cfbfile/olecf/header"
)

// Item is a positionable view over one stream's bytes, backed by
// either the ordinary SAT chain or the SSAT/mini-stream chain
// depending on which tier Reader.Stream selected. It implements
// io.Reader, io.ReaderAt and io.Seeker.
type Item struct {
	r          *Reader
	size       int64
	startSID   uint32
	table      alloc.Table
	sectorSize int64
	offsetFn   func(sid uint32) int64
	readAt     func(buf []byte, off int64) (int, error)

	pos int64
}

// Size returns the stream's declared length in bytes.
func (it *Item) Size() int64 { return it.size }

// Read implements io.Reader over the stream's logical byte range.
func (it *Item) Read(p []byte) (int, error) {
	n, err := it.ReadAt(p, it.pos)
	it.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker.
func (it *Item) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = it.pos
	case io.SeekEnd:
		base = it.size
	default:
		return 0, cfberr.New(cfberr.Arguments, cfberr.ValueMismatch, "invalid seek whence")
	}
	newPos := base + offset
	if newPos < 0 || (offset > 0 && newPos < base) {
		return 0, cfberr.New(cfberr.Arguments, cfberr.ValueOutOfBounds, "seek position out of range")
	}
	it.pos = newPos
	return newPos, nil
}

// Tell returns the current cursor position in bytes from the start of
// the stream.
func (it *Item) Tell() int64 { return it.pos }

// ReadAt implements io.ReaderAt, walking the chain to locate each
// sector touched by [off, off+len(p)) and reading across sector
// boundaries as needed.
func (it *Item) ReadAt(p []byte, off int64) (int, error) {
	if off >= it.size {
		return 0, io.EOF
	}
	if rem := it.size - off; int64(len(p)) > rem {
		p = p[:rem]
	}

	total := 0
	for len(p) > 0 {
		if err := it.r.checkAbort(); err != nil {
			return total, err
		}

		sectorIndex := (off + int64(total)) / it.sectorSize
		sectorOff := (off + int64(total)) % it.sectorSize

		sid, err := it.sectorAt(sectorIndex)
		if err != nil {
			return total, err
		}

		toRead := it.sectorSize - sectorOff
		if toRead > int64(len(p)) {
			toRead = int64(len(p))
		}

		n, err := it.readAt(p[:toRead], it.offsetFn(sid)+sectorOff)
		total += n
		p = p[n:]
		if err != nil && err != io.EOF {
			return total, err
		}
		if n == 0 {
			break
		}
	}

	if off+int64(total) >= it.size {
		return total, io.EOF
	}
	return total, nil
}

// sectorAt walks the chain from startSID to find the sid at logical
// sector index idx, bounded by the owning Reader's configured maximum
// chain depth to tolerate cyclic chains without looping forever.
func (it *Item) sectorAt(idx int64) (uint32, error) {
	sid := it.startSID
	for i := int64(0); i < idx; i++ {
		if sid == header.SectorEndOfChain || sid == header.SectorFree {
			return 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "stream chain shorter than declared size")
		}
		sid = it.table.Get(sid)
		if i > int64(it.r.maxChainDepth) {
			return 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "stream chain exceeds maximum depth")
		}
	}
	if sid == header.SectorEndOfChain || sid == header.SectorFree {
		return 0, cfberr.New(cfberr.Input, cfberr.InvalidData, "stream chain shorter than declared size")
	}
	return sid, nil
}

// ReadAll reads the entire stream into memory, for callers (like the
// property-set decoder) that need random access to the whole payload.
func ReadAll(it *Item) ([]byte, error) {
	buf := make([]byte, it.size)
	off := int64(0)
	for off < it.size {
		n, err := it.ReadAt(buf[off:], off)
		off += int64(n)
		if err != nil && err != io.EOF {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return buf, nil
}
