// Package source implements the L1 block source: a narrow random-access
// byte reader satisfied by a file, an in-memory buffer, or an adopted
// io.ReaderAt of known size.
//
// Every read in the engine is a positional read (ReadAt), so concurrent
// items sharing one Source never need external locking.
package source

import (
	"bytes"
	"io"
	"os"

	"github.com/cfbfile/olecf/cfberr"
)

// Source is a random-access byte reader over the container's backing
// store. Reads are never short except at end of file; a short read
// inside the requested range is reported as an error rather than
// silently truncated.
type Source struct {
	r      io.ReaderAt
	size   int64
	closer io.Closer
}

// Open opens the named file as a block source. The OS handles any
// narrow/wide filename conversion.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cfberr.Wrap(cfberr.IO, cfberr.GetFailed, "open block source", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, cfberr.Wrap(cfberr.IO, cfberr.GetFailed, "stat block source", err)
	}
	return &Source{r: f, size: info.Size(), closer: f}, nil
}

// NewMemory wraps a byte slice as a block source. The slice is not
// copied; callers must not mutate it while the Source is in use.
func NewMemory(data []byte) *Source {
	return &Source{r: bytes.NewReader(data), size: int64(len(data))}
}

// Adopt wraps an existing io.ReaderAt of known size as a block source.
// If r also implements io.Closer, Close forwards to it.
func Adopt(r io.ReaderAt, size int64) *Source {
	s := &Source{r: r, size: size}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Size returns the total size of the backing store in bytes.
func (s *Source) Size() int64 { return s.size }

// ReadAt reads exactly len(buf) bytes starting at offset, unless the
// read reaches end of file, in which case it returns the bytes actually
// available and io.EOF. A short read that does not reach EOF is a
// defined error rather than a partial success.
func (s *Source) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, cfberr.New(cfberr.Arguments, cfberr.ValueOutOfBounds, "negative read offset")
	}
	n, err := s.r.ReadAt(buf, offset)
	if err == nil {
		return n, nil
	}
	if err == io.EOF && n == len(buf) {
		return n, nil
	}
	if err == io.EOF {
		return n, io.EOF
	}
	return n, cfberr.Wrap(cfberr.IO, cfberr.GetFailed, "read block source", err)
}

// ReadFullAt reads exactly len(buf) bytes, treating any short read
// (including at EOF) as a corrupt-file error. Use this for fixed-size
// structures (headers, directory entries, sector reads within bounds)
// where a short read indicates truncation, not a legitimate end of
// stream.
func (s *Source) ReadFullAt(buf []byte, offset int64) error {
	n, err := s.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return err
	}
	if n != len(buf) {
		return cfberr.Newf(cfberr.Input, cfberr.InvalidData,
			"truncated read at offset %d: wanted %d bytes, got %d", offset, len(buf), n)
	}
	return nil
}

// Close releases the underlying resource, if any. It is safe to call on
// a memory-backed Source (a no-op) and safe to call multiple times.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	return c.Close()
}
