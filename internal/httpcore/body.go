// Package httpcore implements the core HTTP/1.1 engine: the body reader
// contract, the request/response object model, the wire codec, and the
// per-connection state machine.
package httpcore

import (
	"bufio"
	"compress/flate"
	"errors"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// ErrClosedReader is returned by Read after Close.
var ErrClosedReader = errors.New("httpcore: body reader closed")

// BodyReader is a pull-based byte producer: open, then a sequence of reads,
// then close. A zero-length successful read signals EOF. Implementations
// need not be safe for concurrent reads on the same instance, but must be
// safe to reopen after a close (open/read*/close is re-entrant).
type BodyReader interface {
	Open() error
	Read() ([]byte, error)
	Close() error
}

// AsyncBodyReader is an optional capability: a Connection prefers this over
// Read when available, since it lets the read happen off the I/O goroutine.
type AsyncBodyReader interface {
	BodyReader
	ReadAsync(cb func(data []byte, err error))
}

const bodyChunkSize = 32 * 1024

// EmptyBodyReader produces no bytes. Used by responses with no body.
type EmptyBodyReader struct{ done bool }

func (r *EmptyBodyReader) Open() error { r.done = false; return nil }
func (r *EmptyBodyReader) Read() ([]byte, error) {
	if r.done {
		return nil, nil
	}
	r.done = true
	return nil, nil
}
func (r *EmptyBodyReader) Close() error { return nil }

// MemoryBodyReader serves a fixed in-memory byte slice, possibly restricted
// to a byte range.
type MemoryBodyReader struct {
	data []byte
	pos  int
}

// NewMemoryBodyReader wraps data as a BodyReader.
func NewMemoryBodyReader(data []byte) *MemoryBodyReader {
	return &MemoryBodyReader{data: data}
}

func (r *MemoryBodyReader) Open() error { r.pos = 0; return nil }

func (r *MemoryBodyReader) Read() ([]byte, error) {
	if r.pos >= len(r.data) {
		return nil, nil
	}
	end := r.pos + bodyChunkSize
	if end > len(r.data) {
		end = len(r.data)
	}
	chunk := r.data[r.pos:end]
	r.pos = end
	return chunk, nil
}

func (r *MemoryBodyReader) Close() error { return nil }

// FileBodyReader streams a file (or a byte range of it) in fixed chunks.
type FileBodyReader struct {
	path          string
	offset, limit int64 // limit <= 0 means "to EOF"
	f             *os.File
	remaining     int64
}

// NewFileBodyReader streams length bytes of path starting at offset. A
// negative length means "the rest of the file".
func NewFileBodyReader(path string, offset, length int64) *FileBodyReader {
	return &FileBodyReader{path: path, offset: offset, limit: length}
}

func (r *FileBodyReader) Open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	if r.offset > 0 {
		if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
			f.Close()
			return err
		}
	}
	r.f = f
	r.remaining = r.limit
	return nil
}

func (r *FileBodyReader) Read() ([]byte, error) {
	if r.f == nil {
		return nil, ErrClosedReader
	}
	want := bodyChunkSize
	if r.limit > 0 {
		if r.remaining <= 0 {
			return nil, nil
		}
		if int64(want) > r.remaining {
			want = int(r.remaining)
		}
	}
	buf := make([]byte, want)
	n, err := r.f.Read(buf)
	if n > 0 {
		r.remaining -= int64(n)
		if err == io.EOF {
			err = nil
		}
		return buf[:n], err
	}
	if err == io.EOF {
		return nil, nil
	}
	return nil, err
}

func (r *FileBodyReader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// GzipBodyReader wraps another BodyReader, compressing its output on the
// fly. It composes readers the way a Response may chain a gzip encoder in
// front of a file reader.
type GzipBodyReader struct {
	inner BodyReader
	pr    *io.PipeReader
	pw    *io.PipeWriter
	bufr  *bufio.Reader
}

// NewGzipBodyReader wraps inner so Read() returns gzip-compressed bytes.
func NewGzipBodyReader(inner BodyReader) *GzipBodyReader {
	return &GzipBodyReader{inner: inner}
}

func (r *GzipBodyReader) Open() error {
	if err := r.inner.Open(); err != nil {
		return err
	}
	pr, pw := io.Pipe()
	r.pr, r.pw = pr, pw
	r.bufr = bufio.NewReaderSize(pr, bodyChunkSize)
	go func() {
		gw, _ := gzip.NewWriterLevel(pw, flate.DefaultCompression)
		for {
			chunk, err := r.inner.Read()
			if err != nil {
				gw.Close()
				pw.CloseWithError(err)
				return
			}
			if len(chunk) == 0 {
				break
			}
			if _, werr := gw.Write(chunk); werr != nil {
				pw.CloseWithError(werr)
				return
			}
		}
		gw.Close()
		pw.Close()
	}()
	return nil
}

func (r *GzipBodyReader) Read() ([]byte, error) {
	buf := make([]byte, bodyChunkSize)
	n, err := r.bufr.Read(buf)
	if n > 0 {
		if err == io.EOF {
			err = nil
		}
		return buf[:n], err
	}
	if err == io.EOF {
		return nil, nil
	}
	return nil, err
}

func (r *GzipBodyReader) Close() error {
	if r.pr != nil {
		r.pr.Close()
	}
	return r.inner.Close()
}
