package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"notilog/internal/format"
	"notilog/internal/record"
)

// ErrNoMoreRecords is returned by Cursor.Next when the scan is exhausted.
var ErrNoMoreRecords = errors.New("no more records")

// errEndOfSegment signals the end of one segment's record stream.
var errEndOfSegment = errors.New("end of segment")

// Scan starts a fresh read pass over every record in the log, oldest first.
// The cursor does not hold the writer lock: it snapshots the segment list and
// then reads files concurrently with appends. Records appended after the
// snapshot may or may not be observed; records durable before the scan began
// always are.
func (s *Store) Scan() (*Cursor, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	paths := make([]string, len(s.segs))
	for i, meta := range s.segs {
		paths[i] = meta.path
	}
	s.mu.Unlock()

	return &Cursor{paths: paths}, nil
}

// Cursor iterates all records of a scan, oldest first. Not safe for
// concurrent use; each reader should open its own cursor.
type Cursor struct {
	paths []string
	idx   int
	cur   *segmentReader
}

// Next returns the next record, or ErrNoMoreRecords when the scan is done.
func (c *Cursor) Next() (record.Record, error) {
	for {
		if c.cur == nil {
			if c.idx >= len(c.paths) {
				return record.Record{}, ErrNoMoreRecords
			}
			r, err := openSegmentReader(c.paths[c.idx])
			if err != nil {
				return record.Record{}, fmt.Errorf("open segment %s: %w", filepath.Base(c.paths[c.idx]), err)
			}
			c.cur = r
			c.idx++
		}

		rec, err := c.cur.Next()
		if errors.Is(err, errEndOfSegment) {
			_ = c.cur.Close()
			c.cur = nil
			continue
		}
		if err != nil {
			return record.Record{}, err
		}
		return rec, nil
	}
}

// Close releases the cursor's open segment handle, if any.
func (c *Cursor) Close() error {
	if c.cur != nil {
		err := c.cur.Close()
		c.cur = nil
		return err
	}
	return nil
}

// segmentReader streams the record frames of one segment file, transparently
// decompressing sealed zstd segments.
type segmentReader struct {
	file   *os.File
	dec    *zstd.Decoder // non-nil for compressed segments
	br     *bufio.Reader
	header format.Header

	// offset is the uncompressed file offset past the last complete frame;
	// used to truncate a partially written tail after a crash.
	offset int64
}

func openSegmentReader(path string) (*segmentReader, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var hdr [format.HeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		_ = f.Close()
		return nil, format.ErrHeaderTooSmall
	}
	header, err := format.DecodeAndValidate(hdr[:], format.TypeSegment, frameVersion)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r := &segmentReader{file: f, header: header, offset: format.HeaderSize}
	if header.Flags&format.FlagCompressed != 0 {
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		r.dec = dec
		r.br = bufio.NewReader(dec)
	} else {
		r.br = bufio.NewReader(f)
	}
	return r, nil
}

// Next reads one frame. A clean end of file, or a partially written trailing
// frame (an append still in flight, or a crash mid-write), ends the segment.
func (r *segmentReader) Next() (record.Record, error) {
	var sizeBuf [sizeFieldBytes]byte
	if _, err := io.ReadFull(r.br, sizeBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return record.Record{}, errEndOfSegment
		}
		return record.Record{}, err
	}

	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size < minFrameSize {
		return record.Record{}, ErrFrameTooSmall
	}
	if size > maxFrameSize {
		return record.Record{}, ErrFrameTooLarge
	}

	body := make([]byte, size-sizeFieldBytes)
	if _, err := io.ReadFull(r.br, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return record.Record{}, errEndOfSegment
		}
		return record.Record{}, err
	}

	rec, err := decodeFrameBody(body)
	if err != nil {
		return record.Record{}, err
	}
	r.offset += int64(size)
	return rec, nil
}

func (r *segmentReader) Close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	return r.file.Close()
}
