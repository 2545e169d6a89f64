package store

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"notilog/internal/record"
)

// Record frame layout within a segment:
//
//	size (4 bytes, little-endian, total frame size including this field)
//	magic (1 byte, 'n')
//	version (1 byte)
//	document (msgpack map of the eight record fields)
const (
	frameMagic   = 'n'
	frameVersion = 1

	sizeFieldBytes = 4
	minFrameSize   = sizeFieldBytes + 2
	maxFrameSize   = 16 << 20
)

var (
	ErrFrameTooSmall      = errors.New("record frame too small")
	ErrFrameTooLarge      = errors.New("record frame too large")
	ErrFrameMagicMismatch = errors.New("record frame magic mismatch")
	ErrFrameVersion       = errors.New("record frame version mismatch")
)

// encodeFrame serializes one record as a length-framed msgpack document.
func encodeFrame(rec record.Record) ([]byte, error) {
	doc, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, err
	}
	total := uint64(minFrameSize) + uint64(len(doc))
	if total > maxFrameSize || total > math.MaxUint32 {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[:sizeFieldBytes], uint32(total))
	buf[sizeFieldBytes] = frameMagic
	buf[sizeFieldBytes+1] = frameVersion
	copy(buf[minFrameSize:], doc)
	return buf, nil
}

// decodeFrameBody parses the frame body (everything after the size field).
func decodeFrameBody(body []byte) (record.Record, error) {
	if len(body) < minFrameSize-sizeFieldBytes {
		return record.Record{}, ErrFrameTooSmall
	}
	if body[0] != frameMagic {
		return record.Record{}, ErrFrameMagicMismatch
	}
	if body[1] != frameVersion {
		return record.Record{}, ErrFrameVersion
	}
	var rec record.Record
	if err := msgpack.Unmarshal(body[2:], &rec); err != nil {
		return record.Record{}, err
	}
	return rec, nil
}
