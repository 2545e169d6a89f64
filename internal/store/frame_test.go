package store

import (
	"encoding/binary"
	"errors"
	"testing"

	"notilog/internal/record"
)

func TestFrameRoundTrip(t *testing.T) {
	in := testRecord(7)
	frame, err := encodeFrame(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	size := binary.LittleEndian.Uint32(frame[:sizeFieldBytes])
	if int(size) != len(frame) {
		t.Fatalf("size field %d does not match frame length %d", size, len(frame))
	}

	out, err := decodeFrameBody(frame[sizeFieldBytes:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: expected %+v, got %+v", in, out)
	}
}

func TestDecodeFrameBodyMagicMismatch(t *testing.T) {
	frame, err := encodeFrame(record.Record{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := frame[sizeFieldBytes:]
	body[0] = 'x'
	if _, err := decodeFrameBody(body); !errors.Is(err, ErrFrameMagicMismatch) {
		t.Fatalf("expected ErrFrameMagicMismatch, got %v", err)
	}
}

func TestDecodeFrameBodyVersionMismatch(t *testing.T) {
	frame, err := encodeFrame(record.Record{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := frame[sizeFieldBytes:]
	body[1] = frameVersion + 1
	if _, err := decodeFrameBody(body); !errors.Is(err, ErrFrameVersion) {
		t.Fatalf("expected ErrFrameVersion, got %v", err)
	}
}
