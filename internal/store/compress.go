package store

import (
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"notilog/internal/format"
)

// compressSegment rewrites a sealed segment with its record stream
// zstd-compressed, atomically replacing the original via temp file + rename.
// The 4-byte header stays uncompressed so readers can detect the
// FlagCompressed bit; the extension does not change.
func compressSegment(path string, mode os.FileMode) error {
	src, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	var hdr [format.HeaderSize]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return format.ErrHeaderTooSmall
	}
	hdr[3] |= format.FlagCompressed

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".compress-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(hdr[:]); err != nil {
		cleanup()
		return err
	}

	enc, err := zstd.NewWriter(tmp,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		cleanup()
		return err
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		cleanup()
		return err
	}
	if err := enc.Close(); err != nil {
		cleanup()
		return err
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
