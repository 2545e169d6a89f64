// Package store implements the durable, ordered, append-only record log.
//
// A store exclusively owns one directory of sequence-numbered segment files
// (fixed extension ".seg"). Records are appended to the active segment under
// a single writer mutex and flushed before Append returns; full scans read
// every segment oldest-first from a fresh cursor and never take the writer
// lock. Reset destructively wipes the directory and reopens it empty.
package store

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"notilog/internal/format"
	"notilog/internal/logging"
	"notilog/internal/record"
)

// SegmentExt is the fixed extension of segment files within the store directory.
const SegmentExt = ".seg"

const (
	lockFileName = ".lock"

	// DefaultSegmentMaxBytes is the rotation threshold for the active segment.
	DefaultSegmentMaxBytes = 16 << 20 // 16 MiB
)

var (
	ErrMissingDir      = errors.New("store dir is required")
	ErrNotADirectory   = errors.New("store path is not a directory")
	ErrDirectoryLocked = errors.New("store directory is locked by another instance")
	ErrStoreClosed     = errors.New("store is closed")

	// ErrReset marks a failed reset. The store is poisoned afterwards: the
	// directory may be partially deleted and the instance must be discarded.
	ErrReset = errors.New("store reset failed")
)

// Config holds store configuration.
type Config struct {
	// Dir is the directory holding the segment files. Created if absent.
	Dir string

	// FileMode for created files. Defaults to 0o644.
	FileMode os.FileMode

	// SegmentMaxBytes is the rotation threshold for the active segment.
	// A segment always accepts at least one record regardless of size.
	// Defaults to DefaultSegmentMaxBytes.
	SegmentMaxBytes int64

	// Compression enables zstd compression of sealed segments at rotation time.
	Compression bool

	// Logger for structured logging. If nil, logging is disabled.
	// The store scopes this logger with component="store".
	Logger *slog.Logger
}

// segmentMeta is in-memory metadata for one segment, rebuilt from the files
// at open time.
type segmentMeta struct {
	seq        uint64
	path       string
	records    uint64
	sealed     bool
	compressed bool
}

// Store is the append-only record log over one directory of segment files.
//
// The mutex serializes Append, Reset and Close. Scans deliberately run
// outside it: segment bytes are never mutated once written, so a concurrent
// reader can at worst miss a record that was still in flight.
type Store struct {
	mu       sync.Mutex
	cfg      Config
	lockFile *os.File // exclusive flock on the store directory
	segs     []*segmentMeta
	active   *os.File // open handle on the unsealed tail segment, nil until first append
	actSize  int64
	nextSeq  uint64
	records  uint64
	closed   bool
	logger   *slog.Logger
}

// Open ensures the directory exists, acquires exclusive ownership of it and
// rebuilds segment metadata from the files found there. Every error from Open
// is fatal to the instance (the directory or log cannot be used).
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, ErrMissingDir
	}
	cfg.FileMode = cmp.Or(cfg.FileMode, 0o644)
	cfg.SegmentMaxBytes = cmp.Or(cfg.SegmentMaxBytes, int64(DefaultSegmentMaxBytes))

	if info, err := os.Stat(cfg.Dir); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, cfg.Dir)
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	// Acquire exclusive lock on the store directory. Two live stores over the
	// same directory would corrupt the append cursor.
	lockPath := filepath.Join(cfg.Dir, lockFileName)
	lockFile, err := os.OpenFile(filepath.Clean(lockPath), os.O_CREATE|os.O_RDWR, cfg.FileMode)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = lockFile.Close()
		return nil, fmt.Errorf("%w: %s", ErrDirectoryLocked, cfg.Dir)
	}

	logger := logging.Default(cfg.Logger).With("component", "store")

	s := &Store{
		cfg:      cfg,
		lockFile: lockFile,
		nextSeq:  1,
		logger:   logger,
	}
	if err := s.loadExisting(); err != nil {
		_ = lockFile.Close()
		return nil, err
	}

	logger.Info("store opened", "dir", cfg.Dir, "segments", len(s.segs), "records", s.records)
	return s, nil
}

// loadExisting rebuilds segment metadata by scanning the directory.
// The unsealed tail segment, if any, is truncated past any partially written
// trailing frame and reopened for append.
func (s *Store) loadExisting() error {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return fmt.Errorf("read store dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), SegmentExt) {
			continue
		}
		seq, err := parseSegmentName(entry.Name())
		if err != nil {
			s.logger.Warn("ignoring unrecognized file in store dir", "name", entry.Name())
			continue
		}
		meta, err := s.inspectSegment(filepath.Join(s.cfg.Dir, entry.Name()), seq)
		if err != nil {
			return fmt.Errorf("inspect segment %s: %w", entry.Name(), err)
		}
		s.segs = append(s.segs, meta)
	}

	sort.Slice(s.segs, func(i, j int) bool { return s.segs[i].seq < s.segs[j].seq })

	for _, meta := range s.segs {
		s.records += meta.records
		if meta.seq >= s.nextSeq {
			s.nextSeq = meta.seq + 1
		}
	}

	// Reopen the tail segment for append if it is still unsealed. Opened
	// without O_APPEND: sealing rewrites the header flags via WriteAt, which
	// Go forbids on append-mode files. The writer mutex makes the explicit
	// seek safe.
	if n := len(s.segs); n > 0 && !s.segs[n-1].sealed {
		tail := s.segs[n-1]
		f, err := os.OpenFile(tail.path, os.O_WRONLY, s.cfg.FileMode)
		if err != nil {
			return fmt.Errorf("reopen tail segment: %w", err)
		}
		size, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			_ = f.Close()
			return err
		}
		s.active = f
		s.actSize = size
	}
	return nil
}

// inspectSegment validates a segment header and counts its records.
// An unsealed segment with a partially written trailing frame is truncated
// back to its last complete frame.
func (s *Store) inspectSegment(path string, seq uint64) (*segmentMeta, error) {
	r, err := openSegmentReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	meta := &segmentMeta{
		seq:        seq,
		path:       path,
		sealed:     r.header.Flags&format.FlagSealed != 0,
		compressed: r.header.Flags&format.FlagCompressed != 0,
	}
	for {
		_, err := r.Next()
		if errors.Is(err, errEndOfSegment) {
			break
		}
		if err != nil {
			return nil, err
		}
		meta.records++
	}

	if !meta.sealed && !meta.compressed {
		if info, statErr := os.Stat(path); statErr == nil && info.Size() > r.offset {
			s.logger.Warn("truncating partial trailing frame", "segment", path,
				"size", info.Size(), "valid", r.offset)
			if err := os.Truncate(path, r.offset); err != nil {
				return nil, fmt.Errorf("truncate segment: %w", err)
			}
		}
	}
	return meta, nil
}

// Append durably writes one record and returns its zero-based position in
// the log. The write is flushed before Append returns.
func (s *Store) Append(rec record.Record) (uint64, error) {
	frame, err := encodeFrame(rec)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	if s.active != nil && s.actSize > format.HeaderSize &&
		s.actSize+int64(len(frame)) > s.cfg.SegmentMaxBytes {
		if err := s.rotateLocked(); err != nil {
			return 0, err
		}
	}
	if s.active == nil {
		if err := s.openSegmentLocked(); err != nil {
			return 0, err
		}
	}

	if _, err := s.active.Write(frame); err != nil {
		return 0, fmt.Errorf("append record: %w", err)
	}
	if err := s.active.Sync(); err != nil {
		return 0, fmt.Errorf("sync segment: %w", err)
	}

	s.actSize += int64(len(frame))
	s.segs[len(s.segs)-1].records++
	pos := s.records
	s.records++
	return pos, nil
}

// openSegmentLocked creates a fresh active segment. Caller holds s.mu.
func (s *Store) openSegmentLocked() error {
	name := segmentName(s.nextSeq)
	path := filepath.Join(s.cfg.Dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, s.cfg.FileMode)
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}

	hdr := format.Header{Type: format.TypeSegment, Version: frameVersion}.Encode()
	if _, err := f.Write(hdr[:]); err != nil {
		_ = f.Close()
		return fmt.Errorf("write segment header: %w", err)
	}

	s.segs = append(s.segs, &segmentMeta{seq: s.nextSeq, path: path})
	s.active = f
	s.actSize = format.HeaderSize
	s.nextSeq++
	s.logger.Debug("segment opened", "name", name)
	return nil
}

// rotateLocked seals the active segment and leaves the store ready to open a
// new one on the next append. Caller holds s.mu.
func (s *Store) rotateLocked() error {
	meta := s.segs[len(s.segs)-1]

	// Set the sealed flag in place; existing record bytes are never touched.
	flags := byte(format.FlagSealed)
	if _, err := s.active.WriteAt([]byte{flags}, 3); err != nil {
		return fmt.Errorf("seal segment: %w", err)
	}
	if err := s.active.Close(); err != nil {
		return fmt.Errorf("close segment: %w", err)
	}
	s.active = nil
	s.actSize = 0
	meta.sealed = true

	if s.cfg.Compression {
		if err := compressSegment(meta.path, s.cfg.FileMode); err != nil {
			return fmt.Errorf("compress segment: %w", err)
		}
		meta.compressed = true
	}

	s.logger.Info("segment sealed", "path", meta.path, "records", meta.records,
		"compressed", meta.compressed)
	return nil
}

// Reset closes the log, deletes every file under the directory and reopens
// it empty. A deletion failure partway leaves the directory in an undefined
// state; the store is poisoned and the error wraps ErrReset.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if s.active != nil {
		_ = s.active.Close()
		s.active = nil
		s.actSize = 0
	}

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		s.closed = true
		return fmt.Errorf("%w: read dir: %v", ErrReset, err)
	}
	for _, entry := range entries {
		if entry.Name() == lockFileName {
			continue // the held directory lock survives the wipe
		}
		if err := os.RemoveAll(filepath.Join(s.cfg.Dir, entry.Name())); err != nil {
			s.closed = true
			return fmt.Errorf("%w: remove %s: %v", ErrReset, entry.Name(), err)
		}
	}

	s.segs = nil
	s.records = 0
	s.nextSeq = 1
	s.logger.Info("store reset", "dir", s.cfg.Dir)
	return nil
}

// Close releases the active segment and the directory lock. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.active != nil {
		firstErr = s.active.Close()
		s.active = nil
	}
	if s.lockFile != nil {
		_ = syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
		if err := s.lockFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.lockFile = nil
	}
	s.logger.Info("store closed", "dir", s.cfg.Dir)
	return firstErr
}

// Dir returns the store directory path.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

// RecordCount returns the number of records in the log.
func (s *Store) RecordCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

// DiskStats describes the externally observable state of the store directory.
type DiskStats struct {
	Exists       bool
	SegmentFiles int
	TotalBytes   int64
	LastModified time.Time
}

// DiskStats reports segment file count, total on-disk bytes and the
// directory's last-modified time. It reads the filesystem directly and does
// not take the writer lock.
func (s *Store) DiskStats() (DiskStats, error) {
	info, err := os.Stat(s.cfg.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return DiskStats{}, nil
	}
	if err != nil {
		return DiskStats{}, err
	}

	stats := DiskStats{Exists: true, LastModified: info.ModTime()}
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return DiskStats{}, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), SegmentExt) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		stats.SegmentFiles++
		stats.TotalBytes += fi.Size()
	}
	return stats, nil
}

func segmentName(seq uint64) string {
	return fmt.Sprintf("%016d%s", seq, SegmentExt)
}

func parseSegmentName(name string) (uint64, error) {
	base := strings.TrimSuffix(name, SegmentExt)
	return strconv.ParseUint(base, 10, 64)
}
