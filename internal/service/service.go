// Package service is the facade over the log store: record preparation
// (identifier assignment, initial status), the single-writer discipline, and
// the scan-derived views exposed to the HTTP layer.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"notilog/internal/logging"
	"notilog/internal/query"
	"notilog/internal/record"
	"notilog/internal/store"
)

// DefaultMaxDataBytes is the default capacity threshold for the statistics
// usage computation.
const DefaultMaxDataBytes = 500 << 20 // 500 MiB

// ErrNotReady means the operation was attempted before the store was opened
// or after it was closed. The caller must re-initialize the store.
var ErrNotReady = errors.New("store is not ready")

// Config holds service configuration.
type Config struct {
	// Store is the log store instance. Required; explicitly owned and
	// injected so tests can isolate services over distinct directories.
	Store *store.Store

	// MaxDataBytes is the statistics capacity threshold.
	// Defaults to DefaultMaxDataBytes.
	MaxDataBytes int64

	// Logger for structured logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// Service orchestrates record preparation and the writer discipline on top
// of one Store.
type Service struct {
	store    *store.Store
	capacity int64
	logger   *slog.Logger

	// writeMu is the logical writer lock: one submit, batch or clear at a
	// time, held for the full duration of a batch so it never interleaves
	// with other writers. Released on all exit paths. Reads never take it.
	writeMu sync.Mutex
}

// New creates a Service over the given store.
func New(cfg Config) *Service {
	capacity := cfg.MaxDataBytes
	if capacity <= 0 {
		capacity = DefaultMaxDataBytes
	}
	return &Service{
		store:    cfg.Store,
		capacity: capacity,
		logger:   logging.Default(cfg.Logger).With("component", "service"),
	}
}

// prepare assigns the system-owned fields, overwriting any caller values:
// a fresh random 128-bit unique identifier and the initial status.
func prepare(rec record.Record) record.Record {
	rec.UniqueID = uuid.NewString()
	rec.Status = record.StatusInitialize
	return rec
}

// translate maps store lifecycle errors onto ErrNotReady so callers see one
// "re-initialize the store" class regardless of how the handle died.
func translate(err error) error {
	if errors.Is(err, store.ErrStoreClosed) || errors.Is(err, store.ErrReset) {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return err
}

// Submit prepares and durably appends one record, returning the record as
// persisted (uniqueId and status normalized).
func (s *Service) Submit(rec record.Record) (record.Record, error) {
	if s.store == nil {
		return record.Record{}, ErrNotReady
	}

	prepared := prepare(rec)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.store.Append(prepared); err != nil {
		return record.Record{}, translate(err)
	}
	return prepared, nil
}

// ListAll returns every persisted record, oldest first.
func (s *Service) ListAll() ([]record.Record, error) {
	if s.store == nil {
		return nil, ErrNotReady
	}

	cursor, err := s.store.Scan()
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close()

	records := []record.Record{}
	for {
		rec, err := cursor.Next()
		if errors.Is(err, store.ErrNoMoreRecords) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// Filter returns the records matching every non-empty criterion, oldest
// first. Unknown field names and empty values are ignored.
func (s *Service) Filter(criteria map[string]string) ([]record.Record, error) {
	records, err := s.ListAll()
	if err != nil {
		return nil, err
	}
	return query.Filter(records, criteria), nil
}

// Clear wipes the store directory and reopens it empty. Destructive and
// irreversible; serialized with in-flight writes via the writer lock.
func (s *Service) Clear() error {
	if s.store == nil {
		return ErrNotReady
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Reset(); err != nil {
		if errors.Is(err, store.ErrReset) {
			// Partial deletion: the instance is poisoned, callers must
			// treat this store as gone.
			s.logger.Error("reset failed, store poisoned", "error", err)
			return err
		}
		return translate(err)
	}
	s.logger.Info("store cleared")
	return nil
}

// Info describes the store directory and its contents.
type Info struct {
	Path           string         `json:"path"`
	Exists         bool           `json:"exists"`
	SegmentFiles   int            `json:"segmentFiles"`
	TotalRecords   int            `json:"totalRecords"`
	TotalSizeBytes int64          `json:"totalSizeBytes"`
	LastModified   time.Time      `json:"lastModified"`
	Groups         map[string]int `json:"recordsByState"`
	GroupsByType   map[string]int `json:"recordsByNotificationType"`
}

// Info reports the store path, existence, segment file count, record count,
// grouped counts, on-disk size and last-modified time.
func (s *Service) Info() (Info, error) {
	if s.store == nil {
		return Info{}, ErrNotReady
	}

	stats, err := s.store.DiskStats()
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Path:           s.store.Dir(),
		Exists:         stats.Exists,
		SegmentFiles:   stats.SegmentFiles,
		TotalSizeBytes: stats.TotalBytes,
		LastModified:   stats.LastModified,
	}

	records, err := s.ListAll()
	if err != nil {
		return Info{}, err
	}
	counts := query.Group(records)
	info.TotalRecords = len(records)
	info.Groups = counts.ByState
	info.GroupsByType = counts.ByNotificationType
	return info, nil
}

// Health is the service-up report.
type Health struct {
	ServiceStatus   string         `json:"serviceStatus"`
	Timestamp       time.Time      `json:"timestamp"`
	DirectoryExists bool           `json:"directoryExists"`
	StoreActive     bool           `json:"storeActive"`
	SegmentFiles    int            `json:"segmentFiles"`
	TotalSizeBytes  int64          `json:"totalSizeBytes"`
	TotalRecords    int            `json:"totalRecords"`
	Groups          map[string]int `json:"recordsByState"`
	GroupsByType    map[string]int `json:"recordsByNotificationType"`
}

// Health never fails: when the store handle is dead it reports
// storeActive=false with whatever directory state is still observable.
func (s *Service) Health() Health {
	health := Health{
		ServiceStatus: "UP",
		Timestamp:     time.Now(),
	}
	if s.store == nil {
		return health
	}

	if stats, err := s.store.DiskStats(); err == nil {
		health.DirectoryExists = stats.Exists
		health.SegmentFiles = stats.SegmentFiles
		health.TotalSizeBytes = stats.TotalBytes
	}

	records, err := s.ListAll()
	if err != nil {
		return health
	}
	health.StoreActive = true
	counts := query.Group(records)
	health.TotalRecords = len(records)
	health.Groups = counts.ByState
	health.GroupsByType = counts.ByNotificationType
	return health
}

// Statistics is the capacity usage report. EstimatedBytes is the sum of
// field character lengths — a heuristic, not the on-disk footprint.
type Statistics struct {
	TotalRecords   int     `json:"totalRecords"`
	EstimatedBytes int64   `json:"totalDataSizeBytes"`
	MaxBytes       int64   `json:"maxDataSizeBytes"`
	UsagePercent   float64 `json:"usagePercentage"`
	Status         string  `json:"status"`
}

// Statistics reports record count, estimated data size, configured capacity,
// usage percentage and the derived FULL/AVAILABLE status.
func (s *Service) Statistics() (Statistics, error) {
	records, err := s.ListAll()
	if err != nil {
		return Statistics{}, err
	}

	estimated := query.EstimatedBytes(records)
	percent, status := query.Usage(estimated, s.capacity)
	return Statistics{
		TotalRecords:   len(records),
		EstimatedBytes: estimated,
		MaxBytes:       s.capacity,
		UsagePercent:   percent,
		Status:         status,
	}, nil
}
