package service

import (
	"errors"
	"fmt"

	"notilog/internal/record"
	"notilog/internal/store"
)

// Outcome tags one record's fate within a batch. The batch loop branches on
// the tag: skips and per-record append failures are recovered locally, fatal
// store errors abort the batch.
type Outcome int

const (
	OutcomeAppended Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// MarshalText makes outcomes render as their names in JSON responses.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// BatchResult reports what happened to one batch member.
type BatchResult struct {
	Index    int      `json:"index"`
	Outcome  Outcome  `json:"outcome"`
	UniqueID string   `json:"uniqueId,omitempty"`
	Missing  []string `json:"missingFields,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// SubmitBatch prepares and appends the records in input order under one
// writer-lock hold, so the batch never interleaves with other writers.
// The batch is not atomic: a failure on record k does not roll back records
// 1..k-1.
//
// Records missing required fields are skipped and reported per-record, never
// as a batch failure. A per-record append failure is logged and processing
// continues, unless the store handle itself is dead — then the batch aborts
// and the error propagates with the results accumulated so far.
func (s *Service) SubmitBatch(recs []record.Record) ([]BatchResult, error) {
	if s.store == nil {
		return nil, ErrNotReady
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.logger.Info("batch write started", "records", len(recs))

	results := make([]BatchResult, 0, len(recs))
	for i, rec := range recs {
		if missing := rec.Missing(); len(missing) > 0 {
			s.logger.Warn("skipping record with missing fields", "index", i, "missing", missing)
			results = append(results, BatchResult{Index: i, Outcome: OutcomeSkipped, Missing: missing})
			continue
		}

		prepared := prepare(rec)
		if _, err := s.store.Append(prepared); err != nil {
			if fatal(err) {
				s.logger.Error("batch aborted, store handle is dead", "index", i, "error", err)
				return results, fmt.Errorf("batch aborted at record %d: %w", i, translate(err))
			}
			s.logger.Error("record append failed", "index", i, "id", rec.ID, "error", err)
			results = append(results, BatchResult{Index: i, Outcome: OutcomeFailed, Error: err.Error()})
			continue
		}
		results = append(results, BatchResult{Index: i, Outcome: OutcomeAppended, UniqueID: prepared.UniqueID})
	}

	s.logger.Info("batch write finished", "records", len(recs))
	return results, nil
}

// fatal classifies unrecoverable append faults: the log handle is invalid
// and no further record of this batch can succeed.
func fatal(err error) bool {
	return errors.Is(err, store.ErrStoreClosed) || errors.Is(err, store.ErrReset)
}
