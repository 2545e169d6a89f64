package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"notilog/internal/record"
	"notilog/internal/service"
	"notilog/internal/store"
)

// maxBodySize bounds request bodies; a batch of records fits comfortably.
const maxBodySize = 8 << 20 // 8 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service/store error classes onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, store.ErrReset):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON parses the request body into v, enforcing the body size limit.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// handleSubmit handles POST /api/queue/record: submit one record.
// Caller-supplied uniqueId/status are ignored.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var rec record.Record
	if !decodeJSON(w, r, &rec) {
		return
	}

	persisted, err := s.svc.Submit(rec)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "record written",
		"record":  persisted,
	})
}

// handleWrite handles POST /api/queue/write: submit an ordered batch.
// Records with missing required fields are skipped and reported per-record.
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var recs []record.Record
	if !decodeJSON(w, r, &recs) {
		return
	}

	results, err := s.svc.SubmitBatch(recs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "records written",
		"results": results,
	})
}

// handleRead handles GET /api/queue/read: full list, oldest first.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.ListAll()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleFilter handles POST /api/queue/filter: field→value criteria.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var criteria map[string]string
	if !decodeJSON(w, r, &criteria) {
		return
	}

	records, err := s.svc.Filter(criteria)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleClear handles POST /api/queue/clear: destructive reset.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Clear(); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "store cleared"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Info()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Health())
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Statistics()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
