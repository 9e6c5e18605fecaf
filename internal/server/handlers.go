package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/session"
	"github.com/ppiankov/veritas/internal/sink"
)

// VerifyRequest is the body of /v1/verify and /v1/enforce
type VerifyRequest struct {
	Text string `json:"text"`
	pipeline.Options
}

// EnhancedRequest is the body of /v1/verify/enhanced
type EnhancedRequest struct {
	Text string `json:"text"`
	pipeline.EnhancedOptions
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decode(w, r, &req) {
		return
	}

	result := s.engine.Verify(r.Context(), req.Text, req.Options)
	s.record(w, r, sink.KindVerify, sink.Pair{Verification: result})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleVerifyEnhanced(w http.ResponseWriter, r *http.Request) {
	var req EnhancedRequest
	if !decode(w, r, &req) {
		return
	}

	result := s.engine.VerifyEnhanced(r.Context(), req.Text, req.EnhancedOptions)
	s.record(w, r, sink.KindEnhanced, sink.Pair{Verification: result.VerificationResult})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEnforce(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decode(w, r, &req) {
		return
	}

	result := s.engine.Enforce(r.Context(), req.Text, req.Options)
	s.record(w, r, sink.KindEnforce, sink.Pair{Verification: result.VerificationResult, Enforcement: &result})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Sessions()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "review sessions are disabled")
		return
	}
	sessions := store.List()
	if sessions == nil {
		sessions = []session.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Sessions()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "review sessions are disabled")
		return
	}

	sess, err := store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Sessions()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "review sessions are disabled")
		return
	}

	var fb session.Feedback
	if !decode(w, r, &fb) {
		return
	}

	sess, err := store.Complete(chi.URLParam(r, "id"), fb)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "result sink is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.records.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []sink.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "result sink is disabled")
		return
	}

	rec, err := s.records.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sink.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// record seals the run when a sink is configured. Sink failures never fail
// the request.
func (s *Server) record(w http.ResponseWriter, r *http.Request, kind string, pair sink.Pair) {
	if s.records == nil {
		return
	}
	rec, err := s.records.Append(r.Context(), kind, "http", pair)
	if err != nil {
		s.logger.Warn("sink append failed", "kind", kind, "error", err)
		return
	}
	w.Header().Set(RunIDHeader, rec.ID)
}

// decode reads a JSON body, writing a 400 on failure
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: strings.TrimSpace(msg)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
