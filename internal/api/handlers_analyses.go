package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jordanhubbard/convreview/internal/pipeline"
	"github.com/jordanhubbard/convreview/internal/review"
	"github.com/jordanhubbard/convreview/pkg/models"
)

// handleAnalyze handles POST /api/v1/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	var req pipeline.BatchRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.batch.AnalyzeBatch(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleBaseline handles POST /api/v1/baseline
func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		DaysBack int `json:"daysBack"`
	}
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.batch.EnsureBaselineAnalysis(r.Context(), req.DaysBack)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleAnalyses handles GET /api/v1/analyses
func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	filter := models.AnalysisFilter{
		Status:   models.AnalysisStatus(q.Get("status")),
		Priority: models.Priority(q.Get("priority")),
	}
	var err error
	if filter.MinScore, err = optionalInt(q.Get("minScore")); err != nil {
		s.respondError(w, http.StatusBadRequest, "minScore must be an integer")
		return
	}
	if filter.MaxScore, err = optionalInt(q.Get("maxScore")); err != nil {
		s.respondError(w, http.StatusBadRequest, "maxScore must be an integer")
		return
	}
	if limit, err := optionalInt(q.Get("limit")); err != nil {
		s.respondError(w, http.StatusBadRequest, "limit must be an integer")
		return
	} else if limit != nil {
		filter.Limit = *limit
	}

	analyses, err := s.pipeline.ListAnalyses(r.Context(), filter)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if analyses == nil {
		analyses = []*models.Analysis{}
	}
	s.respondJSON(w, http.StatusOK, analyses)
}

// reviewRequest is the body of agree, dismiss and event calls
type reviewRequest struct {
	Feedback        string `json:"feedback"`
	Reason          string `json:"reason"`
	Event           string `json:"event"`
	Note            string `json:"note"`
	ExpectedVersion *int   `json:"expectedVersion"`
}

// handleAnalysis handles /api/v1/analyses/{id}[/agree|/dismiss|/events]
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/v1/analyses/")
	if len(parts) == 0 || len(parts) > 2 {
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		if !s.requireMethod(w, r, http.MethodGet) {
			return
		}
		a, err := s.pipeline.GetAnalysis(r.Context(), id)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, a)
		return
	}

	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req reviewRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch parts[1] {
	case "agree":
		result, err := s.pipeline.Agree(r.Context(), id, req.Feedback, req.ExpectedVersion)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, result)
	case "dismiss":
		a, err := s.pipeline.Dismiss(r.Context(), id, req.Reason, req.ExpectedVersion)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, a)
	case "events":
		if req.Event == "" {
			s.respondError(w, http.StatusBadRequest, "event is required")
			return
		}
		a, err := s.pipeline.ApplyEvent(r.Context(), id, review.Event(req.Event), req.Note, req.ExpectedVersion)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, a)
	default:
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Unknown analysis action %q", parts[1]))
	}
}

func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
