package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jordanhubbard/convreview/pkg/models"
)

// handleLearnings handles GET /api/v1/learnings
func (s *Server) handleLearnings(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	filter := models.LearningFilter{Category: models.LearningCategory(q.Get("category"))}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		filter.ActiveOnly = active
	}
	if limit, err := optionalInt(q.Get("limit")); err != nil {
		s.respondError(w, http.StatusBadRequest, "limit must be an integer")
		return
	} else if limit != nil {
		filter.Limit = *limit
	}

	learnings, err := s.pipeline.ListLearnings(r.Context(), filter)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if learnings == nil {
		learnings = []*models.Learning{}
	}
	s.respondJSON(w, http.StatusOK, learnings)
}

// handleLearning handles /api/v1/learnings/{id}[/outcome|/deactivate]
func (s *Server) handleLearning(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/v1/learnings/")
	if len(parts) == 0 || len(parts) > 2 {
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		if !s.requireMethod(w, r, http.MethodGet) {
			return
		}
		l, err := s.pipeline.GetLearning(r.Context(), id)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, l)
		return
	}

	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	switch parts[1] {
	case "outcome":
		var req struct {
			Correct *bool `json:"correct"`
		}
		if err := s.parseJSON(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Correct == nil {
			s.respondError(w, http.StatusBadRequest, "correct is required")
			return
		}
		l, err := s.pipeline.RecordOutcome(r.Context(), id, *req.Correct)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, l)
	case "deactivate":
		l, err := s.pipeline.DeactivateLearning(r.Context(), id)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, l)
	default:
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Unknown learning action %q", parts[1]))
	}
}

// handlePromptSuggestions handles GET /api/v1/prompt-suggestions
func (s *Server) handlePromptSuggestions(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	report, err := s.pipeline.Suggestions(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}
