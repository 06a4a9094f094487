package api

import (
	"net/http"

	"github.com/jordanhubbard/convreview/internal/pipeline"
)

// handleTeachingDialogue handles POST /api/v1/teaching-dialogue. The caller
// holds the dialogue and sends the full history with every call.
func (s *Server) handleTeachingDialogue(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	var req pipeline.TeachRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := s.pipeline.Teach(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}
