package api

import (
	"errors"
	"net/http"

	"github.com/jordanhubbard/convreview/internal/database"
	"github.com/jordanhubbard/convreview/internal/pipeline"
	"github.com/jordanhubbard/convreview/internal/provider"
	"github.com/jordanhubbard/convreview/internal/review"
	"github.com/jordanhubbard/convreview/internal/structured"
)

// ErrMethodNotAllowed is reported for a known path with the wrong verb.
var ErrMethodNotAllowed = errors.New("method not allowed")

// statusForError maps pipeline errors onto HTTP statuses. retryable is set
// for upstream model failures the caller may resubmit.
func statusForError(err error) (status int, retryable bool) {
	var upstream *provider.UpstreamError
	var extraction *structured.ExtractionFailure

	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest, false
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, review.ErrAnalysisClosed),
		errors.Is(err, review.ErrInvalidTransition),
		errors.Is(err, database.ErrStaleWrite):
		return http.StatusConflict, false
	case errors.As(err, &extraction):
		return http.StatusUnprocessableEntity, false
	case errors.As(err, &upstream):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, false
	}
	return http.StatusInternalServerError, false
}
