package teaching

import "errors"

var (
	// ErrIssueNotFound is returned when issueIndex does not point at an issue.
	ErrIssueNotFound = errors.New("issue not found on analysis")

	// ErrEmptyMessage is returned when the human turn is blank.
	ErrEmptyMessage = errors.New("human message is empty")

	// ErrInvalidHistory is returned when the caller-held dialogue is malformed.
	ErrInvalidHistory = errors.New("invalid dialogue history")

	// ErrHistoryTooShort is returned when saving before enough back-and-forth.
	ErrHistoryTooShort = errors.New("dialogue too short to save a learning")
)
