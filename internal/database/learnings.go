package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jordanhubbard/convreview/pkg/models"
)

const learningColumns = `id, category, title, user_guidance, do_this, dont_do_this, priority,
	confidence_score, times_applied, times_correct, times_incorrect, version, is_active, source,
	original_issue, dialogue_transcript_json, conversation_examples_json, last_updated, created_at`

// CreateLearning inserts a new learning record.
func (d *Database) CreateLearning(ctx context.Context, l *models.Learning) error {
	return insertLearning(ctx, d.db, d.q, l)
}

func insertLearning(ctx context.Context, qr queryer, q func(string) string, l *models.Learning) error {
	if l == nil {
		return fmt.Errorf("learning cannot be nil")
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.LastUpdated.IsZero() {
		l.LastUpdated = l.CreatedAt
	}
	if l.Version == 0 {
		l.Version = 1
	}

	transcript, examples, err := marshalLearningJSON(l)
	if err != nil {
		return err
	}

	_, err = qr.ExecContext(ctx, q(`
		INSERT INTO learnings (`+learningColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		l.ID, string(l.Category), l.Title, l.UserGuidance, l.DoThis, l.DontDoThis, string(l.Priority),
		l.ConfidenceScore, l.TimesApplied, l.TimesCorrect, l.TimesIncorrect, l.Version,
		boolToInt(l.IsActive), string(l.Source), string(l.OriginalIssue), transcript, examples,
		formatTime(l.LastUpdated), formatTime(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create learning: %w", err)
	}
	return nil
}

// GetLearning loads one learning by ID.
func (d *Database) GetLearning(ctx context.Context, id string) (*models.Learning, error) {
	row := d.db.QueryRowContext(ctx, d.q(`SELECT `+learningColumns+` FROM learnings WHERE id = ?`), id)
	l, err := scanLearning(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("learning %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning: %w", err)
	}
	return l, nil
}

// ListLearnings returns learnings oldest first so consumers see a stable order.
func (d *Database) ListLearnings(ctx context.Context, filter models.LearningFilter) ([]*models.Learning, error) {
	var where []string
	var args []any
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}

	query := `SELECT ` + learningColumns + ` FROM learnings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, d.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list learnings: %w", err)
	}
	defer rows.Close()

	var out []*models.Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learning: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateLearning rewrites the mutable fields of l when the stored version
// still equals expectedVersion. l.Version is set to the new stored version.
func (d *Database) UpdateLearning(ctx context.Context, l *models.Learning, expectedVersion int) error {
	if l == nil {
		return fmt.Errorf("learning cannot be nil")
	}
	transcript, examples, err := marshalLearningJSON(l)
	if err != nil {
		return err
	}
	if l.LastUpdated.IsZero() {
		l.LastUpdated = time.Now().UTC()
	}

	res, err := d.db.ExecContext(ctx, d.q(`
		UPDATE learnings
		SET category = ?, title = ?, user_guidance = ?, do_this = ?, dont_do_this = ?, priority = ?,
			confidence_score = ?, times_applied = ?, times_correct = ?, times_incorrect = ?,
			is_active = ?, dialogue_transcript_json = ?, conversation_examples_json = ?,
			last_updated = ?, version = ?
		WHERE id = ? AND version = ?`),
		string(l.Category), l.Title, l.UserGuidance, l.DoThis, l.DontDoThis, string(l.Priority),
		l.ConfidenceScore, l.TimesApplied, l.TimesCorrect, l.TimesIncorrect,
		boolToInt(l.IsActive), transcript, examples,
		formatTime(l.LastUpdated), expectedVersion+1, l.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update learning: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update learning: %w", err)
	}
	if n == 0 {
		if _, err := d.GetLearning(ctx, l.ID); err != nil {
			return err
		}
		return fmt.Errorf("learning %s at version %d: %w", l.ID, expectedVersion, ErrStaleWrite)
	}
	l.Version = expectedVersion + 1
	return nil
}

func marshalLearningJSON(l *models.Learning) (string, string, error) {
	turns := l.DialogueTranscript
	if turns == nil {
		turns = []models.DialogueTurn{}
	}
	transcript, err := json.Marshal(turns)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal dialogue transcript: %w", err)
	}
	examples, err := json.Marshal(nonNilStrings(l.ConversationExamples))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal conversation examples: %w", err)
	}
	return string(transcript), string(examples), nil
}

func scanLearning(row rowScanner) (*models.Learning, error) {
	var (
		l                          models.Learning
		category, priority, source string
		originalIssue              string
		transcript, examples       string
		lastUpdated, createdAt     string
		isActive                   int
	)
	err := row.Scan(
		&l.ID, &category, &l.Title, &l.UserGuidance, &l.DoThis, &l.DontDoThis, &priority,
		&l.ConfidenceScore, &l.TimesApplied, &l.TimesCorrect, &l.TimesIncorrect, &l.Version, &isActive, &source,
		&originalIssue, &transcript, &examples, &lastUpdated, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	l.Category = models.LearningCategory(category)
	l.Priority = models.Priority(priority)
	l.Source = models.LearningSource(source)
	l.OriginalIssue = models.IssueType(originalIssue)
	l.IsActive = isActive != 0
	if err := json.Unmarshal([]byte(transcript), &l.DialogueTranscript); err != nil {
		return nil, fmt.Errorf("corrupt transcript for learning %s: %w", l.ID, err)
	}
	if err := json.Unmarshal([]byte(examples), &l.ConversationExamples); err != nil {
		return nil, fmt.Errorf("corrupt examples for learning %s: %w", l.ID, err)
	}
	l.LastUpdated = parseTime(lastUpdated)
	l.CreatedAt = parseTime(createdAt)
	return &l, nil
}
