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

const analysisColumns = `a.id, a.lead_id, a.quality_score, a.status, a.priority, a.issues_json,
	a.overall_assessment, a.key_takeaways_json, a.conversation_snapshot, a.message_count,
	a.user_feedback, a.agreed_with_sophie, a.learnings_created_json, a.version,
	a.created_at, a.updated_at, a.reviewed_at,
	l.id, l.first_name, l.last_name, l.status`

// CreateAnalysis inserts a scored analysis. Version starts at 1.
func (d *Database) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	if a == nil {
		return fmt.Errorf("analysis cannot be nil")
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	if a.Version == 0 {
		a.Version = 1
	}

	issues, err := json.Marshal(nonNilIssues(a.Issues))
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}
	takeaways, err := json.Marshal(nonNilStrings(a.KeyTakeaways))
	if err != nil {
		return fmt.Errorf("failed to marshal key takeaways: %w", err)
	}
	created, err := json.Marshal(nonNilStrings(a.LearningsCreated))
	if err != nil {
		return fmt.Errorf("failed to marshal learnings: %w", err)
	}

	_, err = d.db.ExecContext(ctx, d.q(`
		INSERT INTO analyses (id, lead_id, quality_score, status, priority, issues_json,
			overall_assessment, key_takeaways_json, conversation_snapshot, message_count,
			user_feedback, agreed_with_sophie, learnings_created_json, version,
			created_at, updated_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.LeadID, a.QualityScore, string(a.Status), string(a.Priority), string(issues),
		a.OverallAssessment, string(takeaways), a.ConversationSnapshot, a.MessageCount,
		nullString(a.UserFeedback), nullBool(a.AgreedWithSophie), string(created), a.Version,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt), formatTimePtr(a.ReviewedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

// GetAnalysis loads one analysis with its lead summary.
func (d *Database) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	return getAnalysis(ctx, d.db, d.q, id)
}

func getAnalysis(ctx context.Context, qr queryer, q func(string) string, id string) (*models.Analysis, error) {
	row := qr.QueryRowContext(ctx, q(`
		SELECT `+analysisColumns+`
		FROM analyses a LEFT JOIN leads l ON l.id = a.lead_id
		WHERE a.id = ?`), id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ListAnalyses returns analyses newest first.
func (d *Database) ListAnalyses(ctx context.Context, filter models.AnalysisFilter) ([]*models.Analysis, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "a.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		where = append(where, "a.priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.MinScore != nil {
		where = append(where, "a.quality_score >= ?")
		args = append(args, *filter.MinScore)
	}
	if filter.MaxScore != nil {
		where = append(where, "a.quality_score <= ?")
		args = append(args, *filter.MaxScore)
	}

	query := `SELECT ` + analysisColumns + ` FROM analyses a LEFT JOIN leads l ON l.id = a.lead_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.created_at DESC, a.id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, d.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []*models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAnalyses returns the number of stored analyses.
func (d *Database) CountAnalyses(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return n, nil
}

// UpdateAnalysis writes the review fields of a when the stored version still
// equals expectedVersion. On success a.Version is advanced.
func (d *Database) UpdateAnalysis(ctx context.Context, a *models.Analysis, expectedVersion int) error {
	return updateAnalysis(ctx, d.db, d.q, a, expectedVersion)
}

// CommitReview persists new learnings and the analysis transition together.
// Nothing is written unless both succeed.
func (d *Database) CommitReview(ctx context.Context, a *models.Analysis, expectedVersion int, learnings []*models.Learning) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, l := range learnings {
			if err := insertLearning(ctx, tx, d.q, l); err != nil {
				return err
			}
		}
		return updateAnalysis(ctx, tx, d.q, a, expectedVersion)
	})
}

func updateAnalysis(ctx context.Context, qr queryer, q func(string) string, a *models.Analysis, expectedVersion int) error {
	if a == nil {
		return fmt.Errorf("analysis cannot be nil")
	}
	created, err := json.Marshal(nonNilStrings(a.LearningsCreated))
	if err != nil {
		return fmt.Errorf("failed to marshal learnings: %w", err)
	}
	now := time.Now().UTC()

	res, err := qr.ExecContext(ctx, q(`
		UPDATE analyses
		SET status = ?, user_feedback = ?, agreed_with_sophie = ?, learnings_created_json = ?,
			reviewed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`),
		string(a.Status), nullString(a.UserFeedback), nullBool(a.AgreedWithSophie), string(created),
		formatTimePtr(a.ReviewedAt), formatTime(now), a.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	if n == 0 {
		var exists int
		err := qr.QueryRowContext(ctx, q(`SELECT 1 FROM analyses WHERE id = ?`), a.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("analysis %s: %w", a.ID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to update analysis: %w", err)
		}
		return fmt.Errorf("analysis %s at version %d: %w", a.ID, expectedVersion, ErrStaleWrite)
	}
	a.Version = expectedVersion + 1
	a.UpdatedAt = now
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	var (
		a                                       models.Analysis
		status, priority                        string
		issues, takeaways, created              string
		createdAt, updatedAt                    string
		feedback, reviewedAt                    sql.NullString
		agreed                                  sql.NullInt64
		leadID, leadFirst, leadLast, leadStatus sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.LeadID, &a.QualityScore, &status, &priority, &issues,
		&a.OverallAssessment, &takeaways, &a.ConversationSnapshot, &a.MessageCount,
		&feedback, &agreed, &created, &a.Version,
		&createdAt, &updatedAt, &reviewedAt,
		&leadID, &leadFirst, &leadLast, &leadStatus,
	)
	if err != nil {
		return nil, err
	}

	a.Status = models.AnalysisStatus(status)
	a.Priority = models.Priority(priority)
	if err := json.Unmarshal([]byte(issues), &a.Issues); err != nil {
		return nil, fmt.Errorf("corrupt issues for analysis %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(takeaways), &a.KeyTakeaways); err != nil {
		return nil, fmt.Errorf("corrupt key takeaways for analysis %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(created), &a.LearningsCreated); err != nil {
		return nil, fmt.Errorf("corrupt learnings for analysis %s: %w", a.ID, err)
	}
	if feedback.Valid {
		s := feedback.String
		a.UserFeedback = &s
	}
	if agreed.Valid {
		b := agreed.Int64 != 0
		a.AgreedWithSophie = &b
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	a.ReviewedAt = parseTimePtr(reviewedAt)
	if leadID.Valid {
		a.Lead = &models.LeadSummary{
			ID:        leadID.String,
			FirstName: leadFirst.String,
			LastName:  leadLast.String,
			Status:    leadStatus.String,
		}
	}
	return &a, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(boolToInt(*b)), Valid: true}
}

func nonNilIssues(in []models.Issue) []models.Issue {
	if in == nil {
		return []models.Issue{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
