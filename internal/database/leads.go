package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jordanhubbard/convreview/pkg/models"
)

const leadColumns = `id, first_name, last_name, status, conversation_text, last_message_at, updated_at`

// UpsertLead mirrors a lead from the lead-management store.
func (d *Database) UpsertLead(ctx context.Context, l *models.Lead) error {
	if l == nil {
		return fmt.Errorf("lead cannot be nil")
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now().UTC()
	}
	_, err := d.db.ExecContext(ctx, d.q(`
		INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			status = excluded.status,
			conversation_text = excluded.conversation_text,
			last_message_at = excluded.last_message_at,
			updated_at = excluded.updated_at`),
		l.ID, l.FirstName, l.LastName, l.Status, l.ConversationText,
		formatTimePtr(l.LastMessageAt), formatTime(l.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lead: %w", err)
	}
	return nil
}

// GetLead loads one lead by ID.
func (d *Database) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	row := d.db.QueryRowContext(ctx, d.q(`SELECT `+leadColumns+` FROM leads WHERE id = ?`), id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

// ListUnanalyzedLeads returns leads with a transcript, touched at or after
// since, that have never been analysed. Most recently updated first.
func (d *Database) ListUnanalyzedLeads(ctx context.Context, since time.Time, limit int) ([]*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads
		WHERE conversation_text <> '' AND updated_at >= ?
		AND NOT EXISTS (SELECT 1 FROM analyses a WHERE a.lead_id = leads.id)
		ORDER BY updated_at DESC, id ASC`
	args := []any{formatTime(since)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, d.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unanalyzed leads: %w", err)
	}
	defer rows.Close()

	var out []*models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var (
		l             models.Lead
		lastMessageAt sql.NullString
		updatedAt     string
	)
	if err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Status, &l.ConversationText, &lastMessageAt, &updatedAt); err != nil {
		return nil, err
	}
	l.LastMessageAt = parseTimePtr(lastMessageAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}
