package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/convreview/pkg/config"
	"github.com/jordanhubbard/convreview/pkg/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedLead(t *testing.T, db *Database, id string, updated time.Time) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		ID:               id,
		FirstName:        "Ada",
		LastName:         "Lovelace",
		Status:           "contacted",
		ConversationText: "[10:00 01/03/2024] Sophie: Hello\n[10:05 01/03/2024] Ada: Hi",
		UpdatedAt:        updated,
	}
	require.NoError(t, db.UpsertLead(context.Background(), lead))
	return lead
}

func newAnalysis(id, leadID string, score int, created time.Time) *models.Analysis {
	return &models.Analysis{
		ID:           id,
		LeadID:       leadID,
		QualityScore: score,
		Status:       models.AnalysisStatusPendingReview,
		Priority:     models.PriorityCritical,
		Issues: []models.Issue{{
			IssueType:    models.IssueTooPushy,
			MessageIndex: 1,
			Explanation:  "pushed for a call",
		}},
		OverallAssessment: "poor",
		KeyTakeaways:      []string{"slow down"},
		MessageCount:      2,
		CreatedAt:         created,
	}
}

func newLearning(id string, category models.LearningCategory, created time.Time) *models.Learning {
	return &models.Learning{
		ID:              id,
		Category:        category,
		Title:           "Acknowledge the price first",
		DoThis:          "acknowledge",
		DontDoThis:      "ignore",
		Priority:        models.PriorityHigh,
		ConfidenceScore: 1.0,
		TimesIncorrect:  1,
		IsActive:        true,
		Source:          models.SourceTeachingDialogue,
		OriginalIssue:   models.IssueIgnoredObjection,
		DialogueTranscript: []models.DialogueTurn{
			{Role: models.RoleHuman, Message: "wrong", Timestamp: created},
			{Role: models.RoleAgent, Message: "why?", Timestamp: created},
		},
		ConversationExamples: []string{"a-1"},
		CreatedAt:            created,
	}
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Type: "mysql"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1", rebind("SELECT 1"))
}

func TestAnalysis_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedLead(t, db, "lead-1", now)

	a := newAnalysis("a-1", "lead-1", 42, now)
	require.NoError(t, db.CreateAnalysis(ctx, a))
	assert.Equal(t, 1, a.Version)

	got, err := db.GetAnalysis(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 42, got.QualityScore)
	assert.Equal(t, models.AnalysisStatusPendingReview, got.Status)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, models.IssueTooPushy, got.Issues[0].IssueType)
	assert.Equal(t, []string{"slow down"}, got.KeyTakeaways)
	assert.Empty(t, got.LearningsCreated)
	assert.Nil(t, got.UserFeedback)
	assert.Nil(t, got.AgreedWithSophie)
	require.NotNil(t, got.Lead)
	assert.Equal(t, "Ada", got.Lead.FirstName)
	assert.True(t, got.CreatedAt.Equal(a.CreatedAt))
}

func TestAnalysis_GetMissing(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetAnalysis(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAnalysis_ListFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	seedLead(t, db, "lead-1", base)

	scores := []int{30, 55, 85}
	for i, score := range scores {
		a := newAnalysis("a-"+string(rune('1'+i)), "lead-1", score, base.Add(time.Duration(i)*time.Minute))
		if score >= 50 {
			a.Status = models.AnalysisStatusReviewed
		}
		require.NoError(t, db.CreateAnalysis(ctx, a))
	}

	all, err := db.ListAnalyses(ctx, models.AnalysisFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a-3", all[0].ID, "newest first")

	pending, err := db.ListAnalyses(ctx, models.AnalysisFilter{Status: models.AnalysisStatusPendingReview})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 30, pending[0].QualityScore)

	minScore, maxScore := 50, 90
	ranged, err := db.ListAnalyses(ctx, models.AnalysisFilter{MinScore: &minScore, MaxScore: &maxScore})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	limited, err := db.ListAnalyses(ctx, models.AnalysisFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := db.CountAnalyses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAnalysis_UpdateVersioning(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := newAnalysis("a-1", "lead-1", 40, time.Now().UTC())
	require.NoError(t, db.CreateAnalysis(ctx, a))

	feedback := "spot on"
	agreed := true
	reviewed := time.Now().UTC()
	a.Status = models.AnalysisStatusReviewed
	a.UserFeedback = &feedback
	a.AgreedWithSophie = &agreed
	a.ReviewedAt = &reviewed
	require.NoError(t, db.UpdateAnalysis(ctx, a, 1))
	assert.Equal(t, 2, a.Version)

	got, err := db.GetAnalysis(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, models.AnalysisStatusReviewed, got.Status)
	require.NotNil(t, got.AgreedWithSophie)
	assert.True(t, *got.AgreedWithSophie)
	require.NotNil(t, got.ReviewedAt)

	// A writer still holding version 1 loses.
	err = db.UpdateAnalysis(ctx, a, 1)
	assert.True(t, errors.Is(err, ErrStaleWrite))

	missing := newAnalysis("ghost", "lead-1", 10, time.Now())
	err = db.UpdateAnalysis(ctx, missing, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCommitReview(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	a := newAnalysis("a-1", "lead-1", 40, now)
	require.NoError(t, db.CreateAnalysis(ctx, a))

	l := newLearning("l-1", models.CategoryPriceObjection, now)
	a.Status = models.AnalysisStatusReviewed
	a.LearningsCreated = []string{l.ID}
	require.NoError(t, db.CommitReview(ctx, a, 1, []*models.Learning{l}))

	got, err := db.GetAnalysis(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"l-1"}, got.LearningsCreated)
	_, err = db.GetLearning(ctx, "l-1")
	require.NoError(t, err)
}

func TestCommitReview_StaleRollsBackLearnings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	a := newAnalysis("a-1", "lead-1", 40, now)
	require.NoError(t, db.CreateAnalysis(ctx, a))

	a.Status = models.AnalysisStatusReviewed
	err := db.CommitReview(ctx, a, 7, []*models.Learning{newLearning("l-1", models.CategoryOther, now)})
	require.True(t, errors.Is(err, ErrStaleWrite))

	_, err = db.GetLearning(ctx, "l-1")
	assert.True(t, errors.Is(err, ErrNotFound))
	got, err := db.GetAnalysis(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPendingReview, got.Status)
}

func TestLearning_CreateGetList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, db.CreateLearning(ctx, newLearning("l-1", models.CategoryPriceObjection, base)))
	require.NoError(t, db.CreateLearning(ctx, newLearning("l-2", models.CategoryTrustConcern, base.Add(time.Minute))))
	inactive := newLearning("l-3", models.CategoryPriceObjection, base.Add(2*time.Minute))
	inactive.IsActive = false
	require.NoError(t, db.CreateLearning(ctx, inactive))

	got, err := db.GetLearning(ctx, "l-1")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPriceObjection, got.Category)
	assert.Equal(t, models.SourceTeachingDialogue, got.Source)
	assert.Equal(t, models.IssueIgnoredObjection, got.OriginalIssue)
	require.Len(t, got.DialogueTranscript, 2)
	assert.Equal(t, models.RoleHuman, got.DialogueTranscript[0].Role)
	assert.Equal(t, []string{"a-1"}, got.ConversationExamples)
	assert.InDelta(t, 1.0, got.ConfidenceScore, 1e-9)

	all, err := db.ListLearnings(ctx, models.LearningFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "l-1", all[0].ID, "oldest first")

	active, err := db.ListLearnings(ctx, models.LearningFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	price, err := db.ListLearnings(ctx, models.LearningFilter{Category: models.CategoryPriceObjection})
	require.NoError(t, err)
	assert.Len(t, price, 2)
}

func TestLearning_UpdateVersioning(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	l := newLearning("l-1", models.CategoryOther, time.Now().UTC())
	require.NoError(t, db.CreateLearning(ctx, l))

	l.IsActive = false
	l.TimesApplied = 4
	l.LastUpdated = time.Now().UTC()
	require.NoError(t, db.UpdateLearning(ctx, l, 1))
	assert.Equal(t, 2, l.Version)

	got, err := db.GetLearning(ctx, "l-1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, 4, got.TimesApplied)
	assert.Equal(t, 2, got.Version)

	assert.True(t, errors.Is(db.UpdateLearning(ctx, l, 1), ErrStaleWrite))

	ghost := newLearning("ghost", models.CategoryOther, time.Now())
	assert.True(t, errors.Is(db.UpdateLearning(ctx, ghost, 1), ErrNotFound))
}

func TestLeads_Unanalyzed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedLead(t, db, "recent", now.Add(-time.Hour))
	seedLead(t, db, "analysed", now.Add(-2*time.Hour))
	seedLead(t, db, "old", now.Add(-60*24*time.Hour))
	require.NoError(t, db.UpsertLead(ctx, &models.Lead{ID: "empty", UpdatedAt: now}))
	require.NoError(t, db.CreateAnalysis(ctx, newAnalysis("a-1", "analysed", 70, now)))

	leads, err := db.ListUnanalyzedLeads(ctx, now.Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "recent", leads[0].ID)

	got, err := db.GetLead(ctx, "recent")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Name())

	// Upsert overwrites in place.
	got.Status = "booked"
	require.NoError(t, db.UpsertLead(ctx, got))
	again, err := db.GetLead(ctx, "recent")
	require.NoError(t, err)
	assert.Equal(t, "booked", again.Status)

	_, err = db.GetLead(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgres_Smoke(t *testing.T) {
	dsn := os.Getenv("CONVREVIEW_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CONVREVIEW_POSTGRES_DSN not set")
	}
	db, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	id := "pg-" + time.Now().Format("150405.000000000")
	a := newAnalysis(id, "lead-pg", 61, time.Now().UTC())
	require.NoError(t, db.CreateAnalysis(ctx, a))
	a.Status = models.AnalysisStatusDismissed
	require.NoError(t, db.UpdateAnalysis(ctx, a, 1))

	got, err := db.GetAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusDismissed, got.Status)
	assert.Equal(t, 2, got.Version)
}
