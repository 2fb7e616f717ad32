package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issuetracker/internal/models"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// runConformance exercises the Store contract. newStore must return an empty,
// migrated store.
func runConformance(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InsertAssignsIDAndTimestamps", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		issue := &models.Issue{Project: "apollo", Title: "t", Text: "x", CreatedBy: "me", Open: true}
		require.NoError(t, s.InsertIssue(ctx, issue))
		assert.False(t, issue.ID.IsZero())
		assert.False(t, issue.CreatedOn.IsZero())
		assert.Equal(t, issue.CreatedOn, issue.UpdatedOn)

		got, err := s.FindIssues(ctx, "apollo", IssueFilter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, issue.ID, got[0].ID)
		assert.Equal(t, "apollo", got[0].Project)
		assert.True(t, got[0].CreatedOn.Equal(issue.CreatedOn))
		assert.True(t, got[0].Open)
	})

	t.Run("FindIsProjectScopedAndOrdered", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		for i, title := range []string{"first", "second", "third"} {
			ts := base.Add(time.Duration(i) * time.Second)
			require.NoError(t, s.InsertIssue(ctx, &models.Issue{
				Project: "apollo", Title: title, Text: "x", CreatedBy: "me", Open: true,
				CreatedOn: ts, UpdatedOn: ts,
			}))
		}
		require.NoError(t, s.InsertIssue(ctx, &models.Issue{Project: "gemini", Title: "other", Text: "x", CreatedBy: "me", Open: true}))

		got, err := s.FindIssues(ctx, "apollo", IssueFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "first", got[0].Title)
		assert.Equal(t, "second", got[1].Title)
		assert.Equal(t, "third", got[2].Title)

		none, err := s.FindIssues(ctx, "nobody", IssueFilter{})
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("FindAppliesEveryFilterField", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ts := time.Date(2022, 8, 16, 10, 19, 33, 617_000_000, time.UTC)
		a := &models.Issue{Project: "p", Title: "First", Text: "111", CreatedBy: "F", Open: true}
		b := &models.Issue{Project: "p", Title: "Second", Text: "222", CreatedBy: "S", AssignedTo: "Dom", StatusText: "wip", Open: false, CreatedOn: ts, UpdatedOn: ts}
		require.NoError(t, s.InsertIssue(ctx, a))
		require.NoError(t, s.InsertIssue(ctx, b))

		cases := []struct {
			name   string
			filter IssueFilter
			want   []models.ID
		}{
			{"id", IssueFilter{ID: &a.ID}, []models.ID{a.ID}},
			{"title and text", IssueFilter{Title: strPtr("Second"), Text: strPtr("222")}, []models.ID{b.ID}},
			{"title mismatch text", IssueFilter{Title: strPtr("Second"), Text: strPtr("111")}, nil},
			{"created_by", IssueFilter{CreatedBy: strPtr("F")}, []models.ID{a.ID}},
			{"assigned_to empty", IssueFilter{AssignedTo: strPtr("")}, []models.ID{a.ID}},
			{"status_text", IssueFilter{StatusText: strPtr("wip")}, []models.ID{b.ID}},
			{"open true", IssueFilter{Open: boolPtr(true)}, []models.ID{a.ID}},
			{"open false", IssueFilter{Open: boolPtr(false)}, []models.ID{b.ID}},
			{"created_on", IssueFilter{CreatedOn: &ts}, []models.ID{b.ID}},
			{"updated_on", IssueFilter{UpdatedOn: &ts}, []models.ID{b.ID}},
			{"unsatisfiable", IssueFilter{Unsatisfiable: true}, nil},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := s.FindIssues(ctx, "p", tc.filter)
				require.NoError(t, err)
				var ids []models.ID
				for _, i := range got {
					ids = append(ids, i.ID)
				}
				assert.Equal(t, tc.want, ids)
			})
		}
	})

	t.Run("UpdateAppliesOnlyPatchedFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		issue := &models.Issue{Project: "p", Title: "old", Text: "body", CreatedBy: "me", AssignedTo: "you", Open: true, CreatedOn: created, UpdatedOn: created}
		require.NoError(t, s.InsertIssue(ctx, issue))

		later := created.Add(time.Hour)
		err := s.UpdateIssue(ctx, "p", issue.ID, IssuePatch{Title: strPtr("new"), Open: boolPtr(false), UpdatedOn: later})
		require.NoError(t, err)

		got, err := s.FindIssues(ctx, "p", IssueFilter{ID: &issue.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "new", got[0].Title)
		assert.False(t, got[0].Open)
		assert.Equal(t, "body", got[0].Text)
		assert.Equal(t, "you", got[0].AssignedTo)
		assert.True(t, got[0].CreatedOn.Equal(created))
		assert.True(t, got[0].UpdatedOn.Equal(later))
	})

	t.Run("UpdateAndDeleteAreProjectScoped", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		issue := &models.Issue{Project: "p", Title: "t", Text: "x", CreatedBy: "me", Open: true}
		require.NoError(t, s.InsertIssue(ctx, issue))

		err := s.UpdateIssue(ctx, "other", issue.ID, IssuePatch{Title: strPtr("hijack"), UpdatedOn: models.Now()})
		assert.True(t, errors.Is(err, ErrNotFound))

		err = s.DeleteIssue(ctx, "other", issue.ID)
		assert.True(t, errors.Is(err, ErrNotFound))

		got, err := s.FindIssues(ctx, "p", IssueFilter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "t", got[0].Title)
	})

	t.Run("UpdateMissingIDNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateIssue(context.Background(), "p", models.NewID(), IssuePatch{Title: strPtr("x"), UpdatedOn: models.Now()})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteIsTerminal", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		issue := &models.Issue{Project: "p", Title: "t", Text: "x", CreatedBy: "me", Open: true}
		require.NoError(t, s.InsertIssue(ctx, issue))

		require.NoError(t, s.DeleteIssue(ctx, "p", issue.ID))

		got, err := s.FindIssues(ctx, "p", IssueFilter{ID: &issue.ID})
		require.NoError(t, err)
		assert.Empty(t, got)

		assert.ErrorIs(t, s.DeleteIssue(ctx, "p", issue.ID), ErrNotFound)
	})
}
