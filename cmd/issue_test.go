package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issuetracker/internal/issues"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// resetIssueFlags clears the package-level flag variables between tests.
func resetIssueFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		issueTitle, issueText, issueCreatedBy = "", "", ""
		issueAssignedTo, issueStatusText = "", ""
		issueOpen = true
		issueFilters = nil
		issueJSON = false
	}
	reset()
	t.Cleanup(reset)
}

func seedCLIIssue(t *testing.T, project, title, assignee string) *models.Issue {
	t.Helper()
	svc, err := getService()
	require.NoError(t, err)
	issue, err := svc.Create(context.Background(), project, issues.CreateInput{
		Title: title, Text: "seeded", CreatedBy: "cli", AssignedTo: assignee,
	})
	require.NoError(t, err)
	return issue
}

func listCLIIssues(t *testing.T, project string) []*models.Issue {
	t.Helper()
	s, err := getStore()
	require.NoError(t, err)
	found, err := s.FindIssues(context.Background(), project, store.IssueFilter{})
	require.NoError(t, err)
	return found
}

func outString() string {
	return ui.Out.(*bytes.Buffer).String()
}

func TestIssueAddRun(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)

	issueTitle = "Login fails"
	issueText = "500 on submit"
	issueCreatedBy = "Ann"
	issueAssignedTo = "Dom"

	require.NoError(t, issueAddRun("webapp"))
	assert.Contains(t, outString(), "Created issue")

	found := listCLIIssues(t, "webapp")
	require.Len(t, found, 1)
	assert.Equal(t, "Login fails", found[0].Title)
	assert.Equal(t, "Dom", found[0].AssignedTo)
	assert.True(t, found[0].Open)
}

func TestIssueAddRun_MissingRequired(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)

	issueTitle = "no text"
	err := issueAddRun("webapp")
	require.ErrorIs(t, err, issues.ErrRequiredFields)
	assert.Contains(t, err.Error(), "--title, --text and --by are required")
}

func TestIssueAddRun_DryRun(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	dryRun = true
	ui.DryRun = true

	issueTitle, issueText, issueCreatedBy = "t", "x", "me"
	require.NoError(t, issueAddRun("webapp"))
	assert.Empty(t, listCLIIssues(t, "webapp"))
}

func TestIssueAddRun_DryRunStillValidates(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	dryRun = true
	ui.DryRun = true

	issueTitle = "only a title"
	err := issueAddRun("webapp")
	require.ErrorIs(t, err, issues.ErrRequiredFields)
	assert.NotContains(t, ui.ErrOut.(*bytes.Buffer).String(), "Would create")
}

func TestIssueListRun(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	seedCLIIssue(t, "webapp", "first", "Dom")
	seedCLIIssue(t, "webapp", "second", "Ann")

	require.NoError(t, issueListRun("webapp"))
	out := outString()
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.Contains(t, out, "open")
}

func TestIssueListRun_FilterJSON(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	seedCLIIssue(t, "webapp", "first", "Dom")
	seedCLIIssue(t, "webapp", "second", "Ann")

	issueFilters = []string{"assigned_to=Ann"}
	issueJSON = true
	require.NoError(t, issueListRun("webapp"))

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(outString()), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0]["issue_title"])
}

func TestIssueListRun_Empty(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)

	require.NoError(t, issueListRun("nobody"))
	assert.Contains(t, outString(), "No issues found")
}

func TestIssueUpdateRun(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	issue := seedCLIIssue(t, "webapp", "first", "Dom")

	title := "renamed"
	require.NoError(t, issueUpdateRun("webapp", issue.ID.Hex(), issues.Patch{Title: &title}))
	assert.Contains(t, outString(), "Updated issue")

	found := listCLIIssues(t, "webapp")
	require.Len(t, found, 1)
	assert.Equal(t, "renamed", found[0].Title)
	assert.Equal(t, "Dom", found[0].AssignedTo)
}

func TestIssueUpdateRun_VerboseListsFields(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	issue := seedCLIIssue(t, "webapp", "first", "Dom")
	ui.Verbose = true

	title := "renamed"
	closed := false
	require.NoError(t, issueUpdateRun("webapp", issue.ID.Hex(), issues.Patch{Title: &title, Open: &closed}))

	errOut := ui.ErrOut.(*bytes.Buffer).String()
	assert.Contains(t, errOut, "issue_title ->")
	assert.Contains(t, errOut, `"renamed"`)
	assert.Contains(t, errOut, "open ->")
	assert.Contains(t, errOut, "closed")
	assert.NotContains(t, errOut, "assigned_to")
}

func TestIssueUpdateRun_Errors(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	issue := seedCLIIssue(t, "webapp", "first", "Dom")

	err := issueUpdateRun("webapp", issue.ID.Hex(), issues.Patch{})
	assert.EqualError(t, err, "no update field(s) sent")

	title := "x"
	err = issueUpdateRun("webapp", "nope", issues.Patch{Title: &title})
	assert.EqualError(t, err, "could not update")
}

func TestIssuePatchFromFlags(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	flags := issueUpdateCmd.Flags()
	t.Cleanup(func() {
		for _, name := range []string{"title", "assign", "open"} {
			flags.Lookup(name).Changed = false
		}
	})

	require.NoError(t, flags.Set("title", "new"))
	require.NoError(t, flags.Set("assign", ""))
	require.NoError(t, flags.Set("open", "false"))

	p := issuePatchFromFlags(issueUpdateCmd)
	require.NotNil(t, p.Title)
	assert.Equal(t, "new", *p.Title)
	require.NotNil(t, p.AssignedTo)
	assert.Equal(t, "", *p.AssignedTo)
	require.NotNil(t, p.Open)
	assert.False(t, *p.Open)
	assert.Nil(t, p.Text)
	assert.Nil(t, p.StatusText)
}

func TestIssueDeleteRun(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	issue := seedCLIIssue(t, "webapp", "first", "Dom")

	require.NoError(t, issueDeleteRun("webapp", issue.ID.Hex()))
	assert.Empty(t, listCLIIssues(t, "webapp"))

	err := issueDeleteRun("webapp", issue.ID.Hex())
	assert.EqualError(t, err, "could not delete")
}

func TestParseFilters(t *testing.T) {
	got, err := parseFilters([]string{"open=false", "assigned_to=Dom", "status_text="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"open": "false", "assigned_to": "Dom", "status_text": ""}, got)

	_, err = parseFilters([]string{"open"})
	assert.ErrorContains(t, err, "want field=value")

	_, err = parseFilters([]string{"priority=high"})
	assert.ErrorContains(t, err, "unknown issue field")
}
