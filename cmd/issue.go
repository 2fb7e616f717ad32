package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/issuetracker/internal/issues"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/output"
)

var (
	issueTitle      string
	issueText       string
	issueCreatedBy  string
	issueAssignedTo string
	issueStatusText string
	issueOpen       bool
	issueFilters    []string
	issueJSON       bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage a project's issues",
	Long:  "Create, list, update and delete issues. Every command takes the project name first.",
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "Add a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(args[0])
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List a project's issues",
	Long: `List a project's issues in creation order.

Filter with --filter field=value (repeatable), e.g.
  issuetracker issue list apitest --filter open=true --filter assigned_to=Dom`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <project> <issue-id>",
	Short: "Update fields of an issue",
	Long:  "Update only the fields whose flags are given. Passing a flag with an empty value clears that field.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(args[0], args[1], issuePatchFromFlags(cmd))
	},
}

var issueCloseCmd = &cobra.Command{
	Use:   "close <project> <issue-id>",
	Short: "Close an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		closed := false
		return issueUpdateRun(args[0], args[1], issues.Patch{Open: &closed})
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <project> <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0], args[1])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueText, "text", "", "Issue text (required)")
	issueAddCmd.Flags().StringVar(&issueCreatedBy, "by", "", "Reporter (required)")
	issueAddCmd.Flags().StringVar(&issueAssignedTo, "assign", "", "Assignee")
	issueAddCmd.Flags().StringVar(&issueStatusText, "status", "", "Free-form status text")
	issueAddCmd.Flags().BoolVar(&issueJSON, "json", false, "Print the created issue as JSON")

	issueListCmd.Flags().StringArrayVarP(&issueFilters, "filter", "f", nil, "field=value filter (repeatable)")
	issueListCmd.Flags().BoolVar(&issueJSON, "json", false, "Print issues as JSON")

	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueText, "text", "", "New text")
	issueUpdateCmd.Flags().StringVar(&issueCreatedBy, "by", "", "New reporter")
	issueUpdateCmd.Flags().StringVar(&issueAssignedTo, "assign", "", "New assignee")
	issueUpdateCmd.Flags().StringVar(&issueStatusText, "status", "", "New status text")
	issueUpdateCmd.Flags().BoolVar(&issueOpen, "open", true, "Open (true) or closed (false)")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueCloseCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	rootCmd.AddCommand(issueCmd)
}

// issuePatchFromFlags builds a patch from the update flags that were set.
func issuePatchFromFlags(cmd *cobra.Command) issues.Patch {
	var p issues.Patch
	set := func(name string, value string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &value
	}
	p.Title = set("title", issueTitle)
	p.Text = set("text", issueText)
	p.CreatedBy = set("by", issueCreatedBy)
	p.AssignedTo = set("assign", issueAssignedTo)
	p.StatusText = set("status", issueStatusText)
	if cmd.Flags().Changed("open") {
		open := issueOpen
		p.Open = &open
	}
	return p
}

func issueAddRun(project string) error {
	in := issues.CreateInput{
		Title:      issueTitle,
		Text:       issueText,
		CreatedBy:  issueCreatedBy,
		AssignedTo: issueAssignedTo,
		StatusText: issueStatusText,
	}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: --title, --text and --by are required", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create issue %q in %s", in.Title, project)
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}

	issue, err := svc.Create(context.Background(), project, in)
	if err != nil {
		return err
	}

	if issueJSON {
		return ui.JSON(issue)
	}
	ui.Success("Created issue %s in %s: %s", output.Cyan(issue.ID.Hex()), project, issue.Title)
	return nil
}

func issueListRun(project string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	values, err := parseFilters(issueFilters)
	if err != nil {
		return err
	}

	found, err := svc.List(context.Background(), project, issues.NewFilter(values))
	if err != nil {
		return err
	}

	if issueJSON {
		return ui.JSON(found)
	}
	if len(found) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "State", "Status", "Created By", "Assigned To", "Updated"})
	for _, issue := range found {
		_ = table.Append([]string{
			issue.ID.Hex(),
			issue.Title,
			output.OpenState(issue.Open),
			issue.StatusText,
			issue.CreatedBy,
			issue.AssignedTo,
			output.Ago(issue.UpdatedOn),
		})
	}
	_ = table.Render()
	return nil
}

func issueUpdateRun(project, id string, patch issues.Patch) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	logPatch(patch)
	if dryRun {
		ui.DryRunMsg("Would update issue %s in %s", id, project)
		return nil
	}

	if _, err := svc.Update(context.Background(), project, id, patch); err != nil {
		return err
	}

	ui.Success("Updated issue %s", output.Cyan(id))
	return nil
}

func issueDeleteRun(project, id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete issue %s from %s", id, project)
		return nil
	}

	if _, err := svc.Delete(context.Background(), project, id); err != nil {
		return err
	}

	ui.Success("Deleted issue %s", output.Cyan(id))
	return nil
}

// logPatch lists the fields an update will change when --verbose is set.
func logPatch(p issues.Patch) {
	text := []struct {
		field string
		value *string
	}{
		{models.FieldTitle, p.Title},
		{models.FieldText, p.Text},
		{models.FieldCreatedBy, p.CreatedBy},
		{models.FieldAssignedTo, p.AssignedTo},
		{models.FieldStatusText, p.StatusText},
	}
	for _, f := range text {
		if f.value != nil {
			ui.VerboseLog("%s -> %s", f.field, output.Yellow(strconv.Quote(*f.value)))
		}
	}
	if p.Open != nil {
		ui.VerboseLog("%s -> %s", models.FieldOpen, output.OpenState(*p.Open))
	}
}

// parseFilters turns field=value arguments into a filter map.
func parseFilters(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: want field=value", arg)
		}
		if !knownField(key) {
			return nil, fmt.Errorf("unknown issue field %q", key)
		}
		values[key] = value
	}
	return values, nil
}

func knownField(name string) bool {
	switch name {
	case models.FieldID, models.FieldTitle, models.FieldText, models.FieldCreatedBy,
		models.FieldAssignedTo, models.FieldStatusText, models.FieldOpen,
		models.FieldCreatedOn, models.FieldUpdatedOn:
		return true
	}
	return false
}
