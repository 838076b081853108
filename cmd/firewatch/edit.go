package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

func newEditCmd(a *app) *cobra.Command {
	var (
		title           string
		body            string
		base            string
		draft           bool
		ready           bool
		addLabels       []string
		removeLabels    []string
		addReviewers    []string
		removeReviewers []string
		addAssignees    []string
		removeAssignees []string
		milestone       int
		clearMilestone  bool
	)

	cmd := &cobra.Command{
		Use:   "edit <pr|id>",
		Short: "Edit PR metadata",
		Long: `Edit changes PR metadata in one round trip: title, body, base branch,
draft state, labels, reviewers, assignees, and milestone. Only the fields
you pass are touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx); err != nil {
				return err
			}
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			repo, err := a.targetRepo(true)
			if err != nil {
				return err
			}

			edit := driven.PREdit{
				AddLabels:       addLabels,
				RemoveLabels:    removeLabels,
				AddReviewers:    addReviewers,
				RemoveReviewers: removeReviewers,
				AddAssignees:    addAssignees,
				RemoveAssignees: removeAssignees,
				ClearMilestone:  clearMilestone,
			}
			if cmd.Flags().Changed("title") {
				edit.Title = &title
			}
			if cmd.Flags().Changed("body") {
				edit.Body = &body
			}
			if cmd.Flags().Changed("base") {
				edit.Base = &base
			}
			if draft {
				t := true
				edit.Draft = &t
			}
			if ready {
				f := false
				edit.Draft = &f
			}
			if cmd.Flags().Changed("milestone") {
				edit.Milestone = &milestone
			}

			out, err := a.feedback.Edit(ctx, repo, args[0], edit)
			if err != nil {
				return err
			}
			return emitOutcome(os.Stdout, format, out)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&body, "body", "", "new description")
	cmd.Flags().StringVar(&base, "base", "", "new base branch")
	cmd.Flags().BoolVar(&draft, "draft", false, "convert to draft")
	cmd.Flags().BoolVar(&ready, "ready", false, "mark ready for review")
	cmd.MarkFlagsMutuallyExclusive("draft", "ready")
	cmd.Flags().StringSliceVar(&addLabels, "add-label", nil, "labels to add")
	cmd.Flags().StringSliceVar(&removeLabels, "remove-label", nil, "labels to remove")
	cmd.Flags().StringSliceVar(&addReviewers, "add-reviewer", nil, "reviewers to request")
	cmd.Flags().StringSliceVar(&removeReviewers, "remove-reviewer", nil, "review requests to withdraw")
	cmd.Flags().StringSliceVar(&addAssignees, "add-assignee", nil, "assignees to add")
	cmd.Flags().StringSliceVar(&removeAssignees, "remove-assignee", nil, "assignees to remove")
	cmd.Flags().IntVar(&milestone, "milestone", 0, "milestone number to set")
	cmd.Flags().BoolVar(&clearMilestone, "clear-milestone", false, "remove the milestone")
	cmd.MarkFlagsMutuallyExclusive("milestone", "clear-milestone")

	return cmd
}
