package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newApproveCmd(a *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "approve <id|pr>",
		Short: "Submit an approving review",
		Long: `Approve submits an APPROVE review on the PR. A comment id works too and
approves the PR the comment belongs to.`,
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

			out, err := a.feedback.Approve(ctx, repo, args[0], message)
			if err != nil {
				return err
			}
			return emitOutcome(os.Stdout, format, out)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "review body")

	return cmd
}

func newRejectCmd(a *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "reject <id|pr>",
		Short: "Request changes on a PR",
		Long: `Reject submits a REQUEST_CHANGES review. The body is required: a change
request without an explanation helps nobody.`,
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

			out, err := a.feedback.Reject(ctx, repo, args[0], message)
			if err != nil {
				return err
			}
			return emitOutcome(os.Stdout, format, out)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "what needs to change")

	return cmd
}
