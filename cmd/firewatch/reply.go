package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newReplyCmd(a *app) *cobra.Command {
	var (
		message string
		resolve bool
	)

	cmd := &cobra.Command{
		Use:   "reply <id>",
		Short: "Reply to a comment on GitHub",
		Long: `Reply posts a comment under the target: a thread reply for review
comments, a top-level PR comment for issue comments and PR numbers.
--resolve additionally resolves the thread, review threads only.`,
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

			out, err := a.feedback.Reply(ctx, repo, args[0], message, resolve)
			if err != nil {
				return err
			}
			return emitOutcome(os.Stdout, format, out)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "reply body")
	_ = cmd.MarkFlagRequired("message")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "resolve the thread after replying")

	return cmd
}
