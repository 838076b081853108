package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newCloseCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "close <id>...",
		Short: "Resolve review threads",
		Long: `Close resolves the review threads behind the given comment ids. Passing a
PR number with --all resolves every unresolved thread on that PR; without
--all a bare PR number is refused so a typo cannot sweep a review.`,
		Args: cobra.MinimumNArgs(1),
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

			outs, closeErr := a.feedback.Close(ctx, repo, args, all)
			if err := emitOutcomes(os.Stdout, format, outs); err != nil {
				return err
			}
			return closeErr
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "resolve every unresolved thread on the PR")

	return cmd
}
