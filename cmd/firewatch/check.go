package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/fwerr"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Mark review comments whose file was touched by later commits",
		Long: `Check walks every review comment in the repo and asks whether a commit
that landed afterwards on the same PR touched the commented file. The
verdict is stored on the entry; worklist and actionable use it when
feedback.commit_implies_read is on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx); err != nil {
				return err
			}
			if a.ghClient == nil {
				return fmt.Errorf("check requires a GitHub token: %w", fwerr.ErrAuth)
			}
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			repo, err := a.targetRepo(true)
			if err != nil {
				return err
			}

			res, err := a.check.Check(ctx, repo)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return emitJSON(os.Stdout, res)
			case formatHuman:
				_, err := fmt.Fprintf(os.Stdout, "checked %s: %d touched since, %d approximate\n",
					plural(res.Checked, "review comment", "review comments"),
					res.Modified, res.Approximate)
				return err
			default:
				return emitJSONLine(os.Stdout, res)
			}
		},
	}
}
