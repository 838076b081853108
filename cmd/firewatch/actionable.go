package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/domain/model"
)

func newActionableCmd(a *app) *cobra.Command {
	var (
		mine       bool
		reviews    bool
		staleAfter string
	)

	cmd := &cobra.Command{
		Use:   "actionable",
		Short: "Bucket PRs by the attention they need",
		Long: `Actionable sorts the known PRs into buckets: unaddressed review feedback,
standing change requests, PRs awaiting a first review, and PRs gone stale.
A PR lands in at most one bucket, the most urgent that claims it.

--mine limits the awaiting-review bucket to PRs you authored; --reviews to
PRs assigned to you. Both need user.github_username in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx); err != nil {
				return err
			}
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			repo, err := a.targetRepo(false)
			if err != nil {
				return err
			}

			perspective := application.PerspectiveNone
			switch {
			case mine:
				perspective = application.PerspectiveMine
			case reviews:
				perspective = application.PerspectiveReviews
			}

			cutoff, err := parseStaleAfter(staleAfter)
			if err != nil {
				return err
			}

			summary, err := a.actionable.Actionable(ctx, repo, perspective, a.cfg.User.GitHubUsername, cutoff)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return emitJSON(os.Stdout, summary)
			case formatHuman:
				return renderActionable(os.Stdout, summary)
			default:
				return emitJSONLine(os.Stdout, summary)
			}
		},
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "awaiting-review covers PRs you authored")
	cmd.Flags().BoolVar(&reviews, "reviews", false, "awaiting-review covers PRs assigned to you")
	cmd.MarkFlagsMutuallyExclusive("mine", "reviews")
	cmd.Flags().StringVar(&staleAfter, "stale-after", "", "staleness cutoff, e.g. 7d (default)")

	return cmd
}

func renderActionable(w io.Writer, s *model.ActionableSummary) error {
	if s.Empty() {
		_, err := fmt.Fprintln(w, greenText.Sprint("nothing needs attention"))
		return err
	}

	sections := []struct {
		title string
		items []model.ActionableItem
	}{
		{redText.Sprint("unaddressed feedback"), s.Unaddressed},
		{redText.Sprint("changes requested"), s.ChangesRequested},
		{yellowText.Sprint("awaiting review"), s.AwaitingReview},
		{faintText.Sprint("stale"), s.Stale},
	}

	for _, sec := range sections {
		if len(sec.items) == 0 {
			continue
		}
		if _, err := fmt.Fprintln(w, boldText.Sprint(sec.title)); err != nil {
			return err
		}
		tw := newTab(w)
		for _, it := range sec.items {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n",
				boldText.Sprintf("%s#%d", it.Repo, it.PR),
				truncate(it.Title, 56),
				it.Reason,
				faintText.Sprint(ago(it.LastActivityAt)),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
