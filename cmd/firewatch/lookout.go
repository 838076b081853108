package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/domain/model"
)

func newLookoutCmd(a *app) *cobra.Command {
	var (
		reset      bool
		staleAfter string
	)

	cmd := &cobra.Command{
		Use:   "lookout",
		Short: "Digest of what happened since you last looked",
		Long: `Lookout reports the activity captured since its previous run: new entries
by type, open PRs needing attention, and review feedback still awaiting a
response. The run timestamp is stored in the cache, so the next lookout
picks up exactly where this one ended.`,
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
			cutoff, err := parseStaleAfter(staleAfter)
			if err != nil {
				return err
			}

			f := model.Filter{
				ExactRepo:      repo,
				ExcludeBots:    a.cfg.Filters.ExcludeBots,
				ExcludeAuthors: a.cfg.Filters.ExcludeAuthors,
				BotPatterns:    a.cfg.BotPatterns(),
			}
			opts := application.LookoutOptions{
				Reset:      reset,
				Viewer:     a.cfg.User.GitHubUsername,
				StaleAfter: cutoff,
			}

			report, err := a.lookout.Lookout(ctx, f, opts)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return emitJSON(os.Stdout, report)
			case formatHuman:
				return renderLookout(os.Stdout, report)
			default:
				return emitJSONLine(os.Stdout, report)
			}
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "ignore the stored run timestamp and use the default window")
	cmd.Flags().StringVar(&staleAfter, "stale-after", "", "staleness cutoff, e.g. 7d (default)")

	return cmd
}

func renderLookout(w io.Writer, r *model.LookoutReport) error {
	header := fmt.Sprintf("since %s", ago(r.PeriodStart))
	if r.FirstRun {
		header += faintText.Sprint(" (first run)")
	}
	if _, err := fmt.Fprintln(w, boldText.Sprint(header)); err != nil {
		return err
	}

	if r.Quiet() {
		_, err := fmt.Fprintln(w, greenText.Sprint("all quiet"))
		return err
	}

	if r.NewEntries.Total() > 0 {
		if _, err := fmt.Fprintf(w, "new activity: %s\n", newEntriesText(r.NewEntries)); err != nil {
			return err
		}
	}
	if att := attentionText(r.Attention); att != "" {
		if _, err := fmt.Fprintf(w, "attention: %s\n", att); err != nil {
			return err
		}
	}

	if len(r.UnaddressedFeedback) > 0 {
		if _, err := fmt.Fprintln(w, boldText.Sprint("unaddressed feedback")); err != nil {
			return err
		}
		tw := newTab(w)
		for _, e := range r.UnaddressedFeedback {
			fmt.Fprintf(tw, "  %s\t%s#%d\t%s\t%s\t%s\n",
				cyanText.Sprint(e.DisplayID()),
				e.Repo, e.PR,
				e.Author,
				faintText.Sprint(ago(e.CreatedAt)),
				truncate(firstLine(e.Body), 64),
			)
		}
		return tw.Flush()
	}
	return nil
}

func newEntriesText(c model.EntryCounts) string {
	var parts []string
	if c.Comments > 0 {
		parts = append(parts, plural(c.Comments, "comment", "comments"))
	}
	if c.Reviews > 0 {
		parts = append(parts, plural(c.Reviews, "review", "reviews"))
	}
	if c.Commits > 0 {
		parts = append(parts, plural(c.Commits, "commit", "commits"))
	}
	if c.CI > 0 {
		parts = append(parts, plural(c.CI, "ci update", "ci updates"))
	}
	if c.Events > 0 {
		parts = append(parts, plural(c.Events, "event", "events"))
	}
	return strings.Join(parts, ", ")
}

func attentionText(att model.AttentionCounts) string {
	var parts []string
	if att.ChangesRequested > 0 {
		parts = append(parts, redText.Sprintf("%d changes requested", att.ChangesRequested))
	}
	if att.Unreviewed > 0 {
		parts = append(parts, yellowText.Sprintf("%d unreviewed", att.Unreviewed))
	}
	if att.Stale > 0 {
		parts = append(parts, faintText.Sprintf("%d stale", att.Stale))
	}
	return strings.Join(parts, ", ")
}
