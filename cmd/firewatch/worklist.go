package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

func newWorklistCmd(a *app) *cobra.Command {
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "worklist",
		Short: "Roll activity up to one row per PR, most in need of a response first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx); err != nil {
				return err
			}
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			f, err := ff.build(cmd, a)
			if err != nil {
				return err
			}

			items, err := a.worklist.Worklist(ctx, f)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return emitJSON(os.Stdout, items)
			case formatHuman:
				return renderWorklist(os.Stdout, items)
			default:
				return emitJSONL(os.Stdout, items)
			}
		},
	}

	ff.register(cmd)
	return cmd
}

func renderWorklist(w io.Writer, items []model.WorklistItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, faintText.Sprint("worklist is empty"))
		return err
	}

	tw := newTab(w)
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			boldText.Sprintf("%s#%d", it.Repo, it.PR),
			truncate(it.Title, 48),
			it.Author,
			stateText(it.State),
			countsText(it.Counts),
			worklistFlags(it),
			faintText.Sprint(ago(it.LastActivityAt)),
		)
	}
	return tw.Flush()
}

// countsText compresses the per-type tallies into one cell, skipping zeros:
// "3c 2r 5k" for comments, reviews, commits; ci and ev for the rest.
func countsText(c model.EntryCounts) string {
	var parts []string
	if c.Comments > 0 {
		parts = append(parts, fmt.Sprintf("%dc", c.Comments))
	}
	if c.Reviews > 0 {
		parts = append(parts, fmt.Sprintf("%dr", c.Reviews))
	}
	if c.Commits > 0 {
		parts = append(parts, fmt.Sprintf("%dk", c.Commits))
	}
	if c.CI > 0 {
		parts = append(parts, fmt.Sprintf("%dci", c.CI))
	}
	if c.Events > 0 {
		parts = append(parts, fmt.Sprintf("%dev", c.Events))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// worklistFlags is the attention cell: a standing change request, the count
// of unaddressed threads, and the stack position when the PR is stacked.
func worklistFlags(it model.WorklistItem) string {
	var parts []string
	if it.ChangesRequested {
		parts = append(parts, redText.Sprint("changes requested"))
	}
	if it.Unaddressed > 0 {
		parts = append(parts, yellowText.Sprintf("%d unaddressed", it.Unaddressed))
	}
	if it.Graphite != nil {
		parts = append(parts, faintText.Sprintf("stack %d/%d", it.Graphite.StackPosition, it.Graphite.StackSize))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
