package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

func newListCmd(a *app) *cobra.Command {
	var (
		ff        filterFlags
		limit     int
		offset    int
		countOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured PR activity, newest first",
		Long: `List entries from the local cache, newest first. Each entry carries a
short id like [@ab12f] that ack, reply, close, and freeze accept.

When the target repo has not been synced within the staleness threshold
and auto-sync is on, list refreshes the open scope first.`,
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
			f, err := ff.build(cmd, a)
			if err != nil {
				return err
			}

			if countOnly {
				n, err := a.query.Count(ctx, f)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(os.Stdout, n)
				return err
			}

			entries, err := a.query.Query(ctx, f, model.QueryOptions{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return emitJSON(os.Stdout, entries)
			case formatHuman:
				return renderEntries(os.Stdout, entries)
			default:
				return emitJSONL(os.Stdout, entries)
			}
		},
	}

	ff.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows, 0 for no limit")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the matching row count")

	return cmd
}

func renderEntries(w io.Writer, entries []model.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, faintText.Sprint("no entries"))
		return err
	}

	tw := newTab(w)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s#%d\t%s\t%s\t%s\n",
			cyanText.Sprint(e.DisplayID()),
			entryKind(e),
			e.Repo, e.PR,
			e.Author,
			faintText.Sprint(ago(e.CreatedAt)),
			truncate(entrySummary(e), 72),
		)
	}
	return tw.Flush()
}

// entryKind is the one-word kind column: the subtype for comments, the type
// for everything else.
func entryKind(e model.Entry) string {
	if e.Subtype != "" {
		return string(e.Subtype)
	}
	return string(e.Type)
}

// entrySummary is the trailing free-text column: the review verdict, the CI
// state, or the first line of the body.
func entrySummary(e model.Entry) string {
	switch e.Type {
	case model.EntryTypeReview:
		s := e.State
		if line := firstLine(e.Body); line != "" {
			s += ": " + line
		}
		return s
	case model.EntryTypeCI:
		return e.State
	default:
		return firstLine(e.Body)
	}
}
