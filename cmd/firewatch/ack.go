package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/fwerr"
	"github.com/firewatchhq/firewatch/internal/identity"
)

func newAckCmd(a *app) *cobra.Command {
	var (
		since  string
		before string
	)

	cmd := &cobra.Command{
		Use:   "ack <id>...",
		Short: "Acknowledge review comments",
		Long: `Ack marks comments as read. The record is local; with a token a THUMBS_UP
reaction is added on GitHub so the author sees it too. Without one the ack
still sticks, it just stays invisible upstream.

Targets are short ids like @ab12f, full GitHub node ids, or a PR number
combined with --since/--before to ack a whole window at once.`,
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

			var opts application.BatchOptions
			now := time.Now().UTC()
			if since != "" {
				t, err := application.ParseSince(since, now)
				if err != nil {
					return err
				}
				opts.Since = &t
			}
			if before != "" {
				t, err := application.ParseSince(before, now)
				if err != nil {
					return err
				}
				opts.Before = &t
			}

			targets, err := expandAckTargets(ctx, a, repo, args)
			if err != nil {
				return err
			}

			outs, ackErr := a.feedback.Ack(ctx, repo, targets, opts)
			if err := emitOutcomes(os.Stdout, format, outs); err != nil {
				return err
			}
			return ackErr
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only comments newer than this, e.g. 2d")
	cmd.Flags().StringVar(&before, "before", "", "only comments older than this, e.g. 6h")

	return cmd
}

// expandAckTargets replaces PR-number arguments with the ids of every cached
// comment on that PR, so `ack 42 --since 2d` acks a whole window.
func expandAckTargets(ctx context.Context, a *app, repo string, args []string) ([]string, error) {
	var targets []string
	for _, arg := range args {
		if identity.Classify(arg) != identity.KindPRNumber {
			targets = append(targets, arg)
			continue
		}
		pr, err := strconv.Atoi(arg)
		if err != nil {
			targets = append(targets, arg)
			continue
		}
		ids, err := a.feedback.CommentIDs(ctx, repo, pr)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: no cached comments on #%d (synced recently?)", fwerr.ErrNotFound, pr)
		}
		targets = append(targets, ids...)
	}
	return targets, nil
}

func newAcksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acks",
		Short: "Inspect and undo local acknowledgements",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List acknowledged comments for the repo",
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
			repo, err := a.targetRepo(true)
			if err != nil {
				return err
			}

			acks, err := a.feedback.Acks(ctx, repo)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return emitJSON(os.Stdout, acks)
			case formatHuman:
				return renderAcks(os.Stdout, acks)
			default:
				return emitJSONL(os.Stdout, acks)
			}
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Undo an acknowledgement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx); err != nil {
				return err
			}
			repo, err := a.targetRepo(true)
			if err != nil {
				return err
			}
			if err := a.feedback.Unack(ctx, repo, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, "ack removed")
			return err
		},
	}

	cmd.AddCommand(list, remove)
	return cmd
}

func renderAcks(w io.Writer, acks []model.Ack) error {
	if len(acks) == 0 {
		_, err := fmt.Fprintln(w, faintText.Sprint("no acks"))
		return err
	}

	tw := newTab(w)
	for _, ack := range acks {
		reaction := "-"
		if ack.ReactionAdded {
			reaction = "reacted"
		}
		fmt.Fprintf(tw, "%s\t#%d\t%s\t%s\t%s\n",
			cyanText.Sprint(identity.FormatDisplayID(identity.GenerateShortID(ack.CommentID, ack.Repo))),
			ack.PR,
			ack.AckedBy,
			faintText.Sprint(ago(ack.AckedAt)),
			reaction,
		)
	}
	return tw.Flush()
}
