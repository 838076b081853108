package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

func newStackCmd(a *app) *cobra.Command {
	var (
		up   bool
		down bool
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Show the PRs around the checked-out branch's stack",
		Long: `Stack walks the Graphite stack containing the current branch: --up lists
the PRs above it, --down the PRs below, and the default the whole stack.
Needs gt and a checkout whose branch is tracked by a stack.`,
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

			direction := model.StackAll
			switch {
			case up:
				direction = model.StackUp
			case down:
				direction = model.StackDown
			}

			res, err := a.stack.Current(ctx, direction)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return emitJSON(os.Stdout, res)
			case formatHuman:
				return renderStackPRs(os.Stdout, res)
			default:
				return emitJSONLine(os.Stdout, res)
			}
		},
	}

	cmd.Flags().BoolVar(&up, "up", false, "PRs stacked on top of the current branch")
	cmd.Flags().BoolVar(&down, "down", false, "PRs the current branch builds on")
	cmd.Flags().BoolVar(&all, "all", false, "the whole stack (default)")
	cmd.MarkFlagsMutuallyExclusive("up", "down", "all")

	cmd.AddCommand(newStackListCmd(a))
	return cmd
}

func newStackListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stack known to the checkout",
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

			stacks, err := a.stack.List(ctx)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return emitJSON(os.Stdout, stacks)
			case formatHuman:
				return renderStacks(os.Stdout, stacks)
			default:
				return emitJSONL(os.Stdout, stacks)
			}
		},
	}
}

func renderStackPRs(w io.Writer, res *model.StackPRs) error {
	if _, err := fmt.Fprintln(w, boldText.Sprintf("stack %s", res.Stack.ID)); err != nil {
		return err
	}

	tw := newTab(w)
	for i := len(res.Stack.Branches) - 1; i >= 0; i-- {
		b := res.Stack.Branches[i]
		marker := " "
		if b.Current {
			marker = cyanText.Sprint(">")
		}
		pr := "-"
		if b.PR != 0 {
			pr = fmt.Sprintf("#%d", b.PR)
		}
		fmt.Fprintf(tw, "%s %d\t%s\t%s\n", marker, b.Position, b.Name, pr)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(res.PRs) > 0 {
		_, err := fmt.Fprintf(w, "%s: %s\n", res.Direction, faintText.Sprint(prList(res.PRs)))
		return err
	}
	return nil
}

func renderStacks(w io.Writer, stacks []model.Stack) error {
	if len(stacks) == 0 {
		_, err := fmt.Fprintln(w, faintText.Sprint("no stacks"))
		return err
	}

	tw := newTab(w)
	for _, s := range stacks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			boldText.Sprint(s.ID),
			plural(s.Size(), "branch", "branches"),
			branchChain(s),
		)
	}
	return tw.Flush()
}

// branchChain renders trunk-first branch names joined by arrows.
func branchChain(s model.Stack) string {
	out := ""
	for i, b := range s.Branches {
		if i > 0 {
			out += " -> "
		}
		out += b.Name
	}
	return out
}

func prList(prs []int) string {
	out := ""
	for i, pr := range prs {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("#%d", pr)
	}
	return out
}
