package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

func newSyncCmd(a *app) *cobra.Command {
	var (
		full  bool
		scope string
		since string
	)

	cmd := &cobra.Command{
		Use:   "sync [repo...]",
		Short: "Pull PR activity from GitHub into the local cache",
		Long: `Sync fetches pull request activity for the given repos, or the configured
ones, into the local cache. Each (repo, scope) pair keeps its own resume
cursor, so interrupted syncs pick up where they stopped and repeated syncs
only add what is new.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx); err != nil {
				return err
			}
			if a.sync == nil {
				return fmt.Errorf("sync requires a GitHub token: %w", fwerr.ErrAuth)
			}
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			repos, err := a.syncRepos(args)
			if err != nil {
				return err
			}

			opts := application.SyncOptions{Full: full}
			if since != "" {
				t, err := application.ParseSince(since, time.Now().UTC())
				if err != nil {
					return err
				}
				opts.Since = &t
			}

			results, syncErr := runSync(cmd, a, repos, scope, opts)

			// Render what succeeded before reporting what failed.
			switch format {
			case formatJSON:
				err = emitJSON(os.Stdout, results)
			case formatHuman:
				err = renderSyncResults(os.Stdout, results)
			default:
				err = emitJSONL(os.Stdout, results)
			}
			if err != nil {
				return err
			}
			return syncErr
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "ignore stored cursors and refetch from the beginning")
	cmd.Flags().StringVar(&scope, "scope", "open", "PR set to sync: open, closed, or all")
	cmd.Flags().StringVar(&since, "since", "", "stop paging once activity is older than this, e.g. 2w")

	return cmd
}

func runSync(cmd *cobra.Command, a *app, repos []string, scope string, opts application.SyncOptions) ([]model.SyncResult, error) {
	ctx := cmd.Context()

	switch scope {
	case "all":
		return a.sync.SyncAll(ctx, repos, opts)
	case string(model.ScopeOpen), string(model.ScopeClosed):
	default:
		return nil, fmt.Errorf("%w: unknown scope %q (want open, closed, or all)", fwerr.ErrValidation, scope)
	}

	sc := model.SyncScope(scope)
	var results []model.SyncResult
	var errs *multierror.Error
	for _, repo := range repos {
		res, err := a.sync.Sync(ctx, repo, sc, opts)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s %s: %w", repo, sc, err))
			continue
		}
		results = append(results, *res)
	}
	return results, errs.ErrorOrNil()
}

func renderSyncResults(w io.Writer, results []model.SyncResult) error {
	for _, r := range results {
		_, err := fmt.Fprintf(w, "%s %s: %d PRs, %s added\n",
			boldText.Sprint(r.Repo), r.Scope, r.PRsProcessed,
			plural(r.EntriesAdded, "entry", "entries"))
		if err != nil {
			return err
		}
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
