package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/firewatchhq/firewatch/internal/adapter/driven/sqlite"
	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/paths"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the local cache",
	}
	cmd.AddCommand(newCacheStatusCmd(a), newCacheClearCmd(a), newCacheImportCmd(a))
	return cmd
}

func newCacheStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Per-repo entry counts, sync cursors, acks, and freezes",
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

			st, err := a.status.CacheStatus(ctx)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				return emitJSON(os.Stdout, st)
			case formatHuman:
				return renderCacheStatus(os.Stdout, st)
			default:
				return emitJSONLine(os.Stdout, st)
			}
		},
	}
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the local cache database",
		Long: `Clear removes the cache database, dropping every entry, ack, freeze, sync
cursor, and the lookout timestamp. The next sync rebuilds from scratch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No bootstrap: clearing must work even when the database no
			// longer opens.
			a.shutdown()

			dbPath := paths.DatabaseFile()
			for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
				if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("remove %s: %w", p, err)
				}
			}
			_, err := fmt.Fprintln(os.Stdout, "cache cleared")
			return err
		},
	}
}

func newCacheImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [dir]",
		Short: "Import a legacy JSONL cache",
		Long: `Import reads the per-repo *.jsonl files of the pre-SQLite cache layout,
upserts their entries, and carries over sync cursors from meta.jsonl for
repos that have never synced. The source is left untouched and importing
twice adds nothing new. Defaults to the legacy location under the cache dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx); err != nil {
				return err
			}

			dir := paths.LegacyRepoDir()
			metaFile := paths.LegacyMetaFile()
			if len(args) == 1 {
				dir = args[0]
				metaFile = filepath.Join(dir, "meta.jsonl")
			}

			res, err := sqliteadapter.ImportLegacy(ctx, a.entries, a.syncMeta, dir, metaFile)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(os.Stdout, "imported %s from %s: %d added, %d skipped, %s\n",
				plural(res.Entries, "entry", "entries"),
				plural(res.Files, "file", "files"),
				res.Added, res.Skipped,
				plural(res.Cursors, "cursor", "cursors"))
			return err
		},
	}
}

func renderCacheStatus(w io.Writer, st *application.CacheStatus) error {
	if len(st.Repos) == 0 {
		_, err := fmt.Fprintln(w, faintText.Sprint("cache is empty"))
		return err
	}

	tw := newTab(w)
	for _, r := range st.Repos {
		var synced []string
		for _, m := range r.Sync {
			synced = append(synced, fmt.Sprintf("%s %s", m.Scope, ago(m.LastSync)))
		}
		syncCell := "never synced"
		if len(synced) > 0 {
			syncCell = strings.Join(synced, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d PRs\t%d acks\t%d freezes\t%s\n",
			boldText.Sprint(r.Repo),
			plural(r.Entries, "entry", "entries"),
			r.PRs, r.Acks, r.Freezes,
			faintText.Sprint(syncCell),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "total: %s, %d PRs across %s\n",
		plural(st.TotalEntries, "entry", "entries"),
		st.TotalPRs,
		plural(len(st.Repos), "repo", "repos"))
	return err
}
