package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/identity"
)

// LegacyImportResult summarizes one import of the old JSONL cache layout.
type LegacyImportResult struct {
	Files   int `json:"files"`
	Entries int `json:"entries"`
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Cursors int `json:"cursors"`
}

// legacyEntry is an entry line from the JSONL cache era, where the "id"
// field carried the raw GitHub id and short ids did not exist yet.
type legacyEntry struct {
	model.Entry
	LegacyID string `json:"id"`
}

// legacyMeta is a cursor line from the old meta.jsonl companion file.
type legacyMeta struct {
	Repo     string    `json:"repo"`
	Scope    string    `json:"scope"`
	Cursor   string    `json:"cursor"`
	LastSync time.Time `json:"last_sync"`
}

// ImportLegacy reads every *.jsonl file under dir and upserts its entries
// into the store, then imports sync cursors from metaFile (pass "" to skip)
// for (repo, scope) pairs that have never synced, so the first sync after a
// migration resumes instead of re-paging from scratch. Lines that cannot be
// parsed are counted and skipped, so a partially corrupt cache still
// imports. Importing twice adds nothing new.
func ImportLegacy(ctx context.Context, store driven.EntryStore, syncs driven.SyncMetaStore, dir, metaFile string) (*LegacyImportResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("scan legacy dir %s: %w", dir, err)
	}
	sort.Strings(files)

	result := &LegacyImportResult{}
	for _, file := range files {
		if filepath.Base(file) == "meta.jsonl" {
			continue
		}
		entries, skipped, err := readLegacyFile(file)
		if err != nil {
			return nil, err
		}

		result.Files++
		result.Entries += len(entries)
		result.Skipped += skipped

		if len(entries) == 0 {
			continue
		}

		added, err := store.InsertEntries(ctx, entries)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", filepath.Base(file), err)
		}
		result.Added += added
	}

	if metaFile != "" && syncs != nil {
		if err := importLegacyMeta(ctx, syncs, metaFile, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// importLegacyMeta loads cursor lines from the legacy meta file. A cursor is
// taken only when the (repo, scope) pair has no sync row yet; real progress
// always beats imported progress.
func importLegacyMeta(ctx context.Context, syncs driven.SyncMetaStore, path string, result *LegacyImportResult) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var legacy legacyMeta
		if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
			slog.Warn("skipping malformed legacy cursor line", "line", line, "error", err)
			result.Skipped++
			continue
		}
		if legacy.Scope == "" {
			legacy.Scope = string(model.ScopeOpen)
		}
		scope := model.SyncScope(legacy.Scope)
		if legacy.Repo == "" || legacy.Cursor == "" || (scope != model.ScopeOpen && scope != model.ScopeClosed) {
			slog.Warn("skipping legacy cursor line without repo, cursor, or known scope", "line", line)
			result.Skipped++
			continue
		}

		existing, err := syncs.Get(ctx, legacy.Repo, scope)
		if err != nil {
			return fmt.Errorf("check sync state for %s %s: %w", legacy.Repo, scope, err)
		}
		if existing != nil {
			continue
		}

		lastSync := legacy.LastSync
		if lastSync.IsZero() {
			lastSync = time.Now().UTC()
		}
		if err := syncs.Put(ctx, model.SyncMeta{
			Repo:     legacy.Repo,
			Scope:    scope,
			LastSync: lastSync,
			Cursor:   legacy.Cursor,
		}); err != nil {
			return fmt.Errorf("import cursor for %s %s: %w", legacy.Repo, scope, err)
		}
		result.Cursors++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func readLegacyFile(path string) (entries []model.Entry, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fallbackRepo := repoFromLegacyFilename(filepath.Base(path))

	scanner := bufio.NewScanner(f)
	// Entry bodies can exceed the default 64KB token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var legacy legacyEntry
		if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
			slog.Warn("skipping malformed legacy line",
				"file", filepath.Base(path), "line", line, "error", err)
			skipped++
			continue
		}

		e := legacy.Entry
		if e.GHID == "" {
			e.GHID = legacy.LegacyID
		}
		if e.Repo == "" {
			e.Repo = fallbackRepo
		}
		if e.GHID == "" || e.Repo == "" || e.CreatedAt.IsZero() {
			slog.Warn("skipping legacy line without id, repo, or created_at",
				"file", filepath.Base(path), "line", line)
			skipped++
			continue
		}

		e.ShortID = identity.GenerateShortID(e.GHID, e.Repo)
		if e.CapturedAt.IsZero() {
			e.CapturedAt = time.Now().UTC()
		}

		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}

	return entries, skipped, nil
}

// repoFromLegacyFilename recovers owner/name from the flattened owner-name
// naming of legacy per-repo files. Ambiguous for hyphenated owners, which is
// why the entry's own repo field wins when present.
func repoFromLegacyFilename(base string) string {
	name := strings.TrimSuffix(base, ".jsonl")
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "/" + parts[1]
}
