package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/identity"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() ensures isolation between parallel tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it's a safe SQLite URI filename component
	// and cannot be misinterpreted as query parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// baseTime anchors test entries at a fixed instant so ordering assertions
// are deterministic.
var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// makeEntry builds a comment entry with sensible defaults. Tests override
// fields after the call.
func makeEntry(repo, ghID string, pr int) model.Entry {
	return model.Entry{
		GHID:       ghID,
		ShortID:    identity.GenerateShortID(ghID, repo),
		Repo:       repo,
		PR:         pr,
		Type:       model.EntryTypeComment,
		Subtype:    model.SubtypeIssueComment,
		Author:     "alice",
		Body:       "looks good overall",
		CreatedAt:  baseTime,
		CapturedAt: baseTime.Add(time.Minute),
		URL:        fmt.Sprintf("https://github.com/%s/pull/%d", repo, pr),
		PRTitle:    "Add retry logic",
		PRState:    model.PRStateOpen,
		PRAuthor:   "bob",
		PRBranch:   "feat/retry",
		PRLabels:   []string{"backend"},
	}
}

// makePRMeta builds a PR summary row with sensible defaults.
func makePRMeta(repo string, number int, state model.PRState) model.PRMeta {
	return model.PRMeta{
		Repo:      repo,
		Number:    number,
		State:     state,
		Title:     "Add retry logic",
		Author:    "bob",
		Branch:    "feat/retry",
		BaseRef:   "main",
		URL:       fmt.Sprintf("https://github.com/%s/pull/%d", repo, number),
		Labels:    []string{"backend"},
		Assignees: []string{"alice"},
		CreatedAt: baseTime.Add(-24 * time.Hour),
		UpdatedAt: baseTime,
	}
}
