package model

import "time"

// PRMeta is the mutable summary row for a pull request, keyed by
// (Repo, Number) and refreshed on every sync that touches the PR.
type PRMeta struct {
	Repo      string    `json:"repo"`
	Number    int       `json:"number"`
	State     PRState   `json:"state"`
	IsDraft   bool      `json:"is_draft"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Branch    string    `json:"branch,omitempty"`
	BaseRef   string    `json:"base_ref,omitempty"`
	URL       string    `json:"url,omitempty"`
	Labels    []string  `json:"labels,omitempty"`
	Assignees []string  `json:"assignees,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncMeta tracks per-(repo, scope) sync progress. Cursor is only valid for
// a subsequent fetch of the same scope; PRCount accumulates monotonically.
type SyncMeta struct {
	Repo     string    `json:"repo"`
	Scope    SyncScope `json:"scope"`
	LastSync time.Time `json:"last_sync"`
	Cursor   string    `json:"cursor,omitempty"`
	PRCount  int       `json:"pr_count"`
}

// SyncResult summarizes one sync run for a (repo, scope).
type SyncResult struct {
	Repo         string    `json:"repo"`
	Scope        SyncScope `json:"scope"`
	EntriesAdded int       `json:"entries_added"`
	PRsProcessed int       `json:"prs_processed"`
	Cursor       string    `json:"cursor,omitempty"`
}

// Ack is a local-only acknowledgement of a comment, keyed by
// (Repo, CommentID). ReactionAdded records whether the best-effort
// THUMBS_UP reaction reached GitHub.
type Ack struct {
	Repo          string    `json:"repo"`
	CommentID     string    `json:"comment_id"`
	PR            int       `json:"pr"`
	AckedAt       time.Time `json:"acked_at"`
	AckedBy       string    `json:"acked_by,omitempty"`
	ReactionAdded bool      `json:"reaction_added"`
}

// Freeze is a soft tombstone hiding activity newer than FrozenAt on a PR or
// a single thread.
type Freeze struct {
	Repo     string     `json:"repo"`
	PR       int        `json:"pr"`
	Kind     FreezeKind `json:"kind"`
	TargetID string     `json:"target_id"`
	FrozenAt time.Time  `json:"frozen_at"`
}

// Matches reports whether the freeze applies to the entry.
func (f Freeze) Matches(e Entry) bool {
	if e.Repo != f.Repo || e.PR != f.PR {
		return false
	}
	if f.Kind == FreezePR {
		return true
	}
	return e.ThreadID != "" && e.ThreadID == f.TargetID
}

// Hides reports whether the freeze suppresses the entry in default queries.
func (f Freeze) Hides(e Entry) bool {
	return f.Matches(e) && e.CreatedAt.After(f.FrozenAt)
}
