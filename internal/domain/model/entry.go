package model

import "time"

// Entry is one immutable event in a PR's life: a review, a comment, a
// commit, or a CI rollup. Entries are denormalized so every row carries
// enough PR context to render without joins, and the wire form below is
// exactly what `list` emits as JSONL.
//
// GHID is the canonical identifier ((Repo, GHID) is unique in the store);
// for commit entries it is the commit SHA. ID is the synthesized display
// handle "[@xxxxx]" set on user-facing outputs only.
type Entry struct {
	ID      string `json:"id,omitempty"`
	GHID    string `json:"gh_id"`
	ShortID string `json:"short_id,omitempty"`
	Repo    string `json:"repo"`
	PR      int    `json:"pr"`

	Type    EntryType    `json:"type"`
	Subtype EntrySubtype `json:"subtype,omitempty"`
	Author  string       `json:"author,omitempty"`
	Body    string       `json:"body,omitempty"`

	// State holds the review verdict for review entries and the rolled-up
	// check state for ci entries.
	State string `json:"state,omitempty"`

	File           string `json:"file,omitempty"`
	Line           int    `json:"line,omitempty"`
	ThreadID       string `json:"thread_id,omitempty"`
	ThreadResolved *bool  `json:"thread_resolved,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
	URL        string     `json:"url,omitempty"`

	// Denormalized PR context, copied onto every entry at capture time.
	PRTitle  string   `json:"pr_title"`
	PRState  PRState  `json:"pr_state"`
	PRAuthor string   `json:"pr_author,omitempty"`
	PRBranch string   `json:"pr_branch,omitempty"`
	PRLabels []string `json:"pr_labels,omitempty"`

	// Optional enrichment blocks.
	Graphite          *StackInfo      `json:"graphite,omitempty"`
	FileProvenance    *FileProvenance `json:"file_provenance,omitempty"`
	FileActivityAfter *FileActivity   `json:"file_activity_after,omitempty"`
}

// StackInfo places an entry's PR within a Graphite stack.
type StackInfo struct {
	StackID       string `json:"stack_id"`
	StackPosition int    `json:"stack_position"` // 1-based, trunk side first.
	StackSize     int    `json:"stack_size"`
	ParentPR      int    `json:"parent_pr,omitempty"`
}

// FileProvenance attributes a review comment's file to the stack PR that
// introduced it.
type FileProvenance struct {
	OriginPR      int    `json:"origin_pr"`
	OriginBranch  string `json:"origin_branch"`
	OriginCommit  string `json:"origin_commit,omitempty"`
	StackPosition int    `json:"stack_position"`
}

// FileActivity records whether later commits on the PR touched a review
// comment's file. Approximate is set when the commit-file resolver was
// unavailable and every later commit was counted instead.
type FileActivity struct {
	Modified            bool       `json:"modified"`
	CommitsTouchingFile int        `json:"commits_touching_file"`
	LatestCommit        string     `json:"latest_commit,omitempty"`
	LatestCommitAt      *time.Time `json:"latest_commit_at,omitempty"`
	Approximate         bool       `json:"approximate,omitempty"`
}

// IsReviewComment reports whether the entry is a thread comment on a
// file/line.
func (e Entry) IsReviewComment() bool {
	return e.Type == EntryTypeComment && e.Subtype == SubtypeReviewComment
}

// IsOrphaned reports whether the entry is an unresolved (or
// unknown-resolution) review comment on a PR that already closed or merged.
func (e Entry) IsOrphaned() bool {
	if !e.IsReviewComment() {
		return false
	}
	if e.ThreadResolved != nil && *e.ThreadResolved {
		return false
	}
	return e.PRState.Terminal()
}

// DisplayID returns the user-facing "[@xxxxx]" form of the short ID.
func (e Entry) DisplayID() string {
	if e.ShortID == "" {
		return ""
	}
	return "[@" + e.ShortID + "]"
}
