package model

// EntryType categorizes an event in a PR's life.
type EntryType string

const (
	EntryTypeComment EntryType = "comment"
	EntryTypeReview  EntryType = "review"
	EntryTypeCommit  EntryType = "commit"
	EntryTypeCI      EntryType = "ci"
	EntryTypeEvent   EntryType = "event"
)

// EntrySubtype narrows comment entries by origin.
type EntrySubtype string

const (
	SubtypeIssueComment  EntrySubtype = "issue_comment"  // PR-level discussion.
	SubtypeReviewComment EntrySubtype = "review_comment" // Thread comment on a file/line.
)

// PRState is the denormalized pull request state copied onto entries.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateDraft  PRState = "draft"
	PRStateClosed PRState = "closed"
	PRStateMerged PRState = "merged"
)

// PRStateOf maps the GraphQL state and draft flag to a PRState.
// Draft wins over the raw state: GitHub reports drafts as OPEN.
func PRStateOf(state string, isDraft bool) PRState {
	if isDraft {
		return PRStateDraft
	}
	switch state {
	case "MERGED":
		return PRStateMerged
	case "CLOSED":
		return PRStateClosed
	default:
		return PRStateOpen
	}
}

// Terminal reports whether the PR can no longer receive pushes as-is.
func (s PRState) Terminal() bool {
	return s == PRStateClosed || s == PRStateMerged
}

// ReviewState represents the state of a submitted review.
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "approved"
	ReviewStateChangesRequested ReviewState = "changes_requested"
	ReviewStateCommented        ReviewState = "commented"
	ReviewStatePending          ReviewState = "pending"
	ReviewStateDismissed        ReviewState = "dismissed"
)

// CIStatus represents the rolled-up state of a PR's checks.
type CIStatus string

const (
	CIStatusPassing CIStatus = "passing"
	CIStatusFailing CIStatus = "failing"
	CIStatusPending CIStatus = "pending"
	CIStatusUnknown CIStatus = "unknown"
)

// CIStatusOf maps a GraphQL statusCheckRollup state to a CIStatus.
func CIStatusOf(rollup string) CIStatus {
	switch rollup {
	case "SUCCESS":
		return CIStatusPassing
	case "FAILURE", "ERROR":
		return CIStatusFailing
	case "PENDING", "EXPECTED":
		return CIStatusPending
	default:
		return CIStatusUnknown
	}
}

// SyncScope partitions PRs into the open set and the closed set. Each scope
// carries its own cursor.
type SyncScope string

const (
	ScopeOpen   SyncScope = "open"   // OPEN, including drafts.
	ScopeClosed SyncScope = "closed" // CLOSED and MERGED.
)

// States returns the PR states the scope covers. Drafts arrive under
// ScopeOpen since GitHub reports them as open.
func (s SyncScope) States() []PRState {
	if s == ScopeClosed {
		return []PRState{PRStateClosed, PRStateMerged}
	}
	return []PRState{PRStateOpen}
}

// FreezeKind is the granularity of a freeze marker.
type FreezeKind string

const (
	FreezePR     FreezeKind = "pr"
	FreezeThread FreezeKind = "thread"
)

// StackDirection selects which part of a stack to walk from a branch.
type StackDirection string

const (
	StackUp   StackDirection = "up"
	StackDown StackDirection = "down"
	StackAll  StackDirection = "all"
)
