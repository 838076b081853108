package model

import "time"

// EntryCounts tallies a PR's activity by entry type.
type EntryCounts struct {
	Comments int `json:"comments"`
	Reviews  int `json:"reviews"`
	Commits  int `json:"commits"`
	CI       int `json:"ci"`
	Events   int `json:"events"`
}

// Add bumps the counter for the entry's type.
func (c *EntryCounts) Add(t EntryType) {
	switch t {
	case EntryTypeComment:
		c.Comments++
	case EntryTypeReview:
		c.Reviews++
	case EntryTypeCommit:
		c.Commits++
	case EntryTypeCI:
		c.CI++
	case EntryTypeEvent:
		c.Events++
	}
}

// Total returns the sum of all counters.
func (c EntryCounts) Total() int {
	return c.Comments + c.Reviews + c.Commits + c.CI + c.Events
}

// WorklistItem is one PR row of the worklist, sorted so the PRs most in need
// of a response come first.
type WorklistItem struct {
	Repo              string         `json:"repo"`
	PR                int            `json:"pr"`
	Title             string         `json:"title"`
	Author            string         `json:"author"`
	State             PRState        `json:"state"`
	Branch            string         `json:"branch,omitempty"`
	Labels            []string       `json:"labels,omitempty"`
	Counts            EntryCounts    `json:"counts"`
	ReviewStates      map[string]int `json:"review_states,omitempty"`
	Graphite          *StackInfo     `json:"graphite,omitempty"`
	Unaddressed       int            `json:"unaddressed"`
	ChangesRequested  bool           `json:"changes_requested"`
	LastActivityAt    time.Time      `json:"last_activity_at"`
	LastActivityBy    string         `json:"last_activity_by,omitempty"`
	LastActivityHuman string         `json:"last_activity,omitempty"`
}

// ActionableItem is one PR needing action, with the reason it qualified.
type ActionableItem struct {
	Repo           string    `json:"repo"`
	PR             int       `json:"pr"`
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	State          PRState   `json:"state"`
	Reason         string    `json:"reason"`
	Unaddressed    int       `json:"unaddressed,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// ActionableSummary groups the PRs needing attention into buckets.
type ActionableSummary struct {
	Unaddressed      []ActionableItem `json:"unaddressed,omitempty"`
	ChangesRequested []ActionableItem `json:"changes_requested,omitempty"`
	AwaitingReview   []ActionableItem `json:"awaiting_review,omitempty"`
	Stale            []ActionableItem `json:"stale,omitempty"`
}

// Empty reports whether no bucket holds any item.
func (s ActionableSummary) Empty() bool {
	return len(s.Unaddressed) == 0 && len(s.ChangesRequested) == 0 &&
		len(s.AwaitingReview) == 0 && len(s.Stale) == 0
}

// Total returns the number of items across all buckets.
func (s ActionableSummary) Total() int {
	return len(s.Unaddressed) + len(s.ChangesRequested) +
		len(s.AwaitingReview) + len(s.Stale)
}
