package model

import "time"

// Filter narrows an entry query. Zero values mean "no constraint".
//
// Repo is a substring match, ExactRepo an exact one; when both are set
// ExactRepo wins. Author matching is case-insensitive. BotPatterns are
// regular expressions applied client-side on top of the SQL subset.
type Filter struct {
	Repo           string
	ExactRepo      string
	PRs            []int
	Types          []EntryType
	States         []PRState
	Label          string
	Since          *time.Time
	Before         *time.Time
	Author         string
	ExcludeAuthors []string
	ExcludeBots    bool
	BotPatterns    []string
	Orphaned       bool
	IncludeFrozen  bool
	ID             string
}

// QueryOptions carry pagination, applied after every filter stage.
type QueryOptions struct {
	Limit  int
	Offset int
}

// DefaultBotPatterns are the author patterns treated as bots when
// ExcludeBots is set and the caller supplies none of its own.
var DefaultBotPatterns = []string{
	`\[bot\]$`,
	`^dependabot`,
	`^renovate`,
	`^github-actions`,
	`^codecov`,
	`^coderabbit`,
	`^copilot`,
	`^graphite-app`,
	`^vercel`,
	`^sonarcloud`,
}
