package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// filterFlags is the query filter surface shared by list and worklist.
type filterFlags struct {
	prs            []int
	types          []string
	states         []string
	label          string
	since          string
	before         string
	author         string
	excludeAuthors []string
	excludeBots    bool
	botPatterns    []string
	orphaned       bool
	includeFrozen  bool
	id             string
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&ff.prs, "pr", nil, "restrict to these PR numbers")
	cmd.Flags().StringSliceVar(&ff.types, "type", nil, "entry types: comment, review, commit, ci, event")
	cmd.Flags().StringSliceVar(&ff.states, "state", nil, "PR states: open, draft, closed, merged")
	cmd.Flags().StringVar(&ff.label, "label", "", "only PRs whose labels contain this substring")
	cmd.Flags().StringVar(&ff.since, "since", "", "window start, e.g. 6h, 3d, 2w, 1m")
	cmd.Flags().StringVar(&ff.before, "before", "", "window end, same syntax as --since")
	cmd.Flags().StringVar(&ff.author, "author", "", "only entries by this author")
	cmd.Flags().StringSliceVar(&ff.excludeAuthors, "exclude-author", nil, "drop entries by these authors")
	cmd.Flags().BoolVar(&ff.excludeBots, "exclude-bots", false, "drop entries by known bot authors")
	cmd.Flags().StringSliceVar(&ff.botPatterns, "bot-pattern", nil, "bot author regexes, replacing the defaults")
	cmd.Flags().BoolVar(&ff.orphaned, "orphaned", false, "only unresolved threads on closed or merged PRs")
	cmd.Flags().BoolVar(&ff.includeFrozen, "include-frozen", false, "include entries hidden by freeze markers")
	cmd.Flags().StringVar(&ff.id, "id", "", "exact GitHub node id")
}

// build turns the flags into a model.Filter. Config-level noise filters
// apply when the matching flag was not given explicitly.
func (ff *filterFlags) build(cmd *cobra.Command, a *app) (model.Filter, error) {
	repo, err := a.targetRepo(false)
	if err != nil {
		return model.Filter{}, err
	}

	f := model.Filter{
		ExactRepo:     repo,
		PRs:           ff.prs,
		Label:         ff.label,
		Author:        ff.author,
		Orphaned:      ff.orphaned,
		IncludeFrozen: ff.includeFrozen,
		ID:            ff.id,
	}

	for _, raw := range ff.types {
		t, err := parseEntryType(raw)
		if err != nil {
			return model.Filter{}, err
		}
		f.Types = append(f.Types, t)
	}
	for _, raw := range ff.states {
		s, err := parsePRState(raw)
		if err != nil {
			return model.Filter{}, err
		}
		f.States = append(f.States, s)
	}

	now := time.Now().UTC()
	if ff.since != "" {
		t, err := application.ParseSince(ff.since, now)
		if err != nil {
			return model.Filter{}, err
		}
		f.Since = &t
	}
	if ff.before != "" {
		t, err := application.ParseSince(ff.before, now)
		if err != nil {
			return model.Filter{}, err
		}
		f.Before = &t
	}

	f.ExcludeBots = ff.excludeBots
	if !cmd.Flags().Changed("exclude-bots") {
		f.ExcludeBots = a.cfg.Filters.ExcludeBots
	}
	f.ExcludeAuthors = ff.excludeAuthors
	if len(f.ExcludeAuthors) == 0 {
		f.ExcludeAuthors = a.cfg.Filters.ExcludeAuthors
	}
	f.BotPatterns = ff.botPatterns
	if len(f.BotPatterns) == 0 {
		f.BotPatterns = a.cfg.BotPatterns()
	}

	return f, nil
}

func parseEntryType(raw string) (model.EntryType, error) {
	switch t := model.EntryType(strings.ToLower(strings.TrimSpace(raw))); t {
	case model.EntryTypeComment, model.EntryTypeReview, model.EntryTypeCommit,
		model.EntryTypeCI, model.EntryTypeEvent:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown entry type %q", fwerr.ErrValidation, raw)
	}
}

func parsePRState(raw string) (model.PRState, error) {
	switch s := model.PRState(strings.ToLower(strings.TrimSpace(raw))); s {
	case model.PRStateOpen, model.PRStateDraft, model.PRStateClosed, model.PRStateMerged:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown PR state %q", fwerr.ErrValidation, raw)
	}
}

// parseStaleAfter turns an optional Nh|Nd|Nw|Nm flag into a duration, zero
// meaning "use the service default".
func parseStaleAfter(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return application.ParseSinceDuration(raw)
}
