package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// doctorStaleSync is the age past which a sync scope counts as stale in the
// doctor report.
const doctorStaleSync = 24 * time.Hour

// RepoStatus summarizes one repo's cached state.
type RepoStatus struct {
	Repo    string           `json:"repo"`
	Entries int              `json:"entries"`
	PRs     int              `json:"prs"`
	Acks    int              `json:"acks"`
	Freezes int              `json:"freezes"`
	Sync    []model.SyncMeta `json:"sync,omitempty"`
}

// CacheStatus is the inventory of the local store, one row per repo.
type CacheStatus struct {
	Repos        []RepoStatus `json:"repos"`
	TotalEntries int          `json:"total_entries"`
	TotalPRs     int          `json:"total_prs"`
	TotalAcks    int          `json:"total_acks"`
	TotalFreezes int          `json:"total_freezes"`
}

// DoctorCheck is one environment probe.
type DoctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// DoctorReport collects the probes; Healthy is their conjunction.
type DoctorReport struct {
	Checks  []DoctorCheck `json:"checks"`
	Healthy bool          `json:"healthy"`
}

// StatusService reports on the local cache and the tool's environment.
// gh and stacks are nil when no token or no repository is configured; the
// corresponding doctor probes then report unavailable instead of failing.
type StatusService struct {
	entries driven.EntryStore
	prs     driven.PRStore
	acks    driven.AckStore
	freezes driven.FreezeStore
	sync    driven.SyncMetaStore
	gh      driven.GitHubClient
	stacks  driven.StackProvider
}

// NewStatusService creates a StatusService. gh and stacks may be nil.
func NewStatusService(
	entries driven.EntryStore,
	prs driven.PRStore,
	acks driven.AckStore,
	freezes driven.FreezeStore,
	sync driven.SyncMetaStore,
	gh driven.GitHubClient,
	stacks driven.StackProvider,
) *StatusService {
	return &StatusService{
		entries: entries,
		prs:     prs,
		acks:    acks,
		freezes: freezes,
		sync:    sync,
		gh:      gh,
		stacks:  stacks,
	}
}

// CacheStatus inventories the store per repo: entry and PR counts, ack and
// freeze counts, and the sync progress rows.
func (s *StatusService) CacheStatus(ctx context.Context) (*CacheStatus, error) {
	repos, err := s.entries.Repos(ctx)
	if err != nil {
		return nil, err
	}

	syncRows, err := s.sync.List(ctx)
	if err != nil {
		return nil, err
	}
	syncByRepo := make(map[string][]model.SyncMeta)
	for _, m := range syncRows {
		syncByRepo[m.Repo] = append(syncByRepo[m.Repo], m)
	}
	// A repo can have sync progress before its first entry lands.
	known := make(map[string]bool, len(repos))
	for _, r := range repos {
		known[r] = true
	}
	for repo := range syncByRepo {
		if !known[repo] {
			repos = append(repos, repo)
		}
	}
	sort.Strings(repos)

	allAcks, err := s.acks.List(ctx, "")
	if err != nil {
		return nil, err
	}
	acksByRepo := make(map[string]int)
	for _, a := range allAcks {
		acksByRepo[a.Repo]++
	}

	allFreezes, err := s.freezes.List(ctx, "")
	if err != nil {
		return nil, err
	}
	freezesByRepo := make(map[string]int)
	for _, f := range allFreezes {
		freezesByRepo[f.Repo]++
	}

	allPRs, err := s.prs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	prsByRepo := make(map[string]int)
	for _, pr := range allPRs {
		prsByRepo[pr.Repo]++
	}

	status := &CacheStatus{
		TotalAcks:    len(allAcks),
		TotalFreezes: len(allFreezes),
		TotalPRs:     len(allPRs),
	}
	for _, repo := range repos {
		count, err := s.entries.CountEntries(ctx, model.Filter{ExactRepo: repo})
		if err != nil {
			return nil, err
		}
		status.Repos = append(status.Repos, RepoStatus{
			Repo:    repo,
			Entries: count,
			PRs:     prsByRepo[repo],
			Acks:    acksByRepo[repo],
			Freezes: freezesByRepo[repo],
			Sync:    syncByRepo[repo],
		})
		status.TotalEntries += count
	}
	return status, nil
}

// Doctor probes the token, the store, sync freshness, and stack tooling.
func (s *StatusService) Doctor(ctx context.Context) (*DoctorReport, error) {
	report := &DoctorReport{Healthy: true}
	add := func(c DoctorCheck) {
		report.Checks = append(report.Checks, c)
		if !c.OK {
			report.Healthy = false
		}
	}

	add(s.checkToken(ctx))
	storeCheck, syncCheck, err := s.checkStore(ctx)
	if err != nil {
		return nil, err
	}
	add(storeCheck)
	add(syncCheck)
	add(s.checkStacks(ctx))

	return report, nil
}

func (s *StatusService) checkToken(ctx context.Context) DoctorCheck {
	c := DoctorCheck{Name: "github token"}
	if s.gh == nil {
		c.Detail = "not configured; read-only GitHub access"
		return c
	}
	login, err := s.gh.FetchViewerLogin(ctx)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = "authenticated as " + login
	return c
}

func (s *StatusService) checkStore(ctx context.Context) (store, freshness DoctorCheck, err error) {
	store = DoctorCheck{Name: "local store"}
	freshness = DoctorCheck{Name: "sync freshness"}

	repos, err := s.entries.Repos(ctx)
	if err != nil {
		return store, freshness, err
	}
	total, err := s.entries.CountEntries(ctx, model.Filter{})
	if err != nil {
		return store, freshness, err
	}
	store.OK = true
	store.Detail = fmt.Sprintf("%d entries across %d repos", total, len(repos))

	syncRows, err := s.sync.List(ctx)
	if err != nil {
		return store, freshness, err
	}
	if len(syncRows) == 0 {
		freshness.Detail = "never synced"
		return store, freshness, nil
	}

	now := time.Now().UTC()
	var stale []string
	for _, m := range syncRows {
		if now.Sub(m.LastSync) > doctorStaleSync {
			stale = append(stale, fmt.Sprintf("%s %s", m.Repo, m.Scope))
		}
	}
	if len(stale) == 0 {
		freshness.OK = true
		freshness.Detail = fmt.Sprintf("all %d scopes synced within %s", len(syncRows), doctorStaleSync)
	} else {
		freshness.Detail = fmt.Sprintf("%d of %d scopes older than %s: %s",
			len(stale), len(syncRows), doctorStaleSync, joinLimited(stale, 3))
	}
	return store, freshness, nil
}

func (s *StatusService) checkStacks(ctx context.Context) DoctorCheck {
	c := DoctorCheck{Name: "stack tooling"}
	if s.stacks == nil {
		c.OK = true
		c.Detail = "no repository detected; stack enrichment off"
		return c
	}
	if s.stacks.IsAvailable(ctx) {
		c.OK = true
		c.Detail = "gt state readable"
		return c
	}
	// Missing gt is a degraded mode, not a failure.
	c.OK = true
	c.Detail = "gt unavailable; stack enrichment off"
	return c
}

func joinLimited(items []string, max int) string {
	if len(items) <= max {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:max], ", "), len(items)-max)
}
