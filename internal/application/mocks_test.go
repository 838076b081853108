package application_test

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// --- Mock stores ---

// mockEntryStore keeps entries in memory with the same upsert and ordering
// semantics as the sqlite store: (repo, gh_id) unique, newest first with
// gh_id ascending on ties, and the SQL-expressible filter subset applied.
type mockEntryStore struct {
	mu      sync.Mutex
	entries []model.Entry

	inserts   [][]model.Entry
	updates   []model.Entry
	queries   []model.Filter
	insertErr error
	updateErr error
	queryErr  error
}

func (m *mockEntryStore) InsertEntries(_ context.Context, batch []model.Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.inserts = append(m.inserts, batch)

	added := 0
	for _, e := range batch {
		if i := m.indexOf(e.Repo, e.GHID); i >= 0 {
			m.entries[i] = e
		} else {
			m.entries = append(m.entries, e)
			added++
		}
	}
	return added, nil
}

func (m *mockEntryStore) UpdateEntry(_ context.Context, e model.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	i := m.indexOf(e.Repo, e.GHID)
	if i < 0 {
		return fmt.Errorf("%w: entry %s", fwerr.ErrNotFound, e.GHID)
	}
	m.entries[i] = e
	m.updates = append(m.updates, e)
	return nil
}

func (m *mockEntryStore) QueryEntries(_ context.Context, f model.Filter) ([]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	m.queries = append(m.queries, f)

	var out []model.Entry
	for _, e := range m.entries {
		if matchesSQLFilter(e, f) {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *mockEntryStore) GetEntry(_ context.Context, repo, ghID string) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(repo, ghID); i >= 0 {
		e := m.entries[i]
		return &e, nil
	}
	return nil, fmt.Errorf("%w: entry %s", fwerr.ErrNotFound, ghID)
}

func (m *mockEntryStore) EntriesForPR(_ context.Context, repo string, pr int) ([]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Entry
	for _, e := range m.entries {
		if e.Repo == repo && e.PR == pr {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *mockEntryStore) CountEntries(_ context.Context, f model.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if matchesSQLFilter(e, f) {
			n++
		}
	}
	return n, nil
}

func (m *mockEntryStore) Repos(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, e := range m.entries {
		if !seen[e.Repo] {
			seen[e.Repo] = true
			out = append(out, e.Repo)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockEntryStore) indexOf(repo, ghID string) int {
	for i, e := range m.entries {
		if e.Repo == repo && e.GHID == ghID {
			return i
		}
	}
	return -1
}

func matchesSQLFilter(e model.Entry, f model.Filter) bool {
	switch {
	case f.ExactRepo != "" && e.Repo != f.ExactRepo:
		return false
	case f.ExactRepo == "" && f.Repo != "" && !strings.Contains(e.Repo, f.Repo):
		return false
	}
	if len(f.PRs) > 0 && !containsInt(f.PRs, e.PR) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
		return false
	}
	if len(f.States) > 0 && !containsState(f.States, e.PRState) {
		return false
	}
	if f.Label != "" && !labelMatches(e.PRLabels, f.Label) {
		return false
	}
	if f.Since != nil && e.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Before != nil && !e.CreatedAt.Before(*f.Before) {
		return false
	}
	if f.Author != "" && !strings.EqualFold(e.Author, f.Author) {
		return false
	}
	if f.ID != "" && e.GHID != f.ID {
		return false
	}
	return true
}

func sortNewestFirst(entries []model.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].GHID < entries[j].GHID
	})
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsType(xs []model.EntryType, x model.EntryType) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsState(xs []model.PRState, x model.PRState) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func labelMatches(labels []string, want string) bool {
	for _, l := range labels {
		if strings.Contains(l, want) {
			return true
		}
	}
	return false
}

type mockPRStore struct {
	mu      sync.Mutex
	prs     []model.PRMeta
	upserts []model.PRMeta
}

func (m *mockPRStore) Upsert(_ context.Context, pr model.PRMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, pr)
	for i, p := range m.prs {
		if p.Repo == pr.Repo && p.Number == pr.Number {
			m.prs[i] = pr
			return nil
		}
	}
	m.prs = append(m.prs, pr)
	return nil
}

func (m *mockPRStore) Get(_ context.Context, repo string, number int) (*model.PRMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prs {
		if p.Repo == repo && p.Number == number {
			pr := p
			return &pr, nil
		}
	}
	return nil, fmt.Errorf("%w: pr #%d", fwerr.ErrNotFound, number)
}

func (m *mockPRStore) ListByRepo(_ context.Context, repo string) ([]model.PRMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PRMeta
	for _, p := range m.prs {
		if p.Repo == repo {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPRStore) ListByStates(_ context.Context, states []model.PRState) ([]model.PRMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PRMeta
	for _, p := range m.prs {
		if containsState(states, p.State) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPRStore) ListAll(_ context.Context) ([]model.PRMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PRMeta(nil), m.prs...), nil
}

type mockSyncMetaStore struct {
	mu   sync.Mutex
	rows map[string]model.SyncMeta
	puts []model.SyncMeta

	getErr error
	putErr error
}

func syncKey(repo string, scope model.SyncScope) string {
	return repo + "|" + string(scope)
}

func (m *mockSyncMetaStore) Get(_ context.Context, repo string, scope model.SyncScope) (*model.SyncMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if row, ok := m.rows[syncKey(repo, scope)]; ok {
		return &row, nil
	}
	return nil, nil
}

func (m *mockSyncMetaStore) Put(_ context.Context, meta model.SyncMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	if m.rows == nil {
		m.rows = make(map[string]model.SyncMeta)
	}
	m.rows[syncKey(meta.Repo, meta.Scope)] = meta
	m.puts = append(m.puts, meta)
	return nil
}

func (m *mockSyncMetaStore) List(_ context.Context) ([]model.SyncMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SyncMeta
	for _, row := range m.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Repo != out[j].Repo {
			return out[i].Repo < out[j].Repo
		}
		return out[i].Scope < out[j].Scope
	})
	return out, nil
}

func (m *mockSyncMetaStore) Delete(_ context.Context, repo string, scope model.SyncScope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, syncKey(repo, scope))
	return nil
}

type mockAckStore struct {
	mu     sync.Mutex
	acks   map[string]model.Ack
	ackErr error
}

func ackKey(repo, commentID string) string {
	return repo + "|" + commentID
}

func (m *mockAckStore) Ack(_ context.Context, ack model.Ack) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ackErr != nil {
		return false, m.ackErr
	}
	if m.acks == nil {
		m.acks = make(map[string]model.Ack)
	}
	key := ackKey(ack.Repo, ack.CommentID)
	if _, ok := m.acks[key]; ok {
		return false, nil
	}
	m.acks[key] = ack
	return true, nil
}

func (m *mockAckStore) IsAcked(_ context.Context, repo, commentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.acks[ackKey(repo, commentID)]
	return ok, nil
}

func (m *mockAckStore) List(_ context.Context, repo string) ([]model.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Ack
	for _, a := range m.acks {
		if repo == "" || a.Repo == repo {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AckedAt.After(out[j].AckedAt) })
	return out, nil
}

func (m *mockAckStore) Remove(_ context.Context, repo, commentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ackKey(repo, commentID)
	if _, ok := m.acks[key]; !ok {
		return fmt.Errorf("%w: ack for %s", fwerr.ErrNotFound, commentID)
	}
	delete(m.acks, key)
	return nil
}

func (m *mockAckStore) AckedSet(_ context.Context, repo string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool)
	for _, a := range m.acks {
		if a.Repo == repo {
			out[a.CommentID] = true
		}
	}
	return out, nil
}

// seedAck marks a comment acked without going through the service.
func (m *mockAckStore) seedAck(repo, commentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acks == nil {
		m.acks = make(map[string]model.Ack)
	}
	m.acks[ackKey(repo, commentID)] = model.Ack{Repo: repo, CommentID: commentID, AckedAt: time.Now()}
}

type mockFreezeStore struct {
	mu      sync.Mutex
	freezes []model.Freeze
	removed []model.Freeze
}

func (m *mockFreezeStore) Freeze(_ context.Context, f model.Freeze) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.freezes {
		if existing.Repo == f.Repo && existing.PR == f.PR && existing.Kind == f.Kind && existing.TargetID == f.TargetID {
			m.freezes[i] = f
			return nil
		}
	}
	m.freezes = append(m.freezes, f)
	return nil
}

func (m *mockFreezeStore) Unfreeze(_ context.Context, repo string, pr int, kind model.FreezeKind, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.freezes {
		if f.Repo == repo && f.PR == pr && f.Kind == kind && f.TargetID == targetID {
			m.removed = append(m.removed, f)
			m.freezes = append(m.freezes[:i], m.freezes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: freeze on #%d", fwerr.ErrNotFound, pr)
}

func (m *mockFreezeStore) List(_ context.Context, repo string) ([]model.Freeze, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Freeze
	for _, f := range m.freezes {
		if repo == "" || f.Repo == repo {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFreezeStore) ForRepos(_ context.Context, repos []string) ([]model.Freeze, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Freeze
	for _, f := range m.freezes {
		for _, r := range repos {
			if f.Repo == r {
				out = append(out, f)
				break
			}
		}
	}
	return out, nil
}

type mockMetaStore struct {
	mu     sync.Mutex
	values map[string]string
	sets   []string // "key=value" in call order.
	getErr error
	setErr error
}

func (m *mockMetaStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.values[key], nil
}

func (m *mockMetaStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	m.sets = append(m.sets, key+"="+value)
	return nil
}

func (m *mockMetaStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// --- Mock gateway ---

type activityCall struct {
	Repo string
	Opts driven.ActivityOpts
}

type mockGitHubClient struct {
	mu               sync.Mutex
	fetchActivity    func(repo string, opts driven.ActivityOpts) (*driven.ActivityPage, error)
	fetchThreadMap   func(repo string, number int) (map[string]driven.ThreadRef, error)
	fetchCommitFiles func(repo, sha string) ([]string, error)
	viewer           string
	viewerErr        error

	activityCalls   []activityCall
	threadMapCalls  int
	commitFileCalls []string
}

func (m *mockGitHubClient) FetchActivity(_ context.Context, repo string, opts driven.ActivityOpts) (*driven.ActivityPage, error) {
	m.mu.Lock()
	m.activityCalls = append(m.activityCalls, activityCall{Repo: repo, Opts: opts})
	fn := m.fetchActivity
	m.mu.Unlock()
	if fn == nil {
		return &driven.ActivityPage{}, nil
	}
	return fn(repo, opts)
}

func (m *mockGitHubClient) FetchPullRequestID(_ context.Context, repo string, number int) (string, error) {
	return "PR_" + repo + "#" + strconv.Itoa(number), nil
}

func (m *mockGitHubClient) FetchReviewThreadMap(_ context.Context, repo string, number int) (map[string]driven.ThreadRef, error) {
	m.mu.Lock()
	m.threadMapCalls++
	fn := m.fetchThreadMap
	m.mu.Unlock()
	if fn == nil {
		return map[string]driven.ThreadRef{}, nil
	}
	return fn(repo, number)
}

func (m *mockGitHubClient) FetchViewerLogin(_ context.Context) (string, error) {
	if m.viewerErr != nil {
		return "", m.viewerErr
	}
	return m.viewer, nil
}

func (m *mockGitHubClient) FetchCommitFiles(_ context.Context, repo, sha string) ([]string, error) {
	m.mu.Lock()
	m.commitFileCalls = append(m.commitFileCalls, sha)
	fn := m.fetchCommitFiles
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(repo, sha)
}

type issueCommentCall struct {
	Repo   string
	Number int
	Body   string
}

type threadReplyCall struct {
	ThreadID string
	Body     string
}

type reactionCall struct {
	SubjectID string
	Content   string
}

type reviewCall struct {
	Repo   string
	Number int
	Event  string
	Body   string
}

type editCall struct {
	Repo   string
	Number int
	Edit   driven.PREdit
}

type mockGitHubWriter struct {
	mu            sync.Mutex
	issueComments []issueCommentCall
	threadReplies []threadReplyCall
	resolved      []string
	reactions     []reactionCall
	reviews       []reviewCall
	edits         []editCall

	issueCommentRef *driven.CommentRef
	threadReplyRef  *driven.CommentRef
	issueCommentErr error
	threadReplyErr  error
	resolveErr      error
	reactionErr     error
	reviewErr       error
	editErr         error
}

func (m *mockGitHubWriter) AddIssueComment(_ context.Context, repo string, number int, body string) (*driven.CommentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issueCommentErr != nil {
		return nil, m.issueCommentErr
	}
	m.issueComments = append(m.issueComments, issueCommentCall{Repo: repo, Number: number, Body: body})
	if m.issueCommentRef != nil {
		return m.issueCommentRef, nil
	}
	return &driven.CommentRef{ID: "IC_new", URL: "https://example.test/ic"}, nil
}

func (m *mockGitHubWriter) AddReviewThreadReply(_ context.Context, threadID, body string) (*driven.CommentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.threadReplyErr != nil {
		return nil, m.threadReplyErr
	}
	m.threadReplies = append(m.threadReplies, threadReplyCall{ThreadID: threadID, Body: body})
	if m.threadReplyRef != nil {
		return m.threadReplyRef, nil
	}
	return &driven.CommentRef{ID: "RC_new", URL: "https://example.test/rc"}, nil
}

func (m *mockGitHubWriter) ResolveReviewThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveErr != nil {
		return m.resolveErr
	}
	m.resolved = append(m.resolved, threadID)
	return nil
}

func (m *mockGitHubWriter) AddReaction(_ context.Context, subjectID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reactionErr != nil {
		return m.reactionErr
	}
	m.reactions = append(m.reactions, reactionCall{SubjectID: subjectID, Content: content})
	return nil
}

func (m *mockGitHubWriter) SubmitReview(_ context.Context, repo string, number int, event, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reviewErr != nil {
		return m.reviewErr
	}
	m.reviews = append(m.reviews, reviewCall{Repo: repo, Number: number, Event: event, Body: body})
	return nil
}

func (m *mockGitHubWriter) EditPullRequest(_ context.Context, repo string, number int, edit driven.PREdit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, editCall{Repo: repo, Number: number, Edit: edit})
	return nil
}

// --- Mock stack provider and local git ---

type mockStackProvider struct {
	available    bool
	stacks       []model.Stack
	forBranch    func(branch string) *model.StackLocation
	forBranchErr error
	stackPRs     func(branch string, dir model.StackDirection) *model.StackPRs
	clears       int
}

func (m *mockStackProvider) IsAvailable(_ context.Context) bool { return m.available }

func (m *mockStackProvider) Stacks(_ context.Context) ([]model.Stack, error) {
	return m.stacks, nil
}

func (m *mockStackProvider) StackForBranch(_ context.Context, branch string) (*model.StackLocation, error) {
	if m.forBranchErr != nil {
		return nil, m.forBranchErr
	}
	if m.forBranch == nil {
		return nil, nil
	}
	return m.forBranch(branch), nil
}

func (m *mockStackProvider) StackPRs(_ context.Context, branch string, dir model.StackDirection) (*model.StackPRs, error) {
	if m.stackPRs == nil {
		return nil, nil
	}
	return m.stackPRs(branch, dir), nil
}

func (m *mockStackProvider) ClearCache() { m.clears++ }

type mockLocalGit struct {
	repo       string
	branch     string
	changed    map[string][]string // "base..head" keyed diffs.
	changedErr error
	lastCommit map[string]*driven.FileCommit

	changedCalls []string
}

func (m *mockLocalGit) DetectRepo(_ context.Context, _ string) (string, error) {
	if m.repo == "" {
		return "", fwerr.ErrRepoDetect
	}
	return m.repo, nil
}

func (m *mockLocalGit) CurrentBranch(_ context.Context, _ string) (string, error) {
	return m.branch, nil
}

func (m *mockLocalGit) ChangedFiles(_ context.Context, _, base, head string) ([]string, error) {
	key := base + ".." + head
	m.changedCalls = append(m.changedCalls, key)
	if m.changedErr != nil {
		return nil, m.changedErr
	}
	return m.changed[key], nil
}

func (m *mockLocalGit) LastCommitForFile(_ context.Context, _, path string) (*driven.FileCommit, error) {
	return m.lastCommit[path], nil
}

// --- Mock sync trigger and enricher ---

type syncCall struct {
	Repo  string
	Scope model.SyncScope
	Opts  application.SyncOptions
}

type mockSyncer struct {
	mu    sync.Mutex
	calls []syncCall
	err   error
}

func (m *mockSyncer) Sync(_ context.Context, repo string, scope model.SyncScope, opts application.SyncOptions) (*model.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, syncCall{Repo: repo, Scope: scope, Opts: opts})
	if m.err != nil {
		return nil, m.err
	}
	return &model.SyncResult{Repo: repo, Scope: scope}, nil
}

type mockEnricher struct {
	name string
	fn   func(e model.Entry) (model.Entry, error)
}

func (m *mockEnricher) Name() string { return m.name }

func (m *mockEnricher) Enrich(_ context.Context, e model.Entry) (model.Entry, error) {
	return m.fn(e)
}

// --- Shared helpers ---

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }
