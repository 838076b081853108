package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// threeStack is base -> mid -> top over trunk main, PRs 101..103.
func threeStack() model.Stack {
	return model.Stack{
		ID:   "top",
		Repo: "acme/api",
		Branches: []model.StackBranch{
			{Name: "base", PR: 101, Position: 1, Parent: "main"},
			{Name: "mid", PR: 102, Position: 2, Parent: "base"},
			{Name: "top", PR: 103, Position: 3, Parent: "mid"},
		},
	}
}

func locatorFor(stack model.Stack) func(branch string) *model.StackLocation {
	return func(branch string) *model.StackLocation {
		b, ok := stack.BranchByName(branch)
		if !ok {
			return nil
		}
		return &model.StackLocation{Stack: stack, Position: b.Position, Branch: branch}
	}
}

func TestStackEnricher_PlacesPRInStack(t *testing.T) {
	provider := &mockStackProvider{available: true, forBranch: locatorFor(threeStack())}
	enricher := application.NewStackEnricher(provider)

	entry := model.Entry{Repo: "acme/api", PR: 102, PRBranch: "mid", Type: model.EntryTypeComment}
	got, err := enricher.Enrich(context.Background(), entry)
	require.NoError(t, err)

	require.NotNil(t, got.Graphite)
	assert.Equal(t, "top", got.Graphite.StackID)
	assert.Equal(t, 2, got.Graphite.StackPosition)
	assert.Equal(t, 3, got.Graphite.StackSize)
	assert.Equal(t, 101, got.Graphite.ParentPR)
}

func TestStackEnricher_BottomOfStackHasNoParentPR(t *testing.T) {
	provider := &mockStackProvider{available: true, forBranch: locatorFor(threeStack())}
	enricher := application.NewStackEnricher(provider)

	got, err := enricher.Enrich(context.Background(), model.Entry{PRBranch: "base"})
	require.NoError(t, err)

	require.NotNil(t, got.Graphite)
	assert.Equal(t, 1, got.Graphite.StackPosition)
	assert.Zero(t, got.Graphite.ParentPR)
}

func TestStackEnricher_UntrackedBranchUnchanged(t *testing.T) {
	provider := &mockStackProvider{available: true, forBranch: locatorFor(threeStack())}
	enricher := application.NewStackEnricher(provider)

	got, err := enricher.Enrich(context.Background(), model.Entry{PRBranch: "hotfix"})
	require.NoError(t, err)
	assert.Nil(t, got.Graphite)
}

func TestStackEnricher_SkipsEntriesWithoutBranch(t *testing.T) {
	called := false
	provider := &mockStackProvider{
		forBranch: func(string) *model.StackLocation {
			called = true
			return nil
		},
	}
	enricher := application.NewStackEnricher(provider)

	_, err := enricher.Enrich(context.Background(), model.Entry{GHID: "X"})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestStackEnricher_ProviderErrorSurfaces(t *testing.T) {
	provider := &mockStackProvider{forBranchErr: errors.New("gt timed out")}
	enricher := application.NewStackEnricher(provider)

	got, err := enricher.Enrich(context.Background(), model.Entry{PRBranch: "mid"})
	require.Error(t, err)
	assert.Nil(t, got.Graphite)
}

func reviewCommentOn(branch, file string) model.Entry {
	return model.Entry{
		Repo:     "acme/api",
		PR:       103,
		GHID:     "RC_X",
		Type:     model.EntryTypeComment,
		Subtype:  model.SubtypeReviewComment,
		File:     file,
		PRBranch: branch,
	}
}

func TestProvenanceEnricher_AttributesFileToIntroducingBranch(t *testing.T) {
	provider := &mockStackProvider{available: true, forBranch: locatorFor(threeStack())}
	git := &mockLocalGit{
		changed: map[string][]string{
			"main..base": {"pkg/auth.go", "go.mod"},
			"base..mid":  {"internal/retry.go"},
			"mid..top":   {"cmd/main.go"},
		},
		lastCommit: map[string]*driven.FileCommit{
			"pkg/auth.go": {SHA: "abc999"},
		},
	}
	enricher := application.NewProvenanceEnricher(provider, git, "/work/api")

	got, err := enricher.Enrich(context.Background(), reviewCommentOn("top", "pkg/auth.go"))
	require.NoError(t, err)

	require.NotNil(t, got.FileProvenance)
	assert.Equal(t, 101, got.FileProvenance.OriginPR)
	assert.Equal(t, "base", got.FileProvenance.OriginBranch)
	assert.Equal(t, 1, got.FileProvenance.StackPosition)
	assert.Equal(t, "abc999", got.FileProvenance.OriginCommit)

	// The walk stopped at the first branch touching the file.
	assert.Equal(t, []string{"main..base"}, git.changedCalls)
}

func TestProvenanceEnricher_NeverLooksAboveOwnPosition(t *testing.T) {
	provider := &mockStackProvider{available: true, forBranch: locatorFor(threeStack())}
	git := &mockLocalGit{
		changed: map[string][]string{
			"main..base": {"pkg/auth.go"},
			"base..mid":  {"internal/retry.go"},
			"mid..top":   {"cmd/main.go"},
		},
	}
	enricher := application.NewProvenanceEnricher(provider, git, "/work/api")

	e := reviewCommentOn("mid", "cmd/main.go")
	e.PR = 102
	got, err := enricher.Enrich(context.Background(), e)
	require.NoError(t, err)

	// cmd/main.go lands in position 3, above the comment's own PR.
	assert.Nil(t, got.FileProvenance)
	assert.Equal(t, []string{"main..base", "base..mid"}, git.changedCalls)
}

func TestProvenanceEnricher_IgnoresNonFileEntries(t *testing.T) {
	git := &mockLocalGit{}
	provider := &mockStackProvider{available: true, forBranch: locatorFor(threeStack())}
	enricher := application.NewProvenanceEnricher(provider, git, "/work/api")

	issueComment := model.Entry{
		Type: model.EntryTypeComment, Subtype: model.SubtypeIssueComment, PRBranch: "top",
	}
	got, err := enricher.Enrich(context.Background(), issueComment)
	require.NoError(t, err)
	assert.Nil(t, got.FileProvenance)

	noFile := reviewCommentOn("top", "")
	got, err = enricher.Enrich(context.Background(), noFile)
	require.NoError(t, err)
	assert.Nil(t, got.FileProvenance)

	assert.Empty(t, git.changedCalls)
}

func TestProvenanceEnricher_MemoizesDiffsAcrossEntries(t *testing.T) {
	provider := &mockStackProvider{available: true, forBranch: locatorFor(threeStack())}
	git := &mockLocalGit{
		changed: map[string][]string{
			"main..base": {"pkg/auth.go", "go.mod"},
		},
	}
	enricher := application.NewProvenanceEnricher(provider, git, "/work/api")

	_, err := enricher.Enrich(context.Background(), reviewCommentOn("top", "pkg/auth.go"))
	require.NoError(t, err)
	_, err = enricher.Enrich(context.Background(), reviewCommentOn("top", "go.mod"))
	require.NoError(t, err)

	assert.Equal(t, []string{"main..base"}, git.changedCalls)
}

func TestProvenanceEnricher_DiffErrorSurfaces(t *testing.T) {
	provider := &mockStackProvider{available: true, forBranch: locatorFor(threeStack())}
	git := &mockLocalGit{changedErr: errors.New("not a git repository")}
	enricher := application.NewProvenanceEnricher(provider, git, "/work/api")

	got, err := enricher.Enrich(context.Background(), reviewCommentOn("top", "pkg/auth.go"))
	require.Error(t, err)
	assert.Nil(t, got.FileProvenance)
}
