package model

// StackBranch is one node of a Graphite stack in bottom-up order.
type StackBranch struct {
	Name     string `json:"name"`
	PR       int    `json:"pr,omitempty"`
	Position int    `json:"position"`
	Parent   string `json:"parent,omitempty"`
	Current  bool   `json:"current,omitempty"`
}

// Stack is a resolved Graphite stack for a repository. Branches are ordered
// from trunk upward; Position is 1-based within the stack.
type Stack struct {
	ID       string        `json:"id"`
	Repo     string        `json:"repo"`
	Branches []StackBranch `json:"branches"`
}

// Size returns the number of stacked branches, excluding trunk.
func (s Stack) Size() int {
	return len(s.Branches)
}

// BranchByPR returns the stack node carrying the given PR number.
func (s Stack) BranchByPR(pr int) (StackBranch, bool) {
	for _, b := range s.Branches {
		if b.PR == pr {
			return b, true
		}
	}
	return StackBranch{}, false
}

// BranchByName returns the stack node for a branch name.
func (s Stack) BranchByName(name string) (StackBranch, bool) {
	for _, b := range s.Branches {
		if b.Name == name {
			return b, true
		}
	}
	return StackBranch{}, false
}

// StackLocation pinpoints a branch within a stack. The located branch is
// marked Current in the embedded stack.
type StackLocation struct {
	Stack    Stack  `json:"stack"`
	Position int    `json:"position"`
	Branch   string `json:"branch"`
}

// StackPRs lists pull request numbers walked from a branch. PRs is ordered
// trunk-first and holds the branches above (up), below (down), or the whole
// stack (all); up and down exclude the starting branch. CurrentPR is the PR
// on the starting branch itself, 0 when it has none.
type StackPRs struct {
	PRs       []int          `json:"prs"`
	CurrentPR int            `json:"current_pr,omitempty"`
	Stack     Stack          `json:"stack"`
	Direction StackDirection `json:"direction"`
}

// ParentPR returns the PR number one position below the given branch, or 0
// when the branch sits on trunk.
func (s Stack) ParentPR(name string) int {
	b, ok := s.BranchByName(name)
	if !ok || b.Parent == "" {
		return 0
	}
	parent, ok := s.BranchByName(b.Parent)
	if !ok {
		return 0
	}
	return parent.PR
}
