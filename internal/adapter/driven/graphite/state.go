package graphite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

// prListLimit caps the gh pr list page used to attach PR numbers. Stacks
// deeper than this many open PRs do not occur in practice.
const prListLimit = 100

// gtBranch is one entry of the flat branch map emitted by gt state.
type gtBranch struct {
	Trunk   bool       `json:"trunk"`
	Parents []gtParent `json:"parents"`
}

type gtParent struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

func parseState(data []byte) (map[string]gtBranch, error) {
	var graph map[string]gtBranch
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("parsing gt state: %w", err)
	}
	return graph, nil
}

type listedPR struct {
	Number      int    `json:"number"`
	HeadRefName string `json:"headRefName"`
}

// openPRsByBranch maps head branch names to open PR numbers. A gh failure
// leaves the stacks without PR numbers rather than failing the build.
func (p *Provider) openPRsByBranch(ctx context.Context) map[string]int {
	out, err := p.run(ctx, p.dir, "gh", "pr", "list",
		"--state", "open", "--json", "number,headRefName", "--limit", strconv.Itoa(prListLimit))
	if err != nil {
		slog.Debug("gh pr list unavailable, stacks carry no PR numbers", "error", err)
		return nil
	}

	var listed []listedPR
	if err := json.Unmarshal(out, &listed); err != nil {
		slog.Debug("gh pr list unparseable", "error", err)
		return nil
	}

	byBranch := make(map[string]int, len(listed))
	for _, pr := range listed {
		if _, dup := byBranch[pr.HeadRefName]; !dup {
			byBranch[pr.HeadRefName] = pr.Number
		}
	}
	return byBranch
}

// buildStacks inverts the parent edges of the gt state graph and walks each
// leaf back toward the trunk. Branch order in each stack is trunk-first and
// the stack takes its id from the leaf. Leaves are visited in name order so
// the result is stable across runs.
func buildStacks(graph map[string]gtBranch, prs map[string]int, repo string) []model.Stack {
	trunk := ""
	for name, b := range graph {
		if !b.Trunk {
			continue
		}
		if trunk != "" {
			// Two trunks means the state file is corrupt.
			return nil
		}
		trunk = name
	}
	if trunk == "" {
		return nil
	}

	childCount := make(map[string]int)
	for _, b := range graph {
		if b.Trunk || len(b.Parents) == 0 {
			continue
		}
		childCount[b.Parents[0].Ref]++
	}

	var leaves []string
	for name, b := range graph {
		if b.Trunk || childCount[name] > 0 {
			continue
		}
		leaves = append(leaves, name)
	}
	sort.Strings(leaves)

	var stacks []model.Stack
	for _, leaf := range leaves {
		path := walkToTrunk(graph, leaf, trunk)
		if len(path) == 0 {
			continue
		}
		stack := model.Stack{ID: leaf, Repo: repo, Branches: make([]model.StackBranch, 0, len(path))}
		for i, name := range path {
			b := model.StackBranch{Name: name, PR: prs[name], Position: i + 1}
			if i > 0 {
				b.Parent = path[i-1]
			} else if gb, ok := graph[name]; ok && len(gb.Parents) > 0 {
				// The bottom branch keeps its raw parent ref, normally the
				// trunk, so diff-based enrichment has a base for position 1.
				b.Parent = gb.Parents[0].Ref
			}
			stack.Branches = append(stack.Branches, b)
		}
		stacks = append(stacks, stack)
	}
	return stacks
}

// walkToTrunk returns leaf's ancestry trunk-first, leaf last. The trunk
// itself is excluded. A chain that never reaches the trunk still forms a
// path; a parent cycle terminates at the first revisit.
func walkToTrunk(graph map[string]gtBranch, leaf, trunk string) []string {
	var path []string
	seen := make(map[string]bool)
	for cur := leaf; cur != "" && cur != trunk && !seen[cur]; {
		seen[cur] = true
		path = append(path, cur)
		b, ok := graph[cur]
		if !ok || len(b.Parents) == 0 {
			break
		}
		cur = b.Parents[0].Ref
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
