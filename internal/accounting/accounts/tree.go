package accounts

import (
	"sort"
	"strings"
)

// TreeFilter narrows the account forest. Filters compose by intersection:
// type first, then active, then text, each pass over the previous result.
type TreeFilter struct {
	Type   *AccountType
	Active *bool
	Query  string
}

// BuildForest arranges accounts into a forest keyed by parent id. Nodes whose
// parent is missing become roots. A visited-set walk promotes any node caught
// in a parent cycle to a root, so the result is always a well-formed forest.
func BuildForest(list []Account) []*AccountNode {
	nodes := make(map[int64]*AccountNode, len(list))
	for _, a := range list {
		nodes[a.ID] = &AccountNode{Account: a}
	}

	var roots []*AccountNode
	for _, a := range list {
		node := nodes[a.ID]
		if a.ParentID == nil || *a.ParentID == a.ID {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*a.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	visited := make(map[int64]bool, len(nodes))
	var walk func(n *AccountNode)
	walk = func(n *AccountNode) {
		if visited[n.ID] {
			return
		}
		visited[n.ID] = true
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	for _, a := range list {
		if !visited[a.ID] {
			// part of a cycle; break it by promoting the node
			node := nodes[a.ID]
			roots = append(roots, node)
			walk(node)
		}
	}

	sortForest(roots)
	return roots
}

// FilterForest prunes the forest bottom-up. A node survives when it matches
// or any descendant matches, so every surviving leaf stays reachable and the
// tree stays navigable.
func FilterForest(nodes []*AccountNode, filter TreeFilter) []*AccountNode {
	out := nodes
	if filter.Type != nil {
		want := *filter.Type
		out = prune(out, func(a Account) bool { return a.Type == want })
	}
	if filter.Active != nil {
		want := *filter.Active
		out = prune(out, func(a Account) bool { return a.IsActive == want })
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		out = prune(out, func(a Account) bool {
			return strings.Contains(strings.ToLower(a.Code), q) ||
				strings.Contains(strings.ToLower(a.NameEn), q) ||
				strings.Contains(strings.ToLower(a.NameAr), q)
		})
	}
	return out
}

func prune(nodes []*AccountNode, match func(Account) bool) []*AccountNode {
	var out []*AccountNode
	for _, n := range nodes {
		children := prune(n.Children, match)
		if match(n.Account) || len(children) > 0 {
			out = append(out, &AccountNode{Account: n.Account, Children: children})
		}
	}
	return out
}

func sortForest(nodes []*AccountNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
	for _, n := range nodes {
		sortForest(n.Children)
	}
}
