package auth

import "sort"

// PermissionGraph is an in-memory view of the permission hierarchy.
// Holding a key implies every key below it; cycles in the stored data are tolerated.
type PermissionGraph struct {
	children map[string][]string
}

// NewPermissionGraph indexes perms by parent.
func NewPermissionGraph(perms []Permission) *PermissionGraph {
	g := &PermissionGraph{children: make(map[string][]string)}
	for _, p := range perms {
		if p.Parent == "" || p.Parent == p.Key {
			continue
		}
		g.children[p.Parent] = append(g.children[p.Parent], p.Key)
	}
	return g
}

// Closure returns roots plus every key reachable below them, sorted and deduplicated.
// Each key is expanded at most once, so a cycle terminates the walk instead of looping.
func (g *PermissionGraph) Closure(roots ...string) []string {
	visited := make(map[string]bool, len(roots))
	stack := make([]string, 0, len(roots))
	for _, r := range roots {
		if r != "" && !visited[r] {
			visited[r] = true
			stack = append(stack, r)
		}
	}
	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if g == nil {
			continue
		}
		for _, child := range g.children[key] {
			if !visited[child] {
				visited[child] = true
				stack = append(stack, child)
			}
		}
	}

	out := make([]string, 0, len(visited))
	for k := range visited {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Descendants returns the keys strictly below key. If a cycle leads back to key it is
// not reported as its own descendant.
func (g *PermissionGraph) Descendants(key string) []string {
	all := g.Closure(key)
	out := all[:0]
	for _, k := range all {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

// Covers reports whether every required key is in held.
func Covers(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(held))
	for _, k := range held {
		set[k] = struct{}{}
	}
	for _, k := range required {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}
