package graph

import (
	"sort"
)

// =============================================================================
// TRANSITIVE CLOSURES
// =============================================================================

// TransitiveDependencies returns every node reachable by following
// dependency edges from reqID, excluding reqID itself.
func (g *DependencyGraph) TransitiveDependencies(reqID string) map[string]struct{} {
	return g.reachable(reqID, g.forward)
}

// TransitiveBlocks returns every node that transitively depends on reqID:
// the work unblocked by completing it. Excludes reqID itself.
func (g *DependencyGraph) TransitiveBlocks(reqID string) map[string]struct{} {
	return g.reachable(reqID, g.reverse)
}

// reachable walks edges iteratively with an explicit queue; recursion
// depth is not bounded by the data.
func (g *DependencyGraph) reachable(start string, edges map[string]map[string]struct{}) map[string]struct{} {
	seen := make(map[string]struct{})
	queue := make([]string, 0, len(edges[start]))
	for n := range edges[start] {
		queue = append(queue, n)
	}
	for len(queue) > 0 {
		current := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}
		for next := range edges[current] {
			if _, ok := seen[next]; !ok {
				queue = append(queue, next)
			}
		}
	}
	delete(seen, start)
	return seen
}

// =============================================================================
// CYCLE DETECTION (TARJAN SCC)
// =============================================================================

// FindCycles returns the strongly connected components with more than one
// member: the genuine dependency cycles. Self-loops are not reported here;
// validation.ValidateCycles reports them as self-dependencies. Members
// of each component are sorted ascending and components are ordered by
// their smallest member, so output is stable for snapshot comparison.
func (g *DependencyGraph) FindCycles() [][]string {
	type frame struct {
		node    string
		succ    []string
		nextIdx int
	}

	index := make(map[string]int, len(g.nodes))
	lowlink := make(map[string]int, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))
	var stack []string
	counter := 0
	var sccs [][]string

	// Iterative Tarjan: an explicit frame stack replaces recursion so a
	// long dependency chain cannot overflow the goroutine stack.
	strongconnect := func(root string) {
		frames := []frame{{node: root, succ: sortedSuccessors(g.forward[root])}}
		index[root] = counter
		lowlink[root] = counter
		counter++
		stack = append(stack, root)
		onStack[root] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			advanced := false
			for f.nextIdx < len(f.succ) {
				succ := f.succ[f.nextIdx]
				f.nextIdx++
				if _, visited := index[succ]; !visited {
					index[succ] = counter
					lowlink[succ] = counter
					counter++
					stack = append(stack, succ)
					onStack[succ] = true
					frames = append(frames, frame{node: succ, succ: sortedSuccessors(g.forward[succ])})
					advanced = true
					break
				} else if onStack[succ] {
					if index[succ] < lowlink[f.node] {
						lowlink[f.node] = index[succ]
					}
				}
			}
			if advanced {
				continue
			}

			// Frame exhausted: pop and fold lowlink into the parent.
			node := f.node
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if lowlink[node] < lowlink[parent.node] {
					lowlink[parent.node] = lowlink[node]
				}
			}
			if lowlink[node] == index[node] {
				var scc []string
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == node {
						break
					}
				}
				if len(scc) > 1 {
					sort.Strings(scc)
					sccs = append(sccs, scc)
				}
			}
		}
	}

	for _, node := range g.Nodes() {
		if _, visited := index[node]; !visited {
			strongconnect(node)
		}
	}

	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })
	return sccs
}

// FindCyclePath returns a walk through the given cycle members starting
// at the smallest member and closing on it, for human-readable reporting.
func (g *DependencyGraph) FindCyclePath(members map[string]struct{}) []string {
	if len(members) == 0 {
		return nil
	}
	memberList := make([]string, 0, len(members))
	for m := range members {
		memberList = append(memberList, m)
	}
	sort.Strings(memberList)
	start := memberList[0]

	path := []string{start}
	visited := map[string]struct{}{start: {}}
	current := start

	for {
		var candidates []string
		for next := range g.forward[current] {
			if _, ok := members[next]; ok {
				candidates = append(candidates, next)
			}
		}
		if len(candidates) == 0 {
			break
		}
		sort.Strings(candidates)

		next := ""
		for _, c := range candidates {
			if _, seen := visited[c]; !seen {
				next = c
				break
			}
		}
		if next == "" {
			// All successors visited; close the cycle if we can.
			for _, c := range candidates {
				if c == start {
					return append(path, start)
				}
			}
			break
		}
		path = append(path, next)
		visited[next] = struct{}{}
		current = next
		if current == start {
			return path
		}
	}

	// Walk failed to close (degenerate component data): report members.
	return memberList
}

func sortedSuccessors(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// ORDERING AND RANKING
// =============================================================================

// TopologicalSort returns a total order with every dependency preceding
// its dependents, or nil when the graph contains a cycle. Ties resolve by
// identifier so output is deterministic.
func (g *DependencyGraph) TopologicalSort() []string {
	// Kahn over the dependency relation: a node is ready once all of its
	// dependencies are placed.
	remaining := make(map[string]int, len(g.nodes))
	for node := range g.nodes {
		remaining[node] = len(g.forward[node])
	}

	var ready []string
	for node, n := range remaining {
		if n == 0 {
			ready = append(ready, node)
		}
	}
	sort.Strings(ready)

	result := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		result = append(result, node)

		var unblocked []string
		for dependent := range g.reverse[node] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				unblocked = append(unblocked, dependent)
			}
		}
		sort.Strings(unblocked)
		ready = mergeSorted(ready, unblocked)
	}

	if len(result) != len(g.nodes) {
		return nil
	}
	return result
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// CriticalPathEntry pairs a node with the number of nodes it transitively
// blocks.
type CriticalPathEntry struct {
	ReqID         string
	BlockingCount int
}

// CriticalPath ranks nodes by how much work completing them would
// unblock: nodes with a positive transitive-blocks count, ordered by
// count descending with identifier ascending as the tie-break.
func (g *DependencyGraph) CriticalPath() []CriticalPathEntry {
	var entries []CriticalPathEntry
	for node := range g.nodes {
		if count := len(g.TransitiveBlocks(node)); count > 0 {
			entries = append(entries, CriticalPathEntry{ReqID: node, BlockingCount: count})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BlockingCount != entries[j].BlockingCount {
			return entries[i].BlockingCount > entries[j].BlockingCount
		}
		return entries[i].ReqID < entries[j].ReqID
	})
	return entries
}

// Statistics summarizes the graph.
type Statistics struct {
	Nodes           int
	Edges           int
	CrossRepoEdges  int
	AvgDependencies float64
	Cycles          int
}

// Stats computes summary statistics.
func (g *DependencyGraph) Stats() Statistics {
	stats := Statistics{
		Nodes:          g.NodeCount(),
		Edges:          g.EdgeCount(),
		CrossRepoEdges: g.CrossRepoEdgeCount(),
		Cycles:         len(g.FindCycles()),
	}
	if stats.Nodes > 0 {
		stats.AvgDependencies = float64(stats.Edges) / float64(stats.Nodes)
	}
	return stats
}
