package graph

// StrictCycles returns one representative path per dependency cycle that is
// made exclusively of synchronous edges. A cycle broken by at least one
// deferred edge is legal and is not reported.
func (g *Graph) StrictCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	white := make(map[string]bool, len(g.nodes))
	for id := range g.nodes {
		white[id] = true
	}

	var cycles [][]string
	gray := make(map[string]bool, len(g.nodes))
	var path []string

	var dfs func(id string)
	dfs = func(id string) {
		white[id] = false
		gray[id] = true
		path = append(path, id)

		for _, e := range g.nodes[id].Edges {
			if e.Deferred {
				continue
			}
			if _, exists := g.nodes[e.To]; !exists {
				continue
			}
			if gray[e.To] {
				cycles = append(cycles, cyclePath(path, e.To))
				continue
			}
			if white[e.To] {
				dfs(e.To)
			}
		}

		gray[id] = false
		path = path[:len(path)-1]
	}

	for id := range g.nodes {
		if white[id] {
			dfs(id)
		}
	}

	return cycles
}

// cyclePath slices the DFS path from the first occurrence of start and
// closes the loop by repeating it.
func cyclePath(path []string, start string) []string {
	for i, p := range path {
		if p == start {
			cycle := make([]string, 0, len(path)-i+1)
			cycle = append(cycle, path[i:]...)
			cycle = append(cycle, start)
			return cycle
		}
	}
	return []string{start, start}
}

func (g *Graph) HasStrictCycle() bool {
	return len(g.StrictCycles()) > 0
}
