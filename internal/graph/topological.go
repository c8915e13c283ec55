package graph

import "errors"

var ErrCycleDetected = errors.New("cycle detected in graph")

// TopologicalSort orders nodes so that every node comes after its
// synchronous dependencies. Deferred edges do not constrain the order;
// their targets are complete by the time a deferred handle is first read.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dependents := make(map[string][]string, len(g.nodes))
	inDegree := make(map[string]int, len(g.nodes))

	for id := range g.nodes {
		inDegree[id] = 0
	}

	for id, node := range g.nodes {
		for _, e := range node.Edges {
			if e.Deferred {
				continue
			}
			if _, exists := g.nodes[e.To]; exists {
				dependents[e.To] = append(dependents[e.To], id)
				inDegree[id]++
			}
		}
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	var sorted []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)

		for _, dependent := range dependents[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		return nil, ErrCycleDetected
	}

	return sorted, nil
}

type ParallelGroup struct {
	Level int
	Nodes []string
}

// ParallelGroups buckets nodes by dependency depth. Nodes in the same group
// have no synchronous path between each other and may be instantiated
// concurrently.
func (g *Graph) ParallelGroups() ([]ParallelGroup, error) {
	if g.HasStrictCycle() {
		return nil, ErrCycleDetected
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	levels := make(map[string]int, len(g.nodes))

	var calculateLevel func(id string) int
	calculateLevel = func(id string) int {
		if level, ok := levels[id]; ok {
			return level
		}

		maxDepLevel := -1
		for _, e := range g.nodes[id].Edges {
			if e.Deferred {
				continue
			}
			if _, exists := g.nodes[e.To]; !exists {
				continue
			}
			depLevel := calculateLevel(e.To)
			if depLevel > maxDepLevel {
				maxDepLevel = depLevel
			}
		}

		level := maxDepLevel + 1
		levels[id] = level
		return level
	}

	for id := range g.nodes {
		calculateLevel(id)
	}

	groupMap := make(map[int][]string)
	maxLevel := 0
	for id, level := range levels {
		groupMap[level] = append(groupMap[level], id)
		if level > maxLevel {
			maxLevel = level
		}
	}

	groups := make([]ParallelGroup, 0, maxLevel+1)
	for level := 0; level <= maxLevel; level++ {
		if nodes, ok := groupMap[level]; ok {
			groups = append(
				groups, ParallelGroup{
					Level: level,
					Nodes: nodes,
				},
			)
		}
	}

	return groups, nil
}
