// Package graph tracks the linked dependency graph of an object graph.
// Edges know whether they are deferred (requested through a lazy handle);
// only cycles made exclusively of synchronous edges are construction
// hazards.
package graph

import "sync"

type Edge struct {
	To       string
	Deferred bool
}

type Node struct {
	ID    string
	Edges []Edge
}

type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
	}
}

func (g *Graph) AddNode(id string, edges []Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[id] = &Node{
		ID:    id,
		Edges: edges,
	}
}

func (g *Graph) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.nodes, id)
}

func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, exists := g.nodes[id]
	return exists
}

func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, exists := g.nodes[id]
	if !exists {
		return nil
	}

	deps := make([]string, 0, len(node.Edges))
	for _, e := range node.Edges {
		deps = append(deps, e.To)
	}
	return deps
}

func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for nodeID, node := range g.nodes {
		for _, e := range node.Edges {
			if e.To == id {
				dependents = append(dependents, nodeID)
				break
			}
		}
	}
	return dependents
}

func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		nodes = append(nodes, id)
	}
	return nodes
}

func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := New()
	for id, node := range g.nodes {
		edges := make([]Edge, len(node.Edges))
		copy(edges, node.Edges)
		clone.nodes[id] = &Node{
			ID:    id,
			Edges: edges,
		}
	}
	return clone
}
