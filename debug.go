package dagger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

type GraphInfo struct {
	Bindings []BindingInfo
}

type BindingInfo struct {
	Key          string
	Dependencies []string
	Dependents   []string
	Scope        string
	Source       string
	Implicit     bool
	Linked       bool
	Cached       bool
}

// Graph returns a structured snapshot of the linked binding graph. Keys
// that were registered but never linked show up without dependencies.
func (g *ObjectGraph) Graph() GraphInfo {
	keyList := g.Keys()
	sort.Strings(keyList)

	snapshot := g.core.GraphSnapshot()
	bindings := make([]BindingInfo, 0, len(keyList))

	for _, key := range keyList {
		info := BindingInfo{
			Key:          key,
			Dependencies: snapshot.Dependencies(key),
			Dependents:   snapshot.Dependents(key),
			Linked:       snapshot.HasNode(key),
			Cached:       g.core.Cached(key),
		}
		if b, ok := g.registry.Get(key); ok {
			info.Scope = b.Scope.String()
			info.Source = b.Source
			info.Implicit = b.Implicit
		}
		bindings = append(bindings, info)
	}

	return GraphInfo{Bindings: bindings}
}

func (g *ObjectGraph) PrintGraph() {
	g.FprintGraph(os.Stdout)
}

func (g *ObjectGraph) FprintGraph(w io.Writer) {
	info := g.Graph()

	if len(info.Bindings) == 0 {
		_, _ = fmt.Fprintln(w, "(empty graph)")
		return
	}

	for _, b := range info.Bindings {
		status := "○"
		if b.Cached {
			status = "●"
		}

		if len(b.Dependencies) == 0 {
			_, _ = fmt.Fprintf(w, "%s %s\n", status, b.Key)
		} else {
			_, _ = fmt.Fprintf(w, "%s %s ← %s\n", status, b.Key, strings.Join(b.Dependencies, ", "))
		}
	}
}

func (g *ObjectGraph) SprintGraph() string {
	var sb strings.Builder
	g.FprintGraph(&sb)
	return sb.String()
}

func (g *ObjectGraph) PrintGraphDOT() {
	g.FprintGraphDOT(os.Stdout)
}

func (g *ObjectGraph) FprintGraphDOT(w io.Writer) {
	info := g.Graph()

	_, _ = fmt.Fprintln(w, "digraph bindings {")
	_, _ = fmt.Fprintln(w, "  rankdir=LR;")
	_, _ = fmt.Fprintln(w, "  node [shape=box];")

	for _, b := range info.Bindings {
		label := escapeLabel(b.Key)
		style := ""
		if b.Cached {
			style = ", style=filled, fillcolor=lightblue"
		}
		_, _ = fmt.Fprintf(w, "  %q [label=%q%s];\n", b.Key, label, style)
	}

	_, _ = fmt.Fprintln(w)

	for _, b := range info.Bindings {
		for _, dep := range b.Dependencies {
			_, _ = fmt.Fprintf(w, "  %q -> %q;\n", b.Key, dep)
		}
	}

	_, _ = fmt.Fprintln(w, "}")
}

func (g *ObjectGraph) SprintGraphDOT() string {
	var sb strings.Builder
	g.FprintGraphDOT(&sb)
	return sb.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "*", "")
	if idx := strings.LastIndex(s, "/"); idx != -1 {
		s = s[idx+1:]
	}
	return s
}
