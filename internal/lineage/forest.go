// Package lineage reconstructs the parent/child spawn forest of a trace from
// flat parent-pointer span records.
package lineage

import (
	"context"

	"agenttrace/internal/models"
	"agenttrace/internal/store"
)

// Node is one span in the forest. Children hold the selected spans that name
// this span as their parent, in selection order.
type Node struct {
	Span     models.Span
	Children []*Node
}

// Forest is the lineage of one trace. A trace may have any number of roots.
type Forest struct {
	TraceID string
	// Spans is the full selection in store order, whatever its shape.
	Spans []models.Span
	Roots []*Node
	// Orphans name a parent that is not part of the selection.
	Orphans []*Node

	// all holds one node per selected span, duplicates of a span_id included.
	all      []*Node
	nodes    map[string]*Node
	children map[string][]*Node
}

// Build selects the spans belonging to traceID and links them. It returns nil
// when the trace has no spans.
func Build(traceID string, spans []models.Span) *Forest {
	f := &Forest{
		TraceID:  traceID,
		nodes:    make(map[string]*Node),
		children: make(map[string][]*Node),
	}

	for _, span := range spans {
		if span.TraceID != traceID {
			continue
		}
		f.Spans = append(f.Spans, span)
		n := &Node{Span: span}
		f.all = append(f.all, n)
		// span_id is unique per store; keep the first on collision.
		if _, dup := f.nodes[span.SpanID]; !dup {
			f.nodes[span.SpanID] = n
		}
	}
	if len(f.all) == 0 {
		return nil
	}

	for _, n := range f.all {
		if n.Span.IsRoot() {
			f.Roots = append(f.Roots, n)
			continue
		}
		parentID := n.Span.ParentSpanID
		f.children[parentID] = append(f.children[parentID], n)
		if _, ok := f.nodes[parentID]; !ok {
			f.Orphans = append(f.Orphans, n)
		}
	}
	for id, n := range f.nodes {
		n.Children = f.children[id]
	}
	return f
}

// Node returns the node for spanID.
func (f *Forest) Node(spanID string) (*Node, bool) {
	n, ok := f.nodes[spanID]
	return n, ok
}

// Len returns the number of selected spans.
func (f *Forest) Len() int {
	return len(f.Spans)
}

// Edges returns every (parent, child) pair where both spans are selected.
func (f *Forest) Edges() [][2]*Node {
	var edges [][2]*Node
	seen := make(map[*Node]bool)
	for _, span := range f.Spans {
		child, ok := f.nodes[span.SpanID]
		if !ok || seen[child] || child.Span.IsRoot() {
			continue
		}
		seen[child] = true
		if parent, ok := f.nodes[child.Span.ParentSpanID]; ok {
			edges = append(edges, [2]*Node{parent, child})
		}
	}
	return edges
}

// Walk visits the subtree under each start node depth-first, pre-order. Every
// node is visited at most once across the whole walk, so cycles terminate.
// It returns the set of visited nodes.
func Walk(start []*Node, visited map[*Node]bool, fn func(n *Node, depth int)) map[*Node]bool {
	if visited == nil {
		visited = make(map[*Node]bool)
	}
	type frame struct {
		node  *Node
		depth int
	}
	for _, root := range start {
		stack := []frame{{root, 0}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[top.node] {
				continue
			}
			visited[top.node] = true
			fn(top.node, top.depth)
			for i := len(top.node.Children) - 1; i >= 0; i-- {
				if c := top.node.Children[i]; !visited[c] {
					stack = append(stack, frame{c, top.depth + 1})
				}
			}
		}
	}
	return visited
}

// Builder loads spans from a store and builds forests on demand. It holds no
// cache: every call re-reads the store.
type Builder struct {
	store store.SpanStore
}

// NewBuilder creates a Builder over s.
func NewBuilder(s store.SpanStore) *Builder {
	return &Builder{store: s}
}

// BuildLineage returns the forest for traceID, or nil when it has no spans.
func (b *Builder) BuildLineage(ctx context.Context, traceID string) (*Forest, error) {
	spans, err := store.SpansForTrace(ctx, b.store, traceID)
	if err != nil {
		return nil, err
	}
	return Build(traceID, spans), nil
}
