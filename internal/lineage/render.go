package lineage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"agenttrace/internal/models"
)

// Format selects a lineage rendering.
type Format string

const (
	// FormatTree is the concise default: roots and their direct children only.
	FormatTree Format = "tree"
	// FormatDeep renders every descendant and lists spans unreachable from a root.
	FormatDeep Format = "deep"
	// FormatDiagram is a Mermaid flowchart with one edge per parent/child pair.
	FormatDiagram Format = "diagram"
	// FormatStructured dumps the selected records unmodified as JSON.
	FormatStructured Format = "structured"
)

// Formats lists the canonical format names.
var Formats = []Format{FormatTree, FormatDeep, FormatDiagram, FormatStructured}

// ParseFormat resolves a caller-supplied format name. Unknown or empty names
// fall back to the tree view; mermaid and json are accepted as aliases.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deep":
		return FormatDeep
	case "diagram", "mermaid":
		return FormatDiagram
	case "structured", "json":
		return FormatStructured
	default:
		return FormatTree
	}
}

const ruleWidth = 50

// Render produces the requested rendering of f.
func (f *Forest) Render(format Format) (string, error) {
	switch format {
	case FormatDeep:
		return f.RenderDeep(), nil
	case FormatDiagram:
		return f.RenderDiagram(), nil
	case FormatStructured:
		return f.RenderStructured()
	default:
		return f.RenderTree(), nil
	}
}

// RenderTree lists each root with its direct children. Grandchildren are not
// shown; use RenderDeep for the full hierarchy.
func (f *Forest) RenderTree() string {
	var b strings.Builder
	f.header(&b, "TRACE LINEAGE")
	if len(f.Roots) == 0 {
		b.WriteString("(no root spans)\n")
	}
	for _, root := range f.Roots {
		fmt.Fprintf(&b, "%s\n", nodeLine(root.Span))
		fmt.Fprintf(&b, "    └─ span: %s\n", models.ShortID(root.Span.SpanID, 8))
		for _, child := range root.Children {
			fmt.Fprintf(&b, "        └─ %s\n", nodeLine(child.Span))
		}
	}
	return b.String()
}

// RenderDeep walks every root to full depth. Orphan subtrees and spans caught
// in parent cycles follow under DETACHED.
func (f *Forest) RenderDeep() string {
	var b strings.Builder
	f.header(&b, "TRACE LINEAGE (deep)")

	write := func(n *Node, depth int) {
		indent := strings.Repeat("    ", depth)
		if depth > 0 {
			indent += "└─ "
		}
		fmt.Fprintf(&b, "%s%s [%s]\n", indent, nodeLine(n.Span), models.ShortID(n.Span.SpanID, 8))
	}

	visited := Walk(f.Roots, nil, write)
	if !slices.ContainsFunc(f.all, func(n *Node) bool { return !visited[n] }) {
		return b.String()
	}

	b.WriteString("\nDETACHED\n")
	Walk(f.Orphans, visited, write)
	// Whatever is left sits on a parent cycle; start from the first such span.
	for _, n := range f.all {
		if !visited[n] {
			Walk([]*Node{n}, visited, write)
		}
	}
	return b.String()
}

var mermaidUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// RenderDiagram emits a Mermaid graph. Nodes are classed success or error by status.
func (f *Forest) RenderDiagram() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	ids := make(map[*Node]string, len(f.nodes))
	for i, span := range f.Spans {
		n := f.nodes[span.SpanID]
		if n == nil || ids[n] != "" {
			continue
		}
		// The index keeps ids distinct when sanitising makes two span ids collide.
		ids[n] = fmt.Sprintf("n%d_%s", i, mermaidUnsafe.ReplaceAllString(span.SpanID, "_"))

		label := operation(span)
		if span.IsRoot() {
			label += " (root)"
		}
		fmt.Fprintf(&b, "    %s[\"%s\"]%s\n", ids[n], escapeLabel(label), classFor(span))
	}
	for _, e := range f.Edges() {
		fmt.Fprintf(&b, "    %s --> %s\n", ids[e[0]], ids[e[1]])
	}

	b.WriteString("\nclassDef success fill:#90EE90\nclassDef error fill:#FFB6C1")
	return b.String()
}

// RenderStructured returns every selected span, at any depth, as indented JSON.
func (f *Forest) RenderStructured() (string, error) {
	data, err := json.MarshalIndent(f.Spans, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode spans: %w", err)
	}
	return string(data), nil
}

func (f *Forest) header(b *strings.Builder, title string) {
	fmt.Fprintf(b, "%s: %s\n%s\n\n", title, models.ShortID(f.TraceID, 16), strings.Repeat("═", ruleWidth))
}

func nodeLine(s models.Span) string {
	return fmt.Sprintf("[%s] %s (%s)", s.Glyph(), operation(s), s.Duration())
}

func operation(s models.Span) string {
	if s.OperationName == "" {
		return "unknown"
	}
	return s.OperationName
}

func classFor(s models.Span) string {
	switch s.Code() {
	case models.StatusOK:
		return ":::success"
	case models.StatusError:
		return ":::error"
	default:
		return ""
	}
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
