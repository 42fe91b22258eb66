package graph

import (
	"fmt"
	"strings"
)

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
	// Interrupts marks interrupt points with a dotted border.
	Interrupts bool
}

// DrawMermaid generates a Mermaid diagram representation of the program
func (p *Program[S]) DrawMermaid() string {
	return p.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options.
// Nodes appear in registration order. Conditional edges are dashed and go
// to their declared targets, or to a "?" marker when none were declared.
func (p *Program[S]) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	fmt.Fprintf(&sb, "flowchart %s\n", direction)

	sb.WriteString("    START([\"START\"])\n")
	sb.WriteString("    style START fill:#90EE90\n")
	for _, name := range p.order {
		if name == p.entryPoint {
			fmt.Fprintf(&sb, "    %s[[\"%s\"]]\n", name, name)
		} else {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", name, name)
		}
	}
	if p.referencesEnd() {
		sb.WriteString("    END([\"END\"])\n")
		sb.WriteString("    style END fill:#FFB6C1\n")
	}

	fmt.Fprintf(&sb, "    START --> %s\n", p.entryPoint)
	for _, edge := range p.edgeList {
		fmt.Fprintf(&sb, "    %s --> %s\n", edge.From, edge.To)
	}

	for _, from := range p.conditionalOrder {
		targets := p.conditionalEdges[from].targets
		if len(targets) == 0 {
			fmt.Fprintf(&sb, "    %s -.-> %s_condition((?))\n", from, from)
			fmt.Fprintf(&sb, "    style %s_condition fill:#FFFFE0,stroke:#333,stroke-dasharray: 5 5\n", from)
			continue
		}
		for _, to := range targets {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", from, to)
		}
	}

	fmt.Fprintf(&sb, "    style %s fill:#87CEEB\n", p.entryPoint)
	if opts.Interrupts {
		for _, name := range p.order {
			_, before := p.interruptBefore[name]
			_, after := p.interruptAfter[name]
			if before || after {
				fmt.Fprintf(&sb, "    style %s stroke-dasharray: 3 3\n", name)
			}
		}
	}

	return sb.String()
}

// DrawDOT generates a DOT (Graphviz) representation of the program
func (p *Program[S]) DrawDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")

	sb.WriteString("    START [label=\"START\", shape=ellipse, style=filled, fillcolor=lightgreen];\n")
	fmt.Fprintf(&sb, "    START -> %s;\n", p.entryPoint)
	fmt.Fprintf(&sb, "    %s [style=filled, fillcolor=lightblue];\n", p.entryPoint)

	if p.referencesEnd() {
		sb.WriteString("    END [label=\"END\", shape=ellipse, style=filled, fillcolor=lightpink];\n")
	}

	for _, edge := range p.edgeList {
		fmt.Fprintf(&sb, "    %s -> %s;\n", edge.From, edge.To)
	}

	for _, from := range p.conditionalOrder {
		targets := p.conditionalEdges[from].targets
		if len(targets) == 0 {
			fmt.Fprintf(&sb, "    %s -> %s_condition [style=dashed, label=\"?\"];\n", from, from)
			fmt.Fprintf(&sb, "    %s_condition [label=\"?\", shape=diamond, style=filled, fillcolor=lightyellow];\n", from)
			continue
		}
		for _, to := range targets {
			fmt.Fprintf(&sb, "    %s -> %s [style=dashed];\n", from, to)
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// DrawASCII generates an ASCII tree representation of the program
func (p *Program[S]) DrawASCII() string {
	var sb strings.Builder
	visited := make(map[string]bool)

	sb.WriteString("Graph Execution Flow:\n")
	sb.WriteString("├── START\n")

	p.drawASCIINode(p.entryPoint, "│   ", true, visited, &sb)

	return sb.String()
}

// drawASCIINode recursively draws ASCII representation of nodes
func (p *Program[S]) drawASCIINode(nodeName string, prefix string, isLast bool, visited map[string]bool, sb *strings.Builder) {
	connector := "├──"
	nextPrefix := prefix + "│   "
	if isLast {
		connector = "└──"
		nextPrefix = prefix + "    "
	}

	if visited[nodeName] {
		fmt.Fprintf(sb, "%s%s %s (cycle)\n", prefix, connector, nodeName)
		return
	}
	visited[nodeName] = true

	fmt.Fprintf(sb, "%s%s %s\n", prefix, connector, nodeName)
	if nodeName == END {
		return
	}

	var outgoing []string
	conditional := false
	if ce, ok := p.conditionalEdges[nodeName]; ok {
		outgoing = append(outgoing, ce.targets...)
		conditional = len(ce.targets) == 0
	} else if to, ok := p.edges[nodeName]; ok {
		outgoing = append(outgoing, to)
	}

	for i, target := range outgoing {
		p.drawASCIINode(target, nextPrefix, i == len(outgoing)-1 && !conditional, visited, sb)
	}
	if conditional {
		fmt.Fprintf(sb, "%s└── (?)\n", nextPrefix)
	}
}

func (p *Program[S]) referencesEnd() bool {
	for _, edge := range p.edgeList {
		if edge.To == END {
			return true
		}
	}
	for _, ce := range p.conditionalEdges {
		for _, to := range ce.targets {
			if to == END {
				return true
			}
		}
	}
	return false
}
