package render

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/stanza/pkg/dag"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds every metadata entry to node labels.
	Detailed bool
	// Root, when set, adds a node for the project with edges to every
	// package without parents.
	Root string
}

// ToDOT converts g to Graphviz DOT source. Nodes and edges are emitted in
// sorted order, so equal graphs produce equal output.
func ToDOT(g *dag.DAG, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	if opts.Root != "" {
		fmt.Fprintf(&buf, "  %q [label=%q, shape=ellipse, fillcolor=lightblue];\n", opts.Root, opts.Root)
	}
	for _, n := range g.Nodes() {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs(*n, opts.Detailed), ", "))
	}

	buf.WriteString("\n")
	if opts.Root != "" {
		for _, n := range g.Sources() {
			fmt.Fprintf(&buf, "  %q -> %q;\n", opts.Root, n.ID)
		}
	}
	edges := g.Edges()
	slices.SortFunc(edges, func(a, b dag.Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func label(n dag.Node, detailed bool) string {
	pin := ""
	switch {
	case n.Meta["version"] != nil:
		pin = fmt.Sprint(n.Meta["version"])
	case n.Meta["vcs"] != nil:
		pin = fmt.Sprint(n.Meta["vcs"])
	}

	lines := []string{n.ID}
	if pin != "" {
		lines = append(lines, pin)
	}
	if detailed {
		for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
			if k == "version" || k == "vcs" {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %v", k, n.Meta[k]))
		}
	}
	return strings.Join(lines, "\n")
}

func attrs(n dag.Node, detailed bool) []string {
	out := []string{fmt.Sprintf("label=%q", label(n, detailed))}

	var style []string
	if n.Meta["category"] == "dev" {
		style = append(style, "dashed")
	}
	if optional, _ := n.Meta["optional"].(bool); optional {
		out = append(out, "fillcolor=lightgrey")
	}
	if len(style) > 0 {
		out = append(out, fmt.Sprintf("style=%q", "rounded,filled,"+strings.Join(style, ",")))
	}
	return out
}

// RenderSVG lays out DOT source and returns SVG bytes.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the drawing scales from
// the origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
