// Package render draws a resolved dependency graph as a node-link
// diagram.
//
// [ToDOT] produces Graphviz DOT source with one box per package, labeled
// with its name and pin, and one arrow per requirement. Dev packages are
// drawn dashed and optional packages grey. [RenderSVG] lays the DOT
// source out in-process with github.com/goccy/go-graphviz:
//
//	dot := render.ToDOT(res.Graph, render.Options{})
//	svg, err := render.RenderSVG(ctx, dot)
package render
