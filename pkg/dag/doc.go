// Package dag provides the directed dependency graph produced by
// resolution.
//
// Nodes are canonical package names and edges point from a dependent to the
// package it requires. The resolution engine walks [DAG.Parents] to
// propagate category, optionality and interpreter restrictions from declared
// dependencies down to transitive ones, and the graph command renders the
// same structure.
//
//	g := dag.New()
//	g.EnsureNode("pendulum")
//	g.EnsureNode("tzdata")
//	g.AddEdge(dag.Edge{From: "pendulum", To: "tzdata"})
//	g.Parents("tzdata") // ["pendulum"]
package dag
