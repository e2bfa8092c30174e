package extract

import (
	"encoding/json"
	"fmt"
	"io"
)

// NodeID names one e-node inside a serialized e-graph.
type NodeID string

// ClassID names one equivalence class.
type ClassID string

// Node is one e-node: an operator whose children are references to other
// e-nodes (one chosen representative per child class).
type Node struct {
	Op       string   `json:"op"`
	Children []NodeID `json:"children"`
	EClass   ClassID  `json:"eclass"`
}

// EGraph is the post-saturation serialization consumed by extraction.
type EGraph struct {
	Nodes        map[NodeID]Node `json:"nodes"`
	RootEClasses []ClassID       `json:"root_eclasses"`
}

// LoadEGraph decodes a serialized e-graph and checks referential
// integrity: every child reference must name a node in the graph.
func LoadEGraph(r io.Reader) (*EGraph, error) {
	var g EGraph
	dec := json.NewDecoder(r)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("extract: decode egraph: %w", err)
	}
	for id, n := range g.Nodes {
		for _, child := range n.Children {
			if _, ok := g.Nodes[child]; !ok {
				return nil, fmt.Errorf("extract: node %s references missing node %s", id, child)
			}
		}
	}
	return &g, nil
}

// class returns the e-class of a node id.
func (g *EGraph) class(id NodeID) ClassID {
	return g.Nodes[id].EClass
}
