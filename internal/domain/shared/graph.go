package shared

import (
	"fmt"
	"time"
)

// GraphNode is one waypoint in a system's navigation graph
type GraphNode struct {
	Symbol  string  `json:"symbol"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	HasFuel bool    `json:"hasFuel"`
}

// NavigationGraph is a system's waypoints with symmetric distance-weighted
// edges. Fuel stations are flagged on nodes so route planners can insert
// refuel stops.
type NavigationGraph struct {
	System  string                        `json:"system"`
	Nodes   map[string]*GraphNode         `json:"nodes"`
	Edges   map[string]map[string]float64 `json:"edges"`
	BuiltAt time.Time                     `json:"builtAt"`
}

// NewNavigationGraph creates an empty graph for a system
func NewNavigationGraph(system string, builtAt time.Time) *NavigationGraph {
	return &NavigationGraph{
		System:  system,
		Nodes:   make(map[string]*GraphNode),
		Edges:   make(map[string]map[string]float64),
		BuiltAt: builtAt,
	}
}

// BuildCompleteGraph constructs the all-pairs graph over a system's waypoints
func BuildCompleteGraph(system string, waypoints []*Waypoint, builtAt time.Time) *NavigationGraph {
	g := NewNavigationGraph(system, builtAt)
	for _, wp := range waypoints {
		g.AddNode(&GraphNode{
			Symbol:  wp.Symbol,
			X:       wp.X,
			Y:       wp.Y,
			HasFuel: wp.HasFuel,
		})
	}
	for i, a := range waypoints {
		for _, b := range waypoints[i+1:] {
			g.AddEdge(a.Symbol, b.Symbol, a.DistanceTo(b))
		}
	}
	return g
}

// AddNode registers a node
func (g *NavigationGraph) AddNode(node *GraphNode) {
	g.Nodes[node.Symbol] = node
}

// AddEdge adds a symmetric weighted edge between two nodes
func (g *NavigationGraph) AddEdge(from, to string, weight float64) {
	if g.Edges[from] == nil {
		g.Edges[from] = make(map[string]float64)
	}
	if g.Edges[to] == nil {
		g.Edges[to] = make(map[string]float64)
	}
	g.Edges[from][to] = weight
	g.Edges[to][from] = weight
}

// EdgeWeight returns the weight of the edge between two nodes
func (g *NavigationGraph) EdgeWeight(from, to string) (float64, bool) {
	neighbors, ok := g.Edges[from]
	if !ok {
		return 0, false
	}
	w, ok := neighbors[to]
	return w, ok
}

// Neighbors returns the adjacency map of a node
func (g *NavigationGraph) Neighbors(symbol string) map[string]float64 {
	return g.Edges[symbol]
}

// FuelNodes returns the symbols of all fuel-station nodes
func (g *NavigationGraph) FuelNodes() []string {
	var fuel []string
	for symbol, node := range g.Nodes {
		if node.HasFuel {
			fuel = append(fuel, symbol)
		}
	}
	return fuel
}

// NodeCount returns the number of nodes
func (g *NavigationGraph) NodeCount() int {
	return len(g.Nodes)
}

// Validate checks that every edge endpoint is a registered node
func (g *NavigationGraph) Validate() error {
	for from, neighbors := range g.Edges {
		if _, ok := g.Nodes[from]; !ok {
			return NewValidationError("edges", fmt.Sprintf("edge endpoint %s not in nodes", from))
		}
		for to, weight := range neighbors {
			if _, ok := g.Nodes[to]; !ok {
				return NewValidationError("edges", fmt.Sprintf("edge endpoint %s not in nodes", to))
			}
			if weight < 0 {
				return NewValidationError("edges", fmt.Sprintf("negative weight on %s-%s", from, to))
			}
		}
	}
	return nil
}
