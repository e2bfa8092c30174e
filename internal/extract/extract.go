package extract

import (
	"fmt"
	"sort"

	"fsmgen/internal/diag"
)

// CostPoint is the best known extraction result for one e-class: the
// cumulative total, the per-contributing-class breakdown (each class maps
// to the intrinsic cost of its selected node, so a class shared by two
// children is counted once), and the reconstructed term.
type CostPoint struct {
	Total int64
	Costs map[ClassID]int64
	Term  *Term
}

// extractor is the single-owner state of one Extract call.
type extractor struct {
	graph   *EGraph
	model   *costModel
	parents map[ClassID][]NodeID
	best    map[ClassID]CostPoint

	queue  []NodeID
	queued map[NodeID]bool
}

// Extract runs the worklist fixpoint over the e-graph and returns the
// representative term and total cost of the selected root class. Among the
// root classes the one with the maximum total wins.
func Extract(g *EGraph, reporter *diag.Reporter) (*Term, int64, error) {
	if len(g.RootEClasses) == 0 {
		return nil, 0, fmt.Errorf("extract: egraph has no root eclasses")
	}
	ex := &extractor{
		graph:   g,
		model:   &costModel{reporter: reporter},
		parents: make(map[ClassID][]NodeID),
		best:    make(map[ClassID]CostPoint),
		queued:  make(map[NodeID]bool),
	}
	ex.buildParentIndex()
	ex.seedLeaves()
	ex.run()
	return ex.selectRoot()
}

// sortedNodeIDs fixes the iteration order; map order would make two runs
// disagree on tie-broken selections.
func (ex *extractor) sortedNodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(ex.graph.Nodes))
	for id := range ex.graph.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// buildParentIndex maps each class to the nodes with at least one child in
// that class. A node with two children in the same class is indexed once.
func (ex *extractor) buildParentIndex() {
	for _, id := range ex.sortedNodeIDs() {
		node := ex.graph.Nodes[id]
		seen := make(map[ClassID]bool, len(node.Children))
		for _, child := range node.Children {
			cls := ex.graph.class(child)
			if seen[cls] {
				continue
			}
			seen[cls] = true
			ex.parents[cls] = append(ex.parents[cls], id)
		}
	}
}

func (ex *extractor) seedLeaves() {
	for _, id := range ex.sortedNodeIDs() {
		if len(ex.graph.Nodes[id].Children) == 0 {
			ex.push(id)
		}
	}
}

func (ex *extractor) push(id NodeID) {
	if ex.queued[id] {
		return
	}
	ex.queued[id] = true
	ex.queue = append(ex.queue, id)
}

func (ex *extractor) pop() (NodeID, bool) {
	if len(ex.queue) == 0 {
		return "", false
	}
	id := ex.queue[0]
	ex.queue = ex.queue[1:]
	delete(ex.queued, id)
	return id, true
}

func (ex *extractor) run() {
	for {
		id, ok := ex.pop()
		if !ok {
			return
		}
		node := ex.graph.Nodes[id]
		candidate, ok := ex.compose(id, node)
		if !ok {
			continue
		}
		current, have := ex.best[node.EClass]
		if have && candidate.Total >= current.Total {
			continue
		}
		ex.best[node.EClass] = candidate
		for _, parent := range ex.parents[node.EClass] {
			ex.push(parent)
		}
	}
}

// compose builds the candidate CostPoint for one node. It fails (ok=false)
// when some child class has no cost yet; the node returns to the worklist
// once that child's class resolves and re-pushes its parents.
func (ex *extractor) compose(id NodeID, node Node) (CostPoint, bool) {
	merged := make(map[ClassID]int64)
	children := make([]*Term, 0, len(node.Children))
	cyclic := false
	for _, childID := range node.Children {
		cls := ex.graph.class(childID)
		cp, ok := ex.best[cls]
		if !ok {
			return CostPoint{}, false
		}
		if _, through := cp.Costs[node.EClass]; through {
			// The child's selection already routes through this node's own
			// class: a cycle, priced as unreachable.
			cyclic = true
		}
		for contrib, cost := range cp.Costs {
			if prev, dup := merged[contrib]; dup {
				if prev != cost {
					panic(fmt.Sprintf("extract: class %s recorded with costs %d and %d; more than one node selected", contrib, prev, cost))
				}
				continue
			}
			merged[contrib] = cost
		}
		children = append(children, cp.Term)
	}

	own := ex.model.nodeCost(node.Op, children)
	merged[node.EClass] = own
	total := int64(0)
	for _, cost := range merged {
		total = addSaturating(total, cost)
	}
	if cyclic {
		total = Infinite
	}
	return CostPoint{
		Total: total,
		Costs: merged,
		Term:  &Term{Op: node.Op, Children: children},
	}, true
}

// selectRoot picks, among the deduplicated and sorted root classes, the one
// with the maximum recorded total.
func (ex *extractor) selectRoot() (*Term, int64, error) {
	roots := make([]ClassID, 0, len(ex.graph.RootEClasses))
	seen := make(map[ClassID]bool)
	for _, cls := range ex.graph.RootEClasses {
		if seen[cls] {
			continue
		}
		seen[cls] = true
		roots = append(roots, cls)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	var (
		winner CostPoint
		found  bool
	)
	for _, cls := range roots {
		cp, ok := ex.best[cls]
		if !ok {
			continue
		}
		if !found || cp.Total > winner.Total {
			winner = cp
			found = true
		}
	}
	if !found {
		return nil, 0, fmt.Errorf("extract: no root eclass resolved to a cost")
	}
	return winner.Term, winner.Total, nil
}
