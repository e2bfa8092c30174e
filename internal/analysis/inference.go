package analysis

import (
	"sort"

	"golang.org/x/tools/container/intsets"

	"fsmgen/internal/diag"
	"fsmgen/internal/ir"
)

// InferGroupLatency infers the exact cycle count of a dynamic group from
// the go/done structure of its assignments. The second result is false
// when the group's timing cannot be statically determined, in which case
// the group stays dynamic.
//
// The algorithm builds the group's write-dependency graph, restricts it to
// handshake-carrying edges, and sums the per-cell latencies along the
// unique go-to-done path. Restricting the graph to in-degree <= 1 first
// guarantees the path between any two vertices is unique, so no
// tie-breaking order is needed.
func InferGroupLatency(comp *ir.Component, gid ir.GroupID, table *LatencyTable) (uint64, bool) {
	grp := comp.Group(gid)
	if grp.Static {
		return grp.Latency, true
	}

	// Dynamic or unknown-latency writes into a go port defeat the
	// analysis; bail out rather than guess.
	for _, asgn := range grp.Assignments {
		if !table.IsGo(asgn.Dst) {
			continue
		}
		if table.IsDone(asgn.Src) {
			continue
		}
		if v, ok := comp.IsConstantPort(asgn.Src); ok && v > 0 {
			continue
		}
		return 0, false
	}

	type edge struct {
		from, to ir.PortID
		latency  uint64
	}
	var edges []edge

	// Keep only edges that carry handshake timing: done->go between paired
	// cells, done->group done, and constant->go triggers.
	for _, asgn := range grp.Assignments {
		switch {
		case table.IsDone(asgn.Src) && table.IsGo(asgn.Dst):
			edges = append(edges, edge{from: asgn.Src, to: asgn.Dst})
		case table.IsDone(asgn.Src) && asgn.Dst == grp.Done:
			edges = append(edges, edge{from: asgn.Src, to: asgn.Dst})
		default:
			if _, ok := comp.IsConstantPort(asgn.Src); ok && table.IsGo(asgn.Dst) {
				edges = append(edges, edge{from: asgn.Src, to: asgn.Dst})
			}
		}
	}

	// Every cell the group touches contributes its internal go->done edge
	// with the cell's static latency.
	var cellSet intsets.Sparse
	for _, asgn := range grp.Assignments {
		for _, pid := range collectPorts(asgn) {
			if cell, ok := comp.PortParentCell(pid); ok {
				cellSet.Insert(int(cell))
			}
		}
	}
	cellIDs := sparseValues(&cellSet)
	for _, raw := range cellIDs {
		info := table.Cell(ir.CellID(raw))
		for _, t := range info.Triples() {
			edges = append(edges, edge{from: t.Go, to: t.Done, latency: t.Latency})
		}
	}

	// Vertices are exactly the edge endpoints; isolated ports drop out.
	var vertices intsets.Sparse
	succ := make(map[ir.PortID][]ir.PortID)
	pred := make(map[ir.PortID][]ir.PortID)
	latencyOf := make(map[[2]ir.PortID]uint64)
	for _, e := range edges {
		vertices.Insert(int(e.from))
		vertices.Insert(int(e.to))
		succ[e.from] = append(succ[e.from], e.to)
		pred[e.to] = append(pred[e.to], e.from)
		latencyOf[[2]ir.PortID{e.from, e.to}] = e.latency
	}
	if vertices.IsEmpty() {
		return 0, false
	}

	// Multiple writers into one port make the timing ambiguous.
	for _, preds := range pred {
		if len(preds) > 1 {
			return 0, false
		}
	}

	order, ok := topoSort(&vertices, succ, pred)
	if !ok {
		return 0, false
	}
	start := order[0]
	finish := order[len(order)-1]

	// With in-degree <= 1 the path from finish back to start is the unique
	// predecessor chain.
	var total uint64
	cur := finish
	for cur != start {
		preds := pred[cur]
		if len(preds) == 0 {
			return 0, false
		}
		prev := preds[0]
		total += latencyOf[[2]ir.PortID{prev, cur}]
		cur = prev
	}
	return total, true
}

// InferPromotion runs latency inference over every dynamic group of the
// component and stamps successful groups with a promotable attribute.
// Returns the number of groups promoted.
func InferPromotion(comp *ir.Component, table *LatencyTable, reporter *diag.Reporter) int {
	promoted := 0
	for i := 0; i < comp.NumGroups(); i++ {
		gid := ir.GroupID(i)
		grp := comp.Group(gid)
		if grp.Static || grp.Attributes.Has(ir.AttrPromotable) {
			continue
		}
		latency, ok := InferGroupLatency(comp, gid, table)
		if !ok {
			continue
		}
		if grp.Attributes == nil {
			grp.Attributes = make(ir.Attributes)
		}
		grp.Attributes.Set(ir.AttrPromotable, int64(latency))
		promoted++
		if reporter != nil {
			reporter.Notef("group %s promotable with latency %d", grp.Name, latency)
		}
	}
	return promoted
}

func collectPorts(asgn ir.Assignment) []ir.PortID {
	ports := []ir.PortID{asgn.Dst, asgn.Src}
	return ir.GuardPorts(asgn.Guard, ports)
}

// topoSort orders the vertices with Kahn's algorithm, ready vertices
// processed in ascending port id for determinism. Returns false on a cycle.
func topoSort(vertices *intsets.Sparse, succ map[ir.PortID][]ir.PortID, pred map[ir.PortID][]ir.PortID) ([]ir.PortID, bool) {
	indegree := make(map[ir.PortID]int)
	all := sparseValues(vertices)
	for _, raw := range all {
		indegree[ir.PortID(raw)] = len(pred[ir.PortID(raw)])
	}
	var ready []ir.PortID
	for _, raw := range all {
		if indegree[ir.PortID(raw)] == 0 {
			ready = append(ready, ir.PortID(raw))
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	var order []ir.PortID
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		for _, next := range succ[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
	}
	if len(order) != len(all) {
		return nil, false
	}
	return order, true
}

// sparseValues lists the set's elements in ascending order.
func sparseValues(s *intsets.Sparse) []int {
	return s.AppendTo(nil)
}
