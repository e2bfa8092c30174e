package analysis

import (
	"fmt"
	"sort"

	"fsmgen/internal/ir"
)

// TimeMap records, for every static par block, the exact cycle intervals
// during which each cell is live inside each parallel thread, relative to
// the par block's own start. Threads are the par's direct children, keyed
// by their node id.
type TimeMap struct {
	comp *ir.Component
	pars map[int64]map[int64]map[string][]ir.Interval
}

type clockState struct {
	par    int64
	thread int64
	clock  uint64
}

// BuildTimeMap walks the component's control tree once and collects the
// per-par liveness intervals. AssignNodeIDs must have run on the tree.
func BuildTimeMap(comp *ir.Component) *TimeMap {
	tm := &TimeMap{
		comp: comp,
		pars: make(map[int64]map[int64]map[string][]ir.Interval),
	}
	tm.build(comp.Control, nil)
	return tm
}

func (tm *TimeMap) build(c ir.Control, st *clockState) {
	switch n := c.(type) {
	case *ir.StaticPar:
		parID := mustNodeID(n)
		tm.pars[parID] = make(map[int64]map[string][]ir.Interval)
		for _, child := range n.Stmts {
			threadID := mustNodeID(child)
			tm.pars[parID][threadID] = make(map[string][]ir.Interval)
			// Each thread starts its own clock at the par's start.
			tm.build(child, &clockState{par: parID, thread: threadID})
		}
		if st != nil {
			st.clock += n.Latency
		}
	case *ir.StaticSeq:
		for _, child := range n.Stmts {
			tm.build(child, st)
		}
	case *ir.StaticIf:
		if st != nil {
			entry := st.clock
			tm.build(n.True, st)
			st.clock = entry
			tm.build(n.False, st)
			st.clock = entry + n.Latency
		} else {
			tm.build(n.True, nil)
			tm.build(n.False, nil)
		}
	case *ir.StaticRepeat:
		for i := uint64(0); i < n.NumRepeats; i++ {
			tm.build(n.Body, st)
			if st == nil {
				// Without a running clock one walk of the body sees
				// every nested par; further iterations add nothing.
				break
			}
		}
	case *ir.StaticEnable:
		grp := tm.comp.Group(n.Group)
		if st != nil {
			tm.recordGroup(st, grp)
			st.clock += grp.Latency
		}
	case *ir.Enable:
		if st != nil {
			// A dynamic enable inside a static thread breaks the static
			// timing contract of the enclosing par.
			panic(fmt.Sprintf("analysis: dynamic group %s inside static par", tm.comp.Group(n.Group).Name))
		}
	case *ir.Invoke:
		if st != nil {
			if latency, ok := ir.NodeAttributes(n).Lookup(ir.AttrStatic); ok {
				tm.recordInvoke(st, n, uint64(latency))
				st.clock += uint64(latency)
			} else {
				panic("analysis: invoke without static latency inside static par")
			}
		}
	case *ir.Seq:
		for _, child := range n.Stmts {
			tm.build(child, nil)
		}
	case *ir.Par:
		for _, child := range n.Stmts {
			tm.build(child, nil)
		}
	case *ir.If:
		tm.build(n.True, nil)
		tm.build(n.False, nil)
	case *ir.While:
		tm.build(n.Body, nil)
	case *ir.Repeat:
		tm.build(n.Body, nil)
	case *ir.Empty:
	}
}

// recordGroup marks every cell the group touches as live for its active
// window. Assignments with explicit intervals narrow the window.
func (tm *TimeMap) recordGroup(st *clockState, grp *ir.Group) {
	for _, asgn := range grp.Assignments {
		window := ir.Interval{Start: st.clock, End: st.clock + grp.Latency}
		if asgn.Interval != nil {
			window = ir.Interval{
				Start: st.clock + asgn.Interval.Start,
				End:   st.clock + asgn.Interval.End,
			}
		}
		for _, pid := range collectPorts(asgn) {
			cell, ok := tm.comp.PortParentCell(pid)
			if !ok {
				continue
			}
			tm.record(st, tm.comp.Cell(cell).Name, window)
		}
	}
}

func (tm *TimeMap) recordInvoke(st *clockState, inv *ir.Invoke, latency uint64) {
	window := ir.Interval{Start: st.clock, End: st.clock + latency}
	tm.record(st, tm.comp.Cell(inv.Cell).Name, window)
	for _, binding := range inv.Inputs {
		if cell, ok := tm.comp.PortParentCell(binding.Port); ok {
			tm.record(st, tm.comp.Cell(cell).Name, window)
		}
	}
	for _, binding := range inv.Outputs {
		if cell, ok := tm.comp.PortParentCell(binding.Port); ok {
			tm.record(st, tm.comp.Cell(cell).Name, window)
		}
	}
}

func (tm *TimeMap) record(st *clockState, cell string, iv ir.Interval) {
	if iv.Start >= iv.End {
		return
	}
	threads := tm.pars[st.par]
	cells := threads[st.thread]
	cells[cell] = mergeInterval(cells[cell], iv)
}

// mergeInterval inserts iv into a sorted list of disjoint intervals,
// coalescing overlaps and adjacency.
func mergeInterval(list []ir.Interval, iv ir.Interval) []ir.Interval {
	list = append(list, iv)
	sort.Slice(list, func(i, j int) bool { return list[i].Start < list[j].Start })
	out := list[:1]
	for _, next := range list[1:] {
		last := &out[len(out)-1]
		if next.Start <= last.End {
			if next.End > last.End {
				last.End = next.End
			}
			continue
		}
		out = append(out, next)
	}
	return out
}

// Intervals returns the liveness intervals of a cell within one thread of a
// static par, or nil when unknown.
func (tm *TimeMap) Intervals(par, thread int64, cell string) []ir.Interval {
	threads, ok := tm.pars[par]
	if !ok {
		return nil
	}
	cells, ok := threads[thread]
	if !ok {
		return nil
	}
	return cells[cell]
}

// LivenessOverlaps reports whether cellA in threadA and cellB in threadB of
// the given static par can be live during the same cycle. When the par is
// not in the map (not provably static) the answer is conservatively true.
func (tm *TimeMap) LivenessOverlaps(par, threadA, threadB int64, cellA, cellB string) bool {
	if _, ok := tm.pars[par]; !ok {
		return true
	}
	a := tm.Intervals(par, threadA, cellA)
	b := tm.Intervals(par, threadB, cellB)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Start < b[j].End && b[j].Start < a[i].End {
			return true
		}
		if a[i].End <= b[j].End {
			i++
		} else {
			j++
		}
	}
	return false
}

func mustNodeID(c ir.Control) int64 {
	id, ok := ir.NodeID(c)
	if !ok {
		panic("analysis: control node has no node id; run AssignNodeIDs first")
	}
	return id
}
