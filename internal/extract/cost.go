package extract

import (
	"math"

	"fsmgen/internal/diag"
	"fsmgen/internal/ir"
)

// Infinite is the unresolved / cyclic cost sentinel. Using the maximum
// value instead of an option type keeps the strict-improvement comparison
// a plain less-than.
const Infinite = int64(math.MaxInt64)

// costModel is the fixed, operator-keyed heuristic. Seq carries a
// deliberately negative cost so extraction prefers sequenced structure;
// its real work is the FSM register width estimate logged as a side
// effect.
type costModel struct {
	reporter *diag.Reporter
}

// nodeCost returns the intrinsic cost of one operator given its children's
// reconstructed terms. Operators outside the table are structural and
// cost nothing.
func (m *costModel) nodeCost(op string, children []*Term) int64 {
	switch op {
	case "Seq":
		width := m.seqFSMWidth(children)
		if m.reporter != nil {
			m.reporter.Notef("seq fsm register width %d", width)
		}
		return -1000
	case "Par":
		return 10
	case "Repeat":
		return 10
	case "Cons":
		return 0
	case "Enable":
		for _, c := range children {
			attrs := TermAttributes(c)
			if lat, ok := attrs[ir.AttrPromotable]; ok {
				return lat
			}
		}
		return 1
	default:
		return 0
	}
}

// seqFSMWidth estimates the width of the state register a Seq would
// lower to. A statically timed child fixes the state count at its
// latency; otherwise one state per sequenced item.
func (m *costModel) seqFSMWidth(children []*Term) uint64 {
	for _, c := range children {
		attrs := TermAttributes(c)
		if lat, ok := attrs[ir.AttrStatic]; ok && lat >= 0 {
			return ir.BitWidth(uint64(lat))
		}
	}
	var items uint64
	for _, c := range children {
		if n, ok := consLength(c); ok {
			items += n
		}
	}
	return ir.BitWidth(items)
}

// consLength counts the elements of a Cons/Nil chain.
func consLength(t *Term) (uint64, bool) {
	var n uint64
	for t != nil {
		switch t.Op {
		case "Cons":
			n++
			if len(t.Children) < 2 {
				return n, true
			}
			t = t.Children[1]
		case "Nil":
			return n, true
		default:
			if n == 0 {
				return 0, false
			}
			return n, true
		}
	}
	return n, true
}

// addSaturating sums costs without wrapping past the sentinel.
func addSaturating(a, b int64) int64 {
	if a == Infinite || b == Infinite {
		return Infinite
	}
	sum := a + b
	if a > 0 && b > 0 && sum < 0 {
		return Infinite
	}
	return sum
}
