package ir

import "fmt"

// Control is the recursive control tree. Nodes are mutated in place or
// replaced wholesale by passes; see the visitor framework.
type Control interface {
	isControl()
}

// Seq runs its statements one after another.
type Seq struct {
	Stmts      []Control
	Attributes Attributes
}

func (*Seq) isControl() {}

// Par runs its statements concurrently and finishes when all have.
type Par struct {
	Stmts      []Control
	Attributes Attributes
}

func (*Par) isControl() {}

// If branches on a 1-bit condition port, optionally activating a
// combinational condition group while the port is read.
type If struct {
	CondPort   PortID
	CondGroup  GroupID
	True       Control
	False      Control
	Attributes Attributes
}

func (*If) isControl() {}

// While repeats its body while the condition port reads high.
type While struct {
	CondPort   PortID
	CondGroup  GroupID
	Body       Control
	Attributes Attributes
}

func (*While) isControl() {}

// Repeat runs its body a fixed number of times.
type Repeat struct {
	NumRepeats uint64
	Body       Control
	Attributes Attributes
}

func (*Repeat) isControl() {}

// Enable activates one group until its done condition fires.
type Enable struct {
	Group      GroupID
	Attributes Attributes
}

func (*Enable) isControl() {}

// PortBinding connects a formal parameter name of an invoked cell to a
// concrete port.
type PortBinding struct {
	Param string
	Port  PortID
}

// Invoke activates a cell through its go/done interface, wiring inputs and
// outputs for the duration of the call.
type Invoke struct {
	Cell       CellID
	Inputs     []PortBinding
	Outputs    []PortBinding
	Attributes Attributes
}

func (*Invoke) isControl() {}

// Empty does nothing.
type Empty struct {
	Attributes Attributes
}

func (*Empty) isControl() {}

// StaticSeq runs statically timed statements back to back; its latency is
// the sum of the children's.
type StaticSeq struct {
	Stmts      []Control
	Latency    uint64
	Attributes Attributes
}

func (*StaticSeq) isControl() {}

// StaticPar runs statically timed statements concurrently; its latency is
// the max of the children's.
type StaticPar struct {
	Stmts      []Control
	Latency    uint64
	Attributes Attributes
}

func (*StaticPar) isControl() {}

// StaticIf branches on a condition port; its latency is the max of the two
// branches.
type StaticIf struct {
	CondPort   PortID
	True       Control
	False      Control
	Latency    uint64
	Attributes Attributes
}

func (*StaticIf) isControl() {}

// StaticRepeat runs its body a fixed number of times; its latency is
// NumRepeats times the body latency.
type StaticRepeat struct {
	NumRepeats uint64
	Body       Control
	Latency    uint64
	Attributes Attributes
}

func (*StaticRepeat) isControl() {}

// StaticEnable activates a static group; the latency is the group's.
type StaticEnable struct {
	Group      GroupID
	Attributes Attributes
}

func (*StaticEnable) isControl() {}

// NodeAttributes returns the attribute map of any control node, allocating
// it on first use.
func NodeAttributes(c Control) Attributes {
	switch n := c.(type) {
	case *Seq:
		return ensureAttrs(&n.Attributes)
	case *Par:
		return ensureAttrs(&n.Attributes)
	case *If:
		return ensureAttrs(&n.Attributes)
	case *While:
		return ensureAttrs(&n.Attributes)
	case *Repeat:
		return ensureAttrs(&n.Attributes)
	case *Enable:
		return ensureAttrs(&n.Attributes)
	case *Invoke:
		return ensureAttrs(&n.Attributes)
	case *Empty:
		return ensureAttrs(&n.Attributes)
	case *StaticSeq:
		return ensureAttrs(&n.Attributes)
	case *StaticPar:
		return ensureAttrs(&n.Attributes)
	case *StaticIf:
		return ensureAttrs(&n.Attributes)
	case *StaticRepeat:
		return ensureAttrs(&n.Attributes)
	case *StaticEnable:
		return ensureAttrs(&n.Attributes)
	default:
		panic(fmt.Sprintf("ir: unknown control node %T", c))
	}
}

func ensureAttrs(a *Attributes) Attributes {
	if *a == nil {
		*a = make(Attributes)
	}
	return *a
}

// IsStatic reports whether the node belongs to the static sub-tree.
func IsStatic(c Control) bool {
	switch c.(type) {
	case *StaticSeq, *StaticPar, *StaticIf, *StaticRepeat, *StaticEnable:
		return true
	default:
		return false
	}
}

// StaticLatency returns the exact cycle count of a static node. The second
// result is false for dynamic nodes.
func StaticLatency(c Control, comp *Component) (uint64, bool) {
	switch n := c.(type) {
	case *StaticSeq:
		return n.Latency, true
	case *StaticPar:
		return n.Latency, true
	case *StaticIf:
		return n.Latency, true
	case *StaticRepeat:
		return n.Latency, true
	case *StaticEnable:
		return comp.Group(n.Group).Latency, true
	default:
		return 0, false
	}
}

// ValidateStaticTiming checks that every static node's declared latency
// matches the deterministic cycle count of its children (seq: sum, par:
// max, if: max of branches, repeat: count times body). A mismatch is a bug
// in whoever built the tree and panics.
func ValidateStaticTiming(c Control, comp *Component) {
	switch n := c.(type) {
	case *Seq:
		for _, s := range n.Stmts {
			ValidateStaticTiming(s, comp)
		}
	case *Par:
		for _, s := range n.Stmts {
			ValidateStaticTiming(s, comp)
		}
	case *If:
		ValidateStaticTiming(n.True, comp)
		ValidateStaticTiming(n.False, comp)
	case *While:
		ValidateStaticTiming(n.Body, comp)
	case *Repeat:
		ValidateStaticTiming(n.Body, comp)
	case *StaticSeq:
		var sum uint64
		for _, s := range n.Stmts {
			ValidateStaticTiming(s, comp)
			sum += mustStaticLatency(s, comp)
		}
		if sum != n.Latency {
			panic(fmt.Sprintf("ir: static seq declares latency %d but children sum to %d", n.Latency, sum))
		}
	case *StaticPar:
		var max uint64
		for _, s := range n.Stmts {
			ValidateStaticTiming(s, comp)
			if l := mustStaticLatency(s, comp); l > max {
				max = l
			}
		}
		if max != n.Latency {
			panic(fmt.Sprintf("ir: static par declares latency %d but children max is %d", n.Latency, max))
		}
	case *StaticIf:
		ValidateStaticTiming(n.True, comp)
		ValidateStaticTiming(n.False, comp)
		max := mustStaticLatency(n.True, comp)
		if l := mustStaticLatency(n.False, comp); l > max {
			max = l
		}
		if max != n.Latency {
			panic(fmt.Sprintf("ir: static if declares latency %d but branch max is %d", n.Latency, max))
		}
	case *StaticRepeat:
		ValidateStaticTiming(n.Body, comp)
		want := n.NumRepeats * mustStaticLatency(n.Body, comp)
		if want != n.Latency {
			panic(fmt.Sprintf("ir: static repeat declares latency %d but %d iterations need %d", n.Latency, n.NumRepeats, want))
		}
	}
}

func mustStaticLatency(c Control, comp *Component) uint64 {
	l, ok := StaticLatency(c, comp)
	if !ok {
		panic(fmt.Sprintf("ir: dynamic node %T inside static control", c))
	}
	return l
}

// AssignNodeIDs numbers every node of the tree in pre-order, storing the id
// in the node_id attribute. Returns the number of nodes visited.
func AssignNodeIDs(c Control) int64 {
	next := int64(0)
	var walk func(Control)
	walk = func(node Control) {
		NodeAttributes(node).Set(AttrNodeID, next)
		next++
		switch n := node.(type) {
		case *Seq:
			for _, s := range n.Stmts {
				walk(s)
			}
		case *Par:
			for _, s := range n.Stmts {
				walk(s)
			}
		case *If:
			walk(n.True)
			walk(n.False)
		case *While:
			walk(n.Body)
		case *Repeat:
			walk(n.Body)
		case *StaticSeq:
			for _, s := range n.Stmts {
				walk(s)
			}
		case *StaticPar:
			for _, s := range n.Stmts {
				walk(s)
			}
		case *StaticIf:
			walk(n.True)
			walk(n.False)
		case *StaticRepeat:
			walk(n.Body)
		}
	}
	walk(c)
	return next
}

// NodeID returns the node's pre-assigned id when AssignNodeIDs has run.
func NodeID(c Control) (int64, bool) {
	return NodeAttributes(c).Lookup(AttrNodeID)
}
