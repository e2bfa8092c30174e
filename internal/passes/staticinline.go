package passes

import (
	"fmt"

	"fsmgen/internal/ir"
)

// StaticInliner flattens each maximal static control subtree into exactly
// one static group, shifting every assignment's validity interval by the
// running cycle offset of its construct.
type StaticInliner struct {
	ir.BaseVisitor
	builder *ir.Builder
}

// NewStaticInliner constructs the pass.
func NewStaticInliner() *StaticInliner {
	return &StaticInliner{}
}

// Name implements Pass.
func (p *StaticInliner) Name() string { return "static-inline" }

// Clear implements ir.Visitor.
func (p *StaticInliner) Clear(comp *ir.Component) {
	p.builder = ir.NewBuilder(comp)
}

func (p *StaticInliner) StartStaticSeq(n *ir.StaticSeq, comp *ir.Component) ir.Action {
	return ir.Change(&ir.StaticEnable{Group: p.inline(n, comp)})
}

func (p *StaticInliner) StartStaticPar(n *ir.StaticPar, comp *ir.Component) ir.Action {
	return ir.Change(&ir.StaticEnable{Group: p.inline(n, comp)})
}

func (p *StaticInliner) StartStaticIf(n *ir.StaticIf, comp *ir.Component) ir.Action {
	return ir.Change(&ir.StaticEnable{Group: p.inline(n, comp)})
}

func (p *StaticInliner) StartStaticRepeat(n *ir.StaticRepeat, comp *ir.Component) ir.Action {
	return ir.Change(&ir.StaticEnable{Group: p.inline(n, comp)})
}

// inline lowers a static subtree to a single static group and returns it.
func (p *StaticInliner) inline(c ir.Control, comp *ir.Component) ir.GroupID {
	b := p.builder
	switch n := c.(type) {
	case *ir.StaticEnable:
		return n.Group
	case *ir.StaticSeq:
		gid := b.AddStaticGroup("static_seq", n.Latency)
		var offset uint64
		for _, child := range n.Stmts {
			childGroup := p.inline(child, comp)
			p.copyShifted(gid, childGroup, offset, ir.True(), comp)
			offset += comp.Group(childGroup).Latency
		}
		return gid
	case *ir.StaticPar:
		gid := b.AddStaticGroup("static_par", n.Latency)
		for _, child := range n.Stmts {
			childGroup := p.inline(child, comp)
			p.copyShifted(gid, childGroup, 0, ir.True(), comp)
		}
		return gid
	case *ir.StaticIf:
		return p.inlineIf(n, comp)
	case *ir.StaticRepeat:
		bodyGroup := p.inline(n.Body, comp)
		gid := b.AddStaticGroup("static_repeat", n.Latency)
		one := b.ConstantPort(1, 1)
		grp := comp.Group(gid)
		// The body group loops internally; a single held trigger suffices.
		grp.Assignments = append(grp.Assignments, ir.Assignment{
			Dst:      comp.Group(bodyGroup).Go,
			Src:      one,
			Guard:    ir.True(),
			Interval: &ir.Interval{Start: 0, End: n.Latency},
		})
		return gid
	case *ir.Invoke:
		panic("passes: static inliner cannot inline invoke yet")
	case *ir.Empty:
		return b.AddStaticGroup("static_empty", 0)
	default:
		panic(fmt.Sprintf("passes: dynamic node %T inside static control", c))
	}
}

// inlineIf merges both branches into one group. A one-cycle if reads the
// condition port directly; longer ifs latch the condition in cycle 0 and
// serve it through a wire so both branches see a stable decision from
// cycle 1 onward without spending an extra idle cycle.
func (p *StaticInliner) inlineIf(n *ir.StaticIf, comp *ir.Component) ir.GroupID {
	b := p.builder
	gid := b.AddStaticGroup("static_if", n.Latency)
	trueGroup := p.inline(n.True, comp)
	falseGroup := p.inline(n.False, comp)

	if n.Latency <= 1 {
		cond := ir.ReadPort(n.CondPort)
		p.copyShifted(gid, trueGroup, 0, cond, comp)
		p.copyShifted(gid, falseGroup, 0, ir.Not(cond), comp)
		return gid
	}

	condReg := b.AddPrimitive("cond_reg", "std_reg", []uint64{1})
	condWire := b.AddPrimitive("cond_wire", "std_wire", []uint64{1})
	one := b.ConstantPort(1, 1)
	grp := comp.Group(gid)
	firstCycle := &ir.Interval{Start: 0, End: 1}
	rest := &ir.Interval{Start: 1, End: n.Latency}
	grp.Assignments = append(grp.Assignments,
		ir.Assignment{Dst: comp.CellPort(condWire, "in"), Src: n.CondPort, Guard: ir.True(), Interval: firstCycle},
		ir.Assignment{Dst: comp.CellPort(condReg, "in"), Src: n.CondPort, Guard: ir.True(), Interval: firstCycle},
		ir.Assignment{Dst: comp.CellPort(condReg, "write_en"), Src: one, Guard: ir.True(), Interval: firstCycle},
		ir.Assignment{Dst: comp.CellPort(condWire, "in"), Src: comp.CellPort(condReg, "out"), Guard: ir.True(), Interval: rest},
	)
	decided := ir.ReadPort(comp.CellPort(condWire, "out"))
	p.copyShifted(gid, trueGroup, 0, decided, comp)
	p.copyShifted(gid, falseGroup, 0, ir.Not(decided), comp)
	return gid
}

// copyShifted copies every assignment of src into dst, shifting intervals
// by offset cycles and conjoining extra onto each guard. Assignments with
// no interval get the source group's whole window.
func (p *StaticInliner) copyShifted(dst, src ir.GroupID, offset uint64, extra ir.Guard, comp *ir.Component) {
	srcGroup := comp.Group(src)
	dstGroup := comp.Group(dst)
	for _, asgn := range srcGroup.Assignments {
		iv := ir.Interval{Start: 0, End: srcGroup.Latency}
		if asgn.Interval != nil {
			iv = *asgn.Interval
		}
		shifted := ir.Interval{Start: iv.Start + offset, End: iv.End + offset}
		dstGroup.Assignments = append(dstGroup.Assignments, ir.Assignment{
			Dst:      asgn.Dst,
			Src:      asgn.Src,
			Guard:    ir.And(asgn.Guard, extra),
			Interval: &shifted,
		})
	}
}
