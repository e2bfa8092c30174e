package passes

import (
	"fmt"

	"fsmgen/internal/ir"
)

// CompileRef is the reference compiler for dynamic control: it lowers Seq
// and Par bottom-up into FSM-register networks, replacing each node with a
// single Enable of a synthesized group. If and While are deliberately not
// handled here; route them through the default pipeline instead.
type CompileRef struct {
	ir.BaseVisitor
	builder *ir.Builder
}

// NewCompileRef constructs the pass.
func NewCompileRef() *CompileRef {
	return &CompileRef{}
}

// Name implements Pass.
func (p *CompileRef) Name() string { return "compile-ref-fsm" }

// Clear implements ir.Visitor.
func (p *CompileRef) Clear(comp *ir.Component) {
	p.builder = ir.NewBuilder(comp)
}

// FinishSeq synthesizes one shared state register plus one state constant
// per statement. Each child group's go is gated by a state-equality guard
// and its done advances the register; the final state asserts the new
// group's done and resets the register through continuous cleanup
// assignments.
func (p *CompileRef) FinishSeq(n *ir.Seq, comp *ir.Component) ir.Action {
	if len(n.Stmts) == 0 {
		return ir.Change(&ir.Empty{})
	}
	children := p.enabledGroups(n.Stmts, comp, "seq")
	b := p.builder
	count := len(children)
	width := ir.BitWidth(uint64(count + 1))

	fsm := b.AddPrimitive("fsm", "std_reg", []uint64{width})
	fsmIn := comp.CellPort(fsm, "in")
	fsmWrite := comp.CellPort(fsm, "write_en")
	fsmOut := comp.CellPort(fsm, "out")

	states := make([]ir.PortID, count+1)
	for i := range states {
		states[i] = b.ConstantPort(uint64(i), int(width))
	}
	one := b.ConstantPort(1, 1)

	gid := b.AddGroup("seq")
	grp := comp.Group(gid)
	for i, childID := range children {
		child := comp.Group(childID)
		inState := ir.Eq(fsmOut, states[i])
		childDone := ir.ReadPort(child.Done)
		grp.Assignments = append(grp.Assignments,
			b.Assign(child.Go, one, ir.And(inState, ir.Not(childDone))),
			b.Assign(fsmIn, states[i+1], ir.And(inState, childDone)),
			b.Assign(fsmWrite, one, ir.And(inState, childDone)),
		)
	}
	finished := ir.Eq(fsmOut, states[count])
	grp.Assignments = append(grp.Assignments, b.Assign(grp.Done, one, finished))

	// Reset the state register one cycle after completion.
	comp.Continuous = append(comp.Continuous,
		b.Assign(fsmIn, states[0], finished),
		b.Assign(fsmWrite, one, finished),
	)
	return ir.Change(&ir.Enable{Group: gid})
}

// FinishPar allocates one 1-bit done register per branch, starts every
// branch whose register is still low, and finishes when all registers are
// high. Helper registers auto-reset through continuous cleanup assignments
// one cycle after completion.
func (p *CompileRef) FinishPar(n *ir.Par, comp *ir.Component) ir.Action {
	if len(n.Stmts) == 0 {
		return ir.Change(&ir.Empty{})
	}
	children := p.enabledGroups(n.Stmts, comp, "par")
	b := p.builder
	one := b.ConstantPort(1, 1)
	zero := b.ConstantPort(0, 1)

	gid := b.AddGroup("par")
	grp := comp.Group(gid)

	var allDone ir.Guard = ir.True()
	doneRegs := make([]ir.CellID, 0, len(children))
	for _, childID := range children {
		child := comp.Group(childID)
		reg := b.AddPrimitive("pd", "std_reg", []uint64{1})
		doneRegs = append(doneRegs, reg)
		regIn := comp.CellPort(reg, "in")
		regWrite := comp.CellPort(reg, "write_en")
		regOut := comp.CellPort(reg, "out")
		childDone := ir.ReadPort(child.Done)
		grp.Assignments = append(grp.Assignments,
			b.Assign(child.Go, one, ir.Not(ir.Or(ir.ReadPort(regOut), childDone))),
			b.Assign(regIn, one, childDone),
			b.Assign(regWrite, one, childDone),
		)
		allDone = ir.And(allDone, ir.ReadPort(regOut))
	}
	grp.Assignments = append(grp.Assignments, b.Assign(grp.Done, one, allDone))

	for _, reg := range doneRegs {
		comp.Continuous = append(comp.Continuous,
			b.Assign(comp.CellPort(reg, "in"), zero, allDone),
			b.Assign(comp.CellPort(reg, "write_en"), one, allDone),
		)
	}
	return ir.Change(&ir.Enable{Group: gid})
}

// StartIf is a known gap in the reference compiler.
func (p *CompileRef) StartIf(*ir.If, *ir.Component) ir.Action {
	panic("passes: reference fsm compiler cannot lower if; use the default pipeline")
}

// StartWhile is a known gap in the reference compiler.
func (p *CompileRef) StartWhile(*ir.While, *ir.Component) ir.Action {
	panic("passes: reference fsm compiler cannot lower while; use the default pipeline")
}

// enabledGroups asserts that every child has already been lowered to a
// plain Enable. Anything else means an earlier pass misfired.
func (p *CompileRef) enabledGroups(stmts []ir.Control, comp *ir.Component, what string) []ir.GroupID {
	groups := make([]ir.GroupID, 0, len(stmts))
	for _, stmt := range stmts {
		enable, ok := stmt.(*ir.Enable)
		if !ok {
			panic(fmt.Sprintf("passes: %s child is %T, want enable; earlier lowering is incomplete", what, stmt))
		}
		groups = append(groups, enable.Group)
	}
	return groups
}
