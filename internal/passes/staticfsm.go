package passes

import (
	"fmt"
	"sort"

	"fsmgen/internal/analysis"
	"fsmgen/internal/ir"
)

// Transition is the outgoing edge set of one FSM state. States with no
// registered transition fall back to a true-guarded self-loop.
type Transition interface {
	isTransition()
}

// Unconditional always moves to Next.
type Unconditional struct {
	Next uint64
}

func (Unconditional) isTransition() {}

// Arm is one guarded next-state choice.
type Arm struct {
	Guard ir.Guard
	Next  uint64
}

// Conditional picks the first arm whose guard holds, else self-loops.
type Conditional struct {
	Arms []Arm
}

func (Conditional) isTransition() {}

// pending is a transition whose source state and guard are known but whose
// destination has not been reached yet.
type pending struct {
	state uint64
	guard ir.Guard
}

// Schedule is the abstract FSM built while walking a static control
// subtree: per-state assignments and per-state transitions, plus a
// monotonically advancing state counter. The start wire reads high for the
// whole window the schedule is active, letting repeats loop while it holds.
type Schedule struct {
	comp        *ir.Component
	builder     *ir.Builder
	plans       *analysis.Planner
	assigns     map[uint64][]ir.Assignment
	transitions map[uint64]Transition
	state       uint64
	startWire   ir.CellID
}

func newSchedule(b *ir.Builder, plans *analysis.Planner) *Schedule {
	return &Schedule{
		comp:        b.Component(),
		builder:     b,
		plans:       plans,
		assigns:     make(map[uint64][]ir.Assignment),
		transitions: make(map[uint64]Transition),
		startWire:   b.AddPrimitive("fsm_start", "std_wire", []uint64{1}),
	}
}

func (s *Schedule) startPort() ir.PortID {
	return s.comp.CellPort(s.startWire, "out")
}

func (s *Schedule) addAssign(state uint64, asgn ir.Assignment) {
	asgn.Interval = nil
	s.assigns[state] = append(s.assigns[state], asgn)
}

// addTransition registers state -> next under guard. The first true-guarded
// registration becomes unconditional; later registrations force the
// conditional form.
func (s *Schedule) addTransition(state, next uint64, guard ir.Guard) {
	existing, ok := s.transitions[state]
	if !ok {
		if _, isTrue := guard.(ir.TrueGuard); isTrue {
			s.transitions[state] = Unconditional{Next: next}
			return
		}
		s.transitions[state] = Conditional{Arms: []Arm{{Guard: guard, Next: next}}}
		return
	}
	switch t := existing.(type) {
	case Unconditional:
		s.transitions[state] = Conditional{Arms: []Arm{
			{Guard: ir.True(), Next: t.Next},
			{Guard: guard, Next: next},
		}}
	case Conditional:
		t.Arms = append(t.Arms, Arm{Guard: guard, Next: next})
		s.transitions[state] = t
	}
}

// finalize resolves every pending transition now that the target state is
// known.
func (s *Schedule) finalize(preds []pending, target uint64) {
	for _, p := range preds {
		s.addTransition(p.state, target, p.guard)
	}
}

func guardAll(preds []pending, g ir.Guard) []pending {
	out := make([]pending, 0, len(preds))
	for _, p := range preds {
		out = append(out, pending{state: p.state, guard: ir.And(p.guard, g)})
	}
	return out
}

// build threads the incomplete-transition list through a static control
// subtree, allocating states as it goes, and returns the exits of the
// subtree: transitions that will be finalized by whatever comes next.
func (s *Schedule) build(c ir.Control, preds []pending) []pending {
	switch n := c.(type) {
	case *ir.StaticSeq:
		for _, child := range n.Stmts {
			preds = s.build(child, preds)
		}
		return preds
	case *ir.StaticEnable:
		return s.buildEnable(n, preds)
	case *ir.StaticIf:
		return s.buildIf(n, preds)
	case *ir.StaticRepeat:
		return s.buildRepeat(n, preds)
	case *ir.StaticPar:
		return s.buildPar(n, preds)
	case *ir.Empty:
		return preds
	default:
		panic(fmt.Sprintf("passes: dynamic node %T inside static fsm schedule", c))
	}
}

// buildEnable allocates states for one static group, either one state per
// cycle of latency or a single state with an internal cycle counter,
// depending on the planner's lockstep decision.
func (s *Schedule) buildEnable(n *ir.StaticEnable, preds []pending) []pending {
	grp := s.comp.Group(n.Group)
	latency := grp.Latency
	if latency == 0 {
		return preds
	}
	oneState := grp.Attributes.Has(ir.AttrOneState)
	if plan, ok := s.plans.Plan(n); ok && !plan.Lockstep {
		oneState = true
	}
	if oneState {
		return s.buildCounterState(preds, latency, func(state uint64, cycleGuard func(lo, hi uint64) ir.Guard) {
			for _, asgn := range grp.Assignments {
				lo, hi := uint64(0), latency
				if asgn.Interval != nil {
					lo, hi = asgn.Interval.Start, asgn.Interval.End
				}
				s.addAssign(state, ir.Assignment{
					Dst:   asgn.Dst,
					Src:   asgn.Src,
					Guard: ir.And(asgn.Guard, cycleGuard(lo, hi)),
				})
			}
		})
	}

	base := s.state
	s.finalize(preds, base)
	for cycle := uint64(0); cycle < latency; cycle++ {
		state := base + cycle
		for _, asgn := range grp.Assignments {
			if asgn.Interval != nil {
				if cycle < asgn.Interval.Start || cycle >= asgn.Interval.End {
					continue
				}
			}
			s.addAssign(state, asgn)
		}
		if cycle+1 < latency {
			s.addTransition(state, state+1, ir.True())
		}
	}
	s.state = base + latency
	return []pending{{state: base + latency - 1, guard: ir.True()}}
}

// buildCounterState allocates exactly one FSM state driven by an internal
// cycle counter: emit places the construct's assignments into the state
// with counter-range guards, and the exit fires when the counter tops out.
func (s *Schedule) buildCounterState(preds []pending, latency uint64, emit func(state uint64, cycleGuard func(lo, hi uint64) ir.Guard)) []pending {
	if latency == 0 {
		return preds
	}
	b := s.builder
	state := s.state
	s.state++
	s.finalize(preds, state)

	width := ir.BitWidth(latency)
	if width == 0 {
		width = 1
	}
	counter := b.AddPrimitive("cycle_counter", "std_reg", []uint64{width})
	adder := b.AddPrimitive("cycle_incr", "std_add", []uint64{width})
	counterOut := s.comp.CellPort(counter, "out")
	oneW := b.ConstantPort(1, int(width))
	zeroW := b.ConstantPort(0, int(width))
	one := b.ConstantPort(1, 1)
	last := b.ConstantPort(latency-1, int(width))
	counterDone := ir.Eq(counterOut, last)

	s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(adder, "left"), Src: counterOut, Guard: ir.True()})
	s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(adder, "right"), Src: oneW, Guard: ir.True()})
	s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(counter, "in"), Src: s.comp.CellPort(adder, "out"), Guard: ir.Not(counterDone)})
	s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(counter, "in"), Src: zeroW, Guard: counterDone})
	s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(counter, "write_en"), Src: one, Guard: ir.True()})

	cycleGuard := func(lo, hi uint64) ir.Guard {
		if lo == 0 && hi >= latency {
			return ir.True()
		}
		if lo+1 == hi {
			return ir.Eq(counterOut, b.ConstantPort(lo, int(width)))
		}
		g := ir.Ge(counterOut, b.ConstantPort(lo, int(width)))
		if hi < latency {
			g = ir.And(g, ir.Lt(counterOut, b.ConstantPort(hi, int(width))))
		}
		return g
	}
	emit(state, cycleGuard)
	return []pending{{state: state, guard: counterDone}}
}

// buildIf holds one counter state for the if's full declared latency and
// runs each branch as its own realized sub-FSM, gated on the latched
// condition. The condition is read in the first cycle and latched through a
// register, so both branches see a stable decision and the shorter branch
// idling out the window cannot shorten the if. This also keeps an if that
// opens a schedule well formed: the counter state is the entry, and the
// dispatch lives in the branch gates rather than in entry transitions.
func (s *Schedule) buildIf(n *ir.StaticIf, preds []pending) []pending {
	if n.Latency == 0 {
		return preds
	}
	b := s.builder
	one := b.ConstantPort(1, 1)

	condWire := b.AddPrimitive("cond_wire", "std_wire", []uint64{1})
	condReg := b.AddPrimitive("cond_reg", "std_reg", []uint64{1})
	decided := ir.ReadPort(s.comp.CellPort(condWire, "out"))

	type branchFSM struct {
		group ir.GroupID
		wire  ir.CellID
		taken ir.Guard
	}
	var branches []branchFSM
	arms := []struct {
		body  ir.Control
		taken ir.Guard
	}{
		{n.True, decided},
		{n.False, ir.Not(decided)},
	}
	for _, arm := range arms {
		if _, isEmpty := arm.body.(*ir.Empty); isEmpty {
			continue
		}
		latency, ok := ir.StaticLatency(arm.body, s.comp)
		if !ok {
			panic(fmt.Sprintf("passes: dynamic branch %T inside static if", arm.body))
		}
		if latency == 0 {
			continue
		}
		sub := newSchedule(b, s.plans)
		sub.loopToZero(sub.build(arm.body, nil))
		branches = append(branches, branchFSM{
			group: sub.Realize("if_branch_fsm", latency),
			wire:  sub.startWire,
			taken: arm.taken,
		})
	}

	return s.buildCounterState(preds, n.Latency, func(state uint64, cycleGuard func(lo, hi uint64) ir.Guard) {
		s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(condWire, "in"), Src: n.CondPort, Guard: cycleGuard(0, 1)})
		s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(condReg, "in"), Src: n.CondPort, Guard: cycleGuard(0, 1)})
		s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(condReg, "write_en"), Src: one, Guard: cycleGuard(0, 1)})
		if n.Latency > 1 {
			s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(condWire, "in"), Src: s.comp.CellPort(condReg, "out"), Guard: cycleGuard(1, n.Latency)})
		}
		for _, br := range branches {
			grp := s.comp.Group(br.group)
			s.addAssign(state, ir.Assignment{
				Dst:   s.comp.CellPort(br.wire, "in"),
				Src:   one,
				Guard: ir.And(cycleGuard(0, grp.Latency), br.taken),
			})
			s.addAssign(state, ir.Assignment{
				Dst:   grp.Go,
				Src:   one,
				Guard: ir.And(cycleGuard(0, 1), br.taken),
			})
		}
	})
}

// buildRepeat realizes a static repeat per the planner's decision: fully
// unroll, build one iteration and loop while the start wire holds, or
// offload into a one-state sub-FSM.
func (s *Schedule) buildRepeat(n *ir.StaticRepeat, preds []pending) []pending {
	if n.NumRepeats == 0 || n.Latency == 0 {
		return preds
	}
	plan, ok := s.plans.Plan(n)
	if !ok {
		plan = analysis.Plan{Strategy: analysis.StrategyInline}
	}
	switch plan.Strategy {
	case analysis.StrategyUnroll:
		for i := uint64(0); i < n.NumRepeats; i++ {
			preds = s.build(n.Body, preds)
		}
		return preds
	case analysis.StrategyOffload:
		sub := newSchedule(s.builder, s.plans)
		subExits := sub.build(n.Body, nil)
		sub.loopToZero(subExits)
		bodyLatency := n.Latency / n.NumRepeats
		subGroup := sub.Realize("offload_fsm", bodyLatency)
		one := s.builder.ConstantPort(1, 1)
		return s.buildCounterState(preds, n.Latency, func(state uint64, _ func(lo, hi uint64) ir.Guard) {
			s.addAssign(state, ir.Assignment{Dst: s.comp.CellPort(sub.startWire, "in"), Src: one, Guard: ir.True()})
			s.addAssign(state, ir.Assignment{Dst: s.comp.Group(subGroup).Go, Src: one, Guard: ir.True()})
		})
	default:
		// Inline: one iteration's worth of states, looped back while the
		// schedule's start wire remains asserted.
		entry := s.state
		exits := s.build(n.Body, preds)
		start := ir.ReadPort(s.startPort())
		for _, e := range exits {
			s.addTransition(e.state, entry, ir.And(e.guard, start))
		}
		return guardAll(exits, ir.Not(start))
	}
}

// buildPar gives every thread its own sub-FSM, pulses each sub-FSM's start
// in the first cycle of its window, and holds one counter state for the
// par's full latency.
func (s *Schedule) buildPar(n *ir.StaticPar, preds []pending) []pending {
	b := s.builder
	one := b.ConstantPort(1, 1)
	type thread struct {
		group ir.GroupID
		wire  ir.CellID
	}
	threads := make([]thread, 0, len(n.Stmts))
	for _, child := range n.Stmts {
		latency, ok := ir.StaticLatency(child, s.comp)
		if !ok {
			panic(fmt.Sprintf("passes: dynamic thread %T inside static par", child))
		}
		sub := newSchedule(b, s.plans)
		subExits := sub.build(child, nil)
		sub.loopToZero(subExits)
		threads = append(threads, thread{
			group: sub.Realize("par_thread_fsm", latency),
			wire:  sub.startWire,
		})
	}
	return s.buildCounterState(preds, n.Latency, func(state uint64, cycleGuard func(lo, hi uint64) ir.Guard) {
		for _, t := range threads {
			grp := s.comp.Group(t.group)
			s.addAssign(state, ir.Assignment{
				Dst:   s.comp.CellPort(t.wire, "in"),
				Src:   one,
				Guard: cycleGuard(0, grp.Latency),
			})
			s.addAssign(state, ir.Assignment{
				Dst:   grp.Go,
				Src:   one,
				Guard: cycleGuard(0, 1),
			})
		}
	})
}

// loopToZero registers the default unconditional loop-back to state 0 for
// every unresolved exit.
func (s *Schedule) loopToZero(exits []pending) {
	s.finalize(exits, 0)
}

// Realize materializes the schedule into a static group: a state register,
// per-state guards on every recorded assignment, and transition writes.
// States without a registered transition hold their value, which is the
// true-guarded self-loop fallback.
func (s *Schedule) Realize(prefix string, latency uint64) ir.GroupID {
	b := s.builder
	numStates := s.state
	if numStates == 0 {
		numStates = 1
	}
	width := ir.BitWidth(numStates)
	if width == 0 {
		width = 1
	}
	fsm := b.AddPrimitive(prefix, "std_reg", []uint64{width})
	fsmIn := s.comp.CellPort(fsm, "in")
	fsmWrite := s.comp.CellPort(fsm, "write_en")
	fsmOut := s.comp.CellPort(fsm, "out")
	one := b.ConstantPort(1, 1)

	gid := b.AddStaticGroup(prefix+"_group", latency)
	grp := s.comp.Group(gid)

	stateConst := func(state uint64) ir.PortID {
		return b.ConstantPort(state, int(width))
	}

	// The start wire reads high for the group's whole window.
	grp.Assignments = append(grp.Assignments, ir.Assignment{
		Dst:      s.comp.CellPort(s.startWire, "in"),
		Src:      one,
		Guard:    ir.True(),
		Interval: &ir.Interval{Start: 0, End: latency},
	})

	for _, state := range s.stateOrder() {
		inState := ir.Eq(fsmOut, stateConst(state))
		for _, asgn := range s.assigns[state] {
			grp.Assignments = append(grp.Assignments, ir.Assignment{
				Dst:   asgn.Dst,
				Src:   asgn.Src,
				Guard: ir.And(inState, asgn.Guard),
			})
		}
		switch t := s.transitions[state].(type) {
		case Unconditional:
			grp.Assignments = append(grp.Assignments,
				ir.Assignment{Dst: fsmIn, Src: stateConst(t.Next), Guard: inState},
				ir.Assignment{Dst: fsmWrite, Src: one, Guard: inState},
			)
		case Conditional:
			for _, arm := range t.Arms {
				g := ir.And(inState, arm.Guard)
				grp.Assignments = append(grp.Assignments,
					ir.Assignment{Dst: fsmIn, Src: stateConst(arm.Next), Guard: g},
					ir.Assignment{Dst: fsmWrite, Src: one, Guard: g},
				)
			}
		}
	}
	return gid
}

// stateOrder lists every state with assignments or transitions, ascending.
func (s *Schedule) stateOrder() []uint64 {
	seen := make(map[uint64]bool)
	var states []uint64
	for st := range s.assigns {
		if !seen[st] {
			seen[st] = true
			states = append(states, st)
		}
	}
	for st := range s.transitions {
		if !seen[st] {
			seen[st] = true
			states = append(states, st)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}

// CompileStatic lowers static control through explicit state tables. Each
// maximal static subtree becomes one realized FSM group (or a network of
// per-thread FSM groups for static par).
type CompileStatic struct {
	ir.BaseVisitor
	builder *ir.Builder
	plans   *analysis.Planner
}

// NewCompileStatic constructs the pass.
func NewCompileStatic() *CompileStatic {
	return &CompileStatic{}
}

// Name implements Pass.
func (p *CompileStatic) Name() string { return "compile-static-fsm" }

// Clear implements ir.Visitor.
func (p *CompileStatic) Clear(comp *ir.Component) {
	p.builder = ir.NewBuilder(comp)
	p.plans = analysis.PlanControl(comp)
}

func (p *CompileStatic) StartStaticSeq(n *ir.StaticSeq, comp *ir.Component) ir.Action {
	return ir.Change(p.compile(n, n.Latency))
}

func (p *CompileStatic) StartStaticIf(n *ir.StaticIf, comp *ir.Component) ir.Action {
	return ir.Change(p.compile(n, n.Latency))
}

func (p *CompileStatic) StartStaticRepeat(n *ir.StaticRepeat, comp *ir.Component) ir.Action {
	return ir.Change(p.compile(n, n.Latency))
}

func (p *CompileStatic) StartStaticPar(n *ir.StaticPar, comp *ir.Component) ir.Action {
	return ir.Change(p.compile(n, n.Latency))
}

func (p *CompileStatic) compile(n ir.Control, latency uint64) ir.Control {
	sched := newSchedule(p.builder, p.plans)
	exits := sched.build(n, nil)
	sched.loopToZero(exits)
	gid := sched.Realize("tdfsm", latency)
	return &ir.StaticEnable{Group: gid}
}
