package passes

import (
	"strings"
	"testing"

	"fsmgen/internal/ir"
)

func compileStatic(t *testing.T, comp *ir.Component) *ir.Group {
	t.Helper()
	Run(&ir.Context{Components: []*ir.Component{comp}}, NewCompileStatic())
	return loweredStaticGroup(t, comp)
}

func TestCompileStaticSeqAllocatesOneStatePerCycle(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	g1 := writeRegGroup(t, comp, b, 1, nil)
	g2 := writeRegGroup(t, comp, b, 1, nil)
	comp.Control = &ir.StaticSeq{
		Stmts:   []ir.Control{&ir.StaticEnable{Group: g1}, &ir.StaticEnable{Group: g2}},
		Latency: 2,
	}

	grp := compileStatic(t, comp)
	if !grp.Static || grp.Latency != 2 {
		t.Fatalf("realized group latency = %d static=%v, want 2 static", grp.Latency, grp.Static)
	}
	// Two states fit a 1-bit register.
	if regs := findPrimitive(comp, "std_reg", 1); len(regs) != 1 {
		t.Errorf("found %d 1-bit registers, want exactly the fsm", len(regs))
	}
	// Start wire held for the window, two state bodies, two transitions of
	// two writes each.
	if got, want := len(grp.Assignments), 1+2+4; got != want {
		t.Errorf("realized group has %d assignments, want %d", got, want)
	}
}

func groupsByPrefix(comp *ir.Component, prefix string) []*ir.Group {
	var out []*ir.Group
	for i := 0; i < comp.NumGroups(); i++ {
		if g := comp.Group(ir.GroupID(i)); strings.HasPrefix(g.Name, prefix) {
			out = append(out, g)
		}
	}
	return out
}

func guardHasNegation(g ir.Guard) bool {
	switch gd := g.(type) {
	case ir.NotGuard:
		return true
	case ir.AndGuard:
		return guardHasNegation(gd.Left) || guardHasNegation(gd.Right)
	case ir.OrGuard:
		return guardHasNegation(gd.Left) || guardHasNegation(gd.Right)
	default:
		return false
	}
}

func TestCompileStaticIfHoldsOneDecisionState(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	cond := b.AddPrimitive("cmp", "std_eq", []uint64{8})
	entry := writeRegGroup(t, comp, b, 1, nil)
	onTrue := writeRegGroup(t, comp, b, 1, nil)
	onFalse := writeRegGroup(t, comp, b, 1, nil)
	exit := writeRegGroup(t, comp, b, 1, nil)
	before := comp.NumGroups()
	comp.Control = &ir.StaticSeq{
		Stmts: []ir.Control{
			&ir.StaticEnable{Group: entry},
			&ir.StaticIf{
				CondPort: comp.CellPort(cond, "out"),
				True:     &ir.StaticEnable{Group: onTrue},
				False:    &ir.StaticEnable{Group: onFalse},
				Latency:  1,
			},
			&ir.StaticEnable{Group: exit},
		},
		Latency: 3,
	}

	compileStatic(t, comp)
	// Entry, the if's decision state and the rejoin state: three states, so
	// the fsm register is 2 bits wide.
	if regs := findPrimitive(comp, "std_reg", 2); len(regs) != 1 {
		t.Errorf("found %d 2-bit registers, want exactly the fsm", len(regs))
	}
	// Two realized branch fsms plus the outer group.
	if got := comp.NumGroups() - before; got != 3 {
		t.Errorf("pass synthesized %d groups, want 3", got)
	}
}

func TestCompileStaticBareIfDispatchesOnCondition(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	cond := b.AddPrimitive("cmp", "std_eq", []uint64{8})
	condOut := comp.CellPort(cond, "out")
	onTrue := writeRegGroup(t, comp, b, 1, nil)
	onFalse := writeRegGroup(t, comp, b, 1, nil)
	comp.Control = &ir.StaticIf{
		CondPort: condOut,
		True:     &ir.StaticEnable{Group: onTrue},
		False:    &ir.StaticEnable{Group: onFalse},
		Latency:  1,
	}

	grp := compileStatic(t, comp)
	if grp.Latency != 1 {
		t.Fatalf("realized group latency = %d, want 1", grp.Latency)
	}
	// The condition feeds the latch even when the if opens the schedule.
	latched := false
	for _, asgn := range grp.Assignments {
		if asgn.Src == condOut {
			latched = true
		}
	}
	if !latched {
		t.Errorf("condition port feeds no assignment in the realized group")
	}
	// Each branch fsm's go is gated on one polarity of the latched
	// condition.
	branches := groupsByPrefix(comp, "if_branch_fsm")
	if len(branches) != 2 {
		t.Fatalf("found %d branch fsm groups, want 2", len(branches))
	}
	negated := 0
	for _, br := range branches {
		var gate ir.Guard
		for _, asgn := range grp.Assignments {
			if asgn.Dst == br.Go {
				gate = asgn.Guard
			}
		}
		if gate == nil {
			t.Fatalf("branch group %s is never started", br.Name)
		}
		if _, ok := gate.(ir.TrueGuard); ok {
			t.Errorf("branch group %s starts unconditionally", br.Name)
		}
		if guardHasNegation(gate) {
			negated++
		}
	}
	if negated != 1 {
		t.Errorf("%d branch gates carry a negation, want exactly the false branch", negated)
	}
}

func TestCompileStaticIfUnequalBranchesHoldFullLatency(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	cond := b.AddPrimitive("cmp", "std_eq", []uint64{8})
	entry := writeRegGroup(t, comp, b, 1, nil)
	long := writeRegGroup(t, comp, b, 2, nil)
	short := writeRegGroup(t, comp, b, 1, nil)
	exit := writeRegGroup(t, comp, b, 1, nil)
	before := comp.NumGroups()
	comp.Control = &ir.StaticSeq{
		Stmts: []ir.Control{
			&ir.StaticEnable{Group: entry},
			&ir.StaticIf{
				CondPort: comp.CellPort(cond, "out"),
				True:     &ir.StaticEnable{Group: long},
				False:    &ir.StaticEnable{Group: short},
				Latency:  2,
			},
			&ir.StaticEnable{Group: exit},
		},
		Latency: 4,
	}

	grp := compileStatic(t, comp)
	if grp.Latency != 4 {
		t.Fatalf("realized group latency = %d, want 4", grp.Latency)
	}
	// Entry, decision and rejoin: three states either way, so the short
	// branch cannot reach the exit a cycle early.
	if regs := findPrimitive(comp, "std_reg", 2); len(regs) != 1 {
		t.Errorf("found %d 2-bit registers, want exactly the fsm", len(regs))
	}
	// The decision state counts its two cycles on a 1-bit counter.
	if adders := findPrimitive(comp, "std_add", 1); len(adders) != 1 {
		t.Errorf("found %d 1-bit adders, want the if cycle counter", len(adders))
	}
	if got := comp.NumGroups() - before; got != 3 {
		t.Errorf("pass synthesized %d groups, want 3", got)
	}
	branches := groupsByPrefix(comp, "if_branch_fsm")
	if len(branches) != 2 {
		t.Fatalf("found %d branch fsm groups, want 2", len(branches))
	}
	latencies := map[uint64]int{}
	for _, br := range branches {
		latencies[br.Latency]++
	}
	if latencies[2] != 1 || latencies[1] != 1 {
		t.Errorf("branch fsm latencies = %v, want one 2-cycle and one 1-cycle window", latencies)
	}
}

func TestCompileStaticZeroRepeatLowersToNothing(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	body := writeRegGroup(t, comp, b, 5, nil)
	comp.Control = &ir.StaticRepeat{
		NumRepeats: 0,
		Body:       &ir.StaticEnable{Group: body},
		Latency:    0,
	}

	grp := compileStatic(t, comp)
	if grp.Latency != 0 {
		t.Fatalf("realized group latency = %d, want 0", grp.Latency)
	}
	for _, asgn := range grp.Assignments {
		if asgn.Dst == comp.Group(body).Go {
			t.Errorf("zero-repeat body is still triggered")
		}
	}
}

func TestCompileStaticLongEnableUsesCycleCounter(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	long := writeRegGroup(t, comp, b, 400, nil)
	comp.Control = &ir.StaticSeq{
		Stmts:   []ir.Control{&ir.StaticEnable{Group: long}},
		Latency: 400,
	}

	grp := compileStatic(t, comp)
	if grp.Latency != 400 {
		t.Fatalf("realized group latency = %d, want 400", grp.Latency)
	}
	// 400 cycles in one state need a 9-bit counter and an incrementer.
	if regs := findPrimitive(comp, "std_reg", 9); len(regs) != 1 {
		t.Errorf("found %d 9-bit registers, want the cycle counter", len(regs))
	}
	if adders := findPrimitive(comp, "std_add", 9); len(adders) != 1 {
		t.Errorf("found %d 9-bit adders, want the counter incrementer", len(adders))
	}
}

func TestCompileStaticRepeatInlinesBodyWithLoopback(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	body := writeRegGroup(t, comp, b, 5, nil)
	comp.Control = &ir.StaticRepeat{
		NumRepeats: 100,
		Body:       &ir.StaticEnable{Group: body},
		Latency:    500,
	}

	grp := compileStatic(t, comp)
	if grp.Latency != 500 {
		t.Fatalf("realized group latency = %d, want 500", grp.Latency)
	}
	// One iteration's five states, not five hundred.
	if regs := findPrimitive(comp, "std_reg", 3); len(regs) != 1 {
		t.Errorf("found %d 3-bit registers, want the fsm for one unrolled iteration", len(regs))
	}
}

func TestCompileStaticShortRepeatUnrolls(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	body := writeRegGroup(t, comp, b, 2, nil)
	comp.Control = &ir.StaticRepeat{
		NumRepeats: 3,
		Body:       &ir.StaticEnable{Group: body},
		Latency:    6,
	}

	grp := compileStatic(t, comp)
	if grp.Latency != 6 {
		t.Fatalf("realized group latency = %d, want 6", grp.Latency)
	}
	// Six unrolled states fit a 3-bit register.
	if regs := findPrimitive(comp, "std_reg", 3); len(regs) != 1 {
		t.Errorf("found %d 3-bit registers, want the unrolled fsm", len(regs))
	}
}

func TestCompileStaticParRealizesPerThreadFSMs(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	g1 := writeRegGroup(t, comp, b, 2, nil)
	g2 := writeRegGroup(t, comp, b, 3, nil)
	before := comp.NumGroups()
	comp.Control = &ir.StaticPar{
		Stmts:   []ir.Control{&ir.StaticEnable{Group: g1}, &ir.StaticEnable{Group: g2}},
		Latency: 3,
	}

	grp := compileStatic(t, comp)
	if grp.Latency != 3 {
		t.Fatalf("realized group latency = %d, want 3", grp.Latency)
	}
	// One realized group per thread plus the outer counter group.
	if got := comp.NumGroups() - before; got != 3 {
		t.Errorf("pass synthesized %d groups, want 3", got)
	}
	// The outer state holds a 2-bit counter for the three cycles.
	if adders := findPrimitive(comp, "std_add", 2); len(adders) != 1 {
		t.Errorf("found %d 2-bit adders, want the outer cycle counter", len(adders))
	}
}
