package analysis

import (
	"testing"

	"fsmgen/internal/ir"
)

func planFor(t *testing.T, comp *ir.Component, node ir.Control) Plan {
	t.Helper()
	planner := PlanControl(comp)
	plan, ok := planner.Plan(node)
	if !ok {
		t.Fatalf("no plan recorded for %T", node)
	}
	return plan
}

func staticEnableOf(t *testing.T, comp *ir.Component, latency uint64) *ir.StaticEnable {
	t.Helper()
	gid := comp.AddGroup(&ir.Group{Name: uniqueGroupName(comp), Static: true, Latency: latency})
	return &ir.StaticEnable{Group: gid}
}

func uniqueGroupName(comp *ir.Component) string {
	return string(rune('a'+comp.NumGroups())) + "_grp"
}

func TestPlanEnableUnderCutoffIsLockstep(t *testing.T) {
	comp := ir.NewComponent("main")
	en := staticEnableOf(t, comp, 5)
	comp.Control = en

	plan := planFor(t, comp, en)
	if !plan.Static || plan.States != 5 || !plan.Lockstep {
		t.Errorf("plan = %+v, want 5 lockstep states", plan)
	}
}

func TestPlanEnableAtCutoffFallsBackToCounter(t *testing.T) {
	comp := ir.NewComponent("main")
	en := staticEnableOf(t, comp, FSMStateCutoff)
	comp.Control = en

	plan := planFor(t, comp, en)
	if plan.States != 1 || plan.Lockstep {
		t.Errorf("plan = %+v, want one counter state out of lockstep", plan)
	}
}

func TestPlanSeqSumsAndParTakesMax(t *testing.T) {
	comp := ir.NewComponent("main")
	seq := &ir.StaticSeq{
		Stmts:   []ir.Control{staticEnableOf(t, comp, 2), staticEnableOf(t, comp, 3)},
		Latency: 5,
	}
	comp.Control = seq
	if plan := planFor(t, comp, seq); plan.States != 5 || !plan.Lockstep {
		t.Errorf("seq plan = %+v, want 5 lockstep states", plan)
	}

	comp = ir.NewComponent("main")
	par := &ir.StaticPar{
		Stmts:   []ir.Control{staticEnableOf(t, comp, 2), staticEnableOf(t, comp, 3)},
		Latency: 3,
	}
	comp.Control = par
	if plan := planFor(t, comp, par); plan.States != 3 || !plan.Lockstep {
		t.Errorf("par plan = %+v, want 3 lockstep states", plan)
	}
}

func TestPlanIfTakesBranchMaximum(t *testing.T) {
	comp := ir.NewComponent("main")
	sif := &ir.StaticIf{
		True:    staticEnableOf(t, comp, 4),
		False:   staticEnableOf(t, comp, 2),
		Latency: 4,
	}
	comp.Control = sif
	if plan := planFor(t, comp, sif); plan.States != 4 {
		t.Errorf("if plan states = %d, want branch max 4", plan.States)
	}

	comp = ir.NewComponent("main")
	short := &ir.StaticIf{
		True:    staticEnableOf(t, comp, 1),
		False:   staticEnableOf(t, comp, 1),
		Latency: 1,
	}
	comp.Control = short
	if plan := planFor(t, comp, short); plan.States != 1 {
		t.Errorf("one-cycle if plan states = %d, want 1", plan.States)
	}
}

func TestPlanRepeatStrategies(t *testing.T) {
	cases := []struct {
		name       string
		repeats    uint64
		body       uint64
		strategy   RepeatStrategy
		wantStates uint64
	}{
		{"unroll", 50, 5, StrategyUnroll, 250},
		{"inline", 100, 5, StrategyInline, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			comp := ir.NewComponent("main")
			rep := &ir.StaticRepeat{
				NumRepeats: tc.repeats,
				Body:       staticEnableOf(t, comp, tc.body),
				Latency:    tc.repeats * tc.body,
			}
			comp.Control = rep
			plan := planFor(t, comp, rep)
			if plan.Strategy != tc.strategy {
				t.Fatalf("strategy = %v, want %v", plan.Strategy, tc.strategy)
			}
			if plan.States != tc.wantStates {
				t.Errorf("states = %d, want %d", plan.States, tc.wantStates)
			}
		})
	}
}

func TestPlanRepeatOffloadsOversizedLockstepBody(t *testing.T) {
	comp := ir.NewComponent("main")
	body := &ir.StaticSeq{
		Stmts:   []ir.Control{staticEnableOf(t, comp, 200), staticEnableOf(t, comp, 200)},
		Latency: 400,
	}
	rep := &ir.StaticRepeat{NumRepeats: 2, Body: body, Latency: 800}
	comp.Control = rep

	plan := planFor(t, comp, rep)
	if plan.Strategy != StrategyOffload {
		t.Fatalf("strategy = %v, want offload", plan.Strategy)
	}
	if plan.States != 1 {
		t.Errorf("states = %d, want 1", plan.States)
	}
}

func TestPlanDynamicNodesGetZeroPlan(t *testing.T) {
	comp := ir.NewComponent("main")
	gid := comp.AddGroup(&ir.Group{Name: "g"})
	seq := &ir.Seq{Stmts: []ir.Control{&ir.Enable{Group: gid}}}
	comp.Control = seq

	plan := planFor(t, comp, seq)
	if plan.Static || plan.States != 0 {
		t.Errorf("dynamic seq plan = %+v, want zero plan", plan)
	}
}
