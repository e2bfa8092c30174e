package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"fsmgen/internal/ir"
)

// parFixture builds a static par with two threads:
//
//	thread 0: write ra (3 cycles), write rb (2 cycles), write ra (3 cycles)
//	thread 1: write rc (3 cycles), write ra (2 cycles)
//
// so ra is live at cycles [0,3) and [5,8) in thread 0 and [3,5) in
// thread 1.
func parFixture(t *testing.T) (*ir.Component, map[string]string, int64, int64, int64) {
	t.Helper()
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	ra := b.AddPrimitive("ra", "std_reg", []uint64{8})
	rb := b.AddPrimitive("rb", "std_reg", []uint64{8})
	rc := b.AddPrimitive("rc", "std_reg", []uint64{8})
	one := b.ConstantPort(1, 1)

	writeGroup := func(name string, latency uint64, reg ir.CellID) ir.GroupID {
		gid := b.AddStaticGroup(name, latency)
		grp := comp.Group(gid)
		grp.Assignments = append(grp.Assignments,
			b.Assign(comp.CellPort(reg, "write_en"), one, nil),
		)
		return gid
	}

	thread0 := &ir.StaticSeq{
		Stmts: []ir.Control{
			&ir.StaticEnable{Group: writeGroup("a1", 3, ra)},
			&ir.StaticEnable{Group: writeGroup("gap", 2, rb)},
			&ir.StaticEnable{Group: writeGroup("a2", 3, ra)},
		},
		Latency: 8,
	}
	thread1 := &ir.StaticSeq{
		Stmts: []ir.Control{
			&ir.StaticEnable{Group: writeGroup("c1", 3, rc)},
			&ir.StaticEnable{Group: writeGroup("b2", 2, ra)},
		},
		Latency: 5,
	}
	par := &ir.StaticPar{Stmts: []ir.Control{thread0, thread1}, Latency: 8}
	comp.Control = par
	ir.AssignNodeIDs(comp.Control)

	names := map[string]string{
		"ra": comp.Cell(ra).Name,
		"rb": comp.Cell(rb).Name,
		"rc": comp.Cell(rc).Name,
	}
	parID := mustNodeID(par)
	return comp, names, parID, mustNodeID(thread0), mustNodeID(thread1)
}

func TestTimeMapIntervals(t *testing.T) {
	comp, names, par, t0, t1 := parFixture(t)
	tm := BuildTimeMap(comp)

	got := tm.Intervals(par, t0, names["ra"])
	want := []ir.Interval{{Start: 0, End: 3}, {Start: 5, End: 8}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("thread 0 ra intervals mismatch (-want +got):\n%s", diff)
	}

	got = tm.Intervals(par, t1, names["ra"])
	want = []ir.Interval{{Start: 3, End: 5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("thread 1 ra intervals mismatch (-want +got):\n%s", diff)
	}
}

func TestLivenessOverlaps(t *testing.T) {
	comp, names, par, t0, t1 := parFixture(t)
	tm := BuildTimeMap(comp)

	// [0,3)+[5,8) against [3,5): touching endpoints never overlap.
	if tm.LivenessOverlaps(par, t0, t1, names["ra"], names["ra"]) {
		t.Errorf("disjoint interval lists reported as overlapping")
	}
	// rb is live [3,5) in thread 0, ra [3,5) in thread 1.
	if !tm.LivenessOverlaps(par, t0, t1, names["rb"], names["ra"]) {
		t.Errorf("coincident windows reported as disjoint")
	}
	// An unknown par is conservatively an overlap.
	if !tm.LivenessOverlaps(999, t0, t1, names["ra"], names["ra"]) {
		t.Errorf("unknown par must conservatively overlap")
	}
}

func TestTimeMapPanicsOnDynamicEnableInsidePar(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	gid := b.AddGroup("dyn")
	par := &ir.StaticPar{Stmts: []ir.Control{&ir.Enable{Group: gid}}, Latency: 1}
	comp.Control = par
	ir.AssignNodeIDs(comp.Control)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for dynamic enable inside static par")
		}
	}()
	BuildTimeMap(comp)
}
