package analysis

import (
	"testing"

	"fsmgen/internal/ir"
)

// chainedRegisters builds a dynamic group that triggers r0, chains r0's
// done into r1's write enable, and forwards r1's done to the group done.
func chainedRegisters(t *testing.T) (*ir.Component, ir.GroupID) {
	t.Helper()
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	r0 := b.AddPrimitive("r0", "std_reg", []uint64{32})
	r1 := b.AddPrimitive("r1", "std_reg", []uint64{32})
	one := b.ConstantPort(1, 1)
	val := b.ConstantPort(5, 32)

	gid := b.AddGroup("upd")
	grp := comp.Group(gid)
	grp.Assignments = append(grp.Assignments,
		b.Assign(comp.CellPort(r0, "in"), val, nil),
		b.Assign(comp.CellPort(r0, "write_en"), one, nil),
		b.Assign(comp.CellPort(r1, "in"), comp.CellPort(r0, "out"), nil),
		b.Assign(comp.CellPort(r1, "write_en"), comp.CellPort(r0, "done"), nil),
		b.Assign(grp.Done, comp.CellPort(r1, "done"), nil),
	)
	return comp, gid
}

func TestInferGroupLatencyChain(t *testing.T) {
	comp, gid := chainedRegisters(t)
	table := BuildLatencyTable(comp)

	latency, ok := InferGroupLatency(comp, gid, table)
	if !ok {
		t.Fatalf("expected chain latency to be inferable")
	}
	if latency != 2 {
		t.Errorf("latency = %d, want 2", latency)
	}
}

func TestInferGroupLatencyStaticGroupReturnsOwn(t *testing.T) {
	comp := ir.NewComponent("main")
	gid := comp.AddGroup(&ir.Group{Name: "s", Static: true, Latency: 9})
	table := BuildLatencyTable(comp)

	latency, ok := InferGroupLatency(comp, gid, table)
	if !ok || latency != 9 {
		t.Errorf("static group latency = %d, %v, want 9, true", latency, ok)
	}
}

func TestInferGroupLatencyBailsOnDynamicTrigger(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	r0 := b.AddPrimitive("r0", "std_reg", []uint64{8})
	w := b.AddPrimitive("w", "std_wire", []uint64{1})

	gid := b.AddGroup("upd")
	grp := comp.Group(gid)
	// A wire output driving a go port is not statically timed.
	grp.Assignments = append(grp.Assignments,
		b.Assign(comp.CellPort(r0, "write_en"), comp.CellPort(w, "out"), nil),
		b.Assign(grp.Done, comp.CellPort(r0, "done"), nil),
	)
	table := BuildLatencyTable(comp)

	if _, ok := InferGroupLatency(comp, gid, table); ok {
		t.Errorf("expected inference to bail on a dynamic go trigger")
	}
}

func TestInferGroupLatencyBailsOnMultipleWriters(t *testing.T) {
	comp := ir.NewComponent("main")
	b := ir.NewBuilder(comp)
	r0 := b.AddPrimitive("r0", "std_reg", []uint64{8})
	r1 := b.AddPrimitive("r1", "std_reg", []uint64{8})
	r2 := b.AddPrimitive("r2", "std_reg", []uint64{8})
	one := b.ConstantPort(1, 1)

	gid := b.AddGroup("upd")
	grp := comp.Group(gid)
	grp.Assignments = append(grp.Assignments,
		b.Assign(comp.CellPort(r0, "write_en"), one, nil),
		b.Assign(comp.CellPort(r1, "write_en"), one, nil),
		// Two done ports converge on the same go port.
		b.Assign(comp.CellPort(r2, "write_en"), comp.CellPort(r0, "done"), nil),
		b.Assign(comp.CellPort(r2, "write_en"), comp.CellPort(r1, "done"), nil),
		b.Assign(grp.Done, comp.CellPort(r2, "done"), nil),
	)
	table := BuildLatencyTable(comp)

	if _, ok := InferGroupLatency(comp, gid, table); ok {
		t.Errorf("expected inference to bail on in-degree > 1")
	}
}

func TestInferPromotionStampsAndIsIdempotent(t *testing.T) {
	comp, gid := chainedRegisters(t)
	table := BuildLatencyTable(comp)

	if n := InferPromotion(comp, table, nil); n != 1 {
		t.Fatalf("first pass promoted %d groups, want 1", n)
	}
	grp := comp.Group(gid)
	if got := grp.Attributes.Get(ir.AttrPromotable); got != 2 {
		t.Errorf("promotable = %d, want 2", got)
	}
	if n := InferPromotion(comp, table, nil); n != 0 {
		t.Errorf("second pass promoted %d groups, want 0", n)
	}
}
