package frontend

import (
	"strings"
	"testing"

	"fsmgen/internal/ir"
)

const fixture = `
components:
  - name: main
    signature:
      - {name: start, width: 1, direction: input, attributes: {go: 1}}
      - {name: finished, width: 1, direction: output, attributes: {done: 1}}
    cells:
      - {name: acc, primitive: std_reg, params: [32]}
      - {name: one, constant: {value: 1, width: 1}}
    groups:
      - name: incr
        static: true
        latency: 1
        assignments:
          - {dst: acc.write_en, src: one.out}
      - name: drain
        assignments:
          - {dst: acc.write_en, src: one.out, guard: {not: {port: acc.done}}}
          - {dst: drain.done, src: acc.done}
    control:
      seq:
        - static_repeat:
            count: 4
            latency: 4
            body: {static_enable: incr}
        - enable: drain
`

func load(t *testing.T, src string) *ir.Component {
	t.Helper()
	ctx, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ctx.Components) != 1 {
		t.Fatalf("loaded %d components, want 1", len(ctx.Components))
	}
	return ctx.Components[0]
}

func TestLoadComponent(t *testing.T) {
	comp := load(t, fixture)
	if comp.Name != "main" {
		t.Errorf("name = %q, want main", comp.Name)
	}
	if len(comp.Signature) != 2 {
		t.Errorf("signature has %d ports, want 2", len(comp.Signature))
	}
	if _, ok := comp.FindCell("acc"); !ok {
		t.Errorf("register cell not loaded")
	}

	gid, ok := comp.FindGroup("incr")
	if !ok {
		t.Fatalf("static group not loaded")
	}
	grp := comp.Group(gid)
	if !grp.Static || grp.Latency != 1 {
		t.Errorf("incr static=%v latency=%d, want static latency 1", grp.Static, grp.Latency)
	}

	seq, ok := comp.Control.(*ir.Seq)
	if !ok || len(seq.Stmts) != 2 {
		t.Fatalf("control is %T with %d stmts, want seq of 2", comp.Control, len(seq.Stmts))
	}
	rep, ok := seq.Stmts[0].(*ir.StaticRepeat)
	if !ok || rep.NumRepeats != 4 || rep.Latency != 4 {
		t.Fatalf("first stmt is %T, want static repeat 4<4>", seq.Stmts[0])
	}
	ir.ValidateStaticTiming(comp.Control, comp)
}

func TestLoadResolvesGuardsAndGroupHoles(t *testing.T) {
	comp := load(t, fixture)
	gid, _ := comp.FindGroup("drain")
	grp := comp.Group(gid)
	if len(grp.Assignments) != 2 {
		t.Fatalf("drain has %d assignments, want 2", len(grp.Assignments))
	}
	if _, ok := grp.Assignments[0].Guard.(ir.NotGuard); !ok {
		t.Errorf("guard is %T, want a negation", grp.Assignments[0].Guard)
	}
	if grp.Assignments[1].Dst != grp.Done {
		t.Errorf("drain.done reference did not resolve to the group's done hole")
	}
}

func TestLoadRejectsUnknownReferences(t *testing.T) {
	bad := `
components:
  - name: main
    groups:
      - name: g
        assignments:
          - {dst: missing.port, src: also.missing}
`
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected an error for an unknown cell reference")
	}
}

func TestLoadRejectsStaticEnableOfDynamicGroup(t *testing.T) {
	bad := `
components:
  - name: main
    groups:
      - name: g
    control: {static_enable: g}
`
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected an error for a static enable of a dynamic group")
	}
}
