package ir

import "testing"

func staticGroup(t *testing.T, comp *Component, name string, latency uint64) GroupID {
	t.Helper()
	return comp.AddGroup(&Group{Name: name, Static: true, Latency: latency})
}

func TestStaticLatencyComposition(t *testing.T) {
	comp := NewComponent("main")
	a := staticGroup(t, comp, "a", 2)
	b := staticGroup(t, comp, "b", 3)

	tree := &StaticSeq{
		Stmts: []Control{
			&StaticEnable{Group: a},
			&StaticRepeat{
				NumRepeats: 4,
				Body:       &StaticEnable{Group: b},
				Latency:    12,
			},
		},
		Latency: 14,
	}
	ValidateStaticTiming(tree, comp)

	got, ok := StaticLatency(tree, comp)
	if !ok || got != 14 {
		t.Errorf("StaticLatency = %d, %v, want 14, true", got, ok)
	}
	if _, ok := StaticLatency(&Seq{}, comp); ok {
		t.Errorf("dynamic seq reported a static latency")
	}
}

func TestValidateStaticTimingPanicsOnMismatch(t *testing.T) {
	comp := NewComponent("main")
	a := staticGroup(t, comp, "a", 2)
	tree := &StaticSeq{
		Stmts:   []Control{&StaticEnable{Group: a}},
		Latency: 5,
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for declared latency 5 with children summing to 2")
		}
	}()
	ValidateStaticTiming(tree, comp)
}

func TestValidateStaticTimingParTakesMax(t *testing.T) {
	comp := NewComponent("main")
	a := staticGroup(t, comp, "a", 2)
	b := staticGroup(t, comp, "b", 7)
	tree := &StaticPar{
		Stmts:   []Control{&StaticEnable{Group: a}, &StaticEnable{Group: b}},
		Latency: 7,
	}
	ValidateStaticTiming(tree, comp)
}

func TestAssignNodeIDsPreOrder(t *testing.T) {
	comp := NewComponent("main")
	g := comp.AddGroup(&Group{Name: "g"})
	inner := &Enable{Group: g}
	tree := &Seq{Stmts: []Control{&Par{Stmts: []Control{inner}}, &Empty{}}}

	count := AssignNodeIDs(tree)
	if count != 4 {
		t.Fatalf("AssignNodeIDs counted %d nodes, want 4", count)
	}
	if id, ok := NodeID(tree); !ok || id != 0 {
		t.Errorf("root id = %d, %v, want 0, true", id, ok)
	}
	if id, ok := NodeID(inner); !ok || id != 2 {
		t.Errorf("inner enable id = %d, %v, want 2, true", id, ok)
	}
}

func TestNodeAttributesAllocatesLazily(t *testing.T) {
	n := &Enable{}
	if n.Attributes != nil {
		t.Fatalf("fresh node carries attributes")
	}
	NodeAttributes(n).Set(AttrStatic, 3)
	if got := n.Attributes.Get(AttrStatic); got != 3 {
		t.Errorf("attribute round trip = %d, want 3", got)
	}
}
