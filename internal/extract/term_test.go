package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lit(op string) *Term { return &Term{Op: op} }

func node(op string, children ...*Term) *Term {
	return &Term{Op: op, Children: children}
}

func TestTermString(t *testing.T) {
	term := node("Seq", node("Cons", lit("a"), lit("Nil")))
	if got, want := term.String(), "(Seq (Cons a Nil))"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := lit("x").String(); got != "x" {
		t.Errorf("literal String() = %q, want x", got)
	}
}

func TestTermAttributesDecodesPairs(t *testing.T) {
	term := node("Enable",
		node("Attributes", node("AttributeMap",
			lit(`"promotable"`), lit("4"),
			lit("static"), lit("2"),
		)),
		lit("upd"),
	)
	got := TermAttributes(term)
	want := map[string]int64{"promotable": 4, "static": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestTermAttributesSkipsMalformedPairs(t *testing.T) {
	term := node("Attributes", node("AttributeMap",
		lit("bound"), lit("8"),
		lit("broken"), lit("not-a-number"),
		lit("dangling"),
	))
	got := TermAttributes(term)
	want := map[string]int64{"bound": 8}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestTermAttributesUnrecognizedShapeYieldsEmpty(t *testing.T) {
	if got := TermAttributes(node("Seq", lit("a"))); len(got) != 0 {
		t.Errorf("got %v attributes from a shape without an AttributeMap", got)
	}
	if got := TermAttributes(nil); len(got) != 0 {
		t.Errorf("got %v attributes from nil", got)
	}
}
