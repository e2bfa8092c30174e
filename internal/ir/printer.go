package ir

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Dump writes a simple human-readable representation of the component.
func Dump(comp *Component, w io.Writer) {
	if comp == nil {
		fmt.Fprintln(w, "<nil component>")
		return
	}
	fmt.Fprintf(w, "component %s\n", comp.Name)
	dumpSignature(comp, w)
	dumpCells(comp, w)
	dumpGroups(comp, w)
	dumpContinuous(comp, w)
	fmt.Fprintln(w, "  control:")
	dumpControl(comp, comp.Control, w, 2)
}

func dumpSignature(comp *Component, w io.Writer) {
	if len(comp.Signature) == 0 {
		return
	}
	fmt.Fprintln(w, "  ports:")
	for _, pid := range comp.Signature {
		p := comp.Port(pid)
		fmt.Fprintf(w, "    %s %s %db%s\n", portDirection(p.Direction), p.Name, p.Width, attrSuffix(p.Attributes))
	}
}

func dumpCells(comp *Component, w io.Writer) {
	if comp.NumCells() == 0 {
		return
	}
	fmt.Fprintln(w, "  cells:")
	for i := 0; i < comp.NumCells(); i++ {
		cell := comp.Cell(CellID(i))
		fmt.Fprintf(w, "    %-12s %s\n", cell.Name, protoString(cell.Proto))
	}
}

func dumpGroups(comp *Component, w io.Writer) {
	for i := 0; i < comp.NumGroups(); i++ {
		g := comp.Group(GroupID(i))
		if g.Static {
			fmt.Fprintf(w, "  static group %s<%d>:\n", g.Name, g.Latency)
		} else {
			fmt.Fprintf(w, "  group %s:\n", g.Name)
		}
		for _, asgn := range g.Assignments {
			fmt.Fprintf(w, "    %s\n", AssignmentString(comp, asgn))
		}
	}
}

func dumpContinuous(comp *Component, w io.Writer) {
	if len(comp.Continuous) == 0 {
		return
	}
	fmt.Fprintln(w, "  continuous:")
	for _, asgn := range comp.Continuous {
		fmt.Fprintf(w, "    %s\n", AssignmentString(comp, asgn))
	}
}

// AssignmentString renders dst = guard ? src with the optional interval.
func AssignmentString(comp *Component, a Assignment) string {
	var b strings.Builder
	b.WriteString(comp.QualifiedPortName(a.Dst))
	b.WriteString(" = ")
	if a.Interval != nil {
		fmt.Fprintf(&b, "%%[%d,%d) ", a.Interval.Start, a.Interval.End)
	}
	if _, ok := a.Guard.(TrueGuard); !ok {
		b.WriteString(GuardString(comp, a.Guard))
		b.WriteString(" ? ")
	}
	b.WriteString(comp.QualifiedPortName(a.Src))
	return b.String()
}

// GuardString renders a guard tree.
func GuardString(comp *Component, g Guard) string {
	switch gd := g.(type) {
	case TrueGuard:
		return "1"
	case PortGuard:
		return comp.QualifiedPortName(gd.Port)
	case NotGuard:
		return "!" + GuardString(comp, gd.Inner)
	case AndGuard:
		return "(" + GuardString(comp, gd.Left) + " & " + GuardString(comp, gd.Right) + ")"
	case OrGuard:
		return "(" + GuardString(comp, gd.Left) + " | " + GuardString(comp, gd.Right) + ")"
	case EqGuard:
		return "(" + comp.QualifiedPortName(gd.Left) + " == " + comp.QualifiedPortName(gd.Right) + ")"
	case GeGuard:
		return "(" + comp.QualifiedPortName(gd.Left) + " >= " + comp.QualifiedPortName(gd.Right) + ")"
	case LtGuard:
		return "(" + comp.QualifiedPortName(gd.Left) + " < " + comp.QualifiedPortName(gd.Right) + ")"
	default:
		return "?"
	}
}

func dumpControl(comp *Component, c Control, w io.Writer, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n := c.(type) {
	case *Seq:
		fmt.Fprintf(w, "%sseq {\n", indent)
		for _, s := range n.Stmts {
			dumpControl(comp, s, w, depth+1)
		}
		fmt.Fprintf(w, "%s}\n", indent)
	case *Par:
		fmt.Fprintf(w, "%spar {\n", indent)
		for _, s := range n.Stmts {
			dumpControl(comp, s, w, depth+1)
		}
		fmt.Fprintf(w, "%s}\n", indent)
	case *If:
		fmt.Fprintf(w, "%sif %s {\n", indent, comp.QualifiedPortName(n.CondPort))
		dumpControl(comp, n.True, w, depth+1)
		fmt.Fprintf(w, "%s} else {\n", indent)
		dumpControl(comp, n.False, w, depth+1)
		fmt.Fprintf(w, "%s}\n", indent)
	case *While:
		fmt.Fprintf(w, "%swhile %s {\n", indent, comp.QualifiedPortName(n.CondPort))
		dumpControl(comp, n.Body, w, depth+1)
		fmt.Fprintf(w, "%s}\n", indent)
	case *Repeat:
		fmt.Fprintf(w, "%srepeat %d {\n", indent, n.NumRepeats)
		dumpControl(comp, n.Body, w, depth+1)
		fmt.Fprintf(w, "%s}\n", indent)
	case *Enable:
		fmt.Fprintf(w, "%s%s\n", indent, comp.Group(n.Group).Name)
	case *Invoke:
		fmt.Fprintf(w, "%sinvoke %s\n", indent, comp.Cell(n.Cell).Name)
	case *Empty:
		fmt.Fprintf(w, "%sempty\n", indent)
	case *StaticSeq:
		fmt.Fprintf(w, "%sstatic<%d> seq {\n", indent, n.Latency)
		for _, s := range n.Stmts {
			dumpControl(comp, s, w, depth+1)
		}
		fmt.Fprintf(w, "%s}\n", indent)
	case *StaticPar:
		fmt.Fprintf(w, "%sstatic<%d> par {\n", indent, n.Latency)
		for _, s := range n.Stmts {
			dumpControl(comp, s, w, depth+1)
		}
		fmt.Fprintf(w, "%s}\n", indent)
	case *StaticIf:
		fmt.Fprintf(w, "%sstatic<%d> if %s {\n", indent, n.Latency, comp.QualifiedPortName(n.CondPort))
		dumpControl(comp, n.True, w, depth+1)
		fmt.Fprintf(w, "%s} else {\n", indent)
		dumpControl(comp, n.False, w, depth+1)
		fmt.Fprintf(w, "%s}\n", indent)
	case *StaticRepeat:
		fmt.Fprintf(w, "%sstatic<%d> repeat %d {\n", indent, n.Latency, n.NumRepeats)
		dumpControl(comp, n.Body, w, depth+1)
		fmt.Fprintf(w, "%s}\n", indent)
	case *StaticEnable:
		fmt.Fprintf(w, "%s%s\n", indent, comp.Group(n.Group).Name)
	default:
		fmt.Fprintf(w, "%s<unknown node %T>\n", indent, c)
	}
}

func protoString(p CellProto) string {
	switch proto := p.(type) {
	case Primitive:
		params := make([]string, 0, len(proto.Params))
		for _, v := range proto.Params {
			params = append(params, fmt.Sprintf("%d", v))
		}
		return fmt.Sprintf("%s(%s)", proto.Name, strings.Join(params, ", "))
	case Instance:
		return "instance " + proto.Component
	case Constant:
		return fmt.Sprintf("const %d:%db", proto.Value, proto.Width)
	default:
		return "?"
	}
}

func portDirection(dir PortDirection) string {
	if dir == Output {
		return "out"
	}
	return "in "
}

func attrSuffix(attrs Attributes) string {
	if len(attrs) == 0 {
		return ""
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, " @%s(%d)", name, attrs[name])
	}
	return b.String()
}
