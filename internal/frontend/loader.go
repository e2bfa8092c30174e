// Package frontend loads component descriptions from YAML. It exists for
// the CLI and for test fixtures; the canonical producer of IR is an
// upstream frontend whose output this format mirrors.
package frontend

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"fsmgen/internal/ir"
)

type contextDoc struct {
	Components []componentDoc `yaml:"components"`
}

type componentDoc struct {
	Name       string          `yaml:"name"`
	Signature  []portDoc       `yaml:"signature"`
	Cells      []cellDoc       `yaml:"cells"`
	Groups     []groupDoc      `yaml:"groups"`
	Continuous []assignmentDoc `yaml:"continuous"`
	Control    *controlDoc     `yaml:"control"`
}

type portDoc struct {
	Name       string           `yaml:"name"`
	Width      int              `yaml:"width"`
	Direction  string           `yaml:"direction"`
	Attributes map[string]int64 `yaml:"attributes"`
}

type cellDoc struct {
	Name       string           `yaml:"name"`
	Primitive  string           `yaml:"primitive"`
	Params     []uint64         `yaml:"params"`
	Constant   *constantDoc     `yaml:"constant"`
	Attributes map[string]int64 `yaml:"attributes"`
}

type constantDoc struct {
	Value uint64 `yaml:"value"`
	Width int    `yaml:"width"`
}

type groupDoc struct {
	Name        string           `yaml:"name"`
	Static      bool             `yaml:"static"`
	Latency     uint64           `yaml:"latency"`
	Attributes  map[string]int64 `yaml:"attributes"`
	Assignments []assignmentDoc  `yaml:"assignments"`
}

type assignmentDoc struct {
	Dst      string    `yaml:"dst"`
	Src      string    `yaml:"src"`
	Guard    *guardDoc `yaml:"guard"`
	Interval []uint64  `yaml:"interval"`
}

type guardDoc struct {
	Port string     `yaml:"port"`
	Not  *guardDoc  `yaml:"not"`
	And  []guardDoc `yaml:"and"`
	Or   []guardDoc `yaml:"or"`
	Eq   []string   `yaml:"eq"`
	Ge   []string   `yaml:"ge"`
	Lt   []string   `yaml:"lt"`
}

type controlDoc struct {
	Seq           []controlDoc     `yaml:"seq"`
	Par           []controlDoc     `yaml:"par"`
	If            *ifDoc           `yaml:"if"`
	While         *whileDoc        `yaml:"while"`
	Repeat        *repeatDoc       `yaml:"repeat"`
	Enable        string           `yaml:"enable"`
	StaticSeq     *staticBlockDoc  `yaml:"static_seq"`
	StaticPar     *staticBlockDoc  `yaml:"static_par"`
	StaticIf      *staticIfDoc     `yaml:"static_if"`
	StaticRepeat  *staticRepeatDoc `yaml:"static_repeat"`
	StaticEnable  string           `yaml:"static_enable"`
	Empty         bool             `yaml:"empty"`
	Attributes    map[string]int64 `yaml:"attributes"`
}

type ifDoc struct {
	Cond      string      `yaml:"cond"`
	CondGroup string      `yaml:"cond_group"`
	Then      *controlDoc `yaml:"then"`
	Else      *controlDoc `yaml:"else"`
}

type whileDoc struct {
	Cond      string      `yaml:"cond"`
	CondGroup string      `yaml:"cond_group"`
	Body      *controlDoc `yaml:"body"`
}

type repeatDoc struct {
	Count uint64      `yaml:"count"`
	Body  *controlDoc `yaml:"body"`
}

type staticBlockDoc struct {
	Latency uint64       `yaml:"latency"`
	Stmts   []controlDoc `yaml:"stmts"`
}

type staticIfDoc struct {
	Cond    string      `yaml:"cond"`
	Latency uint64      `yaml:"latency"`
	Then    *controlDoc `yaml:"then"`
	Else    *controlDoc `yaml:"else"`
}

type staticRepeatDoc struct {
	Count   uint64      `yaml:"count"`
	Latency uint64      `yaml:"latency"`
	Body    *controlDoc `yaml:"body"`
}

// Load parses a YAML context description into IR.
func Load(r io.Reader) (*ir.Context, error) {
	var doc contextDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("frontend: decode context: %w", err)
	}
	ctx := &ir.Context{}
	for _, cd := range doc.Components {
		comp, err := loadComponent(&cd)
		if err != nil {
			return nil, err
		}
		ctx.Components = append(ctx.Components, comp)
	}
	return ctx, nil
}

func loadComponent(doc *componentDoc) (*ir.Component, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("frontend: component without a name")
	}
	l := &loader{comp: ir.NewComponent(doc.Name), name: doc.Name}
	for _, pd := range doc.Signature {
		dir, err := parseDirection(pd.Direction)
		if err != nil {
			return nil, fmt.Errorf("frontend: %s: port %s: %w", doc.Name, pd.Name, err)
		}
		l.comp.AddSignaturePort(pd.Name, pd.Width, dir, ir.Attributes(pd.Attributes).Clone())
	}
	for i := range doc.Cells {
		if err := l.addCell(&doc.Cells[i]); err != nil {
			return nil, err
		}
	}
	for i := range doc.Groups {
		if err := l.addGroup(&doc.Groups[i]); err != nil {
			return nil, err
		}
	}
	for i := range doc.Continuous {
		asgn, err := l.assignment(&doc.Continuous[i])
		if err != nil {
			return nil, err
		}
		l.comp.Continuous = append(l.comp.Continuous, asgn)
	}
	if doc.Control != nil {
		control, err := l.control(doc.Control)
		if err != nil {
			return nil, err
		}
		l.comp.Control = control
	} else {
		l.comp.Control = &ir.Empty{}
	}
	return l.comp, nil
}

type loader struct {
	comp *ir.Component
	name string
}

func (l *loader) errf(format string, args ...interface{}) error {
	return fmt.Errorf("frontend: %s: %s", l.name, fmt.Sprintf(format, args...))
}

func (l *loader) addCell(doc *cellDoc) error {
	if doc.Name == "" {
		return l.errf("cell without a name")
	}
	b := ir.NewBuilder(l.comp)
	switch {
	case doc.Constant != nil:
		cell := &ir.Cell{
			Name:       doc.Name,
			Proto:      ir.Constant{Value: doc.Constant.Value, Width: doc.Constant.Width},
			Attributes: ir.Attributes(doc.Attributes).Clone(),
		}
		id := l.comp.AddCell(cell)
		pid := l.comp.AddPort(&ir.Port{
			Name:       "out",
			Width:      doc.Constant.Width,
			Direction:  ir.Output,
			ParentKind: ir.ParentCell,
			ParentCell: id,
			Attributes: ir.Attributes{ir.AttrStable: 1},
		})
		cell.Ports = append(cell.Ports, pid)
		return nil
	case doc.Primitive != "":
		id := b.AddPrimitive(doc.Name, doc.Primitive, doc.Params)
		cell := l.comp.Cell(id)
		cell.Name = doc.Name
		cell.Attributes = ir.Attributes(doc.Attributes).Clone()
		return nil
	default:
		return l.errf("cell %s is neither a primitive nor a constant", doc.Name)
	}
}

func (l *loader) addGroup(doc *groupDoc) error {
	if doc.Name == "" {
		return l.errf("group without a name")
	}
	gid := l.comp.AddGroup(&ir.Group{
		Name:       doc.Name,
		Static:     doc.Static,
		Latency:    doc.Latency,
		Attributes: ir.Attributes(doc.Attributes).Clone(),
	})
	grp := l.comp.Group(gid)
	for i := range doc.Assignments {
		asgn, err := l.assignment(&doc.Assignments[i])
		if err != nil {
			return fmt.Errorf("%w (group %s)", err, doc.Name)
		}
		grp.Assignments = append(grp.Assignments, asgn)
	}
	return nil
}

func (l *loader) assignment(doc *assignmentDoc) (ir.Assignment, error) {
	dst, err := l.port(doc.Dst)
	if err != nil {
		return ir.Assignment{}, err
	}
	src, err := l.port(doc.Src)
	if err != nil {
		return ir.Assignment{}, err
	}
	guard, err := l.guard(doc.Guard)
	if err != nil {
		return ir.Assignment{}, err
	}
	asgn := ir.Assignment{Dst: dst, Src: src, Guard: guard}
	switch len(doc.Interval) {
	case 0:
	case 2:
		asgn.Interval = &ir.Interval{Start: doc.Interval[0], End: doc.Interval[1]}
	default:
		return ir.Assignment{}, l.errf("interval wants [start, end], got %d values", len(doc.Interval))
	}
	return asgn, nil
}

func (l *loader) guard(doc *guardDoc) (ir.Guard, error) {
	if doc == nil {
		return ir.True(), nil
	}
	switch {
	case doc.Port != "":
		p, err := l.port(doc.Port)
		if err != nil {
			return nil, err
		}
		return ir.ReadPort(p), nil
	case doc.Not != nil:
		inner, err := l.guard(doc.Not)
		if err != nil {
			return nil, err
		}
		return ir.Not(inner), nil
	case len(doc.And) > 0:
		return l.fold(doc.And, ir.And)
	case len(doc.Or) > 0:
		return l.fold(doc.Or, ir.Or)
	case len(doc.Eq) == 2:
		return l.compare(doc.Eq, ir.Eq)
	case len(doc.Ge) == 2:
		return l.compare(doc.Ge, ir.Ge)
	case len(doc.Lt) == 2:
		return l.compare(doc.Lt, ir.Lt)
	default:
		return nil, l.errf("guard with no recognized form")
	}
}

func (l *loader) fold(docs []guardDoc, op func(ir.Guard, ir.Guard) ir.Guard) (ir.Guard, error) {
	out := ir.True()
	for i := range docs {
		g, err := l.guard(&docs[i])
		if err != nil {
			return nil, err
		}
		out = op(out, g)
	}
	return out, nil
}

func (l *loader) compare(refs []string, op func(ir.PortID, ir.PortID) ir.Guard) (ir.Guard, error) {
	left, err := l.port(refs[0])
	if err != nil {
		return nil, err
	}
	right, err := l.port(refs[1])
	if err != nil {
		return nil, err
	}
	return op(left, right), nil
}

// port resolves "cell.port" references and bare signature port names.
func (l *loader) port(ref string) (ir.PortID, error) {
	if ref == "" {
		return ir.InvalidPort, l.errf("empty port reference")
	}
	cellName, portName, qualified := strings.Cut(ref, ".")
	if !qualified {
		for _, pid := range l.comp.Signature {
			if l.comp.Port(pid).Name == ref {
				return pid, nil
			}
		}
		return ir.InvalidPort, l.errf("unknown signature port %q", ref)
	}
	cid, ok := l.comp.FindCell(cellName)
	if !ok {
		// Group holes read as <group>.go and <group>.done.
		if gid, isGroup := l.comp.FindGroup(cellName); isGroup {
			grp := l.comp.Group(gid)
			switch portName {
			case "go":
				return grp.Go, nil
			case "done":
				if grp.Done == ir.InvalidPort {
					return ir.InvalidPort, l.errf("group %s is static and has no done", cellName)
				}
				return grp.Done, nil
			}
		}
		return ir.InvalidPort, l.errf("unknown cell %q in %q", cellName, ref)
	}
	for _, pid := range l.comp.Cell(cid).Ports {
		if l.comp.Port(pid).Name == portName {
			return pid, nil
		}
	}
	return ir.InvalidPort, l.errf("cell %q has no port %q", cellName, portName)
}

func (l *loader) control(doc *controlDoc) (ir.Control, error) {
	node, err := l.controlNode(doc)
	if err != nil {
		return nil, err
	}
	if len(doc.Attributes) > 0 {
		attrs := ir.NodeAttributes(node)
		for k, v := range doc.Attributes {
			attrs.Set(k, v)
		}
	}
	return node, nil
}

func (l *loader) controlNode(doc *controlDoc) (ir.Control, error) {
	switch {
	case doc.Seq != nil:
		stmts, err := l.controlList(doc.Seq)
		if err != nil {
			return nil, err
		}
		return &ir.Seq{Stmts: stmts}, nil
	case doc.Par != nil:
		stmts, err := l.controlList(doc.Par)
		if err != nil {
			return nil, err
		}
		return &ir.Par{Stmts: stmts}, nil
	case doc.If != nil:
		return l.ifNode(doc.If)
	case doc.While != nil:
		return l.whileNode(doc.While)
	case doc.Repeat != nil:
		body, err := l.control(doc.Repeat.Body)
		if err != nil {
			return nil, err
		}
		return &ir.Repeat{NumRepeats: doc.Repeat.Count, Body: body}, nil
	case doc.Enable != "":
		gid, ok := l.comp.FindGroup(doc.Enable)
		if !ok {
			return nil, l.errf("enable of unknown group %q", doc.Enable)
		}
		return &ir.Enable{Group: gid}, nil
	case doc.StaticSeq != nil:
		stmts, err := l.controlList(doc.StaticSeq.Stmts)
		if err != nil {
			return nil, err
		}
		return &ir.StaticSeq{Stmts: stmts, Latency: doc.StaticSeq.Latency}, nil
	case doc.StaticPar != nil:
		stmts, err := l.controlList(doc.StaticPar.Stmts)
		if err != nil {
			return nil, err
		}
		return &ir.StaticPar{Stmts: stmts, Latency: doc.StaticPar.Latency}, nil
	case doc.StaticIf != nil:
		return l.staticIfNode(doc.StaticIf)
	case doc.StaticRepeat != nil:
		body, err := l.control(doc.StaticRepeat.Body)
		if err != nil {
			return nil, err
		}
		return &ir.StaticRepeat{
			NumRepeats: doc.StaticRepeat.Count,
			Body:       body,
			Latency:    doc.StaticRepeat.Latency,
		}, nil
	case doc.StaticEnable != "":
		gid, ok := l.comp.FindGroup(doc.StaticEnable)
		if !ok {
			return nil, l.errf("static enable of unknown group %q", doc.StaticEnable)
		}
		if !l.comp.Group(gid).Static {
			return nil, l.errf("static enable of dynamic group %q", doc.StaticEnable)
		}
		return &ir.StaticEnable{Group: gid}, nil
	case doc.Empty:
		return &ir.Empty{}, nil
	default:
		return nil, l.errf("control node with no recognized form")
	}
}

func (l *loader) controlList(docs []controlDoc) ([]ir.Control, error) {
	stmts := make([]ir.Control, 0, len(docs))
	for i := range docs {
		c, err := l.control(&docs[i])
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, c)
	}
	return stmts, nil
}

func (l *loader) ifNode(doc *ifDoc) (ir.Control, error) {
	cond, err := l.port(doc.Cond)
	if err != nil {
		return nil, err
	}
	node := &ir.If{CondPort: cond, CondGroup: ir.InvalidGroup}
	if doc.CondGroup != "" {
		gid, ok := l.comp.FindGroup(doc.CondGroup)
		if !ok {
			return nil, l.errf("if with unknown cond group %q", doc.CondGroup)
		}
		node.CondGroup = gid
	}
	if node.True, err = l.branch(doc.Then); err != nil {
		return nil, err
	}
	if node.False, err = l.branch(doc.Else); err != nil {
		return nil, err
	}
	return node, nil
}

func (l *loader) whileNode(doc *whileDoc) (ir.Control, error) {
	cond, err := l.port(doc.Cond)
	if err != nil {
		return nil, err
	}
	node := &ir.While{CondPort: cond, CondGroup: ir.InvalidGroup}
	if doc.CondGroup != "" {
		gid, ok := l.comp.FindGroup(doc.CondGroup)
		if !ok {
			return nil, l.errf("while with unknown cond group %q", doc.CondGroup)
		}
		node.CondGroup = gid
	}
	if node.Body, err = l.branch(doc.Body); err != nil {
		return nil, err
	}
	return node, nil
}

func (l *loader) staticIfNode(doc *staticIfDoc) (ir.Control, error) {
	cond, err := l.port(doc.Cond)
	if err != nil {
		return nil, err
	}
	node := &ir.StaticIf{CondPort: cond, Latency: doc.Latency}
	if node.True, err = l.branch(doc.Then); err != nil {
		return nil, err
	}
	if node.False, err = l.branch(doc.Else); err != nil {
		return nil, err
	}
	return node, nil
}

func (l *loader) branch(doc *controlDoc) (ir.Control, error) {
	if doc == nil {
		return &ir.Empty{}, nil
	}
	return l.control(doc)
}

func parseDirection(s string) (ir.PortDirection, error) {
	switch s {
	case "input", "in":
		return ir.Input, nil
	case "output", "out":
		return ir.Output, nil
	default:
		return ir.Input, fmt.Errorf("unknown direction %q", s)
	}
}
