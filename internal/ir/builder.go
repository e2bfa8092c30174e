package ir

import "fmt"

// Builder allocates fresh cells, groups and constants inside one component,
// generating globally unique names. Exactly one builder owns a component
// for the duration of a pass invocation.
type Builder struct {
	comp      *Component
	tempID    int
	constants map[constKey]CellID
}

type constKey struct {
	value uint64
	width int
}

// NewBuilder wraps a component for synthesis.
func NewBuilder(comp *Component) *Builder {
	return &Builder{
		comp:      comp,
		constants: make(map[constKey]CellID),
	}
}

// Component returns the component under construction.
func (b *Builder) Component() *Component { return b.comp }

// UniqueName derives a fresh name from prefix that collides with no
// existing cell or group.
func (b *Builder) UniqueName(prefix string) string {
	for {
		name := fmt.Sprintf("%s%d", prefix, b.tempID)
		b.tempID++
		if _, ok := b.comp.FindCell(name); ok {
			continue
		}
		if _, ok := b.comp.FindGroup(name); ok {
			continue
		}
		return name
	}
}

// AddGroup creates a fresh dynamic group named after prefix.
func (b *Builder) AddGroup(prefix string) GroupID {
	return b.comp.AddGroup(&Group{Name: b.UniqueName(prefix)})
}

// AddStaticGroup creates a fresh static group with the given latency.
func (b *Builder) AddStaticGroup(prefix string, latency uint64) GroupID {
	return b.comp.AddGroup(&Group{
		Name:    b.UniqueName(prefix),
		Static:  true,
		Latency: latency,
	})
}

// AddPrimitive instantiates a primitive cell with the given parameter
// bindings, creating its ports from the primitive's fixed signature.
func (b *Builder) AddPrimitive(prefix, prim string, params []uint64) CellID {
	cell := &Cell{
		Name:  b.UniqueName(prefix),
		Proto: Primitive{Name: prim, Params: params},
	}
	id := b.comp.AddCell(cell)
	for _, spec := range primitivePorts(prim, params) {
		attrs := make(Attributes, len(spec.attrs))
		for k, v := range spec.attrs {
			attrs[k] = v
		}
		pid := b.comp.AddPort(&Port{
			Name:       spec.name,
			Width:      spec.width,
			Direction:  spec.dir,
			ParentKind: ParentCell,
			ParentCell: id,
			Attributes: attrs,
		})
		cell.Ports = append(cell.Ports, pid)
	}
	return id
}

// AddConstant returns a constant cell for the value, reusing an existing
// one when the same value and width were requested before.
func (b *Builder) AddConstant(value uint64, width int) CellID {
	key := constKey{value: value, width: width}
	if id, ok := b.constants[key]; ok {
		return id
	}
	cell := &Cell{
		Name:  b.UniqueName(fmt.Sprintf("const_%d_", value)),
		Proto: Constant{Value: value, Width: width},
	}
	id := b.comp.AddCell(cell)
	pid := b.comp.AddPort(&Port{
		Name:       "out",
		Width:      width,
		Direction:  Output,
		ParentKind: ParentCell,
		ParentCell: id,
		Attributes: Attributes{AttrStable: 1},
	})
	cell.Ports = append(cell.Ports, pid)
	b.constants[key] = id
	return id
}

// ConstantPort is shorthand for the out port of AddConstant.
func (b *Builder) ConstantPort(value uint64, width int) PortID {
	return b.comp.CellPort(b.AddConstant(value, width), "out")
}

// Assign builds one guarded assignment.
func (b *Builder) Assign(dst, src PortID, guard Guard) Assignment {
	if guard == nil {
		guard = True()
	}
	return Assignment{Dst: dst, Src: src, Guard: guard}
}

type portSpec struct {
	name  string
	width int
	dir   PortDirection
	attrs map[string]int64
}

// primitivePorts is the fixed signature table for supported primitives.
// Registers carry the go/done/static attribute triad (shared key 1) that
// the latency analysis keys on. An unknown primitive is an internal error.
func primitivePorts(prim string, params []uint64) []portSpec {
	width := 1
	if len(params) > 0 {
		width = int(params[0])
	}
	switch prim {
	case "std_reg":
		return []portSpec{
			{name: "in", width: width, dir: Input},
			{name: "write_en", width: 1, dir: Input, attrs: map[string]int64{AttrGo: 1, AttrStatic: 1}},
			{name: "out", width: width, dir: Output, attrs: map[string]int64{AttrStable: 1}},
			{name: "done", width: 1, dir: Output, attrs: map[string]int64{AttrDone: 1}},
		}
	case "std_add", "std_sub", "std_and", "std_or", "std_xor":
		return []portSpec{
			{name: "left", width: width, dir: Input},
			{name: "right", width: width, dir: Input},
			{name: "out", width: width, dir: Output},
		}
	case "std_eq", "std_neq", "std_lt", "std_gt", "std_le", "std_ge":
		return []portSpec{
			{name: "left", width: width, dir: Input},
			{name: "right", width: width, dir: Input},
			{name: "out", width: 1, dir: Output},
		}
	case "std_not":
		return []portSpec{
			{name: "in", width: width, dir: Input},
			{name: "out", width: width, dir: Output},
		}
	case "std_wire":
		return []portSpec{
			{name: "in", width: width, dir: Input},
			{name: "out", width: width, dir: Output, attrs: map[string]int64{AttrStable: 1}},
		}
	default:
		panic(fmt.Sprintf("ir: unknown primitive %q", prim))
	}
}
