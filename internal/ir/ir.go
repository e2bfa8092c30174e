package ir

import "fmt"

// CellID indexes a cell within its owning component.
type CellID int

// PortID indexes a port within its owning component.
type PortID int

// GroupID indexes a group within its owning component.
type GroupID int

// Invalid handles mark absent references (e.g. the optional condition group
// of an If node, or the done hole of a static group).
const (
	InvalidCell  CellID  = -1
	InvalidPort  PortID  = -1
	InvalidGroup GroupID = -1
)

// PortDirection enumerates supported port directions.
type PortDirection int

const (
	Input PortDirection = iota
	Output
)

// PortParentKind tags who owns a port. Ports reference their parent by
// index plus this tag, never by an upward pointer, so the cell/port graph
// has no ownership cycles.
type PortParentKind int

const (
	ParentCell PortParentKind = iota
	ParentGroup
	ParentThis
)

// Port belongs to exactly one parent: a cell, a group (hole), or the
// component signature.
type Port struct {
	Name        string
	Width       int
	Direction   PortDirection
	ParentKind  PortParentKind
	ParentCell  CellID
	ParentGroup GroupID
	Attributes  Attributes
}

// CellProto is the prototype of a cell: a primitive instance with parameter
// bindings, a sub-component instance, or a constant.
type CellProto interface {
	isCellProto()
}

// Primitive instantiates a named primitive with parameter bindings.
type Primitive struct {
	Name   string
	Params []uint64
}

func (Primitive) isCellProto() {}

// Instance instantiates a sub-component by name.
type Instance struct {
	Component string
}

func (Instance) isCellProto() {}

// Constant is a literal value of a fixed width.
type Constant struct {
	Value uint64
	Width int
}

func (Constant) isCellProto() {}

// Cell is a hardware unit owned by a component.
type Cell struct {
	Name       string
	Proto      CellProto
	Attributes Attributes
	Ports      []PortID
}

// Interval is a half-open [Start,End) validity window in clock cycles,
// relative to the owning group's start.
type Interval struct {
	Start uint64
	End   uint64
}

// Assignment is a guarded transfer dst = guard ? src. Interval is non-nil
// only inside static groups.
type Assignment struct {
	Dst      PortID
	Src      PortID
	Guard    Guard
	Interval *Interval
}

// Group is a named set of guarded assignments plus go/done holes. Static
// groups carry an exact latency and have no done hole; completion is
// implied by the latency.
type Group struct {
	Name        string
	Static      bool
	Latency     uint64
	Go          PortID
	Done        PortID
	Assignments []Assignment
	Attributes  Attributes
}

// Component owns cells, ports and groups in index-addressed arenas and one
// control tree root.
type Component struct {
	Name       string
	Attributes Attributes
	Signature  []PortID
	Continuous []Assignment
	Control    Control

	cells  []*Cell
	ports  []*Port
	groups []*Group
}

// Context holds every component of one compilation, in a deterministic
// iteration order.
type Context struct {
	Components []*Component
}

// NewComponent creates an empty component.
func NewComponent(name string) *Component {
	return &Component{
		Name:       name,
		Attributes: make(Attributes),
		Control:    &Empty{},
	}
}

// Cell resolves a cell handle. Panics on an invalid handle; handles are
// compiler-internal and never come from user input.
func (c *Component) Cell(id CellID) *Cell {
	if id < 0 || int(id) >= len(c.cells) {
		panic(fmt.Sprintf("ir: invalid cell handle %d in component %s", id, c.Name))
	}
	return c.cells[id]
}

// Port resolves a port handle.
func (c *Component) Port(id PortID) *Port {
	if id < 0 || int(id) >= len(c.ports) {
		panic(fmt.Sprintf("ir: invalid port handle %d in component %s", id, c.Name))
	}
	return c.ports[id]
}

// Group resolves a group handle.
func (c *Component) Group(id GroupID) *Group {
	if id < 0 || int(id) >= len(c.groups) {
		panic(fmt.Sprintf("ir: invalid group handle %d in component %s", id, c.Name))
	}
	return c.groups[id]
}

// NumCells returns the number of cells in the component.
func (c *Component) NumCells() int { return len(c.cells) }

// NumPorts returns the number of ports in the component.
func (c *Component) NumPorts() int { return len(c.ports) }

// NumGroups returns the number of groups in the component.
func (c *Component) NumGroups() int { return len(c.groups) }

// AddCell appends a cell to the arena and returns its handle.
func (c *Component) AddCell(cell *Cell) CellID {
	if cell.Attributes == nil {
		cell.Attributes = make(Attributes)
	}
	c.cells = append(c.cells, cell)
	return CellID(len(c.cells) - 1)
}

// AddPort appends a port to the arena and returns its handle.
func (c *Component) AddPort(port *Port) PortID {
	if port.Attributes == nil {
		port.Attributes = make(Attributes)
	}
	c.ports = append(c.ports, port)
	return PortID(len(c.ports) - 1)
}

// AddGroup appends a group to the arena, allocating its holes, and returns
// its handle. Group names must be unique within the component.
func (c *Component) AddGroup(group *Group) GroupID {
	if _, ok := c.FindGroup(group.Name); ok {
		panic(fmt.Sprintf("ir: duplicate group name %q in component %s", group.Name, c.Name))
	}
	if group.Attributes == nil {
		group.Attributes = make(Attributes)
	}
	c.groups = append(c.groups, group)
	id := GroupID(len(c.groups) - 1)
	group.Go = c.AddPort(&Port{
		Name:        "go",
		Width:       1,
		Direction:   Input,
		ParentKind:  ParentGroup,
		ParentGroup: id,
		ParentCell:  InvalidCell,
	})
	if group.Static {
		group.Done = InvalidPort
	} else {
		group.Done = c.AddPort(&Port{
			Name:        "done",
			Width:       1,
			Direction:   Output,
			ParentKind:  ParentGroup,
			ParentGroup: id,
			ParentCell:  InvalidCell,
		})
	}
	return id
}

// AddSignaturePort adds a port to the component's own signature.
func (c *Component) AddSignaturePort(name string, width int, dir PortDirection, attrs Attributes) PortID {
	if attrs == nil {
		attrs = make(Attributes)
	}
	id := c.AddPort(&Port{
		Name:       name,
		Width:      width,
		Direction:  dir,
		ParentKind: ParentThis,
		ParentCell: InvalidCell,
		Attributes: attrs,
	})
	c.Signature = append(c.Signature, id)
	return id
}

// FindCell looks a cell up by name.
func (c *Component) FindCell(name string) (CellID, bool) {
	for i, cell := range c.cells {
		if cell.Name == name {
			return CellID(i), true
		}
	}
	return InvalidCell, false
}

// FindGroup looks a group up by name.
func (c *Component) FindGroup(name string) (GroupID, bool) {
	for i, g := range c.groups {
		if g.Name == name {
			return GroupID(i), true
		}
	}
	return InvalidGroup, false
}

// CellPort resolves a named port on a cell. A missing port is an internal
// invariant violation: primitives have fixed signatures.
func (c *Component) CellPort(cell CellID, name string) PortID {
	for _, pid := range c.Cell(cell).Ports {
		if c.Port(pid).Name == name {
			return pid
		}
	}
	panic(fmt.Sprintf("ir: cell %s has no port %q", c.Cell(cell).Name, name))
}

// PortParentCell returns the owning cell of a port when it has one.
func (c *Component) PortParentCell(id PortID) (CellID, bool) {
	p := c.Port(id)
	if p.ParentKind != ParentCell {
		return InvalidCell, false
	}
	return p.ParentCell, true
}

// QualifiedPortName renders a port as parent.port for diagnostics and dumps.
func (c *Component) QualifiedPortName(id PortID) string {
	p := c.Port(id)
	switch p.ParentKind {
	case ParentCell:
		return c.Cell(p.ParentCell).Name + "." + p.Name
	case ParentGroup:
		return c.Group(p.ParentGroup).Name + "[" + p.Name + "]"
	default:
		return "this." + p.Name
	}
}

// IsConstantPort reports whether the port is the output of a constant cell,
// together with the constant's value.
func (c *Component) IsConstantPort(id PortID) (uint64, bool) {
	cellID, ok := c.PortParentCell(id)
	if !ok {
		return 0, false
	}
	if konst, ok := c.Cell(cellID).Proto.(Constant); ok {
		return konst.Value, true
	}
	return 0, false
}
