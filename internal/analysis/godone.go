// Package analysis provides the static-timing analyses the lowering passes
// consume: go/done handshake discovery, group latency inference, liveness
// intervals inside static par blocks, and FSM state-allocation planning.
package analysis

import (
	"fmt"

	"fsmgen/internal/ir"
)

// GoDone is one discovered handshake: asserting Go starts a unit of work
// that finishes Latency cycles later, signalled on Done.
type GoDone struct {
	Go      ir.PortID
	Done    ir.PortID
	Latency uint64
}

// SignatureInfo lists the go/done pairs of one primitive or component
// signature, in discovery order.
type SignatureInfo struct {
	triples []GoDone
}

// NewSignatureInfo derives the go/done pairs from a port list. Done ports
// are indexed by their shared numeric attribute value; go ports carrying a
// static latency are matched against that index.
func NewSignatureInfo(comp *ir.Component, ports []ir.PortID) *SignatureInfo {
	doneByKey := make(map[int64]ir.PortID)
	for _, pid := range ports {
		if key, ok := comp.Port(pid).Attributes.Lookup(ir.AttrDone); ok {
			doneByKey[key] = pid
		}
	}
	info := &SignatureInfo{}
	for _, pid := range ports {
		p := comp.Port(pid)
		key, ok := p.Attributes.Lookup(ir.AttrGo)
		if !ok {
			continue
		}
		latency, ok := p.Attributes.Lookup(ir.AttrStatic)
		if !ok {
			continue
		}
		done, ok := doneByKey[key]
		if !ok {
			continue
		}
		info.triples = append(info.triples, GoDone{
			Go:      pid,
			Done:    done,
			Latency: uint64(latency),
		})
	}
	return info
}

// Triples returns the discovered go/done pairs.
func (s *SignatureInfo) Triples() []GoDone { return s.triples }

// IsGo reports whether the port is the go side of a discovered pair.
func (s *SignatureInfo) IsGo(p ir.PortID) bool {
	for _, t := range s.triples {
		if t.Go == p {
			return true
		}
	}
	return false
}

// IsDone reports whether the port is the done side of a discovered pair.
func (s *SignatureInfo) IsDone(p ir.PortID) bool {
	for _, t := range s.triples {
		if t.Done == p {
			return true
		}
	}
	return false
}

// Latency returns the latency paired with the given go port.
func (s *SignatureInfo) Latency(goPort ir.PortID) (uint64, bool) {
	for _, t := range s.triples {
		if t.Go == goPort {
			return t.Latency, true
		}
	}
	return 0, false
}

// LatencyTable aggregates signature info for every cell of a component and
// the scalar latency of prototypes whose signature has exactly one go/done
// pair.
type LatencyTable struct {
	comp   *ir.Component
	cells  map[ir.CellID]*SignatureInfo
	protos map[string]uint64
}

// BuildLatencyTable scans every cell of the component once.
func BuildLatencyTable(comp *ir.Component) *LatencyTable {
	t := &LatencyTable{
		comp:   comp,
		cells:  make(map[ir.CellID]*SignatureInfo),
		protos: make(map[string]uint64),
	}
	for i := 0; i < comp.NumCells(); i++ {
		id := ir.CellID(i)
		cell := comp.Cell(id)
		info := NewSignatureInfo(comp, cell.Ports)
		t.cells[id] = info
		if len(info.Triples()) == 1 {
			if name, ok := protoName(cell.Proto); ok {
				t.protos[name] = info.Triples()[0].Latency
			}
		}
	}
	return t
}

// Cell returns the signature info for one cell.
func (t *LatencyTable) Cell(id ir.CellID) *SignatureInfo {
	info, ok := t.cells[id]
	if !ok {
		panic(fmt.Sprintf("analysis: no signature info for cell %d", id))
	}
	return info
}

// ProtoLatency returns the scalar latency of a prototype whose whole
// signature amounts to a single go/done pair.
func (t *LatencyTable) ProtoLatency(name string) (uint64, bool) {
	l, ok := t.protos[name]
	return l, ok
}

// IsGo reports whether the port is a paired go port of its owning cell.
func (t *LatencyTable) IsGo(p ir.PortID) bool {
	cell, ok := t.comp.PortParentCell(p)
	if !ok {
		return false
	}
	return t.Cell(cell).IsGo(p)
}

// IsDone reports whether the port is a paired done port of its owning cell.
func (t *LatencyTable) IsDone(p ir.PortID) bool {
	cell, ok := t.comp.PortParentCell(p)
	if !ok {
		return false
	}
	return t.Cell(cell).IsDone(p)
}

func protoName(proto ir.CellProto) (string, bool) {
	switch p := proto.(type) {
	case ir.Primitive:
		return p.Name, true
	case ir.Instance:
		return p.Component, true
	default:
		return "", false
	}
}
