package analysis

import "fsmgen/internal/ir"

// FSMStateCutoff bounds how many FSM states a single schedule may allocate
// before the planner switches to counter-based (out of lockstep) encodings.
const FSMStateCutoff = 300

// RepeatStrategy selects how a static repeat is realized.
type RepeatStrategy int

const (
	// StrategyNone marks nodes that are not static repeats.
	StrategyNone RepeatStrategy = iota
	// StrategyUnroll replays the body once per iteration inside one FSM.
	StrategyUnroll
	// StrategyInline builds the body FSM once and re-enters it per
	// iteration.
	StrategyInline
	// StrategyOffload pushes the repeat into its own one-state sub-FSM.
	StrategyOffload
)

// Plan is the allocation decision for one control node. Lockstep means each
// FSM state corresponds to exactly one clock cycle; otherwise an internal
// counter, not the state number, tracks cycles.
type Plan struct {
	Static   bool
	States   uint64
	Lockstep bool
	Strategy RepeatStrategy
}

// Planner is the side table of allocation decisions, keyed by node id.
type Planner struct {
	plans map[int64]Plan
}

// PlanControl folds the component's control tree bottom-up and records an
// allocation decision for every node. Node ids are assigned if missing.
func PlanControl(comp *ir.Component) *Planner {
	if _, ok := ir.NodeID(comp.Control); !ok {
		ir.AssignNodeIDs(comp.Control)
	}
	p := &Planner{plans: make(map[int64]Plan)}
	p.fold(comp.Control, comp)
	return p
}

// Plan returns the decision recorded for the node.
func (p *Planner) Plan(node ir.Control) (Plan, bool) {
	id, ok := ir.NodeID(node)
	if !ok {
		return Plan{}, false
	}
	return p.PlanByID(id)
}

// PlanByID returns the decision recorded for a node id.
func (p *Planner) PlanByID(id int64) (Plan, bool) {
	plan, ok := p.plans[id]
	return plan, ok
}

func (p *Planner) fold(c ir.Control, comp *ir.Component) Plan {
	var plan Plan
	switch n := c.(type) {
	case *ir.StaticEnable:
		latency := comp.Group(n.Group).Latency
		if latency < FSMStateCutoff {
			plan = Plan{Static: true, States: latency, Lockstep: true}
		} else {
			plan = Plan{Static: true, States: 1, Lockstep: false}
		}
	case *ir.StaticSeq:
		plan = Plan{Static: true, Lockstep: true}
		for _, s := range n.Stmts {
			child := p.fold(s, comp)
			plan.States += child.States
			plan.Lockstep = plan.Lockstep && child.Lockstep
		}
	case *ir.StaticPar:
		plan = Plan{Static: true, Lockstep: true}
		for _, s := range n.Stmts {
			child := p.fold(s, comp)
			if child.States > plan.States {
				plan.States = child.States
			}
			plan.Lockstep = plan.Lockstep && child.Lockstep
		}
	case *ir.StaticIf:
		// Branches run as gated sub-FSMs beside a single decision state, so
		// the larger branch bounds the allocation, as with par threads.
		t := p.fold(n.True, comp)
		f := p.fold(n.False, comp)
		plan = Plan{Static: true, States: t.States, Lockstep: t.Lockstep && f.Lockstep}
		if f.States > plan.States {
			plan.States = f.States
		}
	case *ir.StaticRepeat:
		body := p.fold(n.Body, comp)
		switch {
		case n.NumRepeats*body.States < FSMStateCutoff && body.Lockstep:
			plan = Plan{
				Static:   true,
				States:   n.NumRepeats * body.States,
				Lockstep: true,
				Strategy: StrategyUnroll,
			}
		case body.States < FSMStateCutoff:
			plan = Plan{Static: true, States: body.States, Strategy: StrategyInline}
		default:
			plan = Plan{Static: true, States: 1, Strategy: StrategyOffload}
		}
	case *ir.Seq:
		for _, s := range n.Stmts {
			p.fold(s, comp)
		}
	case *ir.Par:
		for _, s := range n.Stmts {
			p.fold(s, comp)
		}
	case *ir.If:
		p.fold(n.True, comp)
		p.fold(n.False, comp)
	case *ir.While:
		p.fold(n.Body, comp)
	case *ir.Repeat:
		p.fold(n.Body, comp)
	}
	// Dynamic nodes fall through with the zero plan: not statically
	// schedulable, no states to allocate.
	if id, ok := ir.NodeID(c); ok {
		p.plans[id] = plan
	}
	return plan
}
