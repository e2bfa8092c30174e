package ir

import "fmt"

type actionKind int

const (
	actionContinue actionKind = iota
	actionSkipChildren
	actionStop
	actionChange
)

// Action is the result of a visitor hook. Continue descends normally,
// SkipChildren jumps straight to the node's finish hook, Stop aborts the
// whole traversal, and Change replaces the current node in its parent slot.
type Action struct {
	kind actionKind
	repl Control
}

// Continue proceeds with the normal traversal order.
func Continue() Action { return Action{kind: actionContinue} }

// SkipChildren skips the current node's children but still runs its finish
// hook.
func SkipChildren() Action { return Action{kind: actionSkipChildren} }

// Stop aborts the traversal immediately.
func Stop() Action { return Action{kind: actionStop} }

// Change replaces the current node with repl. When returned from a start
// hook the node's children and finish hook are skipped.
func Change(repl Control) Action { return Action{kind: actionChange, repl: repl} }

// Visitor receives start/finish hooks around every composite control node
// and a single visit hook for each leaf. Embed BaseVisitor to get no-op
// defaults.
type Visitor interface {
	StartSeq(*Seq, *Component) Action
	FinishSeq(*Seq, *Component) Action
	StartPar(*Par, *Component) Action
	FinishPar(*Par, *Component) Action
	StartIf(*If, *Component) Action
	FinishIf(*If, *Component) Action
	StartWhile(*While, *Component) Action
	FinishWhile(*While, *Component) Action
	StartRepeat(*Repeat, *Component) Action
	FinishRepeat(*Repeat, *Component) Action
	StartStaticSeq(*StaticSeq, *Component) Action
	FinishStaticSeq(*StaticSeq, *Component) Action
	StartStaticPar(*StaticPar, *Component) Action
	FinishStaticPar(*StaticPar, *Component) Action
	StartStaticIf(*StaticIf, *Component) Action
	FinishStaticIf(*StaticIf, *Component) Action
	StartStaticRepeat(*StaticRepeat, *Component) Action
	FinishStaticRepeat(*StaticRepeat, *Component) Action
	VisitEnable(*Enable, *Component) Action
	VisitStaticEnable(*StaticEnable, *Component) Action
	VisitInvoke(*Invoke, *Component) Action
	VisitEmpty(*Empty, *Component) Action

	// Clear resets per-component visitor state before each component.
	Clear(*Component)
}

// BaseVisitor provides Continue defaults for every hook.
type BaseVisitor struct{}

func (BaseVisitor) StartSeq(*Seq, *Component) Action                   { return Continue() }
func (BaseVisitor) FinishSeq(*Seq, *Component) Action                  { return Continue() }
func (BaseVisitor) StartPar(*Par, *Component) Action                   { return Continue() }
func (BaseVisitor) FinishPar(*Par, *Component) Action                  { return Continue() }
func (BaseVisitor) StartIf(*If, *Component) Action                     { return Continue() }
func (BaseVisitor) FinishIf(*If, *Component) Action                    { return Continue() }
func (BaseVisitor) StartWhile(*While, *Component) Action               { return Continue() }
func (BaseVisitor) FinishWhile(*While, *Component) Action              { return Continue() }
func (BaseVisitor) StartRepeat(*Repeat, *Component) Action             { return Continue() }
func (BaseVisitor) FinishRepeat(*Repeat, *Component) Action            { return Continue() }
func (BaseVisitor) StartStaticSeq(*StaticSeq, *Component) Action       { return Continue() }
func (BaseVisitor) FinishStaticSeq(*StaticSeq, *Component) Action      { return Continue() }
func (BaseVisitor) StartStaticPar(*StaticPar, *Component) Action       { return Continue() }
func (BaseVisitor) FinishStaticPar(*StaticPar, *Component) Action      { return Continue() }
func (BaseVisitor) StartStaticIf(*StaticIf, *Component) Action         { return Continue() }
func (BaseVisitor) FinishStaticIf(*StaticIf, *Component) Action        { return Continue() }
func (BaseVisitor) StartStaticRepeat(*StaticRepeat, *Component) Action { return Continue() }
func (BaseVisitor) FinishStaticRepeat(*StaticRepeat, *Component) Action {
	return Continue()
}
func (BaseVisitor) VisitEnable(*Enable, *Component) Action             { return Continue() }
func (BaseVisitor) VisitStaticEnable(*StaticEnable, *Component) Action { return Continue() }
func (BaseVisitor) VisitInvoke(*Invoke, *Component) Action             { return Continue() }
func (BaseVisitor) VisitEmpty(*Empty, *Component) Action               { return Continue() }
func (BaseVisitor) Clear(*Component)                                   {}

// VisitControl walks the tree rooted at node. The returned control is the
// (possibly replaced) node the parent must store back into its slot; the
// returned action is Continue or Stop.
func VisitControl(node Control, v Visitor, comp *Component) (Control, Action) {
	switch n := node.(type) {
	case *Seq:
		return visitComposite(node, v, comp,
			func() Action { return v.StartSeq(n, comp) },
			func() Action { return visitList(n.Stmts, v, comp) },
			func() Action { return v.FinishSeq(n, comp) })
	case *Par:
		return visitComposite(node, v, comp,
			func() Action { return v.StartPar(n, comp) },
			func() Action { return visitList(n.Stmts, v, comp) },
			func() Action { return v.FinishPar(n, comp) })
	case *If:
		return visitComposite(node, v, comp,
			func() Action { return v.StartIf(n, comp) },
			func() Action {
				return visitSlots(v, comp, &n.True, &n.False)
			},
			func() Action { return v.FinishIf(n, comp) })
	case *While:
		return visitComposite(node, v, comp,
			func() Action { return v.StartWhile(n, comp) },
			func() Action { return visitSlots(v, comp, &n.Body) },
			func() Action { return v.FinishWhile(n, comp) })
	case *Repeat:
		return visitComposite(node, v, comp,
			func() Action { return v.StartRepeat(n, comp) },
			func() Action { return visitSlots(v, comp, &n.Body) },
			func() Action { return v.FinishRepeat(n, comp) })
	case *StaticSeq:
		return visitComposite(node, v, comp,
			func() Action { return v.StartStaticSeq(n, comp) },
			func() Action { return visitList(n.Stmts, v, comp) },
			func() Action { return v.FinishStaticSeq(n, comp) })
	case *StaticPar:
		return visitComposite(node, v, comp,
			func() Action { return v.StartStaticPar(n, comp) },
			func() Action { return visitList(n.Stmts, v, comp) },
			func() Action { return v.FinishStaticPar(n, comp) })
	case *StaticIf:
		return visitComposite(node, v, comp,
			func() Action { return v.StartStaticIf(n, comp) },
			func() Action {
				return visitSlots(v, comp, &n.True, &n.False)
			},
			func() Action { return v.FinishStaticIf(n, comp) })
	case *StaticRepeat:
		return visitComposite(node, v, comp,
			func() Action { return v.StartStaticRepeat(n, comp) },
			func() Action { return visitSlots(v, comp, &n.Body) },
			func() Action { return v.FinishStaticRepeat(n, comp) })
	case *Enable:
		return applyLeaf(node, v.VisitEnable(n, comp))
	case *StaticEnable:
		return applyLeaf(node, v.VisitStaticEnable(n, comp))
	case *Invoke:
		return applyLeaf(node, v.VisitInvoke(n, comp))
	case *Empty:
		return applyLeaf(node, v.VisitEmpty(n, comp))
	default:
		panic(fmt.Sprintf("ir: unknown control node %T in traversal", node))
	}
}

func visitComposite(node Control, v Visitor, comp *Component, start, children, finish func() Action) (Control, Action) {
	switch act := start(); act.kind {
	case actionStop:
		return node, Stop()
	case actionChange:
		return act.repl, Continue()
	case actionSkipChildren:
		// fall through to finish
	default:
		if res := children(); res.kind == actionStop {
			return node, Stop()
		}
	}
	switch act := finish(); act.kind {
	case actionStop:
		return node, Stop()
	case actionChange:
		return act.repl, Continue()
	default:
		return node, Continue()
	}
}

func applyLeaf(node Control, act Action) (Control, Action) {
	switch act.kind {
	case actionStop:
		return node, Stop()
	case actionChange:
		return act.repl, Continue()
	default:
		return node, Continue()
	}
}

// visitList dispatches the traversal over a slice of siblings, storing
// replacements back into the slice and short-circuiting on Stop.
func visitList(stmts []Control, v Visitor, comp *Component) Action {
	for i, child := range stmts {
		replaced, act := VisitControl(child, v, comp)
		stmts[i] = replaced
		if act.kind == actionStop {
			return Stop()
		}
	}
	return Continue()
}

func visitSlots(v Visitor, comp *Component, slots ...*Control) Action {
	for _, slot := range slots {
		replaced, act := VisitControl(*slot, v, comp)
		*slot = replaced
		if act.kind == actionStop {
			return Stop()
		}
	}
	return Continue()
}

// RunPass drives a visitor over every component of the context in order,
// resetting the visitor's per-component state in between. The component's
// control root is replaced when the traversal changes it.
func RunPass(ctx *Context, v Visitor) {
	for _, comp := range ctx.Components {
		if comp == nil {
			continue
		}
		v.Clear(comp)
		root := comp.Control
		if root == nil {
			root = &Empty{}
		}
		replaced, _ := VisitControl(root, v, comp)
		comp.Control = replaced
	}
}
