// Package passes contains the control-lowering compilers. Each pass is a
// control-tree visitor that rewrites Seq/Par/If/Repeat nodes into concrete
// register, counter and guard networks, typically leaving a single Enable
// of a synthesized group behind.
package passes

import "fsmgen/internal/ir"

// Pass is a named control-tree visitor.
type Pass interface {
	ir.Visitor
	Name() string
}

// Run drives each pass over every component of the context in order.
func Run(ctx *ir.Context, ps ...Pass) {
	for _, p := range ps {
		ir.RunPass(ctx, p)
	}
}
