// Package passes holds the lowering passes that take a typed, name-resolved
// design down to flat entities with scalar declarations, connections and
// statements.
package passes

import (
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/transform"
)

// Structural passes run once, in this order.
var structural = []func(*compiler.Context) transform.Pass{
	func(ctx *compiler.Context) transform.Pass { return NewLowerPipeline(ctx) },
	func(ctx *compiler.Context) transform.Pass { return NewLowerStacks(ctx) },
	func(ctx *compiler.Context) transform.Pass { return NewLiftEntities(ctx) },
}

// Normalization passes may run several rounds.
var normalization = []func(*compiler.Context) transform.Pass{
	func(ctx *compiler.Context) transform.Pass { return NewSimplifyCat(ctx) },
	func(ctx *compiler.Context) transform.Pass { return NewFoldStmt(ctx) },
	func(ctx *compiler.Context) transform.Pass { return NewRemoveRedundantBlocks(ctx) },
}

// Lowering returns fresh instances of every pass in execution order, with
// the normalization passes repeated rounds times.
func Lowering(ctx *compiler.Context, rounds int) []transform.Pass {
	if rounds < 1 {
		rounds = 1
	}
	var out []transform.Pass
	for _, mk := range structural {
		out = append(out, mk(ctx))
	}
	for r := 0; r < rounds; r++ {
		for _, mk := range normalization {
			out = append(out, mk(ctx))
		}
	}
	return out
}

// Names lists the distinct pass names in execution order.
func Names() []string {
	ctx := compiler.New(compiler.Options{})
	var names []string
	for _, p := range Lowering(ctx, 1) {
		names = append(names, p.Name())
	}
	return names
}
