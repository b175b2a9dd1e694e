package passes

import (
	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/transform"
)

// RemoveRedundantBlocks splices the body of every block statement into the
// enclosing statement list.
type RemoveRedundantBlocks struct {
	transform.Base
	ctx *compiler.Context
}

func NewRemoveRedundantBlocks(ctx *compiler.Context) *RemoveRedundantBlocks {
	return &RemoveRedundantBlocks{ctx: ctx}
}

func (*RemoveRedundantBlocks) Name() string { return "RemoveRedundantBlocks" }

func (*RemoveRedundantBlocks) Transform(t ast.Tree) ast.Tree {
	if b, ok := t.(*ast.StmtBlock); ok {
		trees := make([]ast.Tree, len(b.Body))
		for i, s := range b.Body {
			trees[i] = s
		}
		return &ast.Thicket{Trees: trees}
	}
	return t
}

func (p *RemoveRedundantBlocks) FinalCheck(t ast.Tree) {
	ast.Inspect(t, func(n ast.Tree) bool {
		if b, ok := n.(*ast.StmtBlock); ok {
			p.ctx.Reporter.ICE("block statement at %s survived", b.Loc)
		}
		return true
	})
}
