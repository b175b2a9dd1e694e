package passes

import (
	"slices"
	"testing"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/report"
)

// pipeline builds an entity declaring the pipeline variables vars with the
// given stages chained in order.
func pipeline(b *builder, vars []*ast.Symbol, stages ...*ast.Entity) *ast.Entity {
	top := b.entity("p", vars...)
	var prev *ast.Symbol
	for _, s := range stages {
		inst := b.nest(top, s)
		if prev != nil {
			top.Connects = append(top.Connects, &ast.Connect{Loc: b.loc(), Lhs: b.ref(prev), Rhs: []ast.Expr{b.ref(inst)}})
		}
		prev = inst
	}
	return top
}

func pipelineVars(b *builder) (x, y *ast.Symbol) {
	return b.sym("x", ast.TypePipeline{Kind: u(8)}), b.sym("y", ast.TypePipeline{Kind: u(4)})
}

func TestLowerPipelineThreadsLiveVariables(t *testing.T) {
	b := newBuilder()
	x, y := pipelineVars(b)
	s1 := b.entity("s1")
	s1.Stmts = []ast.Stmt{
		b.assign(b.ref(x), ast.Num(1)),
		b.assign(b.ref(y), ast.Num(2)),
		&ast.StmtWrite{Loc: b.loc()},
	}
	s2 := b.entity("s2")
	s2.Stmts = []ast.Stmt{
		&ast.StmtRead{Loc: b.loc()},
		b.assign(b.ref(y), ast.Binary(b.ref(y), "+", ast.Num(1))),
		&ast.StmtWrite{Loc: b.loc()},
	}
	z := b.sym("z", u(8))
	s3 := b.entity("s3", z)
	s3.Stmts = []ast.Stmt{
		&ast.StmtRead{Loc: b.loc()},
		b.assign(b.ref(z), b.ref(x)),
	}
	top := pipeline(b, []*ast.Symbol{x, y}, s1, s2, s3)

	out := run(t, b, NewLowerPipeline(b.ctx), root(top))
	p := out.Entities[0]

	if got := declNames(p); len(got) != 0 {
		t.Fatalf("pipeline variables survived: %v", got)
	}

	tests := []struct {
		stage     string
		ports     []string
		decls     []string
		stmts     string
		inFields  []string
		outFields []string
	}{
		{
			stage:     "s1",
			ports:     []string{PipelineOut},
			decls:     []string{PipelineOut, "x", "y"},
			stmts:     "x = 1;\ny = 2;\npipeline_o.write({x, y});\n",
			outFields: []string{"x", "y"},
		},
		{
			stage:     "s2",
			ports:     []string{PipelineIn, PipelineOut},
			decls:     []string{PipelineIn, PipelineOut, "x", "y"},
			stmts:     "{x, y} = pipeline_i.read();\ny = (y + 1);\npipeline_o.write(x);\n",
			inFields:  []string{"x", "y"},
			outFields: []string{"x"},
		},
		{
			stage:    "s3",
			ports:    []string{PipelineIn},
			decls:    []string{PipelineIn, "z", "x"},
			stmts:    "x = pipeline_i.read();\nz = x;\n",
			inFields: []string{"x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			var s *ast.Entity
			for _, e := range p.Entities {
				if e.Name() == tt.stage {
					s = e
				}
			}
			if s == nil {
				t.Fatalf("stage %s missing", tt.stage)
			}
			if got := portNames(s); !slices.Equal(got, tt.ports) {
				t.Fatalf("ports = %v, want %v", got, tt.ports)
			}
			if got := declNames(s); !slices.Equal(got, tt.decls) {
				t.Fatalf("decls = %v, want %v", got, tt.decls)
			}
			if got := stmtsText(s.Stmts); got != tt.stmts {
				t.Fatalf("stmts:\n%s\nwant:\n%s", got, tt.stmts)
			}
			if in := ast.PortNamed(s.Symbol, PipelineIn); in != nil {
				k := in.Kind().(ast.TypeIn)
				if k.FC != ast.FlowReady {
					t.Fatalf("input flow control = %s", k.FC)
				}
				if got := fieldNames(k.Kind); !slices.Equal(got, tt.inFields) {
					t.Fatalf("input fields = %v, want %v", got, tt.inFields)
				}
			}
			if o := ast.PortNamed(s.Symbol, PipelineOut); o != nil {
				k := o.Kind().(ast.TypeOut)
				if !k.ST.Equal(ast.SliceStorage(ast.SliceForward)) {
					t.Fatalf("output storage = %s", k.ST)
				}
				if got := fieldNames(k.Kind); !slices.Equal(got, tt.outFields) {
					t.Fatalf("output fields = %v, want %v", got, tt.outFields)
				}
			}
		})
	}

	want := "s1_i.pipeline_o -> s2_i.pipeline_i;\ns2_i.pipeline_o -> s3_i.pipeline_i;\n"
	if got := connectsText(p); got != want {
		t.Fatalf("connects:\n%s\nwant:\n%s", got, want)
	}
}

func fieldNames(t ast.Type) []string {
	var names []string
	for _, f := range t.(ast.TypeStruct).Fields {
		names = append(names, f.Name)
	}
	return names
}

func TestLowerPipelineUnconnectedAccess(t *testing.T) {
	tests := []struct {
		name        string
		first, last func(b *builder, x *ast.Symbol) []ast.Stmt
	}{
		{
			name: "read in first stage",
			first: func(b *builder, x *ast.Symbol) []ast.Stmt {
				return []ast.Stmt{&ast.StmtRead{Loc: b.loc()}, &ast.StmtWrite{Loc: b.loc()}}
			},
			last: func(b *builder, x *ast.Symbol) []ast.Stmt {
				return []ast.Stmt{&ast.StmtRead{Loc: b.loc()}, &ast.StmtStall{Loc: b.loc(), Cond: b.ref(x)}}
			},
		},
		{
			name: "write in last stage",
			first: func(b *builder, x *ast.Symbol) []ast.Stmt {
				return []ast.Stmt{b.assign(b.ref(x), ast.Num(1)), &ast.StmtWrite{Loc: b.loc()}}
			},
			last: func(b *builder, x *ast.Symbol) []ast.Stmt {
				return []ast.Stmt{&ast.StmtRead{Loc: b.loc()}, &ast.StmtStall{Loc: b.loc(), Cond: b.ref(x)}, &ast.StmtWrite{Loc: b.loc()}}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder()
			x, _ := pipelineVars(b)
			s1, s2 := b.entity("s1"), b.entity("s2")
			s1.Stmts = tt.first(b, x)
			s2.Stmts = tt.last(b, x)

			_, err := runErr(b, NewLowerPipeline(b.ctx), root(pipeline(b, []*ast.Symbol{x}, s1, s2)))
			if !report.IsFatal(err) {
				t.Fatalf("expected a fatal error, got %v", err)
			}
		})
	}
}

func TestLowerPipelineRejectsBranches(t *testing.T) {
	b := newBuilder()
	x, _ := pipelineVars(b)
	s1, s2, s3 := b.entity("s1"), b.entity("s2"), b.entity("s3")
	s1.Stmts = []ast.Stmt{b.assign(b.ref(x), ast.Num(1)), &ast.StmtWrite{Loc: b.loc()}}
	top := pipeline(b, []*ast.Symbol{x}, s1, s2)
	i3 := b.nest(top, s3)
	top.Connects = append(top.Connects, &ast.Connect{Loc: b.loc(), Lhs: b.ref(top.Instances[0].Symbol), Rhs: []ast.Expr{b.ref(i3)}})
	r := root(top)

	out := run(t, b, NewLowerPipeline(b.ctx), r)
	if out != r {
		t.Fatal("entity with an invalid stage graph was rewritten")
	}
	errs := b.ctx.Reporter.Errors()
	if len(errs) != 1 || errs[0].Message != "pipeline stage s1 has more than one successor" {
		t.Fatalf("unexpected errors %v", errs)
	}
}

func TestLowerPipelineSharesUntouchedStage(t *testing.T) {
	b := newBuilder()
	x, _ := pipelineVars(b)
	s1 := b.entity("s1")
	s1.Stmts = []ast.Stmt{b.assign(b.ref(x), ast.Num(1))}
	o := b.sym("o", ast.TypeOut{Kind: u(1), ST: ast.StoreReg})
	s2 := b.entity("s2", o)
	s2.Stmts = []ast.Stmt{b.assign(b.ref(o), ast.Num(0))}
	top := pipeline(b, []*ast.Symbol{x}, s1, s2)

	out := run(t, b, NewLowerPipeline(b.ctx), root(top))
	p := out.Entities[0]
	if p.Entities[0] == s1 {
		t.Fatalf("stage using a pipeline variable must be rewritten")
	}
	if p.Entities[1] != s2 {
		t.Fatalf("stage without pipeline variables or ports must be returned unchanged")
	}
	if got := portNames(s2); !slices.Equal(got, []string{"o"}) {
		t.Fatalf("ports of the untouched stage = %v", got)
	}
}
