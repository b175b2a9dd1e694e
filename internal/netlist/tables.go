// Package netlist exports a lowered design as flat relational tables for
// downstream tools and design rules.
package netlist

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
)

// Tables is the relational netlist model.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Entities  []EntityRow   `json:"entities"`
	Ports     []PortRow     `json:"ports"`
	Decls     []DeclRow     `json:"decls"`
	Instances []InstanceRow `json:"instances"`
	Connects  []ConnectRow  `json:"connects"`
	Drivers   []DriverRow   `json:"drivers"`
}

type EntityRow struct {
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
}

type PortRow struct {
	Entity    string `json:"entity"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
	Width     int    `json:"width"`
	Flow      string `json:"flow"`
	Storage   string `json:"storage"`
	File      string `json:"file"`
	Line      int    `json:"line"`
}

type DeclRow struct {
	Entity string `json:"entity"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Init   string `json:"init"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

type InstanceRow struct {
	Entity string `json:"entity"`
	Name   string `json:"name"`
	Target string `json:"target"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

// ConnectRow is one source to sink edge; a connection with several sinks
// yields one row per sink.
type ConnectRow struct {
	Entity string `json:"entity"`
	Source string `json:"source"`
	Sink   string `json:"sink"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

// DriverRow records that Signal is driven inside Entity, either by a
// connection ("connect") or by the statement body ("assign").
type DriverRow struct {
	Entity string `json:"entity"`
	Signal string `json:"signal"`
	Kind   string `json:"kind"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

const (
	DriverConnect = "connect"
	DriverAssign  = "assign"
)

// Build converts a lowered design into tables. Entities are processed
// concurrently by at most workers goroutines (0 = GOMAXPROCS); the result
// does not depend on scheduling. The design must not be mutated while Build
// runs.
func Build(ctx context.Context, root *ast.Root, workers int) (Tables, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	parts := make([]Tables, len(root.Entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range root.Entities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if len(e.Entities) > 0 {
				return fmt.Errorf("entity %s still has nested entities", e.Name())
			}
			parts[i] = entityTables(e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return emptyTables(), err
	}

	tables := emptyTables()
	for _, p := range parts {
		tables.Entities = append(tables.Entities, p.Entities...)
		tables.Ports = append(tables.Ports, p.Ports...)
		tables.Decls = append(tables.Decls, p.Decls...)
		tables.Instances = append(tables.Instances, p.Instances...)
		tables.Connects = append(tables.Connects, p.Connects...)
		tables.Drivers = append(tables.Drivers, p.Drivers...)
	}

	sort.SliceStable(tables.Entities, func(i, j int) bool { return tables.Entities[i].Name < tables.Entities[j].Name })

	return tables, nil
}

func entityTables(e *ast.Entity) Tables {
	name := e.Name()
	t := Tables{
		Entities: []EntityRow{{Name: name, File: e.Loc.File, Line: e.Loc.Line}},
	}

	for _, d := range e.Decls {
		sym := d.Symbol
		loc := d.Loc
		switch k := sym.Kind().(type) {
		case ast.TypeIn:
			t.Ports = append(t.Ports, PortRow{
				Entity:    name,
				Name:      sym.Name(),
				Direction: "in",
				Type:      k.Kind.String(),
				Width:     ast.Width(k.Kind),
				Flow:      flowName(k.FC),
				File:      loc.File,
				Line:      loc.Line,
			})
		case ast.TypeOut:
			t.Ports = append(t.Ports, PortRow{
				Entity:    name,
				Name:      sym.Name(),
				Direction: "out",
				Type:      k.Kind.String(),
				Width:     ast.Width(k.Kind),
				Flow:      flowName(k.FC),
				Storage:   k.ST.String(),
				File:      loc.File,
				Line:      loc.Line,
			})
		default:
			row := DeclRow{
				Entity: name,
				Name:   sym.Name(),
				Kind:   declKind(sym.Kind()),
				Type:   ast.Underlying(sym.Kind()).String(),
				Width:  ast.Width(sym.Kind()),
				File:   loc.File,
				Line:   loc.Line,
			}
			if d.Init != nil {
				row.Init = ast.FormatExpr(d.Init)
			}
			t.Decls = append(t.Decls, row)
		}
	}

	for _, inst := range e.Instances {
		t.Instances = append(t.Instances, InstanceRow{
			Entity: name,
			Name:   inst.Symbol.Name(),
			Target: inst.Entity.Name(),
			File:   inst.Loc.File,
			Line:   inst.Loc.Line,
		})
	}

	for _, c := range e.Connects {
		src := ast.FormatExpr(c.Lhs)
		for _, sink := range c.Rhs {
			t.Connects = append(t.Connects, ConnectRow{
				Entity: name,
				Source: src,
				Sink:   ast.FormatExpr(sink),
				File:   c.Loc.File,
				Line:   c.Loc.Line,
			})
			for _, sig := range drivenSignals(sink) {
				t.Drivers = append(t.Drivers, DriverRow{
					Entity: name,
					Signal: sig,
					Kind:   DriverConnect,
					File:   c.Loc.File,
					Line:   c.Loc.Line,
				})
			}
		}
	}

	t.Drivers = append(t.Drivers, assignDrivers(name, e.Stmts)...)

	return t
}

// assignDrivers lists every signal written by the body once, at its first
// write.
func assignDrivers(entity string, stmts []ast.Stmt) []DriverRow {
	seen := make(map[string]bool)
	var rows []DriverRow
	add := func(sig string, loc ast.Loc) {
		if seen[sig] {
			return
		}
		seen[sig] = true
		rows = append(rows, DriverRow{Entity: entity, Signal: sig, Kind: DriverAssign, File: loc.File, Line: loc.Line})
	}
	for _, s := range stmts {
		ast.Inspect(s, func(n ast.Tree) bool {
			switch x := n.(type) {
			case *ast.StmtAssign:
				for _, sig := range drivenSignals(x.Lhs) {
					add(sig, x.Loc)
				}
			case *ast.ExprCall:
				if sel, ok := x.Func.(*ast.ExprSelect); ok && sel.Field == "write" {
					for _, sig := range drivenSignals(sel.Expr) {
						add(sig, x.Loc)
					}
				}
			}
			return true
		})
	}
	return rows
}

// drivenSignals names what an lvalue drives: an instance port as
// "inst.port", anything else by its root symbols.
func drivenSignals(e ast.Expr) []string {
	switch n := e.(type) {
	case *ast.ExprSelect:
		if ref, ok := n.Expr.(*ast.ExprRef); ok && ast.InstanceEntity(ref.Symbol) != nil {
			return []string{ref.Symbol.Name() + "." + n.Field}
		}
	case *ast.ExprCat:
		var out []string
		for _, p := range n.Parts {
			out = append(out, drivenSignals(p)...)
		}
		return out
	}
	roots := ast.LValueRoots(e)
	out := make([]string, len(roots))
	for i, sym := range roots {
		out[i] = sym.Name()
	}
	return out
}

func flowName(fc ast.FlowControl) string {
	switch fc {
	case ast.FlowValid:
		return "valid"
	case ast.FlowReady:
		return "ready"
	default:
		return "none"
	}
}

func declKind(t ast.Type) string {
	switch t.(type) {
	case ast.TypeConst:
		return "const"
	case ast.TypeArray:
		return "array"
	case ast.TypePipeline:
		return "pipeline"
	case ast.TypeStack:
		return "stack"
	case ast.TypeInstance:
		return "instance"
	default:
		return "var"
	}
}

func emptyTables() Tables {
	return Tables{
		Entities:  []EntityRow{},
		Ports:     []PortRow{},
		Decls:     []DeclRow{},
		Instances: []InstanceRow{},
		Connects:  []ConnectRow{},
		Drivers:   []DriverRow{},
	}
}
