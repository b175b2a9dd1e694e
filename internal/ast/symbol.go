package ast

import "fmt"

// SymbolClass separates value symbols from type symbols.
type SymbolClass int

const (
	TermSymbol SymbolClass = iota // ports, variables, constants, instances
	TypeSymbol                    // entities, user types
)

// Symbol is the identity of a name. Symbols are allocated by the
// compilation context and compared by pointer; the kind may be updated in
// place by passes that change an entity's ports or a port's storage.
type Symbol struct {
	id    int
	name  string
	loc   Loc
	class SymbolClass
	kind  Type
}

// NewSymbol creates a symbol with an already allocated identifier. Passes
// allocate through compiler.Context instead of calling this directly.
func NewSymbol(id int, class SymbolClass, name string, loc Loc, kind Type) *Symbol {
	return &Symbol{id: id, name: name, loc: loc, class: class, kind: kind}
}

// ID is the creation order of the symbol within its compilation.
func (s *Symbol) ID() int { return s.id }

func (s *Symbol) Name() string { return s.name }

func (s *Symbol) Loc() Loc { return s.loc }

func (s *Symbol) Class() SymbolClass { return s.class }

func (s *Symbol) IsTerm() bool { return s.class == TermSymbol }

func (s *Symbol) IsType() bool { return s.class == TypeSymbol }

// Kind returns the current type of the symbol.
func (s *Symbol) Kind() Type { return s.kind }

// SetKind replaces the kind of the symbol.
func (s *Symbol) SetKind(kind Type) { s.kind = kind }

// Rename changes the name of the symbol. Every reference observes the new
// name since references hold the symbol itself.
func (s *Symbol) Rename(name string) { s.name = name }

func (s *Symbol) String() string {
	return fmt.Sprintf("%s@%d", s.name, s.id)
}

// EntityPorts returns the ports of an entity symbol, or nil if the symbol is
// not an entity.
func EntityPorts(s *Symbol) []*Symbol {
	if s == nil {
		return nil
	}
	if k, ok := s.kind.(TypeEntity); ok {
		return k.Ports
	}
	return nil
}

// PortNamed finds the port of an entity symbol by name.
func PortNamed(entity *Symbol, name string) *Symbol {
	for _, p := range EntityPorts(entity) {
		if p.name == name {
			return p
		}
	}
	return nil
}

// AddPorts appends ports to the signature of an entity symbol. The kind is
// replaced rather than mutated so earlier copies of the kind are unaffected.
func AddPorts(entity *Symbol, ports ...*Symbol) {
	if len(ports) == 0 {
		return
	}
	old := EntityPorts(entity)
	next := make([]*Symbol, 0, len(old)+len(ports))
	next = append(next, old...)
	next = append(next, ports...)
	entity.SetKind(TypeEntity{Ports: next})
}

// InstanceEntity returns the entity instantiated by an instance symbol.
func InstanceEntity(s *Symbol) *Symbol {
	if s == nil {
		return nil
	}
	if k, ok := s.kind.(TypeInstance); ok {
		return k.Entity
	}
	return nil
}
